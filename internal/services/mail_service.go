package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
)

// ErrEmailNotConfigured is returned when no SMTP host or sender is set.
var ErrEmailNotConfigured = errors.New("SMTP not configured")

// SMTPConfig holds the SMTP server configuration stored under the smtp settings category.
type SMTPConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	Password    string `json:"password,omitempty"`
	FromAddress string `json:"from_address"`
	Encryption  string `json:"encryption"` // "none", "ssl", "starttls"
}

// EmailMessage is one outgoing HTML email.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
}

// EmailSender delivers email. IsConfigured false means sends are skipped
// with a typed failure instead of attempted.
type EmailSender interface {
	IsConfigured() bool
	Send(ctx context.Context, msg EmailMessage) (messageID string, err error)
}

// MailService sends email via SMTP using settings from the database.
type MailService struct {
	settings    *SettingsService
	dialTimeout time.Duration
}

func NewMailService(db *gorm.DB) *MailService {
	return &MailService{settings: NewSettingsService(db), dialTimeout: 15 * time.Second}
}

// GetSMTPConfig reads the smtp settings category, with port 587 and
// STARTTLS as defaults.
func (s *MailService) GetSMTPConfig() (*SMTPConfig, error) {
	settings, err := s.settings.Category("smtp")
	if err != nil {
		return nil, fmt.Errorf("failed to load SMTP settings: %w", err)
	}
	cfg := &SMTPConfig{
		Host:        settings["smtp_host"],
		Port:        587,
		Username:    settings["smtp_username"],
		Password:    settings["smtp_password"],
		FromAddress: settings["smtp_from_address"],
		Encryption:  "starttls",
	}
	if v, ok := settings["smtp_port"]; ok {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}
	if v := settings["smtp_encryption"]; v != "" {
		cfg.Encryption = v
	}
	return cfg, nil
}

// SaveSMTPConfig writes every SMTP field to the settings table.
func (s *MailService) SaveSMTPConfig(cfg *SMTPConfig) error {
	values := []struct{ key, value string }{
		{"smtp_host", cfg.Host},
		{"smtp_port", strconv.Itoa(cfg.Port)},
		{"smtp_username", cfg.Username},
		{"smtp_password", cfg.Password},
		{"smtp_from_address", cfg.FromAddress},
		{"smtp_encryption", cfg.Encryption},
	}
	for _, v := range values {
		if err := s.settings.Upsert(&models.Setting{Key: v.key, Value: v.value, Category: "smtp"}); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", v.key, err)
		}
	}
	return nil
}

// IsConfigured returns true if SMTP has a host and a sender.
func (s *MailService) IsConfigured() bool {
	cfg, err := s.GetSMTPConfig()
	if err != nil {
		return false
	}
	return cfg.Host != "" && cfg.FromAddress != ""
}

// TestConnection dials and authenticates without sending.
func (s *MailService) TestConnection() error {
	cfg, err := s.GetSMTPConfig()
	if err != nil {
		return err
	}
	if cfg.Host == "" {
		return errors.New("SMTP host not configured")
	}
	client, err := s.dial(cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Quit()
}

// Send implements EmailSender.
func (s *MailService) Send(_ context.Context, msg EmailMessage) (string, error) {
	return s.send(msg.To, msg.Subject, msg.HTMLBody)
}

// SendEmail sends an HTML email using the configured SMTP settings.
func (s *MailService) SendEmail(to, subject, htmlBody string) error {
	_, err := s.send(to, subject, htmlBody)
	return err
}

func (s *MailService) send(to, subject, htmlBody string) (string, error) {
	cfg, err := s.GetSMTPConfig()
	if err != nil {
		return "", err
	}
	if cfg.Host == "" || cfg.FromAddress == "" {
		return "", ErrEmailNotConfigured
	}
	if err := validateEmailAddress(to); err != nil {
		return "", fmt.Errorf("invalid recipient: %w", err)
	}
	from, err := mail.ParseAddress(cfg.FromAddress)
	if err != nil {
		return "", fmt.Errorf("invalid from address: %w", err)
	}
	rcpt, _ := mail.ParseAddress(to)

	messageID := fmt.Sprintf("<%s@%s>", uuid.New().String(), cfg.Host)
	msg := s.buildEmail(cfg.FromAddress, to, subject, htmlBody)
	msg = append([]byte("Message-ID: "+messageID+"\r\n"), msg...)

	client, err := s.dial(cfg)
	if err != nil {
		return "", err
	}
	defer client.Close()

	if err := client.Mail(from.Address); err != nil {
		return "", fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(rcpt.Address); err != nil {
		return "", fmt.Errorf("RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return "", fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close data writer: %w", err)
	}
	if err := client.Quit(); err != nil {
		logger.Component("mail").WithError(err).Debug("SMTP QUIT failed after delivery")
	}
	return messageID, nil
}

// dial opens an authenticated client honouring the encryption mode.
func (s *MailService) dial(cfg *SMTPConfig) (*smtp.Client, error) {
	addr := smtpAddr(cfg)
	tlsConfig := &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	dialer := &net.Dialer{Timeout: s.dialTimeout}
	var conn net.Conn
	var err error
	if cfg.Encryption == "ssl" {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("SSL connection failed: %w", err)
		}
	} else {
		conn, err = dialer.Dial("tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("SMTP connection failed: %w", err)
		}
	}
	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if cfg.Encryption == "starttls" {
		if err := client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("STARTTLS failed: %w", err)
		}
	}

	if cfg.Username != "" && cfg.Password != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
		if err := client.Auth(auth); err != nil {
			client.Close()
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
	}
	return client, nil
}

func smtpAddr(cfg *SMTPConfig) string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// buildEmail constructs the message with a fixed header order. Header
// values are stripped of control characters and non-ASCII subjects are
// RFC 2047 encoded.
func (s *MailService) buildEmail(from, to, subject, htmlBody string) []byte {
	headers := [][2]string{
		{"From", sanitizeEmailHeader(from)},
		{"To", sanitizeEmailHeader(to)},
		{"Subject", mime.QEncoding.Encode("utf-8", sanitizeEmailHeader(subject))},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}
	var msg bytes.Buffer
	for _, h := range headers {
		msg.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)
	return msg.Bytes()
}

// sanitizeEmailHeader drops CR, LF, NUL and every other control character.
func sanitizeEmailHeader(v string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, v)
}

func validateEmailAddress(addr string) error {
	if addr == "" {
		return errors.New("email address is empty")
	}
	if strings.ContainsAny(addr, "\r\n") {
		return errors.New("email address contains line breaks")
	}
	if _, err := mail.ParseAddress(addr); err != nil {
		return fmt.Errorf("invalid email address: %w", err)
	}
	return nil
}
