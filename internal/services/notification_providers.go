package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	neturl "net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/containrrr/shoutrrr"
	"gorm.io/gorm"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/models"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/util"
)

var ErrProviderNotFound = errors.New("notification provider not found")

func shoutrrrSend(url, message string) error {
	return shoutrrr.Send(url, message)
}

var discordWebhookRegex = regexp.MustCompile(`^https://discord(?:app)?\.com/api/webhooks/(\d+)/([a-zA-Z0-9_-]+)`)

// normalizeURL turns pasted webhook URLs into shoutrrr service URLs.
func normalizeURL(serviceType, rawURL string) string {
	if serviceType == "discord" {
		if m := discordWebhookRegex.FindStringSubmatch(rawURL); len(m) == 3 {
			return fmt.Sprintf("discord://%s@%s", m[2], m[1])
		}
	}
	return rawURL
}

// broadcast posts the rendered event to every enabled provider subscribed
// to eventType. Each attempt is audited with channel "provider".
func (s *NotificationService) broadcast(ctx context.Context, eventType string, msg renderedMessage) []DeliveryResult {
	var providers []models.NotificationProvider
	if err := s.DB.Where("enabled = ?", true).Order("created_at asc").Find(&providers).Error; err != nil {
		logger.Component("notifications").WithError(err).Error("failed to load notification providers")
		return nil
	}
	var targets []models.NotificationProvider
	for _, p := range providers {
		if p.Wants(eventType) {
			targets = append(targets, p)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	text := msg.Message
	if msg.Subject != "" {
		text = msg.Subject + "\n\n" + msg.Message
	}
	results := make([]DeliveryResult, len(targets))
	var wg sync.WaitGroup
	for i, p := range targets {
		wg.Add(1)
		go func(i int, p models.NotificationProvider) {
			defer wg.Done()
			res := DeliveryResult{RecipientID: p.ID, Channel: models.ChannelProvider}
			if err := ctx.Err(); err != nil {
				res.Reason = err.Error()
			} else if err := s.postToProvider(p, text); err != nil {
				res.Reason = err.Error()
				logger.Component("notifications").WithError(err).
					WithField("provider", util.SanitizeForLog(p.Name)).Warn("provider broadcast failed")
			} else {
				res.Success = true
			}
			results[i] = res
			s.audit(eventType, res)
		}(i, p)
	}
	wg.Wait()
	return results
}

func (s *NotificationService) postToProvider(p models.NotificationProvider, text string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panic: %v", r)
		}
	}()
	url := normalizeURL(p.Type, p.URL)
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		if _, err := validateWebhookURL(url); err != nil {
			return fmt.Errorf("invalid destination: %w", err)
		}
	}
	return s.sendURL(url, text)
}

// isPrivateIP returns true for RFC1918, loopback and link-local addresses.
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate() {
		return true
	}
	return false
}

// lookupIP is swapped in tests.
var lookupIP = net.LookupIP

// validateWebhookURL rejects non-http(s) schemes and hosts resolving to
// private addresses. Explicit localhost is allowed for local testing.
func validateWebhookURL(raw string) (*neturl.URL, error) {
	u, err := neturl.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("missing host")
	}
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return u, nil
	}
	ips, err := lookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("dns lookup failed: %w", err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return nil, fmt.Errorf("disallowed host IP: %s", ip.String())
		}
	}
	return u, nil
}

// TestProvider sends a fixed message to a provider without saving it.
func (s *NotificationService) TestProvider(p models.NotificationProvider) error {
	return s.postToProvider(p, "Test notification from CraneCRM")
}

func (s *NotificationService) ListProviders() ([]models.NotificationProvider, error) {
	var providers []models.NotificationProvider
	err := s.DB.Order("created_at asc").Find(&providers).Error
	return providers, err
}

func validateProvider(p *models.NotificationProvider) error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("provider name is required")
	}
	if strings.TrimSpace(p.URL) == "" {
		return errors.New("provider url is required")
	}
	return nil
}

func (s *NotificationService) CreateProvider(p *models.NotificationProvider) error {
	if err := validateProvider(p); err != nil {
		return err
	}
	return s.DB.Create(p).Error
}

func (s *NotificationService) UpdateProvider(p *models.NotificationProvider) error {
	if err := validateProvider(p); err != nil {
		return err
	}
	res := s.DB.Model(&models.NotificationProvider{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
		"name":    p.Name,
		"type":    p.Type,
		"url":     p.URL,
		"events":  p.Events,
		"enabled": p.Enabled,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (s *NotificationService) DeleteProvider(id string) error {
	res := s.DB.Delete(&models.NotificationProvider{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProviderNotFound
	}
	return nil
}

func (s *NotificationService) GetProvider(id string) (*models.NotificationProvider, error) {
	var p models.NotificationProvider
	if err := s.DB.First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}
	return &p, nil
}
