package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/ankitthakur250384/CRM-HE-sub005/internal/logger"
	"github.com/ankitthakur250384/CRM-HE-sub005/internal/util"
)

// SESAPI is the slice of the SES client used here, for mocking.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSAPI is the slice of the SNS client used here, for mocking.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// LoadAWSConfig loads credentials from the default chain for region.
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
}

// SESMailer sends email through Amazon SES.
type SESMailer struct {
	client SESAPI
	from   string
}

func NewSESMailer(client SESAPI, from string) *SESMailer {
	return &SESMailer{client: client, from: from}
}

func (m *SESMailer) IsConfigured() bool {
	return m != nil && m.client != nil && m.from != ""
}

func (m *SESMailer) Send(ctx context.Context, msg EmailMessage) (string, error) {
	if !m.IsConfigured() {
		return "", ErrEmailNotConfigured
	}
	if err := validateEmailAddress(msg.To); err != nil {
		return "", fmt.Errorf("invalid recipient: %w", err)
	}
	out, err := m.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &sestypes.Destination{ToAddresses: []string{msg.To}},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(sanitizeEmailHeader(msg.Subject)), Charset: aws.String("UTF-8")},
			Body: &sestypes.Body{
				Html: &sestypes.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
			},
		},
		Source: aws.String(m.from),
	})
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// SMSSender delivers text messages to E.164 phone numbers.
type SMSSender interface {
	IsConfigured() bool
	SendSMS(ctx context.Context, phone, message string) (messageID string, err error)
}

// SNSSMSSender sends transactional SMS through Amazon SNS.
type SNSSMSSender struct {
	client   SNSAPI
	senderID string
}

func NewSNSSMSSender(client SNSAPI, senderID string) *SNSSMSSender {
	return &SNSSMSSender{client: client, senderID: senderID}
}

func (s *SNSSMSSender) IsConfigured() bool {
	return s != nil && s.client != nil
}

// maxSMSLength is the SNS limit for a single transactional message.
const maxSMSLength = 1600

var nonDigits = regexp.MustCompile(`[^\d+]`)

// NormalizePhone strips formatting and prefixes Indian ten digit numbers
// with +91. Anything else must already carry a country code.
func NormalizePhone(phone string) string {
	p := nonDigits.ReplaceAllString(strings.TrimSpace(phone), "")
	switch {
	case p == "":
		return ""
	case strings.HasPrefix(p, "+"):
		return p
	case len(p) == 10:
		return "+91" + p
	case len(p) == 12 && strings.HasPrefix(p, "91"):
		return "+" + p
	}
	return "+" + p
}

func (s *SNSSMSSender) SendSMS(ctx context.Context, phone, message string) (string, error) {
	if !s.IsConfigured() {
		return "", fmt.Errorf("sms sender not configured")
	}
	to := NormalizePhone(phone)
	if to == "" {
		return "", fmt.Errorf("no phone number")
	}
	if len(message) > maxSMSLength {
		message = message[:maxSMSLength]
	}
	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(s.senderID)}
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(to),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	logger.Component("sms").WithField("to", util.MaskPhone(to)).Debug("sms published")
	return aws.ToString(out.MessageId), nil
}
