package mail

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/contact-app/followup/internal/pkg/logger"
)

// sesAPI is the subset of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig configures the SES transport. Empty keys fall back to the
// default AWS credential chain.
type SESConfig struct {
	Region           string
	AccessKeyID      string
	SecretAccessKey  string
	FromEmail        string
	FromName         string
	ReplyTo          string
	ConfigurationSet string
}

// SESTransport sends followups through AWS SES v2.
type SESTransport struct {
	client sesAPI
	cfg    SESConfig
}

// NewSESTransport loads AWS configuration and builds the SES client.
func NewSESTransport(ctx context.Context, cfg SESConfig) (*SESTransport, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("ses: from address is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}
	return &SESTransport{client: sesv2.NewFromConfig(awsCfg), cfg: cfg}, nil
}

// Send delivers msg. SES rejections are returned as errors.
func (t *SESTransport) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	from := t.cfg.FromEmail
	if t.cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", t.cfg.FromName, t.cfg.FromEmail)
	}
	to := msg.To
	if msg.ToName != "" {
		to = fmt.Sprintf("%s <%s>", msg.ToName, msg.To)
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{to}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}
	if msg.TextBody != "" {
		in.Content.Simple.Body.Text = &types.Content{Data: aws.String(msg.TextBody), Charset: aws.String("UTF-8")}
	}
	if t.cfg.ReplyTo != "" {
		in.ReplyToAddresses = []string{t.cfg.ReplyTo}
	}
	if t.cfg.ConfigurationSet != "" {
		in.ConfigurationSetName = aws.String(t.cfg.ConfigurationSet)
	}
	for name, value := range msg.Tags {
		in.EmailTags = append(in.EmailTags, types.MessageTag{Name: aws.String(name), Value: aws.String(value)})
	}

	out, err := t.client.SendEmail(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("ses send to %s: %w", logger.RedactEmail(msg.To), err)
	}

	id := aws.ToString(out.MessageId)
	log.Printf("[SES] Sent to %s (id: %s)", logger.RedactEmail(msg.To), id)
	return &SendResult{MessageID: id, Transport: "ses"}, nil
}
