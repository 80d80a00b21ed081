package mail

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/contact-app/followup/internal/pkg/logger"
)

// LogTransport accepts every message and only logs it. Used in development
// and when no SES credentials are configured.
type LogTransport struct{}

// Send logs msg and reports success.
func (LogTransport) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := uuid.New().String()
	log.Printf("[mail.LogTransport] to=%s subject=%q id=%s", logger.RedactEmail(msg.To), msg.Subject, id)
	return &SendResult{MessageID: id, Transport: "log"}, nil
}
