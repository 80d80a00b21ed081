// Package mail renders followup emails from liquid templates and hands them
// to a transport.
package mail

import "context"

// Message is a fully rendered email ready for a transport.
type Message struct {
	To       string            `json:"to"`
	ToName   string            `json:"to_name"`
	Subject  string            `json:"subject"`
	HTMLBody string            `json:"html_body"`
	TextBody string            `json:"text_body"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// SendResult is what a transport reports for an accepted message.
type SendResult struct {
	MessageID string `json:"message_id"`
	Transport string `json:"transport"`
}

// Transport delivers one message. Implementations must honour ctx
// cancellation and be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}
