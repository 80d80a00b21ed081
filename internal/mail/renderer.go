package mail

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/contact-app/followup/internal/domain"
)

// Templates are the raw liquid sources for one followup email.
type Templates struct {
	Subject string
	Body    string
}

// FollowupContext is everything a followup template can reference.
type FollowupContext struct {
	Company    domain.Company
	Document   domain.Document
	Followup   domain.Followup
	BookingURL string
	Score      map[string]interface{}
}

// Bindings flattens fc into the liquid variable namespace:
// company.*, document.*, followup.*, booking_url and score.*.
func (fc FollowupContext) Bindings() map[string]interface{} {
	score := fc.Score
	if score == nil {
		score = map[string]interface{}{}
	}
	return map[string]interface{}{
		"company": map[string]interface{}{
			"id":           fc.Company.ID,
			"name":         fc.Company.Name,
			"email":        fc.Company.Email,
			"contact_name": fc.Company.ContactName,
		},
		"document": map[string]interface{}{
			"id":    fc.Document.ID,
			"title": fc.Document.Title,
		},
		"followup": map[string]interface{}{
			"id":           fc.Followup.ID,
			"triggered_at": fc.Followup.TriggeredAt,
		},
		"booking_url": fc.BookingURL,
		"score":       score,
	}
}

// Renderer renders liquid templates, caching each parsed template by the
// hash of its source.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewRenderer creates a renderer with the followup filters registered.
func NewRenderer() *Renderer {
	r := &Renderer{engine: liquid.NewEngine()}
	r.registerFilters()
	return r
}

func (r *Renderer) registerFilters() {
	// {{ company.contact_name | default: "there" }}
	r.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})
	r.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})
	r.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
}

func templateKey(src string) string {
	sum := md5.Sum([]byte(src))
	return hex.EncodeToString(sum[:])
}

// Render parses (or reuses) src and renders it with bindings.
func (r *Renderer) Render(src string, bindings map[string]interface{}) (string, error) {
	key := templateKey(src)
	if cached, ok := r.cache.Load(key); ok {
		out, err := cached.(*liquid.Template).RenderString(bindings)
		if err != nil {
			return "", fmt.Errorf("render template: %w", err)
		}
		return out, nil
	}

	tpl, err := r.engine.ParseString(src)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}
	r.cache.Store(key, tpl)

	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// RenderFollowup renders the subject and body for fc addressed to the
// company's contact.
func (r *Renderer) RenderFollowup(t Templates, fc FollowupContext) (*Message, error) {
	if fc.Company.Email == "" {
		return nil, fmt.Errorf("company %s has no email address", fc.Company.ID)
	}
	b := fc.Bindings()

	subject, err := r.Render(t.Subject, b)
	if err != nil {
		return nil, fmt.Errorf("subject: %w", err)
	}
	body, err := r.Render(t.Body, b)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}

	return &Message{
		To:       fc.Company.Email,
		ToName:   fc.Company.ContactName,
		Subject:  strings.TrimSpace(subject),
		HTMLBody: body,
		TextBody: htmlToText(body),
		Tags: map[string]string{
			"followup_id": fc.Followup.ID,
			"company_id":  fc.Company.ID,
			"document_id": fc.Document.ID,
		},
	}, nil
}

var (
	reBreak = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</div>|</li>`)
	reTag   = regexp.MustCompile(`<[^>]*>`)
	reBlank = regexp.MustCompile(`\n{3,}`)
)

// htmlToText produces the plain-text alternative part.
func htmlToText(s string) string {
	s = reBreak.ReplaceAllString(s, "\n")
	s = reTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = reBlank.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
