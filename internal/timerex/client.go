package timerex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/pkg/httpretry"
)

const DefaultBaseURL = "https://api.timerex.net"

// Client reads bookings from the TimeRex REST API. It satisfies
// followup.BookingSource.
type Client struct {
	baseURL string
	apiKey  string
	http    httpretry.HTTPDoer
}

// NewClient creates a client. A nil doer uses a retrying http.Client.
func NewClient(baseURL, apiKey string, doer httpretry.HTTPDoer) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: 15 * time.Second}, 3)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: doer}
}

type listEventsResponse struct {
	Events []Event `json:"events"`
}

// ListBookings returns the confirmed events for companyID created at or
// after since.
func (c *Client) ListBookings(ctx context.Context, companyID string, since time.Time) ([]domain.Booking, error) {
	q := url.Values{}
	q.Set("company_id", companyID)
	q.Set("created_after", since.UTC().Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/events?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("timerex: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("timerex: list events: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("timerex: list events: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out listEventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("timerex: decode events: %w", err)
	}

	bookings := make([]domain.Booking, 0, len(out.Events))
	for _, e := range out.Events {
		if e.CompanyID == "" {
			e.CompanyID = companyID
		}
		b, err := e.Booking(since)
		if err != nil {
			continue
		}
		if b.BookedAt.Before(since) {
			continue
		}
		bookings = append(bookings, *b)
	}
	return bookings, nil
}

// BookingsSince adapts ListBookings to followup.BookingSource.
func (c *Client) BookingsSince(ctx context.Context, companyID string, since time.Time) ([]domain.Booking, error) {
	return c.ListBookings(ctx, companyID, since)
}
