package domain

import "time"

// PageView records how long a viewer stayed on one page of a document.
type PageView struct {
	ID              string    `json:"id" db:"id"`
	CompanyID       string    `json:"company_id" db:"company_id"`
	DocumentID      string    `json:"document_id" db:"document_id"`
	ViewerIP        string    `json:"viewer_ip" db:"viewer_ip"`
	Page            int       `json:"page" db:"page"`
	DurationSeconds int       `json:"duration_seconds" db:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Feedback is a survey answer left by a viewer. Score is on a 0..100 scale.
type Feedback struct {
	ID         string    `json:"id" db:"id"`
	CompanyID  string    `json:"company_id" db:"company_id"`
	DocumentID string    `json:"document_id" db:"document_id"`
	ViewerIP   string    `json:"viewer_ip" db:"viewer_ip"`
	Score      float64   `json:"score" db:"score"`
	Comment    string    `json:"comment" db:"comment"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// EngagementCounters are the raw aggregates a score is computed from.
type EngagementCounters struct {
	FeedbackCount      int      `json:"feedback_count"`
	ViewCount          int      `json:"view_count"`
	AverageSurveyScore *float64 `json:"average_survey_score"`
	ViewDurations      []int    `json:"view_durations"`
}

// Booking is a meeting booked through TimeRex for a company.
type Booking struct {
	ID         string    `json:"id" db:"id"`
	ExternalID string    `json:"external_id" db:"external_id"`
	CompanyID  string    `json:"company_id" db:"company_id"`
	GuestEmail string    `json:"guest_email" db:"guest_email"`
	StartsAt   time.Time `json:"starts_at" db:"starts_at"`
	BookedAt   time.Time `json:"booked_at" db:"booked_at"`
}
