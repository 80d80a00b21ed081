package engagement

import (
	"context"

	"github.com/contact-app/followup/internal/domain"
)

// Reader loads the raw aggregates a score is computed from. Counters for an
// unknown id are zero, not an error.
type Reader interface {
	CompanyCounters(ctx context.Context, companyID string) (domain.EngagementCounters, error)
	DocumentCounters(ctx context.Context, documentID string) (domain.EngagementCounters, error)
}

// Writer appends viewer events.
type Writer interface {
	InsertPageView(ctx context.Context, v *domain.PageView) error
	InsertFeedback(ctx context.Context, f *domain.Feedback) error
}

// Repository is everything the service needs from storage.
type Repository interface {
	Reader
	Writer
}
