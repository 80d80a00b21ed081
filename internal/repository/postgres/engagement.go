package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/contact-app/followup/internal/domain"
)

// EngagementRepo implements engagement.Repository against PostgreSQL.
type EngagementRepo struct{ db *sql.DB }

// NewEngagementRepo creates a Postgres-backed engagement repository.
func NewEngagementRepo(db *sql.DB) *EngagementRepo { return &EngagementRepo{db: db} }

func (r *EngagementRepo) CompanyCounters(ctx context.Context, companyID string) (domain.EngagementCounters, error) {
	return r.counters(ctx, "company_id", companyID)
}

func (r *EngagementRepo) DocumentCounters(ctx context.Context, documentID string) (domain.EngagementCounters, error) {
	return r.counters(ctx, "document_id", documentID)
}

// counters aggregates feedback and page views. column is one of two
// constants, never user input.
func (r *EngagementRepo) counters(ctx context.Context, column, id string) (domain.EngagementCounters, error) {
	var (
		c   domain.EngagementCounters
		avg sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*), AVG(score) FROM feedbacks WHERE %s = $1
	`, column), id).Scan(&c.FeedbackCount, &avg)
	if err != nil {
		return c, fmt.Errorf("feedback counters: %w", err)
	}
	if avg.Valid {
		v := avg.Float64
		c.AverageSurveyScore = &v
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT duration_seconds FROM page_views WHERE %s = $1
	`, column), id)
	if err != nil {
		return c, fmt.Errorf("page view durations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sec int
		if err := rows.Scan(&sec); err != nil {
			return c, fmt.Errorf("scan duration: %w", err)
		}
		c.ViewDurations = append(c.ViewDurations, sec)
	}
	c.ViewCount = len(c.ViewDurations)
	return c, rows.Err()
}

func (r *EngagementRepo) InsertPageView(ctx context.Context, v *domain.PageView) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO page_views (id, company_id, document_id, viewer_ip, page, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, v.ID, v.CompanyID, v.DocumentID, v.ViewerIP, v.Page, v.DurationSeconds, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert page view: %w", err)
	}
	return nil
}

func (r *EngagementRepo) InsertFeedback(ctx context.Context, f *domain.Feedback) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feedbacks (id, company_id, document_id, viewer_ip, score, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.CompanyID, f.DocumentID, f.ViewerIP, f.Score, f.Comment, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}
