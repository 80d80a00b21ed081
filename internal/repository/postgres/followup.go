package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/service/followup"
)

const followupColumns = `
	f.id, f.company_id, f.document_id, f.viewer_ip, f.triggered_at, f.scheduled_for,
	f.sent_at, f.status, f.cancellation_reason, f.error_message, f.created_at, f.updated_at`

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// FollowupRepo implements followup.Repository against PostgreSQL.
type FollowupRepo struct{ db *sql.DB }

// NewFollowupRepo creates a Postgres-backed followup repository.
func NewFollowupRepo(db *sql.DB) *FollowupRepo { return &FollowupRepo{db: db} }

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFollowup(s rowScanner, extra ...interface{}) (*domain.Followup, error) {
	var (
		f       domain.Followup
		sentAt  sql.NullTime
		reason  sql.NullString
		message sql.NullString
	)
	dest := []interface{}{
		&f.ID, &f.CompanyID, &f.DocumentID, &f.ViewerIP, &f.TriggeredAt, &f.ScheduledFor,
		&sentAt, &f.Status, &reason, &message, &f.CreatedAt, &f.UpdatedAt,
	}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if sentAt.Valid {
		t := sentAt.Time
		f.SentAt = &t
	}
	if reason.Valid {
		r := domain.CancellationReason(reason.String)
		f.CancellationReason = &r
	}
	if message.Valid {
		m := message.String
		f.ErrorMessage = &m
	}
	return &f, nil
}

func statusArray(statuses []domain.FollowupStatus) interface{} {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return pq.Array(out)
}

func (r *FollowupRepo) Get(ctx context.Context, id string) (*domain.Followup, error) {
	f, err := scanFollowup(r.db.QueryRowContext(ctx,
		`SELECT `+followupColumns+` FROM followups f WHERE f.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, followup.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get followup: %w", err)
	}
	return f, nil
}

func (r *FollowupRepo) FindActive(ctx context.Context, key domain.FollowupKey) (*domain.Followup, error) {
	f, err := scanFollowup(r.db.QueryRowContext(ctx, `
		SELECT `+followupColumns+`
		FROM followups f
		WHERE f.company_id = $1 AND f.document_id = $2 AND f.viewer_ip = $3
		  AND f.status = 'scheduled'
	`, key.CompanyID, key.DocumentID, key.ViewerIP))
	if err == sql.ErrNoRows {
		return nil, followup.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active followup: %w", err)
	}
	return f, nil
}

// CreateScheduled relies on the partial unique index
// followups_one_scheduled_per_viewer; losing the race yields no row.
func (r *FollowupRepo) CreateScheduled(ctx context.Context, f *domain.Followup) error {
	var id string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO followups
			(id, company_id, document_id, viewer_ip, triggered_at, scheduled_for,
			 status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'scheduled', $7, $7)
		ON CONFLICT (company_id, document_id, viewer_ip) WHERE status = 'scheduled' DO NOTHING
		RETURNING id
	`, f.ID, f.CompanyID, f.DocumentID, f.ViewerIP, f.TriggeredAt, f.ScheduledFor, f.CreatedAt).Scan(&id)
	if err == sql.ErrNoRows {
		return followup.ErrRaceLost
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return followup.ErrRaceLost
	}
	if err != nil {
		return fmt.Errorf("create followup: %w", err)
	}
	return nil
}

const dueSelect = `
	SELECT ` + followupColumns + `,
	       c.id, c.name, c.email, COALESCE(c.contact_name, ''),
	       d.id, d.title
	FROM followups f
	JOIN companies c ON c.id = f.company_id AND c.deleted_at IS NULL
	JOIN documents d ON d.id = f.document_id AND d.deleted_at IS NULL`

func scanDue(s rowScanner) (*domain.DueFollowup, error) {
	var due domain.DueFollowup
	f, err := scanFollowup(s,
		&due.Company.ID, &due.Company.Name, &due.Company.Email, &due.Company.ContactName,
		&due.Document.ID, &due.Document.Title,
	)
	if err != nil {
		return nil, err
	}
	due.Followup = *f
	return &due, nil
}

func (r *FollowupRepo) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.DueFollowup, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, dueSelect+`
		WHERE f.status = 'scheduled' AND f.scheduled_for <= $1
		ORDER BY f.scheduled_for
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("find due followups: %w", err)
	}
	defer rows.Close()

	var out []domain.DueFollowup
	for rows.Next() {
		due, err := scanDue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due followup: %w", err)
		}
		out = append(out, *due)
	}
	return out, rows.Err()
}

func (r *FollowupRepo) GetDue(ctx context.Context, id string) (*domain.DueFollowup, error) {
	due, err := scanDue(r.db.QueryRowContext(ctx, dueSelect+` WHERE f.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, followup.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get due followup: %w", err)
	}
	return due, nil
}

// transition runs an update guarded by status = 'scheduled' and tells a
// missing record apart from a terminal one.
func (r *FollowupRepo) transition(ctx context.Context, op, id, q string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM followups WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !exists {
		return followup.ErrNotFound
	}
	return followup.ErrInvalidTransition
}

func (r *FollowupRepo) Cancel(ctx context.Context, id string, reason domain.CancellationReason, now time.Time) error {
	return r.transition(ctx, "cancel followup", id, `
		UPDATE followups SET status = 'cancelled', cancellation_reason = $2, updated_at = $3
		WHERE id = $1 AND status = 'scheduled'
	`, id, string(reason), now)
}

func (r *FollowupRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return r.transition(ctx, "mark followup sent", id, `
		UPDATE followups SET status = 'sent', sent_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'scheduled'
	`, id, sentAt)
}

func (r *FollowupRepo) MarkFailed(ctx context.Context, id string, message string, now time.Time) error {
	return r.transition(ctx, "mark followup failed", id, `
		UPDATE followups SET status = 'failed', error_message = $2, updated_at = $3
		WHERE id = $1 AND status = 'scheduled'
	`, id, message, now)
}

func (r *FollowupRepo) CancelScheduledForCompany(ctx context.Context, companyID string, reason domain.CancellationReason, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE followups SET status = 'cancelled', cancellation_reason = $2, updated_at = $3
		WHERE company_id = $1 AND status = 'scheduled'
	`, companyID, string(reason), now)
	if err != nil {
		return 0, fmt.Errorf("cancel company followups: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *FollowupRepo) CountTerminalOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.FollowupStatus) (map[domain.FollowupStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM followups
		WHERE status = ANY($1) AND updated_at < $2
		GROUP BY status
	`, statusArray(statuses), cutoff)
	if err != nil {
		return nil, fmt.Errorf("count old followups: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.FollowupStatus]int)
	for rows.Next() {
		var (
			status domain.FollowupStatus
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[status] = n
	}
	return out, rows.Err()
}

func (r *FollowupRepo) ListTerminalOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.FollowupStatus, limit int) ([]domain.Followup, error) {
	q := `SELECT ` + followupColumns + `
		FROM followups f
		WHERE f.status = ANY($1) AND f.updated_at < $2
		ORDER BY f.updated_at`
	args := []interface{}{statusArray(statuses), cutoff}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list old followups: %w", err)
	}
	defer rows.Close()

	var out []domain.Followup
	for rows.Next() {
		f, err := scanFollowup(rows)
		if err != nil {
			return nil, fmt.Errorf("scan followup: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

func (r *FollowupRepo) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time, statuses []domain.FollowupStatus) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM followups WHERE status = ANY($1) AND updated_at < $2
	`, statusArray(statuses), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old followups: %w", err)
	}
	return res.RowsAffected()
}
