package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/contact-app/followup/internal/domain"
)

// BookingRepo stores TimeRex bookings and serves them as the default
// followup.BookingSource.
type BookingRepo struct{ db *sql.DB }

// NewBookingRepo creates a Postgres-backed booking repository.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Save inserts b. A redelivered webhook for the same external id is ignored
// and reported as inserted=false.
func (r *BookingRepo) Save(ctx context.Context, b *domain.Booking) (bool, error) {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO timerex_bookings (id, external_id, company_id, guest_email, starts_at, booked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (external_id) DO NOTHING
	`, b.ID, b.ExternalID, b.CompanyID, b.GuestEmail, b.StartsAt, b.BookedAt)
	if err != nil {
		return false, fmt.Errorf("save booking: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *BookingRepo) BookingsSince(ctx context.Context, companyID string, since time.Time) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, external_id, company_id, COALESCE(guest_email, ''), starts_at, booked_at
		FROM timerex_bookings
		WHERE company_id = $1 AND booked_at >= $2
		ORDER BY booked_at DESC
	`, companyID, since)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.ExternalID, &b.CompanyID, &b.GuestEmail, &b.StartsAt, &b.BookedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
