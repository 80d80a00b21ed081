package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/settings"
)

func TestBookingRepo_SaveIgnoresDuplicates(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewBookingRepo(db)
	b := &domain.Booking{ExternalID: "tr-1", CompanyID: "c-1", GuestEmail: "kim@acme.example", StartsAt: testTime, BookedAt: testTime}

	mock.ExpectExec("ON CONFLICT \\(external_id\\) DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ON CONFLICT \\(external_id\\) DO NOTHING").WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.Save(context.Background(), b)
	if err != nil || !inserted {
		t.Fatalf("first Save = %v, %v", inserted, err)
	}
	if b.ID == "" {
		t.Error("Save should assign an id")
	}
	inserted, err = repo.Save(context.Background(), b)
	if err != nil || inserted {
		t.Errorf("duplicate Save = %v, %v; want false, nil", inserted, err)
	}
}

func TestBookingRepo_BookingsSince(t *testing.T) {
	db, mock := setupTestDB(t)
	since := testTime.Add(-24 * time.Hour)
	mock.ExpectQuery("FROM timerex_bookings").
		WithArgs("c-1", since).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_id", "company_id", "guest_email", "starts_at", "booked_at"}).
			AddRow("b-1", "tr-1", "c-1", "kim@acme.example", testTime.Add(48*time.Hour), testTime))

	got, err := NewBookingRepo(db).BookingsSince(context.Background(), "c-1", since)
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != "tr-1" {
		t.Errorf("got %+v", got)
	}
}

func TestSettingsRepo(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewSettingsRepo(db)
	ctx := context.Background()

	mock.ExpectQuery("SELECT key, value, updated_at FROM settings").
		WithArgs("followup.enabled").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).AddRow("followup.enabled", "true", testTime))
	s, err := repo.Get(ctx, "followup.enabled")
	if err != nil || s.Value != "true" {
		t.Fatalf("Get = %+v, %v", s, err)
	}

	mock.ExpectQuery("SELECT key, value, updated_at FROM settings").WillReturnError(sql.ErrNoRows)
	if _, err := repo.Get(ctx, "absent"); !errors.Is(err, settings.ErrNotFound) {
		t.Errorf("err = %v, want settings.ErrNotFound", err)
	}

	mock.ExpectExec("ON CONFLICT \\(key\\) DO UPDATE").
		WithArgs("followup.delay_minutes", "45").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Set(ctx, "followup.delay_minutes", "45"); err != nil {
		t.Errorf("Set error: %v", err)
	}

	mock.ExpectExec("DELETE FROM settings").WithArgs("x").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(ctx, "x"); err != nil {
		t.Errorf("Delete error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEngagementRepo_CompanyCounters(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery("FROM feedbacks WHERE company_id = \\$1").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(2, 75.5))
	mock.ExpectQuery("FROM page_views WHERE company_id = \\$1").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"duration_seconds"}).AddRow(12).AddRow(400))

	c, err := NewEngagementRepo(db).CompanyCounters(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if c.FeedbackCount != 2 || c.AverageSurveyScore == nil || *c.AverageSurveyScore != 75.5 {
		t.Errorf("feedback counters = %+v", c)
	}
	if c.ViewCount != 2 || len(c.ViewDurations) != 2 || c.ViewDurations[1] != 400 {
		t.Errorf("view counters = %+v", c)
	}
}

func TestEngagementRepo_NoFeedback(t *testing.T) {
	db, mock := setupTestDB(t)
	mock.ExpectQuery("FROM feedbacks WHERE document_id").
		WillReturnRows(sqlmock.NewRows([]string{"count", "avg"}).AddRow(0, nil))
	mock.ExpectQuery("FROM page_views WHERE document_id").
		WillReturnRows(sqlmock.NewRows([]string{"duration_seconds"}))

	c, err := NewEngagementRepo(db).DocumentCounters(context.Background(), "d-1")
	if err != nil {
		t.Fatalf("error: %v", err)
	}
	if c.AverageSurveyScore != nil || c.ViewCount != 0 {
		t.Errorf("counters = %+v", c)
	}
}

func TestEngagementRepo_Inserts(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewEngagementRepo(db)

	mock.ExpectExec("INSERT INTO page_views").
		WithArgs("v-1", "c-1", "d-1", "1.2.3.4", 3, 42, testTime).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO feedbacks").
		WithArgs("fb-1", "c-1", "d-1", "1.2.3.4", 88.0, "useful", testTime).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.InsertPageView(context.Background(), &domain.PageView{
		ID: "v-1", CompanyID: "c-1", DocumentID: "d-1", ViewerIP: "1.2.3.4", Page: 3, DurationSeconds: 42, CreatedAt: testTime,
	}); err != nil {
		t.Fatalf("InsertPageView: %v", err)
	}
	if err := repo.InsertFeedback(context.Background(), &domain.Feedback{
		ID: "fb-1", CompanyID: "c-1", DocumentID: "d-1", ViewerIP: "1.2.3.4", Score: 88, Comment: "useful", CreatedAt: testTime,
	}); err != nil {
		t.Fatalf("InsertFeedback: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
