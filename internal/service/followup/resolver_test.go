package followup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contact-app/followup/internal/domain"
	"github.com/contact-app/followup/internal/service/followup"
)

func TestCheckAndCancel_NoBooking(t *testing.T) {
	fx := newFixture(t)
	f := fx.schedule(t, time.Now())

	check, err := fx.resolver.CheckAndCancelForTimeRexBooking(context.Background(), viewerKey.CompanyID)
	require.NoError(t, err)
	assert.False(t, check.HasRecentBooking)
	assert.Zero(t, check.Cancelled)
	assert.Equal(t, domain.FollowupScheduled, fx.repo.snapshot(f.ID).Status)
}

func TestCheckAndCancel_CancelsWholeCompany(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	a := fx.schedule(t, time.Now())
	otherDoc := viewerKey
	otherDoc.DocumentID = "d-2"
	b, err := fx.scheduler.StartTimer(ctx, otherDoc, time.Now())
	require.NoError(t, err)
	otherCompany := domain.FollowupKey{CompanyID: "c-2", DocumentID: "d-1", ViewerIP: viewerKey.ViewerIP}
	c, err := fx.scheduler.StartTimer(ctx, otherCompany, time.Now())
	require.NoError(t, err)

	fx.bookings.add(domain.Booking{ID: "b-1", CompanyID: viewerKey.CompanyID, BookedAt: time.Now()})

	check, err := fx.resolver.CheckAndCancelForTimeRexBooking(ctx, viewerKey.CompanyID)
	require.NoError(t, err)
	assert.True(t, check.HasRecentBooking)
	assert.Equal(t, 2, check.Cancelled)

	assert.Equal(t, domain.FollowupCancelled, fx.repo.snapshot(a.ID).Status)
	assert.Equal(t, domain.FollowupCancelled, fx.repo.snapshot(b.ID).Status)
	assert.Equal(t, domain.FollowupScheduled, fx.repo.snapshot(c.ID).Status)

	again, err := fx.resolver.CheckAndCancelForTimeRexBooking(ctx, viewerKey.CompanyID)
	require.NoError(t, err)
	assert.True(t, again.HasRecentBooking)
	assert.Zero(t, again.Cancelled)
}

func TestCheckAndCancel_SourceError(t *testing.T) {
	repo := newMemRepo()
	r := followup.NewBookingResolver(repo, &memBookings{err: errors.New("timeout")}, time.Hour)
	_, err := r.CheckAndCancelForTimeRexBooking(context.Background(), "c-1")
	assert.Error(t, err)
}

func TestCheckAndCancelSince_WidensToTrigger(t *testing.T) {
	fx := newFixture(t)
	triggered := time.Now().Add(-30 * time.Hour)
	f := fx.schedule(t, triggered)
	fx.bookings.add(domain.Booking{ID: "b-1", CompanyID: viewerKey.CompanyID, BookedAt: triggered.Add(time.Hour)})

	check, err := fx.resolver.CheckAndCancelForTimeRexBooking(context.Background(), viewerKey.CompanyID)
	require.NoError(t, err)
	assert.False(t, check.HasRecentBooking)

	check, err = fx.resolver.CheckAndCancelSince(context.Background(), viewerKey.CompanyID, triggered)
	require.NoError(t, err)
	assert.True(t, check.HasRecentBooking)
	assert.Equal(t, 1, check.Cancelled)
	assert.Equal(t, domain.FollowupCancelled, fx.repo.snapshot(f.ID).Status)
}
