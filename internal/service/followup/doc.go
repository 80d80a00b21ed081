// Package followup implements the followup email lifecycle: scheduling on
// viewer activity, cancellation on TimeRex bookings, dispatch of due records
// and purging of old terminal records.
//
// The persisted status column is the only concurrency token. Every state
// change goes through a Repository method that succeeds only while the record
// is still scheduled, so concurrent viewers, webhook deliveries and dispatch
// sweeps never need an in-process lock.
//
// Repository implementations live in repository/postgres/.
package followup
