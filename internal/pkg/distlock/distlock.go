// Package distlock provides single-holder locks so that only one worker
// process dispatches or sweeps followups at a time.
package distlock

import (
	"context"
	"database/sql"
	"errors"
	"hash/fnv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Extend when the lock has expired or been taken
// by another holder.
var ErrNotHeld = errors.New("distlock: lock not held")

// DistLock is a non-blocking mutual exclusion lock shared across processes.
// A single instance must not be used from several goroutines at once.
type DistLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// NewLock prefers Redis and falls back to a PostgreSQL advisory lock when
// redisClient is nil.
func NewLock(redisClient *redis.Client, db *sql.DB, key string, ttl time.Duration) DistLock {
	if redisClient != nil {
		return NewRedisLock(redisClient, key, ttl)
	}
	return NewPGAdvisoryLock(db, key)
}

// WithLock runs fn only if lock could be acquired. ran reports whether fn
// was invoked. The lock is released with a fresh context so a cancelled
// ctx does not leave it held until the TTL expires.
func WithLock(ctx context.Context, lock DistLock, fn func(ctx context.Context) error) (ran bool, err error) {
	ok, err := lock.Acquire(ctx)
	if err != nil || !ok {
		return false, err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := lock.Release(releaseCtx); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return true, fn(ctx)
}

// PGAdvisoryLock uses session-scoped pg_try_advisory_lock. Acquire pins one
// pooled connection until Release so both calls run in the same session.
// The server drops the lock if that connection dies.
type PGAdvisoryLock struct {
	db     *sql.DB
	lockID int64
	conn   *sql.Conn
}

// NewPGAdvisoryLock derives the advisory lock id from key with FNV-64a.
func NewPGAdvisoryLock(db *sql.DB, key string) *PGAdvisoryLock {
	h := fnv.New64a()
	h.Write([]byte(key))
	return &PGAdvisoryLock{db: db, lockID: int64(h.Sum64())}
}

func (l *PGAdvisoryLock) Acquire(ctx context.Context) (bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.lockID).Scan(&acquired); err != nil {
		conn.Close()
		return false, err
	}
	if !acquired {
		conn.Close()
		return false, nil
	}
	l.conn = conn
	return true, nil
}

func (l *PGAdvisoryLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		l.conn.Close()
		l.conn = nil
	}()
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.lockID)
	return err
}
