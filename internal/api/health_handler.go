package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"

	"github.com/contact-app/followup/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// BucketHeader is the HeadBucket subset of *s3.Client.
type BucketHeader interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// HealthChecker reports on Postgres, Redis, the archive bucket and the
// dispatch backlog. Any dependency can be nil.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	s3Client    BucketHeader
	s3Bucket    string
	startTime   time.Time
}

func NewHealthChecker(db *sql.DB, redisClient *redis.Client, s3Client BucketHeader, s3Bucket string) *HealthChecker {
	return &HealthChecker{
		db:          db,
		redisClient: redisClient,
		s3Client:    s3Client,
		s3Bucket:    s3Bucket,
		startTime:   time.Now(),
	}
}

const (
	healthVersion = "1.0.0"
	notConfigured = "not configured"

	// backlogGrace is how late a scheduled followup may be before it counts
	// as backlog; one sweep interval plus slack.
	backlogGrace = 5 * time.Minute
	backlogLimit = 100
)

// HandleHealth always answers 200; the body carries the status.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleReadiness answers 503 when a critical dependency is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.Respond(w, status, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 4)

	go func() { ch <- result{"database", hc.checkDatabase(ctx)} }()
	go func() { ch <- result{"redis", hc.checkRedis(ctx)} }()
	go func() { ch <- result{"s3", hc.checkS3(ctx)} }()
	go func() { ch <- result{"dispatch_backlog", hc.checkBacklog(ctx)} }()

	checks := make(map[string]ComponentCheck, 4)
	for i := 0; i < 4; i++ {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	return latencyCheck(time.Since(start), time.Second, err)
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.redisClient.Ping(pingCtx).Err()
	return latencyCheck(time.Since(start), 500*time.Millisecond, err)
}

func (hc *HealthChecker) checkS3(ctx context.Context) ComponentCheck {
	if hc.s3Client == nil || hc.s3Bucket == "" {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	s3Ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	_, err := hc.s3Client.HeadBucket(s3Ctx, &s3.HeadBucketInput{Bucket: aws.String(hc.s3Bucket)})
	latency := time.Since(start)
	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("HeadBucket failed: %v", err)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: fmt.Sprintf("bucket %q accessible", hc.s3Bucket)}
}

// checkBacklog counts scheduled followups that are overdue by more than
// backlogGrace, a sign that no dispatch worker is running.
func (hc *HealthChecker) checkBacklog(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	queryCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	var count int
	err := hc.db.QueryRowContext(queryCtx,
		`SELECT COUNT(*) FROM followups WHERE status = 'scheduled' AND scheduled_for < $1`,
		time.Now().UTC().Add(-backlogGrace),
	).Scan(&count)
	latency := time.Since(start)
	if err != nil {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("backlog check failed: %v", err)}
	}

	if count > backlogLimit {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("%d overdue followups", count)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: fmt.Sprintf("%d overdue followups", count)}
}

func latencyCheck(latency, slow time.Duration, err error) ComponentCheck {
	if err != nil {
		return ComponentCheck{Status: "down", Latency: latency.String(), Message: fmt.Sprintf("ping failed: %v", err)}
	}
	if latency > slow {
		return ComponentCheck{Status: "degraded", Latency: latency.String(), Message: fmt.Sprintf("slow response (%s)", latency)}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// determineOverallStatus is "unhealthy" when a configured database is down,
// "degraded" when anything else configured is down or slow.
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if db, ok := checks["database"]; ok && db.Status == "down" && db.Message != notConfigured {
		return "unhealthy"
	}
	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != notConfigured {
			return "degraded"
		}
	}
	return "healthy"
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
