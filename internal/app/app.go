// Package app wires configuration into the followup engine's components.
// The server, worker and cleanup binaries share it so that each process
// builds the same graph.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/contact-app/followup/internal/api"
	"github.com/contact-app/followup/internal/archive"
	"github.com/contact-app/followup/internal/config"
	"github.com/contact-app/followup/internal/mail"
	"github.com/contact-app/followup/internal/pkg/logger"
	"github.com/contact-app/followup/internal/queue"
	"github.com/contact-app/followup/internal/repository/postgres"
	"github.com/contact-app/followup/internal/service/engagement"
	"github.com/contact-app/followup/internal/service/followup"
	"github.com/contact-app/followup/internal/settings"
	"github.com/contact-app/followup/internal/timerex"
	"github.com/contact-app/followup/internal/worker"
)

// App holds every long-lived component. Optional parts are nil when not
// configured.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client

	Followups  *postgres.FollowupRepo
	Bookings   *postgres.BookingRepo
	Settings   *settings.Service
	Engagement *engagement.Service
	Scheduler  *followup.Scheduler
	Resolver   *followup.BookingResolver
	Dispatcher *followup.Dispatcher
	Sweeper    *followup.Sweeper

	Publisher      *queue.Publisher
	Consumer       *queue.Consumer
	DispatchWorker *worker.FollowupDispatchWorker
	CleanupWorker  *worker.FollowupCleanupWorker

	s3Client *s3.Client
}

// New connects to Postgres (required) and Redis (optional) and builds the
// component graph.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactionEnabled())

	db, err := OpenDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, DB: db, Redis: OpenRedis(ctx, cfg.Redis.URL)}

	a.Followups = postgres.NewFollowupRepo(db)
	a.Bookings = postgres.NewBookingRepo(db)
	a.Settings = settings.NewService(postgres.NewSettingsRepo(db), a.Redis, cfg.Redis.SettingsTTL(), cfg.Followup.Defaults)
	a.Engagement = engagement.NewService(postgres.NewEngagementRepo(db), cfg.Scoring)
	a.Scheduler = followup.NewScheduler(a.Followups, a.Settings)

	var source followup.BookingSource = a.Bookings
	if cfg.TimeRex.APIKey != "" {
		source = timerex.NewClient(cfg.TimeRex.BaseURL, cfg.TimeRex.APIKey, nil)
		log.Printf("[App] booking lookups use the TimeRex API")
	} else {
		log.Printf("[App] booking lookups use webhook-recorded bookings")
	}
	a.Resolver = followup.NewBookingResolver(a.Followups, source, cfg.Followup.BookingLookback())

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	a.Dispatcher = followup.NewDispatcher(a.Followups, a.Resolver, a.Settings, mail.NewRenderer(), transport,
		followup.WithSendTimeout(cfg.Followup.SendTimeout()),
		followup.WithScoreSource(a.Engagement),
	)

	var archiver followup.Archiver
	if cfg.Archive.Bucket != "" {
		s3a, err := archive.NewS3Archiver(ctx, archive.S3Config{
			Bucket:   cfg.Archive.Bucket,
			Prefix:   cfg.Archive.Prefix,
			Region:   cfg.Archive.Region,
			Compress: cfg.Archive.Compress,
		})
		if err != nil {
			log.Printf("[App] Warning: archive disabled: %v", err)
		} else {
			archiver = s3a
			if awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Archive.Region)); err == nil {
				a.s3Client = s3.NewFromConfig(awsCfg)
			}
		}
	}
	a.Sweeper = followup.NewSweeper(a.Followups, archiver)

	if cfg.Followup.UseQueue() {
		if cfg.SQS.QueueURL == "" {
			db.Close()
			return nil, fmt.Errorf("dispatch_mode=queue requires sqs.queue_url")
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.SQS.Region))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load AWS config for SQS: %w", err)
		}
		sqsClient := sqs.NewFromConfig(awsCfg)
		a.Publisher = queue.NewPublisher(sqsClient, cfg.SQS.QueueURL)
		a.Consumer = queue.NewConsumer(sqsClient, cfg.SQS.QueueURL, a.Dispatcher, queue.ConsumerConfig{})
	}

	a.DispatchWorker = worker.NewFollowupDispatchWorker(a.Followups, a.Dispatcher,
		worker.NewLockFactory(a.Redis, db, worker.DispatchLockKey, worker.DispatchLockTTL))
	a.DispatchWorker.SetPollInterval(cfg.Followup.PollInterval())
	a.DispatchWorker.SetBatchSize(cfg.Followup.BatchSize)
	if a.Publisher != nil {
		a.DispatchWorker.SetPublisher(a.Publisher)
	}

	a.CleanupWorker = worker.NewFollowupCleanupWorker(a.Sweeper,
		worker.NewLockFactory(a.Redis, db, worker.CleanupLockKey, worker.CleanupLockTTL),
		cfg.Followup.RetentionDays)
	a.CleanupWorker.SetInterval(cfg.Followup.CleanupInterval())

	return a, nil
}

func newTransport(ctx context.Context, cfg *config.Config) (mail.Transport, error) {
	if !cfg.SES.Enabled {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("ses must be enabled in production")
		}
		log.Printf("[App] SES disabled, followups are logged instead of sent")
		return mail.LogTransport{}, nil
	}
	t, err := mail.NewSESTransport(ctx, cfg.SES.Mail())
	if err != nil {
		return nil, fmt.Errorf("init SES transport: %w", err)
	}
	log.Printf("[App] SES transport ready (region=%s)", cfg.SES.Region)
	return t, nil
}

// Router builds the HTTP surface.
func (a *App) Router() http.Handler {
	h := api.NewHandlers(api.Deps{
		Timers:     a.Scheduler,
		Engagement: a.Engagement,
		Settings:   a.Settings,
		Dispatch:   a.DispatchWorker,
		Cleanup:    a.Sweeper,
	})
	webhook := timerex.NewHandler(a.Bookings, a.Resolver, a.Config.TimeRex.WebhookToken, a.Config.IsProduction())
	if a.Config.IsProduction() && a.Config.TimeRex.WebhookToken == "" {
		log.Printf("[App] Warning: TIMEREX_WEBHOOK_TOKEN not set, webhook will reject every call")
	}

	var bucket api.BucketHeader
	if a.s3Client != nil {
		bucket = a.s3Client
	}
	return api.SetupRoutes(h, api.RouteOptions{
		Health:         api.NewHealthChecker(a.DB, a.Redis, bucket, a.Config.Archive.Bucket),
		TimeRexWebhook: webhook.Routes(),
		AllowedOrigins: a.Config.Server.AllowedOrigins,
	})
}

// Close releases connections.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

// OpenDB opens and pings Postgres with bounded connect and statement
// timeouts.
func OpenDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	dsn := cfg.URL
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(dsn, "connect_timeout") {
		dsn += sep + "connect_timeout=5"
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Println("[App] Connected to database")
	return db, nil
}

// OpenRedis returns nil when url is empty or Redis is unreachable; callers
// then skip the settings cache and lock on Postgres instead.
func OpenRedis(ctx context.Context, url string) *redis.Client {
	if url == "" {
		log.Println("[App] Redis not configured, using PG advisory locks and uncached settings")
		return nil
	}
	var client *redis.Client
	if opts, err := redis.ParseURL(url); err == nil {
		client = redis.NewClient(opts)
	} else {
		client = redis.NewClient(&redis.Options{Addr: url})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("[App] Warning: Redis connection failed: %v, falling back to PG advisory locks", err)
		client.Close()
		return nil
	}
	log.Println("[App] Redis connected")
	return client
}
