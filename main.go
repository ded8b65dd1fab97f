package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/sekyikins/AI-Scheduler-Project/api"
	"github.com/sekyikins/AI-Scheduler-Project/calendar"
	"github.com/sekyikins/AI-Scheduler-Project/domain"
	"github.com/sekyikins/AI-Scheduler-Project/notify"
	"github.com/sekyikins/AI-Scheduler-Project/pomodoro"
	"github.com/sekyikins/AI-Scheduler-Project/storage"
	"github.com/sekyikins/AI-Scheduler-Project/store"
)

func main() {
	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	logger := log.StandardLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rc *redis.Client
	if cfg.RedisConn != "" {
		rc = redis.NewClient(redisOptions(cfg.RedisConn))
		defer rc.Close()
	}

	access, closeAccess, err := openAccess(ctx, cfg, rc)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeAccess()

	broker := notify.NewBroker()
	events, err := newEventPipeline(ctx, cfg, rc, broker, logger)
	if err != nil {
		log.Fatalf("events: %v", err)
	}
	defer events.Close()

	tasks := store.New(access, store.Options{
		UserID:    cfg.UserID,
		MaxTags:   cfg.MaxTags,
		Logger:    logger,
		Publisher: events,
	})
	if err := tasks.Refresh(ctx); err != nil {
		logger.WithError(err).Warn("initial task load failed; starting empty")
	}
	if cfg.SweepInterval > 0 {
		go runOverdueSweeper(ctx, tasks, cfg.SweepInterval, logger)
	}

	auth, err := newAuthenticator(cfg)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "Idempotency-Key"},
	}))

	deps := api.Deps{
		Tasks:    tasks,
		Inbox:    events.inbox,
		Auth:     auth,
		Pomodoro: pomodoro.NewTracker(newRecords[domain.PomodoroSession](rc, pomodoro.RedisPrefix), tasks, logger),
		Calendar: calendar.NewPlanner(newRecords[domain.CalendarEvent](rc, calendar.RedisPrefix), tasks, logger),
		Stream:   broker,
		Owner:    cfg.UserID,
		Logger:   logger,
	}
	if rc != nil {
		deps.Deduper = api.NewRedisDeduper(rc, cfg.DeduperTTL)
	}
	api.Register(e, deps)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("server shutdown")
		}
	}()

	if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		e.Logger.Fatal(err)
	}
}

// newRecords keeps per-user records in Redis when it is configured and in
// process memory otherwise.
func newRecords[T any](rc *redis.Client, prefix string) storage.Records[T] {
	if rc == nil {
		return storage.NewMemoryRecords[T]()
	}
	return storage.NewRedisRecords[T](rc, prefix)
}

// openAccess builds the configured task backend. Persistent backends are
// wrapped in the Redis cache when Redis is available.
func openAccess(ctx context.Context, cfg config, rc *redis.Client) (store.DataAccess, func(), error) {
	var access store.DataAccess
	closeFn := func() {}

	switch cfg.Backend {
	case backendMemory:
		delays := storage.UniformDelays(cfg.MockDelay)
		if cfg.MockAPI {
			delays = storage.MockAPIDelays
		}
		access = storage.NewMemory(delays)
	case backendSQLite:
		db, err := storage.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		access = db
		closeFn = func() { _ = db.Close() }
	case backendTables:
		tables, err := storage.NewTableAccess(cfg.StorageConn, cfg.TasksTable, cfg.UserID)
		if err != nil {
			return nil, nil, err
		}
		if err := tables.EnsureTable(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure table %s: %w", cfg.TasksTable, err)
		}
		access = tables
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	// The memory backend starts empty on every run, so a cached listing
	// from an earlier process would be stale.
	cached := rc != nil && cfg.Backend != backendMemory
	if cached {
		access = storage.NewCache(access, rc, cfg.UserID, cfg.CacheTTL)
	}
	log.WithFields(log.Fields{"backend": cfg.Backend, "cache": cached}).Info("task storage ready")
	return access, closeFn, nil
}

// eventPipeline couples the dispatcher with the inbox it feeds.
type eventPipeline struct {
	*notify.Dispatcher
	inbox *notify.Inbox
}

// newEventPipeline assembles the event sinks. With Redis, events go through
// pub/sub so every instance streams them; without it they reach the local
// broker directly.
func newEventPipeline(ctx context.Context, cfg config, rc *redis.Client, broker *notify.Broker, logger *log.Logger) (*eventPipeline, error) {
	var repo notify.Repository = notify.NewMemoryRepository()
	if rc != nil {
		repo = notify.NewRedisRepository(rc)
	}
	inbox := notify.NewInbox(repo, logger)

	sinks := []notify.Sink{inbox}
	if rc != nil {
		sinks = append(sinks, notify.NewRedisPublisher(rc, notify.DefaultChannel))
		go notify.Subscribe(ctx, logger, rc, notify.DefaultChannel, broker.Broadcast)
	} else {
		sinks = append(sinks, broker)
	}
	if cfg.EventsQueue != "" {
		queue, err := notify.NewQueuePublisher(cfg.StorageConn, cfg.EventsQueue)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, queue)
	}
	return &eventPipeline{Dispatcher: notify.NewDispatcher(cfg.Events, logger, sinks...), inbox: inbox}, nil
}

func newAuthenticator(cfg config) (api.Authenticator, error) {
	if cfg.Auth.Disabled {
		log.Warn("authentication disabled; all requests act as user ", cfg.UserID)
		return api.StaticAuth{UserID: cfg.UserID}, nil
	}
	if cfg.Auth.TestSecret != "" {
		return api.NewAuth(nil, api.AuthConfig{
			Audience:    cfg.Auth.Audience,
			TestSecret:  cfg.Auth.TestSecret,
			KeyCacheTTL: cfg.Auth.KeyCacheTTL,
		}), nil
	}
	jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", cfg.Auth.Domain)
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{RefreshInterval: time.Hour})
	if err != nil {
		return nil, fmt.Errorf("jwks: %w", err)
	}
	return api.NewAuth(jwks, api.AuthConfig{
		Audience:    cfg.Auth.Audience,
		Issuer:      "https://" + cfg.Auth.Domain + "/",
		KeyCacheTTL: cfg.Auth.KeyCacheTTL,
	}), nil
}

// runOverdueSweeper periodically moves open tasks past their due date to
// overdue until ctx is done.
func runOverdueSweeper(ctx context.Context, tasks *store.Store, every time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := tasks.SweepOverdue(ctx, domain.Now())
			if err != nil {
				logger.WithError(err).Warn("overdue sweep failed")
				continue
			}
			if len(swept) > 0 {
				logger.WithField("tasks", len(swept)).Info("tasks marked overdue")
			}
		}
	}
}
