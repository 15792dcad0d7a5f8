// Package app wires configuration, storage, the fleet gateway and the
// HTTP API into a runnable service.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/sorting-hall/internal/config"
	"github.com/iliyamo/sorting-hall/internal/database"
	"github.com/iliyamo/sorting-hall/internal/fleet"
	"github.com/iliyamo/sorting-hall/internal/handler"
	"github.com/iliyamo/sorting-hall/internal/logger"
	"github.com/iliyamo/sorting-hall/internal/middleware"
	"github.com/iliyamo/sorting-hall/internal/notify"
	"github.com/iliyamo/sorting-hall/internal/queue"
	"github.com/iliyamo/sorting-hall/internal/repository"
	"github.com/iliyamo/sorting-hall/internal/router"
	"github.com/iliyamo/sorting-hall/internal/service"
)

const shutdownTimeout = 10 * time.Second

// Options selects optional parts of the service.
type Options struct {
	ConsumeEvents bool   // run the call event log consumer in-process
	EventLogDir   string // directory of the call event log
}

// App is the assembled service.
type App struct {
	cfg      config.Config
	db       *sql.DB
	rdb      *redis.Client
	bus      *notify.Bus
	echo     *echo.Echo
	consumer *queue.Consumer
	log      logger.Logger
}

// New connects to MySQL and Redis and builds the HTTP server.  Redis is
// optional; without it caching, rate limiting and cross-instance
// broadcast are off.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	log := logger.New("app")

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{cfg: cfg, db: db, bus: notify.NewBus(), log: log}

	cacheCfg := config.LoadCacheConfig()
	a.rdb = config.NewRedisClient(config.LoadRedisConfig())
	if a.rdb == nil {
		log.Warnf("redis unavailable: cache, rate limit and cross-instance broadcast disabled")
	}
	notifier := hallNotifier(a.bus, a.rdb, cacheCfg.Prefix)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := service.NewMetrics(reg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	repo := repository.NewRepository(db)
	gateway := fleet.NewClient(fleet.Options{
		BaseURL:    cfg.Fleet.BaseURL,
		WorkflowID: cfg.Fleet.WorkflowID,
		Timeout:    cfg.Fleet.Timeout,
		Logger:     logger.New("fleet"),
	})
	dispatcher := service.NewDispatcher(service.Deps{
		Repo:     repo,
		Gateway:  gateway,
		Notifier: notifier,
		Events:   queue.NewPublisher(cfg.AMQPURL, logger.New("events")),
		Metrics:  metrics,
		Logger:   logger.New("dispatch"),
	})
	reconciler := service.NewReconciler(dispatcher)
	overview := service.NewOverview(repo)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID(), middleware.RequestLogger(logger.New("http")))

	limit := middleware.NewTokenBucket(config.LoadRateLimitConfig(), a.rdb, logger.New("ratelimit"))
	cache := middleware.NewRedisCache(cacheCfg, a.rdb)

	router.RegisterRoutes(e, reg)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, overview, logger.New("auth")), cfg.JWTSecret, limit)
	router.RegisterFleet(e, handler.NewFleetHandler(reconciler, cfg.Fleet.CallbackToken, logger.New("callback")))
	router.RegisterKiosk(e, handler.NewTableHandler(dispatcher, overview, logger.New("kiosk")), cfg.JWTSecret, limit)
	router.RegisterOperator(e, handler.NewOperatorHandler(dispatcher, logger.New("operator")), cfg.JWTSecret, limit)
	router.RegisterRead(e, handler.NewReadHandler(overview, a.bus, logger.New("read")), cfg.JWTSecret, cache)
	a.echo = e

	if opts.ConsumeEvents {
		a.consumer = queue.NewConsumer(cfg.AMQPURL, opts.EventLogDir, logger.New("event-log"))
	}
	return a, nil
}

// hallNotifier signals the local bus directly and, with Redis, also drops
// the cached reads and tells the other instances.
func hallNotifier(bus *notify.Bus, rdb *redis.Client, cachePrefix string) service.Notifier {
	if rdb == nil {
		return bus
	}
	return notify.Multi{bus, notify.NewRedisSink(rdb, notify.DefaultChannel, cachePrefix)}
}

// Run serves HTTP until ctx is done, then shuts the server down.
func (a *App) Run(ctx context.Context) error {
	if a.rdb != nil {
		go notify.Relay(ctx, a.rdb, notify.DefaultChannel, a.bus, logger.New("relay"))
	}
	if a.consumer != nil {
		go func() {
			if err := a.consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.log.Errorf("event log consumer stopped: %v", err)
			}
		}()
	}

	errc := make(chan error, 1)
	go func() {
		addr := ":" + a.cfg.Port
		a.log.Infof("listening on %s (env=%s)", addr, a.cfg.Env)
		errc <- a.echo.Start(addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.echo.Shutdown(sctx)
}

// Close releases the bus and the storage connections.
func (a *App) Close() error {
	a.bus.Close()
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}
