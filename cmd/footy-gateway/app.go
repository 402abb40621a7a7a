package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/cache"
	"github.com/Sternrassler/footy-gateway/pkg/config"
	"github.com/Sternrassler/footy-gateway/pkg/fixtures"
	"github.com/Sternrassler/footy-gateway/pkg/gateway"
	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/Sternrassler/footy-gateway/pkg/predict"
	"github.com/Sternrassler/footy-gateway/pkg/ratelimit"
	"github.com/Sternrassler/footy-gateway/pkg/scheduler"
	"github.com/Sternrassler/footy-gateway/pkg/server"
	"github.com/Sternrassler/footy-gateway/pkg/upstream"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/Sternrassler/footy-gateway/pkg/warm"
	"github.com/avast/retry-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const connectAttempts = 5

type storeCloser interface {
	cache.Store
	Close() error
}

// app is the wired component graph shared by every command.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger

	db    *sql.DB
	redis *redis.Client
	store storeCloser

	ledger    usage.Ledger
	holds     *ratelimit.Tracker
	gateway   *gateway.Gateway
	views     *fixtures.Views
	warmer    *warm.Controller
	predictor *predict.Predictor
}

// loadApp reads the configuration and builds the app.
func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logging.Setup(cfg.Logging())
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, logger: logging.NewLogger("app")}
	if err := a.open(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context) error {
	cfg := a.cfg
	limit := cfg.Budget.DailyLimit

	if cfg.Store.Backend == config.BackendRedis || cfg.Store.HoldsInRedis {
		client, err := connectRedis(ctx, cfg.Store.RedisURL)
		if err != nil {
			return err
		}
		a.redis = client
	}

	switch cfg.Store.Backend {
	case config.BackendRedis:
		a.store = cache.NewRedisStore(a.redis)
		ledger, err := usage.NewRedisLedger(a.redis, limit, nil)
		if err != nil {
			return err
		}
		a.ledger = ledger
	default:
		db, err := openSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		a.db = db
		store, err := cache.NewSQLiteStore(db, cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		a.store = store
		ledger, err := usage.NewSQLiteLedger(db, limit, nil)
		if err != nil {
			return err
		}
		a.ledger = ledger
	}

	a.holds = ratelimit.NewTracker(a.redis, logging.NewLogger("ratelimit"))

	client, err := upstream.New(cfg.UpstreamClient(), a.ledger, a.holds)
	if err != nil {
		return fmt.Errorf("failed to create upstream client: %w", err)
	}

	a.gateway, err = gateway.New(a.store, a.ledger, client, a.holds, cfg.GatewayOptions())
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	ttls := cfg.TTLs()
	a.views = fixtures.NewViews(a.gateway, ttls)
	a.warmer = warm.NewController(a.gateway, a.views, ttls, cfg.Warm.TeamStatsLimit)
	a.predictor = predict.NewPredictor(a.gateway, a.views, cfg.PredictConfig())

	a.logger.Info().
		Str("backend", cfg.Store.Backend).
		Str("auth_mode", string(client.Mode())).
		Int64("daily_limit", limit).
		Bool("holds_shared", a.redis != nil).
		Msg("Gateway ready")
	return nil
}

// Close releases the store and its connections.
func (a *app) Close() error {
	var errs []error
	switch {
	case a.store != nil:
		errs = append(errs, a.store.Close())
	case a.db != nil:
		errs = append(errs, a.db.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}

func (a *app) scheduler() (*scheduler.Scheduler, error) {
	leagueIDs, err := a.cfg.LeagueIDs()
	if err != nil {
		return nil, err
	}
	return scheduler.New(a.warmer, scheduler.Config{
		Schedule:  a.cfg.Warm.Schedule,
		LeagueIDs: leagueIDs,
		Standings: a.cfg.Warm.Standings,
		TeamStats: a.cfg.Warm.TeamStats,
	}, nil), nil
}

func (a *app) server() *server.Server {
	return server.New(server.Deps{
		Gateway:   a.gateway,
		Days:      a.views,
		Warmer:    a.warmer,
		Predictor: a.predictor,
		Holds:     a.holds,
		Env:       a.envReport(),
	}, a.cfg.Server.CORSOrigin)
}

func (a *app) envReport() server.EnvReport {
	cfg := a.cfg
	return server.EnvReport{
		Mode:              cfg.Upstream.AuthMode,
		APISportsKey:      cfg.Upstream.APISportsKey != "",
		RapidAPIKey:       cfg.Upstream.RapidAPIKey != "",
		RapidAPIHost:      cfg.Upstream.RapidAPIHost,
		FootballBase:      cfg.Upstream.APISportsBaseURL,
		UpstreamBaseURL:   cfg.Upstream.RapidAPIBaseURL,
		Port:              cfg.Server.Port,
		CORSOrigin:        cfg.Server.CORSOrigin,
		StoreBackend:      cfg.Store.Backend,
		AllowStaleOnError: cfg.Cache.AllowStaleOnError,
		DailyLimit:        cfg.Budget.DailyLimit,
		PredictMaxMatches: cfg.Predict.MaxMatches,
		PredictTimeBudget: cfg.Predict.TimeBudget.String(),
		TeamStatsLimit:    cfg.Warm.TeamStatsLimit,
		TeamStatsTTL:      cfg.Cache.TTL.TeamStats.String(),
		WarmSchedule:      cfg.Warm.Schedule,
	}
}

func openSQLite(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return cache.OpenSQLite(path)
}

// connectRedis parses url and waits for the server to answer PING.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)

	logger := logging.NewLogger("app")
	err = retry.Do(
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx).Err()
		},
		retry.Context(ctx),
		retry.Attempts(connectAttempts),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().Err(err).Uint("attempt", n+1).Str("addr", opts.Addr).Msg("Redis not reachable, retrying")
		}),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}
