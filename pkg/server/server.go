// Package server exposes the gateway over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/footy-gateway/pkg/cache"
	"github.com/Sternrassler/footy-gateway/pkg/fixtures"
	"github.com/Sternrassler/footy-gateway/pkg/logging"
	"github.com/Sternrassler/footy-gateway/pkg/metrics"
	"github.com/Sternrassler/footy-gateway/pkg/predict"
	"github.com/Sternrassler/footy-gateway/pkg/ratelimit"
	"github.com/Sternrassler/footy-gateway/pkg/usage"
	"github.com/Sternrassler/footy-gateway/pkg/warm"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Gateway is the read side of the gateway the API reports on.
type Gateway interface {
	Usage(ctx context.Context) (usage.Usage, error)
	Store() cache.Store
}

// Days serves the whole-day fixture list.
type Days interface {
	Day(ctx context.Context, date string) (*fixtures.DayResult, error)
}

// Warmer runs warm requests.
type Warmer interface {
	Warm(ctx context.Context, req warm.Request) (*warm.Report, error)
}

// Predictor runs predict queries.
type Predictor interface {
	Predict(ctx context.Context, req predict.Request) (*predict.Response, error)
}

// Holds exposes the rate-limit hold.
type Holds interface {
	GetState(ctx context.Context) (*ratelimit.HoldState, error)
	Now() time.Time
}

// Deps are the components behind the handlers.
type Deps struct {
	Gateway   Gateway
	Days      Days
	Warmer    Warmer
	Predictor Predictor
	Holds     Holds

	// Env is reported by /api/env-ok.
	Env EnvReport
	// Now defaults to time.Now; it picks the default date.
	Now func() time.Time
}

// EnvReport describes the running configuration without secrets.
type EnvReport struct {
	Mode              string `json:"FOOTY_AUTH_MODE"`
	APISportsKey      bool   `json:"APISPORTS_KEY"`
	RapidAPIKey       bool   `json:"X_RAPIDAPI_KEY"`
	RapidAPIHost      string `json:"X_RAPIDAPI_HOST"`
	FootballBase      string `json:"FOOTBALL_BASE"`
	UpstreamBaseURL   string `json:"UPSTREAM_BASE_URL"`
	Port              int    `json:"API_PORT"`
	CORSOrigin        string `json:"CORS_ORIGIN"`
	StoreBackend      string `json:"STORE_BACKEND"`
	AllowStaleOnError bool   `json:"cacheAllowStaleOnError"`
	DailyLimit        int64  `json:"DAILY_UPSTREAM_LIMIT"`
	PredictMaxMatches int    `json:"PREDICT_MAX_MATCHES"`
	PredictTimeBudget string `json:"PREDICT_TIME_BUDGET"`
	TeamStatsLimit    int    `json:"TEAMSTATS_WARM_LIMIT"`
	TeamStatsTTL      string `json:"TTL_TEAMSTATS"`
	WarmSchedule      string `json:"WARM_SCHEDULE"`
}

// Server is the HTTP API.
type Server struct {
	deps   Deps
	router *gin.Engine
	logger zerolog.Logger
}

// New builds the router. corsOrigin is sent as Access-Control-Allow-Origin.
func New(deps Deps, corsOrigin string) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Server{
		deps:   deps,
		logger: logging.NewLogger("server"),
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(s.logger), CORS(corsOrigin))

	api := router.Group("/api")
	{
		api.GET("/fixtures/day", s.fixturesDay)
		api.GET("/warm", s.warm)
		api.GET("/predict", s.predict)

		api.GET("/cache/stats", s.cacheStats)
		api.GET("/cache/usage", s.cacheUsage)
		api.POST("/cache/flush", s.cacheFlush)

		api.GET("/rate-status", s.rateStatus)
		api.GET("/env-ok", s.envOK)
	}

	router.GET("/health", s.health)
	router.HEAD("/health", s.health)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	s.router = router
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
