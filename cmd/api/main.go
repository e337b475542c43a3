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

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	playground "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/chairside/internal/app"
	"github.com/jwalitptl/chairside/internal/config"
	appointmentHandler "github.com/jwalitptl/chairside/internal/handler/appointment"
	calendarHandler "github.com/jwalitptl/chairside/internal/handler/calendar"
	"github.com/jwalitptl/chairside/internal/handler/catalog"
	"github.com/jwalitptl/chairside/internal/handler/health"
	patientHandler "github.com/jwalitptl/chairside/internal/handler/patient"
	reminderHandler "github.com/jwalitptl/chairside/internal/handler/reminder"
	suggestionHandler "github.com/jwalitptl/chairside/internal/handler/suggestion"
	"github.com/jwalitptl/chairside/internal/middleware"
	"github.com/jwalitptl/chairside/internal/router"
	"github.com/jwalitptl/chairside/pkg/logger"
	"github.com/jwalitptl/chairside/pkg/metrics"
	"github.com/jwalitptl/chairside/pkg/validator"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(os.Getenv("CHAIRSIDE_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(&logger.Config{
		Level: logger.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})
	lg.SetGlobal()

	gin.SetMode(cfg.Server.Mode)
	if v, ok := binding.Validator.Engine().(*playground.Validate); ok {
		validator.Register(v)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, lg, metrics.NewMetrics("chairside", "api"))
	if err != nil {
		lg.Fatal(err, "failed to initialise application")
	}
	defer a.Close()

	r := router.NewRouter(
		middleware.NewAuthMiddleware(a.Verifier),
		[]router.Handler{health.NewHandler(a.Checks, nil)},
		[]router.Handler{
			patientHandler.NewHandler(a.PatientService),
			appointmentHandler.NewHandler(a.AppointmentService, a.NotificationService),
			calendarHandler.NewHandler(a.CalendarService, a.Feed),
			suggestionHandler.NewHandler(a.SuggestionService),
			reminderHandler.NewHandler(a.ReminderService, a.NotificationService),
			catalog.NewHandler(catalog.Catalog{
				Services:           cfg.Clinic.Services,
				WorkingHours:       cfg.Clinic.WorkingHours,
				SlotMinutes:        cfg.Clinic.SlotMinutes,
				AppointmentMinutes: cfg.Clinic.AppointmentMinutes,
				Timezone:           a.Location.String(),
				SuggestionsEnabled: a.SuggestionsEnabled,
			}),
		},
		routerConfig(cfg),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		lg.Info("starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error(err, "server forced to shutdown")
	}

	lg.Info("server exited properly")
}

func routerConfig(cfg *config.Config) router.RouterConfig {
	limit := middleware.RateLimiterConfig{
		Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
		Burst: cfg.RateLimit.Burst,
	}
	if !cfg.RateLimit.Enabled {
		limit.Rate = rate.Inf
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.CORS.AllowedOrigins
	}

	return router.RouterConfig{
		RateLimit:  limit,
		CORSConfig: cors,
		Timeout: middleware.TimeoutConfig{
			Duration:  cfg.Server.RequestTimeout,
			SkipPaths: []string{calendarHandler.StreamPath},
		},
		SizeLimit:     middleware.DefaultSizeLimitConfig(),
		Security:      middleware.DefaultSecurityConfig(),
		MetricsPrefix: "chairside_http",
	}
}
