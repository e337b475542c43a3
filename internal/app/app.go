// Package app wires configuration into repositories, senders and services.
// Both the API server and the worker build one App and take what they need.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/jwalitptl/chairside/internal/config"
	"github.com/jwalitptl/chairside/internal/email"
	"github.com/jwalitptl/chairside/internal/handler/health"
	"github.com/jwalitptl/chairside/internal/live"
	"github.com/jwalitptl/chairside/internal/push"
	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/internal/repository/memory"
	"github.com/jwalitptl/chairside/internal/repository/postgres"
	"github.com/jwalitptl/chairside/internal/service/appointment"
	"github.com/jwalitptl/chairside/internal/service/calendar"
	"github.com/jwalitptl/chairside/internal/service/notification"
	"github.com/jwalitptl/chairside/internal/service/patient"
	"github.com/jwalitptl/chairside/internal/service/reminder"
	"github.com/jwalitptl/chairside/internal/service/suggestion"
	"github.com/jwalitptl/chairside/internal/slotgrid"
	"github.com/jwalitptl/chairside/internal/sms"
	"github.com/jwalitptl/chairside/internal/suggest"
	"github.com/jwalitptl/chairside/internal/worker"
	"github.com/jwalitptl/chairside/pkg/auth"
	"github.com/jwalitptl/chairside/pkg/logger"
	"github.com/jwalitptl/chairside/pkg/messaging"
	"github.com/jwalitptl/chairside/pkg/messaging/redis"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Location *time.Location
	Grid     *slotgrid.Grid
	Clock    slotgrid.Clock

	DB            *sqlx.DB
	Broker        messaging.Broker
	Appointments  repository.AppointmentRepository
	Patients      repository.PatientRepository
	Notifications repository.NotificationRepository

	// Queue is nil when reminders cannot be scheduled, e.g. with the memory
	// driver or reminders turned off.
	Queue          *asynq.RedisClientOpt
	QueueClient    *asynq.Client
	QueueInspector *asynq.Inspector

	Verifier auth.Verifier
	Checks   map[string]health.Checker
	Feed     *live.Feed

	PatientService      *patient.Service
	AppointmentService  *appointment.Service
	CalendarService     *calendar.Service
	SuggestionService   *suggestion.Service
	NotificationService *notification.Service
	ReminderService     *reminder.Service
	SuggestionsEnabled  bool

	firebase *firebase.App
	closers  []func() error
}

// New builds the whole graph. On error everything opened so far is closed
// again.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (_ *App, err error) {
	if log == nil {
		log = logger.Nop()
	}
	a := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Clock:   slotgrid.SystemClock,
		Checks:  map[string]health.Checker{},
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if a.Location, err = cfg.Location(); err != nil {
		return nil, err
	}
	gridCfg, err := cfg.GridConfig()
	if err != nil {
		return nil, err
	}
	if a.Grid, err = slotgrid.New(gridCfg); err != nil {
		return nil, err
	}

	if err = a.initStorage(ctx); err != nil {
		return nil, err
	}
	if err = a.initAuth(ctx); err != nil {
		return nil, err
	}
	channels, err := a.channels(ctx)
	if err != nil {
		return nil, err
	}
	if err = a.initServices(ctx, channels); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) initStorage(ctx context.Context) error {
	cfg := a.Config

	if cfg.Database.Driver == "memory" {
		store := memory.NewStore()
		a.Appointments = store.Appointments()
		a.Patients = store.Patients()
		a.Notifications = store.Notifications()
		a.Broker = messaging.NewMemoryBroker()
		a.closers = append(a.closers, a.Broker.Close)
		a.Logger.Warn("using in-memory storage, data is lost on restart")
		return nil
	}

	db, err := postgres.NewDB(ctx, postgres.DBConfig{
		DSN:          cfg.Database.DSN(cfg.Secrets.DatabasePassword),
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	a.Checks["database"] = db.PingContext

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}

	a.Appointments = postgres.NewAppointmentRepository(db, a.Metrics)
	a.Patients = postgres.NewPatientRepository(db, a.Metrics)
	a.Notifications = postgres.NewNotificationRepository(db, a.Metrics)

	client, err := redis.NewClient(cfg.Redis.ToBrokerConfig())
	if err != nil {
		return err
	}
	broker, err := redis.NewRedisBroker(ctx, client, a.Metrics, a.Logger.Zerolog())
	if err != nil {
		_ = client.Close()
		return err
	}
	a.Broker = broker
	a.closers = append(a.closers, broker.Close)
	a.Checks["redis"] = broker.Ping

	queue, err := QueueOpt(cfg.Redis)
	if err != nil {
		return err
	}
	a.Queue = &queue
	return nil
}

// QueueOpt points asynq at the configured Redis, on its own database.
func QueueOpt(cfg config.RedisConfig) (asynq.RedisClientOpt, error) {
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return asynq.RedisClientOpt{
		Network:   opts.Network,
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        cfg.QueueDB,
		PoolSize:  cfg.PoolSize,
		TLSConfig: opts.TLSConfig,
	}, nil
}

func (a *App) firebaseApp(ctx context.Context) (*firebase.App, error) {
	if a.firebase != nil {
		return a.firebase, nil
	}
	var opts []option.ClientOption
	if f := a.Config.Auth.CredentialsFile; f != "" {
		opts = append(opts, option.WithCredentialsFile(f))
	}
	fb, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise firebase: %w", err)
	}
	a.firebase = fb
	return fb, nil
}

func (a *App) initAuth(ctx context.Context) error {
	if a.Config.Auth.Provider == "jwt" {
		a.Verifier = auth.NewJWTVerifier(a.Config.Secrets.JWTSecret, a.Config.Auth.Issuer)
		return nil
	}
	fb, err := a.firebaseApp(ctx)
	if err != nil {
		return err
	}
	v, err := auth.NewFirebaseVerifier(ctx, fb)
	if err != nil {
		return err
	}
	a.Verifier = v
	return nil
}

func (a *App) channels(ctx context.Context) (notification.Channels, error) {
	cfg := a.Config.Notifications
	ch := notification.Channels{InApp: a.Broker}

	if cfg.SMS.GatewayURL != "" {
		ch.SMS = sms.NewWebhookSender(cfg.SMS.GatewayURL, a.Config.Secrets.SMSGatewayToken, cfg.SMS.Timeout)
	} else {
		a.Logger.Warn("no SMS gateway configured, reminders are recorded but not delivered")
		ch.SMS = sms.NewNoopSender()
	}

	if cfg.SMTP.Host != "" {
		ch.Email = email.NewSMTPSender(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: a.Config.Secrets.SMTPPassword,
			From:     cfg.SMTP.From,
		})
	}

	if cfg.Push.Enabled {
		fb, err := a.firebaseApp(ctx)
		if err != nil {
			return ch, err
		}
		client, err := fb.Messaging(ctx)
		if err != nil {
			return ch, fmt.Errorf("failed to get firebase messaging client: %w", err)
		}
		ch.Push = push.NewFCMSender(client)
	}
	return ch, nil
}

func (a *App) initServices(ctx context.Context, channels notification.Channels) error {
	cfg := a.Config
	log := a.Logger
	notifier := live.NewPublisher(a.Broker, log)

	a.Feed = live.NewFeed(a.Broker, a.Appointments, a.Patients, log)
	a.PatientService = patient.NewService(a.Patients, a.Appointments, notifier, a.Clock)
	a.NotificationService = notification.NewService(a.Notifications, channels, a.Metrics, log)
	a.ReminderService = reminder.NewService(a.Appointments, a.NotificationService, reminder.Defaults{
		ClinicName: cfg.Clinic.DefaultName,
		Phone:      cfg.Clinic.DefaultContactPhone,
	}, a.Location, a.Clock, log)

	opts := []appointment.Option{
		appointment.WithNotifier(notifier),
		appointment.WithClock(a.Clock),
		appointment.WithMetrics(a.Metrics),
		appointment.WithLogger(log),
	}
	if a.Queue != nil && cfg.Reminders.Enabled {
		a.QueueClient = asynq.NewClient(*a.Queue)
		a.QueueInspector = asynq.NewInspector(*a.Queue)
		a.closers = append(a.closers, a.QueueClient.Close, a.QueueInspector.Close)
		opts = append(opts, appointment.WithScheduler(
			worker.NewReminderScheduler(a.QueueClient, a.QueueInspector, cfg.Reminders.Offsets, a.Metrics, log),
		))
	}
	a.AppointmentService = appointment.NewService(a.Appointments, a.PatientService, a.Grid,
		appointment.Config{Duration: cfg.AppointmentDuration()}, opts...)

	a.CalendarService = calendar.NewService(a.Appointments, a.Grid, a.Location, cfg.Notifications.UpcomingWindow, a.Clock)

	// A typed nil would not compare equal to nil inside the service.
	var rec suggestion.Recommender
	switch {
	case !cfg.Suggestions.Enabled:
	case cfg.Secrets.GeminiAPIKey == "":
		log.Warn("GEMINI_API_KEY is not set, slot suggestions are disabled")
	default:
		gen, err := suggest.NewGeminiGenerator(ctx, suggest.GeminiConfig{
			APIKey:      cfg.Secrets.GeminiAPIKey,
			Model:       cfg.Suggestions.Model,
			Temperature: cfg.Suggestions.Temperature,
			Timeout:     cfg.Suggestions.Timeout,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, gen.Close)
		rec = suggest.NewAdapter(gen, log, a.Metrics)
		a.SuggestionsEnabled = true
	}
	a.SuggestionService = suggestion.NewService(a.CalendarService, a.Appointments, rec, suggestion.Config{
		MaxResults:      cfg.Suggestions.MaxResults,
		DefaultDuration: cfg.AppointmentDuration(),
	}, a.Clock, log)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
