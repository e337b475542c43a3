package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/pkg/logger"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

// Notifier delivers one notification.
type Notifier interface {
	Send(ctx context.Context, n *model.Notification) error
}

// UpcomingWatcher alerts the dentist once about every appointment that is
// about to start.
type UpcomingWatcher struct {
	appts    repository.AppointmentRepository
	notifier Notifier
	channels []string
	window   time.Duration
	interval time.Duration
	loc      *time.Location
	seen     *cache.Cache
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

type UpcomingConfig struct {
	Window   time.Duration
	Interval time.Duration
	Location *time.Location
	// Channels the alert goes out on, typically push and in_app.
	Channels []string
}

func NewUpcomingWatcher(appts repository.AppointmentRepository, notifier Notifier, cfg UpcomingConfig, m *metrics.Metrics, log *logger.Logger) *UpcomingWatcher {
	if cfg.Window <= 0 {
		cfg.Window = 30 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if len(cfg.Channels) == 0 {
		cfg.Channels = []string{model.ChannelInApp}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &UpcomingWatcher{
		appts:    appts,
		notifier: notifier,
		channels: cfg.Channels,
		window:   cfg.Window,
		interval: cfg.Interval,
		loc:      cfg.Location,
		// An id only needs remembering until its appointment leaves the window.
		seen:    cache.New(cfg.Window+cfg.Interval, cfg.Window),
		metrics: m,
		logger:  log,
		now:     time.Now,
	}
}

// Start polls until ctx is done.
func (w *UpcomingWatcher) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Check(ctx); err != nil {
			w.logger.Error(err, "upcoming appointment check failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Check raises alerts for appointments starting within the window that have
// not been alerted before.
func (w *UpcomingWatcher) Check(ctx context.Context) ([]model.UpcomingAlert, error) {
	now := w.now()
	appts, err := w.appts.ListStartingBetween(ctx, now, now.Add(w.window))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}

	var alerts []model.UpcomingAlert
	for _, a := range appts {
		key := a.TenantID + "/" + a.ID + "/" + a.StartTime.UTC().Format(time.RFC3339)
		if err := w.seen.Add(key, struct{}{}, cache.DefaultExpiration); err != nil {
			continue
		}

		alert := model.UpcomingAlert{
			TenantID:      a.TenantID,
			AppointmentID: a.ID,
			PatientName:   a.PatientName,
			Service:       a.Service,
			StartTime:     a.StartTime,
			EndTime:       a.EndTime,
		}
		body := fmt.Sprintf("Your appointment with %s is at %s.", a.PatientName, a.StartTime.In(w.loc).Format("3:04 PM"))
		for _, channel := range w.channels {
			err := w.notifier.Send(ctx, &model.Notification{
				TenantID:      a.TenantID,
				AppointmentID: a.ID,
				Channel:       channel,
				Subject:       "Upcoming Appointment",
				Content:       body,
			})
			if err != nil {
				w.logger.Warn("upcoming alert not delivered", "appointment_id", a.ID, "channel", channel, "error", err.Error())
			}
		}
		if w.metrics != nil {
			w.metrics.UpcomingAlerts.Inc()
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}
