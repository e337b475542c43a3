package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/pkg/logger"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

const (
	TypeSendReminder = "reminder:send"
	ReminderQueue    = "reminders"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Deleter is satisfied by *asynq.Inspector.
type Deleter interface {
	DeleteTask(queue, id string) error
}

// Deliverer sends a due reminder.
type Deliverer interface {
	Deliver(ctx context.Context, p model.ReminderPayload) error
}

// ReminderTaskID is stable for an appointment start and offset so a retry of
// the same booking never queues a duplicate.
func ReminderTaskID(appointmentID string, start time.Time, offset time.Duration) string {
	return fmt.Sprintf("reminder:%s:%d:%d", appointmentID, start.Unix(), int64(offset/time.Minute))
}

func NewReminderTask(payload model.ReminderPayload, fireAt time.Time, id string) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeSendReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID(id),
		asynq.Queue(ReminderQueue),
		asynq.MaxRetry(5),
	}
	return task, opts, nil
}

// ReminderScheduler queues one reminder task per offset before the start.
type ReminderScheduler struct {
	client    Enqueuer
	inspector Deleter
	offsets   []time.Duration
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time
}

func NewReminderScheduler(client Enqueuer, inspector Deleter, offsets []time.Duration, m *metrics.Metrics, log *logger.Logger) *ReminderScheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &ReminderScheduler{
		client:    client,
		inspector: inspector,
		offsets:   offsets,
		metrics:   m,
		logger:    log,
		now:       time.Now,
	}
}

func (s *ReminderScheduler) Schedule(ctx context.Context, tenant model.Tenant, appt *model.Appointment) error {
	payload := model.ReminderPayload{
		TenantID:      tenant.ID,
		ClinicName:    tenant.ClinicName,
		ClinicPhone:   tenant.Phone,
		AppointmentID: appt.ID,
		StartTime:     appt.StartTime,
	}

	var errs []error
	now := s.now()
	for _, offset := range s.offsets {
		fireAt := appt.StartTime.Add(-offset)
		if !fireAt.After(now) {
			continue
		}
		task, opts, err := NewReminderTask(payload, fireAt, ReminderTaskID(appt.ID, appt.StartTime, offset))
		if err != nil {
			return fmt.Errorf("failed to build reminder task: %w", err)
		}
		if _, err := s.client.EnqueueContext(ctx, task, opts...); err != nil {
			if errors.Is(err, asynq.ErrTaskIDConflict) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		if s.metrics != nil {
			s.metrics.RemindersQueued.Inc()
		}
		s.logger.WithContext(ctx).Debug("reminder queued", "appointment_id", appt.ID, "fire_at", fireAt)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to enqueue reminders: %w", errors.Join(errs...))
	}
	return nil
}

// Cancel removes pending reminders. Tasks that already ran or were never
// queued are ignored; Deliver also drops stale tasks.
func (s *ReminderScheduler) Cancel(_ context.Context, appt *model.Appointment) error {
	if s.inspector == nil {
		return nil
	}
	var errs []error
	for _, offset := range s.offsets {
		err := s.inspector.DeleteTask(ReminderQueue, ReminderTaskID(appt.ID, appt.StartTime, offset))
		if err != nil && !errors.Is(err, asynq.ErrTaskNotFound) && !errors.Is(err, asynq.ErrQueueNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func NewReminderHandler(d Deliverer, log *logger.Logger) asynq.HandlerFunc {
	if log == nil {
		log = logger.Nop()
	}
	return func(ctx context.Context, task *asynq.Task) error {
		var p model.ReminderPayload
		if err := json.Unmarshal(task.Payload(), &p); err != nil {
			log.Error(err, "invalid reminder payload")
			return fmt.Errorf("invalid reminder payload: %v: %w", err, asynq.SkipRetry)
		}
		if err := d.Deliver(ctx, p); err != nil {
			log.Error(err, "failed to deliver reminder", "appointment_id", p.AppointmentID, "tenant_id", p.TenantID)
			return err
		}
		return nil
	}
}

func NewServeMux(d Deliverer, log *logger.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSendReminder, NewReminderHandler(d, log))
	return mux
}
