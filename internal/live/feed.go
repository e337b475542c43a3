package live

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/pkg/logger"
	"github.com/jwalitptl/chairside/pkg/messaging"
)

// Snapshot is the full tenant state after some change. Consumers recompute
// everything derived from it rather than patching previous results.
type Snapshot struct {
	TenantID     string
	Appointments []*model.Appointment
	Patients     []*model.Patient
	// Cause is nil for the initial snapshot.
	Cause *model.ChangeEvent
	At    time.Time
}

// Feed turns change events into fresh snapshots.
type Feed struct {
	broker       messaging.Broker
	appointments repository.AppointmentRepository
	patients     repository.PatientRepository
	logger       *logger.Logger
}

func NewFeed(broker messaging.Broker, appointments repository.AppointmentRepository, patients repository.PatientRepository, log *logger.Logger) *Feed {
	if log == nil {
		log = logger.Nop()
	}
	return &Feed{broker: broker, appointments: appointments, patients: patients, logger: log}
}

// Subscribe delivers an initial snapshot and then one per burst of changes,
// until ctx is done or fn returns an error. It blocks for the whole
// subscription. filters narrows the appointment set; nil means all.
func (f *Feed) Subscribe(ctx context.Context, tenantID string, filters *model.AppointmentFilters, fn func(Snapshot) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before the first load so a change racing it is not lost.
	events, err := f.broker.Subscribe(ctx,
		model.ChangeChannel(tenantID, model.CollectionAppointments),
		model.ChangeChannel(tenantID, model.CollectionPatients),
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe to changes: %w", err)
	}

	snap, err := f.load(ctx, tenantID, filters, nil)
	if err != nil {
		return err
	}
	if err := fn(snap); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			cause := f.decode(payload)
			// Coalesce whatever else is already queued into one reload.
			for drained := false; !drained; {
				select {
				case more, ok := <-events:
					if !ok {
						return nil
					}
					if ev := f.decode(more); ev != nil {
						cause = ev
					}
				default:
					drained = true
				}
			}

			snap, err := f.load(ctx, tenantID, filters, cause)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				f.logger.WithContext(ctx).Error(err, "failed to reload snapshot", "tenant_id", tenantID)
				continue
			}
			if err := fn(snap); err != nil {
				return err
			}
		}
	}
}

func (f *Feed) decode(payload []byte) *model.ChangeEvent {
	var ev model.ChangeEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		f.logger.Warn("ignoring malformed change event", "error", err.Error())
		return nil
	}
	return &ev
}

func (f *Feed) load(ctx context.Context, tenantID string, filters *model.AppointmentFilters, cause *model.ChangeEvent) (Snapshot, error) {
	appts, err := f.appointments.List(ctx, tenantID, filters)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load appointments: %w", err)
	}
	patients, err := f.patients.List(ctx, tenantID, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load patients: %w", err)
	}
	return Snapshot{
		TenantID:     tenantID,
		Appointments: appts,
		Patients:     patients,
		Cause:        cause,
		At:           time.Now(),
	}, nil
}
