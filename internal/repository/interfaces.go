package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/chairside/internal/model"
)

// ErrNotFound is returned when a tenant-scoped record does not exist.
var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file. Every method is scoped to a tenant
// except the cross-tenant scans used by background workers.
type (
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, tenantID, id string) (*model.Appointment, error)
		Update(ctx context.Context, appointment *model.Appointment) error
		Delete(ctx context.Context, tenantID, id string) error
		List(ctx context.Context, tenantID string, filters *model.AppointmentFilters) ([]*model.Appointment, error)
		// ListStartingBetween scans all tenants for appointments with from <= start < to.
		ListStartingBetween(ctx context.Context, from, to time.Time) ([]*model.Appointment, error)
		PatientStats(ctx context.Context, tenantID string, patientIDs []string, now time.Time) (map[string]model.PatientStats, error)
	}

	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, tenantID, id string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		Delete(ctx context.Context, tenantID, id string) error
		List(ctx context.Context, tenantID string, filters *model.PatientFilters) ([]*model.Patient, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, notification *model.Notification) error
		Update(ctx context.Context, notification *model.Notification) error
		ListByAppointment(ctx context.Context, tenantID, appointmentID string) ([]*model.Notification, error)
		List(ctx context.Context, tenantID string, limit int) ([]*model.Notification, error)
	}
)
