package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/chairside/internal/live"
	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/internal/slotgrid"
	apperrors "github.com/jwalitptl/chairside/pkg/errors"
	"github.com/jwalitptl/chairside/pkg/logger"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

// Patients resolves or creates the patient an appointment is booked for.
type Patients interface {
	Get(ctx context.Context, tenantID, id string) (*model.Patient, error)
	Create(ctx context.Context, tenantID string, req *model.CreatePatientRequest) (*model.Patient, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// Scheduler plans the reminders of an appointment.
type Scheduler interface {
	Schedule(ctx context.Context, tenant model.Tenant, appt *model.Appointment) error
	Cancel(ctx context.Context, appt *model.Appointment) error
}

type Config struct {
	// Duration of a new appointment. Moving an appointment keeps its length.
	Duration time.Duration
}

type Service struct {
	repo      repository.AppointmentRepository
	patients  Patients
	grid      *slotgrid.Grid
	cfg       Config
	notifier  live.Notifier
	scheduler Scheduler
	clock     slotgrid.Clock
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

type Option func(*Service)

func WithNotifier(n live.Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithScheduler(sc Scheduler) Option { return func(s *Service) { s.scheduler = sc } }

func WithClock(c slotgrid.Clock) Option { return func(s *Service) { s.clock = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.logger = l } }

func NewService(repo repository.AppointmentRepository, patients Patients, grid *slotgrid.Grid, cfg Config, opts ...Option) *Service {
	if cfg.Duration <= 0 {
		cfg.Duration = grid.SlotDuration()
	}
	s := &Service{
		repo:     repo,
		patients: patients,
		grid:     grid,
		cfg:      cfg,
		notifier: live.Discard{},
		clock:    slotgrid.SystemClock,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Create(ctx context.Context, tenant model.Tenant, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	appt := &model.Appointment{
		Base:      model.Base{TenantID: tenant.ID},
		StartTime: req.StartTime,
		EndTime:   req.StartTime.Add(s.cfg.Duration),
		Service:   strings.TrimSpace(req.Service),
		Notes:     strings.TrimSpace(req.Notes),
	}
	// Checked before resolving so a rejected booking never leaves an inline
	// patient behind.
	if err := s.checkBookable(ctx, appt); err != nil {
		return nil, err
	}

	patient, err := s.resolvePatient(ctx, tenant.ID, req)
	if err != nil {
		return nil, err
	}
	appt.PatientID, appt.PatientName, appt.PatientPhone = patient.ID, patient.Name, patient.Phone

	if err := appt.Validate(); err != nil {
		s.discardInline(ctx, tenant.ID, req, patient)
		return nil, apperrors.BadRequest("invalid appointment", err)
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		s.discardInline(ctx, tenant.ID, req, patient)
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	s.notifier.Changed(ctx, tenant.ID, model.CollectionAppointments, model.ChangeCreated, appt.ID)
	s.schedule(ctx, tenant, appt)

	return appt, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id string) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, notFound(err)
	}
	return appt, nil
}

func (s *Service) Update(ctx context.Context, tenant model.Tenant, id string, req *model.UpdateAppointmentRequest) (*model.Appointment, error) {
	appt, err := s.repo.Get(ctx, tenant.ID, id)
	if err != nil {
		return nil, notFound(err)
	}
	before := *appt

	if req.PatientID != nil && *req.PatientID != appt.PatientID {
		p, err := s.patients.Get(ctx, tenant.ID, *req.PatientID)
		if err != nil {
			return nil, apperrors.BadRequest("patient not found", err)
		}
		appt.PatientID, appt.PatientName, appt.PatientPhone = p.ID, p.Name, p.Phone
	}
	if req.Service != nil {
		appt.Service = strings.TrimSpace(*req.Service)
	}
	if req.Notes != nil {
		appt.Notes = strings.TrimSpace(*req.Notes)
	}
	moved := req.StartTime != nil && !req.StartTime.Equal(appt.StartTime)
	if moved {
		length := appt.Duration()
		appt.StartTime = *req.StartTime
		appt.EndTime = appt.StartTime.Add(length)
	}

	if err := appt.Validate(); err != nil {
		return nil, apperrors.BadRequest("invalid appointment", err)
	}
	if moved {
		if err := s.checkBookable(ctx, appt); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, appt); err != nil {
		return nil, fmt.Errorf("failed to update appointment: %w", err)
	}

	s.notifier.Changed(ctx, tenant.ID, model.CollectionAppointments, model.ChangeUpdated, appt.ID)
	if moved {
		s.cancel(ctx, &before)
		s.schedule(ctx, tenant, appt)
	}

	return appt, nil
}

func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	appt, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return notFound(err)
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return notFound(err)
	}

	s.notifier.Changed(ctx, tenantID, model.CollectionAppointments, model.ChangeDeleted, id)
	s.cancel(ctx, appt)
	return nil
}

func (s *Service) List(ctx context.Context, tenantID string, filters *model.AppointmentFilters) ([]*model.Appointment, error) {
	appts, err := s.repo.List(ctx, tenantID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) resolvePatient(ctx context.Context, tenantID string, req *model.CreateAppointmentRequest) (*model.Patient, error) {
	if req.PatientID != "" {
		p, err := s.patients.Get(ctx, tenantID, req.PatientID)
		if err != nil {
			if apperrors.HasCode(err, apperrors.ErrNotFound) {
				return nil, apperrors.BadRequest("patient not found", err)
			}
			return nil, err
		}
		return p, nil
	}
	if req.NewPatient == nil {
		return nil, apperrors.BadRequest("patient_id or new_patient is required", nil)
	}
	return s.patients.Create(ctx, tenantID, req.NewPatient)
}

// checkBookable loads the appointment's day and asks the grid whether its
// start cell can take it. The appointment itself is left out so a move
// within its own span is allowed.
func (s *Service) checkBookable(ctx context.Context, appt *model.Appointment) error {
	from, to := s.grid.DayBounds(appt.StartTime)
	existing, err := s.repo.List(ctx, appt.TenantID, &model.AppointmentFilters{From: from, To: to})
	if err != nil {
		return fmt.Errorf("failed to load day schedule: %w", err)
	}

	others := make([]model.Appointment, 0, len(existing))
	for _, a := range existing {
		if a.ID != appt.ID {
			others = append(others, *a)
		}
	}

	err = s.grid.CheckBookable(appt.StartTime, others, s.clock.Now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, slotgrid.ErrSlotOccupied):
		s.metrics.ObserveBookingRejected("occupied")
		return apperrors.Conflict("slot is already booked", err)
	case errors.Is(err, slotgrid.ErrSlotInPast):
		s.metrics.ObserveBookingRejected("past")
		return apperrors.BadRequest("slot is in the past", err)
	default:
		s.metrics.ObserveBookingRejected("off_grid")
		return apperrors.BadRequest("start time is not a bookable slot", err)
	}
}

// discardInline removes a patient created by this booking attempt.
func (s *Service) discardInline(ctx context.Context, tenantID string, req *model.CreateAppointmentRequest, p *model.Patient) {
	if req.PatientID != "" {
		return
	}
	if err := s.patients.Delete(ctx, tenantID, p.ID); err != nil {
		s.logger.WithContext(ctx).Warn("failed to remove inline patient", "patient_id", p.ID, "error", err.Error())
	}
}

func (s *Service) schedule(ctx context.Context, tenant model.Tenant, appt *model.Appointment) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Schedule(ctx, tenant, appt); err != nil {
		s.logger.WithContext(ctx).Error(err, "failed to schedule reminders", "appointment_id", appt.ID)
	}
}

func (s *Service) cancel(ctx context.Context, appt *model.Appointment) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.Cancel(ctx, appt); err != nil {
		s.logger.WithContext(ctx).Warn("failed to cancel reminders", "appointment_id", appt.ID, "error", err.Error())
	}
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("appointment", err)
	}
	return fmt.Errorf("failed to get appointment: %w", err)
}
