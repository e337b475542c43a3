package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/chairside/internal/live"
	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/internal/slotgrid"
	apperrors "github.com/jwalitptl/chairside/pkg/errors"
)

type Service struct {
	repo     repository.PatientRepository
	appts    repository.AppointmentRepository
	notifier live.Notifier
	clock    slotgrid.Clock
}

func NewService(repo repository.PatientRepository, appts repository.AppointmentRepository, notifier live.Notifier, clock slotgrid.Clock) *Service {
	if notifier == nil {
		notifier = live.Discard{}
	}
	if clock == nil {
		clock = slotgrid.SystemClock
	}
	return &Service{
		repo:     repo,
		appts:    appts,
		notifier: notifier,
		clock:    clock,
	}
}

func (s *Service) Create(ctx context.Context, tenantID string, req *model.CreatePatientRequest) (*model.Patient, error) {
	p := &model.Patient{
		Base:  model.Base{TenantID: tenantID},
		Name:  strings.TrimSpace(req.Name),
		Phone: strings.TrimSpace(req.Phone),
		Email: strings.TrimSpace(req.Email),
	}
	if err := validatePatient(p); err != nil {
		return nil, apperrors.BadRequest("invalid patient", err)
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.notifier.Changed(ctx, tenantID, model.CollectionPatients, model.ChangeCreated, p.ID)
	return p, nil
}

// Get returns the patient with its appointment-derived counters filled in.
func (s *Service) Get(ctx context.Context, tenantID, id string) (*model.Patient, error) {
	p, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.withStats(ctx, tenantID, []*model.Patient{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, tenantID, id string, req *model.UpdatePatientRequest) (*model.Patient, error) {
	p, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, notFound(err)
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		p.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Email != nil {
		p.Email = strings.TrimSpace(*req.Email)
	}
	if err := validatePatient(p); err != nil {
		return nil, apperrors.BadRequest("invalid patient", err)
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to update patient: %w", err)
	}

	s.notifier.Changed(ctx, tenantID, model.CollectionPatients, model.ChangeUpdated, p.ID)

	if err := s.withStats(ctx, tenantID, []*model.Patient{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the roster entry only. Appointments keep the patient's name
// and phone so the calendar still renders them.
func (s *Service) Delete(ctx context.Context, tenantID, id string) error {
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return notFound(err)
	}
	s.notifier.Changed(ctx, tenantID, model.CollectionPatients, model.ChangeDeleted, id)
	return nil
}

func (s *Service) List(ctx context.Context, tenantID string, filters *model.PatientFilters) ([]*model.Patient, error) {
	patients, err := s.repo.List(ctx, tenantID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	if err := s.withStats(ctx, tenantID, patients); err != nil {
		return nil, err
	}
	return patients, nil
}

func (s *Service) withStats(ctx context.Context, tenantID string, patients []*model.Patient) error {
	if len(patients) == 0 {
		return nil
	}
	ids := make([]string, len(patients))
	for i, p := range patients {
		ids[i] = p.ID
	}
	stats, err := s.appts.PatientStats(ctx, tenantID, ids, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to load patient stats: %w", err)
	}
	for _, p := range patients {
		stats[p.ID].Apply(p)
	}
	return nil
}

func validatePatient(p *model.Patient) error {
	if len(p.Name) < 2 {
		return fmt.Errorf("name must be at least 2 characters")
	}
	if len(p.Phone) < 10 {
		return fmt.Errorf("phone must be at least 10 characters")
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("patient", err)
	}
	return fmt.Errorf("failed to get patient: %w", err)
}
