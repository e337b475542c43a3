// Package memory keeps tenant records in process memory. It backs tests and
// the "memory" storage driver for local runs without Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
)

type Store struct {
	mu            sync.RWMutex
	appointments  map[string]model.Appointment
	patients      map[string]model.Patient
	notifications map[string]model.Notification
	now           func() time.Time
}

func NewStore() *Store {
	return &Store{
		appointments:  make(map[string]model.Appointment),
		patients:      make(map[string]model.Patient),
		notifications: make(map[string]model.Notification),
		now:           time.Now,
	}
}

func (s *Store) Appointments() repository.AppointmentRepository { return appointmentRepo{s} }
func (s *Store) Patients() repository.PatientRepository         { return patientRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository {
	return notificationRepo{s}
}

func key(tenantID, id string) string { return tenantID + "/" + id }

type appointmentRepo struct{ s *Store }

func (r appointmentRepo) Create(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if _, exists := r.s.appointments[key(a.TenantID, a.ID)]; exists {
		return fmt.Errorf("appointment %s already exists", a.ID)
	}
	now := r.s.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.s.appointments[key(a.TenantID, a.ID)] = *a
	return nil
}

func (r appointmentRepo) Get(_ context.Context, tenantID, id string) (*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.appointments[key(tenantID, id)]
	if !ok {
		return nil, fmt.Errorf("appointment %s: %w", id, repository.ErrNotFound)
	}
	return &a, nil
}

func (r appointmentRepo) Update(_ context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := key(a.TenantID, a.ID)
	if _, ok := r.s.appointments[k]; !ok {
		return fmt.Errorf("appointment %s: %w", a.ID, repository.ErrNotFound)
	}
	a.UpdatedAt = r.s.now().UTC()
	r.s.appointments[k] = *a
	return nil
}

func (r appointmentRepo) Delete(_ context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := key(tenantID, id)
	if _, ok := r.s.appointments[k]; !ok {
		return fmt.Errorf("appointment %s: %w", id, repository.ErrNotFound)
	}
	delete(r.s.appointments, k)
	return nil
}

func (r appointmentRepo) List(_ context.Context, tenantID string, f *model.AppointmentFilters) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if a.TenantID != tenantID {
			continue
		}
		if f != nil {
			if f.PatientID != "" && a.PatientID != f.PatientID {
				continue
			}
			if !f.From.IsZero() && a.StartTime.Before(f.From) {
				continue
			}
			if !f.To.IsZero() && !a.StartTime.Before(f.To) {
				continue
			}
		}
		a := a
		out = append(out, &a)
	}
	sortAppointments(out)
	return out, nil
}

func (r appointmentRepo) ListStartingBetween(_ context.Context, from, to time.Time) ([]*model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Appointment{}
	for _, a := range r.s.appointments {
		if !a.StartTime.Before(from) && a.StartTime.Before(to) {
			a := a
			out = append(out, &a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (r appointmentRepo) PatientStats(_ context.Context, tenantID string, patientIDs []string, now time.Time) (map[string]model.PatientStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	wanted := make(map[string]bool, len(patientIDs))
	for _, id := range patientIDs {
		wanted[id] = true
	}

	stats := make(map[string]model.PatientStats)
	for _, a := range r.s.appointments {
		if a.TenantID != tenantID || (len(wanted) > 0 && !wanted[a.PatientID]) {
			continue
		}
		st := stats[a.PatientID]
		st.PatientID = a.PatientID
		st.TotalAppointments++
		if !a.StartTime.After(now) && (st.LastVisit == nil || a.StartTime.After(*st.LastVisit)) {
			t := a.StartTime
			st.LastVisit = &t
		}
		stats[a.PatientID] = st
	}
	return stats, nil
}

func sortAppointments(out []*model.Appointment) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
}

type patientRepo struct{ s *Store }

func (r patientRepo) Create(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := r.s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	stored := *p
	stored.LastVisit, stored.TotalAppointments = nil, 0
	r.s.patients[key(p.TenantID, p.ID)] = stored
	return nil
}

func (r patientRepo) Get(_ context.Context, tenantID, id string) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.patients[key(tenantID, id)]
	if !ok {
		return nil, fmt.Errorf("patient %s: %w", id, repository.ErrNotFound)
	}
	return &p, nil
}

func (r patientRepo) Update(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := key(p.TenantID, p.ID)
	if _, ok := r.s.patients[k]; !ok {
		return fmt.Errorf("patient %s: %w", p.ID, repository.ErrNotFound)
	}
	p.UpdatedAt = r.s.now().UTC()
	stored := *p
	stored.LastVisit, stored.TotalAppointments = nil, 0
	r.s.patients[k] = stored
	return nil
}

func (r patientRepo) Delete(_ context.Context, tenantID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := key(tenantID, id)
	if _, ok := r.s.patients[k]; !ok {
		return fmt.Errorf("patient %s: %w", id, repository.ErrNotFound)
	}
	delete(r.s.patients, k)
	return nil
}

func (r patientRepo) List(_ context.Context, tenantID string, f *model.PatientFilters) ([]*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	term := ""
	if f != nil {
		term = strings.ToLower(strings.TrimSpace(f.SearchTerm))
	}
	out := []*model.Patient{}
	for _, p := range r.s.patients {
		if p.TenantID != tenantID {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Name+" "+p.Phone+" "+p.Email), term) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Status == "" {
		n.Status = model.NotificationStatusPending
	}
	now := r.s.now().UTC()
	n.CreatedAt, n.UpdatedAt = now, now
	r.s.notifications[key(n.TenantID, n.ID)] = *n
	return nil
}

func (r notificationRepo) Update(_ context.Context, n *model.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := key(n.TenantID, n.ID)
	if _, ok := r.s.notifications[k]; !ok {
		return fmt.Errorf("notification %s: %w", n.ID, repository.ErrNotFound)
	}
	n.UpdatedAt = r.s.now().UTC()
	r.s.notifications[k] = *n
	return nil
}

func (r notificationRepo) ListByAppointment(_ context.Context, tenantID, appointmentID string) ([]*model.Notification, error) {
	return r.list(tenantID, func(n model.Notification) bool { return n.AppointmentID == appointmentID }, 0), nil
}

func (r notificationRepo) List(_ context.Context, tenantID string, limit int) ([]*model.Notification, error) {
	return r.list(tenantID, func(model.Notification) bool { return true }, limit), nil
}

func (r notificationRepo) list(tenantID string, keep func(model.Notification) bool, limit int) []*model.Notification {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []*model.Notification{}
	for _, n := range r.s.notifications {
		if n.TenantID == tenantID && keep(n) {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
