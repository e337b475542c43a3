package reminder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/internal/slotgrid"
	apperrors "github.com/jwalitptl/chairside/pkg/errors"
	"github.com/jwalitptl/chairside/pkg/logger"
)

// Sender delivers a composed notification.
type Sender interface {
	Send(ctx context.Context, n *model.Notification) error
}

// Defaults fill in clinic details the dentist has not set up yet.
type Defaults struct {
	ClinicName string
	Phone      string
}

type Service struct {
	appts    repository.AppointmentRepository
	sender   Sender
	defaults Defaults
	loc      *time.Location
	logger   *logger.Logger
	clock    slotgrid.Clock
}

func NewService(appts repository.AppointmentRepository, sender Sender, defaults Defaults, loc *time.Location, clock slotgrid.Clock, log *logger.Logger) *Service {
	if defaults.ClinicName == "" {
		defaults.ClinicName = "Your Clinic"
	}
	if defaults.Phone == "" {
		defaults.Phone = "your contact number"
	}
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = slotgrid.SystemClock
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		appts:    appts,
		sender:   sender,
		defaults: defaults,
		loc:      loc,
		logger:   log,
		clock:    clock,
	}
}

// Compose renders the patient-facing reminder text.
func (s *Service) Compose(appt *model.Appointment, tenant model.Tenant) string {
	clinic := strings.TrimSpace(tenant.ClinicName)
	if clinic == "" {
		clinic = s.defaults.ClinicName
	}
	phone := strings.TrimSpace(tenant.Phone)
	if phone == "" {
		phone = s.defaults.Phone
	}
	start := appt.StartTime.In(s.loc)
	return fmt.Sprintf("Hi %s, this is a reminder for your appointment at %s on %s at %s. Please call %s to reschedule. We look forward to seeing you!",
		appt.PatientName, clinic, LongDate(start), start.Format("3:04 PM"), phone)
}

// Cards lists a reminder card for every appointment, newest first.
func (s *Service) Cards(ctx context.Context, tenant model.Tenant) ([]model.ReminderCard, error) {
	appts, err := s.appts.List(ctx, tenant.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	sort.SliceStable(appts, func(i, j int) bool {
		return appts[i].StartTime.After(appts[j].StartTime)
	})

	cards := make([]model.ReminderCard, 0, len(appts))
	for _, a := range appts {
		cards = append(cards, model.ReminderCard{
			AppointmentID: a.ID,
			PatientName:   a.PatientName,
			PatientPhone:  a.PatientPhone,
			StartTime:     a.StartTime,
			Body:          s.Compose(a, tenant),
		})
	}
	return cards, nil
}

// Send texts the reminder for one appointment now.
func (s *Service) Send(ctx context.Context, tenant model.Tenant, appointmentID string) (*model.Notification, error) {
	appt, err := s.appts.Get(ctx, tenant.ID, appointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("appointment", err)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	if appt.PatientPhone == "" {
		return nil, apperrors.BadRequest("appointment has no patient phone number", nil)
	}

	n := &model.Notification{
		TenantID:      tenant.ID,
		AppointmentID: appt.ID,
		Channel:       model.ChannelSMS,
		Recipient:     appt.PatientPhone,
		Content:       s.Compose(appt, tenant),
	}
	if err := s.sender.Send(ctx, n); err != nil {
		return n, apperrors.Unavailable("failed to send reminder", err)
	}
	return n, nil
}

// Deliver handles a scheduled reminder. Tasks for deleted, moved or already
// started appointments are dropped without error.
func (s *Service) Deliver(ctx context.Context, p model.ReminderPayload) error {
	appt, err := s.appts.Get(ctx, p.TenantID, p.AppointmentID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.WithContext(ctx).Debug("reminder dropped, appointment gone", "appointment_id", p.AppointmentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get appointment: %w", err)
	}
	if !appt.StartTime.Equal(p.StartTime) {
		s.logger.WithContext(ctx).Debug("reminder dropped, appointment moved", "appointment_id", p.AppointmentID)
		return nil
	}
	if !appt.StartTime.After(s.clock.Now()) {
		return nil
	}

	tenant := model.Tenant{ID: p.TenantID, ClinicName: p.ClinicName, Phone: p.ClinicPhone}
	_, err = s.Send(ctx, tenant, appt.ID)
	return err
}

// LongDate formats like "June 12th, 2024".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%s %d%s, %d", t.Month(), t.Day(), ordinal(t.Day()), t.Year())
}

func ordinal(n int) string {
	if n%100 >= 11 && n%100 <= 13 {
		return "th"
	}
	switch n % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	}
	return "th"
}
