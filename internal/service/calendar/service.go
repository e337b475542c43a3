package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/internal/slotgrid"
)

// DateLayout is the wire format of a calendar date.
const DateLayout = "2006-01-02"

type Service struct {
	appts  repository.AppointmentRepository
	grid   *slotgrid.Grid
	clock  slotgrid.Clock
	loc    *time.Location
	window time.Duration
}

// NewService builds the calendar read side. window bounds the upcoming panel.
func NewService(appts repository.AppointmentRepository, grid *slotgrid.Grid, loc *time.Location, window time.Duration, clock slotgrid.Clock) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if clock == nil {
		clock = slotgrid.SystemClock
	}
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &Service{
		appts:  appts,
		grid:   grid,
		clock:  clock,
		loc:    loc,
		window: window,
	}
}

// ParseDate reads a YYYY-MM-DD date in the clinic's location. An empty
// string is today.
func (s *Service) ParseDate(value string) (time.Time, error) {
	if value == "" {
		n := s.clock.Now().In(s.loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, s.loc), nil
	}
	d, err := time.ParseInLocation(DateLayout, value, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return d, nil
}

func (s *Service) Week(ctx context.Context, tenantID string, ref time.Time) (*slotgrid.WeekView, error) {
	from, to := s.WeekRange(ref)
	appts, err := s.appts.List(ctx, tenantID, &model.AppointmentFilters{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return s.RenderWeek(ref, appts), nil
}

// WeekRange is the Monday-started week containing ref as [from, to).
func (s *Service) WeekRange(ref time.Time) (time.Time, time.Time) {
	from, _ := s.grid.DayBounds(ref)
	offset := (int(from.Weekday()) + 6) % 7
	from = from.AddDate(0, 0, -offset)
	return from, from.AddDate(0, 0, 7)
}

// RenderWeek classifies an already loaded week, e.g. a live snapshot.
func (s *Service) RenderWeek(ref time.Time, appts []*model.Appointment) *slotgrid.WeekView {
	week := s.grid.Week(ref, values(appts), s.clock)
	return &week
}

func (s *Service) Day(ctx context.Context, tenantID string, day time.Time) (*slotgrid.DayView, error) {
	from, to := s.grid.DayBounds(day)
	appts, err := s.load(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	view := s.grid.Day(day, appts, s.clock.Now())
	return &view, nil
}

// Slots lists the start options of a day, booked or not.
func (s *Service) Slots(day time.Time) []model.TimeSlot {
	return s.grid.Slots(day)
}

func (s *Service) Available(ctx context.Context, tenantID string, day time.Time) ([]model.TimeSlot, error) {
	from, to := s.grid.DayBounds(day)
	appts, err := s.load(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	return s.grid.Available(day, appts, s.clock.Now()), nil
}

// Today is the current day's agenda in ascending start order.
func (s *Service) Today(ctx context.Context, tenantID string) ([]*model.Appointment, error) {
	from, to := s.grid.DayBounds(s.clock.Now().In(s.loc))
	appts, err := s.appts.List(ctx, tenantID, &model.AppointmentFilters{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to list today's appointments: %w", err)
	}
	return appts, nil
}

// Upcoming lists appointments starting within the next window.
func (s *Service) Upcoming(ctx context.Context, tenantID string) ([]*model.Appointment, error) {
	now := s.clock.Now()
	appts, err := s.appts.List(ctx, tenantID, &model.AppointmentFilters{From: now, To: now.Add(s.window)})
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) load(ctx context.Context, tenantID string, from, to time.Time) ([]model.Appointment, error) {
	appts, err := s.appts.List(ctx, tenantID, &model.AppointmentFilters{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return values(appts), nil
}

func values(appts []*model.Appointment) []model.Appointment {
	out := make([]model.Appointment, len(appts))
	for i, a := range appts {
		out[i] = *a
	}
	return out
}
