package slotgrid

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jwalitptl/chairside/internal/model"
)

var (
	ErrInvalidConfig = errors.New("invalid slot grid configuration")

	ErrNotOnBoundary = errors.New("start time is not on a slot boundary")
	ErrOutsideHours  = errors.New("start time is outside working hours")
	ErrSlotInPast    = errors.New("slot is in the past")
	ErrSlotOccupied  = errors.New("slot is occupied")
)

type Config struct {
	WorkingHours model.WorkingHours
	SlotMinutes  int
	// Location pins the clinic's wall clock. When nil, the location of the
	// day passed to each call is used.
	Location *time.Location
}

// Grid is immutable after New and safe for concurrent use.
type Grid struct {
	cfg     Config
	slotDur time.Duration
	count   int
}

func New(cfg Config) (*Grid, error) {
	h := cfg.WorkingHours
	if cfg.SlotMinutes <= 0 {
		return nil, fmt.Errorf("%w: slot duration must be positive, got %d", ErrInvalidConfig, cfg.SlotMinutes)
	}
	if h.StartHour < 0 || h.EndHour > 24 {
		return nil, fmt.Errorf("%w: working hours must lie within 0..24, got %d..%d", ErrInvalidConfig, h.StartHour, h.EndHour)
	}
	if h.StartHour >= h.EndHour {
		return nil, fmt.Errorf("%w: start hour %d must be before end hour %d", ErrInvalidConfig, h.StartHour, h.EndHour)
	}
	shift := (h.EndHour - h.StartHour) * 60
	if shift%cfg.SlotMinutes != 0 {
		return nil, fmt.Errorf("%w: %d minute slots do not divide a %d minute day", ErrInvalidConfig, cfg.SlotMinutes, shift)
	}

	return &Grid{
		cfg:     cfg,
		slotDur: time.Duration(cfg.SlotMinutes) * time.Minute,
		count:   shift / cfg.SlotMinutes,
	}, nil
}

// Count is the number of slots per day.
func (g *Grid) Count() int { return g.count }

func (g *Grid) SlotDuration() time.Duration { return g.slotDur }

func (g *Grid) WorkingHours() model.WorkingHours { return g.cfg.WorkingHours }

func (g *Grid) location(day time.Time) *time.Location {
	if g.cfg.Location != nil {
		return g.cfg.Location
	}
	return day.Location()
}

// DayBounds is the calendar day containing t as the half-open range
// [midnight, next midnight) in the clinic's location.
func (g *Grid) DayBounds(t time.Time) (time.Time, time.Time) {
	loc := g.location(t)
	d := t.In(loc)
	from := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	return from, time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
}

func (g *Grid) dayStart(day time.Time) time.Time {
	loc := g.location(day)
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), g.cfg.WorkingHours.StartHour, 0, 0, 0, loc)
}

// Slots lists every slot of the day in ascending order. Only the calendar
// date of day is used.
func (g *Grid) Slots(day time.Time) []model.TimeSlot {
	start := g.dayStart(day)
	slots := make([]model.TimeSlot, g.count)
	for i := range slots {
		s := start.Add(time.Duration(i) * g.slotDur)
		slots[i] = model.TimeSlot{Start: s, End: s.Add(g.slotDur)}
	}
	return slots
}

// Index reports which slot t starts, on t's own calendar day.
func (g *Grid) Index(t time.Time) (int, bool) {
	return g.indexOn(t, t)
}

func (g *Grid) indexOn(day, t time.Time) (int, bool) {
	if !sameDate(day, t, g.location(day)) {
		return 0, false
	}
	off := t.Sub(g.dayStart(day))
	if off < 0 || off%g.slotDur != 0 {
		return 0, false
	}
	i := int(off / g.slotDur)
	if i >= g.count {
		return 0, false
	}
	return i, true
}

// Span is the number of slots an appointment covers, never less than one.
func (g *Grid) Span(a model.Appointment) int {
	d := a.Duration()
	if d <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(d) / float64(g.slotDur)))
	if n < 1 {
		return 1
	}
	return n
}

// Day renders one day. Cells come back in ascending start order.
func (g *Grid) Day(day time.Time, appts []model.Appointment, now time.Time) DayView {
	slots := g.Slots(day)
	view := DayView{
		Date:  slots[0].Start,
		Cells: make([]Cell, len(slots)),
	}
	for i, s := range slots {
		view.Cells[i] = Cell{Slot: s, State: StateFree}
	}

	loc := g.location(day)
	todays := make([]model.Appointment, 0, len(appts))
	for _, a := range appts {
		if sameDate(day, a.StartTime, loc) {
			todays = append(todays, a)
		}
	}
	sort.SliceStable(todays, func(i, j int) bool {
		if todays[i].StartTime.Equal(todays[j].StartTime) {
			return todays[i].ID < todays[j].ID
		}
		return todays[i].StartTime.Before(todays[j].StartTime)
	})

	for _, a := range todays {
		idx, ok := g.indexOn(day, a.StartTime)
		if !ok {
			view.Unplaced = append(view.Unplaced, a.ID)
			continue
		}

		c := &view.Cells[idx]
		switch c.State {
		case StateSuppressed:
			view.Conflicts = append(view.Conflicts, Conflict{AppointmentID: a.ID, With: c.CoveredBy, Start: c.Slot.Start})
		case StateAnchored:
			view.Conflicts = append(view.Conflicts, Conflict{AppointmentID: a.ID, With: c.Appointments[0].ID, Start: c.Slot.Start})
		}
		c.State = StateAnchored
		c.Appointments = append(c.Appointments, a)

		for k := 1; k < g.Span(a) && idx+k < len(view.Cells); k++ {
			cc := &view.Cells[idx+k]
			if cc.State == StateAnchored {
				continue
			}
			cc.State = StateSuppressed
			if cc.CoveredBy == "" {
				cc.CoveredBy = a.ID
			}
		}
	}

	for i := range view.Cells {
		c := &view.Cells[i]
		if c.State == StateFree && c.Slot.Start.Before(now) {
			c.State = StatePast
		}
		c.Bookable = c.State == StateFree
	}
	return view
}

// Week renders the Monday-started week containing ref. The clock is read
// once so every day agrees on "now".
func (g *Grid) Week(ref time.Time, appts []model.Appointment, clock Clock) WeekView {
	now := clock.Now()
	loc := g.location(ref)
	r := ref.In(loc)
	offset := (int(r.Weekday()) + 6) % 7
	monday := time.Date(r.Year(), r.Month(), r.Day()-offset, 0, 0, 0, 0, loc)

	week := WeekView{Start: monday}
	for i := range week.Days {
		day := time.Date(monday.Year(), monday.Month(), monday.Day()+i, 0, 0, 0, 0, loc)
		week.Days[i] = g.Day(day, appts, now)
	}
	return week
}

// Available lists the bookable slots of a day.
func (g *Grid) Available(day time.Time, appts []model.Appointment, now time.Time) []model.TimeSlot {
	view := g.Day(day, appts, now)
	out := make([]model.TimeSlot, 0, len(view.Cells))
	for _, c := range view.Cells {
		if c.Bookable {
			out = append(out, c.Slot)
		}
	}
	return out
}

// CheckBookable reports why start cannot receive a new appointment. appts
// must not include the appointment being moved.
func (g *Grid) CheckBookable(start time.Time, appts []model.Appointment, now time.Time) error {
	idx, ok := g.Index(start)
	if !ok {
		if _, inHours := g.hourIndex(start); !inHours {
			return ErrOutsideHours
		}
		return ErrNotOnBoundary
	}
	cell := g.Day(start, appts, now).Cells[idx]
	switch cell.State {
	case StatePast:
		return ErrSlotInPast
	case StateAnchored, StateSuppressed:
		return ErrSlotOccupied
	}
	return nil
}

func (g *Grid) hourIndex(t time.Time) (time.Duration, bool) {
	off := t.Sub(g.dayStart(t))
	return off, off >= 0 && off < time.Duration(g.count)*g.slotDur
}

func sameDate(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
