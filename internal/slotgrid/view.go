package slotgrid

import (
	"fmt"
	"time"

	"github.com/jwalitptl/chairside/internal/model"
)

type State int

const (
	StateFree State = iota
	StatePast
	StateAnchored
	StateSuppressed
)

var stateNames = map[State]string{
	StateFree:       "free",
	StatePast:       "past",
	StateAnchored:   "anchored",
	StateSuppressed: "suppressed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Cell is one slot of a rendered day. Appointments is only set on anchored
// cells; CoveredBy names the appointment whose span hides a suppressed cell.
type Cell struct {
	Slot         model.TimeSlot      `json:"slot"`
	State        State               `json:"state"`
	Bookable     bool                `json:"bookable"`
	Appointments []model.Appointment `json:"appointments,omitempty"`
	CoveredBy    string              `json:"covered_by,omitempty"`
}

// RowSpan is how many rows the cell occupies when drawn, zero when hidden.
func (c Cell) RowSpan(g *Grid) int {
	switch c.State {
	case StateSuppressed:
		return 0
	case StateAnchored:
		max := 1
		for _, a := range c.Appointments {
			if s := g.Span(a); s > max {
				max = s
			}
		}
		return max
	}
	return 1
}

// Conflict records an appointment that starts on a cell another appointment
// already occupies.
type Conflict struct {
	AppointmentID string    `json:"appointment_id"`
	With          string    `json:"with"`
	Start         time.Time `json:"start"`
}

type DayView struct {
	Date      time.Time  `json:"date"`
	Cells     []Cell     `json:"cells"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
	// Unplaced lists same-day appointments whose start is not a slot boundary.
	Unplaced []string `json:"unplaced,omitempty"`
}

type WeekView struct {
	Start time.Time  `json:"start"`
	Days  [7]DayView `json:"days"`
}
