package model

import (
	"time"
)

// SlotCandidate is one entry of availableTimeSlots on the recommendation
// boundary. Times are RFC 3339 strings with an offset.
type SlotCandidate struct {
	StartTime string `json:"startTime" validate:"required,rfc3339"`
	EndTime   string `json:"endTime" validate:"required,rfc3339"`
}

// SuggestionRequest is the input contract of the recommendation adapter.
type SuggestionRequest struct {
	ClientHistory                   string          `json:"clientHistory" validate:"required"`
	AppointmentNotes                string          `json:"appointmentNotes" validate:"required"`
	DesiredAppointmentLengthMinutes int             `json:"desiredAppointmentLengthMinutes" validate:"gt=0"`
	AvailableTimeSlots              []SlotCandidate `json:"availableTimeSlots" validate:"dive"`
}

// SlotSuggestion is one entry of the adapter's output.
type SlotSuggestion struct {
	StartTime string `json:"startTime" validate:"required,rfc3339"`
	EndTime   string `json:"endTime" validate:"required,rfc3339"`
	Reason    string `json:"reason" validate:"required"`
}

// Candidate drops the reason, giving a valid input entry.
func (s SlotSuggestion) Candidate() SlotCandidate {
	return SlotCandidate{StartTime: s.StartTime, EndTime: s.EndTime}
}

// CandidatesFromSlots renders slots in the boundary's timestamp format.
func CandidatesFromSlots(slots []TimeSlot) []SlotCandidate {
	out := make([]SlotCandidate, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotCandidate{
			StartTime: s.Start.Format(time.RFC3339),
			EndTime:   s.End.Format(time.RFC3339),
		})
	}
	return out
}

// SuggestSlotsRequest is what the API accepts; the service fills in the
// available slots from the grid.
type SuggestSlotsRequest struct {
	Date             string `json:"date" binding:"required,datetime=2006-01-02"`
	PatientID        string `json:"patient_id"`
	ClientHistory    string `json:"client_history"`
	AppointmentNotes string `json:"appointment_notes"`
	DurationMinutes  int    `json:"duration_minutes" binding:"omitempty,gt=0"`
}

// SuggestSlotsResponse is advisory: the slot still has to be booked through
// the normal appointment path.
type SuggestSlotsResponse struct {
	Suggestions []SlotSuggestion `json:"suggestions"`
	Available   []TimeSlot       `json:"available"`
	Degraded    bool             `json:"degraded"`
	Message     string           `json:"message,omitempty"`
}
