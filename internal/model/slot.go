package model

import (
	"time"
)

// TimeSlot is a candidate or occupied interval. It has no identity.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WorkingHours bounds every generated slot, uniformly across days.
type WorkingHours struct {
	StartHour int `json:"start_hour" mapstructure:"start_hour"`
	EndHour   int `json:"end_hour" mapstructure:"end_hour"`
}
