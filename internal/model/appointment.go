package model

import (
	"fmt"
	"time"
)

type Appointment struct {
	Base
	PatientID    string    `db:"patient_id" json:"patient_id"`
	PatientName  string    `db:"patient_name" json:"patient_name"`
	PatientPhone string    `db:"patient_phone" json:"patient_phone"`
	StartTime    time.Time `db:"start_time" json:"start_time"`
	EndTime      time.Time `db:"end_time" json:"end_time"`
	Service      string    `db:"service" json:"service"`
	Notes        string    `db:"notes" json:"notes,omitempty"`
}

// Duration is EndTime - StartTime.
func (a *Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// Validate checks the appointment's own invariants.
func (a *Appointment) Validate() error {
	if a.PatientID == "" {
		return fmt.Errorf("patient reference is required")
	}
	if a.StartTime.IsZero() || a.EndTime.IsZero() {
		return fmt.Errorf("start and end time are required")
	}
	if !a.EndTime.After(a.StartTime) {
		return fmt.Errorf("end time must be after start time")
	}
	return nil
}

type CreateAppointmentRequest struct {
	PatientID  string                `json:"patient_id" binding:"required_without=NewPatient"`
	NewPatient *CreatePatientRequest `json:"new_patient" binding:"omitempty"`
	StartTime  time.Time             `json:"start_time" binding:"required"`
	Service    string                `json:"service" binding:"required"`
	Notes      string                `json:"notes" binding:"max=1000"`
}

type UpdateAppointmentRequest struct {
	PatientID *string    `json:"patient_id"`
	StartTime *time.Time `json:"start_time"`
	Service   *string    `json:"service"`
	Notes     *string    `json:"notes" binding:"omitempty,max=1000"`
}

type AppointmentFilters struct {
	PatientID string
	From      time.Time
	To        time.Time
}
