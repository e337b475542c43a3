package model

import (
	"time"
)

// Patient is a roster entry. LastVisit and TotalAppointments are derived from
// the tenant's appointments when read through the patient service and are
// never stored.
type Patient struct {
	Base
	Name              string     `db:"name" json:"name"`
	Phone             string     `db:"phone" json:"phone"`
	Email             string     `db:"email" json:"email,omitempty"`
	LastVisit         *time.Time `db:"-" json:"last_visit,omitempty"`
	TotalAppointments int        `db:"-" json:"total_appointments"`
}

type CreatePatientRequest struct {
	Name  string `json:"name" binding:"required,min=2"`
	Phone string `json:"phone" binding:"required,min=10"`
	Email string `json:"email" binding:"omitempty,email"`
}

type UpdatePatientRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=2"`
	Phone *string `json:"phone" binding:"omitempty,min=10"`
	Email *string `json:"email" binding:"omitempty,email"`
}

type PatientFilters struct {
	SearchTerm string
}

// PatientStats is the appointment-derived part of a patient record.
type PatientStats struct {
	PatientID         string     `db:"patient_id"`
	TotalAppointments int        `db:"total_appointments"`
	LastVisit         *time.Time `db:"last_visit"`
}

// Apply copies derived counters onto p.
func (s PatientStats) Apply(p *Patient) {
	p.TotalAppointments = s.TotalAppointments
	p.LastVisit = s.LastVisit
}
