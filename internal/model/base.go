package model

import (
	"time"
)

// Base contains common fields for all models
type Base struct {
	ID        string    `json:"id" db:"id"`
	TenantID  string    `json:"-" db:"tenant_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Tenant is the dentist account that owns appointments and patients.
type Tenant struct {
	ID         string `json:"id"`
	ClinicName string `json:"clinic_name"`
	Phone      string `json:"phone"`
}

// JSONMap represents a generic JSON object
type JSONMap map[string]interface{}
