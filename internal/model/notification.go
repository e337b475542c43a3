package model

import (
	"time"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// NotificationsCollection is the in-app channel suffix, see ChangeChannel.
const NotificationsCollection = "notifications"

const (
	ChannelSMS   = "sms"
	ChannelEmail = "email"
	ChannelPush  = "push"
	ChannelInApp = "in_app"
)

type Notification struct {
	ID            string             `db:"id" json:"id"`
	TenantID      string             `db:"tenant_id" json:"-"`
	AppointmentID string             `db:"appointment_id" json:"appointment_id,omitempty"`
	Channel       string             `db:"channel" json:"channel"`
	Recipient     string             `db:"recipient" json:"recipient"`
	Subject       string             `db:"subject" json:"subject,omitempty"`
	Content       string             `db:"content" json:"content"`
	Status        NotificationStatus `db:"status" json:"status"`
	LastError     string             `db:"last_error" json:"last_error,omitempty"`
	SentAt        *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at" json:"updated_at"`
}

// ReminderCard is one entry of the reminders screen.
type ReminderCard struct {
	AppointmentID string    `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	PatientPhone  string    `json:"patient_phone"`
	StartTime     time.Time `json:"start_time"`
	Body          string    `json:"body"`
}

// ReminderPayload is the scheduled reminder task body.
// StartTime is the appointment start at enqueue time; a task whose start no
// longer matches the stored appointment is stale and dropped.
type ReminderPayload struct {
	TenantID      string    `json:"tenant_id"`
	ClinicName    string    `json:"clinic_name,omitempty"`
	ClinicPhone   string    `json:"clinic_phone,omitempty"`
	AppointmentID string    `json:"appointment_id"`
	StartTime     time.Time `json:"start_time"`
}

// UpcomingAlert is published in-app when an appointment is about to start.
type UpcomingAlert struct {
	TenantID      string    `json:"tenant_id"`
	AppointmentID string    `json:"appointment_id"`
	PatientName   string    `json:"patient_name"`
	Service       string    `json:"service"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}
