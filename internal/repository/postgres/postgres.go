package postgres

import (
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

var dialect = goqu.Dialect("postgres")

type appointmentRepository struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

type patientRepository struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

type notificationRepository struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

func NewAppointmentRepository(db *sqlx.DB, m *metrics.Metrics) repository.AppointmentRepository {
	return &appointmentRepository{db: db, metrics: m}
}

func NewPatientRepository(db *sqlx.DB, m *metrics.Metrics) repository.PatientRepository {
	return &patientRepository{db: db, metrics: m}
}

func NewNotificationRepository(db *sqlx.DB, m *metrics.Metrics) repository.NotificationRepository {
	return &notificationRepository{db: db, metrics: m}
}

func observe(m *metrics.Metrics, operation string, start time.Time, err *error) {
	m.ObserveDatabase(operation, *err, time.Since(start).Seconds())
}
