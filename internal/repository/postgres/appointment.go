package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
)

var appointmentColumns = []interface{}{
	"id", "tenant_id", "patient_id", "patient_name", "patient_phone",
	"start_time", "end_time", "service", "notes",
	"created_at", "updated_at",
}

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) (err error) {
	defer observe(r.metrics, "appointments.create", time.Now(), &err)

	query := `
		INSERT INTO appointments (
			id, tenant_id, patient_id, patient_name, patient_phone,
			start_time, end_time, service, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if appointment.ID == "" {
		appointment.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.TenantID,
		appointment.PatientID,
		appointment.PatientName,
		appointment.PatientPhone,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Service,
		appointment.Notes,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, tenantID, id string) (_ *model.Appointment, err error) {
	defer observe(r.metrics, "appointments.get", time.Now(), &err)

	query := `
		SELECT id, tenant_id, patient_id, patient_name, patient_phone,
			   start_time, end_time, service, notes,
			   created_at, updated_at
		FROM appointments
		WHERE tenant_id = $1 AND id = $2
	`
	var appointment model.Appointment
	err = r.db.GetContext(ctx, &appointment, query, tenantID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("appointment %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) (err error) {
	defer observe(r.metrics, "appointments.update", time.Now(), &err)

	query := `
		UPDATE appointments
		SET patient_id = $1, patient_name = $2, patient_phone = $3,
			start_time = $4, end_time = $5, service = $6, notes = $7, updated_at = $8
		WHERE tenant_id = $9 AND id = $10
	`
	appointment.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		appointment.PatientID,
		appointment.PatientName,
		appointment.PatientPhone,
		appointment.StartTime,
		appointment.EndTime,
		appointment.Service,
		appointment.Notes,
		appointment.UpdatedAt,
		appointment.TenantID,
		appointment.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment %s: %w", appointment.ID, repository.ErrNotFound)
	}

	return nil
}

func (r *appointmentRepository) Delete(ctx context.Context, tenantID, id string) (err error) {
	defer observe(r.metrics, "appointments.delete", time.Now(), &err)

	result, err := r.db.ExecContext(ctx, `DELETE FROM appointments WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("appointment %s: %w", id, repository.ErrNotFound)
	}

	return nil
}

func (r *appointmentRepository) List(ctx context.Context, tenantID string, filters *model.AppointmentFilters) (_ []*model.Appointment, err error) {
	defer observe(r.metrics, "appointments.list", time.Now(), &err)

	ds := dialect.From("appointments").Prepared(true).
		Select(appointmentColumns...).
		Where(goqu.C("tenant_id").Eq(tenantID))

	if filters != nil {
		if filters.PatientID != "" {
			ds = ds.Where(goqu.C("patient_id").Eq(filters.PatientID))
		}
		if !filters.From.IsZero() {
			ds = ds.Where(goqu.C("start_time").Gte(filters.From))
		}
		if !filters.To.IsZero() {
			ds = ds.Where(goqu.C("start_time").Lt(filters.To))
		}
	}

	query, args, err := ds.Order(goqu.C("start_time").Asc(), goqu.C("id").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build appointment query: %w", err)
	}

	appointments := []*model.Appointment{}
	if err = r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) ListStartingBetween(ctx context.Context, from, to time.Time) (_ []*model.Appointment, err error) {
	defer observe(r.metrics, "appointments.list_starting", time.Now(), &err)

	query := `
		SELECT id, tenant_id, patient_id, patient_name, patient_phone,
			   start_time, end_time, service, notes,
			   created_at, updated_at
		FROM appointments
		WHERE start_time >= $1 AND start_time < $2
		ORDER BY start_time ASC
	`
	appointments := []*model.Appointment{}
	if err = r.db.SelectContext(ctx, &appointments, query, from, to); err != nil {
		return nil, fmt.Errorf("failed to list upcoming appointments: %w", err)
	}
	return appointments, nil
}

func (r *appointmentRepository) PatientStats(ctx context.Context, tenantID string, patientIDs []string, now time.Time) (_ map[string]model.PatientStats, err error) {
	defer observe(r.metrics, "appointments.patient_stats", time.Now(), &err)

	ds := dialect.From("appointments").Prepared(true).
		Select(
			goqu.C("patient_id"),
			goqu.COUNT("*").As("total_appointments"),
			goqu.L("MAX(start_time) FILTER (WHERE start_time <= ?)", now).As("last_visit"),
		).
		Where(goqu.C("tenant_id").Eq(tenantID)).
		GroupBy("patient_id")
	if len(patientIDs) > 0 {
		ds = ds.Where(goqu.C("patient_id").In(patientIDs))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build patient stats query: %w", err)
	}

	var rows []model.PatientStats
	if err = r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to compute patient stats: %w", err)
	}

	stats := make(map[string]model.PatientStats, len(rows))
	for _, s := range rows {
		stats[s.PatientID] = s
	}
	return stats, nil
}
