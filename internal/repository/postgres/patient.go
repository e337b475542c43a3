package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
)

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) (err error) {
	defer observe(r.metrics, "patients.create", time.Now(), &err)

	query := `
		INSERT INTO patients (id, tenant_id, name, phone, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if patient.ID == "" {
		patient.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, query,
		patient.ID,
		patient.TenantID,
		patient.Name,
		patient.Phone,
		patient.Email,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, tenantID, id string) (_ *model.Patient, err error) {
	defer observe(r.metrics, "patients.get", time.Now(), &err)

	query := `
		SELECT id, tenant_id, name, phone, email, created_at, updated_at
		FROM patients
		WHERE tenant_id = $1 AND id = $2
	`
	var patient model.Patient
	err = r.db.GetContext(ctx, &patient, query, tenantID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("patient %s: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) (err error) {
	defer observe(r.metrics, "patients.update", time.Now(), &err)

	query := `
		UPDATE patients
		SET name = $1, phone = $2, email = $3, updated_at = $4
		WHERE tenant_id = $5 AND id = $6
	`
	patient.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, query,
		patient.Name, patient.Phone, patient.Email, patient.UpdatedAt,
		patient.TenantID, patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("patient %s: %w", patient.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, tenantID, id string) (err error) {
	defer observe(r.metrics, "patients.delete", time.Now(), &err)

	result, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("patient %s: %w", id, repository.ErrNotFound)
	}
	return nil
}

func (r *patientRepository) List(ctx context.Context, tenantID string, filters *model.PatientFilters) (_ []*model.Patient, err error) {
	defer observe(r.metrics, "patients.list", time.Now(), &err)

	ds := dialect.From("patients").Prepared(true).
		Select("id", "tenant_id", "name", "phone", "email", "created_at", "updated_at").
		Where(goqu.C("tenant_id").Eq(tenantID))

	if filters != nil && strings.TrimSpace(filters.SearchTerm) != "" {
		term := "%" + strings.TrimSpace(filters.SearchTerm) + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("name").ILike(term),
			goqu.C("phone").ILike(term),
			goqu.C("email").ILike(term),
		))
	}

	query, args, err := ds.Order(goqu.C("name").Asc(), goqu.C("id").Asc()).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build patient query: %w", err)
	}

	patients := []*model.Patient{}
	if err = r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}
