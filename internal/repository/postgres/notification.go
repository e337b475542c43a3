package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/repository"
)

const notificationColumns = `id, tenant_id, appointment_id, channel, recipient, subject,
			   content, status, last_error, sent_at, created_at, updated_at`

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) (err error) {
	defer observe(r.metrics, "notifications.create", time.Now(), &err)

	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.Status == "" {
		n.Status = model.NotificationStatusPending
	}

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES (:id, :tenant_id, :appointment_id, :channel, :recipient, :subject,
			:content, :status, :last_error, :sent_at, :created_at, :updated_at)
	`
	if _, err = r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Update(ctx context.Context, n *model.Notification) (err error) {
	defer observe(r.metrics, "notifications.update", time.Now(), &err)

	n.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE notifications
		SET status = :status, last_error = :last_error, sent_at = :sent_at, updated_at = :updated_at
		WHERE tenant_id = :tenant_id AND id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, n)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", n.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *notificationRepository) ListByAppointment(ctx context.Context, tenantID, appointmentID string) (_ []*model.Notification, err error) {
	defer observe(r.metrics, "notifications.list_by_appointment", time.Now(), &err)

	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE tenant_id = $1 AND appointment_id = $2
		ORDER BY created_at DESC`
	out := []*model.Notification{}
	if err = r.db.SelectContext(ctx, &out, query, tenantID, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (r *notificationRepository) List(ctx context.Context, tenantID string, limit int) (_ []*model.Notification, err error) {
	defer observe(r.metrics, "notifications.list", time.Now(), &err)

	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	out := []*model.Notification{}
	if err = r.db.SelectContext(ctx, &out, query, tenantID, limit); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}
