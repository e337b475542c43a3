package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jwalitptl/chairside/internal/email"
	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/internal/push"
	"github.com/jwalitptl/chairside/internal/repository"
	"github.com/jwalitptl/chairside/internal/sms"
	"github.com/jwalitptl/chairside/pkg/logger"
	"github.com/jwalitptl/chairside/pkg/messaging"
	"github.com/jwalitptl/chairside/pkg/metrics"
)

// ErrChannelDisabled is returned for a channel with no sender configured.
var ErrChannelDisabled = errors.New("notification channel is not configured")

// Channels holds one sender per delivery channel. Nil entries are disabled.
type Channels struct {
	SMS   sms.Sender
	Email email.Sender
	Push  push.Sender
	InApp messaging.Publisher
}

type Service struct {
	repo     repository.NotificationRepository
	channels Channels
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

func NewService(repo repository.NotificationRepository, channels Channels, m *metrics.Metrics, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:     repo,
		channels: channels,
		metrics:  m,
		logger:   log,
		now:      time.Now,
	}
}

// Send records the notification and delivers it. The stored record ends up
// sent or failed; the delivery error is returned so callers can retry.
func (s *Service) Send(ctx context.Context, n *model.Notification) error {
	if err := validateNotification(n); err != nil {
		return fmt.Errorf("invalid notification: %w", err)
	}

	n.ID = ""
	n.Status = model.NotificationStatusPending
	n.LastError = ""
	n.SentAt = nil
	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	deliverErr := s.deliver(ctx, n)

	n.UpdatedAt = s.now().UTC()
	if deliverErr != nil {
		n.Status = model.NotificationStatusFailed
		n.LastError = deliverErr.Error()
	} else {
		sentAt := n.UpdatedAt
		n.Status = model.NotificationStatusSent
		n.SentAt = &sentAt
	}
	s.metrics.ObserveNotification(n.Channel, string(n.Status))

	if err := s.repo.Update(ctx, n); err != nil {
		s.logger.WithContext(ctx).Error(err, "failed to record notification status",
			"notification_id", n.ID, "status", string(n.Status))
	}

	if deliverErr != nil {
		s.logger.WithContext(ctx).Warn("notification delivery failed",
			"notification_id", n.ID, "channel", n.Channel, "error", deliverErr.Error())
		return fmt.Errorf("failed to deliver %s notification: %w", n.Channel, deliverErr)
	}
	return nil
}

func (s *Service) History(ctx context.Context, tenantID, appointmentID string) ([]*model.Notification, error) {
	out, err := s.repo.ListByAppointment(ctx, tenantID, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, tenantID string, limit int) ([]*model.Notification, error) {
	out, err := s.repo.List(ctx, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (s *Service) deliver(ctx context.Context, n *model.Notification) error {
	switch n.Channel {
	case model.ChannelSMS:
		if s.channels.SMS == nil {
			return ErrChannelDisabled
		}
		return s.channels.SMS.Send(ctx, n.Recipient, n.Content)
	case model.ChannelEmail:
		if s.channels.Email == nil {
			return ErrChannelDisabled
		}
		return s.channels.Email.Send(ctx, n.Recipient, n.Subject, n.Content)
	case model.ChannelPush:
		if s.channels.Push == nil {
			return ErrChannelDisabled
		}
		return s.channels.Push.Send(ctx, n.TenantID, n.Subject, n.Content, map[string]string{
			"notification_id": n.ID,
			"appointment_id":  n.AppointmentID,
		})
	case model.ChannelInApp:
		if s.channels.InApp == nil {
			return ErrChannelDisabled
		}
		return s.channels.InApp.Publish(ctx, model.ChangeChannel(n.TenantID, model.NotificationsCollection), n)
	default:
		return fmt.Errorf("unsupported channel: %s", n.Channel)
	}
}

func validateNotification(n *model.Notification) error {
	if n.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if n.Channel == "" {
		return fmt.Errorf("channel is required")
	}
	if n.Recipient == "" && n.Channel != model.ChannelPush && n.Channel != model.ChannelInApp {
		return fmt.Errorf("recipient is required")
	}
	if n.Content == "" {
		return fmt.Errorf("content is required")
	}
	return nil
}
