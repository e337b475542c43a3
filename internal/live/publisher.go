package live

import (
	"context"
	"time"

	"github.com/jwalitptl/chairside/internal/model"
	"github.com/jwalitptl/chairside/pkg/logger"
	"github.com/jwalitptl/chairside/pkg/messaging"
)

// Notifier announces record changes to subscribers.
type Notifier interface {
	Changed(ctx context.Context, tenantID, collection string, op model.ChangeOp, recordID string)
}

// Publisher sends change events over a broker. A failed publish is logged and
// never fails the write that caused it; subscribers catch up on the next event.
type Publisher struct {
	broker messaging.Publisher
	logger *logger.Logger
	now    func() time.Time
}

func NewPublisher(broker messaging.Publisher, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{broker: broker, logger: log, now: time.Now}
}

func (p *Publisher) Changed(ctx context.Context, tenantID, collection string, op model.ChangeOp, recordID string) {
	event := model.ChangeEvent{
		TenantID:   tenantID,
		Collection: collection,
		Op:         op,
		RecordID:   recordID,
		At:         p.now().UTC(),
	}
	if err := p.broker.Publish(ctx, model.ChangeChannel(tenantID, collection), event); err != nil {
		p.logger.WithContext(ctx).Error(err, "failed to publish change event",
			"tenant_id", tenantID, "collection", collection, "record_id", recordID)
	}
}

// Discard drops every change. Used when no broker is configured.
type Discard struct{}

func (Discard) Changed(context.Context, string, string, model.ChangeOp, string) {}
