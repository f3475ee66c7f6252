package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/perkshop-portal/internal/hrsync"
	"github.com/angelmondragon/perkshop-portal/internal/orders"
	"github.com/angelmondragon/perkshop-portal/pkg/logger"
	"github.com/google/uuid"
)

// Publisher sends one message and returns the broker message id.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Recorder publishes transition and sync records as envelopes.
type Recorder struct {
	publisher Publisher
	logg      *logger.Logger
	newID     func() string
}

// NewRecorder wires a publisher-backed recorder.
func NewRecorder(publisher Publisher, logg *logger.Logger) (*Recorder, error) {
	if publisher == nil {
		return nil, errors.New("audit publisher required")
	}
	return &Recorder{publisher: publisher, logg: logg, newID: uuid.NewString}, nil
}

// Record publishes an order transition.
func (r *Recorder) Record(ctx context.Context, rec orders.TransitionRecord) error {
	return r.publish(ctx, EventOrderTransitioned, rec.OrderID, rec.OccurredAt, &ActorRef{
		UserID: rec.ActorID,
		Role:   string(rec.ActorRole),
	}, rec)
}

// RecordSync publishes a completed HR sync action.
func (r *Recorder) RecordSync(ctx context.Context, rec hrsync.SyncRecord) error {
	return r.publish(ctx, EventOrderSynced, rec.OrderID, rec.OccurredAt, &ActorRef{
		UserID: rec.ActorID,
		Role:   string(rec.ActorRole),
	}, rec)
}

func (r *Recorder) publish(ctx context.Context, eventType, orderID string, occurredAt time.Time, actor *ActorRef, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	env := Envelope{
		Version:    envelopeVersion,
		EventID:    r.newID(),
		EventType:  eventType,
		OccurredAt: occurredAt,
		Actor:      actor,
		Data:       data,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventType, err)
	}

	attrs := map[string]string{
		"event_id":    env.EventID,
		"event_type":  eventType,
		"order_id":    orderID,
		"occurred_at": occurredAt.Format(time.RFC3339Nano),
	}
	messageID, err := r.publisher.Publish(ctx, body, attrs)
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	if r.logg != nil {
		r.logg.Debug(r.logg.WithFields(ctx, map[string]any{
			"event_id":   env.EventID,
			"event_type": eventType,
			"message_id": messageID,
		}), "audit event published")
	}
	return nil
}

// LogRecorder writes records to the log when no topic is configured.
type LogRecorder struct {
	logg *logger.Logger
}

func NewLogRecorder(logg *logger.Logger) *LogRecorder {
	return &LogRecorder{logg: logg}
}

func (r *LogRecorder) Record(ctx context.Context, rec orders.TransitionRecord) error {
	if r.logg != nil {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"event_type": EventOrderTransitioned,
			"order_id":   rec.OrderID,
			"action":     rec.Action,
			"from":       rec.From,
			"to":         rec.To,
			"actor_id":   rec.ActorID,
			"actor_role": rec.ActorRole,
			"note":       rec.Note,
			"reason":     rec.Reason,
		}), "audit")
	}
	return nil
}

func (r *LogRecorder) RecordSync(ctx context.Context, rec hrsync.SyncRecord) error {
	if r.logg != nil {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"event_type": EventOrderSynced,
			"order_id":   rec.OrderID,
			"action":     rec.Action,
			"actor_id":   rec.ActorID,
			"item_count": rec.ItemCount,
		}), "audit")
	}
	return nil
}
