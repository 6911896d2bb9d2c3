package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
)

// DefaultTopic is where audit events are published unless configured otherwise.
const DefaultTopic = "keyauth.audit"

// WatermillRecorder implements the AuditRecorder interface using Watermill
type WatermillRecorder struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillRecorder creates a recorder publishing to topic. An empty topic
// falls back to DefaultTopic.
func NewWatermillRecorder(publisher message.Publisher, topic string) *WatermillRecorder {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillRecorder{
		publisher: publisher,
		topic:     topic,
	}
}

var _ ports.AuditRecorder = (*WatermillRecorder)(nil)

// Record publishes event as a JSON message keyed by the event id.
func (p *WatermillRecorder) Record(ctx context.Context, event core.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set(MetadataAction, string(event.Action))
	msg.SetContext(ctx)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the underlying publisher.
func (p *WatermillRecorder) Close() error {
	return p.publisher.Close()
}
