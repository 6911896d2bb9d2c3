package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/layer-3/keyauth/core"
	"github.com/layer-3/keyauth/ports"
	"github.com/nats-io/nats.go"
)

// MetadataAction is the message header carrying the audit action.
const MetadataAction = "action"

// msgPublisher is the part of *nats.Conn the recorder needs.
type msgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATSRecorder publishes audit events on a NATS subject.
type NATSRecorder struct {
	conn    msgPublisher
	subject string
}

func NewNATSRecorder(conn msgPublisher, subject string) *NATSRecorder {
	if subject == "" {
		subject = DefaultTopic
	}
	return &NATSRecorder{conn: conn, subject: subject}
}

var _ ports.AuditRecorder = (*NATSRecorder)(nil)

// ConnectNATS dials the NATS server at url.
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("keyauth"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func (r *NATSRecorder) Record(ctx context.Context, event core.AuditEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(r.subject)
	msg.Data = payload
	// JetStream deduplicates on this header.
	msg.Header.Set(nats.MsgIdHdr, event.ID)
	msg.Header.Set(MetadataAction, string(event.Action))

	if err := r.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
