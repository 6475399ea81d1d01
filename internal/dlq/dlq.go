// Package dlq records relay work that needs manual operator follow-up.
//
// The payment webhook path always acknowledges 200 to the provider, so a
// fulfillment that could not complete would otherwise vanish into a log
// line. Every such outcome is written here as a durable record instead.
package dlq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Write reasons.
const (
	ReasonMissingMetadata = "missing_metadata"
	ReasonNoArtifact      = "no_artifact"
	ReasonPresignFailed   = "presign_failed"
	ReasonSendFailed      = "send_failed"
	ReasonPriceLookup     = "price_lookup_failed"
)

// Record is a durable "needs manual fulfillment" entry.
type Record struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	EventID   string          `json:"event_id"`
	Reason    string          `json:"reason"`
	Detail    string          `json:"detail"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewRecord builds a Record with a fresh id and timestamp.
func NewRecord(source, eventID, reason, detail string, payload []byte) Record {
	return Record{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Source:    source,
		EventID:   eventID,
		Reason:    reason,
		Detail:    detail,
		Payload:   payload,
	}
}

// Writer persists records for later reconciliation.
type Writer interface {
	Write(ctx context.Context, rec Record) error
}

// NoOpWriter discards records (DLQ disabled). Callers log loudly when
// falling back to it.
type NoOpWriter struct{}

func (NoOpWriter) Write(ctx context.Context, rec Record) error {
	return nil
}
