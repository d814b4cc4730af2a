package amqp

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"cashdesk/internal/core"
)

// Event kinds carried on the audit stream.
const (
	EventRowCreated      = "row_created"
	EventRowUpdated      = "row_updated"
	EventRowDeleted      = "row_deleted"
	EventPayoutCommitted = "payout_committed"
)

// LedgerEventMessage is the audit record published after every successful
// mutation. Row events carry the row id only; the audit worker does not need
// the row body, just the fact and the time. Payout events carry the settled
// count and sum as reported by the service.
type LedgerEventMessage struct {
	Kind        string          `json:"kind"`
	RowID       int64           `json:"row_id,omitempty"`
	PayoutCount int             `json:"payout_count,omitempty"`
	PayoutTotal decimal.Decimal `json:"payout_total"`
	Timestamp   time.Time       `json:"timestamp"`
}

// NewRowEventMessage builds an audit record for a row mutation.
func NewRowEventMessage(kind string, rowID int64) *LedgerEventMessage {
	return &LedgerEventMessage{
		Kind:      kind,
		RowID:     rowID,
		Timestamp: time.Now(),
	}
}

// NewPayoutEventMessage builds an audit record for a committed payout.
func NewPayoutEventMessage(result core.PayoutResult) *LedgerEventMessage {
	return &LedgerEventMessage{
		Kind:        EventPayoutCommitted,
		PayoutCount: result.Count,
		PayoutTotal: result.Total,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON parses a message from JSON bytes.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
