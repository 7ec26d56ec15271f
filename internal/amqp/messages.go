package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"hisab/internal/events"
)

// LedgerMessage carries one ledger event over the broker. The record snapshot
// travels with it so consumers never read back from the database.
type LedgerMessage struct {
	events.Event
}

var errIncompleteMessage = errors.New("ledger message missing type, record_id or user_id")

// NewLedgerMessage wraps e, stamping a timestamp when it has none.
func NewLedgerMessage(e events.Event) *LedgerMessage {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return &LedgerMessage{Event: e}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerMessageFromJSON decodes a message and rejects ones a consumer could
// not act on.
func LedgerMessageFromJSON(data []byte) (*LedgerMessage, error) {
	var msg LedgerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" || msg.RecordID == "" || msg.UserID == "" {
		return nil, errIncompleteMessage
	}
	return &msg, nil
}
