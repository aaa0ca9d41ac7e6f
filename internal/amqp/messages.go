package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"spendtrack/internal/core"
)

// ChangeMessage is the wire form of a core.ChangeEvent. It carries ids only;
// consumers fetch the record from the ledger.
type ChangeMessage struct {
	Kind      string    `json:"kind"`
	UserID    string    `json:"userId"`
	EntityID  int64     `json:"entityId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(ev core.ChangeEvent) *ChangeMessage {
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &ChangeMessage{
		Kind:      string(ev.Kind),
		UserID:    ev.UserID,
		EntityID:  ev.EntityID,
		Timestamp: ts.UTC(),
	}
}

func (m *ChangeMessage) Event() core.ChangeEvent {
	return core.ChangeEvent{
		Kind:       core.ChangeKind(m.Kind),
		UserID:     m.UserID,
		EntityID:   m.EntityID,
		OccurredAt: m.Timestamp,
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Kind == "" {
		return nil, fmt.Errorf("change message without kind")
	}
	return &msg, nil
}
