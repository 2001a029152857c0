package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// TransactionEvent announces a committed change to one transaction. It
// carries the full record as it was after the change (before, for deletes).
type TransactionEvent struct {
	Kind          EventKind         `json:"kind"`
	Owner         string            `json:"owner"`
	TransactionID string            `json:"transactionId"`
	Transaction   *core.Transaction `json:"transaction,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

func NewTransactionEvent(kind EventKind, t core.Transaction) *TransactionEvent {
	return &TransactionEvent{
		Kind:          kind,
		Owner:         t.Owner,
		TransactionID: t.ID,
		Transaction:   &t,
		Timestamp:     time.Now().UTC(),
	}
}

func (e *TransactionEvent) Validate() error {
	switch e.Kind {
	case EventCreated, EventUpdated:
		if e.Transaction == nil {
			return fmt.Errorf("%s event without transaction", e.Kind)
		}
	case EventDeleted:
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.TransactionID == "" {
		return fmt.Errorf("event without transaction id")
	}
	return nil
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}
