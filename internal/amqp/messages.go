package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names what happened to a ledger entry.
type EventType string

const (
	EntryCreated EventType = "entry.created"
	EntryUpdated EventType = "entry.updated"
	EntryDeleted EventType = "entry.deleted"
)

func (t EventType) IsValid() bool {
	switch t {
	case EntryCreated, EntryUpdated, EntryDeleted:
		return true
	}
	return false
}

// EntryEvent is a lightweight notification about a ledger entry. Consumers
// fetch the entry itself from the store, owner-scoped.
type EntryEvent struct {
	EventID   string    `json:"event_id"`
	Type      EventType `json:"type"`
	OwnerID   string    `json:"owner_id"`
	EntryID   int64     `json:"entry_id"`
	SpecID    *int64    `json:"spec_id,omitempty"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntryEvent creates an event with a fresh id.
func NewEntryEvent(t EventType, owner string, entryID, version int64) *EntryEvent {
	return &EntryEvent{
		EventID:   uuid.NewString(),
		Type:      t,
		OwnerID:   owner,
		EntryID:   entryID,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

func (m *EntryEvent) Validate() error {
	if !m.Type.IsValid() {
		return fmt.Errorf("unknown event type %q", m.Type)
	}
	if m.OwnerID == "" {
		return errors.New("missing owner_id")
	}
	if m.EntryID <= 0 {
		return fmt.Errorf("invalid entry_id %d", m.EntryID)
	}
	if _, err := uuid.Parse(m.EventID); err != nil {
		return fmt.Errorf("invalid event_id: %w", err)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *EntryEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryEventFromJSON decodes and validates an event.
func EntryEventFromJSON(data []byte) (*EntryEvent, error) {
	var msg EntryEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
