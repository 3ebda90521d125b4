package events

import (
	"encoding/json"
	"time"
)

// EventEnvelope is the wire format for every event leaving the service.
// The payload is the event body as written to the outbox.
type EventEnvelope struct {
	EventID       EventID
	EventType     string
	OccurredAt    time.Time
	UserID        string
	AggregateID   string
	CorrelationID string
	Payload       json.RawMessage
}

// eventEnvelopeJSON is an internal type for JSON marshaling/unmarshaling.
type eventEnvelopeJSON struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	UserID        string          `json:"user_id"`
	AggregateID   string          `json:"aggregate_id"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// UnmarshalPayload decodes the payload into the target struct.
func (e EventEnvelope) UnmarshalPayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}

// MarshalJSON implements json.Marshaler for EventEnvelope.
func (e EventEnvelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventEnvelopeJSON{
		EventID:       e.EventID.String(),
		EventType:     e.EventType,
		OccurredAt:    e.OccurredAt.UTC(),
		UserID:        e.UserID,
		AggregateID:   e.AggregateID,
		CorrelationID: e.CorrelationID,
		Payload:       e.Payload,
	})
}

// UnmarshalJSON implements json.Unmarshaler for EventEnvelope.
func (e *EventEnvelope) UnmarshalJSON(data []byte) error {
	var j eventEnvelopeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}

	eventID, err := ParseEventID(j.EventID)
	if err != nil {
		return err
	}

	e.EventID = eventID
	e.EventType = j.EventType
	e.OccurredAt = j.OccurredAt
	e.UserID = j.UserID
	e.AggregateID = j.AggregateID
	e.CorrelationID = j.CorrelationID
	e.Payload = j.Payload
	return nil
}
