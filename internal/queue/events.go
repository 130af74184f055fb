package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the views stream
const (
	EventViewRecorded = "view_recorded"
)

// Stream names
const (
	StreamViews = "stream:views"
)

// Consumer group name for reconcile workers
const (
	ConsumerGroupViews = "view_reconcilers"
)

// ViewEvent is published when a view was counted but the denormalized profile count
// could not be brought up to date in the request path.
type ViewEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp when event occurred
	OwnerID   string `json:"owner_id"`
	Count     int64  `json:"count"` // authoritative count observed when the view was recorded
}

// NewViewRecordedEvent creates an event asking the worker to resync ownerID's view count.
func NewViewRecordedEvent(ownerID string, count int64) ViewEvent {
	return ViewEvent{
		Type:      EventViewRecorded,
		Timestamp: time.Now().Unix(),
		OwnerID:   ownerID,
		Count:     count,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e ViewEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseViewEvent parses a ViewEvent from Redis stream message values.
func ParseViewEvent(values map[string]interface{}) (ViewEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return ViewEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event ViewEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return ViewEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.OwnerID == "" {
		return ViewEvent{}, fmt.Errorf("event without owner_id")
	}
	return event, nil
}
