package admission

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrMalformedBatch is returned when the events parameter cannot be decoded
var ErrMalformedBatch = errors.New("malformed events batch")

// Event is one named event with its client payload
type Event struct {
	Name    string
	Payload map[string]any
}

// ParseEvents decodes a JSON array of [name, payload] pairs. The value may be
// percent-encoded once more on top of the query string encoding. An empty
// string yields an empty batch and a null or missing payload an empty object.
func ParseEvents(raw string) ([]Event, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !strings.HasPrefix(raw, "[") {
		decoded, err := url.QueryUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
		}
		raw = strings.TrimSpace(decoded)
	}

	var pairs []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBatch, err)
	}

	events := make([]Event, 0, len(pairs))
	for i, p := range pairs {
		ev, err := parsePair(p)
		if err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrMalformedBatch, i, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func parsePair(raw json.RawMessage) (Event, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return Event{}, errors.New("want [name, payload]")
	}
	if len(parts) == 0 || len(parts) > 2 {
		return Event{}, fmt.Errorf("want 1 or 2 elements, got %d", len(parts))
	}

	var ev Event
	if err := json.Unmarshal(parts[0], &ev.Name); err != nil || ev.Name == "" {
		return Event{}, errors.New("event name must be a non-empty string")
	}
	if len(parts) == 2 {
		if err := json.Unmarshal(parts[1], &ev.Payload); err != nil {
			return Event{}, errors.New("payload must be an object or null")
		}
	}
	if ev.Payload == nil {
		ev.Payload = map[string]any{}
	}
	return ev, nil
}
