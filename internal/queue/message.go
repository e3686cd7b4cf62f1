// Package queue carries change events and reconcile requests through a Redis list so that
// indexing runs off the request path.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/searchcore/internal/domain/event"
)

// Kind identifies a queued message.
type Kind string

// Message kinds.
const (
	KindEvent     Kind = "event"
	KindReconcile Kind = "reconcile"
)

// Message is the queued envelope.
type Message struct {
	Kind       Kind         `json:"kind"`
	Event      *event.Event `json:"event,omitempty"`
	ObjectType string       `json:"object_type,omitempty"`
}

func encode(m Message) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode %s message: %w", m.Kind, err)
	}
	return string(b), nil
}

func decode(raw string) (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	switch m.Kind {
	case KindEvent:
		if m.Event == nil {
			return Message{}, fmt.Errorf("decode message: event message without event")
		}
	case KindReconcile:
		if m.ObjectType == "" {
			return Message{}, fmt.Errorf("decode message: reconcile message without object_type")
		}
	default:
		return Message{}, fmt.Errorf("decode message: unknown kind %q", m.Kind)
	}
	return m, nil
}
