// Package events publishes snap activity to the external metrics queue.
package events

import (
	"context"
	"time"
)

// SnapCreated is the payload body sent when a snap is published.
type SnapCreated struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Hashtags  []string  `json:"hashtags"`
}

// Message is the envelope the metrics consumer expects on the queue.
type Message struct {
	ProvidedBy string      `json:"providedBy"`
	Body       SnapCreated `json:"body"`
}

// Sink receives snap activity. Delivery is best-effort: callers never fail
// an operation because a sink did.
type Sink interface {
	SnapCreated(ctx context.Context, event SnapCreated) error
}

// NoopSink discards every event.
type NoopSink struct{}

func (NoopSink) SnapCreated(context.Context, SnapCreated) error { return nil }
