// Package events publishes photo lifecycle events and carries asynchronous
// filter jobs over Kafka.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"photohub/internal/models"
)

type Type string

const (
	PhotoCreated    Type = "photo.created"
	PhotoFiltered   Type = "photo.filtered"
	PhotoDeleted    Type = "photo.deleted"
	FilterRequested Type = "filter.requested"
)

type Event struct {
	ID        string                `json:"id"`
	Type      Type                  `json:"type"`
	PhotoID   int64                 `json:"photoId"`
	Status    string                `json:"status,omitempty"`
	URL       string                `json:"url,omitempty"`
	Filter    *models.FilterRequest `json:"filter,omitempty"`
	Timestamp int64                 `json:"timestamp"`
}

func New(t Type, photoID int64) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		PhotoID:   photoID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewFilterJob wraps req as a filter.requested event.
func NewFilterJob(req models.FilterRequest) Event {
	e := New(FilterRequested, req.ID)
	e.Status = req.LastChange
	e.Filter = &req
	return e
}

func Encode(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("events.Encode: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("events.Decode: %w: %v", models.ErrValidation, err)
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("events.Decode: %w: missing event type", models.ErrValidation)
	}
	return e, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }

// MemoryPublisher keeps published events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *MemoryPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func (p *MemoryPublisher) Close() error { return nil }

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
