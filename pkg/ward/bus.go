package ward

import (
	"context"
	"sync"
	"time"
)

// ChangeKind describes what a write did.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change is a transient notification about a successful write. Nothing is
// retained after delivery.
type Change struct {
	Kind   ChangeKind `json:"kind"`
	Entity string     `json:"entity"` // "patient" or "task"
	ID     string     `json:"id"`
	At     time.Time  `json:"at"`
}

// Bus wraps a Store with in-process fan-out notification.
// After each successful write, all subscribers receive a Change.
type Bus struct {
	Store
	mu   sync.RWMutex
	subs map[chan Change]struct{}
}

// NewBus creates a Bus wrapping the given store.
func NewBus(store Store) *Bus {
	return &Bus{
		Store: store,
		subs:  make(map[chan Change]struct{}),
	}
}

func (b *Bus) CreatePatient(ctx context.Context, name string, room *string) (*Patient, error) {
	p, err := b.Store.CreatePatient(ctx, name, room)
	if err != nil {
		return nil, err
	}
	b.publish(ChangeCreated, "patient", p.ID)
	return p, nil
}

func (b *Bus) UpdatePatient(ctx context.Context, id, name string, room *string) (*Patient, error) {
	p, err := b.Store.UpdatePatient(ctx, id, name, room)
	if err != nil {
		return nil, err
	}
	b.publish(ChangeUpdated, "patient", p.ID)
	return p, nil
}

func (b *Bus) DeletePatient(ctx context.Context, id string) error {
	if err := b.Store.DeletePatient(ctx, id); err != nil {
		return err
	}
	b.publish(ChangeDeleted, "patient", id)
	return nil
}

func (b *Bus) CreateTask(ctx context.Context, description, category string, patientID *string) (*Task, error) {
	t, err := b.Store.CreateTask(ctx, description, category, patientID)
	if err != nil {
		return nil, err
	}
	b.publish(ChangeCreated, "task", t.ID)
	return t, nil
}

func (b *Bus) SetTaskStatus(ctx context.Context, id string, status Status) (*Task, error) {
	t, err := b.Store.SetTaskStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	b.publish(ChangeUpdated, "task", t.ID)
	return t, nil
}

func (b *Bus) publish(kind ChangeKind, entity, id string) {
	c := Change{Kind: kind, Entity: entity, ID: id, At: time.Now().UTC()}
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- c:
		default:
			// subscriber is behind; drop to avoid blocking the write path
		}
	}
	b.mu.RUnlock()
}

// Subscribe returns a buffered channel that receives all new changes.
func (b *Bus) Subscribe() chan Change {
	ch := make(chan Change, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Change) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
