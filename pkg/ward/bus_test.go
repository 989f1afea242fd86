package ward

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubStore answers only the writes the bus tests call.
type stubStore struct {
	Store
	failDelete bool
}

func (s *stubStore) CreatePatient(_ context.Context, name string, room *string) (*Patient, error) {
	return &Patient{ID: "p-1", Name: name, Room: room}, nil
}

func (s *stubStore) DeletePatient(_ context.Context, id string) error {
	if s.failDelete {
		return notFound("patient", id)
	}
	return nil
}

func (s *stubStore) SetTaskStatus(_ context.Context, id string, status Status) (*Task, error) {
	return &Task{ID: id, Status: status}, nil
}

func recv(t *testing.T, ch chan Change) Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestBusFansOutWrites(t *testing.T) {
	ctx := context.Background()
	bus := NewBus(&stubStore{})
	a, b := bus.Subscribe(), bus.Subscribe()
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(b)

	if _, err := bus.CreatePatient(ctx, "Ana", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, ch := range []chan Change{a, b} {
		c := recv(t, ch)
		if c.Kind != ChangeCreated || c.Entity != "patient" || c.ID != "p-1" {
			t.Fatalf("unexpected change %+v", c)
		}
	}

	if _, err := bus.SetTaskStatus(ctx, "t-1", StatusDone); err != nil {
		t.Fatalf("set status: %v", err)
	}
	if c := recv(t, a); c.Kind != ChangeUpdated || c.Entity != "task" || c.ID != "t-1" {
		t.Fatalf("unexpected change %+v", c)
	}
}

func TestBusSkipsFailedWrites(t *testing.T) {
	bus := NewBus(&stubStore{failDelete: true})
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	err := bus.DeletePatient(context.Background(), "p-9")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	select {
	case c := <-ch:
		t.Fatalf("expected no change for a failed write, got %+v", c)
	default:
	}
}

func TestBusDropsForSlowSubscriber(t *testing.T) {
	bus := NewBus(&stubStore{})
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for i := 0; i < cap(ch)+10; i++ {
		if err := bus.DeletePatient(context.Background(), "p-1"); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}
	if len(ch) != cap(ch) {
		t.Fatalf("expected a full buffer of %d, got %d", cap(ch), len(ch))
	}
}
