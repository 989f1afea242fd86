package tracker

import (
	"context"

	"github.com/Jeremiassm/controlh-app/pkg/ward"
)

// MarkDone moves a task to done. A task that is already done is returned
// unchanged without a write.
func (s *Service) MarkDone(ctx context.Context, id string) (*ward.Task, error) {
	return s.transition(ctx, id, ward.StatusDone)
}

// MarkOpen moves a task back to open. A task that is already open is
// returned unchanged without a write.
func (s *Service) MarkOpen(ctx context.Context, id string) (*ward.Task, error) {
	return s.transition(ctx, id, ward.StatusOpen)
}

// SetStatus parses a wire status and applies the matching transition.
func (s *Service) SetStatus(ctx context.Context, id, status string) (*ward.Task, error) {
	st, err := ward.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	if st == ward.StatusDone {
		return s.MarkDone(ctx, id)
	}
	return s.MarkOpen(ctx, id)
}

func (s *Service) transition(ctx context.Context, id string, to ward.Status) (*ward.Task, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == to {
		return t, nil
	}
	return s.store.SetTaskStatus(ctx, id, to)
}
