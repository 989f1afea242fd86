package tracker

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/Jeremiassm/controlh-app/pkg/ward"
)

// DayLayout is the wire format of a calendar day.
const DayLayout = "2006-01-02"

// ParseDay parses a YYYY-MM-DD day in the service's location.
func (s *Service) ParseDay(v string) (time.Time, error) {
	d, err := time.ParseInLocation(DayLayout, v, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q must be YYYY-MM-DD", ward.ErrValidation, v)
	}
	return d, nil
}

// ListPending returns open tasks plus every task created today, newest first.
// A task completed on an earlier day is not included.
func (s *Service) ListPending(ctx context.Context) ([]ward.TaskView, error) {
	all, err := s.store.ListTasksAll(ctx)
	if err != nil {
		return nil, err
	}
	today := s.dayKey(s.now())
	pending := lo.Filter(all, func(t ward.TaskView, _ int) bool {
		return t.Status == ward.StatusOpen || s.dayKey(t.CreatedAt) == today
	})
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.After(pending[j].CreatedAt)
	})
	return pending, nil
}

// ListByDay returns every task created on day's calendar date, whatever its
// status. The date is read from day's own year, month and day fields.
func (s *Service) ListByDay(ctx context.Context, day time.Time) ([]ward.TaskView, error) {
	all, err := s.store.ListTasksAll(ctx)
	if err != nil {
		return nil, err
	}
	key := day.Format(DayLayout)
	return lo.Filter(all, func(t ward.TaskView, _ int) bool {
		return s.dayKey(t.CreatedAt) == key
	}), nil
}

// Calendar groups tasks by creation day (YYYY-MM-DD) between from and to,
// inclusive. A zero bound leaves that side open.
func (s *Service) Calendar(ctx context.Context, from, to time.Time) (map[string][]ward.TaskView, error) {
	all, err := s.store.ListTasksAll(ctx)
	if err != nil {
		return nil, err
	}
	var first, last string
	if !from.IsZero() {
		first = from.Format(DayLayout)
	}
	if !to.IsZero() {
		last = to.Format(DayLayout)
	}
	inRange := lo.Filter(all, func(t ward.TaskView, _ int) bool {
		k := s.dayKey(t.CreatedAt)
		return (first == "" || k >= first) && (last == "" || k <= last)
	})
	return lo.GroupBy(inRange, func(t ward.TaskView) string {
		return s.dayKey(t.CreatedAt)
	}), nil
}

// ListByCategory returns the open tasks of a category. Completed tasks are
// never listed here, and neither are tasks whose patient is gone. An unknown
// category yields an empty list.
func (s *Service) ListByCategory(ctx context.Context, category string) ([]ward.TaskView, error) {
	return s.store.ListTasksByCategory(ctx, category)
}

func (s *Service) dayKey(t time.Time) string {
	return t.In(s.loc).Format(DayLayout)
}
