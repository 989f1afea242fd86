// Package tracker shapes the ward store into the caller-facing commands and
// projections: the pending list, the day calendar and the category worklist.
package tracker

import (
	"context"
	"time"

	"github.com/Jeremiassm/controlh-app/pkg/ward"
)

// Service is the query and command layer over a ward.Store.
type Service struct {
	store ward.Store
	cats  ward.CategorySet
	now   func() time.Time
	loc   *time.Location
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone whose calendar days the projections use.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithCategories sets the category list reported by Categories.
func WithCategories(cats ward.CategorySet) Option {
	return func(s *Service) { s.cats = cats }
}

// New creates a Service. By default days follow the server's local zone.
func New(store ward.Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		cats:  ward.NewCategorySet(),
		now:   time.Now,
		loc:   time.Local,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Location returns the zone used for calendar days.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) CreatePatient(ctx context.Context, name string, room *string) (*ward.Patient, error) {
	return s.store.CreatePatient(ctx, name, room)
}

func (s *Service) GetPatient(ctx context.Context, id string) (*ward.Patient, error) {
	return s.store.GetPatient(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context) ([]ward.Patient, error) {
	return s.store.ListPatients(ctx)
}

func (s *Service) UpdatePatient(ctx context.Context, id, name string, room *string) (*ward.Patient, error) {
	return s.store.UpdatePatient(ctx, id, name, room)
}

// DeletePatient removes a patient; its tasks stay, unlinked.
func (s *Service) DeletePatient(ctx context.Context, id string) error {
	return s.store.DeletePatient(ctx, id)
}

// CreateTask creates an open task.
func (s *Service) CreateTask(ctx context.Context, description, category string, patientID *string) (*ward.Task, error) {
	return s.store.CreateTask(ctx, description, category, patientID)
}

func (s *Service) GetTask(ctx context.Context, id string) (*ward.Task, error) {
	return s.store.GetTask(ctx, id)
}

// ListAll returns every task, newest first.
func (s *Service) ListAll(ctx context.Context) ([]ward.TaskView, error) {
	return s.store.ListTasksAll(ctx)
}

// Categories returns the configured categories.
func (s *Service) Categories() []string {
	return s.cats.Names()
}

func (s *Service) Stats(ctx context.Context) (ward.Stats, error) {
	return s.store.Stats(ctx)
}
