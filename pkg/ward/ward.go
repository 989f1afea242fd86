package ward

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusOpen Status = "open"
	StatusDone Status = "done"
)

// Patient is a ward patient that tasks may reference.
type Patient struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Room *string `json:"room"`
}

// Task is a unit of clinical work, optionally tied to a patient.
type Task struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	PatientID   *string   `json:"patient_id"`
}

// TaskView is a task enriched with the attributes of its patient, resolved
// at query time. PatientName and PatientRoom are nil when the task has no
// patient or the patient no longer exists.
type TaskView struct {
	Task
	PatientName *string `json:"patient_name"`
	PatientRoom *string `json:"patient_room"`
}

// Stats summarizes the store contents.
type Stats struct {
	Patients  int `json:"patients"`
	Tasks     int `json:"tasks"`
	OpenTasks int `json:"open_tasks"`
}

// Store is the contract for patient and task persistence.
type Store interface {
	CreatePatient(ctx context.Context, name string, room *string) (*Patient, error)
	GetPatient(ctx context.Context, id string) (*Patient, error)
	// ListPatients returns all patients ordered by name (byte-wise), then id.
	ListPatients(ctx context.Context) ([]Patient, error)
	UpdatePatient(ctx context.Context, id, name string, room *string) (*Patient, error)
	// DeletePatient detaches the patient's tasks and removes the patient in
	// one transaction.
	DeletePatient(ctx context.Context, id string) error

	CreateTask(ctx context.Context, description, category string, patientID *string) (*Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	SetTaskStatus(ctx context.Context, id string, status Status) (*Task, error)
	// ListTasksAll returns every task, newest first, left-joined to patients.
	ListTasksAll(ctx context.Context) ([]TaskView, error)
	// ListTasksByCategory returns the open tasks of a category, newest first,
	// restricted to tasks whose patient still resolves.
	ListTasksByCategory(ctx context.Context, category string) ([]TaskView, error)

	Stats(ctx context.Context) (Stats, error)
	EnsureSchema(ctx context.Context) error
	Close() error
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
