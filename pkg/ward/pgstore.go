package ward

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// pgFKViolation is the SQLSTATE for foreign_key_violation.
	pgFKViolation = "23503"
	// pgTaskInsertLock is the advisory lock key held by CreateTask.
	pgTaskInsertLock int64 = 0x77617264
)

// PgStore is a PostgreSQL-backed ward store.
type PgStore struct {
	pool *pgxpool.Pool
	cats CategorySet
}

// NewPgStore creates a PgStore accepting the given categories.
func NewPgStore(pool *pgxpool.Pool, cats CategorySet) *PgStore {
	return &PgStore{pool: pool, cats: cats}
}

// EnsureSchema creates the patients and tasks tables if they don't exist.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			room TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patients_name ON patients(name COLLATE "C")`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			category    TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'done')),
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			patient_id  TEXT REFERENCES patients(id) ON DELETE SET NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_category_status ON tasks(category, status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_patient ON tasks(patient_id) WHERE patient_id IS NOT NULL`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return storageErr("ensure schema", err)
		}
	}
	return nil
}

// CreatePatient inserts a new patient.
func (s *PgStore) CreatePatient(ctx context.Context, name string, room *string) (*Patient, error) {
	name, room, err := normalizePatient(name, room)
	if err != nil {
		return nil, err
	}
	p := &Patient{ID: newID(), Name: name, Room: room}
	_, err = s.pool.Exec(ctx, `INSERT INTO patients (id, name, room) VALUES ($1, $2, $3)`, p.ID, p.Name, p.Room)
	if err != nil {
		return nil, storageErr("create patient", err)
	}
	return p, nil
}

// GetPatient retrieves a single patient by ID.
func (s *PgStore) GetPatient(ctx context.Context, id string) (*Patient, error) {
	var p Patient
	err := s.pool.QueryRow(ctx, `SELECT id, name, room FROM patients WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.Room)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("patient", id)
	}
	if err != nil {
		return nil, storageErr("get patient "+id, err)
	}
	return &p, nil
}

// ListPatients returns all patients ordered by name.
func (s *PgStore) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name, room FROM patients ORDER BY name COLLATE "C", id`)
	if err != nil {
		return nil, storageErr("list patients", err)
	}
	defer rows.Close()

	patients := []Patient{}
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Room); err != nil {
			return nil, storageErr("scan patient", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list patients", err)
	}
	return patients, nil
}

// UpdatePatient replaces the patient's name and room.
func (s *PgStore) UpdatePatient(ctx context.Context, id, name string, room *string) (*Patient, error) {
	name, room, err := normalizePatient(name, room)
	if err != nil {
		return nil, err
	}
	var p Patient
	err = s.pool.QueryRow(ctx, `UPDATE patients SET name = $1, room = $2 WHERE id = $3 RETURNING id, name, room`,
		name, room, id).Scan(&p.ID, &p.Name, &p.Room)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("patient", id)
	}
	if err != nil {
		return nil, storageErr("update patient "+id, err)
	}
	return &p, nil
}

// DeletePatient unlinks the patient's tasks and removes the patient atomically.
func (s *PgStore) DeletePatient(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE tasks SET patient_id = NULL WHERE patient_id = $1`, id); err != nil {
		return storageErr("detach tasks of patient "+id, err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete patient "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("patient", id)
	}
	if err := tx.Commit(ctx); err != nil {
		return storageErr("commit delete patient "+id, err)
	}
	return nil
}

// CreateTask inserts a new open task.
func (s *PgStore) CreateTask(ctx context.Context, description, category string, patientID *string) (*Task, error) {
	description, patientID, err := normalizeTask(s.cats, description, category, patientID)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storageErr("begin tx", err)
	}
	defer tx.Rollback(ctx)

	// Task inserts are serialized until commit, so clock_timestamp() below
	// and the id follow commit order.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, pgTaskInsertLock); err != nil {
		return nil, storageErr("lock task insert", err)
	}
	t := &Task{
		ID:          newID(),
		Description: description,
		Category:    category,
		Status:      StatusOpen,
		PatientID:   patientID,
	}

	if patientID != nil {
		var one int
		err := tx.QueryRow(ctx, `SELECT 1 FROM patients WHERE id = $1 FOR KEY SHARE`, *patientID).Scan(&one)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound("patient", *patientID)
		}
		if err != nil {
			return nil, storageErr("check patient "+*patientID, err)
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (id, description, category, status, created_at, patient_id)
		VALUES ($1, $2, $3, $4, date_trunc('microseconds', clock_timestamp()), $5)
		RETURNING created_at`,
		t.ID, t.Description, t.Category, string(t.Status), t.PatientID).Scan(&t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgFKViolation {
			return nil, notFound("patient", *patientID)
		}
		return nil, storageErr("create task", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storageErr("commit create task", err)
	}
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

// GetTask retrieves a single task by ID.
func (s *PgStore) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanPgTask(s.pool.QueryRow(ctx, `
		SELECT id, description, category, status, created_at, patient_id
		FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, storageErr("get task "+id, err)
	}
	return t, nil
}

// SetTaskStatus overwrites the task's status.
func (s *PgStore) SetTaskStatus(ctx context.Context, id string, status Status) (*Task, error) {
	if status != StatusOpen && status != StatusDone {
		return nil, invalid("status %q must be open or done", status)
	}
	t, err := scanPgTask(s.pool.QueryRow(ctx, `
		UPDATE tasks SET status = $1 WHERE id = $2
		RETURNING id, description, category, status, created_at, patient_id`, string(status), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, storageErr("set status of task "+id, err)
	}
	return t, nil
}

// ListTasksAll returns every task with its patient attributes, newest first.
func (s *PgStore) ListTasksAll(ctx context.Context) ([]TaskView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.description, t.category, t.status, t.created_at, t.patient_id, p.name, p.room
		FROM tasks t
		LEFT JOIN patients p ON p.id = t.patient_id
		ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, storageErr("list tasks", err)
	}
	defer rows.Close()
	return scanPgViews(rows)
}

// ListTasksByCategory returns the open tasks of a category that have a live patient.
func (s *PgStore) ListTasksByCategory(ctx context.Context, category string) ([]TaskView, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT t.id, t.description, t.category, t.status, t.created_at, t.patient_id, p.name, p.room
		FROM tasks t
		JOIN patients p ON p.id = t.patient_id
		WHERE t.category = $1 AND t.status = 'open'
		ORDER BY t.created_at DESC, t.id DESC`, category)
	if err != nil {
		return nil, storageErr("list tasks by category "+category, err)
	}
	defer rows.Close()
	return scanPgViews(rows)
}

// Stats returns patient, task and open task counts.
func (s *PgStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM patients),
		       (SELECT COUNT(*) FROM tasks),
		       (SELECT COUNT(*) FROM tasks WHERE status = 'open')`).
		Scan(&st.Patients, &st.Tasks, &st.OpenTasks)
	if err != nil {
		return Stats{}, storageErr("stats", err)
	}
	return st, nil
}

// Close releases the pool.
func (s *PgStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPgTask(row pgx.Row) (*Task, error) {
	var t Task
	var status string
	if err := row.Scan(&t.ID, &t.Description, &t.Category, &status, &t.CreatedAt, &t.PatientID); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.CreatedAt = t.CreatedAt.UTC()
	return &t, nil
}

func scanPgViews(rows pgx.Rows) ([]TaskView, error) {
	views := []TaskView{}
	for rows.Next() {
		var v TaskView
		var status string
		if err := rows.Scan(&v.ID, &v.Description, &v.Category, &status, &v.CreatedAt, &v.PatientID, &v.PatientName, &v.PatientRoom); err != nil {
			return nil, storageErr("scan task", err)
		}
		v.Status = Status(status)
		v.CreatedAt = v.CreatedAt.UTC()
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("row iteration", err)
	}
	return views, nil
}
