package ward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// sqliteTime is fixed-width for UTC values so created_at sorts as text.
const sqliteTime = "2006-01-02T15:04:05.000000Z07:00"

// SQLiteStore is a SQLite-backed ward store. It holds a single connection, so
// the engine serializes every transaction.
type SQLiteStore struct {
	db   *sql.DB
	path string
	cats CategorySet
}

// OpenSQLiteStore opens (creating if needed) the database file at path.
func OpenSQLiteStore(path string, cats CategorySet) (*SQLiteStore, error) {
	if path == "" {
		path = "controlh.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db, path: path, cats: cats}, nil
}

// EnsureSchema creates the patients and tasks tables if they don't exist.
func (s *SQLiteStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			id   TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			room TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patients_name ON patients(name)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id          TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			category    TEXT NOT NULL,
			status      TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open', 'done')),
			created_at  TEXT NOT NULL,
			patient_id  TEXT REFERENCES patients(id) ON DELETE SET NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_created ON tasks(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_category_status ON tasks(category, status)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_patient ON tasks(patient_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storageErr("ensure schema", err)
		}
	}
	return nil
}

// CreatePatient inserts a new patient.
func (s *SQLiteStore) CreatePatient(ctx context.Context, name string, room *string) (*Patient, error) {
	name, room, err := normalizePatient(name, room)
	if err != nil {
		return nil, err
	}
	p := &Patient{ID: newID(), Name: name, Room: room}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO patients (id, name, room) VALUES (?, ?, ?)`, p.ID, p.Name, p.Room); err != nil {
		return nil, storageErr("create patient", err)
	}
	return p, nil
}

// GetPatient retrieves a single patient by ID.
func (s *SQLiteStore) GetPatient(ctx context.Context, id string) (*Patient, error) {
	var p Patient
	err := s.db.QueryRowContext(ctx, `SELECT id, name, room FROM patients WHERE id = ?`, id).Scan(&p.ID, &p.Name, &p.Room)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("patient", id)
	}
	if err != nil {
		return nil, storageErr("get patient "+id, err)
	}
	return &p, nil
}

// ListPatients returns all patients ordered by name.
func (s *SQLiteStore) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, room FROM patients ORDER BY name, id`)
	if err != nil {
		return nil, storageErr("list patients", err)
	}
	defer func() { _ = rows.Close() }()

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
func (s *SQLiteStore) UpdatePatient(ctx context.Context, id, name string, room *string) (*Patient, error) {
	name, room, err := normalizePatient(name, room)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE patients SET name = ?, room = ? WHERE id = ?`, name, room, id)
	if err != nil {
		return nil, storageErr("update patient "+id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, storageErr("update patient "+id, err)
	} else if n == 0 {
		return nil, notFound("patient", id)
	}
	return &Patient{ID: id, Name: name, Room: room}, nil
}

// DeletePatient unlinks the patient's tasks and removes the patient atomically.
func (s *SQLiteStore) DeletePatient(ctx context.Context, id string) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin tx", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `UPDATE tasks SET patient_id = NULL WHERE patient_id = ?`, id); err != nil {
		return storageErr("detach tasks of patient "+id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete patient "+id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("delete patient "+id, err)
	}
	if n == 0 {
		return notFound("patient", id)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("commit delete patient "+id, err)
	}
	return nil
}

// CreateTask inserts a new open task.
func (s *SQLiteStore) CreateTask(ctx context.Context, description, category string, patientID *string) (_ *Task, retErr error) {
	description, patientID, err := normalizeTask(s.cats, description, category, patientID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storageErr("begin tx", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	// The transaction holds the only connection, so stamping here keeps
	// created_at and id in commit order.
	t := &Task{
		ID:          newID(),
		Description: description,
		Category:    category,
		Status:      StatusOpen,
		CreatedAt:   now(),
		PatientID:   patientID,
	}

	if patientID != nil {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM patients WHERE id = ?`, *patientID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("patient", *patientID)
		}
		if err != nil {
			return nil, storageErr("check patient "+*patientID, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, description, category, status, created_at, patient_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Description, t.Category, string(t.Status), t.CreatedAt.Format(sqliteTime), t.PatientID)
	if err != nil {
		return nil, storageErr("create task", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit create task", err)
	}
	return t, nil
}

// GetTask retrieves a single task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*Task, error) {
	t, err := scanSQLiteTask(s.db.QueryRowContext(ctx, `
		SELECT id, description, category, status, created_at, patient_id
		FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, storageErr("get task "+id, err)
	}
	return t, nil
}

// SetTaskStatus overwrites the task's status.
func (s *SQLiteStore) SetTaskStatus(ctx context.Context, id string, status Status) (*Task, error) {
	if status != StatusOpen && status != StatusDone {
		return nil, invalid("status %q must be open or done", status)
	}
	t, err := scanSQLiteTask(s.db.QueryRowContext(ctx, `
		UPDATE tasks SET status = ? WHERE id = ?
		RETURNING id, description, category, status, created_at, patient_id`, string(status), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("task", id)
	}
	if err != nil {
		return nil, storageErr("set status of task "+id, err)
	}
	return t, nil
}

// ListTasksAll returns every task with its patient attributes, newest first.
func (s *SQLiteStore) ListTasksAll(ctx context.Context) ([]TaskView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.description, t.category, t.status, t.created_at, t.patient_id, p.name, p.room
		FROM tasks t
		LEFT JOIN patients p ON p.id = t.patient_id
		ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, storageErr("list tasks", err)
	}
	defer func() { _ = rows.Close() }()
	return scanSQLiteViews(rows)
}

// ListTasksByCategory returns the open tasks of a category that have a live patient.
func (s *SQLiteStore) ListTasksByCategory(ctx context.Context, category string) ([]TaskView, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.description, t.category, t.status, t.created_at, t.patient_id, p.name, p.room
		FROM tasks t
		JOIN patients p ON p.id = t.patient_id
		WHERE t.category = ? AND t.status = 'open'
		ORDER BY t.created_at DESC, t.id DESC`, category)
	if err != nil {
		return nil, storageErr("list tasks by category "+category, err)
	}
	defer func() { _ = rows.Close() }()
	return scanSQLiteViews(rows)
}

// Stats returns patient, task and open task counts.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM patients),
		       (SELECT COUNT(*) FROM tasks),
		       (SELECT COUNT(*) FROM tasks WHERE status = 'open')`).
		Scan(&st.Patients, &st.Tasks, &st.OpenTasks)
	if err != nil {
		return Stats{}, storageErr("stats", err)
	}
	return st, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *SQLiteStore) Path() string { return s.path }

func scanSQLiteTask(row *sql.Row) (*Task, error) {
	var t Task
	var status, created string
	if err := row.Scan(&t.ID, &t.Description, &t.Category, &status, &created, &t.PatientID); err != nil {
		return nil, err
	}
	ts, err := time.Parse(sqliteTime, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	t.Status = Status(status)
	t.CreatedAt = ts
	return &t, nil
}

func scanSQLiteViews(rows *sql.Rows) ([]TaskView, error) {
	views := []TaskView{}
	for rows.Next() {
		var v TaskView
		var status, created string
		if err := rows.Scan(&v.ID, &v.Description, &v.Category, &status, &created, &v.PatientID, &v.PatientName, &v.PatientRoom); err != nil {
			return nil, storageErr("scan task", err)
		}
		ts, err := time.Parse(sqliteTime, created)
		if err != nil {
			return nil, storageErr("parse created_at", err)
		}
		v.Status = Status(status)
		v.CreatedAt = ts
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("row iteration", err)
	}
	return views, nil
}
