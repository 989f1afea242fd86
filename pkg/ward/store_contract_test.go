package ward

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

// runStoreContract exercises the behaviour every Store implementation must
// share. open must return an empty store with its schema applied.
func runStoreContract(t *testing.T, open func(t *testing.T) Store) {
	t.Run("PatientsSortedByName", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		for _, n := range []string{"Zoe", "Ana", "bob", "Ana"} {
			if _, err := s.CreatePatient(ctx, n, nil); err != nil {
				t.Fatalf("create %s: %v", n, err)
			}
		}
		got, err := s.ListPatients(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []string{"Ana", "Ana", "Zoe", "bob"}
		if len(got) != len(want) {
			t.Fatalf("expected %d patients, got %d", len(want), len(got))
		}
		for i, p := range got {
			if p.Name != want[i] {
				t.Fatalf("position %d: expected %q, got %q", i, want[i], p.Name)
			}
		}

		if err := s.DeletePatient(ctx, got[2].ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		got, err = s.ListPatients(ctx)
		if err != nil {
			t.Fatalf("list after delete: %v", err)
		}
		if len(got) != 3 || got[2].Name != "bob" {
			t.Fatalf("expected Zoe removed, got %+v", got)
		}
	})

	t.Run("CreatePatientValidation", func(t *testing.T) {
		s := open(t)
		_, err := s.CreatePatient(context.Background(), "   ", strPtr("1"))
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("CreatePatientNormalizesRoom", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		p, err := s.CreatePatient(ctx, " Ana ", strPtr(""))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if p.Name != "Ana" || p.Room != nil {
			t.Fatalf("expected trimmed name and nil room, got %+v", p)
		}
		got, err := s.GetPatient(ctx, p.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Name != "Ana" || got.Room != nil {
			t.Fatalf("stored patient mismatch: %+v", got)
		}
	})

	t.Run("GetPatientNotFound", func(t *testing.T) {
		s := open(t)
		_, err := s.GetPatient(context.Background(), "missing")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpdatePatient", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		p, err := s.CreatePatient(ctx, "Ana", strPtr("204"))
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		up, err := s.UpdatePatient(ctx, p.ID, "Ana María", nil)
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if up.Name != "Ana María" || up.Room != nil {
			t.Fatalf("expected full replace, got %+v", up)
		}
		got, _ := s.GetPatient(ctx, p.ID)
		if got.Name != "Ana María" || got.Room != nil {
			t.Fatalf("update not persisted: %+v", got)
		}

		if _, err := s.UpdatePatient(ctx, p.ID, "", nil); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if _, err := s.UpdatePatient(ctx, "missing", "X", nil); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DeletePatientDetachesTasks", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		p, err := s.CreatePatient(ctx, "Ana", strPtr("204"))
		if err != nil {
			t.Fatalf("create patient: %v", err)
		}
		before := time.Now().Add(-time.Second)
		task, err := s.CreateTask(ctx, "X-ray", "Rx", &p.ID)
		if err != nil {
			t.Fatalf("create task: %v", err)
		}
		if task.Status != StatusOpen {
			t.Fatalf("expected open, got %s", task.Status)
		}
		if task.CreatedAt.Before(before) || task.CreatedAt.After(time.Now().Add(time.Second)) {
			t.Fatalf("created_at %v not set to now", task.CreatedAt)
		}

		all, err := s.ListTasksAll(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 1 {
			t.Fatalf("expected 1 task, got %d", len(all))
		}
		if all[0].PatientName == nil || *all[0].PatientName != "Ana" {
			t.Fatalf("expected patient_name Ana, got %v", all[0].PatientName)
		}
		if all[0].PatientRoom == nil || *all[0].PatientRoom != "204" {
			t.Fatalf("expected patient_room 204, got %v", all[0].PatientRoom)
		}

		if err := s.DeletePatient(ctx, p.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		all, err = s.ListTasksAll(ctx)
		if err != nil {
			t.Fatalf("list after delete: %v", err)
		}
		if len(all) != 1 || all[0].ID != task.ID {
			t.Fatalf("expected task to survive patient deletion, got %+v", all)
		}
		if all[0].PatientID != nil || all[0].PatientName != nil || all[0].PatientRoom != nil {
			t.Fatalf("expected nulled patient fields, got %+v", all[0])
		}
		got, err := s.GetTask(ctx, task.ID)
		if err != nil {
			t.Fatalf("get task: %v", err)
		}
		if got.PatientID != nil {
			t.Fatalf("expected patient_id nil, got %q", *got.PatientID)
		}
	})

	t.Run("DeletePatientIsAtomicForReaders", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		p, err := s.CreatePatient(ctx, "Ana", strPtr("204"))
		if err != nil {
			t.Fatalf("create patient: %v", err)
		}
		for i := 0; i < 50; i++ {
			if _, err := s.CreateTask(ctx, fmt.Sprintf("task %d", i), "Sala", &p.ID); err != nil {
				t.Fatalf("create task %d: %v", i, err)
			}
		}

		done := make(chan error, 1)
		go func() { done <- s.DeletePatient(ctx, p.ID) }()

		check := func() {
			t.Helper()
			all, err := s.ListTasksAll(ctx)
			if err != nil {
				t.Fatalf("list during delete: %v", err)
			}
			linked := 0
			for _, v := range all {
				if v.PatientID != nil && v.PatientName == nil {
					t.Fatalf("task %s references a patient that no longer resolves", v.ID)
				}
				if v.PatientID != nil {
					linked++
				}
			}
			if linked != 0 && linked != len(all) {
				t.Fatalf("observed %d of %d tasks still linked", linked, len(all))
			}
		}
		for {
			select {
			case err := <-done:
				if err != nil {
					t.Fatalf("delete: %v", err)
				}
				check()
				return
			default:
				check()
			}
		}
	})

	t.Run("DeletePatientNotFound", func(t *testing.T) {
		s := open(t)
		if err := s.DeletePatient(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("CreateTaskValidation", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		if _, err := s.CreateTask(ctx, "X-ray", "Radiology", nil); !errors.Is(err, ErrValidation) {
			t.Fatalf("unknown category: expected ErrValidation, got %v", err)
		}
		if _, err := s.CreateTask(ctx, "x-ray", "rx", nil); !errors.Is(err, ErrValidation) {
			t.Fatalf("category match must be exact: got %v", err)
		}
		if _, err := s.CreateTask(ctx, "  ", "Rx", nil); !errors.Is(err, ErrValidation) {
			t.Fatalf("empty description: expected ErrValidation, got %v", err)
		}
		st, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if st.Tasks != 0 {
			t.Fatalf("expected no rows persisted, got %d", st.Tasks)
		}
	})

	t.Run("CreateTaskUnknownPatient", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		if _, err := s.CreateTask(ctx, "Hemograma", "Laboratorio", strPtr("missing")); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		st, _ := s.Stats(ctx)
		if st.Tasks != 0 {
			t.Fatalf("expected no rows persisted, got %d", st.Tasks)
		}
	})

	t.Run("SetTaskStatus", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		task, err := s.CreateTask(ctx, "Curación", "Sala", nil)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		for i := 0; i < 2; i++ {
			done, err := s.SetTaskStatus(ctx, task.ID, StatusDone)
			if err != nil {
				t.Fatalf("set done #%d: %v", i, err)
			}
			if done.Status != StatusDone {
				t.Fatalf("expected done, got %s", done.Status)
			}
		}
		reopened, err := s.SetTaskStatus(ctx, task.ID, StatusOpen)
		if err != nil {
			t.Fatalf("set open: %v", err)
		}
		if reopened.Status != StatusOpen || !reopened.CreatedAt.Equal(task.CreatedAt) || reopened.Description != task.Description {
			t.Fatalf("unexpected task after reopen: %+v", reopened)
		}
		if _, err := s.SetTaskStatus(ctx, task.ID, "archived"); !errors.Is(err, ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
		if _, err := s.SetTaskStatus(ctx, "missing", StatusDone); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := s.GetTask(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListTasksByCategory", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		ana, _ := s.CreatePatient(ctx, "Ana", strPtr("204"))
		leo, _ := s.CreatePatient(ctx, "Leo", nil)

		xray, err := s.CreateTask(ctx, "X-ray", "Rx", &ana.ID)
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		orphan, _ := s.CreateTask(ctx, "Chest film", "Rx", &leo.ID)
		if _, err := s.CreateTask(ctx, "Unassigned film", "Rx", nil); err != nil {
			t.Fatalf("create unassigned: %v", err)
		}
		if _, err := s.CreateTask(ctx, "Hemograma", "Laboratorio", &ana.ID); err != nil {
			t.Fatalf("create lab: %v", err)
		}
		if err := s.DeletePatient(ctx, leo.ID); err != nil {
			t.Fatalf("delete leo: %v", err)
		}

		got, err := s.ListTasksByCategory(ctx, "Rx")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].ID != xray.ID {
			t.Fatalf("expected only the X-ray task, got %+v", got)
		}
		if got[0].PatientName == nil || *got[0].PatientName != "Ana" {
			t.Fatalf("expected enrichment, got %+v", got[0])
		}

		all, _ := s.ListTasksAll(ctx)
		found := false
		for _, v := range all {
			if v.ID == orphan.ID {
				found = true
			}
		}
		if !found {
			t.Fatal("all-tasks projection must keep tasks whose patient was deleted")
		}

		if _, err := s.SetTaskStatus(ctx, xray.ID, StatusDone); err != nil {
			t.Fatalf("set done: %v", err)
		}
		got, err = s.ListTasksByCategory(ctx, "Rx")
		if err != nil {
			t.Fatalf("list after done: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("expected done task to leave the worklist, got %+v", got)
		}

		got, err = s.ListTasksByCategory(ctx, "Nope")
		if err != nil || len(got) != 0 {
			t.Fatalf("unknown category: expected empty list, got %v, %v", got, err)
		}
	})

	t.Run("ListTasksAllNewestFirst", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		var ids []string
		for _, d := range []string{"first", "second", "third"} {
			task, err := s.CreateTask(ctx, d, "Sala", nil)
			if err != nil {
				t.Fatalf("create %s: %v", d, err)
			}
			ids = append(ids, task.ID)
		}
		all, err := s.ListTasksAll(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 tasks, got %d", len(all))
		}
		for i, v := range all {
			if v.ID != ids[len(ids)-1-i] {
				t.Fatalf("position %d: expected %s, got %s", i, ids[len(ids)-1-i], v.ID)
			}
		}
	})

	t.Run("Stats", func(t *testing.T) {
		ctx := context.Background()
		s := open(t)
		p, _ := s.CreatePatient(ctx, "Ana", nil)
		a, _ := s.CreateTask(ctx, "a", "Alta", &p.ID)
		if _, err := s.CreateTask(ctx, "b", "POI", nil); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := s.SetTaskStatus(ctx, a.ID, StatusDone); err != nil {
			t.Fatalf("set done: %v", err)
		}
		st, err := s.Stats(ctx)
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if st != (Stats{Patients: 1, Tasks: 2, OpenTasks: 1}) {
			t.Fatalf("unexpected stats %+v", st)
		}
	})
}
