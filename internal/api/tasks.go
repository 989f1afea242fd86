package api

import (
	"net/http"
	"time"
)

type taskRequest struct {
	Description string  `json:"description"`
	Category    string  `json:"category"`
	PatientID   *string `json:"patient_id"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.ListAll(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.svc.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := s.svc.CreateTask(r.Context(), req.Description, req.Category, req.PatientID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 201, t)
}

func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := s.svc.SetStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, t)
}

func (s *Server) handleTaskPending(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.ListPending(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskDay(w http.ResponseWriter, r *http.Request) {
	day, err := s.svc.ParseDay(r.PathValue("date"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	tasks, err := s.svc.ListByDay(r.Context(), day)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleTaskCategory(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.ListByCategory(r.Context(), r.PathValue("category"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, tasks)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = s.svc.ParseDay(v); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = s.svc.ParseDay(v); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	days, err := s.svc.Calendar(r.Context(), from, to)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, days)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, s.svc.Categories())
}
