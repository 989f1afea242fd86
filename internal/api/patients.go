package api

import (
	"net/http"
)

type patientRequest struct {
	Name string  `json:"name"`
	Room *string `json:"room"`
}

func (s *Server) handlePatientList(w http.ResponseWriter, r *http.Request) {
	patients, err := s.svc.ListPatients(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, patients)
}

func (s *Server) handlePatientGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetPatient(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, p)
}

func (s *Server) handlePatientCreate(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.svc.CreatePatient(r.Context(), req.Name, req.Room)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 201, p)
}

func (s *Server) handlePatientUpdate(w http.ResponseWriter, r *http.Request) {
	var req patientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := s.svc.UpdatePatient(r.Context(), r.PathValue("id"), req.Name, req.Room)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, p)
}

func (s *Server) handlePatientDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeletePatient(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, 200, map[string]string{"status": "deleted"})
}
