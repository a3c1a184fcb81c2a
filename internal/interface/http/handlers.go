package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/music-school-hub/student-registry/internal/domain/student"
	"github.com/music-school-hub/student-registry/internal/interface/http/handlers"
	"github.com/music-school-hub/student-registry/internal/interface/presenter"
	"github.com/music-school-hub/student-registry/pkg/logger"
)

// maxBodyBytes caps request bodies of the write endpoints.
const maxBodyBytes = 64 << 10

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "Student Registry API",
		"version": s.config.Version,
		"uptime":  s.Uptime().Round(time.Second).String(),
		"endpoints": map[string]string{
			"health":        "/health",
			"students":      "/api/v1/students",
			"view":          "/api/v1/students/view",
			"refetch":       "/api/v1/students/refetch",
			"notifications": "/api/v1/notifications",
		},
	})
}

// handleHealth runs every registered check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Healthy {
		writeJSON(w, r, http.StatusServiceUnavailable, status)
		return
	}
	writeJSON(w, r, http.StatusOK, status)
}

// handleReady additionally requires the initial load to have finished.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Registry.Loaded() {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "initial load in progress",
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	if !status.Ready {
		writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": status.Message,
		})
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": s.Uptime().Round(time.Second).String(),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// StudentsResponse is the body of the collection endpoints.
type StudentsResponse struct {
	Loaded   bool              `json:"loaded"`
	State    string            `json:"state"`
	Header   string            `json:"header"`
	Students []student.Student `json:"students"`
	Rows     []presenter.Row   `json:"rows"`
}

func (s *Server) studentList() *presenter.StudentList {
	return presenter.NewStudentList(s.deps.Registry, s.deps.Notifier)
}

func (s *Server) collection() StudentsResponse {
	list := s.studentList()
	return StudentsResponse{
		Loaded:   s.deps.Registry.Loaded(),
		State:    string(list.State()),
		Header:   list.Header(),
		Students: s.deps.Registry.Snapshot(),
		Rows:     list.Rows(),
	}
}

// handleListStudents handles GET /api/v1/students.
// The ETag covers the collection only, so it changes exactly when the
// registry's contents or load state change.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	body := s.collection()

	tagged, err := json.Marshal(struct {
		Loaded   bool              `json:"loaded"`
		Students []student.Student `json:"students"`
	}{body.Loaded, body.Students})
	if err != nil {
		logger.FromContext(r.Context()).Error("failed to encode collection", logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Failed to encode students")
		return
	}

	etag := handlers.ETag(tagged)
	w.Header().Set("ETag", etag)
	if handlers.NotModified(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeJSONWithMeta(w, r, http.StatusOK, body, &ResponseMeta{TotalCount: len(body.Students)})
}

// handleGetStudent handles GET /api/v1/students/{id}.
func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	st, ok := s.deps.Registry.Get(id)
	if !ok {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "Student not found")
		return
	}

	writeJSON(w, r, http.StatusOK, st)
}

// handleRegisterStudent handles POST /api/v1/students.
func (s *Server) handleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	var fields presenter.FormFields
	if err := decodeBody(r, &fields); err != nil {
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_request", "Invalid JSON payload", err.Error())
		return
	}

	form := presenter.NewRegistrationForm(s.deps.Registry, s.deps.Notifier)
	form.Fill(fields)

	created, result := form.Submit(r.Context())
	switch result {
	case presenter.SubmitRejected:
		writeJSONErrorWithDetails(w, r, http.StatusUnprocessableEntity, "missing_fields",
			"Please fill in all required fields.", strings.Join(fields.Missing(), ", "))
	case presenter.SubmitFailed:
		writeJSONError(w, r, http.StatusBadGateway, "store_error", "Failed to register student.")
	default:
		w.Header().Set("Location", "/api/v1/students/"+created.ID)
		writeJSON(w, r, http.StatusCreated, created)
	}
}

// handleUpdateStudent handles PATCH /api/v1/students/{id}.
// The body is applied to an edit dialog prefilled from the collection, so
// every field is sent to the store.
func (s *Server) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var patch student.Patch
	if err := decodeBody(r, &patch); err != nil {
		writeJSONErrorWithDetails(w, r, http.StatusBadRequest, "invalid_request", "Invalid JSON payload", err.Error())
		return
	}

	dialog, ok := s.studentList().Edit(id)
	if !ok {
		writeJSONError(w, r, http.StatusNotFound, "not_found", "Student not found")
		return
	}

	dialog.Apply(patch)
	updated := dialog.Save(r.Context())
	if updated == nil {
		writeJSONError(w, r, http.StatusBadGateway, "store_error", "Failed to update student.")
		return
	}

	writeJSON(w, r, http.StatusOK, updated)
}

// handleDeleteStudent handles DELETE /api/v1/students/{id}.
// The request itself is the confirmation.
func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	list := s.studentList()
	list.RequestDelete(id)
	if !list.ConfirmDelete(r.Context()) {
		writeJSONError(w, r, http.StatusBadGateway, "store_error", "Failed to delete student.")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]string{"deleted": id})
}

// handleRefetch handles POST /api/v1/students/refetch.
func (s *Server) handleRefetch(w http.ResponseWriter, r *http.Request) {
	s.deps.Registry.Refetch(r.Context())

	body := s.collection()
	writeJSONWithMeta(w, r, http.StatusOK, body, &ResponseMeta{TotalCount: len(body.Students)})
}

// handleRenderStudents handles GET /api/v1/students/view.
func (s *Server) handleRenderStudents(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.studentList().Render(&buf); err != nil {
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", "Failed to render students")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleNotifications handles GET /api/v1/notifications?since=N.
func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	since, err := getQueryParamUint(r, "since", 0)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "since must be a non-negative integer")
		return
	}

	items := s.deps.Feed.Since(since)
	writeJSONWithMeta(w, r, http.StatusOK, items, &ResponseMeta{TotalCount: len(items)})
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

var errEmptyBody = errors.New("request body is empty")

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func getQueryParamUint(r *http.Request, key string, defaultValue uint64) (uint64, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.ParseUint(value, 10, 64)
}
