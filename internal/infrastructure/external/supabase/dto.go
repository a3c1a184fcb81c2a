package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/music-school-hub/student-registry/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROWS
// ══════════════════════════════════════════════════════════════════════════════

// StudentRow is a row of the students table as PostgREST returns it.
type StudentRow struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Instrument   string    `json:"instrument"`
	SkillLevel   string    `json:"skill_level"`
	RegisteredAt Timestamp `json:"registered_at"`
}

// ToDomain converts the row, rejecting unknown skill levels.
func (r StudentRow) ToDomain() (*student.Student, error) {
	level, err := student.ParseSkillLevel(r.SkillLevel)
	if err != nil {
		return nil, fmt.Errorf("row %s: %w", r.ID, err)
	}

	return &student.Student{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Instrument:   r.Instrument,
		SkillLevel:   level,
		RegisteredAt: r.RegisteredAt.Time.UTC(),
	}, nil
}

// timestampLayouts are tried in order. Columns of type timestamp (without
// time zone) come back without an offset and are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.DateOnly,
}

// Timestamp decodes registered_at from timestamptz, timestamp or date columns.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("registered_at: %w", err)
	}

	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("registered_at: unrecognized timestamp %q", raw)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

// InsertRow is the insert payload; id and registered_at come from table defaults.
type InsertRow struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Instrument string `json:"instrument"`
	SkillLevel string `json:"skill_level"`
}

func insertRowFromDraft(d student.Draft) InsertRow {
	return InsertRow{
		Name:       d.Name,
		Email:      d.Email,
		Instrument: d.Instrument,
		SkillLevel: string(d.SkillLevel),
	}
}

func rowsToDomain(rows []StudentRow) ([]*student.Student, error) {
	out := make([]*student.Student, 0, len(rows))
	for _, r := range rows {
		s, err := r.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// APIError is a PostgREST error body plus the HTTP status.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// Error implements error.
func (e *APIError) Error() string {
	msg := fmt.Sprintf("postgrest: status %d", e.Status)
	if e.Code != "" {
		msg += " code " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// IsServerError reports whether the backend, not the request, failed.
func (e *APIError) IsServerError() bool {
	return e.Status >= http.StatusInternalServerError || e.Status == http.StatusTooManyRequests
}

// isBreakerFailure counts transport errors and server errors against the
// circuit; client errors and missing rows do not trip it.
func isBreakerFailure(err error) bool {
	if errors.Is(err, student.ErrStudentNotFound) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsServerError()
	}
	return true
}
