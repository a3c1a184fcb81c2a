// Package memory provides an in-process implementation of student.Store.
// It is used by the "memory" store driver and throughout the tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/music-school-hub/student-registry/internal/domain/student"
)

// Option configures a StudentStore.
type Option func(*StudentStore)

// WithClock overrides the clock used for registered_at.
func WithClock(now func() time.Time) Option {
	return func(s *StudentStore) { s.now = now }
}

// WithIDGenerator overrides id assignment.
func WithIDGenerator(gen func() string) Option {
	return func(s *StudentStore) { s.newID = gen }
}

// StudentStore keeps rows in a map keyed by id.
type StudentStore struct {
	mu    sync.RWMutex
	rows  map[string]*student.Student
	now   func() time.Time
	newID func() string
}

// NewStudentStore creates an empty store.
func NewStudentStore(opts ...Option) *StudentStore {
	s := &StudentStore{
		rows:  make(map[string]*student.Student),
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed inserts fully formed rows as-is, replacing rows with the same id.
func (s *StudentStore) Seed(rows ...student.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range rows {
		row := rows[i]
		s.rows[row.ID] = &row
	}
}

// List returns all rows ordered per opts.
func (s *StudentStore) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]*student.Student, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row.Clone())
	}
	s.mu.RUnlock()

	column := opts.Column()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if opts.Descending {
			a, b = b, a
		}
		switch column {
		case student.OrderByName:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		default:
			return a.RegisteredAt.Before(b.RegisteredAt)
		}
	})
	return out, nil
}

// maxIDAttempts bounds how many generated ids Insert tries before it
// reports a duplicate.
const maxIDAttempts = 8

// Insert stores draft with a fresh id and timestamp. Generated ids that are
// already taken are skipped.
func (s *StudentStore) Insert(ctx context.Context, draft student.Draft) (*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !draft.SkillLevel.IsValid() {
		return nil, student.ErrInvalidSkillLevel
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := ""
	for range maxIDAttempts {
		candidate := s.newID()
		if _, exists := s.rows[candidate]; !exists {
			id = candidate
			break
		}
	}
	if id == "" {
		return nil, student.ErrStudentAlreadyExists
	}

	row := &student.Student{
		ID:           id,
		Name:         draft.Name,
		Email:        draft.Email,
		Instrument:   draft.Instrument,
		SkillLevel:   draft.SkillLevel,
		RegisteredAt: s.now(),
	}
	s.rows[row.ID] = row
	return row.Clone(), nil
}

// Update applies patch to the row with the given id.
func (s *StudentStore) Update(ctx context.Context, id string, patch student.Patch) (*student.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, student.ErrEmptyPatch
	}
	if patch.SkillLevel != nil && !patch.SkillLevel.IsValid() {
		return nil, student.ErrInvalidSkillLevel
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	updated := patch.Apply(row)
	s.rows[id] = updated
	return updated.Clone(), nil
}

// Delete removes the row with the given id.
func (s *StudentStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return student.ErrStudentNotFound
	}
	delete(s.rows, id)
	return nil
}

// Count returns the number of stored rows.
func (s *StudentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Ping always succeeds.
func (s *StudentStore) Ping(ctx context.Context) error {
	return ctx.Err()
}
