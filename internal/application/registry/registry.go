// Package registry holds the in-process student collection and keeps it
// in sync with the remote student store.
//
// Every mutation waits for the store to confirm it. Failures never escape as
// errors: they are logged, turned into a user-visible notification, and
// reported to the caller as a nil/false sentinel.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/music-school-hub/student-registry/internal/domain/notification"
	"github.com/music-school-hub/student-registry/internal/domain/student"
	"github.com/music-school-hub/student-registry/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES (Interfaces)
// ══════════════════════════════════════════════════════════════════════════════

// Notifier receives the notifications produced by registry operations.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n notification.Notification)

// Notify calls f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n notification.Notification) {
	f(ctx, n)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, notification.Notification) {}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l.With(logger.Component("registry"))
		}
	}
}

// Registry is the single owner of the in-memory student collection.
// Reads return copies; all writes go through the store first.
type Registry struct {
	store    student.Store
	notifier Notifier
	logger   *logger.Logger

	mu       sync.RWMutex
	students []*student.Student
	loaded   bool
}

// New creates a Registry. Call Load once to perform the initial fetch.
func New(store student.Store, notifier Notifier, opts ...Option) *Registry {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	r := &Registry{
		store:    store,
		notifier: notifier,
		logger:   logger.Nop(),
		students: make([]*student.Student, 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ─────────────────────────────────────────────────────────────────────────────
// Loading
// ─────────────────────────────────────────────────────────────────────────────

// Load performs the initial fetch, newest registrations first.
// Loaded reports true afterwards whether or not the fetch succeeded.
func (r *Registry) Load(ctx context.Context) {
	r.fetch(ctx, "load")
}

// Refetch reloads the whole collection from the store.
// On failure the previous collection is kept.
func (r *Registry) Refetch(ctx context.Context) {
	r.fetch(ctx, "refetch")
}

func (r *Registry) fetch(ctx context.Context, op string) {
	start := time.Now()
	rows, err := r.store.List(ctx, student.DefaultListOptions())
	if err != nil {
		r.logger.Error("failed to fetch students",
			logger.Operation(op),
			logger.Err(err),
			logger.Latency(time.Since(start)),
		)
		r.mu.Lock()
		r.loaded = true
		r.mu.Unlock()
		r.notifier.Notify(ctx, notification.FetchFailed())
		return
	}

	fresh := make([]*student.Student, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, s := range rows {
		if s == nil {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		fresh = append(fresh, s.Clone())
	}

	r.mu.Lock()
	r.students = fresh
	r.loaded = true
	r.mu.Unlock()

	r.logger.Debug("students fetched",
		logger.Operation(op),
		logger.CollectionSize(len(fresh)),
		logger.Latency(time.Since(start)),
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// Mutations
// ─────────────────────────────────────────────────────────────────────────────

// Add inserts draft into the store and prepends the stored row.
// Returns nil if the store rejected the insert. The draft is not re-validated.
func (r *Registry) Add(ctx context.Context, draft student.Draft) *student.Student {
	created, err := r.store.Insert(ctx, draft)
	if err != nil {
		r.logger.Error("failed to add student",
			logger.Operation("add"),
			logger.Email(draft.Email),
			logger.Err(err),
		)
		r.notifier.Notify(ctx, notification.InsertFailed())
		return nil
	}

	stored := created.Clone()

	r.mu.Lock()
	next := make([]*student.Student, 0, len(r.students)+1)
	next = append(next, stored)
	for _, s := range r.students {
		if s.ID != stored.ID {
			next = append(next, s)
		}
	}
	r.students = next
	r.mu.Unlock()

	r.logger.Info("student registered",
		logger.StudentID(stored.ID),
		logger.Instrument(stored.Instrument),
	)
	r.notifier.Notify(ctx, notification.Registered(stored.ID, stored.Name))
	return stored.Clone()
}

// Update applies patch to the student with the given id and replaces the
// local entry in place with the row the store returned.
// Returns nil if the store rejected the update.
func (r *Registry) Update(ctx context.Context, id string, patch student.Patch) *student.Student {
	updated, err := r.store.Update(ctx, id, patch)
	if err != nil {
		r.logger.Error("failed to update student",
			logger.Operation("update"),
			logger.StudentID(id),
			logger.Err(err),
		)
		r.notifier.Notify(ctx, notification.UpdateFailed(id))
		return nil
	}

	stored := updated.Clone()

	r.mu.Lock()
	next := make([]*student.Student, len(r.students))
	for i, s := range r.students {
		if s.ID == id {
			next[i] = stored
		} else {
			next[i] = s
		}
	}
	r.students = next
	r.mu.Unlock()

	r.logger.Info("student updated",
		logger.StudentID(id),
		logger.Any("fields", patch.Fields()),
	)
	r.notifier.Notify(ctx, notification.Updated(id))
	return stored.Clone()
}

// Remove deletes the student from the store, then from the collection.
// Returns false if the store rejected the delete, including an unknown id.
func (r *Registry) Remove(ctx context.Context, id string) bool {
	if err := r.store.Delete(ctx, id); err != nil {
		r.logger.Error("failed to delete student",
			logger.Operation("remove"),
			logger.StudentID(id),
			logger.Err(err),
		)
		r.notifier.Notify(ctx, notification.DeleteFailed(id))
		return false
	}

	r.mu.Lock()
	next := make([]*student.Student, 0, len(r.students))
	for _, s := range r.students {
		if s.ID != id {
			next = append(next, s)
		}
	}
	r.students = next
	r.mu.Unlock()

	r.logger.Info("student deleted", logger.StudentID(id))
	r.notifier.Notify(ctx, notification.Deleted(id))
	return true
}

// ─────────────────────────────────────────────────────────────────────────────
// Reads
// ─────────────────────────────────────────────────────────────────────────────

// Snapshot returns a copy of the current collection in display order.
func (r *Registry) Snapshot() []student.Student {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]student.Student, len(r.students))
	for i, s := range r.students {
		out[i] = *s
	}
	return out
}

// Get returns a copy of the student with the given id.
func (r *Registry) Get(id string) (student.Student, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.students {
		if s.ID == id {
			return *s, true
		}
	}
	return student.Student{}, false
}

// Len returns the number of students in the collection.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.students)
}

// Loaded reports whether the initial load has completed.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}
