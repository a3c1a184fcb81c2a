package messaging

import (
	"context"
	"slices"
	"sync"

	"github.com/music-school-hub/student-registry/internal/domain/notification"
)

// Feed keeps the most recent notifications in memory so that HTTP and CLI
// clients can poll for toasts they have not seen yet.
type Feed struct {
	mu      sync.RWMutex
	entries []notification.Notification
	maxSize int
}

// NewFeed creates a feed holding at most maxSize notifications.
func NewFeed(maxSize int) *Feed {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Feed{
		entries: make([]notification.Notification, 0),
		maxSize: maxSize,
	}
}

// Handler returns a bus handler that appends to the feed.
func (f *Feed) Handler() Handler {
	return func(_ context.Context, n notification.Notification) error {
		f.Add(n)
		return nil
	}
}

// Add stores n in Seq order, dropping the oldest entry at capacity.
func (f *Feed) Add(n notification.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := len(f.entries)
	for i > 0 && f.entries[i-1].Seq > n.Seq {
		i--
	}
	f.entries = slices.Insert(f.entries, i, n)
	if len(f.entries) > f.maxSize {
		f.entries = f.entries[1:]
	}
}

// Since returns notifications with Seq greater than seq, oldest first.
func (f *Feed) Since(seq uint64) []notification.Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]notification.Notification, 0)
	for _, n := range f.entries {
		if n.Seq > seq {
			result = append(result, n)
		}
	}
	return result
}
