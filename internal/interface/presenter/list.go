package presenter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"github.com/music-school-hub/student-registry/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// VIEW STATE
// ══════════════════════════════════════════════════════════════════════════════

// ListState distinguishes "still loading" from "loaded but empty".
type ListState string

const (
	ListLoading ListState = "loading"
	ListEmpty   ListState = "empty"
	ListReady   ListState = "ready"
)

// Empty-state copy.
const (
	EmptyTitle       = "No Students Registered Yet"
	EmptyDescription = "Be the first to register for our music program!"
	LoadingMessage   = "Loading students..."
)

// DateLayout formats the registration date of a row.
const DateLayout = "Jan 2, 2006"

// BadgeColor is the colour of a skill-level badge.
type BadgeColor string

const (
	BadgeGreen  BadgeColor = "green"
	BadgeYellow BadgeColor = "yellow"
	BadgeRed    BadgeColor = "red"
)

// SkillBadge maps a skill level to its badge colour.
// Panics on a value outside the enumeration, which cannot be constructed
// through ParseSkillLevel or JSON decoding.
func SkillBadge(level student.SkillLevel) BadgeColor {
	switch level {
	case student.SkillBeginner:
		return BadgeGreen
	case student.SkillIntermediate:
		return BadgeYellow
	case student.SkillAdvanced:
		return BadgeRed
	}
	panic(fmt.Sprintf("presenter: unhandled skill level %q", level))
}

// Row is a rendered list entry.
type Row struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	Instrument string     `json:"instrument"`
	SkillLevel string     `json:"skill_level"`
	Badge      BadgeColor `json:"badge"`
	Registered string     `json:"registered"`
}

func toRow(s student.Student) Row {
	return Row{
		ID:         s.ID,
		Name:       s.Name,
		Email:      s.Email,
		Instrument: s.Instrument,
		SkillLevel: s.SkillLevel.String(),
		Badge:      SkillBadge(s.SkillLevel),
		Registered: s.RegisteredAt.Format(DateLayout),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT LIST
// ══════════════════════════════════════════════════════════════════════════════

// StudentList renders the registry's collection and routes row actions.
type StudentList struct {
	registry Registry
	notifier Notifier

	mu            sync.Mutex
	pendingDelete string
}

// NewStudentList creates a list bound to the registry.
func NewStudentList(registry Registry, notifier Notifier) *StudentList {
	return &StudentList{registry: registry, notifier: notifier}
}

// State returns the current view state.
func (l *StudentList) State() ListState {
	if !l.registry.Loaded() {
		return ListLoading
	}
	if len(l.registry.Snapshot()) == 0 {
		return ListEmpty
	}
	return ListReady
}

// Rows returns the rendered rows in collection order.
func (l *StudentList) Rows() []Row {
	snapshot := l.registry.Snapshot()
	rows := make([]Row, len(snapshot))
	for i, s := range snapshot {
		rows[i] = toRow(s)
	}
	return rows
}

// Header returns the list title with the student count.
func (l *StudentList) Header() string {
	return fmt.Sprintf("Registered Students (%d)", len(l.registry.Snapshot()))
}

// ─────────────────────────────────────────────────────────────────────────────
// Row actions
// ─────────────────────────────────────────────────────────────────────────────

// Edit opens an edit dialog prefilled from the row with the given id.
func (l *StudentList) Edit(id string) (*EditDialog, bool) {
	s, ok := l.registry.Get(id)
	if !ok {
		return nil, false
	}
	return NewEditDialog(l.registry, s), true
}

// RequestDelete asks for confirmation before deleting the row.
func (l *StudentList) RequestDelete(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pendingDelete = id
}

// PendingDelete returns the id awaiting confirmation, if any.
func (l *StudentList) PendingDelete() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pendingDelete, l.pendingDelete != ""
}

// CancelDelete discards the pending confirmation.
func (l *StudentList) CancelDelete() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pendingDelete = ""
}

// ConfirmDelete removes the pending row. Without a pending request it does
// nothing and returns false.
func (l *StudentList) ConfirmDelete(ctx context.Context) bool {
	l.mu.Lock()
	id := l.pendingDelete
	l.pendingDelete = ""
	l.mu.Unlock()

	if id == "" {
		return false
	}
	return l.registry.Remove(ctx, id)
}

// ─────────────────────────────────────────────────────────────────────────────
// Text rendering
// ─────────────────────────────────────────────────────────────────────────────

var columns = []string{"NAME", "EMAIL", "INSTRUMENT", "LEVEL", "REGISTERED"}

// Render writes the list as an aligned text table.
func (l *StudentList) Render(w io.Writer) error {
	var b strings.Builder

	switch l.State() {
	case ListLoading:
		b.WriteString(LoadingMessage + "\n")
	case ListEmpty:
		b.WriteString(EmptyTitle + "\n")
		b.WriteString(EmptyDescription + "\n")
	case ListReady:
		rows := l.Rows()
		b.WriteString(l.Header() + "\n\n")
		writeTable(&b, rows)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTable(b *strings.Builder, rows []Row) {
	cells := make([][]string, 0, len(rows)+1)
	cells = append(cells, columns)
	for _, r := range rows {
		cells = append(cells, []string{r.Name, r.Email, r.Instrument, r.SkillLevel, r.Registered})
	}

	widths := make([]int, len(columns))
	for _, line := range cells {
		for i, c := range line {
			if w := runewidth.StringWidth(c); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for _, line := range cells {
		for i, c := range line {
			if i == len(line)-1 {
				b.WriteString(c)
				continue
			}
			b.WriteString(runewidth.FillRight(c, widths[i]))
			b.WriteString("  ")
		}
		b.WriteString("\n")
	}
}
