package presenter

import (
	"context"
	"sync"

	"github.com/music-school-hub/student-registry/internal/domain/student"
)

// EditDialog edits a single student's mutable fields.
type EditDialog struct {
	registry Registry
	id       string

	mu     sync.Mutex
	open   bool
	saving bool
	patch  student.Patch
}

// NewEditDialog opens a dialog prefilled from s. A missing skill level
// defaults to Beginner.
func NewEditDialog(registry Registry, s student.Student) *EditDialog {
	level := s.SkillLevel
	if level == "" {
		level = student.SkillBeginner
	}
	return &EditDialog{
		registry: registry,
		id:       s.ID,
		open:     true,
		patch: student.Patch{
			Name:       student.StringPtr(s.Name),
			Email:      student.StringPtr(s.Email),
			Instrument: student.StringPtr(s.Instrument),
			SkillLevel: student.SkillPtr(level),
		},
	}
}

// StudentID returns the id of the student being edited.
func (d *EditDialog) StudentID() string { return d.id }

// Open reports whether the dialog is still open.
func (d *EditDialog) Open() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

// Saving reports whether a save is in flight.
func (d *EditDialog) Saving() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saving
}

// Values returns the current field values.
func (d *EditDialog) Values() student.Patch {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.patch
}

// SetName sets the name field.
func (d *EditDialog) SetName(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patch.Name = student.StringPtr(v)
}

// SetEmail sets the email field.
func (d *EditDialog) SetEmail(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patch.Email = student.StringPtr(v)
}

// SetInstrument sets the instrument field.
func (d *EditDialog) SetInstrument(v string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patch.Instrument = student.StringPtr(v)
}

// SetSkillLevel sets the skill level field.
func (d *EditDialog) SetSkillLevel(level student.SkillLevel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.patch.SkillLevel = student.SkillPtr(level)
}

// Apply copies every field present in p into the dialog.
func (d *EditDialog) Apply(p student.Patch) {
	if p.Name != nil {
		d.SetName(*p.Name)
	}
	if p.Email != nil {
		d.SetEmail(*p.Email)
	}
	if p.Instrument != nil {
		d.SetInstrument(*p.Instrument)
	}
	if p.SkillLevel != nil {
		d.SetSkillLevel(*p.SkillLevel)
	}
}

// Save sends the dialog's fields to the registry. The dialog closes only
// when the registry returns the updated student; otherwise it stays open.
func (d *EditDialog) Save(ctx context.Context) *student.Student {
	d.mu.Lock()
	if !d.open {
		d.mu.Unlock()
		return nil
	}
	d.saving = true
	patch := d.patch
	d.mu.Unlock()

	updated := d.registry.Update(ctx, d.id, patch)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.saving = false
	if updated != nil {
		d.open = false
	}
	return updated
}

// Cancel closes the dialog without saving.
func (d *EditDialog) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
}
