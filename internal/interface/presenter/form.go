// Package presenter contains the headless presentation components: the
// registration form, the student list and the edit dialog. They hold view
// state only and route every change through the registry.
package presenter

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/music-school-hub/student-registry/internal/domain/notification"
	"github.com/music-school-hub/student-registry/internal/domain/student"
)

// Registry is the subset of registry.Registry the presenters call into.
type Registry interface {
	Add(ctx context.Context, draft student.Draft) *student.Student
	Update(ctx context.Context, id string, patch student.Patch) *student.Student
	Remove(ctx context.Context, id string) bool
	Snapshot() []student.Student
	Get(id string) (student.Student, bool)
	Loaded() bool
}

// Notifier receives warnings raised locally by the presenters.
type Notifier interface {
	Notify(ctx context.Context, n notification.Notification)
}

var validate = newValidator()

// newValidator reports field errors under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	return v
}

// FormFields is the raw input of the registration form.
type FormFields struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required"`
	Instrument string `json:"instrument" validate:"required"`
	SkillLevel string `json:"skill_level" validate:"required"`
}

// Missing returns the JSON names of the empty required fields in field
// order. Only the empty string counts as missing; whitespace is input.
func (f FormFields) Missing() []string {
	var verrs validator.ValidationErrors
	if !errors.As(validate.Struct(f), &verrs) {
		return nil
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return missing
}

// SubmitResult describes the outcome of a form submission.
type SubmitResult int

const (
	// SubmitRejected means required fields were missing; the registry was not called.
	SubmitRejected SubmitResult = iota
	// SubmitFailed means the registry returned no student.
	SubmitFailed
	// SubmitSucceeded means the student was registered and the form cleared.
	SubmitSucceeded
)

// RegistrationForm collects a new student's details.
type RegistrationForm struct {
	registry Registry
	notifier Notifier

	mu         sync.Mutex
	fields     FormFields
	submitting bool
}

// NewRegistrationForm creates an empty form.
func NewRegistrationForm(registry Registry, notifier Notifier) *RegistrationForm {
	return &RegistrationForm{registry: registry, notifier: notifier}
}

// SetName sets the name field.
func (f *RegistrationForm) SetName(v string) { f.set(func(ff *FormFields) { ff.Name = v }) }

// SetEmail sets the email field.
func (f *RegistrationForm) SetEmail(v string) { f.set(func(ff *FormFields) { ff.Email = v }) }

// SetInstrument sets the instrument field.
func (f *RegistrationForm) SetInstrument(v string) { f.set(func(ff *FormFields) { ff.Instrument = v }) }

// SetSkillLevel sets the skill level field.
func (f *RegistrationForm) SetSkillLevel(v string) { f.set(func(ff *FormFields) { ff.SkillLevel = v }) }

// Fill replaces all fields at once.
func (f *RegistrationForm) Fill(fields FormFields) { f.set(func(ff *FormFields) { *ff = fields }) }

func (f *RegistrationForm) set(apply func(*FormFields)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	apply(&f.fields)
}

// Fields returns the current field values.
func (f *RegistrationForm) Fields() FormFields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Submitting reports whether a submission is in flight.
func (f *RegistrationForm) Submitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

// Submit validates the form and registers the student. Incomplete input
// raises a MissingFields warning without contacting the registry. The form
// is cleared only when the registry returns the stored student.
func (f *RegistrationForm) Submit(ctx context.Context) (*student.Student, SubmitResult) {
	f.mu.Lock()
	fields := f.fields
	f.mu.Unlock()

	draft, ok := toDraft(fields)
	if !ok {
		if f.notifier != nil {
			f.notifier.Notify(ctx, notification.MissingFields())
		}
		return nil, SubmitRejected
	}

	f.mu.Lock()
	f.submitting = true
	f.mu.Unlock()

	created := f.registry.Add(ctx, draft)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false
	if created == nil {
		return nil, SubmitFailed
	}
	f.fields = FormFields{}
	return created, SubmitSucceeded
}

// toDraft validates required fields and converts them into a draft.
// An unrecognised skill level counts as missing.
func toDraft(fields FormFields) (student.Draft, bool) {
	if len(fields.Missing()) > 0 {
		return student.Draft{}, false
	}
	level, err := student.ParseSkillLevel(fields.SkillLevel)
	if err != nil {
		return student.Draft{}, false
	}
	return student.Draft{
		Name:       fields.Name,
		Email:      fields.Email,
		Instrument: fields.Instrument,
		SkillLevel: level,
	}, true
}
