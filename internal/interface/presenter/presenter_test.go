package presenter

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-school-hub/student-registry/internal/application/registry"
	"github.com/music-school-hub/student-registry/internal/domain/notification"
	"github.com/music-school-hub/student-registry/internal/domain/student"
	"github.com/music-school-hub/student-registry/internal/infrastructure/persistence/memory"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

type recorder struct {
	mu    sync.Mutex
	items []notification.Notification
}

func (r *recorder) Notify(_ context.Context, n notification.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recorder) last() notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[len(r.items)-1]
}

// stubRegistry counts calls and returns canned results.
type stubRegistry struct {
	addCalls    int
	updateCalls int
	removeCalls int
	lastDraft   student.Draft
	lastPatch   student.Patch
	addResult   *student.Student
	updResult   *student.Student
	removeOK    bool
	students    []student.Student
	loaded      bool
}

func (s *stubRegistry) Add(_ context.Context, d student.Draft) *student.Student {
	s.addCalls++
	s.lastDraft = d
	return s.addResult
}

func (s *stubRegistry) Update(_ context.Context, _ string, p student.Patch) *student.Student {
	s.updateCalls++
	s.lastPatch = p
	return s.updResult
}

func (s *stubRegistry) Remove(context.Context, string) bool {
	s.removeCalls++
	return s.removeOK
}

func (s *stubRegistry) Snapshot() []student.Student { return s.students }

func (s *stubRegistry) Get(id string) (student.Student, bool) {
	for _, st := range s.students {
		if st.ID == id {
			return st, true
		}
	}
	return student.Student{}, false
}

func (s *stubRegistry) Loaded() bool { return s.loaded }

// failingStore rejects every call.
type failingStore struct{}

func (failingStore) List(context.Context, student.ListOptions) ([]*student.Student, error) {
	return nil, errors.New("down")
}
func (failingStore) Insert(context.Context, student.Draft) (*student.Student, error) {
	return nil, errors.New("down")
}
func (failingStore) Update(context.Context, string, student.Patch) (*student.Student, error) {
	return nil, errors.New("down")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("down") }

func fixtureStore() *memory.StudentStore {
	store := memory.NewStudentStore()
	store.Seed(
		student.Student{ID: "1", Name: "Alice", Email: "alice@example.com", Instrument: "Piano",
			SkillLevel: student.SkillBeginner, RegisteredAt: time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)},
		student.Student{ID: "2", Name: "Bob", Email: "bob@example.com", Instrument: "Guitar",
			SkillLevel: student.SkillIntermediate, RegisteredAt: time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC)},
		student.Student{ID: "3", Name: "李雷", Email: "li@example.com", Instrument: "Erhu",
			SkillLevel: student.SkillAdvanced, RegisteredAt: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)},
	)
	return store
}

func loadedRegistry(t *testing.T, store student.Store, n registry.Notifier) *registry.Registry {
	t.Helper()
	r := registry.New(store, n)
	r.Load(context.Background())
	return r
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// ─────────────────────────────────────────────────────────────────────────────
// Registration form
// ─────────────────────────────────────────────────────────────────────────────

func TestRegistrationForm_RejectsEmptyFields(t *testing.T) {
	complete := FormFields{Name: "Bob", Email: "b@x.com", Instrument: "Guitar", SkillLevel: "Intermediate"}

	cases := map[string]func(f *FormFields){
		"name":        func(f *FormFields) { f.Name = "" },
		"email":       func(f *FormFields) { f.Email = "" },
		"instrument":  func(f *FormFields) { f.Instrument = "" },
		"skill_level": func(f *FormFields) { f.SkillLevel = "" },
		"all":         func(f *FormFields) { *f = FormFields{} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			reg := &stubRegistry{}
			rec := &recorder{}
			form := NewRegistrationForm(reg, rec)

			fields := complete
			mutate(&fields)
			form.Fill(fields)

			created, result := form.Submit(context.Background())

			assert.Nil(t, created)
			assert.Equal(t, SubmitRejected, result)
			assert.Zero(t, reg.addCalls)
			assert.Equal(t, notification.KindMissingFields, rec.last().Kind)
			assert.Equal(t, "Please fill in all required fields.", rec.last().Description)
			assert.Equal(t, fields, form.Fields(), "rejected form keeps its input")
		})
	}
}

func TestFormFields_Missing(t *testing.T) {
	assert.Empty(t, FormFields{Name: "A", Email: "a@x", Instrument: "Oboe", SkillLevel: "Beginner"}.Missing())
	assert.Equal(t, []string{"name", "email", "instrument", "skill_level"}, FormFields{}.Missing())
	assert.Equal(t, []string{"email"}, FormFields{Name: "A", Instrument: "Oboe", SkillLevel: "Beginner"}.Missing())
}

func TestRegistrationForm_WhitespaceIsNotEmpty(t *testing.T) {
	reg := &stubRegistry{addResult: &student.Student{ID: "9", Name: " "}}
	form := NewRegistrationForm(reg, &recorder{})
	form.Fill(FormFields{Name: " ", Email: "b@x.com", Instrument: "Guitar", SkillLevel: "Beginner"})

	_, result := form.Submit(context.Background())

	assert.Equal(t, SubmitSucceeded, result)
	assert.Equal(t, 1, reg.addCalls)
	assert.Equal(t, " ", reg.lastDraft.Name, "input is sent as typed")
}

func TestRegistrationForm_UnknownSkillLevelNeverReachesRegistry(t *testing.T) {
	reg := &stubRegistry{}
	form := NewRegistrationForm(reg, &recorder{})
	form.Fill(FormFields{Name: "A", Email: "a@x", Instrument: "Sitar", SkillLevel: "Expert"})

	_, result := form.Submit(context.Background())

	assert.Equal(t, SubmitRejected, result)
	assert.Zero(t, reg.addCalls)
}

func TestRegistrationForm_ClearsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()

	t.Run("success clears", func(t *testing.T) {
		reg := &stubRegistry{addResult: &student.Student{ID: "9", Name: "Bob"}}
		form := NewRegistrationForm(reg, &recorder{})
		form.SetName(" Bob ")
		form.SetEmail("b@x.com")
		form.SetInstrument("Guitar")
		form.SetSkillLevel("intermediate")

		created, result := form.Submit(ctx)

		require.NotNil(t, created)
		assert.Equal(t, SubmitSucceeded, result)
		assert.Equal(t, 1, reg.addCalls)
		assert.Equal(t, student.Draft{Name: "Bob", Email: "b@x.com", Instrument: "Guitar", SkillLevel: student.SkillIntermediate}, reg.lastDraft)
		assert.Equal(t, FormFields{}, form.Fields())
		assert.False(t, form.Submitting())
	})

	t.Run("failure keeps fields", func(t *testing.T) {
		reg := &stubRegistry{}
		form := NewRegistrationForm(reg, &recorder{})
		fields := FormFields{Name: "Bob", Email: "b@x.com", Instrument: "Guitar", SkillLevel: "Advanced"}
		form.Fill(fields)

		created, result := form.Submit(ctx)

		assert.Nil(t, created)
		assert.Equal(t, SubmitFailed, result)
		assert.Equal(t, fields, form.Fields())
	})
}

func TestRegistrationForm_WithRegistryPrependsStudent(t *testing.T) {
	rec := &recorder{}
	reg := loadedRegistry(t, fixtureStore(), rec)
	form := NewRegistrationForm(reg, rec)
	form.Fill(FormFields{Name: "Cleo", Email: "c@x.com", Instrument: "Harp", SkillLevel: "Beginner"})

	created, result := form.Submit(context.Background())

	require.Equal(t, SubmitSucceeded, result)
	assert.Equal(t, created.ID, reg.Snapshot()[0].ID)
	assert.Equal(t, notification.KindRegistered, rec.last().Kind)
}

// ─────────────────────────────────────────────────────────────────────────────
// Student list
// ─────────────────────────────────────────────────────────────────────────────

func TestSkillBadge(t *testing.T) {
	assert.Equal(t, BadgeGreen, SkillBadge(student.SkillBeginner))
	assert.Equal(t, BadgeYellow, SkillBadge(student.SkillIntermediate))
	assert.Equal(t, BadgeRed, SkillBadge(student.SkillAdvanced))
	assert.Panics(t, func() { SkillBadge("Expert") })
}

func TestStudentList_States(t *testing.T) {
	reg := &stubRegistry{}
	list := NewStudentList(reg, nil)
	assert.Equal(t, ListLoading, list.State())

	reg.loaded = true
	assert.Equal(t, ListEmpty, list.State())

	reg.students = []student.Student{{ID: "1", SkillLevel: student.SkillBeginner}}
	assert.Equal(t, ListReady, list.State())
	assert.Equal(t, "Registered Students (1)", list.Header())
}

func TestStudentList_Rows(t *testing.T) {
	list := NewStudentList(loadedRegistry(t, fixtureStore(), nil), nil)

	rows := list.Rows()
	require.Len(t, rows, 3)
	assert.Equal(t, Row{
		ID:         "2",
		Name:       "Bob",
		Email:      "bob@example.com",
		Instrument: "Guitar",
		SkillLevel: "Intermediate",
		Badge:      BadgeYellow,
		Registered: "Jan 3, 2024",
	}, rows[0])
	assert.Equal(t, "Alice", rows[1].Name)
	assert.Equal(t, BadgeRed, rows[2].Badge)
}

func TestStudentList_Render(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		list := NewStudentList(loadedRegistry(t, fixtureStore(), nil), nil)
		var buf bytes.Buffer
		require.NoError(t, list.Render(&buf))
		golden(t).Assert(t, "student_list", buf.Bytes())
	})

	t.Run("empty", func(t *testing.T) {
		list := NewStudentList(loadedRegistry(t, memory.NewStudentStore(), nil), nil)
		var buf bytes.Buffer
		require.NoError(t, list.Render(&buf))
		golden(t).Assert(t, "student_list_empty", buf.Bytes())
	})

	t.Run("loading", func(t *testing.T) {
		list := NewStudentList(registry.New(memory.NewStudentStore(), nil), nil)
		var buf bytes.Buffer
		require.NoError(t, list.Render(&buf))
		assert.Equal(t, LoadingMessage+"\n", buf.String())
	})
}

func TestStudentList_DeleteRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	reg := loadedRegistry(t, fixtureStore(), rec)
	list := NewStudentList(reg, rec)

	assert.False(t, list.ConfirmDelete(ctx), "nothing pending")
	assert.Equal(t, 3, reg.Len())

	list.RequestDelete("1")
	id, ok := list.PendingDelete()
	require.True(t, ok)
	assert.Equal(t, "1", id)
	assert.Equal(t, 3, reg.Len(), "request alone does not delete")

	list.CancelDelete()
	_, ok = list.PendingDelete()
	assert.False(t, ok)
	assert.False(t, list.ConfirmDelete(ctx))

	list.RequestDelete("1")
	assert.True(t, list.ConfirmDelete(ctx))
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, notification.KindDeleted, rec.last().Kind)
}

// ─────────────────────────────────────────────────────────────────────────────
// Edit dialog
// ─────────────────────────────────────────────────────────────────────────────

func TestEditDialog_PrefillsAndSaves(t *testing.T) {
	ctx := context.Background()
	reg := loadedRegistry(t, fixtureStore(), nil)
	list := NewStudentList(reg, nil)

	dialog, ok := list.Edit("2")
	require.True(t, ok)
	values := dialog.Values()
	assert.Equal(t, "Bob", *values.Name)
	assert.Equal(t, student.SkillIntermediate, *values.SkillLevel)

	dialog.SetInstrument("Cello")
	updated := dialog.Save(ctx)

	require.NotNil(t, updated)
	assert.Equal(t, "Cello", updated.Instrument)
	assert.False(t, dialog.Open())

	got, _ := reg.Get("2")
	assert.Equal(t, "Cello", got.Instrument)
	assert.Equal(t, []string{"2", "1", "3"}, []string{reg.Snapshot()[0].ID, reg.Snapshot()[1].ID, reg.Snapshot()[2].ID})
}

func TestEditDialog_StaysOpenOnFailure(t *testing.T) {
	reg := &stubRegistry{students: []student.Student{{ID: "1", Name: "Ann", SkillLevel: student.SkillAdvanced}}}
	list := NewStudentList(reg, nil)

	dialog, ok := list.Edit("1")
	require.True(t, ok)
	dialog.SetName("Anna")

	assert.Nil(t, dialog.Save(context.Background()))
	assert.True(t, dialog.Open())
	assert.Equal(t, "Anna", *reg.lastPatch.Name)

	reg.updResult = &student.Student{ID: "1", Name: "Anna"}
	assert.NotNil(t, dialog.Save(context.Background()))
	assert.False(t, dialog.Open())
	assert.Nil(t, dialog.Save(context.Background()), "closed dialog does not save")
	assert.Equal(t, 2, reg.updateCalls)
}

func TestEditDialog_DefaultsSkillLevel(t *testing.T) {
	dialog := NewEditDialog(&stubRegistry{}, student.Student{ID: "1"})
	assert.Equal(t, student.SkillBeginner, *dialog.Values().SkillLevel)

	_, ok := NewStudentList(&stubRegistry{}, nil).Edit("missing")
	assert.False(t, ok)
}

func TestPresenters_RegistryFailureLeavesListIntact(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	reg := registry.New(failingStore{}, rec)
	reg.Load(ctx)

	list := NewStudentList(reg, rec)
	assert.Equal(t, ListEmpty, list.State())
	assert.Equal(t, notification.KindFetchFailed, rec.last().Kind)

	form := NewRegistrationForm(reg, rec)
	form.Fill(FormFields{Name: "A", Email: "a@x", Instrument: "Oud", SkillLevel: "Beginner"})
	_, result := form.Submit(ctx)
	assert.Equal(t, SubmitFailed, result)
	assert.Equal(t, notification.KindInsertFailed, rec.last().Kind)
	assert.Equal(t, ListEmpty, list.State())
}
