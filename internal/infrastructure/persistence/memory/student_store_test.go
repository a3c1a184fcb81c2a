package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-school-hub/student-registry/internal/domain/student"
)

func counterIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%d", n)
	}
}

func bob() student.Draft {
	return student.Draft{Name: "Bob", Email: "b@x.com", Instrument: "Guitar", SkillLevel: student.SkillIntermediate}
}

func TestStudentStore_InsertSkipsSeededIDs(t *testing.T) {
	store := NewStudentStore(WithIDGenerator(counterIDs()))
	store.Seed(student.Student{ID: "1", Name: "Alice", SkillLevel: student.SkillBeginner})

	row, err := store.Insert(context.Background(), bob())
	require.NoError(t, err)
	assert.Equal(t, "2", row.ID)
	assert.Equal(t, 2, store.Count())
}

func TestStudentStore_InsertGivesUpOnDuplicateIDs(t *testing.T) {
	store := NewStudentStore(WithIDGenerator(func() string { return "same" }))
	ctx := context.Background()

	_, err := store.Insert(ctx, bob())
	require.NoError(t, err)

	_, err = store.Insert(ctx, bob())
	assert.ErrorIs(t, err, student.ErrStudentAlreadyExists)
	assert.Equal(t, 1, store.Count())
}

func TestStudentStore_ListNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewStudentStore()
	store.Seed(
		student.Student{ID: "old", Name: "Old", RegisteredAt: base},
		student.Student{ID: "new", Name: "New", RegisteredAt: base.Add(time.Hour)},
	)

	rows, err := store.List(context.Background(), student.DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "new", rows[0].ID)
	assert.Equal(t, "old", rows[1].ID)
}

func TestStudentStore_UpdateAndDelete(t *testing.T) {
	store := NewStudentStore()
	ctx := context.Background()

	row, err := store.Insert(ctx, bob())
	require.NoError(t, err)

	updated, err := store.Update(ctx, row.ID, student.Patch{Instrument: student.StringPtr("Cello")})
	require.NoError(t, err)
	assert.Equal(t, "Cello", updated.Instrument)
	assert.Equal(t, "Bob", updated.Name)

	_, err = store.Update(ctx, row.ID, student.Patch{})
	assert.ErrorIs(t, err, student.ErrEmptyPatch)

	require.NoError(t, store.Delete(ctx, row.ID))
	assert.ErrorIs(t, store.Delete(ctx, row.ID), student.ErrStudentNotFound)
	_, err = store.Update(ctx, row.ID, student.Patch{Name: student.StringPtr("x")})
	assert.ErrorIs(t, err, student.ErrStudentNotFound)
}
