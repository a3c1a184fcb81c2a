package student

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/music-school-hub/student-registry/internal/domain/shared"
)

func TestParseSkillLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    SkillLevel
		wantErr bool
	}{
		{"Beginner", SkillBeginner, false},
		{"intermediate", SkillIntermediate, false},
		{"  ADVANCED ", SkillAdvanced, false},
		{"", "", true},
		{"Expert", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSkillLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidSkillLevel))
				assert.True(t, shared.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSkillLevel_JSONRejectsUnknownValues(t *testing.T) {
	var s Student
	err := json.Unmarshal([]byte(`{"id":"1","skill_level":"Virtuoso"}`), &s)
	require.Error(t, err)

	err = json.Unmarshal([]byte(`{"id":"1","skill_level":"advanced"}`), &s)
	require.NoError(t, err)
	assert.Equal(t, SkillAdvanced, s.SkillLevel)
}

func TestPatch(t *testing.T) {
	base := &Student{ID: "1", Name: "Ann", Email: "ann@x", Instrument: "Harp", SkillLevel: SkillBeginner}

	t.Run("empty", func(t *testing.T) {
		p := Patch{}
		assert.True(t, p.IsEmpty())
		assert.Empty(t, p.Fields())
	})

	t.Run("apply only present fields", func(t *testing.T) {
		p := Patch{Instrument: StringPtr("Cello"), SkillLevel: SkillPtr(SkillAdvanced)}
		got := p.Apply(base)

		assert.Equal(t, []string{"instrument", "skill_level"}, p.Fields())
		assert.Equal(t, "Cello", got.Instrument)
		assert.Equal(t, SkillAdvanced, got.SkillLevel)
		assert.Equal(t, "Ann", got.Name)
		assert.Equal(t, "Harp", base.Instrument, "original untouched")
	})

	t.Run("json encodes only present fields", func(t *testing.T) {
		data, err := json.Marshal(Patch{Name: StringPtr("Bo")})
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"Bo"}`, string(data))
	})

	t.Run("json rejects invalid skill level", func(t *testing.T) {
		_, err := json.Marshal(Patch{SkillLevel: SkillPtr("Expert")})
		require.Error(t, err)
	})
}

func TestListOptions(t *testing.T) {
	opts := DefaultListOptions()
	assert.Equal(t, "registered_at", opts.Column())
	assert.Equal(t, "DESC", opts.Direction())

	opts = opts.WithOrder("name; DROP TABLE students", false)
	assert.Equal(t, "registered_at", opts.Column())
	assert.Equal(t, "ASC", opts.Direction())

	assert.Equal(t, "name", opts.WithOrder(OrderByName, true).Column())
}
