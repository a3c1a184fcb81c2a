package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/music-school-hub/student-registry/internal/domain/shared"
	"github.com/music-school-hub/student-registry/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT STORE IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

const studentColumns = `id::text, name, email, instrument, skill_level, registered_at`

// StudentStore implements student.Store for PostgreSQL.
type StudentStore struct {
	conn *Connection
}

// NewStudentStore creates a new StudentStore.
func NewStudentStore(conn *Connection) *StudentStore {
	return &StudentStore{conn: conn}
}

// List returns all students in the requested order.
func (r *StudentStore) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	// Column and Direction return whitelisted identifiers only.
	query := fmt.Sprintf(`
		SELECT %s
		FROM students
		ORDER BY %s %s, id
	`, studentColumns, opts.Column(), opts.Direction())

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	return scanStudents(rows)
}

// Insert stores the draft and returns the row with its generated id and timestamp.
func (r *StudentStore) Insert(ctx context.Context, d student.Draft) (*student.Student, error) {
	if !d.SkillLevel.IsValid() {
		return nil, student.ErrInvalidSkillLevel
	}

	query := `
		INSERT INTO students (name, email, instrument, skill_level)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + studentColumns

	row := r.conn.QueryRow(ctx, query, d.Name, d.Email, d.Instrument, string(d.SkillLevel))
	s, err := scanStudent(row)
	if err != nil {
		return nil, translateError("Insert", err)
	}
	return s, nil
}

// Update applies the fields present in patch and returns the updated row.
func (r *StudentStore) Update(ctx context.Context, id string, patch student.Patch) (*student.Student, error) {
	if patch.IsEmpty() {
		return nil, student.ErrEmptyPatch
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, student.ErrStudentNotFound
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Instrument != nil {
		add("instrument", *patch.Instrument)
	}
	if patch.SkillLevel != nil {
		if !patch.SkillLevel.IsValid() {
			return nil, student.ErrInvalidSkillLevel
		}
		add("skill_level", string(*patch.SkillLevel))
	}

	args = append(args, uid)
	query := fmt.Sprintf(`
		UPDATE students SET %s
		WHERE id = $%d
		RETURNING %s
	`, strings.Join(sets, ", "), len(args), studentColumns)

	s, err := scanStudent(r.conn.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, translateError("Update", err)
	}
	return s, nil
}

// Delete removes the student with the given id.
func (r *StudentStore) Delete(ctx context.Context, id string) error {
	// Postgres rejects malformed uuid literals; such an id cannot exist.
	uid, err := uuid.Parse(id)
	if err != nil {
		return student.ErrStudentNotFound
	}

	result, err := r.conn.Exec(ctx, `DELETE FROM students WHERE id = $1`, uid)
	if err != nil {
		return translateError("Delete", err)
	}

	if result.RowsAffected() == 0 {
		return student.ErrStudentNotFound
	}

	return nil
}

// Ping checks the underlying pool.
func (r *StudentStore) Ping(ctx context.Context) error {
	return r.conn.Ping(ctx)
}

// ─────────────────────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────────────────────

func translateError(op string, err error) error {
	switch {
	case IsNoRows(err):
		return student.ErrStudentNotFound
	case IsUniqueViolation(err):
		return student.ErrStudentAlreadyExists
	case IsCheckViolation(err):
		return shared.WrapError("student", op, shared.ErrValidation, "constraint violated", err)
	default:
		return fmt.Errorf("failed to %s student: %w", strings.ToLower(op), err)
	}
}

func scanStudent(row pgx.Row) (*student.Student, error) {
	var s student.Student
	var level string

	if err := row.Scan(&s.ID, &s.Name, &s.Email, &s.Instrument, &level, &s.RegisteredAt); err != nil {
		return nil, err
	}

	parsed, err := student.ParseSkillLevel(level)
	if err != nil {
		return nil, err
	}
	s.SkillLevel = parsed
	s.RegisteredAt = s.RegisteredAt.UTC()

	return &s, nil
}

func scanStudents(rows pgx.Rows) ([]*student.Student, error) {
	students := make([]*student.Student, 0)
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return students, nil
}
