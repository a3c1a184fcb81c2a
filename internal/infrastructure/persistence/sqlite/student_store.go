// Package sqlite implements student.Store on an embedded SQLite database
// (pure Go driver, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/music-school-hub/student-registry/internal/domain/student"
)

// StudentStore persists students in a single SQLite table.
type StudentStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and ensures the schema.
// Use ":memory:" for a throwaway database.
func Open(path string) (*StudentStore, error) {
	db, err := initDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}

	return &StudentStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close closes the database.
func (s *StudentStore) Close() error {
	return s.db.Close()
}

// Ping checks the database.
func (s *StudentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// List returns all students in the requested order.
func (s *StudentStore) List(ctx context.Context, opts student.ListOptions) ([]*student.Student, error) {
	column := opts.Column()
	if column == student.OrderByName {
		column = "name COLLATE NOCASE"
	}
	q := fmt.Sprintf(`SELECT id, name, email, instrument, skill_level, registered_at
		FROM students ORDER BY %s %s, rowid %s`, column, opts.Direction(), opts.Direction())

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	ans := make([]*student.Student, 0)
	for rows.Next() {
		st, err := rowToStudent(rows)
		if err != nil {
			return nil, err
		}
		ans = append(ans, st)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return ans, nil
}

// Insert stores the draft with a fresh uuid and timestamp.
func (s *StudentStore) Insert(ctx context.Context, d student.Draft) (*student.Student, error) {
	if !d.SkillLevel.IsValid() {
		return nil, student.ErrInvalidSkillLevel
	}

	st := &student.Student{
		ID:           uuid.NewString(),
		Name:         d.Name,
		Email:        d.Email,
		Instrument:   d.Instrument,
		SkillLevel:   d.SkillLevel,
		RegisteredAt: s.now(),
	}

	const q = `INSERT INTO students (id, name, email, instrument, skill_level, registered_at) VALUES (?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q, st.ID, st.Name, st.Email, st.Instrument, string(st.SkillLevel), st.RegisteredAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert student: %w", err)
	}

	return st, nil
}

// Update applies the fields present in patch inside a transaction and
// returns the updated row.
func (s *StudentStore) Update(ctx context.Context, id string, patch student.Patch) (*student.Student, error) {
	if patch.IsEmpty() {
		return nil, student.ErrEmptyPatch
	}
	if patch.SkillLevel != nil && !patch.SkillLevel.IsValid() {
		return nil, student.ErrInvalidSkillLevel
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	for _, f := range patch.Fields() {
		sets = append(sets, f+" = ?")
	}
	if patch.Name != nil {
		args = append(args, *patch.Name)
	}
	if patch.Email != nil {
		args = append(args, *patch.Email)
	}
	if patch.Instrument != nil {
		args = append(args, *patch.Instrument)
	}
	if patch.SkillLevel != nil {
		args = append(args, string(*patch.SkillLevel))
	}
	args = append(args, id)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `UPDATE students SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update student: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, student.ErrStudentNotFound
	}

	row := tx.QueryRowContext(ctx, `SELECT id, name, email, instrument, skill_level, registered_at FROM students WHERE id = ?`, id)
	st, err := rowToStudent(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit update: %w", err)
	}

	return st, nil
}

// Delete removes the student with the given id.
func (s *StudentStore) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM students WHERE id = ?`

	res, err := s.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("failed to delete student: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return student.ErrStudentNotFound
	}

	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func rowToStudent(row scannable) (*student.Student, error) {
	var (
		st           student.Student
		level        string
		registeredAt int64
	)

	err := row.Scan(&st.ID, &st.Name, &st.Email, &st.Instrument, &level, &registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, student.ErrStudentNotFound
	}
	if err != nil {
		return nil, err
	}

	st.SkillLevel, err = student.ParseSkillLevel(level)
	if err != nil {
		return nil, err
	}
	st.RegisteredAt = time.Unix(0, registeredAt).UTC()

	return &st, nil
}

func initDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS students (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			instrument TEXT NOT NULL,
			skill_level TEXT NOT NULL CHECK (skill_level IN ('Beginner', 'Intermediate', 'Advanced')),
			registered_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_students_registered_at ON students(registered_at DESC);
	`)

	return err
}
