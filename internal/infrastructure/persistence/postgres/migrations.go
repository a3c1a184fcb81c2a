package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create students table
-- Version: 001

CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name TEXT NOT NULL,
    email TEXT NOT NULL,
    instrument TEXT NOT NULL,
    skill_level TEXT NOT NULL,
    registered_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_skill_level CHECK (skill_level IN ('Beginner', 'Intermediate', 'Advanced')),
    CONSTRAINT name_not_blank CHECK (length(trim(name)) > 0),
    CONSTRAINT email_not_blank CHECK (length(trim(email)) > 0),
    CONSTRAINT instrument_not_blank CHECK (length(trim(instrument)) > 0)
);

CREATE INDEX IF NOT EXISTS idx_students_registered_at ON students(registered_at DESC);
`

const migration001Down = `
DROP INDEX IF EXISTS idx_students_registered_at;
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: IMMUTABLE REGISTRATION FIELDS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Reject updates to id and registered_at
-- Version: 002

CREATE OR REPLACE FUNCTION students_guard_immutable()
RETURNS TRIGGER AS $$
BEGIN
    IF NEW.id <> OLD.id OR NEW.registered_at <> OLD.registered_at THEN
        RAISE EXCEPTION 'id and registered_at are immutable'
            USING ERRCODE = 'check_violation';
    END IF;
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_students_immutable ON students;
CREATE TRIGGER trg_students_immutable
    BEFORE UPDATE ON students
    FOR EACH ROW EXECUTE FUNCTION students_guard_immutable();
`

const migration002Down = `
DROP TRIGGER IF EXISTS trg_students_immutable ON students;
DROP FUNCTION IF EXISTS students_guard_immutable();
`

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_students",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "students_immutable_fields",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
	}
}
