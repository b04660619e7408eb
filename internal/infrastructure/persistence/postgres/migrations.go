package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CORE SCHEMA
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create users, courses and lessons
-- Version: 001

CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    display_name VARCHAR(100) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'learner',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('learner', 'creator', 'admin'))
);

CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY,
    creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status VARCHAR(20) NOT NULL DEFAULT 'draft',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_status CHECK (status IN ('draft', 'pending', 'published', 'rejected'))
);

CREATE INDEX IF NOT EXISTS idx_courses_creator_id ON courses(creator_id);
CREATE INDEX IF NOT EXISTS idx_courses_status ON courses(status);
CREATE INDEX IF NOT EXISTS idx_courses_status_created ON courses(status, created_at DESC);

CREATE TABLE IF NOT EXISTS lessons (
    id UUID PRIMARY KEY,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    title VARCHAR(200) NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    video_url TEXT NOT NULL DEFAULT '',
    transcript TEXT NOT NULL DEFAULT '',
    order_index INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_order_index CHECK (order_index > 0),
    CONSTRAINT unique_course_order UNIQUE (course_id, order_index)
);

CREATE INDEX IF NOT EXISTS idx_lessons_course_id ON lessons(course_id, order_index);
`

const migration001Down = `
DROP TABLE IF EXISTS lessons;
DROP TABLE IF EXISTS courses;
DROP TABLE IF EXISTS users;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: ENROLLMENTS, COMPLETIONS, CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create enrollment tracking tables
-- Version: 002

CREATE TABLE IF NOT EXISTS enrollments (
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    enrolled_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_enrollments_user_id ON enrollments(user_id, enrolled_at DESC);
CREATE INDEX IF NOT EXISTS idx_enrollments_course_id ON enrollments(course_id);

CREATE TABLE IF NOT EXISTS lesson_completions (
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    lesson_id UUID NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, lesson_id)
);

CREATE INDEX IF NOT EXISTS idx_lesson_completions_user ON lesson_completions(user_id);

CREATE TABLE IF NOT EXISTS certificates (
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    serial VARCHAR(64) NOT NULL UNIQUE,
    issued_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_certificates_serial ON certificates(serial);
`

const migration002Down = `
DROP TABLE IF EXISTS certificates;
DROP TABLE IF EXISTS lesson_completions;
DROP TABLE IF EXISTS enrollments;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: IDEMPOTENCY KEYS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create idempotency key storage
-- Version: 003

CREATE TABLE IF NOT EXISTS idempotency_keys (
    key VARCHAR(255) PRIMARY KEY,
    status_code INTEGER NOT NULL,
    -- TEXT, not JSONB: replays must return the captured body byte for byte,
    -- and JSONB normalizes key order and whitespace.
    response TEXT NOT NULL,
    request_hash VARCHAR(64) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_idempotency_created_at ON idempotency_keys(created_at);
`

const migration003Down = `
DROP TABLE IF EXISTS idempotency_keys;
`

// GetMigrations returns all migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "core_schema", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "enrollment_tracking", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "idempotency_keys", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DEMO SEED
// ══════════════════════════════════════════════════════════════════════════════

// SeedUser describes one user to insert during demo seeding.
type SeedUser struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Role         string
}

// SeedDemoData inserts demo accounts for local development. Inserts use
// ON CONFLICT DO NOTHING so seeding is safe to run on every startup.
func SeedDemoData(ctx context.Context, conn *Connection, users []SeedUser) error {
	return conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, u := range users {
			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, email, password_hash, display_name, role)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (email) DO NOTHING
			`, u.ID, u.Email, u.PasswordHash, u.DisplayName, u.Role)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
