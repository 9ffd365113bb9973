package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kiwicoders/sessions-api/pkg/config"
	"github.com/kiwicoders/sessions-api/pkg/database"
)

// Applies the schema and seeds an initial admin account plus, optionally, a
// demo term and session. Safe to re-run: every statement is idempotent.

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    full_name     TEXT NOT NULL,
    role          TEXT NOT NULL,
    is_active     BOOLEAN NOT NULL DEFAULT TRUE,
    last_login_at TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS terms (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    start_date DATE NOT NULL,
    end_date   DATE NOT NULL,
    year       INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
    id           TEXT PRIMARY KEY,
    title        TEXT NOT NULL,
    weekday      INTEGER NOT NULL CHECK (weekday BETWEEN 0 AND 6),
    start_time   TEXT NOT NULL,
    end_time     TEXT NOT NULL,
    location     TEXT NOT NULL,
    city         TEXT NOT NULL,
    location_url TEXT,
    capacity     INTEGER NOT NULL CHECK (capacity >= 1),
    min_age      INTEGER NOT NULL DEFAULT 0,
    max_age      INTEGER NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS session_terms (
    session_id TEXT NOT NULL REFERENCES sessions(id),
    term_id    TEXT NOT NULL REFERENCES terms(id),
    position   INTEGER NOT NULL,
    PRIMARY KEY (session_id, term_id)
);

CREATE TABLE IF NOT EXISTS participants (
    id           TEXT PRIMARY KEY,
    full_name    TEXT NOT NULL,
    email        TEXT NOT NULL,
    school_year  TEXT NOT NULL,
    parent_name  TEXT NOT NULL,
    parent_phone TEXT NOT NULL,
    needs_device BOOLEAN NOT NULL DEFAULT FALSE,
    medical_info TEXT,
    created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
    id             TEXT PRIMARY KEY,
    session_id     TEXT NOT NULL REFERENCES sessions(id),
    participant_id TEXT NOT NULL REFERENCES participants(id),
    status         TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL,
    UNIQUE (session_id, participant_id)
);

CREATE TABLE IF NOT EXISTS attendance_records (
    id            TEXT PRIMARY KEY,
    session_id    TEXT NOT NULL REFERENCES sessions(id),
    enrollment_id TEXT NOT NULL REFERENCES enrollments(id),
    date          DATE NOT NULL,
    present       BOOLEAN NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL,
    updated_at    TIMESTAMPTZ NOT NULL,
    UNIQUE (enrollment_id, date)
);

CREATE TABLE IF NOT EXISTS register_jobs (
    id           TEXT PRIMARY KEY,
    session_id   TEXT NOT NULL REFERENCES sessions(id),
    format       TEXT NOT NULL,
    status       TEXT NOT NULL,
    file_path    TEXT,
    error        TEXT,
    requested_by TEXT,
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);
`

func main() {
	var (
		adminEmail    string
		adminPassword string
		withDemo      bool
	)
	flag.StringVar(&adminEmail, "admin-email", "admin@example.com", "Email of the seeded admin account")
	flag.StringVar(&adminPassword, "admin-password", "change-me-now", "Password of the seeded admin account")
	flag.BoolVar(&withDemo, "demo", false, "Also seed a demo term and session")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}
	log.Println("schema applied")

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("failed to hash admin password: %v", err)
	}
	now := time.Now().UTC()
	if _, err := db.ExecContext(ctx, `INSERT INTO users (id, email, password_hash, full_name, role, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, 'Administrator', 'ADMIN', TRUE, $4, $4)
        ON CONFLICT (email) DO NOTHING`, uuid.NewString(), adminEmail, string(hash), now); err != nil {
		log.Fatalf("failed to seed admin user: %v", err)
	}
	log.Printf("admin account ready: %s", adminEmail)

	if !withDemo {
		return
	}

	termID := uuid.NewString()
	sessionID := uuid.NewString()
	if _, err := db.ExecContext(ctx, `INSERT INTO terms (id, name, start_date, end_date, year, created_at, updated_at)
        SELECT $1, 'Term 1 2025', '2025-01-06', '2025-04-11', 2025, $2, $2
        WHERE NOT EXISTS (SELECT 1 FROM terms WHERE name = 'Term 1 2025')`, termID, now); err != nil {
		log.Fatalf("failed to seed demo term: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO sessions (id, title, weekday, start_time, end_time, location, city, capacity, min_age, max_age, created_at, updated_at)
        SELECT $1, 'Coding Club', 3, '16:00', '17:30', 'Community Hall', 'Wellington', 20, 8, 12, $2, $2
        WHERE NOT EXISTS (SELECT 1 FROM sessions WHERE title = 'Coding Club')`, sessionID, now); err != nil {
		log.Fatalf("failed to seed demo session: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO session_terms (session_id, term_id, position)
        SELECT s.id, t.id, 0 FROM sessions s, terms t
        WHERE s.title = 'Coding Club' AND t.name = 'Term 1 2025'
        ON CONFLICT DO NOTHING`); err != nil {
		log.Fatalf("failed to link demo session to term: %v", err)
	}
	log.Println("demo term and session ready")
}
