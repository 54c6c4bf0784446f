// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// DropSchema removes every table, children first. Used by tests that
// share a Postgres database.
func DropSchema(ctx context.Context, db *sql.DB) error {
	for _, table := range []string{"notification", "vote", "otp", "voter", "candidate", "voting_group"} {
		if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}

// Timestamps carry no database default; callers always write UTC times so
// both dialects compare them the same way.
const schema = `
-- Groups
CREATE TABLE IF NOT EXISTS voting_group (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    established_year INTEGER,
    valid BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

-- Candidates
CREATE TABLE IF NOT EXISTS candidate (
    id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    gender TEXT NOT NULL,
    student_number TEXT NOT NULL UNIQUE,
    national_id TEXT NOT NULL UNIQUE,
    education_level TEXT NOT NULL,
    field_of_study TEXT NOT NULL,
    phone TEXT NOT NULL DEFAULT '',
    candidate_code INTEGER NOT NULL UNIQUE,
    group_id TEXT NOT NULL REFERENCES voting_group(id) ON DELETE RESTRICT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidate_group_id ON candidate(group_id);

-- Voters
CREATE TABLE IF NOT EXISTS voter (
    id TEXT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    gender TEXT NOT NULL,
    fathers_name TEXT NOT NULL,
    education_level TEXT NOT NULL,
    field_of_study TEXT NOT NULL,
    national_id TEXT NOT NULL,
    student_number TEXT NOT NULL,
    phone TEXT NOT NULL,
    email TEXT,
    group_id TEXT NOT NULL REFERENCES voting_group(id) ON DELETE CASCADE,
    voted BOOLEAN NOT NULL DEFAULT FALSE,
    confirmed_information TIMESTAMP,
    created_by TEXT,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (national_id, group_id),
    UNIQUE (student_number, group_id)
);

CREATE INDEX IF NOT EXISTS idx_voter_group_id ON voter(group_id);
CREATE INDEX IF NOT EXISTS idx_voter_created_by ON voter(created_by);

-- One-time access tokens
CREATE TABLE IF NOT EXISTS otp (
    id TEXT PRIMARY KEY,
    voter_id TEXT NOT NULL REFERENCES voter(id) ON DELETE CASCADE,
    token TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL,
    otp_sent INTEGER NOT NULL DEFAULT 0,
    is_used BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_otp_voter_id ON otp(voter_id);

-- Ballots
CREATE TABLE IF NOT EXISTS vote (
    id TEXT PRIMARY KEY,
    voter_id TEXT NOT NULL REFERENCES voter(id) ON DELETE CASCADE,
    candidate_id TEXT NOT NULL REFERENCES candidate(id) ON DELETE RESTRICT,
    confirmation_code TEXT NOT NULL UNIQUE,
    ip_address TEXT NOT NULL DEFAULT '',
    user_agent TEXT NOT NULL DEFAULT '',
    device TEXT NOT NULL DEFAULT '',
    created_by TEXT,
    valid BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE (voter_id, candidate_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_candidate_id ON vote(candidate_id);
CREATE INDEX IF NOT EXISTS idx_vote_created_at ON vote(created_at);

-- Delivery log for OTP notifications
CREATE TABLE IF NOT EXISTS notification (
    id TEXT PRIMARY KEY,
    voter_id TEXT NOT NULL REFERENCES voter(id) ON DELETE CASCADE,
    channel TEXT NOT NULL CHECK (channel IN ('sms', 'email')),
    destination TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    response TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notification_voter_id ON notification(voter_id);
`
