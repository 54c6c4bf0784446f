// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	conn, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := CreateSchema(ctx, conn); err != nil {
		t.Fatalf("CreateSchema() error = %v", err)
	}
	return conn
}

func insertGroup(t *testing.T, conn *sql.DB, id, name string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := conn.Exec(`INSERT INTO voting_group (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)`, id, name, now, now)
	if err != nil {
		t.Fatalf("insert group: %v", err)
	}
}

func insertVoter(conn *sql.DB, id, groupID, nationalID, studentNumber string) error {
	now := time.Now().UTC()
	_, err := conn.Exec(`
		INSERT INTO voter (id, first_name, last_name, gender, fathers_name, education_level,
			field_of_study, national_id, student_number, phone, group_id, created_at, updated_at)
		VALUES ($1, 'Test', 'Voter', 'M', 'Father', 'BSc', 'Physics', $2, $3, '09120000000', $4, $5, $6)
	`, id, nationalID, studentNumber, groupID, now, now)
	return err
}

func TestCreateSchema_Idempotent(t *testing.T) {
	conn := openTestDB(t)
	if err := CreateSchema(context.Background(), conn); err != nil {
		t.Fatalf("second CreateSchema() error = %v", err)
	}
}

func TestOpen_UnsupportedType(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "x"); err == nil {
		t.Error("expected error for unsupported type")
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"vote.db", "file:vote.db?_pragma=foreign_keys(1)"},
		{"file:vote.db?mode=rwc", "file:vote.db?mode=rwc&_pragma=foreign_keys(1)"},
	}
	for _, tt := range tests {
		got := SQLiteDSN(tt.in)
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("SQLiteDSN(%q) = %q, want prefix %q", tt.in, got, tt.want)
		}
		if !strings.Contains(got, "_time_format=sqlite") {
			t.Errorf("SQLiteDSN(%q) missing time format", tt.in)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	conn := openTestDB(t)
	insertGroup(t, conn, "g1", "Alpha")
	insertGroup(t, conn, "g2", "Beta")

	if err := insertVoter(conn, "v1", "g1", "1234567890", "s1"); err != nil {
		t.Fatal(err)
	}

	// Same national ID in the same group
	err := insertVoter(conn, "v2", "g1", "1234567890", "s2")
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if name := ConstraintName(err); !strings.Contains(name, "national_id") {
		t.Errorf("ConstraintName() = %q, want national_id", name)
	}

	// Same national ID in another group is allowed
	if err := insertVoter(conn, "v3", "g2", "1234567890", "s1"); err != nil {
		t.Errorf("cross-group registration failed: %v", err)
	}

	if IsUniqueViolation(nil) || IsUniqueViolation(sql.ErrNoRows) {
		t.Error("non-driver errors should not be unique violations")
	}
}

func TestIsForeignKeyViolation(t *testing.T) {
	conn := openTestDB(t)

	err := insertVoter(conn, "v1", "missing-group", "1234567890", "s1")
	if !IsForeignKeyViolation(err) {
		t.Fatalf("expected foreign key violation, got %v", err)
	}
	if IsUniqueViolation(err) {
		t.Error("foreign key violation misreported as unique")
	}
}

func TestCascadeAndRestrict(t *testing.T) {
	conn := openTestDB(t)
	insertGroup(t, conn, "g1", "Alpha")
	now := time.Now().UTC()

	if err := insertVoter(conn, "v1", "g1", "1234567890", "s1"); err != nil {
		t.Fatal(err)
	}
	_, err := conn.Exec(`INSERT INTO otp (id, voter_id, token, created_at) VALUES ($1, $2, $3, $4)`, "o1", "v1", "12345678", now)
	if err != nil {
		t.Fatal(err)
	}
	_, err = conn.Exec(`
		INSERT INTO candidate (id, first_name, last_name, gender, student_number, national_id,
			education_level, field_of_study, candidate_code, group_id, created_at, updated_at)
		VALUES ($1, 'Cand', 'One', 'F', 'cs1', '0000000001', 'MSc', 'Math', 101, $2, $3, $4)
	`, "c1", "g1", now, now)
	if err != nil {
		t.Fatal(err)
	}

	// Candidates protect their group
	_, err = conn.Exec(`DELETE FROM voting_group WHERE id = $1`, "g1")
	if !IsForeignKeyViolation(err) {
		t.Fatalf("expected RESTRICT failure, got %v", err)
	}

	// Deleting a voter removes its OTPs
	if _, err := conn.Exec(`DELETE FROM voter WHERE id = $1`, "v1"); err != nil {
		t.Fatal(err)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM otp`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("expected OTPs to cascade, %d left", n)
	}
}

func TestTimestampsRoundTrip(t *testing.T) {
	conn := openTestDB(t)
	insertGroup(t, conn, "g1", "Alpha")

	var created time.Time
	if err := conn.QueryRow(`SELECT created_at FROM voting_group WHERE id = $1`, "g1").Scan(&created); err != nil {
		t.Fatalf("scan timestamp: %v", err)
	}
	if time.Since(created) > time.Minute || time.Since(created) < 0 {
		t.Errorf("unexpected created_at %v", created)
	}

	// Cutoff comparisons work on stored values
	var n int
	cutoff := time.Now().UTC().Add(time.Hour)
	if err := conn.QueryRow(`SELECT COUNT(*) FROM voting_group WHERE created_at < $1`, cutoff).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 row before cutoff, got %d", n)
	}
}
