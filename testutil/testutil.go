// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/assocvote/auth"
	"github.com/danielhkuo/assocvote/cliparse"
	"github.com/danielhkuo/assocvote/db"
	"github.com/danielhkuo/assocvote/models"
)

// Operator credentials accepted by GetTestConfig
const (
	SuperuserName = "root"
	SuperuserKey  = "root-key"
	StaffName     = "clerk"
	StaffKey      = "clerk-key"
)

var seq atomic.Int64

// SetupTestDB creates a fresh test database with the full schema. It uses a
// temp-dir SQLite file unless TEST_DATABASE_URL points at Postgres.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	var conn *sql.DB
	var err error
	if url := os.Getenv("TEST_DATABASE_URL"); url != "" {
		conn, err = db.Open(ctx, "postgres", url)
		if err == nil {
			err = db.DropSchema(ctx, conn)
		}
	} else {
		conn, err = db.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "test.db"))
	}
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateSchema(ctx, conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// TestOperators returns a superuser and a staff operator with cheap hashes
func TestOperators(t *testing.T) []models.Operator {
	t.Helper()

	rootHash, err := bcrypt.GenerateFromPassword([]byte(SuperuserKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash key: %v", err)
	}
	staffHash, err := bcrypt.GenerateFromPassword([]byte(StaffKey), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash key: %v", err)
	}

	return []models.Operator{
		{Name: SuperuserName, Role: models.RoleSuperuser, KeyHash: string(rootHash)},
		{Name: StaffName, Role: models.RoleStaff, KeyHash: string(staffHash)},
	}
}

// GetTestConfig returns a standard test configuration
func GetTestConfig(t *testing.T) cliparse.Config {
	return cliparse.Config{
		Port:               3318,
		DatabaseType:       "sqlite",
		PublicBaseURL:      "http://localhost:3318",
		Operators:          TestOperators(t),
		NoVoteStartHour:    22,
		NoVoteEndHour:      6,
		FreezeHour:         13,
		Location:           time.UTC,
		OTPValidity:        2 * time.Hour,
		RateLimitPerMinute: 1000,
	}
}

// OperatorHeaders returns the authentication headers for an operator
func OperatorHeaders(name, key string) map[string]string {
	return map[string]string{
		"X-Operator-Name": name,
		"X-Operator-Key":  key,
	}
}

// CreateTestGroup inserts a valid group with the given name
func CreateTestGroup(t *testing.T, conn *sql.DB, name string) models.Group {
	t.Helper()

	now := time.Now().UTC()
	g := models.Group{ID: uuid.NewString(), Name: name, Valid: true, CreatedAt: now, UpdatedAt: now}
	_, err := conn.Exec(`
		INSERT INTO voting_group (id, name, description, valid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, g.ID, g.Name, g.Description, g.Valid, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create test group: %v", err)
	}

	return g
}

// CreateTestCandidate inserts a candidate in the group with unique
// identifiers
func CreateTestCandidate(t *testing.T, conn *sql.DB, groupID, firstName string) models.Candidate {
	t.Helper()

	n := seq.Add(1)
	now := time.Now().UTC()
	c := models.Candidate{
		ID:             uuid.NewString(),
		FirstName:      firstName,
		LastName:       "Candidate",
		Gender:         "F",
		StudentNumber:  fmt.Sprintf("C%09d", n),
		NationalID:     fmt.Sprintf("9%09d", n),
		EducationLevel: "MSc",
		FieldOfStudy:   "Physics",
		Phone:          "09120000000",
		CandidateCode:  int(100 + n),
		GroupID:        groupID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := conn.Exec(`
		INSERT INTO candidate (id, first_name, last_name, gender, student_number, national_id,
			education_level, field_of_study, phone, candidate_code, group_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, c.ID, c.FirstName, c.LastName, c.Gender, c.StudentNumber, c.NationalID,
		c.EducationLevel, c.FieldOfStudy, c.Phone, c.CandidateCode, c.GroupID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}

	return c
}

// CreateTestVoter inserts an unconfirmed voter. Empty identifiers are
// generated.
func CreateTestVoter(t *testing.T, conn *sql.DB, groupID, nationalID, studentNumber string) models.Voter {
	t.Helper()

	n := seq.Add(1)
	if nationalID == "" {
		nationalID = fmt.Sprintf("1%09d", n)
	}
	if studentNumber == "" {
		studentNumber = fmt.Sprintf("S%09d", n)
	}
	email := fmt.Sprintf("voter%d@example.org", n)
	now := time.Now().UTC()
	v := models.Voter{
		ID:             uuid.NewString(),
		FirstName:      "Test",
		LastName:       fmt.Sprintf("Voter%d", n),
		Gender:         "M",
		FathersName:    "Father",
		EducationLevel: "BSc",
		FieldOfStudy:   "Chemistry",
		NationalID:     nationalID,
		StudentNumber:  studentNumber,
		Phone:          "09121111111",
		Email:          &email,
		GroupID:        groupID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	_, err := conn.Exec(`
		INSERT INTO voter (id, first_name, last_name, gender, fathers_name, education_level, field_of_study,
			national_id, student_number, phone, email, group_id, voted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, v.ID, v.FirstName, v.LastName, v.Gender, v.FathersName, v.EducationLevel, v.FieldOfStudy,
		v.NationalID, v.StudentNumber, v.Phone, v.Email, v.GroupID, false, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	return v
}

// ConfirmTestVoter sets confirmed_information on the voter
func ConfirmTestVoter(t *testing.T, conn *sql.DB, voterID string) {
	t.Helper()

	if _, err := conn.Exec(`UPDATE voter SET confirmed_information = $1 WHERE id = $2`, time.Now().UTC(), voterID); err != nil {
		t.Fatalf("Failed to confirm test voter: %v", err)
	}
}

// CreateTestOTP inserts an OTP with a random token created at the given time
func CreateTestOTP(t *testing.T, conn *sql.DB, voterID string, createdAt time.Time, used bool) models.OTP {
	t.Helper()

	token, err := auth.GenerateNumericCode(8)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	o := models.OTP{ID: uuid.NewString(), VoterID: voterID, Token: token, CreatedAt: createdAt.UTC(), IsUsed: used}
	_, err = conn.Exec(`
		INSERT INTO otp (id, voter_id, token, created_at, otp_sent, is_used)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ID, o.VoterID, o.Token, o.CreatedAt, 0, o.IsUsed)
	if err != nil {
		t.Fatalf("Failed to create test otp: %v", err)
	}

	return o
}

// CreateTestVote inserts a valid ballot created at the given time and marks
// the voter as voted
func CreateTestVote(t *testing.T, conn *sql.DB, voterID, candidateID string, createdAt time.Time) models.Vote {
	t.Helper()

	code, err := auth.GenerateNumericCode(16)
	if err != nil {
		t.Fatalf("Failed to generate code: %v", err)
	}
	v := models.Vote{
		ID:               uuid.NewString(),
		VoterID:          voterID,
		CandidateID:      candidateID,
		ConfirmationCode: code,
		IPAddress:        "127.0.0.1",
		UserAgent:        "test",
		Device:           "test",
		Valid:            true,
		CreatedAt:        createdAt.UTC(),
	}
	_, err = conn.Exec(`
		INSERT INTO vote (id, voter_id, candidate_id, confirmation_code, ip_address, user_agent, device,
			valid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, v.ID, v.VoterID, v.CandidateID, v.ConfirmationCode, v.IPAddress, v.UserAgent, v.Device,
		v.Valid, v.CreatedAt, v.CreatedAt)
	if err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}
	if _, err := conn.Exec(`UPDATE voter SET voted = $1 WHERE id = $2`, true, voterID); err != nil {
		t.Fatalf("Failed to mark voter: %v", err)
	}

	return v
}

// CountRows returns the number of rows in table matching an optional
// where clause
func CountRows(t *testing.T, conn *sql.DB, table, where string, args ...any) int {
	t.Helper()

	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := conn.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
