// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/assocvote/db"
	"github.com/danielhkuo/assocvote/models"
	"github.com/danielhkuo/assocvote/notify"
	"github.com/danielhkuo/assocvote/otp"
)

// Registry owns voters, groups and candidates
type Registry struct {
	db  *sql.DB
	otp *otp.Manager
	now func() time.Time
}

type Option func(*Registry)

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func New(conn *sql.DB, otps *otp.Manager, opts ...Option) *Registry {
	r := &Registry{db: conn, otp: otps, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registration is the outcome of Register. Delivery failures are reported
// in Delivery, never as an error.
type Registration struct {
	Voter    models.Voter
	OTP      models.OTP
	Delivery notify.Result
}

type VoterFilter struct {
	CreatedBy string
	GroupID   string
}

// Register stores a voter and its first OTP in one transaction, then sends
// the OTP. Duplicate identifiers within the group fail with a
// *DuplicateRegistrationError.
func (r *Registry) Register(ctx context.Context, req models.RegisterVoterRequest, createdBy *string) (Registration, error) {
	if err := ValidateVoter(&req); err != nil {
		return Registration{}, err
	}

	now := r.now().UTC()
	v := models.Voter{
		ID:             uuid.NewString(),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Gender:         req.Gender,
		FathersName:    req.FathersName,
		EducationLevel: req.EducationLevel,
		FieldOfStudy:   req.FieldOfStudy,
		NationalID:     req.NationalID,
		StudentNumber:  req.StudentNumber,
		Phone:          req.Phone,
		Email:          req.Email,
		GroupID:        req.GroupID,
		CreatedBy:      createdBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Registration{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO voter (id, first_name, last_name, gender, fathers_name, education_level, field_of_study,
			national_id, student_number, phone, email, group_id, voted, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, v.ID, v.FirstName, v.LastName, v.Gender, v.FathersName, v.EducationLevel, v.FieldOfStudy,
		v.NationalID, v.StudentNumber, v.Phone, v.Email, v.GroupID, false, v.CreatedBy, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		// The transaction is unusable after a constraint failure and holds
		// the only sqlite connection, so release it before looking further.
		tx.Rollback()
		return Registration{}, r.voterWriteError(ctx, err, v, "")
	}

	o, err := r.otp.Issue(ctx, tx, v.ID)
	if err != nil {
		return Registration{}, err
	}

	if err := tx.Commit(); err != nil {
		if db.IsUniqueViolation(err) {
			return Registration{}, r.voterWriteError(ctx, err, v, "")
		}
		return Registration{}, fmt.Errorf("failed to commit registration: %w", err)
	}

	slog.Info("voter registered", "voter_id", v.ID, "group_id", v.GroupID, "created_by", deref(createdBy))

	res, err := r.otp.Dispatch(ctx, v, o)
	if err != nil {
		slog.Error("otp dispatch bookkeeping failed", "voter_id", v.ID, "error", err)
	}
	if res.Any() {
		o.OTPSent++
	}

	return Registration{Voter: v, OTP: o, Delivery: res}, nil
}

// voterWriteError maps a failed voter insert or update to a domain error.
// excludeID skips the voter being updated when probing for the conflict.
func (r *Registry) voterWriteError(ctx context.Context, err error, v models.Voter, excludeID string) error {
	switch {
	case db.IsForeignKeyViolation(err):
		return ErrGroupNotFound
	case !db.IsUniqueViolation(err):
		return fmt.Errorf("failed to write voter: %w", err)
	}

	name := db.ConstraintName(err)
	switch {
	case strings.Contains(name, "national_id"):
		return errNationalIDTaken
	case strings.Contains(name, "student_number"):
		return errStudentNumberTaken
	}

	// Driver gave no usable constraint name; find the clash directly
	var n int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM voter WHERE national_id = $1 AND group_id = $2 AND id <> $3`,
		v.NationalID, v.GroupID, excludeID).Scan(&n); err == nil && n > 0 {
		return errNationalIDTaken
	}
	return errStudentNumberTaken
}

// Voter loads a voter by id
func (r *Registry) Voter(ctx context.Context, q db.Querier, id string) (models.Voter, error) {
	v, err := db.ScanVoter(q.QueryRowContext(ctx,
		`SELECT `+db.VoterColumns("")+` FROM voter WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return models.Voter{}, ErrNotFound
	}
	if err != nil {
		return models.Voter{}, fmt.Errorf("failed to load voter: %w", err)
	}
	return v, nil
}

// ListVoters returns voters ordered by registration time
func (r *Registry) ListVoters(ctx context.Context, f VoterFilter) ([]models.Voter, error) {
	var args db.Args
	var where []string
	if f.CreatedBy != "" {
		where = append(where, "created_by = "+args.Add(f.CreatedBy))
	}
	if f.GroupID != "" {
		where = append(where, "group_id = "+args.Add(f.GroupID))
	}

	query := `SELECT ` + db.VoterColumns("") + ` FROM voter`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list voters: %w", err)
	}
	defer rows.Close()

	voters := []models.Voter{}
	for rows.Next() {
		v, err := db.ScanVoter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan voter: %w", err)
		}
		voters = append(voters, v)
	}
	return voters, rows.Err()
}

// UpdateVoter replaces a voter's registration details. Voting state is
// left untouched.
func (r *Registry) UpdateVoter(ctx context.Context, id string, req models.RegisterVoterRequest) (models.Voter, error) {
	if err := ValidateVoter(&req); err != nil {
		return models.Voter{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE voter SET first_name = $1, last_name = $2, gender = $3, fathers_name = $4,
			education_level = $5, field_of_study = $6, national_id = $7, student_number = $8,
			phone = $9, email = $10, group_id = $11, updated_at = $12
		WHERE id = $13
	`, req.FirstName, req.LastName, req.Gender, req.FathersName, req.EducationLevel, req.FieldOfStudy,
		req.NationalID, req.StudentNumber, req.Phone, req.Email, req.GroupID, r.now().UTC(), id)
	if err != nil {
		probe := models.Voter{NationalID: req.NationalID, StudentNumber: req.StudentNumber, GroupID: req.GroupID}
		return models.Voter{}, r.voterWriteError(ctx, err, probe, id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Voter{}, ErrNotFound
	}

	return r.Voter(ctx, r.db, id)
}

// DeleteVoter removes a voter with its OTPs, ballots and delivery log
func (r *Registry) DeleteVoter(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM voter WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete voter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.Info("voter deleted", "voter_id", id)
	return nil
}

// VoterTimes returns registration times in order, for hourly charts
func (r *Registry) VoterTimes(ctx context.Context) ([]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT created_at FROM voter ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query voter times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan voter time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

type Counts struct {
	Groups     int
	Candidates int
	Voters     int
	SMS        int
	Email      int
}

// Counts returns dashboard totals
func (r *Registry) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM voting_group),
			(SELECT COUNT(*) FROM candidate),
			(SELECT COUNT(*) FROM voter),
			(SELECT COUNT(*) FROM notification WHERE channel = $1),
			(SELECT COUNT(*) FROM notification WHERE channel = $2)
	`, models.ChannelSMS, models.ChannelEmail).Scan(&c.Groups, &c.Candidates, &c.Voters, &c.SMS, &c.Email)
	if err != nil {
		return Counts{}, fmt.Errorf("failed to count records: %w", err)
	}
	return c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
