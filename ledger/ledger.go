// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/assocvote/auth"
	"github.com/danielhkuo/assocvote/db"
	"github.com/danielhkuo/assocvote/models"
)

const (
	ConfirmationCodeLength = 16
	maxCodeTries           = 8
)

var (
	ErrDuplicateBallot = errors.New("voter already holds a ballot for this candidate")
	ErrNotFound        = errors.New("ballot not found")
	ErrCodeSpace       = errors.New("could not generate a unique confirmation code")
)

// Metadata is the request context captured on every ballot
type Metadata struct {
	IPAddress string
	UserAgent string
	Device    string
	CreatedBy *string
}

// Ledger records ballots and answers tally and fraud queries
type Ledger struct {
	db       *sql.DB
	now      func() time.Time
	generate func() (string, error)
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithGenerator(gen func() (string, error)) Option {
	return func(l *Ledger) { l.generate = gen }
}

func New(conn *sql.DB, opts ...Option) *Ledger {
	l := &Ledger{
		db:       conn,
		now:      time.Now,
		generate: func() (string, error) { return auth.GenerateNumericCode(ConfirmationCodeLength) },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Cast records one ballot. The (voter, candidate) pair is checked first
// and the UNIQUE constraint catches anything that slips past the check.
func (l *Ledger) Cast(ctx context.Context, q db.Querier, voterID, candidateID string, md Metadata) (models.Vote, error) {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM vote WHERE voter_id = $1 AND candidate_id = $2`,
		voterID, candidateID).Scan(&exists)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to check ballot: %w", err)
	}
	if exists > 0 {
		return models.Vote{}, ErrDuplicateBallot
	}

	now := l.now().UTC()
	v := models.Vote{
		ID:          uuid.NewString(),
		VoterID:     voterID,
		CandidateID: candidateID,
		IPAddress:   md.IPAddress,
		UserAgent:   md.UserAgent,
		Device:      md.Device,
		CreatedBy:   md.CreatedBy,
		Valid:       true,
		CreatedAt:   now,
	}

	for attempt := 1; attempt <= maxCodeTries; attempt++ {
		code, err := l.generate()
		if err != nil {
			return models.Vote{}, err
		}
		v.ConfirmationCode = code

		// Only a confirmation code clash is absorbed; a second ballot for
		// the same pair still fails the insert.
		res, err := q.ExecContext(ctx, `
			INSERT INTO vote (id, voter_id, candidate_id, confirmation_code, ip_address, user_agent,
				device, created_by, valid, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (confirmation_code) DO NOTHING
		`, v.ID, v.VoterID, v.CandidateID, v.ConfirmationCode, v.IPAddress, v.UserAgent,
			v.Device, v.CreatedBy, v.Valid, v.CreatedAt, v.CreatedAt)
		if db.IsUniqueViolation(err) {
			return models.Vote{}, ErrDuplicateBallot
		}
		if err != nil {
			return models.Vote{}, fmt.Errorf("failed to insert ballot: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return models.Vote{}, fmt.Errorf("failed to insert ballot: %w", err)
		}
		if n == 1 {
			return v, nil
		}
		slog.Warn("confirmation code collision", "voter_id", voterID, "attempt", attempt)
	}

	return models.Vote{}, ErrCodeSpace
}

// ForVoter lists the voter's ballots in casting order
func (l *Ledger) ForVoter(ctx context.Context, q db.Querier, voterID string) ([]models.Vote, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+db.VoteColumns("")+`
		FROM vote
		WHERE voter_id = $1
		ORDER BY created_at, id
	`, voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ballots: %w", err)
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		v, err := db.ScanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ballot: %w", err)
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// Entries lists the voter's ballots with candidate names for the receipt
func (l *Ledger) Entries(ctx context.Context, q db.Querier, voterID string) ([]models.BallotEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.id, c.first_name, c.last_name, c.candidate_code, b.confirmation_code, b.created_at
		FROM vote b
		JOIN candidate c ON c.id = b.candidate_id
		WHERE b.voter_id = $1
		ORDER BY b.created_at, c.candidate_code
	`, voterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ballots: %w", err)
	}
	defer rows.Close()

	entries := []models.BallotEntry{}
	for rows.Next() {
		var e models.BallotEntry
		var first, last string
		if err := rows.Scan(&e.CandidateID, &first, &last, &e.CandidateCode, &e.ConfirmationCode, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ballot: %w", err)
		}
		e.CandidateName = first + " " + last
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Invalidate flips the valid flag, the only field an operator may change
func (l *Ledger) Invalidate(ctx context.Context, id string, valid bool) (models.Vote, error) {
	res, err := l.db.ExecContext(ctx,
		`UPDATE vote SET valid = $1, updated_at = $2 WHERE id = $3`,
		valid, l.now().UTC(), id)
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to update ballot: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Vote{}, ErrNotFound
	}

	v, err := db.ScanVote(l.db.QueryRowContext(ctx,
		`SELECT `+db.VoteColumns("")+` FROM vote WHERE id = $1`, id))
	if err != nil {
		return models.Vote{}, fmt.Errorf("failed to load ballot: %w", err)
	}

	slog.Info("ballot validity changed", "vote_id", id, "valid", valid)
	return v, nil
}

// Count returns the number of ballots, valid or not, created before asOf
// when given
func (l *Ledger) Count(ctx context.Context, asOf *time.Time) (int, error) {
	var args db.Args
	query := `SELECT COUNT(*) FROM vote`
	if asOf != nil {
		query += ` WHERE created_at < ` + args.Add(asOf.UTC())
	}

	var n int
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ballots: %w", err)
	}
	return n, nil
}

// LastCastAt returns the newest ballot time, or nil when there are none
func (l *Ledger) LastCastAt(ctx context.Context) (*time.Time, error) {
	var t time.Time
	err := l.db.QueryRowContext(ctx, `SELECT created_at FROM vote ORDER BY created_at DESC LIMIT 1`).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last ballot: %w", err)
	}
	return &t, nil
}

// CreatedTimes returns every ballot creation time in order, for hourly charts
func (l *Ledger) CreatedTimes(ctx context.Context) ([]time.Time, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT created_at FROM vote ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query ballot times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ballot time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}
