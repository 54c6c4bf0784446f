// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package otp

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
	"github.com/danielhkuo/assocvote/notify"
)

const (
	TokenLength     = 8
	MaxTries        = 32
	DefaultValidity = 2 * time.Hour
)

var (
	ErrNotFound         = errors.New("otp not found")
	ErrExpired          = errors.New("otp expired or already used")
	ErrExhaustedRetries = errors.New("could not generate a unique otp")
)

type Stats struct {
	Total   int
	Used    int
	Active  int
	Expired int
}

// Manager issues and validates the one-time tokens that gate the voting flow
type Manager struct {
	db       *sql.DB
	gateway  *notify.Gateway
	alerter  notify.Alerter
	validity time.Duration
	now      func() time.Time
	generate func() (string, error)
}

type Option func(*Manager)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithGenerator replaces the crypto/rand code source
func WithGenerator(gen func() (string, error)) Option {
	return func(m *Manager) { m.generate = gen }
}

func WithValidity(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.validity = d
		}
	}
}

func WithAlerter(a notify.Alerter) Option {
	return func(m *Manager) {
		if a != nil {
			m.alerter = a
		}
	}
}

func NewManager(conn *sql.DB, gateway *notify.Gateway, opts ...Option) *Manager {
	m := &Manager{
		db:       conn,
		gateway:  gateway,
		alerter:  notify.LogAlerter{},
		validity: DefaultValidity,
		now:      time.Now,
		generate: func() (string, error) { return auth.GenerateNumericCode(TokenLength) },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.gateway == nil {
		m.gateway = notify.NewGateway(nil, nil)
	}
	return m
}

func (m *Manager) Validity() time.Duration {
	return m.validity
}

// Issue returns the voter's newest live OTP, or mints a new one when none
// is left. A collision on the token column is detected by the insert
// itself, so concurrent issuers never share a token.
func (m *Manager) Issue(ctx context.Context, q db.Querier, voterID string) (models.OTP, error) {
	now := m.now().UTC()

	existing, err := db.ScanOTP(q.QueryRowContext(ctx, `
		SELECT `+db.OTPColumns("")+`
		FROM otp
		WHERE voter_id = $1 AND is_used = $2 AND created_at > $3
		ORDER BY created_at DESC
		LIMIT 1
	`, voterID, false, now.Add(-m.validity)))
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return models.OTP{}, fmt.Errorf("failed to look up otp: %w", err)
	}

	for attempt := 1; attempt <= MaxTries; attempt++ {
		token, err := m.generate()
		if err != nil {
			return models.OTP{}, err
		}

		o := models.OTP{ID: uuid.NewString(), VoterID: voterID, Token: token, CreatedAt: now}
		res, err := q.ExecContext(ctx, `
			INSERT INTO otp (id, voter_id, token, created_at, otp_sent, is_used)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (token) DO NOTHING
		`, o.ID, o.VoterID, o.Token, o.CreatedAt, 0, false)
		if err != nil {
			return models.OTP{}, fmt.Errorf("failed to insert otp: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return models.OTP{}, fmt.Errorf("failed to insert otp: %w", err)
		}
		if n == 1 {
			return o, nil
		}
		slog.Debug("otp collision", "voter_id", voterID, "attempt", attempt)
	}

	slog.Error("otp code space exhausted", "voter_id", voterID, "tries", MaxTries)
	m.alerter.Alert(ctx, fmt.Sprintf("could not generate a unique OTP for voter %s after %d tries", voterID, MaxTries))
	return models.OTP{}, ErrExhaustedRetries
}

// Live reports whether o is unused and younger than the validity window
func (m *Manager) Live(o models.OTP) bool {
	return !o.IsUsed && m.now().Before(o.CreatedAt.Add(m.validity))
}

// Validate resolves a token to its voter. With requireUnused set, used or
// expired tokens fail with ErrExpired.
func (m *Manager) Validate(ctx context.Context, q db.Querier, token string, requireUnused bool) (models.Voter, models.OTP, error) {
	if !auth.IsNumericCode(token, TokenLength) {
		return models.Voter{}, models.OTP{}, ErrNotFound
	}

	var o models.OTP
	var v models.Voter
	dest := append(db.OTPDest(&o), db.VoterDest(&v)...)
	err := q.QueryRowContext(ctx, `
		SELECT `+db.OTPColumns("o")+`, `+db.VoterColumns("v")+`
		FROM otp o
		JOIN voter v ON v.id = o.voter_id
		WHERE o.token = $1
	`, token).Scan(dest...)
	if err == sql.ErrNoRows {
		return models.Voter{}, models.OTP{}, ErrNotFound
	}
	if err != nil {
		return models.Voter{}, models.OTP{}, fmt.Errorf("failed to look up otp: %w", err)
	}

	if requireUnused && !m.Live(o) {
		return v, o, ErrExpired
	}

	return v, o, nil
}

// Consume marks the token used. Consuming a used token is a no-op.
func (m *Manager) Consume(ctx context.Context, q db.Querier, token string) error {
	res, err := q.ExecContext(ctx, `UPDATE otp SET is_used = $1 WHERE token = $2`, true, token)
	if err != nil {
		return fmt.Errorf("failed to consume otp: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to consume otp: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Dispatch sends the code through every enabled channel, logs each attempt
// and bumps otp_sent once if anything got through. Only storage failures
// are returned.
func (m *Manager) Dispatch(ctx context.Context, voter models.Voter, o models.OTP) (notify.Result, error) {
	to := notify.Recipient{Phone: voter.Phone}
	if voter.Email != nil {
		to.Email = *voter.Email
	}

	res := m.gateway.SendOTP(ctx, to, o.Token)
	now := m.now().UTC()

	for _, a := range res.Attempts {
		response := a.Response
		if response == "" && a.Err != nil {
			response = a.Err.Error()
		}
		_, err := m.db.ExecContext(ctx, `
			INSERT INTO notification (id, voter_id, channel, destination, success, response, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, uuid.NewString(), voter.ID, a.Channel, a.Destination, a.OK, response, now)
		if err != nil {
			return res, fmt.Errorf("failed to log notification: %w", err)
		}
	}

	if res.Any() {
		if _, err := m.db.ExecContext(ctx, `UPDATE otp SET otp_sent = otp_sent + 1 WHERE id = $1`, o.ID); err != nil {
			return res, fmt.Errorf("failed to update otp counter: %w", err)
		}
	}

	slog.Info("otp dispatched", "voter_id", voter.ID, "attempts", len(res.Attempts), "delivered", res.Any())
	return res, nil
}

// Resend reuses the voter's live OTP or issues a new one, then dispatches it
func (m *Manager) Resend(ctx context.Context, voterID string) (models.OTP, notify.Result, error) {
	voter, err := db.ScanVoter(m.db.QueryRowContext(ctx,
		`SELECT `+db.VoterColumns("")+` FROM voter WHERE id = $1`, voterID))
	if err == sql.ErrNoRows {
		return models.OTP{}, notify.Result{}, ErrNotFound
	}
	if err != nil {
		return models.OTP{}, notify.Result{}, fmt.Errorf("failed to load voter: %w", err)
	}

	o, err := m.Issue(ctx, m.db, voter.ID)
	if err != nil {
		return models.OTP{}, notify.Result{}, err
	}

	res, err := m.Dispatch(ctx, voter, o)
	if err != nil {
		return o, res, err
	}
	if res.Any() {
		o.OTPSent++
	}
	return o, res, nil
}

// Stats counts OTPs by lifecycle state
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN is_used THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN NOT is_used AND created_at > $1 THEN 1 ELSE 0 END), 0)
		FROM otp
	`, m.now().UTC().Add(-m.validity)).Scan(&s.Total, &s.Used, &s.Active)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count otps: %w", err)
	}
	s.Expired = s.Total - s.Used - s.Active
	return s, nil
}
