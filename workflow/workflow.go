// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package workflow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/assocvote/ledger"
	"github.com/danielhkuo/assocvote/models"
	"github.com/danielhkuo/assocvote/otp"
	"github.com/danielhkuo/assocvote/registry"
)

const DefaultMaxSelections = 5

var (
	ErrLinkInvalid      = errors.New("voting link is not valid")
	ErrLinkExpired      = errors.New("voting link has expired")
	ErrAlreadyVoted     = errors.New("voter has already voted")
	ErrNotConfirmed     = errors.New("voter has not confirmed their information")
	ErrVotingClosed     = errors.New("voting is closed at this hour")
	ErrInvalidSelection = errors.New("invalid candidate selection")
	ErrDuplicateBallot  = ledger.ErrDuplicateBallot
)

// SelectionError explains why a set of candidate ids was refused
type SelectionError struct {
	CandidateID string
	Reason      string
}

func (e *SelectionError) Error() string {
	if e.CandidateID != "" {
		return fmt.Sprintf("%s: %s", e.CandidateID, e.Reason)
	}
	return e.Reason
}

func (e *SelectionError) Unwrap() error { return ErrInvalidSelection }

type State int

const (
	LinkInvalid State = iota
	AwaitingConfirmation
	AwaitingVote
	Voted
)

func (s State) String() string {
	switch s {
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case AwaitingVote:
		return "awaiting_vote"
	case Voted:
		return "voted"
	}
	return "link_invalid"
}

// Step is a page of the voter flow
type Step int

const (
	StepConfirmInfo Step = iota
	StepSelect
	StepConfirmation
)

// Session is a resolved voting link
type Session struct {
	Token string
	Voter models.Voter
	Group models.Group
	OTP   models.OTP
	State State
}

func stateOf(v models.Voter) State {
	switch {
	case v.Voted:
		return Voted
	case v.ConfirmedInformation == nil:
		return AwaitingConfirmation
	}
	return AwaitingVote
}

// Redirect reports where a request for step should go instead, if
// anywhere. Voters cannot select before confirming their details, and
// the confirmation page only exists once they have voted.
func (s Session) Redirect(step Step) (Step, bool) {
	switch step {
	case StepSelect:
		switch s.State {
		case AwaitingConfirmation:
			return StepConfirmInfo, true
		case Voted:
			return StepConfirmation, true
		}
	case StepConfirmation:
		switch s.State {
		case AwaitingConfirmation:
			return StepConfirmInfo, true
		case AwaitingVote:
			return StepSelect, true
		}
	}
	return step, false
}

// Receipt is what a voter sees after voting
type Receipt struct {
	Voter   models.Voter
	Ballots []models.BallotEntry
}

type Config struct {
	MaxSelections int
	Window        VotingWindow
}

// Controller drives a voter from link to receipt
type Controller struct {
	db       *sql.DB
	otp      *otp.Manager
	ledger   *ledger.Ledger
	registry *registry.Registry
	cfg      Config
	now      func() time.Time
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func New(conn *sql.DB, otps *otp.Manager, l *ledger.Ledger, r *registry.Registry, cfg Config, opts ...Option) *Controller {
	if cfg.MaxSelections <= 0 {
		cfg.MaxSelections = DefaultMaxSelections
	}
	c := &Controller{db: conn, otp: otps, ledger: l, registry: r, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) MaxSelections() int { return c.cfg.MaxSelections }

// Resolve looks up a voting link. Used and expired links still resolve so
// a voter can reach their receipt.
func (c *Controller) Resolve(ctx context.Context, token string) (Session, error) {
	v, o, err := c.otp.Validate(ctx, c.db, token, false)
	if errors.Is(err, otp.ErrNotFound) {
		return Session{State: LinkInvalid}, ErrLinkInvalid
	}
	if err != nil {
		return Session{State: LinkInvalid}, err
	}

	g, err := c.registry.Group(ctx, c.db, v.GroupID)
	if err != nil {
		return Session{State: LinkInvalid}, err
	}

	return Session{Token: token, Voter: v, Group: g, OTP: o, State: stateOf(v)}, nil
}

// ConfirmInformation records that the voter checked their details. The
// first confirmation time is kept.
func (c *Controller) ConfirmInformation(ctx context.Context, token string) (Session, error) {
	s, err := c.Resolve(ctx, token)
	if err != nil {
		return s, err
	}
	if s.Voter.ConfirmedInformation != nil {
		return s, nil
	}

	now := c.now().UTC()
	_, err = c.db.ExecContext(ctx,
		`UPDATE voter SET confirmed_information = $1, updated_at = $2 WHERE id = $3 AND confirmed_information IS NULL`,
		now, now, s.Voter.ID)
	if err != nil {
		return s, fmt.Errorf("failed to confirm voter: %w", err)
	}

	slog.Info("voter confirmed information", "voter_id", s.Voter.ID)
	return c.Resolve(ctx, token)
}

// Candidates lists the choices open to the session's voter
func (c *Controller) Candidates(ctx context.Context, s Session) ([]models.Candidate, error) {
	return c.registry.CandidatesInGroup(ctx, c.db, s.Voter.GroupID)
}

// Receipt returns the voter's ballots with their confirmation codes
func (c *Controller) Receipt(ctx context.Context, s Session) (Receipt, error) {
	entries, err := c.ledger.Entries(ctx, c.db, s.Voter.ID)
	if err != nil {
		return Receipt{}, err
	}
	return Receipt{Voter: s.Voter, Ballots: entries}, nil
}
