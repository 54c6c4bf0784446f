// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/assocvote/db"
	"github.com/danielhkuo/assocvote/ledger"
	"github.com/danielhkuo/assocvote/otp"
	"github.com/danielhkuo/assocvote/registry"
)

func (c *Controller) checkShape(ids []string) error {
	if len(ids) == 0 {
		return &SelectionError{Reason: "select at least one candidate"}
	}
	if len(ids) > c.cfg.MaxSelections {
		return &SelectionError{Reason: fmt.Sprintf("select at most %d candidates", c.cfg.MaxSelections)}
	}
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" {
			return &SelectionError{Reason: "empty candidate id"}
		}
		if seen[id] {
			return &SelectionError{CandidateID: id, Reason: "candidate selected twice"}
		}
		seen[id] = true
	}
	return nil
}

// Submit casts one ballot per selected candidate and consumes the voting
// link, all in one transaction. Either every ballot is stored or none is.
func (c *Controller) Submit(ctx context.Context, token string, candidateIDs []string, md ledger.Metadata) (Receipt, error) {
	if err := c.checkShape(candidateIDs); err != nil {
		return Receipt{}, err
	}

	s, err := c.Resolve(ctx, token)
	if err != nil {
		return Receipt{}, err
	}
	voterID := s.Voter.ID

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Row lock on the voter serializes concurrent submissions
	now := c.now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE voter SET updated_at = $1 WHERE id = $2`, now, voterID)
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to lock voter: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return Receipt{}, ErrLinkInvalid
	}

	existing, err := c.ledger.ForVoter(ctx, tx, voterID)
	if err != nil {
		return Receipt{}, err
	}
	held := make(map[string]bool, len(existing))
	for _, b := range existing {
		held[b.CandidateID] = true
	}
	for _, id := range candidateIDs {
		if held[id] {
			return Receipt{}, ErrDuplicateBallot
		}
	}

	voter, err := c.registry.Voter(ctx, tx, voterID)
	if errors.Is(err, registry.ErrNotFound) {
		return Receipt{}, ErrLinkInvalid
	}
	if err != nil {
		return Receipt{}, err
	}
	if voter.Voted {
		return Receipt{}, ErrAlreadyVoted
	}
	if voter.ConfirmedInformation == nil {
		return Receipt{}, ErrNotConfirmed
	}

	if _, _, err := c.otp.Validate(ctx, tx, token, true); err != nil {
		switch {
		case errors.Is(err, otp.ErrExpired):
			return Receipt{}, ErrLinkExpired
		case errors.Is(err, otp.ErrNotFound):
			return Receipt{}, ErrLinkInvalid
		}
		return Receipt{}, err
	}

	for _, id := range candidateIDs {
		cand, err := c.registry.Candidate(ctx, tx, id)
		if errors.Is(err, registry.ErrNotFound) {
			return Receipt{}, &SelectionError{CandidateID: id, Reason: "unknown candidate"}
		}
		if err != nil {
			return Receipt{}, err
		}
		if cand.GroupID != voter.GroupID {
			return Receipt{}, &SelectionError{CandidateID: id, Reason: "candidate is not in the voter's group"}
		}
	}

	if len(existing)+len(candidateIDs) > c.cfg.MaxSelections {
		return Receipt{}, &SelectionError{Reason: fmt.Sprintf("a voter may hold at most %d ballots", c.cfg.MaxSelections)}
	}

	if c.cfg.Window.Closed(c.now()) {
		return Receipt{}, ErrVotingClosed
	}

	for _, id := range candidateIDs {
		if _, err := c.ledger.Cast(ctx, tx, voterID, id, md); err != nil {
			return Receipt{}, err
		}
	}

	if err := c.otp.Consume(ctx, tx, token); err != nil {
		return Receipt{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE voter SET voted = $1, updated_at = $2 WHERE id = $3`, true, now, voterID); err != nil {
		return Receipt{}, fmt.Errorf("failed to mark voter: %w", err)
	}

	entries, err := c.ledger.Entries(ctx, tx, voterID)
	if err != nil {
		return Receipt{}, err
	}

	if err := tx.Commit(); err != nil {
		if db.IsUniqueViolation(err) {
			return Receipt{}, ErrDuplicateBallot
		}
		return Receipt{}, fmt.Errorf("failed to commit ballots: %w", err)
	}

	voter.Voted = true
	voter.UpdatedAt = now
	slog.Info("ballots cast", "voter_id", voterID, "group_id", voter.GroupID, "count", len(candidateIDs))

	return Receipt{Voter: voter, Ballots: entries}, nil
}
