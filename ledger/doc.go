// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package ledger records ballots and answers tally and fraud queries.

# Casting

	l := ledger.New(conn)
	vote, err := l.Cast(ctx, tx, voterID, candidateID, ledger.Metadata{...})

Each ballot gets a 16-digit confirmation code. A second ballot for the same
(voter, candidate) pair fails with ErrDuplicateBallot whether it is caught
by the pre-check or by the UNIQUE constraint. Ballots are never deleted;
Invalidate only flips the valid flag.

# Tallies

Tally and TallyGroups count valid ballots only and report zero-vote
candidates and groups. A cutoff restricts counting to ballots created
strictly before it:

	cutoff := ledger.FreezeCutoff(time.Now(), cfg.FreezeHour, cfg.Location)
	tallies, err := l.Tally(ctx, groupID, &cutoff)

# Fraud Signals

CrossGroupVoters finds voters whose national ID, or independently whose
student number, holds ballots for candidates in more than one group.
AverageBallotsPerVoter averages over voters marked voted.
*/
package ledger
