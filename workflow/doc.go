// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package workflow drives a voter through the three voting pages:
confirm details, select candidates, view the receipt.

# Sessions

	s, err := ctl.Resolve(ctx, token)
	if next, ok := s.Redirect(workflow.StepSelect); ok {
		// send the voter to next instead
	}

A link resolves while its OTP row exists, even once used or expired, so
a voter can always come back to their receipt. State is derived from the
voter row: unconfirmed, confirmed, or voted.

# Submission

Submit checks the selection shape (1 to MaxSelections distinct ids)
before touching the database, then runs one transaction:

 1. lock the voter row
 2. refuse candidates the voter already holds (ErrDuplicateBallot)
 3. refuse voters already marked voted (ErrAlreadyVoted)
 4. refuse voters who have not confirmed their information (ErrNotConfirmed)
 5. require a live OTP (ErrLinkExpired)
 6. require every candidate to exist in the voter's group
 7. cap existing plus new ballots at MaxSelections
 8. refuse inside an enforced VotingWindow (ErrVotingClosed)
 9. cast the ballots, consume the OTP, mark the voter

Selection problems are reported as *SelectionError. Concurrent identical
submissions serialize on the voter row; one wins and the rest see
ErrDuplicateBallot.
*/
package workflow
