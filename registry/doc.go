// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package registry stores the electorate: voting groups, their candidates
and registered voters.

# Registration

	r := registry.New(conn, otps)
	reg, err := r.Register(ctx, req, &operatorName)

Register validates the form, then inserts the voter and issues its first
OTP in one transaction. The OTP is sent after commit; a failed delivery is
reported in reg.Delivery and never undoes the registration.

A national ID or student number may appear once per group. The same
person can register in several groups. A clash returns a
*DuplicateRegistrationError naming the field, and errors.Is matches
ErrDuplicateRegistration.

# Validation

Form errors come back as *ValidationError with one message per field.
errors.Is(err, ErrValidation) is true for all of them.

# Groups and Candidates

Deleting a group removes its voters and their ballots, but fails with
ErrProtected while the group still has candidates. A candidate with
ballots is protected the same way.
*/
package registry
