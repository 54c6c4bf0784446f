// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package otp manages the one-time tokens that give a voter access to the
voting flow.

# Lifecycle

	m := otp.NewManager(conn, gateway, otp.WithValidity(cfg.OTPValidity))

	o, err := m.Issue(ctx, tx, voterID)       // reuse live token or mint one
	res, err := m.Dispatch(ctx, voter, o)     // email/SMS, after commit
	voter, o, err := m.Validate(ctx, q, token, requireUnused)
	err = m.Consume(ctx, tx, token)           // at ballot commit only

A token is live while is_used is false and it is younger than the validity
window (2h by default). Issue returns the newest live token unchanged, so
a voter can be sent the same link several times.

# Uniqueness

Tokens are 8 digits from crypto/rand. Issue inserts with
ON CONFLICT (token) DO NOTHING and retries up to 32 times. When every try
collides it raises an operational alert and returns ErrExhaustedRetries.

# Querier

Issue, Validate and Consume take a db.Querier so they can run inside the
caller's transaction. Dispatch, Resend and Stats use the manager's pool.

# Errors

  - ErrNotFound: token malformed or unknown
  - ErrExpired: token used or past the validity window (requireUnused only)
  - ErrExhaustedRetries: no unique token could be drawn
*/
package otp
