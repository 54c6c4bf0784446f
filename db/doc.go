// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens the database and creates the schema.

# Connecting

Open supports PostgreSQL (github.com/lib/pq) and SQLite
(modernc.org/sqlite, no cgo):

	conn, err := db.Open(ctx, cfg.DatabaseType, cfg.DatabaseURL)

SQLite connections enable foreign keys, a 5s busy timeout and a single
open connection.

# Schema Creation

	if err := db.CreateSchema(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and indexes.
The same DDL runs on both dialects.

# Tables

  - voting_group: Organizational groups that scope candidates and voters
  - candidate: Candidates, each in exactly one group
  - voter: Registered voters, unique per group by national ID and student number
  - otp: One-time 8-digit access tokens
  - vote: One ballot per (voter, candidate), with confirmation code
  - notification: Delivery log of OTP emails and SMS

# Relationships

	voting_group 1──* candidate   (RESTRICT)
	voting_group 1──* voter       (CASCADE)
	voter        1──* otp         (CASCADE)
	voter        1──* vote        (CASCADE)
	candidate    1──* vote        (RESTRICT)
	voter        1──* notification (CASCADE)

# Driver Errors

Constraint failures are classified without leaking driver types:

	if db.IsUniqueViolation(err) { ... }
	if db.IsForeignKeyViolation(err) { ... }

# Querier

Querier is implemented by *sql.DB and *sql.Tx. Storage helpers in other
packages accept a Querier so the caller owns the transaction boundary.

Placeholders are written $1..$n in order of first use so the same query
text runs on both drivers.
*/
package db
