// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the assocvote API server.

assocvote runs the elections of student scientific associations. Staff
register voters at a desk, each voter receives a one-time code by email or
SMS, and follows the link to confirm their details and pick up to five
candidates of their own association.

# Starting the Server

SQLite is the default store:

	go run . -operators operators.yaml

Postgres needs a connection string:

	DATABASE_TYPE=postgres DATABASE_URL=postgres://... go run .

Settings may also be placed in a .env file in the working directory.

# Operators

Operators are listed in a YAML file with bcrypt hashed keys. The hash-key
subcommand prints the hash for a new key:

	go run . hash-key "s3cret"

# Configuration

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t), DATABASE_URL (-d): sqlite or postgres
  - PUBLIC_BASE_URL (--base-url): prefix of links sent to voters
  - SEND_EMAIL, SEND_SMS: enable OTP channels (SMTP_* and SMS_* settings)
  - FORCE_TIME, NOVOTE_START_HOUR, NOVOTE_END_HOUR: nightly closed window
  - FREEZE_HOUR, TIMEZONE: daily cutoff of public tallies
  - TELEGRAM_BOT_TOKEN, TELEGRAM_ALERT_CHAT_ID: operational alerts

# Architecture

  - handlers: HTTP request handlers (voting link, admin, reports)
  - router: Route definitions and guard chains
  - middleware: Logging, CORS, authentication, rate limiting
  - workflow: Voting session states and ballot submission
  - registry: Voters, groups and candidates
  - ledger: Ballots and tallies
  - otp: One-time codes and their delivery
  - notify: Email, SMS and Telegram clients
  - db: Connection, schema and scanning helpers
  - auth, cliparse, models: Codes and keys, configuration, shared types

See package documentation for each component.
*/
package main
