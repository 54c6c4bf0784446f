// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

LoadEnv should run first so values from a .env file are visible:

	_ = cliparse.LoadEnv(".env")

# CLI Flags and Environment Variables

	-p             PORT                   Server port (default 3318)
	-d             DATABASE_URL           Postgres URL or sqlite file (default assocvote.db)
	-t             DATABASE_TYPE          sqlite or postgres (default sqlite)
	--base-url     PUBLIC_BASE_URL        Base of voting links sent to voters
	--operators    OPERATORS_FILE         Operators YAML file
	--log-level    LOG_LEVEL              debug, info, warn, error
	--send-email   SEND_EMAIL             Deliver OTPs by email
	--send-sms     SEND_SMS               Deliver OTPs by SMS
	--force-time   FORCE_TIME             Enforce the closed voting window
	--novote-start NOVOTE_START_HOUR      Closed window start (default 22)
	--novote-end   NOVOTE_END_HOUR        Closed window end (default 6)
	--freeze-hour  FREEZE_HOUR            Public tally cutoff hour (default 13)
	--tz           TIMEZONE               IANA zone for the hours above (default UTC)
	--otp-validity OTP_VALIDITY           Token lifetime (default 2h)
	--rate-limit   RATE_LIMIT_PER_MINUTE  Admin requests per minute (default 90)
	--trust-proxy  TRUST_PROXY            Read client IPs from X-Forwarded-For

CLI flags take precedence over environment variables.

Provider credentials are read from the environment only: SMS_API_URL,
SMS_APIKEY, SMS_SENDER, SMS_PATTERN_ID, SMTP_HOST, SMTP_PORT, SMTP_USER,
SMTP_PASSWORD, EMAIL_FROM, TELEGRAM_BOT_TOKEN, TELEGRAM_ALERT_CHAT_ID.

# Operators File

	operators:
	  - name: alice
	    role: superuser
	    key_hash: "$2a$10$..."

Hashes come from `assocvote hash-key <key>`. A missing role defaults to
staff.

# Validation

ParseFlags returns an error when:

  - DATABASE_TYPE is postgres and no URL is given
  - an hour setting is outside 0..23
  - SEND_SMS or SEND_EMAIL is on without its provider settings
  - TIMEZONE, OTP_VALIDITY or LOG_LEVEL cannot be parsed
*/
package cliparse
