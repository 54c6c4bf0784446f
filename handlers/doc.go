// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the assocvote API.

# Handler Types

Each handler is a struct holding the database, config and the domain
services it needs:

  - VotingHandler: the per-link voter pages (confirm, select, confirmation)
  - AdminHandler: voter registration, groups, candidates and ballot review
  - ReportsHandler: dashboard, charts, slideshows and CSV export

Domain services are built once and shared:

	svc := handlers.NewServices(db, cfg, gateway, alerter)
	voting := handlers.NewVotingHandler(db, cfg, svc)

# Voting Flow

A voter follows the link carrying their OTP token:

	GET  /vote/{token}/              → ConfirmInfo
	POST /vote/{token}/confirm       → Confirm (303 to select)
	GET  /vote/{token}/select        → SelectForm
	POST /vote/{token}/select        → Select (201 with receipt)
	GET  /vote/{token}/confirmation  → Confirmation

Requesting a page that does not match the voter's state answers 303 with
the page they belong on.

# Errors

Domain errors map to status codes in one place per package
(voteError, registryError). Anything unexpected is logged with the
request ID and answered with a generic 500.

# Reports

Public tallies stop counting at the daily freeze hour. The admin
slideshow and ?frozen=1 on votes-by-group let superusers compare live
and frozen counts.
*/
package handlers
