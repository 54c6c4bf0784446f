// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the assocvote API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	svc := handlers.NewServices(db, cfg, gateway, alerter)
	mux := router.NewRouter(db, cfg, svc)

# Guards

Voting links are public and rate limited by client IP. Every /admin route
runs Authenticate, then RequireRole, then RateLimit keyed by operator.
Staff may register voters and read reports; code resends, group,
candidate and ballot changes and the export need a superuser.

# Endpoints

Health:

	GET /health

Voting link:

	GET  /vote/{token}/             - Voter details to confirm
	POST /vote/{token}/confirm      - Confirm details
	GET  /vote/{token}/select       - Candidates of the voter's group
	POST /vote/{token}/select       - Cast ballots
	GET  /vote/{token}/confirmation - Receipt

Registration (staff):

	POST /admin/voters      - Register voter and send OTP
	GET  /admin/voters      - List voters (?mine=1, ?group_id=)
	PUT  /admin/voters/{id} - Edit voter

Resending a code needs a superuser:

	POST /admin/voters/{id}/resend-otp

Groups, candidates and ballots (superuser):

	POST|PUT|DELETE /admin/groups[/{id}]
	POST|PUT|DELETE /admin/candidates[/{id}]
	GET  /admin/votes
	POST /admin/votes/{id}/invalidate
	GET  /admin/votes/cross-group
	GET  /admin/votes/export.csv

Reports:

	GET /admin/dashboard
	GET /admin/reports/{votes-by-hour,voters-by-hour,votes-by-group}
	GET /admin/reports/{slideshow,admin-slideshow,candidates}
*/
package router
