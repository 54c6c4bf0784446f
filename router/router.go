// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/assocvote/cliparse"
	"github.com/danielhkuo/assocvote/handlers"
	"github.com/danielhkuo/assocvote/middleware"
	"github.com/danielhkuo/assocvote/models"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, svc handlers.Services) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	votingHandler := handlers.NewVotingHandler(db, cfg, svc)
	adminHandler := handlers.NewAdminHandler(db, cfg, svc)
	reportsHandler := handlers.NewReportsHandler(db, cfg, svc)

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	public := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.Chain(h, middleware.RateLimit(limiter)))
	}
	guarded := func(role string) func(http.HandlerFunc) http.HandlerFunc {
		return func(h http.HandlerFunc) http.HandlerFunc {
			return middleware.WithLogging(middleware.Chain(h,
				middleware.Authenticate(cfg.Operators),
				middleware.RequireRole(role),
				middleware.RateLimit(limiter),
			))
		}
	}
	staff := guarded(models.RoleStaff)
	superuser := guarded(models.RoleSuperuser)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Voting link (public, limited by IP)
	mux.HandleFunc("GET /vote/{token}/{$}", public(votingHandler.ConfirmInfo))
	mux.HandleFunc("POST /vote/{token}/confirm", public(votingHandler.Confirm))
	mux.HandleFunc("GET /vote/{token}/select", public(votingHandler.SelectForm))
	mux.HandleFunc("POST /vote/{token}/select", public(votingHandler.Select))
	mux.HandleFunc("GET /vote/{token}/confirmation", public(votingHandler.Confirmation))

	// Voter registration
	mux.HandleFunc("POST /admin/voters", staff(adminHandler.RegisterVoter))
	mux.HandleFunc("GET /admin/voters", staff(adminHandler.ListVoters))
	mux.HandleFunc("PUT /admin/voters/{id}", staff(adminHandler.UpdateVoter))
	mux.HandleFunc("DELETE /admin/voters/{id}", superuser(adminHandler.DeleteVoter))
	mux.HandleFunc("POST /admin/voters/{id}/resend-otp", superuser(adminHandler.ResendOTP))

	// Groups and candidates
	mux.HandleFunc("GET /admin/groups", staff(adminHandler.ListGroups))
	mux.HandleFunc("POST /admin/groups", superuser(adminHandler.CreateGroup))
	mux.HandleFunc("PUT /admin/groups/{id}", superuser(adminHandler.UpdateGroup))
	mux.HandleFunc("DELETE /admin/groups/{id}", superuser(adminHandler.DeleteGroup))
	mux.HandleFunc("GET /admin/candidates", staff(adminHandler.ListCandidates))
	mux.HandleFunc("POST /admin/candidates", superuser(adminHandler.CreateCandidate))
	mux.HandleFunc("PUT /admin/candidates/{id}", superuser(adminHandler.UpdateCandidate))
	mux.HandleFunc("DELETE /admin/candidates/{id}", superuser(adminHandler.DeleteCandidate))

	// Ballot review
	mux.HandleFunc("GET /admin/votes", superuser(adminHandler.ListVotes))
	mux.HandleFunc("POST /admin/votes/{id}/invalidate", superuser(adminHandler.InvalidateVote))
	mux.HandleFunc("GET /admin/votes/cross-group", superuser(adminHandler.CrossGroupVotes))
	mux.HandleFunc("GET /admin/votes/export.csv", superuser(reportsHandler.ExportCSV))

	// Reports
	mux.HandleFunc("GET /admin/dashboard", staff(reportsHandler.Dashboard))
	mux.HandleFunc("GET /admin/reports/votes-by-hour", staff(reportsHandler.VotesByHour))
	mux.HandleFunc("GET /admin/reports/voters-by-hour", staff(reportsHandler.VotersByHour))
	mux.HandleFunc("GET /admin/reports/votes-by-group", staff(reportsHandler.VotesByGroup))
	mux.HandleFunc("GET /admin/reports/slideshow", staff(reportsHandler.Slideshow))
	mux.HandleFunc("GET /admin/reports/admin-slideshow", superuser(reportsHandler.AdminSlideshow))
	mux.HandleFunc("GET /admin/reports/candidates", staff(reportsHandler.Candidates))

	// Root endpoint
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("assocvote API v1"))
	})

	return mux
}
