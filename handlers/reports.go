// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/danielhkuo/assocvote/auth"
	"github.com/danielhkuo/assocvote/cliparse"
	"github.com/danielhkuo/assocvote/ledger"
	"github.com/danielhkuo/assocvote/middleware"
	"github.com/danielhkuo/assocvote/models"
	"github.com/danielhkuo/assocvote/otp"
	"github.com/danielhkuo/assocvote/registry"
)

// Column headers of the ballot export, in order
var exportHeader = []string{
	"#", "Database ID",
	"نام رای دهنده", "نام خانوادگی رای دهنده", "کد ملی رای دهنده", "شماره دانشجویی رای دهنده", "رشته دانشجو",
	"انجمن کاندیدا", "نام کاندیدا", "نام خانوادگی کاندیدا",
	"IP Address", "User Agent", "Device", "Valid", "ساعت ثبت رای",
}

const exportTimeFormat = "2006-01-02 15:04:05"

type ReportsHandler struct {
	db       *sql.DB
	cfg      cliparse.Config
	registry *registry.Registry
	otp      *otp.Manager
	ledger   *ledger.Ledger
	now      func() time.Time
}

func NewReportsHandler(db *sql.DB, cfg cliparse.Config, svc Services) *ReportsHandler {
	return &ReportsHandler{
		db:       db,
		cfg:      cfg,
		registry: svc.Registry,
		otp:      svc.OTP,
		ledger:   svc.Ledger,
		now:      time.Now,
	}
}

func (h *ReportsHandler) location() *time.Location {
	if h.cfg.Location == nil {
		return time.UTC
	}
	return h.cfg.Location
}

// Dashboard handles GET /admin/dashboard. Staff see group and candidate
// counts only.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := h.registry.Counts(ctx)
	if err != nil {
		internalError(w, r, "failed to count records", err)
		return
	}

	resp := models.DashboardResponse{GroupCount: counts.Groups, CandidateCount: counts.Candidates}

	op, _ := middleware.OperatorFrom(ctx)
	if !auth.IsSuperuser(op) {
		middleware.JSONResponse(w, http.StatusOK, resp)
		return
	}

	votes, err := h.ledger.Count(ctx, nil)
	if err != nil {
		internalError(w, r, "failed to count ballots", err)
		return
	}
	stats, err := h.otp.Stats(ctx)
	if err != nil {
		internalError(w, r, "failed to count otps", err)
		return
	}
	avg, err := h.ledger.AverageBallotsPerVoter(ctx)
	if err != nil {
		internalError(w, r, "failed to average ballots", err)
		return
	}
	last, err := h.ledger.LastCastAt(ctx)
	if err != nil {
		internalError(w, r, "failed to load last ballot", err)
		return
	}
	cross, err := h.ledger.CrossGroupVoters(ctx)
	if err != nil {
		internalError(w, r, "failed to find cross-group voters", err)
		return
	}

	operators := len(h.cfg.Operators)
	crossCount := len(cross)
	resp.VoteCount = &votes
	resp.VoterCount = &counts.Voters
	resp.SMSCount = &counts.SMS
	resp.EmailCount = &counts.Email
	resp.OperatorCount = &operators
	resp.OTPCount = &stats.Total
	resp.UsedOTPCount = &stats.Used
	resp.ActiveOTPCount = &stats.Active
	resp.ExpiredOTPCount = &stats.Expired
	resp.AverageVotesPerVoter = &avg
	resp.CrossGroupVoterCount = &crossCount
	resp.VoteCountDisplay = humanize.Comma(int64(votes))
	if last != nil {
		ago := humanize.RelTime(*last, h.now(), "ago", "from now")
		resp.LastVoteAt = &ago
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// VotesByHour handles GET /admin/reports/votes-by-hour
func (h *ReportsHandler) VotesByHour(w http.ResponseWriter, r *http.Request) {
	times, err := h.ledger.CreatedTimes(r.Context())
	if err != nil {
		internalError(w, r, "failed to load ballot times", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, ledger.Hourly(times, h.location()))
}

// VotersByHour handles GET /admin/reports/voters-by-hour
func (h *ReportsHandler) VotersByHour(w http.ResponseWriter, r *http.Request) {
	times, err := h.registry.VoterTimes(r.Context())
	if err != nil {
		internalError(w, r, "failed to load registration times", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, ledger.Hourly(times, h.location()))
}

// VotesByGroup handles GET /admin/reports/votes-by-group. ?frozen=1 counts
// only ballots cast before today's cutoff and is limited to superusers.
func (h *ReportsHandler) VotesByGroup(w http.ResponseWriter, r *http.Request) {
	var asOf *time.Time
	if r.URL.Query().Get("frozen") == "1" {
		op, _ := middleware.OperatorFrom(r.Context())
		if !auth.IsSuperuser(op) {
			middleware.ErrorResponse(w, http.StatusForbidden, "Frozen tallies are restricted to superusers")
			return
		}
		cutoff := ledger.FreezeCutoff(h.now(), h.cfg.FreezeHour, h.location())
		asOf = &cutoff
	}

	groups, err := h.ledger.TallyGroups(r.Context(), asOf, true)
	if err != nil {
		internalError(w, r, "failed to tally groups", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, groups)
}

// Slideshow handles GET /admin/reports/slideshow, the public display.
// Ballots stop counting at the daily freeze hour.
func (h *ReportsHandler) Slideshow(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	cutoff := ledger.FreezeCutoff(now, h.cfg.FreezeHour, h.location())

	groups, err := h.ledger.TallyGroups(r.Context(), &cutoff, true)
	if err != nil {
		internalError(w, r, "failed to tally groups", err)
		return
	}

	updated := now
	frozen := !now.Before(cutoff)
	if frozen {
		updated = cutoff
	}
	middleware.JSONResponse(w, http.StatusOK, slideshow(groups, updated.In(h.location()), frozen))
}

// AdminSlideshow handles GET /admin/reports/admin-slideshow: live counts,
// candidates ordered by votes
func (h *ReportsHandler) AdminSlideshow(w http.ResponseWriter, r *http.Request) {
	groups, err := h.ledger.TallyGroups(r.Context(), nil, true)
	if err != nil {
		internalError(w, r, "failed to tally groups", err)
		return
	}
	ledger.SortByVotes(groups)
	middleware.JSONResponse(w, http.StatusOK, slideshow(groups, h.now().In(h.location()), false))
}

func slideshow(groups []models.GroupTally, updated time.Time, frozen bool) models.SlideshowResponse {
	total := 0
	for _, g := range groups {
		total += g.TotalVotes
	}
	return models.SlideshowResponse{
		Groups:       groups,
		UpdatedTime:  updated.Format("15:04"),
		Frozen:       frozen,
		TotalVotes:   total,
		TotalDisplay: humanize.Comma(int64(total)),
	}
}

// Candidates handles GET /admin/reports/candidates, live per-group counts
// including groups marked invalid
func (h *ReportsHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.ledger.TallyGroups(r.Context(), nil, false)
	if err != nil {
		internalError(w, r, "failed to tally groups", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, groups)
}

// ExportCSV handles GET /admin/votes/export.csv
func (h *ReportsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.List(r.Context())
	if err != nil {
		internalError(w, r, "failed to list ballots", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="votes.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	cw.Write(exportHeader)
	for i, v := range rows {
		cw.Write([]string{
			strconv.Itoa(i),
			v.ID,
			v.VoterFirstName,
			v.VoterLastName,
			v.VoterNationalID,
			v.VoterStudentNumber,
			v.VoterFieldOfStudy,
			v.CandidateGroupName,
			v.CandidateFirstName,
			v.CandidateLastName,
			v.IPAddress,
			v.UserAgent,
			v.Device,
			titleBool(v.Valid),
			v.CreatedAt.In(h.location()).Format(exportTimeFormat),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.Error("failed to write csv", "error", err, "request_id", middleware.RequestID(r.Context()))
	}
}

// titleBool spells booleans True/False as earlier exports did
func titleBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
