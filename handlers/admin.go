// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/danielhkuo/assocvote/auth"
	"github.com/danielhkuo/assocvote/cliparse"
	"github.com/danielhkuo/assocvote/ledger"
	"github.com/danielhkuo/assocvote/middleware"
	"github.com/danielhkuo/assocvote/models"
	"github.com/danielhkuo/assocvote/otp"
	"github.com/danielhkuo/assocvote/registry"
	"github.com/danielhkuo/assocvote/workflow"
)

type AdminHandler struct {
	db       *sql.DB
	cfg      cliparse.Config
	registry *registry.Registry
	otp      *otp.Manager
	ledger   *ledger.Ledger
	window   workflow.VotingWindow
	now      func() time.Time
}

func NewAdminHandler(db *sql.DB, cfg cliparse.Config, svc Services) *AdminHandler {
	return &AdminHandler{
		db:       db,
		cfg:      cfg,
		registry: svc.Registry,
		otp:      svc.OTP,
		ledger:   svc.Ledger,
		window:   svc.Window,
		now:      time.Now,
	}
}

// RegisterVoter handles POST /admin/voters
func (h *AdminHandler) RegisterVoter(w http.ResponseWriter, r *http.Request) {
	op, _ := middleware.OperatorFrom(r.Context())
	if h.window.Closed(h.now()) && !auth.IsSuperuser(op) {
		middleware.ErrorResponse(w, http.StatusForbidden, "Registration is closed at this hour")
		return
	}

	var req models.RegisterVoterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	createdBy := op.Name
	reg, err := h.registry.Register(r.Context(), req, &createdBy)
	if err != nil {
		if registryError(w, err) {
			return
		}
		internalError(w, r, "failed to register voter", err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.RegisterVoterResponse{
		Voter:     reg.Voter,
		OTPSent:   reg.Delivery.Any(),
		EmailSent: reg.Delivery.Sent(models.ChannelEmail),
		SMSSent:   reg.Delivery.Sent(models.ChannelSMS),
	})
}

// ListVoters handles GET /admin/voters. ?mine=1 limits the list to voters
// the caller registered.
func (h *AdminHandler) ListVoters(w http.ResponseWriter, r *http.Request) {
	op, _ := middleware.OperatorFrom(r.Context())
	f := registry.VoterFilter{GroupID: r.URL.Query().Get("group_id")}
	if r.URL.Query().Get("mine") == "1" {
		f.CreatedBy = op.Name
	}

	voters, err := h.registry.ListVoters(r.Context(), f)
	if err != nil {
		internalError(w, r, "failed to list voters", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, voters)
}

// UpdateVoter handles PUT /admin/voters/{id}
func (h *AdminHandler) UpdateVoter(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterVoterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	v, err := h.registry.UpdateVoter(r.Context(), r.PathValue("id"), req)
	if err != nil {
		if registryError(w, err) {
			return
		}
		internalError(w, r, "failed to update voter", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, v)
}

// DeleteVoter handles DELETE /admin/voters/{id}
func (h *AdminHandler) DeleteVoter(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteVoter(r.Context(), r.PathValue("id")); err != nil {
		if registryError(w, err) {
			return
		}
		internalError(w, r, "failed to delete voter", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResendOTP handles POST /admin/voters/{id}/resend-otp
func (h *AdminHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	o, res, err := h.otp.Resend(r.Context(), id)
	if errors.Is(err, otp.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Voter not found")
		return
	}
	if err != nil {
		internalError(w, r, "failed to resend otp", err)
		return
	}

	msg := "Code sent"
	if !res.Any() {
		msg = "Code could not be delivered on any channel"
	}
	middleware.JSONResponse(w, http.StatusOK, models.ResendOTPResponse{
		VoterID:   id,
		OTPSent:   o.OTPSent,
		EmailSent: res.Sent(models.ChannelEmail),
		SMSSent:   res.Sent(models.ChannelSMS),
		Message:   msg,
	})
}

// ListGroups handles GET /admin/groups
func (h *AdminHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.registry.ListGroups(r.Context())
	if err != nil {
		internalError(w, r, "failed to list groups", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, groups)
}

// CreateGroup handles POST /admin/groups
func (h *AdminHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req models.GroupRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	g, err := h.registry.CreateGroup(r.Context(), req)
	if err != nil {
		if registryError(w, err) {
			return
		}
		internalError(w, r, "failed to create group", err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, g)
}

// UpdateGroup handles PUT /admin/groups/{id}
func (h *AdminHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	var req models.GroupRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	g, err := h.registry.UpdateGroup(r.Context(), r.PathValue("id"), req)
	if err != nil {
		if registryError(w, err) {
			return
		}
		internalError(w, r, "failed to update group", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, g)
}

// DeleteGroup handles DELETE /admin/groups/{id}
func (h *AdminHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteGroup(r.Context(), r.PathValue("id")); err != nil {
		if registryError(w, err) {
			return
		}
		internalError(w, r, "failed to delete group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCandidates handles GET /admin/candidates[?group_id=]
func (h *AdminHandler) ListCandidates(w http.ResponseWriter, r *http.Request) {
	cs, err := h.registry.ListCandidates(r.Context(), r.URL.Query().Get("group_id"))
	if err != nil {
		internalError(w, r, "failed to list candidates", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, cs)
}

// CreateCandidate handles POST /admin/candidates
func (h *AdminHandler) CreateCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.CandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	c, err := h.registry.CreateCandidate(r.Context(), req)
	if err != nil {
		if registryError(w, err) {
			return
		}
		internalError(w, r, "failed to create candidate", err)
		return
	}
	middleware.JSONResponse(w, http.StatusCreated, c)
}

// UpdateCandidate handles PUT /admin/candidates/{id}
func (h *AdminHandler) UpdateCandidate(w http.ResponseWriter, r *http.Request) {
	var req models.CandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	c, err := h.registry.UpdateCandidate(r.Context(), r.PathValue("id"), req)
	if err != nil {
		if registryError(w, err) {
			return
		}
		internalError(w, r, "failed to update candidate", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, c)
}

// DeleteCandidate handles DELETE /admin/candidates/{id}
func (h *AdminHandler) DeleteCandidate(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.DeleteCandidate(r.Context(), r.PathValue("id")); err != nil {
		if registryError(w, err) {
			return
		}
		internalError(w, r, "failed to delete candidate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListVotes handles GET /admin/votes
func (h *AdminHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	rows, err := h.ledger.List(r.Context())
	if err != nil {
		internalError(w, r, "failed to list ballots", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, rows)
}

// InvalidateVote handles POST /admin/votes/{id}/invalidate. The body may
// set {"valid": true} to restore a ballot.
func (h *AdminHandler) InvalidateVote(w http.ResponseWriter, r *http.Request) {
	req := models.InvalidateVoteRequest{Valid: false}
	if r.ContentLength != 0 {
		if err := middleware.ParseJSONBody(r, &req); err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	v, err := h.ledger.Invalidate(r.Context(), r.PathValue("id"), req.Valid)
	if errors.Is(err, ledger.ErrNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Ballot not found")
		return
	}
	if err != nil {
		internalError(w, r, "failed to change ballot validity", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, v)
}

// CrossGroupVotes handles GET /admin/votes/cross-group
func (h *AdminHandler) CrossGroupVotes(w http.ResponseWriter, r *http.Request) {
	voters, err := h.ledger.CrossGroupVoters(r.Context())
	if err != nil {
		internalError(w, r, "failed to find cross-group voters", err)
		return
	}
	votes, err := h.ledger.ListCrossGroup(r.Context())
	if err != nil {
		internalError(w, r, "failed to list cross-group ballots", err)
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.CrossGroupResponse{Voters: voters, Votes: votes})
}
