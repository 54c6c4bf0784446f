// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/danielhkuo/assocvote/cliparse"
	"github.com/danielhkuo/assocvote/ledger"
	"github.com/danielhkuo/assocvote/middleware"
	"github.com/danielhkuo/assocvote/models"
	"github.com/danielhkuo/assocvote/workflow"
)

type VotingHandler struct {
	db   *sql.DB
	cfg  cliparse.Config
	flow *workflow.Controller
}

func NewVotingHandler(db *sql.DB, cfg cliparse.Config, svc Services) *VotingHandler {
	return &VotingHandler{db: db, cfg: cfg, flow: svc.Workflow}
}

func stepPath(token string, step workflow.Step) string {
	switch step {
	case workflow.StepSelect:
		return "/vote/" + token + "/select"
	case workflow.StepConfirmation:
		return "/vote/" + token + "/confirmation"
	}
	return "/vote/" + token + "/"
}

// voteError maps workflow errors to responses
func (h *VotingHandler) voteError(w http.ResponseWriter, r *http.Request, token string, err error) {
	var se *workflow.SelectionError
	switch {
	case errors.Is(err, workflow.ErrLinkInvalid):
		middleware.ErrorResponse(w, http.StatusNotFound, "Voting link is not valid")
	case errors.Is(err, workflow.ErrLinkExpired):
		middleware.ErrorResponse(w, http.StatusGone, "Voting link has expired, ask for a new code")
	case errors.As(err, &se):
		middleware.ErrorResponse(w, http.StatusBadRequest, se.Error())
	case errors.Is(err, workflow.ErrDuplicateBallot):
		middleware.ErrorResponse(w, http.StatusConflict, "A ballot for this candidate is already recorded")
	case errors.Is(err, workflow.ErrAlreadyVoted):
		http.Redirect(w, r, stepPath(token, workflow.StepConfirmation), http.StatusSeeOther)
	case errors.Is(err, workflow.ErrNotConfirmed):
		http.Redirect(w, r, stepPath(token, workflow.StepConfirmInfo), http.StatusSeeOther)
	case errors.Is(err, workflow.ErrVotingClosed):
		middleware.ErrorResponse(w, http.StatusForbidden, "Voting is closed at this hour")
	default:
		internalError(w, r, "voting request failed", err)
	}
}

// session resolves the link and redirects when step is out of order.
// It reports false once a response has been written.
func (h *VotingHandler) session(w http.ResponseWriter, r *http.Request, step workflow.Step) (workflow.Session, bool) {
	token := r.PathValue("token")
	s, err := h.flow.Resolve(r.Context(), token)
	if err != nil {
		h.voteError(w, r, token, err)
		return s, false
	}
	if next, ok := s.Redirect(step); ok {
		http.Redirect(w, r, stepPath(token, next), http.StatusSeeOther)
		return s, false
	}
	return s, true
}

// ConfirmInfo handles GET /vote/{token}/
func (h *VotingHandler) ConfirmInfo(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, workflow.StepConfirmInfo)
	if !ok {
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.ConfirmInfoResponse{
		Token: s.Token,
		State: s.State.String(),
		Voter: s.Voter,
		Group: s.Group,
	})
}

// Confirm handles POST /vote/{token}/confirm
func (h *VotingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	s, err := h.flow.ConfirmInformation(r.Context(), token)
	if err != nil {
		h.voteError(w, r, token, err)
		return
	}
	next := workflow.StepSelect
	if s.State == workflow.Voted {
		next = workflow.StepConfirmation
	}
	http.Redirect(w, r, stepPath(token, next), http.StatusSeeOther)
}

// SelectForm handles GET /vote/{token}/select
func (h *VotingHandler) SelectForm(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, workflow.StepSelect)
	if !ok {
		return
	}

	candidates, err := h.flow.Candidates(r.Context(), s)
	if err != nil {
		internalError(w, r, "failed to list candidates", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.SelectCandidatesResponse{
		Token:         s.Token,
		Voter:         s.Voter,
		MaxSelections: h.flow.MaxSelections(),
		Candidates:    candidates,
	})
}

// Select handles POST /vote/{token}/select
func (h *VotingHandler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, workflow.StepSelect)
	if !ok {
		return
	}

	var req models.SelectCandidatesRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ua := r.UserAgent()
	md := ledger.Metadata{
		IPAddress: middleware.GetClientIP(r),
		UserAgent: ua,
		Device:    middleware.DeviceInfo(ua),
	}

	receipt, err := h.flow.Submit(r.Context(), s.Token, req.CandidateIDs, md)
	if err != nil {
		h.voteError(w, r, s.Token, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.ReceiptResponse{
		Token:   s.Token,
		Voter:   receipt.Voter,
		Ballots: receipt.Ballots,
		Message: "Your vote has been recorded",
	})
}

// Confirmation handles GET /vote/{token}/confirmation
func (h *VotingHandler) Confirmation(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r, workflow.StepConfirmation)
	if !ok {
		return
	}

	receipt, err := h.flow.Receipt(r.Context(), s)
	if err != nil {
		internalError(w, r, "failed to load receipt", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ReceiptResponse{
		Token:   s.Token,
		Voter:   receipt.Voter,
		Ballots: receipt.Ballots,
	})
}
