// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/assocvote/cliparse"
	"github.com/danielhkuo/assocvote/ledger"
	"github.com/danielhkuo/assocvote/middleware"
	"github.com/danielhkuo/assocvote/models"
	"github.com/danielhkuo/assocvote/notify"
	"github.com/danielhkuo/assocvote/otp"
	"github.com/danielhkuo/assocvote/registry"
	"github.com/danielhkuo/assocvote/workflow"
)

// Services bundles the domain components shared by all handlers
type Services struct {
	OTP      *otp.Manager
	Ledger   *ledger.Ledger
	Registry *registry.Registry
	Workflow *workflow.Controller
	Window   workflow.VotingWindow
}

// NewServices wires the domain components from config. A nil gateway
// disables OTP delivery and a nil alerter logs alerts.
func NewServices(db *sql.DB, cfg cliparse.Config, gateway *notify.Gateway, alerter notify.Alerter) Services {
	if alerter == nil {
		alerter = notify.LogAlerter{}
	}
	otps := otp.NewManager(db, gateway, otp.WithValidity(cfg.OTPValidity), otp.WithAlerter(alerter))
	l := ledger.New(db)
	r := registry.New(db, otps)
	window := workflow.VotingWindow{
		Enforce:         cfg.ForceTime,
		ClosedFromHour:  cfg.NoVoteStartHour,
		ClosedUntilHour: cfg.NoVoteEndHour,
		Location:        cfg.Location,
	}
	flow := workflow.New(db, otps, l, r, workflow.Config{
		MaxSelections: workflow.DefaultMaxSelections,
		Window:        window,
	})
	return Services{OTP: otps, Ledger: l, Registry: r, Workflow: flow, Window: window}
}

// internalError logs err and answers with a generic 500
func internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	slog.Error(msg, "error", err, "request_id", middleware.RequestID(r.Context()), "path", r.URL.Path)
	middleware.ErrorResponse(w, http.StatusInternalServerError, "Internal server error")
}

// registryError maps registry errors to responses, reporting whether it
// handled err
func registryError(w http.ResponseWriter, err error) bool {
	var ve *registry.ValidationError
	var dup *registry.DuplicateRegistrationError
	switch {
	case errors.As(err, &ve):
		middleware.FieldErrorResponse(w, "validation failed", ve.Fields)
	case errors.As(err, &dup):
		middleware.JSONResponse(w, http.StatusConflict, errorBody(http.StatusConflict, dup.Message, map[string]string{dup.Field: dup.Message}))
	case errors.Is(err, registry.ErrNotFound):
		middleware.ErrorResponse(w, http.StatusNotFound, "not found")
	case errors.Is(err, registry.ErrGroupNotFound):
		middleware.FieldErrorResponse(w, "group not found", map[string]string{"group_id": "group does not exist"})
	case errors.Is(err, registry.ErrDuplicateGroup), errors.Is(err, registry.ErrDuplicateCandidate):
		middleware.ErrorResponse(w, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrProtected):
		middleware.ErrorResponse(w, http.StatusConflict, "record is still referenced and cannot be deleted")
	default:
		return false
	}
	return true
}

func errorBody(status int, message string, fields map[string]string) models.ErrorResponse {
	return models.ErrorResponse{Error: http.StatusText(status), Message: message, Fields: fields}
}
