// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/danielhkuo/assocvote/auth"
	"github.com/danielhkuo/assocvote/models"
)

// Guard decorates a handler with one precondition
type Guard func(http.HandlerFunc) http.HandlerFunc

// Chain applies guards so the first one runs first
func Chain(h http.HandlerFunc, guards ...Guard) http.HandlerFunc {
	for i := len(guards) - 1; i >= 0; i-- {
		h = guards[i](h)
	}
	return h
}

// OperatorFrom returns the operator set by Authenticate
func OperatorFrom(ctx context.Context) (models.Operator, bool) {
	op, ok := ctx.Value(operatorKey).(models.Operator)
	return op, ok
}

// WithOperator stores op in the context the way Authenticate does
func WithOperator(ctx context.Context, op models.Operator) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// Authenticate checks the X-Operator-Name and X-Operator-Key headers
// against the configured operators
func Authenticate(operators []models.Operator) Guard {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			name := r.Header.Get("X-Operator-Name")
			key := r.Header.Get("X-Operator-Key")
			if name == "" || key == "" {
				ErrorResponse(w, http.StatusUnauthorized, "operator credentials required")
				return
			}

			op, err := auth.Authenticate(operators, name, key)
			if errors.Is(err, auth.ErrUnknownOperator) || errors.Is(err, auth.ErrInvalidOperatorKey) {
				slog.Warn("operator authentication failed", "operator", name, "ip", GetClientIP(r))
				ErrorResponse(w, http.StatusUnauthorized, "invalid operator credentials")
				return
			}
			if err != nil {
				slog.Error("operator authentication error", "error", err)
				ErrorResponse(w, http.StatusInternalServerError, "authentication failed")
				return
			}

			next(w, r.WithContext(WithOperator(r.Context(), op)))
		}
	}
}

// RequireRole lets through operators holding role. Superusers hold every
// role.
func RequireRole(role string) Guard {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			op, ok := OperatorFrom(r.Context())
			if !ok {
				ErrorResponse(w, http.StatusUnauthorized, "operator credentials required")
				return
			}
			if op.Role != role && !auth.IsSuperuser(op) {
				ErrorResponse(w, http.StatusForbidden, "insufficient permissions")
				return
			}
			next(w, r)
		}
	}
}

const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter hands out one token bucket per client key
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	clients   map[string]*limiterEntry
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		clients:   make(map[string]*limiterEntry),
		now:       time.Now,
	}
}

// Allow takes one token from key's bucket
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterIdleTTL {
		for k, e := range l.clients {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.clients[key]
	if !ok {
		every := rate.Every(time.Minute / time.Duration(l.perMinute))
		e = &limiterEntry{limiter: rate.NewLimiter(every, l.perMinute)}
		l.clients[key] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// RateLimit refuses requests beyond the limiter's budget. Authenticated
// requests are keyed by operator, the rest by client IP.
func RateLimit(l *RateLimiter) Guard {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := "ip:" + GetClientIP(r)
			if op, ok := OperatorFrom(r.Context()); ok {
				key = "op:" + op.Name
			}
			if !l.Allow(key) {
				w.Header().Set("Retry-After", strconv.Itoa(60/max(l.perMinute, 1)+1))
				ErrorResponse(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next(w, r)
		}
	}
}
