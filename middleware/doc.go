// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status,
duration_ms). Each request gets an id, taken from X-Request-ID when the
client sends one, echoed in the response and available through
RequestID(ctx).

# Guards

Operator routes run a guard chain, first guard outermost:

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute)
	h := middleware.Chain(handler,
		middleware.Authenticate(cfg.Operators),
		middleware.RequireRole(models.RoleStaff),
		middleware.RateLimit(limiter),
	)

Authenticate reads X-Operator-Name and X-Operator-Key and stores the
operator in the context (OperatorFrom). RequireRole answers 403 to
operators without the role; superusers pass every role check.
RateLimit keeps one token bucket per operator, or per client IP on
unauthenticated routes, and answers 429 when it is empty.

# CORS Middleware

	server := http.Server{
		Handler: middleware.CORS(mux),
	}

Allows methods GET, POST, PUT, DELETE, OPTIONS with headers
Content-Type, X-Operator-Name, X-Operator-Key, X-Request-ID.

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")
	middleware.FieldErrorResponse(w, "validation failed", fields)

ParseJSONBody decodes one JSON value from a body of at most 1 MiB.

# Client Details

	ip := middleware.GetClientIP(r)
	device := middleware.DeviceInfo(r.UserAgent())

Both are stored on every ballot. GetClientIP uses RemoteAddr unless the
server is wrapped in TrustProxy, which makes it read the last
X-Forwarded-For hop (or X-Real-IP) set by the reverse proxy. The IP also
keys the rate limit for voting links.
*/
package middleware
