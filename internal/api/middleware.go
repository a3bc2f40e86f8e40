// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/metrics"
)

type contextKey string

const (
	userIDKey    contextKey = "user_id"
	sessionIDKey contextKey = "session_id"
)

// Identity headers set by the authenticating reverse proxy. Session and
// authentication mechanics live upstream; this service only consumes the
// resolved identity.
const (
	headerUserID    = "X-User-ID"
	headerSessionID = "X-Session-ID"
	headerRequestID = "X-Request-ID"
)

// RequestID echoes or generates a request id and puts it on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}

// Identity extracts the proxied user identity. Requests without a valid
// user id are rejected before any handler runs.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.Header.Get(headerUserID))
		if err != nil || userID == uuid.Nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid user identity")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		if sid := r.Header.Get(headerSessionID); sid != "" {
			ctx = context.WithValue(ctx, sessionIDKey, sid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionTrackTTL bounds how long a session id counts as already seen.
// Proxy sessions rotate well within this window.
const (
	sessionTrackTTL    = 12 * time.Hour
	maxTrackedSessions = 16384
)

// sessionTracker remembers which proxy sessions have been seen, so
// login-time work runs once per session.
type sessionTracker struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{seen: make(map[string]time.Time)}
}

func (t *sessionTracker) firstSeen(id string) bool {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	if at, ok := t.seen[id]; ok && now.Sub(at) < sessionTrackTTL {
		t.seen[id] = now
		return false
	}
	if len(t.seen) >= maxTrackedSessions {
		for k, at := range t.seen {
			if now.Sub(at) >= sessionTrackTTL {
				delete(t.seen, k)
			}
		}
	}
	t.seen[id] = now
	return true
}

// SessionStart triggers login-time work when a session id appears for
// the first time. Runs after Identity, so the user id is always set.
func (h *Handlers) SessionStart(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sid := requestSession(r); sid != "" && h.sessions.firstSeen(sid) {
			if err := h.archive.SessionStart(r.Context(), requestUser(r)); err != nil {
				logging.Error().Err(err).Str("session_id", sid).Msg("session start work failed")
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requestUser(r *http.Request) uuid.UUID {
	id, _ := r.Context().Value(userIDKey).(uuid.UUID)
	return id
}

func requestSession(r *http.Request) string {
	sid, _ := r.Context().Value(sessionIDKey).(string)
	return sid
}

// Instrument records per-request duration metrics and an access log line.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, routePattern(r), ww.Status(), elapsed)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", elapsed).
			Msg("request")
	})
}

// routePattern returns the chi route template, so metrics label
// cardinality stays bounded by the route table, not by request paths.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
