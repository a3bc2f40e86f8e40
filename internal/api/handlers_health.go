// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthLive answers as long as the process is up.
func (h *Handlers) HealthLive(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, map[string]string{"status": "ok"})
}

// HealthReady verifies the database connection before declaring the
// service ready for traffic.
func (h *Handlers) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Conn().PingContext(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeInternalError, "database unavailable")
		return
	}
	writeSuccess(w, map[string]string{"status": "ready"})
}
