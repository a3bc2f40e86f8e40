// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/metrics"
	"github.com/tomtom215/archivum/internal/search"
)

// Search runs the ranked, permission-filtered query and replaces the
// session's browse context with the result order.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req search.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeDomainError(w, err)
		return
	}

	start := time.Now()
	result, err := h.search.Search(r.Context(), requestUser(r), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchResults.Observe(float64(result.Total))

	if err := h.archive.RememberOrder(r.Context(), requestSession(r), result.IDs); err != nil {
		logging.Warn().Err(err).Msg("navigation context save failed")
	}

	// First page of summaries; the full ordered id list lets the client
	// page without re-running the query.
	limit := h.pageSize
	if limit > len(result.IDs) {
		limit = len(result.IDs)
	}
	page := make([]recordJSON, 0, limit)
	for _, id := range result.IDs[:limit] {
		rec, err := h.db.GetRecord(r.Context(), id)
		if err != nil {
			continue
		}
		page = append(page, recordToJSON(rec))
	}

	writeSuccess(w, map[string]interface{}{
		"ids":     result.IDs,
		"total":   result.Total,
		"records": page,
	})
}

// Autocomplete serves suggestion strings for one search field.
func (h *Handlers) Autocomplete(w http.ResponseWriter, r *http.Request) {
	kind := search.AutocompleteKind(r.URL.Query().Get("kind"))
	switch kind {
	case search.AutocompleteLocation, search.AutocompleteDepicted, search.AutocompleteInput:
	default:
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "unknown autocomplete kind")
		return
	}

	suggestions, err := h.search.Autocomplete(r.Context(), requestUser(r), kind, r.URL.Query().Get("term"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	writeSuccess(w, map[string]interface{}{"suggestions": suggestions})
}
