// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/models"
)

// Store is the slice of the object store the search service consumes.
type Store interface {
	// FilterRecords returns rows matching ALL set predicates, newest
	// first, with location and visible depicted names joined.
	FilterRecords(ctx context.Context, f models.RecordFilter) ([]models.RecordSearchRow, error)
}

// Authorizer is the permission oracle surface used for retrieval.
type Authorizer interface {
	// VisibleTo filters candidate ids down to those the user may view,
	// preserving the candidates' order.
	VisibleTo(ctx context.Context, userID uuid.UUID, action string, candidates []uuid.UUID) ([]uuid.UUID, error)
}

// TextEmbedder turns the query string into a semantic vector.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Result is an ordered list of record ids plus the total count for
// pagination.
type Result struct {
	IDs   []uuid.UUID `json:"ids"`
	Total int         `json:"total"`
}

// Service wires filtering, permission scoping and ranking together.
type Service struct {
	store    Store
	authz    Authorizer
	embedder TextEmbedder

	// semanticEnabled gates the embedding signal. When false the semantic
	// similarity is pinned at -1 for every record.
	semanticEnabled bool

	// autocompleteMax truncates suggestion strings.
	autocompleteMax int

	// now is injectable for date-default tests.
	now func() time.Time
}

// NewService creates the search service. embedder may be nil when semantic
// search is disabled.
func NewService(store Store, authz Authorizer, embedder TextEmbedder, semanticEnabled bool, autocompleteMax int) *Service {
	if autocompleteMax <= 0 {
		autocompleteMax = 70
	}
	return &Service{
		store:           store,
		authz:           authz,
		embedder:        embedder,
		semanticEnabled: semanticEnabled,
		autocompleteMax: autocompleteMax,
		now:             time.Now,
	}
}

// Search runs the full retrieval path: predicate filtering, permission
// scoping (outermost), then ranking when a query is present. Without a
// query the permission-scoped filter matches are returned in store order.
func (s *Service) Search(ctx context.Context, userID uuid.UUID, req Request) (Result, error) {
	rows, err := s.store.FilterRecords(ctx, req.Filter(s.now()))
	if err != nil {
		return Result{}, fmt.Errorf("filter records: %w", err)
	}

	visible, err := s.visibleRows(ctx, userID, rows)
	if err != nil {
		return Result{}, err
	}

	if req.Query == "" {
		ids := make([]uuid.UUID, len(visible))
		for i := range visible {
			ids[i] = visible[i].Record.ID
		}
		return Result{IDs: ids, Total: len(ids)}, nil
	}

	var queryVec []float32
	if s.semanticEnabled && s.embedder != nil {
		queryVec, err = s.embedder.EmbedText(ctx, req.Query)
		if err != nil {
			// Ranking degrades to text-only signals.
			logging.Warn().Err(err).Msg("query embedding unavailable, ranking without semantic signal")
			queryVec = nil
		}
	}

	ranked := Rank(visible, req.Query, queryVec)
	ids := make([]uuid.UUID, len(ranked))
	for i := range ranked {
		ids[i] = ranked[i].ID
	}
	return Result{IDs: ids, Total: len(ids)}, nil
}

// visibleRows applies the permission oracle to filtered rows, preserving
// their order.
func (s *Service) visibleRows(ctx context.Context, userID uuid.UUID, rows []models.RecordSearchRow) ([]models.RecordSearchRow, error) {
	ids := make([]uuid.UUID, len(rows))
	byID := make(map[uuid.UUID]int, len(rows))
	for i := range rows {
		ids[i] = rows[i].Record.ID
		byID[rows[i].Record.ID] = i
	}

	visibleIDs, err := s.authz.VisibleTo(ctx, userID, "view", ids)
	if err != nil {
		return nil, fmt.Errorf("permission filter: %w", err)
	}

	visible := make([]models.RecordSearchRow, 0, len(visibleIDs))
	for _, id := range visibleIDs {
		if i, ok := byID[id]; ok {
			visible = append(visible, rows[i])
		}
	}
	return visible, nil
}

// AutocompleteKind selects the suggestion source.
type AutocompleteKind string

const (
	AutocompleteLocation AutocompleteKind = "search_location"
	AutocompleteDepicted AutocompleteKind = "search_depicted_users"
	AutocompleteInput    AutocompleteKind = "search_input"
)

// Autocomplete returns distinct, permission-filtered suggestion strings
// for the search bar, truncated to the configured length.
func (s *Service) Autocomplete(ctx context.Context, userID uuid.UUID, kind AutocompleteKind, term string) ([]string, error) {
	if term == "" {
		return nil, nil
	}

	var f models.RecordFilter
	switch kind {
	case AutocompleteLocation:
		f.Location = term
	case AutocompleteDepicted:
		f.DepictedName = term
	case AutocompleteInput:
		f.TitleOrCaption = term
	default:
		return nil, fmt.Errorf("unknown autocomplete kind %q", kind)
	}

	rows, err := s.store.FilterRecords(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("autocomplete filter: %w", err)
	}
	visible, err := s.visibleRows(ctx, userID, rows)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	add := func(v string) {
		if v == "" {
			return
		}
		v = truncate(v, s.autocompleteMax)
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for i := range visible {
		switch kind {
		case AutocompleteLocation:
			if loc := visible[i].Location; loc != nil {
				for _, field := range loc.Fields() {
					add(field)
				}
			}
		case AutocompleteDepicted:
			lower := strings.ToLower(term)
			for _, n := range visible[i].DepictedNames {
				for _, field := range [3]string{n.Username, n.FirstName, n.LastName} {
					if strings.Contains(strings.ToLower(field), lower) {
						add(field)
					}
				}
			}
		case AutocompleteInput:
			add(visible[i].Record.Title)
			add(visible[i].Record.Caption)
		}
	}

	sort.Strings(out)
	return out, nil
}

// truncate shortens a suggestion to max runes, appending an ellipsis when
// cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
