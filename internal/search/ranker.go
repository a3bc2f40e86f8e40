// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package search

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/embedding"
	"github.com/tomtom215/archivum/internal/models"
)

// Ranking policy constants.
const (
	// socialBoost is added once when a depicted person is named in the
	// query, regardless of how many depicted persons match.
	socialBoost = 0.2

	// maxTotalScore clamps the boosted total.
	maxTotalScore = 4.0

	// inclusionThreshold is a hard cutoff: records must score strictly
	// above it to appear in results at all.
	inclusionThreshold = 0.2
)

// Ranked is one scored result.
type Ranked struct {
	ID    uuid.UUID
	Score float64
}

// Rank orders the permission-scoped candidate rows against a non-empty
// text query. queryVec may be nil (semantic search disabled or embedding
// failed); the semantic signal is then pinned at -1 for every record.
//
// The returned slice is sorted by descending score; rows scoring at or
// below the inclusion threshold are excluded entirely. The sort is stable,
// so rows with equal scores retain their prior relative order.
func Rank(rows []models.RecordSearchRow, query string, queryVec []float32) []Ranked {
	ranked := make([]Ranked, 0, len(rows))
	for i := range rows {
		score := Score(&rows[i], query, queryVec)
		if score > inclusionThreshold {
			ranked = append(ranked, Ranked{ID: rows[i].Record.ID, Score: score})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Score computes the total similarity of one row against the query.
//
// Three trigram similarities (title, caption, best of the four location
// text fields) are rescaled from [0,1] to [-1,1] via 2x-1, so "no
// similarity" is negative rather than neutral. The semantic signal is the
// cosine similarity between the query vector and the record's stored image
// embedding, or exactly -1 when either is absent.
//
// The combined score is the sum of all four signals floored by the best
// single signal, so one strong signal cannot be dragged below itself by
// weak or negative others. A matching depicted-person name then adds the
// social boost, applied at most once, with the result clamped to
// maxTotalScore.
func Score(row *models.RecordSearchRow, query string, queryVec []float32) float64 {
	titleSim := 2*Trigram(query, row.Record.Title) - 1
	captionSim := 2*Trigram(query, row.Record.Caption) - 1

	locSim := -1.0
	if row.Location != nil {
		best := 0.0
		for _, field := range row.Location.Fields() {
			if s := Trigram(query, field); s > best {
				best = s
			}
		}
		locSim = 2*best - 1
	}

	semanticSim := -1.0
	if queryVec != nil && row.Record.Embedding != nil {
		semanticSim = embedding.Cosine(queryVec, row.Record.Embedding)
	}

	sum := titleSim + captionSim + locSim + semanticSim
	total := sum
	for _, s := range [4]float64{titleSim, captionSim, locSim, semanticSim} {
		if s > total {
			total = s
		}
	}

	if depictedNameInQuery(row.DepictedNames, query) {
		total += socialBoost
		if total > maxTotalScore {
			total = maxTotalScore
		}
	}
	return total
}

// depictedNameInQuery reports whether any depicted person's username,
// first name or last name is a non-empty substring of the lowercased
// query.
func depictedNameInQuery(names []models.PersonName, query string) bool {
	q := strings.ToLower(query)
	for _, n := range names {
		for _, field := range [3]string{n.Username, n.FirstName, n.LastName} {
			if field == "" {
				continue
			}
			if strings.Contains(q, strings.ToLower(field)) {
				return true
			}
		}
	}
	return false
}
