// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package search implements the relevance ranker and permission-filtered
// retrieval over media records.
//
// Ranking combines character-trigram text similarity on title, caption and
// location with cosine similarity against the record's semantic image
// embedding, plus a social boost for depicted persons named in the query.
package search

import (
	"strings"
	"unicode"
)

// Trigram computes character-trigram similarity between two strings, in
// [0, 1]. The extraction follows PostgreSQL's pg_trgm: strings are
// lowercased, split into alphanumeric words, each word padded with two
// leading and one trailing space, and the score is the Jaccard ratio of
// the two unique trigram sets.
func Trigram(a, b string) float64 {
	ta := trigramSet(a)
	tb := trigramSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// trigramSet extracts the unique padded trigrams of a string.
func trigramSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range splitWords(strings.ToLower(s)) {
		padded := "  " + word + " "
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			set[string(runes[i:i+3])] = struct{}{}
		}
	}
	return set
}

// splitWords returns maximal runs of letters and digits.
func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
