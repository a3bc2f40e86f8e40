// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package search

import (
	"time"

	"github.com/tomtom215/archivum/internal/models"
)

// Request is the conceptual search request: an optional free-text query
// plus declarative filter predicates, all optional.
type Request struct {
	Query         string     `json:"query"`
	DepictedUsers string     `json:"depicted_users"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	Location      string     `json:"location"`

	// MediaType is one of Image/Audio/Video/Text/Other or "All".
	MediaType string `json:"media_type" validate:"omitempty,oneof=All Image Audio Video Text Other"`
}

// IsUnconstrained reports whether the request carries neither a query nor
// any predicate. Whether that is a user error or an intentional "browse
// everything" is decided by the caller, not here.
func (r Request) IsUnconstrained() bool {
	return r.Query == "" && r.Filter(time.Now()).IsZero()
}

// Filter converts the request's predicates to a store filter.
//
// Date rules: a start date without an end date extends the range to
// "today" (the supplied now); an end date without a start date becomes
// "created on or before end", with no lower bound.
func (r Request) Filter(now time.Time) models.RecordFilter {
	f := models.RecordFilter{
		DepictedName: r.DepictedUsers,
		Location:     r.Location,
	}
	if r.MediaType != "" && r.MediaType != "All" {
		f.Kind = models.MediaKind(r.MediaType)
	}

	switch {
	case r.StartDate != nil && r.EndDate == nil:
		today := endOfDay(now)
		f.CreatedFrom = r.StartDate
		f.CreatedTo = &today
	case r.StartDate == nil && r.EndDate != nil:
		to := endOfDay(*r.EndDate)
		f.CreatedTo = &to
	case r.StartDate != nil && r.EndDate != nil:
		to := endOfDay(*r.EndDate)
		f.CreatedFrom = r.StartDate
		f.CreatedTo = &to
	}
	return f
}

// endOfDay makes the upper bound inclusive for date-granularity input.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}
