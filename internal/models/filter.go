// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordFilter is a conjunction of declarative predicates over records.
// Zero-valued fields contribute no predicate. Visibility is NOT part of the
// filter: permission filtering is applied by the caller as the outermost
// step, so predicate evaluation never special-cases it.
type RecordFilter struct {
	// DepictedName matches case-insensitively against username, first name
	// or last name of any person depicted in the record.
	DepictedName string

	// Kind restricts the media kind. Empty means all kinds.
	Kind MediaKind

	// CreatedFrom/CreatedTo bound the record's creation date, inclusive.
	CreatedFrom *time.Time
	CreatedTo   *time.Time

	// Location matches case-insensitively against any of the record
	// location's name, country, state or region.
	Location string

	// TitleOrCaption matches case-insensitively against title or caption.
	// Used by search-bar autocompletion.
	TitleOrCaption string

	// AlbumID restricts to one album (album listings).
	AlbumID *uuid.UUID
}

// IsZero reports whether no predicate is set.
func (f RecordFilter) IsZero() bool {
	return f.DepictedName == "" &&
		f.Kind == "" &&
		f.CreatedFrom == nil &&
		f.CreatedTo == nil &&
		f.Location == "" &&
		f.TitleOrCaption == "" &&
		f.AlbumID == nil
}

// PersonName is the name projection of a depicted person used by ranking
// and autocompletion.
type PersonName struct {
	Username  string
	FirstName string
	LastName  string
}

// RecordSearchRow is the read model the search subsystem ranks: the record
// plus its joined location and the names of its visible depicted persons.
type RecordSearchRow struct {
	Record        MediaRecord
	Location      *Location
	DepictedNames []PersonName
}
