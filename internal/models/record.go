// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package models defines the persistent entities of the archive: media
// records, locations, depictions (tags and redaction boxes), comments,
// albums and archives.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MediaKind classifies a record by its media family.
type MediaKind string

// Media kinds. The zero value is not valid; unclassifiable uploads map to
// KindOther.
const (
	KindImage MediaKind = "Image"
	KindAudio MediaKind = "Audio"
	KindVideo MediaKind = "Video"
	KindText  MediaKind = "Text"
	KindOther MediaKind = "Other"
)

// ParseKind maps a string to a MediaKind, accepting any case.
// Unrecognized values map to KindOther.
func ParseKind(s string) MediaKind {
	switch s {
	case "Image", "image":
		return KindImage
	case "Audio", "audio":
		return KindAudio
	case "Video", "video":
		return KindVideo
	case "Text", "text":
		return KindText
	default:
		return KindOther
	}
}

// MediaRecord is one uploaded media item.
//
// The primary file and the fields filled from upload-time metadata are set
// atomically at creation. PreviewPath and Embedding are populated later by
// pipeline jobs and may be absent at any point in the record's life; callers
// must treat their absence as a normal transient state.
type MediaRecord struct {
	ID        uuid.UUID
	Title     string
	Kind      MediaKind
	AlbumID   uuid.UUID
	ArchiveID uuid.UUID
	CreatorID uuid.UUID

	// UploadedAt is the server-side upload time.
	UploadedAt time.Time
	// CreatedAt is the capture time from embedded metadata, when present.
	CreatedAt *time.Time

	Caption    string
	LocationID *uuid.UUID
	Duration   *time.Duration

	// Embedding is the semantic image vector. Non-nil only for Image
	// records whose embedding job succeeded.
	Embedding []float32

	// FilePath is the storage key of the original file. Never rewritten.
	FilePath string
	// PreviewPath is the storage key of the browser-displayable derivative.
	PreviewPath string

	// FileExt is the original (unnormalized) file extension, Subtype the
	// sniffed MIME subtype. Both drive preview transcoding decisions.
	FileExt string
	Subtype string

	// ContentHash is the BLAKE2b-256 fingerprint of the original bytes,
	// used to flag duplicate uploads.
	ContentHash string
}

// Location is a resolved place, owned exclusively by the entity that
// references it and deleted with its owner.
type Location struct {
	ID          uuid.UUID
	Name        string
	Country     string
	CountryCode string
	State       string
	Region      string
	Latitude    float64
	Longitude   float64
}

// Fields returns the four text fields searched by location predicates.
func (l *Location) Fields() [4]string {
	return [4]string{l.Name, l.Country, l.State, l.Region}
}

// Visibility is the shared state machine for depictions and comments.
//
// Transitions:
//
//	visible        -> hidden_by_mod   (moderator pixelates / hides)
//	hidden_by_mod  -> visible         (moderator restores)
//	visible        -> hidden_by_user  (depicted person opts out account-wide)
//	hidden_by_user -> visible         (restored on next login)
type Visibility string

const (
	VisibilityVisible      Visibility = "visible"
	VisibilityHiddenByUser Visibility = "hidden_by_user"
	VisibilityHiddenByMod  Visibility = "hidden_by_mod"
)

// Box is a rectangular region in the original, unrotated image's pixel
// space, together with the image dimensions recorded at creation time.
type Box struct {
	X1     int `json:"x1"`
	Y1     int `json:"y1"`
	X2     int `json:"x2"`
	Y2     int `json:"y2"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ErrInvalidBox is returned when box coordinates violate the geometry
// invariant.
var ErrInvalidBox = errors.New("invalid box geometry")

// Validate checks x1<x2, y1<y2 and containment in [0,width]x[0,height].
func (b *Box) Validate() error {
	if b.X1 >= b.X2 || b.Y1 >= b.Y2 {
		return fmt.Errorf("%w: corners not ordered (%d,%d)-(%d,%d)", ErrInvalidBox, b.X1, b.Y1, b.X2, b.Y2)
	}
	if b.X1 < 0 || b.Y1 < 0 || b.X2 > b.Width || b.Y2 > b.Height {
		return fmt.Errorf("%w: box (%d,%d)-(%d,%d) outside image %dx%d",
			ErrInvalidBox, b.X1, b.Y1, b.X2, b.Y2, b.Width, b.Height)
	}
	return nil
}

// Depiction associates a person with a record. A depiction without geometry
// is a plain tag; one with a Box is a redaction box whose region can be
// pixelated. UserID is nil until a moderator assigns the depicted person.
type Depiction struct {
	ID       uuid.UUID
	RecordID uuid.UUID
	UserID   *uuid.UUID

	// CreatorID is the user who placed the tag or drew the box.
	CreatorID  uuid.UUID
	Visibility Visibility

	// Box is nil for plain tags.
	Box *Box
}

// Comment is a user comment on a record, sharing the visibility state
// machine with depictions.
type Comment struct {
	ID         uuid.UUID
	RecordID   uuid.UUID
	AuthorID   uuid.UUID
	Text       string
	Visibility Visibility
	CreatedAt  time.Time
}

// User is the minimal projection of an account the core needs: identity,
// the three name fields matched by depicted-person search, and the
// account-wide visibility flag.
type User struct {
	ID        uuid.UUID
	Username  string
	FirstName string
	LastName  string
	Visible   bool
}

// Album is a named collection of records within an archive. Each archive
// has exactly one inbox album holding newly uploaded, unsorted records.
type Album struct {
	ID        uuid.UUID
	ArchiveID uuid.UUID
	Title     string
	IsInbox   bool
}

// Archive is an institutional collection containing albums and members.
type Archive struct {
	ID      uuid.UUID
	Name    string
	InboxID uuid.UUID
}
