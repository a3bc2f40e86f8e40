// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/metrics"
)

// Actions on archive objects.
const (
	ActionView     = "view"
	ActionChange   = "change"
	ActionDelete   = "delete"
	ActionModerate = "moderate"
)

// ErrNotAuthorized is returned when an action is denied.
var ErrNotAuthorized = errors.New("not authorized")

// Subject and object naming. UUIDs never contain the separators the
// cache and model rely on.

// UserSubject names a user as a policy subject.
func UserSubject(id uuid.UUID) string { return "user:" + id.String() }

// RecordObject names a media record as a policy object.
func RecordObject(id uuid.UUID) string { return "record:" + id.String() }

// ArchiveObject names an archive as a policy object.
func ArchiveObject(id uuid.UUID) string { return "archive:" + id.String() }

// CommentObject names a comment as a policy object.
func CommentObject(id uuid.UUID) string { return "comment:" + id.String() }

// BoxObject names a tag box as a policy object.
func BoxObject(id uuid.UUID) string { return "box:" + id.String() }

// ModeratorsGroup names the per-archive moderator group.
func ModeratorsGroup(archiveID uuid.UUID) string {
	return "archive:" + archiveID.String() + ":moderators"
}

// Service is the domain-facing authorization layer. It owns the grant
// conventions: which subjects receive which actions when records,
// comments, boxes and archives come into being.
type Service struct {
	enforcer *Enforcer
}

// NewService wraps the enforcer.
func NewService(enforcer *Enforcer) *Service {
	return &Service{enforcer: enforcer}
}

// Can reports whether the user may perform the action on the object.
func (s *Service) Can(_ context.Context, userID uuid.UUID, action, object string) (bool, error) {
	allowed, err := s.enforcer.Enforce(UserSubject(userID), object, action)
	if err == nil {
		metrics.RecordAuthzDecision(allowed)
	}
	return allowed, err
}

// Require is Can with a denial error, for handler use.
func (s *Service) Require(ctx context.Context, userID uuid.UUID, action, object string) error {
	allowed, err := s.Can(ctx, userID, action, object)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%s on %s: %w", action, object, ErrNotAuthorized)
	}
	return nil
}

// VisibleTo filters candidate record ids down to those the user may
// perform the action on, preserving the candidates' order. Retrieval
// treats permissions as the outermost filter, so this runs on every
// search and gallery listing.
func (s *Service) VisibleTo(_ context.Context, userID uuid.UUID, action string, candidates []uuid.UUID) ([]uuid.UUID, error) {
	subject := UserSubject(userID)
	visible := make([]uuid.UUID, 0, len(candidates))
	for _, id := range candidates {
		allowed, err := s.enforcer.Enforce(subject, RecordObject(id), action)
		if err != nil {
			return nil, err
		}
		if allowed {
			visible = append(visible, id)
		}
	}
	return visible, nil
}

// GrantRecordPermissions installs the ACL for a freshly created record:
// the creator gets view/change/delete, the archive's moderator group gets
// the same plus moderate.
func (s *Service) GrantRecordPermissions(_ context.Context, creatorID, archiveID, recordID uuid.UUID) error {
	object := RecordObject(recordID)
	creator := UserSubject(creatorID)
	moderators := ModeratorsGroup(archiveID)

	for _, action := range []string{ActionView, ActionChange, ActionDelete} {
		if err := s.enforcer.AddPolicy(creator, object, action); err != nil {
			return err
		}
	}
	for _, action := range []string{ActionView, ActionChange, ActionDelete, ActionModerate} {
		if err := s.enforcer.AddPolicy(moderators, object, action); err != nil {
			return err
		}
	}
	return nil
}

// GrantRecordView lets one additional user see a record, for sharing and
// for depicted users who should see photos of themselves.
func (s *Service) GrantRecordView(_ context.Context, userID, recordID uuid.UUID) error {
	return s.enforcer.AddPolicy(UserSubject(userID), RecordObject(recordID), ActionView)
}

// RevokeRecord drops every grant on a deleted record.
func (s *Service) RevokeRecord(_ context.Context, recordID uuid.UUID) error {
	return s.enforcer.RemoveObjectPolicies(RecordObject(recordID))
}

// GrantCommentPermissions gives the author change/delete on their
// comment and the archive's moderators moderate over it.
func (s *Service) GrantCommentPermissions(_ context.Context, authorID, archiveID, commentID uuid.UUID) error {
	object := CommentObject(commentID)
	for _, action := range []string{ActionChange, ActionDelete} {
		if err := s.enforcer.AddPolicy(UserSubject(authorID), object, action); err != nil {
			return err
		}
	}
	return s.enforcer.AddPolicy(ModeratorsGroup(archiveID), object, ActionModerate)
}

// GrantBoxPermissions gives the tagger change/delete on their box and the
// archive's moderators moderate over it.
func (s *Service) GrantBoxPermissions(_ context.Context, taggerID, archiveID, boxID uuid.UUID) error {
	object := BoxObject(boxID)
	for _, action := range []string{ActionChange, ActionDelete} {
		if err := s.enforcer.AddPolicy(UserSubject(taggerID), object, action); err != nil {
			return err
		}
	}
	return s.enforcer.AddPolicy(ModeratorsGroup(archiveID), object, ActionModerate)
}

// ProvisionArchive installs the ACL for a new archive: the owner gets
// change/delete on the archive itself and a seat in its moderator group.
func (s *Service) ProvisionArchive(ctx context.Context, ownerID, archiveID uuid.UUID) error {
	object := ArchiveObject(archiveID)
	owner := UserSubject(ownerID)
	for _, action := range []string{ActionView, ActionChange, ActionDelete} {
		if err := s.enforcer.AddPolicy(owner, object, action); err != nil {
			return err
		}
	}
	return s.AddModerator(ctx, ownerID, archiveID)
}

// GrantArchiveMembership lets a user browse and contribute to an
// archive: view plus change on the archive object itself. Per-record
// rights still come from record-level grants.
func (s *Service) GrantArchiveMembership(_ context.Context, userID, archiveID uuid.UUID) error {
	object := ArchiveObject(archiveID)
	subject := UserSubject(userID)
	for _, action := range []string{ActionView, ActionChange} {
		if err := s.enforcer.AddPolicy(subject, object, action); err != nil {
			return err
		}
	}
	return nil
}

// AddModerator puts a user into the archive's moderator group, which
// carries moderate rights over all of the archive's records, comments
// and boxes.
func (s *Service) AddModerator(_ context.Context, userID, archiveID uuid.UUID) error {
	return s.enforcer.AddGroupingPolicy(UserSubject(userID), ModeratorsGroup(archiveID))
}

// RemoveModerator takes a user out of the archive's moderator group.
func (s *Service) RemoveModerator(_ context.Context, userID, archiveID uuid.UUID) error {
	return s.enforcer.RemoveGroupingPolicy(UserSubject(userID), ModeratorsGroup(archiveID))
}

// IsModerator reports whether the user moderates the archive.
func (s *Service) IsModerator(_ context.Context, userID, archiveID uuid.UUID) (bool, error) {
	members, err := s.enforcer.GetUsersForRole(ModeratorsGroup(archiveID))
	if err != nil {
		return false, err
	}
	subject := UserSubject(userID)
	for _, m := range members {
		if m == subject {
			return true, nil
		}
	}
	return false, nil
}

// Close releases enforcer resources.
func (s *Service) Close() {
	s.enforcer.Close()
}
