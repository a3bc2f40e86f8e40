// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/audit"
	"github.com/tomtom215/archivum/internal/authz"
	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/models"
	"github.com/tomtom215/archivum/internal/navigation"
)

// RecordView is the detail-page projection of a record: the record, its
// resolved location, its depictions and comments (moderation-filtered for
// non-moderators), and the session's browse position.
type RecordView struct {
	Record     *models.MediaRecord
	Location   *models.Location
	Depictions []models.Depiction
	Comments   []models.Comment

	Prev, Next *uuid.UUID
	Page       int
}

// GetRecord assembles the detail view. Depictions and comments that are
// hidden stay visible to moderators only. Navigation comes from the
// session's browse context; without one the record stands alone on page 1.
func (s *Service) GetRecord(ctx context.Context, userID uuid.UUID, sessionID string, recordID uuid.UUID) (*RecordView, error) {
	if err := s.authz.Require(ctx, userID, authz.ActionView, authz.RecordObject(recordID)); err != nil {
		return nil, err
	}
	rec, err := s.db.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	view := &RecordView{Record: rec, Page: 1}

	if rec.LocationID != nil {
		loc, err := s.db.GetLocation(ctx, *rec.LocationID)
		if err != nil {
			logging.Warn().Err(err).Str("record_id", recordID.String()).Msg("location lookup failed")
		} else {
			view.Location = loc
		}
	}

	moderator, err := s.authz.Can(ctx, userID, authz.ActionModerate, authz.RecordObject(recordID))
	if err != nil {
		return nil, err
	}

	depictions, err := s.db.ListRecordDepictions(ctx, recordID)
	if err != nil {
		return nil, err
	}
	for _, d := range depictions {
		if moderator || d.Visibility == models.VisibilityVisible {
			view.Depictions = append(view.Depictions, d)
		}
	}

	comments, err := s.db.ListRecordComments(ctx, recordID)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		if moderator || c.Visibility == models.VisibilityVisible {
			view.Comments = append(view.Comments, c)
		}
	}

	nav, err := s.nav.Load(ctx, sessionID)
	switch {
	case err == nil:
		view.Prev, view.Next = nav.Adjacent(recordID)
		view.Page = nav.PageOf(recordID, s.pageSize)
	case errors.Is(err, navigation.ErrNotFound):
		// No browse context for this session.
	default:
		return nil, err
	}
	return view, nil
}

// DeleteRecord removes a record, its dependents, its grants and - when no
// other record shares the content - its files. The returned id is where
// the session's browsing should land next, nil when there is no sensible
// predecessor.
func (s *Service) DeleteRecord(ctx context.Context, userID uuid.UUID, sessionID string, recordID uuid.UUID) (*uuid.UUID, error) {
	if err := s.authz.Require(ctx, userID, authz.ActionDelete, authz.RecordObject(recordID)); err != nil {
		return nil, err
	}
	rec, err := s.db.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if err := s.db.DeleteRecord(ctx, recordID); err != nil {
		return nil, err
	}

	remaining, err := s.db.CountRecordsByHash(ctx, rec.ContentHash)
	if err != nil {
		return nil, err
	}
	if remaining == 0 {
		s.removeFiles(rec)
	}

	if err := s.authz.RevokeRecord(ctx, recordID); err != nil {
		return nil, fmt.Errorf("revoke record grants: %w", err)
	}

	returnTo, err := s.nav.RemoveRecord(ctx, sessionID, recordID)
	if err != nil {
		return nil, err
	}

	s.auditLog(userID, audit.ActionRecordDelete, "record", recordID, rec.Title)
	logging.Info().
		Str("record_id", recordID.String()).
		Str("user_id", userID.String()).
		Msg("record deleted")
	return returnTo, nil
}

// removeFiles drops the original and, when distinct, the preview.
// Originals are content-addressed so this runs only once the last record
// with the hash is gone.
func (s *Service) removeFiles(rec *models.MediaRecord) {
	if err := s.files.Remove(rec.FilePath); err != nil {
		logging.Warn().Err(err).Str("key", rec.FilePath).Msg("remove original failed")
	}
	if rec.PreviewPath != "" && rec.PreviewPath != rec.FilePath {
		if err := s.files.Remove(rec.PreviewPath); err != nil {
			logging.Warn().Err(err).Str("key", rec.PreviewPath).Msg("remove preview failed")
		}
	}
}

// MoveRecord reassigns a record to another album in the same archive and
// drops it from the session's browse context, returning the record to
// land on next.
func (s *Service) MoveRecord(ctx context.Context, userID uuid.UUID, sessionID string, recordID, targetAlbumID uuid.UUID) (*uuid.UUID, error) {
	if err := s.authz.Require(ctx, userID, authz.ActionChange, authz.RecordObject(recordID)); err != nil {
		return nil, err
	}
	rec, err := s.db.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	album, err := s.db.GetAlbum(ctx, targetAlbumID)
	if err != nil {
		return nil, fmt.Errorf("load target album: %w", err)
	}
	if album.ArchiveID != rec.ArchiveID {
		return nil, ErrCrossArchiveMove
	}

	if err := s.db.MoveRecord(ctx, recordID, targetAlbumID); err != nil {
		return nil, err
	}
	return s.nav.RemoveRecord(ctx, sessionID, recordID)
}

// UpdateRecordDetails sets the editable text fields.
func (s *Service) UpdateRecordDetails(ctx context.Context, userID, recordID uuid.UUID, title, caption string) error {
	if err := s.authz.Require(ctx, userID, authz.ActionChange, authz.RecordObject(recordID)); err != nil {
		return err
	}
	return s.db.UpdateRecordDetails(ctx, recordID, title, caption)
}
