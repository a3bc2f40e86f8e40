// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/audit"
	"github.com/tomtom215/archivum/internal/authz"
	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/metrics"
	"github.com/tomtom215/archivum/internal/models"
	"github.com/tomtom215/archivum/internal/redaction"
)

// ErrNotABox is returned when a box operation targets a plain tag.
var ErrNotABox = errors.New("depiction has no box geometry")

// AddDepiction tags a person on a record, with box geometry for redaction
// boxes or without for plain tags. A tagged person immediately gains view
// on the record so they can see photos of themselves.
func (s *Service) AddDepiction(ctx context.Context, userID, recordID uuid.UUID, box *models.Box, depictedID *uuid.UUID) (*models.Depiction, error) {
	if err := s.authz.Require(ctx, userID, authz.ActionView, authz.RecordObject(recordID)); err != nil {
		return nil, err
	}
	if box != nil {
		if err := box.Validate(); err != nil {
			return nil, err
		}
	}
	rec, err := s.db.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	dep := &models.Depiction{
		ID:         uuid.New(),
		RecordID:   recordID,
		UserID:     depictedID,
		CreatorID:  userID,
		Visibility: models.VisibilityVisible,
		Box:        box,
	}
	if err := s.db.InsertDepiction(ctx, dep); err != nil {
		return nil, err
	}
	if err := s.authz.GrantBoxPermissions(ctx, userID, rec.ArchiveID, dep.ID); err != nil {
		return nil, err
	}
	if depictedID != nil {
		if err := s.authz.GrantRecordView(ctx, *depictedID, recordID); err != nil {
			return nil, err
		}
	}
	return dep, nil
}

// AssignDepiction links an existing depiction to the identified person.
func (s *Service) AssignDepiction(ctx context.Context, userID, depictionID, depictedID uuid.UUID) error {
	dep, err := s.db.GetDepiction(ctx, depictionID)
	if err != nil {
		return err
	}
	if err := s.requireDepictionChange(ctx, userID, dep); err != nil {
		return err
	}
	if err := s.db.AssignDepictionUser(ctx, depictionID, depictedID); err != nil {
		return err
	}
	return s.authz.GrantRecordView(ctx, depictedID, dep.RecordID)
}

// HideBox redacts a box: the preview region is pixelated and the
// depiction leaves the visible state. Moderators produce hidden_by_mod,
// which only a moderator can lift; the depicted person or the box creator
// produce hidden_by_user.
func (s *Service) HideBox(ctx context.Context, userID, boxID uuid.UUID) error {
	dep, err := s.db.GetDepiction(ctx, boxID)
	if err != nil {
		return err
	}
	if dep.Box == nil {
		return ErrNotABox
	}

	target, err := s.hideTarget(ctx, userID, dep)
	if err != nil {
		return err
	}
	if dep.Visibility == target {
		return nil
	}
	if dep.Visibility == models.VisibilityHiddenByMod && target != models.VisibilityHiddenByMod {
		// A user-level hide never downgrades a moderator hide.
		return authz.ErrNotAuthorized
	}

	if dep.Visibility == models.VisibilityVisible {
		if err := s.blurPreview(ctx, dep.RecordID, *dep.Box); err != nil {
			return err
		}
	}
	if err := s.db.SetDepictionVisibility(ctx, boxID, target); err != nil {
		return err
	}
	s.auditLog(userID, audit.ActionBoxHide, "box", boxID, string(target))
	return nil
}

// ShowBox lifts a redaction: the preview region is restored from the
// untouched original. hidden_by_mod requires a moderator.
func (s *Service) ShowBox(ctx context.Context, userID, boxID uuid.UUID) error {
	dep, err := s.db.GetDepiction(ctx, boxID)
	if err != nil {
		return err
	}
	if dep.Box == nil {
		return ErrNotABox
	}
	if dep.Visibility == models.VisibilityVisible {
		return nil
	}

	moderator, err := s.authz.Can(ctx, userID, authz.ActionModerate, authz.RecordObject(dep.RecordID))
	if err != nil {
		return err
	}
	if dep.Visibility == models.VisibilityHiddenByMod && !moderator {
		return authz.ErrNotAuthorized
	}
	if !moderator {
		if err := s.requireDepictionChange(ctx, userID, dep); err != nil {
			return err
		}
	}

	if err := s.unblurPreview(ctx, dep.RecordID, *dep.Box); err != nil {
		return err
	}
	if err := s.db.SetDepictionVisibility(ctx, boxID, models.VisibilityVisible); err != nil {
		return err
	}
	s.auditLog(userID, audit.ActionBoxShow, "box", boxID, "")
	return nil
}

// RemoveDepiction deletes a tag or box. A redacted box is un-redacted
// first so the preview does not keep a blur no box explains.
func (s *Service) RemoveDepiction(ctx context.Context, userID, depictionID uuid.UUID) error {
	dep, err := s.db.GetDepiction(ctx, depictionID)
	if err != nil {
		return err
	}
	moderator, err := s.authz.Can(ctx, userID, authz.ActionModerate, authz.RecordObject(dep.RecordID))
	if err != nil {
		return err
	}
	if !moderator {
		if err := s.authz.Require(ctx, userID, authz.ActionDelete, authz.BoxObject(depictionID)); err != nil {
			return err
		}
	}

	if dep.Box != nil && dep.Visibility != models.VisibilityVisible {
		if err := s.unblurPreview(ctx, dep.RecordID, *dep.Box); err != nil {
			return err
		}
	}
	if err := s.db.DeleteDepiction(ctx, depictionID); err != nil {
		return err
	}
	s.auditLog(userID, audit.ActionDepictionRemove, "box", depictionID, "")
	return nil
}

// hideTarget decides which hidden state the actor produces, or denies.
func (s *Service) hideTarget(ctx context.Context, userID uuid.UUID, dep *models.Depiction) (models.Visibility, error) {
	moderator, err := s.authz.Can(ctx, userID, authz.ActionModerate, authz.RecordObject(dep.RecordID))
	if err != nil {
		return "", err
	}
	if moderator {
		return models.VisibilityHiddenByMod, nil
	}
	if err := s.requireDepictionChange(ctx, userID, dep); err != nil {
		return "", err
	}
	return models.VisibilityHiddenByUser, nil
}

// requireDepictionChange allows the depicted person themselves or anyone
// holding change on the box.
func (s *Service) requireDepictionChange(ctx context.Context, userID uuid.UUID, dep *models.Depiction) error {
	if dep.UserID != nil && *dep.UserID == userID {
		return nil
	}
	return s.authz.Require(ctx, userID, authz.ActionChange, authz.BoxObject(dep.ID))
}

// blurPreview pixelates the box region of the record's preview in place.
func (s *Service) blurPreview(ctx context.Context, recordID uuid.UUID, box models.Box) error {
	rec, err := s.db.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.PreviewPath == "" {
		// Preview job has not run yet; the box stays recorded and the
		// redaction applies when ShowBox/HideBox next rewrites the preview.
		logging.Warn().Str("record_id", recordID.String()).Msg("redaction requested before preview exists")
		return nil
	}
	preview, err := s.files.Read(rec.PreviewPath)
	if err != nil {
		return fmt.Errorf("read preview: %w", err)
	}
	redacted, err := redaction.Blur(preview, box)
	if err != nil {
		return fmt.Errorf("blur preview: %w", err)
	}
	if err := s.files.Write(rec.PreviewPath, redacted); err != nil {
		return err
	}
	metrics.RedactionsTotal.WithLabelValues("blur").Inc()
	return nil
}

// unblurPreview restores the box region of the preview from the original.
func (s *Service) unblurPreview(ctx context.Context, recordID uuid.UUID, box models.Box) error {
	rec, err := s.db.GetRecord(ctx, recordID)
	if err != nil {
		return err
	}
	if rec.PreviewPath == "" {
		return nil
	}
	preview, err := s.files.Read(rec.PreviewPath)
	if err != nil {
		return fmt.Errorf("read preview: %w", err)
	}
	original, err := s.files.Read(rec.FilePath)
	if err != nil {
		return fmt.Errorf("read original: %w", err)
	}
	restored, err := redaction.Unblur(preview, original, box)
	if err != nil {
		return fmt.Errorf("unblur preview: %w", err)
	}
	if err := s.files.Write(rec.PreviewPath, restored); err != nil {
		return err
	}
	metrics.RedactionsTotal.WithLabelValues("unblur").Inc()
	return nil
}

// AddComment posts a comment on a record the user can see.
func (s *Service) AddComment(ctx context.Context, userID, recordID uuid.UUID, text string) (*models.Comment, error) {
	if err := s.authz.Require(ctx, userID, authz.ActionView, authz.RecordObject(recordID)); err != nil {
		return nil, err
	}
	rec, err := s.db.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	c := &models.Comment{
		ID:         uuid.New(),
		RecordID:   recordID,
		AuthorID:   userID,
		Text:       text,
		Visibility: models.VisibilityVisible,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.db.InsertComment(ctx, c); err != nil {
		return nil, err
	}
	if err := s.authz.GrantCommentPermissions(ctx, userID, rec.ArchiveID, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

// HideComment hides a comment: moderators produce hidden_by_mod, the
// author hidden_by_user.
func (s *Service) HideComment(ctx context.Context, userID, commentID uuid.UUID) error {
	c, err := s.db.GetComment(ctx, commentID)
	if err != nil {
		return err
	}

	moderator, err := s.authz.Can(ctx, userID, authz.ActionModerate, authz.CommentObject(commentID))
	if err != nil {
		return err
	}
	target := models.VisibilityHiddenByUser
	if moderator {
		target = models.VisibilityHiddenByMod
	} else {
		if err := s.authz.Require(ctx, userID, authz.ActionChange, authz.CommentObject(commentID)); err != nil {
			return err
		}
		if c.Visibility == models.VisibilityHiddenByMod {
			return authz.ErrNotAuthorized
		}
	}
	if c.Visibility == target {
		return nil
	}
	if err := s.db.SetCommentVisibility(ctx, commentID, target); err != nil {
		return err
	}
	s.auditLog(userID, audit.ActionCommentHide, "comment", commentID, string(target))
	return nil
}

// ShowComment restores a hidden comment. hidden_by_mod requires a
// moderator.
func (s *Service) ShowComment(ctx context.Context, userID, commentID uuid.UUID) error {
	c, err := s.db.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.Visibility == models.VisibilityVisible {
		return nil
	}

	moderator, err := s.authz.Can(ctx, userID, authz.ActionModerate, authz.CommentObject(commentID))
	if err != nil {
		return err
	}
	if c.Visibility == models.VisibilityHiddenByMod && !moderator {
		return authz.ErrNotAuthorized
	}
	if !moderator {
		if err := s.authz.Require(ctx, userID, authz.ActionChange, authz.CommentObject(commentID)); err != nil {
			return err
		}
	}
	if err := s.db.SetCommentVisibility(ctx, commentID, models.VisibilityVisible); err != nil {
		return err
	}
	s.auditLog(userID, audit.ActionCommentShow, "comment", commentID, "")
	return nil
}

// DeleteComment removes a comment. Authors hold delete on their own
// comments; moderators may always remove.
func (s *Service) DeleteComment(ctx context.Context, userID, commentID uuid.UUID) error {
	moderator, err := s.authz.Can(ctx, userID, authz.ActionModerate, authz.CommentObject(commentID))
	if err != nil {
		return err
	}
	if !moderator {
		if err := s.authz.Require(ctx, userID, authz.ActionDelete, authz.CommentObject(commentID)); err != nil {
			return err
		}
	}
	if err := s.db.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.auditLog(userID, audit.ActionCommentDelete, "comment", commentID, "")
	return nil
}

// HideSelf takes a user out of circulation archive-wide: the account
// leaves depicted-person search and every depiction of them flips to
// hidden_by_user, pixelating their boxes.
func (s *Service) HideSelf(ctx context.Context, userID uuid.UUID) error {
	if err := s.db.SetUserVisible(ctx, userID, false); err != nil {
		return err
	}

	deps, err := s.db.ListUserDepictions(ctx, userID)
	if err != nil {
		return err
	}
	for _, d := range deps {
		if d.Visibility != models.VisibilityVisible || d.Box == nil {
			continue
		}
		if err := s.blurPreview(ctx, d.RecordID, *d.Box); err != nil {
			logging.Warn().Err(err).
				Str("depiction_id", d.ID.String()).
				Msg("self-hide redaction failed")
		}
	}
	if err := s.db.SetUserDepictionsVisibility(ctx, userID,
		models.VisibilityVisible, models.VisibilityHiddenByUser); err != nil {
		return err
	}
	s.auditLog(userID, audit.ActionUserHide, "user", userID, "")
	return nil
}

// RestoreSelf is the login-time inverse of HideSelf. Moderator hides
// stay put.
func (s *Service) RestoreSelf(ctx context.Context, userID uuid.UUID) error {
	if err := s.db.SetUserVisible(ctx, userID, true); err != nil {
		return err
	}

	deps, err := s.db.ListUserDepictions(ctx, userID)
	if err != nil {
		return err
	}
	for _, d := range deps {
		if d.Visibility != models.VisibilityHiddenByUser || d.Box == nil {
			continue
		}
		if err := s.unblurPreview(ctx, d.RecordID, *d.Box); err != nil {
			logging.Warn().Err(err).
				Str("depiction_id", d.ID.String()).
				Msg("self-restore failed")
		}
	}
	if err := s.db.SetUserDepictionsVisibility(ctx, userID,
		models.VisibilityHiddenByUser, models.VisibilityVisible); err != nil {
		return err
	}
	s.auditLog(userID, audit.ActionUserShow, "user", userID, "")
	return nil
}
