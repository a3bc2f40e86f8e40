// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package archive

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/audit"
	"github.com/tomtom215/archivum/internal/authz"
	"github.com/tomtom215/archivum/internal/database"
	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/models"
	"github.com/tomtom215/archivum/internal/navigation"
)

// ErrEmptyName is returned when an archive or album name is blank.
var ErrEmptyName = errors.New("name must not be empty")

// CreateArchive provisions a new archive: the row, its inbox album, and
// the owner's grants including a seat in the moderator group.
func (s *Service) CreateArchive(ctx context.Context, ownerID uuid.UUID, name string) (*models.Archive, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyName
	}
	a, err := s.db.CreateArchive(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.authz.ProvisionArchive(ctx, ownerID, a.ID); err != nil {
		return nil, err
	}
	logging.Info().
		Str("archive_id", a.ID.String()).
		Str("owner_id", ownerID.String()).
		Msg("archive created")
	return a, nil
}

// CreateAlbum adds an album to an archive.
func (s *Service) CreateAlbum(ctx context.Context, userID, archiveID uuid.UUID, title string) (*models.Album, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyName
	}
	if err := s.authz.Require(ctx, userID, authz.ActionChange, authz.ArchiveObject(archiveID)); err != nil {
		return nil, err
	}
	return s.db.CreateAlbum(ctx, archiveID, title)
}

// Albums lists an archive's albums, inbox first.
func (s *Service) Albums(ctx context.Context, userID, archiveID uuid.UUID) ([]models.Album, error) {
	if err := s.authz.Require(ctx, userID, authz.ActionView, authz.ArchiveObject(archiveID)); err != nil {
		return nil, err
	}
	return s.db.ListArchiveAlbums(ctx, archiveID)
}

// BrowseAlbum returns the album's records the user may see and replaces
// the session's navigation context with their order, so the detail page
// can walk prev/next through exactly what was listed.
func (s *Service) BrowseAlbum(ctx context.Context, userID uuid.UUID, sessionID string, albumID uuid.UUID) ([]models.MediaRecord, error) {
	album, err := s.db.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Require(ctx, userID, authz.ActionView, authz.ArchiveObject(album.ArchiveID)); err != nil {
		return nil, err
	}

	records, err := s.db.ListAlbumRecords(ctx, albumID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(records))
	for i := range records {
		ids[i] = records[i].ID
	}
	visible, err := s.authz.VisibleTo(ctx, userID, authz.ActionView, ids)
	if err != nil {
		return nil, err
	}
	allowed := make(map[uuid.UUID]bool, len(visible))
	for _, id := range visible {
		allowed[id] = true
	}
	out := records[:0:0]
	for _, r := range records {
		if allowed[r.ID] {
			out = append(out, r)
		}
	}

	if err := s.RememberOrder(ctx, sessionID, visible); err != nil {
		logging.Warn().Err(err).Str("album_id", albumID.String()).Msg("navigation context save failed")
	}
	return out, nil
}

// RememberOrder replaces the session's navigation context with an ordered
// id list. Search result pages call this with their ranking order.
func (s *Service) RememberOrder(ctx context.Context, sessionID string, ids []uuid.UUID) error {
	if sessionID == "" {
		return nil
	}
	return s.nav.Save(ctx, sessionID, navigation.Context{IDs: ids})
}

// AddMember registers a user with an archive: their account row is
// upserted and they receive browse/contribute rights. Moderators and the
// archive owner may add members.
func (s *Service) AddMember(ctx context.Context, actorID, archiveID uuid.UUID, user *models.User) error {
	moderator, err := s.authz.IsModerator(ctx, actorID, archiveID)
	if err != nil {
		return err
	}
	if !moderator {
		if err := s.authz.Require(ctx, actorID, authz.ActionChange, authz.ArchiveObject(archiveID)); err != nil {
			return err
		}
	}

	if err := s.db.UpsertUser(ctx, user); err != nil {
		return err
	}
	return s.authz.GrantArchiveMembership(ctx, user.ID, archiveID)
}

// AddModerator promotes a member. Only holders of change on the archive
// (the owner) may promote.
func (s *Service) AddModerator(ctx context.Context, actorID, userID, archiveID uuid.UUID) error {
	if err := s.authz.Require(ctx, actorID, authz.ActionChange, authz.ArchiveObject(archiveID)); err != nil {
		return err
	}
	if err := s.authz.AddModerator(ctx, userID, archiveID); err != nil {
		return err
	}
	s.auditLog(actorID, audit.ActionModeratorAdd, "user", userID, archiveID.String())
	return nil
}

// RemoveModerator demotes a member.
func (s *Service) RemoveModerator(ctx context.Context, actorID, userID, archiveID uuid.UUID) error {
	if err := s.authz.Require(ctx, actorID, authz.ActionChange, authz.ArchiveObject(archiveID)); err != nil {
		return err
	}
	if err := s.authz.RemoveModerator(ctx, userID, archiveID); err != nil {
		return err
	}
	s.auditLog(actorID, audit.ActionModeratorRemove, "user", userID, archiveID.String())
	return nil
}

// SessionStart runs once per proxy session, when the authenticated user
// first shows up. A user who hid themselves comes back automatically on
// their next login. Ids the archive has never seen pass through; they
// fail authorization later like any other stranger.
func (s *Service) SessionStart(ctx context.Context, userID uuid.UUID) error {
	user, err := s.db.GetUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.Visible {
		return s.RestoreSelf(ctx, userID)
	}
	return nil
}
