// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package archive is the orchestration layer: it owns the upload,
// deletion and moderation workflows, wiring the database, file store,
// authorization, navigation and job pipeline together. All coordination
// is explicit calls; nothing happens through side-channel signals.
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/authz"
	"github.com/tomtom215/archivum/internal/database"
	"github.com/tomtom215/archivum/internal/filetype"
	"github.com/tomtom215/archivum/internal/geocode"
	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/metrics"
	"github.com/tomtom215/archivum/internal/models"
	"github.com/tomtom215/archivum/internal/navigation"
	"github.com/tomtom215/archivum/internal/storage"
)

var (
	// ErrCrossArchiveMove is returned when a record move targets an album
	// in a different archive.
	ErrCrossArchiveMove = errors.New("target album belongs to a different archive")

	// ErrEmptyFile is returned for zero-byte uploads.
	ErrEmptyFile = errors.New("empty file")
)

// Jobs is the pipeline producer surface.
type Jobs interface {
	EnqueuePreview(ctx context.Context, recordID uuid.UUID) error
	EnqueueEmbedding(ctx context.Context, recordID uuid.UUID) error
	EnqueueFaces(ctx context.Context, recordID uuid.UUID) error
}

// SyncEmbedder embeds a record on the request path. Wired only when the
// embedder runs in synchronous mode; otherwise the embedding job goes
// through Jobs.
type SyncEmbedder interface {
	EmbedRecord(ctx context.Context, recordID uuid.UUID) error
}

// Auditor records permission-sensitive actions to the audit trail.
type Auditor interface {
	Record(actorID uuid.UUID, action, targetKind string, targetID uuid.UUID, detail string)
}

// Service orchestrates the archive workflows.
type Service struct {
	db    *database.DB
	files *storage.Store
	authz *authz.Service
	nav   *navigation.Store
	jobs  Jobs

	embed SyncEmbedder      // nil unless sync-on-upload
	geo   *geocode.Geocoder // nil disables reverse geocoding
	audit Auditor           // nil disables the trail

	pageSize int
}

// New wires the orchestration service. embed and geo are optional.
func New(db *database.DB, files *storage.Store, az *authz.Service, nav *navigation.Store,
	jobs Jobs, embed SyncEmbedder, geo *geocode.Geocoder, pageSize int) *Service {
	if pageSize < 1 {
		pageSize = 24
	}
	return &Service{
		db:       db,
		files:    files,
		authz:    az,
		nav:      nav,
		jobs:     jobs,
		embed:    embed,
		geo:      geo,
		pageSize: pageSize,
	}
}

// SetAudit attaches the audit trail. Call before serving traffic.
func (s *Service) SetAudit(a Auditor) {
	s.audit = a
}

func (s *Service) auditLog(actorID uuid.UUID, action, targetKind string, targetID uuid.UUID, detail string) {
	if s.audit != nil {
		s.audit.Record(actorID, action, targetKind, targetID, detail)
	}
}

// UploadFile is one file of an upload batch.
type UploadFile struct {
	Filename string
	Data     []byte
}

// UploadResult is the per-file outcome. Err is set when this file failed;
// the rest of the batch is unaffected.
type UploadResult struct {
	Filename  string
	Record    *models.MediaRecord
	Duplicate bool
	Err       error
}

// Upload ingests a batch of files into an album. The batch-level gate is
// change permission on the album's archive; each file is then processed
// independently so one corrupt upload never sinks its siblings.
func (s *Service) Upload(ctx context.Context, userID, albumID uuid.UUID, files []UploadFile) ([]UploadResult, error) {
	album, err := s.db.GetAlbum(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("load album: %w", err)
	}
	if err := s.authz.Require(ctx, userID, authz.ActionChange, authz.ArchiveObject(album.ArchiveID)); err != nil {
		return nil, err
	}

	results := make([]UploadResult, 0, len(files))
	for _, f := range files {
		res := UploadResult{Filename: f.Filename}
		res.Record, res.Duplicate, res.Err = s.uploadOne(ctx, userID, album, f)
		switch {
		case res.Err != nil:
			metrics.UploadsTotal.WithLabelValues("unknown", "error").Inc()
			logging.Warn().Err(res.Err).
				Str("filename", f.Filename).
				Str("album_id", albumID.String()).
				Msg("upload failed")
		case res.Duplicate:
			metrics.UploadsTotal.WithLabelValues(string(res.Record.Kind), "duplicate").Inc()
		default:
			metrics.UploadsTotal.WithLabelValues(string(res.Record.Kind), "ok").Inc()
			metrics.UploadBytes.Add(float64(len(f.Data)))
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) uploadOne(ctx context.Context, userID uuid.UUID, album *models.Album, f UploadFile) (*models.MediaRecord, bool, error) {
	if len(f.Data) == 0 {
		return nil, false, ErrEmptyFile
	}

	det := filetype.Detect(f.Data, f.Filename)
	hash := storage.ContentHash(f.Data)

	existing, err := s.db.CountRecordsByHash(ctx, hash)
	if err != nil {
		return nil, false, err
	}
	duplicate := existing > 0

	ext := det.Ext
	if ext == "" {
		ext = "bin"
	}
	key := storage.OriginalKey(hash, ext)
	if !s.files.Exists(key) {
		if err := s.files.Write(key, f.Data); err != nil {
			return nil, duplicate, fmt.Errorf("store original: %w", err)
		}
	}

	md := filetype.ExtractMetadata(f.Data)
	locationID := s.resolveLocation(ctx, md)

	rec := &models.MediaRecord{
		ID:          uuid.New(),
		Title:       filetype.Title(f.Filename),
		Kind:        det.Kind,
		AlbumID:     album.ID,
		ArchiveID:   album.ArchiveID,
		CreatorID:   userID,
		CreatedAt:   md.CreatedAt,
		LocationID:  locationID,
		FileExt:     det.Ext,
		Subtype:     det.Subtype,
		ContentHash: hash,
		FilePath:    key,
	}
	if err := s.db.InsertRecord(ctx, rec); err != nil {
		return nil, duplicate, err
	}
	if err := s.authz.GrantRecordPermissions(ctx, userID, album.ArchiveID, rec.ID); err != nil {
		return nil, duplicate, err
	}

	s.dispatchJobs(ctx, rec)
	return rec, duplicate, nil
}

// dispatchJobs schedules post-upload processing. Enqueue failures are
// logged, not fatal: the record exists, derived artifacts stay absent.
func (s *Service) dispatchJobs(ctx context.Context, rec *models.MediaRecord) {
	if err := s.jobs.EnqueuePreview(ctx, rec.ID); err != nil {
		logging.Error().Err(err).Str("record_id", rec.ID.String()).Msg("enqueue preview failed")
	}
	if rec.Kind != models.KindImage {
		return
	}

	if s.embed != nil {
		if err := s.embed.EmbedRecord(ctx, rec.ID); err != nil {
			logging.Warn().Err(err).Str("record_id", rec.ID.String()).Msg("synchronous embedding failed")
		}
	} else {
		if err := s.jobs.EnqueueEmbedding(ctx, rec.ID); err != nil {
			logging.Error().Err(err).Str("record_id", rec.ID.String()).Msg("enqueue embedding failed")
		}
	}
	if err := s.jobs.EnqueueFaces(ctx, rec.ID); err != nil {
		logging.Error().Err(err).Str("record_id", rec.ID.String()).Msg("enqueue faces failed")
	}
}

// resolveLocation turns extracted metadata into a stored location.
// Container-carried places bypass geocoding; bare GPS coordinates go
// through the offline geocoder. Failures degrade to "no location".
func (s *Service) resolveLocation(ctx context.Context, md filetype.Metadata) *uuid.UUID {
	var loc *models.Location
	switch {
	case md.Place != nil:
		loc = &models.Location{
			ID:        uuid.New(),
			Name:      md.Place.Name,
			Latitude:  md.Place.Lat,
			Longitude: md.Place.Lon,
		}
	case md.GPS != nil && s.geo != nil:
		place, ok := s.geo.Nearest(md.GPS.Lat, md.GPS.Lon)
		if !ok {
			return nil
		}
		loc = &models.Location{
			ID:          uuid.New(),
			Name:        place.Name,
			Country:     place.Country,
			CountryCode: place.CountryCode,
			State:       place.State,
			Region:      place.Region,
			Latitude:    md.GPS.Lat,
			Longitude:   md.GPS.Lon,
		}
	default:
		return nil
	}

	if err := s.db.InsertLocation(ctx, loc); err != nil {
		logging.Warn().Err(err).Msg("store location failed")
		return nil
	}
	return &loc.ID
}
