// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/database"
	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/models"
	"github.com/tomtom215/archivum/internal/storage"
)

// Store is the database surface the workers need. Every job reloads its
// record before writing and updates only the columns it owns, so jobs on
// the same record never clobber each other's results.
type Store interface {
	GetRecord(ctx context.Context, id uuid.UUID) (*models.MediaRecord, error)
	UpdateRecordPreview(ctx context.Context, id uuid.UUID, previewPath string) error
	UpdateRecordDuration(ctx context.Context, id uuid.UUID, duration *time.Duration) error
	UpdateRecordEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	InsertDepiction(ctx context.Context, d *models.Depiction) error
}

// Embedder produces semantic image vectors. A (nil, nil) return means the
// image bytes did not decode; the record simply gets no embedding.
type Embedder interface {
	EmbedImage(ctx context.Context, imageData []byte) ([]float32, error)
}

// FaceFinder locates faces in an image, returning one box per face.
type FaceFinder interface {
	Detect(data []byte) ([]models.Box, error)
}

// BoxGranter gives the box creator edit rights on auto-detected boxes.
type BoxGranter interface {
	GrantBoxPermissions(ctx context.Context, taggerID, archiveID, boxID uuid.UUID) error
}

// videoConvertFormats are the container/codec families browsers do not
// reliably play. Matched against both the file extension and the sniffed
// MIME subtype, because uploads routinely carry the wrong extension.
var videoConvertFormats = map[string]bool{
	"quicktime": true,
	"mov":       true,
	"mpeg":      true,
	"avi":       true,
	"wmv":       true,
	"x-msvideo": true,
	"x-ms-asf":  true,
	"x-ms-wmv":  true,
}

// audioConvertFormats need an mp3 derivative for playback.
var audioConvertFormats = map[string]bool{
	"wma": true,
	"aac": true,
}

// Workers holds the message handlers behind the pipeline router. Preview
// and face jobs run asynchronously through the router; the embedding
// handler is also invoked directly by the upload path when the embedder
// runs in synchronous mode.
type Workers struct {
	store    Store
	files    *storage.Store
	embedder Embedder
	faces    FaceFinder
	granter  BoxGranter

	ffmpegPath string
}

// NewWorkers wires the worker set. embedder, faces and granter may be nil;
// the corresponding jobs then complete as no-ops.
func NewWorkers(store Store, files *storage.Store, embedder Embedder, faces FaceFinder, granter BoxGranter, ffmpegPath string) *Workers {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Workers{
		store:      store,
		files:      files,
		embedder:   embedder,
		faces:      faces,
		granter:    granter,
		ffmpegPath: ffmpegPath,
	}
}

// HandlePreview produces the browser-displayable derivative for a record
// and, for timed media, probes the playback duration.
func (w *Workers) HandlePreview(msg *message.Message) error {
	p, err := unmarshalPayload(msg)
	if err != nil {
		return err
	}
	ctx := msg.Context()
	rec, err := w.store.GetRecord(ctx, p.RecordID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return recordGone(p.RecordID, "preview")
		}
		return fmt.Errorf("load record %s: %w", p.RecordID, err)
	}

	switch rec.Kind {
	case models.KindImage:
		return w.previewImage(ctx, rec)
	case models.KindVideo, models.KindAudio:
		return w.previewTimed(ctx, rec)
	default:
		logging.Warn().
			Str("record_id", rec.ID.String()).
			Str("kind", string(rec.Kind)).
			Msg("no preview strategy for kind")
		return nil
	}
}

// previewImage copies the original bytes to the preview key. Images are
// served as-is; the separate key exists so redaction can rewrite the
// preview while the original stays untouched.
func (w *Workers) previewImage(ctx context.Context, rec *models.MediaRecord) error {
	data, err := w.files.Read(rec.FilePath)
	if err != nil {
		return fmt.Errorf("read original %s: %w", rec.FilePath, err)
	}
	key := storage.PreviewKey(rec.ContentHash, normalizedExt(rec))
	if err := w.files.Write(key, data); err != nil {
		return fmt.Errorf("write preview %s: %w", key, err)
	}
	return w.store.UpdateRecordPreview(ctx, rec.ID, key)
}

// previewTimed transcodes video/audio formats browsers cannot play and
// probes the duration. Formats that play natively reuse the original file
// as their preview.
func (w *Workers) previewTimed(ctx context.Context, rec *models.MediaRecord) error {
	var targetExt string
	if needsConversion(rec) {
		if rec.Kind == models.KindVideo {
			targetExt = "mp4"
		} else {
			targetExt = "mp3"
		}
	}

	src, err := w.files.AbsPath(rec.FilePath)
	if err != nil {
		return fmt.Errorf("resolve original %s: %w", rec.FilePath, err)
	}

	previewKey := rec.FilePath
	if targetExt != "" {
		previewKey = storage.PreviewKey(rec.ContentHash, targetExt)
		if err := w.transcode(ctx, src, previewKey, targetExt); err != nil {
			return err
		}
	}
	if err := w.store.UpdateRecordPreview(ctx, rec.ID, previewKey); err != nil {
		return err
	}

	if dur := w.probeDuration(ctx, src); dur != nil {
		if err := w.store.UpdateRecordDuration(ctx, rec.ID, dur); err != nil {
			return err
		}
	}
	return nil
}

// needsConversion matches the extension or the sniffed subtype against the
// conversion set for the record's kind.
func needsConversion(rec *models.MediaRecord) bool {
	set := videoConvertFormats
	if rec.Kind == models.KindAudio {
		set = audioConvertFormats
	}
	return set[normalizedExt(rec)] || set[strings.ToLower(rec.Subtype)]
}

func normalizedExt(rec *models.MediaRecord) string {
	return strings.ToLower(strings.TrimPrefix(rec.FileExt, "."))
}

// transcode runs ffmpeg into a temp file and moves the result into the
// store under key.
func (w *Workers) transcode(ctx context.Context, src, key, targetExt string) error {
	tmp, err := os.CreateTemp("", "archivum-transcode-*."+targetExt)
	if err != nil {
		return fmt.Errorf("transcode temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, w.ffmpegPath, "-y", "-i", src, tmpPath)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg %s: %w: %s", src, err, tail(out, 512))
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return fmt.Errorf("read transcode output: %w", err)
	}
	if err := w.files.Write(key, data); err != nil {
		return fmt.Errorf("write preview %s: %w", key, err)
	}
	logging.Debug().
		Str("src", src).
		Str("preview", key).
		Int("bytes", len(data)).
		Msg("transcoded preview")
	return nil
}

// probeDuration asks ffprobe (expected next to ffmpeg) for the container
// duration. Probe failures are logged and swallowed: duration is cosmetic.
func (w *Workers) probeDuration(ctx context.Context, src string) *time.Duration {
	ffprobe := "ffprobe"
	if dir := filepath.Dir(w.ffmpegPath); dir != "." {
		ffprobe = filepath.Join(dir, "ffprobe")
	}
	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		src)
	out, err := cmd.Output()
	if err != nil {
		logging.Warn().Err(err).Str("src", src).Msg("duration probe failed")
		return nil
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || secs <= 0 {
		return nil
	}
	d := time.Duration(secs * float64(time.Second))
	return &d
}

// HandleEmbedding computes and stores the semantic vector for an image
// record. Undecodable images are skipped without error; sidecar failures
// return an error so the retry middleware can re-run the job.
func (w *Workers) HandleEmbedding(msg *message.Message) error {
	p, err := unmarshalPayload(msg)
	if err != nil {
		return err
	}
	return w.EmbedRecord(msg.Context(), p.RecordID)
}

// EmbedRecord is the embedding job body. The upload path calls it
// directly when the embedder runs in synchronous mode.
func (w *Workers) EmbedRecord(ctx context.Context, recordID uuid.UUID) error {
	if w.embedder == nil {
		return nil
	}
	rec, err := w.store.GetRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return recordGone(recordID, "embedding")
		}
		return fmt.Errorf("load record %s: %w", recordID, err)
	}
	if rec.Kind != models.KindImage {
		return nil
	}

	data, err := w.files.Read(rec.FilePath)
	if err != nil {
		return fmt.Errorf("read original %s: %w", rec.FilePath, err)
	}
	vec, err := w.embedder.EmbedImage(ctx, data)
	if err != nil {
		return fmt.Errorf("embed record %s: %w", rec.ID, err)
	}
	if vec == nil {
		logging.Info().
			Str("record_id", rec.ID.String()).
			Msg("image not embeddable, record left without vector")
		return nil
	}
	return w.store.UpdateRecordEmbedding(ctx, rec.ID, vec)
}

// HandleFaces runs face detection on an image record and creates one
// suggested redaction box per detected face, owned by the uploader.
func (w *Workers) HandleFaces(msg *message.Message) error {
	if w.faces == nil {
		return nil
	}
	p, err := unmarshalPayload(msg)
	if err != nil {
		return err
	}
	ctx := msg.Context()
	rec, err := w.store.GetRecord(ctx, p.RecordID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return recordGone(p.RecordID, "faces")
		}
		return fmt.Errorf("load record %s: %w", p.RecordID, err)
	}
	if rec.Kind != models.KindImage || !faceDetectable(rec) {
		return nil
	}

	data, err := w.files.Read(rec.FilePath)
	if err != nil {
		return fmt.Errorf("read original %s: %w", rec.FilePath, err)
	}
	boxes, err := w.faces.Detect(data)
	if err != nil {
		return fmt.Errorf("detect faces %s: %w", rec.ID, err)
	}

	for i := range boxes {
		box := boxes[i]
		dep := &models.Depiction{
			ID:         uuid.New(),
			RecordID:   rec.ID,
			CreatorID:  rec.CreatorID,
			Visibility: models.VisibilityVisible,
			Box:        &box,
		}
		if err := w.store.InsertDepiction(ctx, dep); err != nil {
			return fmt.Errorf("insert face box: %w", err)
		}
		if w.granter != nil {
			if err := w.granter.GrantBoxPermissions(ctx, rec.CreatorID, rec.ArchiveID, dep.ID); err != nil {
				return fmt.Errorf("grant face box permissions: %w", err)
			}
		}
	}
	if len(boxes) > 0 {
		logging.Info().
			Str("record_id", rec.ID.String()).
			Int("faces", len(boxes)).
			Msg("face boxes suggested")
	}
	return nil
}

// faceDetectable restricts detection to the formats the cascade decoder
// handles.
func faceDetectable(rec *models.MediaRecord) bool {
	switch normalizedExt(rec) {
	case "jpg", "jpeg", "png":
		return true
	}
	return false
}

// recordGone completes a job whose record was deleted while it waited.
// Retrying cannot bring the record back, so the message is acked.
func recordGone(id uuid.UUID, job string) error {
	logging.Info().
		Str("record_id", id.String()).
		Str("job", job).
		Msg("record deleted before job ran, dropping")
	return nil
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return strings.TrimSpace(string(b))
	}
	return strings.TrimSpace(string(b[len(b)-n:]))
}
