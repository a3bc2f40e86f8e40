// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package api

import (
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/archive"
	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/models"
)

// recordJSON is the wire shape of a media record. Derived artifacts that
// have not been produced yet come through as nulls, never as errors.
type recordJSON struct {
	ID         uuid.UUID  `json:"id"`
	Title      string     `json:"title"`
	Kind       string     `json:"kind"`
	AlbumID    uuid.UUID  `json:"album_id"`
	ArchiveID  uuid.UUID  `json:"archive_id"`
	CreatorID  uuid.UUID  `json:"creator_id"`
	UploadedAt time.Time  `json:"uploaded_at"`
	CreatedAt  *time.Time `json:"created_at"`
	Caption    string     `json:"caption"`
	DurationMs *int64     `json:"duration_ms"`
	HasPreview bool       `json:"has_preview"`
}

func recordToJSON(rec *models.MediaRecord) recordJSON {
	out := recordJSON{
		ID:         rec.ID,
		Title:      rec.Title,
		Kind:       string(rec.Kind),
		AlbumID:    rec.AlbumID,
		ArchiveID:  rec.ArchiveID,
		CreatorID:  rec.CreatorID,
		UploadedAt: rec.UploadedAt,
		CreatedAt:  rec.CreatedAt,
		Caption:    rec.Caption,
		HasPreview: rec.PreviewPath != "",
	}
	if rec.Duration != nil {
		ms := rec.Duration.Milliseconds()
		out.DurationMs = &ms
	}
	return out
}

func pathUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// Upload ingests a multipart batch into an album. Field name "files",
// one part per file. The response reports per-file outcomes.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathUUID(r, "albumID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid album id")
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}
	reader, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "multipart body required")
		return
	}

	var files []archive.UploadFile
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "malformed multipart body")
			return
		}
		if part.FormName() != "files" {
			part.Close()
			continue
		}
		data, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "read upload failed")
			return
		}
		files = append(files, archive.UploadFile{Filename: part.FileName(), Data: data})
	}
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "no files in request")
		return
	}

	results, err := h.archive.Upload(r.Context(), requestUser(r), albumID, files)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type fileResult struct {
		Filename  string      `json:"filename"`
		Record    *recordJSON `json:"record,omitempty"`
		Duplicate bool        `json:"duplicate,omitempty"`
		Error     string      `json:"error,omitempty"`
	}
	out := make([]fileResult, 0, len(results))
	for _, res := range results {
		fr := fileResult{Filename: res.Filename, Duplicate: res.Duplicate}
		if res.Record != nil {
			rj := recordToJSON(res.Record)
			fr.Record = &rj
		}
		if res.Err != nil {
			fr.Error = res.Err.Error()
		}
		out = append(out, fr)
	}
	writeCreated(w, map[string]interface{}{"results": out})
}

// GetRecord serves the detail view with browse navigation.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	recordID, ok := pathUUID(r, "recordID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid record id")
		return
	}

	view, err := h.archive.GetRecord(r.Context(), requestUser(r), requestSession(r), recordID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type depictionJSON struct {
		ID         uuid.UUID   `json:"id"`
		UserID     *uuid.UUID  `json:"user_id"`
		CreatorID  uuid.UUID   `json:"creator_id"`
		Visibility string      `json:"visibility"`
		Box        *models.Box `json:"box,omitempty"`
	}
	type commentJSON struct {
		ID         uuid.UUID `json:"id"`
		AuthorID   uuid.UUID `json:"author_id"`
		Text       string    `json:"text"`
		Visibility string    `json:"visibility"`
		CreatedAt  time.Time `json:"created_at"`
	}

	deps := make([]depictionJSON, 0, len(view.Depictions))
	for _, d := range view.Depictions {
		deps = append(deps, depictionJSON{
			ID: d.ID, UserID: d.UserID, CreatorID: d.CreatorID,
			Visibility: string(d.Visibility), Box: d.Box,
		})
	}
	comments := make([]commentJSON, 0, len(view.Comments))
	for _, c := range view.Comments {
		comments = append(comments, commentJSON{
			ID: c.ID, AuthorID: c.AuthorID, Text: c.Text,
			Visibility: string(c.Visibility), CreatedAt: c.CreatedAt,
		})
	}

	writeSuccess(w, map[string]interface{}{
		"record":     recordToJSON(view.Record),
		"location":   view.Location,
		"depictions": deps,
		"comments":   comments,
		"prev":       view.Prev,
		"next":       view.Next,
		"page":       view.Page,
	})
}

// DeleteRecord removes a record and reports where browsing should land.
func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	recordID, ok := pathUUID(r, "recordID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid record id")
		return
	}

	returnTo, err := h.archive.DeleteRecord(r.Context(), requestUser(r), requestSession(r), recordID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"return_to": returnTo})
}

// MoveRecord reassigns a record to another album.
func (h *Handlers) MoveRecord(w http.ResponseWriter, r *http.Request) {
	recordID, ok := pathUUID(r, "recordID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid record id")
		return
	}
	var req struct {
		AlbumID uuid.UUID `json:"album_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeDomainError(w, err)
		return
	}

	returnTo, err := h.archive.MoveRecord(r.Context(), requestUser(r), requestSession(r), recordID, req.AlbumID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, map[string]interface{}{"return_to": returnTo})
}

// UpdateRecordDetails sets title and caption.
func (h *Handlers) UpdateRecordDetails(w http.ResponseWriter, r *http.Request) {
	recordID, ok := pathUUID(r, "recordID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid record id")
		return
	}
	var req struct {
		Title   string `json:"title" validate:"required,max=200"`
		Caption string `json:"caption" validate:"max=2000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.archive.UpdateRecordDetails(r.Context(), requestUser(r), recordID, req.Title, req.Caption); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}

// ServeOriginal streams the untouched uploaded bytes.
func (h *Handlers) ServeOriginal(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, func(rec *models.MediaRecord) string { return rec.FilePath })
}

// ServePreview streams the display derivative, redactions included.
func (h *Handlers) ServePreview(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, func(rec *models.MediaRecord) string { return rec.PreviewPath })
}

func (h *Handlers) serveFile(w http.ResponseWriter, r *http.Request, key func(*models.MediaRecord) string) {
	recordID, ok := pathUUID(r, "recordID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid record id")
		return
	}
	ctx := r.Context()
	view, err := h.archive.GetRecord(ctx, requestUser(r), "", recordID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	k := key(view.Record)
	if k == "" {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "artifact not yet produced")
		return
	}
	f, err := h.files.Open(k)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := io.Copy(w, f); err != nil {
		logging.Warn().Err(err).Str("record_id", recordID.String()).Msg("stream interrupted")
	}
}
