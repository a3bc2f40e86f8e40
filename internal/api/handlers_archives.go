// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package api

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/models"
)

func (h *Handlers) CreateArchive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name" validate:"required,max=200"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeDomainError(w, err)
		return
	}

	a, err := h.archive.CreateArchive(r.Context(), requestUser(r), req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeCreated(w, map[string]interface{}{
		"id":       a.ID,
		"name":     a.Name,
		"inbox_id": a.InboxID,
	})
}

type albumJSON struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	IsInbox bool      `json:"is_inbox"`
}

func (h *Handlers) ListAlbums(w http.ResponseWriter, r *http.Request) {
	archiveID, ok := pathUUID(r, "archiveID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid archive id")
		return
	}

	albums, err := h.archive.Albums(r.Context(), requestUser(r), archiveID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]albumJSON, 0, len(albums))
	for _, a := range albums {
		out = append(out, albumJSON{ID: a.ID, Title: a.Title, IsInbox: a.IsInbox})
	}
	writeSuccess(w, map[string]interface{}{"albums": out})
}

func (h *Handlers) CreateAlbum(w http.ResponseWriter, r *http.Request) {
	archiveID, ok := pathUUID(r, "archiveID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid archive id")
		return
	}
	var req struct {
		Title string `json:"title" validate:"required,max=200"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeDomainError(w, err)
		return
	}

	album, err := h.archive.CreateAlbum(r.Context(), requestUser(r), archiveID, req.Title)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeCreated(w, albumJSON{ID: album.ID, Title: album.Title, IsInbox: album.IsInbox})
}

// BrowseAlbum lists the album's records the caller may see, in album
// order, and primes the session's prev/next navigation with that order.
func (h *Handlers) BrowseAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, ok := pathUUID(r, "albumID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid album id")
		return
	}

	records, err := h.archive.BrowseAlbum(r.Context(), requestUser(r), requestSession(r), albumID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]recordJSON, 0, len(records))
	for i := range records {
		out = append(out, recordToJSON(&records[i]))
	}
	writeSuccess(w, map[string]interface{}{"records": out})
}

// AddMember registers a user with the archive and grants them
// browse/contribute rights.
func (h *Handlers) AddMember(w http.ResponseWriter, r *http.Request) {
	archiveID, ok := pathUUID(r, "archiveID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid archive id")
		return
	}
	var req struct {
		UserID    uuid.UUID `json:"user_id" validate:"required"`
		Username  string    `json:"username" validate:"required,max=150"`
		FirstName string    `json:"first_name" validate:"max=150"`
		LastName  string    `json:"last_name" validate:"max=150"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeDomainError(w, err)
		return
	}

	user := &models.User{
		ID:        req.UserID,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Visible:   true,
	}
	if err := h.archive.AddMember(r.Context(), requestUser(r), archiveID, user); err != nil {
		writeDomainError(w, err)
		return
	}
	writeCreated(w, map[string]interface{}{"user_id": user.ID})
}

func (h *Handlers) AddModerator(w http.ResponseWriter, r *http.Request) {
	archiveID, ok := pathUUID(r, "archiveID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid archive id")
		return
	}
	var req struct {
		UserID uuid.UUID `json:"user_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.archive.AddModerator(r.Context(), requestUser(r), req.UserID, archiveID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (h *Handlers) RemoveModerator(w http.ResponseWriter, r *http.Request) {
	archiveID, ok := pathUUID(r, "archiveID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid archive id")
		return
	}
	userID, ok := pathUUID(r, "userID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid user id")
		return
	}

	if err := h.archive.RemoveModerator(r.Context(), requestUser(r), userID, archiveID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}
