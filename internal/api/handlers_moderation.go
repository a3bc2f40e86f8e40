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

// AddDepiction creates a person tag or, with geometry, a redaction box.
func (h *Handlers) AddDepiction(w http.ResponseWriter, r *http.Request) {
	recordID, ok := pathUUID(r, "recordID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid record id")
		return
	}
	var req struct {
		Box    *models.Box `json:"box"`
		UserID *uuid.UUID  `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	dep, err := h.archive.AddDepiction(r.Context(), requestUser(r), recordID, req.Box, req.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeCreated(w, map[string]interface{}{"id": dep.ID})
}

// AssignDepiction links a depiction to the identified person.
func (h *Handlers) AssignDepiction(w http.ResponseWriter, r *http.Request) {
	depictionID, ok := pathUUID(r, "depictionID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid depiction id")
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

	if err := h.archive.AssignDepiction(r.Context(), requestUser(r), depictionID, req.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (h *Handlers) RemoveDepiction(w http.ResponseWriter, r *http.Request) {
	depictionID, ok := pathUUID(r, "depictionID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid depiction id")
		return
	}
	if err := h.archive.RemoveDepiction(r.Context(), requestUser(r), depictionID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}

// HideBox redacts a box region in the record preview.
func (h *Handlers) HideBox(w http.ResponseWriter, r *http.Request) {
	depictionID, ok := pathUUID(r, "depictionID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid depiction id")
		return
	}
	if err := h.archive.HideBox(r.Context(), requestUser(r), depictionID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}

// ShowBox restores a redacted region from the original.
func (h *Handlers) ShowBox(w http.ResponseWriter, r *http.Request) {
	depictionID, ok := pathUUID(r, "depictionID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid depiction id")
		return
	}
	if err := h.archive.ShowBox(r.Context(), requestUser(r), depictionID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}

// AddComment posts a comment on a record.
func (h *Handlers) AddComment(w http.ResponseWriter, r *http.Request) {
	recordID, ok := pathUUID(r, "recordID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid record id")
		return
	}
	var req struct {
		Text string `json:"text" validate:"required,max=4000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeDomainError(w, err)
		return
	}

	c, err := h.archive.AddComment(r.Context(), requestUser(r), recordID, req.Text)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeCreated(w, map[string]interface{}{"id": c.ID})
}

func (h *Handlers) HideComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathUUID(r, "commentID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid comment id")
		return
	}
	if err := h.archive.HideComment(r.Context(), requestUser(r), commentID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (h *Handlers) ShowComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathUUID(r, "commentID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid comment id")
		return
	}
	if err := h.archive.ShowComment(r.Context(), requestUser(r), commentID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}

func (h *Handlers) DeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, ok := pathUUID(r, "commentID")
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid comment id")
		return
	}
	if err := h.archive.DeleteComment(r.Context(), requestUser(r), commentID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}

// HideSelf opts the caller out of depicted-person search and redacts
// their boxes archive-wide.
func (h *Handlers) HideSelf(w http.ResponseWriter, r *http.Request) {
	if err := h.archive.HideSelf(r.Context(), requestUser(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}

// ShowSelf reverses HideSelf.
func (h *Handlers) ShowSelf(w http.ResponseWriter, r *http.Request) {
	if err := h.archive.RestoreSelf(r.Context(), requestUser(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, nil)
}
