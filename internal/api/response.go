// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package api is the HTTP surface: a chi router over the archive,
// search and navigation services. Authentication happens upstream; the
// reverse proxy injects the caller's identity headers.
package api

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/tomtom215/archivum/internal/archive"
	"github.com/tomtom215/archivum/internal/authz"
	"github.com/tomtom215/archivum/internal/database"
	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/models"
)

// APIResponse is the wire envelope for every JSON endpoint.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError carries a machine-readable code and a human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("write response failed")
	}
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func writeCreated(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{Error: &APIError{Code: code, Message: message}})
}

// writeDomainError maps service-layer errors onto status codes.
// Permission denials are a flat 403; the body never explains which grant
// was missing.
func writeDomainError(w http.ResponseWriter, err error) {
	var invalid validator.ValidationErrors
	switch {
	case errors.Is(err, authz.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, "forbidden")
	case errors.Is(err, database.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "not found")
	case errors.Is(err, models.ErrInvalidBox),
		errors.Is(err, archive.ErrCrossArchiveMove),
		errors.Is(err, archive.ErrEmptyFile),
		errors.Is(err, archive.ErrEmptyName),
		errors.Is(err, archive.ErrNotABox):
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
	default:
		logging.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
