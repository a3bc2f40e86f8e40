// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/archivum/internal/archive"
	"github.com/tomtom215/archivum/internal/config"
	"github.com/tomtom215/archivum/internal/database"
	"github.com/tomtom215/archivum/internal/search"
	"github.com/tomtom215/archivum/internal/storage"
)

// Handlers bundles the services behind the HTTP surface.
type Handlers struct {
	archive  *archive.Service
	search   *search.Service
	db       *database.DB
	files    *storage.Store
	validate *validator.Validate
	sessions *sessionTracker

	maxUploadBytes int64
	pageSize       int
}

// NewHandlers wires the handler set.
func NewHandlers(cfg *config.ServerConfig, archiveSvc *archive.Service, searchSvc *search.Service,
	db *database.DB, files *storage.Store) *Handlers {
	return &Handlers{
		archive:        archiveSvc,
		search:         searchSvc,
		db:             db,
		files:          files,
		validate:       validator.New(),
		sessions:       newSessionTracker(),
		maxUploadBytes: cfg.MaxUploadBytes,
		pageSize:       cfg.PageSize,
	}
}

// Router assembles the chi route tree. Health and metrics stay outside
// the identity gate; everything else requires the proxy-injected user.
func Router(cfg *config.ServerConfig, h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(Instrument)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", headerUserID, headerSessionID, headerRequestID},
			AllowCredentials: true,
			MaxAge:           86400,
		}))
	}
	if cfg.RateLimitPerMinute > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
	}

	r.Get("/healthz", h.HealthLive)
	r.Get("/readyz", h.HealthReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Identity)
		r.Use(h.SessionStart)

		r.Post("/archives", h.CreateArchive)
		r.Route("/archives/{archiveID}", func(r chi.Router) {
			r.Get("/albums", h.ListAlbums)
			r.Post("/albums", h.CreateAlbum)
			r.Post("/members", h.AddMember)
			r.Post("/moderators", h.AddModerator)
			r.Delete("/moderators/{userID}", h.RemoveModerator)
		})

		r.Get("/albums/{albumID}/records", h.BrowseAlbum)
		r.Post("/albums/{albumID}/records", h.Upload)

		r.Route("/records/{recordID}", func(r chi.Router) {
			r.Get("/", h.GetRecord)
			r.Delete("/", h.DeleteRecord)
			r.Put("/", h.UpdateRecordDetails)
			r.Post("/move", h.MoveRecord)
			r.Get("/original", h.ServeOriginal)
			r.Get("/preview", h.ServePreview)
			r.Post("/depictions", h.AddDepiction)
			r.Post("/comments", h.AddComment)
		})

		r.Route("/depictions/{depictionID}", func(r chi.Router) {
			r.Delete("/", h.RemoveDepiction)
			r.Post("/assign", h.AssignDepiction)
			r.Post("/hide", h.HideBox)
			r.Post("/show", h.ShowBox)
		})

		r.Route("/comments/{commentID}", func(r chi.Router) {
			r.Delete("/", h.DeleteComment)
			r.Post("/hide", h.HideComment)
			r.Post("/show", h.ShowComment)
		})

		r.Post("/search", h.Search)
		r.Get("/autocomplete", h.Autocomplete)

		r.Post("/me/hide", h.HideSelf)
		r.Post("/me/show", h.ShowSelf)
	})

	return r
}
