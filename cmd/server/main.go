// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package main is the entry point for the Archivum server.
//
// Archivum is a self-hosted, permissioned media archive: members upload
// photos, videos, audio and documents into shared archives; the server
// extracts metadata, produces web previews, detects faces, and serves a
// permission-filtered search and browse API.
//
// Components start in dependency order: configuration (koanf), logging
// (zerolog), DuckDB object store, content-addressed file storage, the
// Casbin permission layer, the badger navigation store, the media
// processing pipeline (watermill), and finally the HTTP server. The
// pipeline and HTTP server run under a suture supervisor tree and shut
// down gracefully on SIGINT/SIGTERM.
//
// Authentication is handled by the fronting reverse proxy; the server
// trusts the X-User-ID header it injects.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/archivum/internal/api"
	"github.com/tomtom215/archivum/internal/archive"
	"github.com/tomtom215/archivum/internal/audit"
	"github.com/tomtom215/archivum/internal/authz"
	"github.com/tomtom215/archivum/internal/config"
	"github.com/tomtom215/archivum/internal/database"
	"github.com/tomtom215/archivum/internal/embedding"
	"github.com/tomtom215/archivum/internal/facedetect"
	"github.com/tomtom215/archivum/internal/geocode"
	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/navigation"
	"github.com/tomtom215/archivum/internal/pipeline"
	"github.com/tomtom215/archivum/internal/search"
	"github.com/tomtom215/archivum/internal/storage"
	"github.com/tomtom215/archivum/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := logging.Init(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
		Caller:   cfg.Logging.Caller,
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("storage_root", cfg.Storage.Root).
		Str("transport", cfg.Pipeline.Transport).
		Msg("Starting Archivum")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	files, err := storage.New(cfg.Storage.Root)
	if err != nil {
		return fmt.Errorf("open file storage: %w", err)
	}

	enforcer, err := authz.NewEnforcer(&authz.EnforcerConfig{
		ModelPath:    cfg.Authz.ModelPath,
		PolicyPath:   cfg.Authz.PolicyPath,
		CacheEnabled: true,
	})
	if err != nil {
		return fmt.Errorf("init authorization: %w", err)
	}
	az := authz.NewService(enforcer)
	defer az.Close()

	badgerOpts := badger.DefaultOptions(cfg.Navigation.Path).WithLogger(nil)
	if cfg.Navigation.Path == "" {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	bdb, err := badger.Open(badgerOpts)
	if err != nil {
		return fmt.Errorf("open navigation store: %w", err)
	}
	defer bdb.Close()
	nav := navigation.NewStore(bdb, cfg.Navigation.SessionTTL)

	var geo *geocode.Geocoder
	if cfg.Geocoder.PlacesPath != "" {
		places, err := geocode.LoadCSV(cfg.Geocoder.PlacesPath)
		if err != nil {
			return fmt.Errorf("load places: %w", err)
		}
		geo = geocode.New(places, cfg.Geocoder.CellSizeDegrees)
		logging.Info().Int("places", len(places)).Msg("reverse geocoder loaded")
	}

	var embedder *embedding.Service
	if cfg.Search.SemanticEnabled {
		embedder = embedding.NewService(cfg.Embedding)
	}

	var faces *facedetect.Detector
	if cfg.FaceDetection.Enabled {
		faces, err = facedetect.New(&cfg.FaceDetection)
		if err != nil {
			return fmt.Errorf("init face detection: %w", err)
		}
	}

	transport, err := pipeline.NewTransport(&cfg.Pipeline, nil)
	if err != nil {
		return fmt.Errorf("init pipeline transport: %w", err)
	}
	defer transport.Close()

	// Interface-typed pipeline deps stay nil when the feature is off;
	// a typed nil would defeat the workers' nil checks.
	var workerEmbedder pipeline.Embedder
	if embedder != nil {
		workerEmbedder = embedder
	}
	var workerFaces pipeline.FaceFinder
	if faces != nil {
		workerFaces = faces
	}
	workers := pipeline.NewWorkers(db, files, workerEmbedder, workerFaces, az, cfg.Pipeline.FFmpegPath)
	router, err := pipeline.NewRouter(&cfg.Pipeline, transport, workers, nil)
	if err != nil {
		return fmt.Errorf("init pipeline router: %w", err)
	}
	dispatcher := pipeline.NewDispatcher(transport.Publisher)

	var syncEmbed archive.SyncEmbedder
	if cfg.Embedding.SyncOnUpload {
		syncEmbed = workers
	}
	archiveSvc := archive.New(db, files, az, nav, dispatcher, syncEmbed, geo, cfg.Server.PageSize)

	auditStore, err := audit.NewDuckDBStore(db.Conn())
	if err != nil {
		return fmt.Errorf("init audit trail: %w", err)
	}
	auditLog := audit.NewLogger(auditStore, 256)
	defer auditLog.Close()
	archiveSvc.SetAudit(auditLog)

	var textEmbedder search.TextEmbedder
	if embedder != nil {
		textEmbedder = embedder
	}
	searchSvc := search.NewService(db, az, textEmbedder,
		cfg.Search.SemanticEnabled, cfg.Search.AutocompleteMaxLength)

	handlers := api.NewHandlers(&cfg.Server, archiveSvc, searchSvc, db, files)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.Router(&cfg.Server, handlers),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := supervisor.NewTree(supervisor.DefaultTreeConfig())
	if cfg.Navigation.Path != "" {
		tree.AddDataService(supervisor.NewGCService(bdb, cfg.Navigation.GCInterval))
	}
	tree.AddPipelineService(supervisor.NewPipelineService(router))
	tree.AddAPIService(supervisor.NewHTTPService(httpServer, cfg.Server.ShutdownTimeout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service missed shutdown timeout")
		}
	}
	logging.Info().Msg("Archivum stopped")
	return nil
}
