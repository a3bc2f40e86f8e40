// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/archivum/internal/logging"
	"github.com/tomtom215/archivum/internal/pipeline"
)

// HTTPService adapts an http.Server to the suture service interface.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps the server for supervision.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout == 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve runs the listener until the context is canceled, then shuts the
// server down gracefully.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	logging.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("HTTP server shutdown incomplete")
			return err
		}
		logging.Info().Msg("HTTP server stopped")
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *HTTPService) String() string { return "http-server" }

// PipelineService runs the media processing message router under
// supervision. A router crash restarts the whole consumer set.
type PipelineService struct {
	router *pipeline.Router
}

func NewPipelineService(router *pipeline.Router) *PipelineService {
	return &PipelineService{router: router}
}

// Serve blocks in the router's run loop until the context is canceled.
func (s *PipelineService) Serve(ctx context.Context) error {
	logging.Info().Msg("pipeline router starting")
	err := s.router.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *PipelineService) String() string { return "pipeline-router" }

// GCService runs badger value log garbage collection for the navigation
// store on a fixed interval. Badger never reclaims value log space on
// its own; skipping this grows the store without bound.
type GCService struct {
	db       *badger.DB
	interval time.Duration
}

func NewGCService(db *badger.DB, interval time.Duration) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GCService{db: db, interval: interval}
}

// Serve ticks until the context is canceled. ErrNoRewrite means there
// was nothing to collect and is not a failure.
func (s *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			err := s.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				logging.Warn().Err(err).Msg("navigation store GC failed")
			}
		}
	}
}

func (s *GCService) String() string { return "navigation-gc" }
