// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package embedding produces joint image/text vectors in a shared semantic
// space, so cosine similarity between an image vector and a text-query
// vector is meaningful.
//
// Vectors come from a CLIP inference sidecar over HTTP. The sidecar is
// asked once, lazily, to load the model pair - from its local cache
// directory when present, otherwise from the model registry with the
// download cached for subsequent process starts. Optional dynamic
// quantization trades precision for memory without changing the embedding
// dimensionality.
//
// An unreadable or corrupt image yields a nil vector with a nil error.
// Callers must check for the nil sentinel before persisting.
package embedding

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/archivum/internal/config"
	"github.com/tomtom215/archivum/internal/logging"
)

// Service errors.
var (
	// ErrDimensionMismatch is returned when the sidecar produces a vector
	// of unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrSidecar wraps transport and server-side failures.
	ErrSidecar = errors.New("embedding sidecar error")
)

// Service is the embedding client. The zero value is not usable; construct
// with NewService. Initialization is deferred to first use and is
// idempotent under concurrent first-use.
type Service struct {
	cfg    config.EmbeddingConfig
	client *http.Client

	breaker *gobreaker.CircuitBreaker[[]float32]
	limiter *rate.Limiter

	// initMu guards the double-checked lazy initialization. A failed init
	// is retried on the next call rather than latched.
	initMu      sync.Mutex
	initialized bool
}

// NewService creates an embedding client for the configured sidecar.
func NewService(cfg config.EmbeddingConfig) *Service {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
			Name:    "embedding-sidecar",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}
}

// ensureInitialized asks the sidecar to load the model pair exactly once.
// Concurrent callers serialize here; only the first successful load flips
// the flag.
func (s *Service) ensureInitialized(ctx context.Context) error {
	if s.isInitialized() {
		return nil
	}
	s.initMu.Lock()
	defer s.initMu.Unlock()
	if s.initialized {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"model":      s.cfg.Model,
		"text_model": s.cfg.TextModel,
		"cache_dir":  s.cfg.CacheDir,
		"quantize":   s.cfg.Quantize,
	})
	if err != nil {
		return fmt.Errorf("marshal model load request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint+"/models/load", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build model load request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: model load: %v", ErrSidecar, err)
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: model load returned %d", ErrSidecar, resp.StatusCode)
	}

	logging.Info().
		Str("model", s.cfg.Model).
		Str("text_model", s.cfg.TextModel).
		Bool("quantize", s.cfg.Quantize).
		Msg("embedding models loaded")
	s.initialized = true
	return nil
}

func (s *Service) isInitialized() bool {
	s.initMu.Lock()
	defer s.initMu.Unlock()
	return s.initialized
}

// EmbedImage produces the semantic vector for raw image bytes. A corrupt
// image returns (nil, nil); callers must treat the nil vector as "no
// embedding", never as a fatal upload error.
func (s *Service) EmbedImage(ctx context.Context, imageData []byte) ([]float32, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	vec, unreadable, err := s.post(ctx, "/embed/image", "application/octet-stream", imageData, s.cfg.Model)
	if unreadable {
		// Sentinel: the sidecar could not decode the image.
		return nil, nil
	}
	return vec, err
}

// EmbedText produces the semantic vector for a text query in the same
// space as image vectors.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := s.ensureInitialized(ctx); err != nil {
		return nil, err
	}
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal text embed request: %w", err)
	}
	vec, _, err := s.post(ctx, "/embed/text", "application/json", body, s.cfg.TextModel)
	return vec, err
}

// post runs one embed call through the rate limiter and circuit breaker.
// unreadable reports a 422 from the sidecar: input bytes that do not decode
// as media. A 422 does not count as a breaker failure.
func (s *Service) post(ctx context.Context, path, contentType string, body []byte, model string) (vec []float32, unreadable bool, err error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("embedding rate limit: %w", err)
	}

	vec, err = s.breaker.Execute(func() ([]float32, error) {
		url := fmt.Sprintf("%s%s?model=%s", s.cfg.Endpoint, path, model)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build embed request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSidecar, err)
		}
		defer drainClose(resp.Body)

		switch resp.StatusCode {
		case http.StatusOK:
		case http.StatusUnprocessableEntity:
			unreadable = true
			return nil, nil
		default:
			return nil, fmt.Errorf("%w: embed returned %d", ErrSidecar, resp.StatusCode)
		}

		var out struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("%w: decode embed response: %v", ErrSidecar, err)
		}
		if s.cfg.Dimension > 0 && len(out.Embedding) != s.cfg.Dimension {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(out.Embedding), s.cfg.Dimension)
		}
		return out.Embedding, nil
	})
	return vec, unreadable, err
}

// drainClose discards the remaining body so the connection can be reused.
func drainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, rc)
	_ = rc.Close()
}
