// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/archivum/internal/config"
	"github.com/tomtom215/archivum/internal/metrics"
)

// Router runs the job handlers behind shared middleware: panic recovery,
// bounded retry with fixed backoff, per-job timeout, and a poison topic
// for jobs that exhaust their retries.
type Router struct {
	router *message.Router
}

// NewRouter wires the three job handlers onto the transport.
func NewRouter(cfg *config.PipelineConfig, transport *Transport, workers *Workers, logger watermill.LoggerAdapter) (*Router, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 30 * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	wmRouter.AddMiddleware(middleware.Recoverer)

	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = 5 * time.Second
	}
	retry := middleware.Retry{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: retryInterval,
		MaxInterval:     retryInterval,
		Multiplier:      1.0,
		Logger:          logger,
	}
	wmRouter.AddMiddleware(retry.Middleware)

	if cfg.JobTimeout > 0 {
		wmRouter.AddMiddleware(middleware.Timeout(cfg.JobTimeout))
	}

	poison, err := middleware.PoisonQueue(transport.Publisher, TopicPoison)
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	wmRouter.AddMiddleware(poison)

	wmRouter.AddConsumerHandler("preview", TopicPreview, transport.Subscriber, instrument("preview", workers.HandlePreview))
	wmRouter.AddConsumerHandler("embedding", TopicEmbedding, transport.Subscriber, instrument("embedding", workers.HandleEmbedding))
	wmRouter.AddConsumerHandler("faces", TopicFaces, transport.Subscriber, instrument("faces", workers.HandleFaces))

	return &Router{router: wmRouter}, nil
}

// instrument wraps a job handler with duration and failure metrics.
func instrument(job string, h message.NoPublishHandlerFunc) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		start := time.Now()
		err := h(msg)
		metrics.ObserveJob(job, time.Since(start), err)
		return err
	}
}

// Run blocks until the context is cancelled.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running returns a channel closed once the router is started, for
// startup ordering in the supervisor.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// Close shuts the router down.
func (r *Router) Close() error {
	return r.router.Close()
}
