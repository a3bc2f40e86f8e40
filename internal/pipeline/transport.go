// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package pipeline

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/archivum/internal/config"
)

// Transport bundles the publisher/subscriber pair for the job queue.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// NewTransport builds the configured transport: an in-process Go channel
// queue for single-instance deployments, or NATS JetStream for durable
// multi-instance processing.
func NewTransport(cfg *config.PipelineConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	if logger == nil {
		logger = NewLoggerAdapter()
	}
	switch cfg.Transport {
	case "", "channel":
		return newChannelTransport(cfg, logger), nil
	case "jetstream":
		return newJetStreamTransport(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown pipeline transport %q", cfg.Transport)
	}
}

func newChannelTransport(cfg *config.PipelineConfig, logger watermill.LoggerAdapter) *Transport {
	depth := cfg.QueueDepth
	if depth <= 0 {
		depth = 256
	}
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(depth),
	}, logger)
	return &Transport{Publisher: ch, Subscriber: ch}
}

func newJetStreamTransport(cfg *config.PipelineConfig, logger watermill.LoggerAdapter) (*Transport, error) {
	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(time.Second),
	}

	marshaler := &wmNats.NATSMarshaler{}
	jsConfig := wmNats.JetStreamConfig{AutoProvision: true}

	publisher, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   marshaler,
		JetStream:   jsConfig,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create jetstream publisher: %w", err)
	}

	subscriber, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		QueueGroupPrefix: "archivum",
		NatsOptions:      natsOpts,
		Unmarshaler:      marshaler,
		AckWaitTimeout:   cfg.JobTimeout,
		JetStream:        jsConfig,
	}, logger)
	if err != nil {
		publisher.Close()
		return nil, fmt.Errorf("create jetstream subscriber: %w", err)
	}

	return &Transport{Publisher: publisher, Subscriber: subscriber}, nil
}

// Close closes both ends. The gochannel transport shares one instance,
// so the double close is tolerated.
func (t *Transport) Close() error {
	err := t.Publisher.Close()
	if subErr := t.Subscriber.Close(); err == nil {
		err = subErr
	}
	return err
}
