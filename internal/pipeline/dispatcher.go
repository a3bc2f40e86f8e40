// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package pipeline

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/logging"
)

// Dispatcher enqueues processing jobs for freshly uploaded records. It is
// the only producer side of the pipeline topics; workers never re-enqueue.
type Dispatcher struct {
	pub message.Publisher
}

func NewDispatcher(pub message.Publisher) *Dispatcher {
	return &Dispatcher{pub: pub}
}

// EnqueuePreview schedules preview generation for a record.
func (d *Dispatcher) EnqueuePreview(ctx context.Context, recordID uuid.UUID) error {
	return d.publish(ctx, TopicPreview, recordID)
}

// EnqueueEmbedding schedules the semantic vector job for a record.
func (d *Dispatcher) EnqueueEmbedding(ctx context.Context, recordID uuid.UUID) error {
	return d.publish(ctx, TopicEmbedding, recordID)
}

// EnqueueFaces schedules face detection for a record.
func (d *Dispatcher) EnqueueFaces(ctx context.Context, recordID uuid.UUID) error {
	return d.publish(ctx, TopicFaces, recordID)
}

func (d *Dispatcher) publish(ctx context.Context, topic string, recordID uuid.UUID) error {
	msg, err := marshalPayload(recordID)
	if err != nil {
		return err
	}
	msg.SetContext(ctx)
	if err := d.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	logging.Debug().
		Str("topic", topic).
		Str("record_id", recordID.String()).
		Msg("job enqueued")
	return nil
}
