// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/config"
)

func testTransport(t *testing.T) *Transport {
	t.Helper()
	tr, err := NewTransport(&config.PipelineConfig{Transport: "channel"}, nil)
	if err != nil {
		t.Fatalf("NewTransport: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}

func receiveOne(t *testing.T, ch <-chan *message.Message, topic string) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no message on %s", topic)
		return nil
	}
}

func TestDispatcherRoutesJobsToTopics(t *testing.T) {
	tr := testTransport(t)
	ctx := context.Background()

	previews, err := tr.Subscriber.Subscribe(ctx, TopicPreview)
	if err != nil {
		t.Fatalf("subscribe preview: %v", err)
	}
	embeddings, err := tr.Subscriber.Subscribe(ctx, TopicEmbedding)
	if err != nil {
		t.Fatalf("subscribe embedding: %v", err)
	}
	faces, err := tr.Subscriber.Subscribe(ctx, TopicFaces)
	if err != nil {
		t.Fatalf("subscribe faces: %v", err)
	}

	recordID := uuid.New()
	d := NewDispatcher(tr.Publisher)
	if err := d.EnqueuePreview(ctx, recordID); err != nil {
		t.Fatalf("EnqueuePreview: %v", err)
	}
	if err := d.EnqueueEmbedding(ctx, recordID); err != nil {
		t.Fatalf("EnqueueEmbedding: %v", err)
	}
	if err := d.EnqueueFaces(ctx, recordID); err != nil {
		t.Fatalf("EnqueueFaces: %v", err)
	}

	for topic, ch := range map[string]<-chan *message.Message{
		TopicPreview:   previews,
		TopicEmbedding: embeddings,
		TopicFaces:     faces,
	} {
		msg := receiveOne(t, ch, topic)
		p, err := unmarshalPayload(msg)
		if err != nil {
			t.Fatalf("unmarshal %s payload: %v", topic, err)
		}
		if p.RecordID != recordID {
			t.Errorf("%s record = %s, want %s", topic, p.RecordID, recordID)
		}
	}
}

func TestEnqueuePreviewDoesNotLeakToOtherTopics(t *testing.T) {
	tr := testTransport(t)
	ctx := context.Background()

	previews, err := tr.Subscriber.Subscribe(ctx, TopicPreview)
	if err != nil {
		t.Fatalf("subscribe preview: %v", err)
	}
	embeddings, err := tr.Subscriber.Subscribe(ctx, TopicEmbedding)
	if err != nil {
		t.Fatalf("subscribe embedding: %v", err)
	}

	d := NewDispatcher(tr.Publisher)
	if err := d.EnqueuePreview(ctx, uuid.New()); err != nil {
		t.Fatalf("EnqueuePreview: %v", err)
	}

	receiveOne(t, previews, TopicPreview)
	select {
	case <-embeddings:
		t.Error("preview enqueue produced an embedding job")
	case <-time.After(100 * time.Millisecond):
	}
}
