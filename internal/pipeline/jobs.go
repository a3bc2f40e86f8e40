// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package pipeline runs the deferred post-upload jobs: preview
// transcoding, semantic embedding and face detection. Jobs flow through
// a Watermill router with retry, per-job timeout and a poison topic for
// messages that exhaust their retries.
package pipeline

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Topics. One per job kind, plus the poison queue.
const (
	TopicPreview   = "media.preview"
	TopicEmbedding = "media.embedding"
	TopicFaces     = "media.faces"
	TopicPoison    = "media.dlq"
)

// Payload is the job message body: jobs carry only the record id and
// reload the record before writing, so a stale message can never clobber
// newer state.
type Payload struct {
	RecordID uuid.UUID `json:"record_id"`
}

func marshalPayload(recordID uuid.UUID) (*message.Message, error) {
	body, err := json.Marshal(Payload{RecordID: recordID})
	if err != nil {
		return nil, fmt.Errorf("marshal job payload: %w", err)
	}
	return message.NewMessage(uuid.NewString(), body), nil
}

func unmarshalPayload(msg *message.Message) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		return Payload{}, fmt.Errorf("unmarshal job payload: %w", err)
	}
	if p.RecordID == uuid.Nil {
		return Payload{}, fmt.Errorf("job payload without record id")
	}
	return p, nil
}
