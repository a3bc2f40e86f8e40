// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

// Package audit records permission-sensitive actions: deletions, hide and
// show transitions, moderator changes. Events are written asynchronously
// through a bounded buffer so the request path never blocks on the trail.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/logging"
)

// Actions recorded in the trail.
const (
	ActionRecordDelete    = "record.delete"
	ActionBoxHide         = "box.hide"
	ActionBoxShow         = "box.show"
	ActionDepictionRemove = "depiction.remove"
	ActionCommentHide     = "comment.hide"
	ActionCommentShow     = "comment.show"
	ActionCommentDelete   = "comment.delete"
	ActionUserHide        = "user.hide"
	ActionUserShow        = "user.show"
	ActionModeratorAdd    = "moderator.add"
	ActionModeratorRemove = "moderator.remove"
)

// Event is one trail entry.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ActorID   uuid.UUID `json:"actor_id"`
	Action    string    `json:"action"`

	// TargetKind and TargetID name what was acted on: record, box,
	// comment, user.
	TargetKind string    `json:"target_kind"`
	TargetID   uuid.UUID `json:"target_id"`

	// Detail carries free-form context, like the visibility state the
	// target moved to.
	Detail string `json:"detail,omitempty"`
}

// Store persists events.
type Store interface {
	Save(ctx context.Context, event *Event) error
}

// QueryFilter narrows a trail query. Zero values match everything.
type QueryFilter struct {
	ActorID  uuid.UUID
	TargetID uuid.UUID
	Action   string
	Since    time.Time
	Limit    int
}

// Logger buffers events and writes them to the store off the request
// path. Events are dropped, with an error log, when the buffer is full.
type Logger struct {
	store    Store
	events   chan *Event
	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewLogger starts the async writer.
func NewLogger(store Store, bufferSize int) *Logger {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	l := &Logger{
		store:  store,
		events: make(chan *Event, bufferSize),
		stop:   make(chan struct{}),
	}
	l.wg.Add(1)
	go l.writer()
	return l
}

func (l *Logger) writer() {
	defer l.wg.Done()
	for {
		select {
		case <-l.stop:
			// Drain what is already buffered.
			for {
				select {
				case e := <-l.events:
					l.write(e)
				default:
					return
				}
			}
		case e := <-l.events:
			l.write(e)
		}
	}
}

func (l *Logger) write(e *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := l.store.Save(ctx, e); err != nil {
		logging.Error().Err(err).Str("action", e.Action).Msg("audit event not saved")
	}
}

// Record enqueues one event. Safe to call from any goroutine; never
// blocks.
func (l *Logger) Record(actorID uuid.UUID, action, targetKind string, targetID uuid.UUID, detail string) {
	e := &Event{
		ID:         uuid.New(),
		Timestamp:  time.Now().UTC(),
		ActorID:    actorID,
		Action:     action,
		TargetKind: targetKind,
		TargetID:   targetID,
		Detail:     detail,
	}
	select {
	case l.events <- e:
	default:
		logging.Error().Str("action", action).Msg("audit buffer full, event dropped")
	}
}

// Close stops the writer after draining buffered events.
func (l *Logger) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
	l.wg.Wait()
}
