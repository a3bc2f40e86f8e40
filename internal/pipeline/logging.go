// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package pipeline

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/archivum/internal/logging"
)

// zerologAdapter bridges Watermill's logger interface onto the
// application logger.
type zerologAdapter struct {
	fields watermill.LogFields
}

// NewLoggerAdapter returns a Watermill logger writing through zerolog.
func NewLoggerAdapter() watermill.LoggerAdapter {
	return &zerologAdapter{}
}

func (a *zerologAdapter) event(e *zerolog.Event, msg string, fields watermill.LogFields) {
	for k, v := range a.fields {
		e = e.Interface(k, v)
	}
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

func (a *zerologAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.event(logging.Error().Err(err), msg, fields)
}

func (a *zerologAdapter) Info(msg string, fields watermill.LogFields) {
	a.event(logging.Info(), msg, fields)
}

func (a *zerologAdapter) Debug(msg string, fields watermill.LogFields) {
	a.event(logging.Debug(), msg, fields)
}

func (a *zerologAdapter) Trace(msg string, fields watermill.LogFields) {
	a.event(logging.Debug(), msg, fields)
}

func (a *zerologAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(a.fields)+len(fields))
	for k, v := range a.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &zerologAdapter{fields: merged}
}
