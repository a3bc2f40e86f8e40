// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DuckDBStore persists the trail in the object store's database.
type DuckDBStore struct {
	conn *sql.DB
}

// NewDuckDBStore creates the audit table when absent.
func NewDuckDBStore(conn *sql.DB) (*DuckDBStore, error) {
	_, err := conn.Exec(`CREATE TABLE IF NOT EXISTS audit_events (
		id UUID PRIMARY KEY,
		ts TIMESTAMP NOT NULL,
		actor_id UUID NOT NULL,
		action TEXT NOT NULL,
		target_kind TEXT NOT NULL,
		target_id UUID NOT NULL,
		detail TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	return &DuckDBStore{conn: conn}, nil
}

// Save writes one event.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO audit_events (id, ts, actor_id, action, target_kind, target_id, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Timestamp, event.ActorID, event.Action,
		event.TargetKind, event.TargetID, event.Detail)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	var conds []string
	var args []interface{}
	if filter.ActorID != uuid.Nil {
		conds = append(conds, "actor_id = ?")
		args = append(args, filter.ActorID)
	}
	if filter.TargetID != uuid.Nil {
		conds = append(conds, "target_id = ?")
		args = append(args, filter.TargetID)
	}
	if filter.Action != "" {
		conds = append(conds, "action = ?")
		args = append(args, filter.Action)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, filter.Since)
	}

	query := "SELECT id, ts, actor_id, action, target_kind, target_id, detail FROM audit_events"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorID, &e.Action,
			&e.TargetKind, &e.TargetID, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteOlderThan prunes the trail and reports how many rows went.
func (s *DuckDBStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.conn.ExecContext(ctx, "DELETE FROM audit_events WHERE ts < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return res.RowsAffected()
}
