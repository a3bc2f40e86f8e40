// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package database

import (
	"context"
	"fmt"
	"time"
)

// schemaContext bounds schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core tables and indexes.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			visible BOOLEAN NOT NULL DEFAULT TRUE
		)`,

		`CREATE TABLE IF NOT EXISTS archives (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			inbox_id UUID NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS albums (
			id UUID PRIMARY KEY,
			archive_id UUID NOT NULL,
			title TEXT NOT NULL,
			is_inbox BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		`CREATE TABLE IF NOT EXISTS locations (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			country TEXT NOT NULL DEFAULT '',
			country_code TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			region TEXT NOT NULL DEFAULT '',
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS media_records (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			kind TEXT NOT NULL,
			album_id UUID NOT NULL,
			archive_id UUID NOT NULL,
			creator_id UUID NOT NULL,
			uploaded_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP,
			caption TEXT NOT NULL DEFAULT '',
			location_id UUID,
			duration_ns BIGINT,
			embedding BLOB,
			file_path TEXT NOT NULL,
			preview_path TEXT NOT NULL DEFAULT '',
			file_ext TEXT NOT NULL DEFAULT '',
			subtype TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS depictions (
			id UUID PRIMARY KEY,
			record_id UUID NOT NULL,
			user_id UUID,
			creator_id UUID NOT NULL,
			visibility TEXT NOT NULL DEFAULT 'visible',
			x1 INTEGER, y1 INTEGER, x2 INTEGER, y2 INTEGER,
			img_width INTEGER, img_height INTEGER
		)`,

		`CREATE TABLE IF NOT EXISTS comments (
			id UUID PRIMARY KEY,
			record_id UUID NOT NULL,
			author_id UUID NOT NULL,
			body TEXT NOT NULL,
			visibility TEXT NOT NULL DEFAULT 'visible',
			created_at TIMESTAMP NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_records_album ON media_records (album_id, uploaded_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_records_archive ON media_records (archive_id)`,
		`CREATE INDEX IF NOT EXISTS idx_records_kind ON media_records (kind)`,
		`CREATE INDEX IF NOT EXISTS idx_records_created ON media_records (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_depictions_record ON depictions (record_id)`,
		`CREATE INDEX IF NOT EXISTS idx_depictions_user ON depictions (user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_record ON comments (record_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_albums_archive ON albums (archive_id)`,
	}
}
