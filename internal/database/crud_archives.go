// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/models"
)

// CreateArchive stores an archive together with its inbox album in one
// transaction. Every archive owns exactly one inbox for unsorted uploads.
func (db *DB) CreateArchive(ctx context.Context, name string) (*models.Archive, error) {
	archive := &models.Archive{
		ID:      uuid.New(),
		Name:    name,
		InboxID: uuid.New(),
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create archive: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO archives (id, name, inbox_id) VALUES (?, ?, ?)`,
		archive.ID, archive.Name, archive.InboxID); err != nil {
		return nil, fmt.Errorf("insert archive: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO albums (id, archive_id, title, is_inbox) VALUES (?, ?, ?, TRUE)`,
		archive.InboxID, archive.ID, "Inbox"); err != nil {
		return nil, fmt.Errorf("insert inbox album: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return archive, nil
}

// GetArchive fetches an archive by id.
func (db *DB) GetArchive(ctx context.Context, id uuid.UUID) (*models.Archive, error) {
	var a models.Archive
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, inbox_id FROM archives WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.InboxID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}
	return &a, nil
}

// CreateAlbum stores a regular (non-inbox) album.
func (db *DB) CreateAlbum(ctx context.Context, archiveID uuid.UUID, title string) (*models.Album, error) {
	album := &models.Album{ID: uuid.New(), ArchiveID: archiveID, Title: title}
	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO albums (id, archive_id, title, is_inbox) VALUES (?, ?, ?, FALSE)`,
		album.ID, album.ArchiveID, album.Title); err != nil {
		return nil, fmt.Errorf("insert album: %w", err)
	}
	return album, nil
}

// GetAlbum fetches an album by id.
func (db *DB) GetAlbum(ctx context.Context, id uuid.UUID) (*models.Album, error) {
	var a models.Album
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, archive_id, title, is_inbox FROM albums WHERE id = ?`, id).
		Scan(&a.ID, &a.ArchiveID, &a.Title, &a.IsInbox)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get album: %w", err)
	}
	return &a, nil
}

// ListArchiveAlbums returns the archive's albums, inbox first.
func (db *DB) ListArchiveAlbums(ctx context.Context, archiveID uuid.UUID) ([]models.Album, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, archive_id, title, is_inbox FROM albums
		 WHERE archive_id = ? ORDER BY is_inbox DESC, title`, archiveID)
	if err != nil {
		return nil, fmt.Errorf("list archive albums: %w", err)
	}
	defer rows.Close()

	var out []models.Album
	for rows.Next() {
		var a models.Album
		if err := rows.Scan(&a.ID, &a.ArchiveID, &a.Title, &a.IsInbox); err != nil {
			return nil, fmt.Errorf("scan album: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertUser stores or refreshes a user projection.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, first_name, last_name, visible)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name`,
		u.ID, u.Username, u.FirstName, u.LastName, u.Visible)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser fetches a user by id.
func (db *DB) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, first_name, last_name, visible FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.Visible)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// SetUserVisible flips the account-wide self-visibility flag. Hidden
// users' depictions are suppressed everywhere; the flag resets to visible
// on next login.
func (db *DB) SetUserVisible(ctx context.Context, id uuid.UUID, visible bool) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE users SET visible = ? WHERE id = ?`, visible, id)
	if err != nil {
		return fmt.Errorf("set user visible: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertLocation stores a resolved location.
func (db *DB) InsertLocation(ctx context.Context, loc *models.Location) error {
	if loc.ID == uuid.Nil {
		loc.ID = uuid.New()
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO locations (id, name, country, country_code, state, region, latitude, longitude)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		loc.ID, loc.Name, loc.Country, loc.CountryCode, loc.State, loc.Region,
		loc.Latitude, loc.Longitude)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// GetLocation fetches a location by id.
func (db *DB) GetLocation(ctx context.Context, id uuid.UUID) (*models.Location, error) {
	var l models.Location
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, country, country_code, state, region, latitude, longitude
		 FROM locations WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.Country, &l.CountryCode, &l.State, &l.Region,
			&l.Latitude, &l.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return &l, nil
}
