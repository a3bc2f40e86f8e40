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
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/models"
)

// InsertRecord stores a new media record.
func (db *DB) InsertRecord(ctx context.Context, rec *models.MediaRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.UploadedAt.IsZero() {
		rec.UploadedAt = time.Now()
	}

	var durationNS *int64
	if rec.Duration != nil {
		ns := int64(*rec.Duration)
		durationNS = &ns
	}

	_, err := db.conn.ExecContext(ctx, `INSERT INTO media_records (
		id, title, kind, album_id, archive_id, creator_id,
		uploaded_at, created_at, caption, location_id, duration_ns,
		embedding, file_path, preview_path, file_ext, subtype, content_hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, string(rec.Kind), rec.AlbumID, rec.ArchiveID, rec.CreatorID,
		rec.UploadedAt, rec.CreatedAt, rec.Caption, rec.LocationID, durationNS,
		encodeEmbedding(rec.Embedding), rec.FilePath, rec.PreviewPath,
		rec.FileExt, rec.Subtype, rec.ContentHash)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

const recordColumns = `id, title, kind, album_id, archive_id, creator_id,
	uploaded_at, created_at, caption, location_id, duration_ns,
	embedding, file_path, preview_path, file_ext, subtype, content_hash`

func scanRecord(row interface{ Scan(...any) error }) (*models.MediaRecord, error) {
	var rec models.MediaRecord
	var kind string
	var createdAt sql.NullTime
	var locationID uuid.NullUUID
	var durationNS sql.NullInt64
	var embedding []byte

	err := row.Scan(&rec.ID, &rec.Title, &kind, &rec.AlbumID, &rec.ArchiveID,
		&rec.CreatorID, &rec.UploadedAt, &createdAt, &rec.Caption, &locationID,
		&durationNS, &embedding, &rec.FilePath, &rec.PreviewPath,
		&rec.FileExt, &rec.Subtype, &rec.ContentHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}

	rec.Kind = models.MediaKind(kind)
	if createdAt.Valid {
		t := createdAt.Time
		rec.CreatedAt = &t
	}
	if locationID.Valid {
		id := locationID.UUID
		rec.LocationID = &id
	}
	if durationNS.Valid {
		d := time.Duration(durationNS.Int64)
		rec.Duration = &d
	}
	if rec.Embedding, err = decodeEmbedding(embedding); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetRecord fetches a record by id.
func (db *DB) GetRecord(ctx context.Context, id uuid.UUID) (*models.MediaRecord, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM media_records WHERE id = ?`, id)
	return scanRecord(row)
}

// DeleteRecord removes the record row. Its location, depictions and
// comments go in the same transaction.
func (db *DB) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	// The location goes first, while media_records still holds the
	// reference to it.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM locations WHERE id = (SELECT location_id FROM media_records WHERE id = ?)`, id); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM media_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM depictions WHERE record_id = ?`, id); err != nil {
		return fmt.Errorf("delete depictions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE record_id = ?`, id); err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	return tx.Commit()
}

// CountRecordsByHash reports how many records reference content with the
// given hash. Originals are content-addressed, so the backing file may be
// removed only when the count drops to zero.
func (db *DB) CountRecordsByHash(ctx context.Context, hash string) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM media_records WHERE content_hash = ?`, hash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records by hash: %w", err)
	}
	return n, nil
}

// MoveRecord reassigns a record to another album.
func (db *DB) MoveRecord(ctx context.Context, id, albumID uuid.UUID) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE media_records SET album_id = ? WHERE id = ?`, albumID, id)
	if err != nil {
		return fmt.Errorf("move record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRecordDetails writes the user-editable fields.
func (db *DB) UpdateRecordDetails(ctx context.Context, id uuid.UUID, title, caption string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE media_records SET title = ?, caption = ? WHERE id = ?`, title, caption, id)
	if err != nil {
		return fmt.Errorf("update record details: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Field-scoped pipeline updates. Each background job writes only its own
// columns, so concurrent jobs for the same record never clobber each
// other's results.

// UpdateRecordPreview sets the preview derivative path.
func (db *DB) UpdateRecordPreview(ctx context.Context, id uuid.UUID, previewPath string) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE media_records SET preview_path = ? WHERE id = ?`, previewPath, id)
	if err != nil {
		return fmt.Errorf("update record preview: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRecordEmbedding sets the semantic vector.
func (db *DB) UpdateRecordEmbedding(ctx context.Context, id uuid.UUID, vec []float32) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE media_records SET embedding = ? WHERE id = ?`, encodeEmbedding(vec), id)
	if err != nil {
		return fmt.Errorf("update record embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRecordDuration sets the playback duration probed during preview
// transcoding.
func (db *DB) UpdateRecordDuration(ctx context.Context, id uuid.UUID, duration *time.Duration) error {
	if duration == nil {
		return nil
	}
	ns := int64(*duration)
	res, err := db.conn.ExecContext(ctx,
		`UPDATE media_records SET duration_ns = ? WHERE id = ?`, ns, id)
	if err != nil {
		return fmt.Errorf("update record duration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateRecordMetadata sets the capture time, location and duration
// extracted from the file.
func (db *DB) UpdateRecordMetadata(ctx context.Context, id uuid.UUID, createdAt *time.Time, locationID *uuid.UUID, duration *time.Duration) error {
	var durationNS *int64
	if duration != nil {
		ns := int64(*duration)
		durationNS = &ns
	}
	res, err := db.conn.ExecContext(ctx,
		`UPDATE media_records SET created_at = ?, location_id = ?, duration_ns = ? WHERE id = ?`,
		createdAt, locationID, durationNS, id)
	if err != nil {
		return fmt.Errorf("update record metadata: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAlbumRecords returns the album's records newest-first, the order
// galleries and navigation contexts use.
func (db *DB) ListAlbumRecords(ctx context.Context, albumID uuid.UUID) ([]models.MediaRecord, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM media_records WHERE album_id = ? ORDER BY uploaded_at DESC, id`, albumID)
	if err != nil {
		return nil, fmt.Errorf("list album records: %w", err)
	}
	defer rows.Close()

	var out []models.MediaRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}
