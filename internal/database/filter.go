// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/models"
)

// buildFilterConditions turns a RecordFilter into WHERE clauses and args.
// Predicates combine with AND; each is applied only when set.
func buildFilterConditions(f models.RecordFilter) ([]string, []any) {
	var clauses []string
	var args []any

	if f.Kind != "" {
		clauses = append(clauses, "r.kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.AlbumID != nil {
		clauses = append(clauses, "r.album_id = ?")
		args = append(args, *f.AlbumID)
	}
	if f.CreatedFrom != nil {
		clauses = append(clauses, "r.created_at >= ?")
		args = append(args, *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		clauses = append(clauses, "r.created_at <= ?")
		args = append(args, *f.CreatedTo)
	}
	if f.Location != "" {
		clauses = append(clauses,
			`(l.name ILIKE ? OR l.country ILIKE ? OR l.state ILIKE ? OR l.region ILIKE ?)`)
		pattern := "%" + f.Location + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}
	if f.TitleOrCaption != "" {
		clauses = append(clauses, `(r.title ILIKE ? OR r.caption ILIKE ?)`)
		pattern := "%" + f.TitleOrCaption + "%"
		args = append(args, pattern, pattern)
	}
	if f.DepictedName != "" {
		clauses = append(clauses, `EXISTS (
			SELECT 1 FROM depictions d
			JOIN users u ON u.id = d.user_id
			WHERE d.record_id = r.id
			  AND d.visibility = 'visible'
			  AND u.visible
			  AND (u.username ILIKE ? OR u.first_name ILIKE ? OR u.last_name ILIKE ?)
		)`)
		pattern := "%" + f.DepictedName + "%"
		args = append(args, pattern, pattern, pattern)
	}
	return clauses, args
}

// FilterRecords returns rows matching ALL set predicates, newest first,
// with the location joined and the visible depicted names attached. It
// is the retrieval funnel's first stage; permission scoping happens in
// the caller.
func (db *DB) FilterRecords(ctx context.Context, f models.RecordFilter) ([]models.RecordSearchRow, error) {
	clauses, args := buildFilterConditions(f)

	query := `SELECT r.id, r.title, r.kind, r.album_id, r.archive_id, r.creator_id,
		r.uploaded_at, r.created_at, r.caption, r.location_id, r.duration_ns,
		r.embedding, r.file_path, r.preview_path, r.file_ext, r.subtype, r.content_hash,
		l.id, l.name, l.country, l.country_code, l.state, l.region, l.latitude, l.longitude
	FROM media_records r
	LEFT JOIN locations l ON l.id = r.location_id`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY r.uploaded_at DESC, r.id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("filter records: %w", err)
	}
	defer rows.Close()

	var out []models.RecordSearchRow
	var ids []uuid.UUID
	for rows.Next() {
		row, err := scanSearchRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *row)
		ids = append(ids, row.Record.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.attachDepictedNames(ctx, out, ids); err != nil {
		return nil, err
	}
	return out, nil
}

func scanSearchRow(rows *sql.Rows) (*models.RecordSearchRow, error) {
	var row models.RecordSearchRow
	rec := &row.Record

	var kind string
	var createdAt sql.NullTime
	var locationID uuid.NullUUID
	var durationNS sql.NullInt64
	var embedding []byte

	var locID uuid.NullUUID
	var locName, locCountry, locCC, locState, locRegion sql.NullString
	var locLat, locLon sql.NullFloat64

	err := rows.Scan(&rec.ID, &rec.Title, &kind, &rec.AlbumID, &rec.ArchiveID,
		&rec.CreatorID, &rec.UploadedAt, &createdAt, &rec.Caption, &locationID,
		&durationNS, &embedding, &rec.FilePath, &rec.PreviewPath,
		&rec.FileExt, &rec.Subtype, &rec.ContentHash,
		&locID, &locName, &locCountry, &locCC, &locState, &locRegion, &locLat, &locLon)
	if err != nil {
		return nil, fmt.Errorf("scan search row: %w", err)
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

	if locID.Valid {
		row.Location = &models.Location{
			ID:          locID.UUID,
			Name:        locName.String,
			Country:     locCountry.String,
			CountryCode: locCC.String,
			State:       locState.String,
			Region:      locRegion.String,
			Latitude:    locLat.Float64,
			Longitude:   locLon.Float64,
		}
	}
	return &row, nil
}

// attachDepictedNames fills DepictedNames for each row with the names of
// visibly depicted, self-visible users. Hidden depictions and opted-out
// users never feed search signals.
func (db *DB) attachDepictedNames(ctx context.Context, out []models.RecordSearchRow, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT d.record_id, u.username, u.first_name, u.last_name
		FROM depictions d
		JOIN users u ON u.id = d.user_id
		WHERE d.record_id IN (`+placeholders+`)
		  AND d.visibility = 'visible'
		  AND u.visible`, args...)
	if err != nil {
		return fmt.Errorf("fetch depicted names: %w", err)
	}
	defer rows.Close()

	names := make(map[uuid.UUID][]models.PersonName)
	for rows.Next() {
		var recordID uuid.UUID
		var n models.PersonName
		if err := rows.Scan(&recordID, &n.Username, &n.FirstName, &n.LastName); err != nil {
			return fmt.Errorf("scan depicted name: %w", err)
		}
		names[recordID] = append(names[recordID], n)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for i := range out {
		out[i].DepictedNames = names[out[i].Record.ID]
	}
	return nil
}
