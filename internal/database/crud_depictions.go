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

// InsertDepiction stores a person tag or redaction box.
func (db *DB) InsertDepiction(ctx context.Context, d *models.Depiction) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Visibility == "" {
		d.Visibility = models.VisibilityVisible
	}

	var x1, y1, x2, y2, w, h *int
	if d.Box != nil {
		x1, y1, x2, y2 = &d.Box.X1, &d.Box.Y1, &d.Box.X2, &d.Box.Y2
		w, h = &d.Box.Width, &d.Box.Height
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO depictions (id, record_id, user_id, creator_id, visibility,
			x1, y1, x2, y2, img_width, img_height)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.RecordID, d.UserID, d.CreatorID, string(d.Visibility),
		x1, y1, x2, y2, w, h)
	if err != nil {
		return fmt.Errorf("insert depiction: %w", err)
	}
	return nil
}

func scanDepiction(row interface{ Scan(...any) error }) (*models.Depiction, error) {
	var d models.Depiction
	var userID uuid.NullUUID
	var visibility string
	var x1, y1, x2, y2, w, h sql.NullInt64

	err := row.Scan(&d.ID, &d.RecordID, &userID, &d.CreatorID, &visibility,
		&x1, &y1, &x2, &y2, &w, &h)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan depiction: %w", err)
	}

	if userID.Valid {
		id := userID.UUID
		d.UserID = &id
	}
	d.Visibility = models.Visibility(visibility)
	if x1.Valid {
		d.Box = &models.Box{
			X1: int(x1.Int64), Y1: int(y1.Int64),
			X2: int(x2.Int64), Y2: int(y2.Int64),
			Width: int(w.Int64), Height: int(h.Int64),
		}
	}
	return &d, nil
}

const depictionColumns = `id, record_id, user_id, creator_id, visibility,
	x1, y1, x2, y2, img_width, img_height`

// GetDepiction fetches one depiction.
func (db *DB) GetDepiction(ctx context.Context, id uuid.UUID) (*models.Depiction, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+depictionColumns+` FROM depictions WHERE id = ?`, id)
	return scanDepiction(row)
}

// ListRecordDepictions returns all depictions of a record, boxes and
// plain tags alike.
func (db *DB) ListRecordDepictions(ctx context.Context, recordID uuid.UUID) ([]models.Depiction, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+depictionColumns+` FROM depictions WHERE record_id = ? ORDER BY id`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list record depictions: %w", err)
	}
	defer rows.Close()

	var out []models.Depiction
	for rows.Next() {
		d, err := scanDepiction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListUserDepictions returns every depiction assigned to one person,
// across all records. Drives the account-wide self-hide and restore.
func (db *DB) ListUserDepictions(ctx context.Context, userID uuid.UUID) ([]models.Depiction, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+depictionColumns+` FROM depictions WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user depictions: %w", err)
	}
	defer rows.Close()

	var out []models.Depiction
	for rows.Next() {
		d, err := scanDepiction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// AssignDepictionUser links a depiction to the identified person.
func (db *DB) AssignDepictionUser(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE depictions SET user_id = ? WHERE id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("assign depiction user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetDepictionVisibility moves a depiction through the visibility state
// machine.
func (db *DB) SetDepictionVisibility(ctx context.Context, id uuid.UUID, v models.Visibility) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE depictions SET visibility = ? WHERE id = ?`, string(v), id)
	if err != nil {
		return fmt.Errorf("set depiction visibility: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetUserDepictionsVisibility flips every depiction of one person at
// once, for the account-wide self-hide and its login-time restore.
func (db *DB) SetUserDepictionsVisibility(ctx context.Context, userID uuid.UUID, from, to models.Visibility) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE depictions SET visibility = ? WHERE user_id = ? AND visibility = ?`,
		string(to), userID, string(from))
	if err != nil {
		return fmt.Errorf("set user depictions visibility: %w", err)
	}
	return nil
}

// DeleteDepiction removes a depiction.
func (db *DB) DeleteDepiction(ctx context.Context, id uuid.UUID) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM depictions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete depiction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertComment stores a comment.
func (db *DB) InsertComment(ctx context.Context, c *models.Comment) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Visibility == "" {
		c.Visibility = models.VisibilityVisible
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, record_id, author_id, body, visibility, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.RecordID, c.AuthorID, c.Text, string(c.Visibility), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// GetComment fetches one comment.
func (db *DB) GetComment(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var c models.Comment
	var visibility string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, record_id, author_id, body, visibility, created_at
		 FROM comments WHERE id = ?`, id).
		Scan(&c.ID, &c.RecordID, &c.AuthorID, &c.Text, &visibility, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get comment: %w", err)
	}
	c.Visibility = models.Visibility(visibility)
	return &c, nil
}

// ListRecordComments returns a record's comments oldest-first. Hidden
// comments are included; presentation decides what the viewer sees.
func (db *DB) ListRecordComments(ctx context.Context, recordID uuid.UUID) ([]models.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, record_id, author_id, body, visibility, created_at
		 FROM comments WHERE record_id = ? ORDER BY created_at, id`, recordID)
	if err != nil {
		return nil, fmt.Errorf("list record comments: %w", err)
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		var c models.Comment
		var visibility string
		if err := rows.Scan(&c.ID, &c.RecordID, &c.AuthorID, &c.Text, &visibility, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.Visibility = models.Visibility(visibility)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetCommentVisibility moves a comment through the visibility state
// machine.
func (db *DB) SetCommentVisibility(ctx context.Context, id uuid.UUID, v models.Visibility) error {
	res, err := db.conn.ExecContext(ctx,
		`UPDATE comments SET visibility = ? WHERE id = ?`, string(v), id)
	if err != nil {
		return fmt.Errorf("set comment visibility: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteComment removes a comment.
func (db *DB) DeleteComment(ctx context.Context, id uuid.UUID) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
