// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/config"
	"github.com/tomtom215/archivum/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "test.db"),
		Threads:   2,
		MaxMemory: "256MB",
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testRecord(albumID, archiveID uuid.UUID) *models.MediaRecord {
	return &models.MediaRecord{
		ID:        uuid.New(),
		Title:     "summer beach",
		Kind:      models.KindImage,
		AlbumID:   albumID,
		ArchiveID: archiveID,
		CreatorID: uuid.New(),
		FilePath:  "originals/a/b.jpg",
		FileExt:   "jpg",
		Subtype:   "jpeg",
	}
}

func TestRecordRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	created := time.Date(2019, time.July, 14, 12, 0, 0, 0, time.UTC)
	dur := 90 * time.Second
	rec := testRecord(uuid.New(), uuid.New())
	rec.CreatedAt = &created
	rec.Duration = &dur
	rec.Embedding = []float32{0.1, 0.2, 0.3}
	rec.Caption = "low tide"
	rec.ContentHash = "deadbeef"

	if err := db.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	got, err := db.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Title != rec.Title || got.Kind != models.KindImage || got.Caption != "low tide" {
		t.Errorf("fields lost: %+v", got)
	}
	if got.CreatedAt == nil || !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.Duration == nil || *got.Duration != dur {
		t.Errorf("Duration = %v, want %v", got.Duration, dur)
	}
	if len(got.Embedding) != 3 || got.Embedding[1] != 0.2 {
		t.Errorf("Embedding = %v", got.Embedding)
	}
	if got.ContentHash != "deadbeef" {
		t.Errorf("ContentHash = %q", got.ContentHash)
	}
}

func TestGetRecordMissing(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetRecord(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetRecord(missing) = %v, want ErrNotFound", err)
	}
}

func TestFieldScopedUpdates(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	rec := testRecord(uuid.New(), uuid.New())
	if err := db.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	// Preview and embedding jobs write independent columns.
	if err := db.UpdateRecordPreview(ctx, rec.ID, "previews/a/b.jpg"); err != nil {
		t.Fatalf("UpdateRecordPreview: %v", err)
	}
	if err := db.UpdateRecordEmbedding(ctx, rec.ID, []float32{1, 2}); err != nil {
		t.Fatalf("UpdateRecordEmbedding: %v", err)
	}
	created := time.Date(2018, time.May, 2, 0, 0, 0, 0, time.UTC)
	if err := db.UpdateRecordMetadata(ctx, rec.ID, &created, nil, nil); err != nil {
		t.Fatalf("UpdateRecordMetadata: %v", err)
	}

	got, err := db.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.PreviewPath != "previews/a/b.jpg" {
		t.Errorf("PreviewPath = %q", got.PreviewPath)
	}
	if len(got.Embedding) != 2 {
		t.Errorf("Embedding = %v", got.Embedding)
	}
	if got.CreatedAt == nil || !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v", got.CreatedAt)
	}
	// Title untouched by the scoped writers.
	if got.Title != rec.Title {
		t.Errorf("Title clobbered: %q", got.Title)
	}

	if err := db.UpdateRecordPreview(ctx, uuid.New(), "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("update of missing record = %v, want ErrNotFound", err)
	}
}

func TestMoveRecord(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	rec := testRecord(uuid.New(), uuid.New())
	if err := db.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	target := uuid.New()
	if err := db.MoveRecord(ctx, rec.ID, target); err != nil {
		t.Fatalf("MoveRecord: %v", err)
	}
	got, err := db.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.AlbumID != target {
		t.Errorf("AlbumID = %v, want %v", got.AlbumID, target)
	}
}

func TestDeleteRecordCascades(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	loc := &models.Location{Name: "Lisbon", Country: "Portugal", Latitude: 38.72, Longitude: -9.14}
	if err := db.InsertLocation(ctx, loc); err != nil {
		t.Fatalf("InsertLocation: %v", err)
	}
	rec := testRecord(uuid.New(), uuid.New())
	rec.LocationID = &loc.ID
	if err := db.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}
	dep := &models.Depiction{RecordID: rec.ID, CreatorID: uuid.New()}
	if err := db.InsertDepiction(ctx, dep); err != nil {
		t.Fatalf("InsertDepiction: %v", err)
	}
	com := &models.Comment{RecordID: rec.ID, AuthorID: uuid.New(), Text: "nice"}
	if err := db.InsertComment(ctx, com); err != nil {
		t.Fatalf("InsertComment: %v", err)
	}

	if err := db.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if _, err := db.GetRecord(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Error("record survived delete")
	}
	if _, err := db.GetDepiction(ctx, dep.ID); !errors.Is(err, ErrNotFound) {
		t.Error("depiction survived record delete")
	}
	if _, err := db.GetComment(ctx, com.ID); !errors.Is(err, ErrNotFound) {
		t.Error("comment survived record delete")
	}
	if _, err := db.GetLocation(ctx, loc.ID); !errors.Is(err, ErrNotFound) {
		t.Error("location survived record delete")
	}

	if err := db.DeleteRecord(ctx, rec.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestCreateArchiveProvisionsInbox(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	archive, err := db.CreateArchive(ctx, "City Museum")
	if err != nil {
		t.Fatalf("CreateArchive: %v", err)
	}

	inbox, err := db.GetAlbum(ctx, archive.InboxID)
	if err != nil {
		t.Fatalf("GetAlbum(inbox): %v", err)
	}
	if !inbox.IsInbox || inbox.ArchiveID != archive.ID {
		t.Errorf("inbox = %+v", inbox)
	}

	albums, err := db.ListArchiveAlbums(ctx, archive.ID)
	if err != nil {
		t.Fatalf("ListArchiveAlbums: %v", err)
	}
	if len(albums) != 1 || !albums[0].IsInbox {
		t.Errorf("albums = %+v, want inbox only", albums)
	}
}

func TestDepictionBoxRoundTrip(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	userID := uuid.New()
	dep := &models.Depiction{
		RecordID:  uuid.New(),
		UserID:    &userID,
		CreatorID: uuid.New(),
		Box:       &models.Box{X1: 10, Y1: 20, X2: 110, Y2: 220, Width: 640, Height: 480},
	}
	if err := db.InsertDepiction(ctx, dep); err != nil {
		t.Fatalf("InsertDepiction: %v", err)
	}

	got, err := db.GetDepiction(ctx, dep.ID)
	if err != nil {
		t.Fatalf("GetDepiction: %v", err)
	}
	if got.Box == nil || got.Box.X2 != 110 || got.Box.Height != 480 {
		t.Errorf("Box = %+v", got.Box)
	}
	if got.UserID == nil || *got.UserID != userID {
		t.Errorf("UserID = %v", got.UserID)
	}
	if got.Visibility != models.VisibilityVisible {
		t.Errorf("Visibility = %q, want visible default", got.Visibility)
	}

	// Plain tag has no box.
	tag := &models.Depiction{RecordID: dep.RecordID, CreatorID: uuid.New()}
	if err := db.InsertDepiction(ctx, tag); err != nil {
		t.Fatalf("InsertDepiction(tag): %v", err)
	}
	gotTag, err := db.GetDepiction(ctx, tag.ID)
	if err != nil {
		t.Fatalf("GetDepiction(tag): %v", err)
	}
	if gotTag.Box != nil || gotTag.UserID != nil {
		t.Errorf("plain tag = %+v", gotTag)
	}
}

func TestSetUserDepictionsVisibility(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	userID := uuid.New()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		dep := &models.Depiction{RecordID: uuid.New(), UserID: &userID, CreatorID: uuid.New()}
		if err := db.InsertDepiction(ctx, dep); err != nil {
			t.Fatalf("InsertDepiction: %v", err)
		}
		ids = append(ids, dep.ID)
	}
	// One depiction already hidden by a moderator must stay that way.
	if err := db.SetDepictionVisibility(ctx, ids[0], models.VisibilityHiddenByMod); err != nil {
		t.Fatalf("SetDepictionVisibility: %v", err)
	}

	if err := db.SetUserDepictionsVisibility(ctx, userID,
		models.VisibilityVisible, models.VisibilityHiddenByUser); err != nil {
		t.Fatalf("SetUserDepictionsVisibility: %v", err)
	}

	for i, id := range ids {
		got, err := db.GetDepiction(ctx, id)
		if err != nil {
			t.Fatalf("GetDepiction: %v", err)
		}
		want := models.VisibilityHiddenByUser
		if i == 0 {
			want = models.VisibilityHiddenByMod
		}
		if got.Visibility != want {
			t.Errorf("depiction %d visibility = %q, want %q", i, got.Visibility, want)
		}
	}

	// Login-time restore flips only the self-hidden ones back.
	if err := db.SetUserDepictionsVisibility(ctx, userID,
		models.VisibilityHiddenByUser, models.VisibilityVisible); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err := db.GetDepiction(ctx, ids[0])
	if err != nil {
		t.Fatalf("GetDepiction: %v", err)
	}
	if got.Visibility != models.VisibilityHiddenByMod {
		t.Error("restore must not undo moderator hides")
	}
}

func TestCommentsOrderedOldestFirst(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	recordID := uuid.New()
	base := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		c := &models.Comment{
			RecordID:  recordID,
			AuthorID:  uuid.New(),
			Text:      string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(2-i) * time.Hour),
		}
		if err := db.InsertComment(ctx, c); err != nil {
			t.Fatalf("InsertComment: %v", err)
		}
	}

	got, err := db.ListRecordComments(ctx, recordID)
	if err != nil {
		t.Fatalf("ListRecordComments: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d comments, want 3", len(got))
	}
	if got[0].Text != "c" || got[2].Text != "a" {
		t.Errorf("comments out of order: %v, %v, %v", got[0].Text, got[1].Text, got[2].Text)
	}
}
