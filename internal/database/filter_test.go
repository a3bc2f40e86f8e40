// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/models"
)

// seedSearchFixture loads a small corpus: two images (one in Berlin, one
// undated), a video, and a depicted user on the Berlin image.
type searchFixture struct {
	berlin  uuid.UUID
	undated uuid.UUID
	video   uuid.UUID
	alice   uuid.UUID
}

func seedSearchFixture(t *testing.T, db *DB) searchFixture {
	t.Helper()
	ctx := context.Background()

	loc := &models.Location{Name: "Berlin", Country: "Germany", Latitude: 52.52, Longitude: 13.4}
	if err := db.InsertLocation(ctx, loc); err != nil {
		t.Fatalf("InsertLocation: %v", err)
	}

	alice := &models.User{Username: "alice", FirstName: "Alice", LastName: "Archer", Visible: true}
	if err := db.UpsertUser(ctx, alice); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	created := time.Date(2019, time.July, 1, 0, 0, 0, 0, time.UTC)
	berlin := testRecord(uuid.New(), uuid.New())
	berlin.Title = "brandenburg gate"
	berlin.CreatedAt = &created
	berlin.LocationID = &loc.ID
	if err := db.InsertRecord(ctx, berlin); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	undated := testRecord(uuid.New(), uuid.New())
	undated.Title = "scanned slide"
	if err := db.InsertRecord(ctx, undated); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	video := testRecord(uuid.New(), uuid.New())
	video.Title = "parade footage"
	video.Kind = models.KindVideo
	if err := db.InsertRecord(ctx, video); err != nil {
		t.Fatalf("InsertRecord: %v", err)
	}

	dep := &models.Depiction{RecordID: berlin.ID, UserID: &alice.ID, CreatorID: uuid.New()}
	if err := db.InsertDepiction(ctx, dep); err != nil {
		t.Fatalf("InsertDepiction: %v", err)
	}

	return searchFixture{berlin: berlin.ID, undated: undated.ID, video: video.ID, alice: alice.ID}
}

func resultIDs(rows []models.RecordSearchRow) map[uuid.UUID]bool {
	ids := make(map[uuid.UUID]bool, len(rows))
	for _, r := range rows {
		ids[r.Record.ID] = true
	}
	return ids
}

func TestFilterRecordsNoPredicates(t *testing.T) {
	db := testDB(t)
	fx := seedSearchFixture(t, db)

	rows, err := db.FilterRecords(context.Background(), models.RecordFilter{})
	if err != nil {
		t.Fatalf("FilterRecords: %v", err)
	}
	ids := resultIDs(rows)
	if len(rows) != 3 || !ids[fx.berlin] || !ids[fx.undated] || !ids[fx.video] {
		t.Errorf("got %d rows, want all 3", len(rows))
	}
}

func TestFilterRecordsByKind(t *testing.T) {
	db := testDB(t)
	fx := seedSearchFixture(t, db)

	rows, err := db.FilterRecords(context.Background(), models.RecordFilter{Kind: models.KindVideo})
	if err != nil {
		t.Fatalf("FilterRecords: %v", err)
	}
	if len(rows) != 1 || rows[0].Record.ID != fx.video {
		t.Errorf("kind filter returned %d rows", len(rows))
	}
}

func TestFilterRecordsByDateExcludesUndated(t *testing.T) {
	db := testDB(t)
	fx := seedSearchFixture(t, db)

	from := time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2019, time.December, 31, 23, 59, 59, 0, time.UTC)
	rows, err := db.FilterRecords(context.Background(),
		models.RecordFilter{CreatedFrom: &from, CreatedTo: &to})
	if err != nil {
		t.Fatalf("FilterRecords: %v", err)
	}
	ids := resultIDs(rows)
	if !ids[fx.berlin] {
		t.Error("dated record missing from date-ranged results")
	}
	if ids[fx.undated] || ids[fx.video] {
		t.Error("records without creation date must not match a date filter")
	}
}

func TestFilterRecordsByLocation(t *testing.T) {
	db := testDB(t)
	fx := seedSearchFixture(t, db)

	rows, err := db.FilterRecords(context.Background(), models.RecordFilter{Location: "germ"})
	if err != nil {
		t.Fatalf("FilterRecords: %v", err)
	}
	if len(rows) != 1 || rows[0].Record.ID != fx.berlin {
		t.Fatalf("location filter returned %d rows", len(rows))
	}
	if rows[0].Location == nil || rows[0].Location.Name != "Berlin" {
		t.Errorf("location not joined: %+v", rows[0].Location)
	}
}

func TestFilterRecordsByDepictedName(t *testing.T) {
	db := testDB(t)
	fx := seedSearchFixture(t, db)
	ctx := context.Background()

	rows, err := db.FilterRecords(ctx, models.RecordFilter{DepictedName: "archer"})
	if err != nil {
		t.Fatalf("FilterRecords: %v", err)
	}
	if len(rows) != 1 || rows[0].Record.ID != fx.berlin {
		t.Fatalf("depicted filter returned %d rows", len(rows))
	}
	if len(rows[0].DepictedNames) != 1 || rows[0].DepictedNames[0].Username != "alice" {
		t.Errorf("DepictedNames = %+v", rows[0].DepictedNames)
	}

	// An opted-out user disappears from depiction search entirely.
	if err := db.SetUserVisible(ctx, fx.alice, false); err != nil {
		t.Fatalf("SetUserVisible: %v", err)
	}
	rows, err = db.FilterRecords(ctx, models.RecordFilter{DepictedName: "archer"})
	if err != nil {
		t.Fatalf("FilterRecords: %v", err)
	}
	if len(rows) != 0 {
		t.Error("hidden user still reachable via depicted-name filter")
	}
}

func TestFilterRecordsConjunctive(t *testing.T) {
	db := testDB(t)
	fx := seedSearchFixture(t, db)

	// Matching location but wrong kind yields nothing.
	rows, err := db.FilterRecords(context.Background(),
		models.RecordFilter{Location: "berlin", Kind: models.KindVideo})
	if err != nil {
		t.Fatalf("FilterRecords: %v", err)
	}
	if len(rows) != 0 {
		t.Error("predicates must combine with AND")
	}

	rows, err = db.FilterRecords(context.Background(),
		models.RecordFilter{Location: "berlin", Kind: models.KindImage})
	if err != nil {
		t.Fatalf("FilterRecords: %v", err)
	}
	if len(rows) != 1 || rows[0].Record.ID != fx.berlin {
		t.Errorf("conjunction returned %d rows", len(rows))
	}
}

func TestFilterRecordsTitleOrCaption(t *testing.T) {
	db := testDB(t)
	fx := seedSearchFixture(t, db)

	rows, err := db.FilterRecords(context.Background(),
		models.RecordFilter{TitleOrCaption: "BRANDENBURG"})
	if err != nil {
		t.Fatalf("FilterRecords: %v", err)
	}
	if len(rows) != 1 || rows[0].Record.ID != fx.berlin {
		t.Errorf("title match is case-insensitive substring, got %d rows", len(rows))
	}
}
