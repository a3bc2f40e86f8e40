// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package archive

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/authz"
	"github.com/tomtom215/archivum/internal/config"
	"github.com/tomtom215/archivum/internal/database"
	"github.com/tomtom215/archivum/internal/models"
	"github.com/tomtom215/archivum/internal/navigation"
	"github.com/tomtom215/archivum/internal/storage"
)

type fakeJobs struct {
	previews   []uuid.UUID
	embeddings []uuid.UUID
	faces      []uuid.UUID
}

func (f *fakeJobs) EnqueuePreview(_ context.Context, id uuid.UUID) error {
	f.previews = append(f.previews, id)
	return nil
}

func (f *fakeJobs) EnqueueEmbedding(_ context.Context, id uuid.UUID) error {
	f.embeddings = append(f.embeddings, id)
	return nil
}

func (f *fakeJobs) EnqueueFaces(_ context.Context, id uuid.UUID) error {
	f.faces = append(f.faces, id)
	return nil
}

type fixture struct {
	svc   *Service
	db    *database.DB
	files *storage.Store
	authz *authz.Service
	jobs  *fakeJobs

	owner   uuid.UUID
	archive *models.Archive
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(&config.DatabaseConfig{
		Path:      filepath.Join(t.TempDir(), "test.db"),
		Threads:   2,
		MaxMemory: "256MB",
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}

	enforcer, err := authz.NewEnforcer(&authz.EnforcerConfig{CacheEnabled: false})
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	t.Cleanup(enforcer.Close)
	az := authz.NewService(enforcer)

	bdb, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { bdb.Close() })
	nav := navigation.NewStore(bdb, time.Hour)

	jobs := &fakeJobs{}
	svc := New(db, files, az, nav, jobs, nil, nil, 4)

	owner := uuid.New()
	arch, err := svc.CreateArchive(ctx, owner, "City Archive")
	if err != nil {
		t.Fatalf("CreateArchive: %v", err)
	}

	return &fixture{svc: svc, db: db, files: files, authz: az, jobs: jobs, owner: owner, archive: arch}
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			img.Set(x, y, color.RGBA{R: uint8(4 * x), G: uint8(4 * y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func (f *fixture) upload(t *testing.T, userID uuid.UUID, filename string, data []byte) *models.MediaRecord {
	t.Helper()
	results, err := f.svc.Upload(context.Background(), userID, f.archive.InboxID,
		[]UploadFile{{Filename: filename, Data: data}})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("upload %s: %v", filename, results[0].Err)
	}
	return results[0].Record
}

func TestUploadCreatesRecordWithGrantsAndJobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.upload(t, f.owner, "beach-day.JPG", testJPEG(t))

	if rec.Title != "beach-day" {
		t.Errorf("Title = %q, want %q", rec.Title, "beach-day")
	}
	if rec.Kind != models.KindImage {
		t.Errorf("Kind = %q, want Image", rec.Kind)
	}
	if rec.ArchiveID != f.archive.ID || rec.AlbumID != f.archive.InboxID {
		t.Error("record not filed into the archive inbox")
	}
	if !f.files.Exists(rec.FilePath) {
		t.Error("original bytes not stored")
	}

	allowed, err := f.authz.Can(ctx, f.owner, authz.ActionDelete, authz.RecordObject(rec.ID))
	if err != nil || !allowed {
		t.Errorf("creator delete grant missing (allowed=%v, err=%v)", allowed, err)
	}

	if len(f.jobs.previews) != 1 || len(f.jobs.embeddings) != 1 || len(f.jobs.faces) != 1 {
		t.Errorf("jobs = %d/%d/%d previews/embeddings/faces, want 1/1/1",
			len(f.jobs.previews), len(f.jobs.embeddings), len(f.jobs.faces))
	}
}

func TestUploadFlagsDuplicates(t *testing.T) {
	f := newFixture(t)
	data := testJPEG(t)

	f.upload(t, f.owner, "one.jpg", data)
	results, err := f.svc.Upload(context.Background(), f.owner, f.archive.InboxID,
		[]UploadFile{{Filename: "two.jpg", Data: data}})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if results[0].Err != nil {
		t.Fatalf("duplicate upload: %v", results[0].Err)
	}
	if !results[0].Duplicate {
		t.Error("second upload of identical bytes not flagged as duplicate")
	}
}

func TestUploadIsolatesPerFileFailures(t *testing.T) {
	f := newFixture(t)

	results, err := f.svc.Upload(context.Background(), f.owner, f.archive.InboxID, []UploadFile{
		{Filename: "empty.jpg", Data: nil},
		{Filename: "good.jpg", Data: testJPEG(t)},
	})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if results[0].Err == nil {
		t.Error("empty file accepted")
	}
	if results[1].Err != nil {
		t.Errorf("sibling failed too: %v", results[1].Err)
	}
}

func TestUploadDeniedWithoutArchiveChange(t *testing.T) {
	f := newFixture(t)
	stranger := uuid.New()

	_, err := f.svc.Upload(context.Background(), stranger, f.archive.InboxID,
		[]UploadFile{{Filename: "x.jpg", Data: testJPEG(t)}})
	if err == nil {
		t.Fatal("stranger allowed to upload")
	}
}

func TestUploadNonImageSkipsImageJobs(t *testing.T) {
	f := newFixture(t)

	rec := f.upload(t, f.owner, "notes.txt", []byte("plain text, no media"))
	if rec.Kind != models.KindText {
		t.Fatalf("Kind = %q, want Text", rec.Kind)
	}
	if len(f.jobs.previews) != 1 {
		t.Errorf("previews = %d, want 1", len(f.jobs.previews))
	}
	if len(f.jobs.embeddings) != 0 || len(f.jobs.faces) != 0 {
		t.Error("image-only jobs enqueued for a text record")
	}
}

func TestDeleteRecordRemovesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := "sess-1"

	a := f.upload(t, f.owner, "a.jpg", testJPEG(t))
	b := f.upload(t, f.owner, "b.jpg", append(testJPEG(t), 0x01))
	if err := f.svc.RememberOrder(ctx, sessionID, []uuid.UUID{a.ID, b.ID}); err != nil {
		t.Fatalf("RememberOrder: %v", err)
	}

	returnTo, err := f.svc.DeleteRecord(ctx, f.owner, sessionID, b.ID)
	if err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if returnTo == nil || *returnTo != a.ID {
		t.Errorf("returnTo = %v, want predecessor %s", returnTo, a.ID)
	}

	if _, err := f.db.GetRecord(ctx, b.ID); err == nil {
		t.Error("record row survived deletion")
	}
	if f.files.Exists(b.FilePath) {
		t.Error("original file survived deletion")
	}
	allowed, _ := f.authz.Can(ctx, f.owner, authz.ActionView, authz.RecordObject(b.ID))
	if allowed {
		t.Error("grants survived deletion")
	}
}

func TestDeleteRecordKeepsSharedOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	data := testJPEG(t)

	a := f.upload(t, f.owner, "a.jpg", data)
	b := f.upload(t, f.owner, "b.jpg", data)
	if a.FilePath != b.FilePath {
		t.Fatal("identical uploads should share the content-addressed original")
	}

	if _, err := f.svc.DeleteRecord(ctx, f.owner, "", a.ID); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if !f.files.Exists(b.FilePath) {
		t.Error("shared original removed while a record still references it")
	}

	if _, err := f.svc.DeleteRecord(ctx, f.owner, "", b.ID); err != nil {
		t.Fatalf("DeleteRecord: %v", err)
	}
	if f.files.Exists(b.FilePath) {
		t.Error("original kept after the last referencing record was deleted")
	}
}

func TestDeleteRecordDeniedWithoutGrant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.upload(t, f.owner, "a.jpg", testJPEG(t))

	stranger := uuid.New()
	if _, err := f.svc.DeleteRecord(ctx, stranger, "", rec.ID); err == nil {
		t.Fatal("stranger allowed to delete")
	}
}

func TestMoveRecordWithinArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.upload(t, f.owner, "a.jpg", testJPEG(t))
	album, err := f.svc.CreateAlbum(ctx, f.owner, f.archive.ID, "Sorted")
	if err != nil {
		t.Fatalf("CreateAlbum: %v", err)
	}

	if _, err := f.svc.MoveRecord(ctx, f.owner, "", rec.ID, album.ID); err != nil {
		t.Fatalf("MoveRecord: %v", err)
	}
	moved, err := f.db.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if moved.AlbumID != album.ID {
		t.Errorf("AlbumID = %s, want %s", moved.AlbumID, album.ID)
	}
}

func TestMoveRecordRejectsCrossArchiveTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.upload(t, f.owner, "a.jpg", testJPEG(t))
	other, err := f.svc.CreateArchive(ctx, f.owner, "Other Archive")
	if err != nil {
		t.Fatalf("CreateArchive: %v", err)
	}

	_, err = f.svc.MoveRecord(ctx, f.owner, "", rec.ID, other.InboxID)
	if err != ErrCrossArchiveMove {
		t.Errorf("err = %v, want ErrCrossArchiveMove", err)
	}
}

func TestBrowseAlbumFiltersAndRemembersOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := "sess-browse"

	member := uuid.New()
	if err := f.svc.AddMember(ctx, f.owner, f.archive.ID, &models.User{
		ID: member, Username: "vis", Visible: true,
	}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	mine := f.upload(t, member, "mine.jpg", testJPEG(t))
	f.upload(t, f.owner, "theirs.jpg", append(testJPEG(t), 0x02))

	records, err := f.svc.BrowseAlbum(ctx, member, sessionID, f.archive.InboxID)
	if err != nil {
		t.Fatalf("BrowseAlbum: %v", err)
	}
	if len(records) != 1 || records[0].ID != mine.ID {
		t.Fatalf("member sees %d records, want only their own", len(records))
	}

	view, err := f.svc.GetRecord(ctx, member, sessionID, mine.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if view.Prev != nil || view.Next != nil {
		t.Error("single-record context should have no neighbors")
	}
	if view.Page != 1 {
		t.Errorf("Page = %d, want 1", view.Page)
	}
}

func TestGetRecordNavigationNeighbors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sessionID := "sess-nav"

	a := f.upload(t, f.owner, "a.jpg", testJPEG(t))
	b := f.upload(t, f.owner, "b.jpg", append(testJPEG(t), 0x01))
	c := f.upload(t, f.owner, "c.jpg", append(testJPEG(t), 0x02))
	if err := f.svc.RememberOrder(ctx, sessionID, []uuid.UUID{a.ID, b.ID, c.ID}); err != nil {
		t.Fatalf("RememberOrder: %v", err)
	}

	view, err := f.svc.GetRecord(ctx, f.owner, sessionID, b.ID)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if view.Prev == nil || *view.Prev != a.ID {
		t.Errorf("Prev = %v, want %s", view.Prev, a.ID)
	}
	if view.Next == nil || *view.Next != c.ID {
		t.Errorf("Next = %v, want %s", view.Next, c.ID)
	}
}

func TestSessionStartRestoresHiddenUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Username: "ana", Visible: true}
	if err := f.svc.AddMember(ctx, f.owner, f.archive.ID, user); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	if err := f.svc.HideSelf(ctx, user.ID); err != nil {
		t.Fatalf("HideSelf: %v", err)
	}
	got, err := f.db.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Visible {
		t.Fatal("user still visible after HideSelf")
	}

	if err := f.svc.SessionStart(ctx, user.ID); err != nil {
		t.Fatalf("SessionStart: %v", err)
	}
	got, err = f.db.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !got.Visible {
		t.Error("login did not restore visibility")
	}

	// An id the archive has never seen is not an error.
	if err := f.svc.SessionStart(ctx, uuid.New()); err != nil {
		t.Errorf("SessionStart(stranger) = %v", err)
	}
}
