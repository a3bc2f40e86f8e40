// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/database"
	"github.com/tomtom215/archivum/internal/models"
	"github.com/tomtom215/archivum/internal/storage"
)

type fakeStore struct {
	records map[uuid.UUID]*models.MediaRecord

	previews   map[uuid.UUID]string
	embeddings map[uuid.UUID][]float32
	durations  map[uuid.UUID]time.Duration
	depictions []*models.Depiction
}

func newFakeStore(recs ...*models.MediaRecord) *fakeStore {
	s := &fakeStore{
		records:    make(map[uuid.UUID]*models.MediaRecord),
		previews:   make(map[uuid.UUID]string),
		embeddings: make(map[uuid.UUID][]float32),
		durations:  make(map[uuid.UUID]time.Duration),
	}
	for _, r := range recs {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) GetRecord(_ context.Context, id uuid.UUID) (*models.MediaRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) UpdateRecordPreview(_ context.Context, id uuid.UUID, previewPath string) error {
	s.previews[id] = previewPath
	return nil
}

func (s *fakeStore) UpdateRecordDuration(_ context.Context, id uuid.UUID, d *time.Duration) error {
	if d != nil {
		s.durations[id] = *d
	}
	return nil
}

func (s *fakeStore) UpdateRecordEmbedding(_ context.Context, id uuid.UUID, embedding []float32) error {
	s.embeddings[id] = embedding
	return nil
}

func (s *fakeStore) InsertDepiction(_ context.Context, d *models.Depiction) error {
	s.depictions = append(s.depictions, d)
	return nil
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) EmbedImage(context.Context, []byte) ([]float32, error) {
	return f.vec, f.err
}

type fakeFaceFinder struct {
	boxes  []models.Box
	called bool
}

func (f *fakeFaceFinder) Detect([]byte) ([]models.Box, error) {
	f.called = true
	return f.boxes, nil
}

type fakeGranter struct {
	grants []uuid.UUID
}

func (f *fakeGranter) GrantBoxPermissions(_ context.Context, _, _, boxID uuid.UUID) error {
	f.grants = append(f.grants, boxID)
	return nil
}

func testFiles(t *testing.T) *storage.Store {
	t.Helper()
	files, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return files
}

func jobMessage(t *testing.T, recordID uuid.UUID) *message.Message {
	t.Helper()
	msg, err := marshalPayload(recordID)
	if err != nil {
		t.Fatalf("marshalPayload: %v", err)
	}
	return msg
}

func imageRecord(hash string) *models.MediaRecord {
	return &models.MediaRecord{
		ID:          uuid.New(),
		Kind:        models.KindImage,
		ArchiveID:   uuid.New(),
		CreatorID:   uuid.New(),
		FileExt:     "jpg",
		Subtype:     "jpeg",
		ContentHash: hash,
		FilePath:    storage.OriginalKey(hash, "jpg"),
	}
}

func TestHandlePreviewImageCopiesOriginal(t *testing.T) {
	files := testFiles(t)
	rec := imageRecord("aabb01")
	original := []byte("jpeg bytes")
	if err := files.Write(rec.FilePath, original); err != nil {
		t.Fatalf("seed original: %v", err)
	}
	store := newFakeStore(rec)
	w := NewWorkers(store, files, nil, nil, nil, "")

	if err := w.HandlePreview(jobMessage(t, rec.ID)); err != nil {
		t.Fatalf("HandlePreview: %v", err)
	}

	wantKey := storage.PreviewKey(rec.ContentHash, "jpg")
	if store.previews[rec.ID] != wantKey {
		t.Errorf("preview path = %q, want %q", store.previews[rec.ID], wantKey)
	}
	got, err := files.Read(wantKey)
	if err != nil {
		t.Fatalf("read preview: %v", err)
	}
	if string(got) != string(original) {
		t.Error("preview bytes differ from original")
	}
}

func TestHandlePreviewPlayableVideoReusesOriginal(t *testing.T) {
	files := testFiles(t)
	rec := &models.MediaRecord{
		ID:          uuid.New(),
		Kind:        models.KindVideo,
		FileExt:     "mp4",
		Subtype:     "mp4",
		ContentHash: "ccdd02",
		FilePath:    storage.OriginalKey("ccdd02", "mp4"),
	}
	if err := files.Write(rec.FilePath, []byte("mp4 bytes")); err != nil {
		t.Fatalf("seed original: %v", err)
	}
	store := newFakeStore(rec)
	// Nonexistent ffmpeg dir: must not be reached for a playable format,
	// and the duration probe failure must not fail the job.
	w := NewWorkers(store, files, nil, nil, nil, "/nonexistent/ffmpeg")

	if err := w.HandlePreview(jobMessage(t, rec.ID)); err != nil {
		t.Fatalf("HandlePreview: %v", err)
	}
	if store.previews[rec.ID] != rec.FilePath {
		t.Errorf("preview path = %q, want original %q", store.previews[rec.ID], rec.FilePath)
	}
	if _, ok := store.durations[rec.ID]; ok {
		t.Error("duration recorded despite failed probe")
	}
}

func TestNeedsConversion(t *testing.T) {
	tests := []struct {
		kind    models.MediaKind
		ext     string
		subtype string
		want    bool
	}{
		{models.KindVideo, "mov", "mp4", true},
		{models.KindVideo, "MOV", "mp4", true},
		{models.KindVideo, ".avi", "mp4", true},
		{models.KindVideo, "bin", "quicktime", true},
		{models.KindVideo, "bin", "x-msvideo", true},
		{models.KindVideo, "mp4", "mp4", false},
		{models.KindVideo, "webm", "webm", false},
		{models.KindAudio, "wma", "x-ms-wma", true},
		{models.KindAudio, "aac", "aac", true},
		{models.KindAudio, "mp3", "mpeg", false},
		// Audio never matches the video set.
		{models.KindAudio, "mov", "quicktime", false},
	}
	for _, tt := range tests {
		rec := &models.MediaRecord{Kind: tt.kind, FileExt: tt.ext, Subtype: tt.subtype}
		if got := needsConversion(rec); got != tt.want {
			t.Errorf("needsConversion(%s %q/%q) = %v, want %v",
				tt.kind, tt.ext, tt.subtype, got, tt.want)
		}
	}
}

func TestHandleEmbeddingStoresVector(t *testing.T) {
	files := testFiles(t)
	rec := imageRecord("eeff03")
	if err := files.Write(rec.FilePath, []byte("jpeg bytes")); err != nil {
		t.Fatalf("seed original: %v", err)
	}
	store := newFakeStore(rec)
	w := NewWorkers(store, files, &fakeEmbedder{vec: []float32{0.5, -0.5}}, nil, nil, "")

	if err := w.HandleEmbedding(jobMessage(t, rec.ID)); err != nil {
		t.Fatalf("HandleEmbedding: %v", err)
	}
	got := store.embeddings[rec.ID]
	if len(got) != 2 || got[0] != 0.5 {
		t.Errorf("embedding = %v, want [0.5 -0.5]", got)
	}
}

func TestHandleEmbeddingSkipsUnreadableImage(t *testing.T) {
	files := testFiles(t)
	rec := imageRecord("eeff04")
	if err := files.Write(rec.FilePath, []byte("not an image")); err != nil {
		t.Fatalf("seed original: %v", err)
	}
	store := newFakeStore(rec)
	w := NewWorkers(store, files, &fakeEmbedder{vec: nil}, nil, nil, "")

	if err := w.HandleEmbedding(jobMessage(t, rec.ID)); err != nil {
		t.Fatalf("HandleEmbedding: %v", err)
	}
	if _, ok := store.embeddings[rec.ID]; ok {
		t.Error("embedding stored for unreadable image")
	}
}

func TestHandleEmbeddingPropagatesSidecarError(t *testing.T) {
	files := testFiles(t)
	rec := imageRecord("eeff05")
	if err := files.Write(rec.FilePath, []byte("jpeg bytes")); err != nil {
		t.Fatalf("seed original: %v", err)
	}
	store := newFakeStore(rec)
	w := NewWorkers(store, files, &fakeEmbedder{err: errors.New("sidecar down")}, nil, nil, "")

	if err := w.HandleEmbedding(jobMessage(t, rec.ID)); err == nil {
		t.Error("expected sidecar error to propagate for retry")
	}
}

func TestHandleEmbeddingIgnoresNonImage(t *testing.T) {
	rec := &models.MediaRecord{ID: uuid.New(), Kind: models.KindVideo}
	store := newFakeStore(rec)
	w := NewWorkers(store, testFiles(t), &fakeEmbedder{vec: []float32{1}}, nil, nil, "")

	if err := w.HandleEmbedding(jobMessage(t, rec.ID)); err != nil {
		t.Fatalf("HandleEmbedding: %v", err)
	}
	if len(store.embeddings) != 0 {
		t.Error("embedding stored for a video record")
	}
}

func TestHandleFacesCreatesBoxesAndGrants(t *testing.T) {
	files := testFiles(t)
	rec := imageRecord("ff0006")
	if err := files.Write(rec.FilePath, []byte("jpeg bytes")); err != nil {
		t.Fatalf("seed original: %v", err)
	}
	store := newFakeStore(rec)
	finder := &fakeFaceFinder{boxes: []models.Box{
		{X1: 10, Y1: 10, X2: 40, Y2: 40, Width: 100, Height: 100},
		{X1: 50, Y1: 20, X2: 90, Y2: 60, Width: 100, Height: 100},
	}}
	granter := &fakeGranter{}
	w := NewWorkers(store, files, nil, finder, granter, "")

	if err := w.HandleFaces(jobMessage(t, rec.ID)); err != nil {
		t.Fatalf("HandleFaces: %v", err)
	}
	if len(store.depictions) != 2 {
		t.Fatalf("depictions = %d, want 2", len(store.depictions))
	}
	for _, d := range store.depictions {
		if d.RecordID != rec.ID {
			t.Errorf("depiction record = %s, want %s", d.RecordID, rec.ID)
		}
		if d.CreatorID != rec.CreatorID {
			t.Errorf("depiction creator = %s, want uploader %s", d.CreatorID, rec.CreatorID)
		}
		if d.UserID != nil {
			t.Error("auto-detected box must start unassigned")
		}
		if d.Box == nil {
			t.Error("face depiction without box")
		}
	}
	if len(granter.grants) != 2 {
		t.Errorf("grants = %d, want 2", len(granter.grants))
	}
}

func TestHandleFacesSkipsUnsupportedFormat(t *testing.T) {
	files := testFiles(t)
	rec := imageRecord("ff0007")
	rec.FileExt = "gif"
	rec.FilePath = storage.OriginalKey(rec.ContentHash, "gif")
	store := newFakeStore(rec)
	finder := &fakeFaceFinder{}
	w := NewWorkers(store, files, nil, finder, nil, "")

	if err := w.HandleFaces(jobMessage(t, rec.ID)); err != nil {
		t.Fatalf("HandleFaces: %v", err)
	}
	if finder.called {
		t.Error("detector invoked for unsupported format")
	}
	if len(store.depictions) != 0 {
		t.Error("depictions created for unsupported format")
	}
}

func TestHandlersAreNoOpsWithoutOptionalDeps(t *testing.T) {
	rec := imageRecord("ff0008")
	store := newFakeStore(rec)
	w := NewWorkers(store, testFiles(t), nil, nil, nil, "")

	if err := w.HandleEmbedding(jobMessage(t, rec.ID)); err != nil {
		t.Errorf("HandleEmbedding without embedder: %v", err)
	}
	if err := w.HandleFaces(jobMessage(t, rec.ID)); err != nil {
		t.Errorf("HandleFaces without detector: %v", err)
	}
}

func TestJobsDropWhenRecordDeleted(t *testing.T) {
	// A record deleted after dispatch must not burn the retry budget;
	// the job acks and leaves no trace.
	store := newFakeStore()
	files := testFiles(t)
	embedder := &fakeEmbedder{vec: []float32{1}}
	faces := &fakeFaceFinder{}
	w := NewWorkers(store, files, embedder, faces, &fakeGranter{}, "")
	gone := uuid.New()

	if err := w.HandlePreview(jobMessage(t, gone)); err != nil {
		t.Errorf("HandlePreview on deleted record = %v, want nil", err)
	}
	if err := w.HandleEmbedding(jobMessage(t, gone)); err != nil {
		t.Errorf("HandleEmbedding on deleted record = %v, want nil", err)
	}
	if err := w.HandleFaces(jobMessage(t, gone)); err != nil {
		t.Errorf("HandleFaces on deleted record = %v, want nil", err)
	}

	if len(store.previews) != 0 || len(store.embeddings) != 0 || len(store.depictions) != 0 {
		t.Error("deleted record acquired job output")
	}
	if faces.called {
		t.Error("detector ran without a record")
	}
}
