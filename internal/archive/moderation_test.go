// Archivum - Permissioned Media Archive
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/archivum

package archive

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/tomtom215/archivum/internal/authz"
	"github.com/tomtom215/archivum/internal/models"
	"github.com/tomtom215/archivum/internal/storage"
)

// seedPreview gives a record the preview the fake job queue never built.
func (f *fixture) seedPreview(t *testing.T, rec *models.MediaRecord) {
	t.Helper()
	ctx := context.Background()
	data, err := f.files.Read(rec.FilePath)
	if err != nil {
		t.Fatalf("read original: %v", err)
	}
	key := storage.PreviewKey(rec.ContentHash, "jpg")
	if err := f.files.Write(key, data); err != nil {
		t.Fatalf("write preview: %v", err)
	}
	if err := f.db.UpdateRecordPreview(ctx, rec.ID, key); err != nil {
		t.Fatalf("UpdateRecordPreview: %v", err)
	}
	rec.PreviewPath = key
}

func testBox() models.Box {
	return models.Box{X1: 10, Y1: 10, X2: 40, Y2: 40, Width: 60, Height: 60}
}

func TestAddDepictionGrantsDepictedView(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.upload(t, f.owner, "a.jpg", testJPEG(t))

	depicted := uuid.New()
	box := testBox()
	dep, err := f.svc.AddDepiction(ctx, f.owner, rec.ID, &box, &depicted)
	if err != nil {
		t.Fatalf("AddDepiction: %v", err)
	}
	if dep.Box == nil || dep.CreatorID != f.owner {
		t.Error("depiction missing box or creator")
	}

	allowed, err := f.authz.Can(ctx, depicted, authz.ActionView, authz.RecordObject(rec.ID))
	if err != nil || !allowed {
		t.Errorf("depicted person cannot view the record (allowed=%v, err=%v)", allowed, err)
	}
}

func TestAddDepictionRejectsInvalidBox(t *testing.T) {
	f := newFixture(t)
	rec := f.upload(t, f.owner, "a.jpg", testJPEG(t))

	bad := models.Box{X1: 40, Y1: 10, X2: 10, Y2: 40, Width: 60, Height: 60}
	if _, err := f.svc.AddDepiction(context.Background(), f.owner, rec.ID, &bad, nil); err == nil {
		t.Fatal("inverted box accepted")
	}
}

func TestHideBoxByModeratorRedactsPreview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.upload(t, f.owner, "a.jpg", testJPEG(t))
	f.seedPreview(t, rec)

	box := testBox()
	dep, err := f.svc.AddDepiction(ctx, f.owner, rec.ID, &box, nil)
	if err != nil {
		t.Fatalf("AddDepiction: %v", err)
	}
	before, _ := f.files.Read(rec.PreviewPath)

	// The owner sits in the moderator group, so this is a moderator hide.
	if err := f.svc.HideBox(ctx, f.owner, dep.ID); err != nil {
		t.Fatalf("HideBox: %v", err)
	}

	got, err := f.db.GetDepiction(ctx, dep.ID)
	if err != nil {
		t.Fatalf("GetDepiction: %v", err)
	}
	if got.Visibility != models.VisibilityHiddenByMod {
		t.Errorf("Visibility = %q, want hidden_by_mod", got.Visibility)
	}
	after, _ := f.files.Read(rec.PreviewPath)
	if bytes.Equal(before, after) {
		t.Error("preview unchanged after redaction")
	}
}

func TestModHiddenBoxNotShowableByCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := uuid.New()
	if err := f.svc.AddMember(ctx, f.owner, f.archive.ID, &models.User{
		ID: member, Username: "m", Visible: true,
	}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	rec := f.upload(t, member, "a.jpg", testJPEG(t))
	f.seedPreview(t, rec)

	box := testBox()
	dep, err := f.svc.AddDepiction(ctx, member, rec.ID, &box, nil)
	if err != nil {
		t.Fatalf("AddDepiction: %v", err)
	}
	if err := f.svc.HideBox(ctx, f.owner, dep.ID); err != nil {
		t.Fatalf("moderator HideBox: %v", err)
	}

	if err := f.svc.ShowBox(ctx, member, dep.ID); !errors.Is(err, authz.ErrNotAuthorized) {
		t.Errorf("ShowBox by creator = %v, want ErrNotAuthorized", err)
	}
	if err := f.svc.ShowBox(ctx, f.owner, dep.ID); err != nil {
		t.Errorf("ShowBox by moderator: %v", err)
	}
	got, _ := f.db.GetDepiction(ctx, dep.ID)
	if got.Visibility != models.VisibilityVisible {
		t.Errorf("Visibility = %q, want visible", got.Visibility)
	}
}

func TestDepictedPersonCanHideTheirOwnBox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	depicted := uuid.New()
	if err := f.svc.AddMember(ctx, f.owner, f.archive.ID, &models.User{
		ID: depicted, Username: "d", Visible: true,
	}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	rec := f.upload(t, f.owner, "a.jpg", testJPEG(t))
	f.seedPreview(t, rec)

	box := testBox()
	dep, err := f.svc.AddDepiction(ctx, f.owner, rec.ID, &box, &depicted)
	if err != nil {
		t.Fatalf("AddDepiction: %v", err)
	}

	if err := f.svc.HideBox(ctx, depicted, dep.ID); err != nil {
		t.Fatalf("HideBox by depicted person: %v", err)
	}
	got, _ := f.db.GetDepiction(ctx, dep.ID)
	if got.Visibility != models.VisibilityHiddenByUser {
		t.Errorf("Visibility = %q, want hidden_by_user", got.Visibility)
	}
}

func TestHideBoxRejectsPlainTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := f.upload(t, f.owner, "a.jpg", testJPEG(t))

	dep, err := f.svc.AddDepiction(ctx, f.owner, rec.ID, nil, nil)
	if err != nil {
		t.Fatalf("AddDepiction: %v", err)
	}
	if err := f.svc.HideBox(ctx, f.owner, dep.ID); !errors.Is(err, ErrNotABox) {
		t.Errorf("HideBox on tag = %v, want ErrNotABox", err)
	}
}

func TestCommentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	author := uuid.New()
	if err := f.svc.AddMember(ctx, f.owner, f.archive.ID, &models.User{
		ID: author, Username: "c", Visible: true,
	}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	rec := f.upload(t, author, "a.jpg", testJPEG(t))

	c, err := f.svc.AddComment(ctx, author, rec.ID, "who is this?")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	// Author hide is a user-level hide.
	if err := f.svc.HideComment(ctx, author, c.ID); err != nil {
		t.Fatalf("HideComment by author: %v", err)
	}
	got, _ := f.db.GetComment(ctx, c.ID)
	if got.Visibility != models.VisibilityHiddenByUser {
		t.Errorf("Visibility = %q, want hidden_by_user", got.Visibility)
	}

	if err := f.svc.ShowComment(ctx, author, c.ID); err != nil {
		t.Fatalf("ShowComment by author: %v", err)
	}

	// Moderator hide locks the comment against the author.
	if err := f.svc.HideComment(ctx, f.owner, c.ID); err != nil {
		t.Fatalf("HideComment by moderator: %v", err)
	}
	got, _ = f.db.GetComment(ctx, c.ID)
	if got.Visibility != models.VisibilityHiddenByMod {
		t.Errorf("Visibility = %q, want hidden_by_mod", got.Visibility)
	}
	if err := f.svc.ShowComment(ctx, author, c.ID); !errors.Is(err, authz.ErrNotAuthorized) {
		t.Errorf("ShowComment by author on mod-hidden = %v, want ErrNotAuthorized", err)
	}

	if err := f.svc.DeleteComment(ctx, author, c.ID); err != nil {
		t.Fatalf("DeleteComment by author: %v", err)
	}
}

func TestHiddenEntriesInvisibleToNonModerators(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := uuid.New()
	if err := f.svc.AddMember(ctx, f.owner, f.archive.ID, &models.User{
		ID: member, Username: "v", Visible: true,
	}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	rec := f.upload(t, member, "a.jpg", testJPEG(t))

	c, err := f.svc.AddComment(ctx, member, rec.ID, "hide me")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if err := f.svc.HideComment(ctx, f.owner, c.ID); err != nil {
		t.Fatalf("HideComment: %v", err)
	}

	memberView, err := f.svc.GetRecord(ctx, member, "", rec.ID)
	if err != nil {
		t.Fatalf("GetRecord as member: %v", err)
	}
	if len(memberView.Comments) != 0 {
		t.Error("hidden comment visible to non-moderator")
	}

	modView, err := f.svc.GetRecord(ctx, f.owner, "", rec.ID)
	if err != nil {
		t.Fatalf("GetRecord as moderator: %v", err)
	}
	if len(modView.Comments) != 1 {
		t.Error("hidden comment invisible to moderator")
	}
}

func TestHideSelfFlipsDepictionsAndSearchVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	person := uuid.New()
	if err := f.svc.AddMember(ctx, f.owner, f.archive.ID, &models.User{
		ID: person, Username: "p", FirstName: "Paula", Visible: true,
	}); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	rec := f.upload(t, f.owner, "a.jpg", testJPEG(t))

	if _, err := f.svc.AddDepiction(ctx, f.owner, rec.ID, nil, &person); err != nil {
		t.Fatalf("AddDepiction: %v", err)
	}

	if err := f.svc.HideSelf(ctx, person); err != nil {
		t.Fatalf("HideSelf: %v", err)
	}
	deps, err := f.db.ListUserDepictions(ctx, person)
	if err != nil {
		t.Fatalf("ListUserDepictions: %v", err)
	}
	if len(deps) != 1 || deps[0].Visibility != models.VisibilityHiddenByUser {
		t.Fatalf("depictions after HideSelf = %+v", deps)
	}

	if err := f.svc.RestoreSelf(ctx, person); err != nil {
		t.Fatalf("RestoreSelf: %v", err)
	}
	deps, _ = f.db.ListUserDepictions(ctx, person)
	if deps[0].Visibility != models.VisibilityVisible {
		t.Errorf("Visibility = %q, want visible after restore", deps[0].Visibility)
	}
}
