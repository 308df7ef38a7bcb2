package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/repository"
)

func TestCreateProject_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "alice")
	created := createTestProject(t, db, owner.ID, true)

	found, err := db.GetProject(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if found.OwnerID != owner.ID {
		t.Errorf("OwnerID = %q, want %q", found.OwnerID, owner.ID)
	}
	if len(found.Tags) != 2 || found.Tags[0] != "go" || found.Tags[1] != "sqlite" {
		t.Errorf("Tags = %v, want [go sqlite]", found.Tags)
	}
	if !found.IsPublic {
		t.Error("IsPublic = false, want true")
	}
}

func TestGetProject_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetProject(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestListPublicProjects_SkipsPrivate(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "alice")
	public := createTestProject(t, db, owner.ID, true)
	createTestProject(t, db, owner.ID, false)

	projects, err := db.ListPublicProjects(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("ListPublicProjects() error = %v", err)
	}
	if len(projects) != 1 || projects[0].ID != public.ID {
		t.Errorf("ListPublicProjects() = %+v, want only %s", projects, public.ID)
	}
}

func TestListProjectsForUser_OwnedAndJoined(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	owned := createTestProject(t, db, bob.ID, false)
	joined := createTestProject(t, db, alice.ID, true)
	createTestProject(t, db, alice.ID, true)

	if _, err := db.conn.Exec(
		`INSERT INTO project_members (project_id, user_id, role) VALUES (?, ?, 'member')`,
		joined.ID, bob.ID,
	); err != nil {
		t.Fatalf("seeding membership: %v", err)
	}

	projects, err := db.ListProjectsForUser(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListProjectsForUser() error = %v", err)
	}
	got := map[string]bool{}
	for _, p := range projects {
		got[p.ID] = true
	}
	if len(projects) != 2 || !got[owned.ID] || !got[joined.ID] {
		t.Errorf("ListProjectsForUser() = %v, want %s and %s", got, owned.ID, joined.ID)
	}
}

func TestUpdateProject(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "alice")
	p := createTestProject(t, db, owner.ID, true)

	p.Name = "renamed"
	p.Tags = []string{"a", "b", "c"}
	p.IsPublic = false
	if err := db.UpdateProject(ctx, p); err != nil {
		t.Fatalf("UpdateProject() error = %v", err)
	}

	found, _ := db.GetProject(ctx, p.ID)
	if found.Name != "renamed" || len(found.Tags) != 3 || found.IsPublic {
		t.Errorf("after update: %+v", found)
	}
}

func TestIncrementUpvotes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "alice")
	p := createTestProject(t, db, owner.ID, true)

	for want := 1; want <= 3; want++ {
		got, err := db.IncrementUpvotes(ctx, p.ID)
		if err != nil {
			t.Fatalf("IncrementUpvotes() error = %v", err)
		}
		if got != want {
			t.Errorf("IncrementUpvotes() = %d, want %d", got, want)
		}
	}

	if _, err := db.IncrementUpvotes(ctx, "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("missing project: error = %v, want ErrNotFound", err)
	}
}

func TestSetInviteCodeHash(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "alice")
	p := createTestProject(t, db, owner.ID, false)

	if err := db.SetInviteCodeHash(ctx, p.ID, "$2a$04$hash"); err != nil {
		t.Fatalf("SetInviteCodeHash() error = %v", err)
	}
	found, _ := db.GetProject(ctx, p.ID)
	if !found.HasInvite() {
		t.Error("HasInvite() = false after setting a hash")
	}
}
