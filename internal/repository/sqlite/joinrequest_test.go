package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

func submitTestRequest(t *testing.T, db *DB, projectID string, requester *model.User, opts repository.CreateJoinRequestOptions) *model.JoinRequest {
	t.Helper()
	req := &model.JoinRequest{
		ProjectID: projectID,
		Requester: model.Requester{UserID: requester.ID, Name: requester.Name, Source: "github"},
		Message:   "please add me",
	}
	if err := db.CreateJoinRequest(context.Background(), req, opts); err != nil {
		t.Fatalf("CreateJoinRequest() error = %v", err)
	}
	return req
}

func TestCreateJoinRequest_Pending(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	p := createTestProject(t, db, owner.ID, true)

	req := submitTestRequest(t, db, p.ID, bob, repository.CreateJoinRequestOptions{})

	if req.ID == "" {
		t.Error("CreateJoinRequest() did not set ID")
	}
	if req.Status != model.StatusPending {
		t.Errorf("Status = %q, want pending", req.Status)
	}

	found, err := db.GetJoinRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetJoinRequest() error = %v", err)
	}
	if found.Message != "please add me" || found.Requester.UserID != bob.ID {
		t.Errorf("GetJoinRequest() = %+v", found)
	}
	if !found.CreatedAt.Equal(req.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", found.CreatedAt, req.CreatedAt)
	}
}

func TestCreateJoinRequest_DuplicatePolicy(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	p := createTestProject(t, db, owner.ID, true)

	submitTestRequest(t, db, p.ID, bob, repository.CreateJoinRequestOptions{})

	dup := &model.JoinRequest{ProjectID: p.ID, Requester: model.Requester{UserID: bob.ID}}
	err := db.CreateJoinRequest(ctx, dup, repository.CreateJoinRequestOptions{})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("duplicate: error = %v, want ErrConflict", err)
	}

	err = db.CreateJoinRequest(ctx, dup, repository.CreateJoinRequestOptions{AllowDuplicatePending: true})
	if err != nil {
		t.Fatalf("duplicate allowed: error = %v", err)
	}
}

func TestCreateJoinRequest_StrictlyIncreasingTimestamps(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "alice")
	p := createTestProject(t, db, owner.ID, true)
	opts := repository.CreateJoinRequestOptions{AllowDuplicatePending: true}
	bob := createTestUser(t, db, "bob")

	var prev *model.JoinRequest
	for i := 0; i < 20; i++ {
		req := submitTestRequest(t, db, p.ID, bob, opts)
		if prev != nil && !req.CreatedAt.After(prev.CreatedAt) {
			t.Fatalf("request %d CreatedAt %v not after %v", i, req.CreatedAt, prev.CreatedAt)
		}
		prev = req
	}
}

func TestListJoinRequests_NewestFirstAndFiltered(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")
	p := createTestProject(t, db, owner.ID, true)

	first := submitTestRequest(t, db, p.ID, bob, repository.CreateJoinRequestOptions{})
	second := submitTestRequest(t, db, p.ID, carol, repository.CreateJoinRequestOptions{})

	if _, err := db.ResolveJoinRequest(ctx, first.ID, model.StatusRejected, owner.ID); err != nil {
		t.Fatalf("ResolveJoinRequest() error = %v", err)
	}

	all, err := db.ListJoinRequests(ctx, p.ID, repository.JoinRequestFilter{})
	if err != nil {
		t.Fatalf("ListJoinRequests() error = %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID || all[1].ID != first.ID {
		t.Fatalf("ListJoinRequests() order = %v, want [%s %s]", ids(all), second.ID, first.ID)
	}

	pending, err := db.ListJoinRequests(ctx, p.ID, repository.JoinRequestFilter{Status: model.StatusPending})
	if err != nil {
		t.Fatalf("ListJoinRequests(pending) error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != second.ID {
		t.Errorf("pending = %v, want [%s]", ids(pending), second.ID)
	}
}

func TestResolveJoinRequest_AcceptAddsExactlyOneMember(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	p := createTestProject(t, db, owner.ID, true)
	req := submitTestRequest(t, db, p.ID, bob, repository.CreateJoinRequestOptions{})

	resolved, err := db.ResolveJoinRequest(ctx, req.ID, model.StatusAccepted, owner.ID)
	if err != nil {
		t.Fatalf("ResolveJoinRequest() error = %v", err)
	}
	if resolved.Status != model.StatusAccepted || resolved.ResolvedBy != owner.ID || resolved.ResolvedAt == nil {
		t.Errorf("resolved = %+v", resolved)
	}

	_, err = db.ResolveJoinRequest(ctx, req.ID, model.StatusAccepted, owner.ID)
	if !errors.Is(err, apperror.ErrInvalidState) {
		t.Errorf("second resolve: error = %v, want ErrInvalidState", err)
	}

	members, err := db.ListMemberships(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListMemberships() error = %v", err)
	}
	if len(members) != 1 || members[0].UserID != bob.ID || members[0].Role != model.RoleMember {
		t.Errorf("memberships = %+v, want bob as member", members)
	}
}

func TestResolveJoinRequest_RejectLeavesMembershipUnchanged(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	p := createTestProject(t, db, owner.ID, true)
	req := submitTestRequest(t, db, p.ID, bob, repository.CreateJoinRequestOptions{})

	if _, err := db.ResolveJoinRequest(ctx, req.ID, model.StatusRejected, owner.ID); err != nil {
		t.Fatalf("ResolveJoinRequest() error = %v", err)
	}

	members, _ := db.ListMemberships(ctx, p.ID)
	if len(members) != 0 {
		t.Errorf("memberships = %+v, want none", members)
	}

	found, _ := db.GetJoinRequest(ctx, req.ID)
	if found.Status != model.StatusRejected {
		t.Errorf("Status = %q, want rejected", found.Status)
	}

	_, err := db.ResolveJoinRequest(ctx, req.ID, model.StatusAccepted, owner.ID)
	if !errors.Is(err, apperror.ErrInvalidState) {
		t.Errorf("accept after reject: error = %v, want ErrInvalidState", err)
	}
}

func TestResolveJoinRequest_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.ResolveJoinRequest(context.Background(), "missing", model.StatusAccepted, "x")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestResolveJoinRequest_RejectsNonDecision(t *testing.T) {
	db := newTestDB(t)

	_, err := db.ResolveJoinRequest(context.Background(), "any", model.StatusPending, "x")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestResolveJoinRequest_ConcurrentAcceptsOneWinner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	p := createTestProject(t, db, owner.ID, true)
	req := submitTestRequest(t, db, p.ID, bob, repository.CreateJoinRequestOptions{})

	const workers = 8
	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		wins         int
		invalidState int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.ResolveJoinRequest(ctx, req.ID, model.StatusAccepted, owner.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperror.ErrInvalidState):
				invalidState++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 || invalidState != workers-1 {
		t.Errorf("wins = %d, invalidState = %d; want 1 and %d", wins, invalidState, workers-1)
	}

	members, _ := db.ListMemberships(ctx, p.ID)
	if len(members) != 1 {
		t.Errorf("memberships = %d, want 1", len(members))
	}
}

func ids(reqs []model.JoinRequest) []string {
	out := make([]string, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.ID)
	}
	return out
}
