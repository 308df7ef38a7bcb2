package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/auth"
	"github.com/sakif/gitpilot/internal/events"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// fakeStore is an in-memory implementation of every repository interface.
// A single mutex makes each method atomic, like a transaction.
type fakeStore struct {
	mu          sync.Mutex
	nextID      int
	clock       time.Time
	users       map[string]*model.User
	projects    map[string]*model.Project
	memberships []model.Membership
	requests    map[string]*model.JoinRequest
	repos       map[string]*model.Repository // keyed by user ID

	// set to simulate a database failure
	listMembershipsErr error
}

var (
	_ repository.UserRepository           = (*fakeStore)(nil)
	_ repository.ProjectRepository        = (*fakeStore)(nil)
	_ repository.MembershipRepository     = (*fakeStore)(nil)
	_ repository.JoinRequestRepository    = (*fakeStore)(nil)
	_ repository.RepoConnectionRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		clock:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		users:    map[string]*model.User{},
		projects: map[string]*model.Project{},
		requests: map[string]*model.JoinRequest{},
		repos:    map[string]*model.Repository{},
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

// --- users ---

func (f *fakeStore) Upsert(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.GitHubID == user.GitHubID {
			u.TokenIdentifier = user.TokenIdentifier
			u.GitHubUsername = user.GitHubUsername
			u.Name = user.Name
			u.Email = user.Email
			u.AvatarURL = user.AvatarURL
			*user = *u
			return nil
		}
	}
	user.ID = f.id("user")
	if user.Plan == "" {
		user.Plan = model.PlanFree
	}
	user.CreatedAt = f.tick()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) CompleteOnboarding(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.OnboardingCompleted = true
	return nil
}

// --- projects ---

func (f *fakeStore) CreateProject(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.id("project")
	p.CreatedAt = f.tick()
	p.UpdatedAt = p.CreatedAt
	stored := *p
	f.projects[p.ID] = &stored
	return nil
}

func (f *fakeStore) GetProject(_ context.Context, id string) (*model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return nil, apperror.NotFound("project", id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) sortedProjects(keep func(*model.Project) bool) []model.Project {
	out := []model.Project{}
	for _, p := range f.projects {
		if keep(p) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (f *fakeStore) ListPublicProjects(_ context.Context, opts repository.ListOptions) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.sortedProjects(func(p *model.Project) bool { return p.IsPublic })
	if opts.Offset >= len(all) {
		return []model.Project{}, nil
	}
	all = all[opts.Offset:]
	if opts.Limit < len(all) {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (f *fakeStore) ListProjectsForUser(_ context.Context, userID string) ([]model.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedProjects(func(p *model.Project) bool {
		if p.OwnerID == userID {
			return true
		}
		for _, m := range f.memberships {
			if m.ProjectID == p.ID && m.UserID == userID {
				return true
			}
		}
		return false
	}), nil
}

func (f *fakeStore) UpdateProject(_ context.Context, p *model.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.projects[p.ID]
	if !ok {
		return apperror.NotFound("project", p.ID)
	}
	stored.Name, stored.Description, stored.Tags, stored.IsPublic = p.Name, p.Description, p.Tags, p.IsPublic
	return nil
}

func (f *fakeStore) IncrementUpvotes(_ context.Context, id string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return 0, apperror.NotFound("project", id)
	}
	p.Upvotes++
	return p.Upvotes, nil
}

func (f *fakeStore) SetInviteCodeHash(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return apperror.NotFound("project", id)
	}
	p.InviteCodeHash = hash
	return nil
}

// --- memberships ---

func (f *fakeStore) addMember(projectID, userID string, role model.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.memberships = append(f.memberships, model.Membership{
		ProjectID: projectID, UserID: userID, Role: role, JoinedAt: f.tick(),
	})
}

func (f *fakeStore) ListMemberships(_ context.Context, projectID string) ([]model.Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listMembershipsErr != nil {
		return nil, f.listMembershipsErr
	}
	out := []model.Membership{}
	for _, m := range f.memberships {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateMembershipRole(_ context.Context, projectID, userID string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.memberships {
		if m.ProjectID == projectID && m.UserID == userID {
			f.memberships[i].Role = role
			return nil
		}
	}
	return apperror.NotFound("membership", projectID+"/"+userID)
}

func (f *fakeStore) DeleteMembership(_ context.Context, projectID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.memberships {
		if m.ProjectID == projectID && m.UserID == userID {
			f.memberships = append(f.memberships[:i], f.memberships[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("membership", projectID+"/"+userID)
}

// --- join requests ---

func (f *fakeStore) CreateJoinRequest(_ context.Context, req *model.JoinRequest, opts repository.CreateJoinRequestOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !opts.AllowDuplicatePending {
		for _, r := range f.requests {
			if r.ProjectID == req.ProjectID && r.Requester.UserID == req.Requester.UserID && r.Status == model.StatusPending {
				return apperror.Conflict("a join request is already pending")
			}
		}
	}
	req.ID = f.id("request")
	req.Status = model.StatusPending
	req.CreatedAt = f.tick()
	stored := *req
	f.requests[req.ID] = &stored
	return nil
}

func (f *fakeStore) GetJoinRequest(_ context.Context, id string) (*model.JoinRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, apperror.NotFound("join request", id)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ListJoinRequests(_ context.Context, projectID string, filter repository.JoinRequestFilter) ([]model.JoinRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.JoinRequest{}
	for _, r := range f.requests {
		if r.ProjectID == projectID && (filter.Status == "" || r.Status == filter.Status) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ResolveJoinRequest(_ context.Context, id string, decision model.JoinRequestStatus, resolverID string) (*model.JoinRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, apperror.NotFound("join request", id)
	}
	if r.Status != model.StatusPending {
		return nil, apperror.InvalidState("join request", id, string(r.Status))
	}
	now := f.tick()
	r.Status = decision
	r.ResolvedBy = resolverID
	r.ResolvedAt = &now
	if decision == model.StatusAccepted {
		f.memberships = append(f.memberships, model.Membership{
			ProjectID: r.ProjectID, UserID: r.Requester.UserID, Role: model.RoleMember, JoinedAt: now,
		})
	}
	cp := *r
	return &cp, nil
}

// --- repositories ---

func (f *fakeStore) GetRepositoryByUser(_ context.Context, userID string) (*model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.repos[userID]
	if !ok {
		return nil, apperror.NotFound("repository for user", userID)
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ConnectRepository(_ context.Context, repo *model.Repository) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[repo.UserID]; ok {
		return apperror.Conflict("a repository is already connected for this user")
	}
	p, ok := f.projects[repo.ProjectID]
	if !ok {
		return apperror.NotFound("project", repo.ProjectID)
	}
	repo.ID = f.id("repo")
	stored := *repo
	f.repos[repo.UserID] = &stored
	p.Repo = model.RepoSummary{Name: repo.Name, Owner: repo.Owner, URL: repo.URL}
	p.Stars, p.Forks = repo.Stars, repo.Forks
	return nil
}

// --- events ---

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// --- helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testInvites() *auth.InviteCodes {
	return auth.NewInviteCodesWithCost(bcrypt.MinCost)
}

// as returns a context whose caller is userID.
func as(userID string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{
		UserID:     userID,
		Name:       "Name of " + userID,
		PictureURL: "https://img.example/" + userID,
	})
}

// seedProject stores a project owned by ownerID directly in the fake.
func seedProject(t *testing.T, store *fakeStore, ownerID string, public bool) *model.Project {
	t.Helper()
	p := &model.Project{Name: "Project", Tags: []string{"go", "web"}, IsPublic: public, OwnerID: ownerID}
	if err := store.CreateProject(context.Background(), p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return p
}
