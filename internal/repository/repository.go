// Package repository declares the Persistent Record Store the services
// depend on. internal/repository/sqlite is the production implementation;
// service tests use in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/gitpilot/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	CompleteOnboarding(ctx context.Context, id string) error
}

type ProjectRepository interface {
	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListPublicProjects(ctx context.Context, opts ListOptions) ([]model.Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]model.Project, error)
	UpdateProject(ctx context.Context, project *model.Project) error
	IncrementUpvotes(ctx context.Context, id string) (int, error)
	SetInviteCodeHash(ctx context.Context, id, hash string) error
}

type MembershipRepository interface {
	ListMemberships(ctx context.Context, projectID string) ([]model.Membership, error)
	UpdateMembershipRole(ctx context.Context, projectID, userID string, role model.Role) error
	DeleteMembership(ctx context.Context, projectID, userID string) error
}

// JoinRequestFilter narrows ListJoinRequests. A zero Status lists every status.
type JoinRequestFilter struct {
	Status model.JoinRequestStatus
}

// CreateJoinRequestOptions controls the duplicate check performed inside the
// insert transaction.
type CreateJoinRequestOptions struct {
	AllowDuplicatePending bool
}

type JoinRequestRepository interface {
	// CreateJoinRequest inserts req as pending and fills in ID and CreatedAt.
	// CreatedAt is strictly greater than that of every earlier request for the
	// same project. Returns apperror.ErrConflict when the requester already has
	// a pending request and opts forbids duplicates.
	CreateJoinRequest(ctx context.Context, req *model.JoinRequest, opts CreateJoinRequestOptions) error
	GetJoinRequest(ctx context.Context, id string) (*model.JoinRequest, error)
	// ListJoinRequests returns the project's requests newest first.
	ListJoinRequests(ctx context.Context, projectID string, filter JoinRequestFilter) ([]model.JoinRequest, error)
	// ResolveJoinRequest moves a pending request to decision and, on
	// acceptance, appends the requester as a member, all in one transaction.
	// Returns apperror.ErrInvalidState if the request is no longer pending.
	ResolveJoinRequest(ctx context.Context, id string, decision model.JoinRequestStatus, resolverID string) (*model.JoinRequest, error)
}

type RepoConnectionRepository interface {
	GetRepositoryByUser(ctx context.Context, userID string) (*model.Repository, error)
	// ConnectRepository stores repo and copies its summary onto the project in
	// one transaction. Returns apperror.ErrConflict if the user already has one.
	ConnectRepository(ctx context.Context, repo *model.Repository) error
}
