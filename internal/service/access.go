// Package service holds the business rules. Handlers call services with
// plain values and a context carrying the caller's auth.Identity; services
// call the repository interfaces and return apperror values that the HTTP
// layer maps to status codes. Nothing here knows about HTTP or SQL.
package service

import (
	"context"
	"fmt"

	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/auth"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

// callerFromContext returns the request's identity or apperror.Unauthenticated.
func callerFromContext(ctx context.Context) (*auth.Identity, error) {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, apperror.Unauthenticated()
	}
	return id, nil
}

// roleLoader reads a project and its memberships fresh and resolves a user's
// role on it. Roles are never cached: a membership change is visible to the
// very next call.
type roleLoader struct {
	projects    repository.ProjectRepository
	memberships repository.MembershipRepository
}

// load returns apperror.ErrNotFound if the project does not exist.
func (l roleLoader) load(ctx context.Context, projectID, userID string) (*model.Project, model.RoleInfo, error) {
	project, err := l.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, model.NoRole, err
	}
	memberships, err := l.memberships.ListMemberships(ctx, projectID)
	if err != nil {
		return nil, model.NoRole, fmt.Errorf("loading memberships of project %s: %w", projectID, err)
	}
	return project, model.ResolveRole(project, userID, memberships), nil
}

func requirePower(role model.RoleInfo) error {
	if !role.IsPower {
		return apperror.Forbidden("owner or admin role required")
	}
	return nil
}

func requireOwner(role model.RoleInfo) error {
	if !role.IsOwner {
		return apperror.Forbidden("only the project owner can do this")
	}
	return nil
}
