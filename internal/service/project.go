package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/auth"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

// Validation limits for projects.
const (
	MaxProjectNameLength        = 100
	MaxProjectDescriptionLength = 2000
	MinProjectTags              = 2
	MaxProjectTags              = 5
	MaxTagLength                = 30
	DefaultListLimit            = 20
	MaxListLimit                = 100
)

// ProjectInput carries the editable fields of a project.
type ProjectInput struct {
	Name        string
	Description string
	Tags        []string
	IsPublic    bool
}

// ProjectService manages projects and their invite codes.
type ProjectService struct {
	projects repository.ProjectRepository
	roles    roleLoader
	invites  *auth.InviteCodes
	logger   *slog.Logger
}

func NewProjectService(
	projects repository.ProjectRepository,
	memberships repository.MembershipRepository,
	invites *auth.InviteCodes,
	logger *slog.Logger,
) *ProjectService {
	return &ProjectService{
		projects: projects,
		roles:    roleLoader{projects: projects, memberships: memberships},
		invites:  invites,
		logger:   logger,
	}
}

// normalize trims the input and enforces the limits. Tags are lowercased and
// deduplicated before counting.
func (in ProjectInput) normalize() (ProjectInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)

	if in.Name == "" {
		return in, apperror.ValidationFailed("name", "project name is required")
	}
	if utf8.RuneCountInString(in.Name) > MaxProjectNameLength {
		return in, apperror.ValidationFailed("name",
			fmt.Sprintf("project name must be %d characters or less", MaxProjectNameLength))
	}
	if utf8.RuneCountInString(in.Description) > MaxProjectDescriptionLength {
		return in, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxProjectDescriptionLength))
	}

	seen := make(map[string]bool, len(in.Tags))
	tags := make([]string, 0, len(in.Tags))
	for _, t := range in.Tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > MaxTagLength {
			return in, apperror.ValidationFailed("tags",
				fmt.Sprintf("tags must be %d characters or less", MaxTagLength))
		}
		seen[t] = true
		tags = append(tags, t)
	}
	if len(tags) < MinProjectTags || len(tags) > MaxProjectTags {
		return in, apperror.ValidationFailed("tags",
			fmt.Sprintf("a project needs %d to %d distinct tags", MinProjectTags, MaxProjectTags))
	}
	in.Tags = tags
	return in, nil
}

// Create stores a new project owned by the caller.
func (s *ProjectService) Create(ctx context.Context, in ProjectInput) (*model.Project, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	in, err = in.normalize()
	if err != nil {
		return nil, err
	}

	project := &model.Project{
		Name:        in.Name,
		Description: in.Description,
		Tags:        in.Tags,
		IsPublic:    in.IsPublic,
		OwnerID:     caller.UserID,
	}
	if err := s.projects.CreateProject(ctx, project); err != nil {
		s.logger.Error("failed to create project",
			slog.String("ownerID", caller.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created",
		slog.String("id", project.ID),
		slog.String("ownerID", project.OwnerID),
	)
	return project, nil
}

// Get returns a project. Private projects are visible to their members only;
// to anyone else they do not exist.
func (s *ProjectService) Get(ctx context.Context, id string) (*model.Project, error) {
	project, err := s.projects.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if project.IsPublic {
		return project, nil
	}

	userID, _ := auth.UserIDFromContext(ctx)
	_, role, err := s.roles.load(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if role.Role == model.RoleNone {
		return nil, apperror.NotFound("project", id)
	}
	return project, nil
}

// ListPublic pages through public projects, newest first.
func (s *ProjectService) ListPublic(ctx context.Context, limit, offset int) ([]model.Project, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	projects, err := s.projects.ListPublicProjects(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list public projects", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing public projects: %w", err)
	}
	return projects, nil
}

// ListMine returns the projects the caller owns or belongs to.
func (s *ProjectService) ListMine(ctx context.Context) ([]model.Project, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	projects, err := s.projects.ListProjectsForUser(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing projects of %s: %w", caller.UserID, err)
	}
	return projects, nil
}

// Update replaces the editable fields. Owner only.
func (s *ProjectService) Update(ctx context.Context, id string, in ProjectInput) (*model.Project, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	in, err = in.normalize()
	if err != nil {
		return nil, err
	}

	project, role, err := s.roles.load(ctx, id, caller.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(role); err != nil {
		return nil, err
	}

	project.Name = in.Name
	project.Description = in.Description
	project.Tags = in.Tags
	project.IsPublic = in.IsPublic

	if err := s.projects.UpdateProject(ctx, project); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to update project",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating project: %w", err)
	}

	s.logger.Info("project updated", slog.String("id", id))
	return project, nil
}

// Upvote adds one upvote from the caller and returns the new total.
func (s *ProjectService) Upvote(ctx context.Context, id string) (int, error) {
	if _, err := callerFromContext(ctx); err != nil {
		return 0, err
	}
	if _, err := s.Get(ctx, id); err != nil {
		return 0, err
	}
	n, err := s.projects.IncrementUpvotes(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("upvoting project: %w", err)
	}
	return n, nil
}

// RegenerateInvite issues a new invite code, invalidating the previous one.
// The plaintext is returned once; only its hash is stored.
func (s *ProjectService) RegenerateInvite(ctx context.Context, id string) (string, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return "", err
	}

	_, role, err := s.roles.load(ctx, id, caller.UserID)
	if err != nil {
		return "", err
	}
	if err := requirePower(role); err != nil {
		return "", err
	}

	code, hash, err := s.invites.Generate()
	if err != nil {
		return "", fmt.Errorf("generating invite code: %w", err)
	}
	if err := s.projects.SetInviteCodeHash(ctx, id, hash); err != nil {
		return "", fmt.Errorf("storing invite code: %w", err)
	}

	s.logger.Info("invite code regenerated",
		slog.String("projectID", id),
		slog.String("by", caller.UserID),
	)
	return code, nil
}

// RevokeInvite disables invite-based requests. Power role required.
func (s *ProjectService) RevokeInvite(ctx context.Context, id string) error {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return err
	}

	_, role, err := s.roles.load(ctx, id, caller.UserID)
	if err != nil {
		return err
	}
	if err := requirePower(role); err != nil {
		return err
	}
	if err := s.projects.SetInviteCodeHash(ctx, id, ""); err != nil {
		return fmt.Errorf("revoking invite code: %w", err)
	}

	s.logger.Info("invite code revoked", slog.String("projectID", id))
	return nil
}
