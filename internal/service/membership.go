package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

// MembershipService answers "what can this caller do on this project?" and
// manages the membership rows that back the answer.
type MembershipService struct {
	roles       roleLoader
	memberships repository.MembershipRepository
	logger      *slog.Logger
}

func NewMembershipService(
	projects repository.ProjectRepository,
	memberships repository.MembershipRepository,
	logger *slog.Logger,
) *MembershipService {
	return &MembershipService{
		roles:       roleLoader{projects: projects, memberships: memberships},
		memberships: memberships,
		logger:      logger,
	}
}

// ResolveRole returns the caller's role on projectID.
//
// Anonymous callers and missing projects resolve to model.NoRole rather than
// an error; UI code asks this question before it knows whether the project
// is visible. Store failures are still returned.
func (s *MembershipService) ResolveRole(ctx context.Context, projectID string) (model.RoleInfo, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return model.NoRole, nil
	}

	_, role, err := s.roles.load(ctx, projectID, caller.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return model.NoRole, nil
		}
		return model.NoRole, fmt.Errorf("resolving role on project %s: %w", projectID, err)
	}
	return role, nil
}

// ListMembers returns the stored memberships of a project. Any member may
// look; outsiders get ErrForbidden.
func (s *MembershipService) ListMembers(ctx context.Context, projectID string) ([]model.Membership, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	_, role, err := s.roles.load(ctx, projectID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if role.Role == model.RoleNone {
		return nil, apperror.Forbidden("only project members can view the member list")
	}

	members, err := s.memberships.ListMemberships(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing members of project %s: %w", projectID, err)
	}
	return members, nil
}

// SetMemberRole moves a member between admin and member. Owner only.
func (s *MembershipService) SetMemberRole(ctx context.Context, projectID, userID string, role model.Role) error {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return err
	}

	role = model.Role(strings.TrimSpace(string(role)))
	if !role.IsMembershipRole() {
		return apperror.ValidationFailed("role", "role must be admin or member")
	}

	project, callerRole, err := s.roles.load(ctx, projectID, caller.UserID)
	if err != nil {
		return err
	}
	if err := requireOwner(callerRole); err != nil {
		return err
	}
	if userID == project.OwnerID {
		return apperror.ValidationFailed("userId", "the owner's role cannot be changed")
	}

	if err := s.memberships.UpdateMembershipRole(ctx, projectID, userID, role); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		s.logger.Error("failed to update member role",
			slog.String("projectID", projectID),
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("updating member role: %w", err)
	}

	s.logger.Info("member role changed",
		slog.String("projectID", projectID),
		slog.String("userID", userID),
		slog.String("role", string(role)),
		slog.String("by", caller.UserID),
	)
	return nil
}

// RemoveMember deletes a membership.
//
// Owners may remove anyone, admins may remove plain members, and any member
// may remove themselves. The owner has no membership row and cannot be
// removed.
func (s *MembershipService) RemoveMember(ctx context.Context, projectID, userID string) error {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return err
	}

	project, callerRole, err := s.roles.load(ctx, projectID, caller.UserID)
	if err != nil {
		return err
	}
	if userID == project.OwnerID {
		return apperror.ValidationFailed("userId", "the project owner cannot be removed")
	}

	if userID != caller.UserID {
		if err := requirePower(callerRole); err != nil {
			return err
		}
		if !callerRole.IsOwner {
			members, err := s.memberships.ListMemberships(ctx, projectID)
			if err != nil {
				return fmt.Errorf("listing members of project %s: %w", projectID, err)
			}
			if model.ResolveRole(project, userID, members).IsAdmin {
				return apperror.Forbidden("only the owner can remove an admin")
			}
		}
	}

	if err := s.memberships.DeleteMembership(ctx, projectID, userID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		return fmt.Errorf("removing member: %w", err)
	}

	s.logger.Info("member removed",
		slog.String("projectID", projectID),
		slog.String("userID", userID),
		slog.String("by", caller.UserID),
	)
	return nil
}
