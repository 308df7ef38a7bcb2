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
	"github.com/sakif/gitpilot/internal/events"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

const MaxJoinMessageLength = 500

// Requester sources recorded on the snapshot.
const (
	SourcePublic = "public"
	SourceInvite = "invite"
)

// JoinPolicy holds the tunable rules of the ledger.
type JoinPolicy struct {
	// AllowDuplicatePending lets a user hold more than one pending request
	// for the same project. When false a second one is a conflict.
	AllowDuplicatePending bool
}

// SubmitInput is what a requester supplies besides their identity.
type SubmitInput struct {
	Message    string
	InviteCode string
}

// JoinRequestService is the join request ledger and the resolution service.
type JoinRequestService struct {
	roles     roleLoader
	requests  repository.JoinRequestRepository
	invites   *auth.InviteCodes
	publisher events.Publisher
	policy    JoinPolicy
	logger    *slog.Logger
}

func NewJoinRequestService(
	projects repository.ProjectRepository,
	memberships repository.MembershipRepository,
	requests repository.JoinRequestRepository,
	invites *auth.InviteCodes,
	publisher events.Publisher,
	policy JoinPolicy,
	logger *slog.Logger,
) *JoinRequestService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &JoinRequestService{
		roles:     roleLoader{projects: projects, memberships: memberships},
		requests:  requests,
		invites:   invites,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
	}
}

// Submit records a pending request by the caller to join projectID.
//
// A project accepts requests when it is public, or when the caller presents
// the project's current invite code. The owner and existing members cannot
// apply.
func (s *JoinRequestService) Submit(ctx context.Context, projectID string, in SubmitInput) (*model.JoinRequest, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	message := strings.TrimSpace(in.Message)
	if utf8.RuneCountInString(message) > MaxJoinMessageLength {
		return nil, apperror.ValidationFailed("message",
			fmt.Sprintf("message must be %d characters or less", MaxJoinMessageLength))
	}

	project, role, err := s.roles.load(ctx, projectID, caller.UserID)
	if err != nil {
		return nil, err
	}

	source, err := s.admissionSource(project, strings.TrimSpace(in.InviteCode))
	if err != nil {
		return nil, err
	}

	if role.IsOwner || role.IsMember {
		return nil, apperror.ValidationFailed("projectId", "you are already part of this project")
	}

	req := &model.JoinRequest{
		ProjectID: project.ID,
		Requester: model.Requester{
			UserID: caller.UserID,
			Name:   caller.Name,
			Image:  caller.PictureURL,
			Source: source,
		},
		Message: message,
	}
	opts := repository.CreateJoinRequestOptions{AllowDuplicatePending: s.policy.AllowDuplicatePending}
	if err := s.requests.CreateJoinRequest(ctx, req, opts); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		s.logger.Error("failed to create join request",
			slog.String("projectID", projectID),
			slog.String("userID", caller.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating join request: %w", err)
	}

	s.logger.Info("join request submitted",
		slog.String("id", req.ID),
		slog.String("projectID", req.ProjectID),
		slog.String("userID", caller.UserID),
		slog.String("source", source),
	)
	s.publish(ctx, events.JoinRequestSubmitted(req))

	return req, nil
}

// admissionSource applies the public-or-invite gate.
func (s *JoinRequestService) admissionSource(project *model.Project, code string) (string, error) {
	if code != "" {
		err := s.invites.Verify(project.InviteCodeHash, code)
		if err == nil {
			return SourceInvite, nil
		}
		if !errors.Is(err, auth.ErrInviteMismatch) {
			return "", fmt.Errorf("checking invite code: %w", err)
		}
		if !project.IsPublic {
			return "", apperror.ValidationFailed("inviteCode", "invite code is invalid or expired")
		}
	}
	if !project.IsPublic {
		return "", apperror.ValidationFailed("inviteCode", "this project only accepts requests with an invite code")
	}
	return SourcePublic, nil
}

// List returns the project's requests newest first. Only members (including
// admins and the owner) may view them. An empty status lists every status.
func (s *JoinRequestService) List(ctx context.Context, projectID string, status model.JoinRequestStatus) ([]model.JoinRequest, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if status != "" && !status.Valid() {
		return nil, apperror.ValidationFailed("status", "status must be pending, accepted or rejected")
	}

	_, role, err := s.roles.load(ctx, projectID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if role.Role == model.RoleNone {
		return nil, apperror.Forbidden("only project members can view join requests")
	}

	requests, err := s.requests.ListJoinRequests(ctx, projectID, repository.JoinRequestFilter{Status: status})
	if err != nil {
		s.logger.Error("failed to list join requests",
			slog.String("projectID", projectID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing join requests: %w", err)
	}
	return requests, nil
}

// Resolve accepts or rejects a pending request.
//
// Authorization is checked before state: a caller without a power role gets
// ErrForbidden even for a request that was already resolved. The status
// change and, on acceptance, the new membership are committed together by
// the store; a concurrent resolver that loses gets ErrInvalidState.
func (s *JoinRequestService) Resolve(ctx context.Context, requestID string, decision model.JoinRequestStatus) (*model.JoinRequest, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if !decision.IsDecision() {
		return nil, apperror.ValidationFailed("decision", "decision must be accepted or rejected")
	}

	req, err := s.requests.GetJoinRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	_, role, err := s.roles.load(ctx, req.ProjectID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if err := requirePower(role); err != nil {
		return nil, err
	}

	if req.Status != model.StatusPending {
		return nil, apperror.InvalidState("join request", req.ID, string(req.Status))
	}

	resolved, err := s.requests.ResolveJoinRequest(ctx, requestID, decision, caller.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrInvalidState) || errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to resolve join request",
			slog.String("id", requestID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("resolving join request: %w", err)
	}

	s.logger.Info("join request resolved",
		slog.String("id", resolved.ID),
		slog.String("projectID", resolved.ProjectID),
		slog.String("status", string(resolved.Status)),
		slog.String("by", caller.UserID),
	)
	s.publish(ctx, events.JoinRequestResolved(resolved))

	return resolved, nil
}

// publish never fails the operation: the change is already committed.
func (s *JoinRequestService) publish(ctx context.Context, e events.Event) {
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event",
			slog.String("type", e.Type),
			slog.String("requestID", e.RequestID),
			slog.String("error", err.Error()),
		)
	}
}
