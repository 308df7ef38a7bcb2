package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

// RepositoryFetcher looks up repository metadata on the code host.
// *github.Client implements it.
type RepositoryFetcher interface {
	FetchRepository(ctx context.Context, owner, name string) (*model.Repository, error)
}

// GitHub owner and repository names: letters, digits, '-', '_' and '.'.
var repoNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,100}$`)

// RepositoryService connects a GitHub repository to a project.
type RepositoryService struct {
	roles   roleLoader
	repos   repository.RepoConnectionRepository
	fetcher RepositoryFetcher
	logger  *slog.Logger
}

func NewRepositoryService(
	projects repository.ProjectRepository,
	memberships repository.MembershipRepository,
	repos repository.RepoConnectionRepository,
	fetcher RepositoryFetcher,
	logger *slog.Logger,
) *RepositoryService {
	return &RepositoryService{
		roles:   roleLoader{projects: projects, memberships: memberships},
		repos:   repos,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Connect fetches owner/name from GitHub and links it to projectID.
// Only the project owner may connect, and each user may connect one
// repository in total.
func (s *RepositoryService) Connect(ctx context.Context, projectID, owner, name string) (*model.Repository, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	owner, name = strings.TrimSpace(owner), strings.TrimSpace(name)
	if !repoNamePattern.MatchString(owner) {
		return nil, apperror.ValidationFailed("owner", "repository owner is invalid")
	}
	if !repoNamePattern.MatchString(name) {
		return nil, apperror.ValidationFailed("name", "repository name is invalid")
	}

	_, role, err := s.roles.load(ctx, projectID, caller.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireOwner(role); err != nil {
		return nil, err
	}

	// Cheap pre-check so a second connection fails before calling GitHub.
	// ConnectRepository repeats it inside its transaction.
	if _, err := s.repos.GetRepositoryByUser(ctx, caller.UserID); err == nil {
		return nil, apperror.Conflict("a repository is already connected for this user")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("checking connected repository: %w", err)
	}

	repo, err := s.fetcher.FetchRepository(ctx, owner, name)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		s.logger.Error("failed to fetch repository metadata",
			slog.String("repo", owner+"/"+name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("fetching repository metadata: %w", err)
	}
	repo.UserID = caller.UserID
	repo.ProjectID = projectID

	if err := s.repos.ConnectRepository(ctx, repo); err != nil {
		if errors.Is(err, apperror.ErrConflict) || errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("connecting repository: %w", err)
	}

	s.logger.Info("repository connected",
		slog.String("projectID", projectID),
		slog.String("repo", repo.FullName),
		slog.String("userID", caller.UserID),
	)
	return repo, nil
}

// GetMine returns the caller's connected repository.
func (s *RepositoryService) GetMine(ctx context.Context) (*model.Repository, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.repos.GetRepositoryByUser(ctx, caller.UserID)
}
