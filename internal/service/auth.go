package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/gitpilot/internal/auth"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

// AuthService turns a GitHub login into a stored user and a session token.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                   ↘ TokenService (JWT)
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User     *model.User
	Identity auth.Identity
	Token    string
}

// LoginOrRegisterGitHub upserts the user keyed by GitHub ID and issues a
// session token carrying their identity. The first login creates the user;
// later logins refresh the profile fields.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		TokenIdentifier: ghUser.TokenIdentifier(),
		GitHubID:        ghUser.ID,
		GitHubUsername:  ghUser.Login,
		Name:            ghUser.DisplayName(),
		Email:           ghUser.Email,
		AvatarURL:       ghUser.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.GitHubUsername),
	)

	id := auth.Identity{
		UserID:          user.ID,
		TokenIdentifier: user.TokenIdentifier,
		Name:            user.Name,
		Email:           user.Email,
		PictureURL:      user.AvatarURL,
	}
	token, err := s.tokens.Generate(id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{User: user, Identity: id, Token: token}, nil
}

// CurrentUser returns the caller's stored record.
func (s *AuthService) CurrentUser(ctx context.Context) (*model.User, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.users.GetUserByID(ctx, caller.UserID)
}

// CompleteOnboarding marks the caller as onboarded and returns the updated
// record.
func (s *AuthService) CompleteOnboarding(ctx context.Context) (*model.User, error) {
	caller, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.users.CompleteOnboarding(ctx, caller.UserID); err != nil {
		return nil, fmt.Errorf("service/auth: completing onboarding for %s: %w", caller.UserID, err)
	}
	s.logger.Info("onboarding completed", slog.String("userID", caller.UserID))
	return s.users.GetUserByID(ctx, caller.UserID)
}
