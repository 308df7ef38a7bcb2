package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const selectUser = `
	SELECT id, token_identifier, github_id, github_username, name, email, avatar_url,
	       plan, onboarding_completed, created_at, updated_at
	FROM users`

// Upsert inserts or updates a user keyed by GitHub ID.
//
// An existing user keeps their internal ID, plan and onboarding flag; the
// provider-supplied profile fields are refreshed. After the call user holds
// the canonical record.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	var existingID string
	err := db.conn.GetContext(ctx, &existingID,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	now := time.Now().UTC()

	if existingID != "" {
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users
			 SET token_identifier = ?, github_username = ?, name = ?, email = ?, avatar_url = ?, updated_at = ?
			 WHERE id = ?`,
			user.TokenIdentifier,
			user.GitHubUsername,
			user.Name,
			user.Email,
			user.AvatarURL,
			now,
			existingID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", existingID, err)
		}
	} else {
		if user.Plan == "" {
			user.Plan = model.PlanFree
		}
		_, err = db.conn.ExecContext(ctx,
			`INSERT INTO users (id, token_identifier, github_id, github_username, name, email,
			                    avatar_url, plan, onboarding_completed, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			xid.New().String(),
			user.TokenIdentifier,
			user.GitHubID,
			user.GitHubUsername,
			user.Name,
			user.Email,
			user.AvatarURL,
			user.Plan,
			user.OnboardingCompleted,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
		}
	}

	var stored model.User
	if err := db.conn.GetContext(ctx, &stored, selectUser+` WHERE github_id = ?`, user.GitHubID); err != nil {
		return fmt.Errorf("sqlite: reading back user (githubID=%d): %w", user.GitHubID, err)
	}
	*user = stored
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.conn.GetContext(ctx, &u, selectUser+` WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return &u, nil
}

// CompleteOnboarding sets the onboarding flag. Calling it twice is harmless.
func (db *DB) CompleteOnboarding(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET onboarding_completed = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: completing onboarding for %s: %w", id, err)
	}
	return requireOneRow(result, "user", id)
}

// requireOneRow maps a zero RowsAffected to apperror.NotFound.
func requireOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
