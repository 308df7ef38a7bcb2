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

var _ repository.RepoConnectionRepository = (*DB)(nil)

const selectRepository = `
	SELECT id, user_id, project_id, external_id, name, owner, full_name, url,
	       stars, forks, created_at, updated_at
	FROM repositories`

// GetRepositoryByUser returns apperror.ErrNotFound when the user has not
// connected a repository.
func (db *DB) GetRepositoryByUser(ctx context.Context, userID string) (*model.Repository, error) {
	var r model.Repository
	if err := db.conn.GetContext(ctx, &r, selectRepository+` WHERE user_id = ?`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("repository for user", userID)
		}
		return nil, fmt.Errorf("sqlite: getting repository of user %s: %w", userID, err)
	}
	return &r, nil
}

// ConnectRepository inserts repo and mirrors its summary and counters onto
// the owning project in one transaction.
func (db *DB) ConnectRepository(ctx context.Context, repo *model.Repository) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning repository connection: %w", err)
	}
	defer tx.Rollback()

	var existing int
	if err := tx.GetContext(ctx, &existing,
		`SELECT COUNT(*) FROM repositories WHERE user_id = ?`, repo.UserID,
	); err != nil {
		return fmt.Errorf("sqlite: checking existing repository: %w", err)
	}
	if existing > 0 {
		return apperror.Conflict("a repository is already connected for this user")
	}

	now := time.Now().UTC()
	repo.ID = xid.New().String()
	repo.CreatedAt = now
	repo.UpdatedAt = now

	_, err = tx.ExecContext(ctx,
		`INSERT INTO repositories (id, user_id, project_id, external_id, name, owner, full_name,
		                           url, stars, forks, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		repo.ID,
		repo.UserID,
		repo.ProjectID,
		repo.ExternalID,
		repo.Name,
		repo.Owner,
		repo.FullName,
		repo.URL,
		repo.Stars,
		repo.Forks,
		repo.CreatedAt,
		repo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting repository %s: %w", repo.FullName, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE projects
		 SET repo_name = ?, repo_owner = ?, repo_url = ?, stars = ?, forks = ?, updated_at = ?
		 WHERE id = ?`,
		repo.Name, repo.Owner, repo.URL, repo.Stars, repo.Forks, now, repo.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating repository summary of project %s: %w", repo.ProjectID, err)
	}
	if err := requireOneRow(result, "project", repo.ProjectID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing repository connection: %w", err)
	}
	return nil
}
