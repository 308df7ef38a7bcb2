package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

var _ repository.ProjectRepository = (*DB)(nil)

const selectProject = `
	SELECT p.id, p.name, p.description, p.tags, p.is_public, p.owner_id,
	       p.repo_name, p.repo_owner, p.repo_url, p.stars, p.forks, p.upvotes,
	       p.invite_code_hash, p.created_at, p.updated_at
	FROM projects p`

// projectRow is the flat shape of a projects row. Tags are a JSON array.
type projectRow struct {
	ID             string    `db:"id"`
	Name           string    `db:"name"`
	Description    string    `db:"description"`
	Tags           string    `db:"tags"`
	IsPublic       bool      `db:"is_public"`
	OwnerID        string    `db:"owner_id"`
	RepoName       string    `db:"repo_name"`
	RepoOwner      string    `db:"repo_owner"`
	RepoURL        string    `db:"repo_url"`
	Stars          int       `db:"stars"`
	Forks          int       `db:"forks"`
	Upvotes        int       `db:"upvotes"`
	InviteCodeHash string    `db:"invite_code_hash"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r projectRow) toModel() (model.Project, error) {
	tags := []string{}
	if r.Tags != "" {
		if err := json.Unmarshal([]byte(r.Tags), &tags); err != nil {
			return model.Project{}, fmt.Errorf("sqlite: decoding tags of project %s: %w", r.ID, err)
		}
	}
	return model.Project{
		ID:             r.ID,
		Name:           r.Name,
		Description:    r.Description,
		Tags:           tags,
		IsPublic:       r.IsPublic,
		OwnerID:        r.OwnerID,
		Repo:           model.RepoSummary{Name: r.RepoName, Owner: r.RepoOwner, URL: r.RepoURL},
		Stars:          r.Stars,
		Forks:          r.Forks,
		Upvotes:        r.Upvotes,
		InviteCodeHash: r.InviteCodeHash,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding tags: %w", err)
	}
	return string(b), nil
}

// CreateProject inserts project and fills in its ID and timestamps.
func (db *DB) CreateProject(ctx context.Context, project *model.Project) error {
	tags, err := encodeTags(project.Tags)
	if err != nil {
		return err
	}

	project.ID = xid.New().String()
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, tags, is_public, owner_id,
		                       repo_name, repo_owner, repo_url, stars, forks, upvotes,
		                       invite_code_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		project.ID,
		project.Name,
		project.Description,
		tags,
		project.IsPublic,
		project.OwnerID,
		project.Repo.Name,
		project.Repo.Owner,
		project.Repo.URL,
		project.Stars,
		project.Forks,
		project.Upvotes,
		project.InviteCodeHash,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating project: %w", err)
	}
	return nil
}

// GetProject returns apperror.ErrNotFound if no project has that ID.
func (db *DB) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var row projectRow
	if err := db.conn.GetContext(ctx, &row, selectProject+` WHERE p.id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("project", id)
		}
		return nil, fmt.Errorf("sqlite: getting project %s: %w", id, err)
	}
	p, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPublicProjects pages through public projects, newest first.
func (db *DB) ListPublicProjects(ctx context.Context, opts repository.ListOptions) ([]model.Project, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var rows []projectRow
	err := db.conn.SelectContext(ctx, &rows,
		selectProject+` WHERE p.is_public = 1 ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing public projects: %w", err)
	}
	return toProjects(rows)
}

// ListProjectsForUser returns projects the user owns or belongs to, newest first.
func (db *DB) ListProjectsForUser(ctx context.Context, userID string) ([]model.Project, error) {
	var rows []projectRow
	err := db.conn.SelectContext(ctx, &rows,
		selectProject+`
		 LEFT JOIN project_members m ON m.project_id = p.id AND m.user_id = ?
		 WHERE p.owner_id = ? OR m.user_id IS NOT NULL
		 ORDER BY p.created_at DESC, p.id DESC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing projects for user %s: %w", userID, err)
	}
	return toProjects(rows)
}

func toProjects(rows []projectRow) ([]model.Project, error) {
	projects := make([]model.Project, 0, len(rows))
	for _, r := range rows {
		p, err := r.toModel()
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// UpdateProject writes the editable fields (name, description, tags,
// visibility). Counters, owner and repository summary are not touched.
func (db *DB) UpdateProject(ctx context.Context, project *model.Project) error {
	tags, err := encodeTags(project.Tags)
	if err != nil {
		return err
	}
	project.UpdatedAt = time.Now().UTC()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE projects
		 SET name = ?, description = ?, tags = ?, is_public = ?, updated_at = ?
		 WHERE id = ?`,
		project.Name,
		project.Description,
		tags,
		project.IsPublic,
		project.UpdatedAt,
		project.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating project %s: %w", project.ID, err)
	}
	return requireOneRow(result, "project", project.ID)
}

// IncrementUpvotes adds one upvote and returns the new count.
func (db *DB) IncrementUpvotes(ctx context.Context, id string) (int, error) {
	var upvotes int
	err := db.conn.GetContext(ctx, &upvotes,
		`UPDATE projects SET upvotes = upvotes + 1 WHERE id = ? RETURNING upvotes`, id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("project", id)
		}
		return 0, fmt.Errorf("sqlite: upvoting project %s: %w", id, err)
	}
	return upvotes, nil
}

// SetInviteCodeHash replaces the project's invite code hash. An empty hash
// disables invites.
func (db *DB) SetInviteCodeHash(ctx context.Context, id, hash string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE projects SET invite_code_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting invite code for project %s: %w", id, err)
	}
	return requireOneRow(result, "project", id)
}
