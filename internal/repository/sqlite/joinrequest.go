package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/xid"
	"github.com/sakif/gitpilot/internal/apperror"
	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

var _ repository.JoinRequestRepository = (*DB)(nil)

const selectJoinRequest = `
	SELECT id, project_id, requester_id, requester_name, requester_image, requester_source,
	       message, status, resolved_by, created_at, resolved_at
	FROM join_requests`

type joinRequestRow struct {
	ID              string        `db:"id"`
	ProjectID       string        `db:"project_id"`
	RequesterID     string        `db:"requester_id"`
	RequesterName   string        `db:"requester_name"`
	RequesterImage  string        `db:"requester_image"`
	RequesterSource string        `db:"requester_source"`
	Message         string        `db:"message"`
	Status          string        `db:"status"`
	ResolvedBy      string        `db:"resolved_by"`
	CreatedAt       int64         `db:"created_at"`
	ResolvedAt      sql.NullInt64 `db:"resolved_at"`
}

func (r joinRequestRow) toModel() model.JoinRequest {
	req := model.JoinRequest{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		Requester: model.Requester{
			UserID: r.RequesterID,
			Name:   r.RequesterName,
			Image:  r.RequesterImage,
			Source: r.RequesterSource,
		},
		Message:    r.Message,
		Status:     model.JoinRequestStatus(r.Status),
		ResolvedBy: r.ResolvedBy,
		CreatedAt:  time.Unix(0, r.CreatedAt).UTC(),
	}
	if r.ResolvedAt.Valid {
		t := time.Unix(0, r.ResolvedAt.Int64).UTC()
		req.ResolvedAt = &t
	}
	return req
}

// CreateJoinRequest inserts req inside a transaction that also performs the
// duplicate check and picks a creation time later than the project's newest
// request.
func (db *DB) CreateJoinRequest(ctx context.Context, req *model.JoinRequest, opts repository.CreateJoinRequestOptions) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning join request insert: %w", err)
	}
	defer tx.Rollback()

	if !opts.AllowDuplicatePending {
		var pending int
		err = tx.GetContext(ctx, &pending,
			`SELECT COUNT(*) FROM join_requests
			 WHERE project_id = ? AND requester_id = ? AND status = 'pending'`,
			req.ProjectID, req.Requester.UserID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: checking pending join requests: %w", err)
		}
		if pending > 0 {
			return apperror.Conflict("a join request for this project is already pending")
		}
	}

	var latest int64
	err = tx.GetContext(ctx, &latest,
		`SELECT COALESCE(MAX(created_at), 0) FROM join_requests WHERE project_id = ?`,
		req.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: reading latest join request time: %w", err)
	}

	created := time.Now().UTC().UnixNano()
	if created <= latest {
		created = latest + 1
	}

	req.ID = xid.New().String()
	req.Status = model.StatusPending
	req.ResolvedBy = ""
	req.ResolvedAt = nil
	req.CreatedAt = time.Unix(0, created).UTC()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO join_requests (id, project_id, requester_id, requester_name, requester_image,
		                            requester_source, message, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		req.ID,
		req.ProjectID,
		req.Requester.UserID,
		req.Requester.Name,
		req.Requester.Image,
		req.Requester.Source,
		req.Message,
		string(req.Status),
		created,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting join request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing join request: %w", err)
	}
	return nil
}

func (db *DB) GetJoinRequest(ctx context.Context, id string) (*model.JoinRequest, error) {
	return getJoinRequest(ctx, db.conn, id)
}

// getJoinRequest works on the pool or inside a transaction.
func getJoinRequest(ctx context.Context, q sqlx.QueryerContext, id string) (*model.JoinRequest, error) {
	var row joinRequestRow
	if err := sqlx.GetContext(ctx, q, &row, selectJoinRequest+` WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("join request", id)
		}
		return nil, fmt.Errorf("sqlite: getting join request %s: %w", id, err)
	}
	req := row.toModel()
	return &req, nil
}

// ListJoinRequests returns the project's requests newest first.
func (db *DB) ListJoinRequests(ctx context.Context, projectID string, filter repository.JoinRequestFilter) ([]model.JoinRequest, error) {
	query := selectJoinRequest + ` WHERE project_id = ?`
	args := []any{projectID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	var rows []joinRequestRow
	if err := db.conn.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("sqlite: listing join requests of project %s: %w", projectID, err)
	}

	requests := make([]model.JoinRequest, 0, len(rows))
	for _, r := range rows {
		requests = append(requests, r.toModel())
	}
	return requests, nil
}

// ResolveJoinRequest applies decision to a pending request.
//
// The status flip is a conditional UPDATE (status = 'pending'); if another
// resolver got there first it affects zero rows and the whole transaction is
// rolled back with apperror.ErrInvalidState. On acceptance the membership
// insert shares the transaction, and ON CONFLICT DO NOTHING keeps an existing
// membership from being duplicated.
func (db *DB) ResolveJoinRequest(ctx context.Context, id string, decision model.JoinRequestStatus, resolverID string) (*model.JoinRequest, error) {
	if !decision.IsDecision() {
		return nil, apperror.ValidationFailed("decision", fmt.Sprintf("invalid decision %q", decision))
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: beginning join request resolution: %w", err)
	}
	defer tx.Rollback()

	current, err := getJoinRequest(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != model.StatusPending {
		return nil, apperror.InvalidState("join request", id, string(current.Status))
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE join_requests
		 SET status = ?, resolved_by = ?, resolved_at = ?
		 WHERE id = ? AND status = 'pending'`,
		string(decision), resolverID, now.UnixNano(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating join request %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return nil, apperror.InvalidState("join request", id, "already resolved")
	}

	if decision == model.StatusAccepted {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO project_members (project_id, user_id, role, joined_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (project_id, user_id) DO NOTHING`,
			current.ProjectID, current.Requester.UserID, string(model.RoleMember), now,
		)
		if err != nil {
			return nil, fmt.Errorf("sqlite: adding member %s to project %s: %w",
				current.Requester.UserID, current.ProjectID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: committing join request %s: %w", id, err)
	}

	current.Status = decision
	current.ResolvedBy = resolverID
	current.ResolvedAt = &now
	return current, nil
}
