package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/gitpilot/internal/model"
	"github.com/sakif/gitpilot/internal/repository"
)

var _ repository.MembershipRepository = (*DB)(nil)

// ListMemberships returns the project's memberships in join order.
func (db *DB) ListMemberships(ctx context.Context, projectID string) ([]model.Membership, error) {
	memberships := []model.Membership{}
	err := db.conn.SelectContext(ctx, &memberships,
		`SELECT project_id, user_id, role, joined_at
		 FROM project_members
		 WHERE project_id = ?
		 ORDER BY joined_at, user_id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing members of project %s: %w", projectID, err)
	}
	return memberships, nil
}

func (db *DB) UpdateMembershipRole(ctx context.Context, projectID, userID string, role model.Role) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE project_members SET role = ? WHERE project_id = ? AND user_id = ?`,
		role, projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating role of %s in project %s: %w", userID, projectID, err)
	}
	return requireOneRow(result, "membership", projectID+"/"+userID)
}

func (db *DB) DeleteMembership(ctx context.Context, projectID, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?`,
		projectID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing %s from project %s: %w", userID, projectID, err)
	}
	return requireOneRow(result, "membership", projectID+"/"+userID)
}
