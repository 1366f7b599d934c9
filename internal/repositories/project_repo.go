package repositories

import (
	"context"

	"github.com/google/uuid"
)

// ProjectRepo covers project membership and the per-project automation switch.
type ProjectRepo struct {
	db DB
}

func NewProjectRepo(db DB) *ProjectRepo {
	return &ProjectRepo{db: db}
}

// GetMemberRole returns the user's role in the project, or ErrNotFound.
func (r *ProjectRepo) GetMemberRole(ctx context.Context, projectID, userID uuid.UUID) (string, error) {
	var role string
	err := r.db.QueryRow(ctx, `
		SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2
	`, projectID, userID).Scan(&role)
	if err != nil {
		return "", wrapErr("get member role", err)
	}
	return role, nil
}

func (r *ProjectRepo) GetOwner(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := r.db.QueryRow(ctx, `SELECT owner_user_id FROM projects WHERE id = $1`, projectID).Scan(&owner)
	if err != nil {
		return uuid.Nil, wrapErr("get project owner", err)
	}
	return owner, nil
}

func (r *ProjectRepo) IsAutomationEnabled(ctx context.Context, projectID uuid.UUID) (bool, error) {
	var enabled bool
	err := r.db.QueryRow(ctx, `SELECT automation_enabled FROM projects WHERE id = $1`, projectID).Scan(&enabled)
	if err != nil {
		return false, wrapErr("read automation switch", err)
	}
	return enabled, nil
}

func (r *ProjectRepo) SetAutomationEnabled(ctx context.Context, projectID uuid.UUID, enabled bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE projects SET automation_enabled = $2 WHERE id = $1`, projectID, enabled)
	if err != nil {
		return wrapErr("set automation switch", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAutomationProjects returns projects with at least one active rule,
// whatever their kill switch says.
func (r *ProjectRepo) ListAutomationProjects(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id FROM projects p
		WHERE EXISTS (SELECT 1 FROM automation_rules r WHERE r.project_id = p.id AND r.state = 'ACTIVE')
		ORDER BY p.id
	`)
	if err != nil {
		return nil, wrapErr("list automation projects", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr("scan project id", err)
		}
		ids = append(ids, id)
	}
	return ids, wrapErr("list automation projects", rows.Err())
}
