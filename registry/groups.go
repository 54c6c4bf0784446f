// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package registry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/danielhkuo/assocvote/db"
	"github.com/danielhkuo/assocvote/models"
)

func (r *Registry) CreateGroup(ctx context.Context, req models.GroupRequest) (models.Group, error) {
	if err := ValidateGroup(&req); err != nil {
		return models.Group{}, err
	}

	now := r.now().UTC()
	g := models.Group{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Description:     req.Description,
		EstablishedYear: req.EstablishedYear,
		Valid:           req.Valid == nil || *req.Valid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO voting_group (id, name, description, established_year, valid, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, g.ID, g.Name, g.Description, g.EstablishedYear, g.Valid, g.CreatedAt, g.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return models.Group{}, ErrDuplicateGroup
	}
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to create group: %w", err)
	}

	slog.Info("group created", "group_id", g.ID, "name", g.Name)
	return g, nil
}

func (r *Registry) UpdateGroup(ctx context.Context, id string, req models.GroupRequest) (models.Group, error) {
	if err := ValidateGroup(&req); err != nil {
		return models.Group{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE voting_group SET name = $1, description = $2, established_year = $3,
			valid = $4, updated_at = $5
		WHERE id = $6
	`, req.Name, req.Description, req.EstablishedYear, req.Valid == nil || *req.Valid, r.now().UTC(), id)
	if db.IsUniqueViolation(err) {
		return models.Group{}, ErrDuplicateGroup
	}
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to update group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Group{}, ErrNotFound
	}

	return r.Group(ctx, r.db, id)
}

// Group loads a group by id
func (r *Registry) Group(ctx context.Context, q db.Querier, id string) (models.Group, error) {
	g, err := db.ScanGroup(q.QueryRowContext(ctx,
		`SELECT `+db.GroupColumns("")+` FROM voting_group WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return models.Group{}, ErrNotFound
	}
	if err != nil {
		return models.Group{}, fmt.Errorf("failed to load group: %w", err)
	}
	return g, nil
}

// ListGroups returns every group ordered by name
func (r *Registry) ListGroups(ctx context.Context) ([]models.Group, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+db.GroupColumns("")+` FROM voting_group ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		g, err := db.ScanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// DeleteGroup removes a group and its voters. Groups that still have
// candidates cannot be deleted.
func (r *Registry) DeleteGroup(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM voting_group WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return ErrProtected
	}
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.Info("group deleted", "group_id", id)
	return nil
}
