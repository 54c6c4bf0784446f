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

// candidateWriteError maps constraint failures on candidate writes
func candidateWriteError(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return ErrDuplicateCandidate
	case db.IsForeignKeyViolation(err):
		return ErrGroupNotFound
	}
	return fmt.Errorf("failed to write candidate: %w", err)
}

func (r *Registry) CreateCandidate(ctx context.Context, req models.CandidateRequest) (models.Candidate, error) {
	if err := ValidateCandidate(&req); err != nil {
		return models.Candidate{}, err
	}

	now := r.now().UTC()
	c := models.Candidate{
		ID:             uuid.NewString(),
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Gender:         req.Gender,
		StudentNumber:  req.StudentNumber,
		NationalID:     req.NationalID,
		EducationLevel: req.EducationLevel,
		FieldOfStudy:   req.FieldOfStudy,
		Phone:          req.Phone,
		CandidateCode:  req.CandidateCode,
		GroupID:        req.GroupID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO candidate (id, first_name, last_name, gender, student_number, national_id,
			education_level, field_of_study, phone, candidate_code, group_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, c.ID, c.FirstName, c.LastName, c.Gender, c.StudentNumber, c.NationalID,
		c.EducationLevel, c.FieldOfStudy, c.Phone, c.CandidateCode, c.GroupID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return models.Candidate{}, candidateWriteError(err)
	}

	slog.Info("candidate created", "candidate_id", c.ID, "group_id", c.GroupID, "code", c.CandidateCode)
	return c, nil
}

func (r *Registry) UpdateCandidate(ctx context.Context, id string, req models.CandidateRequest) (models.Candidate, error) {
	if err := ValidateCandidate(&req); err != nil {
		return models.Candidate{}, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE candidate SET first_name = $1, last_name = $2, gender = $3, student_number = $4,
			national_id = $5, education_level = $6, field_of_study = $7, phone = $8,
			candidate_code = $9, group_id = $10, updated_at = $11
		WHERE id = $12
	`, req.FirstName, req.LastName, req.Gender, req.StudentNumber, req.NationalID, req.EducationLevel,
		req.FieldOfStudy, req.Phone, req.CandidateCode, req.GroupID, r.now().UTC(), id)
	if err != nil {
		return models.Candidate{}, candidateWriteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Candidate{}, ErrNotFound
	}

	return r.Candidate(ctx, r.db, id)
}

// Candidate loads a candidate by id
func (r *Registry) Candidate(ctx context.Context, q db.Querier, id string) (models.Candidate, error) {
	c, err := db.ScanCandidate(q.QueryRowContext(ctx,
		`SELECT `+db.CandidateColumns("")+` FROM candidate WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return models.Candidate{}, ErrNotFound
	}
	if err != nil {
		return models.Candidate{}, fmt.Errorf("failed to load candidate: %w", err)
	}
	return c, nil
}

// ListCandidates returns candidates ordered by code, optionally limited
// to one group
func (r *Registry) ListCandidates(ctx context.Context, groupID string) ([]models.Candidate, error) {
	if groupID != "" {
		return r.CandidatesInGroup(ctx, r.db, groupID)
	}
	return r.queryCandidates(ctx, r.db, `SELECT `+db.CandidateColumns("")+` FROM candidate ORDER BY candidate_code`)
}

// CandidatesInGroup returns the candidates a voter of the group may choose
func (r *Registry) CandidatesInGroup(ctx context.Context, q db.Querier, groupID string) ([]models.Candidate, error) {
	return r.queryCandidates(ctx, q,
		`SELECT `+db.CandidateColumns("")+` FROM candidate WHERE group_id = $1 ORDER BY candidate_code`, groupID)
}

func (r *Registry) queryCandidates(ctx context.Context, q db.Querier, query string, args ...any) ([]models.Candidate, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		c, err := db.ScanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// DeleteCandidate removes a candidate that has received no ballots
func (r *Registry) DeleteCandidate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM candidate WHERE id = $1`, id)
	if db.IsForeignKeyViolation(err) {
		return ErrProtected
	}
	if err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.Info("candidate deleted", "candidate_id", id)
	return nil
}
