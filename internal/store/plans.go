// ABOUTME: Plan persistence for SQLiteStore with the single-active-plan invariant
// ABOUTME: Creating a plan transactionally completes all prior non-completed plans

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreatePlan inserts a new draft plan for a session. All prior plans for the
// session that are not yet completed are transitioned to completed in the
// same transaction, so at most one plan per session is ever draft or active.
func (s *SQLiteStore) CreatePlan(ctx context.Context, sessionID, title, content string) (*Plan, error) {
	if title == "" {
		title = "Untitled Plan"
	}
	plan := &Plan{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Title:     title,
		Content:   content,
		Status:    PlanStatusDraft,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE plans SET status = ? WHERE session_id = ? AND status != ?`,
		PlanStatusCompleted, sessionID, PlanStatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("completing prior plans: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO plans (id, session_id, title, content, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		plan.ID, plan.SessionID, plan.Title, plan.Content, plan.Status, plan.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting plan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing plan create: %w", err)
	}

	s.logger.Debug("plan created", "session_id", sessionID, "plan_id", plan.ID)
	return plan, nil
}

// ListPlans returns plans for a session, newest first.
func (s *SQLiteStore) ListPlans(ctx context.Context, sessionID string) ([]*Plan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, title, content, status, created_at
		 FROM plans WHERE session_id = ? ORDER BY rowid DESC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying plans: %w", err)
	}
	defer rows.Close()

	plans := []*Plan{}
	for rows.Next() {
		plan := &Plan{}
		if err := rows.Scan(&plan.ID, &plan.SessionID, &plan.Title, &plan.Content, &plan.Status, &plan.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// GetActivePlan returns the newest plan with status draft or active.
func (s *SQLiteStore) GetActivePlan(ctx context.Context, sessionID string) (*Plan, error) {
	plan := &Plan{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, title, content, status, created_at
		 FROM plans WHERE session_id = ? AND status IN (?, ?)
		 ORDER BY rowid DESC LIMIT 1`,
		sessionID, PlanStatusDraft, PlanStatusActive,
	).Scan(&plan.ID, &plan.SessionID, &plan.Title, &plan.Content, &plan.Status, &plan.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying active plan: %w", err)
	}
	return plan, nil
}

// DeletePlan removes a plan from a session. Returns false when absent.
func (s *SQLiteStore) DeletePlan(ctx context.Context, sessionID, planID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM plans WHERE session_id = ? AND id = ?`, sessionID, planID,
	)
	if err != nil {
		return false, fmt.Errorf("deleting plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading rows affected: %w", err)
	}
	return n > 0, nil
}
