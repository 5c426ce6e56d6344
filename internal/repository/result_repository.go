package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guardianview/guardian-backend/internal/model"
)

// ResultRepository persists submitted exam results and reads back the
// violation audit written by the background worker.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Create inserts a terminal session's result row.
func (r *ResultRepository) Create(ctx context.Context, res *model.ExamResult) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_results (session_id, candidate, timed_out, answered_count, question_count, violation_count, submitted_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)
         ON CONFLICT (session_id) DO NOTHING`,
		res.SessionID, res.Candidate, res.TimedOut, res.AnsweredCount, res.QuestionCount, res.ViolationCount, res.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// ListByCandidate returns a candidate's past results, most recent first.
func (r *ResultRepository) ListByCandidate(ctx context.Context, candidate string) ([]model.ExamResult, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, candidate, timed_out, answered_count, question_count, violation_count, submitted_at
         FROM exam_results WHERE candidate = $1 ORDER BY submitted_at DESC`,
		candidate,
	)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	var results []model.ExamResult
	for rows.Next() {
		var res model.ExamResult
		if err := rows.Scan(&res.SessionID, &res.Candidate, &res.TimedOut, &res.AnsweredCount,
			&res.QuestionCount, &res.ViolationCount, &res.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// ListViolationsBySession returns the audited violations of one session in
// chronological order.
func (r *ResultRepository) ListViolationsBySession(ctx context.Context, sessionID uuid.UUID) ([]model.Violation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT cause, message, recorded_at FROM proctor_violations
         WHERE session_id = $1 ORDER BY recorded_at ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	defer rows.Close()

	var violations []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.Cause, &v.Message, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}
