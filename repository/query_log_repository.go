package repository

import (
	"context"
	"fmt"

	"regulaite-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// QueryLogRepository handles database operations for the query audit log
type QueryLogRepository struct {
	db *pgxpool.Pool
}

// NewQueryLogRepository creates a new query log repository
func NewQueryLogRepository(db *pgxpool.Pool) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

// Create records one resolved query
func (r *QueryLogRepository) Create(ctx context.Context, entry *models.QueryLog) error {
	query := `
		INSERT INTO query_logs (
			username, query, mode, backend, strict, weak,
			status, attempts, error_message, duration_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	err := r.db.QueryRow(
		ctx, query,
		entry.Username,
		entry.Query,
		entry.Mode,
		entry.Backend,
		entry.Strict,
		entry.Weak,
		entry.Status,
		entry.Attempts,
		entry.ErrorMessage,
		entry.DurationMS,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert query log: %w", err)
	}
	return nil
}

// ListByUsername retrieves the latest query logs for a user
func (r *QueryLogRepository) ListByUsername(ctx context.Context, username string, limit int) ([]*models.QueryLog, error) {
	query := `
		SELECT id, username, query, mode, backend, strict, weak,
			status, attempts, error_message, duration_ms, created_at
		FROM query_logs
		WHERE username = $1
		ORDER BY created_at DESC`

	args := []interface{}{username}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.QueryLog
	for rows.Next() {
		entry := &models.QueryLog{}
		err := rows.Scan(
			&entry.ID,
			&entry.Username,
			&entry.Query,
			&entry.Mode,
			&entry.Backend,
			&entry.Strict,
			&entry.Weak,
			&entry.Status,
			&entry.Attempts,
			&entry.ErrorMessage,
			&entry.DurationMS,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if entry.Attempts == nil {
			entry.Attempts = make(models.BackendAttempts, 0)
		}
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}
