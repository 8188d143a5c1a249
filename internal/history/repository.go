package history

import (
	"context"
	"database/sql"
	"time"
)

type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
	ListPendingRuns(ctx context.Context) ([]*Run, error)
	UpdateRunStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateRunProgress(ctx context.Context, id string, progress int) error
	UpdateRunCounts(ctx context.Context, id string, attempted, succeeded, failed int) error

	CreateRunItem(ctx context.Context, item *RunItem) error
	GetRunItems(ctx context.Context, runID string) ([]*RunItem, error)
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateRun(ctx context.Context, run *Run) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, hashtag, requested, status, attempted, succeeded, failed, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Hashtag, run.Requested, run.Status,
		run.Attempted, run.Succeeded, run.Failed, run.Progress, nullString(run.Error),
		run.CreatedAt.Format(time.RFC3339), run.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetRun(ctx context.Context, id string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, hashtag, requested, status, attempted, succeeded, failed, progress, error, created_at, updated_at
		FROM runs WHERE id = ?
	`, id)
	return r.scanRun(row)
}

func (r *SQLiteRepository) scanRun(row *sql.Row) (*Run, error) {
	var run Run
	var errMsg sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&run.ID, &run.Hashtag, &run.Requested, &run.Status,
		&run.Attempted, &run.Succeeded, &run.Failed, &run.Progress, &errMsg, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.Error = errMsg.String
	run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &run, nil
}

func (r *SQLiteRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, hashtag, requested, status, attempted, succeeded, failed, progress, error, created_at, updated_at
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRuns(rows)
}

func (r *SQLiteRepository) ListPendingRuns(ctx context.Context) ([]*Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, hashtag, requested, status, attempted, succeeded, failed, progress, error, created_at, updated_at
		FROM runs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.scanRuns(rows)
}

func (r *SQLiteRepository) scanRuns(rows *sql.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		var run Run
		var errMsg sql.NullString
		var createdAt, updatedAt string

		if err := rows.Scan(&run.ID, &run.Hashtag, &run.Requested, &run.Status,
			&run.Attempted, &run.Succeeded, &run.Failed, &run.Progress, &errMsg, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		run.Error = errMsg.String
		run.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		run.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func (r *SQLiteRepository) UpdateRunStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, nullString(errorMsg), id)
	return err
}

func (r *SQLiteRepository) UpdateRunProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET progress = ?, updated_at = datetime('now') WHERE id = ?
	`, progress, id)
	return err
}

func (r *SQLiteRepository) UpdateRunCounts(ctx context.Context, id string, attempted, succeeded, failed int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE runs SET attempted = ?, succeeded = ?, failed = ?, updated_at = datetime('now') WHERE id = ?
	`, attempted, succeeded, failed, id)
	return err
}

func (r *SQLiteRepository) CreateRunItem(ctx context.Context, item *RunItem) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO run_items (run_id, video_id, source_url, status, output_path, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, item.RunID, item.VideoID, item.SourceURL, item.Status,
		nullString(item.OutputPath), nullString(item.Error),
		item.CreatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetRunItems(ctx context.Context, runID string) ([]*RunItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, video_id, source_url, status, output_path, error, created_at
		FROM run_items WHERE run_id = ? ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*RunItem
	for rows.Next() {
		var item RunItem
		var outputPath, errMsg sql.NullString
		var createdAt string

		if err := rows.Scan(&item.RunID, &item.VideoID, &item.SourceURL, &item.Status,
			&outputPath, &errMsg, &createdAt); err != nil {
			return nil, err
		}
		item.OutputPath = outputPath.String
		item.Error = errMsg.String
		item.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		items = append(items, &item)
	}
	return items, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
