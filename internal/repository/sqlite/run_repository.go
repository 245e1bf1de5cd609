package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"detectserver/internal/model"
)

// RunRepository implements repository.RunRepository for SQLite.
type RunRepository struct {
	db *DB
}

// NewRunRepository creates a new SQLite run repository.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

// Insert adds a new run record to the database.
func (r *RunRepository) Insert(run *model.Run) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO runs (filename, model, confidence, timestamp, filepath, filesize, detection_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.Filename, run.Model, run.Confidence, run.Timestamp.UTC(), run.FilePath, run.FileSize, run.DetectionCount)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	return result.LastInsertId()
}

const runColumns = `id, filename, model, confidence, timestamp, filepath, filesize, detection_count`

func scanRun(row interface{ Scan(...interface{}) error }) (*model.Run, error) {
	var run model.Run
	if err := row.Scan(&run.ID, &run.Filename, &run.Model, &run.Confidence, &run.Timestamp, &run.FilePath, &run.FileSize, &run.DetectionCount); err != nil {
		return nil, err
	}
	return &run, nil
}

// GetByID retrieves a run by its ID. A missing run yields nil, nil.
func (r *RunRepository) GetByID(id int64) (*model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	run, err := scanRun(r.db.Conn().QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// whereClause builds the shared filter conditions for run queries. Timestamps
// are stored in UTC so range bounds compare as text.
func whereClause(filter *model.RunFilter) (string, []interface{}) {
	query := `
		FROM runs r
		LEFT JOIN detections d ON r.id = d.run_id
		WHERE 1=1
	`
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.Model != "" {
		query += " AND r.model = ?"
		args = append(args, filter.Model)
	}

	if filter.ClassName != "" {
		query += " AND d.class_name = ?"
		args = append(args, filter.ClassName)
	}

	if !filter.StartDate.IsZero() {
		query += " AND r.timestamp >= ?"
		args = append(args, filter.StartDate.UTC())
	}

	if !filter.EndDate.IsZero() {
		query += " AND r.timestamp <= ?"
		args = append(args, filter.EndDate.UTC())
	}

	return query, args
}

// GetRecent retrieves runs matching filter, newest first.
func (r *RunRepository) GetRecent(filter *model.RunFilter) ([]model.Run, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)
	query := `SELECT DISTINCT r.id, r.filename, r.model, r.confidence, r.timestamp, r.filepath, r.filesize, r.detection_count ` +
		where + " ORDER BY r.timestamp DESC, r.id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetTotalCount returns the number of runs matching filter.
func (r *RunRepository) GetTotalCount(filter *model.RunFilter) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	where, args := whereClause(filter)

	var count int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(DISTINCT r.id) `+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}

	return count, nil
}

// Delete removes a run and, through the foreign key, its detections.
func (r *RunRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}
