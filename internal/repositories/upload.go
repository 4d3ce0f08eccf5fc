package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytq/internal/models"
	"github.com/desertthunder/ytq/internal/shared"
)

const uploadColumns = `id, sequence, channel, job_id, title, video_path, video_id, privacy, publish_at, state, error,
	created_at, updated_at, deleted_at`

// ErrRecordNotFound is returned when a lookup matches no live row.
var ErrRecordNotFound = errors.New("upload record not found")

// UploadRepository implements models.Repository[*models.UploadRecord] for the upload ledger.
type UploadRepository struct {
	db *sql.DB
}

// NewUploadRepository creates a new UploadRepository with the given database connection
func NewUploadRepository(db *sql.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts a new [models.UploadRecord] with a generated ID and sequence
func (r *UploadRepository) Create(rec *models.UploadRecord) error {
	sequence, err := NextSequence(r.db, "uploads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	rec.SetID(shared.GenerateID())
	rec.SetSequence(sequence)

	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO uploads (id, sequence, channel, job_id, title, video_path, video_id, privacy, publish_at, state, error,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		rec.ID(),
		sequence,
		rec.Channel,
		rec.JobID,
		rec.Title,
		rec.VideoPath,
		rec.VideoID,
		string(rec.Privacy),
		nullTime(rec.PublishAt),
		rec.State.String(),
		rec.Error,
		rec.CreatedAt(),
		rec.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload record: %w", err)
	}

	return nil
}

// Get retrieves a record by ID, excluding soft-deleted records
func (r *UploadRepository) Get(id string) (*models.UploadRecord, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// GetByJobID retrieves the most recent record for a job
func (r *UploadRepository) GetByJobID(jobID string) (*models.UploadRecord, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE job_id = ? AND deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`
	return r.scan(r.db.QueryRow(query, jobID))
}

// Update rewrites the outcome fields of an existing record
func (r *UploadRepository) Update(rec *models.UploadRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	rec.SetUpdatedAt(now)

	query := `
		UPDATE uploads
		SET title = ?, video_id = ?, privacy = ?, publish_at = ?, state = ?, error = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		rec.Title,
		rec.VideoID,
		string(rec.Privacy),
		nullTime(rec.PublishAt),
		rec.State.String(),
		rec.Error,
		now,
		rec.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update upload record: %w", err)
	}

	return requireRow(result, rec.ID())
}

// Delete soft-deletes a record by ID
func (r *UploadRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE uploads SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete upload record: %w", err)
	}

	return requireRow(result, id)
}

// List retrieves records matching criteria, newest first.
//
// Supported keys: "channel" (string), "state" ([models.JobState]) and "limit" (int).
func (r *UploadRepository) List(criteria map[string]any) ([]*models.UploadRecord, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE deleted_at IS NULL`
	args := []any{}

	if channel, ok := criteria["channel"].(string); ok && channel != "" {
		query += " AND channel = ?"
		args = append(args, channel)
	}

	if state, ok := criteria["state"].(models.JobState); ok {
		query += " AND state = ?"
		args = append(args, state.String())
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query upload records: %w", err)
	}
	defer rows.Close()

	var records []*models.UploadRecord
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row into a [models.UploadRecord]
func (r *UploadRepository) scan(row scanner) (*models.UploadRecord, error) {
	var (
		id        string
		sequence  int
		privacy   string
		state     string
		publishAt sql.NullTime
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
		rec       models.UploadRecord
	)

	err := row.Scan(&id, &sequence, &rec.Channel, &rec.JobID, &rec.Title, &rec.VideoPath, &rec.VideoID, &privacy,
		&publishAt, &state, &rec.Error, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan upload record: %w", err)
	}

	rec.State, err = models.ParseJobState(state)
	if err != nil {
		return nil, fmt.Errorf("upload record %s: %w", id, err)
	}
	rec.Privacy = models.Privacy(privacy)
	if publishAt.Valid {
		t := publishAt.Time.UTC()
		rec.PublishAt = &t
	}

	rec.SetID(id)
	rec.SetSequence(sequence)
	rec.SetCreatedAt(createdAt)
	rec.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		rec.SetDeletedAt(&deletedAt.Time)
	}

	return &rec, nil
}

func requireRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

var _ models.Repository[*models.UploadRecord] = (*UploadRepository)(nil)
