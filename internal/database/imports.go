package database

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/report-templates/internal/models"
	"github.com/google/uuid"
)

// ImportHistoryRepository records spreadsheet imports applied to templates
type ImportHistoryRepository struct {
	db *DB
}

// NewImportHistoryRepository creates a new import history repository
func NewImportHistoryRepository(db *DB) *ImportHistoryRepository {
	return &ImportHistoryRepository{db: db}
}

// Record stores an import. Recording the same session twice is a no-op, so
// redelivered queue messages do not duplicate history. It reports whether a
// row was written.
func (r *ImportHistoryRepository) Record(ctx context.Context, rec *models.ImportRecord) (bool, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.ImportedAt.IsZero() {
		rec.ImportedAt = time.Now()
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO template_imports (id, session_id, template_id, file_name, sheet_count, category_count, field_count, imported_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO NOTHING
	`, rec.ID, rec.SessionID, rec.TemplateID, rec.FileName, rec.SheetCount, rec.CategoryCount, rec.FieldCount, rec.ImportedAt)
	if err != nil {
		return false, fmt.Errorf("failed to record import: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// ListByTemplate returns the most recent imports of a template, newest first.
func (r *ImportHistoryRepository) ListByTemplate(ctx context.Context, templateID uuid.UUID, limit int) ([]*models.ImportRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, template_id, file_name, sheet_count, category_count, field_count, imported_at
		FROM template_imports
		WHERE template_id = $1
		ORDER BY imported_at DESC
		LIMIT $2
	`, templateID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query imports: %w", err)
	}
	defer rows.Close()

	var records []*models.ImportRecord
	for rows.Next() {
		rec := &models.ImportRecord{}
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.TemplateID,
			&rec.FileName,
			&rec.SheetCount,
			&rec.CategoryCount,
			&rec.FieldCount,
			&rec.ImportedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating imports: %w", err)
	}
	return records, nil
}
