package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/report-templates/internal/models"
	"github.com/google/uuid"
)

// ErrTemplateNotFound is returned when no template has the requested id.
var ErrTemplateNotFound = errors.New("template not found")

// TemplateRepository handles report template database operations
type TemplateRepository struct {
	db *DB
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a new template. A zero ID is replaced by a fresh UUID.
func (r *TemplateRepository) Create(ctx context.Context, t *models.Template) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name cannot be empty")
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	sectionsJSON, err := marshalSections(t.Sections)
	if err != nil {
		return err
	}

	now := time.Now()
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO report_templates (id, name, description, sections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, t.ID, t.Name, t.Description, sectionsJSON, now, now).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// GetByID retrieves a template by ID
func (r *TemplateRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, sections, created_at, updated_at
		FROM report_templates
		WHERE id = $1
	`, id)

	t, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// List returns all templates, most recently updated first.
func (r *TemplateRepository) List(ctx context.Context) ([]*models.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, description, sections, created_at, updated_at
		FROM report_templates
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}
	return templates, nil
}

// UpdateSections replaces the sections of a template.
func (r *TemplateRepository) UpdateSections(ctx context.Context, id uuid.UUID, sections []models.FormCategory) error {
	sectionsJSON, err := marshalSections(sections)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE report_templates
		SET sections = $2, updated_at = $3
		WHERE id = $1
	`, id, sectionsJSON, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update template sections: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	return nil
}

// AppendSections adds imported categories after the template's existing
// sections and returns the stored result. The row is locked for the read and
// write so concurrent appends to one template both land.
func (r *TemplateRepository) AppendSections(ctx context.Context, id uuid.UUID, imported []models.FormCategory) ([]models.FormCategory, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin template append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existingJSON []byte
	err = tx.QueryRowContext(ctx, `
		SELECT sections
		FROM report_templates
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&existingJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock template: %w", err)
	}

	existing, err := unmarshalSections(existingJSON)
	if err != nil {
		return nil, err
	}
	sections := models.AppendCategories(existing, imported)
	sectionsJSON, err := marshalSections(sections)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE report_templates
		SET sections = $2, updated_at = $3
		WHERE id = $1
	`, id, sectionsJSON, time.Now()); err != nil {
		return nil, fmt.Errorf("failed to update template sections: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit template append: %w", err)
	}
	return sections, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*models.Template, error) {
	t := &models.Template{}
	var sectionsJSON []byte
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &sectionsJSON, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	sections, err := unmarshalSections(sectionsJSON)
	if err != nil {
		return nil, err
	}
	t.Sections = sections
	return t, nil
}

func marshalSections(sections []models.FormCategory) ([]byte, error) {
	if sections == nil {
		sections = []models.FormCategory{}
	}
	data, err := json.Marshal(sections)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sections: %w", err)
	}
	return data, nil
}

func unmarshalSections(data []byte) ([]models.FormCategory, error) {
	sections := []models.FormCategory{}
	if len(data) == 0 {
		return sections, nil
	}
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sections: %w", err)
	}
	return sections, nil
}
