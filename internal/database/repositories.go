package database

import (
	"context"

	"github.com/benvon/report-templates/internal/models"
	"github.com/google/uuid"
)

// TemplateRepositoryInterface defines the template operations used by the
// import service and handlers. It enables in-memory fakes in tests.
type TemplateRepositoryInterface interface {
	Create(ctx context.Context, t *models.Template) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Template, error)
	List(ctx context.Context) ([]*models.Template, error)
	UpdateSections(ctx context.Context, id uuid.UUID, sections []models.FormCategory) error
	AppendSections(ctx context.Context, id uuid.UUID, imported []models.FormCategory) ([]models.FormCategory, error)
}

// ImportHistoryRepositoryInterface defines the import history operations
type ImportHistoryRepositoryInterface interface {
	Record(ctx context.Context, rec *models.ImportRecord) (bool, error)
	ListByTemplate(ctx context.Context, templateID uuid.UUID, limit int) ([]*models.ImportRecord, error)
}

// CorsConfigRepositoryInterface defines CORS config persistence
type CorsConfigRepositoryInterface interface {
	Get(ctx context.Context) (*models.CorsConfig, error)
	Set(ctx context.Context, c *models.CorsConfig) error
}

// RatelimitConfigRepositoryInterface defines rate limit config persistence
type RatelimitConfigRepositoryInterface interface {
	Get(ctx context.Context) (*models.RatelimitConfig, error)
	Set(ctx context.Context, c *models.RatelimitConfig) error
}

// Ensure concrete types implement the interfaces
var (
	_ TemplateRepositoryInterface        = (*TemplateRepository)(nil)
	_ ImportHistoryRepositoryInterface   = (*ImportHistoryRepository)(nil)
	_ CorsConfigRepositoryInterface      = (*CorsConfigRepository)(nil)
	_ RatelimitConfigRepositoryInterface = (*RatelimitConfigRepository)(nil)
)
