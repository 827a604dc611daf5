package handlers

import (
	"net/http"
	"strconv"

	"github.com/benvon/report-templates/internal/database"
	"github.com/benvon/report-templates/internal/models"
	"github.com/benvon/report-templates/internal/validation"
	"github.com/gorilla/mux"
)

const (
	// DefaultHistoryLimit is the default number of import history entries returned
	DefaultHistoryLimit = 20
	// MaxHistoryLimit is the maximum number of import history entries returned
	MaxHistoryLimit = 100
)

// TemplateHandler handles report template requests
type TemplateHandler struct {
	templates database.TemplateRepositoryInterface
	history   database.ImportHistoryRepositoryInterface
}

// NewTemplateHandler creates a new template handler
func NewTemplateHandler(templates database.TemplateRepositoryInterface, history database.ImportHistoryRepositoryInterface) *TemplateHandler {
	return &TemplateHandler{templates: templates, history: history}
}

// RegisterRoutes registers template routes on the given router
// The router should already have the /templates prefix
func (h *TemplateHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.ListTemplates).Methods("GET")
	r.HandleFunc("", h.CreateTemplate).Methods("POST")
	r.HandleFunc("/{id}", h.GetTemplate).Methods("GET")
	r.HandleFunc("/{id}", h.UpdateTemplate).Methods("PATCH")
	r.HandleFunc("/{id}/imports", h.ListImports).Methods("GET")
}

// CreateTemplateRequest represents a create template request
type CreateTemplateRequest struct {
	Name        string                `json:"name" validate:"required,min=1,max=200"`
	Description string                `json:"description" validate:"max=2000"`
	Sections    []models.FormCategory `json:"sections,omitempty"`
}

// UpdateTemplateRequest represents a sections update
type UpdateTemplateRequest struct {
	Sections []models.FormCategory `json:"sections" validate:"required"`
}

// ListTemplates lists all templates, most recently updated first
func (h *TemplateHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.templates.List(r.Context())
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve templates")
		return
	}
	if templates == nil {
		templates = []*models.Template{}
	}
	respondJSON(w, http.StatusOK, templates)
}

// CreateTemplate creates a new template
func (h *TemplateHandler) CreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = validation.SanitizeText(req.Name)
	if req.Name == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Name is required and cannot be empty after sanitization")
		return
	}
	if err := validation.ValidateSections(req.Sections); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	tmpl := &models.Template{
		Name:        req.Name,
		Description: validation.SanitizeText(req.Description),
		Sections:    req.Sections,
	}
	if err := h.templates.Create(r.Context(), tmpl); err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create template")
		return
	}
	respondJSON(w, http.StatusCreated, tmpl)
}

// GetTemplate retrieves a template by ID
func (h *TemplateHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "template")
	if !ok {
		return
	}
	tmpl, err := h.templates.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve template")
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}

// UpdateTemplate replaces a template's sections
func (h *TemplateHandler) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "template")
	if !ok {
		return
	}

	var req UpdateTemplateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.ValidateSections(req.Sections); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ctx := r.Context()
	if err := h.templates.UpdateSections(ctx, id, req.Sections); err != nil {
		respondServiceError(w, err, "Failed to update template")
		return
	}
	tmpl, err := h.templates.GetByID(ctx, id)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve template")
		return
	}
	respondJSON(w, http.StatusOK, tmpl)
}

// ListImports returns the import history of a template
func (h *TemplateHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "template")
	if !ok {
		return
	}

	limit := DefaultHistoryLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = min(parsed, MaxHistoryLimit)
		}
	}

	ctx := r.Context()
	if _, err := h.templates.GetByID(ctx, id); err != nil {
		respondServiceError(w, err, "Failed to retrieve template")
		return
	}
	records, err := h.history.ListByTemplate(ctx, id, limit)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve import history")
		return
	}
	if records == nil {
		records = []*models.ImportRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}
