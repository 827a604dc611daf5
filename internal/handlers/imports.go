package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/benvon/report-templates/internal/importer"
	"github.com/benvon/report-templates/internal/logger"
	"github.com/benvon/report-templates/internal/models"
	"github.com/benvon/report-templates/internal/review"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// multipartOverhead is the allowance for multipart framing on top of the file size limit.
const multipartOverhead = 64 << 10

// ImportHandler handles spreadsheet import sessions
type ImportHandler struct {
	service        *importer.Service
	maxUploadBytes int64
	log            *zap.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(service *importer.Service, maxUploadBytes int64, log *zap.Logger) *ImportHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ImportHandler{service: service, maxUploadBytes: maxUploadBytes, log: log}
}

// RegisterRoutes registers import routes on the given router
// The router should already have the /imports prefix (e.g., from apiRouter.PathPrefix("/imports"))
func (h *ImportHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.CreateImport).Methods("POST")
	r.HandleFunc("/{id}", h.GetImport).Methods("GET")
	r.HandleFunc("/{id}", h.CancelImport).Methods("DELETE")
	r.HandleFunc("/{id}/include-all", h.SetIncludeAll).Methods("POST")
	r.HandleFunc("/{id}/fields/{fieldId}", h.UpdateField).Methods("PATCH")
	r.HandleFunc("/{id}/fields/{fieldId}", h.DeleteField).Methods("DELETE")
	r.HandleFunc("/{id}/fields/{fieldId}/toggle", h.ToggleField).Methods("POST")
	r.HandleFunc("/{id}/fields/{fieldId}/move", h.MoveField).Methods("POST")
	r.HandleFunc("/{id}/sheets/{sheetName}", h.DeleteSheet).Methods("DELETE")
	r.HandleFunc("/{id}/preview", h.Preview).Methods("GET")
	r.HandleFunc("/{id}/confirm", h.Confirm).Methods("POST")
}

// IncludeAllRequest represents a select-all / deselect-all request
type IncludeAllRequest struct {
	Included *bool `json:"included" validate:"required"`
}

// UpdateFieldRequest represents a field type override
type UpdateFieldRequest struct {
	Type string `json:"type" validate:"required,field_type"`
}

// MoveFieldRequest represents a reorder within a sheet
type MoveFieldRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

// ConfirmImportRequest represents a confirm request
type ConfirmImportRequest struct {
	TemplateID *uuid.UUID `json:"template_id,omitempty"`
	Mode       string     `json:"mode,omitempty" validate:"omitempty,oneof=replace append"`
}

// CreateImport accepts a multipart upload and opens a review session
func (h *ImportHandler) CreateImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondServiceError(w, err, "")
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Expected a multipart/form-data upload")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "A file is required in the \"file\" form field")
		return
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Failed to read uploaded file")
		return
	}
	if n > h.maxUploadBytes {
		respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
			fmt.Sprintf("File exceeds maximum size of %d bytes", h.maxUploadBytes))
		return
	}

	upload := importer.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        buf.Bytes(),
	}
	if raw := strings.TrimSpace(r.FormValue("template_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid template ID")
			return
		}
		upload.TemplateID = &id
	}

	view, err := h.service.Upload(r.Context(), upload)
	if err != nil {
		h.logFailure("import_upload_failed", err, zap.String("file_name", logger.SanitizeFileName(header.Filename)))
		respondServiceError(w, err, "Failed to import file")
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

// GetImport returns the current review state
func (h *ImportHandler) GetImport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "import")
	if !ok {
		return
	}
	view, err := h.service.Session(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to load import session")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// CancelImport discards the review session
func (h *ImportHandler) CancelImport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "import")
	if !ok {
		return
	}
	if err := h.service.Cancel(r.Context(), id); err != nil {
		respondServiceError(w, err, "Failed to cancel import")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleField flips the include flag of one field
func (h *ImportHandler) ToggleField(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, importer.ToggleInclude{FieldID: mux.Vars(r)["fieldId"]})
}

// SetIncludeAll selects or deselects every field
func (h *ImportHandler) SetIncludeAll(w http.ResponseWriter, r *http.Request) {
	var req IncludeAllRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, r, importer.SetIncludeAll{Included: *req.Included})
}

// UpdateField overrides the type of one field
func (h *ImportHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	var req UpdateFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, r, importer.SetFieldType{FieldID: mux.Vars(r)["fieldId"], Type: models.FieldType(req.Type)})
}

// MoveField reorders a field within its sheet
func (h *ImportHandler) MoveField(w http.ResponseWriter, r *http.Request) {
	var req MoveFieldRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.apply(w, r, importer.MoveField{FieldID: mux.Vars(r)["fieldId"], Index: *req.Index})
}

// DeleteField removes one field from the review
func (h *ImportHandler) DeleteField(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, importer.DeleteField{FieldID: mux.Vars(r)["fieldId"]})
}

// DeleteSheet removes every field of a sheet. Without confirm=true it only
// reports how many fields would be removed.
func (h *ImportHandler) DeleteSheet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "import")
	if !ok {
		return
	}
	sheetName := mux.Vars(r)["sheetName"]

	if r.URL.Query().Get("confirm") != "true" {
		view, err := h.service.Session(r.Context(), id)
		if err != nil {
			respondServiceError(w, err, "Failed to load import session")
			return
		}
		summary, found := findSheet(view.Sheets, sheetName)
		if !found {
			respondServiceError(w, review.ErrSheetNotFound, "")
			return
		}
		respondJSONError(w, http.StatusConflict, "Confirmation Required",
			fmt.Sprintf("Deleting sheet %q removes %d fields; repeat the request with confirm=true", summary.Name, summary.Total))
		return
	}

	h.apply(w, r, importer.DeleteSheet{SheetName: sheetName})
}

// Preview returns the categories a confirm would write
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "import")
	if !ok {
		return
	}
	categories, err := h.service.Preview(r.Context(), id)
	if err != nil {
		respondServiceError(w, err, "Failed to build preview")
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// Confirm writes the reviewed fields to the template
func (h *ImportHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id", "import")
	if !ok {
		return
	}

	var req ConfirmImportRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	result, err := h.service.Confirm(r.Context(), id, importer.ConfirmRequest{
		TemplateID: req.TemplateID,
		Mode:       importer.Mode(req.Mode),
	})
	if err != nil {
		h.logFailure("import_confirm_failed", err, zap.String("session_id", id.String()))
		respondServiceError(w, err, "Failed to apply import")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (h *ImportHandler) apply(w http.ResponseWriter, r *http.Request, cmd importer.Command) {
	id, ok := pathUUID(w, r, "id", "import")
	if !ok {
		return
	}
	view, err := h.service.Apply(r.Context(), id, cmd)
	if err != nil {
		respondServiceError(w, err, "Failed to update import session")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// logFailure logs unexpected failures; client errors are already visible in the access log.
func (h *ImportHandler) logFailure(event string, err error, fields ...zap.Field) {
	if isClientError(err) {
		return
	}
	h.log.Error(event, append(fields, zap.String("error", logger.SanitizeError(err)))...)
}

func findSheet(summaries []review.SheetSummary, name string) (review.SheetSummary, bool) {
	for _, s := range summaries {
		if s.Name == name {
			return s, true
		}
	}
	return review.SheetSummary{}, false
}
