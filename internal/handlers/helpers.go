package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/report-templates/internal/database"
	"github.com/benvon/report-templates/internal/importer"
	"github.com/benvon/report-templates/internal/logger"
	"github.com/benvon/report-templates/internal/review"
	"github.com/benvon/report-templates/internal/sheets"
	"github.com/benvon/report-templates/internal/validation"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	return logger.SanitizeString(message, 200)
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// Sanitize error message to prevent information disclosure
	sanitizedMessage := sanitizeErrorMessage(message)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizedMessage,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondServiceError maps import and template errors onto HTTP statuses.
// Unknown errors become a 500 without exposing their text.
func respondServiceError(w http.ResponseWriter, err error, internalMessage string) {
	var maxBytesErr *http.MaxBytesError
	var sheetErr *sheets.SheetError

	switch {
	case errors.As(err, &maxBytesErr):
		respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
			fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
	case errors.Is(err, sheets.ErrUnsupportedFile):
		respondJSONError(w, http.StatusUnsupportedMediaType, "Unsupported Media Type",
			"Please upload an Excel workbook (.xlsx, .xls) or a CSV file")
	case errors.As(err, &sheetErr):
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity",
			fmt.Sprintf("Sheet %q could not be read", sheetErr.SheetName))
	case errors.Is(err, sheets.ErrInvalidFormat):
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", "The file could not be read as a spreadsheet")
	case errors.Is(err, importer.ErrNoValidData):
		respondJSONError(w, http.StatusUnprocessableEntity, "Unprocessable Entity", importer.ErrNoValidData.Error())
	case errors.Is(err, importer.ErrNothingToAssemble):
		respondJSONError(w, http.StatusConflict, "Conflict", importer.ErrNothingToAssemble.Error())
	case errors.Is(err, importer.ErrTemplateRequired):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", importer.ErrTemplateRequired.Error())
	case errors.Is(err, importer.ErrInvalidMode):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", importer.ErrInvalidMode.Error())
	case errors.Is(err, importer.ErrSessionNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Import session not found or expired")
	case errors.Is(err, database.ErrTemplateNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Template not found")
	case errors.Is(err, review.ErrFieldNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Field not found")
	case errors.Is(err, review.ErrSheetNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Sheet not found")
	case errors.Is(err, review.ErrInvalidFieldType), errors.Is(err, review.ErrInvalidPosition):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", internalMessage)
	}
}

// isClientError reports whether err maps to a 4xx status.
func isClientError(err error) bool {
	var maxBytesErr *http.MaxBytesError
	var sheetErr *sheets.SheetError
	return errors.As(err, &maxBytesErr) ||
		errors.As(err, &sheetErr) ||
		errors.Is(err, sheets.ErrUnsupportedFile) ||
		errors.Is(err, sheets.ErrInvalidFormat) ||
		errors.Is(err, importer.ErrNoValidData) ||
		errors.Is(err, importer.ErrNothingToAssemble) ||
		errors.Is(err, importer.ErrTemplateRequired) ||
		errors.Is(err, importer.ErrInvalidMode) ||
		errors.Is(err, importer.ErrSessionNotFound) ||
		errors.Is(err, database.ErrTemplateNotFound) ||
		errors.Is(err, review.ErrFieldNotFound) ||
		errors.Is(err, review.ErrSheetNotFound) ||
		errors.Is(err, review.ErrInvalidFieldType) ||
		errors.Is(err, review.ErrInvalidPosition)
}

// decodeJSON decodes and validates a request body, writing the error response itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		// Check if error is due to request size limit
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body")
		return false
	}

	if err := validation.Validate.Struct(dst); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Validation failed: %s", validationErrors[0].Error()))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed")
		return false
	}
	return true
}

// pathUUID parses a uuid route variable, writing a 400 when it is malformed.
func pathUUID(w http.ResponseWriter, r *http.Request, name, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf("Invalid %s ID", what))
		return uuid.Nil, false
	}
	return id, true
}
