package middleware

import (
	"mime"
	"net/http"
	"strings"
)

// ContentType validates Content-Type headers for requests with bodies.
// JSON is accepted everywhere; multipart/form-data only for spreadsheet uploads.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !hasBody(r) {
			next.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			respondErrorJSON(w, r, http.StatusBadRequest, "Bad Request", "Content-Type header is required", nil)
			return
		}

		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			respondErrorJSON(w, r, http.StatusBadRequest, "Bad Request", "Malformed Content-Type header", nil)
			return
		}

		switch {
		case mediaType == "application/json":
		case mediaType == "multipart/form-data" && isUploadRequest(r):
		default:
			respondErrorJSON(w, r, http.StatusUnsupportedMediaType, "Unsupported Media Type", "Content-Type must be application/json", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// hasBody reports whether a POST, PATCH or PUT request carries a body.
// Bodyless commands such as toggle and confirm need no Content-Type.
func hasBody(r *http.Request) bool {
	if r.Method != http.MethodPost && r.Method != http.MethodPatch && r.Method != http.MethodPut {
		return false
	}
	return r.ContentLength != 0
}

// isUploadRequest matches POST /api/v1/imports.
func isUploadRequest(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.TrimSuffix(r.URL.Path, "/") == "/api/v1/imports"
}
