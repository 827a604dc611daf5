package middleware

import (
	"mime"
	"net/http"
)

const (
	// DefaultMaxRequestSize is the default maximum JSON request body size (1MB)
	DefaultMaxRequestSize int64 = 1 << 20
	// DefaultMaxUploadSize is the default maximum multipart upload body size (10MB)
	DefaultMaxUploadSize int64 = 10 << 20
)

// MaxRequestSize limits the size of request bodies. Multipart uploads get
// uploadBytes, every other body gets jsonBytes.
func MaxRequestSize(jsonBytes, uploadBytes int64) func(http.Handler) http.Handler {
	if jsonBytes <= 0 {
		jsonBytes = DefaultMaxRequestSize
	}
	if uploadBytes <= 0 {
		uploadBytes = DefaultMaxUploadSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			maxBytes := jsonBytes
			if mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && mediaType == "multipart/form-data" {
				maxBytes = uploadBytes
			}

			// Check Content-Length header early if present
			if r.ContentLength > maxBytes {
				respondErrorJSON(w, r, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "Request body exceeds the allowed size", nil)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			defer r.Body.Close()

			next.ServeHTTP(w, r)
		})
	}
}
