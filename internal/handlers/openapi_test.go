package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/report-templates/api/openapi"
	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

func TestNewOpenAPIHandler_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{"invalid yaml", "openapi: [unclosed"},
		{"missing version", "info:\n  title: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewOpenAPIHandler([]byte(tt.doc)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestOpenAPIHandler_Embedded(t *testing.T) {
	t.Parallel()

	h, err := NewOpenAPIHandler(openapi.Document)
	if err != nil {
		t.Fatalf("NewOpenAPIHandler() error = %v", err)
	}
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/openapi.yaml", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/x-yaml" {
			t.Errorf("Expected application/x-yaml, got %q", ct)
		}
		var doc map[string]any
		if err := yaml.Unmarshal(w.Body.Bytes(), &doc); err != nil {
			t.Fatalf("Served YAML does not parse: %v", err)
		}
	})

	t.Run("json lists every route", func(t *testing.T) {
		t.Parallel()
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/openapi.json", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}

		var doc struct {
			Paths map[string]map[string]any `json:"paths"`
		}
		if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
			t.Fatalf("Failed to decode JSON: %v", err)
		}
		want := map[string][]string{
			"/imports":                              {"post"},
			"/imports/{id}":                         {"get", "delete"},
			"/imports/{id}/include-all":             {"post"},
			"/imports/{id}/fields/{fieldId}":        {"patch", "delete"},
			"/imports/{id}/fields/{fieldId}/toggle": {"post"},
			"/imports/{id}/fields/{fieldId}/move":   {"post"},
			"/imports/{id}/sheets/{sheetName}":      {"delete"},
			"/imports/{id}/preview":                 {"get"},
			"/imports/{id}/confirm":                 {"post"},
			"/templates":                            {"get", "post"},
			"/templates/{id}":                       {"get", "patch"},
			"/templates/{id}/imports":               {"get"},
		}
		for path, methods := range want {
			ops, ok := doc.Paths[path]
			if !ok {
				t.Errorf("Missing path %s", path)
				continue
			}
			for _, m := range methods {
				if _, ok := ops[m]; !ok {
					t.Errorf("Missing %s %s", m, path)
				}
			}
		}
	})
}
