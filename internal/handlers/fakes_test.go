package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/benvon/report-templates/internal/database"
	"github.com/benvon/report-templates/internal/models"
	"github.com/google/uuid"
)

type memTemplates struct {
	mu        sync.Mutex
	templates map[uuid.UUID]*models.Template
	err       error
}

func newMemTemplates() *memTemplates {
	return &memTemplates{templates: make(map[uuid.UUID]*models.Template)}
}

func (m *memTemplates) add(name string) *models.Template {
	t := &models.Template{ID: uuid.New(), Name: name, Sections: []models.FormCategory{}}
	_ = m.Create(context.Background(), t)
	return t
}

func (m *memTemplates) Create(_ context.Context, t *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *memTemplates) GetByID(_ context.Context, id uuid.UUID) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrTemplateNotFound, id)
	}
	cp := *t
	return &cp, nil
}

func (m *memTemplates) List(_ context.Context) ([]*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*models.Template, 0, len(m.templates))
	for _, t := range m.templates {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memTemplates) UpdateSections(_ context.Context, id uuid.UUID, sections []models.FormCategory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.templates[id]
	if !ok {
		return fmt.Errorf("%w: %s", database.ErrTemplateNotFound, id)
	}
	t.Sections = sections
	t.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *memTemplates) AppendSections(_ context.Context, id uuid.UUID, imported []models.FormCategory) ([]models.FormCategory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.templates[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrTemplateNotFound, id)
	}
	t.Sections = models.AppendCategories(t.Sections, imported)
	t.UpdatedAt = time.Now().UTC()
	return t.Sections, nil
}

type memHistory struct {
	mu        sync.Mutex
	records   []*models.ImportRecord
	lastLimit int
}

func (m *memHistory) Record(_ context.Context, rec *models.ImportRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return true, nil
}

func (m *memHistory) ListByTemplate(_ context.Context, templateID uuid.UUID, limit int) ([]*models.ImportRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	var out []*models.ImportRecord
	for _, r := range m.records {
		if r.TemplateID == templateID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

// envelope mirrors the respondJSON / respondJSONError body.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if data != nil && env.Success {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
	}
	return env
}

// newUploadRequest builds a multipart upload of content under filename.
func newUploadRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
