package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/benvon/report-templates/internal/models"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

type fakeRatelimitRepo struct {
	mu     sync.Mutex
	cfg    *models.RatelimitConfig
	getErr error
	sets   []string
}

func (f *fakeRatelimitRepo) Get(context.Context) (*models.RatelimitConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.cfg == nil {
		return nil, nil
	}
	c := *f.cfg
	return &c, nil
}

func (f *fakeRatelimitRepo) Set(_ context.Context, c *models.RatelimitConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, c.Rate)
	f.cfg = c
	return nil
}

func (f *fakeRatelimitRepo) setRate(rate string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = &models.RatelimitConfig{Rate: rate}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/api/v1/templates", nil)
	req.Header.Set("X-Forwarded-For", ip)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimitReloader_Load(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		repo     *fakeRatelimitRepo
		wantRate string
		wantSets int
	}{
		{
			name:     "seeds default when nothing stored",
			repo:     &fakeRatelimitRepo{},
			wantRate: "10-M",
			wantSets: 1,
		},
		{
			name:     "stored rate wins",
			repo:     &fakeRatelimitRepo{cfg: &models.RatelimitConfig{Rate: "2-M"}},
			wantRate: "2-M",
		},
		{
			name:     "database error falls back to default",
			repo:     &fakeRatelimitRepo{getErr: errors.New("connection refused")},
			wantRate: "10-M",
		},
		{
			name:     "unparseable stored rate falls back to default",
			repo:     &fakeRatelimitRepo{cfg: &models.RatelimitConfig{Rate: "bogus"}},
			wantRate: "10-M",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rl := NewRateLimitReloader(context.Background(), memory.NewStore(), tt.repo, "10-M", zap.NewNop(), 0)
			if got := rl.Rate(); got != tt.wantRate {
				t.Errorf("Rate() = %q, want %q", got, tt.wantRate)
			}
			if len(tt.repo.sets) != tt.wantSets {
				t.Errorf("Expected %d default seeds, got %d", tt.wantSets, len(tt.repo.sets))
			}
		})
	}
}

func TestRateLimitReloader_Enforces(t *testing.T) {
	t.Parallel()

	repo := &fakeRatelimitRepo{cfg: &models.RatelimitConfig{Rate: "2-M"}}
	rl := NewRateLimitReloader(context.Background(), memory.NewStore(), repo, "", zap.NewNop(), 0)
	h := rl.Middleware()(okHandler())

	for i := 0; i < 2; i++ {
		if w := hit(h, "198.51.100.7"); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
	}

	w := hit(h, "198.51.100.7")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 after limit, got %d", w.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if body.Error != "Too Many Requests" {
		t.Errorf("Expected error 'Too Many Requests', got %q", body.Error)
	}
	if w.Header().Get("X-RateLimit-Limit") != "2" {
		t.Errorf("Expected X-RateLimit-Limit 2, got %q", w.Header().Get("X-RateLimit-Limit"))
	}

	if w := hit(h, "203.0.113.9"); w.Code != http.StatusOK {
		t.Errorf("Expected a different client to pass, got %d", w.Code)
	}
}

func TestRateLimitReloader_SharedAcrossRouters(t *testing.T) {
	t.Parallel()

	repo := &fakeRatelimitRepo{cfg: &models.RatelimitConfig{Rate: "1-M"}}
	rl := NewRateLimitReloader(context.Background(), memory.NewStore(), repo, "", zap.NewNop(), 0)
	imports := rl.Middleware()(okHandler())
	templates := rl.Middleware()(okHandler())

	if w := hit(imports, "198.51.100.8"); w.Code != http.StatusOK {
		t.Fatalf("Expected first request to pass, got %d", w.Code)
	}
	if w := hit(templates, "198.51.100.8"); w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected the second router to share the limit, got %d", w.Code)
	}
}

func TestRateLimitReloader_Reload(t *testing.T) {
	t.Parallel()

	repo := &fakeRatelimitRepo{cfg: &models.RatelimitConfig{Rate: "1-M"}}
	rl := NewRateLimitReloader(context.Background(), memory.NewStore(), repo, "", zap.NewNop(), 0)

	repo.setRate("100-H")
	rl.load(context.Background())

	if got := rl.Rate(); got != "100-H" {
		t.Errorf("Rate() after reload = %q, want 100-H", got)
	}
}
