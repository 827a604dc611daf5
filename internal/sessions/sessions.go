// Package sessions persists import review sessions between requests.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/report-templates/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown or expired sessions.
var ErrNotFound = errors.New("import session not found")

// Repository stores import sessions. Save refreshes the session's expiry.
type Repository interface {
	Get(ctx context.Context, id uuid.UUID) (*models.ImportSession, error)
	Save(ctx context.Context, s *models.ImportSession) error
	// Update is Save for a session that must still exist; it returns
	// ErrNotFound once the session was deleted or taken.
	Update(ctx context.Context, s *models.ImportSession) error
	Delete(ctx context.Context, id uuid.UUID) error
	// Take removes and returns a session in one step, so only one caller
	// can claim it.
	Take(ctx context.Context, id uuid.UUID) (*models.ImportSession, error)
}

// MemoryRepository keeps sessions in process memory. It is used by tests and
// single-instance tooling; sessions are lost on restart.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID][]byte
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryRepository creates a memory repository whose sessions expire after ttl.
func NewMemoryRepository(ttl time.Duration) *MemoryRepository {
	return &MemoryRepository{
		sessions: make(map[uuid.UUID][]byte),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a copy of the stored session.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*models.ImportSession, error) {
	r.mu.Lock()
	data, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s, err := decode(data)
	if err != nil {
		return nil, err
	}
	if s.Expired(r.now()) {
		r.mu.Lock()
		delete(r.sessions, id)
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Save stores the session and pushes its expiry ttl into the future.
func (r *MemoryRepository) Save(_ context.Context, s *models.ImportSession) error {
	s.ExpiresAt = r.now().Add(r.ttl)
	data, err := encode(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.sessions[s.ID] = data
	r.mu.Unlock()
	return nil
}

// Update stores the session only when it is still present.
func (r *MemoryRepository) Update(_ context.Context, s *models.ImportSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, s.ID)
	}
	s.ExpiresAt = r.now().Add(r.ttl)
	data, err := encode(s)
	if err != nil {
		return err
	}
	r.sessions[s.ID] = data
	return nil
}

// Delete removes the session.
func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.sessions, id)
	return nil
}

// Take removes the session and returns it.
func (r *MemoryRepository) Take(_ context.Context, id uuid.UUID) (*models.ImportSession, error) {
	r.mu.Lock()
	data, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s, err := decode(data)
	if err != nil {
		return nil, err
	}
	if s.Expired(r.now()) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

var _ Repository = (*MemoryRepository)(nil)
