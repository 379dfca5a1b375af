package withdrawal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu       sync.RWMutex
	requests map[string]*Request
}

// NewMemoryRepository constructs an in-memory repository for tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{requests: make(map[string]*Request)}
}

func (r *memoryRepository) Create(_ context.Context, req Request) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req.ID = uuid.NewString()
	req.Status = StatusPending
	req.CreatedAt = time.Now().UTC()
	r.requests[req.ID] = &req
	return req, nil
}

func (r *memoryRepository) Get(_ context.Context, id string) (Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return *req, nil
}

func (r *memoryRepository) Transition(_ context.Context, id string, from, to Status, note, processedBy string) (Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	req, ok := r.requests[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	if req.Status != from {
		return *req, ErrInvalidState
	}

	req.Status = to
	if note != "" {
		req.AdminNote = note
	}
	if processedBy != "" {
		req.ProcessedBy = processedBy
	}
	if to == StatusCompleted || to == StatusRejected {
		req.ProcessedAt = time.Now().UTC()
	}
	return *req, nil
}

func (r *memoryRepository) List(_ context.Context, status Status, limit, offset int) ([]Request, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Request
	for _, req := range r.requests {
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if offset >= len(out) {
		return []Request{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
