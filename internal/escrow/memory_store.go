package escrow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryStore struct {
	mu       sync.RWMutex
	holdings map[string]*Holding // keyed by ID
	byPair   map[string]string   // ownerID+"\x00"+orderRef -> ID
}

// NewMemoryStore constructs an in-memory escrow store for tests.
func NewMemoryStore() Store {
	return &memoryStore{
		holdings: make(map[string]*Holding),
		byPair:   make(map[string]string),
	}
}

func pairKey(ownerID, orderRef string) string {
	return ownerID + "\x00" + orderRef
}

func (s *memoryStore) Put(_ context.Context, h Holding) (Holding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.byPair[pairKey(h.OwnerID, h.OrderRef)]; exists {
		return *s.holdings[id], ErrAlreadyHeld
	}

	h.ID = uuid.NewString()
	h.Transferred = false
	h.TransferredAt = time.Time{}
	h.CreatedAt = time.Now().UTC()

	s.holdings[h.ID] = &h
	s.byPair[pairKey(h.OwnerID, h.OrderRef)] = h.ID
	return h, nil
}

func (s *memoryStore) Untransferred(_ context.Context, ownerID string) ([]Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Holding
	for _, h := range s.holdings {
		if h.OwnerID == ownerID && !h.Transferred {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) MarkTransferred(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.holdings[id]
	if !ok {
		return ErrNotFound
	}
	if h.Transferred {
		return ErrAlreadyTransferred
	}
	h.Transferred = true
	h.TransferredAt = time.Now().UTC()
	return nil
}

func (s *memoryStore) Has(_ context.Context, ownerID, orderRef string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.byPair[pairKey(ownerID, orderRef)]
	return exists, nil
}
