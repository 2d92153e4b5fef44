package requests

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/imrishuroy/go-procurement-workflow/internal/procurement"
)

// MemoryStore is an in-process Store. Records are copied on the way in and out so
// callers never share state with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	items   map[string]procurement.ProcurementRequest
	nowFunc func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:   map[string]procurement.ProcurementRequest{},
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Create(ctx context.Context, req *procurement.ProcurementRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req.ID = uuid.NewString()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = m.nowFunc()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	m.items[req.ID] = req.Clone()
	return req.ID, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*procurement.ProcurementRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	c := r.Clone()
	return &c, nil
}

// List copies every record under one read lock, so the snapshot is never torn.
func (m *MemoryStore) List(ctx context.Context) ([]procurement.ProcurementRequest, error) {
	m.mu.RLock()
	out := make([]procurement.ProcurementRequest, 0, len(m.items))
	for _, r := range m.items {
		out = append(out, r.Clone())
	}
	m.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

func (m *MemoryStore) UpdateStatus(ctx context.Context, id string, expected procurement.Status, next procurement.ProcurementRequest) error {
	change, err := lastChange(next)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.items[id]
	if !ok || r.Status != expected {
		return ErrStatusMismatch
	}
	r = r.Clone()
	r.Status = next.Status
	r.UpdatedAt = next.UpdatedAt
	r.History = append(r.History, change)
	m.items[id] = r
	return nil
}
