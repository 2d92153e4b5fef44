package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryKeeper is a process-local Keeper for runs without DynamoDB.
type MemoryKeeper struct {
	mu        sync.Mutex
	records   map[string]SubmissionRecord
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

var _ Keeper = (*MemoryKeeper)(nil)

// NewMemoryKeeper returns an empty MemoryKeeper.
func NewMemoryKeeper(ttlWindow time.Duration) *MemoryKeeper {
	return &MemoryKeeper{
		records:   map[string]SubmissionRecord{},
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

func (m *MemoryKeeper) Begin(ctx context.Context, key, fingerprint string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	if rec, ok := m.records[key]; ok && rec.Status != StatusFailed && !rec.Expired(now) {
		return false, nil
	}
	m.records[key] = SubmissionRecord{
		IdempotencyKey: key,
		Status:         StatusInProgress,
		Fingerprint:    fingerprint,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(m.ttlWindow).Unix(),
	}
	return true, nil
}

func (m *MemoryKeeper) Get(ctx context.Context, key string) (*SubmissionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryKeeper) Complete(ctx context.Context, key, requestID, responseBody string, responseStatus int) error {
	m.update(key, func(r *SubmissionRecord) {
		r.Status = StatusDone
		r.RequestID = requestID
		r.ResponseBody = responseBody
		r.ResponseStatus = responseStatus
	})
	return nil
}

func (m *MemoryKeeper) Fail(ctx context.Context, key, note string) error {
	m.update(key, func(r *SubmissionRecord) {
		r.Status = StatusFailed
		r.Note = note
	})
	return nil
}

func (m *MemoryKeeper) update(key string, fn func(*SubmissionRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.records[key]
	rec.IdempotencyKey = key
	fn(&rec)
	rec.UpdatedAt = m.nowFunc()
	m.records[key] = rec
}
