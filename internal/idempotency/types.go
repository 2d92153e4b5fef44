package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// SubmissionRecord is the shape persisted in the idempotency table, one per
// Idempotency-Key sent with a request submission.
type SubmissionRecord struct {
	IdempotencyKey string    `dynamodbav:"idempotency_key"` // PK
	Status         string    `dynamodbav:"status"`
	Fingerprint    string    `dynamodbav:"fingerprint,omitempty"` // sha256 of the submitted body
	RequestID      string    `dynamodbav:"request_id,omitempty"`
	ResponseBody   string    `dynamodbav:"response_body,omitempty"`
	ResponseStatus int       `dynamodbav:"response_status,omitempty"`
	CreatedAt      time.Time `dynamodbav:"created_at"`
	UpdatedAt      time.Time `dynamodbav:"updated_at"`
	ExpiresAt      int64     `dynamodbav:"expires_at"` // TTL epoch seconds
	Note           string    `dynamodbav:"note,omitempty"`
}

// Expired reports whether the record is past its TTL at now. DynamoDB deletes
// expired items lazily, so readers must check.
func (r SubmissionRecord) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.Unix() >= r.ExpiresAt
}

// Keeper is the idempotency bookkeeping used by the submission handler.
//
// Begin claims key for a new attempt and reports whether the claim succeeded.
// A key whose previous attempt FAILED or whose record expired can be claimed again.
type Keeper interface {
	Begin(ctx context.Context, key, fingerprint string) (bool, error)
	Get(ctx context.Context, key string) (*SubmissionRecord, error)
	Complete(ctx context.Context, key, requestID, responseBody string, responseStatus int) error
	Fail(ctx context.Context, key, note string) error
}

// Fingerprint hashes a request body so a key reused with a different payload
// can be told apart from a retry.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
