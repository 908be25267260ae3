package ratelimit

import (
	"context"
	"time"

	"caelex/internal/platform/repositories"
)

// Decision reports the outcome of a rate-limit check. Count and Limit
// are surfaced in the 429 payload so callers can see where they stand.
type Decision struct {
	Allowed bool `json:"allowed"`
	Count   int  `json:"count"`
	Limit   int  `json:"limit"`
}

// Limiter gates requests per key against a trailing fixed window.
// Allow runs before the handler; Record runs after it completes, so a
// failed request does not consume budget on backends that bill on
// Record.
type Limiter interface {
	Allow(ctx context.Context, keyID string, limit int) (Decision, error)
	Record(ctx context.Context, keyID string) error
}

// SQLLimiter counts rows in the api_requests ledger. Shared ground
// truth across server instances and an exact audit trail of every
// counted request, at the cost of one COUNT query per call.
type SQLLimiter struct {
	repo   *repositories.APIKeyRepository
	window time.Duration
}

func NewSQLLimiter(repo *repositories.APIKeyRepository, window time.Duration) *SQLLimiter {
	return &SQLLimiter{repo: repo, window: window}
}

func (l *SQLLimiter) Allow(ctx context.Context, keyID string, limit int) (Decision, error) {
	since := time.Now().Add(-l.window).Unix()
	count, err := l.repo.CountRequestsSince(keyID, since)
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: count < limit, Count: count, Limit: limit}, nil
}

func (l *SQLLimiter) Record(ctx context.Context, keyID string) error {
	return l.repo.InsertRequest(keyID)
}

// Prune drops ledger rows older than twice the window. Anything that
// old can no longer influence a decision.
func (l *SQLLimiter) Prune() (int64, error) {
	before := time.Now().Add(-2 * l.window).Unix()
	return l.repo.PruneRequests(before)
}
