package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/automerger/internal/domain"
)

// DedupStore decides whether a (amount, market) pair may be submitted now.
type DedupStore interface {
	// Admit returns false if key was admitted less than the cooldown ago.
	// Otherwise it forgets every key of key.MarketID, records key at now
	// and returns true. Check and update are atomic.
	Admit(ctx context.Context, key domain.DedupKey, now time.Time) (bool, error)
}
