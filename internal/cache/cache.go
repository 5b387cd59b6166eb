package cache

import (
	"context"

	"github.com/example/ride-share/internal/models"
)

// ListingCache holds recent ride-search results. Entries are short-lived and
// the whole cache is invalidated on any ride write, so staleness is bounded
// by the TTL in the worst case and by the invalidation in the common one.
type ListingCache interface {
	Get(ctx context.Context, key string) ([]*models.Ride, bool)
	Set(ctx context.Context, key string, rides []*models.Ride)
	Invalidate(ctx context.Context)
}
