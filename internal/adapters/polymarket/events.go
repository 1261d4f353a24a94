package polymarket

import (
	"context"
	"fmt"
	"net/url"

	"github.com/alejandrodnm/automerger/internal/domain"
)

const gammaEventsPath = "/events"

// FetchEvent obtiene la metadata neg-risk de un evento por slug.
// Devuelve domain.ErrMetadataNotFound si Gamma no conoce el slug.
func (c *Client) FetchEvent(ctx context.Context, slug string) (domain.Event, error) {
	q := url.Values{}
	q.Set("slug", slug)

	var resp gammaEventsResponse
	if err := c.get(ctx, c.gammaLimiter, c.gammaBase+gammaEventsPath+"?"+q.Encode(), &resp); err != nil {
		return domain.Event{}, fmt.Errorf("polymarket.FetchEvent: %s: %w", slug, err)
	}

	for _, e := range resp {
		if e.Slug == slug {
			return mapEvent(e), nil
		}
	}
	return domain.Event{}, fmt.Errorf("polymarket.FetchEvent: %s: %w", slug, domain.ErrMetadataNotFound)
}
