package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	positionsPath        = "/positions"
	defaultPageLimit     = 500
	maxPositionPages     = 20
	defaultSizeThreshold = "0.1"
)

// PositionsQuery controla la paginación y el filtro de tamaño de /positions.
type PositionsQuery struct {
	PageLimit     int
	SizeThreshold decimal.Decimal
}

// FetchPositions devuelve todas las posiciones abiertas de user, paginando
// mientras la data-api devuelva páginas llenas.
func (c *Client) FetchPositions(ctx context.Context, user string) ([]domain.Position, error) {
	limit := c.positions.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	threshold := c.positions.SizeThreshold
	if threshold.IsZero() {
		threshold = decimal.RequireFromString(defaultSizeThreshold)
	}

	var all []domain.Position
	for page := 0; page < maxPositionPages; page++ {
		q := url.Values{}
		q.Set("user", user)
		q.Set("sizeThreshold", threshold.String())
		q.Set("limit", strconv.Itoa(limit))
		q.Set("offset", strconv.Itoa(page*limit))
		q.Set("sortBy", "CURRENT")
		q.Set("sortDirection", "DESC")

		var raw []positionDTO
		if err := c.get(ctx, c.dataLimiter, c.dataBase+positionsPath+"?"+q.Encode(), &raw); err != nil {
			return nil, fmt.Errorf("polymarket.FetchPositions: page %d: %w", page, err)
		}
		all = append(all, mapPositions(raw)...)

		if len(raw) < limit {
			break
		}
	}

	slog.Debug("positions fetched", "user", user, "count", len(all))
	return all, nil
}
