package ports

import (
	"context"

	"github.com/alejandrodnm/automerger/internal/domain"
)

// PositionProvider obtiene las posiciones abiertas de una wallet (data-api).
type PositionProvider interface {
	FetchPositions(ctx context.Context, user string) ([]domain.Position, error)
}

// EventProvider obtiene la metadata neg-risk de un evento (Gamma).
type EventProvider interface {
	// FetchEvent devuelve domain.ErrMetadataNotFound si el slug no existe.
	FetchEvent(ctx context.Context, slug string) (domain.Event, error)
}
