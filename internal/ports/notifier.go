package ports

import (
	"context"

	"github.com/alejandrodnm/automerger/internal/domain"
)

// Notifier presenta el resultado de cada ciclo al usuario.
type Notifier interface {
	// NotifyCycle muestra los grupos detectados y su estado.
	// En la implementación de consola, imprime una línea o una tabla.
	NotifyCycle(ctx context.Context, result domain.CycleResult) error
}
