package ports

import (
	"context"

	"github.com/alejandrodnm/automerger/internal/domain"
)

// Journal persiste un registro de auditoría de ciclos y envíos.
// Nunca se relee para decidir dedup.
type Journal interface {
	SaveSubmission(ctx context.Context, sub domain.Submission) error
	SaveCycle(ctx context.Context, result domain.CycleResult) error

	// RecentSubmissions devuelve los últimos n envíos, más reciente primero.
	RecentSubmissions(ctx context.Context, n int) ([]domain.Submission, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
