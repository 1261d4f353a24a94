package merger

import (
	"context"
	"time"
)

// State es la fase en la que está el detector.
type State int32

const (
	StateIdle State = iota
	StateSnapshot1
	StateSnapshot2
	StateGroupAndMatch
	StateDedupCheck
	StateSubmit
)

var stateNames = [...]string{"idle", "snapshot1", "snapshot2", "group_and_match", "dedup_check", "submit"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Clock abstrae el tiempo para que los tests no duerman de verdad.
type Clock interface {
	Now() time.Time
	// Sleep espera d o hasta que ctx se cancele; devuelve ctx.Err() en ese caso.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
