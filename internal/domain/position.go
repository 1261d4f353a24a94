package domain

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// NoOutcomeIndex is the outcome index of the "No" token in a binary market.
	NoOutcomeIndex = 1
	// NoOutcome is the outcome label of the "No" token.
	NoOutcome = "No"
)

// Position es un registro inmutable de la data-api: lo que la wallet tiene en
// un mercado en el momento del snapshot.
type Position struct {
	ProxyWallet  string
	Asset        string // token id
	ConditionID  string
	Slug         string // slug del mercado
	EventSlug    string
	Title        string
	Outcome      string // "Yes" | "No"
	OutcomeIndex int
	Size         decimal.Decimal
	NegativeRisk bool
}

// IsNo reports whether the position is on the "No" side.
func (p Position) IsNo() bool {
	return p.OutcomeIndex == NoOutcomeIndex && p.Outcome == NoOutcome
}

// Event is the gamma view of a multi-market event.
type Event struct {
	Slug            string
	Title           string
	NegRisk         bool
	NegRiskMarketID string
	Markets         []EventMarket
}

// EventMarket is one question of an event.
type EventMarket struct {
	Slug        string
	ConditionID string
	QuestionID  string
}

// Market returns the event market with the given slug.
func (e Event) Market(slug string) (EventMarket, bool) {
	for _, m := range e.Markets {
		if m.Slug == slug {
			return m, true
		}
	}
	return EventMarket{}, false
}

// Slot returns the question slot encoded in the low-order byte of the
// question id.
func (m EventMarket) Slot() (int, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(m.QuestionID, "0x"), "0X")
	if s == "" || len(s) > 64 {
		return 0, fmt.Errorf("%w: question id %q", ErrEncoding, m.QuestionID)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: question id %q: %v", ErrEncoding, m.QuestionID, err)
	}
	return int(b[len(b)-1]), nil
}
