package polymarket

import (
	"log/slog"
	"strings"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/shopspring/decimal"
)

// mapPositions convierte los DTOs de data-api a domain.Position.
// Las posiciones con size ilegible se descartan.
func mapPositions(raw []positionDTO) []domain.Position {
	positions := make([]domain.Position, 0, len(raw))
	for _, r := range raw {
		p, ok := mapPosition(r)
		if !ok {
			slog.Debug("skipping position with unparseable size", "asset", r.Asset, "size", r.Size.String())
			continue
		}
		positions = append(positions, p)
	}
	return positions
}

func mapPosition(r positionDTO) (domain.Position, bool) {
	size, err := decimal.NewFromString(r.Size.String())
	if err != nil {
		return domain.Position{}, false
	}
	return domain.Position{
		ProxyWallet:  r.ProxyWallet,
		Asset:        r.Asset,
		ConditionID:  strings.ToLower(r.ConditionID),
		Slug:         r.Slug,
		EventSlug:    r.EventSlug,
		Title:        r.Title,
		Outcome:      r.Outcome,
		OutcomeIndex: r.OutcomeIndex,
		Size:         size,
		NegativeRisk: r.NegativeRisk,
	}, true
}

// mapEvent convierte un evento de Gamma a domain.Event.
func mapEvent(r gammaEvent) domain.Event {
	e := domain.Event{
		Slug:            r.Slug,
		Title:           r.Title,
		NegRisk:         r.NegRisk,
		NegRiskMarketID: r.NegRiskMarketID,
		Markets:         make([]domain.EventMarket, 0, len(r.Markets)),
	}
	for _, m := range r.Markets {
		e.Markets = append(e.Markets, domain.EventMarket{
			Slug:        m.Slug,
			ConditionID: strings.ToLower(m.ConditionID),
			QuestionID:  m.QuestionID,
		})
	}
	return e
}
