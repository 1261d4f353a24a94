package polymarket

import "encoding/json"

// DTOs raw de data-api y Gamma. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- data-api ---

// positionDTO es un elemento de GET /positions.
// size llega como número JSON, a veces como string; json.Number acepta ambos.
type positionDTO struct {
	ProxyWallet  string      `json:"proxyWallet"`
	Asset        string      `json:"asset"`
	ConditionID  string      `json:"conditionId"`
	Size         json.Number `json:"size"`
	CurPrice     json.Number `json:"curPrice"`
	Title        string      `json:"title"`
	Slug         string      `json:"slug"`
	EventSlug    string      `json:"eventSlug"`
	Outcome      string      `json:"outcome"`
	OutcomeIndex int         `json:"outcomeIndex"`
	Mergeable    bool        `json:"mergeable"`
	NegativeRisk bool        `json:"negativeRisk"`
}

// --- Gamma API ---

// gammaEventsResponse es la respuesta de GET /events?slug=.
type gammaEventsResponse []gammaEvent

// gammaEvent contiene la metadata neg-risk de un evento.
type gammaEvent struct {
	Slug            string        `json:"slug"`
	Title           string        `json:"title"`
	NegRisk         bool          `json:"negRisk"`
	NegRiskMarketID string        `json:"negRiskMarketID"`
	Markets         []gammaMarket `json:"markets"`
}

// gammaMarket es un mercado dentro de un evento.
type gammaMarket struct {
	Slug        string `json:"slug"`
	Question    string `json:"question"`
	ConditionID string `json:"conditionId"`
	QuestionID  string `json:"questionID"`
	Closed      bool   `json:"closed"`
}
