package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MergeGroup is a set of "No" positions held across two or more markets of
// the same negative-risk event. Amount is the smallest size observed for any
// member across both snapshots.
type MergeGroup struct {
	EventSlug string
	MarketID  string // negRiskMarketID del evento
	Slugs     []string
	Slots     []int
	Amount    decimal.Decimal
}

// IndexSet builds the convert mask for the group's slots.
func (g MergeGroup) IndexSet() (IndexSet, error) {
	return PositionsToIndexSet(g.Slots)
}

// DedupKey identifies a submission for cooldown purposes.
type DedupKey struct {
	Amount   string // decimal canónico, sin ceros a la derecha
	MarketID string
}

// NewDedupKey builds the key for amount on marketID.
func NewDedupKey(amount decimal.Decimal, marketID string) DedupKey {
	return DedupKey{Amount: amount.String(), MarketID: marketID}
}

func (k DedupKey) String() string {
	return k.Amount + "@" + k.MarketID
}

// ConvertRequest asks for a neg-risk convertPositions through the proxy wallet.
type ConvertRequest struct {
	EventSlug string
	MarketID  string
	IndexSet  IndexSet
	Amount    decimal.Decimal
}

// MergeRequest asks for a plain mergePositions of a Yes+No pair.
type MergeRequest struct {
	ConditionID string
	Slug        string
	Amount      decimal.Decimal
}

// SubmissionKind distinguishes convert from merge submissions.
type SubmissionKind string

const (
	KindConvert SubmissionKind = "convert"
	KindMerge   SubmissionKind = "merge"
)

// Submission records one meta-transaction (or direct transaction) sent on
// behalf of the proxy wallet.
type Submission struct {
	ID          string
	Kind        SubmissionKind
	Scheme      string // SAFE | PROXY | ONCHAIN
	EventSlug   string
	Target      string // market id (convert) o condition id (merge)
	IndexSet    string
	Amount      decimal.Decimal
	BaseUnits   string
	Nonce       string
	TxHash      string
	Response    string // cuerpo opaco devuelto por el relayer
	DryRun      bool
	Error       string
	SubmittedAt time.Time
}
