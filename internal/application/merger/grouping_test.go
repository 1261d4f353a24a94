package merger

import (
	"testing"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pos(event, slug string, outcomeIdx int, size string) domain.Position {
	outcome := "Yes"
	if outcomeIdx == domain.NoOutcomeIndex {
		outcome = domain.NoOutcome
	}
	return domain.Position{
		ConditionID:  "0x" + slug,
		Slug:         slug,
		EventSlug:    event,
		Outcome:      outcome,
		OutcomeIndex: outcomeIdx,
		Size:         decimal.RequireFromString(size),
		NegativeRisk: true,
	}
}

var minSize = decimal.RequireFromString("0.1")

func TestMatchGroups_MinimumAcrossSnapshots(t *testing.T) {
	first := []domain.Position{pos("e", "a", 1, "10"), pos("e", "b", 1, "7.5")}
	second := []domain.Position{pos("e", "a", 1, "9"), pos("e", "b", 1, "8")}

	groups := matchGroups(first, second, minSize)
	require.Len(t, groups, 1)
	assert.Equal(t, "e", groups[0].EventSlug)
	assert.Equal(t, []string{"a", "b"}, groups[0].Slugs)
	assert.Equal(t, "7.5", groups[0].Amount.String())
}

func TestMatchGroups_NeedsTwoMarketsInBothSnapshots(t *testing.T) {
	first := []domain.Position{pos("e", "a", 1, "10"), pos("e", "b", 1, "10")}
	second := []domain.Position{pos("e", "a", 1, "10"), pos("e", "c", 1, "10")}

	assert.Empty(t, matchGroups(first, second, minSize))
}

func TestMatchGroups_IgnoresYesAndDust(t *testing.T) {
	first := []domain.Position{
		pos("e", "a", 1, "10"),
		pos("e", "b", 0, "10"),   // Yes
		pos("e", "c", 1, "0.05"), // por debajo del mínimo
	}
	assert.Empty(t, matchGroups(first, first, minSize))
}

func TestMatchGroups_NoLabelMustMatchIndex(t *testing.T) {
	odd := pos("e", "b", 1, "10")
	odd.Outcome = "Yes"
	first := []domain.Position{pos("e", "a", 1, "10"), odd}
	assert.Empty(t, matchGroups(first, first, minSize))
}

func TestMatchGroups_SortedByEvent(t *testing.T) {
	snap := []domain.Position{
		pos("zeta", "a", 1, "1"), pos("zeta", "b", 1, "2"),
		pos("alpha", "c", 1, "3"), pos("alpha", "d", 1, "4"), pos("alpha", "e", 1, "5"),
	}
	groups := matchGroups(snap, snap, minSize)
	require.Len(t, groups, 2)
	assert.Equal(t, "alpha", groups[0].EventSlug)
	assert.Equal(t, "3", groups[0].Amount.String())
	assert.Len(t, groups[0].Slugs, 3)
	assert.Equal(t, "zeta", groups[1].EventSlug)
}

func TestMatchPairs(t *testing.T) {
	yes := pos("", "m", 0, "4")
	no := pos("", "m", 1, "6")
	yes.NegativeRisk, no.NegativeRisk = false, false

	later := no
	later.Size = decimal.RequireFromString("3.25")

	pairs := matchPairs([]domain.Position{yes, no}, []domain.Position{yes, later}, minSize)
	require.Len(t, pairs, 1)
	assert.Equal(t, "0xm", pairs[0].ConditionID)
	assert.Equal(t, "3.25", pairs[0].Amount.String())

	// neg-risk no se mergea por pares
	yes.NegativeRisk, no.NegativeRisk = true, true
	assert.Empty(t, matchPairs([]domain.Position{yes, no}, []domain.Position{yes, no}, minSize))

	// un solo lado
	assert.Empty(t, matchPairs([]domain.Position{yes}, []domain.Position{yes}, minSize))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "dedup_check", StateDedupCheck.String())
	assert.Equal(t, "unknown", State(42).String())
}
