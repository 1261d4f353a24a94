package merger

import (
	"sort"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/shopspring/decimal"
)

// snapshot indexa las posiciones "No" elegibles: evento → slug de mercado → tamaño.
type snapshot map[string]map[string]decimal.Decimal

func indexNoPositions(positions []domain.Position, minSize decimal.Decimal) snapshot {
	out := make(snapshot)
	for _, p := range positions {
		if !p.IsNo() || p.EventSlug == "" || p.Slug == "" || p.Size.LessThan(minSize) {
			continue
		}
		markets, ok := out[p.EventSlug]
		if !ok {
			markets = make(map[string]decimal.Decimal)
			out[p.EventSlug] = markets
		}
		// la data-api devuelve una fila por token; si se repite, nos quedamos con la menor
		if prev, dup := markets[p.Slug]; dup && prev.LessThan(p.Size) {
			continue
		}
		markets[p.Slug] = p.Size
	}
	return out
}

// matchGroups cruza los dos snapshots. Un evento califica si al menos dos
// mercados distintos tienen "No" en ambos; el monto es el mínimo observado
// en esos mercados a través de los dos snapshots.
func matchGroups(first, second []domain.Position, minSize decimal.Decimal) []domain.MergeGroup {
	a := indexNoPositions(first, minSize)
	b := indexNoPositions(second, minSize)

	var groups []domain.MergeGroup
	for event, marketsA := range a {
		marketsB, ok := b[event]
		if !ok {
			continue
		}

		var slugs []string
		var amount decimal.Decimal
		for slug, sizeA := range marketsA {
			sizeB, ok := marketsB[slug]
			if !ok {
				continue
			}
			m := decimal.Min(sizeA, sizeB)
			if len(slugs) == 0 || m.LessThan(amount) {
				amount = m
			}
			slugs = append(slugs, slug)
		}
		if len(slugs) < 2 {
			continue
		}
		sort.Strings(slugs)
		groups = append(groups, domain.MergeGroup{EventSlug: event, Slugs: slugs, Amount: amount})
	}

	sort.Slice(groups, func(i, j int) bool { return groups[i].EventSlug < groups[j].EventSlug })
	return groups
}

// pairSide acumula ambos lados de un mercado binario.
type pairSide struct {
	slug  string
	yes   decimal.Decimal
	no    decimal.Decimal
	hasY  bool
	hasN  bool
}

func indexPairs(positions []domain.Position, minSize decimal.Decimal) map[string]*pairSide {
	out := make(map[string]*pairSide)
	for _, p := range positions {
		if p.NegativeRisk || p.ConditionID == "" || p.Size.LessThan(minSize) {
			continue
		}
		side, ok := out[p.ConditionID]
		if !ok {
			side = &pairSide{slug: p.Slug}
			out[p.ConditionID] = side
		}
		switch p.OutcomeIndex {
		case 0:
			side.yes, side.hasY = p.Size, true
		case domain.NoOutcomeIndex:
			side.no, side.hasN = p.Size, true
		}
	}
	return out
}

// matchPairs devuelve merges Yes+No de mercados binarios (no neg-risk) que
// aparecen completos en ambos snapshots.
func matchPairs(first, second []domain.Position, minSize decimal.Decimal) []domain.MergeRequest {
	a := indexPairs(first, minSize)
	b := indexPairs(second, minSize)

	var out []domain.MergeRequest
	for cond, sa := range a {
		sb, ok := b[cond]
		if !ok || !sa.hasY || !sa.hasN || !sb.hasY || !sb.hasN {
			continue
		}
		amount := decimal.Min(sa.yes, sa.no, sb.yes, sb.no)
		out = append(out, domain.MergeRequest{ConditionID: cond, Slug: sa.slug, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConditionID < out[j].ConditionID })
	return out
}
