package domain

import (
	"fmt"
	"math/big"
	"math/bits"

	"github.com/holiman/uint256"
)

// MaxSlot is the highest question slot an index set can address.
const MaxSlot = 255

// IndexSet is a 256-bit mask over question slots: bit i is set iff slot i
// takes part in a convert call.
type IndexSet struct {
	v uint256.Int
}

// PositionsToIndexSet sets bit i for every position i. Duplicates are
// idempotent.
func PositionsToIndexSet(positions []int) (IndexSet, error) {
	var s IndexSet
	for _, p := range positions {
		if p < 0 || p > MaxSlot {
			return IndexSet{}, fmt.Errorf("%w: position %d outside [0,%d]", ErrInvalidInput, p, MaxSlot)
		}
		s.v[p/64] |= 1 << (uint(p) % 64)
	}
	return s, nil
}

// InvertMask complements the low questionCount bits of mask. Bits at or
// above questionCount are left untouched. A questionCount of 256 or more
// complements the whole word.
func InvertMask(mask IndexSet, questionCount int) (IndexSet, error) {
	if questionCount < 0 {
		return IndexSet{}, fmt.Errorf("%w: negative question count %d", ErrInvalidInput, questionCount)
	}

	var ones uint256.Int
	if questionCount > MaxSlot {
		ones.Not(&ones)
	} else {
		ones.Lsh(uint256.NewInt(1), uint(questionCount))
		ones.SubUint64(&ones, 1)
	}

	var out IndexSet
	out.v.Xor(&ones, &mask.v)
	return out, nil
}

// PositionsToIndexSetComplement returns the index set of every slot below
// questionCount that is NOT in positions.
func PositionsToIndexSetComplement(positions []int, questionCount int) (IndexSet, error) {
	s, err := PositionsToIndexSet(positions)
	if err != nil {
		return IndexSet{}, err
	}
	return InvertMask(s, questionCount)
}

// NewIndexSet builds an index set from the low 64 bits.
func NewIndexSet(mask uint64) IndexSet {
	var s IndexSet
	s.v.SetUint64(mask)
	return s
}

// Positions returns the set slots in ascending order.
func (s IndexSet) Positions() []int {
	out := make([]int, 0, s.Len())
	for i := 0; i <= MaxSlot; i++ {
		if s.Contains(i) {
			out = append(out, i)
		}
	}
	return out
}

// Contains reports whether slot is set.
func (s IndexSet) Contains(slot int) bool {
	if slot < 0 || slot > MaxSlot {
		return false
	}
	return s.v[slot/64]>>(uint(slot)%64)&1 == 1
}

// Len devuelve la cantidad de slots activos.
func (s IndexSet) Len() int {
	n := 0
	for _, w := range s.v {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsZero reports whether no slot is set.
func (s IndexSet) IsZero() bool {
	return s.v.IsZero()
}

// Equal reports whether both sets hold the same slots.
func (s IndexSet) Equal(o IndexSet) bool {
	return s.v.Eq(&o.v)
}

// Big returns the mask as a uint256 ABI value.
func (s IndexSet) Big() *big.Int {
	return s.v.ToBig()
}

// String devuelve el valor decimal, tal como lo ve el contrato.
func (s IndexSet) String() string {
	return s.v.ToBig().String()
}
