package memory

import (
	"errors"
	"fmt"
)

var (
	ErrRelocatableAddOverflow   = errors.New("relocatable: offset addition overflows usize")
	ErrRelocatableSubNegOffset  = errors.New("relocatable: offset subtraction underflows usize")
	ErrRelocatableSubSegmentMix = errors.New("relocatable: subtraction requires matching segment index")
	ErrRelocatableAddRelocRel   = errors.New("relocatable: cannot add two relocatable values")
	ErrRelocatableMulRelocatable = errors.New("relocatable: cannot multiply a relocatable value")
)

// Relocatable is a (segment_index, offset) address. A negative segment
// index denotes a temporary segment pending relocation (spec §3); a
// non-negative index denotes a real segment.
type Relocatable struct {
	SegmentIndex int
	Offset       uint64
}

func NewRelocatable(segmentIndex int, offset uint64) Relocatable {
	return Relocatable{SegmentIndex: segmentIndex, Offset: offset}
}

func (r Relocatable) IsTemporary() bool {
	return r.SegmentIndex < 0
}

func (r Relocatable) Equal(other Relocatable) bool {
	return r.SegmentIndex == other.SegmentIndex && r.Offset == other.Offset
}

func (r Relocatable) String() string {
	if r.IsTemporary() {
		return fmt.Sprintf("(-%d:%d)", -r.SegmentIndex, r.Offset)
	}
	return fmt.Sprintf("(%d:%d)", r.SegmentIndex, r.Offset)
}

// AddUint adds a plain non-negative amount to the offset. Used internally
// where the caller already guarantees no overflow (e.g. instruction size).
func (r Relocatable) AddUint(amount uint64) (Relocatable, error) {
	newOffset := r.Offset + amount
	if newOffset < r.Offset {
		return Relocatable{}, ErrRelocatableAddOverflow
	}
	return Relocatable{SegmentIndex: r.SegmentIndex, Offset: newOffset}, nil
}

// AddFelt coerces f to a non-negative integer offset and adds it.
func (r Relocatable) AddFelt(f Felt) (Relocatable, error) {
	amount, err := f.ToUint64()
	if err != nil {
		return Relocatable{}, fmt.Errorf("relocatable add felt: %w", err)
	}
	return r.AddUint(amount)
}

// SubUint subtracts a plain amount from the offset, failing on underflow.
func (r Relocatable) SubUint(amount uint64) (Relocatable, error) {
	if amount > r.Offset {
		return Relocatable{}, ErrRelocatableSubNegOffset
	}
	return Relocatable{SegmentIndex: r.SegmentIndex, Offset: r.Offset - amount}, nil
}

// SubFelt coerces f to a non-negative integer and subtracts it from the
// offset; underflow is a typed error (spec §3).
func (r Relocatable) SubFelt(f Felt) (Relocatable, error) {
	amount, err := f.ToUint64()
	if err != nil {
		return Relocatable{}, fmt.Errorf("relocatable sub felt: %w", err)
	}
	return r.SubUint(amount)
}

// SubRelocatable is defined only when both addresses share a segment index;
// the result is the felt distance between the two offsets.
func (r Relocatable) SubRelocatable(other Relocatable) (Felt, error) {
	if r.SegmentIndex != other.SegmentIndex {
		return Felt{}, ErrRelocatableSubSegmentMix
	}
	if other.Offset > r.Offset {
		return Felt{}, ErrRelocatableSubNegOffset
	}
	return FeltFromUint64(r.Offset - other.Offset), nil
}

type tag uint8

const (
	tagFelt tag = iota
	tagRelocatable
)

// MaybeRelocatable is the tagged union of Felt and Relocatable that every
// memory cell holds (spec §3).
type MaybeRelocatable struct {
	kind  tag
	felt  Felt
	reloc Relocatable
}

func NewMaybeRelocatableFelt(f Felt) MaybeRelocatable {
	return MaybeRelocatable{kind: tagFelt, felt: f}
}

func NewMaybeRelocatableRelocatable(r Relocatable) MaybeRelocatable {
	return MaybeRelocatable{kind: tagRelocatable, reloc: r}
}

func (m MaybeRelocatable) IsFelt() bool {
	return m.kind == tagFelt
}

func (m MaybeRelocatable) IsRelocatable() bool {
	return m.kind == tagRelocatable
}

func (m MaybeRelocatable) GetFelt() (Felt, bool) {
	if m.kind != tagFelt {
		return Felt{}, false
	}
	return m.felt, true
}

func (m MaybeRelocatable) GetRelocatable() (Relocatable, bool) {
	if m.kind != tagRelocatable {
		return Relocatable{}, false
	}
	return m.reloc, true
}

func (m MaybeRelocatable) Equal(other MaybeRelocatable) bool {
	if m.kind != other.kind {
		return false
	}
	if m.kind == tagFelt {
		return m.felt.Equal(other.felt)
	}
	return m.reloc.Equal(other.reloc)
}

func (m MaybeRelocatable) IsZero() bool {
	return m.kind == tagFelt && m.felt.IsZero()
}

func (m MaybeRelocatable) String() string {
	if m.kind == tagFelt {
		return m.felt.String()
	}
	return m.reloc.String()
}

// Add implements spec §3/§4.4's addition rules: relocatable+relocatable is
// forbidden; relocatable+felt yields a relocatable; felt+felt yields a felt.
func (m MaybeRelocatable) Add(other MaybeRelocatable) (MaybeRelocatable, error) {
	switch {
	case m.IsFelt() && other.IsFelt():
		return NewMaybeRelocatableFelt(Felt{}.Add(m.felt, other.felt)), nil
	case m.IsRelocatable() && other.IsFelt():
		r, err := m.reloc.AddFelt(other.felt)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		return NewMaybeRelocatableRelocatable(r), nil
	case m.IsFelt() && other.IsRelocatable():
		r, err := other.reloc.AddFelt(m.felt)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		return NewMaybeRelocatableRelocatable(r), nil
	default:
		return MaybeRelocatable{}, ErrRelocatableAddRelocRel
	}
}

// Sub implements the subtraction rules used by operand deduction (spec
// §4.4): felt-felt=felt; relocatable-felt=relocatable;
// relocatable-relocatable (same segment)=felt.
func (m MaybeRelocatable) Sub(other MaybeRelocatable) (MaybeRelocatable, error) {
	switch {
	case m.IsFelt() && other.IsFelt():
		return NewMaybeRelocatableFelt(Felt{}.Sub(m.felt, other.felt)), nil
	case m.IsRelocatable() && other.IsFelt():
		r, err := m.reloc.SubFelt(other.felt)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		return NewMaybeRelocatableRelocatable(r), nil
	case m.IsRelocatable() && other.IsRelocatable():
		f, err := m.reloc.SubRelocatable(other.reloc)
		if err != nil {
			return MaybeRelocatable{}, err
		}
		return NewMaybeRelocatableFelt(f), nil
	default:
		return MaybeRelocatable{}, ErrRelocatableSubSegmentMix
	}
}

// Mul only ever makes sense between two felts; any relocatable operand is
// an error (spec §4.4 step 4).
func (m MaybeRelocatable) Mul(other MaybeRelocatable) (MaybeRelocatable, error) {
	if !m.IsFelt() || !other.IsFelt() {
		return MaybeRelocatable{}, ErrRelocatableMulRelocatable
	}
	return NewMaybeRelocatableFelt(Felt{}.Mul(m.felt, other.felt)), nil
}

// Div computes felt/felt; used by op0/op1 deduction under Mul res-logic.
func (m MaybeRelocatable) Div(other MaybeRelocatable) (MaybeRelocatable, error) {
	if !m.IsFelt() || !other.IsFelt() {
		return MaybeRelocatable{}, ErrRelocatableMulRelocatable
	}
	q, err := Felt{}.Div(m.felt, other.felt)
	if err != nil {
		return MaybeRelocatable{}, err
	}
	return NewMaybeRelocatableFelt(q), nil
}
