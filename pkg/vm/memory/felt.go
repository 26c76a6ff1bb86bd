package memory

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
)

// Felt is an element of the Starknet prime field. It wraps gnark-crypto's
// Montgomery-form representation; every externally visible output (hex
// strings, byte encodings) reflects the canonical least non-negative
// residue, never the Montgomery internal form.
type Felt struct {
	impl fp.Element
}

var (
	ErrFeltDivByZero  = errors.New("felt: division by zero")
	ErrFeltOverflowsU = errors.New("felt: value does not fit in requested width")
)

func FeltFromUint64(v uint64) Felt {
	var f Felt
	f.impl.SetUint64(v)
	return f
}

func FeltFromBigInt(v *big.Int) Felt {
	var f Felt
	f.impl.SetBigInt(v)
	return f
}

func FeltFromDecString(s string) (Felt, error) {
	var f Felt
	if _, err := f.impl.SetString(s); err != nil {
		return Felt{}, err
	}
	return f, nil
}

func FeltFromHex(s string) (Felt, error) {
	var f Felt
	if _, err := f.impl.SetString(s); err != nil {
		return Felt{}, err
	}
	return f, nil
}

func FeltZero() Felt { return Felt{} }

func FeltOne() Felt {
	var f Felt
	f.impl.SetOne()
	return f
}

func FeltFromLeBytes(b *[32]byte) (Felt, error) {
	var f Felt
	elem, err := fp.LittleEndian.Element(b)
	if err != nil {
		return Felt{}, err
	}
	f.impl = elem
	return f, nil
}

// LeBytes returns the little-endian canonical encoding used by the
// memory-output binary format (spec §6).
func (f Felt) LeBytes() [32]byte {
	var out [32]byte
	fp.LittleEndian.PutElement(&out, f.impl)
	return out
}

func (f Felt) Bytes() [32]byte {
	return f.impl.Bytes()
}

func (f Felt) IsZero() bool {
	return f.impl.IsZero()
}

func (f Felt) Equal(other Felt) bool {
	return f.impl.Equal(&other.impl)
}

func (f Felt) Add(a, b Felt) Felt {
	var r Felt
	r.impl.Add(&a.impl, &b.impl)
	return r
}

func (f Felt) Sub(a, b Felt) Felt {
	var r Felt
	r.impl.Sub(&a.impl, &b.impl)
	return r
}

func (f Felt) Mul(a, b Felt) Felt {
	var r Felt
	r.impl.Mul(&a.impl, &b.impl)
	return r
}

// Div computes a / b, failing when b is zero.
func (f Felt) Div(a, b Felt) (Felt, error) {
	if b.IsZero() {
		return Felt{}, ErrFeltDivByZero
	}
	var inv, r Felt
	inv.impl.Inverse(&b.impl)
	r.impl.Mul(&a.impl, &inv.impl)
	return r, nil
}

// ToUint64 converts the canonical residue to a uint64, failing if the value
// does not fit (i.e. the residue is larger than math.MaxUint64).
func (f Felt) ToUint64() (uint64, error) {
	var big big.Int
	f.impl.BigInt(&big)
	if !big.IsUint64() {
		return 0, ErrFeltOverflowsU
	}
	return big.Uint64(), nil
}

func (f Felt) ToBigInt() *big.Int {
	var b big.Int
	f.impl.BigInt(&b)
	return &b
}

func (f Felt) String() string {
	return f.impl.String()
}

// Hex returns the canonical "0x"-prefixed lowercase hex representation used
// by the public-input JSON encoding.
func (f Felt) Hex() string {
	b := f.Bytes()
	// Bytes() returns big-endian canonical representation.
	big := new(big.Int).SetBytes(b[:])
	return "0x" + big.Text(16)
}
