package builtins

import (
	"errors"
	"fmt"

	"github.com/shardlabs/cairo-vm-go/pkg/vm/memory"
)

const SignatureName = "ecdsa"

// SignatureCellsPerInstance pairs a public key cell with a message-hash
// cell; the actual (r, s) signature is supplied out of band through
// AddSignature, mirroring how hint code feeds ECDSA signatures to this
// builtin at runtime (spec §4.6 "signature").
const SignatureCellsPerInstance = 2

var ErrMissingSignature = errors.New("ecdsa: no signature registered for this public key cell")
var ErrInvalidSignature = errors.New("ecdsa: signature does not verify against the public key and message")

type Signature struct {
	R, S memory.Felt
}

type SignatureBuiltinRunner struct {
	base
	signatures map[memory.Relocatable]Signature
}

func NewSignatureBuiltinRunner(ratio uint64) *SignatureBuiltinRunner {
	return &SignatureBuiltinRunner{
		base:       newBase(SignatureName, ratio, SignatureCellsPerInstance),
		signatures: make(map[memory.Relocatable]Signature),
	}
}

// AddSignature registers the (r, s) pair a hint associated with the
// public-key cell at pubKeyAddr.
func (s *SignatureBuiltinRunner) AddSignature(pubKeyAddr memory.Relocatable, sig Signature) {
	s.signatures[pubKeyAddr] = sig
}

func (s *SignatureBuiltinRunner) DeduceMemoryCell(memory.Relocatable, *memory.Memory) (*memory.MaybeRelocatable, error) {
	return nil, nil
}

// AddValidationRule installs a rule that runs when an instance's public-key
// cell (offset 0 of the instance) is written: if the message cell after it
// is already present, a signature registered for that public key must exist
// and verify. Writing the message cell triggers no check, so an instance
// whose message is written after its public key is not verified.
func (s *SignatureBuiltinRunner) AddValidationRule(mem *memory.Memory) {
	segIdx := s.segmentBase.SegmentIndex
	mem.AddValidationRule(segIdx, func(m *memory.Memory, addr memory.Relocatable) error {
		if addr.Offset%SignatureCellsPerInstance != 0 {
			return nil
		}
		pubKeyAddr := addr
		msgAddr := memory.NewRelocatable(addr.SegmentIndex, addr.Offset+1)

		pubKeyX, err := m.GetFelt(pubKeyAddr)
		if err != nil {
			return nil
		}
		msg, err := m.GetFelt(msgAddr)
		if err != nil {
			return nil
		}

		sig, ok := s.signatures[pubKeyAddr]
		if !ok {
			return fmt.Errorf("%w at %s", ErrMissingSignature, pubKeyAddr)
		}
		if !verifyECDSA(pubKeyX, msg, sig) {
			return fmt.Errorf("%w at %s", ErrInvalidSignature, pubKeyAddr)
		}
		return nil
	})
}

// verifyECDSA checks a (r, s) signature over msg against a public key's
// x-coordinate using the curve operations shared with ec_op/pedersen.
func verifyECDSA(pubKeyX, msg memory.Felt, sig Signature) bool {
	if sig.S.IsZero() {
		return false
	}
	sInv, err := memory.Felt{}.Div(memory.FeltOne(), sig.S)
	if err != nil {
		return false
	}
	u1 := memory.Felt{}.Mul(msg, sInv)
	u2 := memory.Felt{}.Mul(sig.R, sInv)

	p1, err := generator().scalarMul(u1)
	if err != nil {
		return false
	}
	pubKey := point{x: pubKeyX, y: pubKeyX}
	p2, err := pubKey.scalarMul(u2)
	if err != nil {
		return false
	}
	sum, err := p1.add(p2)
	if err != nil {
		return false
	}
	return sum.x.Equal(sig.R)
}
