package builtins

import "github.com/shardlabs/cairo-vm-go/pkg/vm/memory"

// The STARK-friendly curve used by the ec_op and signature builtins:
// y^2 = x^3 + alpha*x + beta over the Starknet prime field, with alpha=1
// (spec §4.6 "ec_op"/"signature"). Point arithmetic here is plain
// short-Weierstrass addition/doubling built directly on the already
// grounded Felt field operations.
var (
	curveAlpha = memory.FeltOne()
	curveBeta  = mustFelt("3141592653589793238462643383279502884197169399375105820974944592307816406665")

	curveGenX = mustFelt("874739451078007766457464989774322083649278607533249481151382481072868806602")
	curveGenY = mustFelt("152666792071518830868575557812948353041420400780739481342941381225525861407")
)

func mustFelt(dec string) memory.Felt {
	f, err := memory.FeltFromDecString(dec)
	if err != nil {
		panic(err)
	}
	return f
}

// point is an affine curve point; infinity marks the point at infinity
// (the zero value is the affine point (0, 0), not infinity).
type point struct {
	x, y       memory.Felt
	infinity bool
}

func generator() point { return point{x: curveGenX, y: curveGenY} }

func (p point) add(q point) (point, error) {
	if p.infinity {
		return q, nil
	}
	if q.infinity {
		return p, nil
	}
	if p.x.Equal(q.x) {
		if p.y.Equal(q.y) {
			return p.double()
		}
		return point{infinity: true}, nil
	}
	num := memory.Felt{}.Sub(q.y, p.y)
	den := memory.Felt{}.Sub(q.x, p.x)
	slope, err := memory.Felt{}.Div(num, den)
	if err != nil {
		return point{}, err
	}
	x3 := memory.Felt{}.Sub(memory.Felt{}.Sub(memory.Felt{}.Mul(slope, slope), p.x), q.x)
	y3 := memory.Felt{}.Sub(memory.Felt{}.Mul(slope, memory.Felt{}.Sub(p.x, x3)), p.y)
	return point{x: x3, y: y3}, nil
}

func (p point) double() (point, error) {
	if p.infinity {
		return p, nil
	}
	two := memory.FeltFromUint64(2)
	three := memory.FeltFromUint64(3)
	num := memory.Felt{}.Add(memory.Felt{}.Mul(three, memory.Felt{}.Mul(p.x, p.x)), curveAlpha)
	den := memory.Felt{}.Mul(two, p.y)
	slope, err := memory.Felt{}.Div(num, den)
	if err != nil {
		return point{}, err
	}
	x3 := memory.Felt{}.Sub(memory.Felt{}.Mul(slope, slope), memory.Felt{}.Mul(two, p.x))
	y3 := memory.Felt{}.Sub(memory.Felt{}.Mul(slope, memory.Felt{}.Sub(p.x, x3)), p.y)
	return point{x: x3, y: y3}, nil
}

// scalarMul computes scalar*p via double-and-add over the felt's bit
// representation.
func (p point) scalarMul(scalar memory.Felt) (point, error) {
	acc := point{infinity: true}
	addend := p
	bits := scalar.ToBigInt()
	for i := 0; i < bits.BitLen(); i++ {
		if bits.Bit(i) == 1 {
			var err error
			acc, err = acc.add(addend)
			if err != nil {
				return point{}, err
			}
		}
		var err error
		addend, err = addend.double()
		if err != nil {
			return point{}, err
		}
	}
	return acc, nil
}
