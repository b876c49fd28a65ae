package symbolic

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"
)

// Analyzer simplifies expressions and proves simple bounds on them.
//
// An Analyzer carries no state between calls, but by convention each
// inference invocation creates (or borrows) its own instance, so symbolic
// reasoning never leaks across calls.
type Analyzer struct{}

// NewAnalyzer returns a fresh Analyzer.
func NewAnalyzer() *Analyzer { return &Analyzer{} }

// Simplify returns an equivalent expression in reduced form: constant
// sub-expressions are folded and trivial identities (x+0, x*1, floordiv(x,1),
// casts to the same dtype, ceil of an integer) are removed.
//
// Folding respects the expression's dtype: integer floor-division rounds
// towards negative infinity, and floating results are narrowed to the
// storage width of the result dtype, so a folded constant matches what a
// runtime evaluation would produce.
func (a *Analyzer) Simplify(e Expr) Expr {
	switch e := e.(type) {
	case *Const, *Var:
		return e
	case *Binary:
		return a.simplifyBinary(e)
	case *Cast:
		x := a.Simplify(e.x)
		if x.DType() == e.to {
			return x
		}
		if c, ok := x.(*Const); ok {
			if folded, ok := foldCast(e.to, c); ok {
				return folded
			}
		}
		if x == e.x {
			return e
		}
		return &Cast{to: e.to, x: x}
	case *Ceil:
		x := a.Simplify(e.x)
		if x.DType().IsInt() {
			return x
		}
		if c, ok := x.(*Const); ok && c.dtype.IsFloat() {
			return ConstFloat(c.dtype, ceilForDType(c.dtype, c.floatVal))
		}
		if x == e.x {
			return e
		}
		return &Ceil{x: x}
	}
	return e
}

func (a *Analyzer) simplifyBinary(b *Binary) Expr {
	x := a.Simplify(b.x)
	y := a.Simplify(b.y)
	cx, xConst := x.(*Const)
	cy, yConst := y.(*Const)
	if xConst && yConst {
		if folded, ok := foldBinary(b.op, cx, cy); ok {
			return folded
		}
	}
	switch b.op {
	case OpAdd:
		if yConst && cy.isZero() {
			return x
		}
		if xConst && cx.isZero() {
			return y
		}
	case OpSub:
		if yConst && cy.isZero() {
			return x
		}
	case OpMul:
		if yConst && cy.isOne() {
			return x
		}
		if xConst && cx.isOne() {
			return y
		}
		if (yConst && cy.isZero()) || (xConst && cx.isZero()) {
			return zeroOf(x.DType())
		}
	case OpDiv, OpFloorDiv:
		if yConst && cy.isOne() {
			return x
		}
	}
	if x == b.x && y == b.y {
		return b
	}
	return &Binary{op: b.op, x: x, y: y}
}

// CanProveLessThan reports whether expr < bound is provably true. A false
// result means "not provably true", not "proven false": unresolved symbolic
// expressions always yield false.
func (a *Analyzer) CanProveLessThan(e Expr, bound int64) bool {
	c, ok := a.Simplify(e).(*Const)
	if !ok {
		return false
	}
	if c.dtype.IsFloat() {
		return c.floatVal < float64(bound)
	}
	return c.intVal < bound
}

func (c *Const) isZero() bool {
	if c.dtype.IsInt() {
		return c.intVal == 0
	}
	return c.floatVal == 0
}

func (c *Const) isOne() bool {
	if c.dtype.IsInt() {
		return c.intVal == 1
	}
	return c.floatVal == 1
}

func zeroOf(dtype dtypes.DType) *Const {
	if dtype.IsInt() {
		return ConstInt(dtype, 0)
	}
	return ConstFloat(dtype, 0)
}

// foldBinary folds a binary operation over two constants. The result takes
// the dtype of the left-hand side, matching Binary.DType.
func foldBinary(op BinaryOp, x, y *Const) (Expr, bool) {
	dtype := x.dtype
	if dtype.IsInt() && y.dtype.IsInt() {
		a, b := x.intVal, y.intVal
		switch op {
		case OpAdd:
			return ConstInt(dtype, a+b), true
		case OpSub:
			return ConstInt(dtype, a-b), true
		case OpMul:
			return ConstInt(dtype, a*b), true
		case OpDiv:
			if b == 0 {
				return nil, false
			}
			return ConstInt(dtype, a/b), true
		case OpFloorDiv:
			if b == 0 {
				return nil, false
			}
			return ConstInt(dtype, floorDivInt(a, b)), true
		}
		return nil, false
	}
	if !dtype.IsFloat() {
		return nil, false
	}
	a, b := x.AsFloat(), y.AsFloat()
	var r float64
	switch op {
	case OpAdd:
		r = a + b
	case OpSub:
		r = a - b
	case OpMul:
		r = a * b
	case OpDiv, OpFloorDiv:
		if b == 0 {
			return nil, false
		}
		r = a / b
		if op == OpFloorDiv {
			r = math.Floor(r)
		}
	default:
		return nil, false
	}
	return ConstFloat(dtype, narrowToDType(dtype, r)), true
}

func foldCast(to dtypes.DType, c *Const) (Expr, bool) {
	switch {
	case to.IsInt():
		if c.dtype.IsInt() {
			return ConstInt(to, c.intVal), true
		}
		if c.dtype.IsFloat() {
			return ConstInt(to, int64(c.floatVal)), true
		}
	case to.IsFloat():
		return ConstFloat(to, narrowToDType(to, c.AsFloat())), true
	}
	return nil, false
}

func floorDivInt(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// narrowToDType rounds v through the storage width of dtype, so folded
// constants have the value a runtime computation at that width would have.
func narrowToDType(dtype dtypes.DType, v float64) float64 {
	switch dtype {
	case dtypes.Float16:
		return float64(float16.Fromfloat32(float32(v)).Float32())
	case dtypes.Float32:
		return float64(float32(v))
	}
	return v
}

func ceilForDType(dtype dtypes.DType, v float64) float64 {
	if dtype == dtypes.Float32 {
		return float64(math32.Ceil(float32(v)))
	}
	return narrowToDType(dtype, math.Ceil(v))
}
