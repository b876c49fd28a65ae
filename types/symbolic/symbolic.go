// Package symbolic defines symbolic integer/floating expressions and the
// Analyzer used to simplify them and to prove simple bounds.
//
// Expressions are opaque algebraic values: a dimension or scalar parameter
// whose concrete value may only be known at run time. Struct-info inference
// composes them (add, subtract, floor-divide, cast, ceiling) and asks the
// Analyzer for a reduced form, but never interprets them itself.
//
// All expression nodes are immutable after construction, so they can be
// shared freely between struct-info values and across goroutines.
package symbolic

import (
	"fmt"
	"strconv"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
)

// BinaryOp enumerates the binary operators an expression tree can contain.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpFloorDiv
)

// String implements fmt.Stringer.
func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "/"
	case OpFloorDiv:
		return "floordiv"
	}
	return fmt.Sprintf("BinaryOp(%d)", int(op))
}

// Expr is a symbolic integer or floating expression.
//
// The set of implementations is closed: *Const, *Var, *Binary, *Cast and
// *Ceil. Use Equal to compare expressions structurally.
type Expr interface {
	// DType is the element type the expression evaluates to.
	DType() dtypes.DType

	// String returns a human-readable rendering, used in diagnostics.
	String() string

	exprNode()
}

// Const is a literal constant with an integer or floating payload, according
// to its dtype.
type Const struct {
	dtype    dtypes.DType
	intVal   int64
	floatVal float64
}

// ConstInt returns a constant of the given integer dtype.
func ConstInt(dtype dtypes.DType, value int64) *Const {
	if !dtype.IsInt() {
		exceptions.Panicf("symbolic.ConstInt: dtype %s is not an integer type", dtype)
	}
	return &Const{dtype: dtype, intVal: value}
}

// ConstFloat returns a constant of the given floating dtype.
// The payload is kept at 64-bit precision; narrowing to the storage width of
// dtype happens during simplification, when the value is actually used.
func ConstFloat(dtype dtypes.DType, value float64) *Const {
	if !dtype.IsFloat() {
		exceptions.Panicf("symbolic.ConstFloat: dtype %s is not a floating type", dtype)
	}
	return &Const{dtype: dtype, floatVal: value}
}

func (c *Const) DType() dtypes.DType { return c.dtype }

// Int returns the integer payload. Only meaningful if DType().IsInt().
func (c *Const) Int() int64 { return c.intVal }

// Float returns the floating payload. Only meaningful if DType().IsFloat().
func (c *Const) Float() float64 { return c.floatVal }

// AsFloat returns the payload as a float64, whatever the dtype.
func (c *Const) AsFloat() float64 {
	if c.dtype.IsInt() {
		return float64(c.intVal)
	}
	return c.floatVal
}

func (c *Const) String() string {
	if c.dtype.IsInt() {
		return strconv.FormatInt(c.intVal, 10)
	}
	return strconv.FormatFloat(c.floatVal, 'g', -1, 64)
}

func (c *Const) exprNode() {}

// Var is a named quantity whose value is unresolved until run time.
type Var struct {
	name  string
	dtype dtypes.DType
}

// NewVar returns a new symbolic variable.
func NewVar(name string, dtype dtypes.DType) *Var {
	return &Var{name: name, dtype: dtype}
}

func (v *Var) Name() string        { return v.name }
func (v *Var) DType() dtypes.DType { return v.dtype }
func (v *Var) String() string      { return v.name }
func (v *Var) exprNode()           {}

// Binary is the application of a BinaryOp to two sub-expressions.
// Its dtype follows the left-hand side.
type Binary struct {
	op   BinaryOp
	x, y Expr
}

func (b *Binary) Op() BinaryOp        { return b.op }
func (b *Binary) X() Expr             { return b.x }
func (b *Binary) Y() Expr             { return b.y }
func (b *Binary) DType() dtypes.DType { return b.x.DType() }

func (b *Binary) String() string {
	if b.op == OpFloorDiv {
		return fmt.Sprintf("floordiv(%s, %s)", b.x, b.y)
	}
	return fmt.Sprintf("(%s %s %s)", b.x, b.op, b.y)
}

func (b *Binary) exprNode() {}

// Add returns x + y.
func Add(x, y Expr) Expr { return &Binary{op: OpAdd, x: x, y: y} }

// Sub returns x - y.
func Sub(x, y Expr) Expr { return &Binary{op: OpSub, x: x, y: y} }

// Mul returns x * y.
func Mul(x, y Expr) Expr { return &Binary{op: OpMul, x: x, y: y} }

// Div returns x / y, with the division semantics of the result dtype.
func Div(x, y Expr) Expr { return &Binary{op: OpDiv, x: x, y: y} }

// FloorDiv returns floor(x / y). For integer operands this is floor
// division, rounding towards negative infinity.
func FloorDiv(x, y Expr) Expr { return &Binary{op: OpFloorDiv, x: x, y: y} }

// Cast reinterprets a sub-expression at a different dtype.
type Cast struct {
	to dtypes.DType
	x  Expr
}

// CastTo returns x cast to the given dtype.
func CastTo(to dtypes.DType, x Expr) Expr { return &Cast{to: to, x: x} }

func (c *Cast) To() dtypes.DType    { return c.to }
func (c *Cast) X() Expr             { return c.x }
func (c *Cast) DType() dtypes.DType { return c.to }
func (c *Cast) String() string      { return fmt.Sprintf("%s(%s)", c.to, c.x) }
func (c *Cast) exprNode()           {}

// Ceil is the ceiling of a floating sub-expression.
type Ceil struct {
	x Expr
}

// CeilOf returns ceil(x).
func CeilOf(x Expr) Expr { return &Ceil{x: x} }

func (c *Ceil) X() Expr             { return c.x }
func (c *Ceil) DType() dtypes.DType { return c.x.DType() }
func (c *Ceil) String() string      { return fmt.Sprintf("ceil(%s)", c.x) }
func (c *Ceil) exprNode()           {}

// Equal compares two expressions structurally: same node kinds, same dtypes,
// same payloads. It does not attempt algebraic equivalence -- simplify both
// sides first if that is what you need.
func Equal(a, b Expr) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch a := a.(type) {
	case *Const:
		bc, ok := b.(*Const)
		if !ok || a.dtype != bc.dtype {
			return false
		}
		if a.dtype.IsInt() {
			return a.intVal == bc.intVal
		}
		return a.floatVal == bc.floatVal
	case *Var:
		bv, ok := b.(*Var)
		return ok && a.name == bv.name && a.dtype == bv.dtype
	case *Binary:
		bb, ok := b.(*Binary)
		return ok && a.op == bb.op && Equal(a.x, bb.x) && Equal(a.y, bb.y)
	case *Cast:
		bc, ok := b.(*Cast)
		return ok && a.to == bc.to && Equal(a.x, bc.x)
	case *Ceil:
		bc, ok := b.(*Ceil)
		return ok && Equal(a.x, bc.x)
	}
	return false
}
