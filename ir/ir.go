// Package ir holds the expression node model of the tensor program being
// built, the operator-metadata registry, and the struct-info inference rules
// for the tensor-creation operators (full, ones, zeros, eye, arange,
// hamming_window, tril, triu and their "-like" variants).
//
// The flow is: a builder constructs a *Call bound to an operator name (see
// the per-operator builder functions, e.g. Full, Arange); the operator's
// inference rule, found through a Registry, reads the struct-info already
// attached to the call arguments and returns the struct-info of the result.
// Invalid calls never produce a struct-info: inference stops at the first
// violation with a typed, fatal diagnostic (see diagnostics.go).
//
// Inference is pure and reentrant. The Registry is populated once during
// initialization and is read-only afterwards, so concurrent inference over
// disjoint calls needs no locking.
package ir

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tensorir/types/structinfo"
	"github.com/gomlx/tensorir/types/symbolic"
)

// Expr is an expression node. Every node bears the struct-info computed when
// it was built.
type Expr interface {
	StructInfo() structinfo.StructInfo
}

// Var is a value reference: an argument expression whose struct-info was
// established by a prior inference pass (or given, for program inputs).
type Var struct {
	name string
	info structinfo.StructInfo
}

// NewVar returns a variable carrying the given struct-info.
func NewVar(name string, info structinfo.StructInfo) *Var {
	return &Var{name: name, info: info}
}

func (v *Var) Name() string                      { return v.name }
func (v *Var) StructInfo() structinfo.StructInfo { return v.info }
func (v *Var) String() string                    { return fmt.Sprintf("%s: %s", v.name, v.info) }

// PrimValue is a literal scalar expression node. Operators that need a size
// or offset at trace time (eye, arange, hamming_window) require their
// scalar arguments to be PrimValue nodes, not arbitrary computed tensors.
type PrimValue struct {
	value symbolic.Expr
	info  *structinfo.PrimInfo
}

// NewPrimValue wraps a symbolic scalar into an expression node.
func NewPrimValue(value symbolic.Expr) *PrimValue {
	return &PrimValue{value: value, info: structinfo.MakePrim(value)}
}

// PrimInt64 is shorthand for a 64-bit integer literal node.
func PrimInt64(value int64) *PrimValue {
	return NewPrimValue(symbolic.ConstInt(dtypes.Int64, value))
}

func (p *PrimValue) Value() symbolic.Expr             { return p.value }
func (p *PrimValue) StructInfo() structinfo.StructInfo { return p.info }
func (p *PrimValue) String() string                   { return p.value.String() }

// ShapeExpr is a literal shape expression node: an ordered sequence of
// symbolic dimensions.
type ShapeExpr struct {
	info *structinfo.ShapeInfo
}

// NewShapeExpr returns a shape literal with the given dimensions.
func NewShapeExpr(dims ...symbolic.Expr) *ShapeExpr {
	return &ShapeExpr{info: structinfo.MakeShape(dims...)}
}

func (s *ShapeExpr) Dims() []symbolic.Expr            { return s.info.Dims() }
func (s *ShapeExpr) StructInfo() structinfo.StructInfo { return s.info }
func (s *ShapeExpr) String() string                   { return s.info.String() }

// Call is an immutable operator call: an operator name, the ordered argument
// expressions, and the attribute record configured at construction.
//
// A Call does not cache its inferred struct-info; inference is a pure
// function of the call, so re-running it yields structurally equal results.
type Call struct {
	op    string
	args  []Expr
	attrs Attrs
}

// NewCall builds a call node. Builders in this package are the usual way to
// construct calls; NewCall is the raw escape hatch and performs no
// validation -- the inference rule will reject an ill-formed call.
func NewCall(op string, attrs Attrs, args ...Expr) *Call {
	return &Call{op: op, args: args, attrs: attrs}
}

// Op returns the operator name the call is bound to.
func (c *Call) Op() string { return c.op }

// Args returns the argument expressions. Callers must not modify the
// returned slice.
func (c *Call) Args() []Expr { return c.args }

// Arg returns the i-th argument expression.
func (c *Call) Arg(i int) Expr { return c.args[i] }

// Attrs returns the attribute record, nil if the operator carries none.
func (c *Call) Attrs() Attrs { return c.attrs }

func (c *Call) String() string {
	parts := make([]string, len(c.args))
	for i, arg := range c.args {
		parts[i] = fmt.Sprintf("%s", arg)
	}
	return fmt.Sprintf("%s(%s)", c.op, strings.Join(parts, ", "))
}

// GetArgStructInfo returns the struct-info borne by the i-th argument.
func GetArgStructInfo(call *Call, i int) structinfo.StructInfo {
	return call.Arg(i).StructInfo()
}
