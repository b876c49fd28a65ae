package ir

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tensorir/types/structinfo"
	"github.com/gomlx/tensorir/types/symbolic"
	"k8s.io/klog/v2"
)

// Context is the diagnostic context handed to an inference rule. It owns a
// fresh symbolic.Analyzer for the invocation, so symbolic state never leaks
// between calls, and it is the only channel through which a rule can fail.
type Context struct {
	call     *Call
	analyzer *symbolic.Analyzer
}

func newContext(call *Call) *Context {
	return &Context{call: call, analyzer: symbolic.NewAnalyzer()}
}

// Call returns the call under inference.
func (ctx *Context) Call() *Call { return ctx.call }

// Analyzer returns the analyzer for this invocation.
func (ctx *Context) Analyzer() *symbolic.Analyzer { return ctx.analyzer }

// ReportFatal aborts inference of the current call with the given
// diagnostic. It never returns: the error is thrown and recovered by
// Registry.InferStructInfo, which hands it to the caller. No partial
// struct-info is ever published for the failed call.
func (ctx *Context) ReportFatal(err error) {
	if klog.V(2).Enabled() {
		klog.Infof("fatal diagnostic inferring %q: %v", ctx.call.Op(), err)
	}
	panic(err)
}

// The error types below form the complete diagnostic taxonomy of this layer.
// All are fatal and local to the call under construction: there is no retry,
// no partial result and no silent coercion, and inference stops at the first
// violation.

// ArityError reports an argument count that does not match the operator's
// declared arity.
type ArityError struct {
	Op   string
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("operator %q expects %d argument(s), got %d", e.Op, e.Want, e.Got)
}

// TypeMismatchError reports an argument whose struct-info variant is not the
// one the operator expects (e.g. a tensor where a shape is required).
type TypeMismatchError struct {
	Op      string
	ArgName string
	Want    string // "Tensor", "Shape" or "Prim"
	Got     structinfo.StructInfo
}

func (e *TypeMismatchError) Error() string {
	got := "no struct-info"
	if e.Got != nil {
		got = e.Got.String()
	}
	return fmt.Sprintf("operator %q requires argument %q to be a %s, got %s",
		e.Op, e.ArgName, e.Want, got)
}

// RankError reports a tensor whose known rank violates an operator's
// minimum or exact rank requirement.
type RankError struct {
	Op         string
	ArgName    string
	Rank       int
	Constraint string // e.g. "exactly 0", "at least 2"
}

func (e *RankError) Error() string {
	rank := "unknown"
	if e.Rank != structinfo.UnknownRank {
		rank = fmt.Sprintf("%d", e.Rank)
	}
	return fmt.Sprintf("operator %q requires argument %q to have rank %s, got rank %s",
		e.Op, e.ArgName, e.Constraint, rank)
}

// DTypeError reports a declared or resolved dtype that violates an
// operator-specific constraint.
type DTypeError struct {
	Op     string
	DType  dtypes.DType
	Reason string
}

func (e *DTypeError) Error() string {
	return fmt.Sprintf("operator %q %s, got dtype %s", e.Op, e.Reason, e.DType)
}

// ExpectedPrimValueError reports an argument that must be a literal scalar
// value (a *PrimValue node) but is a computed or opaque expression.
type ExpectedPrimValueError struct {
	Op    string
	Param string // which scalar: "n", "m", "k", "start", "stop", "step", "window_size"
}

func (e *ExpectedPrimValueError) Error() string {
	return fmt.Sprintf("operator %q expects %q to be a literal prim value", e.Op, e.Param)
}

// SymbolicBoundError reports a symbolic precondition the analyzer proved to
// be violated.
type SymbolicBoundError struct {
	Op    string
	Param string
	Expr  symbolic.Expr
	Bound int64
}

func (e *SymbolicBoundError) Error() string {
	return fmt.Sprintf("operator %q requires %q >= %d, but %s is provably smaller",
		e.Op, e.Param, e.Bound, e.Expr)
}

// UnknownShapeError reports a reference tensor that carries no shape
// descriptor at all, on an operator that must copy the shape from it.
type UnknownShapeError struct {
	Op      string
	ArgName string
}

func (e *UnknownShapeError) Error() string {
	return fmt.Sprintf("operator %q requires argument %q to have a known shape", e.Op, e.ArgName)
}

// ConfigError reports an invalid attribute record at call-construction time,
// before inference ever runs.
type ConfigError struct {
	Op     string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("cannot build call to %q: %s", e.Op, e.Reason)
}

// UnknownOperatorError reports a registry lookup for a name that was never
// registered.
type UnknownOperatorError struct {
	Name string
}

func (e *UnknownOperatorError) Error() string {
	return fmt.Sprintf("unknown operator %q", e.Name)
}
