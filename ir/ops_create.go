package ir

import (
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tensorir/types/structinfo"
	"github.com/gomlx/tensorir/types/symbolic"
)

// Names of the tensor-creation operators.
const (
	OpFull          = "full"
	OpFullLike      = "full_like"
	OpOnes          = "ones"
	OpOnesLike      = "ones_like"
	OpZeros         = "zeros"
	OpZerosLike     = "zeros_like"
	OpEye           = "eye"
	OpEyeLike       = "eye_like"
	OpArange        = "arange"
	OpHammingWindow = "hamming_window"
	OpTril          = "tril"
	OpTriu          = "triu"
)

// RegisterCreationOps registers the tensor-creation operator family.
// Call it once, while building the registry.
func RegisterCreationOps(reg *Registry) {
	reg.Register(&OpDef{
		Name:      OpFull,
		NumInputs: 2,
		Args: []ArgSpec{
			{Name: "shape", Kind: "Shape", Description: "The shape of the created tensor."},
			{Name: "fill_value", Kind: "Tensor", Description: "The scalar tensor, denoting the value to fill."},
		},
		AttrsType:      &InitAttrs{},
		Infer:          inferFull,
		Pure:           true,
		MixedPrecision: MixedPrecisionFollow,
	})
	reg.Register(&OpDef{
		Name:      OpFullLike,
		NumInputs: 2,
		Args: []ArgSpec{
			{Name: "x", Kind: "Tensor", Description: "The input tensor."},
			{Name: "fill_value", Kind: "Tensor", Description: "The scalar value to fill."},
		},
		AttrsType:      &InitAttrs{},
		Infer:          inferFullLike,
		Pure:           true,
		MixedPrecision: MixedPrecisionFollow,
	})
	for _, name := range []string{OpOnes, OpZeros} {
		reg.Register(&OpDef{
			Name:      name,
			NumInputs: 1,
			Args: []ArgSpec{
				{Name: "shape", Kind: "Shape", Description: "The shape of the created tensor."},
			},
			AttrsType:      &InitAttrs{},
			Infer:          inferOnesZeros,
			Pure:           true,
			MixedPrecision: MixedPrecisionFollow,
		})
	}
	for _, name := range []string{OpOnesLike, OpZerosLike} {
		reg.Register(&OpDef{
			Name:      name,
			NumInputs: 1,
			Args: []ArgSpec{
				{Name: "x", Kind: "Tensor", Description: "The input tensor."},
			},
			AttrsType: &InitAttrs{},
			Infer:     inferOnesLikeZerosLike,
			Pure:      true,
		})
	}
	reg.Register(&OpDef{
		Name:      OpEye,
		NumInputs: 3,
		Args: []ArgSpec{
			{Name: "n", Kind: "PrimValue", Description: "Number of rows in the output."},
			{Name: "m", Kind: "PrimValue", Description: "Number of columns in the output."},
			{Name: "k", Kind: "PrimValue", Description: "Index of the diagonal."},
		},
		AttrsType:      &InitAttrs{},
		Infer:          inferEye,
		Pure:           true,
		MixedPrecision: MixedPrecisionFollow,
	})
	reg.Register(&OpDef{
		Name:      OpEyeLike,
		NumInputs: 2,
		Args: []ArgSpec{
			{Name: "x", Kind: "Tensor", Description: "The input tensor."},
			{Name: "k", Kind: "PrimValue", Description: "Index of the diagonal."},
		},
		AttrsType: &InitAttrs{},
		Infer:     inferEyeLike,
		Pure:      true,
	})
	reg.Register(&OpDef{
		Name:      OpArange,
		NumInputs: 3,
		Args: []ArgSpec{
			{Name: "start", Kind: "PrimValue", Description: "The starting value for the set of points."},
			{Name: "stop", Kind: "PrimValue", Description: "The ending value for the set of points."},
			{Name: "step", Kind: "PrimValue", Description: "The gap between each pair of adjacent points."},
		},
		AttrsType:      &InitAttrs{},
		Infer:          inferArange,
		Pure:           true,
		MixedPrecision: MixedPrecisionFollow,
	})
	reg.Register(&OpDef{
		Name:      OpHammingWindow,
		NumInputs: 4,
		Args: []ArgSpec{
			{Name: "window_size", Kind: "PrimValue", Description: "The size of the window."},
			{Name: "periodic", Kind: "PrimValue", Description: "If true, returns a window to be used as a periodic function; if false, a symmetric window."},
			{Name: "alpha", Kind: "PrimValue", Description: "The coefficient alpha."},
			{Name: "beta", Kind: "PrimValue", Description: "The coefficient beta."},
		},
		AttrsType:      &InitAttrs{},
		Infer:          inferHammingWindow,
		Pure:           true,
		MixedPrecision: MixedPrecisionFollow,
	})
	for _, name := range []string{OpTril, OpTriu} {
		reg.Register(&OpDef{
			Name:      name,
			NumInputs: 2,
			Args: []ArgSpec{
				{Name: "x", Kind: "Tensor", Description: "The input tensor."},
				{Name: "k", Kind: "PrimValue", Description: "The offset of the diagonal."},
			},
			AttrsType: &TriluAttrs{},
			Infer:     inferTrilTriu,
			Pure:      true,
		})
	}
}

// Builders. Each returns an immutable call node bound to its operator name,
// with arity guaranteed by construction. Operators that create a tensor from
// nothing (ones, zeros, eye, arange, hamming_window) require a concrete
// dtype and throw a *ConfigError when given structinfo.VoidDType; operators
// with a reference argument accept VoidDType as "inherit".

// Full creates a tensor of the given shape filled with a scalar value.
// The shape argument must carry shape struct-info (usually a *ShapeExpr).
func Full(shape Expr, fillValue Expr, dtype dtypes.DType) *Call {
	return NewCall(OpFull, &InitAttrs{DType: dtype}, shape, fillValue)
}

// FullWithDims is Full with the shape given as dimension expressions.
func FullWithDims(dims []symbolic.Expr, fillValue Expr, dtype dtypes.DType) *Call {
	return Full(NewShapeExpr(dims...), fillValue, dtype)
}

// FullLike creates a tensor shaped like x, filled with a scalar value.
func FullLike(x Expr, fillValue Expr, dtype dtypes.DType) *Call {
	return NewCall(OpFullLike, &InitAttrs{DType: dtype}, x, fillValue)
}

// Ones creates a tensor of the given shape filled with ones.
func Ones(shape Expr, dtype dtypes.DType) *Call {
	requireConcreteDType(OpOnes, dtype)
	return NewCall(OpOnes, &InitAttrs{DType: dtype}, shape)
}

// OnesLike creates a tensor shaped like x filled with ones.
func OnesLike(x Expr, dtype dtypes.DType) *Call {
	return NewCall(OpOnesLike, &InitAttrs{DType: dtype}, x)
}

// Zeros creates a tensor of the given shape filled with zeros.
func Zeros(shape Expr, dtype dtypes.DType) *Call {
	requireConcreteDType(OpZeros, dtype)
	return NewCall(OpZeros, &InitAttrs{DType: dtype}, shape)
}

// ZerosLike creates a tensor shaped like x filled with zeros.
func ZerosLike(x Expr, dtype dtypes.DType) *Call {
	return NewCall(OpZerosLike, &InitAttrs{DType: dtype}, x)
}

// Eye creates a 2-D tensor with ones on the k-th diagonal: n rows, m
// columns. Only n and m shape the output; k only moves values at run time.
func Eye(n, m, k *PrimValue, dtype dtypes.DType) *Call {
	requireConcreteDType(OpEye, dtype)
	return NewCall(OpEye, &InitAttrs{DType: dtype}, n, m, k)
}

// EyeLike creates a tensor shaped like the 2-D tensor x, with ones on the
// k-th diagonal.
func EyeLike(x Expr, k *PrimValue, dtype dtypes.DType) *Call {
	return NewCall(OpEyeLike, &InitAttrs{DType: dtype}, x, k)
}

// Arange creates a 1-D tensor with values evenly spaced by step within
// [start, stop).
func Arange(start, stop, step *PrimValue, dtype dtypes.DType) *Call {
	requireConcreteDType(OpArange, dtype)
	return NewCall(OpArange, &InitAttrs{DType: dtype}, start, stop, step)
}

// ArangeStop is Arange over [0, stop) with step 1. With dtype
// structinfo.VoidDType the element type defaults to int64 when stop is
// integer-typed, and to float32 otherwise.
func ArangeStop(stop *PrimValue, dtype dtypes.DType) *Call {
	if structinfo.IsVoid(dtype) {
		if stop.Value().DType().IsInt() {
			dtype = dtypes.Int64
		} else {
			dtype = dtypes.Float32
		}
	}
	return Arange(PrimInt64(0), stop, PrimInt64(1), dtype)
}

// HammingWindow creates a 1-D Hamming window of the given size. The periodic
// flag and the alpha/beta coefficients shape the values, never the output
// struct-info.
func HammingWindow(windowSize, periodic, alpha, beta *PrimValue, dtype dtypes.DType) *Call {
	requireConcreteDType(OpHammingWindow, dtype)
	return NewCall(OpHammingWindow, &InitAttrs{DType: dtype}, windowSize, periodic, alpha, beta)
}

// Tril zeroes all values of x above the k-th diagonal.
func Tril(x Expr, k Expr) *Call {
	return NewCall(OpTril, &TriluAttrs{}, x, k)
}

// TrilInt is Tril with a literal int64 diagonal offset.
func TrilInt(x Expr, k int64) *Call { return Tril(x, PrimInt64(k)) }

// Triu zeroes all values of x below the k-th diagonal.
func Triu(x Expr, k Expr) *Call {
	return NewCall(OpTriu, &TriluAttrs{}, x, k)
}

// TriuInt is Triu with a literal int64 diagonal offset.
func TriuInt(x Expr, k int64) *Call { return Triu(x, PrimInt64(k)) }

func requireConcreteDType(op string, dtype dtypes.DType) {
	if structinfo.IsVoid(dtype) {
		panic(&ConfigError{Op: op, Reason: "dtype must not be void"})
	}
}

// Helpers shared by the inference rules.

// checkArity guards rules invoked directly, without going through
// Registry.InferStructInfo and its arity pre-check.
func checkArity(ctx *Context, call *Call, want int) {
	if len(call.Args()) != want {
		ctx.ReportFatal(&ArityError{Op: call.Op(), Want: want, Got: len(call.Args())})
	}
}

func argTensorInfo(ctx *Context, call *Call, i int, argName string) *structinfo.TensorInfo {
	si := GetArgStructInfo(call, i)
	ti, ok := si.(*structinfo.TensorInfo)
	if !ok {
		ctx.ReportFatal(&TypeMismatchError{Op: call.Op(), ArgName: argName, Want: "Tensor", Got: si})
	}
	return ti
}

func argShapeInfo(ctx *Context, call *Call, i int, argName string) *structinfo.ShapeInfo {
	si := GetArgStructInfo(call, i)
	shape, ok := si.(*structinfo.ShapeInfo)
	if !ok {
		ctx.ReportFatal(&TypeMismatchError{Op: call.Op(), ArgName: argName, Want: "Shape", Got: si})
	}
	return shape
}

// argPrimExpr requires the i-th argument to be a literal *PrimValue node --
// carrying prim struct-info is not enough, the symbolic value itself must be
// available at trace time.
func argPrimExpr(ctx *Context, call *Call, i int, param string) symbolic.Expr {
	pv, ok := call.Arg(i).(*PrimValue)
	if !ok {
		ctx.ReportFatal(&ExpectedPrimValueError{Op: call.Op(), Param: param})
	}
	return pv.Value()
}

// concreteAttrDType returns the call's attribute dtype, rejecting the void
// sentinel. Rules without a reference input to inherit from use this: the
// builders already refuse void, but hand-built calls reach the rule anyway.
func concreteAttrDType(ctx *Context, call *Call) dtypes.DType {
	dtype := initAttrs(call).DType
	if structinfo.IsVoid(dtype) {
		ctx.ReportFatal(&DTypeError{Op: call.Op(), DType: dtype,
			Reason: "requires a concrete dtype"})
	}
	return dtype
}

// initAttrs matches the call's attribute record to the creation family.
// Builders only ever attach *InitAttrs to these operators, so a mismatch is
// a programming error in whoever hand-built the call.
func initAttrs(call *Call) *InitAttrs {
	attrs, ok := call.Attrs().(*InitAttrs)
	if !ok {
		exceptions.Panicf("operator %q built with %T attributes, expected *ir.InitAttrs",
			call.Op(), call.Attrs())
	}
	return attrs
}

// Inference rules. Each is a pure function of (call, ctx); failures go
// through ctx.ReportFatal and abort the call.

func inferFull(call *Call, ctx *Context) structinfo.StructInfo {
	checkArity(ctx, call, 2)
	shape := argShapeInfo(ctx, call, 0, "shape")
	fill := argTensorInfo(ctx, call, 1, "fill_value")
	if fill.Rank() != 0 {
		ctx.ReportFatal(&RankError{Op: call.Op(), ArgName: "fill_value",
			Rank: fill.Rank(), Constraint: "exactly 0"})
	}
	dtype := structinfo.ResolveDType(initAttrs(call).DType, fill.DType())
	// The shape is carried over opaquely from the argument, not re-derived.
	return structinfo.MakeTensorOnDevice(shape, dtype, fill.Device())
}

func inferFullLike(call *Call, ctx *Context) structinfo.StructInfo {
	checkArity(ctx, call, 2)
	data := argTensorInfo(ctx, call, 0, "x")
	fill := argTensorInfo(ctx, call, 1, "fill_value")
	// The fill value's rank is statically known by construction, so unknown
	// rank is just as fatal as a wrong one.
	if fill.Rank() != 0 {
		ctx.ReportFatal(&RankError{Op: call.Op(), ArgName: "fill_value",
			Rank: fill.Rank(), Constraint: "exactly 0"})
	}
	attrs := initAttrs(call)
	if structinfo.IsVoid(attrs.DType) {
		return data
	}
	return data.WithDType(attrs.DType)
}

func inferOnesZeros(call *Call, ctx *Context) structinfo.StructInfo {
	checkArity(ctx, call, 1)
	shape := argShapeInfo(ctx, call, 0, "shape")
	return structinfo.MakeTensor(shape, concreteAttrDType(ctx, call))
}

func inferOnesLikeZerosLike(call *Call, ctx *Context) structinfo.StructInfo {
	checkArity(ctx, call, 1)
	data := argTensorInfo(ctx, call, 0, "x")
	attrs := initAttrs(call)
	if structinfo.IsVoid(attrs.DType) {
		return data
	}
	return data.WithDType(attrs.DType)
}

func inferEye(call *Call, ctx *Context) structinfo.StructInfo {
	checkArity(ctx, call, 3)
	n := argPrimExpr(ctx, call, 0, "n")
	m := argPrimExpr(ctx, call, 1, "m")
	argPrimExpr(ctx, call, 2, "k") // k never shapes the output, but must still be a literal.
	return structinfo.MakeTensor(structinfo.MakeShape(n, m), concreteAttrDType(ctx, call))
}

func inferEyeLike(call *Call, ctx *Context) structinfo.StructInfo {
	checkArity(ctx, call, 2)
	x := argTensorInfo(ctx, call, 0, "x")
	if r := x.Rank(); r != 2 && r != structinfo.UnknownRank {
		ctx.ReportFatal(&RankError{Op: call.Op(), ArgName: "x", Rank: r, Constraint: "exactly 2"})
	}
	// Unknown rank is deferred to run time, but a tensor with no shape at
	// all has nothing to copy rows/cols from.
	if x.Shape() == nil {
		ctx.ReportFatal(&UnknownShapeError{Op: call.Op(), ArgName: "x"})
	}
	dtype := structinfo.ResolveDType(initAttrs(call).DType, x.DType())
	return structinfo.MakeTensorOnDevice(x.Shape(), dtype, x.Device())
}

func inferArange(call *Call, ctx *Context) structinfo.StructInfo {
	checkArity(ctx, call, 3)
	dtype := concreteAttrDType(ctx, call)
	start := argPrimExpr(ctx, call, 0, "start")
	stop := argPrimExpr(ctx, call, 1, "stop")
	step := argPrimExpr(ctx, call, 2, "step")

	var count symbolic.Expr
	if start.DType().IsInt() && stop.DType().IsInt() && step.DType().IsInt() {
		// Ceiling division for a positive step: (stop-start+step-1)/step.
		one := symbolic.ConstInt(step.DType(), 1)
		count = symbolic.FloorDiv(
			symbolic.Sub(symbolic.Add(symbolic.Sub(stop, start), step), one),
			step)
	} else {
		// Any floating operand: count at 64-bit precision, whatever the
		// operands' width, then down to an integer element count.
		span := symbolic.CastTo(dtypes.Float64, symbolic.Sub(stop, start))
		count = symbolic.CastTo(dtypes.Int64, symbolic.CeilOf(symbolic.Div(span, step)))
	}
	count = ctx.Analyzer().Simplify(count)
	return structinfo.MakeTensor(structinfo.MakeShape(count), dtype)
}

func inferHammingWindow(call *Call, ctx *Context) structinfo.StructInfo {
	checkArity(ctx, call, 4)
	dtype := concreteAttrDType(ctx, call)
	if dtype.IsInt() {
		ctx.ReportFatal(&DTypeError{Op: call.Op(), DType: dtype,
			Reason: "expects a floating dtype"})
	}
	size := argPrimExpr(ctx, call, 0, "window_size")
	analyzer := ctx.Analyzer()
	// A size that cannot be disproven is accepted: symbolic sizes resolve at
	// run time. Only a proven violation is fatal.
	if analyzer.CanProveLessThan(size, 1) {
		ctx.ReportFatal(&SymbolicBoundError{Op: call.Op(), Param: "window_size",
			Expr: size, Bound: 1})
	}
	size = analyzer.Simplify(size)
	return structinfo.MakeTensor(structinfo.MakeShape(size), dtype)
}

func inferTrilTriu(call *Call, ctx *Context) structinfo.StructInfo {
	checkArity(ctx, call, 2)
	data := argTensorInfo(ctx, call, 0, "x")
	offsetInfo := GetArgStructInfo(call, 1)
	if _, ok := offsetInfo.(*structinfo.PrimInfo); !ok {
		ctx.ReportFatal(&TypeMismatchError{Op: call.Op(), ArgName: "k", Want: "Prim", Got: offsetInfo})
	}
	if r := data.Rank(); r != structinfo.UnknownRank && r < 2 {
		ctx.ReportFatal(&RankError{Op: call.Op(), ArgName: "x", Rank: r, Constraint: "at least 2"})
	}
	// Values move, structure does not: the input struct-info passes through.
	return data
}
