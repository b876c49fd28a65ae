package ir

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tensorir/types/structinfo"
	"github.com/gomlx/tensorir/types/symbolic"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
)

// Aliases
var (
	I32  = dtypes.Int32
	I64  = dtypes.Int64
	F32  = dtypes.Float32
	F64  = dtypes.Float64
	Void = structinfo.VoidDType
)

// infer runs the call through a fresh registry, failing on any diagnostic.
func infer(t *testing.T, call *Call) structinfo.StructInfo {
	t.Helper()
	return must.M1(newTestRegistry().InferStructInfo(call))
}

// inferErr runs the call expecting a diagnostic.
func inferErr(t *testing.T, call *Call) error {
	t.Helper()
	_, err := newTestRegistry().InferStructInfo(call)
	require.Error(t, err)
	return err
}

// inferTensor is infer constrained to a tensor result.
func inferTensor(t *testing.T, call *Call) *structinfo.TensorInfo {
	t.Helper()
	info := infer(t, call)
	tensor, ok := info.(*structinfo.TensorInfo)
	require.True(t, ok, "expected a tensor struct-info, got %T", info)
	return tensor
}

// scalarOf returns a variable bound to a rank-0 tensor of the given dtype.
func scalarOf(dtype dtypes.DType, device structinfo.DeviceTag) *Var {
	return NewVar("fill", structinfo.MakeTensorOnDevice(structinfo.MakeShape(), dtype, device))
}

// tensorOf returns a variable bound to a tensor with the given dims.
func tensorOf(dtype dtypes.DType, dims ...int64) *Var {
	exprs := make([]symbolic.Expr, len(dims))
	for i, d := range dims {
		exprs[i] = symbolic.ConstInt(I64, d)
	}
	return NewVar("x", structinfo.MakeTensor(structinfo.MakeShape(exprs...), dtype))
}

// constDim requires the i-th output dimension to be a folded integer.
func constDim(t *testing.T, info *structinfo.TensorInfo, i int) int64 {
	t.Helper()
	c, ok := info.Shape().Dim(i).(*symbolic.Const)
	require.True(t, ok, "dimension %d did not fold: %s", i, info.Shape().Dim(i))
	return c.Int()
}

func TestFull(t *testing.T) {
	shape := NewShapeExpr(symbolic.ConstInt(I64, 2), symbolic.ConstInt(I64, 3))
	fill := scalarOf(F64, "cuda:0")

	// Explicit dtype wins; shape is carried over verbatim; the device comes
	// from the fill value.
	info := inferTensor(t, Full(shape, fill, F32))
	require.Equal(t, F32, info.DType())
	require.Same(t, shape.StructInfo(), structinfo.StructInfo(info.Shape()))
	require.Equal(t, structinfo.DeviceTag("cuda:0"), info.Device())

	// Void dtype inherits from the fill value.
	info = inferTensor(t, Full(shape, fill, Void))
	require.Equal(t, F64, info.DType())

	// A rank-only shape passes through untouched.
	rankOnly := structinfo.MakeShapeWithRank(2)
	info = inferTensor(t, Full(NewVar("s", rankOnly), fill, F32))
	require.Same(t, rankOnly, info.Shape())
}

func TestFullDiagnostics(t *testing.T) {
	shape := NewShapeExpr(symbolic.ConstInt(I64, 2))

	// A tensor where the shape argument belongs.
	err := inferErr(t, Full(tensorOf(F32, 2), scalarOf(F32, ""), F32))
	var typeErr *TypeMismatchError
	require.ErrorAs(t, err, &typeErr)
	require.Equal(t, "shape", typeErr.ArgName)

	// Non-scalar fill value.
	err = inferErr(t, Full(shape, tensorOf(F32, 4), F32))
	var rankErr *RankError
	require.ErrorAs(t, err, &rankErr)
	require.Equal(t, "fill_value", rankErr.ArgName)

	// A fill value of unknown rank is rejected just the same.
	unknownFill := NewVar("fill", structinfo.MakeTensor(nil, F32))
	err = inferErr(t, Full(shape, unknownFill, F32))
	require.ErrorAs(t, err, &rankErr)
	require.Equal(t, structinfo.UnknownRank, rankErr.Rank)
}

func TestFullLike(t *testing.T) {
	x := NewVar("x", structinfo.MakeTensorOnDevice(
		structinfo.MakeShape(symbolic.ConstInt(I64, 2), symbolic.ConstInt(I64, 3)), F32, "tpu:1"))
	fill := scalarOf(F64, "")

	// Void dtype: the input's struct-info is reused as-is.
	info := infer(t, FullLike(x, fill, Void))
	require.Same(t, x.StructInfo(), info)

	// Concrete dtype: structural copy with only the dtype replaced.
	retyped := inferTensor(t, FullLike(x, fill, F64))
	require.Equal(t, F64, retyped.DType())
	require.Same(t, x.StructInfo().(*structinfo.TensorInfo).Shape(), retyped.Shape())
	require.Equal(t, structinfo.DeviceTag("tpu:1"), retyped.Device())

	// Non-scalar fill value.
	err := inferErr(t, FullLike(x, tensorOf(F32, 4), Void))
	var rankErr *RankError
	require.ErrorAs(t, err, &rankErr)
	require.Equal(t, "fill_value", rankErr.ArgName)
}

func TestOnesZeros(t *testing.T) {
	shape := NewShapeExpr(symbolic.ConstInt(I64, 5))

	info := inferTensor(t, Ones(shape, F32))
	require.Equal(t, F32, info.DType())
	require.Same(t, shape.StructInfo(), structinfo.StructInfo(info.Shape()))

	info = inferTensor(t, Zeros(shape, I32))
	require.Equal(t, I32, info.DType())

	// Without a reference input there is nothing to inherit from: void dtype
	// is rejected at construction, before any call node exists.
	for _, build := range []func(){
		func() { Ones(shape, Void) },
		func() { Zeros(shape, Void) },
	} {
		err := exceptions.TryCatch[error](build)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	}

	// Hand-built calls bypass the builders, but the rule still refuses to
	// publish a void-dtype tensor.
	err := inferErr(t, NewCall(OpOnes, &InitAttrs{DType: Void}, shape))
	var dtypeErr *DTypeError
	require.ErrorAs(t, err, &dtypeErr)
	require.Equal(t, OpOnes, dtypeErr.Op)
}

func TestOnesLikeZerosLike(t *testing.T) {
	x := tensorOf(F32, 2, 3)

	info := infer(t, OnesLike(x, Void))
	require.Same(t, x.StructInfo(), info)

	retyped := inferTensor(t, ZerosLike(x, F64))
	require.Equal(t, F64, retyped.DType())
	require.Same(t, x.StructInfo().(*structinfo.TensorInfo).Shape(), retyped.Shape())
}

func TestEye(t *testing.T) {
	info := inferTensor(t, Eye(PrimInt64(3), PrimInt64(4), PrimInt64(1), F32))
	require.Equal(t, F32, info.DType())
	require.Equal(t, 2, info.Rank())
	require.EqualValues(t, 3, constDim(t, info, 0))
	require.EqualValues(t, 4, constDim(t, info, 1))

	// All three scalars, including the diagonal offset, must be literal prim
	// values, not arbitrary expressions that merely carry prim struct-info.
	opaque := NewVar("n", structinfo.MakePrim(symbolic.NewVar("n", I64)))
	err := inferErr(t, NewCall(OpEye, &InitAttrs{DType: F32}, opaque, PrimInt64(4), PrimInt64(0)))
	var primErr *ExpectedPrimValueError
	require.ErrorAs(t, err, &primErr)
	require.Equal(t, "n", primErr.Param)

	opaqueK := NewVar("k", structinfo.MakePrim(symbolic.NewVar("k", I64)))
	err = inferErr(t, NewCall(OpEye, &InitAttrs{DType: F32}, PrimInt64(3), PrimInt64(4), opaqueK))
	require.ErrorAs(t, err, &primErr)
	require.Equal(t, "k", primErr.Param)
}

func TestEyeLike(t *testing.T) {
	x := NewVar("x", structinfo.MakeTensorOnDevice(
		structinfo.MakeShape(symbolic.ConstInt(I64, 3), symbolic.ConstInt(I64, 3)), F64, "cuda:0"))

	// Void dtype inherits from x; shape and device carry over.
	info := inferTensor(t, EyeLike(x, PrimInt64(0), Void))
	require.Equal(t, F64, info.DType())
	require.Same(t, x.StructInfo().(*structinfo.TensorInfo).Shape(), info.Shape())
	require.Equal(t, structinfo.DeviceTag("cuda:0"), info.Device())

	info = inferTensor(t, EyeLike(x, PrimInt64(0), F32))
	require.Equal(t, F32, info.DType())

	// Rank must be exactly two when known.
	err := inferErr(t, EyeLike(tensorOf(F32, 3), PrimInt64(0), Void))
	var rankErr *RankError
	require.ErrorAs(t, err, &rankErr)
	require.Equal(t, "x", rankErr.ArgName)

	// Unknown rank is deferred to run time.
	ndimless := NewVar("x", structinfo.MakeTensor(structinfo.MakeShapeWithRank(structinfo.UnknownRank), F32))
	info = inferTensor(t, EyeLike(ndimless, PrimInt64(0), Void))
	require.Equal(t, structinfo.UnknownRank, info.Rank())

	// But a tensor with no shape descriptor at all has nothing to copy.
	shapeless := NewVar("x", structinfo.MakeTensor(nil, F32))
	err = inferErr(t, EyeLike(shapeless, PrimInt64(0), Void))
	var shapeErr *UnknownShapeError
	require.ErrorAs(t, err, &shapeErr)
}

func TestArange(t *testing.T) {
	prim := func(dtype dtypes.DType, v float64) *PrimValue {
		if dtype.IsInt() {
			return NewPrimValue(symbolic.ConstInt(dtype, int64(v)))
		}
		return NewPrimValue(symbolic.ConstFloat(dtype, v))
	}

	// Integer ranges: ceiling division on the span.
	info := inferTensor(t, Arange(PrimInt64(0), PrimInt64(10), PrimInt64(3), I64))
	require.Equal(t, I64, info.DType())
	require.Equal(t, 1, info.Rank())
	require.EqualValues(t, 4, constDim(t, info, 0)) // 0, 3, 6, 9

	info = inferTensor(t, Arange(PrimInt64(0), PrimInt64(9), PrimInt64(3), I64))
	require.EqualValues(t, 3, constDim(t, info, 0)) // 0, 3, 6

	// Float ranges: the count is still an integer dimension.
	info = inferTensor(t, Arange(prim(F32, 0), prim(F32, 1), prim(F32, 0.3), F32))
	require.Equal(t, F32, info.DType())
	require.EqualValues(t, 4, constDim(t, info, 0)) // 0, 0.3, 0.6, 0.9
	require.Equal(t, I64, info.Shape().Dim(0).DType())

	// A symbolic stop yields a symbolic count, with integer dtype.
	n := NewPrimValue(symbolic.NewVar("n", I64))
	info = inferTensor(t, Arange(PrimInt64(0), n, PrimInt64(1), I64))
	require.Equal(t, 1, info.Rank())
	require.Equal(t, I64, info.Shape().Dim(0).DType())

	// Scalars must be literal prim values.
	opaque := NewVar("stop", structinfo.MakePrim(symbolic.NewVar("stop", I64)))
	err := inferErr(t, NewCall(OpArange, &InitAttrs{DType: I64}, PrimInt64(0), opaque, PrimInt64(1)))
	var primErr *ExpectedPrimValueError
	require.ErrorAs(t, err, &primErr)
	require.Equal(t, "stop", primErr.Param)
}

func TestArangeStop(t *testing.T) {
	// Void dtype defaults to int64 for an integer stop.
	info := inferTensor(t, ArangeStop(PrimInt64(7), Void))
	require.Equal(t, I64, info.DType())
	require.EqualValues(t, 7, constDim(t, info, 0))

	// And to float32 for a floating stop.
	stop := NewPrimValue(symbolic.ConstFloat(F64, 2.5))
	info = inferTensor(t, ArangeStop(stop, Void))
	require.Equal(t, F32, info.DType())
	require.EqualValues(t, 3, constDim(t, info, 0)) // 0, 1, 2

	// An explicit dtype is never overridden.
	info = inferTensor(t, ArangeStop(PrimInt64(7), F64))
	require.Equal(t, F64, info.DType())
}

func TestHammingWindow(t *testing.T) {
	window := func(size *PrimValue, dtype dtypes.DType) *Call {
		return HammingWindow(size, PrimInt64(1),
			NewPrimValue(symbolic.ConstFloat(F32, 0.54)),
			NewPrimValue(symbolic.ConstFloat(F32, 0.46)), dtype)
	}

	info := inferTensor(t, window(PrimInt64(8), F32))
	require.Equal(t, F32, info.DType())
	require.EqualValues(t, 8, constDim(t, info, 0))

	// A symbolic size cannot be disproven, so it is accepted.
	n := NewPrimValue(symbolic.NewVar("n", I64))
	info = inferTensor(t, window(n, F32))
	require.Equal(t, 1, info.Rank())

	// A provably non-positive size is fatal.
	err := inferErr(t, window(PrimInt64(0), F32))
	var boundErr *SymbolicBoundError
	require.ErrorAs(t, err, &boundErr)
	require.Equal(t, "window_size", boundErr.Param)

	// Integer dtypes, signed or unsigned, make no sense for a window of
	// cosine values.
	err = inferErr(t, window(PrimInt64(8), I32))
	var dtypeErr *DTypeError
	require.ErrorAs(t, err, &dtypeErr)
	require.Equal(t, I32, dtypeErr.DType)
	err = inferErr(t, window(PrimInt64(8), dtypes.Uint32))
	require.ErrorAs(t, err, &dtypeErr)
	require.Equal(t, dtypes.Uint32, dtypeErr.DType)

	// Void dtype is rejected at construction.
	cfg := exceptions.TryCatch[error](func() { window(PrimInt64(8), Void) })
	var cfgErr *ConfigError
	require.ErrorAs(t, cfg, &cfgErr)
}

func TestTrilTriu(t *testing.T) {
	x := tensorOf(F32, 4, 4)

	// The input struct-info passes through untouched.
	require.Same(t, x.StructInfo(), infer(t, TrilInt(x, 1)))
	require.Same(t, x.StructInfo(), infer(t, TriuInt(x, -1)))

	// Unknown rank is deferred to run time.
	ndimless := NewVar("x", structinfo.MakeTensor(nil, F32))
	require.Same(t, ndimless.StructInfo(), infer(t, TrilInt(ndimless, 0)))

	// A known rank below two has no diagonal to offset.
	err := inferErr(t, TrilInt(tensorOf(F32, 4), 0))
	var rankErr *RankError
	require.ErrorAs(t, err, &rankErr)
	require.Equal(t, "x", rankErr.ArgName)

	// The offset must carry prim struct-info.
	err = inferErr(t, Tril(x, tensorOf(I64)))
	var typeErr *TypeMismatchError
	require.ErrorAs(t, err, &typeErr)
	require.Equal(t, "k", typeErr.ArgName)
}

func TestInferenceIsIdempotent(t *testing.T) {
	reg := newTestRegistry()
	calls := []*Call{
		Full(NewShapeExpr(symbolic.ConstInt(I64, 2)), scalarOf(F32, "cpu:0"), Void),
		Eye(PrimInt64(3), PrimInt64(3), PrimInt64(0), F32),
		Arange(PrimInt64(0), PrimInt64(10), PrimInt64(3), I64),
		TrilInt(tensorOf(F64, 4, 4), 1),
	}
	for _, call := range calls {
		first := must.M1(reg.InferStructInfo(call))
		second := must.M1(reg.InferStructInfo(call))
		require.True(t, first.Equal(second), "call %s", call)
	}
}
