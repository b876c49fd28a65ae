// Package structinfo defines the static descriptors ("struct-info") attached
// to values of a tensor program: what is known at build time about a value's
// shape, element type and device placement.
//
// The set of descriptor kinds is closed:
//
//   - *TensorInfo: a tensor with (possibly partially) known shape, dtype and
//     device.
//   - *ShapeInfo: a shape value -- an ordered sequence of symbolic dimension
//     expressions, or just a rank, or nothing at all.
//   - *PrimInfo: a zero-rank symbolic scalar (sizes, offsets, steps).
//
// Struct-info values are immutable once published. Derived values are built
// with structural copies (see TensorInfo.WithDType), never in place.
//
// DType "void" (VoidDType) is the single "inherit from the input" sentinel:
// a hole that every inference rule must resolve before returning.
package structinfo

import (
	"fmt"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/tensorir/types/symbolic"
)

// UnknownRank marks a tensor or shape whose number of axes is not known at
// build time.
const UnknownRank = -1

// VoidDType is the "inherit from the input" dtype sentinel.
const VoidDType = dtypes.InvalidDType

// IsVoid reports whether dtype is the inherit sentinel.
func IsVoid(dtype dtypes.DType) bool { return dtype == VoidDType }

// ResolveDType returns attrDType if it is concrete, and the inherited dtype
// otherwise. Every "-like" creation rule resolves its output dtype this way.
func ResolveDType(attrDType, inherited dtypes.DType) dtypes.DType {
	if IsVoid(attrDType) {
		return inherited
	}
	return attrDType
}

// DeviceTag identifies the device a tensor is placed on. The empty tag means
// "unspecified". This layer only propagates tags, it never assigns them.
type DeviceTag string

// StructInfo is the static descriptor attached to a value. The set of
// implementations is closed: *TensorInfo, *ShapeInfo and *PrimInfo.
type StructInfo interface {
	// String returns a human-readable rendering, used in diagnostics.
	String() string

	// Equal compares two descriptors structurally.
	Equal(other StructInfo) bool

	structInfoNode()
}

// ShapeInfo describes a shape value: at most a full sequence of symbolic
// dimensions, at least nothing ("unknown rank").
type ShapeInfo struct {
	dims []symbolic.Expr
	ndim int
}

// MakeShape returns a ShapeInfo with the given dimensions. With no arguments
// it is the rank-0 (scalar) shape.
func MakeShape(dims ...symbolic.Expr) *ShapeInfo {
	if dims == nil {
		// Fully known scalar shape, distinct from "rank 0, dims unknown".
		dims = []symbolic.Expr{}
	}
	return &ShapeInfo{dims: dims, ndim: len(dims)}
}

// MakeShapeWithRank returns a ShapeInfo whose rank is known but whose
// dimension values are not. Pass UnknownRank for a fully unknown shape.
func MakeShapeWithRank(ndim int) *ShapeInfo {
	if ndim < 0 && ndim != UnknownRank {
		exceptions.Panicf("structinfo.MakeShapeWithRank: invalid rank %d", ndim)
	}
	return &ShapeInfo{ndim: ndim}
}

// Rank returns the number of axes, or UnknownRank.
func (si *ShapeInfo) Rank() int { return si.ndim }

// Dims returns the dimension expressions, or nil if they are unknown.
// Callers must not modify the returned slice.
func (si *ShapeInfo) Dims() []symbolic.Expr { return si.dims }

// Dim returns the i-th dimension expression.
func (si *ShapeInfo) Dim(i int) symbolic.Expr {
	if si.dims == nil || i < 0 || i >= len(si.dims) {
		exceptions.Panicf("ShapeInfo.Dim(%d) out-of-bounds for shape %s", i, si)
	}
	return si.dims[i]
}

func (si *ShapeInfo) String() string {
	if si.dims != nil {
		parts := make([]string, len(si.dims))
		for i, d := range si.dims {
			parts[i] = d.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if si.ndim == UnknownRank {
		return "ndim(?)"
	}
	return fmt.Sprintf("ndim(%d)", si.ndim)
}

// Equal compares ranks and, when present, dimension expressions structurally.
func (si *ShapeInfo) Equal(other StructInfo) bool {
	o, ok := other.(*ShapeInfo)
	if !ok || si.ndim != o.ndim {
		return false
	}
	if (si.dims == nil) != (o.dims == nil) {
		return false
	}
	for i, d := range si.dims {
		if !symbolic.Equal(d, o.dims[i]) {
			return false
		}
	}
	return true
}

func (si *ShapeInfo) structInfoNode() {}

// TensorInfo describes a tensor value.
type TensorInfo struct {
	shape  *ShapeInfo
	dtype  dtypes.DType
	device DeviceTag
}

// MakeTensor returns a TensorInfo over the given shape and dtype, with no
// device specified. A nil shape means nothing is known about the shape, not
// even its rank.
func MakeTensor(shape *ShapeInfo, dtype dtypes.DType) *TensorInfo {
	return &TensorInfo{shape: shape, dtype: dtype}
}

// MakeTensorOnDevice is MakeTensor with a device tag attached.
func MakeTensorOnDevice(shape *ShapeInfo, dtype dtypes.DType, device DeviceTag) *TensorInfo {
	return &TensorInfo{shape: shape, dtype: dtype, device: device}
}

// Shape returns the tensor's shape descriptor, or nil if unknown.
func (ti *TensorInfo) Shape() *ShapeInfo { return ti.shape }

// DType returns the tensor's element type. VoidDType means "not yet
// resolved" and is only legal on inference inputs, never on outputs.
func (ti *TensorInfo) DType() dtypes.DType { return ti.dtype }

// Device returns the tensor's device tag, empty if unspecified.
func (ti *TensorInfo) Device() DeviceTag { return ti.device }

// Rank returns the tensor's number of axes, or UnknownRank.
func (ti *TensorInfo) Rank() int {
	if ti.shape == nil {
		return UnknownRank
	}
	return ti.shape.Rank()
}

// WithDType returns a structural copy with the dtype replaced; shape and
// device are shared with the receiver, which is left untouched.
func (ti *TensorInfo) WithDType(dtype dtypes.DType) *TensorInfo {
	return &TensorInfo{shape: ti.shape, dtype: dtype, device: ti.device}
}

func (ti *TensorInfo) String() string {
	var sb strings.Builder
	sb.WriteString("(")
	if IsVoid(ti.dtype) {
		sb.WriteString("void")
	} else {
		sb.WriteString(ti.dtype.String())
	}
	sb.WriteString(")")
	if ti.shape == nil {
		sb.WriteString("?")
	} else {
		sb.WriteString(ti.shape.String())
	}
	if ti.device != "" {
		sb.WriteString("@")
		sb.WriteString(string(ti.device))
	}
	return sb.String()
}

// Equal compares dtype, device and shape structurally.
func (ti *TensorInfo) Equal(other StructInfo) bool {
	o, ok := other.(*TensorInfo)
	if !ok || ti.dtype != o.dtype || ti.device != o.device {
		return false
	}
	if ti.shape == nil || o.shape == nil {
		return ti.shape == o.shape
	}
	return ti.shape.Equal(o.shape)
}

func (ti *TensorInfo) structInfoNode() {}

// PrimInfo describes a zero-rank symbolic scalar: the `n`, `m`, `k`,
// `start`, `stop`, `step` and window parameters of creation operators.
type PrimInfo struct {
	value symbolic.Expr
}

// MakePrim returns a PrimInfo over the given symbolic value.
func MakePrim(value symbolic.Expr) *PrimInfo {
	if value == nil {
		exceptions.Panicf("structinfo.MakePrim: nil symbolic value")
	}
	return &PrimInfo{value: value}
}

// Value returns the symbolic scalar.
func (pi *PrimInfo) Value() symbolic.Expr { return pi.value }

// DType returns the scalar's element type.
func (pi *PrimInfo) DType() dtypes.DType { return pi.value.DType() }

func (pi *PrimInfo) String() string {
	return fmt.Sprintf("Prim(%s: %s)", pi.DType(), pi.value)
}

// Equal compares the symbolic values structurally.
func (pi *PrimInfo) Equal(other StructInfo) bool {
	o, ok := other.(*PrimInfo)
	return ok && symbolic.Equal(pi.value, o.value)
}

func (pi *PrimInfo) structInfoNode() {}
