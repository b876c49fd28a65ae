package ir

import (
	"sort"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/tensorir/types/structinfo"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"k8s.io/klog/v2"
)

// MixedPrecisionPolicy declares how an automatic mixed-precision pass may
// treat an operator's results. It is a static declaration consumed by later
// passes, not verified here.
type MixedPrecisionPolicy int

const (
	// MixedPrecisionNever keeps the operator at its declared precision.
	MixedPrecisionNever MixedPrecisionPolicy = iota
	// MixedPrecisionFollow lets the operator follow the precision chosen
	// for its consumers.
	MixedPrecisionFollow
	// MixedPrecisionAlways always lowers the operator to reduced precision.
	MixedPrecisionAlways
)

// String implements fmt.Stringer.
func (p MixedPrecisionPolicy) String() string {
	switch p {
	case MixedPrecisionNever:
		return "Never"
	case MixedPrecisionFollow:
		return "Follow"
	case MixedPrecisionAlways:
		return "Always"
	}
	return "Invalid"
}

// ArgSpec documents one declared argument of an operator.
type ArgSpec struct {
	Name        string
	Kind        string // "Tensor", "Shape" or "PrimValue"
	Description string
}

// InferFunc computes the struct-info of a call's result, or aborts with a
// fatal diagnostic through ctx.ReportFatal. It must be pure: same call, same
// result, no side effects.
type InferFunc func(call *Call, ctx *Context) structinfo.StructInfo

// OpDef is the metadata registered for one operator name.
type OpDef struct {
	Name      string
	NumInputs int
	Args      []ArgSpec

	// AttrsType is a prototype of the attribute record family the operator
	// uses, nil if it carries no attributes.
	AttrsType Attrs

	Infer InferFunc

	// Pure asserts the operator (and its inference rule) has no observable
	// side effects.
	Pure bool

	MixedPrecision MixedPrecisionPolicy
}

// Registry maps operator names to their metadata. Build it once during
// initialization -- registration is not safe to interleave with inference --
// and treat it as read-only afterwards; lookups and inference then need no
// locking.
type Registry struct {
	ops map[string]*OpDef
}

// NewRegistry returns an empty registry. Most callers follow it with
// RegisterCreationOps.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*OpDef)}
}

// Register adds an operator definition. Registering the same name twice, or
// a definition without a name or inference rule, is a programming error and
// panics.
func (r *Registry) Register(def *OpDef) {
	if def == nil || def.Name == "" {
		exceptions.Panicf("Registry.Register: missing operator name")
	}
	if def.Infer == nil {
		exceptions.Panicf("Registry.Register: operator %q has no inference function", def.Name)
	}
	if _, found := r.ops[def.Name]; found {
		exceptions.Panicf("Registry.Register: operator %q registered twice", def.Name)
	}
	r.ops[def.Name] = def
	klog.V(2).Infof("registered operator %q (%d inputs, pure=%v)", def.Name, def.NumInputs, def.Pure)
}

// Lookup returns the metadata registered under name.
func (r *Registry) Lookup(name string) (*OpDef, error) {
	def, found := r.ops[name]
	if !found {
		return nil, &UnknownOperatorError{Name: name}
	}
	return def, nil
}

// Ops returns the registered operator names, sorted.
func (r *Registry) Ops() []string {
	names := maps.Keys(r.ops)
	sort.Strings(names)
	return names
}

// InferStructInfo computes the struct-info of the call's result using the
// registered inference rule. It returns an error -- one of the taxonomy in
// diagnostics.go -- and no struct-info if the call is invalid in any way.
//
// The call's argument count is checked against the declared arity before the
// rule runs. The rule receives a fresh Context (and therefore a fresh
// analyzer); a diagnostic the rule panics with is recovered here, annotated
// with the operator name (errors.As still reaches the underlying typed
// error) and returned.
func (r *Registry) InferStructInfo(call *Call) (info structinfo.StructInfo, err error) {
	def, err := r.Lookup(call.Op())
	if err != nil {
		return nil, err
	}
	if len(call.Args()) != def.NumInputs {
		return nil, &ArityError{Op: call.Op(), Want: def.NumInputs, Got: len(call.Args())}
	}
	ctx := newContext(call)
	err = exceptions.TryCatch[error](func() {
		info = def.Infer(call, ctx)
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "inferring struct-info of call to %q", call.Op())
	}
	return info, nil
}
