package ir

import (
	"github.com/gomlx/gopjrt/dtypes"
)

// Attrs is the typed attribute record attached to a Call: static
// configuration fixed at construction time, distinct from the call's runtime
// arguments. The set of implementations is closed, one record type per
// operator family, so an inference rule can match its record exhaustively.
type Attrs interface {
	attrsNode()
}

// InitAttrs configures every creation operator: the element type of the
// created tensor. VoidDType means "inherit from the reference argument" and
// is only legal on operators that have one (full and the "-like" family);
// the builders of ones, zeros, eye, arange and hamming_window reject it at
// construction with a *ConfigError.
type InitAttrs struct {
	DType dtypes.DType
}

func (*InitAttrs) attrsNode() {}

// TriluAttrs configures tril and triu. It is empty: the diagonal offset is a
// call argument rather than a static attribute, so that it can be a symbolic
// value known only at trace time.
type TriluAttrs struct{}

func (*TriluAttrs) attrsNode() {}
