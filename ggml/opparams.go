// opparams.go - Typisierte Operator-Parameter
// Enthaelt: eine Parameter-Variante pro parametrisiertem Operator
//
// Die Builder schreiben eine Variante, die Kernels lesen sie ueber
// opParamsOf; es gibt keine Byte-Reinterpretation.

package ggml

// opParamsOf liest die Parameter-Variante eines Knotens typisiert aus
func opParamsOf[T any](t *Tensor) T {
	p, ok := t.opParams.(T)
	Assertf(ok, "%s: unexpected op params %T", t.Op, t.opParams)
	return p
}

type scaleParams struct {
	Scale float32
}

type softMaxParams struct {
	Scale   float32
	MaxBias float32
}

// RopeMode waehlt das Rotations-Layout
type RopeMode int32

const (
	// RopeModeNorm rotiert benachbarte Paare (i0, i0+1) - GPT-J
	RopeModeNorm RopeMode = 0
	// RopeModeNeox rotiert Haelften (i0, i0+n/2)
	RopeModeNeox RopeMode = 2
)

type ropeParams struct {
	NDims      int32
	Mode       RopeMode
	NCtxOrig   int32
	FreqBase   float32
	FreqScale  float32
	ExtFactor  float32
	AttnFactor float32
	BetaFast   float32
	BetaSlow   float32
	Backward   bool
}

type diagMaskParams struct {
	NPast int32
}

type setParams struct {
	Nb1, Nb2, Nb3 int64
	Offset        int64
	Inplace       bool
}

type normParams struct {
	Eps float32
}

type groupNormParams struct {
	NGroups int32
	Eps     float32
}

type concatParams struct {
	Dim int32
}

type im2colParams struct {
	S0, S1 int32
	P0, P1 int32
	D0, D1 int32
	Is2D   bool
}

type convTranspose1DParams struct {
	S0 int32
}

type convTranspose2DParams struct {
	Stride int32
}

type poolParams struct {
	Op     PoolOp
	K0, K1 int32
	S0, S1 int32
	P0, P1 int32
}

type upscaleParams struct {
	NeTarget [MaxDims]int64
}

type padParams struct {
	P [MaxDims]int32
}

type arangeParams struct {
	Start, Stop, Step float32
}

type timestepParams struct {
	Dim       int32
	MaxPeriod int32
}

type argsortParams struct {
	Order SortOrder
}

type leakyReluParams struct {
	NegSlope float32
}

type flashAttnParams struct {
	Scale        float32
	MaxBias      float32
	LogitSoftcap float32
}

type unaryParams struct {
	Op UnaryOp
}

type clampParams struct {
	Min, Max float32
}

type repeatBackParams struct{}

type permuteParams struct {
	Axis [MaxDims]int32
}
