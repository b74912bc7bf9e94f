// MODUL: backward_test
// ZWECK: Tests des Backward-Builders gegen zentrale Differenzen
// INPUT: Zufaellige Parameter (feste Seeds)
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, testify, math/rand

package ggml

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// gradProblem baut Vorwaerts-/Rueckwaertsgraph fuer einen skalaren
// Verlust ueber den gegebenen Parametern
type gradProblem struct {
	ctx    *Context
	loss   *Tensor
	gf, gb *Graph
	plan   *Plan
	planB  *Plan
}

func newGradProblem(t *testing.T, ctx *Context, loss *Tensor) *gradProblem {
	t.Helper()
	require.True(t, loss.IsScalar(), "Verlust muss skalar sein")

	gf := NewGraphCustom(ctx, DefaultGraphSize, true)
	gf.BuildForwardExpand(loss)

	gb := NewGraphCustom(ctx, DefaultGraphSize, true)
	gb.BuildForwardExpand(loss)
	BuildBackwardExpand(ctx, gf, gb, false)

	return &gradProblem{
		ctx:   ctx,
		loss:  loss,
		gf:    gf,
		gb:    gb,
		plan:  GraphPlan(gf, 1, nil),
		planB: GraphPlan(gb, 1, nil),
	}
}

// forward wertet nur den Verlust aus
func (p *gradProblem) forward(t *testing.T) float64 {
	t.Helper()
	require.Equal(t, StatusSuccess, GraphCompute(p.gf, p.plan))
	return float64(p.loss.Floats()[0])
}

// backward liefert den Autograd-Gradienten eines Parameters
func (p *gradProblem) backward(t *testing.T) {
	t.Helper()
	p.gb.Reset()
	p.loss.Grad.Floats()[0] = 1
	require.Equal(t, StatusSuccess, GraphCompute(p.gb, p.planB))
}

// checkGradients vergleicht Autograd mit zentralen Differenzen (P7)
func checkGradients(t *testing.T, p *gradProblem, params []*Tensor, tol float64) {
	t.Helper()
	p.backward(t)

	for pi, param := range params {
		require.NotNil(t, param.Grad, "Parameter %d ohne Gradient", pi)
		autograd := append([]float32(nil), param.Grad.Floats()...)

		const eps = 1e-2
		data := param.Floats()
		for i := range data {
			orig := data[i]

			data[i] = orig + eps
			fPlus := p.forward(t)
			data[i] = orig - eps
			fMinus := p.forward(t)
			data[i] = orig

			numeric := (fPlus - fMinus) / (2 * eps)
			got := float64(autograd[i])

			denom := math.Max(math.Abs(numeric), 1)
			require.InDeltaf(t, numeric, got, tol*denom,
				"Parameter %d Element %d: autograd %g vs. numerisch %g", pi, i, got, numeric)
		}
	}
}

// TestBackwardMulMatSumSqr: y = sum((A @ B)^2) gegen finite Differenzen
func TestBackwardMulMatSumSqr(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 24})
	defer ctx.Free()

	rng := rand.New(rand.NewSource(5))
	a := NewTensor2D(ctx, TypeF32, 3, 2)
	b := NewTensor2D(ctx, TypeF32, 3, 4)
	for _, tn := range []*Tensor{a, b} {
		tn.SetParam()
		fs := tn.Floats()
		for i := range fs {
			fs[i] = float32(rng.Float64()*2 - 1)
		}
	}

	y := Sum(ctx, Sqr(ctx, MulMat(ctx, a, b)))
	y.SetLoss()

	p := newGradProblem(t, ctx, y)
	checkGradients(t, p, []*Tensor{a, b}, 1e-2)
}

// TestBackwardElementwise: Mul-, Div- und Unary-Ableitungen
func TestBackwardElementwise(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 24})
	defer ctx.Free()

	rng := rand.New(rand.NewSource(6))
	a := NewTensor1D(ctx, TypeF32, 8)
	b := NewTensor1D(ctx, TypeF32, 8)
	for _, tn := range []*Tensor{a, b} {
		tn.SetParam()
		fs := tn.Floats()
		for i := range fs {
			fs[i] = float32(rng.Float64() + 0.5) // positiv, stabil fuer Div
		}
	}

	y := Sum(ctx, Mul(ctx, Silu(ctx, a), Div(ctx, a, b)))
	y.SetLoss()

	p := newGradProblem(t, ctx, y)
	checkGradients(t, p, []*Tensor{a, b}, 1e-2)
}

// TestBackwardSoftMax: SoftMax-Ableitung y*(g - dot(y,g))
func TestBackwardSoftMax(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 24})
	defer ctx.Free()

	rng := rand.New(rand.NewSource(7))
	a := NewTensor1D(ctx, TypeF32, 6)
	a.SetParam()
	for i := range a.Floats() {
		a.Floats()[i] = float32(rng.Float64()*2 - 1)
	}

	w := NewTensor1D(ctx, TypeF32, 6).SetFloats(1, -1, 2, 0.5, -0.5, 1)

	y := Sum(ctx, Mul(ctx, SoftMax(ctx, a), w))
	y.SetLoss()

	p := newGradProblem(t, ctx, y)
	checkGradients(t, p, []*Tensor{a}, 1e-2)
}

// TestBackwardRMSNorm prueft die geschlossene RMSNorm-Ableitung
func TestBackwardRMSNorm(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 24})
	defer ctx.Free()

	rng := rand.New(rand.NewSource(8))
	a := NewTensor1D(ctx, TypeF32, 8)
	a.SetParam()
	for i := range a.Floats() {
		a.Floats()[i] = float32(rng.Float64() + 0.25)
	}

	w := NewTensor1D(ctx, TypeF32, 8)
	for i := range w.Floats() {
		w.Floats()[i] = float32(rng.Float64()*2 - 1)
	}

	y := Sum(ctx, Mul(ctx, RMSNorm(ctx, a, 1e-6), w))
	y.SetLoss()

	p := newGradProblem(t, ctx, y)
	checkGradients(t, p, []*Tensor{a}, 1e-2)
}

// TestBackwardAccumulate: acc_table erzwingt In-Place-Akkumulation
func TestBackwardAccumulate(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 24})
	defer ctx.Free()

	a := NewTensor1D(ctx, TypeF32, 4).SetFloats(1, 2, 3, 4)
	a.SetParam()
	y := Sum(ctx, Sqr(ctx, a))
	y.SetLoss()

	gf := NewGraphCustom(ctx, DefaultGraphSize, true)
	gf.BuildForwardExpand(y)
	gb := NewGraphCustom(ctx, DefaultGraphSize, true)
	gb.BuildForwardExpand(y)
	BuildBackwardExpand(ctx, gf, gb, true)

	require.NotNil(t, a.Grad)

	plan := GraphPlan(gb, 1, nil)

	// zwei Akkumulationsrunden: Gradienten addieren sich
	gb.Reset()
	y.Grad.Floats()[0] = 1
	require.Equal(t, StatusSuccess, GraphCompute(gb, plan))
	first := append([]float32(nil), a.Grad.Floats()...)

	y.Grad.Floats()[0] = 1
	require.Equal(t, StatusSuccess, GraphCompute(gb, plan))
	second := a.Grad.Floats()

	for i := range first {
		require.InDelta(t, 2*first[i], second[i], 1e-5, "Element %d akkumuliert nicht", i)
	}
}

// TestBackwardParamWithoutGradRefused: der Builder duldet keinen
// Parameter ohne Gradienten - nach build_backward traegt a einen
func TestBackwardParamWithoutGradRefused(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	a := NewTensor1D(ctx, TypeF32, 4).SetFloats(1, 2, 3, 4)
	a.SetParam()
	y := Sum(ctx, a)
	y.SetLoss()

	gf := NewGraphCustom(ctx, DefaultGraphSize, true)
	gf.BuildForwardExpand(y)
	gb := NewGraphCustom(ctx, DefaultGraphSize, true)
	gb.BuildForwardExpand(y)
	BuildBackwardExpand(ctx, gf, gb, false)

	require.NotNil(t, a.Grad, "Parameter muss nach build_backward einen Gradienten haben")
}
