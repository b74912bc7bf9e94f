// MODUL: rope_test
// ZWECK: Tests fuer RoPE und seine Inverse
// INPUT: Zufaellige Aktivierungen (Seed 1), Positionen 0..7
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, math/rand

package ggml

import (
	"math"
	"math/rand"
	"testing"
)

// TestRopeInverse: rope_back(rope(x, p), p) ~ x
func TestRopeInverse(t *testing.T) {
	const nDims = 128
	const nTokens = 8

	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	rng := rand.New(rand.NewSource(1))
	x := NewTensor3D(ctx, TypeF32, nDims, 1, nTokens)
	xs := x.Floats()
	for i := range xs {
		xs[i] = float32(rng.Float64()*2 - 1)
	}

	pos := NewTensor1D(ctx, TypeI32, nTokens)
	for i := int32(0); i < nTokens; i++ {
		pos.Ints()[i] = i
	}

	rot := Rope(ctx, x, pos, nDims, RopeModeNorm)
	back := RopeBack(ctx, rot, pos, nil, nDims, RopeModeNorm, 0, 10000, 1, 0, 1, 32, 1)

	computeGraph(t, ctx, back, 2)

	maxDiff := 0.0
	for i, v := range back.Floats() {
		if d := math.Abs(float64(v - xs[i])); d > maxDiff {
			maxDiff = d
		}
	}
	if maxDiff >= 1e-3 {
		t.Errorf("max. Abweichung = %g, erwartet < 1e-3", maxDiff)
	}
}

// TestRopeNeoxLayout: NEOX rotiert Haelften, NORM benachbarte Paare
func TestRopeNeoxLayout(t *testing.T) {
	const nDims = 4
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	x := NewTensor3D(ctx, TypeF32, nDims, 1, 1).SetFloats(1, 0, 0, 0)
	pos := NewTensor1D(ctx, TypeI32, 1).SetInts(1)

	norm := Rope(ctx, x, pos, nDims, RopeModeNorm)
	neox := Rope(ctx, x, pos, nDims, RopeModeNeox)

	g := NewGraph(ctx)
	g.BuildForwardExpand(norm)
	g.BuildForwardExpand(neox)
	if st := GraphCompute(g, GraphPlan(g, 1, nil)); st != StatusSuccess {
		t.Fatalf("GraphCompute = %v", st)
	}

	// NORM: Paar (0,1) rotiert um theta=1
	n := norm.Floats()
	if math.Abs(float64(n[0])-math.Cos(1)) > 1e-6 || math.Abs(float64(n[1])-math.Sin(1)) > 1e-6 {
		t.Errorf("NORM-Rotation = %v", n)
	}

	// NEOX: Paar (0,2) rotiert um theta=1
	m := neox.Floats()
	if math.Abs(float64(m[0])-math.Cos(1)) > 1e-6 || math.Abs(float64(m[2])-math.Sin(1)) > 1e-6 {
		t.Errorf("NEOX-Rotation = %v", m)
	}
	if m[1] != 0 {
		t.Errorf("NEOX darf Element 1 nicht rotieren: %v", m)
	}
}

// TestRopePositionZero: Position 0 laesst die Eingabe unveraendert
func TestRopePositionZero(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	x := NewTensor3D(ctx, TypeF32, 8, 2, 1).SetFloats(
		1, 2, 3, 4, 5, 6, 7, 8,
		8, 7, 6, 5, 4, 3, 2, 1)
	pos := NewTensor1D(ctx, TypeI32, 1).SetInts(0)

	y := Rope(ctx, x, pos, 8, RopeModeNorm)
	computeGraph(t, ctx, y, 1)

	for i, v := range y.Floats() {
		if math.Abs(float64(v-x.Floats()[i])) > 1e-6 {
			t.Errorf("Rope(pos=0)[%d] = %f, erwartet %f", i, v, x.Floats()[i])
		}
	}
}
