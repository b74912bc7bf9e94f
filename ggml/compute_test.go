// MODUL: compute_test
// ZWECK: Tests fuer Threadpool, Determinismus und kooperativen Abbruch
// INPUT: Synthetische Graphen
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, math/rand

package ggml

import (
	"math"
	"math/rand"
	"testing"
)

// buildChain baut x -> silu -> rmsnorm -> matmul -> softmax
func buildChain(ctx *Context, seed int64) *Tensor {
	rng := rand.New(rand.NewSource(seed))

	x := NewTensor2D(ctx, TypeF32, 64, 16)
	w := NewTensor2D(ctx, TypeF32, 64, 32)
	for _, tn := range []*Tensor{x, w} {
		fs := tn.Floats()
		for i := range fs {
			fs[i] = float32(rng.Float64()*2 - 1)
		}
	}

	h := Silu(ctx, x)
	h = RMSNorm(ctx, h, 1e-6)
	h = MulMat(ctx, w, h)
	return SoftMax(ctx, h)
}

// TestComputeDeterminism: gleicher Graph, gleiche Threadzahl ->
// identische F32-Ausgabe (P8)
func TestComputeDeterminism(t *testing.T) {
	run := func(nThreads int) []float32 {
		ctx := NewContext(InitParams{MemSize: 1 << 24})
		defer ctx.Free()

		y := buildChain(ctx, 42)
		g := NewGraph(ctx)
		g.BuildForwardExpand(y)
		if st := GraphCompute(g, GraphPlan(g, nThreads, nil)); st != StatusSuccess {
			t.Fatalf("GraphCompute = %v", st)
		}
		return append([]float32(nil), y.Floats()...)
	}

	a := run(4)
	b := run(4)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Lauf 1 und 2 unterscheiden sich an %d: %g != %g", i, a[i], b[i])
		}
	}

	// unterschiedliche Threadzahlen: nur Toleranz, keine Gleichheit
	c := run(1)
	for i := range a {
		if math.Abs(float64(a[i]-c[i])) > 1e-5 {
			t.Fatalf("Thread-Toleranz verletzt an %d: %g vs %g", i, a[i], c[i])
		}
	}
}

// TestComputeAbort: Abbruch zwischen zwei Knoten liefert ABORTED und
// laesst fertige Knoten intakt (P9)
func TestComputeAbort(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	x := NewTensor1D(ctx, TypeF32, 8).SetFloats(1, 2, 3, 4, 5, 6, 7, 8)
	a := Scale(ctx, x, 2)
	b := Scale(ctx, a, 10)

	g := NewGraph(ctx)
	g.BuildForwardExpand(b)

	calls := 0
	plan := GraphPlan(g, 2, nil)
	plan.AbortCallback = func(any) bool {
		calls++
		return calls == 1 // nach dem ersten Knoten abbrechen
	}

	if st := GraphCompute(g, plan); st != StatusAborted {
		t.Fatalf("Status = %v, erwartet ABORTED", st)
	}

	// Knoten a ist fertig, Knoten b wurde nie gerechnet
	if got := a.Floats()[0]; got != 2 {
		t.Errorf("a[0] = %f, erwartet 2 (letzter fertiger Knoten)", got)
	}
	if got := b.Floats()[0]; got != 0 {
		t.Errorf("b[0] = %f, erwartet 0 (nie gerechnet)", got)
	}
}

// TestThreadPoolReuse: ein persistenter Pool rechnet mehrere Graphen
func TestThreadPoolReuse(t *testing.T) {
	tp := NewThreadPool(ThreadPoolParamsDefault(4))
	defer tp.Free()

	for i := 0; i < 5; i++ {
		ctx := NewContext(InitParams{MemSize: 1 << 22})

		x := NewTensor1D(ctx, TypeF32, 128)
		for j := range x.Floats() {
			x.Floats()[j] = float32(j)
		}
		y := Scale(ctx, x, 3)

		g := NewGraph(ctx)
		g.BuildForwardExpand(y)
		plan := GraphPlan(g, 4, tp)
		if st := GraphCompute(g, plan); st != StatusSuccess {
			t.Fatalf("Lauf %d: Status = %v", i, st)
		}
		if got := y.Floats()[100]; got != 300 {
			t.Fatalf("Lauf %d: y[100] = %f, erwartet 300", i, got)
		}
		ctx.Free()
	}
}

// TestThreadPoolPauseResume: angehaltene Worker laufen nach Resume weiter
func TestThreadPoolPauseResume(t *testing.T) {
	tp := NewThreadPool(ThreadPoolParams{NThreads: 2, Poll: 0, Paused: false})
	defer tp.Free()

	tp.Pause()
	tp.Resume()

	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	x := NewTensor1D(ctx, TypeF32, 16).SetFloats(
		0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15)
	y := Scale(ctx, x, 2)

	g := NewGraph(ctx)
	g.BuildForwardExpand(y)
	if st := GraphCompute(g, GraphPlan(g, 2, tp)); st != StatusSuccess {
		t.Fatalf("Status = %v", st)
	}
	if got := y.Floats()[15]; got != 30 {
		t.Errorf("y[15] = %f, erwartet 30", got)
	}
}

// TestPlanTaskCounts: Reduktionen bleiben einfaedig
func TestPlanTaskCounts(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	x := NewTensor2D(ctx, TypeF32, 8, 8)
	s := Sum(ctx, x)
	m := MulMat(ctx, x, x)

	if got := opTaskCount(s, 8); got != 1 {
		t.Errorf("Task-Anzahl Sum = %d, erwartet 1", got)
	}
	if got := opTaskCount(m, 8); got != 8 {
		t.Errorf("Task-Anzahl MulMat = %d, erwartet 8", got)
	}
}

// TestPlanWorkSize: Quantisierungs-Vorlauf des Matmul braucht wdata
func TestPlanWorkSize(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	a := NewTensor2D(ctx, TypeQ4_0, 64, 4)
	b := NewTensor2D(ctx, TypeF32, 64, 4)
	c := MulMat(ctx, a, b)

	g := NewGraph(ctx)
	g.BuildForwardExpand(c)

	plan := GraphPlan(g, 2, nil)
	// 4 Zeilen im Partnertyp Q8_0
	if plan.WorkSize < RowSize(TypeQ8_0, 64)*4 {
		t.Errorf("WorkSize = %d zu klein fuer den Vorlauf", plan.WorkSize)
	}
}
