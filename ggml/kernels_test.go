// MODUL: kernels_test
// ZWECK: Tests fuer elementweise Kernels, Broadcast, Softmax, Matmul
// INPUT: Literale Szenarien der Engine-Spezifikation
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, math

package ggml

import (
	"math"
	"testing"
)

// computeGraph baut einen Graphen unter root und rechnet ihn
func computeGraph(t *testing.T, ctx *Context, root *Tensor, nThreads int) {
	t.Helper()
	g := NewGraph(ctx)
	g.BuildForwardExpand(root)
	if st := GraphCompute(g, GraphPlan(g, nThreads, nil)); st != StatusSuccess {
		t.Fatalf("GraphCompute = %v", st)
	}
}

func TestMulMatDense(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	a := NewTensor2D(ctx, TypeF32, 3, 2).SetFloats(1, 2, 3, 4, 5, 6)
	b := NewTensor2D(ctx, TypeF32, 3, 1).SetFloats(1, 0, 1)
	c := MulMat(ctx, a, b)

	computeGraph(t, ctx, c, 1)

	want := []float32{4, 10}
	got := c.Floats()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MulMat[%d] = %f, erwartet %f", i, got[i], want[i])
		}
	}
}

func TestMulMatQuantized(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	// a als Q8_0: ganzzahlige Werte bleiben exakt
	const k = 32
	af := make([]float32, k*2)
	bf := make([]float32, k)
	var want0, want1 float32
	for i := 0; i < k; i++ {
		af[i] = float32(i % 5)
		af[k+i] = float32((i + 1) % 3)
		bf[i] = float32(i % 2)
		want0 += af[i] * bf[i]
		want1 += af[k+i] * bf[i]
	}

	a := NewTensor2D(ctx, TypeQ8_0, k, 2)
	quantizeRowQ8_0(af, a.data)
	b := NewTensor2D(ctx, TypeF32, k, 1).SetFloats(bf...)

	c := MulMat(ctx, a, b)
	computeGraph(t, ctx, c, 2)

	got := c.Floats()
	if math.Abs(float64(got[0]-want0)) > 0.5 || math.Abs(float64(got[1]-want1)) > 0.5 {
		t.Errorf("quantisiertes MulMat = %v, erwartet [%f %f]", got, want0, want1)
	}
}

// TestAddBroadcast prueft die Broadcast-Regel elementweiser Operatoren
func TestAddBroadcast(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	a := NewTensor2D(ctx, TypeF32, 2, 4).SetFloats(1, 2, 3, 4, 5, 6, 7, 8)
	b := NewTensor2D(ctx, TypeF32, 2, 1).SetFloats(10, 20)

	c := Add(ctx, a, b)
	computeGraph(t, ctx, c, 1)

	got := c.Floats()
	want := []float32{11, 22, 13, 24, 15, 26, 17, 28}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Add[%d] = %f, erwartet %f (Broadcast-Regel)", i, got[i], want[i])
		}
	}
}

func TestSoftMaxRows(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	x := NewTensor2D(ctx, TypeF32, 4, 2).SetFloats(0, 0, 0, 0, 1, 2, 3, 4)
	mask := NewTensor2D(ctx, TypeF32, 4, 2) // Nullen
	y := SoftMaxExt(ctx, x, mask, 1, 0)

	computeGraph(t, ctx, y, 1)

	got := y.Floats()
	want := []float32{
		0.25, 0.25, 0.25, 0.25,
		0.0321, 0.0871, 0.2369, 0.6439,
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-3 {
			t.Errorf("SoftMax[%d] = %f, erwartet %f", i, got[i], want[i])
		}
	}

	// Zeilensummen = 1 (innerhalb 1e-6)
	for r := 0; r < 2; r++ {
		var sum float64
		for c := 0; c < 4; c++ {
			sum += float64(got[r*4+c])
		}
		if math.Abs(sum-1) > 1e-6 {
			t.Errorf("Zeilensumme %d = %f, erwartet 1", r, sum)
		}
	}
}

func TestSoftMaxMasked(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	ninf := float32(math.Inf(-1))
	x := NewTensor2D(ctx, TypeF32, 4, 2).SetFloats(1, 1, 1, 1, 1, 2, 3, 4)
	mask := NewTensor2D(ctx, TypeF32, 4, 2).SetFloats(
		0, ninf, ninf, ninf,
		0, 0, ninf, ninf)
	y := SoftMaxExt(ctx, x, mask, 1, 0)

	computeGraph(t, ctx, y, 1)

	got := y.Floats()
	if got[0] != 1 || got[1] != 0 {
		t.Errorf("maskierte Zeile 0 = %v", got[:4])
	}
	if got[6] != 0 || got[7] != 0 {
		t.Errorf("maskierte Zeile 1 = %v", got[4:])
	}
	var sum float64
	for c := 0; c < 4; c++ {
		sum += float64(got[4+c])
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("Zeilensumme = %f", sum)
	}
}

func TestUnaryOps(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	x := NewTensor1D(ctx, TypeF32, 4).SetFloats(-2, -0.5, 0.5, 2)

	relu := Relu(ctx, x)
	sig := Sigmoid(ctx, x)
	sl := Silu(ctx, x)

	g := NewGraph(ctx)
	g.BuildForwardExpand(relu)
	g.BuildForwardExpand(sig)
	g.BuildForwardExpand(sl)
	if st := GraphCompute(g, GraphPlan(g, 1, nil)); st != StatusSuccess {
		t.Fatalf("GraphCompute = %v", st)
	}

	if got := relu.Floats(); got[0] != 0 || got[3] != 2 {
		t.Errorf("Relu = %v", got)
	}
	if got := sig.Floats()[3]; math.Abs(float64(got)-0.8808) > 1e-3 {
		t.Errorf("Sigmoid(2) = %f", got)
	}
	if got := sl.Floats()[3]; math.Abs(float64(got)-1.7616) > 1e-3 {
		t.Errorf("Silu(2) = %f", got)
	}
}

func TestSumMeanRepeat(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	x := NewTensor2D(ctx, TypeF32, 3, 2).SetFloats(1, 2, 3, 4, 5, 6)
	s := Sum(ctx, x)
	m := Mean(ctx, x)

	g := NewGraph(ctx)
	g.BuildForwardExpand(s)
	g.BuildForwardExpand(m)
	if st := GraphCompute(g, GraphPlan(g, 2, nil)); st != StatusSuccess {
		t.Fatalf("GraphCompute = %v", st)
	}

	if got := s.Floats()[0]; got != 21 {
		t.Errorf("Sum = %f, erwartet 21", got)
	}
	if got := m.Floats(); got[0] != 2 || got[1] != 5 {
		t.Errorf("Mean = %v, erwartet [2 5]", got)
	}
}

func TestGetRows(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	table := NewTensor2D(ctx, TypeF32, 2, 3).SetFloats(1, 2, 3, 4, 5, 6)
	idx := NewTensor1D(ctx, TypeI32, 2).SetInts(2, 0)
	rows := GetRows(ctx, table, idx)

	computeGraph(t, ctx, rows, 1)

	got := rows.Floats()
	want := []float32{5, 6, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GetRows[%d] = %f, erwartet %f", i, got[i], want[i])
		}
	}
}

func TestArgsort(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	x := NewTensor1D(ctx, TypeF32, 4).SetFloats(0.3, 0.1, 0.4, 0.2)
	asc := Argsort(ctx, x, SortAsc)
	desc := Argsort(ctx, x, SortDesc)

	g := NewGraph(ctx)
	g.BuildForwardExpand(asc)
	g.BuildForwardExpand(desc)
	if st := GraphCompute(g, GraphPlan(g, 1, nil)); st != StatusSuccess {
		t.Fatalf("GraphCompute = %v", st)
	}

	if got := asc.Ints(); got[0] != 1 || got[1] != 3 || got[2] != 0 || got[3] != 2 {
		t.Errorf("Argsort asc = %v", got)
	}
	if got := desc.Ints(); got[0] != 2 || got[3] != 1 {
		t.Errorf("Argsort desc = %v", got)
	}
}

func TestCountEqual(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	a := NewTensor1D(ctx, TypeI32, 6).SetInts(1, 2, 3, 4, 5, 6)
	b := NewTensor1D(ctx, TypeI32, 6).SetInts(1, 0, 3, 0, 5, 0)
	c := CountEqual(ctx, a, b)

	computeGraph(t, ctx, c, 3)

	if got := bytesToI64(c.data, 1)[0]; got != 3 {
		t.Errorf("CountEqual = %d, erwartet 3", got)
	}
}

func TestRMSNorm(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	x := NewTensor1D(ctx, TypeF32, 4).SetFloats(2, 2, 2, 2)
	y := RMSNorm(ctx, x, 1e-6)

	computeGraph(t, ctx, y, 1)

	for i, v := range y.Floats() {
		if math.Abs(float64(v)-1) > 1e-5 {
			t.Errorf("RMSNorm[%d] = %f, erwartet 1", i, v)
		}
	}
}

func TestCpyQuantized(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	src := NewTensor2D(ctx, TypeF32, 32, 2)
	for i := range src.Floats() {
		src.Floats()[i] = float32(i%7) - 3
	}
	dst := NewTensor2D(ctx, TypeQ8_0, 32, 2)
	cp := Cpy(ctx, src, dst)

	computeGraph(t, ctx, cp, 2)

	dec := make([]float32, 64)
	dequantizeRowQ8_0(dst.data, dec)
	for i, v := range src.Floats() {
		if math.Abs(float64(dec[i]-v)) > 0.05 {
			t.Errorf("Cpy nach Q8_0: [%d] = %f, erwartet %f", i, dec[i], v)
		}
	}
}
