// MODUL: matmul_ref_test
// ZWECK: Kreuzvergleich des Matmul-Kernels mit unabhaengigen
//        Referenz-Implementierungen und Batch-Assoziativitaet
// INPUT: Zufaellige Matrizen (feste Seeds)
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, gonum, pdevine/tensor

package ggml

import (
	"math"
	"math/rand"
	"testing"

	ptensor "github.com/pdevine/tensor"
	"gonum.org/v1/gonum/mat"
)

// TestMulMatAgainstGonum vergleicht mit gonum (f64-Referenz)
func TestMulMatAgainstGonum(t *testing.T) {
	const k, m, n = 16, 8, 12

	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	rng := rand.New(rand.NewSource(21))
	a := NewTensor2D(ctx, TypeF32, k, m)
	b := NewTensor2D(ctx, TypeF32, k, n)
	af64 := make([]float64, k*m)
	bf64 := make([]float64, k*n)
	for i := range a.Floats() {
		v := rng.Float64()*2 - 1
		a.Floats()[i] = float32(v)
		af64[i] = v
	}
	for i := range b.Floats() {
		v := rng.Float64()*2 - 1
		b.Floats()[i] = float32(v)
		bf64[i] = v
	}

	c := MulMat(ctx, a, b)
	computeGraph(t, ctx, c, 4)

	// gonum: Zeilen sind die langsame Achse -> A ist (m x k), B ist (n x k)
	ga := mat.NewDense(m, k, af64)
	gb := mat.NewDense(n, k, bf64)
	var gc mat.Dense
	gc.Mul(ga, gb.T()) // (m x n)

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			want := gc.At(i, j)
			got := float64(c.F32At(int64(i), int64(j)))
			if math.Abs(got-want) > 1e-4 {
				t.Errorf("C[%d,%d] = %g, gonum erwartet %g", i, j, got, want)
			}
		}
	}
}

// TestMulMatAgainstPDevine vergleicht mit der pdevine/tensor-Referenz
func TestMulMatAgainstPDevine(t *testing.T) {
	const k, m, n = 8, 4, 6

	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	rng := rand.New(rand.NewSource(22))
	a := NewTensor2D(ctx, TypeF32, k, m)
	b := NewTensor2D(ctx, TypeF32, k, n)
	for _, tn := range []*Tensor{a, b} {
		fs := tn.Floats()
		for i := range fs {
			fs[i] = float32(rng.Float64()*2 - 1)
		}
	}

	c := MulMat(ctx, a, b)
	computeGraph(t, ctx, c, 1)

	// pdevine/tensor rechnet (m x k) @ (k x n)
	pa := ptensor.New(ptensor.WithShape(m, k), ptensor.WithBacking(append([]float32(nil), a.Floats()...)))
	pbT := make([]float32, k*n)
	for j := 0; j < n; j++ {
		for kk := 0; kk < k; kk++ {
			pbT[kk*n+j] = b.F32At(int64(kk), int64(j))
		}
	}
	pb := ptensor.New(ptensor.WithShape(k, n), ptensor.WithBacking(pbT))

	pc, err := ptensor.MatMul(pa, pb)
	if err != nil {
		t.Fatalf("Referenz-MatMul: %v", err)
	}
	ref := pc.Data().([]float32)

	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			want := ref[i*n+j]
			got := c.F32At(int64(i), int64(j))
			if math.Abs(float64(got-want)) > 1e-4 {
				t.Errorf("C[%d,%d] = %g, Referenz erwartet %g", i, j, got, want)
			}
		}
	}
}

// TestMulMatBatchAssociativity: gebatchtes Matmul entspricht der
// Konkatenation der Einzel-Batches
func TestMulMatBatchAssociativity(t *testing.T) {
	const k, m, n, batch = 8, 4, 4, 3

	ctx := NewContext(InitParams{MemSize: 1 << 24})
	defer ctx.Free()

	rng := rand.New(rand.NewSource(23))
	a := NewTensor3D(ctx, TypeF32, k, m, batch)
	b := NewTensor3D(ctx, TypeF32, k, n, batch)
	for _, tn := range []*Tensor{a, b} {
		fs := tn.Floats()
		for i := range fs {
			fs[i] = float32(rng.Float64()*2 - 1)
		}
	}

	c := MulMat(ctx, a, b)
	computeGraph(t, ctx, c, 2)

	// jedes Batch einzeln rechnen und vergleichen
	for ib := int64(0); ib < batch; ib++ {
		as := Cont(ctx, View3D(ctx, a, k, m, 1, a.Nb[1], a.Nb[2], ib*a.Nb[2]))
		bs := Cont(ctx, View3D(ctx, b, k, n, 1, b.Nb[1], b.Nb[2], ib*b.Nb[2]))
		cs := MulMat(ctx, as, bs)
		computeGraph(t, ctx, cs, 1)

		for i := int64(0); i < m; i++ {
			for j := int64(0); j < n; j++ {
				want := cs.F32At(i, j)
				got := c.F32At(i, j, ib)
				if math.Abs(float64(got-want)) > 1e-5 {
					t.Errorf("Batch %d: C[%d,%d] = %g, erwartet %g", ib, i, j, got, want)
				}
			}
		}
	}
}

// TestOutProd: aeusseres Produkt gegen direkte Summation
func TestOutProd(t *testing.T) {
	const m, n, kk = 3, 4, 5

	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	rng := rand.New(rand.NewSource(24))
	a := NewTensor2D(ctx, TypeF32, m, kk)
	b := NewTensor2D(ctx, TypeF32, n, kk)
	for _, tn := range []*Tensor{a, b} {
		fs := tn.Floats()
		for i := range fs {
			fs[i] = float32(rng.Float64()*2 - 1)
		}
	}

	c := OutProd(ctx, a, b)
	computeGraph(t, ctx, c, 2)

	for i := int64(0); i < m; i++ {
		for j := int64(0); j < n; j++ {
			var want float64
			for s := int64(0); s < kk; s++ {
				want += float64(a.F32At(i, s)) * float64(b.F32At(j, s))
			}
			got := float64(c.F32At(i, j))
			if math.Abs(got-want) > 1e-5 {
				t.Errorf("OutProd[%d,%d] = %g, erwartet %g", i, j, got, want)
			}
		}
	}
}
