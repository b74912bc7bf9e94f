// MODUL: attn_test
// ZWECK: FlashAttention gegen naive Softmax-Attention
// INPUT: Zufaellige Q/K/V (Seed 31)
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, math/rand

package ggml

import (
	"math"
	"math/rand"
	"testing"
)

// naiveAttention rechnet softmax(q k^T * scale) v fuer einen Kopf
func naiveAttention(q, k, v [][]float32, scale float32) [][]float32 {
	n := len(q)
	m := len(k)
	dv := len(v[0])

	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		scores := make([]float64, m)
		maxS := math.Inf(-1)
		for j := 0; j < m; j++ {
			var s float64
			for d := range q[i] {
				s += float64(q[i][d]) * float64(k[j][d])
			}
			s *= float64(scale)
			scores[j] = s
			if s > maxS {
				maxS = s
			}
		}

		var sum float64
		for j := range scores {
			scores[j] = math.Exp(scores[j] - maxS)
			sum += scores[j]
		}

		out[i] = make([]float32, dv)
		for j := 0; j < m; j++ {
			w := float32(scores[j] / sum)
			for d := 0; d < dv; d++ {
				out[i][d] += w * v[j][d]
			}
		}
	}
	return out
}

func TestFlashAttnAgainstNaive(t *testing.T) {
	const d, nQ, nKV = 16, 4, 8
	scale := float32(1 / math.Sqrt(d))

	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	rng := rand.New(rand.NewSource(31))
	q := NewTensor4D(ctx, TypeF32, d, nQ, 1, 1)
	k := NewTensor4D(ctx, TypeF32, d, nKV, 1, 1)
	v := NewTensor4D(ctx, TypeF32, d, nKV, 1, 1)
	for _, tn := range []*Tensor{q, k, v} {
		fs := tn.Floats()
		for i := range fs {
			fs[i] = float32(rng.Float64()*2 - 1)
		}
	}

	out := FlashAttnExt(ctx, q, k, v, nil, scale, 0, 0)
	computeGraph(t, ctx, out, 2)

	// Referenzzeilen aufbauen
	toRows := func(tn *Tensor, rows int) [][]float32 {
		r := make([][]float32, rows)
		for i := 0; i < rows; i++ {
			r[i] = append([]float32(nil), rowF32(tn, int64(i), 0, 0)...)
		}
		return r
	}
	want := naiveAttention(toRows(q, nQ), toRows(k, nKV), toRows(v, nKV), scale)

	// Ausgabe-Layout ist [Dv, H, N, B]
	for i := 0; i < nQ; i++ {
		got := rowF32(out, 0, int64(i), 0)
		for dd := 0; dd < d; dd++ {
			if math.Abs(float64(got[dd]-want[i][dd])) > 1e-4 {
				t.Fatalf("Attention[%d][%d] = %g, erwartet %g", i, dd, got[dd], want[i][dd])
			}
		}
	}
}

// TestFlashAttnSoftcap: Softcap begrenzt die Logits glatt
func TestFlashAttnSoftcap(t *testing.T) {
	const d, nQ, nKV = 8, 2, 4

	ctx := NewContext(InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	q := NewTensor4D(ctx, TypeF32, d, nQ, 1, 1)
	k := NewTensor4D(ctx, TypeF32, d, nKV, 1, 1)
	v := NewTensor4D(ctx, TypeF32, d, nKV, 1, 1)
	for _, tn := range []*Tensor{q, k, v} {
		fs := tn.Floats()
		for i := range fs {
			fs[i] = 1
		}
	}

	out := FlashAttnExt(ctx, q, k, v, nil, 1, 0, 5)
	computeGraph(t, ctx, out, 1)

	// alle Scores identisch -> gleichverteilte Gewichte, Ausgabe = v
	for _, got := range out.Floats() {
		if math.Abs(float64(got)-1) > 1e-5 {
			t.Fatalf("Softcap-Ausgabe = %g, erwartet 1", got)
		}
	}
}
