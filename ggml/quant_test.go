// MODUL: quant_test
// ZWECK: Tests fuer Quantisierung/Dequantisierung und die Fassade
// INPUT: Gaussscher Kalibrierungsvektor (Seed 42)
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

// gaussian liefert einen reproduzierbaren Kalibrierungsvektor
func gaussian(n int, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(rng.NormFloat64())
	}
	return out
}

// relError ist ||x - y||2 / ||x||2
func relError(x, y []float32) float64 {
	var num, den float64
	for i := range x {
		d := float64(x[i] - y[i])
		num += d * d
		den += float64(x[i]) * float64(x[i])
	}
	return math.Sqrt(num / den)
}

// roundtrip kodiert und dekodiert n Elemente
func roundtrip(t *testing.T, typ Type, x []float32) []float32 {
	t.Helper()
	tr := typ.Traits()
	require.NotNil(t, tr.FromFloat, "encoder fehlt")
	require.NotNil(t, tr.ToFloat, "decoder fehlt")

	enc := make([]byte, RowSize(typ, int64(len(x))))
	tr.FromFloat(x, enc)
	dec := make([]float32, len(x))
	tr.ToFloat(enc, dec)
	return dec
}

// TestQuantRoundtripError prueft die typspezifischen Fehlerschranken
// auf dem festen Gauss-Set
func TestQuantRoundtripError(t *testing.T) {
	x := gaussian(1024, 42)

	// Schranken fuer die skalaren Referenz-Kodierer
	bounds := map[Type]float64{
		TypeQ4_0:   0.10,
		TypeQ4_1:   0.10,
		TypeQ5_0:   0.05,
		TypeQ5_1:   0.05,
		TypeQ8_0:   0.01,
		TypeQ2_K:   0.45,
		TypeQ3_K:   0.30,
		TypeQ4_K:   0.12,
		TypeQ5_K:   0.06,
		TypeQ6_K:   0.04,
		TypeQ8_K:   0.01,
		TypeIQ4_NL: 0.10,
		TypeIQ4_XS: 0.12,
	}

	for typ, bound := range bounds {
		t.Run(typ.String(), func(t *testing.T) {
			dec := roundtrip(t, typ, x)
			err := relError(x, dec)
			require.Lessf(t, err, bound, "Fehler %.5f ueber Schranke %.5f", err, bound)
		})
	}
}

// TestQuantTernaryRoundtrip prueft die ternaeren Formate auf exakten
// Erhalt ternaerer Eingaben
func TestQuantTernaryRoundtrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := make([]float32, 256)
	for i := range x {
		x[i] = float32(rng.Intn(3) - 1)
	}

	for _, typ := range []Type{TypeTQ1_0, TypeTQ2_0} {
		t.Run(typ.String(), func(t *testing.T) {
			dec := roundtrip(t, typ, x)
			require.Equal(t, x, dec)
		})
	}
}

// TestQuantizeQ4_0Scenario entspricht dem 256-Element-Szenario
func TestQuantizeQ4_0Scenario(t *testing.T) {
	x := gaussian(256, 42)
	dec := roundtrip(t, TypeQ4_0, x)

	var num, den float64
	for i := range x {
		d := float64(x[i] - dec[i])
		num += d * d
		den += float64(x[i]) * float64(x[i])
	}
	require.Less(t, num/den, 0.01)
}

// TestHalfRoundtrip prueft F16/BF16 im verlustfreien Bereich (P1)
func TestHalfRoundtrip(t *testing.T) {
	exact := []float32{0, 1, -1, 0.5, 2, 1024, -0.25, 0.125}

	enc := make([]byte, 2*len(exact))
	dec := make([]float32, len(exact))

	fp32RowToF16(exact, enc)
	fp16RowToF32(enc, dec)
	require.Equal(t, exact, dec, "F16 muss den verlustfreien Bereich exakt erhalten")

	fp32RowToBF16(exact, enc)
	bf16RowToF32(enc, dec)
	require.Equal(t, exact, dec, "BF16 muss den verlustfreien Bereich exakt erhalten")
}

// TestQuantizeChunk prueft die Fassade (Bytes, Preconditions)
func TestQuantizeChunk(t *testing.T) {
	const rows, cols = 4, 64
	x := gaussian(rows*cols, 3)

	dst := make([]byte, RowSize(TypeQ8_0, cols)*rows)
	n := QuantizeChunk(TypeQ8_0, x, dst, 0, rows, cols, nil)
	require.Equal(t, int64(len(dst)), n)

	// F16 laeuft ueber den Zeilenkonverter
	dst16 := make([]byte, 2*rows*cols)
	n = QuantizeChunk(TypeF16, x, dst16, 0, rows, cols, nil)
	require.Equal(t, int64(len(dst16)), n)
}

// TestVecDotQ4Q8 vergleicht den Integer-Pfad mit dem Float-Referenzpfad
func TestVecDotQ4Q8(t *testing.T) {
	const n = 256
	a := gaussian(n, 11)
	b := gaussian(n, 12)

	qa := make([]byte, RowSize(TypeQ4_0, n))
	quantizeRowQ4_0(a, qa)
	qb := make([]byte, RowSize(TypeQ8_0, n))
	quantizeRowQ8_0(b, qb)

	got := vecDotQ4_0Q8_0(n, qa, qb)

	da := make([]float32, n)
	dequantizeRowQ4_0(qa, da)
	db := make([]float32, n)
	dequantizeRowQ8_0(qb, db)
	want := vecDotF32(n, da, db)

	require.InDelta(t, want, got, 1e-2*math.Abs(float64(want))+1e-3)
}

// TestCodebookTypesRegistered: die Codebuch-Formate sind beschreibbar,
// aber ohne Konvertierungs-Callbacks
func TestCodebookTypesRegistered(t *testing.T) {
	for _, typ := range []Type{TypeIQ1_S, TypeIQ1_M, TypeIQ2_XXS, TypeIQ2_XS, TypeIQ2_S, TypeIQ3_XXS, TypeIQ3_S} {
		tr := typ.Traits()
		require.True(t, tr.IsQuantized)
		require.Equal(t, qkK, tr.BlockSize)
		require.Nil(t, tr.ToFloat)
		require.True(t, QuantizeRequiresImatrix(typ) || typ == TypeIQ3_XXS || typ == TypeIQ3_S)
	}
}
