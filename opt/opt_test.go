// MODUL: opt_test
// ZWECK: Konvergenz-Tests der Optimierer-Treiber
// INPUT: Quadratische Schale sum((x - c)^2)
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing, testify

package opt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7blacky7/tensorwerk/ggml"
)

// bowl baut loss = sum((x - c)^2) ueber einen Parametervektor x
func bowl(t *testing.T, ctx *ggml.Context) (x, loss *ggml.Tensor, target []float32) {
	t.Helper()

	target = []float32{1, -2, 3, 0.5}

	x = ggml.NewTensor1D(ctx, ggml.TypeF32, 4).SetFloats(0, 0, 0, 0)
	x.SetParam()

	c := ggml.NewTensor1D(ctx, ggml.TypeF32, 4).SetFloats(target...)
	loss = ggml.Sum(ctx, ggml.Sqr(ctx, ggml.Sub(ctx, x, c)))
	loss.SetLoss()
	return x, loss, target
}

func TestAdamConvergesOnBowl(t *testing.T) {
	ctx := ggml.NewContext(ggml.InitParams{MemSize: 1 << 24})
	defer ctx.Free()

	x, loss, target := bowl(t, ctx)

	prm := AdamParamsDefault()
	prm.Alpha = 0.1
	prm.Iterations = 500

	res, err := Adam(ctx, loss, prm)
	require.NoError(t, err)
	require.Less(t, float64(res.FinalLoss), 1e-3, "Adam sollte die Schale minimieren")

	for i, want := range target {
		require.InDelta(t, want, x.Floats()[i], 0.05, "Parameter %d", i)
	}
}

func TestLBFGSConvergesOnBowl(t *testing.T) {
	ctx := ggml.NewContext(ggml.InitParams{MemSize: 1 << 24})
	defer ctx.Free()

	x, loss, target := bowl(t, ctx)

	prm := LBFGSParamsDefault()
	prm.Iterations = 50

	res, err := LBFGS(ctx, loss, prm)
	require.NoError(t, err)
	require.Less(t, float64(res.FinalLoss), 1e-4, "L-BFGS sollte die Schale minimieren")

	for i, want := range target {
		require.InDelta(t, want, x.Floats()[i], 0.01, "Parameter %d", i)
	}
}

func TestOptRequiresParams(t *testing.T) {
	ctx := ggml.NewContext(ggml.InitParams{MemSize: 1 << 22})
	defer ctx.Free()

	a := ggml.NewTensor1D(ctx, ggml.TypeF32, 2).SetFloats(1, 2)
	loss := ggml.Sum(ctx, a)

	_, err := Adam(ctx, loss, AdamParamsDefault())
	require.ErrorIs(t, err, ErrNoParams)
}
