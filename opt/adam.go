// adam.go - Adam-Optimierer (entkoppelte Gewichts-Regularisierung)
// Enthaelt: AdamParams, Adam

package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/7blacky7/tensorwerk/ggml"
)

// AdamParams konfiguriert den Adam-Lauf
type AdamParams struct {
	// Iterations ist die maximale Schrittzahl
	Iterations int
	// Alpha ist die Lernrate
	Alpha float64
	// Beta1/Beta2 sind die Momentfaktoren
	Beta1, Beta2 float64
	// Eps stabilisiert die Division
	Eps float64
	// WeightDecay ist die entkoppelte L2-Daempfung (0 = aus)
	WeightDecay float64
	// GradTolerance stoppt bei kleiner Gradienten-Norm
	GradTolerance float64
	// GraphSize ist die Graph-Kapazitaet (0 = Default)
	GraphSize int
	// NThreads ist die Worker-Anzahl (0 = 1)
	NThreads int
}

// AdamParamsDefault liefert die ueblichen Voreinstellungen
func AdamParamsDefault() AdamParams {
	return AdamParams{
		Iterations:    100,
		Alpha:         0.001,
		Beta1:         0.9,
		Beta2:         0.999,
		Eps:           1e-8,
		GradTolerance: 1e-8,
	}
}

// Adam minimiert den Verlust-Tensor ueber die PARAM-Tensoren des
// Graphen unter loss
func Adam(ctx *ggml.Context, loss *ggml.Tensor, prm AdamParams) (Result, error) {
	p, err := newProblem(ctx, loss, prm.GraphSize, prm.NThreads)
	if err != nil {
		return Result{}, err
	}
	defer p.close()

	nx := p.nx()
	x := make([]float64, nx)
	g := make([]float64, nx)
	m := make([]float64, nx)
	v := make([]float64, nx)
	mh := make([]float64, nx)
	vh := make([]float64, nx)

	p.getX(x)

	var res Result
	for iter := 1; iter <= prm.Iterations; iter++ {
		fx, err := p.evalLossGrad(g)
		if err != nil {
			return res, err
		}
		res.FinalLoss = fx
		res.Iterations = iter
		logProgress("adam", iter, fx)

		if floats.Norm(g, 2) < prm.GradTolerance {
			res.Converged = true
			return res, nil
		}

		// m <- b1*m + (1-b1)*g ; v <- b2*v + (1-b2)*g^2
		floats.Scale(prm.Beta1, m)
		floats.AddScaled(m, 1-prm.Beta1, g)
		floats.Scale(prm.Beta2, v)
		for i := range v {
			v[i] += (1 - prm.Beta2) * g[i] * g[i]
		}

		// Bias-Korrektur und Schritt
		c1 := 1 / (1 - math.Pow(prm.Beta1, float64(iter)))
		c2 := 1 / (1 - math.Pow(prm.Beta2, float64(iter)))
		copy(mh, m)
		floats.Scale(c1, mh)
		copy(vh, v)
		floats.Scale(c2, vh)

		for i := range x {
			step := prm.Alpha * mh[i] / (math.Sqrt(vh[i]) + prm.Eps)
			x[i] -= step + prm.Alpha*prm.WeightDecay*x[i]
		}
		p.setX(x)
	}

	// abschliessende Verlust-Auswertung mit den finalen Parametern
	if fx, err := p.evalLoss(); err == nil {
		res.FinalLoss = fx
	}
	return res, nil
}
