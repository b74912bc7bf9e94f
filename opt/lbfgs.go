// lbfgs.go - L-BFGS mit Backtracking-Liniensuche
// Enthaelt: LBFGSParams, LBFGS, Zwei-Schleifen-Rekursion

package opt

import (
	"errors"

	"gonum.org/v1/gonum/floats"

	"github.com/7blacky7/tensorwerk/ggml"
)

// ErrLineSearchFailed meldet eine gescheiterte Liniensuche
var ErrLineSearchFailed = errors.New("opt: line search failed")

// LBFGSParams konfiguriert den L-BFGS-Lauf
type LBFGSParams struct {
	// Iterations ist die maximale Schrittzahl
	Iterations int
	// Memory ist die Historientiefe m
	Memory int
	// GradTolerance stoppt bei kleiner relativer Gradienten-Norm
	GradTolerance float64
	// MaxLineSearch begrenzt die Backtracking-Schritte
	MaxLineSearch int
	// Armijo ist die Abstiegs-Konstante der Liniensuche
	Armijo float64
	// GraphSize ist die Graph-Kapazitaet (0 = Default)
	GraphSize int
	// NThreads ist die Worker-Anzahl (0 = 1)
	NThreads int
}

// LBFGSParamsDefault liefert die ueblichen Voreinstellungen
func LBFGSParamsDefault() LBFGSParams {
	return LBFGSParams{
		Iterations:    100,
		Memory:        6,
		GradTolerance: 1e-5,
		MaxLineSearch: 20,
		Armijo:        1e-4,
	}
}

// LBFGS minimiert den Verlust-Tensor ueber die PARAM-Tensoren des
// Graphen unter loss
func LBFGS(ctx *ggml.Context, loss *ggml.Tensor, prm LBFGSParams) (Result, error) {
	p, err := newProblem(ctx, loss, prm.GraphSize, prm.NThreads)
	if err != nil {
		return Result{}, err
	}
	defer p.close()

	m := prm.Memory
	nx := p.nx()

	x := make([]float64, nx)
	xp := make([]float64, nx)
	g := make([]float64, nx)
	gp := make([]float64, nx)
	d := make([]float64, nx)

	sHist := make([][]float64, m)
	yHist := make([][]float64, m)
	rho := make([]float64, m)
	alpha := make([]float64, m)
	for i := 0; i < m; i++ {
		sHist[i] = make([]float64, nx)
		yHist[i] = make([]float64, nx)
	}

	p.getX(x)
	fx, err := p.evalLossGrad(g)
	if err != nil {
		return Result{}, err
	}

	var res Result
	res.FinalLoss = fx

	for iter := 1; iter <= prm.Iterations; iter++ {
		xnorm := floats.Norm(x, 2)
		gnorm := floats.Norm(g, 2)
		if xnorm < 1 {
			xnorm = 1
		}
		if gnorm/xnorm < prm.GradTolerance {
			res.Converged = true
			return res, nil
		}

		// Suchrichtung per Zwei-Schleifen-Rekursion
		copy(d, g)
		floats.Scale(-1, d)

		bound := iter - 1
		if bound > m {
			bound = m
		}
		for i := 0; i < bound; i++ {
			k := (iter - 1 - i - 1 + m) % m
			alpha[k] = rho[k] * floats.Dot(sHist[k], d)
			floats.AddScaled(d, -alpha[k], yHist[k])
		}
		if bound > 0 {
			k := (iter - 2 + m) % m
			ys := floats.Dot(yHist[k], sHist[k])
			yy := floats.Dot(yHist[k], yHist[k])
			if yy > 0 {
				floats.Scale(ys/yy, d)
			}
		}
		for i := bound - 1; i >= 0; i-- {
			k := (iter - 1 - i - 1 + m) % m
			beta := rho[k] * floats.Dot(yHist[k], d)
			floats.AddScaled(d, alpha[k]-beta, sHist[k])
		}

		dg := floats.Dot(d, g)
		if dg >= 0 {
			// keine Abstiegsrichtung: auf steilsten Abstieg zurueckfallen
			copy(d, g)
			floats.Scale(-1, d)
			dg = floats.Dot(d, g)
		}

		// Backtracking-Liniensuche (Armijo)
		copy(xp, x)
		copy(gp, g)
		step := 1.0
		if iter == 1 {
			n := floats.Norm(d, 2)
			if n > 0 {
				step = 1 / n
			}
		}

		ok := false
		for ls := 0; ls < prm.MaxLineSearch; ls++ {
			copy(x, xp)
			floats.AddScaled(x, step, d)
			p.setX(x)

			fxNew, err := p.evalLossGrad(g)
			if err != nil {
				return res, err
			}
			if float64(fxNew) <= float64(fx)+prm.Armijo*step*dg {
				fx = fxNew
				ok = true
				break
			}
			step *= 0.5
		}
		if !ok {
			p.setX(xp)
			copy(x, xp)
			copy(g, gp)
			return res, ErrLineSearchFailed
		}

		res.FinalLoss = fx
		res.Iterations = iter
		logProgress("lbfgs", iter, fx)

		// Historie fortschreiben
		k := (iter - 1) % m
		for i := range x {
			sHist[k][i] = x[i] - xp[i]
			yHist[k][i] = g[i] - gp[i]
		}
		ys := floats.Dot(yHist[k], sHist[k])
		if ys != 0 {
			rho[k] = 1 / ys
		} else {
			rho[k] = 0
		}
	}

	return res, nil
}
