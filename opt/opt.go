// Package opt - Optimierer-Treiber ueber dem Graph-Kern
//
// Dieses Modul enthaelt die Kopplung der klassischen Optimierer an die
// Engine: es liest und schreibt ausschliesslich Parameter- und
// Gradient-Tensoren zwischen wiederholten Graph-Auswertungen; die
// Vektor-Mathematik der Schrittregeln laeuft in doppelter Praezision
// ueber gonum.
package opt

import (
	"errors"
	"log/slog"

	"github.com/7blacky7/tensorwerk/ggml"
)

// ErrNoParams wird geliefert, wenn der Graph keine Parameter enthaelt
var ErrNoParams = errors.New("opt: graph has no parameters")

// Result beschreibt den Ausgang eines Optimierungslaufs
type Result struct {
	Converged  bool
	Iterations int
	FinalLoss  float32
}

// problem buendelt Vorwaerts-/Rueckwaerts-Graph und Parameterliste
type problem struct {
	ctx  *ggml.Context
	loss *ggml.Tensor

	gf, gb *ggml.Graph
	params []*ggml.Tensor

	tp           *ggml.ThreadPool
	planF, planB *ggml.Plan
}

// newProblem baut beide Graphen und sammelt die Parameter ein
func newProblem(ctx *ggml.Context, loss *ggml.Tensor, graphSize, nThreads int) (*problem, error) {
	if graphSize <= 0 {
		graphSize = ggml.DefaultGraphSize
	}

	gf := ggml.NewGraphCustom(ctx, graphSize, true)
	gf.BuildForwardExpand(loss)

	gb := ggml.NewGraphCustom(ctx, graphSize, true)
	gb.BuildForwardExpand(loss)
	ggml.BuildBackwardExpand(ctx, gf, gb, false)

	var params []*ggml.Tensor
	for _, node := range gf.Nodes {
		if node.Flags&ggml.TensorFlagParam != 0 {
			params = append(params, node)
		}
	}
	if len(params) == 0 {
		return nil, ErrNoParams
	}

	if nThreads <= 0 {
		nThreads = 1
	}
	tp := ggml.NewThreadPool(ggml.ThreadPoolParamsDefault(nThreads))

	return &problem{
		ctx:    ctx,
		loss:   loss,
		gf:     gf,
		gb:     gb,
		params: params,
		tp:     tp,
		planF:  ggml.GraphPlan(gf, nThreads, tp),
		planB:  ggml.GraphPlan(gb, nThreads, tp),
	}, nil
}

// close gibt den Pool des Problems frei
func (p *problem) close() {
	p.tp.Free()
}

// nx zaehlt die Parameter-Elemente insgesamt
func (p *problem) nx() int {
	n := 0
	for _, t := range p.params {
		n += int(t.NElements())
	}
	return n
}

// evalLoss rechnet nur den Vorwaertsgraphen
func (p *problem) evalLoss() (float32, error) {
	if st := ggml.GraphCompute(p.gf, p.planF); st != ggml.StatusSuccess {
		return 0, errors.New(st.String())
	}
	return p.loss.Floats()[0], nil
}

// evalLossGrad rechnet Vorwaerts- und Rueckwaertsgraph und fuellt grad
func (p *problem) evalLossGrad(grad []float64) (float32, error) {
	p.gb.Reset()
	p.loss.Grad.Floats()[0] = 1

	if st := ggml.GraphCompute(p.gb, p.planB); st != ggml.StatusSuccess {
		return 0, errors.New(st.String())
	}

	i := 0
	for _, t := range p.params {
		for _, g := range t.Grad.Floats() {
			grad[i] = float64(g)
			i++
		}
	}
	return p.loss.Floats()[0], nil
}

// getX sammelt die Parameter in einen flachen Vektor
func (p *problem) getX(x []float64) {
	i := 0
	for _, t := range p.params {
		for _, v := range t.Floats() {
			x[i] = float64(v)
			i++
		}
	}
}

// setX schreibt den flachen Vektor in die Parameter zurueck
func (p *problem) setX(x []float64) {
	i := 0
	for _, t := range p.params {
		fs := t.Floats()
		for j := range fs {
			fs[j] = float32(x[i])
			i++
		}
	}
}

func logProgress(method string, iter int, loss float32) {
	slog.Debug("opt step", "method", method, "iter", iter, "loss", loss)
}
