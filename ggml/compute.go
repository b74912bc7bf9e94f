// compute.go - Graph-Auswertung auf dem Threadpool
// Enthaelt: GraphCompute, GraphComputeWith, computeThread,
// computeParams und die Knoten-Schleife mit Barriere je Knoten

package ggml

import (
	"runtime"

	"github.com/7blacky7/tensorwerk/logutil"
)

// defaultNThreads ist die Standard-Worker-Anzahl
func defaultNThreads() int {
	n := runtime.NumCPU()
	if n > MaxThreads {
		n = MaxThreads
	}
	return n
}

// computeParams sind die Kernel-Parameter eines Workers
type computeParams struct {
	ith, nth int
	wsize    int64
	wdata    []byte
	tp       *ThreadPool
}

// threadLocal liefert den Scratch-Bereich von Worker ith bei
// gleichmaessiger Aufteilung mit Cache-Line-Polster
func (p *computeParams) threadLocal(bytesPerThread int64) []byte {
	stride := pad(bytesPerThread, 64)
	off := int64(p.ith) * stride
	Assertf(off+bytesPerThread <= p.wsize, "work buffer overrun: %d+%d > %d", off, bytesPerThread, p.wsize)
	return p.wdata[off : off+bytesPerThread]
}

// GraphCompute wertet den Graphen gemaess Plan aus
func GraphCompute(graph *Graph, plan *Plan) Status {
	Assert(plan != nil, "compute requires a plan")
	Assert(plan.NThreads > 0, "compute requires a positive thread count")

	if plan.WorkSize > 0 && plan.WorkData == nil {
		plan.WorkData = make([]byte, plan.WorkSize)
	}
	if plan.WorkSize > 0 && int64(len(plan.WorkData)) < plan.WorkSize {
		return StatusAllocFailed
	}

	tp := plan.ThreadPool
	if tp == nil {
		// Wegwerf-Pool fuer diesen einen Aufruf
		tp = NewThreadPool(ThreadPoolParamsDefault(plan.NThreads))
		defer tp.Free()
	}

	nThreads := plan.NThreads
	if int32(nThreads) > tp.nThreadsMax {
		nThreads = int(tp.nThreadsMax)
	}

	tp.kickoff(graph, plan, nThreads)

	// der Hauptthread uebernimmt Worker 0
	tp.computeThread(0)

	if tp.abort.Load() {
		return StatusAborted
	}
	return StatusSuccess
}

// GraphComputeWith plant und rechnet in einem Zug; der Work-Buffer
// wird im Kontext reserviert
func GraphComputeWith(ctx *Context, graph *Graph, nThreads int) Status {
	plan := GraphPlan(graph, nThreads, nil)
	if plan.WorkSize > 0 {
		plan.WorkData = ctx.alloc(plan.WorkSize)
		if plan.WorkData == nil {
			return StatusAllocFailed
		}
	}
	return GraphCompute(graph, plan)
}

// computeThread ist die Knoten-Schleife eines Workers. Nach jedem
// Knoten liegt eine Barriere; Worker 0 fragt davor den Abort-Callback
// ab, und nach der Barriere verlassen alle Worker gemeinsam die Schleife.
func (tp *ThreadPool) computeThread(ith int) {
	graph, plan := tp.graph, tp.plan
	nth := int(tp.nThreadsCur.Load())

	params := computeParams{
		ith:   ith,
		nth:   nth,
		wsize: int64(len(plan.WorkData)),
		wdata: plan.WorkData,
		tp:    tp,
	}

	for i := 0; i < len(graph.Nodes); i++ {
		node := graph.Nodes[i]

		tasks := opTaskCount(node, nth)
		if ith < tasks {
			p := params
			p.nth = tasks
			computeForward(&p, node)
		}

		if ith == 0 && plan.AbortCallback != nil && plan.AbortCallback(plan.AbortData) {
			tp.abort.Store(true)
			logutil.Trace("graph compute aborted", "node", i, "name", node.name)
		}

		tp.bar.sync(int32(nth))

		// erst nach der Barriere pruefen, damit jeder Worker sie erreicht
		if tp.abort.Load() {
			break
		}
	}
}
