// planner.go - Ausfuehrungsplanung fuer eine feste Thread-Anzahl
// Enthaelt: Plan, GraphPlan, opTaskCount, Work-Buffer-Schaetzung

package ggml

import "github.com/7blacky7/tensorwerk/logutil"

// Plan beschreibt eine geplante Graph-Auswertung
type Plan struct {
	// NThreads ist die gewuenschte Worker-Anzahl
	NThreads int
	// WorkSize ist die benoetigte Scratch-Groesse in Bytes
	WorkSize int64
	// WorkData wird zur Rechenzeit gefuellt (Kontext oder Nutzerpuffer)
	WorkData []byte
	// ThreadPool fuehrt den Plan aus; nil erzeugt einen Wegwerf-Pool
	ThreadPool *ThreadPool

	// AbortCallback wird von Worker 0 zwischen Knoten abgefragt;
	// true stoppt die Auswertung kooperativ
	AbortCallback func(data any) bool
	AbortData     any
}

// opTaskCount liefert die Task-Anzahl eines Knotens. Reduktionen,
// Diagonal-Operatoren und Pooling bleiben einfaedig.
func opTaskCount(node *Tensor, nThreads int) int {
	switch node.Op {
	case OpNone, OpView, OpReshape, OpPermute, OpTranspose:
		return 1
	case OpSum, OpSumRows, OpMean, OpArgmax,
		OpDiag, OpDiagMaskInf, OpDiagMaskZero,
		OpPool1D, OpPool2D, OpPool2DBack,
		OpGetRowsBack, OpArange:
		return 1
	case OpSSMConv, OpSSMScan, OpRWKVWKV6:
		return nThreads
	default:
		return nThreads
	}
}

// nodeWorkSize schaetzt den Scratch-Bedarf eines Knotens in Bytes
func nodeWorkSize(node *Tensor, nThreads int) int64 {
	n64 := int64(nThreads)

	switch node.Op {
	case OpMulMat:
		src1 := node.Src[1]
		vdt := node.Src[0].Type.Traits().VecDotType
		if src1.Type != vdt {
			// Quantisierungs-Vorlauf materialisiert src1 im Partnertyp
			return RowSize(vdt, src1.Ne[0]) * src1.NRows()
		}
		return 0

	case OpMulMatID:
		src1 := node.Src[1]
		ids := node.Src[2]
		vdt := node.Src[0].Type.Traits().VecDotType
		var size int64
		if src1.Type != vdt {
			size += RowSize(vdt, src1.Ne[0]) * src1.NRows()
		}
		// Reserve fuer eine (Experte, Zeile)-Zuordnung plus Zaehler je
		// Experte; computeMulMatID nutzt davon nur den Vorlauf-Bereich
		nAs := node.Src[0].Ne[2]
		size += pad((nAs+1)*8+ids.NElements()*16, memAlign)
		return size

	case OpFlashAttnExt:
		// 3 Zeilen F32-Akkumulator je Thread
		d := node.Src[0].Ne[0]
		if dv := node.Src[2].Ne[0]; dv > d {
			d = dv
		}
		return n64 * 3 * d * 4

	case OpSoftMax, OpSoftMaxBack:
		return n64 * node.Ne[0] * 4

	case OpCountEqual:
		return n64 * 8

	case OpCrossEntropyLoss, OpCrossEntropyLossBack:
		return n64 * (node.Src[0].Ne[0]*4 + 16)

	case OpConvTranspose1D:
		a, b := node.Src[0], node.Src[1]
		return (a.NElements() + b.NElements()) * 4

	case OpConvTranspose2D:
		a, b := node.Src[0], node.Src[1]
		return (a.NElements() + b.NElements()) * 4

	case OpDup, OpCpy, OpCont:
		if node.Type.IsQuantized() {
			// Zeilenpuffer fuer die Kodierung
			return n64 * node.Ne[0] * 4
		}
		return 0

	case OpOutProd:
		if node.Src[0].Type.IsQuantized() {
			return n64 * node.Src[0].Ne[0] * 4
		}
		return 0

	case OpGetRows:
		if node.Src[0].Type.IsQuantized() {
			return 0 // Dekodierung erfolgt zeilenweise direkt ins Ziel
		}
		return 0
	}

	return 0
}

// GraphPlan bestimmt Task-Anzahlen und Work-Buffer-Groesse fuer die
// Auswertung von graph mit nThreads Workern
func GraphPlan(graph *Graph, nThreads int, tp *ThreadPool) *Plan {
	if nThreads <= 0 {
		nThreads = defaultNThreads()
	}

	var workSize int64
	maxTasks := 1
	for _, node := range graph.Nodes {
		tasks := opTaskCount(node, nThreads)
		if tasks > maxTasks {
			maxTasks = tasks
		}
		if s := nodeWorkSize(node, nThreads); s > workSize {
			workSize = s
		}
	}
	if workSize > 0 {
		// Cache-Line-Polster zwischen den Thread-Bereichen
		workSize += 64 * int64(nThreads)
	}

	logutil.Trace("graph plan", "nodes", len(graph.Nodes), "threads", nThreads, "work_size", workSize)

	return &Plan{
		NThreads:   nThreads,
		WorkSize:   workSize,
		ThreadPool: tp,
	}
}
