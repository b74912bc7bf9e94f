// graph.go - Berechnungsgraph mit topologischer Erfassung
// Enthaelt: Graph, NewGraph(Custom), BuildForwardExpand, Reset,
// Blatt-/Knoten-Klassifikation, EvalOrder

package ggml

import "log/slog"

// DefaultGraphSize ist die Standard-Kapazitaet eines Graphen
const DefaultGraphSize = 2048

// EvalOrder bestimmt die Besuchsreihenfolge der Quellverweise
type EvalOrder int

const (
	EvalOrderLeftToRight EvalOrder = iota
	EvalOrderRightToLeft
)

// Graph haelt Blaetter und Knoten in topologischer Vorwaerts-Reihenfolge
type Graph struct {
	size int

	Nodes []*Tensor
	Grads []*Tensor
	Leafs []*Tensor

	visited *hashSet

	Order EvalOrder

	withGrads bool
}

// NewGraph erstellt einen Graphen mit Standard-Kapazitaet
func NewGraph(ctx *Context) *Graph {
	return NewGraphCustom(ctx, DefaultGraphSize, false)
}

// NewGraphCustom erstellt einen Graphen mit fester Kapazitaet; grads
// reserviert das parallele Gradienten-Feld
func NewGraphCustom(_ *Context, size int, grads bool) *Graph {
	Assertf(size > 0, "graph size must be positive")
	g := &Graph{
		size:      size,
		Nodes:     make([]*Tensor, 0, size),
		Leafs:     make([]*Tensor, 0, size),
		visited:   newHashSet(2 * size),
		withGrads: grads,
	}
	if grads {
		g.Grads = make([]*Tensor, 0, size)
	}
	return g
}

// Size ist die Kapazitaet des Graphen
func (g *Graph) Size() int {
	return g.size
}

// NNodes zaehlt die Operator-Knoten
func (g *Graph) NNodes() int {
	return len(g.Nodes)
}

// Node gibt Knoten i zurueck
func (g *Graph) Node(i int) *Tensor {
	return g.Nodes[i]
}

// BuildForwardExpand erfasst den Teilgraphen unter tensor per
// Tiefensuche und haengt neue Knoten in topologischer Ordnung an
func (g *Graph) BuildForwardExpand(tensor *Tensor) {
	n0 := len(g.Nodes)
	g.visitParents(tensor)
	slog.Debug("forward expand", "visited", len(g.Nodes)-n0, "nodes", len(g.Nodes), "leafs", len(g.Leafs))
}

// visitParents besucht jeden Tensor genau einmal (Hash-Set) und fuegt
// ihn nach seinen Quellen ein
func (g *Graph) visitParents(node *Tensor) {
	switch g.visited.insert(node) {
	case hashInsertAlready:
		return
	case hashInsertFull:
		Assertf(false, "graph visit set full (capacity %d)", g.size)
	}

	for i := 0; i < MaxSrc; i++ {
		// Besuchsrichtung gemaess EvalOrder
		k := i
		if g.Order == EvalOrderRightToLeft {
			k = MaxSrc - 1 - i
		}
		if src := node.Src[k]; src != nil {
			g.visitParents(src)
		}
	}

	if node.Op == OpNone && node.Flags&TensorFlagParam == 0 {
		// Konstante oder Eingabe ohne Operator
		Assertf(len(g.Leafs) < g.size, "graph leaf list full (capacity %d)", g.size)
		if node.Grad == nil && node.name == "" {
			node.FormatName("leaf_%d", len(g.Leafs))
		}
		g.Leafs = append(g.Leafs, node)
		return
	}

	Assertf(len(g.Nodes) < g.size, "graph node list full (capacity %d)", g.size)
	if node.name == "" {
		node.FormatName("node_%d", len(g.Nodes))
	}
	g.Nodes = append(g.Nodes, node)
	if g.withGrads {
		g.Grads = append(g.Grads, node.Grad)
	}
}

// Reset setzt alle Gradienten-Payloads auf null
func (g *Graph) Reset() {
	for _, grad := range g.Grads {
		if grad != nil && grad.data != nil {
			clear(grad.data)
		}
	}
}

// GetTensor sucht einen Tensor des Graphen ueber seinen Namen
func (g *Graph) GetTensor(name string) *Tensor {
	for _, t := range g.Leafs {
		if t.name == name {
			return t
		}
	}
	for _, t := range g.Nodes {
		if t.name == name {
			return t
		}
	}
	return nil
}
