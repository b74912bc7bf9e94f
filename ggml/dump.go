// dump.go - Lesbare Ausgabe von Tensoren und Graphen (Debugging)
// Enthaelt: DumpTensor, DumpGraph

package ggml

import (
	"fmt"
	"strings"
)

// DumpTensor rendert die ersten Elemente eines F32-Tensors
func DumpTensor(t *Tensor, items int64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", t)

	if t.Type != TypeF32 || t.data == nil {
		return sb.String()
	}

	for i3 := int64(0); i3 < t.Ne[3]; i3++ {
		for i2 := int64(0); i2 < t.Ne[2]; i2++ {
			for i1 := int64(0); i1 < t.Ne[1] && i1 < items; i1++ {
				sb.WriteString("  [")
				for i0 := int64(0); i0 < t.Ne[0]; i0++ {
					if i0 > 0 {
						sb.WriteString(", ")
					}
					if i0 >= items {
						sb.WriteString("...")
						break
					}
					fmt.Fprintf(&sb, "%.4f", elemF32(t, i0, i1, i2, i3))
				}
				sb.WriteString("]\n")
			}
			if t.Ne[1] > items {
				sb.WriteString("  ...\n")
			}
		}
	}
	return sb.String()
}

// DumpGraph rendert die Knotenliste mit Formen und Operatoren
func DumpGraph(g *Graph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "graph: %d leafs, %d nodes\n", len(g.Leafs), len(g.Nodes))
	for i, n := range g.Nodes {
		fmt.Fprintf(&sb, "  node %3d: %-16s %-10s [%d %d %d %d] %q\n",
			i, n.Op, n.Type, n.Ne[0], n.Ne[1], n.Ne[2], n.Ne[3], n.name)
	}
	return sb.String()
}
