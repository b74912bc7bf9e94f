// MODUL: hashset_test
// ZWECK: Tests fuer die Besuchs-Menge und den Graph-Aufbau
// INPUT: Synthetische Tensoren und Graphen
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing

package ggml

import "testing"

func TestHashSetInsert(t *testing.T) {
	h := newHashSet(8)

	if h.size < 8 {
		t.Errorf("Tabellengroesse = %d, erwartet >= 8", h.size)
	}

	a := &Tensor{}
	b := &Tensor{}

	if got := h.insert(a); got != hashInsertOK {
		t.Errorf("erstes Insert = %v, erwartet OK", got)
	}
	if got := h.insert(a); got != hashInsertAlready {
		t.Errorf("doppeltes Insert = %v, erwartet ALREADY", got)
	}
	if got := h.insert(b); got != hashInsertOK {
		t.Errorf("zweites Insert = %v, erwartet OK", got)
	}
	if !h.contains(a) || !h.contains(b) {
		t.Error("contains sollte beide Schluessel finden")
	}
}

func TestHashSetFull(t *testing.T) {
	h := newHashSet(2) // Primzahl >= 2

	tensors := make([]*Tensor, h.size+1)
	for i := range tensors {
		tensors[i] = &Tensor{}
	}

	for i := 0; i < h.size; i++ {
		if got := h.insert(tensors[i]); got != hashInsertOK {
			t.Fatalf("Insert %d = %v, erwartet OK", i, got)
		}
	}
	if got := h.insert(tensors[h.size]); got != hashInsertFull {
		t.Errorf("Insert in volle Tabelle = %v, erwartet FULL", got)
	}
}

func TestHashSetRemove(t *testing.T) {
	h := newHashSet(16)
	a := &Tensor{}
	b := &Tensor{}

	h.insert(a)
	h.insert(b)
	if !h.remove(a) {
		t.Fatal("remove(a) sollte true liefern")
	}
	if h.contains(a) {
		t.Error("a darf nach remove nicht mehr enthalten sein")
	}
	if !h.contains(b) {
		t.Error("b muss nach remove(a) weiterhin auffindbar sein")
	}
}

func TestNextPrime(t *testing.T) {
	cases := map[int]int{1: 2, 2: 2, 8: 11, 16: 17, 100: 101}
	for in, want := range cases {
		if got := nextPrime(in); got != want {
			t.Errorf("nextPrime(%d) = %d, erwartet %d", in, got, want)
		}
	}
}

func TestBuildForwardExpand(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	a := NewTensor1D(ctx, TypeF32, 4).SetName("a")
	b := NewTensor1D(ctx, TypeF32, 4).SetName("b")
	c := Add(ctx, a, b)
	d := Mul(ctx, c, b)

	g := NewGraph(ctx)
	g.BuildForwardExpand(d)

	if len(g.Leafs) != 2 {
		t.Errorf("Leafs = %d, erwartet 2", len(g.Leafs))
	}
	if len(g.Nodes) != 2 {
		t.Errorf("Nodes = %d, erwartet 2", len(g.Nodes))
	}

	// topologische Ordnung: c vor d
	if g.Nodes[0] != c || g.Nodes[1] != d {
		t.Error("Knoten nicht in topologischer Reihenfolge")
	}

	// erneutes Expand aendert nichts (Besuchs-Menge)
	g.BuildForwardExpand(d)
	if len(g.Nodes) != 2 {
		t.Errorf("Nodes nach zweitem Expand = %d, erwartet 2", len(g.Nodes))
	}
}

func TestBuildForwardParamIsNode(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	w := NewTensor1D(ctx, TypeF32, 4).SetName("w")
	w.SetParam()
	y := Sqr(ctx, w)

	g := NewGraph(ctx)
	g.BuildForwardExpand(y)

	// Parameter zaehlen als Knoten, nicht als Blaetter
	if len(g.Leafs) != 0 {
		t.Errorf("Leafs = %d, erwartet 0", len(g.Leafs))
	}
	if len(g.Nodes) != 2 {
		t.Errorf("Nodes = %d, erwartet 2 (Parameter + Op)", len(g.Nodes))
	}
}
