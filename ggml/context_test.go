// MODUL: context_test
// ZWECK: Tests fuer Arena-Allokation, Scratch und Tensor-Iteration
// INPUT: Synthetische Kontexte
// OUTPUT: Testresultate
// NEBENEFFEKTE: keine
// ABHAENGIGKEITEN: testing

package ggml

import "testing"

func TestContextAlloc(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 20})
	defer ctx.Free()

	a := NewTensor2D(ctx, TypeF32, 4, 4)
	if a == nil {
		t.Fatal("Tensor-Allokation fehlgeschlagen")
	}
	if got := a.NElements(); got != 16 {
		t.Errorf("NElements = %d, erwartet 16", got)
	}
	if ctx.UsedMem() < 64 {
		t.Errorf("UsedMem = %d, erwartet >= 64", ctx.UsedMem())
	}

	// Ausrichtung der Reservierungen
	if ctx.UsedMem()%16 != 0 {
		t.Errorf("UsedMem = %d nicht 16-Byte-ausgerichtet", ctx.UsedMem())
	}
}

func TestContextPoolExhausted(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 256})
	defer ctx.Free()

	// passt nicht: 1 MiB Payload in 256 Bytes
	if got := NewTensor1D(ctx, TypeF32, 1<<18); got != nil {
		t.Error("Allokation ueber Poolgrenze sollte nil liefern")
	}
}

func TestContextReset(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 16})
	defer ctx.Free()

	NewTensor1D(ctx, TypeF32, 8)
	used := ctx.UsedMem()
	if used == 0 {
		t.Fatal("UsedMem sollte nach Allokation > 0 sein")
	}

	ctx.Reset()
	if ctx.UsedMem() != 0 {
		t.Errorf("UsedMem nach Reset = %d, erwartet 0", ctx.UsedMem())
	}
	if ctx.FirstTensor() != nil {
		t.Error("Objektliste sollte nach Reset leer sein")
	}
}

func TestContextTensorIteration(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 16})
	defer ctx.Free()

	a := NewTensor1D(ctx, TypeF32, 4).SetName("a")
	b := NewTensor1D(ctx, TypeF32, 4).SetName("b")

	if got := ctx.FirstTensor(); got != a {
		t.Errorf("FirstTensor = %v, erwartet a", got)
	}
	if got := ctx.NextTensor(a); got != b {
		t.Errorf("NextTensor(a) = %v, erwartet b", got)
	}
	if got := ctx.NextTensor(b); got != nil {
		t.Errorf("NextTensor(b) = %v, erwartet nil", got)
	}

	if got := ctx.GetTensor("b"); got != b {
		t.Error("GetTensor(b) sollte b liefern")
	}
	if got := ctx.GetTensor("fehlt"); got != nil {
		t.Error("GetTensor auf unbekannten Namen sollte nil liefern")
	}
}

func TestContextScratch(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 16})
	defer ctx.Free()

	scratch := make([]byte, 1<<12)
	prev := ctx.SetScratch(Scratch{Data: scratch, Size: int64(len(scratch))})
	if prev != 0 {
		t.Errorf("vorheriger Scratch-Offset = %d, erwartet 0", prev)
	}

	used := ctx.UsedMem()
	tn := NewTensor1D(ctx, TypeF32, 64)
	if tn == nil {
		t.Fatal("Scratch-Allokation fehlgeschlagen")
	}
	if ctx.UsedMem() != used {
		t.Error("Scratch-Payload darf die Arena nicht belegen")
	}

	ctx.SetScratch(Scratch{})
	tn2 := NewTensor1D(ctx, TypeF32, 64)
	if tn2 == nil || ctx.UsedMem() == used {
		t.Error("nach Scratch-Abwahl muss wieder die Arena belegt werden")
	}
}

func TestTensorViews(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 16})
	defer ctx.Free()

	a := NewTensor2D(ctx, TypeF32, 4, 3)
	for i := range a.Floats() {
		a.Floats()[i] = float32(i)
	}

	// Transpose vertauscht Form und Strides
	at := Transpose(ctx, a)
	if at.Ne[0] != 3 || at.Ne[1] != 4 {
		t.Errorf("Transpose-Form = [%d %d]", at.Ne[0], at.Ne[1])
	}
	if !at.IsTransposed() {
		t.Error("IsTransposed sollte true sein")
	}
	if got := elemF32(at, 2, 1, 0, 0); got != a.F32At(1, 2) {
		t.Errorf("Transpose-Element = %f, erwartet %f", got, a.F32At(1, 2))
	}

	// View teilt die Payload
	v := View1D(ctx, a, 4, 4*4)
	v.Floats()[0] = 99
	if a.F32At(0, 1) != 99 {
		t.Error("View muss die Payload der Basis teilen")
	}

	// Reshape erhaelt die Elementfolge
	r := Reshape2D(ctx, a, 6, 2)
	if r.NElements() != 12 || r.ViewSrc != a {
		t.Error("Reshape sollte eine 12-Element-Sicht auf a sein")
	}
}

func TestTensorStrideInvariants(t *testing.T) {
	ctx := NewContext(InitParams{MemSize: 1 << 16})
	defer ctx.Free()

	q := NewTensor2D(ctx, TypeQ4_0, 64, 3)
	if q.Nb[0] != 18 {
		t.Errorf("Nb[0] = %d, erwartet 18 (Blockgroesse)", q.Nb[0])
	}
	if q.Nb[1] != 18*2 {
		t.Errorf("Nb[1] = %d, erwartet 36", q.Nb[1])
	}
	if got := q.NBytes(); got != 18*2*3 {
		t.Errorf("NBytes = %d, erwartet 108", got)
	}
}
