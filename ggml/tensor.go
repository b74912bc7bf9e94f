// tensor.go - Tensor-Deskriptor und Konstruktoren
// Enthaelt: Tensor struct, Flags, NewTensor*, Shape-/Stride-Invarianten,
// Element-Zugriff fuer Tests und Kernels

package ggml

import "fmt"

const (
	// MaxDims ist die maximale Dimensionalitaet
	MaxDims = 4
	// MaxSrc ist die maximale Anzahl Quell-Verweise eines Knotens
	MaxSrc = 10
	// MaxName ist die maximale Namenslaenge in Bytes
	MaxName = 64
)

// TensorFlag markiert die Rolle eines Tensors im Graphen
type TensorFlag int32

const (
	TensorFlagInput TensorFlag = 1 << iota
	TensorFlagOutput
	TensorFlagParam
	TensorFlagLoss
)

// Tensor ist der N-dimensionale Array-Deskriptor. Ne zaehlt Elemente je
// Dimension (Ne[0] variiert am schnellsten), Nb sind Byte-Strides.
type Tensor struct {
	Type Type
	Op   Op

	Ne [MaxDims]int64
	Nb [MaxDims]int64

	// opParams traegt die typisierte Parameter-Variante des Operators
	opParams any

	Flags TensorFlag

	// Grad ist der Gradient-Tensor, gesetzt durch den Backward-Builder
	Grad *Tensor

	// Src sind nicht-besitzende Verweise auf Eingaben im selben Kontext
	Src [MaxSrc]*Tensor

	// ViewSrc/ViewOffs machen den Tensor zur Sicht auf einen anderen
	ViewSrc  *Tensor
	ViewOffs int64

	name string
	data []byte
}

// newTensorRaw ist der gemeinsame Konstruktor-Kern. Bei viewSrc != nil
// teilt der Tensor dessen Payload ab viewOffs.
func newTensorRaw(ctx *Context, typ Type, ne []int64, viewSrc *Tensor, viewOffs int64) *Tensor {
	Assertf(len(ne) >= 1 && len(ne) <= MaxDims, "invalid rank %d", len(ne))

	base := viewSrc
	if base != nil && base.ViewSrc != nil {
		viewOffs += base.ViewOffs
		base = base.ViewSrc
	}

	t := &Tensor{
		Type:     typ,
		Op:       OpNone,
		Ne:       [MaxDims]int64{1, 1, 1, 1},
		ViewSrc:  base,
		ViewOffs: viewOffs,
	}
	for i, n := range ne {
		Assertf(n > 0, "dimension %d must be positive, got %d", i, n)
		t.Ne[i] = n
	}

	// Stride-Invarianten fuer frisch erzeugte Tensoren
	tr := typ.Traits()
	Assertf(t.Ne[0]%int64(tr.BlockSize) == 0, "%s: row length %d not a multiple of block size %d", tr.Name, t.Ne[0], tr.BlockSize)
	t.Nb[0] = int64(tr.TypeSize)
	t.Nb[1] = t.Nb[0] * t.Ne[0] / int64(tr.BlockSize)
	for i := 2; i < MaxDims; i++ {
		t.Nb[i] = t.Nb[i-1] * t.Ne[i-1]
	}

	switch {
	case base != nil:
		// Eine Sicht besitzt keine Payload-Bytes; sie teilt den Rest
		// der Basis ab viewOffs, die Form begrenzen die Strides
		if base.data != nil {
			Assertf(viewOffs <= int64(len(base.data)), "view offset %d exceeds base of %d bytes", viewOffs, len(base.data))
			t.data = base.data[viewOffs:]
		}
	case ctx.noAlloc:
		// nur Deskriptor
	case ctx.scratch.Data != nil:
		t.data = ctx.allocScratch(t.nbytesFor())
		if t.data == nil {
			return nil
		}
	default:
		t.data = ctx.alloc(t.nbytesFor())
		if t.data == nil {
			return nil
		}
	}

	ctx.register(t)
	return t
}

// NewTensor erstellt einen Tensor beliebigen Rangs
func NewTensor(ctx *Context, typ Type, ne ...int64) *Tensor {
	return newTensorRaw(ctx, typ, ne, nil, 0)
}

// NewTensor1D erstellt einen Vektor
func NewTensor1D(ctx *Context, typ Type, ne0 int64) *Tensor {
	return NewTensor(ctx, typ, ne0)
}

// NewTensor2D erstellt eine Matrix
func NewTensor2D(ctx *Context, typ Type, ne0, ne1 int64) *Tensor {
	return NewTensor(ctx, typ, ne0, ne1)
}

// NewTensor3D erstellt einen Rang-3-Tensor
func NewTensor3D(ctx *Context, typ Type, ne0, ne1, ne2 int64) *Tensor {
	return NewTensor(ctx, typ, ne0, ne1, ne2)
}

// NewTensor4D erstellt einen Rang-4-Tensor
func NewTensor4D(ctx *Context, typ Type, ne0, ne1, ne2, ne3 int64) *Tensor {
	return NewTensor(ctx, typ, ne0, ne1, ne2, ne3)
}

// NewF32 erstellt einen 1-Element-Tensor mit Wert v
func NewF32(ctx *Context, v float32) *Tensor {
	t := NewTensor1D(ctx, TypeF32, 1)
	t.SetF32At(v, 0)
	return t
}

// NewI32 erstellt einen 1-Element-Tensor mit Wert v
func NewI32(ctx *Context, v int32) *Tensor {
	t := NewTensor1D(ctx, TypeI32, 1)
	bytesToI32(t.data, 1)[0] = v
	return t
}

// dup erstellt einen Tensor mit gleicher Form und gleichem Typ
func dupTensor(ctx *Context, t *Tensor) *Tensor {
	return NewTensor(ctx, t.Type, t.Ne[0], t.Ne[1], t.Ne[2], t.Ne[3])
}

// nbytesFor ist die Payload-Groesse bei Standard-Strides
func (t *Tensor) nbytesFor() int64 {
	return RowSize(t.Type, t.Ne[0]) * t.Ne[1] * t.Ne[2] * t.Ne[3]
}

// NElements zaehlt die Elemente
func (t *Tensor) NElements() int64 {
	return t.Ne[0] * t.Ne[1] * t.Ne[2] * t.Ne[3]
}

// NRows zaehlt die Zeilen (alle Dimensionen ausser der schnellsten)
func (t *Tensor) NRows() int64 {
	return t.Ne[1] * t.Ne[2] * t.Ne[3]
}

// NBytes ist die belegte Payload-Groesse inklusive Stride-Luecken
func (t *Tensor) NBytes() int64 {
	blck := int64(t.Type.BlockSize())
	if blck == 1 {
		n := int64(t.Type.TypeSize())
		for i := 0; i < MaxDims; i++ {
			n += (t.Ne[i] - 1) * t.Nb[i]
		}
		return n
	}

	n := t.Ne[0] * t.Nb[0] / blck
	for i := 1; i < MaxDims; i++ {
		n += (t.Ne[i] - 1) * t.Nb[i]
	}
	return n
}

// RowSize ist die Byte-Laenge einer Zeile
func (t *Tensor) RowSize() int64 {
	return RowSize(t.Type, t.Ne[0])
}

// NDims ist der effektive Rang (fuehrende 1er-Dimensionen gekuerzt)
func (t *Tensor) NDims() int {
	for i := MaxDims - 1; i >= 1; i-- {
		if t.Ne[i] > 1 {
			return i + 1
		}
	}
	return 1
}

// IsContiguous meldet dicht gepackte Standard-Strides
func (t *Tensor) IsContiguous() bool {
	tr := t.Type.Traits()
	if t.Nb[0] != int64(tr.TypeSize) {
		return false
	}
	if t.Nb[1] != t.Nb[0]*t.Ne[0]/int64(tr.BlockSize) {
		return false
	}
	for i := 2; i < MaxDims; i++ {
		if t.Nb[i] != t.Nb[i-1]*t.Ne[i-1] {
			return false
		}
	}
	return true
}

// IsPadded1D meldet Standard-Strides bis auf Zeilen-Padding
func (t *Tensor) IsPadded1D() bool {
	return t.Nb[0] == int64(t.Type.TypeSize()) &&
		t.Nb[2] == t.Nb[1]*t.Ne[1] &&
		t.Nb[3] == t.Nb[2]*t.Ne[2]
}

// IsTransposed meldet vertauschte erste Achsen
func (t *Tensor) IsTransposed() bool {
	return t.Nb[0] > t.Nb[1]
}

// IsPermuted meldet eine nicht-kanonische Achsreihenfolge
func (t *Tensor) IsPermuted() bool {
	return t.Nb[0] > t.Nb[1] || t.Nb[1] > t.Nb[2] || t.Nb[2] > t.Nb[3]
}

// IsScalar meldet genau ein Element
func (t *Tensor) IsScalar() bool {
	return t.NElements() == 1
}

// IsVector meldet Rang 1
func (t *Tensor) IsVector() bool {
	return t.Ne[1] == 1 && t.Ne[2] == 1 && t.Ne[3] == 1
}

// IsMatrix meldet Rang 2
func (t *Tensor) IsMatrix() bool {
	return t.Ne[2] == 1 && t.Ne[3] == 1
}

// IsEmpty meldet, ob keine Payload angebunden ist
func (t *Tensor) IsEmpty() bool {
	return t.data == nil
}

// SameShape vergleicht alle Dimensionen
func (t *Tensor) SameShape(o *Tensor) bool {
	return t.Ne == o.Ne
}

// CanRepeat meldet, ob t per Broadcast auf die Form von o wiederholbar ist
func (t *Tensor) CanRepeat(o *Tensor) bool {
	for i := 0; i < MaxDims; i++ {
		if o.Ne[i]%t.Ne[i] != 0 {
			return false
		}
	}
	return true
}

// Data gibt die Payload-Bytes zurueck
func (t *Tensor) Data() []byte {
	return t.data
}

// Floats gibt die Payload einer zusammenhaengenden F32-Sicht zurueck
func (t *Tensor) Floats() []float32 {
	Assert(t.Type == TypeF32, "Floats requires an f32 tensor")
	Assert(t.IsContiguous(), "Floats requires a contiguous tensor")
	return bytesToF32(t.data, int(t.NElements()))
}

// Ints gibt die Payload einer zusammenhaengenden I32-Sicht zurueck
func (t *Tensor) Ints() []int32 {
	Assert(t.Type == TypeI32, "Ints requires an i32 tensor")
	Assert(t.IsContiguous(), "Ints requires a contiguous tensor")
	return bytesToI32(t.data, int(t.NElements()))
}

// SetFloats befuellt einen zusammenhaengenden F32-Tensor
func (t *Tensor) SetFloats(vs ...float32) *Tensor {
	dst := t.Floats()
	Assertf(len(vs) == len(dst), "value count %d does not match %d elements", len(vs), len(dst))
	copy(dst, vs)
	return t
}

// SetInts befuellt einen zusammenhaengenden I32-Tensor
func (t *Tensor) SetInts(vs ...int32) *Tensor {
	dst := t.Ints()
	Assertf(len(vs) == len(dst), "value count %d does not match %d elements", len(vs), len(dst))
	copy(dst, vs)
	return t
}

// F32At liest das F32-Element an den gegebenen Indizes (i0 schnellste)
func (t *Tensor) F32At(idx ...int64) float32 {
	Assert(t.Type == TypeF32, "F32At requires an f32 tensor")
	return bytesToF32(t.data[t.byteOffset(idx...):], 1)[0]
}

// SetF32At schreibt das F32-Element an den gegebenen Indizes
func (t *Tensor) SetF32At(v float32, idx ...int64) {
	Assert(t.Type == TypeF32, "SetF32At requires an f32 tensor")
	bytesToF32(t.data[t.byteOffset(idx...):], 1)[0] = v
}

// I32At liest das I32-Element an den gegebenen Indizes
func (t *Tensor) I32At(idx ...int64) int32 {
	Assert(t.Type == TypeI32, "I32At requires an i32 tensor")
	return bytesToI32(t.data[t.byteOffset(idx...):], 1)[0]
}

// byteOffset berechnet den Byte-Versatz der Indizes ueber die Strides
func (t *Tensor) byteOffset(idx ...int64) int64 {
	var off int64
	for i, ix := range idx {
		Assertf(ix >= 0 && ix < t.Ne[i], "index %d out of range [0,%d)", ix, t.Ne[i])
		off += ix * t.Nb[i]
	}
	return off
}

// Name gibt den Tensor-Namen zurueck
func (t *Tensor) Name() string {
	return t.name
}

// SetName setzt den Namen (auf MaxName Bytes gekappt)
func (t *Tensor) SetName(name string) *Tensor {
	if len(name) > MaxName {
		name = name[:MaxName]
	}
	t.name = name
	return t
}

// FormatName setzt den Namen per Formatstring
func (t *Tensor) FormatName(format string, args ...any) *Tensor {
	return t.SetName(fmt.Sprintf(format, args...))
}

// SetParam markiert den Tensor als trainierbaren Parameter
func (t *Tensor) SetParam() {
	Assert(t.Op == OpNone, "only leaf tensors can be parameters")
	t.Flags |= TensorFlagParam
}

// SetInput markiert den Tensor als Graph-Eingabe
func (t *Tensor) SetInput() {
	t.Flags |= TensorFlagInput
}

// SetOutput markiert den Tensor als Graph-Ausgabe
func (t *Tensor) SetOutput() {
	t.Flags |= TensorFlagOutput
}

// SetLoss markiert den Tensor als Verlustwert
func (t *Tensor) SetLoss() {
	t.Flags |= TensorFlagLoss
}

// String beschreibt den Tensor kompakt
func (t *Tensor) String() string {
	return fmt.Sprintf("%s [%d %d %d %d] %s %q", t.Type, t.Ne[0], t.Ne[1], t.Ne[2], t.Ne[3], t.Op, t.name)
}
