// context.go - Arena-basierter Kontext-Allokator
// Enthaelt: InitParams, Scratch, Context, NewContext, Free, Reset,
// SetScratch, UsedMem, Tensor-Iteration und Namens-Lookup
//
// Der Kontext besitzt genau einen zusammenhaengenden Puffer. Payloads
// werden am Ende mit 16-Byte-Padding reserviert; Deskriptoren leben auf
// dem Go-Heap und stehen in einer Objektliste. Freigabe erfolgt nur als
// Ganzes (Reset/Free).

package ggml

import (
	"log/slog"

	"github.com/7blacky7/tensorwerk/format"
)

// memAlign ist die Ausrichtung aller Arena-Reservierungen
const memAlign = 16

// pad rundet auf das naechste Vielfache von align auf
func pad(n, align int64) int64 {
	return (n + align - 1) &^ (align - 1)
}

// InitParams konfiguriert einen neuen Kontext
type InitParams struct {
	// MemSize ist die Groesse des Arena-Puffers in Bytes
	MemSize int64
	// MemBuffer ist ein optionaler externer Puffer; nil allokiert intern
	MemBuffer []byte
	// NoAlloc unterdrueckt Payload-Allokationen (nur Deskriptoren)
	NoAlloc bool
}

// Scratch beschreibt eine begrenzte Unter-Arena fuer transiente Payloads
type Scratch struct {
	Offs int64
	Size int64
	Data []byte
}

// Context ist die Arena, die Tensoren und ihre Payloads besitzt
type Context struct {
	buf     []byte
	offs    int64
	noAlloc bool

	scratch Scratch

	tensors []*Tensor
}

// NewContext erstellt einen Kontext ueber einem eigenen oder externen Puffer
func NewContext(params InitParams) *Context {
	buf := params.MemBuffer
	if buf == nil && !params.NoAlloc {
		Assertf(params.MemSize > 0, "context needs a memory size")
		buf = make([]byte, params.MemSize)
	}

	ctx := &Context{
		buf:     buf,
		noAlloc: params.NoAlloc,
	}

	slog.Debug("context created", "size", format.HumanBytes2(uint64(len(buf))), "no_alloc", params.NoAlloc)
	return ctx
}

// Free gibt den Kontext frei. Alle Tensoren des Kontexts sind danach
// ungueltig.
func (c *Context) Free() {
	c.buf = nil
	c.tensors = nil
	c.offs = 0
}

// Reset verwirft alle Objekte, behaelt aber den Puffer
func (c *Context) Reset() {
	c.tensors = c.tensors[:0]
	c.offs = 0
	c.scratch = Scratch{}
}

// UsedMem gibt die belegten Arena-Bytes zurueck
func (c *Context) UsedMem() int64 {
	return c.offs
}

// SetScratch tauscht die Scratch-Unter-Arena und liefert den vorherigen
// Offset der alten zurueck
func (c *Context) SetScratch(scratch Scratch) int64 {
	prev := c.scratch.Offs
	c.scratch = scratch
	return prev
}

// alloc reserviert size Bytes mit Padding am Arena-Ende.
// Bei erschoepftem Pool: nil und Log-Eintrag (der einzige
// Laufzeitfehler dieses Moduls).
func (c *Context) alloc(size int64) []byte {
	if size == 0 {
		return nil
	}

	need := pad(size, memAlign)
	if c.offs+need > int64(len(c.buf)) {
		slog.Error("context pool exhausted",
			"needed", format.HumanBytes2(uint64(need)),
			"available", format.HumanBytes2(uint64(int64(len(c.buf))-c.offs)))
		return nil
	}

	b := c.buf[c.offs : c.offs+size : c.offs+size]
	c.offs += need
	return b
}

// allocScratch reserviert transienten Payload-Speicher in der aktiven
// Scratch-Unter-Arena
func (c *Context) allocScratch(size int64) []byte {
	need := pad(size, memAlign)
	if c.scratch.Offs+need > c.scratch.Size {
		slog.Error("scratch pool exhausted",
			"needed", format.HumanBytes2(uint64(need)),
			"available", format.HumanBytes2(uint64(c.scratch.Size-c.scratch.Offs)))
		return nil
	}

	b := c.scratch.Data[c.scratch.Offs : c.scratch.Offs+size : c.scratch.Offs+size]
	c.scratch.Offs += need
	return b
}

// register haengt einen Tensor an die Objektliste an
func (c *Context) register(t *Tensor) {
	c.tensors = append(c.tensors, t)
}

// FirstTensor gibt den ersten Tensor der Objektliste zurueck
func (c *Context) FirstTensor() *Tensor {
	if len(c.tensors) == 0 {
		return nil
	}
	return c.tensors[0]
}

// NextTensor gibt den Nachfolger von t in der Objektliste zurueck
func (c *Context) NextTensor(t *Tensor) *Tensor {
	for i, cur := range c.tensors {
		if cur == t && i+1 < len(c.tensors) {
			return c.tensors[i+1]
		}
	}
	return nil
}

// GetTensor sucht einen Tensor ueber seinen Namen
func (c *Context) GetTensor(name string) *Tensor {
	for _, t := range c.tensors {
		if t.name == name {
			return t
		}
	}
	return nil
}
