// Package gguf - GGUF Container (Metadaten + ausgerichtete Tensor-Payloads)
//
// Dieses Modul enthaelt die gemeinsamen Typen des Formats:
// - Typ-Konstanten der Key-Value-Werte
// - KV: einfuegegeordnete Metadaten-Map mit typisierten Accessoren
// - TensorInfo: Tensor-Deskriptor mit Name, Shape, Typ, Offset
// - File: dekodiertes Containerbild
package gguf

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/agnivade/levenshtein"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/7blacky7/tensorwerk/ggml"
)

// Magic sind die ersten vier Bytes jeder GGUF-Datei
const Magic = "GGUF"

// Version ist die geschriebene Format-Version
const Version = 3

// DefaultAlignment gilt, wenn general.alignment fehlt
const DefaultAlignment = 32

// Typ-Konstanten fuer GGUF-Werte
const (
	typeUint8 uint32 = iota
	typeInt8
	typeUint16
	typeInt16
	typeUint32
	typeInt32
	typeFloat32
	typeBool
	typeString
	typeArray
	typeUint64
	typeInt64
	typeFloat64
)

// ErrUnsupported wird bei fremden Magics oder Versionen < 2 geliefert
var ErrUnsupported = errors.New("unsupported")

// ErrMalformed wird bei beschaedigten Containern geliefert
var ErrMalformed = errors.New("malformed")

// KV sind die Metadaten; die Einfuegereihenfolge bleibt erhalten, damit
// Roundtrips byte-identisch bleiben
type KV struct {
	om *orderedmap.OrderedMap[string, any]
}

// NewKV erstellt eine leere Metadaten-Map
func NewKV() *KV {
	return &KV{om: orderedmap.New[string, any]()}
}

// Set traegt einen Wert ein (vorhandene Schluessel behalten ihre Position)
func (kv *KV) Set(key string, value any) {
	kv.om.Set(key, value)
}

// Get liefert den Rohwert
func (kv *KV) Get(key string) (any, bool) {
	return kv.om.Get(key)
}

// Len zaehlt die Eintraege
func (kv *KV) Len() int {
	return kv.om.Len()
}

// Keys iteriert die Schluessel in Einfuegereihenfolge
func (kv *KV) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for pair := kv.om.Oldest(); pair != nil; pair = pair.Next() {
			if !yield(pair.Key) {
				return
			}
		}
	}
}

// Uint liest einen vorzeichenlosen Integer mit Default
func (kv *KV) Uint(key string, defaultValue uint32) uint32 {
	v, _ := kv.om.Get(key)
	switch v := v.(type) {
	case uint32:
		return v
	case uint64:
		return uint32(v)
	case int32:
		return uint32(v)
	default:
		return defaultValue
	}
}

// String liest einen String mit Default
func (kv *KV) String(key string, defaultValue ...string) string {
	if v, ok := kv.om.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

// Float liest ein float32 mit Default
func (kv *KV) Float(key string, defaultValue float32) float32 {
	if v, ok := kv.om.Get(key); ok {
		if f, ok := v.(float32); ok {
			return f
		}
	}
	return defaultValue
}

// Bool liest ein bool mit Default
func (kv *KV) Bool(key string, defaultValue bool) bool {
	if v, ok := kv.om.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultValue
}

// Floats liest ein float32-Array
func (kv *KV) Floats(key string) []float32 {
	if v, ok := kv.om.Get(key); ok {
		if fs, ok := v.([]float32); ok {
			return fs
		}
	}
	return nil
}

// Alignment liest die Payload-Ausrichtung des Containers
func (kv *KV) Alignment() int64 {
	return int64(kv.Uint("general.alignment", DefaultAlignment))
}

// TensorInfo beschreibt einen Tensor im Container
type TensorInfo struct {
	Name   string
	Shape  []uint64
	Type   ggml.Type
	Offset uint64

	// Data ist die Payload (beim Lesen gefuellt, beim Schreiben Quelle)
	Data []byte
}

// Elements zaehlt die Elemente des Tensors
func (t *TensorInfo) Elements() uint64 {
	n := uint64(1)
	for _, v := range t.Shape {
		n *= v
	}
	return n
}

// Size ist die Payload-Groesse in Bytes
func (t *TensorInfo) Size() uint64 {
	return t.Elements() * uint64(t.Type.TypeSize()) / uint64(t.Type.BlockSize())
}

// File ist ein dekodiertes Containerbild
type File struct {
	Version uint32

	KV      *KV
	Tensors []*TensorInfo

	// TensorOffset ist der Dateiversatz des Payload-Blocks
	TensorOffset uint64
}

// TensorInfo sucht einen Tensor ueber seinen Namen; bei einem Miss
// wird der naechstliegende Name vorgeschlagen
func (f *File) TensorInfo(name string) (*TensorInfo, error) {
	bestDist := -1
	var best string
	for _, t := range f.Tensors {
		if t.Name == name {
			return t, nil
		}
		if d := levenshtein.ComputeDistance(name, t.Name); bestDist < 0 || d < bestDist {
			bestDist, best = d, t.Name
		}
	}

	if best != "" {
		slog.Debug("tensor not found", "name", name, "closest", best)
		return nil, fmt.Errorf("tensor %q not found (closest match: %q)", name, best)
	}
	return nil, fmt.Errorf("tensor %q not found", name)
}

// padding berechnet die Luecke bis zur naechsten Ausrichtung
func padding(offset, align int64) int64 {
	return (align - offset%align) % align
}
