// Package gguf - GGUF Write Operations
//
// Dieses Modul enthaelt Funktionen zum Schreiben von GGUF-Dateien:
// - Write: komplettes File mit KV und Tensors (V3 Format)
// - writeValue: Generische Write-Funktion fuer Basistypen
// - writeString/writeArray: String- und Array-Serialisierung
// - writeTensorInfo: Tensor-Metadaten
//
// KV-Paare werden in Einfuegereihenfolge geschrieben; die Payloads
// folgen ausgerichtet in der Reihenfolge der Deskriptoren und werden
// parallel geschrieben.
package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Write schreibt einen kompletten Container
func Write(f *os.File, kv *KV, ts []*TensorInfo) error {
	if kv == nil {
		kv = NewKV()
	}

	if err := binary.Write(f, binary.LittleEndian, []byte(Magic)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(Version)); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint64(len(ts))); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, uint64(kv.Len())); err != nil {
		return err
	}

	for key := range kv.Keys() {
		v, _ := kv.Get(key)
		if err := writeKV(f, key, v); err != nil {
			return fmt.Errorf("kv %q: %w", key, err)
		}
	}

	alignment := kv.Alignment()

	// Offsets vergeben und Deskriptoren schreiben
	var off uint64
	for _, t := range ts {
		t.Offset = off
		if err := writeTensorInfo(f, t); err != nil {
			return fmt.Errorf("tensor %q: %w", t.Name, err)
		}
		off += t.Size()
		off += uint64(padding(int64(off), alignment))
	}

	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	offset += padding(offset, alignment)
	if err := f.Truncate(offset); err != nil {
		return err
	}

	for _, t := range ts {
		if uint64(len(t.Data)) != t.Size() {
			return fmt.Errorf("tensor %q: payload %d bytes, expected %d", t.Name, len(t.Data), t.Size())
		}
	}

	// Payloads parallel an ihre Offsets schreiben
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, t := range ts {
		w := io.NewOffsetWriter(f, offset+int64(t.Offset))
		g.Go(func() error {
			_, err := w.Write(t.Data)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Debug("gguf written", "kv", kv.Len(), "tensors", len(ts), "alignment", alignment)
	return nil
}

// writeValue schreibt einen Typ-Tag und den Wert
func writeValue[V any](w io.Writer, t uint32, v V) error {
	if err := binary.Write(w, binary.LittleEndian, t); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, v)
}

// writeRawString schreibt einen laengenprefixierten String ohne Typ-Tag
func writeRawString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, []byte(s))
}

// writeString schreibt einen String mit Typ-Tag
func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, typeString); err != nil {
		return err
	}
	return writeRawString(w, s)
}

// writeArray schreibt ein typisiertes Array
func writeArray[S ~[]E, E any](w io.Writer, t uint32, s S) error {
	if err := binary.Write(w, binary.LittleEndian, typeArray); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, t); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}

	// Strings muessen einzeln geschrieben werden
	if t == typeString {
		for _, e := range any(s).([]string) {
			if err := writeRawString(w, e); err != nil {
				return err
			}
		}
		return nil
	}

	return binary.Write(w, binary.LittleEndian, s)
}

// writeKV schreibt ein Key-Value-Paar
func writeKV(w io.Writer, k string, v any) error {
	slog.Debug("write kv", "key", k, "type", fmt.Sprintf("%T", v))

	if err := writeRawString(w, k); err != nil {
		return err
	}

	switch v := v.(type) {
	case uint8:
		return writeValue(w, typeUint8, v)
	case int8:
		return writeValue(w, typeInt8, v)
	case uint16:
		return writeValue(w, typeUint16, v)
	case int16:
		return writeValue(w, typeInt16, v)
	case uint32:
		return writeValue(w, typeUint32, v)
	case int32:
		return writeValue(w, typeInt32, v)
	case uint64:
		return writeValue(w, typeUint64, v)
	case int64:
		return writeValue(w, typeInt64, v)
	case float32:
		return writeValue(w, typeFloat32, v)
	case float64:
		return writeValue(w, typeFloat64, v)
	case bool:
		return writeValue(w, typeBool, v)
	case string:
		return writeString(w, v)
	case []uint8:
		return writeArray(w, typeUint8, v)
	case []int8:
		return writeArray(w, typeInt8, v)
	case []uint16:
		return writeArray(w, typeUint16, v)
	case []int16:
		return writeArray(w, typeInt16, v)
	case []uint32:
		return writeArray(w, typeUint32, v)
	case []int32:
		return writeArray(w, typeInt32, v)
	case []uint64:
		return writeArray(w, typeUint64, v)
	case []int64:
		return writeArray(w, typeInt64, v)
	case []float32:
		return writeArray(w, typeFloat32, v)
	case []float64:
		return writeArray(w, typeFloat64, v)
	case []bool:
		return writeArray(w, typeBool, v)
	case []string:
		return writeArray(w, typeString, v)
	default:
		return fmt.Errorf("improper type %T for %q", v, k)
	}
}

// writeTensorInfo schreibt die Tensor-Metadaten
func writeTensorInfo(w io.Writer, t *TensorInfo) error {
	slog.Debug("write tensor info", "name", t.Name, "type", t.Type, "shape", t.Shape, "offset", t.Offset)

	if err := writeRawString(w, t.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(t.Shape))); err != nil {
		return err
	}
	for _, n := range t.Shape {
		if err := binary.Write(w, binary.LittleEndian, n); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(t.Type)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, t.Offset)
}
