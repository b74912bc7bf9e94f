// Package gguf - GGUF Decode Operations
//
// Dieses Modul enthaelt Funktionen zum Lesen von GGUF-Dateien:
// - Decode: Header, KV-Paare, Tensor-Deskriptoren, optional Payload
// - readValue/readString/readArray: Lese-Funktionen je Datentyp
//
// Der Reader validiert Magic und Version (>= 2) und prueft die
// Zaehlfelder gegen Integer-Ueberlauf, bevor irgendetwas allokiert wird.
package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"

	"github.com/7blacky7/tensorwerk/ggml"
)

// maxCount begrenzt KV- und Tensor-Zaehler gegen Ueberlauf-Angriffe
const maxCount = 1 << 24

// maxStringLen begrenzt einzelne Strings
const maxStringLen = 1 << 28

// Decode liest einen Container. Mit payload=false bleiben die
// Tensor-Daten ungelesen (nur Deskriptoren).
func Decode(rs io.ReadSeeker, payload bool) (*File, error) {
	var magic [4]byte
	if err := binary.Read(rs, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}
	if string(magic[:]) != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrUnsupported, magic)
	}

	var version uint32
	if err := binary.Read(rs, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version < 2 {
		return nil, fmt.Errorf("%w: gguf version %d", ErrUnsupported, version)
	}

	var nTensors, nKV uint64
	if err := binary.Read(rs, binary.LittleEndian, &nTensors); err != nil {
		return nil, err
	}
	if err := binary.Read(rs, binary.LittleEndian, &nKV); err != nil {
		return nil, err
	}
	if nTensors > maxCount || nKV > maxCount {
		return nil, fmt.Errorf("%w: implausible counts (tensors=%d, kv=%d)", ErrMalformed, nTensors, nKV)
	}

	f := &File{
		Version: version,
		KV:      NewKV(),
	}

	for i := uint64(0); i < nKV; i++ {
		key, err := readString(rs)
		if err != nil {
			return nil, fmt.Errorf("kv %d: %w", i, err)
		}

		v, err := readValue(rs)
		if err != nil {
			return nil, fmt.Errorf("kv %q: %w", key, err)
		}
		f.KV.Set(key, v)
	}

	for i := uint64(0); i < nTensors; i++ {
		info, err := readTensorInfo(rs)
		if err != nil {
			return nil, fmt.Errorf("tensor %d: %w", i, err)
		}
		f.Tensors = append(f.Tensors, info)
	}

	alignment := f.KV.Alignment()
	offset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	f.TensorOffset = uint64(offset + padding(offset, alignment))

	if payload {
		for _, t := range f.Tensors {
			if _, err := rs.Seek(int64(f.TensorOffset+t.Offset), io.SeekStart); err != nil {
				return nil, err
			}
			t.Data = make([]byte, t.Size())
			if _, err := io.ReadFull(rs, t.Data); err != nil {
				return nil, fmt.Errorf("tensor %q payload: %w", t.Name, err)
			}
		}
	}

	slog.Debug("gguf decoded", "version", version, "kv", nKV, "tensors", nTensors, "alignment", alignment)
	return f, nil
}

// readString liest einen laengenprefixierten UTF-8-String
func readString(r io.Reader) (string, error) {
	var length uint64
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return "", err
	}
	if length > maxStringLen {
		return "", fmt.Errorf("%w: string of %d bytes", ErrMalformed, length)
	}

	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// readValue liest einen Typ-Tag und den zugehoerigen Wert
func readValue(r io.Reader) (any, error) {
	var t uint32
	if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
		return nil, err
	}
	return readTyped(r, t)
}

// readTyped liest einen Wert bekannten Typs
func readTyped(r io.Reader, t uint32) (any, error) {
	switch t {
	case typeUint8:
		return readScalar[uint8](r)
	case typeInt8:
		return readScalar[int8](r)
	case typeUint16:
		return readScalar[uint16](r)
	case typeInt16:
		return readScalar[int16](r)
	case typeUint32:
		return readScalar[uint32](r)
	case typeInt32:
		return readScalar[int32](r)
	case typeFloat32:
		return readScalar[float32](r)
	case typeBool:
		return readScalar[bool](r)
	case typeString:
		return readString(r)
	case typeArray:
		return readArray(r)
	case typeUint64:
		return readScalar[uint64](r)
	case typeInt64:
		return readScalar[int64](r)
	case typeFloat64:
		return readScalar[float64](r)
	default:
		return nil, fmt.Errorf("%w: value type %d", ErrMalformed, t)
	}
}

// readScalar liest einen einzelnen Basiswert
func readScalar[T any](r io.Reader) (T, error) {
	var v T
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

// readArray liest ein typisiertes Array; geschachtelte Arrays sind
// verboten
func readArray(r io.Reader) (any, error) {
	var elemType uint32
	if err := binary.Read(r, binary.LittleEndian, &elemType); err != nil {
		return nil, err
	}
	if elemType == typeArray {
		return nil, fmt.Errorf("%w: nested arrays", ErrMalformed)
	}

	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n > maxCount {
		return nil, fmt.Errorf("%w: array of %d elements", ErrMalformed, n)
	}

	switch elemType {
	case typeUint8:
		return readArrayOf[uint8](r, n)
	case typeInt8:
		return readArrayOf[int8](r, n)
	case typeUint16:
		return readArrayOf[uint16](r, n)
	case typeInt16:
		return readArrayOf[int16](r, n)
	case typeUint32:
		return readArrayOf[uint32](r, n)
	case typeInt32:
		return readArrayOf[int32](r, n)
	case typeFloat32:
		return readArrayOf[float32](r, n)
	case typeBool:
		return readArrayOf[bool](r, n)
	case typeUint64:
		return readArrayOf[uint64](r, n)
	case typeInt64:
		return readArrayOf[int64](r, n)
	case typeFloat64:
		return readArrayOf[float64](r, n)
	case typeString:
		out := make([]string, 0, n)
		for i := uint64(0); i < n; i++ {
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: array element type %d", ErrMalformed, elemType)
	}
}

func readArrayOf[T any](r io.Reader, n uint64) ([]T, error) {
	out := make([]T, n)
	if err := binary.Read(r, binary.LittleEndian, out); err != nil {
		return nil, err
	}
	return out, nil
}

// readTensorInfo liest einen Tensor-Deskriptor
func readTensorInfo(r io.Reader) (*TensorInfo, error) {
	name, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor name: %w", err)
	}

	var dims uint32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, fmt.Errorf("failed to read tensor dimensions: %w", err)
	}
	if dims == 0 || dims > 4 {
		return nil, fmt.Errorf("%w: tensor %q has %d dimensions", ErrMalformed, name, dims)
	}

	shape := make([]uint64, dims)
	for i := range shape {
		if err := binary.Read(r, binary.LittleEndian, &shape[i]); err != nil {
			return nil, fmt.Errorf("failed to read tensor shape: %w", err)
		}
	}

	var kind uint32
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return nil, fmt.Errorf("failed to read tensor kind: %w", err)
	}

	var offset uint64
	if err := binary.Read(r, binary.LittleEndian, &offset); err != nil {
		return nil, fmt.Errorf("failed to read tensor offset: %w", err)
	}

	typ := ggml.Type(kind)
	if !typ.Valid() {
		return nil, fmt.Errorf("%w: tensor %q has unknown type %d", ErrMalformed, name, kind)
	}

	return &TensorInfo{
		Name:   name,
		Shape:  shape,
		Type:   typ,
		Offset: offset,
	}, nil
}
