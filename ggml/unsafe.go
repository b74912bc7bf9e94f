// unsafe.go - Typisierte Sichten auf Arena-Bytes
// Enthaelt: bytesToF32/F64/I8/I16/I32/I64/U16 Slice-Casts
//
// Die Arena richtet Payloads auf 16 Bytes aus; alle Sichten sind damit
// fuer ihre Elementtypen korrekt ausgerichtet.

package ggml

import "unsafe"

// bytesToF32 interpretiert b als float32-Slice der Laenge n
func bytesToF32(b []byte, n int) []float32 {
	if n == 0 {
		return nil
	}
	Assertf(len(b) >= n*4, "short buffer: %d < %d", len(b), n*4)
	return unsafe.Slice((*float32)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// bytesToF64 interpretiert b als float64-Slice der Laenge n
func bytesToF64(b []byte, n int) []float64 {
	if n == 0 {
		return nil
	}
	Assertf(len(b) >= n*8, "short buffer: %d < %d", len(b), n*8)
	return unsafe.Slice((*float64)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// bytesToU16 interpretiert b als uint16-Slice der Laenge n (F16/BF16-Bits)
func bytesToU16(b []byte, n int) []uint16 {
	if n == 0 {
		return nil
	}
	Assertf(len(b) >= n*2, "short buffer: %d < %d", len(b), n*2)
	return unsafe.Slice((*uint16)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// bytesToI8 interpretiert b als int8-Slice der Laenge n
func bytesToI8(b []byte, n int) []int8 {
	if n == 0 {
		return nil
	}
	Assertf(len(b) >= n, "short buffer: %d < %d", len(b), n)
	return unsafe.Slice((*int8)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// bytesToI16 interpretiert b als int16-Slice der Laenge n
func bytesToI16(b []byte, n int) []int16 {
	if n == 0 {
		return nil
	}
	Assertf(len(b) >= n*2, "short buffer: %d < %d", len(b), n*2)
	return unsafe.Slice((*int16)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// bytesToI32 interpretiert b als int32-Slice der Laenge n
func bytesToI32(b []byte, n int) []int32 {
	if n == 0 {
		return nil
	}
	Assertf(len(b) >= n*4, "short buffer: %d < %d", len(b), n*4)
	return unsafe.Slice((*int32)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// bytesToI64 interpretiert b als int64-Slice der Laenge n
func bytesToI64(b []byte, n int) []int64 {
	if n == 0 {
		return nil
	}
	Assertf(len(b) >= n*8, "short buffer: %d < %d", len(b), n*8)
	return unsafe.Slice((*int64)(unsafe.Pointer(unsafe.SliceData(b))), n)
}
