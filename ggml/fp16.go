// fp16.go - Halbpraezisions-Konvertierungen (F16, BF16)
// Enthaelt: fp16/bf16 Skalar- und Zeilen-Konvertierungen

package ggml

import (
	"encoding/binary"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
)

// fp16ToF32 dekodiert ein IEEE-754 half aus seinen Bits
func fp16ToF32(bits uint16) float32 {
	return float16.Frombits(bits).Float32()
}

// fp32ToF16 kodiert ein float32 als IEEE-754 half (round-to-nearest-even)
func fp32ToF16(f float32) uint16 {
	return float16.Fromfloat32(f).Bits()
}

// bf16ToF32 dekodiert ein bfloat16 aus seinen Bits
func bf16ToF32(bits uint16) float32 {
	return bfloat16.ToFloat32(bfloat16.BF16(bits))
}

// fp32ToBF16 kodiert ein float32 als bfloat16
func fp32ToBF16(f float32) uint16 {
	return uint16(bfloat16.FromFloat32(f))
}

// fp16RowToF32 konvertiert eine F16-Zeile nach float32
func fp16RowToF32(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = fp16ToF32(binary.LittleEndian.Uint16(src[2*i:]))
	}
}

// fp32RowToF16 konvertiert eine float32-Zeile nach F16
func fp32RowToF16(src []float32, dst []byte) {
	for i, f := range src {
		binary.LittleEndian.PutUint16(dst[2*i:], fp32ToF16(f))
	}
}

// bf16RowToF32 konvertiert eine BF16-Zeile nach float32
func bf16RowToF32(src []byte, dst []float32) {
	for i := range dst {
		dst[i] = bf16ToF32(binary.LittleEndian.Uint16(src[2*i:]))
	}
}

// fp32RowToBF16 konvertiert eine float32-Zeile nach BF16
func fp32RowToBF16(src []float32, dst []byte) {
	for i, f := range src {
		binary.LittleEndian.PutUint16(dst[2*i:], fp32ToBF16(f))
	}
}
