// quant_q.go - Blockquantisierte 32er-Formate (Q4_0..Q8_1, IQ4_NL)
// Enthaelt: Zeilen-Kodierung/-Dekodierung und Vec-Dot-Routinen
//
// Byte-Layouts pro Block (little-endian, Skalen als F16):
//   Q4_0: d | 16x Nibble-Paar                          = 18 B
//   Q4_1: d | m | 16x Nibble-Paar                      = 20 B
//   Q5_0: d | qh(u32) | 16x Nibble-Paar                = 22 B
//   Q5_1: d | m | qh(u32) | 16x Nibble-Paar            = 24 B
//   Q8_0: d | 32x int8                                 = 34 B
//   Q8_1: d | s | 32x int8                             = 36 B
//   IQ4_NL: d | 16x Nibble-Paar (nichtlineare Stufen)  = 18 B
//
// Nibble-Paar j kodiert Element j (low) und Element j+16 (high).

package ggml

import (
	"encoding/binary"
	"math"
)

// nearestInt rundet zum naechsten Integer (half away from zero)
func nearestInt(f float32) int {
	if f >= 0 {
		return int(f + 0.5)
	}
	return int(f - 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// --- Q4_0 ---

func quantizeRowQ4_0(src []float32, dst []byte) {
	nb := len(src) / qk
	const bs = 18

	for i := 0; i < nb; i++ {
		x := src[i*qk : (i+1)*qk]
		out := dst[i*bs:]

		// Vorzeichenbehaftetes Maximum bestimmt die Skala (q=-8)
		var amax, max float32
		for _, v := range x {
			if a := float32(math.Abs(float64(v))); a > amax {
				amax, max = a, v
			}
		}

		d := max / -8
		id := float32(0)
		if d != 0 {
			id = 1 / d
		}

		binary.LittleEndian.PutUint16(out[0:], fp32ToF16(d))
		for j := 0; j < qk/2; j++ {
			x0 := clampInt(int(x[j]*id+8.5), 0, 15)
			x1 := clampInt(int(x[j+qk/2]*id+8.5), 0, 15)
			out[2+j] = byte(x0) | byte(x1)<<4
		}
	}
}

func dequantizeRowQ4_0(src []byte, dst []float32) {
	nb := len(dst) / qk
	const bs = 18

	for i := 0; i < nb; i++ {
		blk := src[i*bs:]
		y := dst[i*qk:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[0:]))

		for j := 0; j < qk/2; j++ {
			y[j] = float32(int(blk[2+j]&0x0F)-8) * d
			y[j+qk/2] = float32(int(blk[2+j]>>4)-8) * d
		}
	}
}

// --- Q4_1 ---

func quantizeRowQ4_1(src []float32, dst []byte) {
	nb := len(src) / qk
	const bs = 20

	for i := 0; i < nb; i++ {
		x := src[i*qk : (i+1)*qk]
		out := dst[i*bs:]

		min, max := x[0], x[0]
		for _, v := range x {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}

		d := (max - min) / 15
		id := float32(0)
		if d != 0 {
			id = 1 / d
		}

		binary.LittleEndian.PutUint16(out[0:], fp32ToF16(d))
		binary.LittleEndian.PutUint16(out[2:], fp32ToF16(min))
		for j := 0; j < qk/2; j++ {
			x0 := clampInt(int((x[j]-min)*id+0.5), 0, 15)
			x1 := clampInt(int((x[j+qk/2]-min)*id+0.5), 0, 15)
			out[4+j] = byte(x0) | byte(x1)<<4
		}
	}
}

func dequantizeRowQ4_1(src []byte, dst []float32) {
	nb := len(dst) / qk
	const bs = 20

	for i := 0; i < nb; i++ {
		blk := src[i*bs:]
		y := dst[i*qk:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[0:]))
		m := fp16ToF32(binary.LittleEndian.Uint16(blk[2:]))

		for j := 0; j < qk/2; j++ {
			y[j] = float32(blk[4+j]&0x0F)*d + m
			y[j+qk/2] = float32(blk[4+j]>>4)*d + m
		}
	}
}

// --- Q5_0 ---

func quantizeRowQ5_0(src []float32, dst []byte) {
	nb := len(src) / qk
	const bs = 22

	for i := 0; i < nb; i++ {
		x := src[i*qk : (i+1)*qk]
		out := dst[i*bs:]

		var amax, max float32
		for _, v := range x {
			if a := float32(math.Abs(float64(v))); a > amax {
				amax, max = a, v
			}
		}

		d := max / -16
		id := float32(0)
		if d != 0 {
			id = 1 / d
		}

		binary.LittleEndian.PutUint16(out[0:], fp32ToF16(d))

		var qh uint32
		for j := 0; j < qk/2; j++ {
			x0 := clampInt(int(x[j]*id+16.5), 0, 31)
			x1 := clampInt(int(x[j+qk/2]*id+16.5), 0, 31)
			out[6+j] = byte(x0&0x0F) | byte(x1&0x0F)<<4
			qh |= uint32(x0>>4) << j
			qh |= uint32(x1>>4) << (j + qk/2)
		}
		binary.LittleEndian.PutUint32(out[2:], qh)
	}
}

func dequantizeRowQ5_0(src []byte, dst []float32) {
	nb := len(dst) / qk
	const bs = 22

	for i := 0; i < nb; i++ {
		blk := src[i*bs:]
		y := dst[i*qk:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[0:]))
		qh := binary.LittleEndian.Uint32(blk[2:])

		for j := 0; j < qk/2; j++ {
			xh0 := (qh >> j & 1) << 4
			xh1 := (qh >> (j + qk/2) & 1) << 4
			y[j] = float32(int(uint32(blk[6+j]&0x0F)|xh0)-16) * d
			y[j+qk/2] = float32(int(uint32(blk[6+j]>>4)|xh1)-16) * d
		}
	}
}

// --- Q5_1 ---

func quantizeRowQ5_1(src []float32, dst []byte) {
	nb := len(src) / qk
	const bs = 24

	for i := 0; i < nb; i++ {
		x := src[i*qk : (i+1)*qk]
		out := dst[i*bs:]

		min, max := x[0], x[0]
		for _, v := range x {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}

		d := (max - min) / 31
		id := float32(0)
		if d != 0 {
			id = 1 / d
		}

		binary.LittleEndian.PutUint16(out[0:], fp32ToF16(d))
		binary.LittleEndian.PutUint16(out[2:], fp32ToF16(min))

		var qh uint32
		for j := 0; j < qk/2; j++ {
			x0 := clampInt(int((x[j]-min)*id+0.5), 0, 31)
			x1 := clampInt(int((x[j+qk/2]-min)*id+0.5), 0, 31)
			out[8+j] = byte(x0&0x0F) | byte(x1&0x0F)<<4
			qh |= uint32(x0>>4) << j
			qh |= uint32(x1>>4) << (j + qk/2)
		}
		binary.LittleEndian.PutUint32(out[4:], qh)
	}
}

func dequantizeRowQ5_1(src []byte, dst []float32) {
	nb := len(dst) / qk
	const bs = 24

	for i := 0; i < nb; i++ {
		blk := src[i*bs:]
		y := dst[i*qk:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[0:]))
		m := fp16ToF32(binary.LittleEndian.Uint16(blk[2:]))
		qh := binary.LittleEndian.Uint32(blk[4:])

		for j := 0; j < qk/2; j++ {
			xh0 := (qh >> j & 1) << 4
			xh1 := (qh >> (j + qk/2) & 1) << 4
			y[j] = float32(uint32(blk[8+j]&0x0F)|xh0)*d + m
			y[j+qk/2] = float32(uint32(blk[8+j]>>4)|xh1)*d + m
		}
	}
}

// --- Q8_0 ---

func quantizeRowQ8_0(src []float32, dst []byte) {
	nb := len(src) / qk
	const bs = 34

	for i := 0; i < nb; i++ {
		x := src[i*qk : (i+1)*qk]
		out := dst[i*bs:]

		var amax float32
		for _, v := range x {
			if a := float32(math.Abs(float64(v))); a > amax {
				amax = a
			}
		}

		d := amax / 127
		id := float32(0)
		if d != 0 {
			id = 1 / d
		}

		binary.LittleEndian.PutUint16(out[0:], fp32ToF16(d))
		for j, v := range x {
			out[2+j] = byte(int8(nearestInt(v * id)))
		}
	}
}

func dequantizeRowQ8_0(src []byte, dst []float32) {
	nb := len(dst) / qk
	const bs = 34

	for i := 0; i < nb; i++ {
		blk := src[i*bs:]
		y := dst[i*qk:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[0:]))

		for j := 0; j < qk; j++ {
			y[j] = float32(int8(blk[2+j])) * d
		}
	}
}

// --- Q8_1 ---

func quantizeRowQ8_1(src []float32, dst []byte) {
	nb := len(src) / qk
	const bs = 36

	for i := 0; i < nb; i++ {
		x := src[i*qk : (i+1)*qk]
		out := dst[i*bs:]

		var amax float32
		for _, v := range x {
			if a := float32(math.Abs(float64(v))); a > amax {
				amax = a
			}
		}

		d := amax / 127
		id := float32(0)
		if d != 0 {
			id = 1 / d
		}

		sum := 0
		for j, v := range x {
			q := int8(nearestInt(v * id))
			out[4+j] = byte(q)
			sum += int(q)
		}

		binary.LittleEndian.PutUint16(out[0:], fp32ToF16(d))
		binary.LittleEndian.PutUint16(out[2:], fp32ToF16(d*float32(sum)))
	}
}

// --- IQ4_NL ---

// kvaluesIQ4NL sind die nichtlinearen Stufen des IQ4-Codebuchs
var kvaluesIQ4NL = [16]int8{-127, -104, -83, -65, -49, -35, -22, -10, 1, 13, 25, 38, 53, 69, 89, 113}

// iq4NLIndex sucht den Index mit minimalem Fehler fuer x/d
func iq4NLIndex(v float32) int {
	best, bestErr := 0, float32(math.Inf(1))
	for k, kv := range kvaluesIQ4NL {
		e := v - float32(kv)
		if e < 0 {
			e = -e
		}
		if e < bestErr {
			best, bestErr = k, e
		}
	}
	return best
}

func quantizeRowIQ4_NL(src []float32, dst []byte) {
	nb := len(src) / qk
	const bs = 18

	for i := 0; i < nb; i++ {
		x := src[i*qk : (i+1)*qk]
		out := dst[i*bs:]

		var amax, max float32
		for _, v := range x {
			if a := float32(math.Abs(float64(v))); a > amax {
				amax, max = a, v
			}
		}

		// das betragsgroesste Element landet auf einem Codebuch-Extrem
		d := float32(0)
		if amax > 0 {
			if max > 0 {
				d = max / 113
			} else {
				d = max / -127
			}
		}
		id := float32(0)
		if d != 0 {
			id = 1 / d
		}

		binary.LittleEndian.PutUint16(out[0:], fp32ToF16(d))
		for j := 0; j < qk/2; j++ {
			q0 := iq4NLIndex(x[j] * id)
			q1 := iq4NLIndex(x[j+qk/2] * id)
			out[2+j] = byte(q0) | byte(q1)<<4
		}
	}
}

func dequantizeRowIQ4_NL(src []byte, dst []float32) {
	nb := len(dst) / qk
	const bs = 18

	for i := 0; i < nb; i++ {
		blk := src[i*bs:]
		y := dst[i*qk:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[0:]))

		for j := 0; j < qk/2; j++ {
			y[j] = d * float32(kvaluesIQ4NL[blk[2+j]&0x0F])
			y[j+qk/2] = d * float32(kvaluesIQ4NL[blk[2+j]>>4])
		}
	}
}

// --- Vec-Dot-Routinen (Integer-Pfade) ---

func vecDotQ4_0Q8_0(n int, a, b []byte) float32 {
	nb := n / qk
	var sumf float32

	for i := 0; i < nb; i++ {
		x := a[i*18:]
		y := b[i*34:]

		sumi := 0
		for j := 0; j < qk/2; j++ {
			v0 := int(x[2+j]&0x0F) - 8
			v1 := int(x[2+j]>>4) - 8
			sumi += v0*int(int8(y[2+j])) + v1*int(int8(y[2+j+qk/2]))
		}

		d0 := fp16ToF32(binary.LittleEndian.Uint16(x[0:]))
		d8 := fp16ToF32(binary.LittleEndian.Uint16(y[0:]))
		sumf += float32(sumi) * d0 * d8
	}
	return sumf
}

func vecDotQ4_1Q8_1(n int, a, b []byte) float32 {
	nb := n / qk
	var sumf float32

	for i := 0; i < nb; i++ {
		x := a[i*20:]
		y := b[i*36:]

		sumi := 0
		for j := 0; j < qk/2; j++ {
			v0 := int(x[4+j] & 0x0F)
			v1 := int(x[4+j] >> 4)
			sumi += v0*int(int8(y[4+j])) + v1*int(int8(y[4+j+qk/2]))
		}

		d0 := fp16ToF32(binary.LittleEndian.Uint16(x[0:]))
		m0 := fp16ToF32(binary.LittleEndian.Uint16(x[2:]))
		d8 := fp16ToF32(binary.LittleEndian.Uint16(y[0:]))
		s8 := fp16ToF32(binary.LittleEndian.Uint16(y[2:]))
		sumf += float32(sumi)*d0*d8 + m0*s8
	}
	return sumf
}

func vecDotQ5_0Q8_0(n int, a, b []byte) float32 {
	nb := n / qk
	var sumf float32

	for i := 0; i < nb; i++ {
		x := a[i*22:]
		y := b[i*34:]
		qh := binary.LittleEndian.Uint32(x[2:])

		sumi := 0
		for j := 0; j < qk/2; j++ {
			xh0 := (qh >> j & 1) << 4
			xh1 := (qh >> (j + qk/2) & 1) << 4
			v0 := int(uint32(x[6+j]&0x0F)|xh0) - 16
			v1 := int(uint32(x[6+j]>>4)|xh1) - 16
			sumi += v0*int(int8(y[2+j])) + v1*int(int8(y[2+j+qk/2]))
		}

		d0 := fp16ToF32(binary.LittleEndian.Uint16(x[0:]))
		d8 := fp16ToF32(binary.LittleEndian.Uint16(y[0:]))
		sumf += float32(sumi) * d0 * d8
	}
	return sumf
}

func vecDotQ5_1Q8_1(n int, a, b []byte) float32 {
	nb := n / qk
	var sumf float32

	for i := 0; i < nb; i++ {
		x := a[i*24:]
		y := b[i*36:]
		qh := binary.LittleEndian.Uint32(x[4:])

		sumi := 0
		for j := 0; j < qk/2; j++ {
			xh0 := (qh >> j & 1) << 4
			xh1 := (qh >> (j + qk/2) & 1) << 4
			v0 := int(uint32(x[8+j]&0x0F) | xh0)
			v1 := int(uint32(x[8+j]>>4) | xh1)
			sumi += v0*int(int8(y[4+j])) + v1*int(int8(y[4+j+qk/2]))
		}

		d0 := fp16ToF32(binary.LittleEndian.Uint16(x[0:]))
		m0 := fp16ToF32(binary.LittleEndian.Uint16(x[2:]))
		d8 := fp16ToF32(binary.LittleEndian.Uint16(y[0:]))
		s8 := fp16ToF32(binary.LittleEndian.Uint16(y[2:]))
		sumf += float32(sumi)*d0*d8 + m0*s8
	}
	return sumf
}

func vecDotQ8_0Q8_0(n int, a, b []byte) float32 {
	nb := n / qk
	var sumf float32

	for i := 0; i < nb; i++ {
		x := a[i*34:]
		y := b[i*34:]

		sumi := 0
		for j := 0; j < qk; j++ {
			sumi += int(int8(x[2+j])) * int(int8(y[2+j]))
		}

		d0 := fp16ToF32(binary.LittleEndian.Uint16(x[0:]))
		d8 := fp16ToF32(binary.LittleEndian.Uint16(y[0:]))
		sumf += float32(sumi) * d0 * d8
	}
	return sumf
}

func vecDotIQ4_NLQ8_0(n int, a, b []byte) float32 {
	nb := n / qk
	var sumf float32

	for i := 0; i < nb; i++ {
		x := a[i*18:]
		y := b[i*34:]

		sumi := 0
		for j := 0; j < qk/2; j++ {
			v0 := int(kvaluesIQ4NL[x[2+j]&0x0F])
			v1 := int(kvaluesIQ4NL[x[2+j]>>4])
			sumi += v0*int(int8(y[2+j])) + v1*int(int8(y[2+j+qk/2]))
		}

		d0 := fp16ToF32(binary.LittleEndian.Uint16(x[0:]))
		d8 := fp16ToF32(binary.LittleEndian.Uint16(y[0:]))
		sumf += float32(sumi) * d0 * d8
	}
	return sumf
}
