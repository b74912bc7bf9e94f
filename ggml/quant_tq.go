// quant_tq.go - Ternaere Formate TQ1_0 und TQ2_0
// Enthaelt: Zeilen-Kodierung/-Dekodierung und Vec-Dot gegen Q8_K
//
// TQ1_0 packt 5 ternaere Stellen pro Byte (Basis-3-Fixpunkt, auf 256
// skaliert), TQ2_0 packt 4 Stellen zu je 2 Bit.
//
// Byte-Layouts pro Superblock:
//   TQ1_0: qs[48] | qh[4] | d   = 54 B
//   TQ2_0: qs[64] | d           = 66 B

package ggml

import (
	"encoding/binary"
	"math"
)

const (
	tq1Block = 54
	tq2Block = 66
)

var pow3 = [6]uint16{1, 3, 9, 27, 81, 243}

// tqScale bestimmt die Blockskala (Betragsmaximum)
func tqScale(x []float32) (d, id float32) {
	var amax float32
	for _, v := range x {
		if a := float32(math.Abs(float64(v))); a > amax {
			amax = a
		}
	}
	if amax > 0 {
		return amax, 1 / amax
	}
	return 0, 0
}

func quantizeRowTQ1_0(src []float32, dst []byte) {
	nb := len(src) / qkK

	for i := 0; i < nb; i++ {
		x := src[i*qkK : (i+1)*qkK]
		out := dst[i*tq1Block:]

		d, id := tqScale(x)
		binary.LittleEndian.PutUint16(out[52:], fp32ToF16(d))

		// 48 qs-Bytes: ein 32er-Lauf und ein 16er-Lauf zu je 5 Stellen
		xi := 0
		for j, width := 0, 32; j < 48; j += width {
			if j >= 32 {
				width = 16
			}
			for m := 0; m < width; m++ {
				q := uint16(0)
				for n := 0; n < 5; n++ {
					t := nearestInt(x[xi+m+n*width]*id) + 1
					q = q*3 + uint16(t)
				}
				// Aufrundung auf Basis 256 (243 = 3^5)
				out[j+m] = byte((q*256 + 242) / 243)
			}
			xi += 5 * width
		}

		// qh: 4 Bytes zu je 4 Stellen
		for m := 0; m < 4; m++ {
			q := uint16(0)
			for n := 0; n < 4; n++ {
				t := nearestInt(x[240+m+n*4]*id) + 1
				q = q*3 + uint16(t)
			}
			q *= 3 // fuenfte Stelle bleibt frei
			out[48+m] = byte((q*256 + 242) / 243)
		}
	}
}

func dequantizeRowTQ1_0(src []byte, dst []float32) {
	nb := len(dst) / qkK

	for i := 0; i < nb; i++ {
		blk := src[i*tq1Block:]
		y := dst[i*qkK:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[52:]))

		yi := 0
		for j, width := 0, 32; j < 48; j += width {
			if j >= 32 {
				width = 16
			}
			for n := 0; n < 5; n++ {
				for m := 0; m < width; m++ {
					q := byte(uint16(blk[j+m]) * pow3[n] & 0xFF)
					xi := int(uint16(q)*3>>8) - 1
					y[yi+m+n*width] = float32(xi) * d
				}
			}
			yi += 5 * width
		}

		for n := 0; n < 4; n++ {
			for m := 0; m < 4; m++ {
				q := byte(uint16(blk[48+m]) * pow3[n] & 0xFF)
				xi := int(uint16(q)*3>>8) - 1
				y[240+m+n*4] = float32(xi) * d
			}
		}
	}
}

func quantizeRowTQ2_0(src []float32, dst []byte) {
	nb := len(src) / qkK

	for i := 0; i < nb; i++ {
		x := src[i*qkK : (i+1)*qkK]
		out := dst[i*tq2Block:]

		d, id := tqScale(x)
		binary.LittleEndian.PutUint16(out[64:], fp32ToF16(d))

		for j := 0; j < 64; j += 32 {
			for m := 0; m < 32; m++ {
				var b byte
				for l := 0; l < 4; l++ {
					t := nearestInt(x[j*4+l*32+m]*id) + 1
					b |= byte(t) << (l * 2)
				}
				out[j+m] = b
			}
		}
	}
}

func dequantizeRowTQ2_0(src []byte, dst []float32) {
	nb := len(dst) / qkK

	for i := 0; i < nb; i++ {
		blk := src[i*tq2Block:]
		y := dst[i*qkK:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[64:]))

		for j := 0; j < 64; j += 32 {
			for l := 0; l < 4; l++ {
				for m := 0; m < 32; m++ {
					q := int(blk[j+m]>>(l*2)&3) - 1
					y[j*4+l*32+m] = float32(q) * d
				}
			}
		}
	}
}

func vecDotTQ1_0Q8_K(n int, a, b []byte) float32 { return vecDotKViaF32(TypeTQ1_0, n, a, b) }
func vecDotTQ2_0Q8_K(n int, a, b []byte) float32 { return vecDotKViaF32(TypeTQ2_0, n, a, b) }
