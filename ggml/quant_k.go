// quant_k.go - K-Quantisierung mit 256er-Superbloecken (Q2_K..Q8_K, IQ4_XS)
// Enthaelt: Zeilen-Kodierung/-Dekodierung und Vec-Dot gegen Q8_K
//
// Byte-Layouts pro Superblock:
//   Q2_K: scales[16] | qs[64] | d | dmin                       =  84 B
//   Q3_K: hmask[32] | qs[64] | scales[12] | d                  = 110 B
//   Q4_K: d | dmin | scales[12] | qs[128]                      = 144 B
//   Q5_K: d | dmin | scales[12] | qh[32] | qs[128]             = 176 B
//   Q6_K: ql[128] | qh[64] | scales[16] | d                    = 210 B
//   Q8_K: d(f32) | qs[256] | bsums[16](i16)                    = 292 B
//   IQ4_XS: d | scales_h(u16) | scales_l[4] | qs[128]          = 136 B

package ggml

import (
	"encoding/binary"
	"math"
)

const (
	q2KBlock  = 84
	q3KBlock  = 110
	q4KBlock  = 144
	q5KBlock  = 176
	q6KBlock  = 210
	q8KBlock  = 292
	iq4XBlock = 136
)

// groupAffine bestimmt Skala und (positives) Minimum einer Gruppe fuer
// eine Quantisierung y = d*q - m mit q in [0, nmax]
func groupAffine(x []float32, nmax int) (scale, min float32) {
	lo, hi := x[0], x[0]
	for _, v := range x {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo > 0 {
		lo = 0
	}
	return (hi - lo) / float32(nmax), -lo
}

// groupSymmetric bestimmt die Skala einer Gruppe fuer q in [-nmax-1, nmax]
func groupSymmetric(x []float32, nmax int) float32 {
	var amax float32
	for _, v := range x {
		if a := float32(math.Abs(float64(v))); a > amax {
			amax = a
		}
	}
	return amax / float32(nmax)
}

// --- Q2_K ---

func quantizeRowQ2_K(src []float32, dst []byte) {
	nb := len(src) / qkK

	for i := 0; i < nb; i++ {
		x := src[i*qkK : (i+1)*qkK]
		out := dst[i*q2KBlock:]

		// Gruppenweise affine Parameter (16 Gruppen zu 16 Elementen)
		var scales, mins [16]float32
		var maxScale, maxMin float32
		for g := 0; g < 16; g++ {
			s, m := groupAffine(x[g*16:(g+1)*16], 3)
			scales[g], mins[g] = s, m
			if s > maxScale {
				maxScale = s
			}
			if m > maxMin {
				maxMin = m
			}
		}

		d := maxScale / 15
		dmin := maxMin / 15
		id, idm := float32(0), float32(0)
		if d != 0 {
			id = 1 / d
		}
		if dmin != 0 {
			idm = 1 / dmin
		}

		var ls, lm [16]int
		for g := 0; g < 16; g++ {
			ls[g] = clampInt(nearestInt(scales[g]*id), 0, 15)
			lm[g] = clampInt(nearestInt(mins[g]*idm), 0, 15)
			out[g] = byte(ls[g]) | byte(lm[g])<<4
		}

		binary.LittleEndian.PutUint16(out[80:], fp32ToF16(d))
		binary.LittleEndian.PutUint16(out[82:], fp32ToF16(dmin))

		// 2-Bit-Werte packen: zwei 128er-Haelften, je 4 Shift-Ebenen
		qs := out[16:80]
		for j := range qs[:64] {
			qs[j] = 0
		}
		for j := 0; j < qkK; j++ {
			g := j / 16
			dl := d * float32(ls[g])
			ml := dmin * float32(lm[g])
			q := 0
			if dl != 0 {
				q = clampInt(nearestInt((x[j]+ml)/dl), 0, 3)
			}
			half := j / 128
			shift := uint((j % 128) / 32 * 2)
			qs[half*32+j%32] |= byte(q) << shift
		}
	}
}

func dequantizeRowQ2_K(src []byte, dst []float32) {
	nb := len(dst) / qkK

	for i := 0; i < nb; i++ {
		blk := src[i*q2KBlock:]
		y := dst[i*qkK:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[80:]))
		dmin := fp16ToF32(binary.LittleEndian.Uint16(blk[82:]))

		is := 0
		yi := 0
		for n := 0; n < qkK; n += 128 {
			q := blk[16+n/4 : 16+n/4+32]
			for shift := uint(0); shift < 8; shift += 2 {
				for half := 0; half < 2; half++ {
					sc := blk[is]
					is++
					dl := d * float32(sc&0x0F)
					ml := dmin * float32(sc>>4)
					for l := half * 16; l < half*16+16; l++ {
						y[yi] = dl*float32(q[l]>>shift&3) - ml
						yi++
					}
				}
			}
		}
	}
}

// --- Q3_K ---

func quantizeRowQ3_K(src []float32, dst []byte) {
	nb := len(src) / qkK

	for i := 0; i < nb; i++ {
		x := src[i*qkK : (i+1)*qkK]
		out := dst[i*q3KBlock:]

		var scales [16]float32
		var maxAbs float32
		for g := 0; g < 16; g++ {
			s := groupSymmetric(x[g*16:(g+1)*16], 4)
			scales[g] = s
			if a := float32(math.Abs(float64(s))); a > maxAbs {
				maxAbs = a
			}
		}

		dAll := maxAbs / 31
		id := float32(0)
		if dAll != 0 {
			id = 1 / dAll
		}

		var ls [16]int
		for g := 0; g < 16; g++ {
			ls[g] = clampInt(nearestInt(scales[g]*id), -32, 31)
		}

		// 6-Bit-Skalen in 12 Bytes packen
		for b := 0; b < 8; b++ {
			out[96+b] = byte(ls[b]+32)&0x0F | (byte(ls[b+8]+32)&0x0F)<<4
		}
		for b := 0; b < 4; b++ {
			out[104+b] = byte((ls[b]+32)>>4)&3 |
				(byte((ls[b+4]+32)>>4)&3)<<2 |
				(byte((ls[b+8]+32)>>4)&3)<<4 |
				(byte((ls[b+12]+32)>>4)&3)<<6
		}

		binary.LittleEndian.PutUint16(out[108:], fp32ToF16(dAll))

		hmask := out[0:32]
		qs := out[32:96]
		for j := range hmask {
			hmask[j] = 0
		}
		for j := range qs {
			qs[j] = 0
		}

		for j := 0; j < qkK; j++ {
			g := j / 16
			dl := dAll * float32(ls[g])
			q := 0
			if dl != 0 {
				q = clampInt(nearestInt(x[j]/dl), -4, 3)
			}
			// hmask-Bit gesetzt heisst: kein -4 Offset
			sub := uint(j / 32)
			l := j % 32
			if q >= 0 {
				hmask[l] |= 1 << sub
			}
			q2 := q
			if q2 < 0 {
				q2 += 4
			}
			half := j / 128
			shift := uint((j % 128) / 32 * 2)
			qs[half*32+l] |= byte(q2) << shift
		}
	}
}

func dequantizeRowQ3_K(src []byte, dst []float32) {
	nb := len(dst) / qkK

	for i := 0; i < nb; i++ {
		blk := src[i*q3KBlock:]
		y := dst[i*qkK:]
		dAll := fp16ToF32(binary.LittleEndian.Uint16(blk[108:]))

		// 6-Bit-Skalen entpacken
		var ls [16]int
		for b := 0; b < 8; b++ {
			ls[b] = int(blk[96+b] & 0x0F)
			ls[b+8] = int(blk[96+b] >> 4)
		}
		for b := 0; b < 4; b++ {
			hi := blk[104+b]
			ls[b] |= int(hi>>0&3) << 4
			ls[b+4] |= int(hi>>2&3) << 4
			ls[b+8] |= int(hi>>4&3) << 4
			ls[b+12] |= int(hi>>6&3) << 4
		}

		hmask := blk[0:32]
		yi := 0
		is := 0
		m := byte(1)
		for n := 0; n < qkK; n += 128 {
			q := blk[32+n/4 : 32+n/4+32]
			for shift := uint(0); shift < 8; shift += 2 {
				for half := 0; half < 2; half++ {
					dl := dAll * float32(ls[is]-32)
					is++
					for l := half * 16; l < half*16+16; l++ {
						v := int(q[l] >> shift & 3)
						if hmask[l]&m == 0 {
							v -= 4
						}
						y[yi] = dl * float32(v)
						yi++
					}
				}
				m <<= 1
			}
		}
	}
}

// --- Q4_K / Q5_K ---

// packScaleMinK4 packt 8 (scale,min)-Paare zu je 6 Bit in 12 Bytes
func packScaleMinK4(sc, mn *[8]int, out []byte) {
	for j := 0; j < 4; j++ {
		out[j] = byte(sc[j]&0x3F) | byte(sc[j+4]>>4)<<6
		out[j+4] = byte(mn[j]&0x3F) | byte(mn[j+4]>>4)<<6
		out[j+8] = byte(sc[j+4]&0x0F) | byte(mn[j+4]&0x0F)<<4
	}
}

// scaleMinK4 entpackt Paar j aus dem 12-Byte-Skalenfeld
func scaleMinK4(j int, q []byte) (sc, mn uint8) {
	if j < 4 {
		return q[j] & 63, q[j+4] & 63
	}
	sc = q[j+4]&0x0F | (q[j-4]>>6)<<4
	mn = q[j+4]>>4 | (q[j]>>6)<<4
	return sc, mn
}

func quantizeRowQ4_K(src []float32, dst []byte) {
	nb := len(src) / qkK

	for i := 0; i < nb; i++ {
		x := src[i*qkK : (i+1)*qkK]
		out := dst[i*q4KBlock:]

		var scales, mins [8]float32
		var maxScale, maxMin float32
		for g := 0; g < 8; g++ {
			s, m := groupAffine(x[g*32:(g+1)*32], 15)
			scales[g], mins[g] = s, m
			if s > maxScale {
				maxScale = s
			}
			if m > maxMin {
				maxMin = m
			}
		}

		d := maxScale / 63
		dmin := maxMin / 63
		id, idm := float32(0), float32(0)
		if d != 0 {
			id = 1 / d
		}
		if dmin != 0 {
			idm = 1 / dmin
		}

		var ls, lm [8]int
		for g := 0; g < 8; g++ {
			ls[g] = clampInt(nearestInt(scales[g]*id), 0, 63)
			lm[g] = clampInt(nearestInt(mins[g]*idm), 0, 63)
		}

		binary.LittleEndian.PutUint16(out[0:], fp32ToF16(d))
		binary.LittleEndian.PutUint16(out[2:], fp32ToF16(dmin))
		packScaleMinK4(&ls, &lm, out[4:16])

		qs := out[16:144]
		qi := 0
		for j := 0; j < qkK; j += 64 {
			g1, g2 := j/32, j/32+1
			d1 := d * float32(ls[g1])
			m1 := dmin * float32(lm[g1])
			d2 := d * float32(ls[g2])
			m2 := dmin * float32(lm[g2])
			for l := 0; l < 32; l++ {
				q1, q2 := 0, 0
				if d1 != 0 {
					q1 = clampInt(nearestInt((x[j+l]+m1)/d1), 0, 15)
				}
				if d2 != 0 {
					q2 = clampInt(nearestInt((x[j+l+32]+m2)/d2), 0, 15)
				}
				qs[qi+l] = byte(q1) | byte(q2)<<4
			}
			qi += 32
		}
	}
}

func dequantizeRowQ4_K(src []byte, dst []float32) {
	nb := len(dst) / qkK

	for i := 0; i < nb; i++ {
		blk := src[i*q4KBlock:]
		y := dst[i*qkK:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[0:]))
		dmin := fp16ToF32(binary.LittleEndian.Uint16(blk[2:]))
		scales := blk[4:16]

		qi := 16
		yi := 0
		for is := 0; is < 8; is += 2 {
			sc1, mn1 := scaleMinK4(is, scales)
			sc2, mn2 := scaleMinK4(is+1, scales)
			d1, m1 := d*float32(sc1), dmin*float32(mn1)
			d2, m2 := d*float32(sc2), dmin*float32(mn2)
			for l := 0; l < 32; l++ {
				y[yi+l] = d1*float32(blk[qi+l]&0x0F) - m1
				y[yi+l+32] = d2*float32(blk[qi+l]>>4) - m2
			}
			qi += 32
			yi += 64
		}
	}
}

func quantizeRowQ5_K(src []float32, dst []byte) {
	nb := len(src) / qkK

	for i := 0; i < nb; i++ {
		x := src[i*qkK : (i+1)*qkK]
		out := dst[i*q5KBlock:]

		var scales, mins [8]float32
		var maxScale, maxMin float32
		for g := 0; g < 8; g++ {
			s, m := groupAffine(x[g*32:(g+1)*32], 31)
			scales[g], mins[g] = s, m
			if s > maxScale {
				maxScale = s
			}
			if m > maxMin {
				maxMin = m
			}
		}

		d := maxScale / 63
		dmin := maxMin / 63
		id, idm := float32(0), float32(0)
		if d != 0 {
			id = 1 / d
		}
		if dmin != 0 {
			idm = 1 / dmin
		}

		var ls, lm [8]int
		for g := 0; g < 8; g++ {
			ls[g] = clampInt(nearestInt(scales[g]*id), 0, 63)
			lm[g] = clampInt(nearestInt(mins[g]*idm), 0, 63)
		}

		binary.LittleEndian.PutUint16(out[0:], fp32ToF16(d))
		binary.LittleEndian.PutUint16(out[2:], fp32ToF16(dmin))
		packScaleMinK4(&ls, &lm, out[4:16])

		qh := out[16:48]
		qs := out[48:176]
		for j := range qh {
			qh[j] = 0
		}

		qi := 0
		u1, u2 := byte(1), byte(2)
		for j := 0; j < qkK; j += 64 {
			g1, g2 := j/32, j/32+1
			d1 := d * float32(ls[g1])
			m1 := dmin * float32(lm[g1])
			d2 := d * float32(ls[g2])
			m2 := dmin * float32(lm[g2])
			for l := 0; l < 32; l++ {
				q1, q2 := 0, 0
				if d1 != 0 {
					q1 = clampInt(nearestInt((x[j+l]+m1)/d1), 0, 31)
				}
				if d2 != 0 {
					q2 = clampInt(nearestInt((x[j+l+32]+m2)/d2), 0, 31)
				}
				qs[qi+l] = byte(q1&0x0F) | byte(q2&0x0F)<<4
				if q1 >= 16 {
					qh[l] |= u1
				}
				if q2 >= 16 {
					qh[l] |= u2
				}
			}
			qi += 32
			u1 <<= 2
			u2 <<= 2
		}
	}
}

func dequantizeRowQ5_K(src []byte, dst []float32) {
	nb := len(dst) / qkK

	for i := 0; i < nb; i++ {
		blk := src[i*q5KBlock:]
		y := dst[i*qkK:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[0:]))
		dmin := fp16ToF32(binary.LittleEndian.Uint16(blk[2:]))
		scales := blk[4:16]
		qh := blk[16:48]

		qi := 48
		yi := 0
		u1, u2 := byte(1), byte(2)
		for is := 0; is < 8; is += 2 {
			sc1, mn1 := scaleMinK4(is, scales)
			sc2, mn2 := scaleMinK4(is+1, scales)
			d1, m1 := d*float32(sc1), dmin*float32(mn1)
			d2, m2 := d*float32(sc2), dmin*float32(mn2)
			for l := 0; l < 32; l++ {
				v1 := int(blk[qi+l] & 0x0F)
				v2 := int(blk[qi+l] >> 4)
				if qh[l]&u1 != 0 {
					v1 += 16
				}
				if qh[l]&u2 != 0 {
					v2 += 16
				}
				y[yi+l] = d1*float32(v1) - m1
				y[yi+l+32] = d2*float32(v2) - m2
			}
			qi += 32
			yi += 64
			u1 <<= 2
			u2 <<= 2
		}
	}
}

// --- Q6_K ---

func quantizeRowQ6_K(src []float32, dst []byte) {
	nb := len(src) / qkK

	for i := 0; i < nb; i++ {
		x := src[i*qkK : (i+1)*qkK]
		out := dst[i*q6KBlock:]

		var scales [16]float32
		var maxAbs float32
		for g := 0; g < 16; g++ {
			s := groupSymmetric(x[g*16:(g+1)*16], 31)
			scales[g] = s
			if a := float32(math.Abs(float64(s))); a > maxAbs {
				maxAbs = a
			}
		}

		d := maxAbs / 127
		id := float32(0)
		if d != 0 {
			id = 1 / d
		}

		var ls [16]int
		for g := 0; g < 16; g++ {
			ls[g] = clampInt(nearestInt(scales[g]*id), -128, 127)
			out[192+g] = byte(int8(ls[g]))
		}
		binary.LittleEndian.PutUint16(out[208:], fp32ToF16(d))

		ql := out[0:128]
		qh := out[128:192]
		for j := range ql {
			ql[j] = 0
		}
		for j := range qh {
			qh[j] = 0
		}

		for n := 0; n < qkK; n += 128 {
			for l := 0; l < 32; l++ {
				var qv [4]int
				for k := 0; k < 4; k++ {
					j := n + l + k*32
					g := j / 16
					dl := d * float32(ls[g])
					q := 0
					if dl != 0 {
						q = clampInt(nearestInt(x[j]/dl), -32, 31)
					}
					qv[k] = q + 32
				}
				ql[n/2+l] |= byte(qv[0] & 0x0F)
				ql[n/2+l+32] |= byte(qv[1] & 0x0F)
				ql[n/2+l] |= byte(qv[2]&0x0F) << 4
				ql[n/2+l+32] |= byte(qv[3]&0x0F) << 4
				qh[n/4+l] = byte(qv[0]>>4) | byte(qv[1]>>4)<<2 | byte(qv[2]>>4)<<4 | byte(qv[3]>>4)<<6
			}
		}
	}
}

func dequantizeRowQ6_K(src []byte, dst []float32) {
	nb := len(dst) / qkK

	for i := 0; i < nb; i++ {
		blk := src[i*q6KBlock:]
		y := dst[i*qkK:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[208:]))

		for n := 0; n < qkK; n += 128 {
			ql := blk[n/2:]
			qh := blk[128+n/4:]
			sc := blk[192+n/16:]
			for l := 0; l < 32; l++ {
				is := l / 16
				q1 := int(ql[l]&0x0F|qh[l]>>0&3<<4) - 32
				q2 := int(ql[l+32]&0x0F|qh[l]>>2&3<<4) - 32
				q3 := int(ql[l]>>4|qh[l]>>4&3<<4) - 32
				q4 := int(ql[l+32]>>4|qh[l]>>6&3<<4) - 32
				y[n+l] = d * float32(int8(sc[is])) * float32(q1)
				y[n+l+32] = d * float32(int8(sc[is+2])) * float32(q2)
				y[n+l+64] = d * float32(int8(sc[is+4])) * float32(q3)
				y[n+l+96] = d * float32(int8(sc[is+6])) * float32(q4)
			}
		}
	}
}

// --- Q8_K ---

func quantizeRowQ8_K(src []float32, dst []byte) {
	nb := len(src) / qkK

	for i := 0; i < nb; i++ {
		x := src[i*qkK : (i+1)*qkK]
		out := dst[i*q8KBlock:]

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

		binary.LittleEndian.PutUint32(out[0:], math.Float32bits(d))
		bsums := bytesToI16(out[260:292], 16)
		for g := 0; g < 16; g++ {
			sum := 0
			for l := 0; l < 16; l++ {
				q := int8(nearestInt(x[g*16+l] * id))
				out[4+g*16+l] = byte(q)
				sum += int(q)
			}
			bsums[g] = int16(sum)
		}
	}
}

func dequantizeRowQ8_K(src []byte, dst []float32) {
	nb := len(dst) / qkK

	for i := 0; i < nb; i++ {
		blk := src[i*q8KBlock:]
		y := dst[i*qkK:]
		d := math.Float32frombits(binary.LittleEndian.Uint32(blk[0:]))

		for j := 0; j < qkK; j++ {
			y[j] = d * float32(int8(blk[4+j]))
		}
	}
}

// --- IQ4_XS ---

func quantizeRowIQ4_XS(src []float32, dst []byte) {
	nb := len(src) / qkK

	for i := 0; i < nb; i++ {
		x := src[i*qkK : (i+1)*qkK]
		out := dst[i*iq4XBlock:]

		// Gruppen-Skalen ueber das nichtlineare Codebuch
		var dls [8]float32
		var maxAbs float32
		for g := 0; g < 8; g++ {
			gx := x[g*32 : (g+1)*32]
			var amax, max float32
			for _, v := range gx {
				if a := float32(math.Abs(float64(v))); a > amax {
					amax, max = a, v
				}
			}
			dl := float32(0)
			if amax > 0 {
				if max > 0 {
					dl = max / 113
				} else {
					dl = max / -127
				}
			}
			dls[g] = dl
			if a := float32(math.Abs(float64(dl))); a > maxAbs {
				maxAbs = a
			}
		}

		d := maxAbs / 31
		id := float32(0)
		if d != 0 {
			id = 1 / d
		}

		var scalesH uint16
		for g := 0; g < 8; g++ {
			ls := clampInt(nearestInt(dls[g]*id)+32, 0, 63)
			if g%2 == 0 {
				out[4+g/2] = byte(ls & 0x0F)
			} else {
				out[4+g/2] |= byte(ls&0x0F) << 4
			}
			scalesH |= uint16(ls>>4) << (2 * g)
		}
		binary.LittleEndian.PutUint16(out[0:], fp32ToF16(d))
		binary.LittleEndian.PutUint16(out[2:], scalesH)

		for g := 0; g < 8; g++ {
			lsl := int(out[4+g/2] >> (4 * uint(g%2)) & 0x0F)
			lsh := int(scalesH >> (2 * g) & 3)
			dl := d * float32((lsl | lsh<<4) - 32)
			idl := float32(0)
			if dl != 0 {
				idl = 1 / dl
			}
			qs := out[8+g*16:]
			gx := x[g*32:]
			for j := 0; j < 16; j++ {
				q0 := iq4NLIndex(gx[j] * idl)
				q1 := iq4NLIndex(gx[j+16] * idl)
				qs[j] = byte(q0) | byte(q1)<<4
			}
		}
	}
}

func dequantizeRowIQ4_XS(src []byte, dst []float32) {
	nb := len(dst) / qkK

	for i := 0; i < nb; i++ {
		blk := src[i*iq4XBlock:]
		y := dst[i*qkK:]
		d := fp16ToF32(binary.LittleEndian.Uint16(blk[0:]))
		scalesH := binary.LittleEndian.Uint16(blk[2:])

		for g := 0; g < 8; g++ {
			lsl := int(blk[4+g/2] >> (4 * uint(g%2)) & 0x0F)
			lsh := int(scalesH >> (2 * g) & 3)
			dl := d * float32((lsl | lsh<<4) - 32)
			qs := blk[8+g*16:]
			yg := y[g*32:]
			for j := 0; j < 16; j++ {
				yg[j] = dl * float32(kvaluesIQ4NL[qs[j]&0x0F])
				yg[j+16] = dl * float32(kvaluesIQ4NL[qs[j]>>4])
			}
		}
	}
}

// --- Vec-Dot ueber den Float-Pfad ---
//
// Die K-Formate reduzieren gegen Q8_K ueber blockweise Dekodierung;
// das ist der normative skalare Pfad.

func vecDotKViaF32(ta Type, n int, a, b []byte) float32 {
	tra := ta.Traits()
	trb := TypeQ8_K.Traits()
	nb := n / qkK

	var xa, xb [qkK]float32
	var sum float32
	for i := 0; i < nb; i++ {
		tra.ToFloat(a[i*tra.TypeSize:(i+1)*tra.TypeSize], xa[:])
		trb.ToFloat(b[i*trb.TypeSize:(i+1)*trb.TypeSize], xb[:])
		sum += vecDotF32(qkK, xa[:], xb[:])
	}
	return sum
}

func vecDotQ2_KQ8_K(n int, a, b []byte) float32 { return vecDotKViaF32(TypeQ2_K, n, a, b) }
func vecDotQ3_KQ8_K(n int, a, b []byte) float32 { return vecDotKViaF32(TypeQ3_K, n, a, b) }
func vecDotQ4_KQ8_K(n int, a, b []byte) float32 { return vecDotKViaF32(TypeQ4_K, n, a, b) }
func vecDotQ5_KQ8_K(n int, a, b []byte) float32 { return vecDotKViaF32(TypeQ5_K, n, a, b) }
func vecDotQ6_KQ8_K(n int, a, b []byte) float32 { return vecDotKViaF32(TypeQ6_K, n, a, b) }
func vecDotIQ4_XSQ8_K(n int, a, b []byte) float32 {
	return vecDotKViaF32(TypeIQ4_XS, n, a, b)
}
