// kernels_attn.go - Fusionierte Attention mit Online-Softmax
// Enthaelt: computeFlashAttnExt
//
// Je Ausgabezeile (Batch, Kopf, Query) laeuft ein Scan ueber die
// Schluessel-Achse mit laufendem (M, S, V)-Zustand; optional wirken
// skalare Maske, ALiBi-Steigung und Logit-Softcap
// s <- softcap*tanh(s/softcap).

package ggml

import "math"

// attnRowF32 holt Zeile (i1, i2, i3) als float32 (F16/BF16/F32-Quellen)
func attnRowF32(t *Tensor, buf []float32, i1, i2, i3 int64) []float32 {
	row := rowBytes(t, i1, i2, i3)
	n := int(t.Ne[0])
	switch t.Type {
	case TypeF32:
		return bytesToF32(row, n)
	case TypeF16:
		fp16RowToF32(row, buf[:n])
		return buf[:n]
	case TypeBF16:
		bf16RowToF32(row, buf[:n])
		return buf[:n]
	}
	Assertf(false, "flash_attn: unsupported type %s", t.Type)
	return nil
}

func computeFlashAttnExt(p *computeParams, dst *Tensor) {
	q := dst.Src[0]
	k := dst.Src[1]
	v := dst.Src[2]
	mask := dst.Src[3]
	prm := opParamsOf[flashAttnParams](dst)

	dq := q.Ne[0]
	dv := v.Ne[0]
	nKV := k.Ne[1]
	nHead := q.Ne[2]
	rk := nHead / k.Ne[2]

	dMax := dq
	if dv > dMax {
		dMax = dv
	}

	local := bytesToF32(p.threadLocal(3*dMax*4), int(3*dMax))
	kBuf := local[:dMax]
	vBuf := local[dMax : 2*dMax]
	acc := local[2*dMax : 2*dMax+dv]

	// Zeilen: (Query n, Kopf h, Batch b)
	nr := q.Ne[1] * nHead * q.Ne[3]
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	for ir := ir0; ir < ir1; ir++ {
		iq1 := ir % q.Ne[1]          // Query-Position
		ih := (ir / q.Ne[1]) % nHead // Kopf
		ib := ir / (q.Ne[1] * nHead) // Batch

		ikh := ih / rk
		slope := alibiSlope(ih, nHead, prm.MaxBias)

		qRow := rowF32(q, iq1, ih, ib)

		vecSetF32(int(dv), acc, 0)
		runningMax := float32(math.Inf(-1))
		runningSum := float32(0)

		for m := int64(0); m < nKV; m++ {
			if mask != nil {
				mv := maskValue(mask, m, iq1)
				if math.IsInf(float64(mv), -1) {
					continue
				}
			}

			kRow := attnRowF32(k, kBuf, m, ikh, ib)
			s := vecDotF32(int(dq), qRow, kRow) * prm.Scale

			if prm.LogitSoftcap > 0 {
				s = prm.LogitSoftcap * float32(math.Tanh(float64(s/prm.LogitSoftcap)))
			}
			if mask != nil {
				s += slope * maskValue(mask, m, iq1)
			}

			vRow := attnRowF32(v, vBuf, m, ikh, ib)

			if s > runningMax {
				// alten Zustand auf das neue Maximum umskalieren
				factor := float32(math.Exp(float64(runningMax - s)))
				vecScaleF32(int(dv), acc, factor)
				runningSum *= factor
				runningMax = s
			}

			w := float32(math.Exp(float64(s - runningMax)))
			vecMadF32(int(dv), acc, vRow, w)
			runningSum += w
		}

		// dst: [Dv, H, N, B]
		out := rowF32(dst, ih, iq1, ib)
		if runningSum > 0 {
			inv := 1 / runningSum
			for i := int64(0); i < dv; i++ {
				out[i] = acc[i] * inv
			}
		} else {
			vecSetF32(int(dv), out, 0)
		}
	}
}
