// kernels_conv.go - Faltungs-, Pooling- und Generator-Kernels
// Enthaelt: computeIm2Col, computeConvTranspose1D/2D, computePool1D/2D,
// computePool2DBack, computeUpscale, computePad, computeArange,
// computeTimestepEmbedding

package ggml

import (
	"encoding/binary"
	"math"
)

func computeIm2Col(p *computeParams, dst *Tensor) {
	a := dst.Src[0] // Kernel
	b := dst.Src[1] // Bild
	prm := opParamsOf[im2colParams](dst)

	toF16 := dst.Type == TypeF16

	writeVal := func(out []byte, idx int64, v float32) {
		if toF16 {
			binary.LittleEndian.PutUint16(out[idx*2:], fp32ToF16(v))
		} else {
			bytesToF32(out, int(idx+1))[idx] = v
		}
	}

	if !prm.Is2D {
		kw := a.Ne[0]
		ic := b.Ne[1]
		ow := dst.Ne[1]
		batch := b.Ne[2]

		r0, r1 := rowRange(ow*batch, p.ith, p.nth)
		for r := r0; r < r1; r++ {
			iow := r % ow
			in := r / ow
			out := rowBytes(dst, iow, in, 0)

			for iic := int64(0); iic < ic; iic++ {
				src := rowF32(b, iic, in, 0)
				for ikw := int64(0); ikw < kw; ikw++ {
					iiw := iow*int64(prm.S0) + ikw*int64(prm.D0) - int64(prm.P0)
					v := float32(0)
					if iiw >= 0 && iiw < b.Ne[0] {
						v = src[iiw]
					}
					writeVal(out, iic*kw+ikw, v)
				}
			}
		}
		return
	}

	kw, kh := a.Ne[0], a.Ne[1]
	ic := b.Ne[2]
	ow, oh := dst.Ne[1], dst.Ne[2]
	batch := b.Ne[3]

	r0, r1 := rowRange(ow*oh*batch, p.ith, p.nth)
	for r := r0; r < r1; r++ {
		iow := r % ow
		ioh := (r / ow) % oh
		in := r / (ow * oh)
		out := rowBytes(dst, iow, ioh, in)

		for iic := int64(0); iic < ic; iic++ {
			for ikh := int64(0); ikh < kh; ikh++ {
				iih := ioh*int64(prm.S1) + ikh*int64(prm.D1) - int64(prm.P1)
				for ikw := int64(0); ikw < kw; ikw++ {
					iiw := iow*int64(prm.S0) + ikw*int64(prm.D0) - int64(prm.P0)
					v := float32(0)
					if iih >= 0 && iih < b.Ne[1] && iiw >= 0 && iiw < b.Ne[0] {
						v = elemF32(b, iiw, iih, iic, in)
					}
					writeVal(out, iic*kw*kh+ikh*kw+ikw, v)
				}
			}
		}
	}
}

func computeConvTranspose1D(p *computeParams, dst *Tensor) {
	a := dst.Src[0] // [kw, oc, ic]
	b := dst.Src[1] // [n, ic, 1]
	s0 := int64(opParamsOf[convTranspose1DParams](dst).S0)

	oc := dst.Ne[1]
	o0, o1 := rowRange(oc, p.ith, p.nth)

	for io := o0; io < o1; io++ {
		out := rowF32(dst, io, 0, 0)
		vecSetF32(len(out), out, 0)

		for iic := int64(0); iic < b.Ne[1]; iic++ {
			in := rowF32(b, iic, 0, 0)
			kernel := rowF32(a, io, iic, 0)
			for j := int64(0); j < b.Ne[0]; j++ {
				v := in[j]
				base := j * s0
				for k := int64(0); k < a.Ne[0]; k++ {
					out[base+k] += v * kernel[k]
				}
			}
		}
	}
}

func computeConvTranspose2D(p *computeParams, dst *Tensor) {
	a := dst.Src[0] // [kw, kh, oc, ic]
	b := dst.Src[1] // [w, h, ic, n]
	stride := int64(opParamsOf[convTranspose2DParams](dst).Stride)

	oc := dst.Ne[2]
	o0, o1 := rowRange(oc, p.ith, p.nth)

	for in := int64(0); in < dst.Ne[3]; in++ {
		for io := o0; io < o1; io++ {
			// Kanal-Ebene nullsetzen
			for ih := int64(0); ih < dst.Ne[1]; ih++ {
				vecSetF32(int(dst.Ne[0]), rowF32(dst, ih, io, in), 0)
			}

			for iic := int64(0); iic < b.Ne[2]; iic++ {
				for jh := int64(0); jh < b.Ne[1]; jh++ {
					for jw := int64(0); jw < b.Ne[0]; jw++ {
						v := elemF32(b, jw, jh, iic, in)
						for kh := int64(0); kh < a.Ne[1]; kh++ {
							out := rowF32(dst, jh*stride+kh, io, in)
							for kw := int64(0); kw < a.Ne[0]; kw++ {
								out[jw*stride+kw] += v * elemF32(a, kw, kh, io, iic)
							}
						}
					}
				}
			}
		}
	}
}

// poolWindow1D faltet ein Fenster gemaess PoolOp
func poolWindow1D(row []float32, start, k int64, op PoolOp) float32 {
	switch op {
	case PoolMax:
		best := float32(math.Inf(-1))
		for i := start; i < start+k; i++ {
			if i >= 0 && i < int64(len(row)) && row[i] > best {
				best = row[i]
			}
		}
		return best
	default:
		var sum float32
		for i := start; i < start+k; i++ {
			if i >= 0 && i < int64(len(row)) {
				sum += row[i]
			}
		}
		return sum / float32(k)
	}
}

func computePool1D(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	src0 := dst.Src[0]
	prm := opParamsOf[poolParams](dst)

	for i2 := int64(0); i2 < dst.Ne[2]; i2++ {
		for i1 := int64(0); i1 < dst.Ne[1]; i1++ {
			in := rowF32(src0, i1, i2, 0)
			out := rowF32(dst, i1, i2, 0)
			for i0 := range out {
				start := int64(i0)*int64(prm.S0) - int64(prm.P0)
				out[i0] = poolWindow1D(in, start, int64(prm.K0), prm.Op)
			}
		}
	}
}

func computePool2D(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	src0 := dst.Src[0]
	prm := opParamsOf[poolParams](dst)

	for i3 := int64(0); i3 < dst.Ne[3]; i3++ {
		for i2 := int64(0); i2 < dst.Ne[2]; i2++ {
			for oh := int64(0); oh < dst.Ne[1]; oh++ {
				out := rowF32(dst, oh, i2, i3)
				for ow := range out {
					h0 := oh*int64(prm.S1) - int64(prm.P1)
					w0 := int64(ow)*int64(prm.S0) - int64(prm.P0)

					acc := float32(math.Inf(-1))
					if prm.Op == PoolAvg {
						acc = 0
					}
					for kh := int64(0); kh < int64(prm.K1); kh++ {
						ih := h0 + kh
						if ih < 0 || ih >= src0.Ne[1] {
							continue
						}
						in := rowF32(src0, ih, i2, i3)
						for kw := int64(0); kw < int64(prm.K0); kw++ {
							iw := w0 + kw
							if iw < 0 || iw >= src0.Ne[0] {
								continue
							}
							if prm.Op == PoolMax {
								if in[iw] > acc {
									acc = in[iw]
								}
							} else {
								acc += in[iw]
							}
						}
					}
					if prm.Op == PoolAvg {
						acc /= float32(prm.K0 * prm.K1)
					}
					out[ow] = acc
				}
			}
		}
	}
}

// computePool2DBack: AVG verteilt gleichmaessig, MAX streut auf das
// Argmax-Element des Fensters
func computePool2DBack(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	grad := dst.Src[0] // Gradienten der Pool-Ausgabe
	orig := dst.Src[1] // urspruengliche Pool-Eingabe
	prm := opParamsOf[poolParams](dst)

	clear(dst.data[:dst.NBytes()])

	for i3 := int64(0); i3 < grad.Ne[3]; i3++ {
		for i2 := int64(0); i2 < grad.Ne[2]; i2++ {
			for oh := int64(0); oh < grad.Ne[1]; oh++ {
				gRow := rowF32(grad, oh, i2, i3)
				for ow := range gRow {
					g := gRow[ow]
					h0 := oh*int64(prm.S1) - int64(prm.P1)
					w0 := int64(ow)*int64(prm.S0) - int64(prm.P0)

					if prm.Op == PoolAvg {
						share := g / float32(prm.K0*prm.K1)
						for kh := int64(0); kh < int64(prm.K1); kh++ {
							ih := h0 + kh
							if ih < 0 || ih >= dst.Ne[1] {
								continue
							}
							d := rowF32(dst, ih, i2, i3)
							for kw := int64(0); kw < int64(prm.K0); kw++ {
								iw := w0 + kw
								if iw >= 0 && iw < dst.Ne[0] {
									d[iw] += share
								}
							}
						}
						continue
					}

					// MAX: Position des Fenster-Maximums suchen
					bestH, bestW := int64(-1), int64(-1)
					best := float32(math.Inf(-1))
					for kh := int64(0); kh < int64(prm.K1); kh++ {
						ih := h0 + kh
						if ih < 0 || ih >= orig.Ne[1] {
							continue
						}
						in := rowF32(orig, ih, i2, i3)
						for kw := int64(0); kw < int64(prm.K0); kw++ {
							iw := w0 + kw
							if iw >= 0 && iw < orig.Ne[0] && in[iw] > best {
								best, bestH, bestW = in[iw], ih, iw
							}
						}
					}
					if bestH >= 0 {
						rowF32(dst, bestH, i2, i3)[bestW] += g
					}
				}
			}
		}
	}
}

func computeUpscale(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	sf0 := dst.Ne[0] / src0.Ne[0]
	sf1 := dst.Ne[1] / src0.Ne[1]

	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)
	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		d := rowF32(dst, i1, i2, i3)
		s := rowF32(src0, i1/sf1, i2, i3)
		for i0 := range d {
			d[i0] = s[int64(i0)/sf0]
		}
	}
}

func computePad(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]

	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)
	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		d := rowF32(dst, i1, i2, i3)
		if i1 >= src0.Ne[1] || i2 >= src0.Ne[2] || i3 >= src0.Ne[3] {
			vecSetF32(len(d), d, 0)
			continue
		}
		s := rowF32(src0, i1, i2, i3)
		copy(d, s)
		vecSetF32(len(d)-len(s), d[len(s):], 0)
	}
}

func computeArange(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	prm := opParamsOf[arangeParams](dst)
	d := dst.Floats()
	for i := range d {
		d[i] = prm.Start + float32(i)*prm.Step
	}
}

func computeTimestepEmbedding(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	prm := opParamsOf[timestepParams](dst)
	half := int64(prm.Dim) / 2

	ts := src0.Floats()
	r0, r1 := rowRange(int64(len(ts)), p.ith, p.nth)

	for i := r0; i < r1; i++ {
		d := rowF32(dst, i, 0, 0)
		for j := int64(0); j < half; j++ {
			freq := float32(math.Exp(-math.Log(float64(prm.MaxPeriod)) * float64(j) / float64(half)))
			arg := ts[i] * freq
			d[j] = float32(math.Cos(float64(arg)))
			d[j+half] = float32(math.Sin(float64(arg)))
		}
		if prm.Dim%2 != 0 {
			d[int64(prm.Dim)] = 0
		}
	}
}
