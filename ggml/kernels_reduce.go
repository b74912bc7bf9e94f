// kernels_reduce.go - Reduktionen, Wiederholung, Normierung, Gather
// Enthaelt: Sum, SumRows, Mean, Argmax, CountEqual, Repeat(Back),
// Concat, Norm, RMSNorm(Back), GroupNorm, GetRows(Back), Diag,
// DiagMask*, Argsort

package ggml

import "math"

func computeSum(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	src0 := dst.Src[0]

	var sum float64
	for i3 := int64(0); i3 < src0.Ne[3]; i3++ {
		for i2 := int64(0); i2 < src0.Ne[2]; i2++ {
			for i1 := int64(0); i1 < src0.Ne[1]; i1++ {
				sum += vecSumF32F64(int(src0.Ne[0]), rowF32(src0, i1, i2, i3))
			}
		}
	}
	dst.Floats()[0] = float32(sum)
}

func computeSumRows(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	src0 := dst.Src[0]

	for i3 := int64(0); i3 < src0.Ne[3]; i3++ {
		for i2 := int64(0); i2 < src0.Ne[2]; i2++ {
			for i1 := int64(0); i1 < src0.Ne[1]; i1++ {
				row := rowF32(src0, i1, i2, i3)
				rowF32(dst, i1, i2, i3)[0] = vecSumF32(len(row), row)
			}
		}
	}
}

func computeMean(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	src0 := dst.Src[0]
	inv := 1 / float64(src0.Ne[0])

	for i3 := int64(0); i3 < src0.Ne[3]; i3++ {
		for i2 := int64(0); i2 < src0.Ne[2]; i2++ {
			for i1 := int64(0); i1 < src0.Ne[1]; i1++ {
				row := rowF32(src0, i1, i2, i3)
				rowF32(dst, i1, i2, i3)[0] = float32(vecSumF32F64(len(row), row) * inv)
			}
		}
	}
}

func computeArgmax(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	src0 := dst.Src[0]
	out := dst.Ints()

	for i1 := int64(0); i1 < src0.Ne[1]; i1++ {
		row := rowF32(src0, i1, 0, 0)
		best := 0
		for i, v := range row {
			if v > row[best] {
				best = i
			}
		}
		out[i1] = int32(best)
	}
}

func computeCountEqual(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	src1 := dst.Src[1]

	n := src0.NElements()
	c0, c1 := rowRange(n, p.ith, p.nth)

	a := bytesToI32(src0.data, int(n))
	b := bytesToI32(src1.data, int(n))

	var local int64
	for i := c0; i < c1; i++ {
		if a[i] == b[i] {
			local++
		}
	}

	// Teilsummen je Thread, Reduktion durch Worker 0 nach der Barriere
	partials := bytesToI64(p.wdata, p.nth)
	partials[p.ith] = local

	p.tp.bar.sync(int32(p.nth))

	if p.ith == 0 {
		var sum int64
		for _, v := range partials[:p.nth] {
			sum += v
		}
		bytesToI64(dst.data, 1)[0] = sum
	}
}

func computeRepeat(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	Assert(src0.CanRepeat(dst), "repeat: shapes do not tile")

	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)
	ne0 := int(dst.Ne[0])
	n0 := int(src0.Ne[0])

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		d := rowF32(dst, i1, i2, i3)
		s := rowF32(src0, i1%src0.Ne[1], i2%src0.Ne[2], i3%src0.Ne[3])
		for i0 := 0; i0 < ne0; i0++ {
			d[i0] = s[i0%n0]
		}
	}
}

func computeRepeatBack(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	src0 := dst.Src[0]
	Assert(dst.CanRepeat(src0), "repeat_back: shapes do not fold")

	// Ziel nullsetzen, dann alle Kachel-Beitraege aufsummieren
	for i3 := int64(0); i3 < dst.Ne[3]; i3++ {
		for i2 := int64(0); i2 < dst.Ne[2]; i2++ {
			for i1 := int64(0); i1 < dst.Ne[1]; i1++ {
				vecSetF32(int(dst.Ne[0]), rowF32(dst, i1, i2, i3), 0)
			}
		}
	}

	ne0 := int64(dst.Ne[0])
	for i3 := int64(0); i3 < src0.Ne[3]; i3++ {
		for i2 := int64(0); i2 < src0.Ne[2]; i2++ {
			for i1 := int64(0); i1 < src0.Ne[1]; i1++ {
				s := rowF32(src0, i1, i2, i3)
				d := rowF32(dst, i1%dst.Ne[1], i2%dst.Ne[2], i3%dst.Ne[3])
				for i0 := int64(0); i0 < src0.Ne[0]; i0++ {
					d[i0%ne0] += s[i0]
				}
			}
		}
	}
}

func computeConcat(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	src1 := dst.Src[1]
	dim := int(opParamsOf[concatParams](dst).Dim)

	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		d := rowF32(dst, i1, i2, i3)

		if dim == 0 {
			a := rowF32(src0, i1, i2, i3)
			b := rowF32(src1, i1, i2, i3)
			copy(d[:len(a)], a)
			copy(d[len(a):], b)
			continue
		}

		idx := [MaxDims]int64{0, i1, i2, i3}
		if idx[dim] < src0.Ne[dim] {
			copy(d, rowF32(src0, i1, i2, i3))
		} else {
			j := idx
			j[dim] -= src0.Ne[dim]
			copy(d, rowF32(src1, j[1], j[2], j[3]))
		}
	}
}

func computeNorm(p *computeParams, dst *Tensor) {
	eps := opParamsOf[normParams](dst).Eps
	unaryRowKernel(p, dst, func(d, a []float32) {
		n := len(a)
		mean := vecSumF32F64(n, a) / float64(n)

		var sum2 float64
		for i := range a {
			v := float64(a[i]) - mean
			d[i] = float32(v)
			sum2 += v * v
		}

		scale := float32(1 / math.Sqrt(sum2/float64(n)+float64(eps)))
		vecScaleF32(n, d, scale)
	})
}

func computeRMSNorm(p *computeParams, dst *Tensor) {
	eps := opParamsOf[normParams](dst).Eps
	unaryRowKernel(p, dst, func(d, a []float32) {
		n := len(a)
		var sum2 float64
		for _, v := range a {
			sum2 += float64(v) * float64(v)
		}

		scale := float32(1 / math.Sqrt(sum2/float64(n)+float64(eps)))
		for i := range a {
			d[i] = a[i] * scale
		}
	})
}

// computeRMSNormBack: dx = (dy - x*dot(x,dy)/(n*(ss+eps))) / sqrt(ss+eps)
// mit ss = mean(x^2); geschlossene Form ueber das laufende zweite Moment
func computeRMSNormBack(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0] // x
	src1 := dst.Src[1] // dy
	eps := float64(opParamsOf[normParams](dst).Eps)

	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		d := rowF32(dst, i1, i2, i3)
		x := rowF32(src0, i1, i2, i3)
		dy := rowF32(src1, i1, i2, i3)
		n := len(x)

		var ss, xdy float64
		for i := range x {
			ss += float64(x[i]) * float64(x[i])
			xdy += float64(x[i]) * float64(dy[i])
		}
		ss = ss/float64(n) + eps
		rrms := 1 / math.Sqrt(ss)

		k := xdy / float64(n) / ss
		for i := range x {
			d[i] = float32(rrms * (float64(dy[i]) - float64(x[i])*k))
		}
	}
}

func computeGroupNorm(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	prm := opParamsOf[groupNormParams](dst)
	nGroups := int64(prm.NGroups)
	eps := float64(prm.Eps)

	channelsPerGroup := (src0.Ne[2] + nGroups - 1) / nGroups

	g0, g1 := rowRange(nGroups, p.ith, p.nth)
	for i3 := int64(0); i3 < src0.Ne[3]; i3++ {
		for g := g0; g < g1; g++ {
			cStart := g * channelsPerGroup
			cEnd := cStart + channelsPerGroup
			if cEnd > src0.Ne[2] {
				cEnd = src0.Ne[2]
			}

			var sum float64
			var count int64
			for c := cStart; c < cEnd; c++ {
				for i1 := int64(0); i1 < src0.Ne[1]; i1++ {
					sum += vecSumF32F64(int(src0.Ne[0]), rowF32(src0, i1, c, i3))
					count += src0.Ne[0]
				}
			}
			mean := sum / float64(count)

			var sum2 float64
			for c := cStart; c < cEnd; c++ {
				for i1 := int64(0); i1 < src0.Ne[1]; i1++ {
					s := rowF32(src0, i1, c, i3)
					d := rowF32(dst, i1, c, i3)
					for i := range s {
						v := float64(s[i]) - mean
						d[i] = float32(v)
						sum2 += v * v
					}
				}
			}

			scale := float32(1 / math.Sqrt(sum2/float64(count)+eps))
			for c := cStart; c < cEnd; c++ {
				for i1 := int64(0); i1 < src0.Ne[1]; i1++ {
					vecScaleF32(int(dst.Ne[0]), rowF32(dst, i1, c, i3), scale)
				}
			}
		}
	}
}

func computeGetRows(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	src1 := dst.Src[1]
	tr := src0.Type.Traits()

	nr := src1.NElements()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)
	nc := src0.Ne[0]

	for i := ir0; i < ir1; i++ {
		i10 := i % src1.Ne[0]
		i11 := (i / src1.Ne[0]) % src1.Ne[1]
		i12 := i / (src1.Ne[0] * src1.Ne[1])

		rowIdx := int64(bytesToI32(rowBytes(src1, i11, i12, 0), int(src1.Ne[0]))[i10])
		Assertf(rowIdx >= 0 && rowIdx < src0.Ne[1], "get_rows: index %d out of range [0,%d)", rowIdx, src0.Ne[1])

		srcRow := rowBytes(src0, rowIdx, i11, i12)
		dstRow := rowBytes(dst, i10, i11, i12)

		switch {
		case src0.Type.IsQuantized():
			Assertf(tr.ToFloat != nil, "get_rows: no decoder for %s", tr.Name)
			tr.ToFloat(srcRow[:RowSize(src0.Type, nc)], bytesToF32(dstRow, int(nc)))
		case src0.Type == dst.Type:
			copy(dstRow[:RowSize(src0.Type, nc)], srcRow)
		case src0.Type == TypeF16:
			fp16RowToF32(srcRow, bytesToF32(dstRow, int(nc)))
		case src0.Type == TypeBF16:
			bf16RowToF32(srcRow, bytesToF32(dstRow, int(nc)))
		default:
			Assertf(false, "get_rows: unsupported source type %s", src0.Type)
		}
	}
}

func computeGetRowsBack(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	src0 := dst.Src[0]
	src1 := dst.Src[1]

	clear(dst.data[:dst.NBytes()])

	for i := int64(0); i < src1.Ne[0]; i++ {
		rowIdx := int64(src1.Ints()[i])
		d := rowF32(dst, rowIdx, 0, 0)
		s := rowF32(src0, i, 0, 0)
		vecMadF32(len(s), d, s, 1)
	}
}

func computeDiag(p *computeParams, dst *Tensor) {
	if p.ith != 0 {
		return
	}
	src0 := dst.Src[0]

	for i3 := int64(0); i3 < dst.Ne[3]; i3++ {
		for i2 := int64(0); i2 < dst.Ne[2]; i2++ {
			s := rowF32(src0, 0, i2, i3)
			for i1 := int64(0); i1 < dst.Ne[1]; i1++ {
				d := rowF32(dst, i1, i2, i3)
				for i0 := range d {
					d[i0] = 0
				}
				d[i1] = s[i1]
			}
		}
	}
}

func diagMaskKernel(p *computeParams, dst *Tensor, value float32) {
	if p.ith != 0 {
		return
	}
	src0 := dst.Src[0]
	nPast := int64(opParamsOf[diagMaskParams](dst).NPast)

	// in-place Sicht auf src0
	for i3 := int64(0); i3 < src0.Ne[3]; i3++ {
		for i2 := int64(0); i2 < src0.Ne[2]; i2++ {
			for i1 := int64(0); i1 < src0.Ne[1]; i1++ {
				d := rowF32(dst, i1, i2, i3)
				s := rowF32(src0, i1, i2, i3)
				copy(d, s)
				for i0 := nPast + i1 + 1; i0 < dst.Ne[0]; i0++ {
					d[i0] = value
				}
			}
		}
	}
}

func computeDiagMaskInf(p *computeParams, dst *Tensor) {
	diagMaskKernel(p, dst, float32(math.Inf(-1)))
}

func computeDiagMaskZero(p *computeParams, dst *Tensor) {
	diagMaskKernel(p, dst, 0)
}

// computeArgsort: stabile Sortierung per Einfuege-Verfahren; O(n^2)
// ist fuer kleine Koepfe/Top-k beabsichtigt
func computeArgsort(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	order := opParamsOf[argsortParams](dst).Order

	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		row := rowF32(src0, i1, i2, i3)
		idx := bytesToI32(rowBytes(dst, i1, i2, i3), int(dst.Ne[0]))

		for i := range idx {
			idx[i] = int32(i)
		}
		for i := 1; i < len(idx); i++ {
			for j := i; j > 0; j-- {
				a, b := row[idx[j-1]], row[idx[j]]
				swap := false
				if order == SortAsc {
					swap = a > b
				} else {
					swap = a < b
				}
				if !swap {
					break
				}
				idx[j-1], idx[j] = idx[j], idx[j-1]
			}
		}
	}
}
