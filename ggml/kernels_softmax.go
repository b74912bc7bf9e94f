// kernels_softmax.go - Softmax- und Kreuzentropie-Kernels
// Enthaelt: computeSoftMax (Maske, Skala, ALiBi), computeSoftMaxBack,
// computeCrossEntropyLoss(+Back)

package ggml

import "math"

// alibiSlope liefert die ALiBi-Steigung fuer Kopf h
func alibiSlope(h int64, nHead int64, maxBias float32) float32 {
	if maxBias <= 0 {
		return 1
	}

	nHeadLog2 := int64(1) << uint(math.Floor(math.Log2(float64(nHead))))
	m0 := math.Pow(2, float64(-maxBias)/float64(nHeadLog2))
	m1 := math.Pow(2, float64(-maxBias)/2/float64(nHeadLog2))

	if h < nHeadLog2 {
		return float32(math.Pow(m0, float64(h+1)))
	}
	return float32(math.Pow(m1, float64(2*(h-nHeadLog2)+1)))
}

// maskValue liest Element i0 der Masken-Zeile (F16 oder F32)
func maskValue(mask *Tensor, i0, i1 int64) float32 {
	row := rowBytes(mask, i1, 0, 0)
	if mask.Type == TypeF16 {
		return fp16ToF32(bytesToU16(row, int(mask.Ne[0]))[i0])
	}
	return bytesToF32(row, int(mask.Ne[0]))[i0]
}

func computeSoftMax(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	mask := dst.Src[1]
	prm := opParamsOf[softMaxParams](dst)

	nHead := src0.Ne[2]
	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	var buf []float32
	if p.wdata != nil {
		buf = bytesToF32(p.threadLocal(dst.Ne[0]*4), int(dst.Ne[0]))
	} else {
		buf = make([]float32, dst.Ne[0])
	}

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		s := rowF32(src0, i1, i2, i3)
		d := rowF32(dst, i1, i2, i3)

		slope := alibiSlope(i2, nHead, prm.MaxBias)

		for i0 := range s {
			v := s[i0] * prm.Scale
			if mask != nil {
				v += slope * maskValue(mask, int64(i0), i1)
			}
			buf[i0] = v
		}

		max := vecMaxF32(len(buf), buf)
		sum := vecSoftMaxF32(len(buf), d, buf, max)
		Assert(sum > 0, "softmax: vanishing row sum")
		vecScaleF32(len(d), d, 1/sum)
	}
}

// computeSoftMaxBack: dx = y .* (dy - dot(y, dy)) je Zeile
func computeSoftMaxBack(p *computeParams, dst *Tensor) {
	dy := dst.Src[0]
	y := dst.Src[1]

	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		d := rowF32(dst, i1, i2, i3)
		gy := rowF32(dy, i1, i2, i3)
		yy := rowF32(y, i1, i2, i3)

		dot := vecDotF32(len(yy), yy, gy)
		for i := range d {
			d[i] = yy[i] * (gy[i] - dot)
		}
	}
}

// computeCrossEntropyLoss: -1/nr * sum_r sum_i b * log(softmax(a))
func computeCrossEntropyLoss(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	src1 := dst.Src[1]

	nc := int(src0.Ne[0])
	nr := src0.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	local := p.threadLocal(src0.Ne[0]*4 + 16)
	buf := bytesToF32(local, nc)

	var sum float64
	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(src0, ir)
		a := rowF32(src0, i1, i2, i3)
		b := rowF32(src1, i1, i2, i3)

		max := vecMaxF32(nc, a)
		s := vecSoftMaxF32(nc, buf, a, max)
		logSum := math.Log(float64(s))

		for i := 0; i < nc; i++ {
			sum += float64(b[i]) * (float64(a[i]-max) - logSum)
		}
	}

	// Teilsumme hinter dem Zeilenpuffer ablegen, Worker 0 reduziert
	bytesToF32(local[len(local)-16:], 1)[0] = float32(sum)
	p.tp.bar.sync(int32(p.nth))

	if p.ith == 0 {
		var total float64
		stride := pad(src0.Ne[0]*4+16, 64)
		for t := 0; t < p.nth; t++ {
			part := p.wdata[int64(t)*stride:]
			total += float64(bytesToF32(part[src0.Ne[0]*4:], 1)[0])
		}
		dst.Floats()[0] = float32(-total / float64(nr))
	}
}

// computeCrossEntropyLossBack: da = g/nr * (softmax(a) - b)
func computeCrossEntropyLossBack(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	src1 := dst.Src[1]
	g := dst.Src[2].Floats()[0]

	nc := int(src0.Ne[0])
	nr := src0.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	scale := g / float32(nr)
	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(src0, ir)
		a := rowF32(src0, i1, i2, i3)
		b := rowF32(src1, i1, i2, i3)
		d := rowF32(dst, i1, i2, i3)

		max := vecMaxF32(nc, a)
		s := vecSoftMaxF32(nc, d, a, max)
		vecScaleF32(nc, d, 1/s)

		for i := 0; i < nc; i++ {
			d[i] = (d[i] - b[i]) * scale
		}
	}
}
