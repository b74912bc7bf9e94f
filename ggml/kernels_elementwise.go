// kernels_elementwise.go - Elementweise Kernels mit Broadcast
// Enthaelt: Dup/Cpy, Add, Add1, Acc, Sub, Mul, Div, Sqr, Sqrt, Log,
// Sin, Cos, Scale, Clamp, LeakyRelu, Unary, SiluBack
//
// Broadcast-Regel: hat eine Quelle in einer Dimension weniger Elemente,
// muss deren Anzahl die der Ziel-Dimension teilen; der Index wird
// modulo gelesen.

package ggml

import "math"

// binaryRowKernel wendet fn zeilenweise mit Broadcast von src1 an
func binaryRowKernel(p *computeParams, dst *Tensor, fn func(d, a []float32, b *Tensor, i1, i2, i3 int64)) {
	src0 := dst.Src[0]
	src1 := dst.Src[1]

	Assert(src0.Type == TypeF32 && src1.Type == TypeF32 && dst.Type == TypeF32, "elementwise kernels are f32")
	Assert(dst.SameShape(src0), "elementwise: dst must match src0")

	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		d := rowF32(dst, i1, i2, i3)
		a := rowF32(src0, i1, i2, i3)
		fn(d, a, src1, i1, i2, i3)
	}
}

// broadcastRow holt die Broadcast-Zeile von src fuer die Ziel-Indizes
func broadcastRow(src *Tensor, i1, i2, i3 int64) []float32 {
	return rowF32(src, i1%src.Ne[1], i2%src.Ne[2], i3%src.Ne[3])
}

func computeAdd(p *computeParams, dst *Tensor) {
	binaryRowKernel(p, dst, func(d, a []float32, src1 *Tensor, i1, i2, i3 int64) {
		b := broadcastRow(src1, i1, i2, i3)
		nb := int64(len(b))
		for i0 := range d {
			d[i0] = a[i0] + b[int64(i0)%nb]
		}
	})
}

func computeSub(p *computeParams, dst *Tensor) {
	binaryRowKernel(p, dst, func(d, a []float32, src1 *Tensor, i1, i2, i3 int64) {
		b := broadcastRow(src1, i1, i2, i3)
		nb := int64(len(b))
		for i0 := range d {
			d[i0] = a[i0] - b[int64(i0)%nb]
		}
	})
}

func computeMul(p *computeParams, dst *Tensor) {
	binaryRowKernel(p, dst, func(d, a []float32, src1 *Tensor, i1, i2, i3 int64) {
		b := broadcastRow(src1, i1, i2, i3)
		nb := int64(len(b))
		for i0 := range d {
			d[i0] = a[i0] * b[int64(i0)%nb]
		}
	})
}

func computeDiv(p *computeParams, dst *Tensor) {
	binaryRowKernel(p, dst, func(d, a []float32, src1 *Tensor, i1, i2, i3 int64) {
		b := broadcastRow(src1, i1, i2, i3)
		nb := int64(len(b))
		for i0 := range d {
			d[i0] = a[i0] / b[int64(i0)%nb]
		}
	})
}

func computeAdd1(p *computeParams, dst *Tensor) {
	v := dst.Src[1].F32At(0)
	binaryRowKernel(p, dst, func(d, a []float32, _ *Tensor, _, _, _ int64) {
		for i0 := range d {
			d[i0] = a[i0] + v
		}
	})
}

// unaryRowKernel wendet fn zeilenweise an (dst formgleich zu src0)
func unaryRowKernel(p *computeParams, dst *Tensor, fn func(d, a []float32)) {
	src0 := dst.Src[0]
	Assert(src0.Type == TypeF32 && dst.Type == TypeF32, "unary kernels are f32")

	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		fn(rowF32(dst, i1, i2, i3), rowF32(src0, i1, i2, i3))
	}
}

func computeSqr(p *computeParams, dst *Tensor) {
	unaryRowKernel(p, dst, func(d, a []float32) {
		for i := range d {
			d[i] = a[i] * a[i]
		}
	})
}

func computeSqrt(p *computeParams, dst *Tensor) {
	unaryRowKernel(p, dst, func(d, a []float32) {
		for i := range d {
			d[i] = float32(math.Sqrt(float64(a[i])))
		}
	})
}

func computeLog(p *computeParams, dst *Tensor) {
	unaryRowKernel(p, dst, func(d, a []float32) {
		for i := range d {
			d[i] = float32(math.Log(float64(a[i])))
		}
	})
}

func computeSin(p *computeParams, dst *Tensor) {
	unaryRowKernel(p, dst, func(d, a []float32) {
		for i := range d {
			d[i] = float32(math.Sin(float64(a[i])))
		}
	})
}

func computeCos(p *computeParams, dst *Tensor) {
	unaryRowKernel(p, dst, func(d, a []float32) {
		for i := range d {
			d[i] = float32(math.Cos(float64(a[i])))
		}
	})
}

func computeScale(p *computeParams, dst *Tensor) {
	s := opParamsOf[scaleParams](dst).Scale
	unaryRowKernel(p, dst, func(d, a []float32) {
		for i := range d {
			d[i] = a[i] * s
		}
	})
}

func computeClamp(p *computeParams, dst *Tensor) {
	prm := opParamsOf[clampParams](dst)
	unaryRowKernel(p, dst, func(d, a []float32) {
		for i := range d {
			v := a[i]
			if v < prm.Min {
				v = prm.Min
			}
			if v > prm.Max {
				v = prm.Max
			}
			d[i] = v
		}
	})
}

func computeLeakyRelu(p *computeParams, dst *Tensor) {
	slope := opParamsOf[leakyReluParams](dst).NegSlope
	unaryRowKernel(p, dst, func(d, a []float32) {
		for i := range d {
			if a[i] > 0 {
				d[i] = a[i]
			} else {
				d[i] = slope * a[i]
			}
		}
	})
}

func computeUnary(p *computeParams, dst *Tensor) {
	op := opParamsOf[unaryParams](dst).Op

	var f func(float32) float32
	switch op {
	case UnaryAbs:
		f = func(x float32) float32 { return float32(math.Abs(float64(x))) }
	case UnarySgn:
		f = func(x float32) float32 {
			switch {
			case x > 0:
				return 1
			case x < 0:
				return -1
			}
			return 0
		}
	case UnaryNeg:
		f = func(x float32) float32 { return -x }
	case UnaryStep:
		f = func(x float32) float32 {
			if x > 0 {
				return 1
			}
			return 0
		}
	case UnaryTanh:
		f = func(x float32) float32 { return float32(math.Tanh(float64(x))) }
	case UnaryElu:
		f = func(x float32) float32 {
			if x > 0 {
				return x
			}
			return float32(math.Expm1(float64(x)))
		}
	case UnaryRelu:
		f = func(x float32) float32 {
			if x > 0 {
				return x
			}
			return 0
		}
	case UnarySigmoid:
		f = sigmoid
	case UnaryGelu:
		f = gelu
	case UnaryGeluQuick:
		f = geluQuick
	case UnarySilu:
		f = silu
	case UnaryHardswish:
		f = func(x float32) float32 {
			h := (x + 3) / 6
			if h < 0 {
				h = 0
			}
			if h > 1 {
				h = 1
			}
			return x * h
		}
	case UnaryHardsigmoid:
		f = func(x float32) float32 {
			h := (x + 3) / 6
			if h < 0 {
				h = 0
			}
			if h > 1 {
				h = 1
			}
			return h
		}
	case UnaryExp:
		f = func(x float32) float32 { return float32(math.Exp(float64(x))) }
	default:
		Assertf(false, "unary kernel %s not implemented", op)
	}

	unaryRowKernel(p, dst, func(d, a []float32) {
		for i := range d {
			d[i] = f(a[i])
		}
	})
}

func computeSiluBack(p *computeParams, dst *Tensor) {
	src1 := dst.Src[1]
	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		d := rowF32(dst, i1, i2, i3)
		x := rowF32(dst.Src[0], i1, i2, i3)
		dy := rowF32(src1, i1, i2, i3)
		vecSiluBackwardF32(len(d), d, x, dy)
	}
}

// computeDup kopiert src0 elementweise in die zusammenhaengende Form
func computeDup(p *computeParams, dst *Tensor) {
	computeCpy(p, dst)
}

// computeCpy schreibt src0 in Form und Typ von dst (auch quantisiert)
func computeCpy(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	Assertf(src0.NElements() == dst.NElements(), "cpy: element count mismatch")

	// schneller Pfad: gleiche Typen, beide zusammenhaengend
	if src0.Type == dst.Type && src0.IsContiguous() && dst.IsContiguous() {
		n := dst.NBytes()
		c0, c1 := rowRange(n, p.ith, p.nth)
		copy(dst.data[c0:c1], src0.data[c0:c1])
		return
	}

	Assert(src0.Type == TypeF32, "cpy: conversions start from f32")
	Assert(dst.IsContiguous(), "cpy: destination must be contiguous")

	tr := dst.Type.Traits()
	Assertf(tr.FromFloat != nil || dst.Type == TypeF32, "cpy: no encoder for %s", tr.Name)

	nr := src0.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)
	ne0 := src0.Ne[0]
	rowSize := RowSize(dst.Type, ne0)

	var rowBuf []float32
	if p.wdata != nil {
		rowBuf = bytesToF32(p.threadLocal(ne0*4), int(ne0))
	} else {
		rowBuf = make([]float32, ne0)
	}

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(src0, ir)

		// Quellzeile ueber Strides einsammeln (Views, Transponate)
		for i0 := int64(0); i0 < ne0; i0++ {
			rowBuf[i0] = elemF32(src0, i0, i1, i2, i3)
		}

		out := dst.data[ir*rowSize:]
		if dst.Type == TypeF32 {
			copy(bytesToF32(out, int(ne0)), rowBuf)
		} else {
			tr.FromFloat(rowBuf, out[:rowSize])
		}
	}
}

// computeSet kopiert a und schreibt b an die parametrisierte Stelle
func computeSet(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	src1 := dst.Src[1]
	prm := opParamsOf[setParams](dst)

	if !prm.Inplace {
		// Worker 0 kopiert die Basis vor der Barriere
		if p.ith == 0 {
			copy(dst.data[:dst.NBytes()], src0.data[:src0.NBytes()])
		}
		p.tp.bar.sync(int32(p.nth))
	}

	view := Tensor{
		Type: dst.Type,
		Ne:   src1.Ne,
		Nb:   [MaxDims]int64{dst.Nb[0], prm.Nb1, prm.Nb2, prm.Nb3},
		data: dst.data[prm.Offset:],
	}

	nr := src1.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)
	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(src1, ir)
		copy(rowF32(&view, i1, i2, i3), rowF32(src1, i1, i2, i3))
	}
}

// computeAcc kopiert a und akkumuliert b an der parametrisierten Stelle
func computeAcc(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	src1 := dst.Src[1]
	prm := opParamsOf[setParams](dst)

	if !prm.Inplace {
		if p.ith == 0 {
			copy(dst.data[:dst.NBytes()], src0.data[:src0.NBytes()])
		}
		p.tp.bar.sync(int32(p.nth))
	}

	view := Tensor{
		Type: dst.Type,
		Ne:   src1.Ne,
		Nb:   [MaxDims]int64{dst.Nb[0], prm.Nb1, prm.Nb2, prm.Nb3},
		data: dst.data[prm.Offset:],
	}

	nr := src1.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)
	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(src1, ir)
		d := rowF32(&view, i1, i2, i3)
		s := rowF32(src1, i1, i2, i3)
		vecMadF32(len(s), d, s, 1)
	}
}
