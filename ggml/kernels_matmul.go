// kernels_matmul.go - Matrixprodukt-Kernels
// Enthaelt: computeMulMat (Chunk-Stealing, Quantisierungs-Vorlauf),
// computeMulMatID (Experten-Auswahl), computeOutProd
//
// dst = a^T * b als gebatchte 4-D-Kontraktion. Bei gemischten Typen
// (a quantisiert, b f32) materialisiert ein Vorlauf b im Partnertyp des
// Vec-Dot in wdata. Die Arbeit ist in 16x16-Chunks ueber Ziel-Zeilen
// und -Spalten aufgeteilt; fertige Threads holen sich weitere Chunks
// per fetch-add auf CurrentChunk.

package ggml

// matmulChunk ist die Kantenlaenge der Arbeits-Chunks
const matmulChunk = 16

// convertSrc1 materialisiert die Zeilen von src1 im Partnertyp in wdata
// und liefert Zeilengroesse und Puffer
func convertSrc1(p *computeParams, src1 *Tensor, vdt Type) ([]byte, int64) {
	rowSize := RowSize(vdt, src1.Ne[0])
	total := src1.NRows()
	need := rowSize * total
	Assertf(p.wsize >= need, "mul_mat: work buffer too small: %d < %d", p.wsize, need)

	tr := vdt.Traits()
	ir0, ir1 := rowRange(total, p.ith, p.nth)
	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(src1, ir)
		tr.FromFloat(rowF32(src1, i1, i2, i3), p.wdata[ir*rowSize:(ir+1)*rowSize])
	}
	return p.wdata, rowSize
}

func computeMulMat(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	src1 := dst.Src[1]

	tr := src0.Type.Traits()
	Assertf(tr.VecDot != nil, "mul_mat: no vec_dot for %s", tr.Name)
	Assert(src1.Type == TypeF32 || src1.Type == tr.VecDotType, "mul_mat: b must be f32 or the partner type")

	k := src0.Ne[0]
	nr0 := dst.Ne[0]           // Zeilen von a
	nr1 := dst.NRows()         // Spalten x Batches
	r2 := src1.Ne[2] / src0.Ne[2]
	r3 := src1.Ne[3] / src0.Ne[3]

	// Vorlauf: b in den Partnertyp bringen
	var bData []byte
	var bRowSize int64
	fromWdata := src1.Type != tr.VecDotType
	if fromWdata {
		bData, bRowSize = convertSrc1(p, src1, tr.VecDotType)
	} else {
		bRowSize = RowSize(src1.Type, src1.Ne[0])
	}

	if p.ith == 0 {
		// Stealing-Zaehler hinter den initialen Chunks starten
		p.tp.CurrentChunk.Store(int64(p.nth))
	}
	p.tp.bar.sync(int32(p.nth))

	nchunk0 := (nr0 + matmulChunk - 1) / matmulChunk
	nchunk1 := (nr1 + matmulChunk - 1) / matmulChunk
	nchunks := nchunk0 * nchunk1

	chunk := int64(p.ith)
	for chunk < nchunks {
		c0 := chunk % nchunk0
		c1 := chunk / nchunk0

		ir00 := c0 * matmulChunk
		ir01 := min64(ir00+matmulChunk, nr0)
		ir10 := c1 * matmulChunk
		ir11 := min64(ir10+matmulChunk, nr1)

		for ir1 := ir10; ir1 < ir11; ir1++ {
			i11 := ir1 % dst.Ne[1]
			i12 := (ir1 / dst.Ne[1]) % dst.Ne[2]
			i13 := ir1 / (dst.Ne[1] * dst.Ne[2])

			// Broadcast der a-Batches
			i02 := i12 / r2
			i03 := i13 / r3

			var bRow []byte
			if fromWdata {
				flat := i11 + i12*src1.Ne[1] + i13*src1.Ne[1]*src1.Ne[2]
				bRow = bData[flat*bRowSize:]
			} else {
				bRow = rowBytes(src1, i11, i12, i13)
			}

			d := rowF32(dst, i11, i12, i13)
			for ir0 := ir00; ir0 < ir01; ir0++ {
				aRow := rowBytes(src0, ir0, i02, i03)
				d[ir0] = tr.VecDot(int(k), aRow, bRow)
			}
		}

		chunk = p.tp.CurrentChunk.Add(1) - 1
	}
}

func computeMulMatID(p *computeParams, dst *Tensor) {
	as := dst.Src[0]
	src1 := dst.Src[1]
	ids := dst.Src[2]

	tr := as.Type.Traits()
	Assertf(tr.VecDot != nil, "mul_mat_id: no vec_dot for %s", tr.Name)

	k := as.Ne[0]
	nExperts := as.Ne[2]

	var bData []byte
	var bRowSize int64
	fromWdata := src1.Type != tr.VecDotType
	if fromWdata {
		bData, bRowSize = convertSrc1(p, src1, tr.VecDotType)
		p.tp.bar.sync(int32(p.nth))
	} else {
		bRowSize = RowSize(src1.Type, src1.Ne[0])
	}

	// (Slot, Token)-Paare auf die Threads verteilen; jedes Paar
	// schreibt eine eigene Ziel-Spalte
	eu := ids.Ne[0]
	nt := ids.Ne[1]
	pairs := eu * nt
	pr0, pr1 := rowRange(pairs, p.ith, p.nth)

	for pr := pr0; pr < pr1; pr++ {
		slot := pr % eu
		tok := pr / eu

		expert := int64(bytesToI32(rowBytes(ids, tok, 0, 0), int(eu))[slot])
		Assertf(expert >= 0 && expert < nExperts, "mul_mat_id: expert %d out of range [0,%d)", expert, nExperts)

		var bRow []byte
		if fromWdata {
			flat := slot + tok*src1.Ne[1]
			bRow = bData[flat*bRowSize:]
		} else {
			bRow = rowBytes(src1, slot, tok, 0)
		}

		d := rowF32(dst, slot, tok, 0)
		for i0 := int64(0); i0 < dst.Ne[0]; i0++ {
			aRow := rowBytes(as, i0, expert, 0)
			d[i0] = tr.VecDot(int(k), aRow, bRow)
		}
	}
}

func computeOutProd(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0] // [m, k, a2, a3]
	src1 := dst.Src[1] // [n, k, b2, b3]

	Assert(src0.Type == TypeF32 && src1.Type == TypeF32, "out_prod: f32 only")

	// Worker 0 nullt das Ziel vor der Akkumulation
	if p.ith == 0 {
		clear(dst.data[:dst.NBytes()])
	}
	p.tp.bar.sync(int32(p.nth))

	m := dst.Ne[0]
	nk := src0.Ne[1]
	r2 := src1.Ne[2] / src0.Ne[2]
	r3 := src1.Ne[3] / src0.Ne[3]

	// disjunkte Ziel-Spalten je Thread
	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		i02 := i2 / r2
		i03 := i3 / r3

		d := rowF32(dst, i1, i2, i3)
		for kk := int64(0); kk < nk; kk++ {
			v := elemF32(src1, i1, kk, i2, i3)
			a := rowF32(src0, kk, i02, i03)
			vecMadF32(int(m), d, a, v)
		}
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
