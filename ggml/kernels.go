// kernels.go - Kernel-Dispatch und gemeinsame Helfer
// Enthaelt: computeForward, forwardKernels-Tabelle, Zeilenaufteilung,
// Zeilen-/Element-Zugriff ueber Strides

package ggml

// kernelFn ist die Signatur aller Vorwaerts-Kernels
type kernelFn func(p *computeParams, dst *Tensor)

var forwardKernels [OpCount]kernelFn

func init() {
	forwardKernels[OpDup] = computeDup
	forwardKernels[OpAdd] = computeAdd
	forwardKernels[OpAdd1] = computeAdd1
	forwardKernels[OpAcc] = computeAcc
	forwardKernels[OpSub] = computeSub
	forwardKernels[OpMul] = computeMul
	forwardKernels[OpDiv] = computeDiv
	forwardKernels[OpSqr] = computeSqr
	forwardKernels[OpSqrt] = computeSqrt
	forwardKernels[OpLog] = computeLog
	forwardKernels[OpSin] = computeSin
	forwardKernels[OpCos] = computeCos
	forwardKernels[OpSum] = computeSum
	forwardKernels[OpSumRows] = computeSumRows
	forwardKernels[OpMean] = computeMean
	forwardKernels[OpArgmax] = computeArgmax
	forwardKernels[OpCountEqual] = computeCountEqual
	forwardKernels[OpRepeat] = computeRepeat
	forwardKernels[OpRepeatBack] = computeRepeatBack
	forwardKernels[OpConcat] = computeConcat
	forwardKernels[OpSiluBack] = computeSiluBack
	forwardKernels[OpNorm] = computeNorm
	forwardKernels[OpRMSNorm] = computeRMSNorm
	forwardKernels[OpRMSNormBack] = computeRMSNormBack
	forwardKernels[OpGroupNorm] = computeGroupNorm
	forwardKernels[OpMulMat] = computeMulMat
	forwardKernels[OpMulMatID] = computeMulMatID
	forwardKernels[OpOutProd] = computeOutProd
	forwardKernels[OpScale] = computeScale
	forwardKernels[OpSet] = computeSet
	forwardKernels[OpCpy] = computeCpy
	forwardKernels[OpCont] = computeCpy
	forwardKernels[OpGetRows] = computeGetRows
	forwardKernels[OpGetRowsBack] = computeGetRowsBack
	forwardKernels[OpDiag] = computeDiag
	forwardKernels[OpDiagMaskInf] = computeDiagMaskInf
	forwardKernels[OpDiagMaskZero] = computeDiagMaskZero
	forwardKernels[OpSoftMax] = computeSoftMax
	forwardKernels[OpSoftMaxBack] = computeSoftMaxBack
	forwardKernels[OpRope] = computeRope
	forwardKernels[OpRopeBack] = computeRope
	forwardKernels[OpClamp] = computeClamp
	forwardKernels[OpConvTranspose1D] = computeConvTranspose1D
	forwardKernels[OpIm2Col] = computeIm2Col
	forwardKernels[OpConvTranspose2D] = computeConvTranspose2D
	forwardKernels[OpPool1D] = computePool1D
	forwardKernels[OpPool2D] = computePool2D
	forwardKernels[OpPool2DBack] = computePool2DBack
	forwardKernels[OpUpscale] = computeUpscale
	forwardKernels[OpPad] = computePad
	forwardKernels[OpArange] = computeArange
	forwardKernels[OpTimestepEmbedding] = computeTimestepEmbedding
	forwardKernels[OpArgsort] = computeArgsort
	forwardKernels[OpLeakyRelu] = computeLeakyRelu
	forwardKernels[OpFlashAttnExt] = computeFlashAttnExt
	forwardKernels[OpSSMConv] = computeSSMConv
	forwardKernels[OpSSMScan] = computeSSMScan
	forwardKernels[OpRWKVWKV6] = computeRWKVWKV6
	forwardKernels[OpUnary] = computeUnary
	forwardKernels[OpCrossEntropyLoss] = computeCrossEntropyLoss
	forwardKernels[OpCrossEntropyLossBack] = computeCrossEntropyLossBack
}

// computeForward fuehrt den Kernel des Knotens aus
func computeForward(p *computeParams, node *Tensor) {
	switch node.Op {
	case OpNone, OpView, OpReshape, OpPermute, OpTranspose:
		// reine Deskriptor-Operationen
		return
	}

	k := forwardKernels[node.Op]
	Assertf(k != nil, "no forward kernel for %s", node.Op)
	k(p, node)
}

// rowRange teilt nr Zeilen auf die Worker auf
func rowRange(nr int64, ith, nth int) (ir0, ir1 int64) {
	dr := (nr + int64(nth) - 1) / int64(nth)
	ir0 = dr * int64(ith)
	ir1 = ir0 + dr
	if ir1 > nr {
		ir1 = nr
	}
	if ir0 > nr {
		ir0 = nr
	}
	return ir0, ir1
}

// rowIndex zerlegt den flachen Zeilenindex in (i1, i2, i3)
func rowIndex(t *Tensor, ir int64) (i1, i2, i3 int64) {
	i3 = ir / (t.Ne[2] * t.Ne[1])
	i2 = (ir - i3*t.Ne[2]*t.Ne[1]) / t.Ne[1]
	i1 = ir - i3*t.Ne[2]*t.Ne[1] - i2*t.Ne[1]
	return i1, i2, i3
}

// rowBytes liefert die Bytes der Zeile (i1, i2, i3)
func rowBytes(t *Tensor, i1, i2, i3 int64) []byte {
	return t.data[i1*t.Nb[1]+i2*t.Nb[2]+i3*t.Nb[3]:]
}

// rowF32 liefert die Zeile als float32-Slice (dichte Zeilen)
func rowF32(t *Tensor, i1, i2, i3 int64) []float32 {
	Assertf(t.Nb[0] == 4, "row access on a strided row (nb0=%d)", t.Nb[0])
	return bytesToF32(rowBytes(t, i1, i2, i3), int(t.Ne[0]))
}

// elemF32 liest ein Element ueber alle vier Strides
func elemF32(t *Tensor, i0, i1, i2, i3 int64) float32 {
	b := t.data[i0*t.Nb[0]+i1*t.Nb[1]+i2*t.Nb[2]+i3*t.Nb[3]:]
	return bytesToF32(b, 1)[0]
}

// setElemF32 schreibt ein Element ueber alle vier Strides
func setElemF32(t *Tensor, v float32, i0, i1, i2, i3 int64) {
	b := t.data[i0*t.Nb[0]+i1*t.Nb[1]+i2*t.Nb[2]+i3*t.Nb[3]:]
	bytesToF32(b, 1)[0] = v
}
