// tensor_nn.go - Neuronale Operator-Builder
// Enthaelt: DiagMask*, SoftMax, Rope, Conv/Pool/Im2Col, Upscale, Pad,
// Arange, TimestepEmbedding, FlashAttnExt, SSM, RWKV, CrossEntropy

package ggml

// DiagMaskInf setzt Elemente oberhalb der (um nPast verschobenen)
// Diagonale auf -inf
func DiagMaskInf(ctx *Context, a *Tensor, nPast int) *Tensor {
	result := viewTensor(ctx, a)
	result.Op = OpDiagMaskInf
	result.Src[0] = a
	result.opParams = diagMaskParams{NPast: int32(nPast)}
	return result
}

// DiagMaskZero setzt Elemente oberhalb der Diagonale auf 0
func DiagMaskZero(ctx *Context, a *Tensor, nPast int) *Tensor {
	result := viewTensor(ctx, a)
	result.Op = OpDiagMaskZero
	result.Src[0] = a
	result.opParams = diagMaskParams{NPast: int32(nPast)}
	return result
}

// SoftMax normalisiert jede Zeile auf eine Wahrscheinlichkeitsverteilung
func SoftMax(ctx *Context, a *Tensor) *Tensor {
	return SoftMaxExt(ctx, a, nil, 1, 0)
}

// SoftMaxExt ist Softmax mit optionaler Maske (F32 oder F16), Skala und
// ALiBi-Bias: slope(h) = 2^(-maxBias*(h+1)/2^floor(log2 n_head))
func SoftMaxExt(ctx *Context, a, mask *Tensor, scale, maxBias float32) *Tensor {
	if mask != nil {
		Assert(mask.Type == TypeF16 || mask.Type == TypeF32, "soft_max: mask must be f16 or f32")
		Assert(mask.IsContiguous(), "soft_max: mask must be contiguous")
		Assert(mask.IsMatrix(), "soft_max: mask must be 2-d")
		Assert(mask.Ne[0] == a.Ne[0] && mask.Ne[1] >= a.Ne[1], "soft_max: mask shape mismatch")
	}
	if maxBias > 0 {
		Assert(mask != nil, "soft_max: alibi requires a mask")
	}

	result := dupTensor(ctx, a)
	result.Op = OpSoftMax
	result.Src[0] = a
	result.Src[1] = mask
	result.opParams = softMaxParams{Scale: scale, MaxBias: maxBias}
	return result
}

// SoftMaxBack ist der Rueckwaertspfad: dx = y*(dy - dot(y,dy))
func SoftMaxBack(ctx *Context, a, b *Tensor) *Tensor {
	result := dupTensor(ctx, a)
	result.Op = OpSoftMaxBack
	result.Src[0] = a
	result.Src[1] = b
	return result
}

// Rope rotiert Positions-Embeddings; b ist der i32-Positionsvektor
func Rope(ctx *Context, a, b *Tensor, nDims int, mode RopeMode) *Tensor {
	return RopeExt(ctx, a, b, nil, nDims, mode, 0, 10000, 1, 0, 1, 32, 1)
}

// RopeExt ist RoPE mit Frequenz-Faktoren und YaRN-Parametern
func RopeExt(ctx *Context, a, b, c *Tensor, nDims int, mode RopeMode, nCtxOrig int, freqBase, freqScale, extFactor, attnFactor, betaFast, betaSlow float32) *Tensor {
	return ropeImpl(ctx, a, b, c, nDims, mode, nCtxOrig, freqBase, freqScale, extFactor, attnFactor, betaFast, betaSlow, false)
}

// RopeBack ist die inverse Rotation (Gradientenpfad)
func RopeBack(ctx *Context, a, b, c *Tensor, nDims int, mode RopeMode, nCtxOrig int, freqBase, freqScale, extFactor, attnFactor, betaFast, betaSlow float32) *Tensor {
	return ropeImpl(ctx, a, b, c, nDims, mode, nCtxOrig, freqBase, freqScale, extFactor, attnFactor, betaFast, betaSlow, true)
}

func ropeImpl(ctx *Context, a, b, c *Tensor, nDims int, mode RopeMode, nCtxOrig int, freqBase, freqScale, extFactor, attnFactor, betaFast, betaSlow float32, backward bool) *Tensor {
	Assert(b.IsVector(), "rope: positions must be a vector")
	Assert(b.Type == TypeI32, "rope: positions must be i32")
	Assert(a.Ne[2] == b.Ne[0], "rope: one position per token")
	Assertf(nDims%2 == 0, "rope: n_dims %d must be even", nDims)
	if c != nil {
		Assert(c.Type == TypeF32, "rope: freq factors must be f32")
		Assert(c.Ne[0] >= int64(nDims)/2, "rope: not enough freq factors")
	}

	result := dupTensor(ctx, a)
	if backward {
		result.Op = OpRopeBack
	} else {
		result.Op = OpRope
	}
	result.Src[0] = a
	result.Src[1] = b
	result.Src[2] = c
	result.opParams = ropeParams{
		NDims: int32(nDims), Mode: mode, NCtxOrig: int32(nCtxOrig),
		FreqBase: freqBase, FreqScale: freqScale,
		ExtFactor: extFactor, AttnFactor: attnFactor,
		BetaFast: betaFast, BetaSlow: betaSlow,
		Backward: backward,
	}
	return result
}

// convOutSize ist die Ausgabelaenge einer Faltung
func convOutSize(ins, ks, s, p, d int64) int64 {
	return (ins+2*p-d*(ks-1)-1)/s + 1
}

// Im2Col entfaltet Bildausschnitte zu Zeilen; a ist der Kernel, b das
// Bild. Ergebnis-Typ F16 fuer F16-Kernel, sonst F32.
func Im2Col(ctx *Context, a, b *Tensor, s0, s1, p0, p1, d0, d1 int, is2D bool) *Tensor {
	if is2D {
		Assert(a.Ne[2] == b.Ne[2], "im2col: channel count mismatch")
	} else {
		Assert(a.Ne[1] == b.Ne[1], "im2col: channel count mismatch")
	}

	typ := TypeF32
	if a.Type == TypeF16 {
		typ = TypeF16
	}

	var result *Tensor
	if is2D {
		oh := convOutSize(b.Ne[1], a.Ne[1], int64(s1), int64(p1), int64(d1))
		ow := convOutSize(b.Ne[0], a.Ne[0], int64(s0), int64(p0), int64(d0))
		Assert(oh > 0 && ow > 0, "im2col: kernel larger than padded input")
		result = NewTensor4D(ctx, typ, a.Ne[0]*a.Ne[1]*a.Ne[2], ow, oh, b.Ne[3])
	} else {
		ow := convOutSize(b.Ne[0], a.Ne[0], int64(s0), int64(p0), int64(d0))
		Assert(ow > 0, "im2col: kernel larger than padded input")
		result = NewTensor4D(ctx, typ, a.Ne[0]*a.Ne[1], ow, b.Ne[2], 1)
	}
	result.Op = OpIm2Col
	result.Src[0] = a
	result.Src[1] = b
	result.opParams = im2colParams{
		S0: int32(s0), S1: int32(s1),
		P0: int32(p0), P1: int32(p1),
		D0: int32(d0), D1: int32(d1),
		Is2D: is2D,
	}
	return result
}

// Conv1D faltet b mit dem Kernel a (ueber Im2Col + MulMat)
func Conv1D(ctx *Context, a, b *Tensor, s0, p0, d0 int) *Tensor {
	im := Im2Col(ctx, a, b, s0, 0, p0, 0, d0, 0, false) // [a0*a1, ow, b2]
	mm := MulMat(ctx,
		Reshape2D(ctx, im, im.Ne[0], im.Ne[1]*im.Ne[2]),
		Reshape2D(ctx, a, a.Ne[0]*a.Ne[1], a.Ne[2]))
	return Reshape3D(ctx, mm, im.Ne[1], a.Ne[2], im.Ne[2])
}

// Conv2D faltet das Bild b mit der Kernelbank a
func Conv2D(ctx *Context, a, b *Tensor, s0, s1, p0, p1, d0, d1 int) *Tensor {
	im := Im2Col(ctx, a, b, s0, s1, p0, p1, d0, d1, true) // [a0*a1*a2, ow, oh, b3]
	mm := MulMat(ctx,
		Reshape2D(ctx, im, im.Ne[0], im.Ne[1]*im.Ne[2]*im.Ne[3]),
		Reshape2D(ctx, a, a.Ne[0]*a.Ne[1]*a.Ne[2], a.Ne[3]))
	return Reshape4D(ctx, mm, im.Ne[1], im.Ne[2], a.Ne[3], im.Ne[3])
}

// ConvTranspose1D ist die transponierte 1-D-Faltung
func ConvTranspose1D(ctx *Context, a, b *Tensor, s0 int) *Tensor {
	Assert(a.Ne[2] == b.Ne[1], "conv_transpose_1d: channel count mismatch")
	Assert(a.Ne[3] == 1 && b.Ne[3] == 1, "conv_transpose_1d: 3-d inputs only")

	ow := int64(s0)*(b.Ne[0]-1) + a.Ne[0]
	result := NewTensor3D(ctx, TypeF32, ow, a.Ne[1], 1)
	result.Op = OpConvTranspose1D
	result.Src[0] = a
	result.Src[1] = b
	result.opParams = convTranspose1DParams{S0: int32(s0)}
	return result
}

// ConvTranspose2D ist die transponierte 2-D-Faltung
func ConvTranspose2D(ctx *Context, a, b *Tensor, stride int) *Tensor {
	Assert(a.Ne[3] == b.Ne[2], "conv_transpose_2d: channel count mismatch")

	ow := int64(stride)*(b.Ne[0]-1) + a.Ne[0]
	oh := int64(stride)*(b.Ne[1]-1) + a.Ne[1]
	result := NewTensor4D(ctx, TypeF32, ow, oh, a.Ne[2], b.Ne[3])
	result.Op = OpConvTranspose2D
	result.Src[0] = a
	result.Src[1] = b
	result.opParams = convTranspose2DParams{Stride: int32(stride)}
	return result
}

// poolOutSize ist die Ausgabelaenge eines Poolings
func poolOutSize(ins int64, ks, s, p int) int64 {
	return (ins+2*int64(p)-int64(ks))/int64(s) + 1
}

// Pool1D poolt entlang der ersten Achse
func Pool1D(ctx *Context, a *Tensor, op PoolOp, k0, s0, p0 int) *Tensor {
	result := NewTensor3D(ctx, TypeF32, poolOutSize(a.Ne[0], k0, s0, p0), a.Ne[1], a.Ne[2])
	result.Op = OpPool1D
	result.Src[0] = a
	result.opParams = poolParams{Op: op, K0: int32(k0), K1: 1, S0: int32(s0), S1: 1, P0: int32(p0)}
	return result
}

// Pool2D poolt ueber 2-D-Fenster
func Pool2D(ctx *Context, a *Tensor, op PoolOp, k0, k1, s0, s1, p0, p1 int) *Tensor {
	result := NewTensor4D(ctx, TypeF32,
		poolOutSize(a.Ne[0], k0, s0, p0),
		poolOutSize(a.Ne[1], k1, s1, p1),
		a.Ne[2], a.Ne[3])
	result.Op = OpPool2D
	result.Src[0] = a
	result.opParams = poolParams{Op: op, K0: int32(k0), K1: int32(k1), S0: int32(s0), S1: int32(s1), P0: int32(p0), P1: int32(p1)}
	return result
}

// Pool2DBack verteilt Gradienten des Poolings zurueck auf die Form von b
func Pool2DBack(ctx *Context, a, b *Tensor, op PoolOp, k0, k1, s0, s1, p0, p1 int) *Tensor {
	result := NewTensor4D(ctx, TypeF32, b.Ne[0], b.Ne[1], b.Ne[2], b.Ne[3])
	result.Op = OpPool2DBack
	result.Src[0] = a
	result.Src[1] = b
	result.opParams = poolParams{Op: op, K0: int32(k0), K1: int32(k1), S0: int32(s0), S1: int32(s1), P0: int32(p0), P1: int32(p1)}
	return result
}

// Upscale skaliert die ersten beiden Achsen per Nearest-Neighbor
func Upscale(ctx *Context, a *Tensor, scaleFactor int) *Tensor {
	ne := [MaxDims]int64{a.Ne[0] * int64(scaleFactor), a.Ne[1] * int64(scaleFactor), a.Ne[2], a.Ne[3]}
	result := NewTensor4D(ctx, a.Type, ne[0], ne[1], ne[2], ne[3])
	result.Op = OpUpscale
	result.Src[0] = a
	result.opParams = upscaleParams{NeTarget: ne}
	return result
}

// Pad haengt Nullen an das Ende jeder Achse an
func Pad(ctx *Context, a *Tensor, p0, p1, p2, p3 int) *Tensor {
	result := NewTensor4D(ctx, a.Type,
		a.Ne[0]+int64(p0), a.Ne[1]+int64(p1), a.Ne[2]+int64(p2), a.Ne[3]+int64(p3))
	result.Op = OpPad
	result.Src[0] = a
	result.opParams = padParams{P: [MaxDims]int32{int32(p0), int32(p1), int32(p2), int32(p3)}}
	return result
}

// Arange erzeugt die Folge [start, stop) mit Schrittweite step
func Arange(ctx *Context, start, stop, step float32) *Tensor {
	Assert(stop > start, "arange: stop must exceed start")
	steps := int64((stop - start) / step)
	if start+float32(steps)*step < stop {
		steps++
	}
	result := NewTensor1D(ctx, TypeF32, steps)
	result.Op = OpArange
	result.opParams = arangeParams{Start: start, Stop: stop, Step: step}
	return result
}

// TimestepEmbedding bildet Zeitschritte auf Sinus-Embeddings ab
func TimestepEmbedding(ctx *Context, timesteps *Tensor, dim, maxPeriod int) *Tensor {
	actualDim := int64(dim)
	if dim%2 != 0 {
		actualDim = int64(dim) + 1
	}
	result := NewTensor2D(ctx, TypeF32, actualDim, timesteps.Ne[0])
	result.Op = OpTimestepEmbedding
	result.Src[0] = timesteps
	result.opParams = timestepParams{Dim: int32(dim), MaxPeriod: int32(maxPeriod)}
	return result
}

// FlashAttnExt ist fusionierte Attention mit Online-Softmax:
// q:[D,N,H,B], k:[D,M,Hk,B], v:[D,M,Hk,B], mask? -> [D,H,N,B]
func FlashAttnExt(ctx *Context, q, k, v, mask *Tensor, scale, maxBias, logitSoftcap float32) *Tensor {
	Assert(q.Ne[0] == k.Ne[0], "flash_attn: q/k head size mismatch")
	Assert(k.Ne[1] == v.Ne[1], "flash_attn: k/v length mismatch")
	Assert(q.Ne[3] == k.Ne[3] && q.Ne[3] == v.Ne[3], "flash_attn: batch mismatch")
	Assert(q.Ne[2]%k.Ne[2] == 0, "flash_attn: head count does not broadcast")
	if mask != nil {
		Assert(mask.Type == TypeF16 || mask.Type == TypeF32, "flash_attn: mask must be f16 or f32")
		Assert(mask.Ne[0] == k.Ne[1], "flash_attn: mask length mismatch")
	}
	if maxBias > 0 {
		Assert(mask != nil, "flash_attn: alibi requires a mask")
	}

	result := NewTensor4D(ctx, TypeF32, v.Ne[0], q.Ne[2], q.Ne[1], q.Ne[3])
	result.Op = OpFlashAttnExt
	result.Src[0] = q
	result.Src[1] = k
	result.Src[2] = v
	result.Src[3] = mask
	result.opParams = flashAttnParams{Scale: scale, MaxBias: maxBias, LogitSoftcap: logitSoftcap}
	return result
}

// SSMConv ist die kausale 1-D-Faltung des State-Space-Blocks
// sx:[d_conv-1+n_t, d_inner, n_s], c:[d_conv, d_inner]
func SSMConv(ctx *Context, sx, c *Tensor) *Tensor {
	Assert(sx.Type == TypeF32 && c.Type == TypeF32, "ssm_conv: f32 only")
	Assert(sx.Ne[1] == c.Ne[1], "ssm_conv: inner size mismatch")

	nt := sx.Ne[0] - c.Ne[0] + 1
	Assert(nt > 0, "ssm_conv: window longer than input")
	result := NewTensor3D(ctx, TypeF32, c.Ne[1], nt, sx.Ne[2])
	result.Op = OpSSMConv
	result.Src[0] = sx
	result.Src[1] = c
	return result
}

// SSMScan ist die diskrete State-Space-Rekurrenz
// s:[d_state, d_inner, n_s], x:[d_inner, n_t, n_s], dt wie x,
// A:[d_state, d_inner], B/C:[d_state, n_t, n_s]
func SSMScan(ctx *Context, s, x, dt, A, B, C *Tensor) *Tensor {
	Assert(s.IsContiguous() && x.IsContiguous() && dt.IsContiguous(), "ssm_scan: contiguous inputs required")
	Assert(x.SameShape(dt), "ssm_scan: x and dt must match")
	Assert(s.Ne[0] == A.Ne[0] && s.Ne[1] == x.Ne[0], "ssm_scan: state shape mismatch")
	Assert(B.SameShape(C), "ssm_scan: B and C must match")

	// Ausgabe: y wie x, dahinter der Endzustand
	result := NewTensor1D(ctx, TypeF32, x.NElements()+s.NElements())
	result.Op = OpSSMScan
	result.Src[0] = s
	result.Src[1] = x
	result.Src[2] = dt
	result.Src[3] = A
	result.Src[4] = B
	result.Src[5] = C
	return result
}

// RWKVWKV6 ist die WKV-Rekurrenz mit per-Head-Zustand
// k,v,r,tf,td:[S,H,T,1]-artig, state:[S*S*H, n_s]
func RWKVWKV6(ctx *Context, k, v, r, tf, td, state *Tensor) *Tensor {
	S := k.Ne[0]
	H := k.Ne[1]
	T := k.Ne[2]
	Assert(v.Ne[0] == S && v.Ne[1] == H && v.Ne[2] == T, "wkv: v shape mismatch")
	Assert(r.Ne[0] == S && r.Ne[1] == H && r.Ne[2] == T, "wkv: r shape mismatch")
	Assert(state.NElements() == S*S*H*state.Ne[1], "wkv: state size mismatch")

	result := NewTensor4D(ctx, TypeF32, S*H, T+S*state.Ne[1], 1, 1)
	result.Op = OpRWKVWKV6
	result.Src[0] = k
	result.Src[1] = v
	result.Src[2] = r
	result.Src[3] = tf
	result.Src[4] = td
	result.Src[5] = state
	return result
}

// CrossEntropyLoss bildet den skalaren Kreuzentropie-Verlust von
// Logits a gegen Soll-Verteilung b
func CrossEntropyLoss(ctx *Context, a, b *Tensor) *Tensor {
	Assert(a.SameShape(b), "cross_entropy_loss: shapes must match")

	result := NewTensor1D(ctx, a.Type, 1)
	result.Op = OpCrossEntropyLoss
	result.Src[0] = a
	result.Src[1] = b
	return result
}

// CrossEntropyLossBack ist der Rueckwaertspfad; c ist der skalare
// eingehende Gradient
func CrossEntropyLossBack(ctx *Context, a, b, c *Tensor) *Tensor {
	Assert(a.SameShape(b), "cross_entropy_loss_back: shapes must match")
	Assert(c.IsScalar(), "cross_entropy_loss_back: gradient must be scalar")

	result := dupTensor(ctx, a)
	result.Op = OpCrossEntropyLossBack
	result.Src[0] = a
	result.Src[1] = b
	result.Src[2] = c
	return result
}
