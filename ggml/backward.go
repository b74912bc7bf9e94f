// backward.go - Backward-Builder: strukturelles Einsetzen der Gradienten
// Enthaelt: BuildBackwardExpand, addOrSetGrad/accOrSetGrad,
// Ableitungs-Dispatch je Operator
//
// Fuer jeden Vorwaerts-Knoten in umgekehrter topologischer Reihenfolge
// werden Gradient-Ausdruecke synthetisiert. Zwei Hilfsmengen steuern
// die Akkumulation: zeroTable (Gradienten noch auf ihrem initialen
// Nullwert) und accTable (Gradienten von PARAM-Tensoren bei
// angefordertem In-Place-Akkumulieren).

package ggml

import (
	"github.com/emirpasic/gods/v2/sets/hashset"
)

// BuildBackwardExpand haengt die Gradienten-Knoten fuer alle Parameter
// von gf an gb an. gb muss die Vorwaerts-Knoten bereits enthalten
// (typisch: gb ist eine Kopie von gf).
func BuildBackwardExpand(ctx *Context, gf, gb *Graph, accumulate bool) {
	Assert(len(gf.Nodes) > 0, "backward of an empty graph")

	zeroTable := hashset.New[*Tensor]()
	accTable := hashset.New[*Tensor]()

	// Gradienten-Slots anlegen: Parameter und alles, was transitiv von
	// Parametern abhaengt
	for _, node := range gf.Nodes {
		need := node.Flags&TensorFlagParam != 0
		for _, src := range node.Src {
			if src != nil && src.Grad != nil {
				need = true
				break
			}
		}
		if !need {
			continue
		}
		if node.Grad == nil {
			node.Grad = dupTensor(ctx, node)
			node.Grad.FormatName("%s (grad)", node.name)
		}
		zeroTable.Add(node.Grad)
		if accumulate && node.Flags&TensorFlagParam != 0 {
			accTable.Add(node.Grad)
		}
	}

	for i := len(gf.Nodes) - 1; i >= 0; i-- {
		node := gf.Nodes[i]
		if node.Grad != nil {
			computeBackward(ctx, node, zeroTable, accTable)
		}
	}

	for _, node := range gf.Nodes {
		if node.Flags&TensorFlagParam != 0 {
			Assert(node.Grad != nil, "parameter without gradient after backward build")
			gb.BuildForwardExpand(node.Grad)
		}
	}

	gb.refreshGrads()
}

// refreshGrads synchronisiert das parallele Gradienten-Feld mit den
// endgueltigen Grad-Verweisen der Knoten
func (g *Graph) refreshGrads() {
	if !g.withGrads {
		return
	}
	g.Grads = g.Grads[:0]
	for _, node := range g.Nodes {
		g.Grads = append(g.Grads, node.Grad)
	}
}

// addOrSetGrad akkumuliert delta in den Gradienten von src nach den
// drei Regeln (acc: in-place, zero: ersetzen, sonst: addieren)
func addOrSetGrad(ctx *Context, src, delta *Tensor, zero, acc *hashset.Set[*Tensor]) {
	if !delta.SameShape(src) {
		// Broadcast-Beitraege auf die Quellform zusammenfalten
		delta = RepeatBack(ctx, delta, src)
	}

	grad := src.Grad
	switch {
	case acc.Contains(grad):
		r := AddInplace(ctx, grad, delta)
		acc.Add(r)
		src.Grad = r
	case zero.Contains(grad):
		src.Grad = delta
	default:
		src.Grad = Add(ctx, grad, delta)
	}
}

// accOrSetGrad akkumuliert delta in einen Byte-Ausschnitt des
// Gradienten (fuer VIEW-Knoten)
func accOrSetGrad(ctx *Context, src, delta *Tensor, nb1, nb2, nb3, offset int64, zero, acc *hashset.Set[*Tensor]) {
	grad := src.Grad
	switch {
	case acc.Contains(grad):
		r := AccInplace(ctx, grad, delta, nb1, nb2, nb3, offset)
		acc.Add(r)
		src.Grad = r
	case zero.Contains(grad):
		// auf einer Null-Leinwand akkumulieren
		base := Scale(ctx, grad, 0)
		src.Grad = Acc(ctx, base, delta, nb1, nb2, nb3, offset)
	default:
		src.Grad = Acc(ctx, grad, delta, nb1, nb2, nb3, offset)
	}
}

// one erzeugt einen Skalar 1 fuer Ableitungs-Ausdruecke
func one(ctx *Context) *Tensor {
	return NewF32(ctx, 1)
}

// computeBackward synthetisiert die Beitraege von t.Grad an die
// Gradienten der Quellen von t
func computeBackward(ctx *Context, t *Tensor, zero, acc *hashset.Set[*Tensor]) {
	src0, src1, src2 := t.Src[0], t.Src[1], t.Src[2]
	g := t.Grad

	grad0 := src0 != nil && src0.Grad != nil
	grad1 := src1 != nil && src1.Grad != nil

	switch t.Op {
	case OpNone:
		// Blattknoten (Parameter): nichts zu tun

	case OpDup, OpCont:
		if grad0 {
			addOrSetGrad(ctx, src0, reshapeLike(ctx, g, src0), zero, acc)
		}

	case OpAdd:
		if grad0 {
			addOrSetGrad(ctx, src0, g, zero, acc)
		}
		if grad1 {
			addOrSetGrad(ctx, src1, g, zero, acc)
		}

	case OpAdd1:
		if grad0 {
			addOrSetGrad(ctx, src0, g, zero, acc)
		}
		if grad1 {
			addOrSetGrad(ctx, src1, Sum(ctx, g), zero, acc)
		}

	case OpAcc:
		if grad0 {
			addOrSetGrad(ctx, src0, g, zero, acc)
		}
		if grad1 {
			p := opParamsOf[setParams](t)
			view := View4D(ctx, g,
				src1.Ne[0], src1.Ne[1], src1.Ne[2], src1.Ne[3],
				p.Nb1, p.Nb2, p.Nb3, p.Offset)
			addOrSetGrad(ctx, src1, reshapeLike(ctx, Cont(ctx, view), src1), zero, acc)
		}

	case OpSub:
		if grad0 {
			addOrSetGrad(ctx, src0, g, zero, acc)
		}
		if grad1 {
			addOrSetGrad(ctx, src1, Neg(ctx, g), zero, acc)
		}

	case OpMul:
		if grad0 {
			addOrSetGrad(ctx, src0, Mul(ctx, src1, g), zero, acc)
		}
		if grad1 {
			addOrSetGrad(ctx, src1, Mul(ctx, src0, g), zero, acc)
		}

	case OpDiv:
		if grad0 {
			addOrSetGrad(ctx, src0, Div(ctx, g, src1), zero, acc)
		}
		if grad1 {
			addOrSetGrad(ctx, src1, Neg(ctx, Mul(ctx, Div(ctx, g, src1), Div(ctx, src0, src1))), zero, acc)
		}

	case OpSqr:
		if grad0 {
			addOrSetGrad(ctx, src0, Scale(ctx, Mul(ctx, src0, g), 2), zero, acc)
		}

	case OpSqrt:
		if grad0 {
			addOrSetGrad(ctx, src0, Scale(ctx, Div(ctx, g, t), 0.5), zero, acc)
		}

	case OpLog:
		if grad0 {
			addOrSetGrad(ctx, src0, Div(ctx, g, src0), zero, acc)
		}

	case OpSin:
		if grad0 {
			addOrSetGrad(ctx, src0, Mul(ctx, g, Cos(ctx, src0)), zero, acc)
		}

	case OpCos:
		if grad0 {
			addOrSetGrad(ctx, src0, Neg(ctx, Mul(ctx, g, Sin(ctx, src0))), zero, acc)
		}

	case OpSum:
		if grad0 {
			addOrSetGrad(ctx, src0, Repeat(ctx, g, src0), zero, acc)
		}

	case OpSumRows:
		if grad0 {
			addOrSetGrad(ctx, src0, Repeat(ctx, g, src0), zero, acc)
		}

	case OpMean:
		if grad0 {
			addOrSetGrad(ctx, src0, Scale(ctx, Repeat(ctx, g, src0), 1/float32(src0.Ne[0])), zero, acc)
		}

	case OpRepeat:
		if grad0 {
			addOrSetGrad(ctx, src0, RepeatBack(ctx, g, src0), zero, acc)
		}

	case OpRepeatBack:
		if grad0 {
			addOrSetGrad(ctx, src0, Repeat(ctx, g, src0), zero, acc)
		}

	case OpConcat:
		p := opParamsOf[concatParams](t)
		dim := int(p.Dim)
		if grad0 {
			view := sliceAlong(ctx, g, dim, 0, src0.Ne[dim])
			addOrSetGrad(ctx, src0, Cont(ctx, view), zero, acc)
		}
		if grad1 {
			view := sliceAlong(ctx, g, dim, src0.Ne[dim], src1.Ne[dim])
			addOrSetGrad(ctx, src1, Cont(ctx, view), zero, acc)
		}

	case OpRMSNorm:
		if grad0 {
			p := opParamsOf[normParams](t)
			addOrSetGrad(ctx, src0, RMSNormBack(ctx, src0, g, p.Eps), zero, acc)
		}

	case OpMulMat:
		if grad0 {
			addOrSetGrad(ctx, src0, OutProd(ctx, src1, g), zero, acc)
		}
		if grad1 {
			addOrSetGrad(ctx, src1, OutProd(ctx, src0, Cont(ctx, Transpose(ctx, g))), zero, acc)
		}

	case OpScale:
		if grad0 {
			p := opParamsOf[scaleParams](t)
			addOrSetGrad(ctx, src0, Scale(ctx, g, p.Scale), zero, acc)
		}

	case OpSet:
		p := opParamsOf[setParams](t)
		if grad0 {
			view := View4D(ctx, g,
				src1.Ne[0], src1.Ne[1], src1.Ne[2], src1.Ne[3],
				p.Nb1, p.Nb2, p.Nb3, p.Offset)
			masked := Acc(ctx, g, Neg(ctx, Cont(ctx, view)), p.Nb1, p.Nb2, p.Nb3, p.Offset)
			addOrSetGrad(ctx, src0, masked, zero, acc)
		}
		if grad1 {
			view := View4D(ctx, g,
				src1.Ne[0], src1.Ne[1], src1.Ne[2], src1.Ne[3],
				p.Nb1, p.Nb2, p.Nb3, p.Offset)
			addOrSetGrad(ctx, src1, reshapeLike(ctx, Cont(ctx, view), src1), zero, acc)
		}

	case OpCpy:
		if grad0 {
			addOrSetGrad(ctx, src0, reshapeLike(ctx, Cont(ctx, g), src0), zero, acc)
		}
		Assert(!grad1, "cpy: gradient for the destination is not supported")

	case OpReshape:
		if grad0 {
			addOrSetGrad(ctx, src0, reshapeLike(ctx, Cont(ctx, g), src0), zero, acc)
		}

	case OpView:
		if grad0 {
			offset := t.ViewOffs - src0.ViewOffs
			nb1, nb2, nb3 := t.Nb[1], t.Nb[2], t.Nb[3]
			if src0.Type != src0.Grad.Type {
				// Gradient hat eigene Stride-Basis
				scale := int64(src0.Grad.Type.TypeSize()) / int64(src0.Type.TypeSize())
				offset *= scale
				nb1 *= scale
				nb2 *= scale
				nb3 *= scale
			}
			accOrSetGrad(ctx, src0, g, nb1, nb2, nb3, offset, zero, acc)
		}

	case OpPermute:
		if grad0 {
			p := opParamsOf[permuteParams](t)
			var inv [MaxDims]int32
			for i, a := range p.Axis {
				inv[a] = int32(i)
			}
			addOrSetGrad(ctx, src0, Permute(ctx, g, int(inv[0]), int(inv[1]), int(inv[2]), int(inv[3])), zero, acc)
		}

	case OpTranspose:
		if grad0 {
			addOrSetGrad(ctx, src0, Transpose(ctx, g), zero, acc)
		}

	case OpGetRows:
		if grad0 {
			addOrSetGrad(ctx, src0, GetRowsBack(ctx, g, src1, src0), zero, acc)
		}
		Assert(!grad1, "get_rows: indices carry no gradient")

	case OpGetRowsBack:
		if grad0 {
			addOrSetGrad(ctx, src0, GetRows(ctx, g, src1), zero, acc)
		}

	case OpDiagMaskInf, OpDiagMaskZero:
		if grad0 {
			p := opParamsOf[diagMaskParams](t)
			addOrSetGrad(ctx, src0, DiagMaskZero(ctx, g, int(p.NPast)), zero, acc)
		}

	case OpSoftMax:
		if grad0 {
			addOrSetGrad(ctx, src0, SoftMaxBack(ctx, g, t), zero, acc)
		}
		Assert(!grad1, "soft_max: gradient for the mask is not supported")

	case OpRope:
		if grad0 {
			p := opParamsOf[ropeParams](t)
			addOrSetGrad(ctx, src0,
				RopeBack(ctx, g, src1, src2, int(p.NDims), p.Mode, int(p.NCtxOrig),
					p.FreqBase, p.FreqScale, p.ExtFactor, p.AttnFactor, p.BetaFast, p.BetaSlow),
				zero, acc)
		}

	case OpRopeBack:
		if grad0 {
			p := opParamsOf[ropeParams](t)
			addOrSetGrad(ctx, src0,
				RopeExt(ctx, g, src1, src2, int(p.NDims), p.Mode, int(p.NCtxOrig),
					p.FreqBase, p.FreqScale, p.ExtFactor, p.AttnFactor, p.BetaFast, p.BetaSlow),
				zero, acc)
		}

	case OpPool2D:
		if grad0 {
			p := opParamsOf[poolParams](t)
			addOrSetGrad(ctx, src0,
				Pool2DBack(ctx, g, src0, p.Op, int(p.K0), int(p.K1), int(p.S0), int(p.S1), int(p.P0), int(p.P1)),
				zero, acc)
		}

	case OpSiluBack:
		Assert(!grad0 && !grad1, "silu_back: second-order gradients are not supported")

	case OpUnary:
		p := opParamsOf[unaryParams](t)
		if grad0 {
			switch p.Op {
			case UnaryAbs:
				addOrSetGrad(ctx, src0, Mul(ctx, Sgn(ctx, src0), g), zero, acc)
			case UnarySgn, UnaryStep:
				// Ableitung ist fast ueberall null
			case UnaryNeg:
				addOrSetGrad(ctx, src0, Neg(ctx, g), zero, acc)
			case UnaryTanh:
				addOrSetGrad(ctx, src0, Mul(ctx, g, Add1(ctx, Neg(ctx, Sqr(ctx, t)), one(ctx))), zero, acc)
			case UnaryRelu:
				addOrSetGrad(ctx, src0, Mul(ctx, Step(ctx, src0), g), zero, acc)
			case UnarySigmoid:
				addOrSetGrad(ctx, src0, Mul(ctx, g, Mul(ctx, t, Add1(ctx, Neg(ctx, t), one(ctx)))), zero, acc)
			case UnarySilu:
				addOrSetGrad(ctx, src0, SiluBack(ctx, src0, g), zero, acc)
			case UnaryExp:
				addOrSetGrad(ctx, src0, Mul(ctx, g, t), zero, acc)
			default:
				Assertf(false, "backward of unary %s is not implemented", p.Op)
			}
		}

	case OpCrossEntropyLoss:
		if grad0 {
			addOrSetGrad(ctx, src0, CrossEntropyLossBack(ctx, src0, src1, g), zero, acc)
		}
		Assert(!grad1, "cross_entropy_loss: gradient for the target is not supported")

	case OpFlashAttnExt:
		// Der Rueckwaertspfad der fusionierten Attention ist nicht
		// an die aktuelle Maskierung angepasst und wird verweigert
		Assertf(false, "backward of %s is not implemented", t.Op)

	default:
		Assertf(false, "backward of %s is not implemented", t.Op)
	}
}

// reshapeLike formt a auf die Form von ref um
func reshapeLike(ctx *Context, a, ref *Tensor) *Tensor {
	return Reshape4D(ctx, a, ref.Ne[0], ref.Ne[1], ref.Ne[2], ref.Ne[3])
}

// sliceAlong schneidet [start, start+n) entlang der Achse dim aus a
func sliceAlong(ctx *Context, a *Tensor, dim int, start, n int64) *Tensor {
	ne := a.Ne
	ne[dim] = n
	return View4D(ctx, a, ne[0], ne[1], ne[2], ne[3], a.Nb[1], a.Nb[2], a.Nb[3], start*a.Nb[dim])
}
