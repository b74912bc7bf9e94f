// tensor_ops.go - Elementweise Operatoren, Reduktionen, Normierungen
// Enthaelt: Add..Div, Sqr..Cos, Unary-Familie, Scale, Clamp, Sum, Mean,
// Argmax, CountEqual, Repeat, Concat, Norm-Familie, Argsort

package ggml

// binImpl ist der gemeinsame Kern der elementweisen Binaer-Operatoren
func binImpl(ctx *Context, op Op, a, b *Tensor, inplace bool) *Tensor {
	Assertf(b.CanRepeat(a), "%s: shape of b does not broadcast onto a", op)

	var result *Tensor
	if inplace {
		result = viewTensor(ctx, a)
	} else {
		result = dupTensor(ctx, a)
	}
	result.Op = op
	result.Src[0] = a
	result.Src[1] = b
	return result
}

// Add addiert b (broadcastfaehig) auf a
func Add(ctx *Context, a, b *Tensor) *Tensor { return binImpl(ctx, OpAdd, a, b, false) }

// AddInplace addiert b direkt in a
func AddInplace(ctx *Context, a, b *Tensor) *Tensor { return binImpl(ctx, OpAdd, a, b, true) }

// Sub subtrahiert b von a
func Sub(ctx *Context, a, b *Tensor) *Tensor { return binImpl(ctx, OpSub, a, b, false) }

// Mul multipliziert elementweise
func Mul(ctx *Context, a, b *Tensor) *Tensor { return binImpl(ctx, OpMul, a, b, false) }

// Div teilt elementweise
func Div(ctx *Context, a, b *Tensor) *Tensor { return binImpl(ctx, OpDiv, a, b, false) }

// Add1 addiert den Skalar b auf jedes Element von a
func Add1(ctx *Context, a, b *Tensor) *Tensor {
	Assert(b.IsScalar(), "add1 expects a scalar")
	result := dupTensor(ctx, a)
	result.Op = OpAdd1
	result.Src[0] = a
	result.Src[1] = b
	return result
}

// unImpl ist der gemeinsame Kern der elementweisen Unaer-Operatoren
func unImpl(ctx *Context, op Op, a *Tensor) *Tensor {
	result := dupTensor(ctx, a)
	result.Op = op
	result.Src[0] = a
	return result
}

// Sqr quadriert elementweise
func Sqr(ctx *Context, a *Tensor) *Tensor { return unImpl(ctx, OpSqr, a) }

// Sqrt zieht elementweise die Wurzel
func Sqrt(ctx *Context, a *Tensor) *Tensor { return unImpl(ctx, OpSqrt, a) }

// Log nimmt elementweise den natuerlichen Logarithmus
func Log(ctx *Context, a *Tensor) *Tensor { return unImpl(ctx, OpLog, a) }

// Sin wendet elementweise den Sinus an
func Sin(ctx *Context, a *Tensor) *Tensor { return unImpl(ctx, OpSin, a) }

// Cos wendet elementweise den Cosinus an
func Cos(ctx *Context, a *Tensor) *Tensor { return unImpl(ctx, OpCos, a) }

// Unary wendet die gegebene Punktfunktion an
func Unary(ctx *Context, a *Tensor, op UnaryOp) *Tensor {
	Assert(a.IsContiguous(), "unary ops require contiguous input")
	result := dupTensor(ctx, a)
	result.Op = OpUnary
	result.Src[0] = a
	result.opParams = unaryParams{Op: op}
	return result
}

// Abs nimmt elementweise den Betrag
func Abs(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryAbs) }

// Sgn liefert elementweise das Vorzeichen
func Sgn(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnarySgn) }

// Neg negiert elementweise
func Neg(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryNeg) }

// Step ist die Heaviside-Funktion
func Step(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryStep) }

// Tanh wendet tanh an
func Tanh(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryTanh) }

// Elu wendet ELU an
func Elu(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryElu) }

// Relu wendet ReLU an
func Relu(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryRelu) }

// Sigmoid wendet die logistische Funktion an
func Sigmoid(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnarySigmoid) }

// Gelu wendet GELU (tanh-Naeherung) an
func Gelu(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryGelu) }

// GeluQuick wendet die Sigmoid-Naeherung von GELU an
func GeluQuick(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryGeluQuick) }

// Silu wendet SiLU an
func Silu(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnarySilu) }

// Hardswish wendet Hardswish an
func Hardswish(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryHardswish) }

// Hardsigmoid wendet Hardsigmoid an
func Hardsigmoid(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryHardsigmoid) }

// Exp exponentiert elementweise
func Exp(ctx *Context, a *Tensor) *Tensor { return Unary(ctx, a, UnaryExp) }

// LeakyRelu wendet ReLU mit negativer Steigung an
func LeakyRelu(ctx *Context, a *Tensor, negSlope float32) *Tensor {
	result := dupTensor(ctx, a)
	result.Op = OpLeakyRelu
	result.Src[0] = a
	result.opParams = leakyReluParams{NegSlope: negSlope}
	return result
}

// SiluBack ist der Rueckwaertspfad von SiLU: dx aus (x, dy)
func SiluBack(ctx *Context, a, b *Tensor) *Tensor {
	result := dupTensor(ctx, a)
	result.Op = OpSiluBack
	result.Src[0] = a
	result.Src[1] = b
	return result
}

// Scale multipliziert mit einem Skalar
func Scale(ctx *Context, a *Tensor, s float32) *Tensor {
	return scaleImpl(ctx, a, s, false)
}

// ScaleInplace multipliziert direkt in a
func ScaleInplace(ctx *Context, a *Tensor, s float32) *Tensor {
	return scaleImpl(ctx, a, s, true)
}

func scaleImpl(ctx *Context, a *Tensor, s float32, inplace bool) *Tensor {
	Assert(a.IsPadded1D() || a.IsContiguous(), "scale requires padded rows")

	var result *Tensor
	if inplace {
		result = viewTensor(ctx, a)
	} else {
		result = dupTensor(ctx, a)
	}
	result.Op = OpScale
	result.Src[0] = a
	result.opParams = scaleParams{Scale: s}
	return result
}

// Clamp begrenzt alle Elemente auf [min, max]
func Clamp(ctx *Context, a *Tensor, min, max float32) *Tensor {
	result := viewTensor(ctx, a)
	result.Op = OpClamp
	result.Src[0] = a
	result.opParams = clampParams{Min: min, Max: max}
	return result
}

// Sum reduziert alle Elemente auf einen Skalar
func Sum(ctx *Context, a *Tensor) *Tensor {
	result := NewTensor1D(ctx, a.Type, 1)
	result.Op = OpSum
	result.Src[0] = a
	return result
}

// SumRows summiert jede Zeile auf ein Element
func SumRows(ctx *Context, a *Tensor) *Tensor {
	result := NewTensor4D(ctx, a.Type, 1, a.Ne[1], a.Ne[2], a.Ne[3])
	result.Op = OpSumRows
	result.Src[0] = a
	return result
}

// Mean mittelt jede Zeile
func Mean(ctx *Context, a *Tensor) *Tensor {
	result := NewTensor4D(ctx, TypeF32, 1, a.Ne[1], a.Ne[2], a.Ne[3])
	result.Op = OpMean
	result.Src[0] = a
	return result
}

// Argmax liefert je Zeile den Index des Maximums
func Argmax(ctx *Context, a *Tensor) *Tensor {
	Assert(a.IsMatrix(), "argmax expects a matrix")
	result := NewTensor1D(ctx, TypeI32, a.Ne[1])
	result.Op = OpArgmax
	result.Src[0] = a
	return result
}

// CountEqual zaehlt elementweise Gleichheit zweier i32-Tensoren
func CountEqual(ctx *Context, a, b *Tensor) *Tensor {
	Assert(a.SameShape(b), "count_equal: shapes must match")
	Assert(a.Type == TypeI32 && b.Type == TypeI32, "count_equal: i32 only")

	result := NewTensor1D(ctx, TypeI64, 1)
	result.Op = OpCountEqual
	result.Src[0] = a
	result.Src[1] = b
	return result
}

// Repeat wiederholt a auf die Form von b
func Repeat(ctx *Context, a, b *Tensor) *Tensor {
	Assert(a.CanRepeat(b), "repeat: a does not tile b")

	result := NewTensor4D(ctx, a.Type, b.Ne[0], b.Ne[1], b.Ne[2], b.Ne[3])
	result.Op = OpRepeat
	result.Src[0] = a
	return result
}

// RepeatBack faltet die Wiederholungen von a auf die Form von b zusammen
func RepeatBack(ctx *Context, a, b *Tensor) *Tensor {
	Assert(b.CanRepeat(a), "repeat_back: b does not tile a")

	result := NewTensor4D(ctx, a.Type, b.Ne[0], b.Ne[1], b.Ne[2], b.Ne[3])
	result.Op = OpRepeatBack
	result.Src[0] = a
	return result
}

// Concat haengt b entlang der Achse dim an a an
func Concat(ctx *Context, a, b *Tensor, dim int) *Tensor {
	Assertf(dim >= 0 && dim < MaxDims, "concat: invalid axis %d", dim)
	Assert(a.Type == b.Type, "concat: types must match")
	for i := 0; i < MaxDims; i++ {
		Assert(i == dim || a.Ne[i] == b.Ne[i], "concat: shapes must match outside the axis")
	}

	ne := a.Ne
	ne[dim] += b.Ne[dim]
	result := NewTensor4D(ctx, a.Type, ne[0], ne[1], ne[2], ne[3])
	result.Op = OpConcat
	result.Src[0] = a
	result.Src[1] = b
	result.opParams = concatParams{Dim: int32(dim)}
	return result
}

// Norm normalisiert jede Zeile auf Mittelwert 0 und Varianz 1
func Norm(ctx *Context, a *Tensor, eps float32) *Tensor {
	result := dupTensor(ctx, a)
	result.Op = OpNorm
	result.Src[0] = a
	result.opParams = normParams{Eps: eps}
	return result
}

// RMSNorm normalisiert jede Zeile auf die quadratische Mittelwert-Norm
func RMSNorm(ctx *Context, a *Tensor, eps float32) *Tensor {
	result := dupTensor(ctx, a)
	result.Op = OpRMSNorm
	result.Src[0] = a
	result.opParams = normParams{Eps: eps}
	return result
}

// RMSNormBack ist der Rueckwaertspfad von RMSNorm: dx aus (x, dy)
func RMSNormBack(ctx *Context, a, b *Tensor, eps float32) *Tensor {
	result := dupTensor(ctx, a)
	result.Op = OpRMSNormBack
	result.Src[0] = a
	result.Src[1] = b
	result.opParams = normParams{Eps: eps}
	return result
}

// GroupNorm normalisiert ueber Kanalgruppen (fuer Bild-Tensoren)
func GroupNorm(ctx *Context, a *Tensor, nGroups int, eps float32) *Tensor {
	result := dupTensor(ctx, a)
	result.Op = OpGroupNorm
	result.Src[0] = a
	result.opParams = groupNormParams{NGroups: int32(nGroups), Eps: eps}
	return result
}

// Argsort sortiert jede Zeile und liefert die Permutationsindizes
func Argsort(ctx *Context, a *Tensor, order SortOrder) *Tensor {
	Assert(a.Type == TypeF32, "argsort: f32 only")
	result := NewTensor4D(ctx, TypeI32, a.Ne[0], a.Ne[1], a.Ne[2], a.Ne[3])
	result.Op = OpArgsort
	result.Src[0] = a
	result.opParams = argsortParams{Order: order}
	return result
}

// TopK liefert die Indizes der k groessten Elemente jeder Zeile
func TopK(ctx *Context, a *Tensor, k int64) *Tensor {
	Assert(a.Ne[0] >= k, "top_k: k exceeds the row length")
	sorted := Argsort(ctx, a, SortDesc)
	return View4D(ctx, sorted,
		k, sorted.Ne[1], sorted.Ne[2], sorted.Ne[3],
		sorted.Nb[1], sorted.Nb[2], sorted.Nb[3], 0)
}
