// tensor_matrix.go - Matrixprodukt-Operatoren
// Enthaelt: MulMat, MulMatID, OutProd

package ggml

// canMulMat prueft die Kontraktions- und Broadcast-Regeln
func canMulMat(a, b *Tensor) bool {
	return a.Ne[0] == b.Ne[0] &&
		b.Ne[2]%a.Ne[2] == 0 &&
		b.Ne[3]%a.Ne[3] == 0
}

// MulMat bildet dst = a^T * b als gebatchte 4-D-Kontraktion:
// a:[k,m,B2,B3], b:[k,n,B2',B3'] -> dst:[m,n,B2',B3'] in f32
func MulMat(ctx *Context, a, b *Tensor) *Tensor {
	Assertf(canMulMat(a, b), "mul_mat: shapes do not contract: %v x %v", a.Ne, b.Ne)
	Assert(!a.IsTransposed(), "mul_mat: a must not be transposed")

	result := NewTensor4D(ctx, TypeF32, a.Ne[1], b.Ne[1], b.Ne[2], b.Ne[3])
	result.Op = OpMulMat
	result.Src[0] = a
	result.Src[1] = b
	return result
}

// MulMatID waehlt je (Token, Slot) einen Experten aus as und
// multipliziert dessen Matrix mit der Token-Spalte von b.
// as:[k,m,E,1], b:[k,eu,T,1], ids:[eu,T] i32 -> dst:[m,eu,T,1]
func MulMatID(ctx *Context, as, b, ids *Tensor) *Tensor {
	Assert(as.Ne[3] == 1, "mul_mat_id: as must be 3-d")
	Assert(b.Ne[3] == 1, "mul_mat_id: b must be 3-d")
	Assert(ids.Type == TypeI32, "mul_mat_id: ids must be i32")
	Assert(ids.Ne[2] == 1 && ids.Ne[3] == 1, "mul_mat_id: ids must be a matrix")
	Assert(as.Ne[0] == b.Ne[0], "mul_mat_id: contraction length mismatch")
	Assert(ids.Ne[0] == b.Ne[1], "mul_mat_id: ids rows must match used experts")
	Assert(ids.Ne[1] == b.Ne[2], "mul_mat_id: ids columns must match tokens")

	result := NewTensor4D(ctx, TypeF32, as.Ne[1], ids.Ne[0], b.Ne[2], 1)
	result.Op = OpMulMatID
	result.Src[0] = as
	result.Src[1] = b
	result.Src[2] = ids
	return result
}

// OutProd bildet das aeussere Produkt: a:[m,k], b:[n,k] -> dst:[m,n]
// mit Akkumulation ueber die gemeinsame k-Achse, Batches broadcasten
func OutProd(ctx *Context, a, b *Tensor) *Tensor {
	Assert(a.Ne[1] == b.Ne[1], "out_prod: shared axis mismatch")
	Assert(b.Ne[2]%a.Ne[2] == 0 && b.Ne[3]%a.Ne[3] == 0, "out_prod: batch dims do not broadcast")
	Assert(!a.IsTransposed(), "out_prod: a must not be transposed")

	result := NewTensor4D(ctx, TypeF32, a.Ne[0], b.Ne[0], b.Ne[2], b.Ne[3])
	result.Op = OpOutProd
	result.Src[0] = a
	result.Src[1] = b
	return result
}
