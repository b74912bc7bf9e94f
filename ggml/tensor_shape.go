// tensor_shape.go - Form-Operationen: Views, Reshape, Permute, Kopien
// Enthaelt: Cpy, Cont, Dup, Reshape*, View*, Permute, Transpose,
// GetRows, GetRowsBack, Diag, Set, Acc

package ggml

// viewTensor erstellt eine formgleiche Sicht auf a (teilt die Payload)
func viewTensor(ctx *Context, a *Tensor) *Tensor {
	t := newTensorRaw(ctx, a.Type, a.Ne[:], a, 0)
	t.Nb = a.Nb
	return t
}

// Dup kopiert a in einen neuen zusammenhaengenden Tensor
func Dup(ctx *Context, a *Tensor) *Tensor {
	result := dupTensor(ctx, a)
	result.Op = OpDup
	result.Src[0] = a
	return result
}

// Cpy schreibt a in die Form und den Typ von b (b ist das Ziel)
func Cpy(ctx *Context, a, b *Tensor) *Tensor {
	Assertf(a.NElements() == b.NElements(), "cpy: element count mismatch %d != %d", a.NElements(), b.NElements())

	result := viewTensor(ctx, b)
	result.Op = OpCpy
	result.Src[0] = a
	result.Src[1] = b
	if a.name != "" {
		result.SetName(a.name + " (copy of " + b.name + ")")
	}
	return result
}

// Cont erzwingt eine zusammenhaengende Kopie von a
func Cont(ctx *Context, a *Tensor) *Tensor {
	result := dupTensor(ctx, a)
	result.Op = OpCont
	result.Src[0] = a
	return result
}

// Reshape deutet die Elemente von a in der Form von b um
func Reshape(ctx *Context, a, b *Tensor) *Tensor {
	return reshapeImpl(ctx, a, b.Ne[:b.NDims()])
}

// Reshape1D deutet a als Vektor um
func Reshape1D(ctx *Context, a *Tensor, ne0 int64) *Tensor {
	return reshapeImpl(ctx, a, []int64{ne0})
}

// Reshape2D deutet a als Matrix um
func Reshape2D(ctx *Context, a *Tensor, ne0, ne1 int64) *Tensor {
	return reshapeImpl(ctx, a, []int64{ne0, ne1})
}

// Reshape3D deutet a als Rang-3-Tensor um
func Reshape3D(ctx *Context, a *Tensor, ne0, ne1, ne2 int64) *Tensor {
	return reshapeImpl(ctx, a, []int64{ne0, ne1, ne2})
}

// Reshape4D deutet a als Rang-4-Tensor um
func Reshape4D(ctx *Context, a *Tensor, ne0, ne1, ne2, ne3 int64) *Tensor {
	return reshapeImpl(ctx, a, []int64{ne0, ne1, ne2, ne3})
}

func reshapeImpl(ctx *Context, a *Tensor, ne []int64) *Tensor {
	Assert(a.IsContiguous(), "reshape requires a contiguous base")
	n := int64(1)
	for _, v := range ne {
		n *= v
	}
	Assertf(n == a.NElements(), "reshape: element count mismatch %d != %d", n, a.NElements())

	result := newTensorRaw(ctx, a.Type, ne, a, 0)
	result.Op = OpReshape
	result.Src[0] = a
	if a.name != "" {
		result.SetName(a.name + " (reshaped)")
	}
	return result
}

// View1D erstellt eine Vektor-Sicht ab offset Bytes
func View1D(ctx *Context, a *Tensor, ne0, offset int64) *Tensor {
	return viewImpl(ctx, a, []int64{ne0}, nil, offset)
}

// View2D erstellt eine Matrix-Sicht mit eigener Zeilen-Stride
func View2D(ctx *Context, a *Tensor, ne0, ne1, nb1, offset int64) *Tensor {
	return viewImpl(ctx, a, []int64{ne0, ne1}, []int64{nb1}, offset)
}

// View3D erstellt eine Rang-3-Sicht
func View3D(ctx *Context, a *Tensor, ne0, ne1, ne2, nb1, nb2, offset int64) *Tensor {
	return viewImpl(ctx, a, []int64{ne0, ne1, ne2}, []int64{nb1, nb2}, offset)
}

// View4D erstellt eine Rang-4-Sicht
func View4D(ctx *Context, a *Tensor, ne0, ne1, ne2, ne3, nb1, nb2, nb3, offset int64) *Tensor {
	return viewImpl(ctx, a, []int64{ne0, ne1, ne2, ne3}, []int64{nb1, nb2, nb3}, offset)
}

func viewImpl(ctx *Context, a *Tensor, ne, nb []int64, offset int64) *Tensor {
	result := newTensorRaw(ctx, a.Type, ne, a, offset)
	for i, v := range nb {
		result.Nb[i+1] = v
	}
	if len(nb) > 0 {
		for i := len(nb) + 1; i < MaxDims; i++ {
			result.Nb[i] = result.Nb[i-1] * result.Ne[i-1]
		}
	}
	result.Op = OpView
	result.Src[0] = a
	if a.name != "" {
		result.SetName(a.name + " (view)")
	}
	return result
}

// Permute ordnet die Achsen um: Achse i von a wird Achse axis_i des Ergebnisses
func Permute(ctx *Context, a *Tensor, axis0, axis1, axis2, axis3 int) *Tensor {
	ax := [MaxDims]int{axis0, axis1, axis2, axis3}
	seen := [MaxDims]bool{}
	for _, v := range ax {
		Assertf(v >= 0 && v < MaxDims, "axis %d out of range", v)
		Assertf(!seen[v], "duplicate axis %d", v)
		seen[v] = true
	}

	result := viewTensor(ctx, a)
	for i := 0; i < MaxDims; i++ {
		result.Ne[ax[i]] = a.Ne[i]
		result.Nb[ax[i]] = a.Nb[i]
	}
	result.Op = OpPermute
	result.Src[0] = a
	result.opParams = permuteParams{Axis: [MaxDims]int32{int32(axis0), int32(axis1), int32(axis2), int32(axis3)}}
	if a.name != "" {
		result.SetName(a.name + " (permuted)")
	}
	return result
}

// Transpose vertauscht die ersten beiden Achsen
func Transpose(ctx *Context, a *Tensor) *Tensor {
	result := viewTensor(ctx, a)
	result.Ne[0], result.Ne[1] = a.Ne[1], a.Ne[0]
	result.Nb[0], result.Nb[1] = a.Nb[1], a.Nb[0]
	result.Op = OpTranspose
	result.Src[0] = a
	if a.name != "" {
		result.SetName(a.name + " (transposed)")
	}
	return result
}

// GetRows sammelt Zeilen von a anhand der i32-Indizes in b
func GetRows(ctx *Context, a, b *Tensor) *Tensor {
	Assert(a.Ne[2] == b.Ne[1], "get_rows: batch dimensions must line up")
	Assert(b.Ne[3] == 1, "get_rows: index tensor must be at most 2-d")
	Assert(b.Type == TypeI32, "get_rows: indices must be i32")

	// quantisierte Quellen werden nach f32 dekodiert
	typ := TypeF32
	if !a.Type.IsQuantized() {
		typ = a.Type
	}
	result := NewTensor4D(ctx, typ, a.Ne[0], b.Ne[0], b.Ne[1], b.Ne[2])
	result.Op = OpGetRows
	result.Src[0] = a
	result.Src[1] = b
	return result
}

// GetRowsBack streut die Gradienten-Zeilen von a in die Form von c zurueck
func GetRowsBack(ctx *Context, a, b, c *Tensor) *Tensor {
	Assert(a.IsMatrix() && b.IsVector() && c.IsMatrix(), "get_rows_back expects matrix/vector/matrix")
	Assert(b.Type == TypeI32, "get_rows_back: indices must be i32")

	result := NewTensor2D(ctx, TypeF32, c.Ne[0], c.Ne[1])
	result.Op = OpGetRowsBack
	result.Src[0] = a
	result.Src[1] = b
	return result
}

// Diag legt den Vektor a auf die Diagonale einer (n,n)-Matrix
func Diag(ctx *Context, a *Tensor) *Tensor {
	Assert(a.Ne[1] == 1, "diag expects a row vector")
	result := NewTensor4D(ctx, a.Type, a.Ne[0], a.Ne[0], a.Ne[2], a.Ne[3])
	result.Op = OpDiag
	result.Src[0] = a
	return result
}

// Set schreibt b an die durch Strides/Offset beschriebene Stelle in a
func Set(ctx *Context, a, b *Tensor, nb1, nb2, nb3, offset int64) *Tensor {
	return setImpl(ctx, a, b, nb1, nb2, nb3, offset, false)
}

// SetInplace schreibt b direkt in a (ohne Kopie von a)
func SetInplace(ctx *Context, a, b *Tensor, nb1, nb2, nb3, offset int64) *Tensor {
	return setImpl(ctx, a, b, nb1, nb2, nb3, offset, true)
}

// Set1D schreibt den Vektor b ab offset Bytes in a
func Set1D(ctx *Context, a, b *Tensor, offset int64) *Tensor {
	return setImpl(ctx, a, b, a.Nb[1], a.Nb[2], a.Nb[3], offset, false)
}

func setImpl(ctx *Context, a, b *Tensor, nb1, nb2, nb3, offset int64, inplace bool) *Tensor {
	Assert(a.NElements() >= b.NElements(), "set: destination too small")

	var result *Tensor
	if inplace {
		result = viewTensor(ctx, a)
	} else {
		result = dupTensor(ctx, a)
	}
	result.Op = OpSet
	result.Src[0] = a
	result.Src[1] = b
	result.opParams = setParams{Nb1: nb1, Nb2: nb2, Nb3: nb3, Offset: offset, Inplace: inplace}
	return result
}

// Acc akkumuliert b an der durch Strides/Offset beschriebenen Stelle in a
func Acc(ctx *Context, a, b *Tensor, nb1, nb2, nb3, offset int64) *Tensor {
	return accImpl(ctx, a, b, nb1, nb2, nb3, offset, false)
}

// AccInplace akkumuliert b direkt in a
func AccInplace(ctx *Context, a, b *Tensor, nb1, nb2, nb3, offset int64) *Tensor {
	return accImpl(ctx, a, b, nb1, nb2, nb3, offset, true)
}

func accImpl(ctx *Context, a, b *Tensor, nb1, nb2, nb3, offset int64, inplace bool) *Tensor {
	Assert(b.NElements() <= a.NElements(), "acc: source exceeds destination")
	Assert(a.IsContiguous(), "acc: destination must be contiguous")
	Assert(a.Type == TypeF32 && b.Type == TypeF32, "acc: f32 only")

	var result *Tensor
	if inplace {
		result = viewTensor(ctx, a)
	} else {
		result = dupTensor(ctx, a)
	}
	result.Op = OpAcc
	result.Src[0] = a
	result.Src[1] = b
	result.opParams = setParams{Nb1: nb1, Nb2: nb2, Nb3: nb3, Offset: offset, Inplace: inplace}
	return result
}
