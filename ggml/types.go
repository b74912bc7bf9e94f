// types.go - Tensor-Typen und Type-Traits-Registry
// Enthaelt: Type Konstanten, TypeTraits, RowSize, Block-/Byte-Groessen

package ggml

// Type ist der numerische Formatcode eines Tensors. Die Werte sind
// identisch mit den Typ-Tags im GGUF-Container.
type Type uint32

const (
	TypeF32  Type = 0
	TypeF16  Type = 1
	TypeQ4_0 Type = 2
	TypeQ4_1 Type = 3
	// 4, 5: Q4_2/Q4_3 wurden aus dem Format entfernt
	TypeQ5_0    Type = 6
	TypeQ5_1    Type = 7
	TypeQ8_0    Type = 8
	TypeQ8_1    Type = 9
	TypeQ2_K    Type = 10
	TypeQ3_K    Type = 11
	TypeQ4_K    Type = 12
	TypeQ5_K    Type = 13
	TypeQ6_K    Type = 14
	TypeQ8_K    Type = 15
	TypeIQ2_XXS Type = 16
	TypeIQ2_XS  Type = 17
	TypeIQ3_XXS Type = 18
	TypeIQ1_S   Type = 19
	TypeIQ4_NL  Type = 20
	TypeIQ3_S   Type = 21
	TypeIQ2_S   Type = 22
	TypeIQ4_XS  Type = 23
	TypeI8      Type = 24
	TypeI16     Type = 25
	TypeI32     Type = 26
	TypeI64     Type = 27
	TypeF64     Type = 28
	TypeIQ1_M   Type = 29
	TypeBF16    Type = 30
	TypeQ4_0_44 Type = 31
	TypeQ4_0_48 Type = 32
	TypeQ4_0_88 Type = 33
	TypeTQ1_0   Type = 34
	TypeTQ2_0   Type = 35

	TypeCount Type = 36
)

// qk ist die Blocklaenge der 32er-Formate, qkK die der K-Formate
const (
	qk  = 32
	qkK = 256
)

// TypeTraits parametrisiert Kernels ueber das numerische Format.
// Fehlende Callbacks bedeuten: die Operation ist fuer diesen Typ nicht
// unterstuetzt und muss via Assert abbrechen.
type TypeTraits struct {
	Name        string
	BlockSize   int
	TypeSize    int
	IsQuantized bool

	// ToFloat dekodiert len(dst) Elemente (Vielfaches von BlockSize)
	ToFloat func(src []byte, dst []float32)
	// FromFloat kodiert len(src) Elemente
	FromFloat func(src []float32, dst []byte)
	// FromFloatRef ist die skalare Referenz-Implementierung
	FromFloatRef func(src []float32, dst []byte)

	// VecDot bildet das Skalarprodukt einer Zeile dieses Typs mit
	// einer Zeile vom Typ VecDotType
	VecDot     func(n int, a, b []byte) float32
	VecDotType Type

	// Gemv/Gemm sind optionale gebatchte Einstiege fuer interleavte
	// Zeilen-Layouts; nil bedeutet: der generische Pfad rechnet
	Gemv func(n int, dst []float32, a, b []byte, nr, nc int)
	Gemm func(n int, dst []float32, a, b []byte, nr, nc int)

	// NRows: Zeilen pro VecDot-Aufruf
	NRows int
}

var typeTraits [TypeCount]TypeTraits

func init() {
	typeTraits[TypeF32] = TypeTraits{
		Name: "f32", BlockSize: 1, TypeSize: 4,
		ToFloat:   f32RowToF32,
		FromFloat: f32RowFromF32,
		VecDot:    vecDotBytesF32, VecDotType: TypeF32, NRows: 1,
	}
	typeTraits[TypeF16] = TypeTraits{
		Name: "f16", BlockSize: 1, TypeSize: 2,
		ToFloat:   fp16RowToF32,
		FromFloat: fp32RowToF16,
		VecDot:    vecDotBytesF16, VecDotType: TypeF16, NRows: 1,
	}
	typeTraits[TypeBF16] = TypeTraits{
		Name: "bf16", BlockSize: 1, TypeSize: 2,
		ToFloat:   bf16RowToF32,
		FromFloat: fp32RowToBF16,
		VecDot:    vecDotBytesBF16, VecDotType: TypeBF16, NRows: 1,
	}
	typeTraits[TypeF64] = TypeTraits{Name: "f64", BlockSize: 1, TypeSize: 8}
	typeTraits[TypeI8] = TypeTraits{Name: "i8", BlockSize: 1, TypeSize: 1}
	typeTraits[TypeI16] = TypeTraits{Name: "i16", BlockSize: 1, TypeSize: 2}
	typeTraits[TypeI32] = TypeTraits{Name: "i32", BlockSize: 1, TypeSize: 4}
	typeTraits[TypeI64] = TypeTraits{Name: "i64", BlockSize: 1, TypeSize: 8}

	typeTraits[TypeQ4_0] = TypeTraits{
		Name: "q4_0", BlockSize: qk, TypeSize: 2 + qk/2, IsQuantized: true,
		ToFloat:      dequantizeRowQ4_0,
		FromFloat:    quantizeRowQ4_0,
		FromFloatRef: quantizeRowQ4_0,
		VecDot:       vecDotQ4_0Q8_0, VecDotType: TypeQ8_0, NRows: 1,
	}
	typeTraits[TypeQ4_1] = TypeTraits{
		Name: "q4_1", BlockSize: qk, TypeSize: 2 + 2 + qk/2, IsQuantized: true,
		ToFloat:      dequantizeRowQ4_1,
		FromFloat:    quantizeRowQ4_1,
		FromFloatRef: quantizeRowQ4_1,
		VecDot:       vecDotQ4_1Q8_1, VecDotType: TypeQ8_1, NRows: 1,
	}
	typeTraits[TypeQ5_0] = TypeTraits{
		Name: "q5_0", BlockSize: qk, TypeSize: 2 + 4 + qk/2, IsQuantized: true,
		ToFloat:      dequantizeRowQ5_0,
		FromFloat:    quantizeRowQ5_0,
		FromFloatRef: quantizeRowQ5_0,
		VecDot:       vecDotQ5_0Q8_0, VecDotType: TypeQ8_0, NRows: 1,
	}
	typeTraits[TypeQ5_1] = TypeTraits{
		Name: "q5_1", BlockSize: qk, TypeSize: 2 + 2 + 4 + qk/2, IsQuantized: true,
		ToFloat:      dequantizeRowQ5_1,
		FromFloat:    quantizeRowQ5_1,
		FromFloatRef: quantizeRowQ5_1,
		VecDot:       vecDotQ5_1Q8_1, VecDotType: TypeQ8_1, NRows: 1,
	}
	typeTraits[TypeQ8_0] = TypeTraits{
		Name: "q8_0", BlockSize: qk, TypeSize: 2 + qk, IsQuantized: true,
		ToFloat:      dequantizeRowQ8_0,
		FromFloat:    quantizeRowQ8_0,
		FromFloatRef: quantizeRowQ8_0,
		VecDot:       vecDotQ8_0Q8_0, VecDotType: TypeQ8_0, NRows: 1,
	}
	typeTraits[TypeQ8_1] = TypeTraits{
		Name: "q8_1", BlockSize: qk, TypeSize: 2 + 2 + qk, IsQuantized: true,
		FromFloat:    quantizeRowQ8_1,
		FromFloatRef: quantizeRowQ8_1,
		VecDotType:   TypeQ8_1,
	}

	typeTraits[TypeQ2_K] = TypeTraits{
		Name: "q2_K", BlockSize: qkK, TypeSize: qkK/16 + qkK/4 + 2 + 2, IsQuantized: true,
		ToFloat:      dequantizeRowQ2_K,
		FromFloat:    quantizeRowQ2_K,
		FromFloatRef: quantizeRowQ2_K,
		VecDot:       vecDotQ2_KQ8_K, VecDotType: TypeQ8_K, NRows: 1,
	}
	typeTraits[TypeQ3_K] = TypeTraits{
		Name: "q3_K", BlockSize: qkK, TypeSize: qkK/8 + qkK/4 + 12 + 2, IsQuantized: true,
		ToFloat:      dequantizeRowQ3_K,
		FromFloat:    quantizeRowQ3_K,
		FromFloatRef: quantizeRowQ3_K,
		VecDot:       vecDotQ3_KQ8_K, VecDotType: TypeQ8_K, NRows: 1,
	}
	typeTraits[TypeQ4_K] = TypeTraits{
		Name: "q4_K", BlockSize: qkK, TypeSize: 2 + 2 + 12 + qkK/2, IsQuantized: true,
		ToFloat:      dequantizeRowQ4_K,
		FromFloat:    quantizeRowQ4_K,
		FromFloatRef: quantizeRowQ4_K,
		VecDot:       vecDotQ4_KQ8_K, VecDotType: TypeQ8_K, NRows: 1,
	}
	typeTraits[TypeQ5_K] = TypeTraits{
		Name: "q5_K", BlockSize: qkK, TypeSize: 2 + 2 + 12 + qkK/8 + qkK/2, IsQuantized: true,
		ToFloat:      dequantizeRowQ5_K,
		FromFloat:    quantizeRowQ5_K,
		FromFloatRef: quantizeRowQ5_K,
		VecDot:       vecDotQ5_KQ8_K, VecDotType: TypeQ8_K, NRows: 1,
	}
	typeTraits[TypeQ6_K] = TypeTraits{
		Name: "q6_K", BlockSize: qkK, TypeSize: qkK/2 + qkK/4 + qkK/16 + 2, IsQuantized: true,
		ToFloat:      dequantizeRowQ6_K,
		FromFloat:    quantizeRowQ6_K,
		FromFloatRef: quantizeRowQ6_K,
		VecDot:       vecDotQ6_KQ8_K, VecDotType: TypeQ8_K, NRows: 1,
	}
	typeTraits[TypeQ8_K] = TypeTraits{
		Name: "q8_K", BlockSize: qkK, TypeSize: 4 + qkK + 2*qkK/16, IsQuantized: true,
		ToFloat:   dequantizeRowQ8_K,
		FromFloat: quantizeRowQ8_K,
	}

	typeTraits[TypeIQ4_NL] = TypeTraits{
		Name: "iq4_nl", BlockSize: qk, TypeSize: 2 + qk/2, IsQuantized: true,
		ToFloat:      dequantizeRowIQ4_NL,
		FromFloat:    quantizeRowIQ4_NL,
		FromFloatRef: quantizeRowIQ4_NL,
		VecDot:       vecDotIQ4_NLQ8_0, VecDotType: TypeQ8_0, NRows: 1,
	}
	typeTraits[TypeIQ4_XS] = TypeTraits{
		Name: "iq4_xs", BlockSize: qkK, TypeSize: 2 + 2 + qkK/2 + qkK/64, IsQuantized: true,
		ToFloat:      dequantizeRowIQ4_XS,
		FromFloat:    quantizeRowIQ4_XS,
		FromFloatRef: quantizeRowIQ4_XS,
		VecDot:       vecDotIQ4_XSQ8_K, VecDotType: TypeQ8_K, NRows: 1,
	}
	typeTraits[TypeTQ1_0] = TypeTraits{
		Name: "tq1_0", BlockSize: qkK, TypeSize: 48 + 4 + 2, IsQuantized: true,
		ToFloat:      dequantizeRowTQ1_0,
		FromFloat:    quantizeRowTQ1_0,
		FromFloatRef: quantizeRowTQ1_0,
		VecDot:       vecDotTQ1_0Q8_K, VecDotType: TypeQ8_K, NRows: 1,
	}
	typeTraits[TypeTQ2_0] = TypeTraits{
		Name: "tq2_0", BlockSize: qkK, TypeSize: 2 + qkK/4, IsQuantized: true,
		ToFloat:      dequantizeRowTQ2_0,
		FromFloat:    quantizeRowTQ2_0,
		FromFloatRef: quantizeRowTQ2_0,
		VecDot:       vecDotTQ2_0Q8_K, VecDotType: TypeQ8_K, NRows: 1,
	}

	// Codebook-Formate: Block- und Byte-Groessen sind registriert, damit
	// GGUF-Dateien mit diesen Typen beschrieben und verlustfrei kopiert
	// werden koennen. Konvertierungs-Callbacks existieren nicht; Kernels
	// ueber diesen Typen brechen ab.
	typeTraits[TypeIQ2_XXS] = TypeTraits{Name: "iq2_xxs", BlockSize: qkK, TypeSize: 2 + 2*qkK/8, IsQuantized: true}
	typeTraits[TypeIQ2_XS] = TypeTraits{Name: "iq2_xs", BlockSize: qkK, TypeSize: 2 + 2*qkK/8 + qkK/32, IsQuantized: true}
	typeTraits[TypeIQ2_S] = TypeTraits{Name: "iq2_s", BlockSize: qkK, TypeSize: 2 + qkK/4 + qkK/16, IsQuantized: true}
	typeTraits[TypeIQ3_XXS] = TypeTraits{Name: "iq3_xxs", BlockSize: qkK, TypeSize: 2 + qkK/4 + qkK/8, IsQuantized: true}
	typeTraits[TypeIQ3_S] = TypeTraits{Name: "iq3_s", BlockSize: qkK, TypeSize: 2 + qkK/4 + qkK/8 + qkK/32 + 4, IsQuantized: true}
	typeTraits[TypeIQ1_S] = TypeTraits{Name: "iq1_s", BlockSize: qkK, TypeSize: 2 + qkK/8 + qkK/16, IsQuantized: true}
	typeTraits[TypeIQ1_M] = TypeTraits{Name: "iq1_m", BlockSize: qkK, TypeSize: qkK/8 + qkK/16 + qkK/32, IsQuantized: true}

	// Interleaved-Varianten: nur fuer vorgepackte Matmul-Gewichte,
	// keine Konvertierungen
	typeTraits[TypeQ4_0_44] = TypeTraits{Name: "q4_0_4x4", BlockSize: qk, TypeSize: 2 + qk/2, IsQuantized: true}
	typeTraits[TypeQ4_0_48] = TypeTraits{Name: "q4_0_4x8", BlockSize: qk, TypeSize: 2 + qk/2, IsQuantized: true}
	typeTraits[TypeQ4_0_88] = TypeTraits{Name: "q4_0_8x8", BlockSize: qk, TypeSize: 2 + qk/2, IsQuantized: true}
}

// Traits gibt den Traits-Eintrag des Typs zurueck
func (t Type) Traits() *TypeTraits {
	Assertf(t < TypeCount && typeTraits[t].Name != "", "invalid type %d", t)
	return &typeTraits[t]
}

// Valid meldet, ob der Typcode einem registrierten Typ entspricht
func (t Type) Valid() bool {
	return t < TypeCount && typeTraits[t].Name != ""
}

// String gibt den Typnamen zurueck
func (t Type) String() string {
	if !t.Valid() {
		return "invalid"
	}
	return typeTraits[t].Name
}

// BlockSize gibt die Elementanzahl eines Blocks zurueck (1 fuer dichte Typen)
func (t Type) BlockSize() int {
	return t.Traits().BlockSize
}

// TypeSize gibt die Byte-Groesse eines Blocks zurueck
func (t Type) TypeSize() int {
	return t.Traits().TypeSize
}

// IsQuantized meldet, ob der Typ blockquantisiert ist
func (t Type) IsQuantized() bool {
	return t.Traits().IsQuantized
}

// RowSize gibt die Byte-Laenge einer Zeile mit n Elementen zurueck.
// n muss ein Vielfaches der Blockgroesse sein.
func RowSize(t Type, n int64) int64 {
	tr := t.Traits()
	Assertf(n%int64(tr.BlockSize) == 0, "%s: row length %d not a multiple of block size %d", tr.Name, n, tr.BlockSize)
	return int64(tr.TypeSize) * n / int64(tr.BlockSize)
}

// f32RowToF32 kopiert eine F32-Zeile (Byte-Sicht) nach float32
func f32RowToF32(src []byte, dst []float32) {
	copy(dst, bytesToF32(src, len(dst)))
}

// f32RowFromF32 kopiert eine float32-Zeile in ihre Byte-Sicht
func f32RowFromF32(src []float32, dst []byte) {
	copy(bytesToF32(dst, len(src)), src)
}
