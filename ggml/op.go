// op.go - Operator-Codes des Berechnungsgraphen
// Enthaelt: Op, UnaryOp, PoolOp, SortOrder, Status und String-Tabellen

package ggml

// Op identifiziert die Operation eines Graph-Knotens
type Op int

const (
	OpNone Op = iota

	OpDup
	OpAdd
	OpAdd1
	OpAcc
	OpSub
	OpMul
	OpDiv
	OpSqr
	OpSqrt
	OpLog
	OpSin
	OpCos
	OpSum
	OpSumRows
	OpMean
	OpArgmax
	OpCountEqual
	OpRepeat
	OpRepeatBack
	OpConcat
	OpSiluBack
	OpNorm
	OpRMSNorm
	OpRMSNormBack
	OpGroupNorm

	OpMulMat
	OpMulMatID
	OpOutProd

	OpScale
	OpSet
	OpCpy
	OpCont
	OpReshape
	OpView
	OpPermute
	OpTranspose
	OpGetRows
	OpGetRowsBack
	OpDiag
	OpDiagMaskInf
	OpDiagMaskZero
	OpSoftMax
	OpSoftMaxBack
	OpRope
	OpRopeBack
	OpClamp
	OpConvTranspose1D
	OpIm2Col
	OpConvTranspose2D
	OpPool1D
	OpPool2D
	OpPool2DBack
	OpUpscale
	OpPad
	OpArange
	OpTimestepEmbedding
	OpArgsort
	OpLeakyRelu

	OpFlashAttnExt
	OpSSMConv
	OpSSMScan
	OpRWKVWKV6

	OpUnary

	OpCrossEntropyLoss
	OpCrossEntropyLossBack

	OpCount
)

var opNames = [OpCount]string{
	"NONE",
	"DUP", "ADD", "ADD1", "ACC", "SUB", "MUL", "DIV", "SQR", "SQRT",
	"LOG", "SIN", "COS", "SUM", "SUM_ROWS", "MEAN", "ARGMAX",
	"COUNT_EQUAL", "REPEAT", "REPEAT_BACK", "CONCAT", "SILU_BACK",
	"NORM", "RMS_NORM", "RMS_NORM_BACK", "GROUP_NORM",
	"MUL_MAT", "MUL_MAT_ID", "OUT_PROD",
	"SCALE", "SET", "CPY", "CONT", "RESHAPE", "VIEW", "PERMUTE",
	"TRANSPOSE", "GET_ROWS", "GET_ROWS_BACK", "DIAG", "DIAG_MASK_INF",
	"DIAG_MASK_ZERO", "SOFT_MAX", "SOFT_MAX_BACK", "ROPE", "ROPE_BACK",
	"CLAMP", "CONV_TRANSPOSE_1D", "IM2COL", "CONV_TRANSPOSE_2D",
	"POOL_1D", "POOL_2D", "POOL_2D_BACK", "UPSCALE", "PAD", "ARANGE",
	"TIMESTEP_EMBEDDING", "ARGSORT", "LEAKY_RELU",
	"FLASH_ATTN_EXT", "SSM_CONV", "SSM_SCAN", "RWKV_WKV6",
	"UNARY",
	"CROSS_ENTROPY_LOSS", "CROSS_ENTROPY_LOSS_BACK",
}

// String gibt den Operator-Namen zurueck
func (op Op) String() string {
	if op < 0 || op >= OpCount {
		return "INVALID"
	}
	return opNames[op]
}

// UnaryOp identifiziert die Funktion eines OpUnary-Knotens
type UnaryOp int

const (
	UnaryAbs UnaryOp = iota
	UnarySgn
	UnaryNeg
	UnaryStep
	UnaryTanh
	UnaryElu
	UnaryRelu
	UnarySigmoid
	UnaryGelu
	UnaryGeluQuick
	UnarySilu
	UnaryHardswish
	UnaryHardsigmoid
	UnaryExp

	unaryCount
)

var unaryNames = [unaryCount]string{
	"ABS", "SGN", "NEG", "STEP", "TANH", "ELU", "RELU", "SIGMOID",
	"GELU", "GELU_QUICK", "SILU", "HARDSWISH", "HARDSIGMOID", "EXP",
}

// String gibt den Namen der Unary-Funktion zurueck
func (u UnaryOp) String() string {
	if u < 0 || u >= unaryCount {
		return "INVALID"
	}
	return unaryNames[u]
}

// PoolOp identifiziert die Pooling-Variante
type PoolOp int

const (
	PoolMax PoolOp = iota
	PoolAvg
)

// SortOrder bestimmt die Sortierrichtung von OpArgsort
type SortOrder int

const (
	SortAsc SortOrder = iota
	SortDesc
)

// Status ist das Ergebnis einer Graph-Berechnung
type Status int

const (
	StatusAllocFailed Status = -2
	StatusFailed      Status = -1
	StatusSuccess     Status = 0
	StatusAborted     Status = 1
)

// String gibt den Status-Namen zurueck
func (s Status) String() string {
	switch s {
	case StatusAllocFailed:
		return "GGML status: error (failed to allocate memory)"
	case StatusFailed:
		return "GGML status: error (operation failed)"
	case StatusSuccess:
		return "GGML status: success"
	case StatusAborted:
		return "GGML status: warning (compute aborted)"
	}
	return "GGML status: unknown"
}
