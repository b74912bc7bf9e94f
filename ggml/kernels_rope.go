// kernels_rope.go - Rotations-Positions-Embedding
// Enthaelt: computeRope (NORM/NEOX-Layout, YaRN-Extrapolation,
// Frequenz-Faktoren); der Rueckwaertspfad invertiert das Vorzeichen
// des Sinus

package ggml

import "math"

// ropeYarnCorrDim liefert die Korrektur-Dimension fuer nRot Rotationen
func ropeYarnCorrDim(nDims, nCtxOrig int, nRot, base float64) float64 {
	return float64(nDims) * math.Log(float64(nCtxOrig)/(nRot*2*math.Pi)) / (2 * math.Log(base))
}

// ropeYarnCorrDims bestimmt das Rampenfenster aus betaFast/betaSlow
func ropeYarnCorrDims(nDims, nCtxOrig int, freqBase, betaFast, betaSlow float32) (low, high float64) {
	low = math.Floor(ropeYarnCorrDim(nDims, nCtxOrig, float64(betaFast), float64(freqBase)))
	high = math.Ceil(ropeYarnCorrDim(nDims, nCtxOrig, float64(betaSlow), float64(freqBase)))
	if low < 0 {
		low = 0
	}
	if high > float64(nDims-1) {
		high = float64(nDims - 1)
	}
	return low, high
}

// ropeYarnRamp ist die lineare Rampe ueber das Frequenzband
func ropeYarnRamp(low, high float64, i0 int) float64 {
	y := (float64(i0)/2 - low) / math.Max(0.001, high-low)
	v := 1 - math.Min(1, math.Max(0, y))
	return v
}

// ropeYarn mischt interpolierten und extrapolierten Winkel und liefert
// cos/sin mit Magnituden-Korrektur
func ropeYarn(thetaExtrap, freqScale float64, low, high float64, i0 int, extFactor, mscale float32) (cosTheta, sinTheta float32) {
	thetaInterp := freqScale * thetaExtrap
	theta := thetaInterp
	m := float64(mscale)

	if extFactor != 0 {
		rampMix := ropeYarnRamp(low, high, i0) * float64(extFactor)
		theta = thetaInterp*(1-rampMix) + thetaExtrap*rampMix
		m *= 1 + 0.1*math.Log(1/freqScale)
	}

	return float32(math.Cos(theta) * m), float32(math.Sin(theta) * m)
}

func computeRope(p *computeParams, dst *Tensor) {
	src0 := dst.Src[0]
	pos := dst.Src[1]
	freqFactors := dst.Src[2]
	prm := opParamsOf[ropeParams](dst)

	nDims := int(prm.NDims)
	thetaScale := math.Pow(float64(prm.FreqBase), -2.0/float64(nDims))
	low, high := ropeYarnCorrDims(nDims, int(prm.NCtxOrig), prm.FreqBase, prm.BetaFast, prm.BetaSlow)

	sinSign := float32(1)
	if prm.Backward {
		sinSign = -1
	}

	var ff []float32
	if freqFactors != nil {
		ff = freqFactors.Floats()
	}

	positions := pos.Ints()

	nr := dst.NRows()
	ir0, ir1 := rowRange(nr, p.ith, p.nth)

	for ir := ir0; ir < ir1; ir++ {
		i1, i2, i3 := rowIndex(dst, ir)
		s := rowF32(src0, i1, i2, i3)
		d := rowF32(dst, i1, i2, i3)

		thetaBase := float64(positions[i2])

		for i0 := 0; i0 < nDims; i0 += 2 {
			theta := thetaBase * math.Pow(thetaScale, float64(i0)/2)
			if ff != nil {
				theta /= float64(ff[i0/2])
			}

			cosT, sinT := ropeYarn(theta, float64(prm.FreqScale), low, high, i0, prm.ExtFactor, prm.AttnFactor)
			sinT *= sinSign

			if prm.Mode == RopeModeNeox {
				// Haelften (i0/2, i0/2 + nDims/2)
				a, b := i0/2, i0/2+nDims/2
				x0, x1 := s[a], s[b]
				d[a] = x0*cosT - x1*sinT
				d[b] = x0*sinT + x1*cosT
			} else {
				// benachbarte Paare (i0, i0+1)
				x0, x1 := s[i0], s[i0+1]
				d[i0] = x0*cosT - x1*sinT
				d[i0+1] = x0*sinT + x1*cosT
			}
		}

		// Dimensionen jenseits von nDims bleiben unrotiert
		copy(d[nDims:], s[nDims:])
	}
}
