// kernels_ssm.go - Zustandsraum- und RWKV-Rekurrenzen
// Enthaelt: computeSSMConv, computeSSMScan, computeRWKVWKV6
//
// SSM: kausale Faltung der Breite d_conv, danach die diskrete
// Rekurrenz x_t = exp(dt*A)*x_{t-1} + dt*B*u_t; y_t = C*x_t mit
// dt = softplus(dt_roh). RWKV haelt je Kopf einen S x S Zustand:
// state <- td*state + k^T v; out = r*(tf*k^T v + state).

package ggml

import "math"

func computeSSMConv(p *computeParams, dst *Tensor) {
	sx := dst.Src[0] // [d_conv-1+n_t, d_inner, n_s]
	c := dst.Src[1]  // [d_conv, d_inner]

	dConv := c.Ne[0]
	dInner := dst.Ne[0]
	nt := dst.Ne[1]

	c0, c1 := rowRange(dInner, p.ith, p.nth)

	for is := int64(0); is < dst.Ne[2]; is++ {
		for ic := c0; ic < c1; ic++ {
			in := rowF32(sx, ic, is, 0)
			kernel := rowF32(c, ic, 0, 0)
			for t := int64(0); t < nt; t++ {
				rowF32(dst, t, is, 0)[ic] = vecDotF32(int(dConv), in[t:t+dConv], kernel)
			}
		}
	}
}

func computeSSMScan(p *computeParams, dst *Tensor) {
	s0 := dst.Src[0] // Anfangszustand [d_state, d_inner, n_s]
	x := dst.Src[1]  // [d_inner, n_t, n_s]
	dt := dst.Src[2] // wie x
	A := dst.Src[3]  // [d_state, d_inner]
	B := dst.Src[4]  // [d_state, n_t, n_s]
	C := dst.Src[5]  // [d_state, n_t, n_s]

	dState := s0.Ne[0]
	dInner := x.Ne[0]
	nt := x.Ne[1]
	ns := x.Ne[2]

	// Layout der Ausgabe: y in x-Form, dahinter der Endzustand
	out := dst.Floats()
	y := out[:x.NElements()]
	state := out[x.NElements():]

	c0, c1 := rowRange(dInner, p.ith, p.nth)

	for is := int64(0); is < ns; is++ {
		// Anfangszustand der eigenen Kanaele uebernehmen
		for ic := c0; ic < c1; ic++ {
			copy(state[(is*dInner+ic)*dState:(is*dInner+ic+1)*dState],
				rowF32(s0, ic, is, 0))
		}

		for t := int64(0); t < nt; t++ {
			xRow := rowF32(x, t, is, 0)
			dtRow := rowF32(dt, t, is, 0)
			bRow := rowF32(B, t, is, 0)
			cRow := rowF32(C, t, is, 0)

			for ic := c0; ic < c1; ic++ {
				dta := softplus(dtRow[ic])
				xdt := xRow[ic] * dta
				aRow := rowF32(A, ic, 0, 0)
				st := state[(is*dInner+ic)*dState : (is*dInner+ic+1)*dState]

				var sum float32
				for j := int64(0); j < dState; j++ {
					st[j] = st[j]*float32(math.Exp(float64(dta*aRow[j]))) + bRow[j]*xdt
					sum += st[j] * cRow[j]
				}
				y[(is*nt+t)*dInner+ic] = sum
			}
		}
	}
}

func computeRWKVWKV6(p *computeParams, dst *Tensor) {
	k := dst.Src[0]  // [S, H, T]
	v := dst.Src[1]  // [S, H, T]
	r := dst.Src[2]  // [S, H, T]
	tf := dst.Src[3] // [S, H]
	td := dst.Src[4] // [S, H, T]
	s0 := dst.Src[5] // [S*S*H, n_s]

	S := k.Ne[0]
	H := k.Ne[1]
	T := k.Ne[2]

	out := dst.Floats()
	y := out[:S*H*T]
	state := out[S*H*T:]

	h0, h1 := rowRange(H, p.ith, p.nth)

	for ih := h0; ih < h1; ih++ {
		st := state[ih*S*S : (ih+1)*S*S] // st[j*S+i]
		copy(st, s0.Floats()[ih*S*S:(ih+1)*S*S])
		tfRow := rowF32(tf, ih, 0, 0)

		for t := int64(0); t < T; t++ {
			kRow := rowF32(k, ih, t, 0)
			vRow := rowF32(v, ih, t, 0)
			rRow := rowF32(r, ih, t, 0)
			tdRow := rowF32(td, ih, t, 0)
			yRow := y[(t*H+ih)*S : (t*H+ih+1)*S]

			vecSetF32(int(S), yRow, 0)
			for j := int64(0); j < S; j++ {
				kv := kRow[j]
				rj := rRow[j]
				decay := tdRow[j]
				first := tfRow[j]
				row := st[j*S : (j+1)*S]
				for i := int64(0); i < S; i++ {
					kvv := kv * vRow[i]
					yRow[i] += rj * (first*kvv + row[i])
					row[i] = decay*row[i] + kvv
				}
			}
		}
	}
}
