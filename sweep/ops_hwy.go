package sweep

import (
	"github.com/ajroetker/go-highway/hwy"
)

// VectorWidth returns the number of float64 lanes of the active SIMD
// target. The vector backend requires the angle count to be a multiple
// of this width.
func VectorWidth() int {
	return hwy.MaxLanes[float64]()
}

// vectorOps returns the SIMD backend. All primitives assume full
// vectors; the kernel constructor enforces the divisibility
// precondition so no tail handling is needed.
func vectorOps() angleOps {
	return angleOps{
		width:          VectorWidth(),
		fill:           hwyFill,
		axpy:           hwyAxpy,
		edge:           hwyEdge,
		mul:            hwyMul,
		prod:           hwyProd,
		diamond:        hwyDiamond,
		fixupFlags:     hwyFixupFlags,
		fixupRecompute: hwyFixupRecompute,
		weighted:       hwyWeighted,
		dot:            hwyDot,
	}
}

func hwyFill(dst []float64, v float64) {
	vv := hwy.Set(v)
	lanes := vv.NumLanes()
	for i := 0; i < len(dst); i += lanes {
		hwy.Store(vv, dst[i:])
	}
}

func hwyAxpy(dst, x []float64, s float64) {
	vs := hwy.Set(s)
	lanes := vs.NumLanes()
	for i := 0; i < len(dst); i += lanes {
		acc := hwy.MulAdd(vs, hwy.Load(x[i:]), hwy.Load(dst[i:]))
		hwy.Store(acc, dst[i:])
	}
}

func hwyEdge(dst, in, cos []float64, h float64) {
	vh := hwy.Set(h)
	lanes := vh.NumLanes()
	for i := 0; i < len(dst); i += lanes {
		coupled := hwy.Mul(hwy.Load(in[i:]), hwy.Mul(hwy.Load(cos[i:]), vh))
		hwy.Store(hwy.Add(hwy.Load(dst[i:]), coupled), dst[i:])
	}
}

func hwyMul(dst, x []float64) {
	lanes := hwy.MaxLanes[float64]()
	for i := 0; i < len(dst); i += lanes {
		hwy.Store(hwy.Mul(hwy.Load(dst[i:]), hwy.Load(x[i:])), dst[i:])
	}
}

func hwyProd(dst, a1, a2 []float64) {
	lanes := hwy.MaxLanes[float64]()
	for i := 0; i < len(dst); i += lanes {
		hwy.Store(hwy.Mul(hwy.Load(a1[i:]), hwy.Load(a2[i:])), dst[i:])
	}
}

func hwyDiamond(dst, pc, in []float64) {
	two := hwy.Set(2.0)
	lanes := two.NumLanes()
	for i := 0; i < len(dst); i += lanes {
		v := hwy.Sub(hwy.Mul(two, hwy.Load(pc[i:])), hwy.Load(in[i:]))
		hwy.Store(v, dst[i:])
	}
}

func hwyFixupFlags(fx, pc, in, hv []float64) int {
	two := hwy.Set(2.0)
	zero := hwy.Zero[float64]()
	lanes := two.NumLanes()
	neg := 0
	for i := 0; i < len(pc); i += lanes {
		vfx := hwy.Sub(hwy.Mul(two, hwy.Load(pc[i:])), hwy.Load(in[i:]))
		hwy.Store(vfx, fx[i:])
		ge := hwy.GreaterEqual(vfx, zero)
		// Lanes whose candidate went negative lose their half-weight.
		hwy.Store(hwy.IfThenElseZero(ge, hwy.Load(hv[i:])), hv[i:])
		neg += lanes - ge.CountTrue()
	}
	return neg
}

func hwyFixupRecompute(pc, psi, psii, psij, psik, tfin, hvX, hvY, hvZ, hvT []float64, t fixupTerms) {
	one := hwy.Set(1.0)
	half := hwy.Set(0.5)
	zero := hwy.Zero[float64]()
	vtol := hwy.Set(tolr)
	vhi := hwy.Set(t.hi)
	vhj := hwy.Set(t.hj)
	vhk := hwy.Set(t.hk)
	vtxs := hwy.Set(t.txs)
	vdt := hwy.Set(t.vdelt)
	lanes := one.NumLanes()
	for i := 0; i < len(pc); i += lanes {
		mu := hwy.Mul(hwy.Load(t.mu[i:]), vhi)
		eta := hwy.Mul(hwy.Load(t.eta[i:]), vhj)
		xi := hwy.Mul(hwy.Load(t.xi[i:]), vhk)
		hx := hwy.Load(hvX[i:])
		hy := hwy.Load(hvY[i:])
		hz := hwy.Load(hvZ[i:])

		sum := hwy.Mul(hwy.Load(psii[i:]), hwy.Mul(mu, hwy.Add(one, hx)))
		sum = hwy.MulAdd(hwy.Load(psij[i:]), hwy.Mul(eta, hwy.Add(one, hy)), sum)
		sum = hwy.MulAdd(hwy.Load(psik[i:]), hwy.Mul(xi, hwy.Add(one, hz)), sum)
		den := hwy.Add(vtxs, hwy.MulAdd(mu, hx, hwy.MulAdd(eta, hy, hwy.Mul(xi, hz))))
		if t.vdelt != 0.0 {
			ht := hwy.Load(hvT[i:])
			sum = hwy.MulAdd(hwy.Load(tfin[i:]), hwy.Mul(vdt, hwy.Add(one, ht)), sum)
			den = hwy.MulAdd(vdt, ht, den)
		}
		vpc := hwy.MulAdd(half, sum, hwy.Load(psi[i:]))

		// A negative numerator forces the zero-flux branch, and a
		// denominator below tolerance substitutes zero flux for the
		// division.
		den = hwy.IfThenElseZero(hwy.GreaterEqual(vpc, zero), den)
		ok := hwy.GreaterEqual(den, vtol)
		vpc = hwy.IfThenElseZero(ok, hwy.Div(vpc, den))
		hwy.Store(vpc, pc[i:])
	}
}

func hwyWeighted(dst, w, pc []float64) float64 {
	lanes := hwy.MaxLanes[float64]()
	acc := hwy.Zero[float64]()
	for i := 0; i < len(dst); i += lanes {
		v := hwy.Mul(hwy.Load(w[i:]), hwy.Load(pc[i:]))
		hwy.Store(v, dst[i:])
		acc = hwy.Add(acc, v)
	}
	return hwy.ReduceSum(acc)
}

func hwyDot(a1, a2 []float64) float64 {
	lanes := hwy.MaxLanes[float64]()
	acc := hwy.Zero[float64]()
	for i := 0; i < len(a1); i += lanes {
		acc = hwy.MulAdd(hwy.Load(a1[i:]), hwy.Load(a2[i:]), acc)
	}
	return hwy.ReduceSum(acc)
}
