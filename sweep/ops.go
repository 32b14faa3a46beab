// Package sweep implements the Mini-KBA wavefront sweep kernel: for one
// (energy group, corner, wavefront) unit of work it walks every cell of
// a 3-D subdomain in the corner's diagonal order, applies the
// diamond-difference angular flux update with an optional non-negativity
// fixup, propagates ghost flux across the subdomain faces and reduces
// the flux moments into shared accumulators.
//
// The algorithm is written once against a small set of angle-vector
// primitives. Two backends instantiate those primitives: a scalar
// (width 1) reference and a SIMD implementation built on the hwy
// generic vector operations; they differ only in vector width.
package sweep

// fixupTerms bundles the per-cell constants of the fixup recompute:
// the direction cosines, the spatial coupling factors, the group's time
// coefficient and the cell's total cross section.
type fixupTerms struct {
	mu, eta, xi []float64
	hi, hj, hk  float64
	vdelt, txs  float64
}

// tolr is the denominator tolerance below which the fixed-up flux is
// treated as zero instead of divided.
const tolr = 1.0e-12

// angleOps is the set of width-specific primitives the per-cell update
// is built from. Every function operates on full angle vectors; the
// kernel guarantees their length is a multiple of width.
type angleOps struct {
	width int

	// fill sets dst[a] = v.
	fill func(dst []float64, v float64)
	// axpy computes dst[a] += s * x[a].
	axpy func(dst, x []float64, s float64)
	// edge computes dst[a] += in[a] * cos[a] * h, the spatial coupling
	// of one inbound axis.
	edge func(dst, in, cos []float64, h float64)
	// mul computes dst[a] *= x[a].
	mul func(dst, x []float64)
	// prod computes dst[a] = a1[a] * a2[a].
	prod func(dst, a1, a2 []float64)
	// diamond computes dst[a] = 2*pc[a] - in[a]. dst may alias in.
	diamond func(dst, pc, in []float64)
	// fixupFlags stores the candidate outbound flux 2*pc-in into fx,
	// clears hv lanes whose candidate is negative and returns the
	// number of negative lanes seen this pass.
	fixupFlags func(fx, pc, in, hv []float64) int
	// fixupRecompute re-derives pc from the still-active half-weights.
	// tfin and hvT are ignored when t.vdelt is zero.
	fixupRecompute func(pc, psi, psii, psij, psik, tfin, hvX, hvY, hvZ, hvT []float64, t fixupTerms)
	// weighted computes dst[a] = w[a]*pc[a] and returns the sum over
	// all angles.
	weighted func(dst, w, pc []float64) float64
	// dot returns sum_a a1[a]*a2[a].
	dot func(a1, a2 []float64) float64
}

// scalarOps returns the width-1 reference backend.
func scalarOps() angleOps {
	return angleOps{
		width:          1,
		fill:           scalarFill,
		axpy:           scalarAxpy,
		edge:           scalarEdge,
		mul:            scalarMul,
		prod:           scalarProd,
		diamond:        scalarDiamond,
		fixupFlags:     scalarFixupFlags,
		fixupRecompute: scalarFixupRecompute,
		weighted:       scalarWeighted,
		dot:            scalarDot,
	}
}

func scalarFill(dst []float64, v float64) {
	for a := range dst {
		dst[a] = v
	}
}

func scalarAxpy(dst, x []float64, s float64) {
	for a := range dst {
		dst[a] += s * x[a]
	}
}

func scalarEdge(dst, in, cos []float64, h float64) {
	for a := range dst {
		dst[a] += in[a] * cos[a] * h
	}
}

func scalarMul(dst, x []float64) {
	for a := range dst {
		dst[a] *= x[a]
	}
}

func scalarProd(dst, a1, a2 []float64) {
	for a := range dst {
		dst[a] = a1[a] * a2[a]
	}
}

func scalarDiamond(dst, pc, in []float64) {
	for a := range dst {
		dst[a] = 2.0*pc[a] - in[a]
	}
}

func scalarFixupFlags(fx, pc, in, hv []float64) int {
	neg := 0
	for a := range pc {
		fx[a] = 2.0*pc[a] - in[a]
		if fx[a] < 0.0 {
			hv[a] = 0.0
			neg++
		}
	}
	return neg
}

func scalarFixupRecompute(pc, psi, psii, psij, psik, tfin, hvX, hvY, hvZ, hvT []float64, t fixupTerms) {
	for a := range pc {
		sum := psii[a]*t.mu[a]*t.hi*(1.0+hvX[a]) +
			psij[a]*t.eta[a]*t.hj*(1.0+hvY[a]) +
			psik[a]*t.xi[a]*t.hk*(1.0+hvZ[a])
		den := t.txs +
			t.mu[a]*t.hi*hvX[a] +
			t.eta[a]*t.hj*hvY[a] +
			t.xi[a]*t.hk*hvZ[a]
		if t.vdelt != 0.0 {
			sum += tfin[a] * t.vdelt * (1.0 + hvT[a])
			den += t.vdelt * hvT[a]
		}
		pc[a] = psi[a] + 0.5*sum
		if pc[a] < 0.0 {
			den = 0.0
		}
		if den < tolr {
			pc[a] = 0.0
		} else {
			pc[a] /= den
		}
	}
}

func scalarWeighted(dst, w, pc []float64) float64 {
	total := 0.0
	for a := range dst {
		dst[a] = w[a] * pc[a]
		total += dst[a]
	}
	return total
}

func scalarDot(a1, a2 []float64) float64 {
	total := 0.0
	for a := range a1 {
		total += a1[a] * a2[a]
	}
	return total
}
