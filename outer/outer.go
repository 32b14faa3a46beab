// Package outer holds the outer-source gather kernel and the
// epsilon-guarded flux-ratio comparison used by the surrounding
// iteration driver. The iteration control loop itself lives outside
// this module.
package outer

import (
	"fmt"
	"math"

	"github.com/minikba/snap/grid"
	"github.com/minikba/snap/snap"
)

// tolr guards the near-zero reference flux in ratio comparisons.
const tolr = 1.0e-12

// Sources bundles the per-group fields of the outer-source gather.
// Index is the energy group.
type Sources struct {
	Qi0   []*grid.View[float64]           // fixed external source, zeroth moment
	Flux0 []*grid.View[float64]           // scalar flux of the previous outer iteration
	Fluxm []*grid.View[snap.MomentTriple] // higher flux moments, nil when single-moment
	Qo0   []*grid.View[float64]           // output: zeroth source moment
	Qom   []*grid.View[snap.MomentTriple] // output: higher source moments, nil when single-moment
}

// CalcSource computes the outer (group-to-group scattering) source:
// for each group g, qo0 = qi0 + sum over g' != g of slgg[mat][g][g'][0]
// * flux0[g'], and the matching higher-moment gather into qom. slgg is
// indexed material, source group, destination group. The x axis is
// strip-blocked so the per-group flux strips stay cache resident.
func CalcSource(cfg *snap.Config, slgg [][][]snap.MomentQuad, mat *grid.View[int], s Sources) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ng := cfg.NumGroups
	if len(s.Qi0) != ng || len(s.Flux0) != ng || len(s.Qo0) != ng {
		return fmt.Errorf("outer: source fields carry %d/%d/%d groups, config wants %d",
			len(s.Qi0), len(s.Flux0), len(s.Qo0), ng)
	}
	multiMoment := cfg.NumMoments > 1
	if multiMoment && (len(s.Fluxm) != ng || len(s.Qom) != ng) {
		return fmt.Errorf("outer: moment fields required for %d moments", cfg.NumMoments)
	}
	box := mat.Box()

	stripSize := gcd(box.NX(), 32)
	fluxStrip := make([]float64, ng*stripSize)

	for z := box.Lo.Z; z <= box.Hi.Z; z++ {
		for y := box.Lo.Y; y <= box.Hi.Y; y++ {
			for x := box.Lo.X; x <= box.Hi.X; x += stripSize {
				for g := 0; g < ng; g++ {
					for i := 0; i < stripSize; i++ {
						fluxStrip[g*stripSize+i] = s.Flux0[g].At(grid.Point{X: x + i, Y: y, Z: z})
					}
				}
				for g1 := 0; g1 < ng; g1++ {
					for i := 0; i < stripSize; i++ {
						p := grid.Point{X: x + i, Y: y, Z: z}
						qo0 := s.Qi0[g1].At(p)
						m := mat.At(p)
						for g2 := 0; g2 < ng; g2++ {
							if g1 == g2 {
								continue
							}
							qo0 += slgg[m][g1][g2][0] * fluxStrip[g2*stripSize+i]
						}
						s.Qo0[g1].Set(p, qo0)
					}
				}
			}
		}
	}

	if !multiMoment {
		return nil
	}

	// lma[l] is the number of harmonic components of moment l.
	lma := [4]int{1, 1, 1, 1}
	for z := box.Lo.Z; z <= box.Hi.Z; z++ {
		for y := box.Lo.Y; y <= box.Hi.Y; y++ {
			for x := box.Lo.X; x <= box.Hi.X; x++ {
				p := grid.Point{X: x, Y: y, Z: z}
				m := mat.At(p)
				for g1 := 0; g1 < ng; g1++ {
					var qom snap.MomentTriple
					for g2 := 0; g2 < ng; g2++ {
						if g1 == g2 {
							continue
						}
						scat := slgg[m][g1][g2]
						var csm snap.MomentTriple
						moment := 0
						for l := 1; l < cfg.NumMoments; l++ {
							for j := 0; j < lma[l]; j++ {
								csm[moment+j] = scat[l]
							}
							moment += lma[l]
						}
						fluxm := s.Fluxm[g2].At(p)
						for l := 0; l < cfg.NumMoments-1; l++ {
							qom[l] += csm[l] * fluxm[l]
						}
					}
					s.Qom[g1].Set(p, qom)
				}
			}
		}
	}
	return nil
}

// MaxFluxRatioError returns the largest per-cell convergence measure
// |flux0/flux0po - 1| over the box. Cells whose previous flux is below
// the tolerance substitute a unit denominator and compare against zero
// instead, so near-zero reference fluxes yield a defined value rather
// than an overflow.
func MaxFluxRatioError(flux0, flux0po *grid.View[float64]) float64 {
	box := flux0.Box()
	maxErr := 0.0
	for z := box.Lo.Z; z <= box.Hi.Z; z++ {
		for y := box.Lo.Y; y <= box.Hi.Y; y++ {
			for x := box.Lo.X; x <= box.Hi.X; x++ {
				p := grid.Point{X: x, Y: y, Z: z}
				newer := flux0.At(p)
				older := flux0po.At(p)
				df := 1.0
				if math.Abs(older) < tolr {
					older = 1.0
					df = 0.0
				}
				df = math.Abs(newer/older - df)
				if df > maxErr {
					maxErr = df
				}
			}
		}
	}
	return maxErr
}

// Converged reports whether the flux ratio error is within epsi.
func Converged(flux0, flux0po *grid.View[float64], epsi float64) bool {
	return MaxFluxRatioError(flux0, flux0po) < epsi
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
