// Package mms implements the method-of-manufactured-solutions kernels:
// a separable trigonometric reference flux, the per-corner angular
// source that makes the sweep reproduce it, and the epsilon-guarded
// verification comparing computed flux against the reference.
package mms

import (
	"fmt"
	"math"

	"github.com/minikba/snap/grid"
	"github.com/minikba/snap/snap"
)

// tolr guards near-zero reference flux in verification comparisons.
const tolr = 1.0e-12

// trigAverages returns the per-cell average of cos(freq*x) (or
// sin(freq*x) when cosine is false) over n cells with the given edge
// coordinates and width d.
func trigAverages(n int, freq, d float64, edges []float64, cosine bool) []float64 {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if cosine {
			out[i] = (math.Sin(freq*edges[i+1]) - math.Sin(freq*edges[i])) / (freq * d)
		} else {
			out[i] = (math.Cos(freq*edges[i]) - math.Cos(freq*edges[i+1])) / (freq * d)
		}
	}
	return out
}

// edgesFor returns the n+1 cell edge coordinates starting at lo*d.
func edgesFor(n, lo int, d float64) []float64 {
	edges := make([]float64, n+1)
	edges[0] = float64(lo) * d
	for i := 1; i <= n; i++ {
		edges[i] = edges[i-1] + d
	}
	return edges
}

// InitFlux fills the per-group reference flux and its higher moments
// with the separable product of per-axis cosine averages, scaled by the
// one-based group index.
func InitFlux(cfg *snap.Config, quad *snap.Quadrature, flux []*grid.View[float64], fluxm []*grid.View[snap.MomentTriple]) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(flux) != cfg.NumGroups {
		return fmt.Errorf("mms: flux carries %d groups, config wants %d", len(flux), cfg.NumGroups)
	}
	box := flux[0].Box()
	dx, dy, dz := cfg.CellWidths()
	tx := trigAverages(box.NX(), math.Pi/cfg.LX, dx, edgesFor(box.NX(), box.Lo.X, dx), true)
	ty := trigAverages(box.NY(), math.Pi/cfg.LY, dy, edgesFor(box.NY(), box.Lo.Y, dy), true)
	tz := trigAverages(box.NZ(), math.Pi/cfg.LZ, dz, edgesFor(box.NZ(), box.Lo.Z, dz), true)

	for g := 0; g < cfg.NumGroups; g++ {
		for z := box.Lo.Z; z <= box.Hi.Z; z++ {
			for y := box.Lo.Y; y <= box.Hi.Y; y++ {
				for x := box.Lo.X; x <= box.Hi.X; x++ {
					p := grid.Point{X: x, Y: y, Z: z}
					v := float64(g+1) * tx[x-box.Lo.X] * ty[y-box.Lo.Y] * tz[z-box.Lo.Z]
					flux[g].Set(p, v)
				}
			}
		}
	}

	if cfg.NumMoments > 1 {
		if len(fluxm) != cfg.NumGroups {
			return fmt.Errorf("mms: fluxm carries %d groups, config wants %d", len(fluxm), cfg.NumGroups)
		}
		// Angular-integration factor per moment, summed over corners.
		var pm snap.MomentTriple
		for c := snap.Corner(0); c < snap.NumCorners; c++ {
			for l := 1; l < cfg.NumMoments; l++ {
				ec := quad.EcAt(c, l)
				for a := 0; a < cfg.NumAngles; a++ {
					pm[l-1] += quad.W[a] * ec[a]
				}
			}
		}
		for g := 0; g < cfg.NumGroups; g++ {
			for z := box.Lo.Z; z <= box.Hi.Z; z++ {
				for y := box.Lo.Y; y <= box.Hi.Y; y++ {
					for x := box.Lo.X; x <= box.Hi.X; x++ {
						p := grid.Point{X: x, Y: y, Z: z}
						v := flux[g].At(p)
						var m snap.MomentTriple
						for l := 0; l < 3; l++ {
							m[l] = pm[l] * v
						}
						fluxm[g].Set(p, m)
					}
				}
			}
		}
	}
	return nil
}

// InitSource accumulates the manufactured angular source for one corner
// into qim: the signed streaming derivatives of the reference flux plus
// its removal term, minus the scattering the sweep will add back.
// slgg is indexed material, source group, destination group.
func InitSource(cfg *snap.Config, quad *snap.Quadrature, corner snap.Corner,
	refFlux []*grid.View[float64], refFluxm []*grid.View[snap.MomentTriple],
	mat *grid.View[int], sigt []float64, slgg [][][]snap.MomentQuad,
	qim []*grid.AngleView) error {

	if err := cfg.Validate(); err != nil {
		return err
	}
	if len(qim) != cfg.NumGroups || len(refFlux) != cfg.NumGroups {
		return fmt.Errorf("mms: qim/refFlux carry %d/%d groups, config wants %d",
			len(qim), len(refFlux), cfg.NumGroups)
	}
	is, js, ks := corner.Signs()

	box := mat.Box()
	dx, dy, dz := cfg.CellWidths()
	ibs := edgesFor(box.NX(), box.Lo.X, dx)
	jbs := edgesFor(box.NY(), box.Lo.Y, dy)
	kbs := edgesFor(box.NZ(), box.Lo.Z, dz)
	cx := trigAverages(box.NX(), math.Pi/cfg.LX, dx, ibs, true)
	sx := trigAverages(box.NX(), math.Pi/cfg.LX, dx, ibs, false)
	cy := trigAverages(box.NY(), math.Pi/cfg.LY, dy, jbs, true)
	sy := trigAverages(box.NY(), math.Pi/cfg.LY, dy, jbs, false)
	cz := trigAverages(box.NZ(), math.Pi/cfg.LZ, dz, kbs, true)
	sz := trigAverages(box.NZ(), math.Pi/cfg.LZ, dz, kbs, false)

	for g := 0; g < cfg.NumGroups; g++ {
		scale := float64(g + 1)
		for z := box.Lo.Z; z <= box.Hi.Z; z++ {
			for y := box.Lo.Y; y <= box.Hi.Y; y++ {
				for x := box.Lo.X; x <= box.Hi.X; x++ {
					p := grid.Point{X: x, Y: y, Z: z}
					i, j, k := x-box.Lo.X, y-box.Lo.Y, z-box.Lo.Z
					m := mat.At(p)
					removal := sigt[m] * refFlux[g].At(p)
					angles := qim[g].At(p)
					for a := 0; a < cfg.NumAngles; a++ {
						angles[a] += scale * is * quad.Mu[a] * sx[i] * cy[j] * cz[k]
						angles[a] += removal
						angles[a] += scale * js * quad.Eta[a] * cx[i] * sy[j] * cz[k]
						angles[a] += scale * ks * quad.Xi[a] * cx[i] * cy[j] * sz[k]
						for g2 := 0; g2 < cfg.NumGroups; g2++ {
							scat := slgg[m][g][g2]
							angles[a] -= scat[0] * refFlux[g2].At(p)
							if cfg.NumMoments > 1 {
								fm := refFluxm[g2].At(p)
								for l := 1; l < cfg.NumMoments; l++ {
									angles[a] -= quad.EcAt(corner, l)[a] * scat[l] * fm[l-1]
								}
							}
						}
					}
				}
			}
		}
	}
	return nil
}

// Verify returns the largest per-cell relative error between the
// computed and reference flux. Reference values below the tolerance
// substitute a unit denominator, so degenerate cells compare absolutely
// instead of dividing by a vanishing flux.
func Verify(flux *grid.Accum, ref *grid.View[float64]) float64 {
	box := ref.Box()
	maxErr := 0.0
	for z := box.Lo.Z; z <= box.Hi.Z; z++ {
		for y := box.Lo.Y; y <= box.Hi.Y; y++ {
			for x := box.Lo.X; x <= box.Hi.X; x++ {
				p := grid.Point{X: x, Y: y, Z: z}
				r := ref.At(p)
				den := r
				if math.Abs(den) < tolr {
					den = 1.0
				}
				err := math.Abs((flux.At(p) - r) / den)
				if err > maxErr {
					maxErr = err
				}
			}
		}
	}
	return maxErr
}
