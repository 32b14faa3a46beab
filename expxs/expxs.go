// Package expxs holds the elementwise kernels that prepare the sweep's
// per-cell inputs: expansion of material cross sections onto the grid
// and precomputation of the per-angle denominator inverse the sweep
// multiplies by.
package expxs

import (
	"fmt"

	"github.com/minikba/snap/grid"
	"github.com/minikba/snap/snap"
)

// ExpandCrossSection gathers the per-material total cross section sigt
// onto the grid through the material map: out[cell] = sigt[mat[cell]].
func ExpandCrossSection(sigt []float64, mat *grid.View[int], out *grid.View[float64]) error {
	box := out.Box()
	if mat.Box() != box {
		return fmt.Errorf("expxs: material map box %v does not match output box %v", mat.Box(), box)
	}
	for z := box.Lo.Z; z <= box.Hi.Z; z++ {
		for y := box.Lo.Y; y <= box.Hi.Y; y++ {
			for x := box.Lo.X; x <= box.Hi.X; x++ {
				p := grid.Point{X: x, Y: y, Z: z}
				m := mat.At(p)
				if m < 0 || m >= len(sigt) {
					return fmt.Errorf("expxs: material %d at cell (%d,%d,%d) out of range [0,%d)",
						m, x, y, z, len(sigt))
				}
				out.Set(p, sigt[m])
			}
		}
	}
	return nil
}

// ExpandScatteringCrossSection gathers the within-group scattering
// moments onto the grid: out[cell] = slgg[mat[cell]][group]. slgg is
// indexed material first, then group.
func ExpandScatteringCrossSection(slgg [][]snap.MomentQuad, mat *grid.View[int], group int, out *grid.View[snap.MomentQuad]) error {
	box := out.Box()
	if mat.Box() != box {
		return fmt.Errorf("expxs: material map box %v does not match output box %v", mat.Box(), box)
	}
	for z := box.Lo.Z; z <= box.Hi.Z; z++ {
		for y := box.Lo.Y; y <= box.Hi.Y; y++ {
			for x := box.Lo.X; x <= box.Hi.X; x++ {
				p := grid.Point{X: x, Y: y, Z: z}
				m := mat.At(p)
				if m < 0 || m >= len(slgg) {
					return fmt.Errorf("expxs: material %d at cell (%d,%d,%d) out of range [0,%d)",
						m, x, y, z, len(slgg))
				}
				if group < 0 || group >= len(slgg[m]) {
					return fmt.Errorf("expxs: group %d out of range [0,%d)", group, len(slgg[m]))
				}
				out.Set(p, slgg[m][group])
			}
		}
	}
	return nil
}

// CalculateGeometryParam precomputes the denominator inverse the sweep
// multiplies by:
//
//	dinv[cell][ang] = 1 / (t_xs[cell] + mu[ang]*hi + eta[ang]*hj + xi[ang]*hk + vdelt)
//
// This is the no-fixup denominator; when the sweep's fixup trips it
// re-derives the denominator from the surviving half-weights instead.
func CalculateGeometryParam(cfg *snap.Config, quad *snap.Quadrature, group int, txs *grid.View[float64], dinv *grid.AngleView) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if group < 0 || group >= cfg.NumGroups {
		return fmt.Errorf("expxs: group %d out of range [0,%d)", group, cfg.NumGroups)
	}
	box := dinv.Box()
	if txs.Box() != box {
		return fmt.Errorf("expxs: t_xs box %v does not match dinv box %v", txs.Box(), box)
	}
	if dinv.NumAngles() != cfg.NumAngles {
		return fmt.Errorf("expxs: dinv carries %d angles, config wants %d",
			dinv.NumAngles(), cfg.NumAngles)
	}
	vdelt := cfg.Vdelt[group]
	for z := box.Lo.Z; z <= box.Hi.Z; z++ {
		for y := box.Lo.Y; y <= box.Hi.Y; y++ {
			for x := box.Lo.X; x <= box.Hi.X; x++ {
				p := grid.Point{X: x, Y: y, Z: z}
				baseGeometryParam(dinv.At(p), quad.Mu, quad.Eta, quad.Xi,
					cfg.HI, cfg.HJ, cfg.HK, txs.At(p), vdelt)
			}
		}
	}
	return nil
}
