package outer

import (
	"math"
	"testing"

	"github.com/minikba/snap/grid"
	"github.com/minikba/snap/snap"
)

func constView(box grid.Box, v float64) *grid.View[float64] {
	out := grid.NewView[float64](box)
	out.Fill(v)
	return out
}

func TestCalcSourceTwoGroups(t *testing.T) {
	cfg := &snap.Config{
		NumDims: 3,
		NX:      4, NY: 2, NZ: 2,
		LX: 1, LY: 1, LZ: 1,
		NumAngles:  4,
		NumMoments: 2,
		NumGroups:  2,
		HI:         8, HJ: 4, HK: 4,
		Vdelt: []float64{0, 0},
	}
	box := grid.NewBox(cfg.NX, cfg.NY, cfg.NZ)
	mat := grid.NewView[int](box)
	for z := 0; z < cfg.NZ; z++ {
		for y := 0; y < cfg.NY; y++ {
			for x := 0; x < cfg.NX; x++ {
				mat.Set(grid.Point{X: x, Y: y, Z: z}, x%2)
			}
		}
	}
	// slgg[material][source group][destination group]
	slgg := [][][]snap.MomentQuad{
		{
			{{0.50, 0.10}, {0.20, 0.04}},
			{{0.05, 0.01}, {0.60, 0.12}},
		},
		{
			{{0.70, 0.14}, {0.30, 0.06}},
			{{0.10, 0.02}, {0.80, 0.16}},
		},
	}

	s := Sources{
		Qi0:   []*grid.View[float64]{constView(box, 1.0), constView(box, 0.5)},
		Flux0: []*grid.View[float64]{constView(box, 2.0), constView(box, 3.0)},
		Fluxm: []*grid.View[snap.MomentTriple]{
			grid.NewView[snap.MomentTriple](box),
			grid.NewView[snap.MomentTriple](box),
		},
		Qo0: []*grid.View[float64]{grid.NewView[float64](box), grid.NewView[float64](box)},
		Qom: []*grid.View[snap.MomentTriple]{
			grid.NewView[snap.MomentTriple](box),
			grid.NewView[snap.MomentTriple](box),
		},
	}
	s.Fluxm[0].Fill(snap.MomentTriple{0.2})
	s.Fluxm[1].Fill(snap.MomentTriple{-0.1})

	if err := CalcSource(cfg, slgg, mat, s); err != nil {
		t.Fatalf("CalcSource: %v", err)
	}

	for z := 0; z < cfg.NZ; z++ {
		for y := 0; y < cfg.NY; y++ {
			for x := 0; x < cfg.NX; x++ {
				p := grid.Point{X: x, Y: y, Z: z}
				m := mat.At(p)
				for g1 := 0; g1 < 2; g1++ {
					g2 := 1 - g1
					want := s.Qi0[g1].At(p) + slgg[m][g1][g2][0]*s.Flux0[g2].At(p)
					if got := s.Qo0[g1].At(p); math.Abs(got-want) > 1e-14 {
						t.Errorf("cell %v group %d: qo0 = %v, want %v", p, g1, got, want)
					}
					wantM := slgg[m][g1][g2][1] * s.Fluxm[g2].At(p)[0]
					if got := s.Qom[g1].At(p)[0]; math.Abs(got-wantM) > 1e-14 {
						t.Errorf("cell %v group %d: qom = %v, want %v", p, g1, got, wantM)
					}
				}
			}
		}
	}
}

func TestCalcSourceSingleGroupPassThrough(t *testing.T) {
	cfg := &snap.Config{
		NumDims: 3,
		NX:      2, NY: 2, NZ: 2,
		LX: 1, LY: 1, LZ: 1,
		NumAngles:  4,
		NumMoments: 1,
		NumGroups:  1,
		HI:         4, HJ: 4, HK: 4,
		Vdelt: []float64{0},
	}
	box := grid.NewBox(2, 2, 2)
	mat := grid.NewView[int](box)
	slgg := [][][]snap.MomentQuad{{{{0.5}}}}
	s := Sources{
		Qi0:   []*grid.View[float64]{constView(box, 1.5)},
		Flux0: []*grid.View[float64]{constView(box, 7.0)},
		Qo0:   []*grid.View[float64]{grid.NewView[float64](box)},
	}
	if err := CalcSource(cfg, slgg, mat, s); err != nil {
		t.Fatalf("CalcSource: %v", err)
	}
	// With one group there is no group-to-group transfer: the outer
	// source is just the fixed external source.
	p := grid.Point{X: 1, Y: 0, Z: 1}
	if got := s.Qo0[0].At(p); got != 1.5 {
		t.Errorf("single-group qo0 = %v, want 1.5", got)
	}

	s.Flux0 = nil
	if err := CalcSource(cfg, slgg, mat, s); err == nil {
		t.Error("missing flux fields accepted")
	}
}

func TestMaxFluxRatioError(t *testing.T) {
	box := grid.NewBox(2, 1, 1)
	newer := grid.NewView[float64](box)
	older := grid.NewView[float64](box)

	newer.Set(grid.Point{X: 0}, 3.0)
	older.Set(grid.Point{X: 0}, 2.0)
	newer.Set(grid.Point{X: 1}, 1.0)
	older.Set(grid.Point{X: 1}, 1.0)
	if got := MaxFluxRatioError(newer, older); math.Abs(got-0.5) > 1e-14 {
		t.Errorf("ratio error = %v, want 0.5", got)
	}

	// Near-zero previous flux compares absolutely against zero instead
	// of dividing.
	older.Set(grid.Point{X: 0}, 1e-14)
	newer.Set(grid.Point{X: 0}, 0.25)
	if got := MaxFluxRatioError(newer, older); math.Abs(got-0.25) > 1e-14 {
		t.Errorf("degenerate ratio error = %v, want 0.25", got)
	}

	if !Converged(newer, newer, 1e-8) {
		t.Error("identical fluxes not converged")
	}
	if Converged(newer, older, 1e-8) {
		t.Error("diverged fluxes reported converged")
	}
}
