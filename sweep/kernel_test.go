package sweep

import (
	"math"
	"testing"

	"github.com/minikba/snap/expxs"
	"github.com/minikba/snap/grid"
	"github.com/minikba/snap/snap"
)

func testConfig(nang, nmom int, fixup bool) *snap.Config {
	return &snap.Config{
		NumDims: 3,
		NX:      4, NY: 4, NZ: 4,
		LX: 1, LY: 1, LZ: 1,
		NumAngles:  nang,
		NumMoments: nmom,
		NumGroups:  1,
		HI:         2, HJ: 2, HK: 2,
		Vdelt:     []float64{0},
		FluxFixup: fixup,
	}
}

// newTestFields allocates a full set of vacuum-boundary fields for box.
func newTestFields(cfg *snap.Config, box grid.Box) Fields {
	nang := cfg.NumAngles
	f := Fields{
		Qtot:      grid.NewView[snap.MomentQuad](box),
		Flux:      grid.NewAccum(box),
		Dinv:      grid.NewAngleView(box, nang),
		TXS:       grid.NewView[float64](box),
		GhostXIn:  grid.NewGhost(box.NY(), box.NZ(), nang),
		GhostXOut: grid.NewGhost(box.NY(), box.NZ(), nang),
		GhostYIn:  grid.NewGhost(box.NX(), box.NZ(), nang),
		GhostYOut: grid.NewGhost(box.NX(), box.NZ(), nang),
		GhostZIn:  grid.NewGhost(box.NX(), box.NY(), nang),
		GhostZOut: grid.NewGhost(box.NX(), box.NY(), nang),
	}
	if cfg.NumMoments > 1 {
		f.Fluxm = grid.NewMomentAccum(box, cfg.NumMoments-1)
	}
	for _, v := range cfg.Vdelt {
		if v != 0 {
			f.TimeFluxIn = grid.NewAngleView(box, nang)
			f.TimeFluxOut = grid.NewAngleView(box, nang)
			break
		}
	}
	return f
}

// fillDeterministic populates qtot, t_xs and the time flux with a
// positive, cell-dependent pattern and precomputes dinv from them.
func fillDeterministic(t *testing.T, cfg *snap.Config, quad *snap.Quadrature, f Fields) {
	t.Helper()
	box := f.Qtot.Box()
	for z := box.Lo.Z; z <= box.Hi.Z; z++ {
		for y := box.Lo.Y; y <= box.Hi.Y; y++ {
			for x := box.Lo.X; x <= box.Hi.X; x++ {
				p := grid.Point{X: x, Y: y, Z: z}
				var q snap.MomentQuad
				for l := 0; l < cfg.NumMoments; l++ {
					q[l] = 0.3 + float64((x*7+y*5+z*3+l)%11)/10.0
				}
				f.Qtot.Set(p, q)
				f.TXS.Set(p, 1.0+float64((x+2*y+3*z)%5)/4.0)
				if f.TimeFluxIn != nil {
					tin := f.TimeFluxIn.At(p)
					for a := range tin {
						tin[a] = 0.1 + float64((x+y+z+a)%7)/10.0
					}
				}
			}
		}
	}
	if err := expxs.CalculateGeometryParam(cfg, quad, 0, f.TXS, f.Dinv); err != nil {
		t.Fatalf("CalculateGeometryParam: %v", err)
	}
}

func sweepAllCorners(t *testing.T, k *Kernel, box grid.Box, f Fields, order []snap.Corner) {
	t.Helper()
	for _, c := range order {
		if err := k.Sweep(Args{Group: 0, Corner: c}, box, f); err != nil {
			t.Fatalf("Sweep corner %d: %v", c, err)
		}
	}
}

// Degenerate 0-D check: one isolated cell with no spatial or time
// coupling must integrate to sum(w)*q/t_xs exactly.
func TestSweepIsolatedCellRoundTrip(t *testing.T) {
	cfg := testConfig(16, 1, false)
	cfg.NX, cfg.NY, cfg.NZ = 1, 1, 1
	quad, err := snap.NewQuadrature(16, 1)
	if err != nil {
		t.Fatalf("NewQuadrature: %v", err)
	}
	k, err := NewScalarKernel(cfg, quad)
	if err != nil {
		t.Fatalf("NewScalarKernel: %v", err)
	}

	box := grid.NewBox(1, 1, 1)
	f := newTestFields(cfg, box)
	const q, txs = 3.5, 2.0
	p := grid.Point{}
	f.Qtot.Set(p, snap.MomentQuad{q})
	f.TXS.Set(p, txs)
	// dinv carries only the cross section: no spatial or time terms.
	dinv := f.Dinv.At(p)
	for a := range dinv {
		dinv[a] = 1.0 / txs
	}

	if err := k.Sweep(Args{Group: 0, Corner: 0}, box, f); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	want := 0.0
	for _, w := range quad.W {
		want += w * q / txs
	}
	if got := f.Flux.At(p); math.Abs(got-want) > 1e-14 {
		t.Errorf("isolated cell flux = %v, want %v", got, want)
	}
}

// With vacuum inbound flux and a positive source every candidate
// outbound flux is 2*pc > 0, so the fixup never trips and must leave
// the result bit identical to the plain diamond-difference closure.
func TestFixupFixedPointOnPositiveFlux(t *testing.T) {
	quad, err := snap.NewQuadrature(16, 2)
	if err != nil {
		t.Fatalf("NewQuadrature: %v", err)
	}
	box := grid.NewBox(1, 1, 1)
	p := grid.Point{}

	run := func(fixup bool) (*grid.Accum, *grid.MomentAccum, *grid.Ghost) {
		cfg := testConfig(16, 2, fixup)
		cfg.NX, cfg.NY, cfg.NZ = 1, 1, 1
		k, err := NewScalarKernel(cfg, quad)
		if err != nil {
			t.Fatalf("NewScalarKernel: %v", err)
		}
		f := newTestFields(cfg, box)
		f.Qtot.Set(p, snap.MomentQuad{1.0, 0.1})
		f.TXS.Set(p, 1.5)
		if err := expxs.CalculateGeometryParam(cfg, quad, 0, f.TXS, f.Dinv); err != nil {
			t.Fatalf("CalculateGeometryParam: %v", err)
		}
		sweepAllCorners(t, k, box, f, []snap.Corner{0, 1, 2, 3, 4, 5, 6, 7})
		return f.Flux, f.Fluxm, f.GhostXOut
	}

	fluxFix, fluxmFix, ghostFix := run(true)
	fluxRef, fluxmRef, ghostRef := run(false)
	if got, want := fluxFix.At(p), fluxRef.At(p); got != want {
		t.Errorf("fixup flux %v != plain flux %v", got, want)
	}
	if got, want := fluxmFix.At(p, 0), fluxmRef.At(p, 0); got != want {
		t.Errorf("fixup fluxm %v != plain fluxm %v", got, want)
	}
	for a := range ghostFix.At(0, 0) {
		if got, want := ghostFix.At(0, 0)[a], ghostRef.At(0, 0)[a]; got != want {
			t.Errorf("angle %d: fixup ghost out %v != plain ghost out %v", a, got, want)
		}
	}
}

// A strongly negative source drives candidate outbound fluxes negative;
// the fixup must converge (no anomaly) and clamp every outbound and
// accumulated flux to be non-negative.
func TestFixupClampsNegativeFlux(t *testing.T) {
	cfg := testConfig(16, 1, true)
	cfg.NX, cfg.NY, cfg.NZ = 3, 3, 3
	quad, err := snap.NewQuadrature(16, 1)
	if err != nil {
		t.Fatalf("NewQuadrature: %v", err)
	}
	k, err := NewScalarKernel(cfg, quad)
	if err != nil {
		t.Fatalf("NewScalarKernel: %v", err)
	}
	box := grid.NewBox(3, 3, 3)
	f := newTestFields(cfg, box)
	fillDeterministic(t, cfg, quad, f)
	for z := 0; z < 3; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				if (x+y+z)%2 == 0 {
					f.Qtot.Set(grid.Point{X: x, Y: y, Z: z}, snap.MomentQuad{-0.8})
				}
			}
		}
	}

	if err := k.Sweep(Args{Group: 0, Corner: 7}, box, f); err != nil {
		t.Fatalf("Sweep with fixup: %v", err)
	}
	for z := 0; z < 3; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				p := grid.Point{X: x, Y: y, Z: z}
				if got := f.Flux.At(p); got < 0 {
					t.Errorf("cell %v: fixed-up flux %v is negative", p, got)
				}
			}
		}
	}
	for y := 0; y < 3; y++ {
		for z := 0; z < 3; z++ {
			for _, v := range f.GhostXOut.At(y, z) {
				if v < 0 {
					t.Errorf("ghost x out (%d,%d) carries negative flux %v", y, z, v)
				}
			}
		}
	}
}

// Time-dependent closure: with one cell and no spatial coupling the
// outgoing time-edge flux is exactly 2*pc - time_flux_in.
func TestSweepTimeEdgeFlux(t *testing.T) {
	cfg := testConfig(16, 1, false)
	cfg.NX, cfg.NY, cfg.NZ = 1, 1, 1
	cfg.Vdelt = []float64{1.5}
	quad, err := snap.NewQuadrature(16, 1)
	if err != nil {
		t.Fatalf("NewQuadrature: %v", err)
	}
	k, err := NewScalarKernel(cfg, quad)
	if err != nil {
		t.Fatalf("NewScalarKernel: %v", err)
	}
	box := grid.NewBox(1, 1, 1)
	f := newTestFields(cfg, box)
	p := grid.Point{}
	const q, txs = 1.0, 2.0
	f.Qtot.Set(p, snap.MomentQuad{q})
	f.TXS.Set(p, txs)
	tin := f.TimeFluxIn.At(p)
	dinv := f.Dinv.At(p)
	for a := range tin {
		tin[a] = 0.25 + 0.01*float64(a)
		dinv[a] = 1.0 / (txs + cfg.Vdelt[0])
	}

	if err := k.Sweep(Args{Group: 0, Corner: 3}, box, f); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	tout := f.TimeFluxOut.At(p)
	for a := range tout {
		pc := (q + cfg.Vdelt[0]*tin[a]) / (txs + cfg.Vdelt[0])
		want := 2.0*pc - tin[a]
		if math.Abs(tout[a]-want) > 1e-14 {
			t.Errorf("angle %d: time flux out = %v, want %v", a, tout[a], want)
		}
	}
}

// Ghost inputs are read-only to the kernel.
func TestSweepLeavesGhostInputsUntouched(t *testing.T) {
	cfg := testConfig(16, 1, false)
	cfg.NX, cfg.NY, cfg.NZ = 3, 3, 3
	quad, err := snap.NewQuadrature(16, 1)
	if err != nil {
		t.Fatalf("NewQuadrature: %v", err)
	}
	k, err := NewScalarKernel(cfg, quad)
	if err != nil {
		t.Fatalf("NewScalarKernel: %v", err)
	}
	box := grid.NewBox(3, 3, 3)
	f := newTestFields(cfg, box)
	fillDeterministic(t, cfg, quad, f)

	seed := func(g *grid.Ghost, n1, n2 int) []float64 {
		var saved []float64
		for i := 0; i < n1; i++ {
			for j := 0; j < n2; j++ {
				vec := g.At(i, j)
				for a := range vec {
					vec[a] = 0.05 * float64(i+j+a+1)
				}
				saved = append(saved, vec...)
			}
		}
		return saved
	}
	savedX := seed(f.GhostXIn, 3, 3)
	savedY := seed(f.GhostYIn, 3, 3)
	savedZ := seed(f.GhostZIn, 3, 3)

	if err := k.Sweep(Args{Group: 0, Corner: 5}, box, f); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	check := func(name string, g *grid.Ghost, saved []float64) {
		idx := 0
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				for a, v := range g.At(i, j) {
					if v != saved[idx] {
						t.Fatalf("%s ghost input (%d,%d)[%d] mutated: %v != %v", name, i, j, a, v, saved[idx])
					}
					idx++
				}
			}
		}
	}
	check("x", f.GhostXIn, savedX)
	check("y", f.GhostYIn, savedY)
	check("z", f.GhostZIn, savedZ)
}

// Every trailing-face cell must have deposited its outbound flux in the
// ghost-output planes: after the sweep no sentinel survives.
func TestSweepWritesOnlyTrailingGhosts(t *testing.T) {
	cfg := testConfig(16, 1, false)
	cfg.NX, cfg.NY, cfg.NZ = 3, 3, 3
	quad, err := snap.NewQuadrature(16, 1)
	if err != nil {
		t.Fatalf("NewQuadrature: %v", err)
	}
	k, err := NewScalarKernel(cfg, quad)
	if err != nil {
		t.Fatalf("NewScalarKernel: %v", err)
	}
	box := grid.NewBox(3, 3, 3)

	for corner := snap.Corner(0); corner < snap.NumCorners; corner++ {
		f := newTestFields(cfg, box)
		fillDeterministic(t, cfg, quad, f)
		const sentinel = -1e30
		for _, g := range []*grid.Ghost{f.GhostXOut, f.GhostYOut, f.GhostZOut} {
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					vec := g.At(i, j)
					for a := range vec {
						vec[a] = sentinel
					}
				}
			}
		}
		if err := k.Sweep(Args{Group: 0, Corner: corner}, box, f); err != nil {
			t.Fatalf("corner %d: Sweep: %v", corner, err)
		}
		for name, g := range map[string]*grid.Ghost{"x": f.GhostXOut, "y": f.GhostYOut, "z": f.GhostZOut} {
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					for a, v := range g.At(i, j) {
						if v == sentinel {
							t.Fatalf("corner %d: %s ghost out (%d,%d)[%d] never written", corner, name, i, j, a)
						}
						if math.IsNaN(v) || math.IsInf(v, 0) {
							t.Errorf("corner %d: %s ghost out (%d,%d)[%d] = %v", corner, name, i, j, a, v)
						}
					}
				}
			}
		}
	}
}

// The flux reduction is associative and commutative: processing the
// eight corners in different orders must agree to rounding.
func TestSweepCornerOrderIndependence(t *testing.T) {
	cfg := testConfig(16, 2, false)
	cfg.NX, cfg.NY, cfg.NZ = 3, 3, 3
	quad, err := snap.NewQuadrature(16, 2)
	if err != nil {
		t.Fatalf("NewQuadrature: %v", err)
	}
	k, err := NewScalarKernel(cfg, quad)
	if err != nil {
		t.Fatalf("NewScalarKernel: %v", err)
	}
	box := grid.NewBox(3, 3, 3)

	run := func(order []snap.Corner) (*grid.Accum, *grid.MomentAccum) {
		f := newTestFields(cfg, box)
		fillDeterministic(t, cfg, quad, f)
		sweepAllCorners(t, k, box, f, order)
		return f.Flux, f.Fluxm
	}

	fluxA, fluxmA := run([]snap.Corner{0, 1, 2, 3, 4, 5, 6, 7})
	fluxB, fluxmB := run([]snap.Corner{7, 3, 5, 1, 6, 2, 4, 0})

	for z := 0; z < 3; z++ {
		for y := 0; y < 3; y++ {
			for x := 0; x < 3; x++ {
				p := grid.Point{X: x, Y: y, Z: z}
				a, b := fluxA.At(p), fluxB.At(p)
				if math.Abs(a-b) > 1e-12*math.Max(1, math.Abs(a)) {
					t.Errorf("cell %v: flux differs across corner orders: %v vs %v", p, a, b)
				}
				ma, mb := fluxmA.At(p, 0), fluxmB.At(p, 0)
				if math.Abs(ma-mb) > 1e-12*math.Max(1, math.Abs(ma)) {
					t.Errorf("cell %v: fluxm differs across corner orders: %v vs %v", p, ma, mb)
				}
			}
		}
	}
}

func TestSweepPreconditions(t *testing.T) {
	cfg := testConfig(16, 2, false)
	quad, err := snap.NewQuadrature(16, 2)
	if err != nil {
		t.Fatalf("NewQuadrature: %v", err)
	}
	k, err := NewScalarKernel(cfg, quad)
	if err != nil {
		t.Fatalf("NewScalarKernel: %v", err)
	}
	box := grid.NewBox(4, 4, 4)
	good := newTestFields(cfg, box)

	if err := k.Sweep(Args{Group: 0, Corner: 0}, grid.Box{Lo: grid.Point{X: 1}, Hi: grid.Point{X: 0}}, good); err == nil {
		t.Error("degenerate box accepted")
	}
	if err := k.Sweep(Args{Group: 1, Corner: 0}, box, good); err == nil {
		t.Error("out-of-range group accepted")
	}
	if err := k.Sweep(Args{Group: 0, Corner: 8}, box, good); err == nil {
		t.Error("out-of-range corner accepted")
	}

	missing := good
	missing.Fluxm = nil
	if err := k.Sweep(Args{Group: 0, Corner: 0}, box, missing); err == nil {
		t.Error("missing fluxm accepted with 2 moments")
	}
	missing = good
	missing.GhostZOut = nil
	if err := k.Sweep(Args{Group: 0, Corner: 0}, box, missing); err == nil {
		t.Error("missing ghost accessor accepted")
	}

	// Config-level dimensionality is fatal at construction.
	bad := *cfg
	bad.NumDims = 2
	if _, err := NewScalarKernel(&bad, quad); err == nil {
		t.Error("2-D config accepted")
	}
}
