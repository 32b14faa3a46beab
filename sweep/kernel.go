package sweep

import (
	"fmt"

	"github.com/minikba/snap/grid"
	"github.com/minikba/snap/snap"
)

// Args identifies one unit of sweep work. The wavefront index is
// assigned by the dispatching scheduler; the kernel records it in
// anomaly reports but the per-subdomain update does not depend on it.
type Args struct {
	Group     int
	Corner    snap.Corner
	Wavefront int
}

// Fields gathers the accessors for one sweep invocation, all owned by
// the caller (see the external interface contract). TimeFluxIn/Out may
// be nil when the group's time coefficient is zero, and Qim may be nil
// unless the manufactured source layout is active.
type Fields struct {
	Qtot        *grid.View[snap.MomentQuad]
	Flux        *grid.Accum
	Fluxm       *grid.MomentAccum
	Dinv        *grid.AngleView
	TXS         *grid.View[float64]
	TimeFluxIn  *grid.AngleView
	TimeFluxOut *grid.AngleView
	Qim         *grid.AngleView

	GhostXIn, GhostYIn, GhostZIn    *grid.Ghost
	GhostXOut, GhostYOut, GhostZOut *grid.Ghost
}

// Kernel executes Mini-KBA sweeps for a fixed configuration and
// quadrature. A Kernel is stateless across invocations and safe for
// concurrent use; each Sweep call owns its scratch buffers exclusively.
type Kernel struct {
	cfg  *snap.Config
	quad *snap.Quadrature
	ops  angleOps
}

// NewKernel returns a kernel using the SIMD backend. The angle count
// must be divisible by the active vector width.
func NewKernel(cfg *snap.Config, quad *snap.Quadrature) (*Kernel, error) {
	return newKernel(cfg, quad, vectorOps())
}

// NewScalarKernel returns the width-1 reference kernel. It accepts any
// positive angle count and is the comparison baseline for the SIMD
// backend.
func NewScalarKernel(cfg *snap.Config, quad *snap.Quadrature) (*Kernel, error) {
	return newKernel(cfg, quad, scalarOps())
}

func newKernel(cfg *snap.Config, quad *snap.Quadrature, ops angleOps) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if quad.NumAngles() != cfg.NumAngles || quad.NumMoments() != cfg.NumMoments {
		return nil, fmt.Errorf("sweep: quadrature is %d angles x %d moments, config wants %d x %d",
			quad.NumAngles(), quad.NumMoments(), cfg.NumAngles, cfg.NumMoments)
	}
	if cfg.NumAngles%ops.width != 0 {
		return nil, fmt.Errorf("sweep: %d angles not divisible by vector width %d",
			cfg.NumAngles, ops.width)
	}
	return &Kernel{cfg: cfg, quad: quad, ops: ops}, nil
}

// Width returns the vector width of the kernel's backend.
func (k *Kernel) Width() int { return k.ops.width }

// scratch holds the per-invocation working buffers. They are allocated
// at kernel entry and garbage once Sweep returns; nothing here is
// shared between invocations.
type scratch struct {
	psi, pc          []float64
	psii, psij, psik []float64
	hvX, hvY, hvZ, hvT []float64
	fxX, fxY, fxZ, fxT []float64
	// pencil caches the y-axis inbound flux per x column; plane caches
	// the z-axis inbound flux per (x, y) cell. Only the first row and
	// plane of the subdomain touch the ghost-input buffers, bounding
	// ghost traffic to the surface area of the box.
	pencil []float64
	plane  []float64
}

func newScratch(nang, xRange, yRange int, fixup bool) *scratch {
	s := &scratch{
		psi:    make([]float64, nang),
		pc:     make([]float64, nang),
		psii:   make([]float64, nang),
		psij:   make([]float64, nang),
		psik:   make([]float64, nang),
		pencil: make([]float64, xRange*nang),
		plane:  make([]float64, yRange*xRange*nang),
	}
	if fixup {
		s.hvX = make([]float64, nang)
		s.hvY = make([]float64, nang)
		s.hvZ = make([]float64, nang)
		s.hvT = make([]float64, nang)
		s.fxX = make([]float64, nang)
		s.fxY = make([]float64, nang)
		s.fxZ = make([]float64, nang)
		s.fxT = make([]float64, nang)
	}
	return s
}

// Sweep walks every cell of box once in the corner's diagonal order,
// updating TimeFluxOut and the trailing-face ghost outputs and
// accumulating into Flux/Fluxm. The result is independent of how many
// other (corner, wavefront) tasks run concurrently and of their order.
func (k *Kernel) Sweep(args Args, box grid.Box, f Fields) error {
	if err := k.checkSweep(args, box, f); err != nil {
		return err
	}

	cfg := k.cfg
	nang := cfg.NumAngles
	vdelt := cfg.Vdelt[args.Group]
	mms := cfg.SourceLayout == snap.MMSSource

	// Corner polarity: a set bit walks the axis low to high.
	dirX, dirY, dirZ := args.Corner.Dir(0), args.Corner.Dir(1), args.Corner.Dir(2)
	origin := grid.Point{X: box.Hi.X, Y: box.Hi.Y, Z: box.Hi.Z}
	if dirX > 0 {
		origin.X = box.Lo.X
	}
	if dirY > 0 {
		origin.Y = box.Lo.Y
	}
	if dirZ > 0 {
		origin.Z = box.Lo.Z
	}

	xRange, yRange, zRange := box.NX(), box.NY(), box.NZ()
	s := newScratch(nang, xRange, yRange, cfg.FluxFixup)

	// Cells are walked (z, y, x) with x innermost for linear strides;
	// the corner only changes the origin and the per-axis direction.
	for z := 0; z < zRange; z++ {
		for y := 0; y < yRange; y++ {
			for x := 0; x < xRange; x++ {
				p := grid.Point{
					X: origin.X + dirX*x,
					Y: origin.Y + dirY*y,
					Z: origin.Z + dirZ*z,
				}

				// Angular source: zeroth moment broadcast, then the
				// higher-moment expansion.
				quad := f.Qtot.At(p)
				k.ops.fill(s.psi, quad[0])
				for l := 1; l < cfg.NumMoments; l++ {
					k.ops.axpy(s.psi, k.quad.EcAt(args.Corner, l), quad[l])
				}
				if mms {
					k.ops.axpy(s.psi, f.Qim.At(p), 1.0)
				}

				copy(s.pc, s.psi)

				// Inbound x flux: the ghost buffer feeds only the
				// leading face; interior cells reuse the value the
				// previous x iteration left in psii.
				if x == 0 {
					copy(s.psii, f.GhostXIn.At(p.Y-box.Lo.Y, p.Z-box.Lo.Z))
				}
				k.ops.edge(s.pc, s.psii, k.quad.Mu, cfg.HI)

				// Inbound y flux: ghost on the leading row, pencil
				// cache elsewhere.
				if y == 0 {
					copy(s.psij, f.GhostYIn.At(p.X-box.Lo.X, p.Z-box.Lo.Z))
				} else {
					copy(s.psij, s.pencil[x*nang:(x+1)*nang])
				}
				k.ops.edge(s.pc, s.psij, k.quad.Eta, cfg.HJ)

				// Inbound z flux: ghost on the leading plane, plane
				// cache elsewhere.
				if z == 0 {
					copy(s.psik, f.GhostZIn.At(p.X-box.Lo.X, p.Y-box.Lo.Y))
				} else {
					off := (y*xRange + x) * nang
					copy(s.psik, s.plane[off:off+nang])
				}
				k.ops.edge(s.pc, s.psik, k.quad.Xi, cfg.HK)

				var tfin []float64
				if vdelt != 0.0 {
					tfin = f.TimeFluxIn.At(p)
					k.ops.axpy(s.pc, tfin, vdelt)
				}

				// The precomputed denominator inverse already encodes
				// the cross section and the geometric and time terms.
				k.ops.mul(s.pc, f.Dinv.At(p))

				if cfg.FluxFixup {
					if err := k.fixupCell(args, p, s, f, tfin, vdelt); err != nil {
						return err
					}
				} else {
					k.ops.diamond(s.psii, s.pc, s.psii)
					k.ops.diamond(s.psij, s.pc, s.psij)
					k.ops.diamond(s.psik, s.pc, s.psik)
					if vdelt != 0.0 {
						k.ops.diamond(f.TimeFluxOut.At(p), s.pc, tfin)
					}
				}

				// Outbound flux: the trailing face per axis goes to
				// the ghost-output buffer, everything interior is
				// carried in the local caches.
				if x == xRange-1 {
					copy(f.GhostXOut.At(p.Y-box.Lo.Y, p.Z-box.Lo.Z), s.psii)
				}
				if y == yRange-1 {
					copy(f.GhostYOut.At(p.X-box.Lo.X, p.Z-box.Lo.Z), s.psij)
				} else {
					copy(s.pencil[x*nang:(x+1)*nang], s.psij)
				}
				if z == zRange-1 {
					copy(f.GhostZOut.At(p.X-box.Lo.X, p.Y-box.Lo.Y), s.psik)
				} else {
					off := (y*xRange + x) * nang
					copy(s.plane[off:off+nang], s.psik)
				}

				// Reduce the weighted angular flux into the shared
				// accumulators.
				total := k.ops.weighted(s.psi, k.quad.W, s.pc)
				f.Flux.Add(p, total)
				for l := 1; l < cfg.NumMoments; l++ {
					f.Fluxm.Add(p, l-1, k.ops.dot(k.quad.EcAt(args.Corner, l), s.psi))
				}
			}
		}
	}
	return nil
}

// fixupCell runs the non-negativity fixup for one cell: half-weights
// are cleared for every axis or time term whose candidate outbound flux
// goes negative, pc is re-derived from the still-active terms, and the
// loop repeats until the negative-lane count stabilizes. The flag set
// only ever shrinks, so the loop is bounded; the cap turns a violation
// of that invariant (e.g. rounding flipping a lane back) into a
// reported anomaly instead of an infinite loop.
func (k *Kernel) fixupCell(args Args, p grid.Point, s *scratch, f Fields, tfin []float64, vdelt float64) error {
	nang := k.cfg.NumAngles
	k.ops.fill(s.hvX, 1.0)
	k.ops.fill(s.hvY, 1.0)
	k.ops.fill(s.hvZ, 1.0)
	k.ops.fill(s.hvT, 1.0)

	terms := fixupTerms{
		mu: k.quad.Mu, eta: k.quad.Eta, xi: k.quad.Xi,
		hi: k.cfg.HI, hj: k.cfg.HJ, hk: k.cfg.HK,
		vdelt: vdelt, txs: f.TXS.At(p),
	}

	maxIter := 4*nang + 1
	oldNeg := 0
	for iter := 0; ; iter++ {
		neg := k.ops.fixupFlags(s.fxX, s.pc, s.psii, s.hvX)
		neg += k.ops.fixupFlags(s.fxY, s.pc, s.psij, s.hvY)
		neg += k.ops.fixupFlags(s.fxZ, s.pc, s.psik, s.hvZ)
		if vdelt != 0.0 {
			neg += k.ops.fixupFlags(s.fxT, s.pc, tfin, s.hvT)
		}
		if neg == oldNeg {
			break
		}
		oldNeg = neg
		if iter >= maxIter {
			return fmt.Errorf("sweep: fixup did not reach a fixed point at cell (%d,%d,%d), corner %d, wavefront %d after %d iterations",
				p.X, p.Y, p.Z, args.Corner, args.Wavefront, iter+1)
		}
		k.ops.fixupRecompute(s.pc, s.psi, s.psii, s.psij, s.psik, tfin,
			s.hvX, s.hvY, s.hvZ, s.hvT, terms)
	}

	k.ops.prod(s.psii, s.fxX, s.hvX)
	k.ops.prod(s.psij, s.fxY, s.hvY)
	k.ops.prod(s.psik, s.fxZ, s.hvZ)
	if vdelt != 0.0 {
		k.ops.prod(f.TimeFluxOut.At(p), s.fxT, s.hvT)
	}
	return nil
}

// checkSweep validates the invocation's structural preconditions. These
// are unrecoverable; a failed check means the caller wired the fields
// wrong, not that a retry could succeed.
func (k *Kernel) checkSweep(args Args, box grid.Box, f Fields) error {
	if !box.Valid() {
		return fmt.Errorf("sweep: degenerate subdomain %v", box)
	}
	if args.Group < 0 || args.Group >= k.cfg.NumGroups {
		return fmt.Errorf("sweep: group %d out of range [0,%d)", args.Group, k.cfg.NumGroups)
	}
	if args.Corner < 0 || args.Corner >= snap.NumCorners {
		return fmt.Errorf("sweep: corner %d out of range [0,%d)", args.Corner, snap.NumCorners)
	}
	if f.Qtot == nil || f.Flux == nil || f.Dinv == nil {
		return fmt.Errorf("sweep: qtot, flux and dinv accessors are required")
	}
	if k.cfg.NumMoments > 1 && f.Fluxm == nil {
		return fmt.Errorf("sweep: fluxm accessor required for %d moments", k.cfg.NumMoments)
	}
	if k.cfg.FluxFixup && f.TXS == nil {
		return fmt.Errorf("sweep: t_xs accessor required when fixup is enabled")
	}
	if k.cfg.Vdelt[args.Group] != 0.0 && (f.TimeFluxIn == nil || f.TimeFluxOut == nil) {
		return fmt.Errorf("sweep: time flux accessors required for group %d (vdelt=%g)",
			args.Group, k.cfg.Vdelt[args.Group])
	}
	if k.cfg.SourceLayout == snap.MMSSource && f.Qim == nil {
		return fmt.Errorf("sweep: qim accessor required under the manufactured source layout")
	}
	if f.GhostXIn == nil || f.GhostYIn == nil || f.GhostZIn == nil ||
		f.GhostXOut == nil || f.GhostYOut == nil || f.GhostZOut == nil {
		return fmt.Errorf("sweep: all six ghost accessors are required")
	}
	if f.Dinv.NumAngles() != k.cfg.NumAngles {
		return fmt.Errorf("sweep: dinv carries %d angles, config wants %d",
			f.Dinv.NumAngles(), k.cfg.NumAngles)
	}
	return nil
}
