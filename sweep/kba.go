package sweep

import (
	"fmt"
	"sync"

	"github.com/ajroetker/go-highway/hwy/contrib/workerpool"

	"github.com/minikba/snap/grid"
	"github.com/minikba/snap/snap"
)

// Partition splits a box into an even grid of chunk subdomains for the
// KBA pipeline. Chunks at equal Manhattan distance from a corner's
// origin chunk form one wavefront and are mutually independent.
type Partition struct {
	box        grid.Box
	cx, cy, cz int
	nx, ny, nz int // cells per chunk
}

// NewPartition splits box into cx x cy x cz chunks. The extents must
// divide evenly; an uneven split is a precondition violation.
func NewPartition(box grid.Box, cx, cy, cz int) (*Partition, error) {
	if !box.Valid() {
		return nil, fmt.Errorf("sweep: degenerate box %v", box)
	}
	if cx <= 0 || cy <= 0 || cz <= 0 {
		return nil, fmt.Errorf("sweep: chunk counts must be positive, got %dx%dx%d", cx, cy, cz)
	}
	if box.NX()%cx != 0 || box.NY()%cy != 0 || box.NZ()%cz != 0 {
		return nil, fmt.Errorf("sweep: box %v does not divide into %dx%dx%d chunks",
			box, cx, cy, cz)
	}
	return &Partition{
		box: box,
		cx:  cx, cy: cy, cz: cz,
		nx: box.NX() / cx, ny: box.NY() / cy, nz: box.NZ() / cz,
	}, nil
}

// Chunk returns the subdomain box of chunk (i, j, k).
func (p *Partition) Chunk(i, j, k int) grid.Box {
	lo := grid.Point{
		X: p.box.Lo.X + i*p.nx,
		Y: p.box.Lo.Y + j*p.ny,
		Z: p.box.Lo.Z + k*p.nz,
	}
	return grid.Box{
		Lo: lo,
		Hi: grid.Point{X: lo.X + p.nx - 1, Y: lo.Y + p.ny - 1, Z: lo.Z + p.nz - 1},
	}
}

// NumWavefronts returns the number of chunk wavefronts per corner.
func (p *Partition) NumWavefronts() int { return p.cx + p.cy + p.cz - 2 }

// unit is one (corner, chunk) sweep dispatch.
type unit struct {
	corner  snap.Corner
	i, j, k int
}

// GroupFields holds the global-extent accessors for one energy group,
// shared by every chunk sweep of that group.
type GroupFields struct {
	Qtot        *grid.View[snap.MomentQuad]
	Flux        *grid.Accum
	Fluxm       *grid.MomentAccum
	Dinv        *grid.AngleView
	TXS         *grid.View[float64]
	TimeFluxIn  *grid.AngleView
	TimeFluxOut *grid.AngleView
	Qim         *grid.AngleView
}

// Sweeper dispatches the (corner, wavefront) sweep units of a group
// over a worker pool, sequencing wavefronts so every chunk's axis
// predecessors have produced their ghost output before it runs. All
// eight corners of a wavefront run concurrently; the only shared
// mutable state between units is the atomic flux accumulators.
type Sweeper struct {
	kernel *Kernel
	part   *Partition
	pool   *workerpool.Pool
	parity grid.Parity

	// Ghost faces per corner and axis. Interface fi along x sits
	// between chunks fi-1 and fi; the outermost interfaces carry the
	// vacuum boundary and are only ever read.
	ghostX [snap.NumCorners][]*grid.GhostPair
	ghostY [snap.NumCorners][]*grid.GhostPair
	ghostZ [snap.NumCorners][]*grid.GhostPair

	// wavefronts[w] lists the units dispatched in stage w.
	wavefronts [][]unit
}

// NewSweeper builds a sweeper over part with the given worker count
// (<= 0 means GOMAXPROCS). Close releases the pool.
func NewSweeper(kernel *Kernel, part *Partition, workers int) *Sweeper {
	s := &Sweeper{
		kernel: kernel,
		part:   part,
		pool:   workerpool.New(workers),
	}
	nang := kernel.cfg.NumAngles
	for c := 0; c < snap.NumCorners; c++ {
		s.ghostX[c] = make([]*grid.GhostPair, (part.cx+1)*part.cy*part.cz)
		for i := range s.ghostX[c] {
			s.ghostX[c][i] = grid.NewGhostPair(part.ny, part.nz, nang)
		}
		s.ghostY[c] = make([]*grid.GhostPair, part.cx*(part.cy+1)*part.cz)
		for i := range s.ghostY[c] {
			s.ghostY[c][i] = grid.NewGhostPair(part.nx, part.nz, nang)
		}
		s.ghostZ[c] = make([]*grid.GhostPair, part.cx*part.cy*(part.cz+1))
		for i := range s.ghostZ[c] {
			s.ghostZ[c][i] = grid.NewGhostPair(part.nx, part.ny, nang)
		}
	}

	s.wavefronts = make([][]unit, part.NumWavefronts())
	for c := snap.Corner(0); c < snap.NumCorners; c++ {
		for k := 0; k < part.cz; k++ {
			for j := 0; j < part.cy; j++ {
				for i := 0; i < part.cx; i++ {
					// Manhattan distance from the corner's origin chunk.
					di, dj, dk := i, j, k
					if !c.Positive(0) {
						di = part.cx - 1 - i
					}
					if !c.Positive(1) {
						dj = part.cy - 1 - j
					}
					if !c.Positive(2) {
						dk = part.cz - 1 - k
					}
					w := di + dj + dk
					s.wavefronts[w] = append(s.wavefronts[w], unit{corner: c, i: i, j: j, k: k})
				}
			}
		}
	}
	return s
}

// Close releases the worker pool.
func (s *Sweeper) Close() { s.pool.Close() }

// Parity returns the ghost parity the next Sweep call will use.
func (s *Sweeper) Parity() grid.Parity { return s.parity }

// Sweep runs one full sweep generation for group: all eight corners
// over every chunk, wavefront by wavefront. On return the group's
// Flux/Fluxm hold the complete reduction and the parity has flipped
// for the next generation.
func (s *Sweeper) Sweep(group int, f GroupFields) error {
	var mu sync.Mutex
	var firstErr error

	for w, units := range s.wavefronts {
		s.pool.ParallelFor(len(units), func(start, end int) {
			for _, u := range units[start:end] {
				err := s.kernel.Sweep(
					Args{Group: group, Corner: u.corner, Wavefront: w},
					s.part.Chunk(u.i, u.j, u.k),
					s.chunkFields(u, f),
				)
				if err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}
		})
		if firstErr != nil {
			return firstErr
		}
	}
	s.parity = s.parity.Flip()
	return nil
}

// chunkFields resolves the ghost faces for one unit: the leading face
// per axis feeds the inbound flux (the neighbor's output of this
// generation, or vacuum at the domain boundary) and the trailing face
// receives the outbound flux.
func (s *Sweeper) chunkFields(u unit, f GroupFields) Fields {
	p := s.part
	c := u.corner

	inX, outX := u.i, u.i+1
	if !c.Positive(0) {
		inX, outX = u.i+1, u.i
	}
	inY, outY := u.j, u.j+1
	if !c.Positive(1) {
		inY, outY = u.j+1, u.j
	}
	inZ, outZ := u.k, u.k+1
	if !c.Positive(2) {
		inZ, outZ = u.k+1, u.k
	}

	xFace := func(fi int) *grid.GhostPair { return s.ghostX[c][(fi*p.cy+u.j)*p.cz+u.k] }
	yFace := func(fj int) *grid.GhostPair { return s.ghostY[c][(u.i*(p.cy+1)+fj)*p.cz+u.k] }
	zFace := func(fk int) *grid.GhostPair { return s.ghostZ[c][(u.i*p.cy+u.j)*(p.cz+1)+fk] }

	return Fields{
		Qtot:        f.Qtot,
		Flux:        f.Flux,
		Fluxm:       f.Fluxm,
		Dinv:        f.Dinv,
		TXS:         f.TXS,
		TimeFluxIn:  f.TimeFluxIn,
		TimeFluxOut: f.TimeFluxOut,
		Qim:         f.Qim,
		GhostXIn:    xFace(inX).Buffer(s.parity),
		GhostYIn:    yFace(inY).Buffer(s.parity),
		GhostZIn:    zFace(inZ).Buffer(s.parity),
		GhostXOut:   xFace(outX).Buffer(s.parity),
		GhostYOut:   yFace(outY).Buffer(s.parity),
		GhostZOut:   zFace(outZ).Buffer(s.parity),
	}
}
