package grid

// Ghost is a 2-D plane of angle vectors carrying flux across one face
// of a subdomain between sweep tasks. The two indices are the cell's
// transverse coordinates on that face, local to the subdomain: for the
// x face they are (y, z), for the y face (x, z), for the z face (x, y).
type Ghost struct {
	data   []float64
	n1, n2 int
	nang   int
}

// NewGhost allocates a zeroed ghost plane of n1 x n2 angle vectors.
// A zeroed plane is the vacuum boundary condition.
func NewGhost(n1, n2, numAngles int) *Ghost {
	return &Ghost{
		data: make([]float64, n1*n2*numAngles),
		n1:   n1,
		n2:   n2,
		nang: numAngles,
	}
}

// At returns the angle vector at transverse coordinates (i, j) as a
// slice aliasing the underlying storage.
func (g *Ghost) At(i, j int) []float64 {
	off := (i*g.n2 + j) * g.nang
	return g.data[off : off+g.nang]
}

// Zero resets the plane to the vacuum condition.
func (g *Ghost) Zero() {
	for i := range g.data {
		g.data[i] = 0
	}
}

// Parity selects which buffer of a GhostPair a sweep generation uses.
type Parity uint8

const (
	Even Parity = iota
	Odd
)

// Flip returns the opposite parity.
func (p Parity) Flip() Parity { return p ^ 1 }

// GhostPair double-buffers one subdomain face so successive sweep
// generations can be pipelined: generation g reads and writes the
// buffer selected by its parity, while generation g+1 uses the other
// buffer and never clobbers values a still-draining generation reads.
// Within one generation the producing task writes the buffer before
// the consuming neighbor reads it; that ordering is the wavefront
// dependency enforced by the dispatching scheduler, not by this type.
type GhostPair struct {
	bufs [2]*Ghost
}

// NewGhostPair allocates both parities of a face.
func NewGhostPair(n1, n2, numAngles int) *GhostPair {
	return &GhostPair{bufs: [2]*Ghost{
		NewGhost(n1, n2, numAngles),
		NewGhost(n1, n2, numAngles),
	}}
}

// Buffer returns the plane used by generations of the given parity.
func (p *GhostPair) Buffer(parity Parity) *Ghost {
	return p.bufs[parity&1]
}
