// Package grid provides the caller-owned 3-D array abstractions the
// transport kernels read and write: strided per-cell views, angle-vector
// views, boundary ghost planes and lock-free flux accumulators. The
// kernels never allocate or free these; their lifetime spans one sweep
// generation and is managed by the caller.
package grid

import "fmt"

// Point is a 3-D cell coordinate.
type Point struct {
	X, Y, Z int
}

// Box is an inclusive 3-D bounding box of cells.
type Box struct {
	Lo, Hi Point
}

// NewBox returns the box spanning [0,nx) x [0,ny) x [0,nz).
func NewBox(nx, ny, nz int) Box {
	return Box{Lo: Point{0, 0, 0}, Hi: Point{nx - 1, ny - 1, nz - 1}}
}

// NX returns the extent of the box along x.
func (b Box) NX() int { return b.Hi.X - b.Lo.X + 1 }

// NY returns the extent of the box along y.
func (b Box) NY() int { return b.Hi.Y - b.Lo.Y + 1 }

// NZ returns the extent of the box along z.
func (b Box) NZ() int { return b.Hi.Z - b.Lo.Z + 1 }

// NumCells returns the number of cells in the box.
func (b Box) NumCells() int { return b.NX() * b.NY() * b.NZ() }

// Contains reports whether p lies inside the box.
func (b Box) Contains(p Point) bool {
	return p.X >= b.Lo.X && p.X <= b.Hi.X &&
		p.Y >= b.Lo.Y && p.Y <= b.Hi.Y &&
		p.Z >= b.Lo.Z && p.Z <= b.Hi.Z
}

// Valid reports whether the box is non-degenerate on every axis.
func (b Box) Valid() bool {
	return b.NX() > 0 && b.NY() > 0 && b.NZ() > 0
}

func (b Box) String() string {
	return fmt.Sprintf("[%d,%d]x[%d,%d]x[%d,%d]",
		b.Lo.X, b.Hi.X, b.Lo.Y, b.Hi.Y, b.Lo.Z, b.Hi.Z)
}

// cellIndex is the dense linear index of p within b, x innermost so
// walks along x are unit stride.
func (b Box) cellIndex(p Point) int {
	return ((p.Z-b.Lo.Z)*b.NY()+(p.Y-b.Lo.Y))*b.NX() + (p.X - b.Lo.X)
}
