package grid

import (
	"math"
	"sync/atomic"
)

// Accum is a 3-D scalar field accumulated with a lock-free SUM
// reduction. It is the shared write target of every (corner, wavefront)
// sweep task of an energy group; because addition is associative and
// commutative up to floating-point rounding, the accumulated value is
// independent of task execution order once all contributors complete.
type Accum struct {
	bits []uint64
	box  Box
}

// NewAccum allocates a zeroed accumulator covering box.
func NewAccum(box Box) *Accum {
	return &Accum{bits: make([]uint64, box.NumCells()), box: box}
}

// Box returns the accumulator's bounding box.
func (a *Accum) Box() Box { return a.box }

// Add atomically adds v to the value of cell p.
func (a *Accum) Add(p Point, v float64) {
	atomicAddFloat64(&a.bits[a.box.cellIndex(p)], v)
}

// At returns the current value of cell p.
func (a *Accum) At(p Point) float64 {
	return math.Float64frombits(atomic.LoadUint64(&a.bits[a.box.cellIndex(p)]))
}

// Reset zeroes every cell. Not safe against concurrent Add.
func (a *Accum) Reset() {
	for i := range a.bits {
		a.bits[i] = 0
	}
}

// MomentAccum accumulates the moments above the zeroth, ncomp values
// per cell, with the same per-component SUM discipline as Accum.
type MomentAccum struct {
	bits  []uint64
	box   Box
	ncomp int
}

// NewMomentAccum allocates a zeroed moment accumulator with ncomp
// components per cell.
func NewMomentAccum(box Box, ncomp int) *MomentAccum {
	return &MomentAccum{
		bits:  make([]uint64, box.NumCells()*ncomp),
		box:   box,
		ncomp: ncomp,
	}
}

// NumComponents returns the component count per cell.
func (a *MomentAccum) NumComponents() int { return a.ncomp }

// Add atomically adds v to component l of cell p.
func (a *MomentAccum) Add(p Point, l int, v float64) {
	atomicAddFloat64(&a.bits[a.box.cellIndex(p)*a.ncomp+l], v)
}

// At returns the current value of component l of cell p.
func (a *MomentAccum) At(p Point, l int) float64 {
	return math.Float64frombits(atomic.LoadUint64(&a.bits[a.box.cellIndex(p)*a.ncomp+l]))
}

// Reset zeroes every component. Not safe against concurrent Add.
func (a *MomentAccum) Reset() {
	for i := range a.bits {
		a.bits[i] = 0
	}
}

// atomicAddFloat64 folds v into the float64 stored at addr with a
// compare-and-swap loop.
func atomicAddFloat64(addr *uint64, v float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(addr, old, next) {
			return
		}
	}
}
