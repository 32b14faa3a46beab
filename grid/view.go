package grid

// View is a strided view over a caller-owned 3-D field holding one
// value of type T per cell. Storage is dense with x innermost.
type View[T any] struct {
	data []T
	box  Box
}

// NewView allocates a zeroed view covering box.
func NewView[T any](box Box) *View[T] {
	return &View[T]{data: make([]T, box.NumCells()), box: box}
}

// Box returns the view's bounding box.
func (v *View[T]) Box() Box { return v.box }

// At returns the value stored for cell p.
func (v *View[T]) At(p Point) T { return v.data[v.box.cellIndex(p)] }

// Set stores val for cell p.
func (v *View[T]) Set(p Point, val T) { v.data[v.box.cellIndex(p)] = val }

// Fill stores val in every cell.
func (v *View[T]) Fill(val T) {
	for i := range v.data {
		v.data[i] = val
	}
}

// AngleView is a strided view over a field holding one angle vector per
// cell, stored contiguously so a cell's angles are unit stride.
type AngleView struct {
	data []float64
	box  Box
	nang int
}

// NewAngleView allocates a zeroed angle-vector view covering box.
func NewAngleView(box Box, numAngles int) *AngleView {
	return &AngleView{
		data: make([]float64, box.NumCells()*numAngles),
		box:  box,
		nang: numAngles,
	}
}

// Box returns the view's bounding box.
func (v *AngleView) Box() Box { return v.box }

// NumAngles returns the angle count per cell.
func (v *AngleView) NumAngles() int { return v.nang }

// At returns the angle vector for cell p as a slice aliasing the
// underlying storage.
func (v *AngleView) At(p Point) []float64 {
	off := v.box.cellIndex(p) * v.nang
	return v.data[off : off+v.nang]
}
