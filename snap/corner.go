package snap

// NumCorners is the number of octant sweep directions in 3-D.
const NumCorners = 8

// Corner identifies one of the eight octant sweep directions. The low
// three bits encode the stride polarity per axis: bit 0 is x, bit 1 is
// y, bit 2 is z. A set bit means the sweep walks that axis from low to
// high indices; a clear bit walks high to low. The ghost read/write
// protocol depends on this convention, so it must not be reinterpreted.
type Corner int

// Positive reports the stride polarity for the given axis (0=x, 1=y, 2=z).
func (c Corner) Positive(axis int) bool {
	return c&(1<<axis) != 0
}

// Dir returns the stride direction for the given axis: +1 or -1.
func (c Corner) Dir(axis int) int {
	if c.Positive(axis) {
		return 1
	}
	return -1
}

// Signs returns the per-axis direction signs as floats, used when the
// octant sign enters the arithmetic rather than the iteration order.
func (c Corner) Signs() (sx, sy, sz float64) {
	sx, sy, sz = -1, -1, -1
	if c.Positive(0) {
		sx = 1
	}
	if c.Positive(1) {
		sy = 1
	}
	if c.Positive(2) {
		sz = 1
	}
	return sx, sy, sz
}
