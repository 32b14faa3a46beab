// Package snap holds the solver configuration and the constant angle,
// weight and moment-expansion tables shared by the discrete-ordinates
// kernels in this module.
package snap

import "fmt"

// MomentQuad is a spherical-harmonics moment vector for one cell,
// including the zeroth moment. The solver supports at most four moments.
type MomentQuad [4]float64

// MomentTriple holds the moments above the zeroth for one cell.
type MomentTriple [3]float64

// SourceLayout selects how the angular source for a sweep is assembled.
type SourceLayout int

const (
	// FlatSource uses only the total source moments qtot.
	FlatSource SourceLayout = iota
	// MMSSource additionally applies the per-cell, per-angle
	// manufactured-solution source qim.
	MMSSource
)

// Config carries the knobs consumed, but not owned, by the kernels.
// The zero value is not valid; populate and call Validate before use.
type Config struct {
	// NumDims is the spatial dimensionality. The sweep only supports 3.
	NumDims int

	// Global grid extents in cells and physical lengths. The physical
	// lengths are only consulted by the manufactured-solution kernels.
	NX, NY, NZ int
	LX, LY, LZ float64

	// NumAngles is the number of discrete ordinates per octant.
	NumAngles int

	// NumMoments is the number of spherical-harmonics moments
	// (including the zeroth), at most 4.
	NumMoments int

	// NumGroups is the number of energy groups.
	NumGroups int

	// HI, HJ, HK are the per-axis spatial coupling factors derived from
	// the cell widths (2/dx, 2/dy, 2/dz).
	HI, HJ, HK float64

	// Vdelt is the time-absorption coefficient per energy group. A zero
	// entry disables the time-dependent terms for that group.
	Vdelt []float64

	// FluxFixup enables the iterative non-negativity correction to the
	// diamond-difference closure.
	FluxFixup bool

	// SourceLayout selects the standard or manufactured source model.
	SourceLayout SourceLayout
}

// Validate checks the structural preconditions shared by all kernels.
// Violations are unrecoverable; callers should not retry.
func (c *Config) Validate() error {
	if c.NumDims != 3 {
		return fmt.Errorf("snap: sweep requires 3 spatial dimensions, got %d", c.NumDims)
	}
	if c.NX <= 0 || c.NY <= 0 || c.NZ <= 0 {
		return fmt.Errorf("snap: grid extents must be positive, got %dx%dx%d", c.NX, c.NY, c.NZ)
	}
	if c.NumAngles <= 0 {
		return fmt.Errorf("snap: number of angles must be positive, got %d", c.NumAngles)
	}
	if c.NumMoments < 1 || c.NumMoments > 4 {
		return fmt.Errorf("snap: number of moments must be in [1,4], got %d", c.NumMoments)
	}
	if c.NumGroups <= 0 {
		return fmt.Errorf("snap: number of groups must be positive, got %d", c.NumGroups)
	}
	if len(c.Vdelt) != c.NumGroups {
		return fmt.Errorf("snap: vdelt has %d entries for %d groups", len(c.Vdelt), c.NumGroups)
	}
	return nil
}

// CellWidths returns dx, dy, dz for the configured physical extents.
func (c *Config) CellWidths() (dx, dy, dz float64) {
	return c.LX / float64(c.NX), c.LY / float64(c.NY), c.LZ / float64(c.NZ)
}
