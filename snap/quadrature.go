package snap

import (
	"fmt"
	"math"
)

// Quadrature holds the discrete ordinate directions for one octant and
// the per-corner moment expansion coefficients.
//
// Mu, Eta and Xi are the direction cosines along x, y and z, all
// positive; the corner supplies the octant signs. W is the quadrature
// weight per angle; the weights of one octant sum to 1/8 so that the
// eight corners together integrate the unit sphere.
//
// Ec maps angular flux to moment contributions and back. It is stored
// flattened as ec[corner*numMoments*numAngles + moment*numAngles + angle].
type Quadrature struct {
	Mu, Eta, Xi, W []float64
	Ec             []float64

	numAngles  int
	numMoments int
}

// NewQuadrature builds a dummy level quadrature in the style of SNAP's
// test quadrature: direction cosines spread uniformly over the octant
// and uniform weights. The moment expansion uses the signed direction
// cosine of the moment's axis, so ec[c][0][a] = 1 and the three higher
// moments follow mu, eta and xi with the corner's octant signs.
func NewQuadrature(numAngles, numMoments int) (*Quadrature, error) {
	if numAngles <= 0 {
		return nil, fmt.Errorf("snap: number of angles must be positive, got %d", numAngles)
	}
	if numMoments < 1 || numMoments > 4 {
		return nil, fmt.Errorf("snap: number of moments must be in [1,4], got %d", numMoments)
	}
	q := &Quadrature{
		Mu:         make([]float64, numAngles),
		Eta:        make([]float64, numAngles),
		Xi:         make([]float64, numAngles),
		W:          make([]float64, numAngles),
		Ec:         make([]float64, NumCorners*numMoments*numAngles),
		numAngles:  numAngles,
		numMoments: numMoments,
	}
	for a := 0; a < numAngles; a++ {
		// Polar and azimuthal angles staggered so no two ordinates
		// share a cosine on any axis.
		theta := (float64(a) + 0.5) / float64(numAngles) * (math.Pi / 2)
		phi := (float64(a) + 0.3) / float64(numAngles) * (math.Pi / 2)
		q.Mu[a] = math.Cos(theta)
		q.Eta[a] = math.Sin(theta) * math.Cos(phi)
		q.Xi[a] = math.Sin(theta) * math.Sin(phi)
		q.W[a] = 0.125 / float64(numAngles)
	}
	cos := [3][]float64{q.Mu, q.Eta, q.Xi}
	for c := Corner(0); c < NumCorners; c++ {
		base := int(c) * numMoments * numAngles
		for a := 0; a < numAngles; a++ {
			q.Ec[base+a] = 1.0
		}
		for l := 1; l < numMoments; l++ {
			sign := float64(c.Dir(l - 1))
			off := base + l*numAngles
			for a := 0; a < numAngles; a++ {
				q.Ec[off+a] = sign * cos[l-1][a]
			}
		}
	}
	return q, nil
}

// NumAngles returns the number of ordinates per octant.
func (q *Quadrature) NumAngles() int { return q.numAngles }

// NumMoments returns the number of moments including the zeroth.
func (q *Quadrature) NumMoments() int { return q.numMoments }

// EcAt returns the expansion coefficients for one corner and moment as
// a slice of length NumAngles aliasing the underlying table.
func (q *Quadrature) EcAt(corner Corner, moment int) []float64 {
	off := (int(corner)*q.numMoments + moment) * q.numAngles
	return q.Ec[off : off+q.numAngles]
}
