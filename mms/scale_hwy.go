package mms

import (
	"github.com/ajroetker/go-highway/hwy"

	"github.com/minikba/snap/grid"
)

// Scale multiplies every angle of every cell of qim by factor, used to
// advance the manufactured source between time steps.
func Scale(qim *grid.AngleView, factor float64) {
	box := qim.Box()
	vf := hwy.Set(factor)
	for z := box.Lo.Z; z <= box.Hi.Z; z++ {
		for y := box.Lo.Y; y <= box.Hi.Y; y++ {
			for x := box.Lo.X; x <= box.Hi.X; x++ {
				angles := qim.At(grid.Point{X: x, Y: y, Z: z})
				hwy.ProcessWithTail[float64](len(angles),
					func(offset int) {
						hwy.Store(hwy.Mul(hwy.Load(angles[offset:]), vf), angles[offset:])
					},
					func(offset, count int) {
						mask := hwy.TailMask[float64](count)
						v := hwy.Mul(hwy.MaskLoad(mask, angles[offset:]), vf)
						hwy.MaskStore(mask, v, angles[offset:])
					},
				)
			}
		}
	}
}
