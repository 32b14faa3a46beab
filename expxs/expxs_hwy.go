package expxs

import (
	"github.com/ajroetker/go-highway/hwy"
)

// baseGeometryParam fills one cell's denominator inverse. The angle
// count here is arbitrary, so the vector loop carries a masked tail in
// the usual style.
func baseGeometryParam(dst, mu, eta, xi []float64, hi, hj, hk, txs, vdelt float64) {
	vhi := hwy.Set(hi)
	vhj := hwy.Set(hj)
	vhk := hwy.Set(hk)
	vbase := hwy.Set(txs + vdelt)
	one := hwy.Set(1.0)

	hwy.ProcessWithTail[float64](len(dst),
		func(offset int) {
			den := hwy.MulAdd(hwy.Load(mu[offset:]), vhi,
				hwy.MulAdd(hwy.Load(eta[offset:]), vhj,
					hwy.MulAdd(hwy.Load(xi[offset:]), vhk, vbase)))
			hwy.Store(hwy.Div(one, den), dst[offset:])
		},
		func(offset, count int) {
			mask := hwy.TailMask[float64](count)
			den := hwy.MulAdd(hwy.MaskLoad(mask, mu[offset:]), vhi,
				hwy.MulAdd(hwy.MaskLoad(mask, eta[offset:]), vhj,
					hwy.MulAdd(hwy.MaskLoad(mask, xi[offset:]), vhk, vbase)))
			hwy.MaskStore(mask, hwy.Div(one, den), dst[offset:])
		},
	)
}
