package source

import (
	"math"

	"patchwarp/internal/models"
)

// Pattern returns a single-channel volume of smooth intensities in [0, 1],
// a sum of sinusoids along each axis
func Pattern(sh models.Shape) *models.Volume {
	v := models.NewVolume(1, sh)
	for z := 0; z < sh[0]; z++ {
		for y := 0; y < sh[1]; y++ {
			for x := 0; x < sh[2]; x++ {
				val := math.Sin(float64(z)/4) + math.Sin(float64(y)/6) + math.Cos(float64(x)/5)
				v.Set(0, z, y, x, float32((val+3)/6))
			}
		}
	}
	return v
}

// Shells returns a single-channel label volume of concentric spherical
// shells around the center, labelled 0 to classes-1 from the outside in
func Shells(sh models.Shape, classes int) *models.Volume {
	v := models.NewVolume(1, sh)
	cz, cy, cx := float64(sh[0]-1)/2, float64(sh[1]-1)/2, float64(sh[2]-1)/2
	radius := math.Min(cz, math.Min(cy, cx)) + 1
	for z := 0; z < sh[0]; z++ {
		for y := 0; y < sh[1]; y++ {
			for x := 0; x < sh[2]; x++ {
				d := math.Sqrt((float64(z)-cz)*(float64(z)-cz) + (float64(y)-cy)*(float64(y)-cy) + (float64(x)-cx)*(float64(x)-cx))
				label := classes - 1 - int(d/radius*float64(classes))
				if label < 0 {
					label = 0
				}
				v.Set(0, z, y, x, float32(label))
			}
		}
	}
	return v
}
