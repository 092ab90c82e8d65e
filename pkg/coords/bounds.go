package coords

import (
	"fmt"
	"math"

	"patchwarp/internal/models"
)

// OutOfBoundsError reports a required region that leaves its source
type OutOfBoundsError struct {
	Region models.Box
	Extent models.Shape
	Which  string
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%s region %s exceeds source extent %s", e.Which, e.Region, e.Extent)
}

// Is lets errors.Is match models.ErrOutOfBounds
func (e *OutOfBoundsError) Is(target error) bool {
	return target == models.ErrOutOfBounds
}

// Bounds returns the smallest box of whole voxels covering pts after
// subtracting off: floor(min) up to ceil(max), the latter inclusive. Every
// trilinear neighbour with non-zero weight falls inside it.
func Bounds(pts []Point, off [3]int) models.Box {
	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, p := range pts {
		for a := 0; a < 3; a++ {
			v := float64(p[a])
			if v < lo[a] {
				lo[a] = v
			}
			if v > hi[a] {
				hi[a] = v
			}
		}
	}
	var b models.Box
	for a := 0; a < 3; a++ {
		b.Lo[a] = int(math.Floor(lo[a] - float64(off[a])))
		b.Hi[a] = int(math.Ceil(hi[a]-float64(off[a]))) + 1
	}
	return b
}

// CornerBounds is Bounds over the eight mapped corners. For affine and
// non-folding projective maps the corners bound the whole patch.
func CornerBounds(corners [8]Point) models.Box {
	return Bounds(corners[:], [3]int{})
}

// CheckBounds fails with an *OutOfBoundsError when b is not inside [0, extent)
func CheckBounds(b models.Box, extent models.Shape, which string) error {
	for a := 0; a < 3; a++ {
		if b.Lo[a] < 0 || b.Hi[a] > extent[a] {
			return &OutOfBoundsError{Region: b, Extent: extent, Which: which}
		}
	}
	return nil
}
