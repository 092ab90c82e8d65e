// Package coords maps destination patch voxels back into source volume
// coordinates and derives the source regions those coordinates touch.
package coords

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"patchwarp/internal/models"
	"patchwarp/pkg/transform"
)

// DefaultCacheSize covers the input and target patch shapes of a few
// concurrent configurations.
const DefaultCacheSize = 8

// Point is a fractional source coordinate (z, y, x)
type Point [3]float32

// Corners holds the eight axis-extreme voxels of a shape
type Corners [8]transform.Vec

// Mapper inverts forward transforms and maps destination grids through them.
// Grids and corner sets are pure geometry and are cached per shape; a Mapper
// is safe for concurrent use.
type Mapper struct {
	grids   *lru.Cache[models.Shape, []transform.Vec]
	corners *lru.Cache[models.Shape, Corners]
}

// NewMapper returns a Mapper whose caches hold at most size shapes each
func NewMapper(size int) (*Mapper, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	grids, err := lru.New[models.Shape, []transform.Vec](size)
	if err != nil {
		return nil, errors.Wrap(err, "grid cache")
	}
	corners, err := lru.New[models.Shape, Corners](size)
	if err != nil {
		return nil, errors.Wrap(err, "corner cache")
	}
	return &Mapper{grids: grids, corners: corners}, nil
}

// Grid returns the homogeneous coordinate of every voxel of sh in (z, y, x)
// row-major order. The returned slice is shared and must not be modified.
func (m *Mapper) Grid(sh models.Shape) []transform.Vec {
	if g, ok := m.grids.Get(sh); ok {
		return g
	}
	g := make([]transform.Vec, 0, sh.Voxels())
	for z := 0; z < sh[0]; z++ {
		for y := 0; y < sh[1]; y++ {
			for x := 0; x < sh[2]; x++ {
				g = append(g, transform.Vec{float32(z), float32(y), float32(x), 1})
			}
		}
	}
	m.grids.Add(sh, g)
	return g
}

// Corners returns the 0-based inclusive corners of sh, with the width axis
// varying fastest
func (m *Mapper) Corners(sh models.Shape) Corners {
	if c, ok := m.corners.Get(sh); ok {
		return c
	}
	var c Corners
	for i := 0; i < 8; i++ {
		c[i] = transform.Vec{
			float32((i>>2&1)*(sh[0]-1)),
			float32((i>>1&1)*(sh[1]-1)),
			float32((i&1)*(sh[2]-1)),
			1,
		}
	}
	m.corners.Add(sh, c)
	return c
}

// Mapping is the inverse of a forward transform, ready to map destination
// coordinates into the source
type Mapping struct {
	Forward transform.Matrix
	Inverse transform.Matrix

	// divide is set when the forward matrix has projective coefficients
	divide bool
}

// Invert prepares the inverse mapping of forward. A singular matrix is a
// configuration error.
func Invert(forward transform.Matrix) (*Mapping, error) {
	inv, err := forward.Inverse()
	if err != nil {
		return nil, errors.Wrapf(models.ErrConfiguration, "%v", err)
	}
	return &Mapping{
		Forward: forward,
		Inverse: inv,
		divide:  forward.HasPerspective(),
	}, nil
}

// Perspective reports whether mapped coordinates need a homogeneous divide
func (mp *Mapping) Perspective() bool {
	return mp.divide
}

// Point maps one destination coordinate into source space
func (mp *Mapping) Point(v transform.Vec) Point {
	r := mp.Inverse.Apply(v)
	if mp.divide {
		return Point{r[0] / r[3], r[1] / r[3], r[2] / r[3]}
	}
	return Point{r[0], r[1], r[2]}
}

// MapCorners maps the corners of the destination shape sh
func (m *Mapper) MapCorners(mp *Mapping, sh models.Shape) [8]Point {
	var out [8]Point
	for i, c := range m.Corners(sh) {
		out[i] = mp.Point(c)
	}
	return out
}

// MapDense maps every voxel of the destination shape sh, in the order of
// Grid.
func (m *Mapper) MapDense(mp *Mapping, sh models.Shape) []Point {
	grid := m.Grid(sh)
	out := make([]Point, len(grid))
	for i, v := range grid {
		out[i] = mp.Point(v)
	}
	return out
}

// MapCoordinates inverts forward and maps both the corners and the dense
// grid of sh
func (m *Mapper) MapCoordinates(forward transform.Matrix, sh models.Shape) ([8]Point, []Point, error) {
	mp, err := Invert(forward)
	if err != nil {
		return [8]Point{}, nil, err
	}
	return m.MapCorners(mp, sh), m.MapDense(mp, sh), nil
}

// SubGrid copies the points of the block [off, off+sub) out of a dense
// mapping of shape sh
func SubGrid(pts []Point, sh models.Shape, off [3]int, sub models.Shape) []Point {
	out := make([]Point, 0, sub.Voxels())
	for z := 0; z < sub[0]; z++ {
		for y := 0; y < sub[1]; y++ {
			row := ((off[0]+z)*sh[1]+off[1]+y)*sh[2] + off[2]
			out = append(out, pts[row:row+sub[2]]...)
		}
	}
	return out
}
