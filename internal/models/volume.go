package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// Shape is a spatial extent in (depth, height, width) order
type Shape [3]int

// Valid reports whether every component is positive
func (s Shape) Valid() bool {
	return s[0] > 0 && s[1] > 0 && s[2] > 0
}

// Voxels returns D*H*W
func (s Shape) Voxels() int {
	return s[0] * s[1] * s[2]
}

// Sub returns the elementwise difference s - o
func (s Shape) Sub(o Shape) [3]int {
	return [3]int{s[0] - o[0], s[1] - o[1], s[2] - o[2]}
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s[0], s[1], s[2])
}

// Box is an axis-aligned voxel region with inclusive Lo and exclusive Hi
type Box struct {
	Lo [3]int
	Hi [3]int
}

// Shape returns the extent of the box
func (b Box) Shape() Shape {
	return Shape{b.Hi[0] - b.Lo[0], b.Hi[1] - b.Lo[1], b.Hi[2] - b.Lo[2]}
}

// Within reports whether the box lies inside [0, s) on every axis
func (b Box) Within(s Shape) bool {
	for a := 0; a < 3; a++ {
		if b.Lo[a] < 0 || b.Hi[a] > s[a] || b.Lo[a] >= b.Hi[a] {
			return false
		}
	}
	return true
}

func (b Box) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d, %d:%d]", b.Lo[0], b.Hi[0], b.Lo[1], b.Hi[1], b.Lo[2], b.Hi[2])
}

// Volume is a multi-channel 3D array with layout (C, D, H, W)
type Volume struct {
	// Data holds the voxels in row-major order, channel-major
	Data []float32

	// Channels is the leading channel count
	Channels int

	// Shape is the spatial extent
	Shape Shape
}

// NewVolume allocates a zeroed volume
func NewVolume(channels int, shape Shape) *Volume {
	return &Volume{
		Data:     make([]float32, channels*shape.Voxels()),
		Channels: channels,
		Shape:    shape,
	}
}

// Index returns the flat offset of voxel (c, z, y, x)
func (v *Volume) Index(c, z, y, x int) int {
	return ((c*v.Shape[0]+z)*v.Shape[1]+y)*v.Shape[2] + x
}

// At returns the voxel value at (c, z, y, x)
func (v *Volume) At(c, z, y, x int) float32 {
	return v.Data[v.Index(c, z, y, x)]
}

// Set stores val at (c, z, y, x)
func (v *Volume) Set(c, z, y, x int, val float32) {
	v.Data[v.Index(c, z, y, x)] = val
}

// Channel returns the backing slice of one channel
func (v *Volume) Channel(c int) []float32 {
	n := v.Shape.Voxels()
	return v.Data[c*n : (c+1)*n]
}

// Region copies the sub-box b of every channel into a new volume
func (v *Volume) Region(b Box) (*Volume, error) {
	if !b.Within(v.Shape) {
		return nil, errors.Errorf("region %s exceeds volume shape %s", b, v.Shape)
	}
	sh := b.Shape()
	out := NewVolume(v.Channels, sh)
	for c := 0; c < v.Channels; c++ {
		for z := 0; z < sh[0]; z++ {
			for y := 0; y < sh[1]; y++ {
				src := v.Index(c, b.Lo[0]+z, b.Lo[1]+y, b.Lo[2])
				dst := out.Index(c, z, y, 0)
				copy(out.Data[dst:dst+sh[2]], v.Data[src:src+sh[2]])
			}
		}
	}
	return out, nil
}
