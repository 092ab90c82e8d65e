// Package interpolation reconstructs voxel values at fractional source
// coordinates from a pre-fetched sub-cube of a volume.
package interpolation

import (
	"math"
	"runtime"
	"sync"

	"patchwarp/internal/models"
	"patchwarp/pkg/coords"
)

// Policy selects how a channel is reconstructed
type Policy int

const (
	// Linear blends the 8 surrounding voxels
	Linear Policy = iota
	// Nearest copies the closest voxel, for label channels
	Nearest
)

func (p Policy) String() string {
	switch p {
	case Linear:
		return "linear"
	case Nearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// Cube is one channel of a fetched sub-region. Lo is the source coordinate
// of its first voxel.
type Cube struct {
	Data  []float32
	Shape models.Shape
	Lo    [3]float32
}

// CubeOf returns channel c of v positioned at lo
func CubeOf(v *models.Volume, c int, lo [3]float32) Cube {
	return Cube{Data: v.Channel(c), Shape: v.Shape, Lo: lo}
}

func (c Cube) at(z, y, x int) float32 {
	return c.Data[(z*c.Shape[1]+y)*c.Shape[2]+x]
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// NearestAt returns the voxel closest to p
func NearestAt(c Cube, p coords.Point) float32 {
	var idx [3]int
	for a := 0; a < 3; a++ {
		idx[a] = clampIndex(int(math.Round(float64(p[a]-c.Lo[a]))), c.Shape[a])
	}
	return c.at(idx[0], idx[1], idx[2])
}

// TrilinearAt returns the trilinear blend of the 8 voxels around p. Upper
// neighbours past the cube edge only occur with zero weight and are clamped.
func TrilinearAt(c Cube, p coords.Point) float32 {
	var i0, i1 [3]int
	var f [3]float32
	for a := 0; a < 3; a++ {
		u := p[a] - c.Lo[a]
		fl := float32(math.Floor(float64(u)))
		f[a] = u - fl
		i0[a] = clampIndex(int(fl), c.Shape[a])
		i1[a] = clampIndex(int(fl)+1, c.Shape[a])
	}
	du, dv, dw := f[0], f[1], f[2]
	return c.at(i0[0], i0[1], i0[2])*(1-du)*(1-dv)*(1-dw) +
		c.at(i1[0], i0[1], i0[2])*du*(1-dv)*(1-dw) +
		c.at(i0[0], i1[1], i0[2])*(1-du)*dv*(1-dw) +
		c.at(i0[0], i0[1], i1[2])*(1-du)*(1-dv)*dw +
		c.at(i1[0], i0[1], i1[2])*du*(1-dv)*dw +
		c.at(i0[0], i1[1], i1[2])*(1-du)*dv*dw +
		c.at(i1[0], i1[1], i0[2])*du*dv*(1-dw) +
		c.at(i1[0], i1[1], i1[2])*du*dv*dw
}

// Resample fills dst[i] from pts[i] using policy, splitting the points over
// workers goroutines. workers <= 0 means runtime.NumCPU().
func Resample(dst []float32, c Cube, pts []coords.Point, policy Policy, workers int) {
	kernel := TrilinearAt
	if policy == Nearest {
		kernel = NearestAt
	}
	ParallelRange(len(pts), workers, func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = kernel(c, pts[i])
		}
	})
}

// minChunk keeps goroutine overhead small against per-voxel work
const minChunk = 4096

// ParallelRange calls fn over contiguous chunks of [0, n) concurrently and
// waits for all of them
func ParallelRange(n, workers int, fn func(start, end int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if n <= minChunk || workers == 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}

// MaxValue returns the largest element of data, or 0 for an empty slice
func MaxValue(data []float32) float32 {
	if len(data) == 0 {
		return 0
	}
	m := data[0]
	for _, v := range data[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// ClipLabels clamps data to [0, hi] in place and returns how many values
// were out of range
func ClipLabels(data []float32, hi float32) int {
	n := 0
	for i, v := range data {
		switch {
		case v > hi:
			data[i] = hi
			n++
		case v < 0:
			data[i] = 0
			n++
		}
	}
	return n
}
