// Package visualization renders orthogonal slices of extracted patches as
// grayscale images for visual inspection of the warps.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"patchwarp/internal/models"
)

// Viewer renders one channel of a (C, D, H, W) volume
type Viewer struct {
	// data is the channel being rendered
	data []float32

	// shape is the spatial extent of the channel
	shape models.Shape

	// lo and hi map to black and white
	lo, hi float32
}

// NewViewer creates a viewer for channel c of vol. Intensities are stretched
// from the channel's minimum to its maximum.
func NewViewer(vol *models.Volume, c int) (*Viewer, error) {
	if c < 0 || c >= vol.Channels {
		return nil, fmt.Errorf("channel %d out of range for %d channels", c, vol.Channels)
	}
	v := &Viewer{data: vol.Channel(c), shape: vol.Shape}
	if len(v.data) > 0 {
		v.lo, v.hi = v.data[0], v.data[0]
		for _, x := range v.data {
			v.lo = min(v.lo, x)
			v.hi = max(v.hi, x)
		}
	}
	return v, nil
}

func (v *Viewer) gray(val float32) color.Gray16 {
	if v.hi <= v.lo {
		return color.Gray16{}
	}
	n := float64((val - v.lo) / (v.hi - v.lo))
	return color.Gray16{Y: uint16(math.Max(0, math.Min(65535, n*65535)))}
}

func (v *Viewer) at(z, y, x int) float32 {
	return v.data[(z*v.shape[1]+y)*v.shape[2]+x]
}

// ExtractSlice extracts a 2D slice along axis "z" (depth), "y" (height) or
// "x" (width) at the given position
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}
	d, h, w := v.shape[0], v.shape[1], v.shape[2]

	switch strings.ToLower(axis) {
	case "z":
		if position >= d {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, d)
		}
		img := image.NewGray16(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.SetGray16(x, y, v.gray(v.at(position, y, x)))
			}
		}
		return img, nil

	case "y":
		if position >= h {
			return nil, fmt.Errorf("position %d exceeds height %d", position, h)
		}
		img := image.NewGray16(image.Rect(0, 0, w, d))
		for z := 0; z < d; z++ {
			for x := 0; x < w; x++ {
				img.SetGray16(x, z, v.gray(v.at(z, position, x)))
			}
		}
		return img, nil

	case "x":
		if position >= w {
			return nil, fmt.Errorf("position %d exceeds width %d", position, w)
		}
		img := image.NewGray16(image.Rect(0, 0, d, h))
		for y := 0; y < h; y++ {
			for z := 0; z < d; z++ {
				img.SetGray16(z, y, v.gray(v.at(z, y, position)))
			}
		}
		return img, nil

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}
}

// SaveSlice writes img as PNG or JPEG depending on the file extension
func SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(file, img)
	}
}

// SavePreview writes the three central orthogonal slices to outputDir as
// <prefix>_<axis>.png and returns their paths
func (v *Viewer) SavePreview(outputDir, prefix string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	centers := map[string]int{"z": v.shape[0] / 2, "y": v.shape[1] / 2, "x": v.shape[2] / 2}
	var paths []string
	for _, axis := range []string{"z", "y", "x"} {
		img, err := v.ExtractSlice(axis, centers[axis])
		if err != nil {
			return nil, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.png", prefix, axis))
		if err := SaveSlice(img, filename); err != nil {
			return nil, fmt.Errorf("failed to save %s slice: %w", axis, err)
		}
		paths = append(paths, filename)
	}
	return paths, nil
}
