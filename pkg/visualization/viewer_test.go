package visualization

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"patchwarp/internal/models"
)

// testVolume returns a 2-channel volume whose first channel ramps with x+y+z
func testVolume(d, h, w int) *models.Volume {
	vol := models.NewVolume(2, models.Shape{d, h, w})
	for z := 0; z < d; z++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				vol.Set(0, z, y, x, float32(x+y+z))
			}
		}
	}
	return vol
}

// TestNewViewer verifies channel selection and the intensity window
func TestNewViewer(t *testing.T) {
	vol := testVolume(5, 6, 7)

	viewer, err := NewViewer(vol, 0)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}
	if viewer.shape != vol.Shape {
		t.Errorf("Expected shape %v, got %v", vol.Shape, viewer.shape)
	}
	if viewer.lo != 0 || viewer.hi != 15 {
		t.Errorf("Expected window [0, 15], got [%v, %v]", viewer.lo, viewer.hi)
	}

	for _, c := range []int{-1, 2} {
		if _, err := NewViewer(vol, c); err == nil {
			t.Errorf("Expected error for channel %d", c)
		}
	}
}

// TestExtractSlice verifies slice dimensions and contents along each axis
func TestExtractSlice(t *testing.T) {
	viewer, err := NewViewer(testVolume(5, 6, 7), 0)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}

	tests := []struct {
		axis          string
		position      int
		width, height int
	}{
		{"z", 2, 7, 6},
		{"y", 3, 7, 5},
		{"x", 4, 5, 6},
		{"Z", 0, 7, 6},
	}
	for _, tc := range tests {
		img, err := viewer.ExtractSlice(tc.axis, tc.position)
		if err != nil {
			t.Errorf("ExtractSlice(%s, %d) failed: %v", tc.axis, tc.position, err)
			continue
		}
		b := img.Bounds()
		if b.Dx() != tc.width || b.Dy() != tc.height {
			t.Errorf("ExtractSlice(%s, %d): expected %dx%d, got %dx%d",
				tc.axis, tc.position, tc.width, tc.height, b.Dx(), b.Dy())
		}
	}

	// The brightest voxel of the volume is the far corner.
	img, _ := viewer.ExtractSlice("z", 4)
	gray := img.(*image.Gray16)
	if got := gray.Gray16At(6, 5).Y; got != 65535 {
		t.Errorf("Expected white far corner, got %d", got)
	}
	img, _ = viewer.ExtractSlice("z", 0)
	if got := img.(*image.Gray16).Gray16At(0, 0).Y; got != 0 {
		t.Errorf("Expected black origin, got %d", got)
	}

	invalid := []struct {
		axis     string
		position int
	}{
		{"z", 5}, {"y", 6}, {"x", 7}, {"x", -1}, {"w", 0},
	}
	for _, tc := range invalid {
		if _, err := viewer.ExtractSlice(tc.axis, tc.position); err == nil {
			t.Errorf("Expected error for ExtractSlice(%s, %d)", tc.axis, tc.position)
		}
	}
}

// TestConstantChannel verifies that a flat channel renders black
func TestConstantChannel(t *testing.T) {
	viewer, err := NewViewer(testVolume(3, 3, 3), 1)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}
	img, err := viewer.ExtractSlice("y", 1)
	if err != nil {
		t.Fatalf("ExtractSlice failed: %v", err)
	}
	if got := img.(*image.Gray16).Gray16At(1, 1).Y; got != 0 {
		t.Errorf("Expected black, got %d", got)
	}
}

// TestSavePreview verifies that the three central slices are written as PNG
func TestSavePreview(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "preview")
	viewer, err := NewViewer(testVolume(4, 8, 10), 0)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}

	paths, err := viewer.SavePreview(dir, "input")
	if err != nil {
		t.Fatalf("SavePreview failed: %v", err)
	}
	if len(paths) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(paths))
	}
	want := map[string][2]int{
		"input_z.png": {10, 8},
		"input_y.png": {10, 4},
		"input_x.png": {4, 8},
	}
	for _, p := range paths {
		size, ok := want[filepath.Base(p)]
		if !ok {
			t.Errorf("Unexpected file %s", p)
			continue
		}
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("open %s: %v", p, err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Fatalf("decode %s: %v", p, err)
		}
		if b := img.Bounds(); b.Dx() != size[0] || b.Dy() != size[1] {
			t.Errorf("%s: expected %dx%d, got %dx%d", p, size[0], size[1], b.Dx(), b.Dy())
		}
	}
}

// TestSaveSliceJPEG verifies that the extension selects the encoder
func TestSaveSliceJPEG(t *testing.T) {
	viewer, err := NewViewer(testVolume(3, 4, 5), 0)
	if err != nil {
		t.Fatalf("NewViewer failed: %v", err)
	}
	img, err := viewer.ExtractSlice("z", 1)
	if err != nil {
		t.Fatalf("ExtractSlice failed: %v", err)
	}

	filename := filepath.Join(t.TempDir(), "slice.jpg")
	if err := SaveSlice(img, filename); err != nil {
		t.Fatalf("SaveSlice failed: %v", err)
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("read %s: %v", filename, err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Errorf("Expected a JPEG header in %s", filename)
	}
}
