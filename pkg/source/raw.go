package source

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"patchwarp/internal/models"
)

// Supported sample types of raw volumes
const (
	Float32 = "float32"
	Uint8   = "uint8"
	Uint16  = "uint16"
	Int16   = "int16"
)

// Header describes a raw volume file. It is stored as YAML next to the
// payload, which holds little-endian samples in (C, D, H, W) order.
type Header struct {
	// Shape is (C, D, H, W)
	Shape []int `yaml:"shape"`

	// DType is one of float32, uint8, uint16, int16
	DType string `yaml:"dtype"`

	// Data is the payload path, relative to the header
	Data string `yaml:"data"`
}

func sampleSize(dtype string) (int, error) {
	switch dtype {
	case Float32:
		return 4, nil
	case Uint16, Int16:
		return 2, nil
	case Uint8:
		return 1, nil
	default:
		return 0, errors.Errorf("unsupported dtype %q", dtype)
	}
}

// RawFile reads regions of a raw volume with positioned reads, one row at a
// time. It is safe for concurrent use.
type RawFile struct {
	header Header
	size   int
	file   *os.File
}

// OpenRaw opens the volume described by the YAML header at path
func OpenRaw(path string) (*RawFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	var h Header
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, errors.Wrapf(err, "parse header %s", path)
	}
	if len(h.Shape) != 4 || h.Shape[0] < 1 {
		return nil, errors.Errorf("header %s: shape %v must be (C, D, H, W) with C >= 1", path, h.Shape)
	}
	for _, n := range h.Shape[1:] {
		if n < 1 {
			return nil, errors.Errorf("header %s: non-positive extent in shape %v", path, h.Shape)
		}
	}
	size, err := sampleSize(h.DType)
	if err != nil {
		return nil, errors.Wrapf(err, "header %s", path)
	}
	payload := h.Data
	if !filepath.IsAbs(payload) {
		payload = filepath.Join(filepath.Dir(path), payload)
	}
	f, err := os.Open(payload)
	if err != nil {
		return nil, errors.Wrap(err, "open payload")
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat payload")
	}
	want := int64(h.Shape[0]*h.Shape[1]*h.Shape[2]*h.Shape[3]) * int64(size)
	if st.Size() < want {
		f.Close()
		return nil, errors.Errorf("payload %s has %d bytes, header needs %d", payload, st.Size(), want)
	}
	return &RawFile{header: h, size: size, file: f}, nil
}

// Close releases the payload file
func (r *RawFile) Close() error {
	return r.file.Close()
}

// Shape implements warp.Source
func (r *RawFile) Shape() (int, models.Shape) {
	s := r.header.Shape
	return s[0], models.Shape{s[1], s[2], s[3]}
}

// ReadRegion implements warp.Source
func (r *RawFile) ReadRegion(b models.Box) (*models.Volume, error) {
	channels, sh := r.Shape()
	if !b.Within(sh) {
		return nil, errors.Errorf("region %s exceeds raw volume %s", b, sh)
	}
	out := models.NewVolume(channels, b.Shape())
	rowLen := out.Shape[2]
	buf := make([]byte, rowLen*r.size)
	for c := 0; c < channels; c++ {
		for z := 0; z < out.Shape[0]; z++ {
			for y := 0; y < out.Shape[1]; y++ {
				idx := ((c*sh[0]+b.Lo[0]+z)*sh[1]+b.Lo[1]+y)*sh[2] + b.Lo[2]
				if _, err := r.file.ReadAt(buf, int64(idx*r.size)); err != nil {
					return nil, errors.Wrapf(err, "read row c=%d z=%d y=%d", c, b.Lo[0]+z, b.Lo[1]+y)
				}
				r.decode(out.Data[out.Index(c, z, y, 0):out.Index(c, z, y, 0)+rowLen], buf)
			}
		}
	}
	return out, nil
}

func (r *RawFile) decode(dst []float32, buf []byte) {
	le := binary.LittleEndian
	for i := range dst {
		switch r.header.DType {
		case Float32:
			dst[i] = math.Float32frombits(le.Uint32(buf[4*i:]))
		case Uint16:
			dst[i] = float32(le.Uint16(buf[2*i:]))
		case Int16:
			dst[i] = float32(int16(le.Uint16(buf[2*i:])))
		case Uint8:
			dst[i] = float32(buf[i])
		}
	}
}

// WriteRaw stores vol as float32 samples at dataPath and writes its YAML
// header to headerPath
func WriteRaw(vol *models.Volume, headerPath, dataPath string) error {
	for _, dir := range []string{filepath.Dir(headerPath), filepath.Dir(dataPath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}
	f, err := os.Create(dataPath)
	if err != nil {
		return errors.Wrap(err, "create payload")
	}
	if err := binary.Write(f, binary.LittleEndian, vol.Data); err != nil {
		f.Close()
		return errors.Wrap(err, "write payload")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close payload")
	}

	rel, err := filepath.Rel(filepath.Dir(headerPath), dataPath)
	if err != nil {
		rel = dataPath
	}
	h := Header{
		Shape: []int{vol.Channels, vol.Shape[0], vol.Shape[1], vol.Shape[2]},
		DType: Float32,
		Data:  rel,
	}
	data, err := yaml.Marshal(&h)
	if err != nil {
		return errors.Wrap(err, "marshal header")
	}
	return errors.Wrap(os.WriteFile(headerPath, data, 0644), "write header")
}
