package transform

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"patchwarp/internal/models"
)

// Options holds the randomization parameters of a warped patch
type Options struct {
	// AnisoFactor is the depth/plane voxel size ratio of the source
	AnisoFactor float64 `yaml:"anisoFactor"`

	// SampleAniso scales depth by 1/AnisoFactor on the destination side so
	// patches keep the source's anisotropic sampling
	SampleAniso bool `yaml:"sampleAniso"`

	// WarpAmount scales rotation angles and warp perturbations. Zero
	// disables both.
	WarpAmount float64 `yaml:"warpAmount"`

	// LockZ keeps the depth axis out of rotations, swaps and warps
	LockZ bool `yaml:"lockZ"`

	// NoXFlip pins the width axis; it also disables axis swaps
	NoXFlip bool `yaml:"noXFlip"`

	// Perspective enables small projective coefficients in the warp
	Perspective bool `yaml:"perspective"`
}

// DefaultOptions returns the options used by the training loader
func DefaultOptions() Options {
	return Options{
		AnisoFactor: 2,
		SampleAniso: true,
		WarpAmount:  1,
		LockZ:       true,
	}
}

// TargetGeometry describes a second, centered source whose patch must stay
// aligned with the input patch
type TargetGeometry struct {
	SourceShape models.Shape
	PatchShape  models.Shape
}

// CenterOffset returns (input - target) / 2, failing when the difference is
// odd on any axis.
func CenterOffset(input, target models.Shape) ([3]int, error) {
	d := input.Sub(target)
	var off [3]int
	for a := 0; a < 3; a++ {
		if d[a]%2 != 0 {
			return off, errors.Wrapf(models.ErrConfiguration,
				"%s is not centerable within %s", target, input)
		}
		off[a] = d[a] / 2
	}
	return off, nil
}

// BuildTransform samples a random center and random distortions and returns
// the forward matrix mapping source coordinates onto the destination patch.
// The sampled center keeps the patch, and the target patch when given, inside
// their sources.
func BuildTransform(inputShape, patchShape models.Shape, opts Options, rng *rand.Rand, target *TargetGeometry) (Matrix, error) {
	if !inputShape.Valid() || !patchShape.Valid() {
		return Matrix{}, errors.Wrapf(models.ErrConfiguration,
			"non-positive shape: input %s, patch %s", inputShape, patchShape)
	}
	if opts.AnisoFactor <= 0 {
		return Matrix{}, errors.Wrapf(models.ErrConfiguration, "aniso factor %v must be positive", opts.AnisoFactor)
	}

	var destCenter, remainder, lo, hi [3]float64
	for a := 0; a < 3; a++ {
		destCenter[a] = float64(patchShape[a]) / 2
		remainder[a] = float64(patchShape[a]%2) / 2
		lo[a] = destCenter[a]
		hi[a] = float64(inputShape[a]) - destCenter[a]
	}

	if target != nil {
		if !target.SourceShape.Valid() || !target.PatchShape.Valid() {
			return Matrix{}, errors.Wrapf(models.ErrConfiguration,
				"non-positive target shape: source %s, patch %s", target.SourceShape, target.PatchShape)
		}
		if _, err := CenterOffset(patchShape, target.PatchShape); err != nil {
			return Matrix{}, errors.Wrap(err, "target patch")
		}
		off, err := CenterOffset(inputShape, target.SourceShape)
		if err != nil {
			return Matrix{}, errors.Wrap(err, "target source")
		}
		for a := 0; a < 3; a++ {
			tc := float64(target.PatchShape[a]) / 2
			lo[a] = math.Max(lo[a], tc+float64(off[a]))
			hi[a] = math.Min(hi[a], float64(target.SourceShape[a])-tc+float64(off[a]))
		}
	}

	var center [3]float64
	for a := 0; a < 3; a++ {
		l, h := int(math.Floor(lo[a])), int(math.Floor(hi[a]))
		if l >= h {
			return Matrix{}, errors.Wrapf(models.ErrConfiguration,
				"patch %s does not fit source %s on axis %d", patchShape, inputShape, a)
		}
		center[a] = float64(l+rng.Intn(h-l)) + remainder[a]
	}

	flip := RandomFlip(opts.NoXFlip, rng)
	swap := Identity()
	if !opts.NoXFlip {
		swap = RandomAxisSwap(opts.LockZ, rng)
	}
	rot, warp := Identity(), Identity()
	if math.Abs(opts.WarpAmount) > 1e-8 {
		rot = RandomRotation(opts.LockZ, opts.WarpAmount, rng)
		warp = RandomWarp(opts.LockZ, opts.Perspective, opts.WarpAmount, rng)
	}

	destScale := Identity()
	if opts.SampleAniso {
		destScale = Scale(1/opts.AnisoFactor, 1, 1)
	}

	return Chain(
		Translate(destCenter[0], destCenter[1], destCenter[2]),
		destScale,
		rot,
		warp,
		flip,
		swap,
		Scale(opts.AnisoFactor, 1, 1),
		Translate(-center[0], -center[1], -center[2]),
	), nil
}
