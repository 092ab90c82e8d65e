package transform

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"patchwarp/internal/models"
)

func TestCenterOffset(t *testing.T) {
	off, err := CenterOffset(models.Shape{100, 100, 100}, models.Shape{80, 80, 80})
	require.NoError(t, err)
	assert.Equal(t, [3]int{10, 10, 10}, off)

	_, err = CenterOffset(models.Shape{100, 100, 100}, models.Shape{81, 80, 80})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
}

func TestBuildTransformDeterministic(t *testing.T) {
	opts := DefaultOptions()
	opts.LockZ = false
	opts.Perspective = true
	target := &TargetGeometry{SourceShape: models.Shape{80, 80, 80}, PatchShape: models.Shape{16, 32, 32}}

	build := func() Matrix {
		m, err := BuildTransform(models.Shape{100, 100, 100}, models.Shape{20, 40, 40}, opts,
			rand.New(rand.NewSource(42)), target)
		require.NoError(t, err)
		return m
	}
	assert.Equal(t, build(), build())
}

func TestBuildTransformCenter(t *testing.T) {
	input := models.Shape{50, 60, 70}
	patch := models.Shape{10, 20, 20}
	opts := Options{AnisoFactor: 2, SampleAniso: true}
	rng := rand.New(rand.NewSource(5))

	for i := 0; i < 100; i++ {
		m, err := BuildTransform(input, patch, opts, rng, nil)
		require.NoError(t, err)
		inv, err := m.Inverse()
		require.NoError(t, err)

		// The destination center maps back onto the sampled source center.
		c := inv.Apply(Vec{5, 10, 10, 1})
		for a := 0; a < 3; a++ {
			lo, hi := float32(patch[a]/2), float32(input[a]-patch[a]/2)
			assert.GreaterOrEqual(t, c[a]+1e-3, lo)
			assert.Less(t, c[a], hi)
		}
	}
}

func TestBuildTransformOddPatchRemainder(t *testing.T) {
	m, err := BuildTransform(models.Shape{30, 30, 30}, models.Shape{5, 5, 5},
		Options{AnisoFactor: 1}, rand.New(rand.NewSource(9)), nil)
	require.NoError(t, err)
	inv, err := m.Inverse()
	require.NoError(t, err)

	// An odd patch is centered between voxels of the destination grid, so its
	// center lands on x.5 in the source.
	c := inv.Apply(Vec{2.5, 2.5, 2.5, 1})
	for a := 0; a < 3; a++ {
		frac := c[a] - float32(int(c[a]))
		assert.InDelta(t, 0.5, frac, 1e-4)
	}
}

func TestBuildTransformConfigurationErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	opts := DefaultOptions()

	cases := map[string]struct {
		input, patch models.Shape
		opts         Options
		target       *TargetGeometry
	}{
		"patch too large": {
			input: models.Shape{10, 10, 10}, patch: models.Shape{10, 4, 4}, opts: opts,
		},
		"non-positive patch": {
			input: models.Shape{10, 10, 10}, patch: models.Shape{0, 4, 4}, opts: opts,
		},
		"zero aniso": {
			input: models.Shape{10, 10, 10}, patch: models.Shape{4, 4, 4}, opts: Options{},
		},
		"odd target source": {
			input: models.Shape{100, 100, 100}, patch: models.Shape{10, 10, 10}, opts: opts,
			target: &TargetGeometry{SourceShape: models.Shape{81, 80, 80}, PatchShape: models.Shape{10, 10, 10}},
		},
		"odd target patch": {
			input: models.Shape{100, 100, 100}, patch: models.Shape{10, 10, 10}, opts: opts,
			target: &TargetGeometry{SourceShape: models.Shape{80, 80, 80}, PatchShape: models.Shape{9, 10, 10}},
		},
		"target patch too large for target source": {
			input: models.Shape{100, 100, 100}, patch: models.Shape{40, 40, 40}, opts: opts,
			target: &TargetGeometry{SourceShape: models.Shape{20, 20, 20}, PatchShape: models.Shape{30, 30, 30}},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := BuildTransform(tc.input, tc.patch, tc.opts, rng, tc.target)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrConfiguration), "%v", err)
		})
	}
}
