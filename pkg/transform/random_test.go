package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func isPermutation(t *testing.T, m Matrix) {
	t.Helper()
	for i := 0; i < 4; i++ {
		ones := 0
		for j := 0; j < 4; j++ {
			switch m[i][j] {
			case 1:
				ones++
			case 0:
			default:
				t.Fatalf("non-binary entry %v in %v", m[i][j], m)
			}
		}
		require.Equal(t, 1, ones, "row %d of %v", i, m)
	}
	assert.Equal(t, float32(1), m[3][3])
}

func TestRandomFlip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	seen := map[float32]bool{}
	for i := 0; i < 200; i++ {
		f := RandomFlip(false, rng)
		for a := 0; a < 3; a++ {
			assert.Contains(t, []float32{-1, 1}, f[a][a])
		}
		assert.Equal(t, float32(1), f[3][3])
		seen[f[2][2]] = true
	}
	assert.Len(t, seen, 2, "width axis should flip sometimes")

	for i := 0; i < 200; i++ {
		f := RandomFlip(true, rng)
		require.Equal(t, float32(1), f[2][2])
	}
}

func TestRandomAxisSwap(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	locked := map[Matrix]bool{}
	for i := 0; i < 200; i++ {
		s := RandomAxisSwap(true, rng)
		isPermutation(t, s)
		require.Equal(t, [4]float32{1, 0, 0, 0}, s[0], "depth must stay in place")
		locked[s] = true
	}
	assert.Len(t, locked, 2)

	all := map[Matrix]bool{}
	for i := 0; i < 600; i++ {
		s := RandomAxisSwap(false, rng)
		isPermutation(t, s)
		all[s] = true
	}
	assert.Len(t, all, 6)
}

func TestRandomWarp(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 100; i++ {
		w := RandomWarp(false, false, 1, rng)
		assert.Equal(t, [4]float32{0, 0, 0, 1}, w[3], "affine warp has no perspective row")
		for r := 0; r < 3; r++ {
			for c := 0; c < 4; c++ {
				id := Identity()
				assert.InDelta(t, id[r][c], w[r][c], 0.1+1e-6)
			}
		}
	}

	for i := 0; i < 100; i++ {
		w := RandomWarp(true, true, 1, rng)
		assert.Equal(t, [4]float32{1, 0, 0, 0}, w[0])
		for r := 0; r < 4; r++ {
			assert.Equal(t, Identity()[r][0], w[r][0])
		}
		assert.Equal(t, float32(1), w[3][3])
		for c := 1; c < 3; c++ {
			assert.LessOrEqual(t, math.Abs(float64(w[3][c])), 3e-3+1e-9)
		}
	}

	perspective := false
	for i := 0; i < 20; i++ {
		if RandomWarp(false, true, 1, rng).HasPerspective() {
			perspective = true
		}
	}
	assert.True(t, perspective)
}

func TestRandomRotation(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for _, lockZ := range []bool{true, false} {
		for i := 0; i < 50; i++ {
			r := RandomRotation(lockZ, 1, rng)
			// Orthonormal: R·Rᵀ = I
			var rt Matrix
			for a := 0; a < 4; a++ {
				for b := 0; b < 4; b++ {
					rt[a][b] = r[b][a]
				}
			}
			require.True(t, r.Mul(rt).Equal(Identity(), 1e-5), "%v", r)
			if lockZ {
				assert.Equal(t, [4]float32{1, 0, 0, 0}, r[0])
			}
		}
	}

	assert.Equal(t, Identity(), RandomRotation(true, 0, rng))
}
