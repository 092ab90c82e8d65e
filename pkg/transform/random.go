package transform

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Perspective coefficients are kept tiny; larger values fold the patch.
const (
	warpScale        = 0.1
	perspectiveScale = 0.05
	perspectiveLimit = 3e-3
)

var (
	lockedSwaps = [][3]int{
		{0, 1, 2},
		{0, 2, 1},
	}
	allSwaps = [][3]int{
		{0, 1, 2},
		{0, 2, 1},
		{1, 0, 2},
		{1, 2, 0},
		{2, 0, 1},
		{2, 1, 0},
	}
)

// RandomRotation draws a random rotation scaled by amount. With lockZ only
// the in-plane angle is drawn; otherwise a Z-Y-Z composition is used with the
// polar angle drawn as asin(U) so orientations do not cluster at the poles.
func RandomRotation(lockZ bool, amount float64, rng *rand.Rand) Matrix {
	angle := distuv.Uniform{Min: 0, Max: 2 * math.Pi * amount, Src: rng}
	gamma := angle.Rand()
	if lockZ {
		return RotateZ(gamma)
	}
	phi := angle.Rand()
	theta := math.Asin(rng.Float64()) * amount
	return Chain(RotateZ(gamma), RotateY(-theta), RotateZ(-phi))
}

// RandomFlip mirrors each spatial axis with probability 0.5. noXFlip pins
// the width axis.
func RandomFlip(noXFlip bool, rng *rand.Rand) Matrix {
	coin := distuv.Bernoulli{P: 0.5, Src: rng}
	f := Identity()
	for a := 0; a < 3; a++ {
		if coin.Rand() == 1 {
			f[a][a] = -1
		}
	}
	if noXFlip {
		f[2][2] = 1
	}
	return f
}

// RandomAxisSwap returns a uniformly chosen axis permutation. With lockZ the
// depth axis stays in place and only height and width may be exchanged.
func RandomAxisSwap(lockZ bool, rng *rand.Rand) Matrix {
	swaps := allSwaps
	if lockZ {
		swaps = lockedSwaps
	}
	perm := swaps[rng.Intn(len(swaps))]
	id := Identity()
	s := id
	for row, src := range perm {
		s[row] = id[src]
	}
	return s
}

// RandomWarp returns identity plus a small uniform perturbation of strength
// amount. The bottom row is only perturbed when perspective is set, and then
// clamped to ±3e-3.
func RandomWarp(lockZ, perspective bool, amount float64, rng *rand.Rand) Matrix {
	a := warpScale * amount
	u := distuv.Uniform{Min: -a, Max: a, Src: rng}
	var p [4][4]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			p[i][j] = u.Rand()
		}
	}
	p[3][3] = 0
	if lockZ {
		for k := 0; k < 4; k++ {
			p[0][k] = 0
			p[k][0] = 0
		}
	}
	if !perspective {
		p[3] = [4]float64{}
	}
	for j := 0; j < 3; j++ {
		p[3][j] = clamp(p[3][j]*perspectiveScale, -perspectiveLimit, perspectiveLimit)
	}

	w := Identity()
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			w[i][j] += float32(p[i][j])
		}
	}
	return w
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
