// Package warp cuts randomly transformed patches out of volumetric sources.
//
// Rather than warping a whole volume, the destination patch grid is mapped
// back through the inverse of the forward transform; only the minimal source
// region those coordinates touch is read and interpolated.
package warp

import (
	"log/slog"
	"sync"

	"github.com/pkg/errors"

	"patchwarp/internal/models"
	"patchwarp/pkg/coords"
	"patchwarp/pkg/interpolation"
	"patchwarp/pkg/transform"
)

// Re-exported failure classes
var (
	ErrConfiguration = models.ErrConfiguration
	ErrOutOfBounds   = models.ErrOutOfBounds
)

// Source is read-only access to a (C, D, H, W) volume
type Source interface {
	// Shape returns the channel count and the spatial extent
	Shape() (int, models.Shape)

	// ReadRegion returns a dense copy of every channel inside b
	ReadRegion(b models.Box) (*models.Volume, error)
}

// Target describes the optional second source extracted alongside the input
type Target struct {
	Source     Source
	PatchShape models.Shape

	// Discrete flags label channels, which use nearest-neighbour lookup and
	// are clipped to the fetched label range. nil marks every channel
	// discrete.
	Discrete []bool
}

// Patch is the result of one extraction. Buffers are owned by the caller.
type Patch struct {
	Input        *models.Volume
	Target       *models.Volume
	InputRegion  models.Box
	TargetRegion models.Box

	// ClippedVoxels counts discrete target values pulled back into the
	// observed label range
	ClippedVoxels int
}

// Params configures an Extractor
type Params struct {
	// Workers bounds the goroutines used per channel; <= 0 uses all CPUs
	Workers int

	// CacheSize bounds the number of shapes whose grids are kept
	CacheSize int

	// Logger receives data consistency warnings; nil uses slog.Default()
	Logger *slog.Logger
}

// Extractor cuts warped patches. It holds only read-only caches and is safe
// for concurrent use.
type Extractor struct {
	params Params
	mapper *coords.Mapper
	log    *slog.Logger
}

// NewExtractor creates an extractor
func NewExtractor(params Params) (*Extractor, error) {
	m, err := coords.NewMapper(params.CacheSize)
	if err != nil {
		return nil, err
	}
	log := params.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{params: params, mapper: m, log: log}, nil
}

var (
	defaultOnce      sync.Once
	defaultExtractor *Extractor
	defaultErr       error
)

// ExtractPatch extracts with a shared default extractor
func ExtractPatch(inp Source, patchShape models.Shape, m transform.Matrix, target *Target) (*Patch, error) {
	defaultOnce.Do(func() {
		defaultExtractor, defaultErr = NewExtractor(Params{})
	})
	if defaultErr != nil {
		return nil, defaultErr
	}
	return defaultExtractor.Extract(inp, patchShape, m, target)
}

// targetPlan is the validated geometry of a target extraction
type targetPlan struct {
	channels int
	offset   [3]int
	pts      []coords.Point
	box      models.Box
	policies []interpolation.Policy
}

// Extract cuts the patch described by the forward matrix m out of inp and,
// when target is non-nil, the aligned target patch. All geometry is checked
// before the first read: a region outside its source yields an error
// matching ErrOutOfBounds and no read is issued.
func (e *Extractor) Extract(inp Source, patchShape models.Shape, m transform.Matrix, target *Target) (*Patch, error) {
	channels, srcShape := inp.Shape()
	if channels < 1 || !srcShape.Valid() {
		return nil, errors.Wrapf(ErrConfiguration,
			"input source must have shape (C, D, H, W) with C >= 1, got C=%d %s", channels, srcShape)
	}
	if !patchShape.Valid() {
		return nil, errors.Wrapf(ErrConfiguration, "patch shape %s must be positive", patchShape)
	}

	mp, err := coords.Invert(m)
	if err != nil {
		return nil, err
	}
	box := coords.CornerBounds(e.mapper.MapCorners(mp, patchShape))
	if err := coords.CheckBounds(box, srcShape, "input"); err != nil {
		return nil, err
	}
	pts := e.mapper.MapDense(mp, patchShape)

	var plan *targetPlan
	if target != nil {
		plan, err = e.planTarget(srcShape, patchShape, pts, target)
		if err != nil {
			return nil, err
		}
	}

	patch := &Patch{InputRegion: box}
	patch.Input, err = e.resample(inp, box, box.Lo, patchShape, channels, pts, nil)
	if err != nil {
		return nil, errors.Wrap(err, "input")
	}
	if plan == nil {
		return patch, nil
	}

	patch.TargetRegion = plan.box
	patch.Target, patch.ClippedVoxels, err = e.resampleTarget(target, plan)
	if err != nil {
		return nil, errors.Wrap(err, "target")
	}
	if patch.ClippedVoxels > 0 {
		e.log.Warn("interpolated target exceeded label range, clipped",
			"voxels", patch.ClippedVoxels, "region", plan.box.String())
	}
	return patch, nil
}

func (e *Extractor) planTarget(srcShape, patchShape models.Shape, pts []coords.Point, t *Target) (*targetPlan, error) {
	channels, tShape := t.Source.Shape()
	if channels < 1 || !tShape.Valid() {
		return nil, errors.Wrapf(ErrConfiguration,
			"target source must have shape (C, D, H, W) with C >= 1, got C=%d %s", channels, tShape)
	}
	if !t.PatchShape.Valid() {
		return nil, errors.Wrapf(ErrConfiguration, "target patch shape %s must be positive", t.PatchShape)
	}
	off, err := transform.CenterOffset(srcShape, tShape)
	if err != nil {
		return nil, errors.Wrap(err, "targets must be centered w.r.t. inputs")
	}
	patchOff, err := transform.CenterOffset(patchShape, t.PatchShape)
	if err != nil {
		return nil, errors.Wrap(err, "target patches must be centered w.r.t. input patches")
	}
	for a := 0; a < 3; a++ {
		if patchOff[a] < 0 {
			return nil, errors.Wrapf(ErrConfiguration,
				"target patch %s larger than input patch %s", t.PatchShape, patchShape)
		}
	}

	policies := make([]interpolation.Policy, channels)
	switch {
	case t.Discrete == nil:
		for c := range policies {
			policies[c] = interpolation.Nearest
		}
	case len(t.Discrete) != channels:
		return nil, errors.Wrapf(ErrConfiguration,
			"discrete mask has %d entries for %d target channels", len(t.Discrete), channels)
	default:
		for c, d := range t.Discrete {
			if d {
				policies[c] = interpolation.Nearest
			}
		}
	}

	tpts := coords.SubGrid(pts, patchShape, patchOff, t.PatchShape)
	box := coords.Bounds(tpts, off)
	if err := coords.CheckBounds(box, tShape, "target"); err != nil {
		return nil, err
	}
	return &targetPlan{
		channels: channels,
		offset:   off,
		pts:      tpts,
		box:      box,
		policies: policies,
	}, nil
}

// resample reads box from src and interpolates every channel at pts. lo is
// the position of box in the coordinate frame of pts.
func (e *Extractor) resample(src Source, box models.Box, lo [3]int, sh models.Shape, channels int,
	pts []coords.Point, policies []interpolation.Policy) (*models.Volume, error) {
	cut, err := readRegion(src, box, channels)
	if err != nil {
		return nil, err
	}
	origin := [3]float32{float32(lo[0]), float32(lo[1]), float32(lo[2])}
	out := models.NewVolume(channels, sh)
	for c := 0; c < channels; c++ {
		policy := interpolation.Linear
		if policies != nil {
			policy = policies[c]
		}
		interpolation.Resample(out.Channel(c), interpolation.CubeOf(cut, c, origin), pts, policy, e.params.Workers)
	}
	return out, nil
}

func (e *Extractor) resampleTarget(t *Target, plan *targetPlan) (*models.Volume, int, error) {
	cut, err := readRegion(t.Source, plan.box, plan.channels)
	if err != nil {
		return nil, 0, err
	}
	maxLabel := interpolation.MaxValue(cut.Data)

	var lo [3]int
	for a := 0; a < 3; a++ {
		lo[a] = plan.box.Lo[a] + plan.offset[a]
	}
	origin := [3]float32{float32(lo[0]), float32(lo[1]), float32(lo[2])}
	out := models.NewVolume(plan.channels, t.PatchShape)
	clipped := 0
	for c, policy := range plan.policies {
		interpolation.Resample(out.Channel(c), interpolation.CubeOf(cut, c, origin), plan.pts, policy, e.params.Workers)
		// Continuous channels keep their interpolated range.
		if policy == interpolation.Nearest {
			clipped += interpolation.ClipLabels(out.Channel(c), maxLabel)
		}
	}
	return out, clipped, nil
}

func readRegion(src Source, box models.Box, channels int) (*models.Volume, error) {
	cut, err := src.ReadRegion(box)
	if err != nil {
		return nil, errors.Wrapf(err, "read region %s", box)
	}
	if cut.Channels != channels || cut.Shape != box.Shape() {
		return nil, errors.Errorf("read region %s returned C=%d %s, want C=%d %s",
			box, cut.Channels, cut.Shape, channels, box.Shape())
	}
	return cut, nil
}
