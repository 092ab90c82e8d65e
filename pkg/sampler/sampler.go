// Package sampler draws random warped training patches, retrying transforms
// whose source region falls outside the volume.
package sampler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"

	"patchwarp/internal/models"
	"patchwarp/pkg/transform"
	"patchwarp/pkg/warp"
)

// Params holds the sampling parameters
type Params struct {
	PatchShape models.Shape

	// TargetPatchShape is only used when a target source is given
	TargetPatchShape models.Shape

	Options transform.Options

	// Discrete is the target channel mask; nil marks every channel discrete
	Discrete []bool

	// MaxRetries bounds the attempts per sample
	MaxRetries int

	// NumCores bounds the concurrent samples of Batch
	NumCores int
}

// Sample is one extracted training example
type Sample struct {
	ID        uuid.UUID
	Patch     *warp.Patch
	Transform transform.Matrix
	Attempts  int
	Elapsed   time.Duration
}

// Sampler draws samples from an input source and an optional target source.
// Next is not safe for concurrent use; Batch parallelizes internally.
type Sampler struct {
	params    Params
	input     warp.Source
	target    warp.Source
	extractor *warp.Extractor
	rng       *rand.Rand
	log       *slog.Logger
}

// New creates a sampler. target may be nil.
func New(params Params, input, target warp.Source, extractor *warp.Extractor, rng *rand.Rand, log *slog.Logger) (*Sampler, error) {
	if input == nil || extractor == nil || rng == nil {
		return nil, errors.Wrap(warp.ErrConfiguration, "sampler needs an input source, an extractor and a generator")
	}
	if params.MaxRetries < 1 {
		params.MaxRetries = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sampler{
		params:    params,
		input:     input,
		target:    target,
		extractor: extractor,
		rng:       rng,
		log:       log,
	}, nil
}

// geometry returns the target geometry for BuildTransform
func (s *Sampler) geometry() *transform.TargetGeometry {
	if s.target == nil {
		return nil
	}
	_, sh := s.target.Shape()
	return &transform.TargetGeometry{SourceShape: sh, PatchShape: s.params.TargetPatchShape}
}

// Next draws one sample. Out-of-bounds transforms are redrawn up to
// MaxRetries times; any other failure is returned at once.
func (s *Sampler) Next(ctx context.Context) (*Sample, error) {
	return s.next(ctx, s.rng)
}

func (s *Sampler) next(ctx context.Context, rng *rand.Rand) (*Sample, error) {
	start := time.Now()
	_, inShape := s.input.Shape()
	geom := s.geometry()
	var tgt *warp.Target
	if s.target != nil {
		tgt = &warp.Target{Source: s.target, PatchShape: s.params.TargetPatchShape, Discrete: s.params.Discrete}
	}

	for attempt := 1; attempt <= s.params.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		m, err := transform.BuildTransform(inShape, s.params.PatchShape, s.params.Options, rng, geom)
		if err != nil {
			return nil, err
		}
		patch, err := s.extractor.Extract(s.input, s.params.PatchShape, m, tgt)
		if errors.Is(err, warp.ErrOutOfBounds) {
			s.log.Debug("transform out of bounds, redrawing", "attempt", attempt, "error", err)
			continue
		}
		if err != nil {
			return nil, err
		}
		return &Sample{
			ID:        uuid.New(),
			Patch:     patch,
			Transform: m,
			Attempts:  attempt,
			Elapsed:   time.Since(start),
		}, nil
	}
	return nil, errors.Wrapf(warp.ErrOutOfBounds, "no in-bounds transform after %d attempts", s.params.MaxRetries)
}

// Batch draws n samples concurrently. Each sample gets its own generator
// seeded from the sampler's generator, so a batch is reproducible for a
// given seed regardless of scheduling.
func (s *Sampler) Batch(ctx context.Context, n int) ([]*Sample, error) {
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = s.rng.Uint64()
	}
	workers := s.params.NumCores
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		index  int
		sample *Sample
		err    error
	}
	jobs := make(chan int)
	results := make(chan result, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				smp, err := s.next(ctx, rand.New(rand.NewSource(seeds[i])))
				if err != nil {
					cancel()
				}
				results <- result{index: i, sample: smp, err: err}
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]*Sample, n)
	var firstErr error
	for r := range results {
		if r.err != nil {
			if firstErr == nil || !errors.Is(r.err, context.Canceled) {
				firstErr = errors.Wrapf(r.err, "sample %d", r.index)
			}
			continue
		}
		out[r.index] = r.sample
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
