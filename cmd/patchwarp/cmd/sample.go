package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/exp/rand"

	"patchwarp/pkg/sampler"
	"patchwarp/pkg/source"
	"patchwarp/pkg/visualization"
	"patchwarp/pkg/warp"
)

// NewSampleCmd draws warped patches from raw volumes and writes them to disk
func NewSampleCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "extract random warped patches",
		Long:  "Draws random transforms, extracts input (and optional target) patches from raw volumes and writes each sample as raw volumes with YAML headers.",
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, _ := cmd.Flags().GetString("input")
			targetPath, _ := cmd.Flags().GetString("target")
			count, _ := cmd.Flags().GetInt("count")
			if inputPath == "" {
				return fmt.Errorf("input header is required, use --input")
			}
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			if cmd.Flags().Changed("seed") {
				a.cfg.Sampling.Seed, _ = cmd.Flags().GetUint64("seed")
			}
			if cmd.Flags().Changed("out") {
				a.cfg.Output.Dir, _ = cmd.Flags().GetString("out")
			}
			if cmd.Flags().Changed("preview") {
				a.cfg.Output.SavePreviews, _ = cmd.Flags().GetBool("preview")
			}
			return runSample(ctx, a, inputPath, targetPath, count)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("input", "i", "", "YAML header of the input volume")
	pf.StringP("target", "t", "", "YAML header of the target volume (optional)")
	pf.IntP("count", "n", 1, "number of samples to draw")
	pf.Uint64("seed", 0, "random seed (overrides config)")
	pf.StringP("out", "o", "", "output directory (overrides config)")
	pf.Bool("preview", false, "write central slices of each patch as PNG")
	return cmd
}

func runSample(ctx context.Context, a *app, inputPath, targetPath string, count int) error {
	cfg := a.cfg
	patchShape, targetPatchShape, err := cfg.PatchShapes()
	if err != nil {
		return err
	}

	input, err := source.OpenRaw(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer input.Close()

	var target warp.Source
	var discrete []bool
	if targetPath != "" {
		raw, err := source.OpenRaw(targetPath)
		if err != nil {
			return fmt.Errorf("open target: %w", err)
		}
		defer raw.Close()
		target = raw
		channels, _ := raw.Shape()
		if discrete, err = cfg.DiscreteMask(channels); err != nil {
			return err
		}
	}

	extractor, err := warp.NewExtractor(warp.Params{
		Workers:   cfg.Processing.NumCores,
		CacheSize: cfg.Processing.CacheSize,
		Logger:    slog.Default(),
	})
	if err != nil {
		return err
	}
	smp, err := sampler.New(sampler.Params{
		PatchShape:       patchShape,
		TargetPatchShape: targetPatchShape,
		Options:          cfg.Sampling.Warp,
		Discrete:         discrete,
		MaxRetries:       cfg.Sampling.MaxRetries,
		NumCores:         cfg.Processing.NumCores,
	}, input, target, extractor, rand.New(rand.NewSource(cfg.Sampling.Seed)), slog.Default())
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "sampling", "count", count, "patch", patchShape.String(), "seed", cfg.Sampling.Seed)
	samples, err := smp.Batch(ctx, count)
	if err != nil {
		return err
	}
	for _, s := range samples {
		if err := writeSample(cfg.Output.Dir, s, cfg.Output.SavePreviews); err != nil {
			return err
		}
		st := sampler.Describe(s.Patch.Input)
		slog.InfoContext(ctx, "sample",
			"id", s.ID.String(),
			"attempts", s.Attempts,
			"elapsed", s.Elapsed,
			"region", s.Patch.InputRegion.String(),
			"mean", st[0].Mean,
			"std", st[0].Std,
			"clipped", s.Patch.ClippedVoxels,
		)
	}
	return nil
}

func writeSample(dir string, s *sampler.Sample, preview bool) error {
	base := filepath.Join(dir, s.ID.String())
	if err := source.WriteRaw(s.Patch.Input, filepath.Join(base, "input.yaml"), filepath.Join(base, "input.raw")); err != nil {
		return fmt.Errorf("write input patch: %w", err)
	}
	if s.Patch.Target != nil {
		if err := source.WriteRaw(s.Patch.Target, filepath.Join(base, "target.yaml"), filepath.Join(base, "target.raw")); err != nil {
			return fmt.Errorf("write target patch: %w", err)
		}
	}
	if !preview {
		return nil
	}
	v, err := visualization.NewViewer(s.Patch.Input, 0)
	if err != nil {
		return err
	}
	if _, err := v.SavePreview(filepath.Join(base, "preview"), "input"); err != nil {
		return err
	}
	if s.Patch.Target != nil {
		v, err := visualization.NewViewer(s.Patch.Target, 0)
		if err != nil {
			return err
		}
		if _, err := v.SavePreview(filepath.Join(base, "preview"), "target"); err != nil {
			return err
		}
	}
	return nil
}
