package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"patchwarp/internal/models"
	"patchwarp/pkg/sampler"
	"patchwarp/pkg/source"
)

// NewInspectCmd prints the shape and per-channel statistics of a raw volume
func NewInspectCmd(ctx context.Context, a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect HEADER",
		Short: "print shape and statistics of a raw volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := source.OpenRaw(args[0])
			if err != nil {
				return err
			}
			defer src.Close()

			channels, sh := src.Shape()
			vol, err := src.ReadRegion(models.Box{Hi: [3]int(sh)})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Channels: %d\n", channels)
			fmt.Fprintf(out, "Shape (D, H, W): %s\n", sh)
			for c, st := range sampler.Describe(vol) {
				fmt.Fprintf(out, "Channel %d: mean=%.4f std=%.4f min=%.4f max=%.4f\n", c, st.Mean, st.Std, st.Min, st.Max)
			}
			return nil
		},
	}
	return cmd
}

// NewSynthCmd writes synthetic input and label volumes for trying the sampler
func NewSynthCmd(ctx context.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "write a synthetic input volume and a centered label volume",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("out")
			inShape, err := parseShape(cmd, "shape")
			if err != nil {
				return err
			}
			tShape, err := parseShape(cmd, "target-shape")
			if err != nil {
				return err
			}
			classes, _ := cmd.Flags().GetInt("classes")

			if err := source.WriteRaw(source.Pattern(inShape), filepath.Join(out, "input.yaml"), filepath.Join(out, "input.raw")); err != nil {
				return err
			}
			if err := source.WriteRaw(source.Shells(tShape, classes), filepath.Join(out, "target.yaml"), filepath.Join(out, "target.raw")); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s/input.yaml %s and %s/target.yaml %s\n", out, inShape, out, tShape)
			return nil
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringP("out", "o", "synthetic", "output directory")
	pf.String("shape", "64,128,128", "input shape D,H,W")
	pf.String("target-shape", "64,128,128", "target shape D,H,W")
	pf.Int("classes", 3, "number of label classes")
	return cmd
}

func parseShape(cmd *cobra.Command, flag string) (models.Shape, error) {
	raw, _ := cmd.Flags().GetString(flag)
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return models.Shape{}, fmt.Errorf("--%s: want D,H,W, got %q", flag, raw)
	}
	var sh models.Shape
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return models.Shape{}, fmt.Errorf("--%s: %w", flag, err)
		}
		sh[i] = n
	}
	if !sh.Valid() {
		return models.Shape{}, fmt.Errorf("--%s: extents must be positive, got %s", flag, sh)
	}
	return sh, nil
}
