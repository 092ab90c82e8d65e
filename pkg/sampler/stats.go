package sampler

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"patchwarp/internal/models"
)

// ChannelStats summarizes one channel of a patch
type ChannelStats struct {
	Mean, Std float64
	Min, Max  float64
}

// Describe returns per-channel statistics of v
func Describe(v *models.Volume) []ChannelStats {
	out := make([]ChannelStats, v.Channels)
	buf := make([]float64, v.Shape.Voxels())
	for c := range out {
		for i, x := range v.Channel(c) {
			buf[i] = float64(x)
		}
		if len(buf) == 0 {
			continue
		}
		mean, std := stat.MeanStdDev(buf, nil)
		out[c] = ChannelStats{
			Mean: mean,
			Std:  std,
			Min:  floats.Min(buf),
			Max:  floats.Max(buf),
		}
	}
	return out
}
