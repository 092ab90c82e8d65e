// Package source provides volumetric sources for the warp engine: an
// in-memory volume, a raw on-disk volume and a read-counting wrapper.
package source

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"patchwarp/internal/models"
	"patchwarp/pkg/warp"
)

// Memory serves regions of a volume held in memory. The volume is never
// modified.
type Memory struct {
	vol *models.Volume
}

// NewMemory wraps vol
func NewMemory(vol *models.Volume) *Memory {
	return &Memory{vol: vol}
}

// Shape implements warp.Source
func (m *Memory) Shape() (int, models.Shape) {
	return m.vol.Channels, m.vol.Shape
}

// ReadRegion implements warp.Source
func (m *Memory) ReadRegion(b models.Box) (*models.Volume, error) {
	out, err := m.vol.Region(b)
	if err != nil {
		return nil, errors.Wrap(err, "memory source")
	}
	return out, nil
}

// Counting wraps a source and counts ReadRegion calls
type Counting struct {
	warp.Source
	reads atomic.Int64
}

// NewCounting wraps src
func NewCounting(src warp.Source) *Counting {
	return &Counting{Source: src}
}

// ReadRegion implements warp.Source
func (c *Counting) ReadRegion(b models.Box) (*models.Volume, error) {
	c.reads.Add(1)
	return c.Source.ReadRegion(b)
}

// Reads returns the number of ReadRegion calls so far
func (c *Counting) Reads() int64 {
	return c.reads.Load()
}
