package voxel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/parallel"
)

// Sample is one lit surface point fed to the scatter stage.
type Sample struct {
	Position mgl32.Vec3
	Color    [3]uint8
}

// Source provides scatter samples by index so they can be split across workers.
type Source interface {
	// Len returns the number of samples.
	//
	// Returns:
	//   - int: sample count
	Len() int

	// At returns sample i.
	//
	// Parameters:
	//   - i: sample index in [0, Len())
	//
	// Returns:
	//   - Sample: the sample
	//   - bool: false when slot i holds no sample (for example a background pixel)
	At(i int) (Sample, bool)
}

// Samples is a Source backed by a slice.
type Samples []Sample

func (s Samples) Len() int                { return len(s) }
func (s Samples) At(i int) (Sample, bool) { return s[i], true }

// Quantize clamps a linear colour to [0, 1] and converts it to 8 bits per channel.
func Quantize(c mgl32.Vec3) [3]uint8 {
	var out [3]uint8
	for i := range 3 {
		out[i] = uint8(mgl32.Clamp(c[i], 0, 1)*255 + 0.5)
	}
	return out
}

type lightmapImpl struct {
	grid    Grid
	acc     *Accumulator
	current atomic.Pointer[Volume]
	version atomic.Uint64
	mu      *sync.Mutex
}

// Lightmap owns the scatter arena and the published Volume. Readers call Load and always see a
// complete volume: a rebuild writes into a fresh Volume and swaps it in only when finished.
type Lightmap interface {
	// Grid returns the grid the lightmap covers.
	//
	// Returns:
	//   - Grid: the grid
	Grid() Grid

	// Load returns the most recently published volume, or nil before the first rebuild.
	//
	// Returns:
	//   - *Volume: the published volume
	Load() *Volume

	// Version returns the number of completed rebuilds.
	//
	// Returns:
	//   - uint64: rebuild count
	Version() uint64

	// Publish swaps v in as the current volume.
	//
	// Parameters:
	//   - v: a finished volume for the same grid
	Publish(v *Volume)

	// Rebuild scatters every sample of src, reduces, downsamples and publishes the result.
	// Concurrent rebuilds are serialized. A cancelled ctx aborts before publishing and leaves
	// the previous volume in place.
	//
	// Parameters:
	//   - ctx: cancellation
	//   - src: lit samples
	//   - pool: worker pool for the scatter, reduce and downsample stages
	//
	// Returns:
	//   - error: ctx.Err() if cancelled
	Rebuild(ctx context.Context, src Source, pool parallel.Pool) error

	// RebuildAsync runs Rebuild on its own goroutine.
	//
	// Returns:
	//   - <-chan error: receives the Rebuild result once, then closes
	RebuildAsync(ctx context.Context, src Source, pool parallel.Pool) <-chan error
}

var _ Lightmap = &lightmapImpl{}

// NewLightmap creates a Lightmap with no published volume.
func NewLightmap(g Grid) Lightmap {
	return &lightmapImpl{
		grid: g,
		acc:  NewAccumulator(g),
		mu:   &sync.Mutex{},
	}
}

func (l *lightmapImpl) Grid() Grid {
	return l.grid
}

func (l *lightmapImpl) Load() *Volume {
	return l.current.Load()
}

func (l *lightmapImpl) Version() uint64 {
	return l.version.Load()
}

func (l *lightmapImpl) Publish(v *Volume) {
	l.current.Store(v)
	l.version.Add(1)
}

func (l *lightmapImpl) Rebuild(ctx context.Context, src Source, pool parallel.Pool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	ScatterAll(l.acc, src, pool)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("voxel rebuild cancelled after scatter: %w", err)
	}

	vol := ReduceParallel(l.acc, pool)
	DownsampleParallel(vol, pool)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("voxel rebuild cancelled before publish: %w", err)
	}

	l.Publish(vol)
	logger.Named("voxel").Debug("lightmap rebuilt",
		zap.Int("samples", src.Len()),
		zap.Uint64("written", l.acc.Written()),
		zap.Uint64("dropped", l.acc.Dropped()),
		zap.Int("mips", vol.Levels()),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

// ScatterAll clears acc and scatters every sample of src into it across the pool.
func ScatterAll(acc *Accumulator, src Source, pool parallel.Pool) {
	pool.For(acc.Grid().Cells(), acc.ClearCells)
	acc.written.Store(0)
	acc.dropped.Store(0)

	pool.For(src.Len(), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if s, ok := src.At(i); ok {
				acc.Scatter(s.Position, s.Color)
			}
		}
	})
}

// ReduceParallel builds level 0 of a new Volume from acc, one band of z-slices per task.
func ReduceParallel(acc *Accumulator, pool parallel.Pool) *Volume {
	vol := NewVolume(acc.Grid())
	pool.For(acc.Grid().Resolution, func(z0, z1 int) {
		vol.ReduceRange(acc, z0, z1)
	})
	return vol
}

// DownsampleParallel builds the mip chain of vol level by level.
func DownsampleParallel(vol *Volume, pool parallel.Pool) {
	for lvl := vol.AddLevel(); lvl != nil; lvl = vol.AddLevel() {
		dst := vol.Levels() - 1
		pool.For(lvl.Size, func(z0, z1 int) {
			vol.DownsampleRange(dst, z0, z1)
		})
	}
}

func (l *lightmapImpl) RebuildAsync(ctx context.Context, src Source, pool parallel.Pool) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- l.Rebuild(ctx, src, pool)
	}()
	return done
}
