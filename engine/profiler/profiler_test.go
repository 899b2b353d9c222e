package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/oxy-deferred/engine/graph"
)

func TestTickAveragesPasses(t *testing.T) {
	p := NewProfiler(time.Second)
	start := time.Unix(100, 0)
	p.lastTime = start
	clock := start
	p.now = func() time.Time { return clock }

	frame := func(geom, light time.Duration, voxel bool) graph.FrameStats {
		return graph.FrameStats{
			Total: geom + light,
			Passes: []graph.PassTiming{
				{Name: "geometry", Duration: geom},
				{Name: "voxel_scatter", Duration: time.Millisecond, Skipped: !voxel},
				{Name: "lighting", Duration: light},
			},
		}
	}

	clock = start.Add(400 * time.Millisecond)
	assert.Nil(t, p.Tick(frame(2*time.Millisecond, 4*time.Millisecond, false)))

	clock = start.Add(time.Second)
	rep := p.Tick(frame(4*time.Millisecond, 6*time.Millisecond, false))
	require.NotNil(t, rep)
	assert.InDelta(t, 2, rep.FPS, 1e-9)
	assert.Equal(t, 8*time.Millisecond, rep.FrameAverage)
	require.Len(t, rep.PassAverages, 2, "skipped passes are not reported")
	assert.Equal(t, graph.PassTiming{Name: "geometry", Duration: 3 * time.Millisecond}, rep.PassAverages[0])
	assert.Equal(t, graph.PassTiming{Name: "lighting", Duration: 5 * time.Millisecond}, rep.PassAverages[1])

	clock = start.Add(1500 * time.Millisecond)
	assert.Nil(t, p.Tick(frame(0, 0, true)), "counters restart after a report")
}
