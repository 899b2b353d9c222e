package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAlloc struct {
	purpose Purpose
	res     Resolution
	id      int
}

type fakeDevice struct {
	mu        sync.Mutex
	allocs    int
	released  int
	begins    int
	ends      int
	drains    int
	reinits   int
	failAlloc Purpose
}

func (d *fakeDevice) Allocate(desc ResourceDesc, res Resolution) (any, func(), error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if desc.Purpose == d.failAlloc {
		return nil, nil, errors.New("out of memory")
	}
	d.allocs++
	a := &fakeAlloc{purpose: desc.Purpose, res: res, id: d.allocs}
	return a, func() {
		d.mu.Lock()
		d.released++
		d.mu.Unlock()
	}, nil
}

func (d *fakeDevice) BeginFrame(context.Context) error { d.begins++; return nil }
func (d *fakeDevice) EndFrame(context.Context) error   { d.ends++; return nil }
func (d *fakeDevice) Drain() error                     { d.drains++; return nil }
func (d *fakeDevice) Reinitialize() error              { d.reinits++; return nil }

type fakePass struct {
	name   string
	reads  []Purpose
	writes []Purpose
	active func(*FrameContext) bool
	err    error
	log    *[]string
	seen   map[Purpose]Resolution
}

func (p *fakePass) Name() string      { return p.name }
func (p *fakePass) Reads() []Purpose  { return p.reads }
func (p *fakePass) Writes() []Purpose { return p.writes }
func (p *fakePass) Execute(_ context.Context, fc *FrameContext) error {
	if p.err != nil {
		return p.err
	}
	*p.log = append(*p.log, p.name)
	if p.seen != nil {
		for _, w := range append(append([]Purpose{}, p.reads...), p.writes...) {
			a, _, err := Lookup[*fakeAlloc](fc.Registry, w)
			if err != nil {
				return err
			}
			p.seen[w] = a.res
		}
	}
	return nil
}

type conditionalPass struct{ *fakePass }

func (c conditionalPass) Active(fc *FrameContext) bool { return c.active(fc) }

const (
	gbuf  Purpose = "gbuffer"
	ao    Purpose = "ao"
	hdr   Purpose = "hdr"
	vol   Purpose = "voxel"
	final Purpose = "final"
)

func declare(t *testing.T, o Orchestrator) {
	t.Helper()
	require.NoError(t, o.AddResource(ResourceDesc{Purpose: gbuf, ScalesWithOutput: true}))
	require.NoError(t, o.AddResource(ResourceDesc{Purpose: ao, ScalesWithOutput: true}))
	require.NoError(t, o.AddResource(ResourceDesc{Purpose: hdr, ScalesWithOutput: true}))
	require.NoError(t, o.AddResource(ResourceDesc{Purpose: final, ScalesWithOutput: true}))
	require.NoError(t, o.AddResource(ResourceDesc{Purpose: vol, Kind: Persistent, Size: Resolution{Width: 8}}))
}

func pipeline(log *[]string) []*fakePass {
	// declared out of order on purpose
	return []*fakePass{
		{name: "tonemap", reads: []Purpose{hdr}, writes: []Purpose{final}, log: log},
		{name: "lighting", reads: []Purpose{gbuf, ao, vol}, writes: []Purpose{hdr}, log: log},
		{name: "ssao", reads: []Purpose{gbuf}, writes: []Purpose{ao}, log: log},
		{name: "voxel", reads: []Purpose{gbuf}, writes: []Purpose{vol}, log: log},
		{name: "geometry", writes: []Purpose{gbuf}, log: log},
	}
}

func build(t *testing.T, dev Device, passes []*fakePass) Orchestrator {
	t.Helper()
	o := NewOrchestrator(dev, 64, 32)
	declare(t, o)
	for _, p := range passes {
		if p.active != nil {
			require.NoError(t, o.AddPass(conditionalPass{p}))
		} else {
			require.NoError(t, o.AddPass(p))
		}
	}
	require.NoError(t, o.Compile())
	return o
}

func TestCompileOrdersByDependencies(t *testing.T) {
	var log []string
	o := build(t, &fakeDevice{}, pipeline(&log))
	assert.Equal(t, []string{"geometry", "ssao", "voxel", "lighting", "tonemap"}, o.Order())
}

func TestCompileErrors(t *testing.T) {
	var log []string
	cases := []struct {
		name   string
		passes []*fakePass
		want   error
	}{
		{"cycle", []*fakePass{
			{name: "a", reads: []Purpose{ao}, writes: []Purpose{gbuf}, log: &log},
			{name: "b", reads: []Purpose{gbuf}, writes: []Purpose{ao}, log: &log},
		}, ErrCycle},
		{"two writers", []*fakePass{
			{name: "a", writes: []Purpose{gbuf}, log: &log},
			{name: "b", writes: []Purpose{gbuf}, log: &log},
		}, ErrMultipleWriters},
		{"missing producer", []*fakePass{
			{name: "a", reads: []Purpose{ao}, writes: []Purpose{hdr}, log: &log},
		}, ErrMissingProducer},
		{"unknown resource", []*fakePass{
			{name: "a", writes: []Purpose{"nope"}, log: &log},
		}, ErrUnknownResource},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o := NewOrchestrator(&fakeDevice{}, 4, 4)
			declare(t, o)
			for _, p := range tc.passes {
				require.NoError(t, o.AddPass(p))
			}
			assert.ErrorIs(t, o.Compile(), tc.want)
		})
	}
}

func TestPersistentReadNeedsNoProducer(t *testing.T) {
	var log []string
	o := NewOrchestrator(&fakeDevice{}, 4, 4)
	declare(t, o)
	require.NoError(t, o.AddPass(&fakePass{name: "geometry", writes: []Purpose{gbuf}, log: &log}))
	require.NoError(t, o.AddPass(&fakePass{name: "lighting", reads: []Purpose{gbuf, vol}, writes: []Purpose{hdr}, log: &log}))
	assert.NoError(t, o.Compile())
}

func TestFrameRunsPassesOnceAndSubmitsOnce(t *testing.T) {
	var log []string
	dev := &fakeDevice{}
	o := build(t, dev, pipeline(&log))

	assert.ErrorIs(t, NewOrchestrator(dev, 1, 1).Frame(context.Background(), nil), ErrNotCompiled)

	require.NoError(t, o.Frame(context.Background(), nil))
	assert.Equal(t, []string{"geometry", "ssao", "voxel", "lighting", "tonemap"}, log)
	assert.Equal(t, 1, dev.begins)
	assert.Equal(t, 1, dev.ends)
	assert.Equal(t, 5, dev.allocs)

	require.NoError(t, o.Frame(context.Background(), nil))
	assert.Equal(t, 5, dev.allocs, "resources persist across frames")
	assert.Equal(t, uint64(2), o.Stats().Frame)
	assert.Len(t, o.Stats().Passes, 5)
}

func TestResizeReallocatesScaledResources(t *testing.T) {
	var log []string
	passes := pipeline(&log)
	seen := map[Purpose]Resolution{}
	passes[0].seen = seen
	passes[1].seen = seen
	dev := &fakeDevice{}
	o := build(t, dev, passes)

	require.NoError(t, o.Frame(context.Background(), nil))
	_, oldGB, err := Lookup[*fakeAlloc](o.Registry(), gbuf)
	require.NoError(t, err)
	_, oldVol, err := Lookup[*fakeAlloc](o.Registry(), vol)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Resize(100+i, 50)
		}()
	}
	wg.Wait()
	o.Resize(128, 72)

	require.NoError(t, o.Frame(context.Background(), nil))
	assert.Equal(t, 1, dev.drains, "in-flight work drains before resources are freed")
	assert.Equal(t, 4, dev.released)
	assert.Equal(t, Resolution{128, 72}, o.Resolution())
	assert.Equal(t, Resolution{128, 72}, seen[gbuf])
	assert.Equal(t, Resolution{128, 72}, seen[hdr])
	assert.Equal(t, Resolution{Width: 8}, seen[vol])

	_, err = Resolve(o.Registry(), oldGB)
	assert.ErrorIs(t, err, ErrStaleHandle)
	_, err = Resolve(o.Registry(), oldVol)
	assert.NoError(t, err, "fixed-size resources survive a resize")
	assert.Equal(t, uint64(1), o.Stats().Resizes)
}

func TestResizeToSameSizeIsNoop(t *testing.T) {
	var log []string
	dev := &fakeDevice{}
	o := build(t, dev, pipeline(&log))
	require.NoError(t, o.Frame(context.Background(), nil))
	o.Resize(64, 32)
	require.NoError(t, o.Frame(context.Background(), nil))
	assert.Equal(t, 0, dev.drains)
	assert.Equal(t, 5, dev.allocs)
}

func TestDeviceLossReinitializes(t *testing.T) {
	var log []string
	passes := pipeline(&log)
	dev := &fakeDevice{}
	o := build(t, dev, passes)
	require.NoError(t, o.Frame(context.Background(), nil))
	_, before, _ := Lookup[*fakeAlloc](o.Registry(), vol)

	passes[1].err = fmt.Errorf("submit: %w", ErrDeviceLost)
	err := o.Frame(context.Background(), nil)
	require.ErrorIs(t, err, ErrDeviceLost)
	assert.Equal(t, 1, dev.reinits)
	assert.Equal(t, 10, dev.allocs, "every resource is recreated")
	assert.Equal(t, 1, dev.ends, "the lost frame is never submitted")
	_, err = Resolve(o.Registry(), before)
	assert.ErrorIs(t, err, ErrStaleHandle)

	passes[1].err = nil
	log = log[:0]
	require.NoError(t, o.Frame(context.Background(), nil))
	assert.Len(t, log, 5)
	assert.Equal(t, uint64(1), o.Stats().DeviceLosses)
}

func TestAllocationFailureIsSurfaced(t *testing.T) {
	var log []string
	dev := &fakeDevice{failAlloc: ao}
	o := build(t, dev, pipeline(&log))

	err := o.Frame(context.Background(), nil)
	require.ErrorIs(t, err, ErrAllocation)
	assert.Contains(t, err.Error(), "out of memory")
	assert.Empty(t, log)
	assert.Equal(t, 0, dev.begins)
}

func TestConditionalPassSkipped(t *testing.T) {
	var log []string
	passes := pipeline(&log)
	passes[3].active = func(fc *FrameContext) bool { return fc.Index == 1 }
	o := build(t, &fakeDevice{}, passes)

	require.NoError(t, o.Frame(context.Background(), nil))
	assert.Contains(t, log, "voxel")
	log = log[:0]
	require.NoError(t, o.Frame(context.Background(), nil))
	assert.NotContains(t, log, "voxel")
	assert.Contains(t, log, "lighting", "persistent reads do not need a producer this frame")

	var skipped []string
	for _, p := range o.Stats().Passes {
		if p.Skipped {
			skipped = append(skipped, p.Name)
		}
	}
	assert.Equal(t, []string{"voxel"}, skipped)
}

func TestBarrierRejectsUnwrittenTransient(t *testing.T) {
	var log []string
	passes := pipeline(&log)
	passes[2].active = func(*FrameContext) bool { return false } // ssao never writes ao
	o := build(t, &fakeDevice{}, passes)

	err := o.Frame(context.Background(), nil)
	require.ErrorIs(t, err, ErrBarrier)
	assert.NotContains(t, log, "lighting")
}

func TestRegistryHandles(t *testing.T) {
	r := NewRegistry()
	released := 0
	desc := ResourceDesc{Purpose: ao, ScalesWithOutput: true}
	h := Register(r, desc, Resolution{4, 4}, "first", func() { released++ })

	v, err := Resolve(r, h)
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	_, err = Resolve(r, Handle[string]{})
	assert.ErrorIs(t, err, ErrStaleHandle)

	_, _, err = Lookup[int](r, ao)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, _, err = Lookup[string](r, hdr)
	assert.ErrorIs(t, err, ErrUnknownResource)

	h2 := Register(r, desc, Resolution{4, 4}, "second", nil)
	assert.Equal(t, 1, released, "re-registering releases the old allocation")
	_, err = Resolve(r, h)
	assert.ErrorIs(t, err, ErrStaleHandle, "same key, new generation")
	v, _ = Resolve(r, h2)
	assert.Equal(t, "second", v)

	Register(r, ResourceDesc{Purpose: vol, Kind: Persistent}, Resolution{Width: 8}, 1, func() { released++ })
	assert.Equal(t, 1, r.InvalidateScaled())
	assert.True(t, r.Has(vol))
	assert.False(t, r.Has(ao))
	r.ReleaseAll()
	assert.Equal(t, 2, released)
	assert.Equal(t, 0, r.Len())
}
