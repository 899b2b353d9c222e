package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
)

// PassTiming records the execution of one pass.
type PassTiming struct {
	Name     string
	Duration time.Duration
	Skipped  bool
}

// FrameStats describes the most recent frame.
type FrameStats struct {
	Frame        uint64
	Resolution   Resolution
	Passes       []PassTiming
	Total        time.Duration
	Resizes      uint64
	DeviceLosses uint64
}

type orchestratorImpl struct {
	mu *sync.Mutex

	device    Device
	registry  *Registry
	log       *zap.Logger
	resources map[Purpose]ResourceDesc
	declared  []Purpose
	passes    []Pass
	order     []Pass
	compiled  bool

	resolution Resolution
	pending    *Resolution
	allocated  bool

	frame uint64
	stats FrameStats
}

// Orchestrator owns the frame graph: it orders passes so every read follows its write, keeps the
// resource registry in step with the output size and submits one command stream per frame.
type Orchestrator interface {
	// AddResource declares a resource.
	//
	// Parameters:
	//   - desc: the declaration
	//
	// Returns:
	//   - error: error if the purpose was already declared or the graph is compiled
	AddResource(desc ResourceDesc) error

	// AddPass appends a pass. Declaration order breaks ties in the execution order.
	//
	// Parameters:
	//   - p: the pass
	//
	// Returns:
	//   - error: error if the name is taken or the graph is compiled
	AddPass(p Pass) error

	// Compile validates the graph and fixes the execution order.
	//
	// Returns:
	//   - error: ErrUnknownResource, ErrMultipleWriters, ErrMissingProducer or ErrCycle
	Compile() error

	// Resize requests a new output size, applied at the start of the next frame. Safe from any goroutine.
	//
	// Parameters:
	//   - width, height: output size in pixels
	Resize(width, height int)

	// Resolution returns the output size of the last frame, or the initial size.
	//
	// Returns:
	//   - Resolution: the size
	Resolution() Resolution

	// Frame runs every active pass once in dependency order and submits the result.
	//
	// Parameters:
	//   - ctx: cancellation
	//   - inputs: immutable per-frame payload handed to passes through FrameContext
	//
	// Returns:
	//   - error: nil on success. A wrapped ErrDeviceLost means the frame was dropped and every
	//     resource has been recreated; a wrapped ErrAllocation is fatal.
	Frame(ctx context.Context, inputs any) error

	// Order returns the compiled pass names in execution order.
	//
	// Returns:
	//   - []string: pass names
	Order() []string

	// Stats returns the statistics of the most recent frame.
	//
	// Returns:
	//   - FrameStats: the statistics
	Stats() FrameStats

	// Registry returns the resource registry.
	//
	// Returns:
	//   - *Registry: the registry
	Registry() *Registry

	// Close drains the device and releases every resource.
	Close()
}

var _ Orchestrator = &orchestratorImpl{}

// NewOrchestrator creates an Orchestrator for a device.
//
// Parameters:
//   - device: allocates resources and submits frames
//   - width, height: initial output size
//   - options: functional options to configure the orchestrator
//
// Returns:
//   - Orchestrator: the new orchestrator
func NewOrchestrator(device Device, width, height int, options ...OrchestratorBuilderOption) Orchestrator {
	o := &orchestratorImpl{
		mu:         &sync.Mutex{},
		device:     device,
		registry:   NewRegistry(),
		log:        logger.Named("graph"),
		resources:  make(map[Purpose]ResourceDesc),
		resolution: Resolution{Width: width, Height: height},
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

func (o *orchestratorImpl) AddResource(desc ResourceDesc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.compiled {
		return errors.New("cannot add resources after compile")
	}
	if _, ok := o.resources[desc.Purpose]; ok {
		return fmt.Errorf("resource %s declared twice", desc.Purpose)
	}
	o.resources[desc.Purpose] = desc
	o.declared = append(o.declared, desc.Purpose)
	return nil
}

func (o *orchestratorImpl) AddPass(p Pass) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.compiled {
		return errors.New("cannot add passes after compile")
	}
	for _, q := range o.passes {
		if q.Name() == p.Name() {
			return fmt.Errorf("pass %s declared twice", p.Name())
		}
	}
	o.passes = append(o.passes, p)
	return nil
}

func (o *orchestratorImpl) Compile() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	writer := make(map[Purpose]int)
	for i, p := range o.passes {
		for _, w := range p.Writes() {
			if _, ok := o.resources[w]; !ok {
				return fmt.Errorf("%w: pass %s writes %s", ErrUnknownResource, p.Name(), w)
			}
			if j, ok := writer[w]; ok {
				return fmt.Errorf("%w: %s is written by %s and %s", ErrMultipleWriters, w, o.passes[j].Name(), p.Name())
			}
			writer[w] = i
		}
	}

	n := len(o.passes)
	edges := make([][]int, n)
	indegree := make([]int, n)
	for i, p := range o.passes {
		for _, r := range p.Reads() {
			desc, ok := o.resources[r]
			if !ok {
				return fmt.Errorf("%w: pass %s reads %s", ErrUnknownResource, p.Name(), r)
			}
			w, ok := writer[r]
			if !ok {
				if desc.Kind == Transient {
					return fmt.Errorf("%w: pass %s reads %s", ErrMissingProducer, p.Name(), r)
				}
				continue
			}
			if w == i {
				continue
			}
			edges[w] = append(edges[w], i)
			indegree[i]++
		}
	}

	// Kahn's algorithm, always taking the earliest declared ready pass
	order := make([]Pass, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		next := -1
		for i := range n {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			var stuck []string
			for i := range n {
				if !done[i] {
					stuck = append(stuck, o.passes[i].Name())
				}
			}
			return fmt.Errorf("%w: %v", ErrCycle, stuck)
		}
		done[next] = true
		order = append(order, o.passes[next])
		for _, j := range edges[next] {
			indegree[j]--
		}
	}

	o.order = order
	o.compiled = true
	o.log.Info("frame graph compiled", zap.Strings("order", passNames(order)), zap.Int("resources", len(o.resources)))
	return nil
}

func (o *orchestratorImpl) Resize(width, height int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = &Resolution{Width: width, Height: height}
}

func (o *orchestratorImpl) Resolution() Resolution {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resolution
}

func (o *orchestratorImpl) Order() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return passNames(o.order)
}

func (o *orchestratorImpl) Stats() FrameStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.stats
	s.Passes = append([]PassTiming(nil), o.stats.Passes...)
	return s
}

func (o *orchestratorImpl) Registry() *Registry {
	return o.registry
}

func (o *orchestratorImpl) Frame(ctx context.Context, inputs any) error {
	o.mu.Lock()
	if !o.compiled {
		o.mu.Unlock()
		return ErrNotCompiled
	}
	pending := o.pending
	o.pending = nil
	o.frame++
	index := o.frame
	o.mu.Unlock()

	if err := o.prepare(pending); err != nil {
		return err
	}

	start := time.Now()
	res := o.Resolution()
	fc := &FrameContext{
		Index:      index,
		Resolution: res,
		Registry:   o.registry,
		Inputs:     inputs,
		written:    make(map[Purpose]bool),
	}

	if err := o.device.BeginFrame(ctx); err != nil {
		return o.fail(err)
	}

	timings := make([]PassTiming, 0, len(o.order))
	for _, p := range o.order {
		if c, ok := p.(Conditional); ok && !c.Active(fc) {
			timings = append(timings, PassTiming{Name: p.Name(), Skipped: true})
			continue
		}
		for _, r := range p.Reads() {
			if o.resources[r].Kind == Transient && !fc.written[r] {
				return o.fail(fmt.Errorf("%w: pass %s reads %s", ErrBarrier, p.Name(), r))
			}
		}
		t0 := time.Now()
		if err := p.Execute(ctx, fc); err != nil {
			return o.fail(fmt.Errorf("pass %s: %w", p.Name(), err))
		}
		for _, w := range p.Writes() {
			fc.written[w] = true
		}
		timings = append(timings, PassTiming{Name: p.Name(), Duration: time.Since(t0)})
	}

	if err := o.device.EndFrame(ctx); err != nil {
		return o.fail(err)
	}

	o.mu.Lock()
	o.stats.Frame = index
	o.stats.Resolution = res
	o.stats.Passes = timings
	o.stats.Total = time.Since(start)
	o.mu.Unlock()
	return nil
}

// prepare applies a pending resize, or performs the first allocation, before any pass runs.
func (o *orchestratorImpl) prepare(pending *Resolution) error {
	o.mu.Lock()
	cur := o.resolution
	allocated := o.allocated
	o.mu.Unlock()

	if pending == nil || *pending == cur {
		if allocated {
			return nil
		}
		return o.allocate(false)
	}

	// work in flight may still reference the old attachments
	if err := o.device.Drain(); err != nil && !errors.Is(err, ErrDeviceLost) {
		return fmt.Errorf("failed to drain before resize: %w", err)
	}
	released := o.registry.InvalidateScaled()

	o.mu.Lock()
	o.resolution = *pending
	o.stats.Resizes++
	o.mu.Unlock()
	o.log.Info("output resized", zap.Stringer("from", cur), zap.Stringer("to", *pending), zap.Int("released", released))
	return o.allocate(allocated)
}

// allocate creates every declared resource that is not live. With onlyScaled set, fixed-size
// resources that already exist are kept, so a resize leaves persistent volumes alone.
func (o *orchestratorImpl) allocate(onlyScaled bool) error {
	o.mu.Lock()
	res := o.resolution
	o.mu.Unlock()

	for _, p := range o.declared {
		desc := o.resources[p]
		if onlyScaled && !desc.ScalesWithOutput && o.registry.Has(p) {
			continue
		}
		size := desc.Size
		if desc.ScalesWithOutput {
			size = res
		}
		value, release, err := o.device.Allocate(desc, size)
		if err != nil {
			return fmt.Errorf("%w: %s at %s: %w", ErrAllocation, p, size, err)
		}
		Register(o.registry, desc, size, value, release)
	}

	o.mu.Lock()
	o.allocated = true
	o.mu.Unlock()
	return nil
}

// fail handles a failed frame. Device loss triggers a full reinitialization before the error is returned.
func (o *orchestratorImpl) fail(err error) error {
	if !errors.Is(err, ErrDeviceLost) {
		return err
	}
	o.mu.Lock()
	o.stats.DeviceLosses++
	o.allocated = false
	o.mu.Unlock()

	o.log.Warn("device lost, reinitializing", zap.Error(err))
	o.registry.ReleaseAll()
	if rerr := o.device.Reinitialize(); rerr != nil {
		return multierr.Append(err, fmt.Errorf("failed to reinitialize device: %w", rerr))
	}
	if aerr := o.allocate(false); aerr != nil {
		return multierr.Append(err, aerr)
	}
	return fmt.Errorf("frame dropped: %w", err)
}

func (o *orchestratorImpl) Close() {
	if err := o.device.Drain(); err != nil {
		o.log.Warn("drain on close failed", zap.Error(err))
	}
	o.registry.ReleaseAll()
	o.mu.Lock()
	o.allocated = false
	o.mu.Unlock()
}

func passNames(passes []Pass) []string {
	names := make([]string, len(passes))
	for i, p := range passes {
		names[i] = p.Name()
	}
	return names
}
