package sdfcull

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gekko3d/sdfcull/cullrt/rt/binding"
	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/device"
	"github.com/gekko3d/sdfcull/cullrt/rt/dispatch"
	"github.com/gekko3d/sdfcull/cullrt/rt/framegraph"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/gekko3d/sdfcull/cullrt/rt/ring"
	"github.com/gekko3d/sdfcull/cullrt/rt/visibility"
	"github.com/go-gl/mathgl/mgl32"
)

// Logical resource names shared by the frame graph and the binding table.
const (
	ResInstances = "instances"
	ResDrawArgs  = "draw-args"
	ResEntries   = "entries"
	ResPyramid   = "pyramid"
	ResDepth     = "depth"
)

func UniformsResource(slot int) string       { return fmt.Sprintf("uniforms.%d", slot) }
func StagedUniformsResource(slot int) string { return fmt.Sprintf("uniforms-staging.%d", slot) }

// Pass names.
const (
	PassUploadUniforms = "upload-uniforms"
	PassClearArgs      = "clear-args"
	PassDepthPrepass   = "depth-prepass"
	PassBuildPyramid   = "build-pyramid"
	PassCull           = "cull"
	PassDraw           = "draw"
)

// FrameUniforms is the per-frame data every pass reads.
type FrameUniforms struct {
	Frame    uint64
	ViewProj mgl32.Mat4
	Clip     core.ClipDepthRange
}

type FrameInput struct {
	ViewProj mgl32.Mat4
}

// FrameStats describes one retired frame. Frame is 0 when the slot had not
// been used before.
type FrameStats struct {
	Frame   uint64
	Cull    visibility.Stats
	Args    visibility.DrawIndexedIndirect
	Elapsed time.Duration
}

// DrawConsumer draws args.InstanceCount instances of the mesh, taking the
// instance index of draw instance i from entries[i]. entries is only valid
// for the duration of the call.
type DrawConsumer interface {
	Draw(ctx context.Context, u FrameUniforms, args visibility.DrawIndexedIndirect, entries []uint32) error
}

// DepthSink renders scene depth into dst. With PreviousFrame it runs after
// the draw and feeds the next frame's pyramid; with CurrentFrame it is the
// depth pre-pass of the frame itself.
type DepthSink interface {
	RenderDepth(ctx context.Context, u FrameUniforms, dst *pyramid.DepthBuffer) error
}

type frameSlot struct {
	// staging is written by the host while recording; uniforms is the device
	// copy made by the upload pass.
	staging  FrameUniforms
	uniforms FrameUniforms
	plan     *framegraph.Plan
	stats    FrameStats
}

type Renderer struct {
	cfg        Config
	logger     Logger
	profiler   *Profiler
	dispatcher dispatch.Dispatcher
	consumer   DrawConsumer
	sink       DepthSink

	store    *core.InstanceStore
	bindings *binding.Table
	culler   *visibility.Culler
	builder  *pyramid.Builder
	pyramid  *pyramid.DepthPyramid
	depth    *pyramid.DepthBuffer
	ring     *ring.Ring[*frameSlot]
	queue    *device.Queue

	mu     sync.Mutex
	closed bool
}

type Option func(*Renderer)

func WithLogger(l Logger) Option { return func(r *Renderer) { r.logger = l } }

func WithProfiler(p *Profiler) Option { return func(r *Renderer) { r.profiler = p } }

func WithDispatcher(d dispatch.Dispatcher) Option { return func(r *Renderer) { r.dispatcher = d } }

// WithDrawConsumer sets the consumer of the culled draw. A consumer that also
// implements DepthSink becomes the depth sink.
func WithDrawConsumer(c DrawConsumer) Option {
	return func(r *Renderer) {
		r.consumer = c
		if s, ok := c.(DepthSink); ok && r.sink == nil {
			r.sink = s
		}
	}
}

func WithDepthSink(s DepthSink) Option { return func(r *Renderer) { r.sink = s } }

func NewRenderer(store *core.InstanceStore, cfg Config, opts ...Option) (*Renderer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Renderer{cfg: cfg, store: store}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = NewNopLogger()
	}
	r.logger = WithComponent(r.logger, "host")
	if r.profiler == nil {
		r.profiler = NewProfiler()
	}
	if r.dispatcher == nil {
		r.dispatcher = dispatch.NewPoolDispatcher(cfg.Workers)
	}

	layout, err := pyramid.NewLayout(cfg.ViewportWidth, cfg.ViewportHeight, cfg.PyramidBaseDimension, cfg.PyramidLevelCount)
	if err != nil {
		return nil, err
	}
	if r.builder, err = pyramid.NewBuilder(layout, cfg.DepthConvention, cfg.PyramidStrategy, r.dispatcher); err != nil {
		return nil, err
	}
	if r.pyramid, err = pyramid.New(layout, cfg.DepthConvention); err != nil {
		return nil, err
	}
	r.depth = pyramid.NewDepthBuffer(cfg.ViewportWidth, cfg.ViewportHeight, cfg.DepthConvention.FarthestValue())

	r.culler, err = visibility.NewCuller(store, cfg.DepthConvention, visibility.Config{
		WorkGroupSize: cfg.WorkGroupSize,
		IndexCount:    cfg.MeshIndexCount,
	}, r.dispatcher)
	if err != nil {
		return nil, err
	}

	if err := r.bindResources(); err != nil {
		return nil, err
	}

	r.ring, err = ring.New(cfg.FrameRingDepth, cfg.FenceTimeout, func(i int) (*frameSlot, ring.Fence, error) {
		fs := &frameSlot{}
		plan, err := r.compileFrame(i, fs)
		if err != nil {
			return nil, nil, err
		}
		fs.plan = plan
		return fs, ring.NewHostFence(true), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrResourceCreation, err)
	}
	r.queue = device.NewQueue(cfg.FrameRingDepth)

	r.logger.Infof("%d instances, pyramid %s (%s), %s, ring depth %d, %d workers",
		store.Len(), layout, cfg.PyramidStrategy, cfg.PyramidSource, cfg.FrameRingDepth, r.dispatcher.Workers())
	return r, nil
}

func (r *Renderer) bindResources() error {
	bind := func(name string, kind binding.Kind, v any) error {
		if _, err := r.bindings.Bind(name, kind, v); err != nil {
			return fmt.Errorf("%w: %w", ErrResourceCreation, err)
		}
		return nil
	}
	r.bindings = binding.NewTable()
	for _, b := range []struct {
		name string
		kind binding.Kind
		v    any
	}{
		{ResInstances, binding.KindBuffer, r.store},
		{ResDrawArgs, binding.KindBuffer, r.culler.Args()},
		{ResEntries, binding.KindBuffer, r.culler},
		{ResPyramid, binding.KindImage, r.pyramid},
		{ResDepth, binding.KindImage, r.depth},
	} {
		if err := bind(b.name, b.kind, b.v); err != nil {
			return err
		}
	}
	for i := 0; i < r.cfg.FrameRingDepth; i++ {
		if err := bind(StagedUniformsResource(i), binding.KindBuffer, i); err != nil {
			return err
		}
		if err := bind(UniformsResource(i), binding.KindBuffer, i); err != nil {
			return err
		}
	}
	return nil
}

// compileFrame builds the frame graph of one ring slot.
func (r *Renderer) compileFrame(slot int, fs *frameSlot) (*framegraph.Plan, error) {
	uniforms := UniformsResource(slot)
	g := framegraph.New(r.bindings)

	passes := []framegraph.Pass{
		{
			Name:   PassUploadUniforms,
			Reads:  []string{StagedUniformsResource(slot)},
			Writes: []string{uniforms},
			Run: func(context.Context) error {
				fs.uniforms = fs.staging
				return nil
			},
		},
		{
			Name:   PassClearArgs,
			Writes: []string{ResDrawArgs},
			Run: func(context.Context) error {
				r.culler.ClearArgs()
				return nil
			},
		},
	}

	depthPass := framegraph.Pass{
		Name:   PassDepthPrepass,
		Reads:  []string{uniforms},
		Writes: []string{ResDepth},
		Run: func(ctx context.Context) error {
			return r.scope(PassDepthPrepass, func() error { return r.renderDepth(ctx, fs) })
		},
	}
	build := framegraph.Pass{
		Name:   PassBuildPyramid,
		Reads:  []string{ResDepth},
		Writes: []string{ResPyramid},
		Run: func(ctx context.Context) error {
			return r.scope(PassBuildPyramid, func() error { return r.builder.Build(ctx, r.depth, r.pyramid) })
		},
	}
	cull := framegraph.Pass{
		Name:   PassCull,
		Reads:  []string{uniforms, ResInstances, ResPyramid, ResDrawArgs},
		Writes: []string{ResEntries, ResDrawArgs},
		Run: func(ctx context.Context) error {
			return r.scope(PassCull, func() error {
				stats, err := r.culler.Cull(ctx, visibility.Params{
					ViewProj: fs.uniforms.ViewProj,
					Clip:     fs.uniforms.Clip,
					Pyramid:  r.pyramid,
				})
				fs.stats.Cull = stats
				return err
			})
		},
	}
	draw := framegraph.Pass{
		Name:  PassDraw,
		Reads: []string{uniforms, ResDrawArgs, ResEntries, ResInstances},
		Run: func(ctx context.Context) error {
			return r.scope(PassDraw, func() error { return r.draw(ctx, fs) })
		},
	}

	switch r.cfg.PyramidSource {
	case CurrentFrame:
		passes = append(passes, depthPass, build, cull, draw)
	default:
		// The draw leaves this frame's depth behind for the next pyramid.
		draw.Writes = []string{ResDepth}
		passes = append(passes, cull, build, draw)
	}

	for _, p := range passes {
		if err := g.AddPass(p); err != nil {
			return nil, err
		}
	}
	return g.Compile()
}

func (r *Renderer) scope(name string, fn func() error) error {
	return r.profiler.Scope(name, fn)
}

func (r *Renderer) draw(ctx context.Context, fs *frameSlot) error {
	args := r.culler.Args().Snapshot()
	entries := r.culler.Entries()
	if uint32(len(entries)) != args.InstanceCount {
		return fmt.Errorf("%w: %d entries for instance count %d", ErrCapacityOverflow, len(entries), args.InstanceCount)
	}
	fs.stats.Args = args
	if r.consumer != nil {
		if err := r.consumer.Draw(ctx, fs.uniforms, args, entries); err != nil {
			return err
		}
	}
	if r.cfg.PyramidSource == PreviousFrame {
		return r.renderDepth(ctx, fs)
	}
	return nil
}

func (r *Renderer) renderDepth(ctx context.Context, fs *frameSlot) error {
	if r.sink == nil {
		return nil
	}
	return r.sink.RenderDepth(ctx, fs.uniforms, r.depth)
}

func (r *Renderer) onBarrier(b framegraph.Barrier) error {
	r.profiler.AddCount("barriers", 1)
	if r.logger.DebugEnabled() {
		r.logger.Debugf("barrier %s", b)
	}
	return nil
}

// RenderFrame records and submits one frame. It first waits for the ring slot
// it reuses and returns the statistics of the frame that last used it, so
// results lag submission by the ring depth. Any error is fatal: the device is
// lost and every later call fails.
func (r *Renderer) RenderFrame(ctx context.Context, in FrameInput) (FrameStats, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return FrameStats{}, ErrClosed
	}

	r.profiler.BeginScope("acquire")
	slot, err := r.ring.Acquire(ctx)
	r.profiler.EndScope("acquire")
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Errorf("frame aborted: %v", err)
		}
		return FrameStats{}, err
	}

	fs := slot.Payload
	retired := fs.stats
	fs.stats = FrameStats{Frame: slot.Frame()}
	fs.staging = FrameUniforms{Frame: slot.Frame(), ViewProj: in.ViewProj, Clip: r.cfg.ClipDepthRange}

	stream := device.CommandFunc(func(ctx context.Context) error {
		start := time.Now()
		err := fs.plan.Execute(ctx, r.onBarrier)
		fs.stats.Elapsed = time.Since(start)
		r.profiler.SetCount("visible", int(fs.stats.Cull.Accepted))
		r.profiler.SetCount("occluded", int(fs.stats.Cull.Occluded))
		r.profiler.SetCount("frustum culled", int(fs.stats.Cull.FrustumRejected))
		r.profiler.EndFrame()
		return err
	})
	if err := r.ring.Submit(slot, func(f ring.Fence) error { return r.queue.Submit(stream, f) }); err != nil {
		r.logger.Errorf("frame %d submit failed: %v", slot.Frame(), err)
		return FrameStats{}, err
	}
	return retired, nil
}

// Flush waits for every submitted frame to retire.
func (r *Renderer) Flush(ctx context.Context) error {
	return r.ring.Drain(ctx)
}

// Close flushes and stops the device queue. After a device loss the queue is
// given at most FenceTimeout to wind down and the loss is returned.
func (r *Renderer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	err := r.Flush(context.Background())
	ctx := context.Background()
	if err != nil {
		// A lost device may never finish the stream it is stuck in.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.FenceTimeout)
		defer cancel()
	}
	if qerr := r.queue.Close(ctx); qerr != nil {
		r.logger.Warnf("abandoning device queue: %v", qerr)
	}
	return err
}

func (r *Renderer) Config() Config { return r.cfg }

func (r *Renderer) Profiler() *Profiler { return r.profiler }

func (r *Renderer) Bindings() *binding.Table { return r.bindings }

// Pyramid returns the depth pyramid. Only read it after Flush.
func (r *Renderer) Pyramid() *pyramid.DepthPyramid { return r.pyramid }

// FrameGraph returns the compiled pass order and barriers of a frame.
func (r *Renderer) FrameGraph() ([]string, []framegraph.Barrier) {
	plan, err := r.compileFrame(0, &frameSlot{})
	if err != nil {
		return nil, nil
	}
	return plan.Order(), plan.Barriers()
}
