package gpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/sdfcull"
	"github.com/gekko3d/sdfcull/cullrt/rt/binding"
	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/framegraph"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/gekko3d/sdfcull/cullrt/rt/ring"
	"github.com/gekko3d/sdfcull/cullrt/rt/shaders"
	"github.com/gekko3d/sdfcull/cullrt/rt/visibility"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// ShaderWorkGroupSize is the @workgroup_size of cull.wgsl.
	ShaderWorkGroupSize = 64

	PassReadback = "readback-args"
	ResTarget    = "color-target"
	ResIndices   = "indices"
)

// frame is the payload of one ring slot.
type frame struct {
	uniforms  *wgpu.Buffer
	cullGroup *wgpu.BindGroup
	drawGroup *wgpu.BindGroup
	fence     *ReadbackFence
	plan      *framegraph.Plan
	encoder   *wgpu.CommandEncoder
	viewProj  mgl32.Mat4
}

// Backend runs the culling pipeline on a WebGPU device: Hi-Z build, culling
// compute and the indirect draw of the survivors, recorded into one command
// buffer per frame.
type Backend struct {
	cfg      sdfcull.Config
	logger   sdfcull.Logger
	profiler *sdfcull.Profiler

	device *wgpu.Device
	queue  *wgpu.Queue
	format wgpu.TextureFormat
	count  int

	bindings *binding.Table
	hiz      *HiZ

	instances    *wgpu.Buffer
	entries      *wgpu.Buffer
	args         *wgpu.Buffer
	argsTemplate *wgpu.Buffer
	indices      *wgpu.Buffer

	depthTexture *wgpu.Texture
	depthView    *wgpu.TextureView

	cullBGL         *wgpu.BindGroupLayout
	cullPipeline    *wgpu.ComputePipeline
	drawBGL         *wgpu.BindGroupLayout
	drawPipeline    *wgpu.RenderPipeline
	prepassPipeline *wgpu.RenderPipeline

	frames []*frame
	ring   *ring.Ring[*frame]

	mu     sync.Mutex
	closed bool
}

type Option func(*Backend)

func WithLogger(l sdfcull.Logger) Option { return func(b *Backend) { b.logger = l } }

func WithProfiler(p *sdfcull.Profiler) Option { return func(b *Backend) { b.profiler = p } }

// NewBackend uploads the instance store and builds every pipeline. format is
// the color format of the targets later passed to RenderFrame.
func NewBackend(device *wgpu.Device, format wgpu.TextureFormat, store *core.InstanceStore, cfg sdfcull.Config, opts ...Option) (*Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.WorkGroupSize != ShaderWorkGroupSize {
		return nil, fmt.Errorf("%w: work group size %d, cull shader is compiled for %d", sdfcull.ErrInvalidConfig, cfg.WorkGroupSize, ShaderWorkGroupSize)
	}
	if cfg.ClipDepthRange != core.ClipZeroToOne {
		return nil, fmt.Errorf("%w: WebGPU clip space uses %s depth", sdfcull.ErrInvalidConfig, core.ClipZeroToOne)
	}
	if store.Len() == 0 {
		return nil, fmt.Errorf("%w: empty instance store", core.ErrResourceCreation)
	}

	b := &Backend{
		cfg:    cfg,
		device: device,
		queue:  device.GetQueue(),
		format: format,
		count:  store.Len(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = sdfcull.NewNopLogger()
	}
	b.logger = sdfcull.WithComponent(b.logger, "gpu")
	if b.profiler == nil {
		b.profiler = sdfcull.NewProfiler()
	}

	layout, err := pyramid.NewLayout(cfg.ViewportWidth, cfg.ViewportHeight, cfg.PyramidBaseDimension, cfg.PyramidLevelCount)
	if err != nil {
		return nil, err
	}
	if err := b.setup(store, layout); err != nil {
		b.Release()
		return nil, fmt.Errorf("%w: %w", core.ErrResourceCreation, err)
	}

	b.ring, err = ring.New(cfg.FrameRingDepth, cfg.FenceTimeout, func(i int) (*frame, ring.Fence, error) {
		return b.frames[i], b.frames[i].fence, nil
	})
	if err != nil {
		b.Release()
		return nil, err
	}

	b.logger.Infof("%d instances, pyramid %s, %s, ring depth %d",
		b.count, layout, cfg.PyramidSource, cfg.FrameRingDepth)
	return b, nil
}

func (b *Backend) setup(store *core.InstanceStore, layout pyramid.Layout) error {
	var err error
	if b.hiz, err = NewHiZ(b.device, layout, b.cfg.DepthConvention); err != nil {
		return err
	}

	instanceData := EncodeInstances(store)
	if b.instances, err = b.buffer("Instances", uint64(len(instanceData)), wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	b.queue.WriteBuffer(b.instances, 0, instanceData)

	if b.entries, err = b.buffer("Visible Entries", uint64(b.count*EntryStride), wgpu.BufferUsageStorage); err != nil {
		return err
	}

	argsUsage := wgpu.BufferUsageStorage | wgpu.BufferUsageIndirect | wgpu.BufferUsageCopyDst | wgpu.BufferUsageCopySrc
	if b.args, err = b.buffer("Draw Args", visibility.DrawIndexedIndirectSize, argsUsage); err != nil {
		return err
	}
	template := visibility.DrawIndexedIndirect{IndexCount: uint32(len(BoxIndices))}.Marshal()
	if b.argsTemplate, err = b.buffer("Draw Args Template", visibility.DrawIndexedIndirectSize, wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	b.queue.WriteBuffer(b.argsTemplate, 0, template)
	b.queue.WriteBuffer(b.args, 0, template)

	indexData := EncodeIndices(BoxIndices[:])
	if b.indices, err = b.buffer("Box Indices", uint64(len(indexData)), wgpu.BufferUsageIndex|wgpu.BufferUsageCopyDst); err != nil {
		return err
	}
	b.queue.WriteBuffer(b.indices, 0, indexData)

	if err := b.createDepth(); err != nil {
		return err
	}
	if err := b.hiz.SetSource(b.depthView); err != nil {
		return err
	}
	if err := b.createPipelines(); err != nil {
		return err
	}

	b.bindings = binding.NewTable()
	for _, r := range []struct {
		name string
		kind binding.Kind
		v    any
	}{
		{sdfcull.ResInstances, binding.KindBuffer, b.instances},
		{sdfcull.ResEntries, binding.KindBuffer, b.entries},
		{sdfcull.ResDrawArgs, binding.KindBuffer, b.args},
		{sdfcull.ResPyramid, binding.KindImage, b.hiz.FullView},
		{sdfcull.ResDepth, binding.KindImage, b.depthView},
		{ResIndices, binding.KindBuffer, b.indices},
		{ResTarget, binding.KindImage, nil},
	} {
		if _, err := b.bindings.Bind(r.name, r.kind, r.v); err != nil {
			return err
		}
	}

	b.frames = make([]*frame, b.cfg.FrameRingDepth)
	for i := range b.frames {
		f, err := b.newFrame(i)
		if err != nil {
			return err
		}
		b.frames[i] = f
	}
	return nil
}

func (b *Backend) buffer(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return buf, nil
}

func (b *Backend) createDepth() error {
	var err error
	b.depthTexture, err = b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Scene Depth",
		Size:          wgpu.Extent3D{Width: uint32(b.cfg.ViewportWidth), Height: uint32(b.cfg.ViewportHeight), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding,
	})
	if err != nil {
		return err
	}
	b.depthView, err = b.depthTexture.CreateView(nil)
	return err
}

func (b *Backend) createPipelines() error {
	var err error
	b.cullBGL, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Cull BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			bufferEntry(0, wgpu.ShaderStageCompute, wgpu.BufferBindingTypeUniform, CullUniformsSize),
			bufferEntry(1, wgpu.ShaderStageCompute, wgpu.BufferBindingTypeReadOnlyStorage, 0),
			bufferEntry(2, wgpu.ShaderStageCompute, wgpu.BufferBindingTypeStorage, 0),
			bufferEntry(3, wgpu.ShaderStageCompute, wgpu.BufferBindingTypeStorage, visibility.DrawIndexedIndirectSize),
			{
				Binding:    4,
				Visibility: wgpu.ShaderStageCompute,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return err
	}
	if b.cullPipeline, err = computePipeline(b.device, "Cull", shaders.CullWGSL, b.cullBGL); err != nil {
		return err
	}

	b.drawBGL, err = b.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Draw BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			bufferEntry(0, wgpu.ShaderStageVertex, wgpu.BufferBindingTypeUniform, CullUniformsSize),
			bufferEntry(1, wgpu.ShaderStageVertex, wgpu.BufferBindingTypeReadOnlyStorage, 0),
			bufferEntry(2, wgpu.ShaderStageVertex, wgpu.BufferBindingTypeReadOnlyStorage, 0),
		},
	})
	if err != nil {
		return err
	}

	module, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Draw",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.DrawWGSL},
	})
	if err != nil {
		return err
	}
	defer module.Release()

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{b.drawBGL},
	})
	if err != nil {
		return err
	}

	compare := wgpu.CompareFunctionGreater
	if b.cfg.DepthConvention == core.ConventionalZ {
		compare = wgpu.CompareFunctionLess
	}
	depth := &wgpu.DepthStencilState{
		Format:            wgpu.TextureFormatDepth32Float,
		DepthWriteEnabled: true,
		DepthCompare:      compare,
		StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
	}
	primitive := wgpu.PrimitiveState{
		Topology:  wgpu.PrimitiveTopologyTriangleList,
		FrontFace: wgpu.FrontFaceCCW,
		CullMode:  wgpu.CullModeNone,
	}
	multisample := wgpu.MultisampleState{Count: 1, Mask: 0xFFFFFFFF}

	b.drawPipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Draw",
		Layout: layout,
		Vertex: wgpu.VertexState{Module: module, EntryPoint: "vs_main"},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{{
				Format:    b.format,
				WriteMask: wgpu.ColorWriteMaskAll,
			}},
		},
		Primitive:    primitive,
		DepthStencil: depth,
		Multisample:  multisample,
	})
	if err != nil {
		return err
	}

	if b.cfg.PyramidSource == sdfcull.CurrentFrame {
		b.prepassPipeline, err = b.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
			Label:        "Depth Prepass",
			Layout:       layout,
			Vertex:       wgpu.VertexState{Module: module, EntryPoint: "vs_prepass"},
			Primitive:    primitive,
			DepthStencil: depth,
			Multisample:  multisample,
		})
	}
	return err
}

func bufferEntry(binding uint32, stage wgpu.ShaderStage, typ wgpu.BufferBindingType, minSize uint64) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: stage,
		Buffer: wgpu.BufferBindingLayout{
			Type:           typ,
			MinBindingSize: minSize,
		},
	}
}

func (b *Backend) newFrame(i int) (*frame, error) {
	f := &frame{}
	var err error
	if f.uniforms, err = b.buffer(fmt.Sprintf("Cull Uniforms %d", i), CullUniformsSize, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst); err != nil {
		return nil, err
	}
	if _, err := b.bindings.Bind(sdfcull.UniformsResource(i), binding.KindBuffer, f.uniforms); err != nil {
		return nil, err
	}
	if f.fence, err = NewReadbackFence(b.device, fmt.Sprintf("Draw Args Readback %d", i)); err != nil {
		return nil, err
	}

	uniforms, err := binding.Lookup[*wgpu.Buffer](b.bindings, sdfcull.UniformsResource(i))
	if err != nil {
		return nil, err
	}
	f.cullGroup, err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  fmt.Sprintf("Cull %d", i),
		Layout: b.cullBGL,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniforms, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: b.instances, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: b.entries, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: b.args, Size: wgpu.WholeSize},
			{Binding: 4, TextureView: b.hiz.FullView},
		},
	})
	if err != nil {
		return nil, err
	}
	f.drawGroup, err = b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  fmt.Sprintf("Draw %d", i),
		Layout: b.drawBGL,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: uniforms, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: b.instances, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: b.entries, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return nil, err
	}
	if f.plan, err = b.compileFrame(i, f); err != nil {
		return nil, err
	}
	return f, nil
}

// compileFrame lays out one slot's passes. Every Run records into the
// slot's current encoder; the plan's barriers are resolved by the WebGPU
// implementation and only reported here.
func (b *Backend) compileFrame(slot int, f *frame) (*framegraph.Plan, error) {
	uniforms := sdfcull.UniformsResource(slot)
	g := framegraph.New(b.bindings)

	upload := framegraph.Pass{
		Name:   sdfcull.PassUploadUniforms,
		Writes: []string{uniforms},
		Run: func(context.Context) error {
			u := NewCullUniforms(f.viewProj, b.hiz.Layout(), b.cfg.DepthConvention, b.cfg.ClipDepthRange, b.count)
			b.queue.WriteBuffer(f.uniforms, 0, u.Marshal())
			return nil
		},
	}
	clearArgs := framegraph.Pass{
		Name:   sdfcull.PassClearArgs,
		Writes: []string{sdfcull.ResDrawArgs},
		Run: func(context.Context) error {
			f.encoder.CopyBufferToBuffer(b.argsTemplate, 0, b.args, 0, visibility.DrawIndexedIndirectSize)
			return nil
		},
	}
	prepass := framegraph.Pass{
		Name:   sdfcull.PassDepthPrepass,
		Reads:  []string{uniforms, sdfcull.ResInstances, ResIndices},
		Writes: []string{sdfcull.ResDepth},
		Run: func(context.Context) error {
			pass := f.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
				DepthStencilAttachment: b.depthAttachment(),
			})
			pass.SetPipeline(b.prepassPipeline)
			pass.SetBindGroup(0, f.drawGroup, nil)
			pass.SetIndexBuffer(b.indices, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
			pass.DrawIndexed(uint32(len(BoxIndices)), uint32(b.count), 0, 0, 0)
			return pass.End()
		},
	}
	build := framegraph.Pass{
		Name:   sdfcull.PassBuildPyramid,
		Reads:  []string{sdfcull.ResDepth},
		Writes: []string{sdfcull.ResPyramid},
		Run: func(context.Context) error {
			return b.hiz.Encode(f.encoder)
		},
	}
	cull := framegraph.Pass{
		Name:   sdfcull.PassCull,
		Reads:  []string{uniforms, sdfcull.ResInstances, sdfcull.ResPyramid, sdfcull.ResDrawArgs},
		Writes: []string{sdfcull.ResEntries, sdfcull.ResDrawArgs},
		Run: func(context.Context) error {
			pass := f.encoder.BeginComputePass(nil)
			pass.SetPipeline(b.cullPipeline)
			pass.SetBindGroup(0, f.cullGroup, nil)
			pass.DispatchWorkgroups(WorkGroups(uint32(b.count), ShaderWorkGroupSize), 1, 1)
			return pass.End()
		},
	}
	draw := framegraph.Pass{
		Name:   sdfcull.PassDraw,
		Reads:  []string{uniforms, sdfcull.ResDrawArgs, sdfcull.ResEntries, sdfcull.ResInstances, ResIndices},
		Writes: []string{ResTarget},
		Run: func(context.Context) error {
			target, err := binding.Lookup[*wgpu.TextureView](b.bindings, ResTarget)
			if err != nil {
				return err
			}
			depth := b.depthAttachment()
			if b.cfg.PyramidSource == sdfcull.CurrentFrame {
				depth.DepthLoadOp = wgpu.LoadOpLoad
			}
			pass := f.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
				ColorAttachments: []wgpu.RenderPassColorAttachment{{
					View:       target,
					LoadOp:     wgpu.LoadOpClear,
					StoreOp:    wgpu.StoreOpStore,
					ClearValue: wgpu.Color{0.02, 0.02, 0.03, 1},
				}},
				DepthStencilAttachment: depth,
			})
			pass.SetPipeline(b.drawPipeline)
			pass.SetBindGroup(0, f.drawGroup, nil)
			pass.SetIndexBuffer(b.indices, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
			pass.DrawIndexedIndirect(b.args, 0)
			return pass.End()
		},
	}
	readback := framegraph.Pass{
		Name:  PassReadback,
		Reads: []string{sdfcull.ResDrawArgs},
		Run: func(context.Context) error {
			f.encoder.CopyBufferToBuffer(b.args, 0, f.fence.Buffer(), 0, visibility.DrawIndexedIndirectSize)
			return nil
		},
	}

	passes := []framegraph.Pass{upload, clearArgs}
	switch b.cfg.PyramidSource {
	case sdfcull.CurrentFrame:
		passes = append(passes, prepass, build, cull, draw, readback)
	default:
		// The draw leaves this frame's depth behind for the next pyramid.
		draw.Writes = append(draw.Writes, sdfcull.ResDepth)
		passes = append(passes, cull, build, draw, readback)
	}
	for _, p := range passes {
		if err := g.AddPass(p); err != nil {
			return nil, err
		}
	}
	return g.Compile()
}

func (b *Backend) depthAttachment() *wgpu.RenderPassDepthStencilAttachment {
	return &wgpu.RenderPassDepthStencilAttachment{
		View:            b.depthView,
		DepthLoadOp:     wgpu.LoadOpClear,
		DepthStoreOp:    wgpu.StoreOpStore,
		DepthClearValue: b.cfg.DepthConvention.FarthestValue(),
	}
}

func (b *Backend) onBarrier(br framegraph.Barrier) error {
	b.profiler.AddCount("barriers", 1)
	if b.logger.DebugEnabled() {
		b.logger.Debugf("barrier %s", br)
	}
	return nil
}

// RenderFrame records and submits one frame drawing into target. It returns
// the draw arguments of the frame that last used the reused slot; the
// instance count lags submission by the ring depth.
func (b *Backend) RenderFrame(ctx context.Context, target *wgpu.TextureView, viewProj mgl32.Mat4) (visibility.DrawIndexedIndirect, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return visibility.DrawIndexedIndirect{}, sdfcull.ErrClosed
	}

	b.profiler.BeginScope("acquire")
	slot, err := b.ring.Acquire(ctx)
	b.profiler.EndScope("acquire")
	if err != nil {
		if ctx.Err() == nil {
			b.logger.Errorf("frame aborted: %v", err)
		}
		return visibility.DrawIndexedIndirect{}, err
	}
	f := slot.Payload
	retired := f.fence.Args()
	b.profiler.SetCount("visible", int(retired.InstanceCount))

	b.profiler.BeginScope("record")
	cmd, recordErr := b.record(ctx, f, target, viewProj)
	b.profiler.EndScope("record")

	err = b.ring.Submit(slot, func(ring.Fence) error {
		if recordErr != nil {
			return recordErr
		}
		b.queue.Submit(cmd)
		cmd.Release()
		f.fence.Arm()
		return nil
	})
	b.profiler.EndFrame()
	if err != nil {
		b.logger.Errorf("frame %d submit failed: %v", slot.Frame(), err)
		return visibility.DrawIndexedIndirect{}, err
	}
	return retired, nil
}

func (b *Backend) record(ctx context.Context, f *frame, target *wgpu.TextureView, viewProj mgl32.Mat4) (*wgpu.CommandBuffer, error) {
	if err := b.bindings.Rebind(ResTarget, target); err != nil {
		return nil, err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()

	f.encoder = encoder
	f.viewProj = viewProj
	defer func() { f.encoder = nil }()

	if err := f.plan.Execute(ctx, b.onBarrier); err != nil {
		return nil, err
	}
	return encoder.Finish(nil)
}

func (b *Backend) Profiler() *sdfcull.Profiler { return b.profiler }

func (b *Backend) Bindings() *binding.Table { return b.bindings }

func (b *Backend) Flush(ctx context.Context) error { return b.ring.Drain(ctx) }

// Close waits for in-flight frames and releases every GPU object.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	err := b.Flush(context.Background())
	b.Release()
	return err
}

func (b *Backend) Release() {
	for _, f := range b.frames {
		if f == nil {
			continue
		}
		if f.cullGroup != nil {
			f.cullGroup.Release()
		}
		if f.drawGroup != nil {
			f.drawGroup.Release()
		}
		if f.uniforms != nil {
			f.uniforms.Release()
		}
		if f.fence != nil {
			f.fence.Release()
		}
	}
	b.frames = nil
	for _, buf := range []*wgpu.Buffer{b.instances, b.entries, b.args, b.argsTemplate, b.indices} {
		if buf != nil {
			buf.Release()
		}
	}
	if b.depthView != nil {
		b.depthView.Release()
	}
	if b.depthTexture != nil {
		b.depthTexture.Release()
	}
	if b.hiz != nil {
		b.hiz.Release()
	}
}
