package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/gekko3d/sdfcull/cullrt/rt/shaders"
)

// HiZ owns the depth pyramid texture and the passes that build it from a
// depth attachment.
type HiZ struct {
	device *wgpu.Device
	layout pyramid.Layout

	Texture  *wgpu.Texture
	FullView *wgpu.TextureView
	views    []*wgpu.TextureView

	params *wgpu.Buffer

	seedPipeline   *wgpu.ComputePipeline
	seedBGL        *wgpu.BindGroupLayout
	reducePipeline *wgpu.ComputePipeline
	reduceBGL      *wgpu.BindGroupLayout

	seedGroup    *wgpu.BindGroup
	reduceGroups []*wgpu.BindGroup
}

func NewHiZ(device *wgpu.Device, layout pyramid.Layout, conv core.DepthConvention) (*HiZ, error) {
	h := &HiZ{device: device, layout: layout}
	if err := h.setup(conv); err != nil {
		h.Release()
		return nil, fmt.Errorf("%w: hi-z: %w", core.ErrResourceCreation, err)
	}
	return h, nil
}

func (h *HiZ) Layout() pyramid.Layout { return h.layout }

func (h *HiZ) setup(conv core.DepthConvention) error {
	var err error
	h.Texture, err = h.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Hi-Z Texture",
		Size:          wgpu.Extent3D{Width: uint32(h.layout.BaseWidth), Height: uint32(h.layout.BaseHeight), DepthOrArrayLayers: 1},
		MipLevelCount: uint32(h.layout.Levels),
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatR32Float,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageStorageBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return err
	}

	h.FullView, err = h.Texture.CreateView(&wgpu.TextureViewDescriptor{
		Label:           "Hi-Z Full",
		Format:          wgpu.TextureFormatR32Float,
		Dimension:       wgpu.TextureViewDimension2D,
		BaseMipLevel:    0,
		MipLevelCount:   uint32(h.layout.Levels),
		BaseArrayLayer:  0,
		ArrayLayerCount: 1,
	})
	if err != nil {
		return err
	}

	h.views = make([]*wgpu.TextureView, h.layout.Levels)
	for i := range h.views {
		h.views[i], err = h.Texture.CreateView(&wgpu.TextureViewDescriptor{
			Label:           fmt.Sprintf("Hi-Z Mip %d", i),
			Format:          wgpu.TextureFormatR32Float,
			Dimension:       wgpu.TextureViewDimension2D,
			BaseMipLevel:    uint32(i),
			MipLevelCount:   1,
			BaseArrayLayer:  0,
			ArrayLayerCount: 1,
		})
		if err != nil {
			return err
		}
	}

	h.params, err = h.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Hi-Z Params",
		Size:  HiZParamsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return err
	}
	h.device.GetQueue().WriteBuffer(h.params, 0, EncodeHiZParams(conv))

	h.seedBGL, err = h.bindGroupLayout("Hi-Z Seed BGL", wgpu.TextureSampleTypeDepth)
	if err != nil {
		return err
	}
	h.reduceBGL, err = h.bindGroupLayout("Hi-Z Reduce BGL", wgpu.TextureSampleTypeUnfilterableFloat)
	if err != nil {
		return err
	}

	h.seedPipeline, err = computePipeline(h.device, "Hi-Z Seed", shaders.HiZSeedWGSL, h.seedBGL)
	if err != nil {
		return err
	}
	h.reducePipeline, err = computePipeline(h.device, "Hi-Z Reduce", shaders.HiZReduceWGSL, h.reduceBGL)
	if err != nil {
		return err
	}

	// Level 0 reads an external depth view; levels 1.. only read the chain
	// itself and can be cached.
	h.reduceGroups = make([]*wgpu.BindGroup, h.layout.Levels)
	for i := 1; i < h.layout.Levels; i++ {
		h.reduceGroups[i], err = h.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  fmt.Sprintf("Hi-Z Pass %d", i),
			Layout: h.reduceBGL,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: h.views[i-1]},
				{Binding: 1, TextureView: h.views[i]},
				{Binding: 2, Buffer: h.params, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *HiZ) bindGroupLayout(label string, src wgpu.TextureSampleType) (*wgpu.BindGroupLayout, error) {
	return h.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: label,
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    src,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageCompute,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        wgpu.TextureFormatR32Float,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: HiZParamsSize,
				},
			},
		},
	})
}

// SetSource binds the depth attachment the pyramid is seeded from. It must
// be called again whenever the attachment is recreated.
func (h *HiZ) SetSource(depth *wgpu.TextureView) error {
	if h.seedGroup != nil {
		h.seedGroup.Release()
		h.seedGroup = nil
	}
	bg, err := h.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Hi-Z Pass 0",
		Layout: h.seedBGL,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: depth},
			{Binding: 1, TextureView: h.views[0]},
			{Binding: 2, Buffer: h.params, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: hi-z seed bind group: %w", core.ErrResourceCreation, err)
	}
	h.seedGroup = bg
	return nil
}

// Encode records one compute dispatch per level. Dispatches inside a single
// compute pass are ordered by the implementation's storage-texture barriers.
func (h *HiZ) Encode(encoder *wgpu.CommandEncoder) error {
	if h.seedGroup == nil {
		return fmt.Errorf("hi-z: no depth source bound")
	}
	groups := HiZWorkGroups(h.layout)

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(h.seedPipeline)
	pass.SetBindGroup(0, h.seedGroup, nil)
	pass.DispatchWorkgroups(groups[0][0], groups[0][1], 1)

	pass.SetPipeline(h.reducePipeline)
	for i := 1; i < h.layout.Levels; i++ {
		pass.SetBindGroup(0, h.reduceGroups[i], nil)
		pass.DispatchWorkgroups(groups[i][0], groups[i][1], 1)
	}
	return pass.End()
}

func (h *HiZ) Release() {
	if h.seedGroup != nil {
		h.seedGroup.Release()
	}
	for _, bg := range h.reduceGroups {
		if bg != nil {
			bg.Release()
		}
	}
	for _, v := range h.views {
		if v != nil {
			v.Release()
		}
	}
	if h.FullView != nil {
		h.FullView.Release()
	}
	if h.params != nil {
		h.params.Release()
	}
	if h.Texture != nil {
		h.Texture.Release()
	}
}

func computePipeline(device *wgpu.Device, label, code string, bgls ...*wgpu.BindGroupLayout) (*wgpu.ComputePipeline, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: bgls,
	})
	if err != nil {
		return nil, err
	}
	return device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  label,
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
}
