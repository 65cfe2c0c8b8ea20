package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/sdfcull"
	"github.com/gekko3d/sdfcull/cullrt/rt/core"
	"github.com/gekko3d/sdfcull/cullrt/rt/gpu"
	"github.com/gekko3d/sdfcull/cullrt/rt/pyramid"
	"github.com/go-gl/glfw/v3.3/glfw"
)

const (
	cloudRadius    = 8000
	instanceRadius = 10
	cloudSeed      = 1
)

func init() {
	runtime.LockOSThread()
}

func main() {
	headless := flag.Bool("headless", false, "Run the host pipeline without a window")
	instances := flag.Int("instances", 1024*1024, "Number of instances in the cloud")
	frames := flag.Int("frames", 120, "Frames to render in headless mode")
	dumpPyramid := flag.String("dump-pyramid", "", "Write the final depth pyramid as a PNG atlas (headless)")
	configPath := flag.String("config", "", "YAML config file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *debug {
		cfg.Debug = true
	}
	logger := sdfcull.NewDefaultLogger("sdfcull", cfg.Debug)

	store := core.NewRandomCloud(*instances, cloudRadius, instanceRadius, cloudSeed)
	if *headless {
		err = runHeadless(store, cfg, logger, *frames, *dumpPyramid)
	} else {
		err = runViewer(store, cfg, logger)
	}
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (sdfcull.Config, error) {
	cfg := sdfcull.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = sdfcull.LoadConfigFile(path); err != nil {
			return cfg, err
		}
	}
	return sdfcull.LoadConfigEnv(cfg, os.LookupEnv)
}

// orbit moves the camera around the cloud center at a fixed distance.
func orbit(cam *core.CameraState, t float64) {
	cam.Yaw = float32(t * 0.2)
	cam.Pitch = 0
	fwd := cam.GetForward()
	cam.Position = fwd.Mul(-cloudRadius * 1.5)
}

func runHeadless(store *core.InstanceStore, cfg sdfcull.Config, logger sdfcull.Logger, frames int, dumpPath string) error {
	profiler := sdfcull.NewProfiler()
	splat := sdfcull.NewSplatRasterizer(store, cfg.DepthConvention)
	r, err := sdfcull.NewRenderer(store, cfg,
		sdfcull.WithLogger(logger),
		sdfcull.WithProfiler(profiler),
		sdfcull.WithDrawConsumer(splat),
	)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := context.Background()
	cam := core.NewCameraState()
	aspect := float32(cfg.ViewportWidth) / float32(cfg.ViewportHeight)
	start := time.Now()
	for i := 0; i < frames; i++ {
		orbit(cam, float64(i)/60)
		stats, err := r.RenderFrame(ctx, sdfcull.FrameInput{ViewProj: cam.WorldToClip(aspect)})
		if err != nil {
			return err
		}
		if stats.Frame > 0 && stats.Frame%30 == 0 {
			logger.Infof("frame %d: %d drawn, %d occluded, %d outside frustum (%s)",
				stats.Frame, stats.Args.InstanceCount, stats.Cull.Occluded, stats.Cull.FrustumRejected, stats.Elapsed)
		}
	}
	if err := r.Flush(ctx); err != nil {
		return err
	}
	logger.Infof("%d frames in %s", frames, time.Since(start))
	fmt.Print(profiler.GetStatsString())

	if dumpPath == "" {
		return nil
	}
	f, err := os.Create(dumpPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return pyramid.WriteDebugPNG(f, r.Pyramid(), 1)
}

func runViewer(store *core.InstanceStore, cfg sdfcull.Config, logger sdfcull.Logger) error {
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	window, err := glfw.CreateWindow(cfg.ViewportWidth, cfg.ViewportHeight, "sdfcull", nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))
	defer surface.Release()

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	defer adapter.Release()
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		return err
	}
	defer device.Release()

	width, height := window.GetFramebufferSize()
	cfg.ViewportWidth, cfg.ViewportHeight = width, height
	caps := surface.GetCapabilities(adapter)
	format := caps.Formats[0]
	surface.Configure(adapter, device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	})

	profiler := sdfcull.NewProfiler()
	backend, err := gpu.NewBackend(device, format, store, cfg, gpu.WithLogger(logger), gpu.WithProfiler(profiler))
	if err != nil {
		return err
	}
	defer backend.Close()

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	ctx := context.Background()
	cam := core.NewCameraState()
	aspect := float32(width) / float32(height)
	lastReport := glfw.GetTime()
	for !window.ShouldClose() {
		glfw.PollEvents()
		orbit(cam, glfw.GetTime())

		next, err := surface.GetCurrentTexture()
		if err != nil {
			logger.Warnf("GetCurrentTexture failed: %v", err)
			continue
		}
		view, err := next.CreateView(nil)
		if err != nil {
			next.Release()
			return err
		}
		args, err := backend.RenderFrame(ctx, view, cam.WorldToClip(aspect))
		view.Release()
		if err != nil {
			next.Release()
			return err
		}
		surface.Present()
		next.Release()

		if now := glfw.GetTime(); now-lastReport >= 1 {
			lastReport = now
			window.SetTitle(fmt.Sprintf("sdfcull: %d / %d visible", args.InstanceCount, store.Len()))
			if logger.DebugEnabled() {
				logger.Debugf("\n%s", profiler.GetStatsString())
			}
		}
	}
	return backend.Flush(ctx)
}
