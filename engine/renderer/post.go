package renderer

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxylus-go/common"
	"github.com/Carmen-Shannon/oxylus-go/engine/gpu"
	"github.com/Carmen-Shannon/oxylus-go/engine/rendergraph"
	"github.com/Carmen-Shannon/oxylus-go/engine/scene"
)

const (
	// histogramGroupSize is the workgroup edge of the histogram generate pass.
	histogramGroupSize = 16

	// bloomStrength is how much of the bloom chain tonemapping adds back.
	bloomStrength = 0.04
	// histogramEVMargin widens the histogram below the minimum exposure so the darkest
	// adapted pixels still land inside the range.
	histogramEVMargin = 3
)

// postUsage is the usage of intermediate post-processing images.
const postUsage = gpu.ImageUsageColorAttachment | gpu.ImageUsageSampled

// adaptationRate returns the blend factor toward the new luminance for a frame of dt
// seconds. The curve depends only on elapsed time, so adaptation is frame-rate independent.
//
// Parameters:
//   - speed: the adaptation speed of the auto exposure component
//   - dt: the frame time in seconds
//
// Returns:
//   - float32: the factor, within [0, 1]
func adaptationRate(speed, dt float32) float32 {
	dtMillis := float64(dt) * 1000
	return common.Clamp(float32(1-math.Exp(-float64(speed)*dtMillis*0.001)), 0, 1)
}

// histogramRange returns the log2 luminance window the histogram bins cover.
func histogramRange(info GPUHistogramInfo) (minLog, logRange float32) {
	minLog = info.MinExposure - histogramEVMargin
	logRange = max(info.MaxExposure-info.MinExposure, 1e-3)
	return minLog, logRange
}

// addPostProcessing records FXAA, bloom, the exposure histogram and tonemapping. The
// tonemapped image is written into fg.result.
func (r *renderer) addPostProcessing(fg *frameGraph, info *GPUHistogramInfo) {
	settings := fg.rc.Settings
	if settings.FXAA {
		r.addFXAA(fg)
	}
	bloom, strength := r.addBloom(fg)
	exposure := r.addHistogram(fg, info)
	r.addTonemap(fg, bloom, strength, exposure)
}

// addFXAA antialiases final into a new image that replaces it.
func (r *renderer) addFXAA(fg *frameGraph) {
	set := r.descriptorSet
	dst := fg.g.DeclareImage("fxaa", gpu.ImageSpec{
		Format:    FinalFormat,
		Extent:    fg.rc.Extent,
		MipLevels: 1,
		Usage:     postUsage,
	})
	out := fg.g.AddPass("fxaa", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindGraphicsPipeline(pipelineName("fxaa"))
		pc.Cmd.SetRasterState(gpu.RasterState{})
		pc.Cmd.BindDescriptorSet(setBindless, set)
		pc.Cmd.BindImage(setPass, 0, gpu.AllMips(pc.Image(1)))
		pc.Cmd.Draw(3, 1, 0, 0)
	}, dst.As(gpu.AccessColorWrite), fg.final.As(gpu.AccessFragmentSampled))
	var src rendergraph.Value
	thread(out, &fg.final, &src)
}

// addBloom runs the dual-filter bloom chain over final.
//
// Returns:
//   - rendergraph.Value: the image tonemapping samples mip 0 of
//   - float32: the strength it is added back with, zero when bloom is off
func (r *renderer) addBloom(fg *frameGraph) (rendergraph.Value, float32) {
	g := fg.g
	settings := fg.rc.Settings
	half := gpu.Extent2D(max(fg.rc.Extent.Width/2, 1), max(fg.rc.Extent.Height/2, 1))
	mips := min(settings.BloomMipCount+1, common.MipCount(half.Width, half.Height))

	if !settings.Bloom || mips < 2 {
		black := g.DeclareImage("bloom black", gpu.ImageSpec{
			Format:    FinalFormat,
			Extent:    gpu.Extent2D(1, 1),
			MipLevels: 1,
			Usage:     gpu.ImageUsageSampled | gpu.ImageUsageTransferDst,
		})
		return g.Clear(black, gpu.ClearColor(0, 0, 0, 0)), 0
	}

	set := r.descriptorSet
	chainSpec := func(levels uint32) gpu.ImageSpec {
		return gpu.ImageSpec{
			Format:    FinalFormat,
			Extent:    half,
			MipLevels: levels,
			Usage:     gpu.ImageUsageStorage | gpu.ImageUsageSampled,
		}
	}
	down := g.DeclareImage("bloom down", chainSpec(mips))
	up := g.DeclareImage("bloom up", chainSpec(mips-1))

	push := asBytes(bloomPrefilterConstants{Threshold: settings.BloomThreshold, Clamp: settings.BloomClamp})
	out := g.AddPass("bloom prefilter", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindComputePipeline(pipelineName("bloom_prefilter"))
		pc.Cmd.BindDescriptorSet(setBindless, set)
		pc.Cmd.BindImage(setPass, 0, gpu.AllMips(pc.Image(0)))
		pc.Cmd.BindImage(setPass, 1, gpu.SingleMip(pc.Image(1), 0))
		pc.Cmd.PushConstants(push)
		pc.Cmd.Dispatch(common.DivRoundUp(half.Width, screenGroupSize), common.DivRoundUp(half.Height, screenGroupSize), 1)
	}, fg.final.As(gpu.AccessComputeSampled), down.As(gpu.AccessComputeWrite))
	thread(out, &fg.final, &down)

	for mip := uint32(1); mip < mips; mip++ {
		m := half.Mip(mip)
		out = g.AddPass(fmt.Sprintf("bloom downsample %d", mip), func(pc *rendergraph.PassContext) {
			chain := pc.Image(0)
			pc.Cmd.BindComputePipeline(pipelineName("bloom_downsample"))
			pc.Cmd.BindDescriptorSet(setBindless, set)
			pc.Cmd.BindImage(setPass, 0, gpu.SingleMip(chain, mip-1))
			pc.Cmd.BindImage(setPass, 1, gpu.SingleMip(chain, mip))
			pc.Cmd.Dispatch(common.DivRoundUp(m.Width, screenGroupSize), common.DivRoundUp(m.Height, screenGroupSize), 1)
		}, down.As(gpu.AccessComputeRW))
		thread(out, &down)
	}

	// up[m] = down[m] + upsample(up[m+1]), starting from the smallest down level.
	out = g.AddPass("bloom upsample", func(pc *rendergraph.PassContext) {
		downChain, upChain := pc.Image(0), pc.Image(1)
		pc.Cmd.BindComputePipeline(pipelineName("bloom_upsample"))
		pc.Cmd.BindDescriptorSet(setBindless, set)
		for mip := int(mips) - 2; mip >= 0; mip-- {
			level := uint32(mip)
			coarse := gpu.SingleMip(upChain, level+1)
			if level == mips-2 {
				coarse = gpu.SingleMip(downChain, level+1)
			}
			m := half.Mip(level)
			pc.Cmd.BindImage(setPass, 0, coarse)
			pc.Cmd.BindImage(setPass, 1, gpu.SingleMip(downChain, level))
			pc.Cmd.BindImage(setPass, 2, gpu.SingleMip(upChain, level))
			pc.Cmd.Dispatch(common.DivRoundUp(m.Width, screenGroupSize), common.DivRoundUp(m.Height, screenGroupSize), 1)
		}
	}, down.As(gpu.AccessComputeSampled), up.As(gpu.AccessComputeRW))
	thread(out, &down, &up)
	return up, bloomStrength
}

// addHistogram bins the luminance of final and, when the scene has auto exposure, averages
// it into the exposure buffer. Without auto exposure the last exposure is kept.
//
// Returns:
//   - rendergraph.Value: the exposure buffer
func (r *renderer) addHistogram(fg *frameGraph, info *GPUHistogramInfo) rendergraph.Value {
	g := fg.g
	extent := fg.rc.Extent

	rangeInfo := NewGPUHistogramInfo(scene.DefaultAutoExposure())
	if info != nil {
		rangeInfo = *info
	}
	minLog, logRange := histogramRange(rangeInfo)

	histogram := g.Clear(r.access.acquireBuffer(g, "histogram", r.histogramBuffer), gpu.ClearUint(0))
	generate := asBytes(histogramGenerateConstants{MinLogLuminance: minLog, InvLogLuminanceRange: 1 / logRange})
	out := g.AddPass("histogram generate", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindComputePipeline(pipelineName("histogram_generate"))
		pc.Cmd.BindImage(setPass, 0, gpu.AllMips(pc.Image(0)))
		pc.Cmd.BindBuffer(setPass, 1, pc.Buffer(1))
		pc.Cmd.PushConstants(generate)
		pc.Cmd.Dispatch(common.DivRoundUp(extent.Width, histogramGroupSize), common.DivRoundUp(extent.Height, histogramGroupSize), 1)
	}, fg.final.As(gpu.AccessComputeSampled), histogram.As(gpu.AccessComputeRW))
	thread(out, &fg.final, &histogram)

	exposure := r.access.acquireBuffer(g, "exposure", r.exposureBuffer)
	if info == nil {
		return exposure
	}

	average := asBytes(histogramAverageConstants{
		MinLogLuminance:   minLog,
		LogLuminanceRange: logRange,
		Adaptation:        adaptationRate(info.AdaptationSpeed, fg.rc.DeltaTime),
		PixelCount:        extent.Width * extent.Height,
		EV100Bias:         info.EV100Bias,
	})
	out = g.AddPass("histogram average", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindComputePipeline(pipelineName("histogram_average"))
		bindBuffers(pc.Cmd, 0, pc.Buffer(0), pc.Buffer(1))
		pc.Cmd.PushConstants(average)
		pc.Cmd.Dispatch(1, 1, 1)
	}, histogram.As(gpu.AccessComputeRW), exposure.As(gpu.AccessComputeRW))
	thread(out, &histogram, &exposure)
	return exposure
}

// addTonemap writes the exposed, tonemapped final plus bloom into result.
func (r *renderer) addTonemap(fg *frameGraph, bloom rendergraph.Value, strength float32, exposure rendergraph.Value) {
	settings := fg.rc.Settings
	gamma := settings.Gamma
	if fg.rc.Format.IsSRGB() {
		gamma = 1
	}
	push := asBytes(tonemapConstants{
		Tonemapper: uint32(settings.Tonemapper),
		Exposure:   settings.Exposure,
		Gamma:      gamma,
		Bloom:      strength,
	})
	pipeline := r.tonemapPipeline(fg.rc.Format)
	set := r.descriptorSet

	out := fg.g.AddPass("tonemap", func(pc *rendergraph.PassContext) {
		pc.Cmd.BindGraphicsPipeline(pipeline)
		pc.Cmd.SetRasterState(gpu.RasterState{})
		pc.Cmd.BindDescriptorSet(setBindless, set)
		pc.Cmd.BindImage(setPass, 0, gpu.AllMips(pc.Image(1)))
		pc.Cmd.BindImage(setPass, 1, gpu.SingleMip(pc.Image(2), 0))
		pc.Cmd.BindBuffer(setPass, 2, pc.Buffer(3))
		pc.Cmd.PushConstants(push)
		pc.Cmd.Draw(3, 1, 0, 0)
	},
		fg.result.As(gpu.AccessColorWrite),
		fg.final.As(gpu.AccessFragmentSampled),
		bloom.As(gpu.AccessFragmentSampled),
		exposure.As(gpu.AccessFragmentRead),
	)
	thread(out, &fg.result, &fg.final)
}
