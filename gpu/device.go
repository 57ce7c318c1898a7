//go:build !nogpu

package gpu

import (
	_ "embed"
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/paste"
)

//go:embed shaders/paste.wgsl
var pasteShaderWGSL string

// gpuCell is the GPU layout of a flattened grid cell.
// Must match the Cell struct in paste.wgsl.
type gpuCell struct {
	StartY uint32 // First output row
	EndY   uint32 // Past-the-end output row
	StartX uint32 // First flattened output column
	EndX   uint32 // Past-the-end flattened output column
	InOff  uint32 // Element offset of the cell's origin in the source pool
	Pitch  uint32 // Source row stride in elements
	Source int32  // Contributing source, negative for background
	Pad    uint32 // Padding for alignment
}

// gpuParams is the per-dispatch uniform block.
// Must match Params in paste.wgsl.
type gpuParams struct {
	Width  uint32 // Flattened canvas width in elements
	Height uint32 // Canvas height in rows
	Rows   uint32 // Grid rows
	Cols   uint32 // Grid columns
}

// device owns the wgpu resources of the float32 dispatch path.
type device struct {
	instance hal.Instance
	dev      hal.Device
	queue    hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	adapterName string
}

func newDevice() (*device, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("open device: %w", err)
	}
	d := &device{
		instance:    instance,
		dev:         openDev.Device,
		queue:       openDev.Queue,
		adapterName: selected.Info.Name,
	}
	if err := d.createPipeline(); err != nil {
		d.close()
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	return d, nil
}

func (d *device) createPipeline() error {
	shader, err := d.dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "paste_cells",
		Source: hal.ShaderSource{WGSL: pasteShaderWGSL},
	})
	if err != nil {
		return fmt.Errorf("compile paste shader: %w", err)
	}
	d.shader = shader

	bindLayout, err := d.dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "paste_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	d.bindLayout = bindLayout

	pipeLayout, err := d.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "paste_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{d.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	d.pipeLayout = pipeLayout

	pipeline, err := d.dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "paste_pipeline", Layout: d.pipeLayout,
		Compute: hal.ComputeState{Module: d.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	d.pipeline = pipeline
	return nil
}

func (d *device) close() {
	if d.dev != nil {
		if d.pipeline != nil {
			d.dev.DestroyComputePipeline(d.pipeline)
		}
		if d.pipeLayout != nil {
			d.dev.DestroyPipelineLayout(d.pipeLayout)
		}
		if d.bindLayout != nil {
			d.dev.DestroyBindGroupLayout(d.bindLayout)
		}
		if d.shader != nil {
			d.dev.DestroyShaderModule(d.shader)
		}
		d.dev.Destroy()
		d.dev = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
	d.queue = nil
}

// packCells serializes the cell descriptors, pooling every referenced
// source into one element offset space.
func packCells(src []paste.View, d sampleDesc) (cellBytes []byte, srcPool []byte) {
	offsets := make([]int64, len(src))
	var total int64
	for i, s := range src {
		offsets[i] = total
		total += s.NumElements()
	}

	cellSize := int(unsafe.Sizeof(gpuCell{}))
	cellBytes = make([]byte, cellSize*len(d.cells))
	for i, c := range d.cells {
		gc := gpuCell{
			StartY: uint32(c.StartY),
			EndY:   uint32(c.EndY),
			StartX: uint32(c.StartX),
			EndX:   uint32(c.EndX),
			Source: c.Source,
		}
		if c.Source >= 0 {
			gc.InOff = uint32(offsets[c.Source] + c.InAnchorY*c.InPitch + c.InAnchorX)
			gc.Pitch = uint32(c.InPitch)
		}
		copy(cellBytes[i*cellSize:], structToBytes(unsafe.Pointer(&gc), unsafe.Sizeof(gc)))
	}

	srcPool = make([]byte, 0, total*4)
	for _, s := range src {
		srcPool = append(srcPool, s.Data[:s.ByteSize()]...)
	}
	return cellBytes, srcPool
}

func structToBytes(ptr unsafe.Pointer, size uintptr) []byte {
	return unsafe.Slice((*byte)(ptr), size) //nolint:gosec // safe struct serialization
}

// dispatch runs one sample's plan as a compute pass and reads the
// result back into out.Data. Sources and output must be float32.
func (d *device) dispatch(out paste.View, src []paste.View, desc sampleDesc) error {
	w, h := uint32(desc.widthFlat), uint32(desc.height) //nolint:gosec // extents bounded by fitsDevice
	dstSize := uint64(w) * uint64(h) * 4
	cellBytes, srcPool := packCells(src, desc)
	if len(srcPool) == 0 {
		srcPool = make([]byte, 4)
	}

	params := gpuParams{Width: w, Height: h, Rows: uint32(desc.rows), Cols: uint32(desc.cols)} //nolint:gosec // grid dims fit uint32
	paramsBytes := structToBytes(unsafe.Pointer(&params), unsafe.Sizeof(params))

	paramsBuf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "paste_params", Size: uint64(len(paramsBytes)),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create params buffer: %w", err)
	}
	defer d.dev.DestroyBuffer(paramsBuf)

	cellsBuf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "paste_cells", Size: uint64(len(cellBytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create cells buffer: %w", err)
	}
	defer d.dev.DestroyBuffer(cellsBuf)

	srcBuf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "paste_src", Size: uint64(len(srcPool)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create source buffer: %w", err)
	}
	defer d.dev.DestroyBuffer(srcBuf)

	dstBuf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "paste_dst", Size: dstSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create output buffer: %w", err)
	}
	defer d.dev.DestroyBuffer(dstBuf)

	stagingBuf, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: "paste_staging", Size: dstSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer d.dev.DestroyBuffer(stagingBuf)

	d.queue.WriteBuffer(paramsBuf, 0, paramsBytes)
	d.queue.WriteBuffer(cellsBuf, 0, cellBytes)
	d.queue.WriteBuffer(srcBuf, 0, srcPool)

	bg, err := d.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "paste_bind", Layout: d.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: uint64(len(paramsBytes))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: cellsBuf.NativeHandle(), Offset: 0, Size: uint64(len(cellBytes))}},
			{Binding: 2, Resource: gputypes.BufferBinding{Buffer: srcBuf.NativeHandle(), Offset: 0, Size: uint64(len(srcPool))}},
			{Binding: 3, Resource: gputypes.BufferBinding{Buffer: dstBuf.NativeHandle(), Offset: 0, Size: dstSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer d.dev.DestroyBindGroup(bg)

	encoder, err := d.dev.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "paste_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("paste"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "paste_pass"})
	pass.SetPipeline(d.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch((w+7)/8, (h+7)/8, 1)
	pass.End()
	encoder.CopyBufferToBuffer(dstBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: dstSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer d.dev.FreeCommandBuffer(cmdBuf)

	subIdx, err := d.queue.Submit([]hal.CommandBuffer{cmdBuf})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := d.dev.WaitIdle(); err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if completed := d.queue.PollCompleted(); completed < subIdx {
		return fmt.Errorf("wait for GPU: submission %d not completed (last %d)", subIdx, completed)
	}

	mapping, err := d.dev.MapBuffer(stagingBuf, 0, dstSize)
	if err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	copy(out.Data[:dstSize], unsafe.Slice((*byte)(mapping.Ptr), dstSize))
	if err := d.dev.UnmapBuffer(stagingBuf); err != nil {
		return fmt.Errorf("readback unmap: %w", err)
	}
	return nil
}
