package gpu

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/gogpu/paste"
)

// ============================================================================
// Helpers
// ============================================================================

func seqView(t *testing.T, typ paste.ElementType, h, w, c int64) paste.View {
	t.Helper()
	v, err := paste.NewView(typ, h, w, c)
	if err != nil {
		t.Fatalf("new view: %v", err)
	}
	n := v.NumElements()
	for i := int64(0); i < n; i++ {
		switch typ {
		case paste.Uint8:
			v.Data[i] = byte(i % 251)
		case paste.Float32:
			binary.LittleEndian.PutUint32(v.Data[i*4:], math.Float32bits(float32(i%1009)))
		default:
			t.Fatalf("unsupported test type %v", typ)
		}
	}
	return v
}

// refPaste renders regions the straightforward way: zero the canvas,
// then copy region rows in paint order.
func refPaste(t *testing.T, dst paste.View, src []paste.View, regions []paste.Region) {
	t.Helper()
	dst.Zero()
	for _, r := range regions {
		conv := paste.Converter(dst.Type, src[r.Source].Type)
		if conv == nil {
			t.Fatalf("no converter %v <- %v", dst.Type, src[r.Source].Type)
		}
		s := src[r.Source]
		rowElems := int(r.Shape[1] * dst.Channels)
		for dy := int64(0); dy < r.Shape[0]; dy++ {
			dstOff := dst.ElemOffset(r.OutAnchor[0]+dy, r.OutAnchor[1])
			srcOff := s.ElemOffset(r.InAnchor[0]+dy, r.InAnchor[1])
			conv(dst.Data[dstOff:], s.Data[srcOff:], rowElems)
		}
	}
}

func hostExecutor(t *testing.T) *Executor {
	t.Helper()
	e := New(Options{Workers: 4, DisableDevice: true})
	if err := e.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(e.Close)
	return e
}

// ============================================================================
// Lookup kernel vs reference replay
// ============================================================================

func TestExecutorEmptyRegions(t *testing.T) {
	e := hostExecutor(t)

	dst, _ := paste.NewView(paste.Uint8, 4, 4, 3)
	for i := range dst.Data {
		dst.Data[i] = 0xAF
	}
	if err := e.Paste([]paste.View{dst}, nil, [][]paste.Region{nil}); err != nil {
		t.Fatalf("paste: %v", err)
	}
	for i, b := range dst.Data {
		if b != 0 {
			t.Fatalf("byte %d = %#x, want zero background", i, b)
		}
	}
}

func TestExecutorSingleRegion(t *testing.T) {
	e := hostExecutor(t)

	src := seqView(t, paste.Uint8, 8, 8, 1)
	dst, _ := paste.NewView(paste.Uint8, 4, 4, 1)
	regions := []paste.Region{
		{Source: 0, InAnchor: [2]int64{2, 2}, Shape: [2]int64{2, 2}, OutAnchor: [2]int64{1, 1}},
	}
	if err := e.Paste([]paste.View{dst}, []paste.View{src}, [][]paste.Region{regions}); err != nil {
		t.Fatalf("paste: %v", err)
	}

	want, _ := paste.NewView(paste.Uint8, 4, 4, 1)
	refPaste(t, want, []paste.View{src}, regions)
	if !bytes.Equal(dst.Data, want.Data) {
		t.Fatalf("output mismatch:\ngot  %v\nwant %v", dst.Data, want.Data)
	}
}

func TestExecutorMatchesReference(t *testing.T) {
	types := []struct {
		name     string
		in, out  paste.ElementType
		channels int64
	}{
		{"uint8", paste.Uint8, paste.Uint8, 3},
		{"float32", paste.Float32, paste.Float32, 1},
		{"uint8_to_float32", paste.Uint8, paste.Float32, 2},
		{"float32_to_uint8", paste.Float32, paste.Uint8, 3},
	}
	for _, tc := range types {
		t.Run(tc.name, func(t *testing.T) {
			e := hostExecutor(t)
			rng := rand.New(rand.NewSource(99))
			const h, w = 40, 56

			for iter := 0; iter < 20; iter++ {
				nSrc := 1 + rng.Intn(3)
				src := make([]paste.View, nSrc)
				for i := range src {
					src[i] = seqView(t, tc.in, 16+int64(rng.Intn(8)), 16+int64(rng.Intn(8)), tc.channels)
				}
				nReg := rng.Intn(6)
				regions := make([]paste.Region, nReg)
				for i := range regions {
					s := rng.Intn(nSrc)
					rh := int64(1 + rng.Intn(10))
					rw := int64(1 + rng.Intn(10))
					regions[i] = paste.Region{
						Source:    s,
						InAnchor:  [2]int64{int64(rng.Intn(4)), int64(rng.Intn(4))},
						Shape:     [2]int64{rh, rw},
						OutAnchor: [2]int64{int64(rng.Int63n(h - rh + 1)), int64(rng.Int63n(w - rw + 1))},
					}
				}

				dst, _ := paste.NewView(tc.out, h, w, tc.channels)
				if err := e.Paste([]paste.View{dst}, src, [][]paste.Region{regions}); err != nil {
					t.Fatalf("iter %d: paste: %v", iter, err)
				}
				want, _ := paste.NewView(tc.out, h, w, tc.channels)
				refPaste(t, want, src, regions)
				if !bytes.Equal(dst.Data, want.Data) {
					t.Fatalf("iter %d: output differs from reference replay", iter)
				}
			}
		})
	}
}

func TestExecutorBatch(t *testing.T) {
	// Samples of different sizes in one call.
	e := hostExecutor(t)

	src := seqView(t, paste.Uint8, 10, 10, 1)
	dstA, _ := paste.NewView(paste.Uint8, 4, 4, 1)
	dstB, _ := paste.NewView(paste.Uint8, 9, 13, 1)
	regs := [][]paste.Region{
		{{Source: 0, Shape: [2]int64{3, 3}, OutAnchor: [2]int64{0, 0}}},
		{{Source: 0, InAnchor: [2]int64{1, 1}, Shape: [2]int64{5, 5}, OutAnchor: [2]int64{2, 4}}},
	}
	if err := e.Paste([]paste.View{dstA, dstB}, []paste.View{src}, regs); err != nil {
		t.Fatalf("paste: %v", err)
	}

	wantA, _ := paste.NewView(paste.Uint8, 4, 4, 1)
	refPaste(t, wantA, []paste.View{src}, regs[0])
	wantB, _ := paste.NewView(paste.Uint8, 9, 13, 1)
	refPaste(t, wantB, []paste.View{src}, regs[1])
	if !bytes.Equal(dstA.Data, wantA.Data) {
		t.Error("sample 0 differs from reference")
	}
	if !bytes.Equal(dstB.Data, wantB.Data) {
		t.Error("sample 1 differs from reference")
	}
}

func TestExecutorNotInitialized(t *testing.T) {
	e := New(Options{DisableDevice: true})
	dst, _ := paste.NewView(paste.Uint8, 2, 2, 1)
	err := e.Paste([]paste.View{dst}, nil, [][]paste.Region{nil})
	if err != paste.ErrFallbackToCPU {
		t.Fatalf("got %v, want ErrFallbackToCPU", err)
	}
}

// ============================================================================
// Blocks
// ============================================================================

func TestSplitBlocksCoverage(t *testing.T) {
	d := sampleDesc{height: 150, widthFlat: 10000}
	var area int64
	for _, b := range splitBlocks(d) {
		if b.y1 <= b.y0 || b.x1 <= b.x0 {
			t.Fatalf("degenerate block %+v", b)
		}
		area += (b.y1 - b.y0) * (b.x1 - b.x0)
	}
	if want := d.height * d.widthFlat; area != want {
		t.Fatalf("blocks cover %d elements, want %d", area, want)
	}
}

func TestFitsDeviceRejectsOversized(t *testing.T) {
	src := []paste.View{seqView(t, paste.Float32, 4, 4, 1)}
	d := sampleDesc{height: 4, widthFlat: 4}
	if !fitsDevice(src, d) {
		t.Fatal("small sample rejected")
	}

	wide := sampleDesc{height: 4, widthFlat: int64(math.MaxUint32) + 1}
	if fitsDevice(src, wide) {
		t.Error("canvas wider than uint32 accepted")
	}
	tall := sampleDesc{height: int64(math.MaxUint32) + 1, widthFlat: 4}
	if fitsDevice(src, tall) {
		t.Error("canvas taller than uint32 accepted")
	}

	// Shape fields alone drive the offset-space check.
	huge := paste.View{Type: paste.Float32, Height: 1 << 20, Width: 1 << 16, Channels: 1}
	if fitsDevice([]paste.View{huge}, d) {
		t.Error("source pool beyond uint32 offsets accepted")
	}
}

// ============================================================================
// Scratch estimation
// ============================================================================

func TestEstimateScratch(t *testing.T) {
	src := []paste.View{{Type: paste.Float32, Height: 4, Width: 4, Channels: 1}}
	regions := make([]paste.Region, 3)
	r := EstimateScratch(32, 32, 3, src, regions)

	if r.CellBytes != 49*gpuCellBytes {
		t.Errorf("cell bytes = %d, want %d", r.CellBytes, 49*gpuCellBytes)
	}
	if r.OutputBytes != 32*32*3*4 {
		t.Errorf("output bytes = %d, want %d", r.OutputBytes, 32*32*3*4)
	}
	if r.Total() != r.CellBytes+r.SourceBytes+2*r.OutputBytes {
		t.Error("total does not sum components")
	}
}
