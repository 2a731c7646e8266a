package quantizer

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/samcharles93/anequant/internal/bundle"
	"github.com/samcharles93/anequant/pkg/mbf"
)

func f32Tensor(name string, shape []uint64, vals []float32) bundle.Tensor {
	data := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return bundle.Tensor{Name: name, DType: mbf.DTypeF32, Shape: shape, Data: data}
}

func rampTensor(name string, rows, cols int) bundle.Tensor {
	vals := make([]float32, rows*cols)
	for i := range vals {
		vals[i] = float32(i%255-127) / 64
	}
	return f32Tensor(name, []uint64{uint64(rows), uint64(cols)}, vals)
}

func testModel(arch string, tensors ...bundle.Tensor) *bundle.Model {
	return &bundle.Model{
		Name:        "test-model",
		Arch:        arch,
		SpecVersion: (1 << 16) | 1,
		Tensors:     tensors,
	}
}

func TestQuantizeWeights(t *testing.T) {
	t.Parallel()

	engine := NewLinearEngine()
	cfg := FallbackConfig()
	cfg.WeightThreshold = 4

	src := testModel("bert", f32Tensor("w", []uint64{2, 2}, []float32{-2, -1, 0.5, 2}))
	got, err := engine.Quantize(context.Background(), src, cfg)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}

	qt := got.Tensor("w")
	if qt == nil {
		t.Fatalf("missing quantized tensor")
	}
	if qt.DType != mbf.DTypeI8 {
		t.Fatalf("dtype mismatch: got %s", qt.DType)
	}

	// maxAbs is 2, so scale is 2/127 and extremes hit exactly +/-127.
	want := []int8{-127, -64, 32, 127}
	for i, b := range qt.Data {
		if int8(b) != want[i] {
			t.Fatalf("value %d mismatch: got %d want %d", i, int8(b), want[i])
		}
	}

	if len(got.QuantRecords) != 1 {
		t.Fatalf("expected one quant record, got %d", len(got.QuantRecords))
	}
	rec := got.QuantRecords[0]
	if rec.Domain != mbf.DomainWeights || rec.MaxClip != 2 || rec.MinClip != -2 {
		t.Fatalf("record mismatch: %+v", rec)
	}

	// The source handle is untouched.
	if src.Tensors[0].DType != mbf.DTypeF32 || src.Quantized() {
		t.Fatalf("source handle was mutated")
	}
}

func TestQuantizeRoundsToEven(t *testing.T) {
	t.Parallel()

	engine := NewLinearEngine()
	cfg := FallbackConfig()
	cfg.WeightThreshold = 1

	// scale = 127/127 = 1, so values land exactly on .5 boundaries.
	src := testModel("bert", f32Tensor("w", []uint64{4}, []float32{0.5, 1.5, 2.5, 127}))
	got, err := engine.Quantize(context.Background(), src, cfg)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}

	want := []int8{0, 2, 2, 127}
	for i, b := range got.Tensors[0].Data {
		if int8(b) != want[i] {
			t.Fatalf("value %d mismatch: got %d want %d", i, int8(b), want[i])
		}
	}
}

func TestQuantizeSkipsSmallAndNonFloatTensors(t *testing.T) {
	t.Parallel()

	engine := NewLinearEngine()
	cfg := FallbackConfig()

	bias := f32Tensor("bias", []uint64{4}, []float32{1, 2, 3, 4})
	ids := bundle.Tensor{Name: "ids", DType: mbf.DTypeI64, Shape: []uint64{4096}, Data: make([]byte, 4096*8)}
	weight := rampTensor("weight", 64, 64)

	got, err := engine.Quantize(context.Background(), testModel("bert", bias, ids, weight), cfg)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}

	if got.Tensor("bias").DType != mbf.DTypeF32 {
		t.Fatalf("small tensor should pass through")
	}
	if got.Tensor("ids").DType != mbf.DTypeI64 {
		t.Fatalf("integer tensor should pass through")
	}
	if got.Tensor("weight").DType != mbf.DTypeI8 {
		t.Fatalf("large float tensor should be quantized")
	}
	if len(got.QuantRecords) != 1 || got.QuantRecords[0].TensorIndex != 2 {
		t.Fatalf("unexpected quant records: %+v", got.QuantRecords)
	}
}

func TestQuantizeZeroTensor(t *testing.T) {
	t.Parallel()

	engine := NewLinearEngine()
	cfg := FallbackConfig()
	cfg.WeightThreshold = 1

	got, err := engine.Quantize(context.Background(),
		testModel("bert", f32Tensor("z", []uint64{4}, []float32{0, 0, 0, 0})), cfg)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}

	rec := got.QuantRecords[0]
	if rec.MaxClip != 0 || rec.MinClip != 0 {
		t.Fatalf("zero tensor clip mismatch: %+v", rec)
	}
	for i, b := range got.Tensors[0].Data {
		if b != 0 {
			t.Fatalf("value %d should be zero, got %d", i, int8(b))
		}
	}
}

func TestQuantizeRejectsNonFinite(t *testing.T) {
	t.Parallel()

	engine := NewLinearEngine()
	cfg := FallbackConfig()
	cfg.WeightThreshold = 1

	nan := float32(math.NaN())
	_, err := engine.Quantize(context.Background(),
		testModel("bert", f32Tensor("w", []uint64{2}, []float32{1, nan})), cfg)
	if err == nil {
		t.Fatalf("expected error for NaN value")
	}
}

func TestQuantizeActivationGating(t *testing.T) {
	t.Parallel()

	engine := NewLinearEngine()
	cfg := FullConfig()
	cfg.WeightThreshold = 16

	t.Run("unsupported architecture fails", func(t *testing.T) {
		t.Parallel()
		_, err := engine.Quantize(context.Background(),
			testModel("llama", rampTensor("w", 8, 8)), cfg)
		if !errors.Is(err, ErrActivationsUnsupported) {
			t.Fatalf("expected ErrActivationsUnsupported, got %v", err)
		}
	})

	t.Run("unknown architecture fails", func(t *testing.T) {
		t.Parallel()
		_, err := engine.Quantize(context.Background(),
			testModel("", rampTensor("w", 8, 8)), cfg)
		if !errors.Is(err, ErrActivationsUnsupported) {
			t.Fatalf("expected ErrActivationsUnsupported, got %v", err)
		}
	})

	t.Run("supported architecture adds activation markers", func(t *testing.T) {
		t.Parallel()
		vec := make([]float32, 64)
		for i := range vec {
			vec[i] = float32(i) / 16
		}
		got, err := engine.Quantize(context.Background(),
			testModel("BertModel", rampTensor("w", 8, 8), f32Tensor("v", []uint64{64}, vec)), cfg)
		if err != nil {
			t.Fatalf("quantize: %v", err)
		}

		var weights, activations int
		for _, r := range got.QuantRecords {
			switch r.Domain {
			case mbf.DomainWeights:
				weights++
			case mbf.DomainActivations:
				if r.MinClip != 0 || r.MaxClip != 0 {
					t.Fatalf("activation marker must have zero clips: %+v", r)
				}
				activations++
			}
		}
		if weights != 2 {
			t.Fatalf("expected 2 weight records, got %d", weights)
		}
		// Only rank-2 tensors get activation markers.
		if activations != 1 {
			t.Fatalf("expected 1 activation record, got %d", activations)
		}
	})
}

func TestQuantizeRejectsAlreadyQuantized(t *testing.T) {
	t.Parallel()

	engine := NewLinearEngine()
	m := testModel("bert", rampTensor("w", 64, 64))
	m.QuantRecords = []mbf.QuantRecord{
		{TensorIndex: 0, Method: mbf.MethodLinearInt8, Domain: mbf.DomainWeights, MinClip: -1, MaxClip: 1},
	}

	if _, err := engine.Quantize(context.Background(), m, FallbackConfig()); err == nil {
		t.Fatalf("expected error for already-quantized model")
	}
}

func TestQuantizeHonorsContext(t *testing.T) {
	t.Parallel()

	engine := NewLinearEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Quantize(ctx, testModel("bert", rampTensor("w", 8, 8)), FallbackConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDequantizeRoundTrip(t *testing.T) {
	t.Parallel()

	engine := NewLinearEngine()
	cfg := FallbackConfig()
	cfg.WeightThreshold = 1

	vals := []float32{-1.5, -0.25, 0, 0.75, 1.5}
	src := testModel("bert", f32Tensor("w", []uint64{5}, vals))
	got, err := engine.Quantize(context.Background(), src, cfg)
	if err != nil {
		t.Fatalf("quantize: %v", err)
	}

	back, err := Dequantize(got.Tensor("w"), got.QuantRecords[0])
	if err != nil {
		t.Fatalf("dequantize: %v", err)
	}

	// Worst-case error for symmetric int8 is half a step.
	tol := float64(got.QuantRecords[0].Scale()) / 2
	for i, v := range vals {
		if diff := math.Abs(float64(back[i] - v)); diff > tol {
			t.Fatalf("value %d error too large: got %g want %g (tol %g)", i, back[i], v, tol)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	engine := NewLinearEngine()
	m := testModel("bert", rampTensor("w", 8, 8))

	if _, err := engine.Quantize(context.Background(), m, Config{Mode: "fancy", Bits: 8}); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("expected ErrUnsupportedMode, got %v", err)
	}
	if _, err := engine.Quantize(context.Background(), m, Config{Mode: ModeLinearSymmetric, Bits: 4}); !errors.Is(err, ErrUnsupportedBits) {
		t.Fatalf("expected ErrUnsupportedBits, got %v", err)
	}
}
