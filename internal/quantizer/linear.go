package quantizer

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/samcharles93/anequant/internal/bundle"
	"github.com/samcharles93/anequant/pkg/mbf"
)

// Architectures with dynamic int8 activation support. Anything else
// fails the full W8A8 tier and falls back to weight-only.
var activationArchs = []string{
	"bert",
	"minilm",
	"albert",
	"roberta",
	"mpnet",
}

func supportsActivations(arch string) bool {
	a := strings.ToLower(strings.TrimSpace(arch))
	if a == "" {
		return false
	}
	for _, known := range activationArchs {
		if strings.Contains(a, known) {
			return true
		}
	}
	return false
}

// Quantize produces a new quantized handle; the input handle is never mutated.
func (e *LinearEngine) Quantize(ctx context.Context, m *bundle.Model, cfg Config) (*bundle.Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if m == nil || len(m.Tensors) == 0 {
		return nil, fmt.Errorf("quantizer: empty model")
	}
	if m.Quantized() {
		return nil, fmt.Errorf("quantizer: model %q already quantized", m.Name)
	}
	if cfg.Activations && !supportsActivations(m.Arch) {
		return nil, fmt.Errorf("%w: %q", ErrActivationsUnsupported, m.Arch)
	}

	out := &bundle.Model{
		Name:         m.Name,
		Arch:         m.Arch,
		SpecVersion:  m.SpecVersion,
		SourceFormat: m.SourceFormat,
		HiddenSize:   m.HiddenSize,
		LayerCount:   m.LayerCount,
		Tensors:      make([]bundle.Tensor, 0, len(m.Tensors)),
	}

	threshold := cfg.threshold()
	for i := range m.Tensors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t := &m.Tensors[i]

		n, err := t.NumElements()
		if err != nil {
			return nil, err
		}
		if !t.IsFloat() || n < threshold {
			out.Tensors = append(out.Tensors, copyTensor(t))
			continue
		}

		qt, clip, err := quantizeTensor(t)
		if err != nil {
			return nil, err
		}
		out.Tensors = append(out.Tensors, qt)
		out.QuantRecords = append(out.QuantRecords, mbf.QuantRecord{
			TensorIndex: uint32(i),
			Method:      mbf.MethodLinearInt8,
			Domain:      mbf.DomainWeights,
			MinClip:     -clip,
			MaxClip:     clip,
		})

		if cfg.Activations && len(t.Shape) == 2 {
			// Dynamic: ranges are observed at execution time, so the
			// record is a marker with zero clips.
			out.QuantRecords = append(out.QuantRecords, mbf.QuantRecord{
				TensorIndex: uint32(i),
				Method:      mbf.MethodLinearInt8,
				Domain:      mbf.DomainActivations,
			})
		}
	}

	return out, nil
}

func copyTensor(t *bundle.Tensor) bundle.Tensor {
	data := make([]byte, len(t.Data))
	copy(data, t.Data)
	shape := append([]uint64(nil), t.Shape...)
	return bundle.Tensor{Name: t.Name, DType: t.DType, Shape: shape, Data: data}
}

// quantizeTensor maps a float tensor onto int8 with a per-tensor
// symmetric scale. Returns the quantized tensor and the clip magnitude
// (scale = clip / 127).
func quantizeTensor(t *bundle.Tensor) (bundle.Tensor, float32, error) {
	vals, err := t.Float32s()
	if err != nil {
		return bundle.Tensor{}, 0, err
	}

	var maxAbs float32
	for _, v := range vals {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return bundle.Tensor{}, 0, fmt.Errorf("quantizer: tensor %q: non-finite value", t.Name)
		}
		a := v
		if a < 0 {
			a = -a
		}
		if a > maxAbs {
			maxAbs = a
		}
	}

	data := make([]byte, len(vals))
	if maxAbs > 0 {
		scale := maxAbs / 127
		for i, v := range vals {
			q := int32(math.RoundToEven(float64(v / scale)))
			if q > 127 {
				q = 127
			}
			if q < -127 {
				q = -127
			}
			data[i] = byte(int8(q))
		}
	}

	return bundle.Tensor{
		Name:  t.Name,
		DType: mbf.DTypeI8,
		Shape: append([]uint64(nil), t.Shape...),
		Data:  data,
	}, maxAbs, nil
}

// Dequantize reconstructs float32 values from a quantized tensor and its
// weights-domain record. Used by round-trip checks and inspection.
func Dequantize(t *bundle.Tensor, rec mbf.QuantRecord) ([]float32, error) {
	if t.DType != mbf.DTypeI8 {
		return nil, fmt.Errorf("quantizer: tensor %q: not an int8 payload", t.Name)
	}
	if rec.Method != mbf.MethodLinearInt8 || rec.Domain != mbf.DomainWeights {
		return nil, fmt.Errorf("quantizer: tensor %q: not a weights record", t.Name)
	}
	scale := rec.Scale()
	out := make([]float32, len(t.Data))
	for i, b := range t.Data {
		out[i] = float32(int8(b)) * scale
	}
	return out, nil
}
