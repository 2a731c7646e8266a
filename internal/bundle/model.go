package bundle

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/samcharles93/anequant/pkg/mbf"
)

// Tensor is a single named weight with its raw little-endian payload.
type Tensor struct {
	Name  string
	DType mbf.TensorDType
	Shape []uint64
	Data  []byte
}

// NumElements returns the element count implied by the shape.
func (t *Tensor) NumElements() (uint64, error) {
	if len(t.Shape) == 0 {
		return 0, fmt.Errorf("tensor %q: empty shape", t.Name)
	}
	var n uint64 = 1
	for _, d := range t.Shape {
		if d == 0 {
			return 0, fmt.Errorf("tensor %q: zero dim", t.Name)
		}
		if n > (^uint64(0))/d {
			return 0, fmt.Errorf("tensor %q: too large", t.Name)
		}
		n *= d
	}
	return n, nil
}

// IsFloat reports whether the tensor holds floating-point elements.
func (t *Tensor) IsFloat() bool {
	switch t.DType {
	case mbf.DTypeF32, mbf.DTypeF16, mbf.DTypeBF16:
		return true
	default:
		return false
	}
}

// Float32s decodes the payload into float32 values.
// Supported dtypes: F32, F16, BF16.
func (t *Tensor) Float32s() ([]float32, error) {
	n, err := t.NumElements()
	if err != nil {
		return nil, err
	}
	switch t.DType {
	case mbf.DTypeF32:
		if uint64(len(t.Data)) != n*4 {
			return nil, fmt.Errorf("tensor %q: invalid f32 data size", t.Name)
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Data[i*4:]))
		}
		return out, nil
	case mbf.DTypeBF16:
		if uint64(len(t.Data)) != n*2 {
			return nil, fmt.Errorf("tensor %q: invalid bf16 data size", t.Name)
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = bf16ToF32(binary.LittleEndian.Uint16(t.Data[i*2:]))
		}
		return out, nil
	case mbf.DTypeF16:
		if uint64(len(t.Data)) != n*2 {
			return nil, fmt.Errorf("tensor %q: invalid f16 data size", t.Name)
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = fp16ToF32(binary.LittleEndian.Uint16(t.Data[i*2:]))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("tensor %q: unsupported dtype %s", t.Name, t.DType)
	}
}

// Model is an in-memory model handle. Quantization never mutates a
// handle in place; it produces a new one.
type Model struct {
	Name string
	Arch string

	// SpecVersion is the container format version the handle was read
	// from (or will be written as), packed major<<16|minor.
	SpecVersion uint32

	// SourceFormat names the form the model was loaded from.
	SourceFormat Kind

	HiddenSize uint32
	LayerCount uint32

	// Tensors are ordered by name.
	Tensors []Tensor

	// QuantRecords describe quantized tensors (by index into Tensors).
	QuantRecords []mbf.QuantRecord
}

// Tensor returns the named tensor, or nil.
func (m *Model) Tensor(name string) *Tensor {
	for i := range m.Tensors {
		if m.Tensors[i].Name == name {
			return &m.Tensors[i]
		}
	}
	return nil
}

// Quantized reports whether the handle carries any weights-domain quant records.
func (m *Model) Quantized() bool {
	for _, r := range m.QuantRecords {
		if r.Domain == mbf.DomainWeights {
			return true
		}
	}
	return false
}

func bf16ToF32(u uint16) float32 {
	return math.Float32frombits(uint32(u) << 16)
}

func fp16ToF32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1F
	frac := uint32(h & 0x3FF)
	var f uint32
	switch exp {
	case 0:
		if frac == 0 {
			f = sign << 31
		} else {
			e := uint32(127 - 15 + 1)
			for (frac & 0x400) == 0 {
				frac <<= 1
				e--
			}
			frac &= 0x3FF
			f = (sign << 31) | (e << 23) | (frac << 13)
		}
	case 0x1F:
		f = (sign << 31) | 0x7F800000 | (frac << 13)
	default:
		e := exp + (127 - 15)
		f = (sign << 31) | (e << 23) | (frac << 13)
	}
	return math.Float32frombits(f)
}
