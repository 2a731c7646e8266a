package quantizer

import (
	"context"

	"github.com/samcharles93/anequant/internal/bundle"
)

// Engine is the capability surface the pipeline depends on: loading a
// model handle, producing a quantized handle, and persisting one.
// A fake implementation can force failures to exercise the fallback tier.
type Engine interface {
	Load(path string) (*bundle.Model, error)
	Quantize(ctx context.Context, m *bundle.Model, cfg Config) (*bundle.Model, error)
	Save(m *bundle.Model, path string) error
}

// LinearEngine is the real Engine: symmetric linear int8 quantization
// over bundle model handles.
type LinearEngine struct{}

func NewLinearEngine() *LinearEngine {
	return &LinearEngine{}
}

func (e *LinearEngine) Load(path string) (*bundle.Model, error) {
	return bundle.Load(path)
}

func (e *LinearEngine) Save(m *bundle.Model, path string) error {
	return bundle.SaveCompiled(m, path)
}
