// Package quantizer applies post-training 8-bit quantization to model
// handles. The preferred configuration quantizes weights and marks
// activations for dynamic int8 execution (W8A8); the fallback
// configuration quantizes weights only.
package quantizer

import "fmt"

// Mode is the numeric mapping scheme.
type Mode string

// ModeLinearSymmetric maps floats onto int8 with a single per-tensor
// scale and a zero point fixed at 0.
const ModeLinearSymmetric Mode = "linear_symmetric"

// DefaultWeightThreshold is the minimum element count for a tensor to be
// quantized. Smaller tensors (biases, norms) pass through unchanged.
const DefaultWeightThreshold uint64 = 2048

// Config describes one quantization attempt.
type Config struct {
	Mode Mode
	Bits int

	// Activations enables dynamic int8 activation quantization in
	// addition to weights.
	Activations bool

	// WeightThreshold is the minimum element count for quantizing a
	// tensor. Zero means DefaultWeightThreshold.
	WeightThreshold uint64
}

// FullConfig is the preferred W8A8 configuration.
func FullConfig() Config {
	return Config{
		Mode:            ModeLinearSymmetric,
		Bits:            8,
		Activations:     true,
		WeightThreshold: DefaultWeightThreshold,
	}
}

// FallbackConfig is the degraded weight-only configuration.
func FallbackConfig() Config {
	cfg := FullConfig()
	cfg.Activations = false
	return cfg
}

// Name returns the short scheme name ("w8a8" or "w8").
func (c Config) Name() string {
	if c.Activations {
		return "w8a8"
	}
	return "w8"
}

func (c Config) validate() error {
	if c.Mode != ModeLinearSymmetric {
		return fmt.Errorf("%w: %q", ErrUnsupportedMode, c.Mode)
	}
	if c.Bits != 8 {
		return fmt.Errorf("%w: %d", ErrUnsupportedBits, c.Bits)
	}
	return nil
}

func (c Config) threshold() uint64 {
	if c.WeightThreshold == 0 {
		return DefaultWeightThreshold
	}
	return c.WeightThreshold
}
