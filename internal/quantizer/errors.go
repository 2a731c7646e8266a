package quantizer

import "errors"

var (
	ErrUnsupportedMode = errors.New("quantizer: unsupported mode")
	ErrUnsupportedBits = errors.New("quantizer: unsupported bit width")

	// ErrActivationsUnsupported is returned by the full W8A8 tier when the
	// model architecture has no dynamic activation quantization support.
	ErrActivationsUnsupported = errors.New("quantizer: activation quantization not supported for this architecture")
)
