package mbf

import "errors"

var (
	ErrInvalidMagic       = errors.New("invalid MBF magic")
	ErrUnsupportedMajor   = errors.New("unsupported MBF major version")
	ErrUnsupportedVersion = errors.New("unsupported MBF section version")
	ErrCorruptFile        = errors.New("corrupt MBF file")
)
