// Package bundle loads and persists model bundles in the forms the
// quantizer recognises: compiled .mbc bundle directories, raw model
// directories (config.json + safetensors), and bare safetensors files.
package bundle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies the on-disk form of a source model.
type Kind int

const (
	KindUnknown Kind = iota

	// KindCompiled is a .mbc bundle directory: manifest.json + model.mbf.
	KindCompiled

	// KindModelDir is a raw model directory: config.json + *.safetensors.
	KindModelDir

	// KindSafetensors is a bare .safetensors file.
	KindSafetensors
)

func (k Kind) String() string {
	switch k {
	case KindCompiled:
		return "mbc"
	case KindModelDir:
		return "model-dir"
	case KindSafetensors:
		return "safetensors"
	default:
		return "unknown"
	}
}

const (
	// ManifestFile is the bundle manifest filename inside a .mbc directory.
	ManifestFile = "manifest.json"

	// ContainerFile is the weights container filename inside a .mbc directory.
	ContainerFile = "model.mbf"
)

var ErrUnrecognizedBundle = errors.New("bundle: unrecognized bundle format")

// DetectKind inspects a path and reports which bundle form it holds.
func DetectKind(path string) (Kind, error) {
	st, err := os.Stat(path)
	if err != nil {
		return KindUnknown, err
	}

	if !st.IsDir() {
		if strings.HasSuffix(strings.ToLower(path), ".safetensors") {
			return KindSafetensors, nil
		}
		return KindUnknown, fmt.Errorf("%w: %s", ErrUnrecognizedBundle, path)
	}

	if _, err := os.Stat(filepath.Join(path, ContainerFile)); err == nil {
		return KindCompiled, nil
	}
	return KindModelDir, nil
}
