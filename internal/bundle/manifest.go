package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Manifest is the manifest.json payload of a compiled .mbc bundle.
type Manifest struct {
	Name        string    `json:"name"`
	UUID        string    `json:"uuid"`
	SpecVersion uint32    `json:"spec_version"`
	CreatedAt   time.Time `json:"created_at"`

	Arch         string `json:"arch,omitempty"`
	SourceFormat string `json:"source_format,omitempty"`

	Quant *QuantSummary `json:"quant,omitempty"`
}

// QuantSummary records what quantization the bundle carries.
type QuantSummary struct {
	Mode           string `json:"mode"`
	WeightBits     int    `json:"weight_bits"`
	ActivationBits int    `json:"activation_bits,omitempty"`
	TensorCount    int    `json:"tensor_count"`
}

// NewManifest builds a manifest for a freshly compiled bundle.
func NewManifest(name string, specVersion uint32) *Manifest {
	return &Manifest{
		Name:        name,
		UUID:        uuid.NewString(),
		SpecVersion: specVersion,
		CreatedAt:   time.Now().UTC(),
	}
}

// ReadManifest loads manifest.json from a .mbc bundle directory.
func ReadManifest(bundleDir string) (*Manifest, error) {
	b, err := os.ReadFile(filepath.Join(bundleDir, ManifestFile))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("bundle: parse manifest: %w", err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("bundle: manifest missing name")
	}
	return &m, nil
}

// WriteManifest writes manifest.json into a .mbc bundle directory.
func WriteManifest(bundleDir string, m *Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("bundle: encode manifest: %w", err)
	}
	b = append(b, '\n')
	return os.WriteFile(filepath.Join(bundleDir, ManifestFile), b, 0o644)
}
