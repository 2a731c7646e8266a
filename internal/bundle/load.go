package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/samcharles93/anequant/pkg/mbf"
)

// Load reads a model bundle into a Model handle. The bundle form is
// detected from the path; see DetectKind.
func Load(path string) (*Model, error) {
	kind, err := DetectKind(path)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindCompiled:
		return loadCompiled(path)
	case KindModelDir:
		return loadModelDir(path)
	case KindSafetensors:
		return loadSafetensors(path, modelNameFromPath(path))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnrecognizedBundle, path)
	}
}

func loadCompiled(dir string) (*Model, error) {
	mf, err := mbf.Open(filepath.Join(dir, ContainerFile))
	if err != nil {
		return nil, err
	}
	defer func() { _ = mf.Close() }()

	m := &Model{
		Name:         strings.TrimSuffix(filepath.Base(dir), ".mbc"),
		SpecVersion:  mf.Header.SpecVersion(),
		SourceFormat: KindCompiled,
	}

	if mi := mf.Section(mbf.SectionModelInfo); mi != nil {
		info, err := mbf.ParseModelInfo(mf.SectionData(mi))
		if err != nil {
			return nil, err
		}
		m.Name = info.Name
		m.Arch = info.Arch
		m.HiddenSize = info.HiddenSize
		m.LayerCount = info.LayerCount
	}

	// Manifest is advisory on load; the container is the source of truth.
	if man, err := ReadManifest(dir); err == nil && man.Arch != "" && m.Arch == "" {
		m.Arch = man.Arch
	}

	idxSec := mf.Section(mbf.SectionTensorIndex)
	if idxSec == nil {
		return nil, fmt.Errorf("bundle: %s: missing tensor index section", dir)
	}
	idx, err := mbf.ParseTensorIndexSection(mf.SectionData(idxSec))
	if err != nil {
		return nil, err
	}

	m.Tensors = make([]Tensor, 0, idx.Count())
	for i := 0; i < idx.Count(); i++ {
		name, err := idx.Name(i)
		if err != nil {
			return nil, err
		}
		entry, err := idx.Entry(i)
		if err != nil {
			return nil, err
		}
		shape, err := idx.Shape(i)
		if err != nil {
			return nil, err
		}
		raw, err := idx.TensorData(mf, i)
		if err != nil {
			return nil, err
		}
		// The mmap goes away on Close; handles own their payloads.
		data := make([]byte, len(raw))
		copy(data, raw)

		m.Tensors = append(m.Tensors, Tensor{
			Name:  strings.Clone(name),
			DType: entry.DType,
			Shape: shape,
			Data:  data,
		})
	}

	if qiSec := mf.Section(mbf.SectionQuantInfo); qiSec != nil {
		qi, err := mbf.ParseQuantInfoSection(mf.SectionData(qiSec))
		if err != nil {
			return nil, err
		}
		m.QuantRecords = append([]mbf.QuantRecord(nil), qi.Records()...)
	}

	return m, nil
}

func loadModelDir(dir string) (*Model, error) {
	stPath, err := mbf.FindSafetensorsInDir(dir)
	if err != nil {
		return nil, err
	}
	m, err := loadSafetensors(stPath, filepath.Base(dir))
	if err != nil {
		return nil, err
	}
	m.SourceFormat = KindModelDir

	if cfg, err := loadHFConfig(dir); err == nil {
		m.Arch = cfg.ModelType
		m.HiddenSize = cfg.HiddenSize
		m.LayerCount = cfg.NumHiddenLayers
	}
	return m, nil
}

func loadSafetensors(path, name string) (*Model, error) {
	sf, err := mbf.OpenSafetensorsFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sf.Close() }()

	m := &Model{
		Name:         name,
		SpecVersion:  uint32(mbf.CurrentMajor)<<16 | uint32(mbf.CurrentMinor),
		SourceFormat: KindSafetensors,
	}

	for _, tname := range sf.SortedTensorNames() {
		raw, info, err := sf.ReadTensor(tname)
		if err != nil {
			return nil, err
		}
		dt, elemSize, err := mbf.SafetensorsDTypeInfo(info.DType)
		if err != nil {
			return nil, fmt.Errorf("bundle: tensor %q: %w", tname, err)
		}

		shape := make([]uint64, len(info.Shape))
		var n uint64 = 1
		for i, d := range info.Shape {
			shape[i] = uint64(d)
			n *= uint64(d)
		}
		if n*uint64(elemSize) != uint64(len(raw)) {
			return nil, fmt.Errorf("bundle: tensor %q: dtype/shape mismatch (want %d bytes, have %d)",
				tname, n*uint64(elemSize), len(raw))
		}

		m.Tensors = append(m.Tensors, Tensor{
			Name:  tname,
			DType: dt,
			Shape: shape,
			Data:  raw,
		})
	}
	return m, nil
}

func modelNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

type hfConfig struct {
	ModelType       string `json:"model_type"`
	HiddenSize      uint32 `json:"hidden_size"`
	NumHiddenLayers uint32 `json:"num_hidden_layers"`
}

func loadHFConfig(dir string) (*hfConfig, error) {
	b, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, err
	}
	var cfg hfConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("bundle: parse config.json: %w", err)
	}
	return &cfg, nil
}
