package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/samcharles93/anequant/pkg/mbf"
)

const tensorAlign = 64

// SaveCompiled persists a Model handle as a .mbc bundle directory,
// replacing any existing bundle at the path.
func SaveCompiled(m *Model, dir string) error {
	if m == nil {
		return fmt.Errorf("bundle: nil model")
	}
	if len(m.Tensors) == 0 {
		return fmt.Errorf("bundle: model %q has no tensors", m.Name)
	}

	// Last writer wins: the output path is owned by this tool.
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	outF, err := os.Create(filepath.Join(dir, ContainerFile))
	if err != nil {
		return err
	}
	defer func() { _ = outF.Close() }()

	w, err := mbf.NewWriter(outF)
	if err != nil {
		return err
	}

	miBytes, err := mbf.EncodeModelInfo(&mbf.ModelInfo{
		Name:         m.Name,
		Arch:         m.Arch,
		HiddenSize:   m.HiddenSize,
		LayerCount:   m.LayerCount,
		SourceFormat: m.SourceFormat.String(),
	})
	if err != nil {
		return err
	}
	if err := w.WriteSection(mbf.SectionModelInfo, mbf.ModelInfoVersion, miBytes); err != nil {
		return err
	}

	// The tensor index is stored sorted by name; write payloads in the
	// same order and remap quant record indices to match.
	order := make([]int, len(m.Tensors))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return m.Tensors[order[a]].Name < m.Tensors[order[b]].Name
	})
	newIdx := make(map[int]int, len(order))
	for pos, i := range order {
		newIdx[i] = pos
	}

	// Tensor data (streaming, 64-byte aligned payloads).
	td, err := w.BeginSection(mbf.SectionTensorData, 1)
	if err != nil {
		return err
	}

	recs := make([]mbf.TensorIndexRecord, 0, len(m.Tensors))
	for _, i := range order {
		t := &m.Tensors[i]
		if err := td.Align(tensorAlign); err != nil {
			return err
		}
		off, err := td.CurrentAbsOffset()
		if err != nil {
			return err
		}
		if _, err := td.Write(t.Data); err != nil {
			return fmt.Errorf("bundle: tensor %q: %w", t.Name, err)
		}
		recs = append(recs, mbf.TensorIndexRecord{
			Name:     t.Name,
			DType:    t.DType,
			Shape:    t.Shape,
			DataOff:  off,
			DataSize: uint64(len(t.Data)),
		})
	}
	if err := td.End(); err != nil {
		return err
	}

	idxBytes, err := mbf.EncodeTensorIndexSection(recs)
	if err != nil {
		return err
	}
	if err := w.WriteSection(mbf.SectionTensorIndex, mbf.TensorIndexVersion, idxBytes); err != nil {
		return err
	}

	if len(m.QuantRecords) > 0 {
		qrecs := make([]mbf.QuantRecord, len(m.QuantRecords))
		for i, r := range m.QuantRecords {
			pos, ok := newIdx[int(r.TensorIndex)]
			if !ok {
				return fmt.Errorf("bundle: quant record %d references missing tensor %d", i, r.TensorIndex)
			}
			r.TensorIndex = uint32(pos)
			qrecs[i] = r
		}
		qiBytes, err := mbf.EncodeQuantInfoSection(qrecs)
		if err != nil {
			return err
		}
		if err := w.WriteSection(mbf.SectionQuantInfo, mbf.QuantInfoVersion, qiBytes); err != nil {
			return err
		}
		if m.Quantized() {
			_ = w.AddFlags(mbf.FlagQuantizedWeights)
		}
	}

	if err := w.Finalise(); err != nil {
		return err
	}
	if err := outF.Close(); err != nil {
		return err
	}

	man := NewManifest(m.Name, m.SpecVersion)
	man.Arch = m.Arch
	man.SourceFormat = m.SourceFormat.String()
	if m.Quantized() {
		man.Quant = quantSummary(m)
	}
	return WriteManifest(dir, man)
}

func quantSummary(m *Model) *QuantSummary {
	s := &QuantSummary{
		Mode:       "linear_symmetric",
		WeightBits: 8,
	}
	for _, r := range m.QuantRecords {
		switch r.Domain {
		case mbf.DomainWeights:
			s.TensorCount++
		case mbf.DomainActivations:
			s.ActivationBits = 8
		}
	}
	return s
}
