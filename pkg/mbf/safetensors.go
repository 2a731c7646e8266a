package mbf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// A defensive cap; real-world headers are typically in the KBs.
	safetensorsMaxHeaderSize = 256 << 20 // 256 MiB
)

// SafetensorsTensorInfo describes a tensor payload within a single safetensors file.
// Start/End are absolute file offsets (End is exclusive).
//
// DType values follow the safetensors spec, e.g. "F32", "F16", "BF16", "I8", "U8", ...
// Shape is stored as int64 to avoid surprising overflow.
//
// Note: safetensors uses byte offsets relative to the data region; we convert to absolute.
type SafetensorsTensorInfo struct {
	DType string
	Shape []int64
	Start int64
	End   int64
}

func (ti SafetensorsTensorInfo) Size() int64 { return ti.End - ti.Start }

type safetensorsTensorHeader struct {
	DType       string  `json:"dtype"`
	Shape       []int64 `json:"shape"`
	DataOffsets []int64 `json:"data_offsets"`
}

// SafetensorsFile provides random access to tensors inside a single safetensors file.
//
// Keep the file open while copying tensors to avoid repeated open/close overhead.
// os.File ReadAt is safe for concurrent use.
type SafetensorsFile struct {
	Path      string
	f         *os.File
	dataStart int64
	Tensors   map[string]SafetensorsTensorInfo

	// Raw metadata (optional, may be nil).
	Metadata json.RawMessage
}

// OpenSafetensorsFile opens and parses a single .safetensors file.
func OpenSafetensorsFile(path string) (*SafetensorsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	sz, err := fileSize(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if sz < 8 {
		_ = f.Close()
		return nil, fmt.Errorf("safetensors: file too small: %s", path)
	}

	headerLenU64, err := readU64(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if headerLenU64 > safetensorsMaxHeaderSize {
		_ = f.Close()
		return nil, fmt.Errorf("safetensors: header too large (%d bytes): %s", headerLenU64, path)
	}
	headerLen := int64(headerLenU64)
	if 8+headerLen > sz {
		_ = f.Close()
		return nil, fmt.Errorf("safetensors: header exceeds file size: %s", path)
	}

	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		_ = f.Close()
		return nil, err
	}

	// Header is a JSON map where keys are tensor names (plus optional "__metadata__").
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerBytes, &raw); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	dataStart := int64(8) + headerLen

	// Optional metadata.
	meta := raw["__metadata__"]
	delete(raw, "__metadata__")

	tensors := make(map[string]SafetensorsTensorInfo, len(raw))
	for name, msg := range raw {
		var th safetensorsTensorHeader
		if err := json.Unmarshal(msg, &th); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("safetensors: parse tensor %q: %w", name, err)
		}
		if len(th.DataOffsets) != 2 {
			_ = f.Close()
			return nil, fmt.Errorf("safetensors: tensor %q: invalid data_offsets", name)
		}

		startRel, endRel := th.DataOffsets[0], th.DataOffsets[1]
		if startRel < 0 || endRel < 0 || endRel < startRel {
			_ = f.Close()
			return nil, fmt.Errorf("safetensors: tensor %q: invalid offsets", name)
		}

		startAbs := dataStart + startRel
		endAbs := dataStart + endRel
		if startAbs < dataStart || endAbs < startAbs || endAbs > sz {
			_ = f.Close()
			return nil, fmt.Errorf("safetensors: tensor %q: out-of-bounds data range", name)
		}

		if len(th.Shape) == 0 {
			_ = f.Close()
			return nil, fmt.Errorf("safetensors: tensor %q: empty shape", name)
		}
		for _, d := range th.Shape {
			if d <= 0 {
				_ = f.Close()
				return nil, fmt.Errorf("safetensors: tensor %q: invalid dim %d", name, d)
			}
		}

		tensors[name] = SafetensorsTensorInfo{
			DType: th.DType,
			Shape: th.Shape,
			Start: startAbs,
			End:   endAbs,
		}
	}

	return &SafetensorsFile{
		Path:      path,
		f:         f,
		dataStart: dataStart,
		Tensors:   tensors,
		Metadata:  meta,
	}, nil
}

func (sf *SafetensorsFile) Close() error {
	if sf == nil || sf.f == nil {
		return nil
	}
	err := sf.f.Close()
	sf.f = nil
	return err
}

func (sf *SafetensorsFile) Tensor(name string) (SafetensorsTensorInfo, bool) {
	if sf == nil {
		return SafetensorsTensorInfo{}, false
	}
	ti, ok := sf.Tensors[name]
	return ti, ok
}

func (sf *SafetensorsFile) SortedTensorNames() []string {
	if sf == nil {
		return nil
	}
	out := make([]string, 0, len(sf.Tensors))
	for name := range sf.Tensors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TensorReader returns a reader over the raw tensor bytes.
func (sf *SafetensorsFile) TensorReader(name string) (*io.SectionReader, SafetensorsTensorInfo, error) {
	if sf == nil || sf.f == nil {
		return nil, SafetensorsTensorInfo{}, errors.New("safetensors: file closed")
	}
	ti, ok := sf.Tensors[name]
	if !ok {
		return nil, SafetensorsTensorInfo{}, fmt.Errorf("safetensors: tensor not found: %s", name)
	}
	if ti.End < ti.Start {
		return nil, SafetensorsTensorInfo{}, fmt.Errorf("safetensors: tensor %q: invalid offsets", name)
	}
	return io.NewSectionReader(sf.f, ti.Start, ti.End-ti.Start), ti, nil
}

// ReadTensor reads the raw tensor bytes into memory.
func (sf *SafetensorsFile) ReadTensor(name string) ([]byte, SafetensorsTensorInfo, error) {
	r, ti, err := sf.TensorReader(name)
	if err != nil {
		return nil, SafetensorsTensorInfo{}, err
	}
	sz := ti.End - ti.Start
	buf := make([]byte, sz)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, SafetensorsTensorInfo{}, fmt.Errorf("safetensors: read tensor %q: %w", name, err)
	}
	return buf, ti, nil
}

// FindSafetensorsInDir resolves the single *.safetensors file in a model
// directory. Sharded checkpoints are out of scope for bundle compilation.
func FindSafetensorsInDir(dir string) (string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".safetensors") {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("safetensors: no .safetensors file in directory: %s", dir)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("safetensors: found %d .safetensors files in directory: %s", len(matches), dir)
	}
}

// SafetensorsDTypeInfo maps a safetensors dtype string onto the MBF dtype
// and its element size in bytes.
func SafetensorsDTypeInfo(dt string) (TensorDType, int, error) {
	switch strings.ToUpper(dt) {
	case "F32":
		return DTypeF32, 4, nil
	case "F16":
		return DTypeF16, 2, nil
	case "BF16":
		return DTypeBF16, 2, nil
	case "F64":
		return DTypeF64, 8, nil
	case "I8":
		return DTypeI8, 1, nil
	case "U8":
		return DTypeU8, 1, nil
	case "I16":
		return DTypeI16, 2, nil
	case "U16":
		return DTypeU16, 2, nil
	case "I32":
		return DTypeI32, 4, nil
	case "U32":
		return DTypeU32, 4, nil
	case "I64":
		return DTypeI64, 8, nil
	case "U64":
		return DTypeU64, 8, nil
	default:
		return DTypeUnknown, 0, fmt.Errorf("unsupported safetensors dtype %q", dt)
	}
}

func fileSize(f *os.File) (int64, error) {
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return st.Size(), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}
