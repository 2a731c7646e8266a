package mbf

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// ModelInfoVersion is the on-disk version of the model info section payload.
const ModelInfoVersion uint32 = 1

// ModelInfo is the JSON payload of the ModelInfo section. It carries the
// descriptive metadata a consumer needs before touching any tensor data.
type ModelInfo struct {
	Name string `json:"name"`
	Arch string `json:"arch,omitempty"`

	HiddenSize uint32 `json:"hidden_size,omitempty"`
	LayerCount uint32 `json:"layer_count,omitempty"`

	// SourceFormat names the format the container was compiled from
	// ("mbc", "model-dir", "safetensors").
	SourceFormat string `json:"source_format,omitempty"`

	Extras map[string]any `json:"extras,omitempty"`
}

func EncodeModelInfo(mi *ModelInfo) ([]byte, error) {
	if mi == nil {
		return nil, errors.New("mbf: nil model info")
	}
	if mi.Name == "" {
		return nil, errors.New("mbf: model info requires a name")
	}
	b, err := json.Marshal(mi)
	if err != nil {
		return nil, fmt.Errorf("mbf: encode model info: %w", err)
	}
	return b, nil
}

func ParseModelInfo(data []byte) (*ModelInfo, error) {
	if len(data) == 0 {
		return nil, ErrCorruptFile
	}
	var mi ModelInfo
	if err := json.Unmarshal(data, &mi); err != nil {
		return nil, fmt.Errorf("%w: model info: %v", ErrCorruptFile, err)
	}
	if mi.Name == "" {
		return nil, fmt.Errorf("%w: model info missing name", ErrCorruptFile)
	}
	return &mi, nil
}
