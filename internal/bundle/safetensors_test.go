package bundle

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"testing"
)

type stTensor struct {
	dtype string
	shape []int64
	data  []byte
}

func f32Bytes(vals ...float32) []byte {
	out := make([]byte, len(vals)*4)
	for i, v := range vals {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

// writeSafetensors builds a minimal safetensors file: an 8-byte
// little-endian header length, the JSON header, then the data region.
func writeSafetensors(t *testing.T, path string, tensors map[string]stTensor) {
	t.Helper()

	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	var entries []string
	offset := 0
	var data []byte
	for _, name := range names {
		ti := tensors[name]
		end := offset + len(ti.data)
		shape := make([]string, len(ti.shape))
		for i, d := range ti.shape {
			shape[i] = fmt.Sprintf("%d", d)
		}
		entries = append(entries, fmt.Sprintf(
			`%q:{"dtype":%q,"shape":[%s],"data_offsets":[%d,%d]}`,
			name, ti.dtype, strings.Join(shape, ","), offset, end))
		data = append(data, ti.data...)
		offset = end
	}
	header := "{" + strings.Join(entries, ",") + "}"

	buf := make([]byte, 8, 8+len(header)+len(data))
	binary.LittleEndian.PutUint64(buf, uint64(len(header)))
	buf = append(buf, header...)
	buf = append(buf, data...)

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("write safetensors: %v", err)
	}
}
