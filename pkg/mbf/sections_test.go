package mbf

import (
	"testing"
)

func TestTensorIndexRoundTrip(t *testing.T) {
	t.Parallel()

	records := []TensorIndexRecord{
		{Name: "encoder.layer.0.attention.self.query.weight", DType: DTypeI8, Shape: []uint64{384, 384}, DataOff: 4096, DataSize: 384 * 384},
		{Name: "embeddings.word_embeddings.weight", DType: DTypeF32, Shape: []uint64{30522, 384}, DataOff: 151552, DataSize: 30522 * 384 * 4},
		{Name: "pooler.dense.bias", DType: DTypeF32, Shape: []uint64{384}, DataOff: 2048, DataSize: 384 * 4},
	}

	sec, err := EncodeTensorIndexSection(records)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	ti, err := ParseTensorIndexSection(sec)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if ti.Count() != len(records) {
		t.Fatalf("count mismatch: got %d want %d", ti.Count(), len(records))
	}

	// Entries are sorted by name on encode.
	first, err := ti.Name(0)
	if err != nil {
		t.Fatalf("name 0: %v", err)
	}
	if first != "embeddings.word_embeddings.weight" {
		t.Fatalf("expected sorted names, got first %q", first)
	}

	idx, ok := ti.Find("pooler.dense.bias")
	if !ok {
		t.Fatalf("Find failed for known tensor")
	}
	ent, err := ti.Entry(idx)
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if ent.DType != DTypeF32 || ent.DataOff != 2048 || ent.DataSize != 384*4 {
		t.Fatalf("entry mismatch: %+v", ent)
	}
	shape, err := ti.Shape(idx)
	if err != nil {
		t.Fatalf("shape: %v", err)
	}
	if len(shape) != 1 || shape[0] != 384 {
		t.Fatalf("shape mismatch: %v", shape)
	}

	if _, ok := ti.Find("does.not.exist"); ok {
		t.Fatalf("Find returned ok for missing tensor")
	}
}

func TestParseTensorIndexRejectsTruncated(t *testing.T) {
	t.Parallel()

	sec, err := EncodeTensorIndexSection([]TensorIndexRecord{
		{Name: "w", DType: DTypeF32, Shape: []uint64{4}, DataOff: 64, DataSize: 16},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := ParseTensorIndexSection(sec[:len(sec)-1]); err == nil {
		t.Fatalf("expected error for truncated section")
	}
}

func TestQuantInfoRoundTrip(t *testing.T) {
	t.Parallel()

	records := []QuantRecord{
		{TensorIndex: 0, Method: MethodLinearInt8, Domain: DomainWeights, MinClip: -0.5, MaxClip: 0.5},
		{TensorIndex: 0, Method: MethodLinearInt8, Domain: DomainActivations},
		{TensorIndex: 3, Method: MethodLinearInt8, Domain: DomainWeights, MinClip: -2, MaxClip: 2},
	}

	sec, err := EncodeQuantInfoSection(records)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	qi, err := ParseQuantInfoSection(sec)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if qi.Count() != len(records) {
		t.Fatalf("count mismatch: got %d", qi.Count())
	}

	r, ok := qi.WeightRecord(3)
	if !ok {
		t.Fatalf("missing weight record for tensor 3")
	}
	if r.MaxClip != 2 {
		t.Fatalf("max clip mismatch: got %g", r.MaxClip)
	}
	want := float32(2) / 127
	if r.Scale() != want {
		t.Fatalf("scale mismatch: got %g want %g", r.Scale(), want)
	}

	if _, ok := qi.WeightRecord(1); ok {
		t.Fatalf("unexpected weight record for tensor 1")
	}
}

func TestEncodeQuantInfoRejectsBadRecords(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  QuantRecord
	}{
		{"asymmetric clip", QuantRecord{Method: MethodLinearInt8, Domain: DomainWeights, MinClip: -1, MaxClip: 2}},
		{"negative max clip", QuantRecord{Method: MethodLinearInt8, Domain: DomainWeights, MinClip: 1, MaxClip: -1}},
		{"activation with clips", QuantRecord{Method: MethodLinearInt8, Domain: DomainActivations, MinClip: -1, MaxClip: 1}},
		{"unknown method", QuantRecord{Method: 99, Domain: DomainWeights}},
		{"nonzero reserved", QuantRecord{Method: MethodLinearInt8, Domain: DomainWeights, Reserved: [2]byte{1, 0}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := EncodeQuantInfoSection([]QuantRecord{tc.rec}); err == nil {
				t.Fatalf("expected encode error")
			}
		})
	}
}
