package mbf

import (
	"encoding/binary"
	"errors"
	"math"
)

const (
	QuantInfoVersion uint32 = 1

	quantInfoHeaderSize = 8
	quantRecordSize     = 16
)

// QuantMethod identifies the numeric scheme applied to a tensor.
type QuantMethod uint8

const (
	// MethodLinearInt8 is symmetric linear 8-bit quantization: a single
	// per-tensor scale, zero point fixed at 0.
	MethodLinearInt8 QuantMethod = 1
)

// QuantDomain defines what the record describes.
type QuantDomain uint8

const (
	// DomainWeights records quantized weight payloads stored in TensorData.
	// MinClip/MaxClip carry the symmetric clip range: scale = MaxClip / 127.
	DomainWeights QuantDomain = 0

	// DomainActivations marks a tensor whose activations are quantized
	// dynamically at execution time. No payload changes; clips are zero.
	DomainActivations QuantDomain = 1
)

// QuantInfoHeader is the on-disk header for the QuantInfo payload.
type QuantInfoHeader struct {
	Version     uint32
	RecordCount uint32
}

// QuantRecord is the fixed-size metadata for a single quantized tensor.
// TOTAL SIZE: 16 bytes, 8-byte friendly for 64-bit readers.
type QuantRecord struct {
	TensorIndex uint32 // maps to the tensor index entry order

	Method QuantMethod
	Domain QuantDomain

	// PADDING: Reserved for future flags. Must be zero.
	Reserved [2]byte

	// Calibration stats (reconstruction source of truth).
	MinClip float32
	MaxClip float32
}

// Scale returns the dequantization scale for a weights record.
func (r QuantRecord) Scale() float32 {
	return r.MaxClip / 127
}

// QuantInfo is a parsed view over a QuantInfo section payload.
type QuantInfo struct {
	hdr     QuantInfoHeader
	records []QuantRecord
}

var errBadQuantInfo = errors.New("mbf: corrupt quantinfo section")

// ParseQuantInfoSection validates and returns a view over a QuantInfo section payload.
// Pass it File.SectionData(File.Section(SectionQuantInfo)).
func ParseQuantInfoSection(sec []byte) (*QuantInfo, error) {
	if len(sec) < quantInfoHeaderSize {
		return nil, ErrCorruptFile
	}

	hdr := QuantInfoHeader{
		Version:     binary.LittleEndian.Uint32(sec[0:4]),
		RecordCount: binary.LittleEndian.Uint32(sec[4:8]),
	}
	if hdr.Version != QuantInfoVersion {
		return nil, ErrUnsupportedVersion
	}

	need := uint64(quantInfoHeaderSize) + uint64(hdr.RecordCount)*quantRecordSize
	if need > uint64(len(sec)) {
		return nil, ErrCorruptFile
	}

	records := make([]QuantRecord, hdr.RecordCount)
	off := quantInfoHeaderSize
	for i := range records {
		b := sec[off : off+quantRecordSize]
		r := QuantRecord{
			TensorIndex: binary.LittleEndian.Uint32(b[0:4]),
			Method:      QuantMethod(b[4]),
			Domain:      QuantDomain(b[5]),
			MinClip:     math.Float32frombits(binary.LittleEndian.Uint32(b[8:12])),
			MaxClip:     math.Float32frombits(binary.LittleEndian.Uint32(b[12:16])),
		}
		copy(r.Reserved[:], b[6:8])
		if err := validateQuantRecord(r); err != nil {
			return nil, ErrCorruptFile
		}
		records[i] = r
		off += quantRecordSize
	}

	return &QuantInfo{hdr: hdr, records: records}, nil
}

func (qi *QuantInfo) Count() int {
	if qi == nil {
		return 0
	}
	return int(qi.hdr.RecordCount)
}

func (qi *QuantInfo) Record(i int) (QuantRecord, error) {
	if qi == nil || i < 0 || i >= int(qi.hdr.RecordCount) {
		return QuantRecord{}, ErrCorruptFile
	}
	return qi.records[i], nil
}

// Records returns the decoded record slice.
func (qi *QuantInfo) Records() []QuantRecord {
	if qi == nil {
		return nil
	}
	return qi.records
}

// WeightRecord returns the weights-domain record for a tensor index entry, if any.
func (qi *QuantInfo) WeightRecord(tensorIndex int) (QuantRecord, bool) {
	if qi == nil || tensorIndex < 0 {
		return QuantRecord{}, false
	}
	for _, r := range qi.records {
		if int(r.TensorIndex) == tensorIndex && r.Domain == DomainWeights {
			return r, true
		}
	}
	return QuantRecord{}, false
}

// EncodeQuantInfoSection builds a QuantInfo section payload (v1).
func EncodeQuantInfoSection(records []QuantRecord) ([]byte, error) {
	if len(records) > int(^uint32(0)) {
		return nil, errors.New("mbf: too many quant records")
	}

	total := quantInfoHeaderSize + len(records)*quantRecordSize
	out := make([]byte, total)
	binary.LittleEndian.PutUint32(out[0:4], QuantInfoVersion)
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(records)))

	off := quantInfoHeaderSize
	for _, r := range records {
		if err := validateQuantRecord(r); err != nil {
			return nil, err
		}

		binary.LittleEndian.PutUint32(out[off+0:off+4], r.TensorIndex)
		out[off+4] = byte(r.Method)
		out[off+5] = byte(r.Domain)
		copy(out[off+6:off+8], r.Reserved[:])
		binary.LittleEndian.PutUint32(out[off+8:off+12], math.Float32bits(r.MinClip))
		binary.LittleEndian.PutUint32(out[off+12:off+16], math.Float32bits(r.MaxClip))
		off += quantRecordSize
	}

	return out, nil
}

func validateQuantRecord(r QuantRecord) error {
	if r.Method != MethodLinearInt8 {
		return errBadQuantInfo
	}
	if r.Reserved[0] != 0 || r.Reserved[1] != 0 {
		return errBadQuantInfo
	}
	switch r.Domain {
	case DomainWeights:
		// Symmetric: clip range centred at zero.
		if r.MaxClip < 0 || r.MinClip != -r.MaxClip {
			return errBadQuantInfo
		}
		if math.IsNaN(float64(r.MaxClip)) || math.IsInf(float64(r.MaxClip), 0) {
			return errBadQuantInfo
		}
	case DomainActivations:
		// Dynamic ranges are computed at execution time.
		if r.MinClip != 0 || r.MaxClip != 0 {
			return errBadQuantInfo
		}
	default:
		return errBadQuantInfo
	}
	return nil
}
