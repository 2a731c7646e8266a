// Package mbf implements the Model Bundle Format container.
//
// MBF is a single-file, memory-mappable container for the weights and
// metadata of a compiled model bundle. It describes structure and data
// only and never implies runtime behaviour.
package mbf

import "encoding/binary"

const (
	// MagicMBF is the file magic for all MBF containers.
	// It is encoded as "MBF\0".
	MagicMBF = "MBF\x00"

	// Current Major Version: Any change indicates a breaking format change.
	CurrentMajor uint16 = 1

	// Current Minor Version: Versions may add new optional sections or fields.
	CurrentMinor uint16 = 1

	// FlagQuantizedWeights marks containers whose TensorData holds one or
	// more quantized payloads described by the QuantInfo section.
	FlagQuantizedWeights uint64 = 1 << 0
)

const (
	mbfHeaderSize  = 40
	mbfSectionSize = 24
	mbfAlign       = 8
)

type SectionType uint32

const (
	SectionModelInfo   SectionType = 0x0001
	SectionQuantInfo   SectionType = 0x0002
	SectionTensorIndex SectionType = 0x0003
	SectionTensorData  SectionType = 0x0004
)

type MBFHeader struct {
	Magic            [4]byte
	Major            uint16
	Minor            uint16
	HeaderSize       uint32
	SectionCount     uint32
	SectionDirOffset uint64
	FileSize         uint64
	Flags            uint64
}

type MBFSection struct {
	Type    uint32
	Version uint32
	Offset  uint64
	Size    uint64
}

func (h *MBFHeader) Valid() bool {
	if string(h.Magic[:]) != MagicMBF {
		return false
	}
	if h.HeaderSize < mbfHeaderSize {
		return false
	}
	if h.SectionCount == 0 {
		return false
	}
	return true
}

func (h *MBFHeader) Compatible() bool {
	return h.Major == CurrentMajor
}

// SpecVersion packs the format version into a single comparable value.
func (h *MBFHeader) SpecVersion() uint32 {
	return uint32(h.Major)<<16 | uint32(h.Minor)
}

func encodeHeader(dst []byte, h MBFHeader) bool {
	if len(dst) < mbfHeaderSize {
		return false
	}
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[4:6], h.Major)
	binary.LittleEndian.PutUint16(dst[6:8], h.Minor)
	binary.LittleEndian.PutUint32(dst[8:12], h.HeaderSize)
	binary.LittleEndian.PutUint32(dst[12:16], h.SectionCount)
	binary.LittleEndian.PutUint64(dst[16:24], h.SectionDirOffset)
	binary.LittleEndian.PutUint64(dst[24:32], h.FileSize)
	binary.LittleEndian.PutUint64(dst[32:40], h.Flags)
	return true
}

func decodeHeader(src []byte) (MBFHeader, bool) {
	if len(src) < mbfHeaderSize {
		return MBFHeader{}, false
	}
	var h MBFHeader
	copy(h.Magic[:], src[0:4])
	h.Major = binary.LittleEndian.Uint16(src[4:6])
	h.Minor = binary.LittleEndian.Uint16(src[6:8])
	h.HeaderSize = binary.LittleEndian.Uint32(src[8:12])
	h.SectionCount = binary.LittleEndian.Uint32(src[12:16])
	h.SectionDirOffset = binary.LittleEndian.Uint64(src[16:24])
	h.FileSize = binary.LittleEndian.Uint64(src[24:32])
	h.Flags = binary.LittleEndian.Uint64(src[32:40])
	return h, true
}

func encodeSection(dst []byte, s MBFSection) bool {
	if len(dst) < mbfSectionSize {
		return false
	}
	binary.LittleEndian.PutUint32(dst[0:4], s.Type)
	binary.LittleEndian.PutUint32(dst[4:8], s.Version)
	binary.LittleEndian.PutUint64(dst[8:16], s.Offset)
	binary.LittleEndian.PutUint64(dst[16:24], s.Size)
	return true
}

func decodeSection(src []byte) (MBFSection, bool) {
	if len(src) < mbfSectionSize {
		return MBFSection{}, false
	}
	var s MBFSection
	s.Type = binary.LittleEndian.Uint32(src[0:4])
	s.Version = binary.LittleEndian.Uint32(src[4:8])
	s.Offset = binary.LittleEndian.Uint64(src[8:16])
	s.Size = binary.LittleEndian.Uint64(src[16:24])
	return s, true
}
