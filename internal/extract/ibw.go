package extract

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"
)

// Igor binary wave headers, per WaveMetrics technical note TN003. Only the
// sizes needed to locate the wave note are decoded; the numeric payload is
// not interesting as catalog metadata.
type ibwBinHeader5 struct {
	Version        int16
	Checksum       int16
	WfmSize        int32
	FormulaSize    int32
	NoteSize       int32
	DataEUnitsSize int32
	DimEUnitsSize  [4]int32
	DimLabelsSize  [4]int32
	SIndicesSize   int32
	OptionsSize1   int32
	OptionsSize2   int32
}

type ibwBinHeader2 struct {
	Version  int16
	WfmSize  int32
	NoteSize int32
	PictSize int32
	Checksum int16
}

// extractIBW reads the acquisition parameters embedded in an Igor binary
// wave note: CR-separated "key: value" pairs written by the instrument.
func extractIBW(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ibw: %w", err)
	}
	if len(data) < 16 {
		return nil, fmt.Errorf("ibw file too short (%d bytes)", len(data))
	}

	order, version, err := ibwByteOrder(data)
	if err != nil {
		return nil, err
	}

	var noteOff, noteLen int64
	switch version {
	case 2:
		var h ibwBinHeader2
		if err := binary.Read(bytes.NewReader(data), order, &h); err != nil {
			return nil, fmt.Errorf("decode ibw header: %w", err)
		}
		noteOff = 16 + int64(h.WfmSize)
		noteLen = int64(h.NoteSize)
	case 5:
		if len(data) < 64 {
			return nil, fmt.Errorf("ibw v5 file too short (%d bytes)", len(data))
		}
		var h ibwBinHeader5
		if err := binary.Read(bytes.NewReader(data), order, &h); err != nil {
			return nil, fmt.Errorf("decode ibw header: %w", err)
		}
		noteOff = 64 + int64(h.WfmSize) + int64(h.FormulaSize)
		noteLen = int64(h.NoteSize)
	default:
		return nil, fmt.Errorf("unsupported ibw version %d", version)
	}

	if noteLen <= 0 {
		return nil, fmt.Errorf("ibw wave carries no note")
	}
	if noteOff < 0 || noteOff+noteLen > int64(len(data)) {
		return nil, fmt.Errorf("ibw note out of bounds (offset %d, size %d, file %d)", noteOff, noteLen, len(data))
	}

	return parseWaveNote(string(data[noteOff : noteOff+noteLen])), nil
}

// ibwByteOrder detects endianness from the version field, which is a small
// positive integer in the file's native order.
func ibwByteOrder(data []byte) (binary.ByteOrder, int16, error) {
	le := int16(binary.LittleEndian.Uint16(data[:2]))
	if le >= 1 && le <= 5 {
		return binary.LittleEndian, le, nil
	}
	be := int16(binary.BigEndian.Uint16(data[:2]))
	if be >= 1 && be <= 5 {
		return binary.BigEndian, be, nil
	}
	return nil, 0, fmt.Errorf("not an igor binary wave (version field %d/%d)", le, be)
}

// parseWaveNote splits the note into key/value pairs, applying the scalar
// bounds. Dots in keys are flattened to underscores so the catalog does not
// interpret them as structure.
func parseWaveNote(note string) Mapping {
	meta := Mapping{}

	note = strings.TrimRight(note, "\r")
	for _, line := range strings.Split(note, "\r") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.ReplaceAll(strings.TrimSpace(parts[0]), ".", "_")
		val := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		if v, ok := normalizeScalar(val); ok {
			meta[key] = v
		}
	}
	return meta
}
