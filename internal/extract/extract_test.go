package extract

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFileMetadataUnsupportedType(t *testing.T) {
	path := writeFile(t, "mystery.zzz", []byte("opaque"))

	m, err := Default().FileMetadata(path)
	require.NoError(t, err)

	assert.Equal(t, "mystery.zzz", m["filename"])
	assert.Equal(t, int64(6), m["filesize"])
	assert.Equal(t, ".zzz", m["file_type"])
	assert.Equal(t, true, m["unsupported_type"])
	assert.NotContains(t, m, "error")
	assert.Contains(t, m, "modified_time")
	assert.Contains(t, m, "created_time")
}

func TestFileMetadataCorruptRecognizedType(t *testing.T) {
	path := writeFile(t, "broken.ibw", []byte("zz"))

	m, err := Default().FileMetadata(path)
	require.NoError(t, err)

	assert.Equal(t, "broken.ibw", m["filename"])
	assert.Equal(t, ".ibw", m["file_type"])
	assert.NotEmpty(t, m["error"])
}

func TestFileMetadataStatFailurePropagates(t *testing.T) {
	_, err := Default().FileMetadata(filepath.Join(t.TempDir(), "gone.zzz"))
	require.Error(t, err)
}

func TestFileMetadataJSON(t *testing.T) {
	path := writeFile(t, "sample.json", []byte(`{"a":1}`))

	m, err := Default().FileMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, float64(1), m["a"])
	assert.NotContains(t, m, "error")
}

func TestJSONNonObjectWrapped(t *testing.T) {
	path := writeFile(t, "list.json", []byte(`[1,2,3]`))

	m, err := extractJSON(path)
	require.NoError(t, err)
	assert.Contains(t, m, "content")
}

func TestNormalizeScalar(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want any
		kept bool
	}{
		{"eleven chars dropped", "12345678901", nil, false},
		{"nine chars kept as int", "123456789", int64(123456789), true},
		{"integral float collapses", "3.0", int64(3), true},
		{"fraction stays float", "2.5", 2.5, true},
		{"infinity dropped", "inf", nil, false},
		{"negative infinity dropped", "-inf", nil, false},
		{"nan dropped", "nan", nil, false},
		{"short string kept", "on", "on", true},
		{"long string dropped", "calibration", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := normalizeScalar(tt.in)
			assert.Equal(t, tt.kept, ok)
			if tt.kept {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestNormalizeValueExemptsStructures(t *testing.T) {
	tree := map[string]any{"deeply": map[string]any{"nested": "and very long value"}}
	got, ok := normalizeValue(tree)
	require.True(t, ok)
	assert.Equal(t, tree, got)
}

func TestExtractXRDML(t *testing.T) {
	doc := `<?xml version="1.0"?>
<xrdMeasurement>
  <startPosition>10.01</startPosition>
  <endPosition>79.99</endPosition>
  <author>a very long author name that exceeds the bound</author>
  <counts>3</counts>
</xrdMeasurement>`
	path := writeFile(t, "scan.xrdml", []byte(doc))

	m, err := extractXRDML(path)
	require.NoError(t, err)
	assert.Equal(t, 10.01, m["startPosition"])
	assert.Equal(t, 79.99, m["endPosition"])
	assert.Equal(t, int64(3), m["counts"])
	assert.NotContains(t, m, "author")
}

func TestExtractXRDMLMalformed(t *testing.T) {
	path := writeFile(t, "scan.xrdml", []byte("<xrd><unclosed>"))
	_, err := extractXRDML(path)
	require.Error(t, err)
}

func synthIBW(t *testing.T, note string) []byte {
	t.Helper()
	h := ibwBinHeader5{Version: 5, NoteSize: int32(len(note))}
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, &h))
	buf.WriteString(note)
	return buf.Bytes()
}

func TestExtractIBWNote(t *testing.T) {
	note := "ScanRate: 1.5\rScanLines: 256\rSetpoint.V: 0.75\rImagingMode: verylongmodename\rDriveAmp: inf\r"
	path := writeFile(t, "wave.ibw", synthIBW(t, note))

	m, err := extractIBW(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, m["ScanRate"])
	assert.Equal(t, int64(256), m["ScanLines"])
	assert.Equal(t, 0.75, m["Setpoint_V"])
	assert.NotContains(t, m, "ImagingMode")
	assert.NotContains(t, m, "DriveAmp")
}

func TestExtractIBWNoNote(t *testing.T) {
	path := writeFile(t, "wave.ibw", synthIBW(t, ""))
	_, err := extractIBW(path)
	require.Error(t, err)
}

func TestExtractIBWWrongMagic(t *testing.T) {
	path := writeFile(t, "wave.ibw", []byte{0xff, 0xff, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	_, err := extractIBW(path)
	require.Error(t, err)
}

func TestExtractH5Superblock(t *testing.T) {
	data := append(append([]byte{}, hdf5Signature...), 2)
	path := writeFile(t, "be.h5", data)

	m, err := extractH5(path)
	require.NoError(t, err)
	assert.Equal(t, "HDF5", m["format"])
	assert.Equal(t, 2, m["superblock_version"])
	assert.Equal(t, false, m["user_block"])
}

func TestExtractH5NotHDF5(t *testing.T) {
	path := writeFile(t, "fake.h5", []byte("definitely not hdf5 data"))
	_, err := extractH5(path)
	require.Error(t, err)
}

func TestExtractDM4Header(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.BigEndian, struct {
		Version   uint32
		RootLen   uint64
		ByteOrder uint32
	}{4, 1024, 1}))
	path := writeFile(t, "image.dm4", buf.Bytes())

	m, err := extractDM4(path)
	require.NoError(t, err)
	assert.Equal(t, "DigitalMicrograph", m["format"])
	assert.Equal(t, 4, m["version"])
	assert.Equal(t, true, m["little_endian"])
}

func TestRegistryDispatchIsCaseInsensitive(t *testing.T) {
	path := writeFile(t, "UPPER.JSON", []byte(`{"k":"v"}`))

	m, err := Default().FileMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, "v", m["k"])
}

func TestRegisterCustomExtractor(t *testing.T) {
	r := NewRegistry()
	r.Register(".xyz", Func(func(string) (Mapping, error) {
		return Mapping{"custom": true}, nil
	}))

	path := writeFile(t, "probe.xyz", []byte("ignored"))
	m, err := r.FileMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, true, m["custom"])
}
