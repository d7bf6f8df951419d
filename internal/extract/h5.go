package extract

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// hdf5Signature marks an HDF5 superblock. It may sit at offset 0 or at any
// 512-byte-doubling offset for files with a user block.
var hdf5Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// extractH5 validates the HDF5 superblock and reports container-level
// details. Full attribute traversal needs the native HDF5 library, which is
// deliberately not linked; richer extraction belongs to an out-of-process
// tool registered over this one.
func extractH5(path string) (Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open h5: %w", err)
	}
	defer f.Close()

	offset, err := findHDF5Superblock(f)
	if err != nil {
		return nil, err
	}

	// One byte past the signature: superblock version number.
	ver := make([]byte, 1)
	if _, err := f.ReadAt(ver, offset+int64(len(hdf5Signature))); err != nil {
		return nil, fmt.Errorf("read superblock version: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return Mapping{
		"format":             "HDF5",
		"superblock_version": int(ver[0]),
		"user_block":         offset > 0,
		"filesize":           info.Size(),
	}, nil
}

func findHDF5Superblock(f *os.File) (int64, error) {
	buf := make([]byte, len(hdf5Signature))
	// Signature search: offset 0, then 512, 1024, 2048, ...
	for offset := int64(0); ; {
		if _, err := f.ReadAt(buf, offset); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return 0, fmt.Errorf("no hdf5 signature found")
			}
			return 0, fmt.Errorf("read h5: %w", err)
		}
		if bytes.Equal(buf, hdf5Signature) {
			return offset, nil
		}
		if offset == 0 {
			offset = 512
		} else {
			offset *= 2
		}
		if offset > 1<<26 {
			return 0, fmt.Errorf("no hdf5 signature found")
		}
	}
}

// extractDM4 validates a DigitalMicrograph DM4 root header and reports
// container-level details.
func extractDM4(path string) (Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dm4: %w", err)
	}
	defer f.Close()

	// DM4 root header: version uint32, root length uint64, byte order
	// flag uint32, all big-endian.
	var hdr struct {
		Version   uint32
		RootLen   uint64
		ByteOrder uint32
	}
	if err := binary.Read(f, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read dm4 header: %w", err)
	}
	if hdr.Version != 4 {
		return nil, fmt.Errorf("not a dm4 file (version %d)", hdr.Version)
	}
	if hdr.ByteOrder > 1 {
		return nil, fmt.Errorf("invalid dm4 byte order flag %d", hdr.ByteOrder)
	}

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return Mapping{
		"format":        "DigitalMicrograph",
		"version":       int(hdr.Version),
		"tag_data_size": hdr.RootLen,
		"little_endian": hdr.ByteOrder == 1,
		"filesize":      info.Size(),
	}, nil
}
