package extract

import (
	"os"
	"path/filepath"
	"time"
)

// basicMetadata returns the generic stat-derived fields every file gets when
// no specialized extractor applies or one failed.
func basicMetadata(path string) (Mapping, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	return Mapping{
		"filename":      filepath.Base(path),
		"filesize":      info.Size(),
		"modified_time": info.ModTime().Format(time.RFC3339),
		"created_time":  createdTime(info).Format(time.RFC3339),
		"file_type":     filepath.Ext(path),
	}, nil
}
