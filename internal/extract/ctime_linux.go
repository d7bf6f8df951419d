//go:build linux

package extract

import (
	"os"
	"syscall"
	"time"
)

// createdTime returns the inode change time, the closest thing Linux offers
// to a creation stamp.
func createdTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}
	return info.ModTime()
}
