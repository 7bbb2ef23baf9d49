//go:build linux

package replicate

import (
	"os"
	"syscall"
	"time"
)

// birthTime returns the file's creation time. Linux does not expose a
// birth time through stat, so the inode change time stands in for it.
func birthTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}

	return info.ModTime()
}
