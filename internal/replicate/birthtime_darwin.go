//go:build darwin

package replicate

import (
	"os"
	"syscall"
	"time"
)

// birthTime returns the file's creation time. macOS tracks a true birth
// time in the stat result.
func birthTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Birthtimespec.Sec, st.Birthtimespec.Nsec)
	}

	return info.ModTime()
}
