//go:build !darwin && !linux

package replicate

import (
	"os"
	"time"
)

// birthTime returns the file's creation time. Platforms without a
// queryable birth time fall back to the modification time.
func birthTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
