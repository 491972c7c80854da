//go:build !linux

package scsi

import (
	"fmt"
	"runtime"
	"time"
)

// OpenSGIO is only available on Linux. Use OpenImage to work with an image file instead.
func OpenSGIO(path string, timeout time.Duration) (Transport, error) {
	return nil, fmt.Errorf("open %s: %w: raw device access is not supported on %s", path, ErrTransport, runtime.GOOS)
}
