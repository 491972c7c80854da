package option

import (
	"time"

	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/logging"
	"github.com/bgrewell/readiso/pkg/scsi"
)

// CopyProgressCallback is called after each batch of blocks is written.
// Parameters:
// - blocksCopied: The number of blocks written so far.
// - bytesWritten: The number of bytes written so far.
// - totalBytes: The size the image will have when the copy completes.
// - elapsed: The time since the copy started.
type CopyProgressCallback func(
	blocksCopied int64,
	bytesWritten int64,
	totalBytes int64,
	elapsed time.Duration,
)

type OpenOptions struct {
	Opener               scsi.Opener
	Transport            scsi.Transport
	Timeout              time.Duration
	ReadyDelay           time.Duration
	ReadBlocks           int
	LockDir              string
	CopyProgressCallback CopyProgressCallback
	Logger               *logging.Logger
}

type OpenOption func(*OpenOptions)

// DefaultOpenOptions returns the options used when none are given.
func DefaultOpenOptions() *OpenOptions {
	return &OpenOptions{
		Opener:     scsi.OpenSGIO,
		Timeout:    consts.DEFAULT_TIMEOUT,
		ReadyDelay: consts.DEFAULT_READY_DELAY,
		ReadBlocks: consts.DEFAULT_READ_BLOCKS,
		Logger:     logging.DefaultLogger(),
	}
}

// WithCopyProgress sets a progress callback function that will be called with progress updates.
func WithCopyProgress(callback CopyProgressCallback) OpenOption {
	return func(o *OpenOptions) {
		o.CopyProgressCallback = callback
	}
}

func WithLogger(logger *logging.Logger) OpenOption {
	return func(o *OpenOptions) {
		o.Logger = logger
	}
}

// WithOpener replaces the function used to open the device path, for example with scsi.OpenImage.
func WithOpener(opener scsi.Opener) OpenOption {
	return func(o *OpenOptions) {
		o.Opener = opener
	}
}

// WithTransport uses an already open transport. The session takes ownership and closes it.
func WithTransport(transport scsi.Transport) OpenOption {
	return func(o *OpenOptions) {
		o.Transport = transport
	}
}

func WithTimeout(timeout time.Duration) OpenOption {
	return func(o *OpenOptions) {
		o.Timeout = timeout
	}
}

func WithReadyDelay(delay time.Duration) OpenOption {
	return func(o *OpenOptions) {
		o.ReadyDelay = delay
	}
}

// WithReadBlocks sets how many blocks are requested per read.
func WithReadBlocks(blocks int) OpenOption {
	return func(o *OpenOptions) {
		o.ReadBlocks = blocks
	}
}

// WithLockDir sets the directory holding the per-device lock files. An empty directory disables locking.
func WithLockDir(dir string) OpenOption {
	return func(o *OpenOptions) {
		o.LockDir = dir
	}
}
