package copier

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/logging"
)

// SectorReader reads count blocks from lba. A reply shorter than count*blockSize marks the end of readable data.
type SectorReader interface {
	ReadBlocks(lba int64, count, blockSize int) ([]byte, error)
}

// Sink receives the image. Truncate is only called when the last batch overshot the image size.
type Sink interface {
	io.Writer
	Truncate(size int64) error
}

// Progress is reported after every batch.
type Progress struct {
	BlocksCopied int64
	BytesWritten int64
	Elapsed      time.Duration
}

// ProgressCallback receives progress updates. target is the number of bytes the copy aims for.
type ProgressCallback func(p Progress, target int64)

// Result describes a finished copy.
type Result struct {
	Progress
	// Target is the number of bytes that should have been written.
	Target int64
	// Complete is true when BytesWritten equals Target.
	Complete bool
	// ShortRead is true when the copy stopped because the drive returned less than asked for.
	ShortRead bool
	// ReadErr is the device error that stopped the copy, if any.
	ReadErr error
	// Digest is the checksum of the first Target bytes, when a hash was configured.
	Digest []byte
}

// HexDigest renders the digest as lowercase hex.
func (r *Result) HexDigest() string {
	return hex.EncodeToString(r.Digest)
}

// Copier streams a block range from a SectorReader into a Sink.
type Copier struct {
	Reader      SectorReader
	BlockSize   int
	BatchBlocks int
	// Hash, when set, is fed every byte that ends up in the image.
	Hash     hash.Hash
	Progress ProgressCallback
	Logger   *logging.Logger
}

// Copy reads blocks starting at startLBA and writes exactly blocks*BlockSize bytes to sink, or fewer when the
// drive stops early. The error return is reserved for sink failures; a device error ends the copy and is recorded in
// Result.ReadErr.
func (c *Copier) Copy(startLBA, blocks int64, sink Sink) (*Result, error) {
	if c.Reader == nil {
		return nil, errors.New("copier has no reader")
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	blockSize := c.BlockSize
	if blockSize <= 0 {
		blockSize = consts.ISO9660_SECTOR_SIZE
	}
	batch := c.BatchBlocks
	if batch <= 0 {
		batch = consts.DEFAULT_READ_BLOCKS
	}
	if blocks < 0 {
		return nil, fmt.Errorf("invalid block count %d", blocks)
	}

	target := blocks * int64(blockSize)
	result := &Result{Target: target}
	started := time.Now()

	var hashed int64
	for result.BytesWritten < target {
		count := batch
		if remaining := blocks - result.BlocksCopied; remaining < int64(count) {
			count = int(remaining)
		}
		requested := count * blockSize

		lba := startLBA + result.BlocksCopied
		data, err := c.Reader.ReadBlocks(lba, count, blockSize)
		if err != nil {
			logger.Error(err, "read failed, stopping copy", "lba", lba, "count", count)
			result.ReadErr = err
			break
		}

		if len(data) > 0 {
			n, err := sink.Write(data)
			if err != nil {
				return result, fmt.Errorf("write image at offset %d: %w", result.BytesWritten, err)
			}
			if n != len(data) {
				return result, fmt.Errorf("write image at offset %d: %w", result.BytesWritten, io.ErrShortWrite)
			}

			if c.Hash != nil && hashed < target {
				take := int64(len(data))
				if hashed+take > target {
					take = target - hashed
				}
				c.Hash.Write(data[:take])
				hashed += take
			}

			result.BytesWritten += int64(len(data))
			result.BlocksCopied += int64(len(data) / blockSize)
		}

		result.Elapsed = time.Since(started)
		if c.Progress != nil {
			c.Progress(result.Progress, target)
		}

		if len(data) < requested {
			logger.Debug("short read, stopping copy", "lba", lba, "requested", requested, "returned", len(data))
			result.ShortRead = true
			break
		}
	}

	if result.BytesWritten > target {
		logger.Debug("truncating overshoot", "written", result.BytesWritten, "target", target)
		if err := sink.Truncate(target); err != nil {
			return result, fmt.Errorf("truncate image to %d bytes: %w", target, err)
		}
		result.BytesWritten = target
		result.BlocksCopied = blocks
	}

	result.Elapsed = time.Since(started)
	result.Complete = result.BytesWritten == target
	if c.Hash != nil {
		result.Digest = c.Hash.Sum(nil)
	}
	return result, nil
}
