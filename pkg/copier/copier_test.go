package copier

import (
	"bytes"
	"crypto/md5"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const blockSize = 2048

// memSink is an in-memory Sink.
type memSink struct {
	bytes.Buffer
	truncated int
}

func (m *memSink) Truncate(size int64) error {
	m.truncated++
	m.Buffer.Truncate(int(size))
	return nil
}

// disc serves blocks from data. Reads that reach shortAt return only the blocks before it; reads that reach failAt
// fail. extra is appended to every reply to simulate a drive that returns too much.
type disc struct {
	data    []byte
	shortAt int64
	failAt  int64
	extra   int
	calls   []int
}

func newDisc(blocks int) *disc {
	data := make([]byte, blocks*blockSize)
	for i := range data {
		data[i] = byte(i/blockSize) ^ byte(i)
	}
	return &disc{data: data, shortAt: -1, failAt: -1}
}

func (d *disc) ReadBlocks(lba int64, count, size int) ([]byte, error) {
	d.calls = append(d.calls, count)
	end := lba + int64(count)
	if d.failAt >= 0 && end > d.failAt {
		return nil, errors.New("medium error")
	}
	if d.shortAt >= 0 && end > d.shortAt {
		end = d.shortAt
	}
	if last := int64(len(d.data) / size); end > last {
		end = last
	}
	if end < lba {
		end = lba
	}
	out := append([]byte{}, d.data[lba*int64(size):end*int64(size)]...)
	return append(out, make([]byte, d.extra)...), nil
}

func TestCopyExactLengthForAllBatchSizes(t *testing.T) {
	d := newDisc(120)
	for _, batch := range []int{1, 2, 3, 7, 16, 64, 100, 200} {
		for _, blocks := range []int64{1, 63, 64, 65, 100} {
			sink := &memSink{}
			c := &Copier{Reader: d, BlockSize: blockSize, BatchBlocks: batch}

			res, err := c.Copy(10, blocks, sink)
			require.NoError(t, err)
			require.True(t, res.Complete, "batch %d blocks %d", batch, blocks)
			require.False(t, res.ShortRead)
			require.Equal(t, blocks*blockSize, res.BytesWritten)
			require.Equal(t, d.data[10*blockSize:(10+blocks)*blockSize], sink.Bytes())
		}
	}
}

func TestCopyClampsFinalBatch(t *testing.T) {
	d := newDisc(200)
	c := &Copier{Reader: d, BlockSize: blockSize, BatchBlocks: 64}

	_, err := c.Copy(0, 150, &memSink{})
	require.NoError(t, err)
	require.Equal(t, []int{64, 64, 22}, d.calls)
}

func TestCopyShortReadStops(t *testing.T) {
	d := newDisc(200)
	d.shortAt = 100
	sink := &memSink{}
	c := &Copier{Reader: d, BlockSize: blockSize, BatchBlocks: 16}

	res, err := c.Copy(0, 150, sink)
	require.NoError(t, err)
	require.True(t, res.ShortRead)
	require.False(t, res.Complete)
	require.Equal(t, int64(100*blockSize), res.BytesWritten)
	require.Equal(t, int64(100), res.BlocksCopied)
	require.Len(t, d.calls, 7)
	require.Equal(t, d.data[:100*blockSize], sink.Bytes())
}

func TestCopyShortReadAtFirstBatch(t *testing.T) {
	d := newDisc(10)
	d.shortAt = 0
	sink := &memSink{}
	c := &Copier{Reader: d, BlockSize: blockSize, BatchBlocks: 4}

	res, err := c.Copy(0, 8, sink)
	require.NoError(t, err)
	require.True(t, res.ShortRead)
	require.Zero(t, res.BytesWritten)
	require.Zero(t, sink.Len())
}

func TestCopyDeviceErrorIsRecorded(t *testing.T) {
	d := newDisc(100)
	d.failAt = 40
	sink := &memSink{}
	c := &Copier{Reader: d, BlockSize: blockSize, BatchBlocks: 16}

	res, err := c.Copy(0, 64, sink)
	require.NoError(t, err)
	require.Error(t, res.ReadErr)
	require.False(t, res.Complete)
	require.Equal(t, int64(32*blockSize), res.BytesWritten)
}

func TestCopyTruncatesOvershoot(t *testing.T) {
	d := newDisc(100)
	d.extra = 100
	sink := &memSink{}
	h := md5.New()
	c := &Copier{Reader: d, BlockSize: blockSize, BatchBlocks: 8, Hash: h}

	res, err := c.Copy(0, 8, sink)
	require.NoError(t, err)
	require.True(t, res.Complete)
	require.Equal(t, 1, sink.truncated)
	require.Equal(t, 8*blockSize, sink.Len())

	want := md5.Sum(d.data[:8*blockSize])
	require.Equal(t, want[:], res.Digest)
}

func TestCopyDigestMatchesImage(t *testing.T) {
	d := newDisc(50)
	sink := &memSink{}
	c := &Copier{Reader: d, BlockSize: blockSize, BatchBlocks: 7, Hash: md5.New()}

	res, err := c.Copy(5, 40, sink)
	require.NoError(t, err)

	want := md5.Sum(sink.Bytes())
	require.Equal(t, want[:], res.Digest)
	require.Len(t, res.HexDigest(), 32)
	require.Regexp(t, "^[0-9a-f]{32}$", res.HexDigest())
}

func TestCopyReportsProgress(t *testing.T) {
	d := newDisc(50)
	var updates []Progress
	var targets []int64
	c := &Copier{
		Reader:      d,
		BlockSize:   blockSize,
		BatchBlocks: 10,
		Progress: func(p Progress, target int64) {
			updates = append(updates, p)
			targets = append(targets, target)
		},
	}

	_, err := c.Copy(0, 25, &memSink{})
	require.NoError(t, err)
	require.Len(t, updates, 3)
	require.Equal(t, int64(10), updates[0].BlocksCopied)
	require.Equal(t, int64(25*blockSize), updates[2].BytesWritten)
	require.Equal(t, int64(25*blockSize), targets[0])
}

func TestCopyZeroBlocks(t *testing.T) {
	d := newDisc(1)
	c := &Copier{Reader: d, BlockSize: blockSize, BatchBlocks: 4}

	res, err := c.Copy(0, 0, &memSink{})
	require.NoError(t, err)
	require.True(t, res.Complete)
	require.Empty(t, d.calls)
}

func TestCopyToFile(t *testing.T) {
	d := newDisc(30)
	d.extra = blockSize
	path := filepath.Join(t.TempDir(), "image.iso")
	f, err := os.Create(path)
	require.NoError(t, err)

	c := &Copier{Reader: d, BlockSize: blockSize, BatchBlocks: 8}
	res, err := c.Copy(0, 20, f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.True(t, res.Complete)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(20*blockSize), info.Size())
}

func TestCopyNeedsReader(t *testing.T) {
	_, err := (&Copier{}).Copy(0, 1, &memSink{})
	require.Error(t, err)
}
