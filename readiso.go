package readiso

import (
	"context"
	"hash"
	"io"

	"github.com/bgrewell/readiso/pkg/copier"
	"github.com/bgrewell/readiso/pkg/descriptor"
	"github.com/bgrewell/readiso/pkg/drive"
	"github.com/bgrewell/readiso/pkg/option"
	"github.com/bgrewell/readiso/pkg/reconcile"
	"github.com/bgrewell/readiso/pkg/session"
	"github.com/bgrewell/readiso/pkg/toc"
)

// Open locks and opens an optical drive for reading
func Open(device string, opts ...option.OpenOption) (Reader, error) {
	// Set default options
	options := option.DefaultOpenOptions()

	// Apply options
	for _, opt := range opts {
		opt(options)
	}

	s, err := session.Open(device, options)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Reader reads ISO9660 images from a disc
type Reader interface {
	Device() string
	Initialize(ctx context.Context) error
	Inquiry() (*drive.Identity, error)
	Capacity() (*drive.Capacity, error)
	TOC() (*toc.TOC, error)
	SelectTrack(number int) (toc.Track, error)
	PrimaryDescriptor(track toc.Track) (*descriptor.PrimaryVolumeDescriptor, error)
	Plan(track toc.Track, pvd *descriptor.PrimaryVolumeDescriptor, mode reconcile.OverrideMode) *reconcile.Plan
	Copy(plan *reconcile.Plan, sink copier.Sink, h hash.Hash) (*copier.Result, error)
	Dump(lba, count int64, w io.Writer) (*copier.Result, error)
	Close() error
}
