package session

import (
	"context"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/copier"
	"github.com/bgrewell/readiso/pkg/descriptor"
	"github.com/bgrewell/readiso/pkg/drive"
	"github.com/bgrewell/readiso/pkg/logging"
	"github.com/bgrewell/readiso/pkg/option"
	"github.com/bgrewell/readiso/pkg/reconcile"
	"github.com/bgrewell/readiso/pkg/scsi"
	"github.com/bgrewell/readiso/pkg/toc"
	"github.com/gofrs/flock"
)

var (
	// ErrLocked is returned by Open when another session holds the device.
	ErrLocked = errors.New("device is in use by another session")
	// ErrDescriptor is returned when the primary volume descriptor cannot be read.
	ErrDescriptor = errors.New("cannot read iso9660 primary descriptor")
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("session closed")
)

// Session owns everything needed to read one disc: the transport, the device lock and the drive state. Close
// releases all of it and must be called on every path once Open succeeded.
type Session struct {
	device    string
	options   *option.OpenOptions
	logger    *logging.Logger
	transport scsi.Transport
	drive     *drive.Drive
	lock      *flock.Flock

	started bool
	toc     *toc.TOC
	closed  bool
}

// LockPath returns the lock file used for device inside dir.
func LockPath(dir, device string) string {
	name := strings.NewReplacer("/", "_", ":", "_").Replace(strings.TrimPrefix(filepath.Clean(device), "/"))
	return filepath.Join(dir, "readiso-"+name+".lock")
}

// Open locks the device and opens its transport. Nothing is sent to the drive yet. A transport supplied through the
// options is closed when Open fails.
func Open(device string, opts *option.OpenOptions) (*Session, error) {
	if opts == nil {
		opts = option.DefaultOpenOptions()
	}
	opened := false
	defer func() {
		if !opened && opts.Transport != nil {
			_ = opts.Transport.Close()
		}
	}()
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	logger = logger.WithValues("device", device)

	s := &Session{
		device:  device,
		options: opts,
		logger:  logger,
	}

	if opts.LockDir != "" {
		if err := os.MkdirAll(opts.LockDir, 0o755); err != nil {
			return nil, fmt.Errorf("create lock directory: %w", err)
		}
		lockPath := LockPath(opts.LockDir, device)
		lock := flock.New(lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", lockPath, err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s (lock %s)", ErrLocked, device, lockPath)
		}
		s.lock = lock
		logger.Trace("lock acquired", "path", lockPath)
	}

	transport := opts.Transport
	if transport == nil {
		opener := opts.Opener
		if opener == nil {
			opener = scsi.OpenSGIO
		}
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = consts.DEFAULT_TIMEOUT
		}
		var err error
		transport, err = opener(device, timeout)
		if err != nil {
			s.unlock()
			return nil, fmt.Errorf("open device: %w", err)
		}
	}
	s.transport = transport

	readyDelay := opts.ReadyDelay
	if readyDelay <= 0 {
		readyDelay = consts.DEFAULT_READY_DELAY
	}
	s.drive = drive.New(transport, drive.WithLogger(logger.WithName("drive")), drive.WithReadyDelay(readyDelay))
	logger.Debug("device opened")
	opened = true
	return s, nil
}

// Device is the path the session was opened with.
func (s *Session) Device() string {
	return s.device
}

// Inquiry returns the identity of the drive.
func (s *Session) Inquiry() (*drive.Identity, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.drive.Inquiry()
}

// Initialize waits for the unit, switches it to 2048 byte blocks and spins it up.
func (s *Session) Initialize(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.drive.WaitReady(ctx); err != nil {
		return err
	}
	if err := s.drive.SetRemovable(true); err != nil {
		// some drives reject the command; reading works regardless
		s.logger.Debug("allow medium removal failed", "error", err)
	}
	if err := s.drive.SetBlockSize(consts.ISO9660_SECTOR_SIZE); err != nil {
		return err
	}
	if err := s.drive.StartStop(true); err != nil {
		return fmt.Errorf("start unit: %w", err)
	}
	s.started = true
	s.logger.Debug("drive initialized")
	return nil
}

// Capacity returns the READ CAPACITY result.
func (s *Session) Capacity() (*drive.Capacity, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.drive.Capacity()
}

// TOC reads and parses the table of contents. The result is cached for the life of the session.
func (s *Session) TOC() (*toc.TOC, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if s.toc != nil {
		return s.toc, nil
	}
	reply, err := s.drive.ReadTOC()
	if err != nil {
		return nil, err
	}
	t, err := toc.Parse(reply)
	if err != nil {
		return nil, err
	}
	for _, tr := range t.Tracks {
		s.logger.Debug("track", "number", tr.Number, "type", tr.Kind(), "start", tr.StartLBA, "end", tr.EndLBA, "msf", tr.MSF())
	}
	s.toc = t
	return t, nil
}

// SelectTrack returns the requested data track, or the first data track when number is 0.
func (s *Session) SelectTrack(number int) (toc.Track, error) {
	t, err := s.TOC()
	if err != nil {
		return toc.Track{}, err
	}
	tr, err := t.Select(number)
	if err != nil {
		return toc.Track{}, err
	}
	s.logger.Info("reading track", "track", tr.Number, "start", tr.StartLBA, "end", tr.EndLBA)
	return tr, nil
}

// PrimaryDescriptor reads the primary volume descriptor at block 16 of the track. A descriptor with the wrong type
// or identifier is returned with a warning; the size check decides what to do with it.
func (s *Session) PrimaryDescriptor(track toc.Track) (*descriptor.PrimaryVolumeDescriptor, error) {
	if s.closed {
		return nil, ErrClosed
	}
	lba := track.StartLBA + consts.ISO9660_SYSTEM_AREA_SECTORS
	data, err := s.drive.ReadBlocks(lba, 1, consts.ISO9660_SECTOR_SIZE)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptor, err)
	}
	if len(data) < consts.ISO9660_SECTOR_SIZE {
		return nil, fmt.Errorf("%w: read %d bytes at lba %d", ErrDescriptor, len(data), lba)
	}
	pvd, err := descriptor.ParsePrimary(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDescriptor, err)
	}
	if !pvd.IsPrimary() {
		s.logger.Warn("sector 16 does not look like a primary volume descriptor",
			"type", pvd.Type(), "identifier", pvd.Identifier())
	}
	if err := pvd.CheckIdentifiers(); err != nil {
		s.logger.Debug("descriptor identifiers use characters outside their set", "error", err)
	}
	if !pvd.VolumeSpaceSizeConsistent {
		s.logger.Debug("volume space size byte orders disagree, using little-endian value")
	}
	return pvd, nil
}

// Plan reconciles the declared image size with the track size.
func (s *Session) Plan(track toc.Track, pvd *descriptor.PrimaryVolumeDescriptor, mode reconcile.OverrideMode) *reconcile.Plan {
	var declared int64
	if pvd != nil {
		declared = int64(pvd.VolumeSpaceSize)
	}
	p := reconcile.Reconcile(track, declared, mode, consts.ISO9660_SECTOR_SIZE, s.logger)
	s.logger.Debug("image size", "declared", p.DeclaredBlocks, "track", p.TrackBlocks,
		"effective", p.EffectiveBlocks, "mode", p.Mode)
	return p
}

func (s *Session) copier(h hash.Hash) *copier.Copier {
	c := &copier.Copier{
		Reader:      s.drive,
		BlockSize:   consts.ISO9660_SECTOR_SIZE,
		BatchBlocks: s.options.ReadBlocks,
		Hash:        h,
		Logger:      s.logger.WithName("copy"),
	}
	if cb := s.options.CopyProgressCallback; cb != nil {
		c.Progress = func(p copier.Progress, target int64) {
			cb(p.BlocksCopied, p.BytesWritten, target, p.Elapsed)
		}
	}
	return c
}

// Copy streams the planned image into sink. h may be nil.
func (s *Session) Copy(plan *reconcile.Plan, sink copier.Sink, h hash.Hash) (*copier.Result, error) {
	if s.closed {
		return nil, ErrClosed
	}
	res, err := s.copier(h).Copy(plan.Track.StartLBA, plan.EffectiveBlocks, sink)
	if err != nil {
		return res, err
	}
	if !res.Complete {
		s.logger.Warn("image not complete", "written", res.BytesWritten, "expected", res.Target)
	}
	return res, nil
}

// Dump copies count raw blocks starting at lba into w without looking at their contents. w is never truncated, so
// it should not be a file that already holds data.
func (s *Session) Dump(lba, count int64, w io.Writer) (*copier.Result, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if lba < 0 || count <= 0 {
		return nil, fmt.Errorf("invalid dump range lba=%d count=%d", lba, count)
	}
	sink, ok := w.(copier.Sink)
	if !ok {
		sink = streamSink{w}
	}
	return s.copier(nil).Copy(lba, count, sink)
}

// streamSink adapts a writer that cannot be truncated.
type streamSink struct {
	io.Writer
}

func (streamSink) Truncate(int64) error {
	return errors.ErrUnsupported
}

// Close stops the unit, allows medium removal, closes the transport and releases the lock. Every step is attempted
// and the errors are joined. Calling Close again is a no-op.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.started {
		if err := s.drive.StartStop(false); err != nil {
			errs = append(errs, fmt.Errorf("stop unit: %w", err))
		}
	}
	if err := s.drive.SetRemovable(true); err != nil {
		errs = append(errs, fmt.Errorf("allow medium removal: %w", err))
	}
	if err := s.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close device: %w", err))
	}
	if err := s.unlock(); err != nil {
		errs = append(errs, err)
	}
	s.logger.Debug("session closed")
	return errors.Join(errs...)
}

func (s *Session) unlock() error {
	if s.lock == nil {
		return nil
	}
	err := s.lock.Unlock()
	s.lock = nil
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
