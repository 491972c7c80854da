package drive

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/helpers"
	"github.com/bgrewell/readiso/pkg/logging"
	"github.com/bgrewell/readiso/pkg/scsi"
)

var (
	// ErrDevice is returned when the drive fails a read. It is distinct from a short read, which is not an error.
	ErrDevice = errors.New("device read failed")
	// ErrNotReady is returned when the unit is still not ready after the retry.
	ErrNotReady = errors.New("unit not ready")
	// ErrBlockSize is returned when the drive will not switch to the requested block length.
	ErrBlockSize = errors.New("block size could not be set")
)

// TOC_ALLOCATION_LENGTH is the buffer size used for READ TOC. It holds 127 track descriptors.
const TOC_ALLOCATION_LENGTH = 1024

// Identity is the standard inquiry data of a unit.
type Identity struct {
	PeripheralType byte
	Removable      bool
	Vendor         string
	Model          string
	Revision       string
}

// IsCDROM reports whether the unit is an MMC (CD/DVD) device.
func (i *Identity) IsCDROM() bool {
	return i.PeripheralType == 0x05
}

func (i *Identity) String() string {
	return fmt.Sprintf("%s %s %s", i.Vendor, i.Model, i.Revision)
}

// Capacity is the READ CAPACITY result.
type Capacity struct {
	LastLBA     int64
	BlockLength uint32
}

// Blocks is the number of addressable blocks.
func (c *Capacity) Blocks() int64 {
	return c.LastLBA + 1
}

// Option configures a Drive.
type Option func(*Drive)

// WithLogger sets the logger used for command failures.
func WithLogger(logger *logging.Logger) Option {
	return func(d *Drive) {
		d.logger = logger
	}
}

// WithReadyDelay sets how long WaitReady sleeps before its single retry.
func WithReadyDelay(delay time.Duration) Option {
	return func(d *Drive) {
		d.readyDelay = delay
	}
}

// Drive issues the commands needed to read a disc over a transport.
type Drive struct {
	transport  scsi.Transport
	logger     *logging.Logger
	readyDelay time.Duration
}

// New wraps a transport. The drive does not own the transport and never closes it.
func New(transport scsi.Transport, opts ...Option) *Drive {
	d := &Drive{
		transport:  transport,
		logger:     logging.DefaultLogger(),
		readyDelay: consts.DEFAULT_READY_DELAY,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// exec runs a request and logs a failure unless the request is quiet.
func (d *Drive) exec(req *scsi.Request) (*scsi.Reply, error) {
	d.logger.Trace("scsi command", "command", req.Command.Opcode(), "cdb", fmt.Sprintf("% x", req.Command.Bytes()))
	reply, err := d.transport.Execute(req)
	if err != nil {
		if !req.Quiet {
			d.logger.Error(err, "command failed", "command", req.Command.Opcode())
		}
		return reply, err
	}
	if reply.Status == scsi.StatusShort {
		d.logger.Debug("short transfer", "command", req.Command.Opcode(), "requested", req.ReplyLength, "returned", len(reply.Data))
	}
	return reply, nil
}

// Inquiry reads the vendor, model and revision of the unit.
func (d *Drive) Inquiry() (*Identity, error) {
	reply, err := d.exec(&scsi.Request{
		Command:     scsi.Inquiry{AllocationLength: scsi.INQUIRY_LENGTH},
		ReplyLength: scsi.INQUIRY_LENGTH,
		Direction:   scsi.DirectionRead,
	})
	if err != nil {
		return nil, fmt.Errorf("inquiry: %w", err)
	}
	data := reply.Data
	if len(data) < scsi.INQUIRY_LENGTH {
		data = append(data, make([]byte, scsi.INQUIRY_LENGTH-len(data))...)
	}
	return &Identity{
		PeripheralType: data[0] & 0x1F,
		Removable:      data[1]&0x80 != 0,
		Vendor:         helpers.TrimPadding(data[8:16]),
		Model:          helpers.TrimPadding(data[16:32]),
		Revision:       helpers.TrimPadding(data[32:36]),
	}, nil
}

// TestUnitReady reports whether the unit can accept medium access commands.
func (d *Drive) TestUnitReady(quiet bool) error {
	_, err := d.exec(&scsi.Request{Command: scsi.TestUnitReady{}, Quiet: quiet})
	return err
}

// WaitReady probes the unit quietly and retries once after the ready delay.
func (d *Drive) WaitReady(ctx context.Context) error {
	if err := d.TestUnitReady(true); err == nil {
		return nil
	}
	d.logger.Debug("unit not ready, retrying", "delay", d.readyDelay)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.readyDelay):
	}

	if err := d.TestUnitReady(true); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return nil
}

// SetRemovable allows or prevents removal of the medium.
func (d *Drive) SetRemovable(allow bool) error {
	_, err := d.exec(&scsi.Request{Command: scsi.PreventAllowRemoval{Prevent: !allow}})
	return err
}

// StartStop spins the unit up or down.
func (d *Drive) StartStop(start bool) error {
	_, err := d.exec(&scsi.Request{Command: scsi.StartStopUnit{Start: start}})
	return err
}

// BlockLength reads the current logical block length from the mode parameter block descriptor.
func (d *Drive) BlockLength() (uint32, error) {
	reply, err := d.exec(&scsi.Request{
		Command:     scsi.ModeSense6{AllocationLength: scsi.MODE_SENSE_LENGTH},
		ReplyLength: scsi.MODE_SENSE_LENGTH,
		Direction:   scsi.DirectionRead,
	})
	if err != nil {
		return 0, fmt.Errorf("mode sense: %w", err)
	}
	if len(reply.Data) < scsi.MODE_SENSE_LENGTH || reply.Data[3] < 8 {
		return 0, fmt.Errorf("mode sense: no block descriptor in %d byte reply", len(reply.Data))
	}
	return scsi.Uint24(reply.Data[9:12]), nil
}

// SetBlockSize switches the logical block length and verifies the drive accepted it.
func (d *Drive) SetBlockSize(length uint32) error {
	sel := scsi.ModeSelect6{BlockLength: length}
	if _, err := d.exec(&scsi.Request{
		Command:   sel,
		Data:      sel.ParameterList(),
		Direction: scsi.DirectionWrite,
	}); err != nil {
		return fmt.Errorf("%w: mode select: %w", ErrBlockSize, err)
	}

	current, err := d.BlockLength()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBlockSize, err)
	}
	if current != length {
		return fmt.Errorf("%w: drive reports %d, wanted %d", ErrBlockSize, current, length)
	}
	return nil
}

// Capacity reads the last addressable block and the block length.
func (d *Drive) Capacity() (*Capacity, error) {
	reply, err := d.exec(&scsi.Request{
		Command:     scsi.ReadCapacity10{},
		ReplyLength: scsi.READ_CAPACITY_LENGTH,
		Direction:   scsi.DirectionRead,
	})
	if err != nil {
		return nil, fmt.Errorf("read capacity: %w", err)
	}
	if len(reply.Data) < scsi.READ_CAPACITY_LENGTH {
		return nil, fmt.Errorf("read capacity: short reply of %d bytes", len(reply.Data))
	}
	return &Capacity{
		LastLBA:     int64(binary.BigEndian.Uint32(reply.Data[0:4])),
		BlockLength: binary.BigEndian.Uint32(reply.Data[4:8]),
	}, nil
}

// ReadTOC returns the raw formatted table of contents, starting with track 1.
func (d *Drive) ReadTOC() ([]byte, error) {
	reply, err := d.exec(&scsi.Request{
		Command:     scsi.ReadTOC{StartTrack: 1, AllocationLength: TOC_ALLOCATION_LENGTH},
		ReplyLength: TOC_ALLOCATION_LENGTH,
		Direction:   scsi.DirectionRead,
	})
	if err != nil {
		return nil, fmt.Errorf("read toc: %w", err)
	}
	return reply.Data, nil
}

// ReadBlocks reads count blocks starting at lba. The returned slice is shorter than count*blockSize when the drive
// returned less; that is not an error. A failed command is wrapped in ErrDevice.
func (d *Drive) ReadBlocks(lba int64, count, blockSize int) ([]byte, error) {
	switch {
	case lba < 0 || lba > int64(^uint32(0)):
		return nil, fmt.Errorf("read: lba %d out of range", lba)
	case count <= 0 || count > int(^uint16(0)):
		return nil, fmt.Errorf("read: block count %d out of range", count)
	case blockSize <= 0:
		return nil, fmt.Errorf("read: invalid block size %d", blockSize)
	}

	reply, err := d.exec(&scsi.Request{
		Command:     scsi.Read10{LBA: uint32(lba), Blocks: uint16(count)},
		ReplyLength: count * blockSize,
		Direction:   scsi.DirectionRead,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: lba %d count %d: %w", ErrDevice, lba, count, err)
	}
	return reply.Data, nil
}
