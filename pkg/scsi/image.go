package scsi

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/helpers"
)

const (
	INQUIRY_LENGTH    = 36
	MODE_SENSE_LENGTH = 12

	SENSE_KEY_NOT_READY       = 0x02
	SENSE_KEY_MEDIUM_ERROR    = 0x03
	SENSE_KEY_ILLEGAL_REQUEST = 0x05

	peripheralTypeCDROM = 0x05
	fixedSenseLength    = 18
)

// ImageOption configures an ImageTransport.
type ImageOption func(*ImageTransport)

// WithAudioTrack places an audio track of the given length in front of the data track.
func WithAudioTrack(blocks int64) ImageOption {
	return func(t *ImageTransport) {
		t.audioBlocks = blocks
	}
}

// WithTrackPadding makes the data track longer than the image. The extra blocks read back as zeros.
func WithTrackPadding(blocks int64) ImageOption {
	return func(t *ImageTransport) {
		t.paddingBlocks = blocks
	}
}

// WithUnreadableFrom makes every block at or after lba unreadable. A read that starts before it returns short.
func WithUnreadableFrom(lba int64) ImageOption {
	return func(t *ImageTransport) {
		t.unreadableFrom = lba
	}
}

// WithMediumErrorAt makes a read that touches lba fail with a medium error.
func WithMediumErrorAt(lba int64) ImageOption {
	return func(t *ImageTransport) {
		t.mediumErrorAt = lba
	}
}

// WithNotReadyCount makes the first n TEST UNIT READY commands fail.
func WithNotReadyCount(n int) ImageOption {
	return func(t *ImageTransport) {
		t.notReady = n
	}
}

// WithBlockLength sets the block length the drive starts with. When locked, MODE SELECT is accepted but ignored.
func WithBlockLength(length uint32, locked bool) ImageOption {
	return func(t *ImageTransport) {
		t.blockLength = length
		t.blockLengthLocked = locked
	}
}

// WithIdentity sets the strings returned by INQUIRY.
func WithIdentity(vendor, model, revision string) ImageOption {
	return func(t *ImageTransport) {
		t.vendor = vendor
		t.model = model
		t.revision = revision
	}
}

// ImageTransport emulates a CD-ROM drive holding a disc whose data track is the contents of an image.
type ImageTransport struct {
	mu sync.Mutex

	src    io.ReaderAt
	closer io.Closer
	size   int64

	audioBlocks       int64
	paddingBlocks     int64
	unreadableFrom    int64
	mediumErrorAt     int64
	notReady          int
	blockLength       uint32
	blockLengthLocked bool
	vendor            string
	model             string
	revision          string

	started   bool
	prevented bool
	closed    bool
	history   []Opcode
}

// NewImageTransport builds an emulated drive over size bytes of src.
func NewImageTransport(src io.ReaderAt, size int64, opts ...ImageOption) *ImageTransport {
	t := &ImageTransport{
		src:            src,
		size:           size,
		unreadableFrom: -1,
		mediumErrorAt:  -1,
		blockLength:    consts.ISO9660_SECTOR_SIZE,
		vendor:         "READISO",
		model:          "IMAGE DRIVE",
		revision:       "1.0",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OpenImage opens an image file as an emulated drive. It has the same signature as OpenSGIO.
func OpenImage(path string, timeout time.Duration) (Transport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	t := NewImageTransport(f, st.Size())
	t.closer = f
	return t, nil
}

// OpenPath opens a regular file with OpenImage and anything else, normally a device node, with OpenSGIO.
func OpenPath(path string, timeout time.Duration) (Transport, error) {
	if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
		return OpenImage(path, timeout)
	}
	return OpenSGIO(path, timeout)
}

// DataTrackStart is the first LBA of the data track.
func (t *ImageTransport) DataTrackStart() int64 {
	return t.audioBlocks
}

// LeadOut is the first LBA after the data track.
func (t *ImageTransport) LeadOut() int64 {
	return t.audioBlocks + t.imageBlocks() + t.paddingBlocks
}

// History returns the opcodes executed so far, in order.
func (t *ImageTransport) History() []Opcode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Opcode(nil), t.history...)
}

// Started reports whether the unit is currently spun up.
func (t *ImageTransport) Started() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Prevented reports whether medium removal is currently prevented.
func (t *ImageTransport) Prevented() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prevented
}

// Closed reports whether Close was called.
func (t *ImageTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *ImageTransport) imageBlocks() int64 {
	return (t.size + consts.ISO9660_SECTOR_SIZE - 1) / consts.ISO9660_SECTOR_SIZE
}

// Execute runs one command against the emulated drive.
func (t *ImageTransport) Execute(req *Request) (*Reply, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return &Reply{Status: StatusHostError}, fmt.Errorf("%s: %w: transport closed", req.name(), ErrTransport)
	}

	op := req.Command.Opcode()
	t.history = append(t.history, op)

	var reply *Reply
	switch c := req.Command.(type) {
	case TestUnitReady:
		reply = t.testUnitReady()
	case Inquiry:
		reply = t.inquiry(int(c.AllocationLength))
	case ModeSense6:
		reply = t.modeSense(int(c.AllocationLength))
	case ModeSelect6:
		reply = t.modeSelect(req.Data)
	case StartStopUnit:
		t.started = c.Start
		reply = &Reply{Status: StatusGood}
	case PreventAllowRemoval:
		t.prevented = c.Prevent
		reply = &Reply{Status: StatusGood}
	case ReadCapacity10:
		reply = t.readCapacity()
	case ReadTOC:
		reply = t.readTOC(c)
	case Read10:
		reply = t.read(c)
	default:
		reply = checkCondition(SENSE_KEY_ILLEGAL_REQUEST, 0x20)
	}

	if reply.Status == StatusGood && req.Direction == DirectionRead {
		if len(reply.Data) > req.ReplyLength {
			reply.Data = reply.Data[:req.ReplyLength]
		}
		if len(reply.Data) < req.ReplyLength {
			reply.Status = StatusShort
		}
	}

	if !reply.OK() {
		return reply, replyError(req, reply)
	}
	return reply, nil
}

func (t *ImageTransport) testUnitReady() *Reply {
	if t.notReady > 0 {
		t.notReady--
		// logical unit is in process of becoming ready
		return checkCondition(SENSE_KEY_NOT_READY, 0x04)
	}
	return &Reply{Status: StatusGood}
}

func (t *ImageTransport) inquiry(length int) *Reply {
	data := make([]byte, INQUIRY_LENGTH)
	data[0] = peripheralTypeCDROM
	data[1] = 0x80 // removable
	data[2] = 0x05
	data[3] = 0x02
	data[4] = INQUIRY_LENGTH - 5
	copy(data[8:16], helpers.PadString(t.vendor, 8))
	copy(data[16:32], helpers.PadString(t.model, 16))
	copy(data[32:36], helpers.PadString(t.revision, 4))
	if length < len(data) {
		data = data[:length]
	}
	return &Reply{Status: StatusGood, Data: data}
}

func (t *ImageTransport) modeSense(length int) *Reply {
	data := make([]byte, MODE_SENSE_LENGTH)
	data[0] = MODE_SENSE_LENGTH - 1
	data[3] = 8
	putUint24(data[5:8], uint32(t.LeadOut()))
	putUint24(data[9:12], t.blockLength)
	if length < len(data) {
		data = data[:length]
	}
	return &Reply{Status: StatusGood, Data: data}
}

func (t *ImageTransport) modeSelect(params []byte) *Reply {
	if len(params) < MODE_SELECT_PARAMETER_LENGTH || params[3] < 8 {
		// parameter list length error
		return checkCondition(SENSE_KEY_ILLEGAL_REQUEST, 0x1A)
	}
	if !t.blockLengthLocked {
		t.blockLength = Uint24(params[9:12])
	}
	return &Reply{Status: StatusGood}
}

func (t *ImageTransport) readCapacity() *Reply {
	data := make([]byte, READ_CAPACITY_LENGTH)
	binary.BigEndian.PutUint32(data[0:4], uint32(t.LeadOut()-1))
	binary.BigEndian.PutUint32(data[4:8], t.blockLength)
	return &Reply{Status: StatusGood, Data: data}
}

type tocEntry struct {
	control byte
	number  byte
	start   uint32
}

func (t *ImageTransport) readTOC(c ReadTOC) *Reply {
	if c.Format != 0 || c.MSF {
		// invalid field in CDB
		return checkCondition(SENSE_KEY_ILLEGAL_REQUEST, 0x24)
	}

	var entries []tocEntry
	number := byte(1)
	if t.audioBlocks > 0 {
		entries = append(entries, tocEntry{control: 0x00, number: number, start: 0})
		number++
	}
	entries = append(entries, tocEntry{control: consts.TOC_DATA_TRACK, number: number, start: uint32(t.audioBlocks)})
	last := number
	entries = append(entries, tocEntry{control: consts.TOC_DATA_TRACK, number: consts.TOC_LEAD_OUT, start: uint32(t.LeadOut())})

	if c.StartTrack > last && c.StartTrack != consts.TOC_LEAD_OUT {
		return checkCondition(SENSE_KEY_ILLEGAL_REQUEST, 0x24)
	}

	data := make([]byte, 4)
	data[2] = 1
	data[3] = last
	for _, e := range entries {
		if e.number < c.StartTrack {
			continue
		}
		desc := make([]byte, 8)
		desc[1] = 0x10 | e.control // ADR 1
		desc[2] = e.number
		binary.BigEndian.PutUint32(desc[4:8], e.start)
		data = append(data, desc...)
	}
	binary.BigEndian.PutUint16(data[0:2], uint16(len(data)-2))

	if int(c.AllocationLength) < len(data) {
		data = data[:c.AllocationLength]
	}
	return &Reply{Status: StatusGood, Data: data}
}

func (t *ImageTransport) read(c Read10) *Reply {
	if t.blockLength != consts.ISO9660_SECTOR_SIZE {
		// illegal mode for this track
		return checkCondition(SENSE_KEY_ILLEGAL_REQUEST, 0x64)
	}

	lba := int64(c.LBA)
	end := lba + int64(c.Blocks)
	if lba < t.audioBlocks || lba >= t.LeadOut() {
		// logical block address out of range
		return checkCondition(SENSE_KEY_ILLEGAL_REQUEST, 0x21)
	}
	if t.mediumErrorAt >= 0 && lba <= t.mediumErrorAt && t.mediumErrorAt < end {
		// unrecovered read error
		return checkCondition(SENSE_KEY_MEDIUM_ERROR, 0x11)
	}
	if end > t.LeadOut() {
		end = t.LeadOut()
	}
	if t.unreadableFrom >= 0 && end > t.unreadableFrom {
		end = t.unreadableFrom
	}
	if end <= lba {
		return &Reply{Status: StatusGood, Data: []byte{}}
	}

	data := make([]byte, (end-lba)*consts.ISO9660_SECTOR_SIZE)
	offset := (lba - t.audioBlocks) * consts.ISO9660_SECTOR_SIZE
	if offset < t.size {
		// bytes past the end of the image stay zero
		if _, err := t.src.ReadAt(data, offset); err != nil && err != io.EOF {
			return checkCondition(SENSE_KEY_MEDIUM_ERROR, 0x11)
		}
	}
	return &Reply{Status: StatusGood, Data: data}
}

func checkCondition(key, asc byte) *Reply {
	sense := make([]byte, fixedSenseLength)
	sense[0] = 0x70
	sense[2] = key
	sense[7] = fixedSenseLength - 8
	sense[12] = asc
	return &Reply{Status: StatusCheckCondition, Sense: sense}
}

// Close marks the drive closed and closes the image file when OpenImage opened it.
func (t *ImageTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}
