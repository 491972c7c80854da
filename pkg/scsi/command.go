package scsi

import (
	"encoding/binary"
	"fmt"
)

// Opcode is the first byte of a command descriptor block.
type Opcode byte

const (
	OP_TEST_UNIT_READY  Opcode = 0x00
	OP_INQUIRY          Opcode = 0x12
	OP_MODE_SELECT_6    Opcode = 0x15
	OP_MODE_SENSE_6     Opcode = 0x1A
	OP_START_STOP_UNIT  Opcode = 0x1B
	OP_PREVENT_ALLOW    Opcode = 0x1E
	OP_READ_CAPACITY_10 Opcode = 0x25
	OP_READ_10          Opcode = 0x28
	OP_READ_TOC         Opcode = 0x43
)

func (o Opcode) String() string {
	switch o {
	case OP_TEST_UNIT_READY:
		return "test_unit_ready"
	case OP_INQUIRY:
		return "inquiry"
	case OP_MODE_SELECT_6:
		return "mode_select"
	case OP_MODE_SENSE_6:
		return "mode_sense"
	case OP_START_STOP_UNIT:
		return "start_stop_unit"
	case OP_PREVENT_ALLOW:
		return "prevent_allow_removal"
	case OP_READ_CAPACITY_10:
		return "read_capacity"
	case OP_READ_10:
		return "read_10"
	case OP_READ_TOC:
		return "read_toc"
	default:
		return fmt.Sprintf("opcode(0x%02x)", byte(o))
	}
}

// Command builds the command descriptor block for one SCSI command.
type Command interface {
	Opcode() Opcode
	Bytes() []byte
}

// TestUnitReady asks whether the unit can accept medium access commands.
type TestUnitReady struct{}

func (TestUnitReady) Opcode() Opcode { return OP_TEST_UNIT_READY }

func (TestUnitReady) Bytes() []byte {
	return []byte{byte(OP_TEST_UNIT_READY), 0, 0, 0, 0, 0}
}

// Inquiry requests the standard inquiry data.
type Inquiry struct {
	AllocationLength uint8
}

func (Inquiry) Opcode() Opcode { return OP_INQUIRY }

func (c Inquiry) Bytes() []byte {
	return []byte{byte(OP_INQUIRY), 0, 0, 0, c.AllocationLength, 0}
}

// ModeSense6 requests a mode page together with the block descriptor.
type ModeSense6 struct {
	PageCode         byte
	AllocationLength uint8
}

func (ModeSense6) Opcode() Opcode { return OP_MODE_SENSE_6 }

func (c ModeSense6) Bytes() []byte {
	return []byte{byte(OP_MODE_SENSE_6), 0, c.PageCode & 0x3F, 0, c.AllocationLength, 0}
}

// MODE_SELECT_PARAMETER_LENGTH is the size of the parameter list sent with ModeSelect6: a 4 byte header followed
// by one 8 byte block descriptor.
const MODE_SELECT_PARAMETER_LENGTH = 12

// ModeSelect6 changes the logical block length of the drive.
type ModeSelect6 struct {
	BlockLength uint32
}

func (ModeSelect6) Opcode() Opcode { return OP_MODE_SELECT_6 }

func (ModeSelect6) Bytes() []byte {
	// PF bit set, parameter list length 12
	return []byte{byte(OP_MODE_SELECT_6), 0x10, 0, 0, MODE_SELECT_PARAMETER_LENGTH, 0}
}

// ParameterList returns the data sent to the drive: an empty mode header with an 8 byte block descriptor
// carrying the 24-bit block length.
func (c ModeSelect6) ParameterList() []byte {
	data := make([]byte, MODE_SELECT_PARAMETER_LENGTH)
	data[3] = 8
	putUint24(data[9:12], c.BlockLength)
	return data
}

// StartStopUnit spins the medium up or down.
type StartStopUnit struct {
	Start bool
}

func (StartStopUnit) Opcode() Opcode { return OP_START_STOP_UNIT }

func (c StartStopUnit) Bytes() []byte {
	var start byte
	if c.Start {
		start = 1
	}
	return []byte{byte(OP_START_STOP_UNIT), 0, 0, 0, start, 0}
}

// PreventAllowRemoval locks or unlocks the tray.
type PreventAllowRemoval struct {
	Prevent bool
}

func (PreventAllowRemoval) Opcode() Opcode { return OP_PREVENT_ALLOW }

func (c PreventAllowRemoval) Bytes() []byte {
	var prevent byte
	if c.Prevent {
		prevent = 1
	}
	return []byte{byte(OP_PREVENT_ALLOW), 0, 0, 0, prevent, 0}
}

// READ_CAPACITY_LENGTH is the size of the READ CAPACITY(10) reply.
const READ_CAPACITY_LENGTH = 8

// ReadCapacity10 requests the last logical block address and the block length.
type ReadCapacity10 struct{}

func (ReadCapacity10) Opcode() Opcode { return OP_READ_CAPACITY_10 }

func (ReadCapacity10) Bytes() []byte {
	return make10(OP_READ_CAPACITY_10)
}

// Read10 reads Blocks logical blocks starting at LBA.
type Read10 struct {
	LBA    uint32
	Blocks uint16
}

func (Read10) Opcode() Opcode { return OP_READ_10 }

func (c Read10) Bytes() []byte {
	cdb := make10(OP_READ_10)
	binary.BigEndian.PutUint32(cdb[2:6], c.LBA)
	binary.BigEndian.PutUint16(cdb[7:9], c.Blocks)
	return cdb
}

// ReadTOC requests the formatted table of contents starting at StartTrack. Addresses are returned as LBAs unless
// MSF is set.
type ReadTOC struct {
	MSF              bool
	Format           byte
	StartTrack       byte
	AllocationLength uint16
}

func (ReadTOC) Opcode() Opcode { return OP_READ_TOC }

func (c ReadTOC) Bytes() []byte {
	cdb := make10(OP_READ_TOC)
	if c.MSF {
		cdb[1] = 0x02
	}
	cdb[2] = c.Format & 0x0F
	cdb[6] = c.StartTrack
	binary.BigEndian.PutUint16(cdb[7:9], c.AllocationLength)
	return cdb
}

func make10(op Opcode) []byte {
	cdb := make([]byte, 10)
	cdb[0] = byte(op)
	return cdb
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// Uint24 decodes a 24-bit big-endian number.
func Uint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
