package scsi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// pattern returns n sectors where every byte of sector i is byte(i+1).
func pattern(n int) []byte {
	data := make([]byte, n*2048)
	for i := range data {
		data[i] = byte(i/2048 + 1)
	}
	return data
}

func read(t *testing.T, tr Transport, lba uint32, blocks uint16) (*Reply, error) {
	t.Helper()
	return tr.Execute(&Request{
		Command:     Read10{LBA: lba, Blocks: blocks},
		ReplyLength: int(blocks) * 2048,
		Direction:   DirectionRead,
	})
}

func TestImageTransportRead(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(10)), 10*2048)

	reply, err := read(t, tr, 2, 3)
	require.NoError(t, err)
	require.Equal(t, StatusGood, reply.Status)
	require.Len(t, reply.Data, 3*2048)
	require.Equal(t, byte(3), reply.Data[0])
	require.Equal(t, byte(5), reply.Data[len(reply.Data)-1])
}

func TestImageTransportReadPastLeadOutIsShort(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(10)), 10*2048)

	reply, err := read(t, tr, 8, 4)
	require.NoError(t, err)
	require.Equal(t, StatusShort, reply.Status)
	require.True(t, reply.OK())
	require.Len(t, reply.Data, 2*2048)
}

func TestImageTransportPaddingReadsZeros(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(4)), 4*2048, WithTrackPadding(2))
	require.Equal(t, int64(6), tr.LeadOut())

	reply, err := read(t, tr, 3, 3)
	require.NoError(t, err)
	require.Equal(t, StatusGood, reply.Status)
	require.Equal(t, byte(4), reply.Data[0])
	require.Equal(t, make([]byte, 2*2048), reply.Data[2048:])
}

func TestImageTransportUnreadable(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(10)), 10*2048, WithUnreadableFrom(5))

	reply, err := read(t, tr, 4, 4)
	require.NoError(t, err)
	require.Equal(t, StatusShort, reply.Status)
	require.Len(t, reply.Data, 2048)
}

func TestImageTransportMediumError(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(10)), 10*2048, WithMediumErrorAt(6))

	reply, err := read(t, tr, 4, 4)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTransport))
	require.Equal(t, StatusCheckCondition, reply.Status)
	require.Equal(t, byte(SENSE_KEY_MEDIUM_ERROR), reply.SenseKey())
}

func TestImageTransportAudioTrackRejectsDataRead(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(4)), 4*2048, WithAudioTrack(100))
	require.Equal(t, int64(100), tr.DataTrackStart())

	_, err := read(t, tr, 50, 1)
	require.ErrorIs(t, err, ErrTransport)

	reply, err := read(t, tr, 100, 1)
	require.NoError(t, err)
	require.Equal(t, byte(1), reply.Data[0])
}

func TestImageTransportTOC(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(4)), 4*2048, WithAudioTrack(100), WithTrackPadding(6))

	reply, err := tr.Execute(&Request{
		Command:     ReadTOC{StartTrack: 1, AllocationLength: 1024},
		ReplyLength: 1024,
		Direction:   DirectionRead,
	})
	require.NoError(t, err)
	require.Equal(t, StatusShort, reply.Status)

	data := reply.Data
	require.Len(t, data, 4+3*8)
	require.Equal(t, uint16(2+3*8), binary.BigEndian.Uint16(data[0:2]))
	require.Equal(t, byte(1), data[2])
	require.Equal(t, byte(2), data[3])

	require.Equal(t, byte(1), data[4+2])
	require.Zero(t, data[4+1]&0x04)
	require.Equal(t, uint32(0), binary.BigEndian.Uint32(data[8:12]))

	require.Equal(t, byte(2), data[12+2])
	require.NotZero(t, data[12+1]&0x04)
	require.Equal(t, uint32(100), binary.BigEndian.Uint32(data[16:20]))

	require.Equal(t, byte(0xAA), data[20+2])
	require.Equal(t, uint32(110), binary.BigEndian.Uint32(data[24:28]))
}

func TestImageTransportTOCAllocationLengthTruncates(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(4)), 4*2048)

	reply, err := tr.Execute(&Request{
		Command:     ReadTOC{AllocationLength: 12},
		ReplyLength: 12,
		Direction:   DirectionRead,
	})
	require.NoError(t, err)
	require.Len(t, reply.Data, 12)
	// the length field still describes the full table
	require.Equal(t, uint16(2+2*8), binary.BigEndian.Uint16(reply.Data[0:2]))
}

func TestImageTransportBlockLength(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(4)), 4*2048, WithBlockLength(512, false))

	_, err := read(t, tr, 0, 1)
	require.ErrorIs(t, err, ErrTransport)

	sel := ModeSelect6{BlockLength: 2048}
	_, err = tr.Execute(&Request{Command: sel, Data: sel.ParameterList(), Direction: DirectionWrite})
	require.NoError(t, err)

	reply, err := tr.Execute(&Request{
		Command:     ModeSense6{AllocationLength: MODE_SENSE_LENGTH},
		ReplyLength: MODE_SENSE_LENGTH,
		Direction:   DirectionRead,
	})
	require.NoError(t, err)
	require.Equal(t, uint32(2048), Uint24(reply.Data[9:12]))

	_, err = read(t, tr, 0, 1)
	require.NoError(t, err)
}

func TestImageTransportLockedBlockLength(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(4)), 4*2048, WithBlockLength(2352, true))

	sel := ModeSelect6{BlockLength: 2048}
	_, err := tr.Execute(&Request{Command: sel, Data: sel.ParameterList(), Direction: DirectionWrite})
	require.NoError(t, err)

	reply, err := tr.Execute(&Request{
		Command:     ModeSense6{AllocationLength: MODE_SENSE_LENGTH},
		ReplyLength: MODE_SENSE_LENGTH,
		Direction:   DirectionRead,
	})
	require.NoError(t, err)
	require.Equal(t, uint32(2352), Uint24(reply.Data[9:12]))
}

func TestImageTransportNotReady(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(1)), 2048, WithNotReadyCount(1))

	reply, err := tr.Execute(&Request{Command: TestUnitReady{}, Quiet: true})
	require.ErrorIs(t, err, ErrTransport)
	require.Equal(t, byte(SENSE_KEY_NOT_READY), reply.SenseKey())

	_, err = tr.Execute(&Request{Command: TestUnitReady{}})
	require.NoError(t, err)
}

func TestImageTransportInquiryAndCapacity(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(4)), 4*2048, WithIdentity("PLEXTOR", "CD-R PX-W4012A", "1.07"))

	reply, err := tr.Execute(&Request{
		Command:     Inquiry{AllocationLength: INQUIRY_LENGTH},
		ReplyLength: INQUIRY_LENGTH,
		Direction:   DirectionRead,
	})
	require.NoError(t, err)
	require.Equal(t, byte(0x05), reply.Data[0]&0x1F)
	require.Equal(t, "PLEXTOR ", string(reply.Data[8:16]))
	require.Equal(t, "1.07", string(reply.Data[32:36]))

	reply, err = tr.Execute(&Request{
		Command:     ReadCapacity10{},
		ReplyLength: READ_CAPACITY_LENGTH,
		Direction:   DirectionRead,
	})
	require.NoError(t, err)
	require.Equal(t, uint32(3), binary.BigEndian.Uint32(reply.Data[0:4]))
	require.Equal(t, uint32(2048), binary.BigEndian.Uint32(reply.Data[4:8]))
}

func TestImageTransportStateAndHistory(t *testing.T) {
	tr := NewImageTransport(bytes.NewReader(pattern(1)), 2048)

	_, err := tr.Execute(&Request{Command: PreventAllowRemoval{Prevent: true}})
	require.NoError(t, err)
	_, err = tr.Execute(&Request{Command: StartStopUnit{Start: true}})
	require.NoError(t, err)
	require.True(t, tr.Prevented())
	require.True(t, tr.Started())

	require.Equal(t, []Opcode{OP_PREVENT_ALLOW, OP_START_STOP_UNIT}, tr.History())

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	require.True(t, tr.Closed())

	_, err = tr.Execute(&Request{Command: TestUnitReady{}})
	require.ErrorIs(t, err, ErrTransport)
}

func TestOpenImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disc.iso")
	require.NoError(t, os.WriteFile(path, pattern(3), 0o644))

	tr, err := OpenImage(path, 0)
	require.NoError(t, err)
	defer tr.Close()

	reply, err := read(t, tr, 2, 1)
	require.NoError(t, err)
	require.Equal(t, byte(3), reply.Data[0])

	_, err = OpenImage(filepath.Join(t.TempDir(), "missing.iso"), 0)
	require.Error(t, err)
}

func TestOpenPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disc.iso")
	require.NoError(t, os.WriteFile(path, pattern(3), 0o644))

	tr, err := OpenPath(path, 0)
	require.NoError(t, err)
	defer tr.Close()
	require.IsType(t, &ImageTransport{}, tr)

	_, err = OpenPath(t.TempDir(), 0)
	require.Error(t, err)
}
