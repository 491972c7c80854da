package scsi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommandBytes(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{"test unit ready", TestUnitReady{}, []byte{0x00, 0, 0, 0, 0, 0}},
		{"inquiry", Inquiry{AllocationLength: 36}, []byte{0x12, 0, 0, 0, 36, 0}},
		{"mode sense", ModeSense6{PageCode: 0x01, AllocationLength: 12}, []byte{0x1A, 0, 0x01, 0, 12, 0}},
		{"mode select", ModeSelect6{BlockLength: 2048}, []byte{0x15, 0x10, 0, 0, 12, 0}},
		{"start", StartStopUnit{Start: true}, []byte{0x1B, 0, 0, 0, 1, 0}},
		{"stop", StartStopUnit{}, []byte{0x1B, 0, 0, 0, 0, 0}},
		{"prevent", PreventAllowRemoval{Prevent: true}, []byte{0x1E, 0, 0, 0, 1, 0}},
		{"allow", PreventAllowRemoval{}, []byte{0x1E, 0, 0, 0, 0, 0}},
		{"read capacity", ReadCapacity10{}, []byte{0x25, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"read 10", Read10{LBA: 0x00010203, Blocks: 64}, []byte{0x28, 0, 0x00, 0x01, 0x02, 0x03, 0, 0x00, 0x40, 0}},
		{"read toc", ReadTOC{StartTrack: 1, AllocationLength: 1024}, []byte{0x43, 0, 0, 0, 0, 0, 1, 0x04, 0x00, 0}},
		{"read toc msf", ReadTOC{MSF: true, AllocationLength: 12}, []byte{0x43, 0x02, 0, 0, 0, 0, 0, 0, 12, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.cmd.Bytes())
			require.Equal(t, Opcode(tt.want[0]), tt.cmd.Opcode())
		})
	}
}

func TestModeSelectParameterList(t *testing.T) {
	data := ModeSelect6{BlockLength: 2048}.ParameterList()
	require.Len(t, data, MODE_SELECT_PARAMETER_LENGTH)
	require.Equal(t, byte(8), data[3])
	require.Equal(t, []byte{0x00, 0x08, 0x00}, data[9:12])
	require.Equal(t, uint32(2048), Uint24(data[9:12]))
}

func TestOpcodeString(t *testing.T) {
	require.Equal(t, "read_10", OP_READ_10.String())
	require.Equal(t, "read_toc", OP_READ_TOC.String())
	require.Equal(t, "opcode(0xff)", Opcode(0xFF).String())
}
