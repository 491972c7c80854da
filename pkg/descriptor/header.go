package descriptor

import (
	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/helpers"
)

// VolumeDescriptorType represents the type of volume descriptor in the ISO9660 standard.
type VolumeDescriptorType byte

const (
	// TYPE_BOOT_RECORD indicates a Boot Record (type 0).
	TYPE_BOOT_RECORD VolumeDescriptorType = 0x00

	// TYPE_PRIMARY_DESCRIPTOR indicates a Primary Volume Descriptor (type 1).
	TYPE_PRIMARY_DESCRIPTOR VolumeDescriptorType = 0x01

	// TYPE_SUPPLEMENTARY_DESCRIPTOR indicates a Supplementary Volume Descriptor (type 2).
	TYPE_SUPPLEMENTARY_DESCRIPTOR VolumeDescriptorType = 0x02

	// TYPE_PARTITION_DESCRIPTOR indicates a Partition Volume Descriptor (type 3).
	TYPE_PARTITION_DESCRIPTOR VolumeDescriptorType = 0x03

	// TYPE_TERMINATOR_DESCRIPTOR indicates the Volume Descriptor Set Terminator (type 255).
	TYPE_TERMINATOR_DESCRIPTOR VolumeDescriptorType = 0xFF
)

type VolumeDescriptorHeader struct {
	// Volume Descriptor Types.
	//  | 0 = Boot Record
	//  | 1 = Primary
	//  | 2 = Supplementary
	//  | 3 = Partition
	//  | 4 - 254 = Reserved
	//  | 255 = Terminator
	VolumeDescriptorType VolumeDescriptorType `json:"volume_descriptor_type"`
	// Standard Identifier should always be 'CD001'. It is kept verbatim so that a damaged header can be displayed.
	StandardIdentifier string `json:"standard_identifier"`
	// Volume Descriptor Version. The contents and interpretation depend on the Volume Descriptor Type field.
	VolumeDescriptorVersion uint8 `json:"volume_descriptor_version"`
}

func (h *VolumeDescriptorHeader) Type() VolumeDescriptorType {
	return h.VolumeDescriptorType
}

func (h *VolumeDescriptorHeader) Identifier() string {
	return h.StandardIdentifier
}

func (h *VolumeDescriptorHeader) Version() uint8 {
	return h.VolumeDescriptorVersion
}

// Marshal converts the VolumeDescriptorHeader into its 7-byte on-disk representation.
func (h *VolumeDescriptorHeader) Marshal() [consts.ISO9660_VOLUME_DESC_HEADER_SIZE]byte {
	var buf [consts.ISO9660_VOLUME_DESC_HEADER_SIZE]byte
	buf[0] = byte(h.VolumeDescriptorType)
	copy(buf[1:6], helpers.PadString(h.StandardIdentifier, 5))
	buf[6] = h.VolumeDescriptorVersion
	return buf
}

// Unmarshal parses the 7-byte header. The identifier is not checked here; callers decide what a mismatch means.
func (h *VolumeDescriptorHeader) Unmarshal(data [consts.ISO9660_VOLUME_DESC_HEADER_SIZE]byte) {
	h.VolumeDescriptorType = VolumeDescriptorType(data[0])
	h.StandardIdentifier = string(data[1:6])
	h.VolumeDescriptorVersion = data[6]
}
