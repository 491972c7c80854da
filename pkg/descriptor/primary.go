package descriptor

import (
	"encoding/binary"
	"fmt"

	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/encoding"
	"github.com/bgrewell/readiso/pkg/helpers"
)

const (
	// Byte offset of the volume space size field within the descriptor sector.
	VOLUME_SPACE_SIZE_OFFSET = 80
	// Size of the root directory record embedded in the descriptor. It is kept raw.
	ROOT_DIRECTORY_RECORD_SIZE = 34
)

// PrimaryVolumeDescriptor is the fixed layout descriptor found at logical block 16 of a data track. Only the fixed
// fields are decoded; the root directory record is carried as raw bytes.
type PrimaryVolumeDescriptor struct {
	VolumeDescriptorHeader
	// System Identifier specifies a system which can recognize and act upon the content of the Logical Sectors within
	// logical Sector Numbers 0 to 15 of the volume.
	//  | (a-characters)
	SystemIdentifier string `json:"system_identifier"`
	// Volume Identifier specifies an identification of the volume
	//  | (d-characters)
	VolumeIdentifier string `json:"volume_identifier"`
	// Volume Space Size is the number of logical blocks in which the Volume Space of the volume is recorded.
	//  | Encoding: BothByteOrder (little-endian half consumed)
	VolumeSpaceSize uint32 `json:"volume_space_size"`
	// VolumeSpaceSizeConsistent is false when the two byte orders of the volume space size disagree.
	VolumeSpaceSizeConsistent bool `json:"volume_space_size_consistent"`
	// Volume Set Size is the assigned Volume Set size of the volume.
	//  | Encoding: BothByteOrder
	VolumeSetSize uint16 `json:"volume_set_size"`
	// Volume Sequence Number is the ordinal number of the volume in the Volume Set.
	//  | Encoding: BothByteOrder
	VolumeSequenceNumber uint16 `json:"volume_sequence_number"`
	// Logical Block Size specifies the size in bytes of a logical block
	//  | Encoding: BothByteOrder
	LogicalBlockSize uint16 `json:"logical_block_size"`
	// Path Table Size specifies the length in bytes of the Path Table.
	//  | Encoding: BothByteOrder
	PathTableSize uint32 `json:"path_table_size"`
	//  | Encoding: LittleEndian
	LocationOfTypeLPathTable uint32 `json:"location_of_type_l_path_table"`
	//  | Encoding: BigEndian
	LocationOfTypeMPathTable uint32 `json:"location_of_type_m_path_table"`
	// Root Directory Record, undecoded.
	RootDirectoryRecord [ROOT_DIRECTORY_RECORD_SIZE]byte `json:"-"`
	// Volume Set Identifier
	//  | (d-characters)
	VolumeSetIdentifier string `json:"volume_set_identifier"`
	// Publisher Identifier
	//  | (a-characters)
	PublisherIdentifier string `json:"publisher_identifier"`
	// Data Preparer Identifier
	//  | (a-characters)
	DataPreparerIdentifier string `json:"data_preparer_identifier"`
	// Application Identifier
	//  | (a-characters)
	ApplicationIdentifier       string `json:"application_identifier"`
	CopyrightFileIdentifier     string `json:"copyright_file_identifier"`
	AbstractFileIdentifier      string `json:"abstract_file_identifier"`
	BibliographicFileIdentifier string `json:"bibliographic_file_identifier"`
	// Volume dates.
	//  | 8.4.26.1 Date and Time Format
	VolumeCreationDateAndTime     encoding.DateTime `json:"volume_creation_date_and_time"`
	VolumeModificationDateAndTime encoding.DateTime `json:"volume_modification_date_and_time"`
	VolumeExpirationDateAndTime   encoding.DateTime `json:"volume_expiration_date_and_time"`
	VolumeEffectiveDateAndTime    encoding.DateTime `json:"volume_effective_date_and_time"`
	// File Structure Version, 1 for a Primary Volume Descriptor.
	FileStructureVersion uint8 `json:"file_structure_version"`
}

// IsPrimary reports whether the header carries the primary descriptor type and the standard identifier.
func (pvd *PrimaryVolumeDescriptor) IsPrimary() bool {
	return pvd.VolumeDescriptorType == TYPE_PRIMARY_DESCRIPTOR &&
		pvd.StandardIdentifier == consts.ISO9660_STD_IDENTIFIER
}

// SizeBytes returns the declared volume size in bytes using the given logical block size.
func (pvd *PrimaryVolumeDescriptor) SizeBytes(blockSize int) int64 {
	return int64(pvd.VolumeSpaceSize) * int64(blockSize)
}

// ParsePrimary decodes a primary volume descriptor from a sector. The sector must hold at least one full ISO9660
// sector. A wrong type or identifier is not an error; the decoded values are returned as found.
func ParsePrimary(sector []byte) (*PrimaryVolumeDescriptor, error) {
	if len(sector) < consts.ISO9660_SECTOR_SIZE {
		return nil, fmt.Errorf("data too short: expected %d bytes, got %d", consts.ISO9660_SECTOR_SIZE, len(sector))
	}

	pvd := &PrimaryVolumeDescriptor{}
	pvd.VolumeDescriptorHeader.Unmarshal([consts.ISO9660_VOLUME_DESC_HEADER_SIZE]byte(sector[:consts.ISO9660_VOLUME_DESC_HEADER_SIZE]))

	offset := consts.ISO9660_VOLUME_DESC_HEADER_SIZE + 1 // unused byte

	pvd.SystemIdentifier = helpers.TrimPadding(sector[offset : offset+32])
	offset += 32
	pvd.VolumeIdentifier = helpers.TrimPadding(sector[offset : offset+32])
	offset += 32
	offset += 8 // unused

	pvd.VolumeSpaceSize = encoding.UnmarshalUint32LSB(sector[offset : offset+8])
	pvd.VolumeSpaceSizeConsistent = encoding.VerifyBothByteOrders32(sector[offset:offset+8]) == nil
	offset += 8
	offset += 32 // unused

	pvd.VolumeSetSize = encoding.UnmarshalUint16LSB(sector[offset : offset+4])
	offset += 4
	pvd.VolumeSequenceNumber = encoding.UnmarshalUint16LSB(sector[offset : offset+4])
	offset += 4
	pvd.LogicalBlockSize = encoding.UnmarshalUint16LSB(sector[offset : offset+4])
	offset += 4
	pvd.PathTableSize = encoding.UnmarshalUint32LSB(sector[offset : offset+8])
	offset += 8

	pvd.LocationOfTypeLPathTable = binary.LittleEndian.Uint32(sector[offset : offset+4])
	offset += 8 // type L and optional type L
	pvd.LocationOfTypeMPathTable = binary.BigEndian.Uint32(sector[offset : offset+4])
	offset += 8 // type M and optional type M

	copy(pvd.RootDirectoryRecord[:], sector[offset:offset+ROOT_DIRECTORY_RECORD_SIZE])
	offset += ROOT_DIRECTORY_RECORD_SIZE

	pvd.VolumeSetIdentifier = helpers.TrimPadding(sector[offset : offset+128])
	offset += 128
	pvd.PublisherIdentifier = helpers.TrimPadding(sector[offset : offset+128])
	offset += 128
	pvd.DataPreparerIdentifier = helpers.TrimPadding(sector[offset : offset+128])
	offset += 128
	pvd.ApplicationIdentifier = helpers.TrimPadding(sector[offset : offset+128])
	offset += 128
	pvd.CopyrightFileIdentifier = helpers.TrimPadding(sector[offset : offset+37])
	offset += 37
	pvd.AbstractFileIdentifier = helpers.TrimPadding(sector[offset : offset+37])
	offset += 37
	pvd.BibliographicFileIdentifier = helpers.TrimPadding(sector[offset : offset+37])
	offset += 37

	for _, date := range []*encoding.DateTime{
		&pvd.VolumeCreationDateAndTime,
		&pvd.VolumeModificationDateAndTime,
		&pvd.VolumeExpirationDateAndTime,
		&pvd.VolumeEffectiveDateAndTime,
	} {
		copy(date[:], sector[offset:offset+17])
		offset += 17
	}

	pvd.FileStructureVersion = sector[offset]

	return pvd, nil
}

// Marshal converts the descriptor into its 2048-byte on-disk representation, padding text fields with
// consts.ISO9660_FILLER.
func (pvd *PrimaryVolumeDescriptor) Marshal() [consts.ISO9660_SECTOR_SIZE]byte {
	var data [consts.ISO9660_SECTOR_SIZE]byte

	header := pvd.VolumeDescriptorHeader.Marshal()
	copy(data[:], header[:])
	offset := consts.ISO9660_VOLUME_DESC_HEADER_SIZE + 1

	put := func(b []byte) {
		copy(data[offset:], b)
		offset += len(b)
	}

	put(helpers.PadString(pvd.SystemIdentifier, 32))
	put(helpers.PadString(pvd.VolumeIdentifier, 32))
	offset += 8
	vss := encoding.MarshalBothByteOrders32(pvd.VolumeSpaceSize)
	put(vss[:])
	offset += 32
	vset := encoding.MarshalBothByteOrders16(pvd.VolumeSetSize)
	put(vset[:])
	vseq := encoding.MarshalBothByteOrders16(pvd.VolumeSequenceNumber)
	put(vseq[:])
	lbs := encoding.MarshalBothByteOrders16(pvd.LogicalBlockSize)
	put(lbs[:])
	pts := encoding.MarshalBothByteOrders32(pvd.PathTableSize)
	put(pts[:])
	binary.LittleEndian.PutUint32(data[offset:], pvd.LocationOfTypeLPathTable)
	offset += 8
	binary.BigEndian.PutUint32(data[offset:], pvd.LocationOfTypeMPathTable)
	offset += 8
	put(pvd.RootDirectoryRecord[:])
	put(helpers.PadString(pvd.VolumeSetIdentifier, 128))
	put(helpers.PadString(pvd.PublisherIdentifier, 128))
	put(helpers.PadString(pvd.DataPreparerIdentifier, 128))
	put(helpers.PadString(pvd.ApplicationIdentifier, 128))
	put(helpers.PadString(pvd.CopyrightFileIdentifier, 37))
	put(helpers.PadString(pvd.AbstractFileIdentifier, 37))
	put(helpers.PadString(pvd.BibliographicFileIdentifier, 37))
	put(pvd.VolumeCreationDateAndTime[:])
	put(pvd.VolumeModificationDateAndTime[:])
	put(pvd.VolumeExpirationDateAndTime[:])
	put(pvd.VolumeEffectiveDateAndTime[:])
	data[offset] = pvd.FileStructureVersion

	return data
}
