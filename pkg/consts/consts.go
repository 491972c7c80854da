package consts

import "time"

const (
	// Number of system area sectors in front of the volume descriptor set.
	ISO9660_SYSTEM_AREA_SECTORS = 16

	// Standard ISO9660 identifier.
	ISO9660_STD_IDENTIFIER = "CD001"

	// ISO9660 volume descriptor version (always 1).
	ISO9660_VOLUME_DESC_VERSION = 1

	// ISO9660 default sector size. This is also the logical block size the drive is switched to before reading.
	ISO9660_SECTOR_SIZE = 2048

	// ISO9660 volume descriptor header size
	ISO9660_VOLUME_DESC_HEADER_SIZE = 7

	// ISO9660 application use area size
	ISO9660_APPLICATION_USE_SIZE = 512

	// ISO9660 a-characters
	A_CHARACTERS = " !\"%&'()*+,-./0123456789:;<=>?ABCDEFGHIJKLMNOPQRSTUVWXYZ_"

	// ISO9660 d-characters
	D_CHARACTERS = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_"

	// ISO9660 Filler 0x20 (space)
	ISO9660_FILLER = ' '

	// Raw audio block size: CD-DA (2352) plus Q sub-channel (16).
	AUDIO_BLOCK_SIZE = 2368

	// Number of blocks the image may be smaller than its track before the track size is preferred.
	MAX_SLACK_BLOCKS = 512

	// ADR/control bit marking a data track in a TOC track descriptor.
	TOC_DATA_TRACK = 0x04

	// Track number of the lead-out descriptor in a TOC reply.
	TOC_LEAD_OUT = 0xAA

	// Frames per second and seconds per minute used for MSF addressing.
	CD_FRAMES_PER_SECOND  = 75
	CD_SECONDS_PER_MINUTE = 60

	// Default number of blocks requested per READ(10).
	DEFAULT_READ_BLOCKS = 64

	// Default device path for the optical drive.
	DEFAULT_DEVICE = "/dev/cdrom"

	// Default SCSI command timeout.
	DEFAULT_TIMEOUT = 15 * time.Second

	// Delay before the single retry of TEST UNIT READY.
	DEFAULT_READY_DELAY = 1 * time.Second
)
