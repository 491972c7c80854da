package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bgrewell/readiso/pkg/descriptor"
	"github.com/bgrewell/readiso/pkg/scsi"
	"github.com/rn/iso9660wrap"
)

const sectorSize = 2048

// Payload returns n sectors of recognisable data: every byte of sector i is byte(i+1).
func Payload(sectors int) []byte {
	data := make([]byte, sectors*sectorSize)
	for i := range data {
		data[i] = byte(i/sectorSize + 1)
	}
	return data
}

// BuildISO wraps payload into a single-file ISO9660 image. The declared volume size equals the image length.
func BuildISO(t testing.TB, payload []byte, name string) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	if err := iso9660wrap.WriteBuffer(buf, payload, name); err != nil {
		t.Fatalf("build iso: %v", err)
	}
	return buf.Bytes()
}

// BuildRaw returns an image of the given number of sectors whose sector 16 holds pvd. The other sectors carry their
// own sector number in every byte.
func BuildRaw(t testing.TB, sectors int, pvd *descriptor.PrimaryVolumeDescriptor) []byte {
	t.Helper()

	if sectors <= 16 {
		t.Fatalf("image of %d sectors has no room for a volume descriptor", sectors)
	}
	data := make([]byte, sectors*sectorSize)
	for i := range data {
		data[i] = byte(i / sectorSize)
	}
	if pvd != nil {
		sector := pvd.Marshal()
		copy(data[16*sectorSize:], sector[:])
	}
	return data
}

// Primary returns a valid primary volume descriptor declaring the given size.
func Primary(blocks uint32) *descriptor.PrimaryVolumeDescriptor {
	return &descriptor.PrimaryVolumeDescriptor{
		VolumeDescriptorHeader: descriptor.VolumeDescriptorHeader{
			VolumeDescriptorType:    descriptor.TYPE_PRIMARY_DESCRIPTOR,
			StandardIdentifier:      "CD001",
			VolumeDescriptorVersion: 1,
		},
		SystemIdentifier:          "LINUX",
		VolumeIdentifier:          "TEST_DISC",
		VolumeSpaceSize:           blocks,
		VolumeSpaceSizeConsistent: true,
		VolumeSetSize:             1,
		VolumeSequenceNumber:      1,
		LogicalBlockSize:          sectorSize,
		FileStructureVersion:      1,
	}
}

// ImageDrive builds an emulated drive over image.
func ImageDrive(image []byte, opts ...scsi.ImageOption) *scsi.ImageTransport {
	return scsi.NewImageTransport(bytes.NewReader(image), int64(len(image)), opts...)
}

// WriteImage stores image in a temporary file and returns its path.
func WriteImage(t testing.TB, image []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "disc.iso")
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
