package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bgrewell/readiso/internal/testsupport"
	"github.com/bgrewell/readiso/pkg/logging"
	"github.com/bgrewell/readiso/pkg/scsi"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	image := testsupport.BuildRaw(t, 20, nil)
	s := NewScanner(logging.DefaultLogger())
	s.Enumerate = StaticCandidates("/dev/sr0", "/dev/sg3")
	s.Opener = func(path string, timeout time.Duration) (scsi.Transport, error) {
		if path == "/dev/sg3" {
			return nil, errors.New("permission denied")
		}
		return testsupport.ImageDrive(image, scsi.WithIdentity("HL-DT-ST", "DVDRAM GH24NSD1", "LG00")), nil
	}

	devices, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	require.Equal(t, "sr0", devices[0].Name)
	require.NoError(t, devices[0].Err)
	require.Equal(t, "HL-DT-ST", devices[0].Identity.Vendor)
	require.True(t, devices[0].Identity.IsCDROM())

	require.Equal(t, "/dev/sg3", devices[1].Path)
	require.Error(t, devices[1].Err)
	require.Nil(t, devices[1].Identity)
}

func TestScanEnumerateError(t *testing.T) {
	s := NewScanner(nil)
	s.Enumerate = func(context.Context) ([]Candidate, error) {
		return nil, errors.New("no sysfs")
	}
	_, err := s.Scan(context.Background())
	require.Error(t, err)
}

func TestScanCancelled(t *testing.T) {
	s := NewScanner(nil)
	s.Enumerate = StaticCandidates("/dev/sr0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Scan(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCandidateFromEnv(t *testing.T) {
	c, ok := candidateFromEnv("/devices/pci0000:00/ata2/host1/target1:0:0/1:0:0:0/block/sr0", map[string]string{
		"DEVNAME":   "sr0",
		"SUBSYSTEM": "block",
	})
	require.True(t, ok)
	require.Equal(t, "/dev/sr0", c.Path)
	require.Equal(t, "block", c.Subsystem)

	_, ok = candidateFromEnv("", map[string]string{"DEVNAME": "bsg/1:0:0:0"})
	require.False(t, ok)

	_, ok = candidateFromEnv("", map[string]string{"DEVNAME": "sda"})
	require.False(t, ok)
}
