//go:build linux

package scsi

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	sgIO            = 0x2285
	sgGetVersionNum = 0x2282
	sgInterfaceID   = 'S'
	sgDxferNone     = -1
	sgDxferToDev    = -2
	sgDxferFromDev  = -3
	senseBufferSize = 32

	driverStatusMask = 0x0F
	statusMask       = 0x3E
)

// sgIOHdr mirrors struct sg_io_hdr from <scsi/sg.h>.
type sgIOHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSbLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         *byte
	cmdp           *byte
	sbp            *byte
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         uintptr
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

// SGIOTransport talks to a device through the Linux SG_IO ioctl. It works on both sr and sg nodes.
type SGIOTransport struct {
	fd      int
	path    string
	timeout time.Duration
}

// OpenSGIO opens the device for SG_IO requests. The node is opened non-blocking so that a drive without media can
// still be queried.
func OpenSGIO(path string, timeout time.Duration) (Transport, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var version int32
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), sgGetVersionNum, uintptr(unsafe.Pointer(&version))); errno != 0 {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("%s is not a SCSI generic capable device: %w", path, errno)
	}

	return &SGIOTransport{fd: fd, path: path, timeout: timeout}, nil
}

// Execute issues the command and waits for it to complete or time out.
func (s *SGIOTransport) Execute(req *Request) (*Reply, error) {
	cdb := req.Command.Bytes()
	sense := make([]byte, senseBufferSize)

	hdr := sgIOHdr{
		interfaceID: sgInterfaceID,
		cmdLen:      uint8(len(cdb)),
		cmdp:        &cdb[0],
		mxSbLen:     senseBufferSize,
		sbp:         &sense[0],
		timeout:     uint32(s.requestTimeout(req) / time.Millisecond),
	}

	var buf []byte
	switch req.Direction {
	case DirectionRead:
		buf = make([]byte, req.ReplyLength)
		hdr.dxferDirection = sgDxferFromDev
	case DirectionWrite:
		buf = req.Data
		hdr.dxferDirection = sgDxferToDev
	default:
		hdr.dxferDirection = sgDxferNone
	}
	if len(buf) > 0 {
		hdr.dxferLen = uint32(len(buf))
		hdr.dxferp = &buf[0]
	} else if req.Direction != DirectionNone {
		hdr.dxferDirection = sgDxferNone
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(s.fd), sgIO, uintptr(unsafe.Pointer(&hdr))); errno != 0 {
		return &Reply{Status: StatusHostError}, fmt.Errorf("%s: %w: ioctl SG_IO on %s: %v", req.name(), ErrTransport, s.path, errno)
	}

	reply := &Reply{Status: StatusGood}
	if req.Direction == DirectionRead {
		received := len(buf) - int(hdr.resid)
		if received < 0 {
			received = 0
		}
		reply.Data = buf[:received]
		if received < req.ReplyLength {
			reply.Status = StatusShort
		}
	}

	switch {
	case hdr.status&statusMask != 0 || (hdr.driverStatus&driverStatusMask != 0 && hdr.sbLenWr > 0):
		reply.Status = StatusCheckCondition
		reply.Sense = sense[:hdr.sbLenWr]
	case hdr.hostStatus != 0 || hdr.driverStatus&driverStatusMask != 0:
		reply.Status = StatusHostError
	}

	if !reply.OK() {
		return reply, replyError(req, reply)
	}
	return reply, nil
}

func (s *SGIOTransport) requestTimeout(req *Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	return s.timeout
}

// Close releases the device handle. It is safe to call more than once.
func (s *SGIOTransport) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}
