package scsi

import (
	"errors"
	"fmt"
	"time"
)

// ErrTransport is returned when a command fails at the device or transport level. A short transfer is not an error.
var ErrTransport = errors.New("scsi transport error")

// Direction is the data phase of a command.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionRead
	DirectionWrite
)

// Status summarizes the outcome of a command.
type Status int

const (
	// StatusGood means the command completed and transferred everything that was asked for.
	StatusGood Status = iota
	// StatusShort means the command completed but returned fewer bytes than requested.
	StatusShort
	// StatusCheckCondition means the device reported an error with sense data.
	StatusCheckCondition
	// StatusHostError means the host adapter or driver failed the command.
	StatusHostError
)

func (s Status) String() string {
	switch s {
	case StatusGood:
		return "good"
	case StatusShort:
		return "short"
	case StatusCheckCondition:
		return "check_condition"
	case StatusHostError:
		return "host_error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Request is a single command exchange.
type Request struct {
	// Note names the request in diagnostics. Defaults to the opcode name.
	Note    string
	Command Command
	// Data is sent to the device when Direction is DirectionWrite.
	Data []byte
	// ReplyLength is the number of bytes expected back when Direction is DirectionRead.
	ReplyLength int
	Direction   Direction
	// Quiet suppresses error logging, for probes that are expected to fail.
	Quiet bool
	// Timeout overrides the transport default when non-zero.
	Timeout time.Duration
}

func (r *Request) name() string {
	if r.Note != "" {
		return r.Note
	}
	return r.Command.Opcode().String()
}

// Reply is what came back from the device.
type Reply struct {
	Data   []byte
	Status Status
	Sense  []byte
}

// OK reports whether the reply counts as success, including a short transfer.
func (r *Reply) OK() bool {
	return r.Status == StatusGood || r.Status == StatusShort
}

// SenseKey returns the sense key from fixed format sense data, or 0 when there is none.
func (r *Reply) SenseKey() byte {
	if len(r.Sense) < 3 {
		return 0
	}
	return r.Sense[2] & 0x0F
}

// Transport executes commands against one opened device.
type Transport interface {
	Execute(req *Request) (*Reply, error)
	Close() error
}

// Opener opens a device path and returns a transport for it.
type Opener func(path string, timeout time.Duration) (Transport, error)

// replyError builds the error for a failed reply.
func replyError(req *Request, reply *Reply) error {
	return fmt.Errorf("%s: %w (status=%s sense_key=0x%x returned=%d)",
		req.name(), ErrTransport, reply.Status, reply.SenseKey(), len(reply.Data))
}
