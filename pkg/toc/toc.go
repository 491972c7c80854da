package toc

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bgrewell/readiso/pkg/consts"
)

var (
	// ErrNoDataTrack is returned by FirstDataTrack when every track is audio.
	ErrNoDataTrack = errors.New("no data track found")
	// ErrInvalidTrack is returned when a requested track is outside the table.
	ErrInvalidTrack = errors.New("invalid track")
	// ErrNotDataTrack is returned when a requested track is not a data track.
	ErrNotDataTrack = errors.New("not a data track")
	// ErrMalformed is returned when a reply cannot be decoded.
	ErrMalformed = errors.New("malformed toc")
)

const (
	HEADER_SIZE     = 4
	DESCRIPTOR_SIZE = 8
)

// Track is one entry of the table of contents.
type Track struct {
	Number int
	// Control is the ADR/control byte of the descriptor.
	Control  byte
	IsData   bool
	StartLBA int64
	// EndLBA is the start of the following track or of the lead-out.
	EndLBA int64
}

// Blocks is the length of the track in blocks.
func (t Track) Blocks() int64 {
	return t.EndLBA - t.StartLBA
}

// MSF renders the start address as minutes:seconds:frames.
func (t Track) MSF() string {
	return MSF(t.StartLBA)
}

// Kind is "data" or "audio".
func (t Track) Kind() string {
	if t.IsData {
		return "data"
	}
	return "audio"
}

// MSF renders an LBA as mm:ss:ff.
func MSF(lba int64) string {
	frames := int64(consts.CD_FRAMES_PER_SECOND)
	perMinute := frames * consts.CD_SECONDS_PER_MINUTE
	return fmt.Sprintf("%02d:%02d:%02d", lba/perMinute, (lba%perMinute)/frames, lba%frames)
}

// TOC is the decoded track table of a disc.
type TOC struct {
	FirstTrack int
	LastTrack  int
	Tracks     []Track
	// LeadOut is the start of the lead-out area, or -1 when the reply did not include it.
	LeadOut int64
}

// Parse decodes a READ TOC (format 0, LBA addressing) reply. The descriptor count comes from the length field but
// never exceeds what is present in reply. A track is only kept when the descriptor after it is present, since that
// descriptor supplies its end.
func Parse(reply []byte) (*TOC, error) {
	if len(reply) < HEADER_SIZE {
		return nil, fmt.Errorf("%w: reply of %d bytes is shorter than the header", ErrMalformed, len(reply))
	}

	length := int(binary.BigEndian.Uint16(reply[0:2]))
	count := 0
	if length > 2 {
		count = (length - 2) / DESCRIPTOR_SIZE
	}
	if available := (len(reply) - HEADER_SIZE) / DESCRIPTOR_SIZE; count > available {
		count = available
	}

	t := &TOC{
		FirstTrack: int(reply[2]),
		LastTrack:  int(reply[3]),
		LeadOut:    -1,
	}

	type entry struct {
		control byte
		number  int
		start   int64
	}
	entries := make([]entry, 0, count)
	for i := 0; i < count; i++ {
		o := HEADER_SIZE + i*DESCRIPTOR_SIZE
		entries = append(entries, entry{
			control: reply[o+1],
			number:  int(reply[o+2]),
			start:   int64(binary.BigEndian.Uint32(reply[o+4 : o+8])),
		})
	}

	for i, e := range entries {
		if e.number == consts.TOC_LEAD_OUT {
			t.LeadOut = e.start
			break
		}
		if i+1 >= len(entries) {
			break
		}
		end := entries[i+1].start
		if end < e.start {
			return nil, fmt.Errorf("%w: track %d ends at %d before it starts at %d", ErrMalformed, e.number, end, e.start)
		}
		t.Tracks = append(t.Tracks, Track{
			Number:   e.number,
			Control:  e.control,
			IsData:   e.control&consts.TOC_DATA_TRACK != 0,
			StartLBA: e.start,
			EndLBA:   end,
		})
	}

	return t, nil
}

// Track returns the track with the given number.
func (t *TOC) Track(number int) (Track, bool) {
	for _, tr := range t.Tracks {
		if tr.Number == number {
			return tr, true
		}
	}
	return Track{}, false
}

// FirstDataTrack returns the lowest numbered data track.
func (t *TOC) FirstDataTrack() (Track, error) {
	for _, tr := range t.Tracks {
		if tr.IsData {
			return tr, nil
		}
	}
	return Track{}, ErrNoDataTrack
}

// Select returns the requested track, or the first data track when number is 0.
func (t *TOC) Select(number int) (Track, error) {
	if number == 0 {
		return t.FirstDataTrack()
	}
	if number < t.FirstTrack || number > t.LastTrack {
		return Track{}, fmt.Errorf("%w: track %d is outside %d..%d", ErrInvalidTrack, number, t.FirstTrack, t.LastTrack)
	}
	tr, ok := t.Track(number)
	if !ok {
		return Track{}, fmt.Errorf("%w: track %d is missing from the table", ErrInvalidTrack, number)
	}
	if !tr.IsData {
		return Track{}, fmt.Errorf("%w: track %d", ErrNotDataTrack, number)
	}
	return tr, nil
}
