package encoding

import (
	"encoding/binary"
	"fmt"
	"time"
)

// MarshalBothByteOrders32 converts a uint32 value into an 8-byte field that
// encodes the value in both little‑endian and big‑endian orders.
// The resulting byte order is: (yz, wx, uv, st, st, uv, wx, yz),
// where (st uv wx yz) is the hexadecimal representation of the value.
func MarshalBothByteOrders32(val uint32) [8]byte {
	var data [8]byte
	binary.LittleEndian.PutUint32(data[0:4], val)
	binary.BigEndian.PutUint32(data[4:8], val)
	return data
}

// UnmarshalUint32LSB reads the little-endian half of a both-byte-order field. The big-endian copy is ignored, so a
// descriptor written by a tool that got one of the halves wrong still yields a value.
func UnmarshalUint32LSB(data []byte) uint32 {
	return binary.LittleEndian.Uint32(data[0:4])
}

// VerifyBothByteOrders32 reports an error when the two halves of a both-byte-order field disagree.
func VerifyBothByteOrders32(data []byte) error {
	little := binary.LittleEndian.Uint32(data[0:4])
	big := binary.BigEndian.Uint32(data[4:8])
	if little != big {
		return fmt.Errorf("mismatched both-byte orders: little-endian value %d != big-endian value %d", little, big)
	}
	return nil
}

// MarshalBothByteOrders16 converts a uint16 value into a 4-byte field that
// encodes the value in both little‑endian and big‑endian orders.
// For example, for the value 0x1234, it returns [0x34, 0x12, 0x12, 0x34].
func MarshalBothByteOrders16(val uint16) [4]byte {
	var data [4]byte
	binary.LittleEndian.PutUint16(data[0:2], val)
	binary.BigEndian.PutUint16(data[2:4], val)
	return data
}

// UnmarshalUint16LSB reads the little-endian half of a 16-bit both-byte-order field.
func UnmarshalUint16LSB(data []byte) uint16 {
	return binary.LittleEndian.Uint16(data[0:2])
}

// DateTime is the 17-byte volume descriptor date/time field (ISO9660 8.4.26.1):
//
//	YYYY MM DD hh mm ss cc
//
// as ASCII digits followed by the time zone offset in 15-minute intervals.
type DateTime [17]byte

// IsNull reports whether the field holds the "not specified" date. Mastering tools disagree on how to write it
// (all '0', all spaces, all NUL), so any run of sixteen identical digit bytes counts. The offset byte is ignored.
func (d DateTime) IsNull() bool {
	for i := 1; i < 16; i++ {
		if d[i] != d[0] {
			return false
		}
	}
	return true
}

// String renders the date as "DD.MM.YYYY hh:mm:ss". The null date renders as an empty string.
func (d DateTime) String() string {
	if d.IsNull() {
		return ""
	}
	return fmt.Sprintf("%s.%s.%s %s:%s:%s",
		d[6:8], d[4:6], d[0:4], d[8:10], d[10:12], d[12:14])
}

// Time converts the field into a time.Time. The null date yields the zero time.
func (d DateTime) Time() (time.Time, error) {
	if d.IsNull() {
		return time.Time{}, nil
	}

	var (
		year, mon, day int
		hour, min, sec int
		hundredths     int
	)
	_, err := fmt.Sscanf(string(d[:16]), "%4d%2d%2d%2d%2d%2d%2d",
		&year, &mon, &day, &hour, &min, &sec, &hundredths)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse error: %w", err)
	}

	offset15 := int8(d[16])
	if offset15 < -48 || offset15 > 52 {
		return time.Time{}, fmt.Errorf("offset %d out of ISO9660 bounds", offset15)
	}
	offsetSec := int(offset15) * 900

	loc := time.UTC
	if offsetSec != 0 {
		loc = time.FixedZone("", offsetSec)
	}

	return time.Date(year, time.Month(mon), day, hour, min, sec, hundredths*10_000_000, loc), nil
}

// MarshalDateTime converts a time.Time into a DateTime. The zero time becomes sixteen ASCII '0' and a zero offset.
func MarshalDateTime(t time.Time) (DateTime, error) {
	var out DateTime

	if t.IsZero() {
		for i := 0; i < 16; i++ {
			out[i] = '0'
		}
		return out, nil
	}

	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	s := fmt.Sprintf("%04d%02d%02d%02d%02d%02d%02d",
		y, int(m), d, hh, mm, ss, t.Nanosecond()/10_000_000)
	copy(out[:16], s)

	_, offsetSec := t.Zone()
	offset15 := offsetSec / 900
	if offset15 < -48 || offset15 > 52 {
		return DateTime{}, fmt.Errorf("offset %d out of ISO9660 bounds", offset15)
	}
	out[16] = byte(int8(offset15))
	return out, nil
}
