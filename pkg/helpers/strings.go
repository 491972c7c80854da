package helpers

import (
	"strings"

	"github.com/bgrewell/readiso/pkg/consts"
)

// PadString copies s into a buffer of the given length and fills the remainder with the ISO9660 filler.
func PadString(s string, length int) []byte {
	b := make([]byte, length)
	copy(b, s)
	for i := len(s); i < length; i++ {
		b[i] = consts.ISO9660_FILLER
	}
	return b
}

// TrimPadding returns the field as a string with trailing filler removed. NUL padding is left untouched.
func TrimPadding(field []byte) string {
	return strings.TrimRight(string(field), string(rune(consts.ISO9660_FILLER)))
}
