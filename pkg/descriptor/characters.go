package descriptor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bgrewell/readiso/pkg/consts"
)

// validateByAllowedChars checks that every character in s is contained in the allowed set. The setName is used in
// error messages.
func validateByAllowedChars(s, allowed, setName string) error {
	for i, r := range s {
		if !strings.ContainsRune(allowed, r) {
			return fmt.Errorf("invalid %s-character at index %d: %q is not allowed", setName, i, r)
		}
	}
	return nil
}

// ValidateACharacters checks that every character in s is one of the a-characters.
func ValidateACharacters(s string) error {
	return validateByAllowedChars(s, consts.A_CHARACTERS, "a")
}

// ValidateDCharacters checks that every character in s is one of the d-characters.
func ValidateDCharacters(s string) error {
	return validateByAllowedChars(s, consts.D_CHARACTERS, "d")
}

// CheckIdentifiers reports the identifier fields that use characters outside their set. Lowercase labels are common
// on real discs, so callers should only log the result.
func (pvd *PrimaryVolumeDescriptor) CheckIdentifiers() error {
	var errs []error
	check := func(field, value string, validate func(string) error) {
		if err := validate(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	check("system identifier", pvd.SystemIdentifier, ValidateACharacters)
	check("volume identifier", pvd.VolumeIdentifier, ValidateDCharacters)
	check("volume set identifier", pvd.VolumeSetIdentifier, ValidateDCharacters)
	check("publisher identifier", pvd.PublisherIdentifier, ValidateACharacters)
	check("data preparer identifier", pvd.DataPreparerIdentifier, ValidateACharacters)
	check("application identifier", pvd.ApplicationIdentifier, ValidateACharacters)
	return errors.Join(errs...)
}
