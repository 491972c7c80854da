package descriptor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateCharacters(t *testing.T) {
	require.NoError(t, ValidateDCharacters("UBUNTU_24_04"))
	require.Error(t, ValidateDCharacters("Ubuntu 24.04"))
	require.NoError(t, ValidateACharacters("GENISOIMAGE ISO 9660/HFS FILESYSTEM CREATOR (C) 1993 E.YOUNGDALE (C) 1997-2006 J.PEARSON/J.SCHILLING (C) 2006-2007 CDRKIT TEAM"))
	require.Error(t, ValidateACharacters("genisoimage"))
}

func TestCheckIdentifiers(t *testing.T) {
	pvd := testDescriptor()
	require.NoError(t, pvd.CheckIdentifiers())

	pvd.VolumeIdentifier = "my disc"
	pvd.PublisherIdentifier = "acme"
	err := pvd.CheckIdentifiers()
	require.ErrorContains(t, err, "volume identifier")
	require.ErrorContains(t, err, "publisher identifier")
	require.NotContains(t, err.Error(), "system identifier")
}
