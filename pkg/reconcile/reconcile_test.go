package reconcile

import (
	"bytes"
	"testing"

	"github.com/bgrewell/readiso/pkg/logging"
	"github.com/bgrewell/readiso/pkg/toc"
	"github.com/stretchr/testify/require"
)

// dataTrack is track 2 of a mixed mode disc: 5000 blocks from LBA 100.
var dataTrack = toc.Track{Number: 2, Control: 0x14, IsData: true, StartLBA: 100, EndLBA: 5100}

var allModes = []OverrideMode{None, TrustDeclared, TrustTrack}

func TestAutomaticAcceptsDeclaredWithinSlack(t *testing.T) {
	for _, declared := range []int64{5000, 4999, 4700, 4488} {
		p := Reconcile(dataTrack, declared, None, 2048, nil)
		require.Equal(t, declared, p.EffectiveBlocks, "declared %d", declared)
		require.Equal(t, None, p.Mode)
		require.Empty(t, p.Warnings)
	}
}

func TestAutomaticFallsBackOnLargeSlack(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := logging.NewLogger(logging.NewSimpleLogger(buf, logging.LEVEL_INFO, false))

	p := Reconcile(dataTrack, 4487, None, 2048, logger)
	require.Equal(t, int64(5000), p.EffectiveBlocks)
	require.Equal(t, int64(513), p.Slack())
	require.Len(t, p.Warnings, 1)
	require.Contains(t, p.Warnings[0], "513 blocks")
	require.Contains(t, p.Warnings[0], "--force-declared")
	require.Contains(t, buf.String(), "[WARN]")
}

func TestInvalidDescriptorDominates(t *testing.T) {
	for _, declared := range []int64{0, -1, 5001, 6000} {
		for _, mode := range allModes {
			p := Reconcile(dataTrack, declared, mode, 2048, nil)
			require.Equal(t, int64(5000), p.EffectiveBlocks, "declared %d mode %s", declared, mode)
			require.Equal(t, TrustTrack, p.Mode)
			require.Equal(t, mode, p.Requested)
			require.Equal(t, []string{"invalid primary descriptor, copying whole track"}, p.Warnings)
		}
	}
}

func TestForcedDeclaredSkipsSanityCheck(t *testing.T) {
	p := Reconcile(dataTrack, 4000, TrustDeclared, 2048, nil)
	require.Equal(t, int64(4000), p.EffectiveBlocks)
	require.Equal(t, int64(1000), p.Slack())
	require.Equal(t, TrustDeclared, p.Mode)
	require.Empty(t, p.Warnings)
	require.True(t, p.Truncated())
}

func TestForcedTrack(t *testing.T) {
	p := Reconcile(dataTrack, 4990, TrustTrack, 2048, nil)
	require.Equal(t, int64(5000), p.EffectiveBlocks)
	require.Equal(t, TrustTrack, p.Mode)
	require.False(t, p.Truncated())
}

func TestScenarioMixedModeDisc(t *testing.T) {
	tests := []struct {
		name     string
		declared int64
		mode     OverrideMode
		want     int64
	}{
		{"automatic exact", 5000, None, 5000},
		{"forced track exact", 5000, TrustTrack, 5000},
		{"forced declared with large slack", 4000, TrustDeclared, 4000},
		{"oversized declared automatic", 6000, None, 5000},
		{"oversized declared forced", 6000, TrustDeclared, 5000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Reconcile(dataTrack, tt.declared, tt.mode, 2048, nil)
			require.Equal(t, tt.want, p.EffectiveBlocks)
		})
	}
}

func TestEffectiveAlwaysWithinTrack(t *testing.T) {
	for declared := int64(-2); declared <= 6000; declared += 7 {
		for _, mode := range allModes {
			p := Reconcile(dataTrack, declared, mode, 2048, nil)
			require.Positive(t, p.EffectiveBlocks)
			require.LessOrEqual(t, p.EffectiveBlocks, p.TrackBlocks)
		}
	}
}

func TestEffectiveBytes(t *testing.T) {
	p := Reconcile(dataTrack, 5000, None, 2048, nil)
	require.Equal(t, int64(5000*2048), p.EffectiveBytes())

	p = Reconcile(dataTrack, 5000, None, 0, nil)
	require.Equal(t, int64(2048), p.BlockSize)
}

func TestOverrideModeString(t *testing.T) {
	require.Equal(t, "none", None.String())
	require.Equal(t, "trust-declared", TrustDeclared.String())
	require.Equal(t, "trust-track", TrustTrack.String())
	require.Equal(t, "mode(9)", OverrideMode(9).String())
}
