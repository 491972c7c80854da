package reconcile

import (
	"fmt"

	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/logging"
	"github.com/bgrewell/readiso/pkg/toc"
)

// OverrideMode selects which size source wins.
type OverrideMode int

const (
	// None lets the sanity check decide.
	None OverrideMode = iota
	// TrustDeclared always uses the size from the primary volume descriptor.
	TrustDeclared
	// TrustTrack always uses the size of the track.
	TrustTrack
)

func (m OverrideMode) String() string {
	switch m {
	case None:
		return "none"
	case TrustDeclared:
		return "trust-declared"
	case TrustTrack:
		return "trust-track"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Plan is the outcome of reconciling the declared image size with the track size.
type Plan struct {
	Track     toc.Track
	BlockSize int64
	// DeclaredBlocks is the volume space size from the primary volume descriptor.
	DeclaredBlocks int64
	// TrackBlocks is EndLBA - StartLBA from the table of contents.
	TrackBlocks int64
	// EffectiveBlocks is the number of blocks that will be copied.
	EffectiveBlocks int64
	// Requested is the mode asked for by the operator.
	Requested OverrideMode
	// Mode is the mode that was applied. An invalid descriptor forces TrustTrack.
	Mode     OverrideMode
	Warnings []string
}

// EffectiveBytes is the exact length of the image file.
func (p *Plan) EffectiveBytes() int64 {
	return p.EffectiveBlocks * p.BlockSize
}

// Slack is how many blocks the track extends beyond the declared size. It is negative when the descriptor claims
// more than the track holds.
func (p *Plan) Slack() int64 {
	return p.TrackBlocks - p.DeclaredBlocks
}

// Truncated reports whether fewer blocks than the track holds will be copied.
func (p *Plan) Truncated() bool {
	return p.EffectiveBlocks < p.TrackBlocks
}

func (p *Plan) warn(logger *logging.Logger, msg string, keysAndValues ...interface{}) {
	p.Warnings = append(p.Warnings, msg)
	logger.Warn(msg, keysAndValues...)
}

// Reconcile decides how many blocks of track make up the image. An invalid declared size always falls back to the
// whole track; otherwise a forced mode wins; otherwise the declared size is used unless the track is more than
// MAX_SLACK_BLOCKS longer. Warnings are logged and recorded on the plan. A nil logger discards them.
func Reconcile(track toc.Track, declared int64, requested OverrideMode, blockSize int64, logger *logging.Logger) *Plan {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	if blockSize <= 0 {
		blockSize = consts.ISO9660_SECTOR_SIZE
	}

	p := &Plan{
		Track:          track,
		BlockSize:      blockSize,
		DeclaredBlocks: declared,
		TrackBlocks:    track.Blocks(),
		Requested:      requested,
		Mode:           requested,
	}

	switch {
	case declared <= 0 || declared > p.TrackBlocks:
		p.Mode = TrustTrack
		p.EffectiveBlocks = p.TrackBlocks
		p.warn(logger, "invalid primary descriptor, copying whole track",
			"declared", declared, "track", p.TrackBlocks)
	case requested == TrustDeclared:
		p.EffectiveBlocks = declared
		logger.Debug("using declared size", "declared", declared, "track", p.TrackBlocks)
	case requested == TrustTrack:
		p.EffectiveBlocks = p.TrackBlocks
		logger.Debug("using track size", "declared", declared, "track", p.TrackBlocks)
	default:
		p.Mode = None
		if slack := p.Slack(); slack > consts.MAX_SLACK_BLOCKS {
			p.EffectiveBlocks = p.TrackBlocks
			p.warn(logger, fmt.Sprintf("image size is %d blocks smaller than the track, using track size; "+
				"use --force-declared to keep the declared size or --force-track to silence this", slack),
				"declared", declared, "track", p.TrackBlocks, "slack", slack)
		} else {
			p.EffectiveBlocks = declared
		}
	}

	return p
}
