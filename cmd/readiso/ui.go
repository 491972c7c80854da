package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bgrewell/readiso/pkg/option"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/theckman/yacspin"
	"golang.org/x/term"
)

// phase shows a spinner while the drive is being prepared. A nil phase prints nothing.
type phase struct {
	spinner *yacspin.Spinner
}

// startPhase sets up and starts the yacspin spinner on w.
func startPhase(w io.Writer, message string) (*phase, error) {
	settings := yacspin.Config{
		Writer:            w,
		Frequency:         100 * time.Millisecond,
		ShowCursor:        false,
		SpinnerAtEnd:      false,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " ",
		Message:           message,
		Colors:            []string{"fgHiCyan"},
		StopColors:        []string{"fgHiGreen"},
		StopFailColors:    []string{"fgHiRed"},
		StopFailCharacter: "✗",
		StopCharacter:     "✓",
	}

	spinner, err := yacspin.New(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create spinner: %w", err)
	}
	if err := spinner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start spinner: %w", err)
	}
	return &phase{spinner: spinner}, nil
}

func (p *phase) done(msg string) {
	if p == nil {
		return
	}
	p.spinner.StopMessage(msg)
	_ = p.spinner.Stop()
}

func (p *phase) fail(msg string) {
	if p == nil {
		return
	}
	p.spinner.StopFailMessage(msg)
	_ = p.spinner.StopFail()
}

// terminalWidth returns the width of the terminal behind fd, or 80 when it is not a terminal.
func terminalWidth(fd int) int {
	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return 80
	}
	return width
}

// copyProgress draws a byte progress bar for the image copy. The bar is created on the first update, when the
// image size is known.
type copyProgress struct {
	w   io.Writer
	bar *progressbar.ProgressBar
}

func (c *copyProgress) callback() option.CopyProgressCallback {
	return func(blocksCopied, bytesWritten, totalBytes int64, elapsed time.Duration) {
		if c.bar == nil {
			width := terminalWidth(int(os.Stderr.Fd())) - 60
			if width < 10 {
				width = 10
			}
			c.bar = progressbar.NewOptions64(totalBytes,
				progressbar.OptionSetWriter(c.w),
				progressbar.OptionSetDescription("copying "+humanize.IBytes(uint64(totalBytes))),
				progressbar.OptionShowBytes(true),
				progressbar.OptionSetWidth(width),
				progressbar.OptionThrottle(100*time.Millisecond),
				progressbar.OptionOnCompletion(func() { fmt.Fprintln(c.w) }),
			)
		}
		if bytesWritten > totalBytes {
			bytesWritten = totalBytes
		}
		_ = c.bar.Set64(bytesWritten)
	}
}

// finish completes the bar when the copy stopped early so the cursor ends up on a fresh line.
func (c *copyProgress) finish() {
	if c.bar == nil || c.bar.IsFinished() {
		return
	}
	_ = c.bar.Exit()
	fmt.Fprintln(c.w)
}
