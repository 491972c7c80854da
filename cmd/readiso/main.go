package main

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bgrewell/readiso"
	"github.com/bgrewell/readiso/internal/config"
	"github.com/bgrewell/readiso/pkg/copier"
	"github.com/bgrewell/readiso/pkg/info"
	"github.com/bgrewell/readiso/pkg/logging"
	"github.com/bgrewell/readiso/pkg/option"
	"github.com/bgrewell/readiso/pkg/reconcile"
	"github.com/bgrewell/readiso/pkg/scan"
	"github.com/bgrewell/readiso/pkg/scsi"
	"github.com/bgrewell/usage"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
)

var (
	version = "dev"
)

type flags struct {
	device        *string
	track         *int
	verbose       *bool
	trace         *bool
	info          *bool
	forceDeclared *bool
	forceTrack    *bool
	md5           *bool
	dump          *bool
	lba           *int
	count         *int
	scan          *bool
	config        *string
	blocks        *int
	quiet         *bool
	help          *bool
	image         *string
}

// discard is the sink used when only the checksum is wanted.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
func (discard) Truncate(int64) error        { return nil }

func main() {
	u := usage.NewUsage(
		usage.WithApplicationName("readiso"),
		usage.WithApplicationDescription("readiso v"+version+" copies the ISO9660 image on the data track of an optical disc to a file. The image size is taken from the primary volume descriptor and checked against the track length."),
	)
	f := flags{
		help:          u.AddBooleanOption("h", "help", false, "Show this help message", "", nil),
		device:        u.AddStringOption("d", "device", "", "Optical drive or image file to read from (default from config, else /dev/cdrom)", "", nil),
		track:         u.AddIntegerOption("t", "track", 0, "Data track to read, 0 selects the first data track", "", nil),
		verbose:       u.AddBooleanOption("v", "verbose", false, "Print verbose output", "", nil),
		trace:         u.AddBooleanOption("vv", "trace", false, "Log every SCSI command", "", nil),
		info:          u.AddBooleanOption("i", "info", false, "Show drive, track and descriptor information and exit", "", nil),
		forceDeclared: u.AddBooleanOption("f", "force-declared", false, "Copy the size declared by the descriptor", "", nil),
		forceTrack:    u.AddBooleanOption("F", "force-track", false, "Copy the whole track", "", nil),
		md5:           u.AddBooleanOption("m", "md5", false, "Print the MD5 checksum of the image", "", nil),
		dump:          u.AddBooleanOption("D", "dump", false, "Dump raw blocks instead of the image", "", nil),
		lba:           u.AddIntegerOption("l", "lba", 0, "First block to dump", "", nil),
		count:         u.AddIntegerOption("n", "count", 1, "Number of blocks to dump", "", nil),
		scan:          u.AddBooleanOption("s", "scan", false, "List optical drives and exit", "", nil),
		config:        u.AddStringOption("c", "config", "", "Configuration file (default $READISO_CONFIG or ~/.config/readiso/config.toml)", "", nil),
		blocks:        u.AddIntegerOption("b", "blocks", 0, "Blocks per read (default from config)", "", nil),
		quiet:         u.AddBooleanOption("q", "quiet", false, "Do not show progress", "", nil),
		image:         u.AddArgument(1, "imagefile", "File to write the image to", ""),
	}
	parsed := u.Parse()

	if !parsed {
		u.PrintError(fmt.Errorf("failed to parse arguments"))
		os.Exit(1)
	}

	if *f.help {
		u.PrintUsage()
		os.Exit(0)
	}

	if err := run(f); err != nil {
		u.PrintError(err)
		os.Exit(1)
	}
}

func run(f flags) error {
	imageFile := ""
	if f.image != nil {
		imageFile = *f.image
	}
	if *f.forceDeclared && *f.forceTrack {
		return errors.New("--force-declared and --force-track are mutually exclusive")
	}
	if imageFile == "" && !*f.info && !*f.md5 && !*f.dump && !*f.scan {
		return errors.New("an output <imagefile> must be provided")
	}

	cfg, cfgPath, _, err := config.Load(*f.config)
	if err != nil {
		return err
	}
	if *f.device != "" {
		cfg.Device = *f.device
	}
	if *f.blocks != 0 {
		cfg.ReadBlocks = *f.blocks
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("--blocks: %w", err)
		}
	}

	terminal := isatty.IsTerminal(os.Stderr.Fd())
	useColor := cfg.UseColor(terminal)
	level := logging.LEVEL_INFO
	if *f.verbose {
		level = logging.LEVEL_DEBUG
	}
	if *f.trace {
		level = logging.LEVEL_TRACE
	}
	logger := logging.NewLogger(logging.NewSimpleLogger(os.Stderr, level, useColor))
	logger.Debug("configuration", "path", cfgPath, "device", cfg.Device, "read_blocks", cfg.ReadBlocks)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := info.NewReport(os.Stdout, cfg.UseColor(isatty.IsTerminal(os.Stdout.Fd())))

	if *f.scan {
		devices, err := scan.NewScanner(logger.WithName("scan")).Scan(ctx)
		if err != nil {
			return err
		}
		report.Devices(devices)
		return nil
	}

	interactive := terminal && cfg.Progress && !*f.quiet
	progress := &copyProgress{w: os.Stderr}
	opts := append(cfg.OpenOptions(), option.WithLogger(logger), option.WithOpener(scsi.OpenPath))
	if interactive {
		opts = append(opts, option.WithCopyProgress(progress.callback()))
	}

	reader, err := readiso.Open(cfg.Device, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("closing device", "error", err)
		}
	}()

	var spin *phase
	if interactive {
		if spin, err = startPhase(os.Stderr, "waiting for "+cfg.Device); err != nil {
			logger.Debug("progress spinner disabled", "error", err)
		}
	}
	if err := reader.Initialize(ctx); err != nil {
		spin.fail("drive not ready")
		return err
	}
	spin.done(cfg.Device + " ready")

	switch {
	case *f.info:
		return showInfo(reader, report, *f.track, overrideMode(f), *f.verbose)
	case *f.dump:
		return dump(reader, int64(*f.lba), int64(*f.count), imageFile, logger)
	}

	track, err := reader.SelectTrack(*f.track)
	if err != nil {
		return err
	}
	pvd, err := reader.PrimaryDescriptor(track)
	if err != nil {
		return err
	}
	if *f.verbose {
		report.Descriptor(pvd, true)
	}
	plan := reader.Plan(track, pvd, overrideMode(f))
	logger.Info("image size", "size", humanize.IBytes(uint64(plan.EffectiveBytes())), "blocks", plan.EffectiveBlocks)

	var sink copier.Sink = discard{}
	if imageFile != "" {
		out, err := os.Create(imageFile)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer out.Close()
		sink = out
	}
	var h hash.Hash
	if *f.md5 {
		h = md5.New()
	}

	res, err := reader.Copy(plan, sink, h)
	progress.finish()
	if err != nil {
		return err
	}
	if closer, ok := sink.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	}

	if !res.Complete {
		reportIncomplete(res)
	}
	if h != nil {
		name := imageFile
		if name == "" {
			name = "image"
		}
		fmt.Printf("%s  %s\n", res.HexDigest(), name)
	}
	return nil
}

func overrideMode(f flags) reconcile.OverrideMode {
	switch {
	case *f.forceDeclared:
		return reconcile.TrustDeclared
	case *f.forceTrack:
		return reconcile.TrustTrack
	default:
		return reconcile.None
	}
}

func reportIncomplete(res *copier.Result) {
	fmt.Fprintf(os.Stderr, "image not complete: wrote %s of %s (%d blocks)\n",
		humanize.IBytes(uint64(res.BytesWritten)), humanize.IBytes(uint64(res.Target)), res.BlocksCopied)
	if res.ReadErr != nil {
		fmt.Fprintf(os.Stderr, "  stopped by: %v\n", res.ReadErr)
	}
}

func showInfo(reader readiso.Reader, report *info.Report, number int, mode reconcile.OverrideMode, verbose bool) error {
	id, err := reader.Inquiry()
	if err != nil {
		return err
	}
	// not every drive answers READ CAPACITY for mixed mode discs
	capacity, _ := reader.Capacity()
	report.Drive(reader.Device(), id, capacity)

	t, err := reader.TOC()
	if err != nil {
		return err
	}
	report.Tracks(t)

	track, err := reader.SelectTrack(number)
	if err != nil {
		return err
	}
	pvd, err := reader.PrimaryDescriptor(track)
	if err != nil {
		return err
	}
	report.Descriptor(pvd, verbose)
	report.Plan(reader.Plan(track, pvd, mode))
	return nil
}

// dump copies raw blocks to imageFile, or prints them as hex when no file is given.
func dump(reader readiso.Reader, lba, count int64, imageFile string, logger *logging.Logger) error {
	var res *copier.Result
	var err error
	if imageFile != "" {
		out, cerr := os.Create(imageFile)
		if cerr != nil {
			return fmt.Errorf("create output: %w", cerr)
		}
		defer out.Close()
		if res, err = reader.Dump(lba, count, out); err != nil {
			return err
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("close output: %w", err)
		}
	} else {
		dumper := hex.Dumper(os.Stdout)
		res, err = reader.Dump(lba, count, dumper)
		dumper.Close()
		if err != nil {
			return err
		}
	}
	logger.Debug("dump finished", "lba", lba, "blocks", res.BlocksCopied, "bytes", res.BytesWritten)
	if !res.Complete {
		reportIncomplete(res)
	}
	return nil
}
