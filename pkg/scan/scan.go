package scan

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/drive"
	"github.com/bgrewell/readiso/pkg/logging"
	"github.com/bgrewell/readiso/pkg/scsi"
	"github.com/pilebones/go-udev/crawler"
	"github.com/pilebones/go-udev/netlink"
)

// DEVICE_NAME_PATTERN matches the kernel names of SCSI CD-ROM and generic nodes.
const DEVICE_NAME_PATTERN = `^(sr|sg)[0-9]+$`

var deviceName = regexp.MustCompile(DEVICE_NAME_PATTERN)

// Candidate is a device node that may be an optical drive.
type Candidate struct {
	Name      string
	Path      string
	Subsystem string
	KObj      string
}

// Device is a probed candidate.
type Device struct {
	Candidate
	Identity *drive.Identity
	// Err is set when the node could not be opened or did not answer INQUIRY.
	Err error
}

// Enumerator lists candidate device nodes.
type Enumerator func(ctx context.Context) ([]Candidate, error)

// Scanner probes every candidate with INQUIRY.
type Scanner struct {
	Enumerate Enumerator
	Opener    scsi.Opener
	Timeout   time.Duration
	Logger    *logging.Logger
}

// NewScanner returns a scanner that walks the udev device tree and opens nodes with SG_IO.
func NewScanner(logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Scanner{
		Enumerate: UdevCandidates,
		Opener:    scsi.OpenSGIO,
		Timeout:   consts.DEFAULT_TIMEOUT,
		Logger:    logger,
	}
}

// Scan enumerates and probes the candidates. Probe failures are reported per device, not as an error.
func (s *Scanner) Scan(ctx context.Context) ([]Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	candidates, err := s.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	devices := make([]Device, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return devices, err
		}
		dev := Device{Candidate: c}
		dev.Identity, dev.Err = s.probe(c.Path)
		if dev.Err != nil {
			s.Logger.Debug("probe failed", "device", c.Path, "error", dev.Err)
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

func (s *Scanner) probe(path string) (*drive.Identity, error) {
	tr, err := s.Opener(path, s.Timeout)
	if err != nil {
		return nil, err
	}
	defer tr.Close()
	return drive.New(tr, drive.WithLogger(s.Logger)).Inquiry()
}

// StaticCandidates enumerates a fixed list of paths.
func StaticCandidates(paths ...string) Enumerator {
	return func(context.Context) ([]Candidate, error) {
		out := make([]Candidate, 0, len(paths))
		for _, p := range paths {
			out = append(out, Candidate{Name: filepath.Base(p), Path: p})
		}
		return out, nil
	}
}

// UdevCandidates walks the existing devices in sysfs and returns the sr and sg nodes, sorted by name.
func UdevCandidates(ctx context.Context) ([]Candidate, error) {
	queue := make(chan crawler.Device)
	errs := make(chan error, 1)

	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Env: map[string]string{
			"DEVNAME": DEVICE_NAME_PATTERN,
		},
	})

	quit := crawler.ExistingDevices(queue, errs, rules)

	seen := map[string]bool{}
	var out []Candidate
	for {
		select {
		case <-ctx.Done():
			close(quit)
			return nil, ctx.Err()
		case err := <-errs:
			close(quit)
			return nil, err
		case dev, ok := <-queue:
			if !ok {
				sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
				return out, nil
			}
			if c, ok := candidateFromEnv(dev.KObj, dev.Env); ok && !seen[c.Path] {
				seen[c.Path] = true
				out = append(out, c)
			}
		}
	}
}

// candidateFromEnv builds a candidate from a uevent environment.
func candidateFromEnv(kobj string, env map[string]string) (Candidate, bool) {
	name := filepath.Base(env["DEVNAME"])
	if !deviceName.MatchString(name) {
		return Candidate{}, false
	}
	return Candidate{
		Name:      name,
		Path:      filepath.Join("/dev", name),
		Subsystem: env["SUBSYSTEM"],
		KObj:      kobj,
	}, true
}
