package info

import (
	"fmt"
	"io"
	"strconv"

	"github.com/bgrewell/readiso/pkg/consts"
	"github.com/bgrewell/readiso/pkg/descriptor"
	"github.com/bgrewell/readiso/pkg/drive"
	"github.com/bgrewell/readiso/pkg/reconcile"
	"github.com/bgrewell/readiso/pkg/scan"
	"github.com/bgrewell/readiso/pkg/toc"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// Report renders what is known about a drive and its disc as tables.
type Report struct {
	w       io.Writer
	title   func(a ...interface{}) string
	data    func(a ...interface{}) string
	audio   func(a ...interface{}) string
	warning func(a ...interface{}) string
}

// NewReport returns a report writing to w. useColor controls whether section titles and track types are colored.
func NewReport(w io.Writer, useColor bool) *Report {
	r := &Report{w: w}
	palette := []struct {
		fn   *func(a ...interface{}) string
		attr []color.Attribute
	}{
		{&r.title, []color.Attribute{color.FgCyan, color.Bold}},
		{&r.data, []color.Attribute{color.FgGreen}},
		{&r.audio, []color.Attribute{color.FgBlue}},
		{&r.warning, []color.Attribute{color.FgYellow, color.Bold}},
	}
	for _, p := range palette {
		c := color.New(p.attr...)
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		*p.fn = c.SprintFunc()
	}
	return r
}

func (r *Report) section(name, body string) {
	fmt.Fprintln(r.w, r.title(name))
	fmt.Fprintln(r.w, body)
}

// Drive prints the INQUIRY identity and, when known, the READ CAPACITY result.
func (r *Report) Drive(device string, id *drive.Identity, capacity *drive.Capacity) {
	rows := [][]string{{"Device", device}}
	if id != nil {
		kind := fmt.Sprintf("0x%02x", id.PeripheralType)
		if id.IsCDROM() {
			kind += " (cd/dvd)"
		}
		rows = append(rows,
			[]string{"Vendor", id.Vendor},
			[]string{"Model", id.Model},
			[]string{"Revision", id.Revision},
			[]string{"Type", kind},
			[]string{"Removable", strconv.FormatBool(id.Removable)},
		)
	}
	if capacity != nil {
		size := capacity.Blocks() * int64(capacity.BlockLength)
		rows = append(rows,
			[]string{"Last LBA", strconv.FormatInt(capacity.LastLBA, 10)},
			[]string{"Block length", strconv.FormatUint(uint64(capacity.BlockLength), 10)},
			[]string{"Capacity", fmt.Sprintf("%s (%d blocks)", humanize.IBytes(uint64(size)), capacity.Blocks())},
		)
	}
	r.section("Drive", renderTable([]string{"Field", "Value"}, rows, nil))
}

// Tracks prints one row per track of the table of contents.
func (r *Report) Tracks(t *toc.TOC) {
	rows := make([][]string, 0, len(t.Tracks))
	for _, tr := range t.Tracks {
		kind := r.audio(tr.Kind())
		if tr.IsData {
			kind = r.data(tr.Kind())
		}
		rows = append(rows, []string{
			strconv.Itoa(tr.Number),
			kind,
			fmt.Sprintf("0x%02x", tr.Control),
			strconv.FormatInt(tr.StartLBA, 10),
			strconv.FormatInt(tr.EndLBA, 10),
			strconv.FormatInt(tr.Blocks(), 10),
			tr.MSF(),
		})
	}
	body := renderTable(
		[]string{"Track", "Type", "ADR/Ctl", "Start", "Next", "Blocks", "MSF"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	)
	if t.LeadOut >= 0 {
		body += fmt.Sprintf("\nlead-out at %d (%s)", t.LeadOut, toc.MSF(t.LeadOut))
	}
	r.section(fmt.Sprintf("Table of contents (tracks %d-%d)", t.FirstTrack, t.LastTrack), body)
}

// Descriptor prints the primary volume descriptor. The identifiers and dates are only shown when verbose is set.
func (r *Report) Descriptor(pvd *descriptor.PrimaryVolumeDescriptor, verbose bool) {
	blockSize := int(pvd.LogicalBlockSize)
	if blockSize == 0 {
		blockSize = consts.ISO9660_SECTOR_SIZE
	}
	rows := [][]string{
		{"Identifier", pvd.Identifier()},
		{"Type", strconv.Itoa(int(pvd.Type()))},
		{"Version", strconv.Itoa(int(pvd.Version()))},
		{"Volume identifier", pvd.VolumeIdentifier},
		{"Volume space size", fmt.Sprintf("%d blocks (%s)", pvd.VolumeSpaceSize, humanize.IBytes(uint64(pvd.SizeBytes(blockSize))))},
		{"Logical block size", strconv.Itoa(int(pvd.LogicalBlockSize))},
	}
	if !pvd.IsPrimary() {
		rows = append(rows, []string{"Warning", r.warning("not a primary volume descriptor")})
	}
	if !pvd.VolumeSpaceSizeConsistent {
		rows = append(rows, []string{"Warning", r.warning("volume space size byte orders disagree")})
	}
	if verbose {
		rows = append(rows,
			[]string{"System identifier", pvd.SystemIdentifier},
			[]string{"Volume set identifier", pvd.VolumeSetIdentifier},
			[]string{"Volume set size", strconv.Itoa(int(pvd.VolumeSetSize))},
			[]string{"Volume sequence number", strconv.Itoa(int(pvd.VolumeSequenceNumber))},
			[]string{"Path table size", strconv.FormatUint(uint64(pvd.PathTableSize), 10)},
			[]string{"Type L path table", strconv.FormatUint(uint64(pvd.LocationOfTypeLPathTable), 10)},
			[]string{"Type M path table", strconv.FormatUint(uint64(pvd.LocationOfTypeMPathTable), 10)},
			[]string{"Publisher", pvd.PublisherIdentifier},
			[]string{"Data preparer", pvd.DataPreparerIdentifier},
			[]string{"Application", pvd.ApplicationIdentifier},
			[]string{"Copyright file", pvd.CopyrightFileIdentifier},
			[]string{"Abstract file", pvd.AbstractFileIdentifier},
			[]string{"Bibliographic file", pvd.BibliographicFileIdentifier},
			[]string{"Created", pvd.VolumeCreationDateAndTime.String()},
			[]string{"Modified", pvd.VolumeModificationDateAndTime.String()},
			[]string{"Expires", pvd.VolumeExpirationDateAndTime.String()},
			[]string{"Effective", pvd.VolumeEffectiveDateAndTime.String()},
			[]string{"File structure version", strconv.Itoa(int(pvd.FileStructureVersion))},
		)
	}
	r.section("Primary volume descriptor", renderTable([]string{"Field", "Value"}, rows, nil))
}

// Plan prints the size decision for the selected track.
func (r *Report) Plan(p *reconcile.Plan) {
	rows := [][]string{
		{"Track", strconv.Itoa(p.Track.Number)},
		{"Declared", blocks(p.DeclaredBlocks, p.BlockSize)},
		{"Track size", blocks(p.TrackBlocks, p.BlockSize)},
		{"Slack", strconv.FormatInt(p.Slack(), 10)},
		{"Mode", p.Mode.String()},
		{"Image", blocks(p.EffectiveBlocks, p.BlockSize)},
	}
	for _, w := range p.Warnings {
		rows = append(rows, []string{"Warning", r.warning(w)})
	}
	r.section("Image size", renderTable([]string{"Field", "Value"}, rows, nil))
}

// Devices prints the result of a bus scan.
func (r *Report) Devices(devices []scan.Device) {
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		if d.Err != nil {
			rows = append(rows, []string{d.Path, "", "", "", r.warning(d.Err.Error())})
			continue
		}
		kind := fmt.Sprintf("0x%02x", d.Identity.PeripheralType)
		if d.Identity.IsCDROM() {
			kind = r.data("cd/dvd")
		}
		rows = append(rows, []string{d.Path, d.Identity.Vendor, d.Identity.Model, d.Identity.Revision, kind})
	}
	r.section(fmt.Sprintf("Devices (%d found)", len(devices)),
		renderTable([]string{"Path", "Vendor", "Model", "Revision", "Type"}, rows, nil))
}

func blocks(n, blockSize int64) string {
	if n <= 0 {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprintf("%d blocks (%s)", n, humanize.IBytes(uint64(n*blockSize)))
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
