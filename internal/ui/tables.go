package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/lifxlab/internal/discovery"
	"github.com/muurk/lifxlab/internal/dispatch"
	"github.com/muurk/lifxlab/internal/protocol"
	"github.com/muurk/lifxlab/internal/registry"
	"github.com/muurk/lifxlab/internal/server"
	"github.com/muurk/lifxlab/internal/urls"
)

// Namer returns the nickname of a device, or "" when it has none
type Namer func(protocol.Target) string

func (n Namer) name(id protocol.Target) string {
	if n == nil {
		return ""
	}
	return n(id)
}

// Table renders rows as aligned columns with a styled header row
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render returns the table as a string. Column widths fit the widest cell.
func (t *Table) Render() string {
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	renderRow := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(widths))
		for i := range widths {
			var cell string
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = style.Render(padRight(cell, widths[i]))
		}
		return "  " + strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	lines := make([]string, 0, len(t.Rows)+1)
	lines = append(lines, renderRow(t.Headers, TableHeaderStyle))
	for _, row := range t.Rows {
		lines = append(lines, renderRow(row, TableCellStyle))
	}
	return strings.Join(lines, "\n")
}

// String implements fmt.Stringer
func (t *Table) String() string {
	return t.Render()
}

// RenderDevices renders a registry snapshot
func RenderDevices(devices []registry.Device, names Namer, now time.Time) string {
	if len(devices) == 0 {
		return RenderWarning("No devices known",
			Param{Key: "Hint", Value: "run 'lifxlab discover' first"},
		)
	}

	t := &Table{Headers: []string{"IDENTITY", "MAC", "ADDRESS", "NAME", "LAST SEEN"}}
	for _, d := range devices {
		t.Rows = append(t.Rows, []string{
			d.Identity.String(),
			d.Identity.MAC().String(),
			d.Addr.String(),
			names.name(d.Identity),
			ago(now, d.LastSeen),
		})
	}
	return t.Render()
}

// RenderDiscovery renders the devices found by one discovery cycle
func RenderDiscovery(res *discovery.Result, names Namer) string {
	if len(res.Devices) == 0 {
		return RenderFailure("No devices responded", nil,
			"Ensure the lights are powered on and on the same network",
			"Check that UDP port 56700 is not blocked by a firewall",
			"Try a longer --timeout on busy networks",
			"Protocol reference: "+urls.LANProtocol,
		)
	}

	t := &Table{Headers: []string{"", "IDENTITY", "ADDRESS", "SERVICES", "NAME"}}
	for _, d := range res.Devices {
		marker := PendingMarker
		if d.New {
			marker = NewMarker
		}
		t.Rows = append(t.Rows, []string{
			marker,
			d.Identity.String(),
			d.AddrPort().String(),
			services(d.ServiceTypes),
			names.name(d.Identity),
		})
	}

	summary := RenderSuccess(fmt.Sprintf("%d device(s) found", len(res.Devices)),
		Param{Key: "New", Value: strconv.Itoa(len(res.NewDevices()))},
		Param{Key: "Replies", Value: strconv.Itoa(res.Replies)},
		Param{Key: "Skipped", Value: strconv.Itoa(res.Skipped)},
		Param{Key: "Duration", Value: res.Duration.Round(time.Millisecond).String()},
	)
	return t.Render() + "\n\n" + summary
}

// RenderReport renders the per-device outcome of a dispatch
func RenderReport(report *dispatch.Report, names Namer) string {
	if len(report.Outcomes) == 0 {
		return RenderWarning(report.Command.Name+" sent to no devices",
			Param{Key: "Hint", Value: "run 'lifxlab discover' first"},
		)
	}

	t := &Table{Headers: []string{"", "IDENTITY", "ADDRESS", "NAME", "STATUS"}}
	for _, o := range report.Outcomes {
		marker, status := SuccessMarker, "sent"
		switch {
		case !o.OK():
			marker, status = FailureMarker, o.Error()
		case o.Acked:
			status = "acknowledged"
		}
		t.Rows = append(t.Rows, []string{
			marker,
			o.Identity.String(),
			o.Addr.String(),
			names.name(o.Identity),
			status,
		})
	}

	failed := len(report.Failed())
	title := fmt.Sprintf("%s sent to %d device(s)", report.Command.Name, len(report.Outcomes))
	var summary string
	switch {
	case report.AllFailed():
		summary = RenderFailure(title, report.Err())
	case failed > 0:
		summary = RenderWarning(title,
			Param{Key: "Succeeded", Value: strconv.Itoa(len(report.Succeeded()))},
			Param{Key: "Failed", Value: strconv.Itoa(failed)},
		)
	default:
		summary = RenderSuccess(title,
			Param{Key: "Succeeded", Value: strconv.Itoa(len(report.Succeeded()))},
		)
	}
	return t.Render() + "\n\n" + summary
}

// RenderBridges renders lifxlab bridges found over mDNS
func RenderBridges(bridges []*server.Bridge) string {
	if len(bridges) == 0 {
		return RenderWarning("No bridges found",
			Param{Key: "Hint", Value: "start one with 'lifxlab serve'"},
		)
	}

	t := &Table{Headers: []string{"INSTANCE", "URL", "VERSION"}}
	for _, b := range bridges {
		t.Rows = append(t.Rows, []string{b.Instance, b.URL(), b.Metadata["version"]})
	}
	return t.Render()
}

func services(types []uint8) string {
	names := make([]string, 0, len(types))
	for _, s := range types {
		if s == protocol.ServiceUDP {
			names = append(names, "udp")
		} else {
			names = append(names, strconv.Itoa(int(s)))
		}
	}
	return strings.Join(names, ",")
}

func ago(now, t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	if d < time.Second {
		return "just now"
	}
	return d.Round(time.Second).String() + " ago"
}
