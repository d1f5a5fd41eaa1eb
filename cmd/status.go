package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/audiolibrelab/jamtrack/internal/service"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C678DD"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C6370"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379"))

	recordStateStyles = map[string]lipgloss.Style{
		"enabled":  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#E06C75")),
		"prepared": lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),
		"safe":     lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		"disabled": mutedStyle,
	}
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tracks and their record state",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer svc.Close()

		fmt.Print(renderStatus(svc.Status()))
		return nil
	},
}

func renderStatus(st service.Status) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Transport: %s", st.Transport)))
	if st.Profile != "" {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("  profile %s", st.Profile)))
	}
	b.WriteString("\n\n")

	rows := [][]string{{"TRACK", "TYPE", "RECORD", "ALIGN", "METER", "MONITOR", "PLAYLIST", "REGIONS"}}
	for _, t := range st.Tracks {
		align := t.AlignChoice
		if align == "automatic" {
			align = "auto (" + t.AlignStyle + ")"
		}
		meter := t.MeterPoint
		if t.PendingRestore {
			meter += "*"
		}
		name := t.Name
		if t.RenamePending {
			name += " (rename pending)"
		}
		rows = append(rows, []string{name, t.Type, t.RecordState, align, meter, t.Monitoring, t.Playlist, fmt.Sprint(t.Regions)})
	}

	widths := make([]int, len(rows[0]))
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}
	for r, row := range rows {
		for i, cell := range row {
			style := lipgloss.NewStyle().Width(widths[i] + 2)
			switch {
			case r == 0:
				style = style.Inherit(headerStyle)
			case i == 2:
				style = style.Inherit(recordStateStyles[cell])
			}
			b.WriteString(style.Render(cell))
		}
		b.WriteString("\n")
	}

	if st.Dropped > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("\n%d engine messages dropped", st.Dropped)) + "\n")
	}
	if st.LastError != "" {
		b.WriteString(errorStyle.Render("\nLast error: "+st.LastError) + "\n")
	}
	return b.String()
}

func renderCaptures(summaries []service.CaptureSummary) string {
	var b strings.Builder
	for _, s := range summaries {
		b.WriteString(headerStyle.Render(fmt.Sprintf("Captured on %s", s.Track)))
		if s.WholeFile != "" {
			b.WriteString(mutedStyle.Render(" from " + s.WholeFile))
		}
		b.WriteString("\n")
		for _, r := range s.Regions {
			b.WriteString(okStyle.Render("  + "+r) + "\n")
		}
		for _, f := range s.Failed {
			b.WriteString(errorStyle.Render("  ! "+f) + "\n")
		}
	}
	return b.String()
}

func renderRegions(trackName string, regions []service.RegionInfo) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("\nRegions on %s", trackName)) + "\n")
	if len(regions) == 0 {
		b.WriteString(mutedStyle.Render("  (none)") + "\n")
	}
	for _, r := range regions {
		line := fmt.Sprintf("  %-24s pos %-14s start %-14s len %-14s layer %d", r.Name, r.Position, r.Start, r.Length, r.Layer)
		if !r.Opaque {
			line += " transparent"
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
