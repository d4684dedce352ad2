package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"dubber/internal/pkg/dubbing"
)

// renderPlacements 以表格形式输出每条 cue 的落点
func renderPlacements(placements []dubbing.Placement) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Cue", "Start", "Gap", "Natural", "Fitted", "Ratio", "Notes", "Text"})

	for _, p := range placements {
		tw.AppendRow(table.Row{
			p.Ordinal,
			formatMs(p.CueStartMs) + " → " + formatMs(p.CueEndMs),
			formatMs(p.StartMs),
			msOrDash(p.GapMs),
			msOrDash(p.NaturalMs),
			msOrDash(p.FittedMs),
			fmt.Sprintf("%.2f", p.Ratio),
			placementNotes(p),
			ellipsis(p.Text, 32),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	return tw.Render()
}

func placementNotes(p dubbing.Placement) string {
	var notes []string
	if p.Skipped {
		notes = append(notes, "skipped")
	}
	if p.Overlap {
		notes = append(notes, "overlap")
	}
	if p.Clamped {
		notes = append(notes, "clamped")
	}
	if p.Truncated {
		notes = append(notes, "truncated")
	}
	return strings.Join(notes, ",")
}

// formatMs 形如 00:01:02.345
func formatMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int64(d / time.Hour)
	m := int64(d/time.Minute) % 60
	s := int64(d/time.Second) % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms%1000)
}

func msOrDash(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return fmt.Sprintf("%dms", ms)
}

func ellipsis(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
