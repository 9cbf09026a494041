package timertree

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rodaine/table"
)

// Print writes a table holding every timer of th to w, indented by depth.
// The time spent printing is removed from the timers running in th.
func (th *Thread) Print(w io.Writer) {
	begin := th.tree.clock.Now()
	defer func() {
		th.excludeInterval(th.tree.clock.Now().Sub(begin))
	}()

	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()

	tbl := table.New(
		"id",
		"timer",
		"groups",
		"calls",
		"total runtime",
		"mean runtime",
		"work rate",
	)
	tbl.WithHeaderFormatter(headerFmt)
	tbl.WithWriter(w)

	for _, s := range th.Snapshot() {
		tbl.AddRow(
			s.ID,
			strings.Repeat("  ", s.Depth)+s.Label,
			strings.Join(s.Groups, ","),
			s.Calls,
			s.TotalTime,
			s.AverageTime,
			formatRate(s),
		)
	}
	color.New(color.FgGreen).Add(color.Bold).Fprintf(w, "\n\u24c9 Timers (member %d)\n", th.rank)
	tbl.Print()
}

// PrintGroups writes to w a table holding, for every group, the time spent in
// it and its share of the total wall time.
func (th *Thread) PrintGroups(w io.Writer) {
	begin := th.tree.clock.Now()
	defer func() {
		th.excludeInterval(th.tree.clock.Now().Sub(begin))
	}()

	headerFmt := color.New(color.FgWhite, color.Underline).SprintfFunc()

	tbl := table.New(
		"group",
		"total runtime",
		"timeslice",
	)
	tbl.WithHeaderFormatter(headerFmt)
	tbl.WithWriter(w)

	total := th.Time(0)
	for _, g := range th.tree.Groups() {
		gt := th.GroupTime(g, 0)
		tbl.AddRow(
			g,
			gt,
			math.Floor(share(gt, total)*1000)/1000,
		)
	}
	color.New(color.FgWhite).Add(color.Bold).Fprintf(w, "\n\uf111 Groups (member %d)\n", th.rank)
	tbl.Print()
}

func share(part, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}

func formatRate(s Stats) string {
	if s.WorkUnitLabel == "" {
		return ""
	}
	return fmt.Sprintf("%.4g %s/s", s.WorkRate(), s.WorkUnitLabel)
}
