package stats

import (
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"
)

// WriteTable renders snap as a per-server diagnostic table, grounded on
// ptpcheck's sources command (tablewriter.NewWriter/SetHeader/Append/
// Render). Used for the SIGUSR2 diagnostic dump (SPEC_FULL.md DOMAIN
// STACK).
func WriteTable(w io.Writer, snaps []ServerSnapshot) {
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ServerID < snaps[j].ServerID })

	table := tablewriter.NewWriter(w)
	table.SetColWidth(20)
	table.SetHeader([]string{
		"preferred", "server", "status", "phat", "ca(s)", "error_bound(s)", "min_rtt(s)",
	})
	for _, s := range snaps {
		table.Append([]string{
			fmt.Sprintf("%v", s.Preferred),
			s.ServerID,
			s.Data.Status.String(),
			fmt.Sprintf("%.9g", s.Data.Phat),
			fmt.Sprintf("%.9g", s.Data.Ca),
			fmt.Sprintf("%.9g", s.Err.ErrorBound),
			fmt.Sprintf("%.9g", s.Err.MinRTT),
		})
	}
	table.Render()
}
