package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Aleph-Alpha/vecmigrate/v1/migration"
	"github.com/Aleph-Alpha/vecmigrate/v1/vectordb"
)

// errIncomplete is returned by commands whose run did not drain its source.
var errIncomplete = errors.New("run did not complete")

// printOutcome writes a summary of a run and returns errIncomplete when the run
// stopped early.
func printOutcome(w io.Writer, name string, out *migration.Outcome) error {
	if out == nil {
		return nil
	}
	if out.Skipped {
		fmt.Fprintf(w, "%s: skipped, %s -> %s already migrated by run %s (%d records)\n",
			name, out.Mark.Source, out.Mark.Target, out.Mark.RunID, out.Mark.Processed)
		return nil
	}

	res := out.Result
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run\t%s\n", res.RunID)
	fmt.Fprintf(tw, "status\t%s\n", res.Status)
	fmt.Fprintf(tw, "stored\t%d\n", res.SuccessCount)
	fmt.Fprintf(tw, "failed\t%d\n", len(res.Failures))
	fmt.Fprintf(tw, "batches\t%d\n", res.Batches)
	fmt.Fprintf(tw, "duration\t%s\n", res.Duration())
	if out.ArchiveKey != "" {
		fmt.Fprintf(tw, "archive\t%s\n", out.ArchiveKey)
	}
	if res.Err != nil {
		fmt.Fprintf(tw, "error\t%s\n", res.Err)
	}
	_ = tw.Flush()

	for _, f := range res.Failures {
		fmt.Fprintf(w, "  %s %s: %s\n", f.Kind, f.Record.ID, f.Reason())
	}
	if !res.OK() {
		return fmt.Errorf("%s %s: %w", name, res.Status, errIncomplete)
	}
	return nil
}

func printQueryResults(w io.Writer, title string, results []vectordb.QueryResult) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(results))
	for i, r := range results {
		fmt.Fprintf(w, "  %d. [%.4f] %s %s\n", i+1, r.Score, r.ID, formatProperties(r.Properties))
	}
}

func printGenerated(w io.Writer, title string, results []vectordb.GeneratedResult) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(results))
	for i, r := range results {
		fmt.Fprintf(w, "  %d. %s %s\n     %s\n", i+1, r.ID, formatProperties(r.Properties), r.Generated)
	}
}

// formatProperties renders properties in key order; "title" comes first when present.
func formatProperties(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == "title" || keys[j] == "title" {
			return keys[i] == "title"
		}
		return keys[i] < keys[j]
	})
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, props[k])
	}
	return b.String()
}
