package ask

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/m-mizutani/askdb/pkg/model"
)

// Answer is everything the pipeline produced for one question: the
// generated SQL (valid or rejected with a reason), the rows when
// execution happened, and the optional summary.
type Answer struct {
	Question  string
	Prompt    string
	Generated *model.GeneratedSQL
	Denied    []string
	Result    *model.QueryResult
	Summary   string
}

// Write renders the answer for terminal display
func (a *Answer) Write(w io.Writer) error {
	if a.Generated != nil {
		if !a.Generated.Valid {
			_, err := fmt.Fprintf(w, "No query executed: %s\n", a.Generated.Reason)
			return err
		}
		if _, err := fmt.Fprintf(w, "SQL: %s\n\n", a.Generated.SQL); err != nil {
			return err
		}
	}

	if a.Result != nil {
		if err := writeTable(w, a.Result); err != nil {
			return err
		}
	}

	if a.Summary != "" {
		if _, err := fmt.Fprintf(w, "\n%s\n", a.Summary); err != nil {
			return err
		}
	}

	return nil
}

func writeTable(w io.Writer, result *model.QueryResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))

	dashes := make([]string, len(result.Columns))
	for i, col := range result.Columns {
		dashes[i] = strings.Repeat("-", len(col))
	}
	fmt.Fprintln(tw, strings.Join(dashes, "\t"))

	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "(%d rows)\n", len(result.Rows))
	return err
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
