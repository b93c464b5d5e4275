package cli

import (
	"fmt"
	"io"

	"github.com/bytedance/sonic"

	"github.com/mesh-intelligence/asana2sql/internal/sync"
)

// printJSON writes v as indented JSON with sorted map keys.
func printJSON(w io.Writer, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// passSummary is the printable form of a sync.Result.
type passSummary struct {
	Operation string   `json:"operation"`
	RunID     string   `json:"run_id"`
	Table     string   `json:"table"`
	Upserted  int      `json:"upserted"`
	Deleted   int      `json:"deleted"`
	Warnings  []string `json:"warnings,omitempty"`
}

func summarize(op string, res sync.Result) passSummary {
	s := passSummary{
		Operation: op,
		RunID:     res.RunID,
		Table:     res.Table,
		Upserted:  res.Upserted,
		Deleted:   res.Deleted,
	}
	for _, w := range res.Warnings {
		s.Warnings = append(s.Warnings, w.Error())
	}
	return s
}

func printSummary(w io.Writer, jsonMode bool, s passSummary) error {
	if jsonMode {
		return printJSON(w, s)
	}
	fmt.Fprintf(w, "%s %s: %d upserted, %d deleted (run %s)\n", s.Operation, s.Table, s.Upserted, s.Deleted, s.RunID)
	for _, warning := range s.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
	return nil
}
