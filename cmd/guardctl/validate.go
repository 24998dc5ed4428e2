package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/guardrail/internal/domain/model"
	"github.com/okian/guardrail/internal/domain/runner"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var (
		budget      int
		maxFindings int
	)
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Run every check of a manifest locally",
		Long: "Run every check of a manifest locally and print the report.\n" +
			"Exits 1 when the run fails and 2 when the manifest cannot be read.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := loadManifest(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				return err
			}
			checker, _, err := opts.checker()
			if err != nil {
				return err
			}
			r := runner.NewInMemoryRunner(
				runner.WithChecker(checker),
				runner.WithViolationBudget(budget),
				runner.WithMaxFindings(maxFindings),
			)
			rep, err := r.Run(cmd.Context(), model.Run{ID: "local", Manifest: m, SubmittedAt: time.Now().UTC()})
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), opts, rep)
		},
	}
	cmd.Flags().IntVar(&budget, "violation-budget", 0, "record violations tolerated before the run fails")
	cmd.Flags().IntVar(&maxFindings, "max-findings", 1000, "record findings kept in the report")
	return cmd
}

// printReport writes rep and maps a failed run to errViolation.
func printReport(w io.Writer, opts *rootOptions, rep model.Report) error {
	if opts.output == "json" {
		if err := opts.printJSON(w, rep); err != nil {
			return err
		}
	} else {
		writeReport(w, rep)
	}
	if rep.Status == model.StatusFailed {
		return errViolation
	}
	return nil
}

func writeReport(w io.Writer, rep model.Report) {
	fmt.Fprintf(w, "run %s (%s): %s\n", rep.RunID, rep.Name, rep.Status)
	if rep.Strategy != "" {
		fmt.Fprintf(w, "evaluator: %s\n", rep.Strategy)
	}
	for _, t := range rep.Tallies {
		fmt.Fprintf(w, "  %-22s checked=%d passed=%d violations=%d preconditions=%d\n",
			t.Check, t.Checked, t.Passed, t.Violations, t.Preconditions)
	}
	for _, f := range rep.Findings {
		id := f.RecordID
		if id == "" {
			id = fmt.Sprintf("#%d", f.Index)
		}
		fmt.Fprintf(w, "  [%s] %s %s: %s\n", f.Kind, f.Check, id, f.Message)
	}
	if rep.FindingsTruncated {
		fmt.Fprintln(w, "  (findings truncated)")
	}
	for _, f := range rep.Fatal {
		fmt.Fprintf(w, "  FATAL %s: %s\n", f.Invariant, f.Message)
	}
	if rep.Reason != "" {
		fmt.Fprintf(w, "reason: %s\n", rep.Reason)
	}
}
