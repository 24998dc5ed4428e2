package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/guardrail/internal/domain/model"
)

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var (
		wait     bool
		key      string
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "submit FILE...",
		Short: "Submit manifests to the server",
		Long: "Submit manifests to the server. With --wait, poll until every run finishes;\n" +
			"the exit code is then 1 when any run failed.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if key != "" && len(args) > 1 {
				return errors.New("--key applies to a single manifest")
			}
			ms := make([]model.Manifest, 0, len(args))
			for _, path := range args {
				m, err := loadManifest(path, cmd.InOrStdin())
				if err != nil {
					return err
				}
				if key != "" {
					m.IdempotencyKey = key
				}
				ms = append(ms, m)
			}

			c := opts.client()
			out := cmd.OutOrStdout()
			var failed bool
			for _, res := range c.SubmitAll(cmd.Context(), ms, parallel) {
				if res.Err != nil {
					return fmt.Errorf("submit %s: %w", res.Name, res.Err)
				}
				if !wait {
					if opts.output == "json" {
						if err := opts.printJSON(out, res.Submission); err != nil {
							return err
						}
						continue
					}
					dup := ""
					if res.Submission.Duplicate {
						dup = " (duplicate)"
					}
					fmt.Fprintf(out, "%s: run %s %s%s\n", res.Name, res.Submission.RunID, res.Submission.Status, dup)
					continue
				}
				rep, err := c.Wait(cmd.Context(), res.Submission.RunID)
				if err != nil {
					return err
				}
				if err := printReport(out, opts, rep); err != nil {
					if !errors.Is(err, errViolation) {
						return err
					}
					failed = true
				}
			}
			if failed {
				return errViolation
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.BoolVar(&wait, "wait", false, "wait for the runs to finish and print their reports")
	f.StringVar(&key, "key", "", "idempotency key (single manifest only)")
	f.IntVar(&parallel, "parallel", 4, "concurrent submissions")
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "report ID",
		Short: "Print the report of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := opts.client().Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printReport(cmd.OutOrStdout(), opts, rep)
		},
	}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reports, err := opts.client().Reports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.output == "json" {
				return opts.printJSON(out, reports)
			}
			for _, r := range reports {
				fmt.Fprintf(out, "%s  %-8s  %s  %s\n", r.RunID, r.Status, r.SubmittedAt.Format("2006-01-02T15:04:05Z07:00"), r.Name)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs")
	return cmd
}
