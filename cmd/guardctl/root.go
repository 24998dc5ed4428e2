package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/guardrail/internal/client"
	"github.com/okian/guardrail/internal/domain/constraint"
	"github.com/okian/guardrail/internal/domain/guard"
)

const (
	defaultServer = "http://localhost:9080"
	envServer     = "GUARDRAIL_SERVER"
)

type rootOptions struct {
	server    string
	timeout   time.Duration
	output    string
	evaluator string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "guardctl",
		Short:         "Check annotation, sampling and dataset-split invariants",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			switch opts.output {
			case "text", "json":
				return nil
			default:
				return fmt.Errorf("--output must be text or json, got %q", opts.output)
			}
		},
	}

	server := os.Getenv(envServer)
	if server == "" {
		server = defaultServer
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.server, "server", server, "guardrail server URL (env "+envServer+")")
	pf.DurationVar(&opts.timeout, "timeout", 30*time.Second, "request timeout")
	pf.StringVarP(&opts.output, "output", "o", "text", "output format: text or json")
	pf.StringVar(&opts.evaluator, "evaluator", string(constraint.ModeAuto), "local evaluator: auto, solver or direct")

	cmd.AddCommand(
		newCheckCmd(opts),
		newValidateCmd(opts),
		newSubmitCmd(opts),
		newReportCmd(opts),
		newListCmd(opts),
	)
	return cmd
}

func (o *rootOptions) client() *client.Client {
	return client.New(o.server, client.WithTimeout(o.timeout))
}

// checker builds a local checker for the --evaluator flag.
func (o *rootOptions) checker() (*guard.Checker, constraint.Selection, error) {
	mode, err := constraint.ParseMode(o.evaluator)
	if err != nil {
		return nil, constraint.Selection{}, err
	}
	sel, err := constraint.Resolve(mode)
	if err != nil {
		return nil, constraint.Selection{}, err
	}
	return guard.New(guard.WithEvaluator(sel.Evaluator)), sel, nil
}

func (o *rootOptions) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
