package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/guardrail/internal/domain/guard"
)

func newCheckCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate a single record check locally",
	}
	cmd.AddCommand(newCheckTripletCmd(opts), newCheckWindowCmd(opts), newCheckSamplingCmd(opts))
	return cmd
}

func newCheckTripletCmd(opts *rootOptions) *cobra.Command {
	var onset, apex, offset, nFrames int
	cmd := &cobra.Command{
		Use:   "triplet",
		Short: "Check 0 <= onset < apex < offset <= n_frames-1",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := opts.checker()
			if err != nil {
				return err
			}
			return printResult(cmd, opts, guard.InvariantEventTriplet, c.EventTriplet(onset, apex, offset, nFrames))
		},
	}
	f := cmd.Flags()
	f.IntVar(&onset, "onset", 0, "onset frame")
	f.IntVar(&apex, "apex", 0, "apex frame")
	f.IntVar(&offset, "offset", 0, "offset frame")
	f.IntVar(&nFrames, "n-frames", 0, "number of frames in the clip")
	markRequired(cmd, "onset", "apex", "offset", "n-frames")
	return cmd
}

func newCheckWindowCmd(opts *rootOptions) *cobra.Command {
	var start, length, nFrames int
	cmd := &cobra.Command{
		Use:   "window",
		Short: "Check that [start, start+length) lies inside [0, n_frames)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := opts.checker()
			if err != nil {
				return err
			}
			return printResult(cmd, opts, guard.InvariantWindowBounds, c.WindowBounds(start, length, nFrames))
		},
	}
	f := cmd.Flags()
	f.IntVar(&start, "start", 0, "first frame of the window")
	f.IntVar(&length, "length", 0, "window length in frames")
	f.IntVar(&nFrames, "n-frames", 0, "number of frames in the clip")
	markRequired(cmd, "start", "length", "n-frames")
	return cmd
}

func newCheckSamplingCmd(opts *rootOptions) *cobra.Command {
	var (
		frames         int
		fps, dur, tol float64
	)
	cmd := &cobra.Command{
		Use:   "sampling",
		Short: "Check that frames/fps matches the duration within tolerance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, _, err := opts.checker()
			if err != nil {
				return err
			}
			return printResult(cmd, opts, guard.InvariantSampling, c.SamplingConsistency(frames, fps, dur, tol))
		},
	}
	f := cmd.Flags()
	f.IntVar(&frames, "frames", 0, "frame count")
	f.Float64Var(&fps, "fps", 0, "frames per second")
	f.Float64Var(&dur, "duration", 0, "duration in seconds")
	f.Float64Var(&tol, "tolerance", guard.DefaultSamplingTolerance, "allowed relative deviation")
	markRequired(cmd, "frames", "fps", "duration")
	return cmd
}

func markRequired(cmd *cobra.Command, names ...string) {
	for _, n := range names {
		_ = cmd.MarkFlagRequired(n)
	}
}

type checkOutput struct {
	Check   string     `json:"check"`
	OK      bool       `json:"ok"`
	Kind    guard.Kind `json:"kind"`
	Message string     `json:"message"`
}

// printResult writes res and maps a failed check to errViolation.
func printResult(cmd *cobra.Command, opts *rootOptions, check string, res guard.Result) error {
	out := cmd.OutOrStdout()
	if opts.output == "json" {
		if err := opts.printJSON(out, checkOutput{Check: check, OK: res.OK, Kind: res.Kind, Message: res.Message}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "%s: %s\n", check, res.Message)
	}
	if !res.OK {
		return errViolation
	}
	return nil
}
