package guard

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// scanChunk is the number of records each scan task checks.
const scanChunk = 256

// Finding is a failed record in a scan.
type Finding struct {
	Index  int
	Result Result
}

// Tally counts scan outcomes by kind.
type Tally struct {
	Checked       int
	Passed        int
	Violations    int
	Preconditions int
}

// Scan applies check to every item with at most limit concurrent tasks
// (limit <= 0 means GOMAXPROCS). Findings are ordered by index. Scan stops
// early only when ctx is done.
func Scan[T any](ctx context.Context, items []T, limit int, check func(T) Result) ([]Finding, Tally, error) {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	results := make([]Result, len(items))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for lo := 0; lo < len(items); lo += scanChunk {
		hi := min(lo+scanChunk, len(items))
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gCtx.Err(); err != nil {
					return err
				}
				results[i] = check(items[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Tally{}, fmt.Errorf("scan: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, Tally{}, fmt.Errorf("scan: %w", err)
	}

	var (
		findings []Finding
		tally    = Tally{Checked: len(items)}
	)
	for i, r := range results {
		switch r.Kind {
		case KindOK:
			tally.Passed++
			continue
		case KindPrecondition:
			tally.Preconditions++
		default:
			tally.Violations++
		}
		findings = append(findings, Finding{Index: i, Result: r})
	}
	return findings, tally, nil
}
