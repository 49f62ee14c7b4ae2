package extractor

import (
	"context"
	"errors"

	"github.com/guiyumin/mediadrop/internal/core/logger"
)

// tactic is one step of a strategy's fallback chain.
type tactic[S any] struct {
	name string
	run  func(ctx context.Context, st S) ([]Artifact, error)
}

// errNoOutput marks a tactic that ran without error but produced nothing
var errNoOutput = errors.New("no output produced")

// runTactics tries each tactic in order and returns the first non-empty
// result. Failures are logged and the last one is returned when the list
// is exhausted.
func runTactics[S any](ctx context.Context, l logger.Logger, tactics []tactic[S], st S) ([]Artifact, error) {
	var last error
	for _, t := range tactics {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		files, err := t.run(ctx, st)
		if err == nil && len(files) == 0 {
			err = errNoOutput
		}
		if err == nil {
			l.Emit(logger.INFO, "Tactic %s succeeded with %d file(s)", t.name, len(files))
			return files, nil
		}

		l.Emit(logger.WARNING, "Tactic %s failed: %v", t.name, err)
		last = err
	}
	return nil, last
}
