package engine

import (
	"fmt"
	"time"

	"github.com/chazu/facet/pkg/brep"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// evalResult carries an evaluation's output back from its goroutine.
type evalResult struct {
	model  *brep.Model
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, but returns a timeout error
// if the evaluation exceeds d. On timeout the goroutine may still be
// running; ch is buffered so its late send never blocks.
func waitWithTimeout(ch <-chan evalResult, d time.Duration) (*brep.Model, []EvalError, error) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.model, res.errors, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("evaluation timed out after %s", d)
	}
}
