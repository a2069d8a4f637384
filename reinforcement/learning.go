package reinforcement

/*
Policy iteration is the DP counterpart of the episodic methods: with a known model there
is nothing to sample, so each step is a full sweep over the state space. Evaluation
backs up every state once under the fixed policy (one Jacobi step toward V^pi rather than
solving V^pi exactly), and improvement makes the policy greedy w.r.t. those values. This
interleaving is sometimes called modified or truncated policy iteration; for gamma < 1 it
converges to the same fixed point, just in more, cheaper steps, which is also what makes
it pleasant to watch.

Solve is the headless driver. The interactive driver (periodic ticks, user commands) lives
in the session package; both reduce to calling PolicyIteration on some cadence.
*/

import (
	"context"
	"fmt"
)

// ProgressFn is called after every iteration with the 1-based iteration number and
// the value delta of that iteration's evaluation sweep.
type ProgressFn func(iteration int, delta float64)

// Converged reports whether a run with the given settings should stop after the
// given number of iterations and the last sweep delta.
func (run RunConfig) Converged(iterations int, delta float64) bool {
	if run.MaxIterations > 0 && iterations >= run.MaxIterations {
		return true
	}
	// A zero delta on the first sweep only means the values started at the fixed point
	// of the initial policy, which is not convergence of the policy.
	return run.Tolerance > 0 && iterations > 1 && delta < run.Tolerance
}

// Solve runs policy iteration until the run settings are satisfied or the context is done.
// At least one of MaxIterations or Tolerance should be set, else Solve runs until
// cancellation. Returns the number of iterations performed, and the context's error
// if it stopped the run.
func Solve(
	ctx context.Context,
	agent *Agent,
	run RunConfig,
	progressFn ProgressFn,
) (iterations int, err error) {
	for {
		select {
		case <-ctx.Done():
			err = fmt.Errorf("solve stopped after %d iterations: %w", iterations, ctx.Err())
			return
		default:
		}

		agent.PolicyIteration()
		iterations++
		if progressFn != nil {
			progressFn(iterations, agent.Delta())
		}

		if run.Converged(iterations, agent.Delta()) {
			return
		}
	}
}
