package reinforcement

import (
	"math"

	"gridpolicy/grid_world"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Environment is the model the agent plans against: a finite state space with
// deterministic transitions and a known reward function.
type Environment interface {
	NumStates() int
	MaxActions() int
	AllowedActions(state int) []grid_world.Action
	Transition(state int, action grid_world.Action) int
	Reward(state int, action grid_world.Action, nextState int) float64
}

// tieEpsilon is the tolerance under which two Q-values are considered equal
// when selecting greedy actions.
const tieEpsilon = 1e-10

// Agent implements synchronous policy iteration over a tabular value function and
// a stochastic policy. The agent is not safe for concurrent use; callers must
// serialize all calls, including reward changes on the environment.
type Agent struct {
	env        Environment
	gamma      float64
	numStates  int
	numActions int
	// Allowed actions per state. These are fixed once the environment is built,
	// but are refreshed on Reset regardless.
	allowed [][]grid_world.Action

	// V[s]
	values []float64
	// P[a][s]; columns of disallowed actions are always zero.
	policy *mat.Dense
	// Infinity-norm of the change made by the last evaluation sweep.
	delta float64
}

// NewAgent returns an agent with zero values and a uniform policy over each
// state's allowed actions. Gamma is expected to lie in (0,1].
func NewAgent(env Environment, gamma float64) *Agent {
	agent := &Agent{
		env:        env,
		gamma:      gamma,
		numStates:  env.NumStates(),
		numActions: env.MaxActions(),
	}
	agent.Reset()
	return agent
}

// Reset zeroes the value function and restores the uniform policy.
func (agent *Agent) Reset() {
	agent.allowed = make([][]grid_world.Action, agent.numStates)
	for s := range agent.allowed {
		agent.allowed[s] = agent.env.AllowedActions(s)
	}

	agent.values = make([]float64, agent.numStates)
	agent.policy = mat.NewDense(agent.numActions, agent.numStates, nil)
	agent.delta = 0
	agent.initPolicy()
}

func (agent *Agent) initPolicy() {
	for s, actions := range agent.allowed {
		if len(actions) == 0 {
			continue
		}
		prob := 1.0 / float64(len(actions))
		for _, a := range actions {
			agent.policy.Set(int(a), s, prob)
		}
	}
}

// EvaluatePolicy performs one synchronous Bellman-expectation sweep under the current policy:
// V'(s) = sum_a P(a|s) * [R(s,a,s') + gamma*V(s')]. Every backup reads the previous
// sweep's values, and V is replaced only once the sweep completes.
func (agent *Agent) EvaluatePolicy() {
	next := make([]float64, agent.numStates)

	for s, actions := range agent.allowed {
		v := 0.0
		for _, a := range actions {
			prob := agent.policy.At(int(a), s)
			v += prob * agent.backup(s, a)
		}
		next[s] = v
	}

	agent.delta = floats.Distance(next, agent.values, math.Inf(1))
	agent.values = next
}

// UpdatePolicy performs one greedy improvement sweep over the current values.
// At each state, probability is spread uniformly over every action whose Q-value is
// within tieEpsilon of the maximum, and all other actions get zero.
// States without allowed actions are left as they are.
func (agent *Agent) UpdatePolicy() {
	qvals := make([]float64, 0, agent.numActions)

	for s, actions := range agent.allowed {
		if len(actions) == 0 {
			continue
		}

		qvals = qvals[:0]
		for _, a := range actions {
			qvals = append(qvals, agent.backup(s, a))
		}
		maxQ := floats.Max(qvals)

		numMax := 0
		for _, q := range qvals {
			if isNearMax(q, maxQ) {
				numMax++
			}
		}

		for a := 0; a < agent.numActions; a++ {
			agent.policy.Set(a, s, 0)
		}
		prob := 1.0 / float64(numMax)
		for i, a := range actions {
			if isNearMax(qvals[i], maxQ) {
				agent.policy.Set(int(a), s, prob)
			}
		}
	}
}

// PolicyIteration is one full step: evaluation followed by improvement.
func (agent *Agent) PolicyIteration() {
	agent.EvaluatePolicy()
	agent.UpdatePolicy()
}

// GetAction returns the highest probability action at the state. Ties go to the
// first action in iteration order. Returns false if the state has no actions.
func (agent *Agent) GetAction(state int) (best grid_world.Action, ok bool) {
	actions := agent.allowed[state]
	if len(actions) == 0 {
		return
	}

	best, ok = actions[0], true
	maxProb := agent.policy.At(int(best), state)
	for _, a := range actions {
		if prob := agent.policy.At(int(a), state); prob > maxProb {
			best, maxProb = a, prob
		}
	}
	return
}

// GetActionDistribution returns a copy of the policy at the state, restricted to its allowed actions.
func (agent *Agent) GetActionDistribution(state int) map[grid_world.Action]float64 {
	dist := make(map[grid_world.Action]float64, len(agent.allowed[state]))
	for _, a := range agent.allowed[state] {
		dist[a] = agent.policy.At(int(a), state)
	}
	return dist
}

// Probability returns P(a|s).
func (agent *Agent) Probability(action grid_world.Action, state int) float64 {
	return agent.policy.At(int(action), state)
}

// Values returns a copy of the value function.
func (agent *Agent) Values() []float64 {
	return append([]float64(nil), agent.values...)
}

func (agent *Agent) Value(state int) float64 {
	return agent.values[state]
}

func (agent *Agent) Gamma() float64 {
	return agent.gamma
}

// Delta returns the largest absolute value change of the last evaluation sweep,
// or zero if none has run since construction or reset.
func (agent *Agent) Delta() float64 {
	return agent.delta
}

// backup returns the one-step lookahead R(s,a,s') + gamma*V(s') under the current values.
func (agent *Agent) backup(state int, action grid_world.Action) float64 {
	next := agent.env.Transition(state, action)
	reward := agent.env.Reward(state, action, next)
	return reward + agent.gamma*agent.values[next]
}

func isNearMax(q, maxQ float64) bool {
	return math.Abs(q-maxQ) < tieEpsilon
}
