// session is the control layer between user events and the planning engine.
// A Session owns one environment/agent pair. All mutation happens on the goroutine
// running Run, so the engine stays single-threaded no matter how many http handlers
// or timers submit commands.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"gridpolicy/atomic_float"
	"gridpolicy/grid_world"
	"gridpolicy/reinforcement"

	channerics "github.com/niceyeti/channerics/channels"
)

var (
	// ErrSessionClosed is returned by commands submitted after Run has returned.
	ErrSessionClosed = errors.New("session closed")
	// ErrInvalidState is returned when a command names a state that is off the grid or a wall.
	ErrInvalidState = errors.New("invalid state")
)

// Status is a lock-free summary of the session, for cheap polling.
type Status struct {
	Iterations int     `json:"iterations"`
	Running    bool    `json:"running"`
	Delta      float64 `json:"delta"`
}

type Session struct {
	gw       *grid_world.GridWorld
	agent    *reinforcement.Agent
	run      reinforcement.RunConfig
	interval time.Duration

	commands chan func()
	// Latest-wins: holds at most one unread snapshot.
	updates chan reinforcement.Snapshot
	done    chan struct{}

	// Mirrors of loop state for Status.
	delta      *atomic_float.AtomicFloat64
	iterations atomic.Int64
	running    atomic.Bool

	// Owned by the Run goroutine.
	ticks         <-chan time.Time
	stopTicks     chan struct{}
	runIterations int
}

// New builds the environment and agent described by the config.
func New(cfg *reinforcement.TrainingConfig) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	interval, err := cfg.Interval()
	if err != nil {
		return nil, err
	}

	gw := cfg.NewWorld()
	return &Session{
		gw:       gw,
		agent:    reinforcement.NewAgent(gw, cfg.Gamma()),
		run:      cfg.Run,
		interval: interval,
		commands: make(chan func()),
		updates:  make(chan reinforcement.Snapshot, 1),
		done:     make(chan struct{}),
		delta:    atomic_float.NewAtomicFloat64(0),
	}, nil
}

// Run processes commands and, while running, performs one policy iteration per tick.
// It returns when the context is cancelled. Run must be called exactly once.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.stopTicking()

	s.publish()
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.commands:
			cmd()
		case <-s.ticks:
			s.agent.PolicyIteration()
			s.runIterations++
			s.addIteration()
			if s.run.Converged(s.runIterations, s.agent.Delta()) {
				log.Printf("run stopped after %d iterations, delta %.3g", s.runIterations, s.agent.Delta())
				s.stopTicking()
			}
			s.publish()
		}
	}
}

// Updates returns the snapshot stream. A snapshot is emitted after every change;
// a slow reader only ever sees the most recent one.
func (s *Session) Updates() <-chan reinforcement.Snapshot {
	return s.updates
}

func (s *Session) Status() Status {
	return Status{
		Iterations: int(s.iterations.Load()),
		Running:    s.running.Load(),
		Delta:      s.delta.AtomicRead(),
	}
}

// Delta is the value change of the most recent evaluation sweep.
func (s *Session) Delta() float64 {
	return s.delta.AtomicRead()
}

// NumStates is fixed at construction, so it needs no synchronization.
func (s *Session) NumStates() int {
	return s.gw.NumStates()
}

// Evaluate performs one policy evaluation sweep, which counts as an iteration.
func (s *Session) Evaluate(ctx context.Context) error {
	return s.do(ctx, func() {
		s.agent.EvaluatePolicy()
		s.addIteration()
		s.publish()
	})
}

// Improve performs one policy improvement sweep.
func (s *Session) Improve(ctx context.Context) error {
	return s.do(ctx, func() {
		s.agent.UpdatePolicy()
		s.publish()
	})
}

// Iterate performs one full policy iteration step.
func (s *Session) Iterate(ctx context.Context) error {
	return s.do(ctx, func() {
		s.agent.PolicyIteration()
		s.addIteration()
		s.publish()
	})
}

// Start begins periodic iteration; it is a no-op if already running.
func (s *Session) Start(ctx context.Context) error {
	return s.do(ctx, func() {
		s.startTicking()
		s.publish()
	})
}

// Stop halts periodic iteration; it is a no-op if not running.
func (s *Session) Stop(ctx context.Context) error {
	return s.do(ctx, func() {
		s.stopTicking()
		s.publish()
	})
}

// Toggle starts or stops periodic iteration and returns whether it is now running.
func (s *Session) Toggle(ctx context.Context) (running bool, err error) {
	err = s.do(ctx, func() {
		if s.ticks != nil {
			s.stopTicking()
		} else {
			s.startTicking()
		}
		running = s.ticks != nil
		s.publish()
	})
	return
}

// Reset stops any run, restores the agent's initial values and policy, and zeroes the
// iteration count. Reward overrides are kept.
func (s *Session) Reset(ctx context.Context) error {
	return s.do(ctx, func() {
		s.stopTicking()
		s.agent.Reset()
		s.iterations.Store(0)
		s.delta.AtomicSet(0)
		s.publish()
	})
}

// SetReward overrides the reward for entering the state. Values and policy pick up
// the change on the next sweep.
func (s *Session) SetReward(ctx context.Context, state int, reward float64) error {
	if state < 0 || state >= s.gw.NumStates() {
		return fmt.Errorf("%w: %d is not in [0,%d)", ErrInvalidState, state, s.gw.NumStates())
	}
	// The layout is immutable, so this is safe outside the loop.
	if x, y := s.gw.StateToPos(state); s.gw.IsWall(x, y) {
		return fmt.Errorf("%w: %d is a wall", ErrInvalidState, state)
	}

	return s.do(ctx, func() {
		s.gw.SetReward(state, reward)
		s.publish()
	})
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot(ctx context.Context) (snap reinforcement.Snapshot, err error) {
	err = s.do(ctx, func() {
		snap = s.snapshot()
	})
	return
}

// do runs the function on the Run goroutine and waits for it to complete.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	cmd := func() {
		defer close(finished)
		fn()
	}

	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted the command runs to completion before the loop can exit.
	<-finished
	return nil
}

func (s *Session) startTicking() {
	if s.ticks != nil {
		return
	}
	s.stopTicks = make(chan struct{})
	s.ticks = channerics.NewTicker(s.stopTicks, s.interval)
	s.runIterations = 0
	s.running.Store(true)
	log.Printf("run started, interval %s", s.interval)
}

func (s *Session) stopTicking() {
	if s.ticks == nil {
		return
	}
	close(s.stopTicks)
	s.ticks = nil
	s.running.Store(false)
}

func (s *Session) addIteration() {
	s.iterations.Add(1)
	s.delta.AtomicSet(s.agent.Delta())
}

func (s *Session) snapshot() reinforcement.Snapshot {
	snap := reinforcement.TakeSnapshot(s.gw, s.agent)
	snap.Iterations = int(s.iterations.Load())
	snap.Running = s.ticks != nil
	return snap
}

// publish replaces any unread snapshot with the current one. Run is the only sender,
// so after draining, the send cannot block.
func (s *Session) publish() {
	snap := s.snapshot()
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}
