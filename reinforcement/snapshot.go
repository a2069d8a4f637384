package reinforcement

import (
	"gridpolicy/grid_world"
)

// Snapshot is a copy of everything views need from the environment and agent
// at one point in time. It shares no memory with either, so it may be handed to
// other goroutines while planning continues.
type Snapshot struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Start  int     `json:"start"`
	Goal   int     `json:"goal"`
	Gamma  float64 `json:"gamma"`
	// Grid is indexed [y][x].
	Grid [][]grid_world.CellType `json:"grid"`
	// Values, Rewards, Actions and HasAction are indexed by state.
	Values  []float64           `json:"values"`
	Rewards []float64           `json:"rewards"`
	Actions []grid_world.Action `json:"actions"`
	// HasAction is false for states without allowed actions (walls).
	HasAction []bool `json:"hasAction"`
	// Delta is the value change of the last evaluation sweep.
	Delta float64 `json:"delta"`

	// Set by the driver, not the agent.
	Iterations int  `json:"iterations"`
	Running    bool `json:"running"`
}

// TakeSnapshot copies the current environment and agent state.
func TakeSnapshot(gw *grid_world.GridWorld, agent *Agent) Snapshot {
	n := gw.NumStates()
	snap := Snapshot{
		Width:     gw.Width(),
		Height:    gw.Height(),
		Start:     gw.StartState(),
		Goal:      gw.GoalState(),
		Gamma:     agent.Gamma(),
		Grid:      gw.Grid(),
		Values:    agent.Values(),
		Rewards:   make([]float64, n),
		Actions:   make([]grid_world.Action, n),
		HasAction: make([]bool, n),
		Delta:     agent.Delta(),
	}
	for s := 0; s < n; s++ {
		snap.Rewards[s] = gw.GetReward(s)
		snap.Actions[s], snap.HasAction[s] = agent.GetAction(s)
	}
	return snap
}

// Cell returns the cell type of the state.
func (snap *Snapshot) Cell(state int) grid_world.CellType {
	return snap.Grid[state/snap.Width][state%snap.Width]
}
