// grid_world is the maze environment: a fixed grid of cells, a deterministic
// transition function, and a sparse reward map over destination states.
package grid_world

// CellType is the static type of a grid cell.
// Note that only Wall affects dynamics; Start and Goal are markers for display
// and for the goal reward, which is registered like any other reward override.
type CellType int

const (
	Empty CellType = iota
	Wall
	Start
	Goal
)

func (ct CellType) String() string {
	switch ct {
	case Wall:
		return "wall"
	case Start:
		return "start"
	case Goal:
		return "goal"
	}
	return "empty"
}

// Action is one of the five moves available to the agent.
type Action int

const (
	Up Action = iota
	Right
	Down
	Left
	Stay
)

// NumActions is the fixed cardinality of the action set.
const NumActions = 5

// Actions lists every action in iteration order. The order is part of the
// tie-breaking contract of the agent and must not change.
var Actions = [NumActions]Action{Up, Right, Down, Left, Stay}

func (a Action) String() string {
	switch a {
	case Up:
		return "up"
	case Right:
		return "right"
	case Down:
		return "down"
	case Left:
		return "left"
	case Stay:
		return "stay"
	}
	return "unknown"
}

// Arrow returns a printable rune for the action, for console and svg display.
func (a Action) Arrow() rune {
	switch a {
	case Up:
		return '↑'
	case Right:
		return '→'
	case Down:
		return '↓'
	case Left:
		return '←'
	}
	return '•'
}

// Offset is the x/y displacement of the action. The y axis grows downward,
// so Up decrements y.
func (a Action) Offset() (dx, dy int) {
	switch a {
	case Up:
		return 0, -1
	case Right:
		return 1, 0
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	}
	return 0, 0
}

// Rewards
const (
	// StepReward is the reward for entering any state without an override.
	StepReward = -0.01
	GoalReward = 1.0
)

// GridWorld is the environment. Dimensions and layout are fixed at construction;
// only the reward overrides change afterward.
type GridWorld struct {
	width, height int
	grid          [][]CellType // indexed [y][x]
	startState    int
	goalState     int
	// Sparse: states absent from the map yield StepReward.
	rewards map[int]float64
}

// NewGridWorld builds the grid per Layout and registers the goal reward.
// Width and height are assumed to be >= 1.
func NewGridWorld(width, height int) *GridWorld {
	gw := &GridWorld{
		width:   width,
		height:  height,
		grid:    Layout(width, height),
		rewards: map[int]float64{},
	}
	gw.startState = gw.PosToState(0, 0)
	gw.goalState = gw.PosToState(width-1, height-1)
	gw.SetReward(gw.goalState, GoalReward)
	return gw
}

func (gw *GridWorld) Width() int  { return gw.width }
func (gw *GridWorld) Height() int { return gw.height }

func (gw *GridWorld) NumStates() int {
	return gw.width * gw.height
}

func (gw *GridWorld) MaxActions() int {
	return NumActions
}

func (gw *GridWorld) StartState() int { return gw.startState }
func (gw *GridWorld) GoalState() int  { return gw.goalState }

func (gw *GridWorld) PosToState(x, y int) int {
	return y*gw.width + x
}

func (gw *GridWorld) StateToPos(state int) (x, y int) {
	return state % gw.width, state / gw.width
}

// CellAt returns the cell type at x/y, which must lie on the grid.
func (gw *GridWorld) CellAt(x, y int) CellType {
	return gw.grid[y][x]
}

// Grid returns a copy of the layout, indexed [y][x].
func (gw *GridWorld) Grid() [][]CellType {
	grid := make([][]CellType, len(gw.grid))
	for y, row := range gw.grid {
		grid[y] = append([]CellType(nil), row...)
	}
	return grid
}

// IsWall reports whether x/y is a wall. The area outside the grid counts as wall.
func (gw *GridWorld) IsWall(x, y int) bool {
	if x < 0 || x >= gw.width || y < 0 || y >= gw.height {
		return true
	}
	return gw.grid[y][x] == Wall
}

// AllowedActions returns the legal actions in iteration order: each move whose
// destination is not a wall, then Stay, which is always legal. Wall states have
// no actions at all since they are never entered.
func (gw *GridWorld) AllowedActions(state int) (actions []Action) {
	x, y := gw.StateToPos(state)
	if gw.IsWall(x, y) {
		return nil
	}

	actions = make([]Action, 0, NumActions)
	for _, a := range Actions[:Stay] {
		dx, dy := a.Offset()
		if !gw.IsWall(x+dx, y+dy) {
			actions = append(actions, a)
		}
	}
	return append(actions, Stay)
}

// Transition returns the successor of taking the action in the state.
// Moving into a wall or off the grid leaves the state unchanged.
func (gw *GridWorld) Transition(state int, action Action) int {
	x, y := gw.StateToPos(state)
	dx, dy := action.Offset()
	if gw.IsWall(x+dx, y+dy) {
		return state
	}
	return gw.PosToState(x+dx, y+dy)
}

// Reward depends only on the destination state; state and action are accepted
// to match the general MDP signature R(s,a,s').
func (gw *GridWorld) Reward(state int, action Action, nextState int) float64 {
	return gw.GetReward(nextState)
}

// SetReward overrides the reward for entering the state. Any value is accepted.
func (gw *GridWorld) SetReward(state int, reward float64) {
	gw.rewards[state] = reward
}

func (gw *GridWorld) GetReward(state int) float64 {
	if reward, ok := gw.rewards[state]; ok {
		return reward
	}
	return StepReward
}

// HasRewardOverride reports whether the state's reward was explicitly set.
func (gw *GridWorld) HasRewardOverride(state int) bool {
	_, ok := gw.rewards[state]
	return ok
}

// IsGoalState only matches the fixed goal; other positively rewarded cells are not goals.
func (gw *GridWorld) IsGoalState(state int) bool {
	return state == gw.goalState
}
