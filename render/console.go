package render

import (
	"bufio"
	"fmt"
	"io"

	"gridpolicy/grid_world"
	"gridpolicy/reinforcement"

	"github.com/logrusorgru/aurora"
)

const wallCell = "  ####  "

// Console prints the grid one row per line: each open cell shows its greedy action
// and value, walls are hatched. Colours are ANSI escapes, disabled when colors is false.
func Console(w io.Writer, snap *reinforcement.Snapshot, colors bool) error {
	au := aurora.NewAurora(colors)
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "iteration %d  delta %.3g  gamma %.2f\n", snap.Iterations, snap.Delta, snap.Gamma)
	for y := 0; y < snap.Height; y++ {
		for x := 0; x < snap.Width; x++ {
			state := y*snap.Width + x
			fmt.Fprint(bw, consoleCell(au, snap, state))
		}
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

func consoleCell(au aurora.Aurora, snap *reinforcement.Snapshot, state int) aurora.Value {
	cell := snap.Cell(state)
	if cell == grid_world.Wall {
		return au.Faint(wallCell)
	}

	glyph := ' '
	if snap.HasAction[state] {
		glyph = snap.Actions[state].Arrow()
	}
	text := fmt.Sprintf("%c%+6.2f ", glyph, snap.Values[state])

	switch {
	case cell == grid_world.Start:
		return au.Bold(au.Blue(text))
	case cell == grid_world.Goal:
		return au.Bold(au.Green(text))
	case snap.Values[state] > 0:
		return au.Green(text)
	case snap.Values[state] < 0:
		return au.Red(text)
	}
	return au.White(text)
}
