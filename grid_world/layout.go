package grid_world

// Wall columns and the interior obstacle positions, designed for the default 20x10 maze.
// Smaller grids get whatever part of the pattern fits; larger grids leave the rest open.
var (
	wallColumns = []int{3, 7, 12, 16}

	obstacles = [][2]int{
		{5, 1}, {9, 2}, {14, 1}, {18, 2},
		{2, 5}, {10, 5}, {15, 4},
		{1, 8}, {8, 7}, {13, 8}, {17, 7},
	}
)

// Layout generates the maze for the given dimensions. It is a pure function of
// width and height and returns a grid indexed [y][x]. The top-left cell is always
// Start and the bottom-right cell always Goal, which overrides Start on a 1x1 grid.
func Layout(width, height int) (grid [][]CellType) {
	grid = make([][]CellType, height)
	for y := range grid {
		grid[y] = make([]CellType, width)
	}

	setWall := func(x, y int) {
		if x >= 0 && x < width && y >= 0 && y < height {
			grid[y][x] = Wall
		}
	}

	// Vertical walls, with gaps at row 5 and height-5.
	for y := 2; y < height-2; y++ {
		if y == 5 || y == height-5 {
			continue
		}
		for _, x := range wallColumns {
			setWall(x, y)
		}
	}

	// Horizontal walls on rows 3 and 6, leaving the wall columns themselves open as doors.
	for x := 1; x < width-1; x++ {
		if isWallColumn(x) {
			continue
		}
		if height > 4 {
			setWall(x, 3)
		}
		if height > 6 {
			setWall(x, 6)
		}
	}

	for _, pos := range obstacles {
		setWall(pos[0], pos[1])
	}

	grid[0][0] = Start
	grid[height-1][width-1] = Goal
	return
}

func isWallColumn(x int) bool {
	for _, col := range wallColumns {
		if x == col {
			return true
		}
	}
	return false
}

// Rune returns the console character of the cell type.
func (ct CellType) Rune() rune {
	switch ct {
	case Wall:
		return 'W'
	case Start:
		return '-'
	case Goal:
		return '+'
	}
	return 'o'
}

// Track renders a grid as rows of cell runes, top row first, e.g. for
// visual reference and for comparing layouts in tests.
func Track(grid [][]CellType) []string {
	track := make([]string, 0, len(grid))
	for _, row := range grid {
		runes := make([]rune, 0, len(row))
		for _, ct := range row {
			runes = append(runes, ct.Rune())
		}
		track = append(track, string(runes))
	}
	return track
}
