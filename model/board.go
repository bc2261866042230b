package model

const (
	BoardRows    = 10
	BoardColumns = 10
)

type CellState string

const (
	CellEmpty CellState = "empty"
	CellShip  CellState = "ship"
	CellHit   CellState = "hit"
	CellMiss  CellState = "miss"
	CellSunk  CellState = "sunk"
)

// Board is a player's grid. It is always derived from a fleet and the shots
// against it, never stored.
type Board struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`

	// Cells is row-major: index y*Column+x.
	Cells []CellState `json:"cells"`
}

func NewBoard() Board {
	cells := make([]CellState, BoardRows*BoardColumns)
	for i := range cells {
		cells[i] = CellEmpty
	}
	return Board{
		Row:    BoardRows,
		Column: BoardColumns,
		Cells:  cells,
	}
}

func InBounds(c Cell) bool {
	return c.X >= 0 && c.X < BoardColumns && c.Y >= 0 && c.Y < BoardRows
}

func (b *Board) At(c Cell) CellState {
	if !InBounds(c) {
		return CellEmpty
	}
	return b.Cells[c.Y*int(b.Column)+c.X]
}

func (b *Board) Set(c Cell, s CellState) {
	if !InBounds(c) {
		return
	}
	b.Cells[c.Y*int(b.Column)+c.X] = s
}

// Count returns how many cells are in state s.
func (b *Board) Count(s CellState) int {
	n := 0
	for _, c := range b.Cells {
		if c == s {
			n++
		}
	}
	return n
}
