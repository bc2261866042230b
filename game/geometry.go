package game

import "github.com/COAOX/zecrey_battleship/model"

// OccupiedCells returns length cells starting at origin, extending along +x for
// HORIZONTAL and +y otherwise. Callers check bounds.
func OccupiedCells(origin model.Cell, o model.Orientation, length int) []model.Cell {
	if length <= 0 {
		return nil
	}
	cells := make([]model.Cell, length)
	for i := 0; i < length; i++ {
		if o == model.Horizontal {
			cells[i] = model.Cell{X: origin.X + i, Y: origin.Y}
		} else {
			cells[i] = model.Cell{X: origin.X, Y: origin.Y + i}
		}
	}
	return cells
}

func ShipCells(s model.Ship) []model.Cell {
	return OccupiedCells(s.Origin(), s.Orientation, s.Length())
}

// occupancy maps every occupied cell of fleet to the index of its ship.
func occupancy(fleet []model.Ship) map[model.Cell]int {
	occ := make(map[model.Cell]int, model.FleetLength())
	for i, s := range fleet {
		for _, c := range ShipCells(s) {
			occ[c] = i
		}
	}
	return occ
}
