package game

import "github.com/COAOX/zecrey_battleship/model"

// Outcome is the classification of one shot against a fleet.
type Outcome struct {
	Result model.ShotResult
	// Ship is the opposing ship covering the target, nil on a miss.
	Ship *model.Ship
	// Reclassify lists earlier shots of the shooter that must be rewritten
	// from hit to sunk because Ship went down.
	Reclassify []int64
	Won        bool
}

// ResolveShot classifies a shot at target against opponentFleet given every
// shot already in the log. Only the shooter's own shots count towards cover.
func ResolveShot(shooter string, target model.Cell, opponentFleet []model.Ship, shots []model.Shot) Outcome {
	covered := map[model.Cell]struct{}{target: {}}
	var own []model.Shot
	for _, s := range shots {
		if s.Player != shooter {
			continue
		}
		own = append(own, s)
		covered[s.Cell()] = struct{}{}
	}

	out := Outcome{Result: model.Miss}
	idx, ok := occupancy(opponentFleet)[target]
	if ok {
		ship := opponentFleet[idx]
		out.Ship = &ship
		out.Result = model.Hit

		cells := ShipCells(ship)
		if coveredAll(cells, covered) {
			out.Result = model.Sunk
			onShip := make(map[model.Cell]struct{}, len(cells))
			for _, c := range cells {
				onShip[c] = struct{}{}
			}
			for _, s := range own {
				if _, hit := onShip[s.Cell()]; hit && s.Result == model.Hit {
					out.Reclassify = append(out.Reclassify, s.ID)
				}
			}
		}
	}

	out.Won = len(opponentFleet) > 0
	for _, s := range opponentFleet {
		if !coveredAll(ShipCells(s), covered) {
			out.Won = false
			break
		}
	}
	return out
}

func coveredAll(cells []model.Cell, covered map[model.Cell]struct{}) bool {
	for _, c := range cells {
		if _, ok := covered[c]; !ok {
			return false
		}
	}
	return true
}

// CountWin is the length-sum form of win detection: the shooter has as many
// distinct sunk cells as the opponent's fleet has cells. It only holds for a
// fixed composition; ResolveShot checks per-ship cover instead.
func CountWin(shooter string, opponentFleet []model.Ship, shots []model.Shot) bool {
	total := 0
	for _, s := range opponentFleet {
		total += s.Length()
	}
	sunk := make(map[model.Cell]struct{})
	for _, s := range shots {
		if s.Player == shooter && s.Result == model.Sunk {
			sunk[s.Cell()] = struct{}{}
		}
	}
	return total > 0 && len(sunk) == total
}

// SunkShips returns the ships of fleet fully covered by shooter's shots.
func SunkShips(shooter string, fleet []model.Ship, shots []model.Shot) []model.Ship {
	covered := make(map[model.Cell]struct{})
	for _, s := range shots {
		if s.Player == shooter {
			covered[s.Cell()] = struct{}{}
		}
	}
	var sunk []model.Ship
	for _, s := range fleet {
		if coveredAll(ShipCells(s), covered) {
			sunk = append(sunk, s)
		}
	}
	return sunk
}
