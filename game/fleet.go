package game

import "github.com/COAOX/zecrey_battleship/model"

// ValidateFleet checks a submission and returns the fleet stamped with its
// owner. Rules are applied in a fixed order and the first violation is
// returned: ship values, composition, bounds, overlap. Whether the player
// already placed a fleet is decided by the caller against storage.
func ValidateFleet(gameID, player string, submission []model.Ship) ([]model.Ship, error) {
	for _, s := range submission {
		if err := s.Validate(); err != nil {
			return nil, &Error{Code: CodeInvalidInput, Message: err.Error(), Err: err}
		}
	}

	if err := checkComposition(submission); err != nil {
		return nil, err
	}

	for _, s := range submission {
		for _, c := range ShipCells(s) {
			if !model.InBounds(c) {
				return nil, outOfBounds(s)
			}
		}
	}

	seen := make(map[model.Cell]struct{}, model.FleetLength())
	for _, s := range submission {
		for _, c := range ShipCells(s) {
			if _, ok := seen[c]; ok {
				return nil, overlap(c)
			}
			seen[c] = struct{}{}
		}
	}

	fleet := make([]model.Ship, len(submission))
	for i, s := range submission {
		s.GameID = gameID
		s.Player = player
		fleet[i] = s
	}
	return fleet, nil
}

func checkComposition(submission []model.Ship) error {
	counts := make(map[model.ShipType]int, len(model.ShipTypes))
	for _, s := range submission {
		counts[s.Type]++
	}
	for _, t := range model.ShipTypes {
		if expected := model.FleetComposition[t]; counts[t] != expected {
			return invalidComposition(t, expected, counts[t])
		}
	}
	return nil
}
