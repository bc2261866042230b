package model

import (
	"fmt"
	"strings"
)

type ShipType string

const (
	Carrier    ShipType = "CARRIER"
	Battleship ShipType = "BATTLESHIP"
	Submarine  ShipType = "SUBMARINE"
	Destroyer  ShipType = "DESTROYER"
)

var (
	// ShipTypes is the fixed order in which fleet composition is checked.
	ShipTypes = []ShipType{Carrier, Battleship, Submarine, Destroyer}

	ShipLengthMap = map[ShipType]int{
		Carrier:    5,
		Battleship: 4,
		Submarine:  3,
		Destroyer:  2,
	}

	// FleetComposition is how many ships of each type a fleet must hold.
	FleetComposition = map[ShipType]int{
		Carrier:    1,
		Battleship: 1,
		Submarine:  2,
		Destroyer:  1,
	}
)

func ParseShipType(s string) (ShipType, error) {
	t := ShipType(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := ShipLengthMap[t]; !ok {
		return "", fmt.Errorf("unknown ship type %q", s)
	}
	return t, nil
}

func (t ShipType) Length() int {
	return ShipLengthMap[t]
}

func (t ShipType) Valid() bool {
	_, ok := ShipLengthMap[t]
	return ok
}

func (t *ShipType) UnmarshalText(b []byte) error {
	v, err := ParseShipType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

type Orientation string

const (
	Horizontal Orientation = "HORIZONTAL"
	Vertical   Orientation = "VERTICAL"
)

func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToUpper(strings.TrimSpace(s))); o {
	case Horizontal, Vertical:
		return o, nil
	}
	return "", fmt.Errorf("unknown orientation %q", s)
}

func (o Orientation) Valid() bool {
	return o == Horizontal || o == Vertical
}

func (o *Orientation) UnmarshalText(b []byte) error {
	v, err := ParseOrientation(string(b))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Cell is one square of a board, x is the column and y the row.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

type Ship struct {
	GameID      string      `json:"game_id"`
	Player      string      `json:"player"`
	Type        ShipType    `json:"type"`
	X           int         `json:"x"`
	Y           int         `json:"y"`
	Orientation Orientation `json:"orientation"`
}

func (s Ship) Origin() Cell {
	return Cell{X: s.X, Y: s.Y}
}

func (s Ship) Length() int {
	return s.Type.Length()
}

// Validate rejects a ship whose type or orientation is outside the closed
// variants, which happens when a decoder skipped a missing key.
func (s Ship) Validate() error {
	if !s.Type.Valid() {
		return fmt.Errorf("unknown ship type %q", s.Type)
	}
	if !s.Orientation.Valid() {
		return fmt.Errorf("unknown orientation %q for %s", s.Orientation, s.Type)
	}
	return nil
}

// FleetLength is the number of cells a full fleet covers.
func FleetLength() int {
	n := 0
	for t, count := range FleetComposition {
		n += t.Length() * count
	}
	return n
}
