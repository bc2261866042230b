package game

import "github.com/COAOX/zecrey_battleship/model"

// PlayerView is what one participant may see: their own fleet in full and
// only shot markers on the opponent's board.
type PlayerView struct {
	Seq         uint64       `json:"seq"`
	Game        *model.Game  `json:"game"`
	Player      string       `json:"player"`
	Opponent    string       `json:"opponent,omitempty"`
	Fleet       []model.Ship `json:"fleet"`
	OwnBoard    model.Board  `json:"own_board"`
	TargetBoard model.Board  `json:"target_board"`
	Shots       []model.Shot `json:"shots"`
}

func (v *PlayerView) Sequence() uint64 { return v.Seq }

// SpectatorView carries both boards with shot markers only.
type SpectatorView struct {
	Seq    uint64                 `json:"seq"`
	Game   *model.Game            `json:"game"`
	Boards map[string]model.Board `json:"boards"`
	Shots  []model.Shot           `json:"shots"`
}

func (v *SpectatorView) Sequence() uint64 { return v.Seq }

type GameFinished struct {
	GameID string `json:"game_id"`
	Winner string `json:"winner"`
}

func buildPlayerView(seq uint64, g *model.Game, player string, fleets map[string][]model.Ship, shots []model.Shot) *PlayerView {
	opponent := g.Opponent(player)
	v := &PlayerView{
		Seq:         seq,
		Game:        g,
		Player:      player,
		Opponent:    opponent,
		Fleet:       fleets[player],
		OwnBoard:    model.NewBoard(),
		TargetBoard: model.NewBoard(),
		Shots:       shots,
	}
	if v.Fleet == nil {
		v.Fleet = []model.Ship{}
	}
	if v.Shots == nil {
		v.Shots = []model.Shot{}
	}

	for _, s := range v.Fleet {
		for _, c := range ShipCells(s) {
			v.OwnBoard.Set(c, model.CellShip)
		}
	}
	for _, s := range shots {
		switch s.Player {
		case player:
			v.TargetBoard.Set(s.Cell(), marker(s.Result))
		case opponent:
			v.OwnBoard.Set(s.Cell(), marker(s.Result))
		}
	}
	return v
}

func buildSpectatorView(seq uint64, g *model.Game, shots []model.Shot) *SpectatorView {
	v := &SpectatorView{
		Seq:    seq,
		Game:   g,
		Boards: make(map[string]model.Board, 2),
		Shots:  shots,
	}
	if v.Shots == nil {
		v.Shots = []model.Shot{}
	}
	for _, p := range g.Players() {
		v.Boards[p] = model.NewBoard()
	}
	for _, s := range shots {
		// a shot marks the board of the player it was fired at
		target := g.Opponent(s.Player)
		if b, ok := v.Boards[target]; ok {
			b.Set(s.Cell(), marker(s.Result))
		}
	}
	return v
}

func marker(r model.ShotResult) model.CellState {
	switch r {
	case model.Hit:
		return model.CellHit
	case model.Sunk:
		return model.CellSunk
	}
	return model.CellMiss
}
