package game

import (
	"context"

	"github.com/COAOX/zecrey_battleship/model"
)

// GameStore persists game rows. GetGame returns an error matching ErrNotFound
// for unknown ids.
type GameStore interface {
	CreateGame(ctx context.Context, g *model.Game) error
	GetGame(ctx context.Context, id string) (*model.Game, error)
	ListGames(ctx context.Context) ([]model.Game, error)
	// JoinGame sets player2, gives the first turn to player1 and moves the game
	// to SHIPS_SETUP. It returns ErrGameFull if player2 is already set.
	JoinGame(ctx context.Context, id, player2 string) error
	UpdateTurn(ctx context.Context, id, player string) error
	// UpdateStatus sets status and winner; an empty winner clears it.
	UpdateStatus(ctx context.Context, id string, status model.GameStatus, winner string) error
}

// FleetStore keeps each player's fleet. SaveFleet is all-or-nothing and
// returns ErrAlreadyPlaced if the player already has a fleet for the game.
// GetFleet returns an empty fleet when none was placed.
type FleetStore interface {
	SaveFleet(ctx context.Context, gameID, player string, ships []model.Ship) error
	GetFleet(ctx context.Context, gameID, player string) ([]model.Ship, error)
	GetAllFleets(ctx context.Context, gameID string) (map[string][]model.Ship, error)
}

// ShotStore is the append-only shot log of each game. AppendShot assigns the
// next per-game id to shot.ID. ListShots is ordered by id.
type ShotStore interface {
	AppendShot(ctx context.Context, shot *model.Shot) error
	ListShots(ctx context.Context, gameID string) ([]model.Shot, error)
	RewriteShotResult(ctx context.Context, gameID string, shotID int64, result model.ShotResult) error
}

// ShotApplier is implemented by shot stores that can append a shot and
// rewrite earlier shots to sunk in one atomic step.
type ShotApplier interface {
	ApplyShot(ctx context.Context, shot *model.Shot, sunk []int64) error
}

type PlayerStatsSink interface {
	IncrementGamesPlayed(ctx context.Context, player string) error
	IncrementWins(ctx context.Context, player string) error
}

type ReplaySink interface {
	CaptureFinishedGame(ctx context.Context, gameID string) error
}

// Broadcaster pushes to the connections of a game room. The engine only
// depends on this interface.
type Broadcaster interface {
	PushToPlayer(ctx context.Context, gameID, player, route string, v interface{}) error
	PushToRoom(ctx context.Context, gameID, route string, v interface{}) error
	PushToObservers(ctx context.Context, gameID, route string, v interface{}) error
}

// Sequenced values carry the per-game broadcast sequence they were built at.
type Sequenced interface {
	Sequence() uint64
}

const (
	RouteStateUpdate  = "onStateUpdate"
	RouteSpectate     = "onSpectate"
	RouteGameFinished = "onGameFinished"
	RouteConnect      = "onConnect"
	RouteDisconnect   = "onDisconnect"
	RouteMessage      = "onMessage"
	RouteError        = "onError"
)

type nopBroadcaster struct{}

func (nopBroadcaster) PushToPlayer(context.Context, string, string, string, interface{}) error {
	return nil
}
func (nopBroadcaster) PushToRoom(context.Context, string, string, interface{}) error { return nil }
func (nopBroadcaster) PushToObservers(context.Context, string, string, interface{}) error {
	return nil
}

type nopStats struct{}

func (nopStats) IncrementGamesPlayed(context.Context, string) error { return nil }
func (nopStats) IncrementWins(context.Context, string) error        { return nil }

type nopReplay struct{}

func (nopReplay) CaptureFinishedGame(context.Context, string) error { return nil }
