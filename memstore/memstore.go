// Package memstore keeps games, fleets, shots and player stats in process
// memory. It backs the "memory" storage mode and the engine tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/COAOX/zecrey_battleship/game"
	"github.com/COAOX/zecrey_battleship/model"
)

type Store struct {
	mu      sync.RWMutex
	games   map[string]*model.Game
	fleets  map[string]map[string][]model.Ship
	shots   map[string][]model.Shot
	nextID  map[string]int64
	players map[string]*model.PlayerStats
}

func New() *Store {
	return &Store{
		games:   make(map[string]*model.Game),
		fleets:  make(map[string]map[string][]model.Ship),
		shots:   make(map[string][]model.Shot),
		nextID:  make(map[string]int64),
		players: make(map[string]*model.PlayerStats),
	}
}

var (
	_ game.GameStore       = (*Store)(nil)
	_ game.FleetStore      = (*Store)(nil)
	_ game.ShotStore       = (*Store)(nil)
	_ game.ShotApplier     = (*Store)(nil)
	_ game.PlayerStatsSink = (*Store)(nil)
)

func (s *Store) CreateGame(_ context.Context, g *model.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[g.ID]; ok {
		return fmt.Errorf("game %s already exists", g.ID)
	}
	s.games[g.ID] = g.Clone()
	return nil
}

func (s *Store) GetGame(_ context.Context, id string) (*model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, game.ErrNotFound)
	}
	return g.Clone(), nil
}

func (s *Store) ListGames(_ context.Context) ([]model.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	games := make([]model.Game, 0, len(s.games))
	for _, g := range s.games {
		games = append(games, *g.Clone())
	}
	sort.Slice(games, func(i, j int) bool {
		if games[i].CreatedAt.Equal(games[j].CreatedAt) {
			return games[i].ID < games[j].ID
		}
		return games[i].CreatedAt.After(games[j].CreatedAt)
	})
	return games, nil
}

func (s *Store) JoinGame(_ context.Context, id, player2 string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return fmt.Errorf("game %s: %w", id, game.ErrNotFound)
	}
	if g.Player2 != nil {
		return game.ErrGameFull
	}
	p2, turn := player2, g.Player1
	g.Player2 = &p2
	g.CurrentTurn = &turn
	g.Status = model.StatusShipsSetup
	return nil
}

func (s *Store) UpdateTurn(_ context.Context, id, player string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return fmt.Errorf("game %s: %w", id, game.ErrNotFound)
	}
	turn := player
	g.CurrentTurn = &turn
	return nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, status model.GameStatus, winner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[id]
	if !ok {
		return fmt.Errorf("game %s: %w", id, game.ErrNotFound)
	}
	g.Status = status
	g.Winner = nil
	if winner != "" {
		w := winner
		g.Winner = &w
	}
	return nil
}

func (s *Store) SaveFleet(_ context.Context, gameID, player string, ships []model.Ship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byPlayer, ok := s.fleets[gameID]
	if !ok {
		byPlayer = make(map[string][]model.Ship)
		s.fleets[gameID] = byPlayer
	}
	if len(byPlayer[player]) > 0 {
		return game.ErrAlreadyPlaced
	}
	byPlayer[player] = append([]model.Ship(nil), ships...)
	return nil
}

func (s *Store) GetFleet(_ context.Context, gameID, player string) ([]model.Ship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Ship{}, s.fleets[gameID][player]...), nil
}

func (s *Store) GetAllFleets(_ context.Context, gameID string) (map[string][]model.Ship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := make(map[string][]model.Ship, len(s.fleets[gameID]))
	for p, ships := range s.fleets[gameID] {
		all[p] = append([]model.Ship(nil), ships...)
	}
	return all, nil
}

func (s *Store) AppendShot(ctx context.Context, shot *model.Shot) error {
	return s.ApplyShot(ctx, shot, nil)
}

func (s *Store) ApplyShot(_ context.Context, shot *model.Shot, sunk []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.shots[shot.GameID]
	for _, id := range sunk {
		if id < 1 || id > int64(len(log)) {
			return fmt.Errorf("shot %d of game %s does not exist", id, shot.GameID)
		}
	}

	s.nextID[shot.GameID]++
	shot.ID = s.nextID[shot.GameID]
	for _, id := range sunk {
		log[id-1].Result = model.Sunk
	}
	s.shots[shot.GameID] = append(log, *shot)
	return nil
}

func (s *Store) ListShots(_ context.Context, gameID string) ([]model.Shot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Shot{}, s.shots[gameID]...), nil
}

func (s *Store) RewriteShotResult(_ context.Context, gameID string, shotID int64, result model.ShotResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.shots[gameID]
	if shotID < 1 || shotID > int64(len(log)) {
		return fmt.Errorf("shot %d of game %s does not exist", shotID, gameID)
	}
	log[shotID-1].Result = result
	return nil
}

func (s *Store) IncrementGamesPlayed(_ context.Context, player string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stat(player).GamesPlayed++
	return nil
}

func (s *Store) IncrementWins(_ context.Context, player string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stat(player).Wins++
	return nil
}

// Stats returns a copy of player's tally.
func (s *Store) Stats(player string) model.PlayerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.players[player]; ok {
		return *st
	}
	return model.PlayerStats{Name: player}
}

func (s *Store) stat(player string) *model.PlayerStats {
	st, ok := s.players[player]
	if !ok {
		st = &model.PlayerStats{Name: player}
		s.players[player] = st
	}
	return st
}
