package model

import (
	"time"
)

type GameStatus string

const (
	StatusWaitingForPlayer GameStatus = "WAITING_FOR_PLAYER"
	StatusShipsSetup       GameStatus = "SHIPS_SETUP"
	StatusInProgress       GameStatus = "IN_PROGRESS"
	StatusFinished         GameStatus = "FINISHED"
)

func (s GameStatus) Valid() bool {
	switch s {
	case StatusWaitingForPlayer, StatusShipsSetup, StatusInProgress, StatusFinished:
		return true
	}
	return false
}

// Game is the root record of a battle. Player2 and CurrentTurn stay nil until
// the single join; Winner is set iff Status is FINISHED.
type Game struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string     `gorm:"not null" json:"name"`
	Slug        string     `gorm:"index" json:"slug"`
	Player1     string     `gorm:"not null;index" json:"player1"`
	Player2     *string    `gorm:"index" json:"player2"`
	Status      GameStatus `gorm:"type:varchar(32);not null;index" json:"status"`
	CurrentTurn *string    `json:"current_turn"`
	Winner      *string    `json:"winner"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Game) TableName() string { return "games" }

// HasPlayer reports whether name holds one of the two seats.
func (g *Game) HasPlayer(name string) bool {
	if name == "" {
		return false
	}
	return g.Player1 == name || (g.Player2 != nil && *g.Player2 == name)
}

// Opponent returns the other seat holder, or "" when it is not known.
func (g *Game) Opponent(name string) string {
	switch {
	case g.Player2 == nil:
		return ""
	case name == g.Player1:
		return *g.Player2
	case name == *g.Player2:
		return g.Player1
	}
	return ""
}

func (g *Game) Players() []string {
	if g.Player2 == nil {
		return []string{g.Player1}
	}
	return []string{g.Player1, *g.Player2}
}

func (g *Game) IsTurn(name string) bool {
	return g.CurrentTurn != nil && *g.CurrentTurn == name
}

// Clone returns a copy that shares no pointers with g.
func (g *Game) Clone() *Game {
	c := *g
	c.Player2 = cloneString(g.Player2)
	c.CurrentTurn = cloneString(g.CurrentTurn)
	c.Winner = cloneString(g.Winner)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// PlayerStats is the per-player win/loss tally updated when a game finishes.
type PlayerStats struct {
	Name        string `gorm:"primaryKey;type:varchar(64)" json:"name"`
	GamesPlayed int    `gorm:"not null;default:0" json:"games_played"`
	Wins        int    `gorm:"not null;default:0" json:"wins"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (PlayerStats) TableName() string { return "player_stats" }
