package model

import (
	"fmt"
	"strings"
	"time"
)

type ShotResult string

const (
	Miss ShotResult = "miss"
	Hit  ShotResult = "hit"
	Sunk ShotResult = "sunk"
)

func ParseShotResult(s string) (ShotResult, error) {
	switch r := ShotResult(strings.ToLower(strings.TrimSpace(s))); r {
	case Miss, Hit, Sunk:
		return r, nil
	}
	return "", fmt.Errorf("unknown shot result %q", s)
}

func (r *ShotResult) UnmarshalText(b []byte) error {
	v, err := ParseShotResult(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Shot is append-only. Result may only move from hit to sunk.
type Shot struct {
	ID        int64      `json:"id"`
	GameID    string     `json:"game_id"`
	Player    string     `json:"player"`
	X         int        `json:"x"`
	Y         int        `json:"y"`
	Result    ShotResult `json:"result"`
	CreatedAt time.Time  `json:"created_at"`
}

func (s Shot) Cell() Cell {
	return Cell{X: s.X, Y: s.Y}
}
