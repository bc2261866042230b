package db

import (
	"context"
	"errors"
	"fmt"

	engine "github.com/COAOX/zecrey_battleship/game"
	"github.com/COAOX/zecrey_battleship/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type game db

var _ engine.GameStore = (*game)(nil)

func (g *game) CreateGame(ctx context.Context, m *model.Game) error {
	return g.db.WithContext(ctx).Create(m).Error
}

func (g *game) GetGame(ctx context.Context, id string) (*model.Game, error) {
	var m model.Game
	err := g.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("game %s: %w", id, engine.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (g *game) ListGames(ctx context.Context) ([]model.Game, error) {
	var games []model.Game
	err := g.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "created_at"}, Desc: true}).
		Order("id").
		Find(&games).Error
	return games, err
}

// JoinGame fills the second seat only while it is empty, so two racing joins
// cannot both succeed.
func (g *game) JoinGame(ctx context.Context, id, player2 string) error {
	res := g.db.WithContext(ctx).Model(&model.Game{}).
		Where("id = ? AND player2 IS NULL", id).
		Updates(map[string]interface{}{
			"player2":      player2,
			"current_turn": gorm.Expr("player1"),
			"status":       model.StatusShipsSetup,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := g.GetGame(ctx, id); err != nil {
			return err
		}
		return engine.ErrGameFull
	}
	return nil
}

func (g *game) UpdateTurn(ctx context.Context, id, player string) error {
	return g.update(ctx, id, map[string]interface{}{"current_turn": player})
}

func (g *game) UpdateStatus(ctx context.Context, id string, status model.GameStatus, winner string) error {
	var w interface{}
	if winner != "" {
		w = winner
	}
	return g.update(ctx, id, map[string]interface{}{"status": status, "winner": w})
}

func (g *game) update(ctx context.Context, id string, values map[string]interface{}) error {
	res := g.db.WithContext(ctx).Model(&model.Game{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("game %s: %w", id, engine.ErrNotFound)
	}
	return nil
}
