package db

import (
	"context"
	"errors"

	engine "github.com/COAOX/zecrey_battleship/game"
	"github.com/COAOX/zecrey_battleship/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type player db

var _ engine.PlayerStatsSink = (*player)(nil)

func (p *player) IncrementGamesPlayed(ctx context.Context, name string) error {
	return p.increment(ctx, name, "games_played", model.PlayerStats{Name: name, GamesPlayed: 1})
}

func (p *player) IncrementWins(ctx context.Context, name string) error {
	return p.increment(ctx, name, "wins", model.PlayerStats{Name: name, Wins: 1})
}

// increment upserts the row, adding one to column when it already exists.
func (p *player) increment(ctx context.Context, name, column string, row model.PlayerStats) error {
	return p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "name"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			column:       gorm.Expr("player_stats." + column + " + 1"),
			"updated_at": gorm.Expr("now()"),
		}),
	}).Create(&row).Error
}

func (p *player) Get(ctx context.Context, name string) (model.PlayerStats, error) {
	var stats model.PlayerStats
	err := p.db.WithContext(ctx).First(&stats, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PlayerStats{Name: name}, nil
	}
	return stats, err
}
