// Package db keeps game rows and player stats in postgres through gorm.
package db

import (
	"fmt"
	"time"

	"github.com/COAOX/zecrey_battleship/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	DSN             string `json:"dsn"`
	MaxOpenConns    int    `json:"max_open_conns"`
	MaxIdleConns    int    `json:"max_idle_conns"`
	ConnMaxLifetime int    `json:"conn_max_lifetime_seconds"`
	Debug           bool   `json:"debug"`
}

type db struct {
	db *gorm.DB
}

type Client struct {
	DB *gorm.DB

	Game   *game
	Player *player
}

func NewClient(cfg Config) (*Client, error) {
	level := logger.Warn
	if cfg.Debug {
		level = logger.Info
	}
	gdb, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	if err := gdb.AutoMigrate(&model.Game{}, &model.PlayerStats{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return newClient(gdb), nil
}

func newClient(gdb *gorm.DB) *Client {
	d := &db{db: gdb}
	return &Client{
		DB:     gdb,
		Game:   (*game)(d),
		Player: (*player)(d),
	}
}

func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
