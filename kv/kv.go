// Package kv keeps fleets and shot logs in redis.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/COAOX/zecrey_battleship/game"
	"github.com/COAOX/zecrey_battleship/model"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "battleship"

type Config struct {
	Addr      string `json:"addr"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
	PoolSize  int    `json:"pool_size"`
}

// Open connects to redis and pings it.
func Open(ctx context.Context, cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

// applyShotScript appends a shot under the next id and rewrites the listed
// earlier shots to sunk. Nothing is written when one of them is missing.
//
// KEYS[1] shot hash, KEYS[2] id counter
// ARGV[1] shot json, ARGV[2..] ids to mark sunk
var applyShotScript = redis.NewScript(`
for i = 2, #ARGV do
	if redis.call('HEXISTS', KEYS[1], ARGV[i]) == 0 then
		return redis.error_reply('unknown shot ' .. ARGV[i])
	end
end
for i = 2, #ARGV do
	local s = cjson.decode(redis.call('HGET', KEYS[1], ARGV[i]))
	s['result'] = 'sunk'
	redis.call('HSET', KEYS[1], ARGV[i], cjson.encode(s))
end
local id = redis.call('INCR', KEYS[2])
local shot = cjson.decode(ARGV[1])
shot['id'] = id
redis.call('HSET', KEYS[1], tostring(id), cjson.encode(shot))
return id
`)

// rewriteResultScript sets the result of one stored shot.
//
// KEYS[1] shot hash
// ARGV[1] shot id, ARGV[2] result
var rewriteResultScript = redis.NewScript(`
local raw = redis.call('HGET', KEYS[1], ARGV[1])
if not raw then
	return redis.error_reply('unknown shot ' .. ARGV[1])
end
local s = cjson.decode(raw)
s['result'] = ARGV[2]
redis.call('HSET', KEYS[1], ARGV[1], cjson.encode(s))
return 1
`)

// Store implements game.FleetStore, game.ShotStore and game.ShotApplier.
// All keys of one game share a hash tag.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var (
	_ game.FleetStore  = (*Store)(nil)
	_ game.ShotStore   = (*Store)(nil)
	_ game.ShotApplier = (*Store)(nil)
)

func NewStore(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) fleetKey(gameID string) string {
	return fmt.Sprintf("%s:{%s}:fleets", s.prefix, gameID)
}

func (s *Store) shotsKey(gameID string) string {
	return fmt.Sprintf("%s:{%s}:shots", s.prefix, gameID)
}

func (s *Store) seqKey(gameID string) string {
	return fmt.Sprintf("%s:{%s}:shot_seq", s.prefix, gameID)
}

// SaveFleet stores the whole fleet as one field, so a fleet is never half written.
func (s *Store) SaveFleet(ctx context.Context, gameID, player string, ships []model.Ship) error {
	b, err := json.Marshal(ships)
	if err != nil {
		return fmt.Errorf("encode fleet: %w", err)
	}
	ok, err := s.rdb.HSetNX(ctx, s.fleetKey(gameID), player, b).Result()
	if err != nil {
		return err
	}
	if !ok {
		return game.ErrAlreadyPlaced
	}
	return nil
}

func (s *Store) GetFleet(ctx context.Context, gameID, player string) ([]model.Ship, error) {
	raw, err := s.rdb.HGet(ctx, s.fleetKey(gameID), player).Result()
	if errors.Is(err, redis.Nil) {
		return []model.Ship{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeFleet(raw)
}

func (s *Store) GetAllFleets(ctx context.Context, gameID string) (map[string][]model.Ship, error) {
	all, err := s.rdb.HGetAll(ctx, s.fleetKey(gameID)).Result()
	if err != nil {
		return nil, err
	}
	fleets := make(map[string][]model.Ship, len(all))
	for player, raw := range all {
		ships, err := decodeFleet(raw)
		if err != nil {
			return nil, fmt.Errorf("fleet of %s: %w", player, err)
		}
		fleets[player] = ships
	}
	return fleets, nil
}

func decodeFleet(raw string) ([]model.Ship, error) {
	var ships []model.Ship
	if err := json.Unmarshal([]byte(raw), &ships); err != nil {
		return nil, fmt.Errorf("decode fleet: %w", err)
	}
	return ships, nil
}

func (s *Store) AppendShot(ctx context.Context, shot *model.Shot) error {
	return s.ApplyShot(ctx, shot, nil)
}

func (s *Store) ApplyShot(ctx context.Context, shot *model.Shot, sunk []int64) error {
	b, err := json.Marshal(shot)
	if err != nil {
		return fmt.Errorf("encode shot: %w", err)
	}
	args := make([]interface{}, 0, len(sunk)+1)
	args = append(args, b)
	for _, id := range sunk {
		args = append(args, strconv.FormatInt(id, 10))
	}

	keys := []string{s.shotsKey(shot.GameID), s.seqKey(shot.GameID)}
	id, err := applyShotScript.Run(ctx, s.rdb, keys, args...).Int64()
	if err != nil {
		return fmt.Errorf("apply shot: %w", err)
	}
	shot.ID = id
	return nil
}

func (s *Store) ListShots(ctx context.Context, gameID string) ([]model.Shot, error) {
	all, err := s.rdb.HGetAll(ctx, s.shotsKey(gameID)).Result()
	if err != nil {
		return nil, err
	}
	shots := make([]model.Shot, 0, len(all))
	for field, raw := range all {
		var shot model.Shot
		if err := json.Unmarshal([]byte(raw), &shot); err != nil {
			return nil, fmt.Errorf("decode shot %s: %w", field, err)
		}
		shots = append(shots, shot)
	}
	sort.Slice(shots, func(i, j int) bool { return shots[i].ID < shots[j].ID })
	return shots, nil
}

func (s *Store) RewriteShotResult(ctx context.Context, gameID string, shotID int64, result model.ShotResult) error {
	err := rewriteResultScript.Run(ctx, s.rdb, []string{s.shotsKey(gameID)}, strconv.FormatInt(shotID, 10), string(result)).Err()
	if err != nil {
		return fmt.Errorf("rewrite shot %d: %w", shotID, err)
	}
	return nil
}

// DeleteGame drops every key of gameID.
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	return s.rdb.Del(ctx, s.fleetKey(gameID), s.shotsKey(gameID), s.seqKey(gameID)).Err()
}
