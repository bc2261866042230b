package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/COAOX/zecrey_battleship/db"
	"github.com/COAOX/zecrey_battleship/kv"
	"github.com/COAOX/zecrey_battleship/replay"
	"github.com/joho/godotenv"
)

const (
	StorageMemory     = "memory"
	StoragePersistent = "persistent"
)

type Config struct {
	Database db.Config     `json:"database"`
	Redis    kv.Config     `json:"redis"`
	Replay   replay.Config `json:"replay"`
	NatsURL  string        `json:"nats_url"`

	Storage      string `json:"storage"`
	FrontendType string `json:"frontend_type"`
	WSAddr       string `json:"ws_addr"`
	HTTPAddr     string `json:"http_addr"`
	LogLevel     string `json:"log_level"`
	Development  bool   `json:"development"`

	LaneIdleSeconds          int `json:"lane_idle_seconds"`
	JanitorIntervalSeconds   int `json:"janitor_interval_seconds"`
	FinishHookTimeoutSeconds int `json:"finish_hook_timeout_seconds"`
}

// Read loads the JSON file at configPath, then lets a .env file and the
// process environment override it. It panics when the file is unusable.
func Read(configPath string) *Config {
	b, err := os.ReadFile(configPath)
	if err != nil {
		panic(err)
	}
	var config Config
	if err := json.Unmarshal(b, &config); err != nil {
		panic(err)
	}
	// a missing .env is fine, the environment may be set directly
	_ = godotenv.Load()
	config.applyEnv()
	config.setDefaults()
	return &config
}

func (c *Config) applyEnv() {
	setString(&c.Database.DSN, "DATABASE_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.NatsURL, "NATS_URL")
	setString(&c.Storage, "STORAGE")
	setString(&c.LogLevel, "LOG_LEVEL")

	setString(&c.Replay.AccountID, "R2_ACCOUNT_ID")
	setString(&c.Replay.AccessKeyID, "R2_ACCESS_KEY_ID")
	setString(&c.Replay.AccessKeySecret, "R2_ACCESS_KEY_SECRET")
	setString(&c.Replay.Bucket, "R2_BUCKET_NAME")
	setString(&c.Replay.Endpoint, "REPLAY_ENDPOINT")
	setString(&c.Replay.CDNBaseURL, "REPLAY_CDN_BASE_URL")
	setString(&c.Replay.Subject, "REPLAY_SUBJECT")
	if v, ok := os.LookupEnv("REPLAY_ENABLED"); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			c.Replay.Enabled = enabled
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func (c *Config) setDefaults() {
	if c.Storage == "" {
		c.Storage = StorageMemory
	}
	if c.FrontendType == "" {
		c.FrontendType = "connector"
	}
	if c.WSAddr == "" {
		c.WSAddr = ":3250"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":3251"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LaneIdleSeconds <= 0 {
		c.LaneIdleSeconds = 600
	}
	if c.JanitorIntervalSeconds <= 0 {
		c.JanitorIntervalSeconds = 60
	}
	if c.FinishHookTimeoutSeconds <= 0 {
		c.FinishHookTimeoutSeconds = 30
	}
}

func (c *Config) LaneIdle() time.Duration {
	return time.Duration(c.LaneIdleSeconds) * time.Second
}

func (c *Config) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSeconds) * time.Second
}

func (c *Config) FinishHookTimeout() time.Duration {
	return time.Duration(c.FinishHookTimeoutSeconds) * time.Second
}
