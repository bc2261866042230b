package main

import (
	"context"
	"flag"
	"time"

	"github.com/COAOX/zecrey_battleship/api"
	"github.com/COAOX/zecrey_battleship/chat"
	cfg "github.com/COAOX/zecrey_battleship/config"
	"github.com/COAOX/zecrey_battleship/db"
	"github.com/COAOX/zecrey_battleship/game"
	"github.com/COAOX/zecrey_battleship/kv"
	"github.com/COAOX/zecrey_battleship/memstore"
	"github.com/COAOX/zecrey_battleship/replay"
	"github.com/COAOX/zecrey_battleship/room"
	"github.com/sirupsen/logrus"
	"github.com/topfreegames/pitaya/v2"
	"github.com/topfreegames/pitaya/v2/acceptor"
	"github.com/topfreegames/pitaya/v2/config"
	"github.com/topfreegames/pitaya/v2/groups"
	logruswrapper "github.com/topfreegames/pitaya/v2/logger/logrus"
	"github.com/topfreegames/pitaya/v2/serialize/json"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath = flag.String("config", "./config/local.json", "Path to config file")
)

func main() {
	flag.Parse()
	cfg := cfg.Read(*configPath)

	logger := newLogger(cfg.LogLevel, cfg.Development)
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	pitaya.SetLogger(logruswrapper.NewWithFieldLogger(newPitayaLogger(cfg.LogLevel)))

	builder := pitaya.NewDefaultBuilder(true, cfg.FrontendType, pitaya.Standalone, map[string]string{}, configApp())
	builder.AddAcceptor(acceptor.NewWSAcceptor(cfg.WSAddr))
	builder.Groups = groups.NewMemoryGroupService(*config.NewDefaultMemoryGroupConfig())
	builder.Serializer = json.NewSerializer()
	app := builder.Build()

	ctx := context.Background()
	stores, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("open storage", zap.String("storage", cfg.Storage), zap.Error(err))
	}
	defer stores.Close()

	svc := game.NewService(stores.Deps, game.WithFinishTimeout(cfg.FinishHookTimeout()))

	// register game rooms and chat
	bc := room.NewBroadcaster(app, room.NewRegistry(), cfg.FrontendType, logger.Named("broadcast"))
	svc.SetBroadcaster(bc)
	room.RegisterRoom(app, svc, bc)
	chat.RegisterRoom(app, bc)

	janitor, err := svc.StartJanitor(cfg.JanitorInterval(), cfg.LaneIdle())
	if err != nil {
		logger.Fatal("start janitor", zap.Error(err))
	}

	httpApp := api.New(svc, logger.Named("api"))
	go func() {
		if err := httpApp.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()

	logger.Info("battleship server starting",
		zap.String("ws_addr", cfg.WSAddr),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("storage", cfg.Storage),
	)
	// blocks until the process is signalled
	app.Start()

	if err := httpApp.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := janitor.Shutdown(); err != nil {
		logger.Warn("janitor shutdown", zap.Error(err))
	}
	svc.Drain()
	logger.Info("battleship server stopped")
}

func configApp() config.BuilderConfig {
	conf := config.NewDefaultBuilderConfig()
	conf.Pitaya.Heartbeat.Interval = time.Duration(3 * time.Second)
	conf.Pitaya.Buffer.Agent.Messages = 32
	conf.Pitaya.Handler.Messages.Compression = false
	conf.Metrics.Prometheus.Enabled = true
	return *conf
}

func newLogger(level string, development bool) *zap.Logger {
	zc := zap.NewProductionConfig()
	if development {
		zc = zap.NewDevelopmentConfig()
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err == nil {
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zc.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func newPitayaLogger(level string) *logrus.Logger {
	l := logrus.New()
	l.Formatter = &logrus.JSONFormatter{}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

type storage struct {
	game.Deps
	closers []func() error
}

func (s *storage) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			zap.L().Warn("close storage", zap.Error(err))
		}
	}
}

// openStorage builds the stores for the configured storage mode and the
// replay sink on top of them.
func openStorage(ctx context.Context, c *cfg.Config) (*storage, error) {
	s := &storage{}
	switch c.Storage {
	case cfg.StoragePersistent:
		client, err := db.NewClient(c.Database)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, client.Close)

		rdb, err := kv.Open(ctx, c.Redis)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, rdb.Close)

		shots := kv.NewStore(rdb, c.Redis.KeyPrefix)
		s.Deps = game.Deps{Games: client.Game, Fleets: shots, Shots: shots, Stats: client.Player}
	default:
		mem := memstore.New()
		s.Deps = game.Deps{Games: mem, Fleets: mem, Shots: mem, Stats: mem}
	}

	if !c.Replay.Enabled {
		return s, nil
	}
	uploader, err := replay.NewS3Client(ctx, c.Replay)
	if err != nil {
		s.Close()
		return nil, err
	}
	var publisher replay.Publisher
	if c.NatsURL != "" {
		conn, err := replay.ConnectNATS(c.NatsURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() error { return conn.Drain() })
		publisher = conn
	}
	src := replay.Stores{Games: s.Games, Fleets: s.Fleets, Shots: s.Shots}
	s.Replay = replay.NewCapturer(src, uploader, publisher, c.Replay, zap.L().Named("replay"))
	return s, nil
}
