// Package replay captures finished games for the offline renderer: the game
// document goes to S3-compatible storage and a render job is announced on NATS.
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/COAOX/zecrey_battleship/game"
	"github.com/COAOX/zecrey_battleship/model"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const defaultSubject = "battleship.replay.render"

type Config struct {
	Enabled         bool   `json:"enabled"`
	AccountID       string `json:"account_id"`
	AccessKeyID     string `json:"access_key_id"`
	AccessKeySecret string `json:"access_key_secret"`
	Bucket          string `json:"bucket"`
	Endpoint        string `json:"endpoint"`
	CDNBaseURL      string `json:"cdn_base_url"`
	KeyPrefix       string `json:"key_prefix"`
	Subject         string `json:"subject"`
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", c.AccountID)
}

func (c Config) baseURL() string {
	if c.CDNBaseURL != "" {
		return strings.TrimSuffix(c.CDNBaseURL, "/")
	}
	return c.endpoint() + "/" + c.Bucket
}

// NewS3Client builds a client for the configured R2 account or S3 endpoint.
func NewS3Client(ctx context.Context, cfg Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("auto"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("load s3 config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.endpoint())
		o.UsePathStyle = true
	}), nil
}

// ConnectNATS dials url and keeps reconnecting for the life of the process.
func ConnectNATS(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("battleship-replay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type Publisher interface {
	Publish(subject string, data []byte) error
}

// Source reads what a replay document is built from.
type Source interface {
	GetGame(ctx context.Context, id string) (*model.Game, error)
	GetAllFleets(ctx context.Context, gameID string) (map[string][]model.Ship, error)
	ListShots(ctx context.Context, gameID string) ([]model.Shot, error)
}

// Document is the uploaded record of a finished game.
type Document struct {
	Game       *model.Game             `json:"game"`
	Fleets     map[string][]model.Ship `json:"fleets"`
	Shots      []model.Shot            `json:"shots"`
	CapturedAt time.Time               `json:"captured_at"`
}

// RenderJob is announced once the document is stored.
type RenderJob struct {
	GameID string `json:"game_id"`
	Winner string `json:"winner"`
	Key    string `json:"key"`
	URL    string `json:"url"`
}

type Capturer struct {
	src       Source
	uploader  Uploader
	publisher Publisher
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

var _ game.ReplaySink = (*Capturer)(nil)

// NewCapturer returns a sink uploading through uploader. A nil publisher
// skips the render announcement.
func NewCapturer(src Source, uploader Uploader, publisher Publisher, cfg Config, logger *zap.Logger) *Capturer {
	if cfg.Subject == "" {
		cfg.Subject = defaultSubject
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Capturer{
		src:       src,
		uploader:  uploader,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (c *Capturer) key(g *model.Game) string {
	name := g.ID
	if g.Slug != "" {
		name = g.Slug + "-" + g.ID
	}
	return strings.TrimPrefix(c.cfg.KeyPrefix+"/replays/"+name+".json", "/")
}

func (c *Capturer) CaptureFinishedGame(ctx context.Context, gameID string) error {
	g, err := c.src.GetGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load game: %w", err)
	}
	if g.Status != model.StatusFinished || g.Winner == nil {
		return fmt.Errorf("game %s is %s, not finished", gameID, g.Status)
	}
	fleets, err := c.src.GetAllFleets(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load fleets: %w", err)
	}
	shots, err := c.src.ListShots(ctx, gameID)
	if err != nil {
		return fmt.Errorf("load shots: %w", err)
	}

	body, err := json.Marshal(Document{Game: g, Fleets: fleets, Shots: shots, CapturedAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode replay: %w", err)
	}
	key := c.key(g)
	_, err = c.uploader.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload replay: %w", err)
	}
	c.logger.Info("replay uploaded", zap.String("game_id", gameID), zap.String("key", key))

	if c.publisher == nil {
		return nil
	}
	job, err := json.Marshal(RenderJob{GameID: gameID, Winner: *g.Winner, Key: key, URL: c.cfg.baseURL() + "/" + key})
	if err != nil {
		return fmt.Errorf("encode render job: %w", err)
	}
	if err := c.publisher.Publish(c.cfg.Subject, job); err != nil {
		return fmt.Errorf("publish render job: %w", err)
	}
	return nil
}

// Stores joins the three engine stores into a Source.
type Stores struct {
	Games  game.GameStore
	Fleets game.FleetStore
	Shots  game.ShotStore
}

func (s Stores) GetGame(ctx context.Context, id string) (*model.Game, error) {
	return s.Games.GetGame(ctx, id)
}

func (s Stores) GetAllFleets(ctx context.Context, gameID string) (map[string][]model.Ship, error) {
	return s.Fleets.GetAllFleets(ctx, gameID)
}

func (s Stores) ListShots(ctx context.Context, gameID string) ([]model.Shot, error) {
	return s.Shots.ListShots(ctx, gameID)
}
