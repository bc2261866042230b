package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/COAOX/zecrey_battleship/game"
	"github.com/COAOX/zecrey_battleship/room"
	"github.com/topfreegames/pitaya/v2"
	"github.com/topfreegames/pitaya/v2/component"
	"go.uber.org/zap"
)

const (
	chatComponentName = "chat"

	maxContentLength = 500
)

// Room relays chat lines between the connections of a game room. Messages are
// not stored.
type Room struct {
	component.Base
	app pitaya.Pitaya
	bc  *room.Broadcaster
	now func() time.Time
}

func RegisterRoom(app pitaya.Pitaya, bc *room.Broadcaster) {
	app.Register(&Room{
		app: app,
		bc:  bc,
		now: time.Now,
	},
		component.WithName(chatComponentName),
		component.WithNameFunc(strings.ToLower),
	)
}

type UserMessage struct {
	GameID  string `json:"game_id"`
	Content string `json:"content"`
}

// Message is what the room receives on onMessage.
type Message struct {
	GameID  string    `json:"game_id"`
	Player  string    `json:"player,omitempty"`
	UID     string    `json:"uid"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

type MessageResponse struct {
	Code   int    `json:"code"`
	Result string `json:"result"`
}

// Message sync last message to all members
func (r *Room) Message(ctx context.Context, msg *UserMessage) (*MessageResponse, error) {
	s := r.app.GetSessionFromCtx(ctx)
	if err := r.relay(ctx, s.UID(), msg); err != nil {
		return nil, pitaya.Error(err, string(game.CodeOf(err)), map[string]string{"message": err.Error()})
	}
	return &MessageResponse{
		Result: "success",
	}, nil
}

func (r *Room) relay(ctx context.Context, uid string, msg *UserMessage) error {
	m, ok := r.bc.Registry().Lookup(uid)
	if !ok || m.GameID != msg.GameID {
		return game.ErrNotParticipant
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" || utf8.RuneCountInString(content) > maxContentLength {
		return &game.Error{Code: game.CodeInvalidInput, Message: "message must be 1 to 500 characters"}
	}

	err := r.bc.PushToRoom(ctx, m.GameID, game.RouteMessage, Message{
		GameID:  m.GameID,
		Player:  m.Player,
		UID:     uid,
		Content: content,
		SentAt:  r.now(),
	})
	if err != nil {
		zap.L().Error("broadcast message failed", zap.String("game_id", m.GameID), zap.Error(err))
	}
	return nil
}
