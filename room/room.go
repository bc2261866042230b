package room

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/COAOX/zecrey_battleship/game"
	"github.com/COAOX/zecrey_battleship/model"
	"github.com/topfreegames/pitaya/v2"
	"github.com/topfreegames/pitaya/v2/component"
	"github.com/topfreegames/pitaya/v2/constants"
	"github.com/topfreegames/pitaya/v2/session"
	"go.uber.org/zap"
)

const roomComponentName = "room"

// Room is the pitaya component serving game rooms over the websocket.
type Room struct {
	component.Base
	app    pitaya.Pitaya
	svc    *game.Service
	bc     *Broadcaster
	logger *zap.Logger
}

func RegisterRoom(app pitaya.Pitaya, svc *game.Service, bc *Broadcaster) *Room {
	r := newRoom(app, svc, bc)
	app.Register(r,
		component.WithName(roomComponentName),
		component.WithNameFunc(strings.ToLower),
	)
	return r
}

func newRoom(app pitaya.Pitaya, svc *game.Service, bc *Broadcaster) *Room {
	return &Room{
		app:    app,
		svc:    svc,
		bc:     bc,
		logger: zap.L().Named("room"),
	}
}

// JoinRequest attaches the connection to a game. An empty player joins as observer.
type JoinRequest struct {
	GameID string `json:"game_id"`
	Player string `json:"player"`
}

type JoinResponse struct {
	Code   int         `json:"code"`
	Result string      `json:"result"`
	Member Member      `json:"member"`
	State  interface{} `json:"state"`
}

type StateRequest struct {
	GameID string `json:"game_id"`
}

type StateResponse struct {
	Code   int         `json:"code"`
	Result string      `json:"result"`
	State  interface{} `json:"state"`
}

type PlaceFleetRequest struct {
	GameID string       `json:"game_id"`
	Ships  []model.Ship `json:"ships"`
}

type PlaceFleetResponse struct {
	Code   int          `json:"code"`
	Result string       `json:"result"`
	Fleet  []model.Ship `json:"fleet"`
}

// FireRequest leaves X and Y nil when the client omitted them.
type FireRequest struct {
	GameID string `json:"game_id"`
	X      *int   `json:"x"`
	Y      *int   `json:"y"`
}

type FireResponse struct {
	Code   int         `json:"code"`
	Result string      `json:"result"`
	Shot   *model.Shot `json:"shot"`
}

// Presence is pushed to a room when a connection joins or leaves it.
type Presence struct {
	GameID   string    `json:"game_id"`
	Player   string    `json:"player,omitempty"`
	Observer bool      `json:"observer"`
	At       time.Time `json:"at"`
}

// ErrorPush mirrors a rejected action to the connection that sent it.
type ErrorPush struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JoinRoom binds the session and attaches it to the requested game room.
func (r *Room) JoinRoom(ctx context.Context, req *JoinRequest) (*JoinResponse, error) {
	s := r.app.GetSessionFromCtx(ctx)
	uid, err := r.bind(ctx, s)
	if err != nil {
		return nil, err
	}

	m, state, err := r.join(ctx, uid, req)
	if err != nil {
		return nil, r.reject(s, err)
	}

	// on session close, leave the room
	s.OnClose(func() {
		r.leave(context.Background(), uid)
	})
	return &JoinResponse{Result: "success", Member: m, State: state}, nil
}

func (r *Room) LeaveRoom(ctx context.Context, msg []byte) (*StateResponse, error) {
	s := r.app.GetSessionFromCtx(ctx)
	if s.UID() != "" {
		r.leave(ctx, s.UID())
	}
	return &StateResponse{Result: "success"}, nil
}

// RequestState replies with the caller's view of the game it is attached to.
func (r *Room) RequestState(ctx context.Context, req *StateRequest) (*StateResponse, error) {
	s := r.app.GetSessionFromCtx(ctx)
	state, err := r.state(ctx, s.UID(), req.GameID)
	if err != nil {
		return nil, r.reject(s, err)
	}
	return &StateResponse{Result: "success", State: state}, nil
}

func (r *Room) PlaceFleet(ctx context.Context, req *PlaceFleetRequest) (*PlaceFleetResponse, error) {
	s := r.app.GetSessionFromCtx(ctx)
	fleet, err := r.placeFleet(ctx, s.UID(), req)
	if err != nil {
		return nil, r.reject(s, err)
	}
	return &PlaceFleetResponse{Result: "success", Fleet: fleet}, nil
}

func (r *Room) Fire(ctx context.Context, req *FireRequest) (*FireResponse, error) {
	s := r.app.GetSessionFromCtx(ctx)
	shot, err := r.fire(ctx, s.UID(), req)
	if err != nil {
		return nil, r.reject(s, err)
	}
	return &FireResponse{Result: "success", Shot: shot}, nil
}

func (r *Room) bind(ctx context.Context, s session.Session) (string, error) {
	if s.UID() != "" {
		return s.UID(), nil
	}
	uid := strconv.FormatInt(s.ID(), 10)
	if err := s.Bind(ctx, uid); err != nil && err != constants.ErrSessionAlreadyBound {
		return "", pitaya.Error(err, "RH-000", map[string]string{"failed": "bind"})
	}
	return s.UID(), nil
}

func (r *Room) join(ctx context.Context, uid string, req *JoinRequest) (Member, interface{}, error) {
	g, err := r.svc.GetGame(ctx, req.GameID)
	if err != nil {
		return Member{}, nil, err
	}
	player := strings.TrimSpace(req.Player)
	if player != "" && !g.HasPlayer(player) {
		return Member{}, nil, game.ErrNotParticipant
	}

	m := Member{UID: uid, GameID: g.ID, Player: player, Observer: player == ""}
	if err := r.bc.Attach(ctx, m); err != nil {
		return Member{}, nil, err
	}
	r.logger.Info("joined room", zap.String("game_id", g.ID), zap.String("uid", uid), zap.String("player", player))

	presence := Presence{GameID: g.ID, Player: player, Observer: m.Observer, At: time.Now()}
	if err := r.bc.PushToRoom(ctx, g.ID, game.RouteConnect, presence); err != nil {
		r.logger.Warn("push connect failed", zap.String("game_id", g.ID), zap.Error(err))
	}

	state, err := r.svc.View(ctx, g.ID, player)
	if err != nil {
		return m, nil, err
	}
	route := game.RouteStateUpdate
	if m.Observer {
		route = game.RouteSpectate
	}
	if err := r.bc.PushToUID(ctx, g.ID, uid, route, state); err != nil {
		r.logger.Warn("push joined state failed", zap.String("game_id", g.ID), zap.Error(err))
	}
	return m, state, nil
}

func (r *Room) leave(ctx context.Context, uid string) {
	m, ok := r.bc.Detach(ctx, uid)
	if !ok {
		return
	}
	r.logger.Info("left room", zap.String("game_id", m.GameID), zap.String("uid", uid))
	presence := Presence{GameID: m.GameID, Player: m.Player, Observer: m.Observer, At: time.Now()}
	if err := r.bc.PushToRoom(ctx, m.GameID, game.RouteDisconnect, presence); err != nil {
		r.logger.Warn("push disconnect failed", zap.String("game_id", m.GameID), zap.Error(err))
	}
}

func (r *Room) state(ctx context.Context, uid, gameID string) (interface{}, error) {
	m, ok := r.bc.Registry().Lookup(uid)
	if !ok || m.GameID != gameID {
		return nil, game.ErrNotParticipant
	}
	return r.svc.View(ctx, gameID, m.Player)
}

func (r *Room) placeFleet(ctx context.Context, uid string, req *PlaceFleetRequest) ([]model.Ship, error) {
	m, err := r.bc.Registry().Authorize(uid, req.GameID, "")
	if err != nil {
		return nil, err
	}
	return r.svc.SubmitFleet(ctx, req.GameID, m.Player, req.Ships)
}

func (r *Room) fire(ctx context.Context, uid string, req *FireRequest) (*model.Shot, error) {
	m, err := r.bc.Registry().Authorize(uid, req.GameID, "")
	if err != nil {
		return nil, err
	}
	if req.X == nil || req.Y == nil {
		return nil, &game.Error{Code: game.CodeInvalidInput, Message: "x and y are required"}
	}
	return r.svc.FireShot(ctx, req.GameID, m.Player, *req.X, *req.Y)
}

// reject mirrors err to the session on onError and converts it to a pitaya error.
func (r *Room) reject(s session.Session, err error) error {
	code := game.CodeOf(err)
	if code == game.CodeInternal {
		r.logger.Error("room action failed", zap.String("uid", s.UID()), zap.Error(err))
	}
	if perr := s.Push(game.RouteError, ErrorPush{Code: string(code), Message: err.Error()}); perr != nil {
		r.logger.Debug("push error failed", zap.String("uid", s.UID()), zap.Error(perr))
	}
	return rpcError(err)
}

func rpcError(err error) error {
	code := game.CodeOf(err)
	msg := err.Error()
	if code == game.CodeInternal {
		msg = "internal error"
	}
	return pitaya.Error(err, string(code), map[string]string{"message": msg})
}
