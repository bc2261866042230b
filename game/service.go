package game

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/COAOX/zecrey_battleship/model"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const defaultFinishTimeout = 30 * time.Second

type Deps struct {
	Games       GameStore
	Fleets      FleetStore
	Shots       ShotStore
	Stats       PlayerStatsSink
	Replay      ReplaySink
	Broadcaster Broadcaster
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithFinishTimeout bounds the stats and replay hooks run after a win.
func WithFinishTimeout(d time.Duration) Option {
	return func(s *Service) { s.finishTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// Service is the game session state machine. Every mutating command on a game
// runs inside that game's lane; commands on different games run in parallel.
type Service struct {
	games  GameStore
	fleets FleetStore
	shots  ShotStore
	stats  PlayerStatsSink
	replay ReplaySink
	bc     Broadcaster

	logger        *zap.Logger
	lanes         *lanes
	seq           atomic.Uint64
	finishTimeout time.Duration
	finishing     sync.WaitGroup
	now           func() time.Time
	newID         func() string
}

func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		games:         deps.Games,
		fleets:        deps.Fleets,
		shots:         deps.Shots,
		stats:         deps.Stats,
		replay:        deps.Replay,
		bc:            deps.Broadcaster,
		logger:        zap.L(),
		finishTimeout: defaultFinishTimeout,
		now:           time.Now,
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.stats == nil {
		s.stats = nopStats{}
	}
	if s.replay == nil {
		s.replay = nopReplay{}
	}
	if s.bc == nil {
		s.bc = nopBroadcaster{}
	}
	s.lanes = newLanes(s.now)
	return s
}

// SetBroadcaster replaces the broadcaster. The room layer needs the service to
// exist before its broadcaster can be built; call this before serving traffic.
func (s *Service) SetBroadcaster(bc Broadcaster) {
	s.bc = bc
}

func (s *Service) withLane(gameID string, fn func() error) error {
	ln := s.lanes.acquire(gameID)
	defer s.lanes.release(ln)
	return fn()
}

func (s *Service) CreateGame(ctx context.Context, creator, roomName string) (*model.Game, error) {
	creator = strings.TrimSpace(creator)
	if creator == "" {
		return nil, newError(CodeInvalidInput, "creator name is required")
	}
	roomName = strings.TrimSpace(roomName)
	if roomName == "" {
		roomName = creator
	}

	now := s.now()
	g := &model.Game{
		ID:        s.newID(),
		Name:      roomName,
		Slug:      slug.Make(roomName),
		Player1:   creator,
		Status:    model.StatusWaitingForPlayer,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.games.CreateGame(ctx, g); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	s.logger.Info("game created", zap.String("game_id", g.ID), zap.String("creator", creator))
	return g, nil
}

func (s *Service) JoinGame(ctx context.Context, gameID, joiner string) (*model.Game, error) {
	joiner = strings.TrimSpace(joiner)
	if joiner == "" {
		return nil, newError(CodeInvalidInput, "player name is required")
	}

	var joined *model.Game
	err := s.withLane(gameID, func() error {
		g, err := s.games.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.Player2 != nil || g.Status != model.StatusWaitingForPlayer {
			return ErrGameFull
		}
		if g.Player1 == joiner {
			return newError(CodeGameFull, "%s already holds the first seat", joiner)
		}
		if err := s.games.JoinGame(ctx, gameID, joiner); err != nil {
			return fmt.Errorf("join game: %w", err)
		}

		g.Player2 = &joiner
		first := g.Player1
		g.CurrentTurn = &first
		g.Status = model.StatusShipsSetup
		joined = g

		s.logger.Info("player joined", zap.String("game_id", gameID), zap.String("player", joiner))
		s.broadcast(ctx, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return joined, nil
}

func (s *Service) ListGames(ctx context.Context) ([]model.Game, error) {
	games, err := s.games.ListGames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return games, nil
}

// GetGame reads inside the lane, so a shot in flight is seen either fully
// applied or not at all.
func (s *Service) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	var g *model.Game
	err := s.withLane(gameID, func() error {
		var err error
		g, err = s.games.GetGame(ctx, gameID)
		return err
	})
	return g, err
}

// SubmitFleet validates and stores player's fleet. Once both players have a
// fleet the game moves to IN_PROGRESS.
func (s *Service) SubmitFleet(ctx context.Context, gameID, player string, ships []model.Ship) ([]model.Ship, error) {
	var fleet []model.Ship
	err := s.withLane(gameID, func() error {
		g, err := s.games.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if !g.HasPlayer(player) {
			return ErrNotParticipant
		}

		validated, err := ValidateFleet(gameID, player, ships)
		if err != nil {
			return err
		}

		existing, err := s.fleets.GetFleet(ctx, gameID, player)
		if err != nil {
			return fmt.Errorf("get fleet: %w", err)
		}
		if len(existing) > 0 {
			if err := s.reconcileSetup(ctx, g); err != nil {
				s.logger.Warn("reconcile setup failed", zap.String("game_id", gameID), zap.Error(err))
			}
			return ErrAlreadyPlaced
		}
		if g.Status != model.StatusWaitingForPlayer && g.Status != model.StatusShipsSetup {
			return wrongPhase(g.Status)
		}

		if err := s.fleets.SaveFleet(ctx, gameID, player, validated); err != nil {
			if IsRejection(err) {
				return err
			}
			return fmt.Errorf("save fleet: %w", err)
		}
		fleet = validated
		s.logger.Info("fleet placed", zap.String("game_id", gameID), zap.String("player", player))

		// The fleet is committed. A failed promotion is retried by the next
		// action on this game, so it is not reported as a failed submission.
		if err := s.reconcileSetup(ctx, g); err != nil {
			s.logger.Error("promote game failed", zap.String("game_id", gameID), zap.Error(err))
		}
		s.broadcast(ctx, g)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fleet, nil
}

// reconcileSetup moves a SHIPS_SETUP game whose two fleets are stored to IN_PROGRESS.
func (s *Service) reconcileSetup(ctx context.Context, g *model.Game) error {
	if g.Status != model.StatusShipsSetup {
		return nil
	}
	fleets, err := s.fleets.GetAllFleets(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("get fleets: %w", err)
	}
	for _, p := range g.Players() {
		if len(fleets[p]) == 0 {
			return nil
		}
	}
	if len(g.Players()) < 2 {
		return nil
	}
	if err := s.games.UpdateStatus(ctx, g.ID, model.StatusInProgress, ""); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	g.Status = model.StatusInProgress
	s.logger.Info("battle started", zap.String("game_id", g.ID))
	return nil
}

// GetFleet returns owner's fleet as requester may see it: in full for their
// own fleet or once the game is finished, otherwise only the ships requester
// has already sunk. An empty owner means the requester.
func (s *Service) GetFleet(ctx context.Context, gameID, requester, owner string) ([]model.Ship, error) {
	if owner == "" {
		owner = requester
	}
	var fleet []model.Ship
	err := s.withLane(gameID, func() error {
		var err error
		fleet, err = s.visibleFleet(ctx, gameID, requester, owner)
		return err
	})
	if err != nil {
		return nil, err
	}
	return fleet, nil
}

func (s *Service) visibleFleet(ctx context.Context, gameID, requester, owner string) ([]model.Ship, error) {
	g, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !g.HasPlayer(owner) {
		return nil, ErrNotParticipant
	}
	fleet, err := s.fleets.GetFleet(ctx, gameID, owner)
	if err != nil {
		return nil, fmt.Errorf("get fleet: %w", err)
	}
	if owner == requester || g.Status == model.StatusFinished {
		return fleet, nil
	}

	shots, err := s.shots.ListShots(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list shots: %w", err)
	}
	sunk := SunkShips(requester, fleet, shots)
	if sunk == nil {
		sunk = []model.Ship{}
	}
	return sunk, nil
}

// FireShot resolves player's shot at (x, y), flips the turn or finishes the game.
func (s *Service) FireShot(ctx context.Context, gameID, player string, x, y int) (*model.Shot, error) {
	var fired *model.Shot
	err := s.withLane(gameID, func() error {
		g, err := s.games.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if err := s.reconcileSetup(ctx, g); err != nil {
			return err
		}
		if g.Status != model.StatusInProgress {
			return wrongPhase(g.Status)
		}
		if !g.IsTurn(player) {
			return ErrNotYourTurn
		}
		target := model.Cell{X: x, Y: y}
		if !model.InBounds(target) {
			return newError(CodeOutOfBounds, "target %s is outside the board", target)
		}

		opponent := g.Opponent(player)
		if opponent == "" {
			return ErrNoOpponent
		}
		opponentFleet, err := s.fleets.GetFleet(ctx, gameID, opponent)
		if err != nil {
			return fmt.Errorf("get fleet: %w", err)
		}
		if len(opponentFleet) == 0 {
			return newError(CodeNoOpponent, "%s has no fleet", opponent)
		}
		shots, err := s.shots.ListShots(ctx, gameID)
		if err != nil {
			return fmt.Errorf("list shots: %w", err)
		}

		out := ResolveShot(player, target, opponentFleet, shots)
		shot := &model.Shot{
			GameID:    gameID,
			Player:    player,
			X:         x,
			Y:         y,
			Result:    out.Result,
			CreatedAt: s.now(),
		}

		// The game row goes first: a shot is never deleted, a turn can be restored.
		if out.Won {
			err = s.games.UpdateStatus(ctx, gameID, model.StatusFinished, player)
		} else {
			err = s.games.UpdateTurn(ctx, gameID, opponent)
		}
		if err != nil {
			return fmt.Errorf("update game: %w", err)
		}

		if err := s.recordShot(ctx, shot, out.Reclassify); err != nil {
			s.restore(ctx, g, out.Won)
			return fmt.Errorf("record shot: %w", err)
		}
		fired = shot

		if out.Won {
			g.Status = model.StatusFinished
			g.Winner = &player
		} else {
			g.CurrentTurn = &opponent
		}
		s.logger.Debug("shot fired",
			zap.String("game_id", gameID),
			zap.String("player", player),
			zap.Int64("shot_id", shot.ID),
			zap.String("result", string(shot.Result)),
		)

		s.broadcast(ctx, g)
		if out.Won {
			s.logger.Info("game finished", zap.String("game_id", gameID), zap.String("winner", player))
			if err := s.bc.PushToRoom(ctx, gameID, RouteGameFinished, GameFinished{GameID: gameID, Winner: player}); err != nil {
				s.logger.Warn("push game finished failed", zap.String("game_id", gameID), zap.Error(err))
			}
			s.finish(gameID, g.Players(), player)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fired, nil
}

func (s *Service) recordShot(ctx context.Context, shot *model.Shot, sunk []int64) error {
	if a, ok := s.shots.(ShotApplier); ok {
		return a.ApplyShot(ctx, shot, sunk)
	}
	if err := s.shots.AppendShot(ctx, shot); err != nil {
		return err
	}
	for _, id := range sunk {
		if err := s.shots.RewriteShotResult(ctx, shot.GameID, id, model.Sunk); err != nil {
			return err
		}
	}
	return nil
}

// restore undoes the game row update of a shot that could not be recorded.
func (s *Service) restore(ctx context.Context, g *model.Game, won bool) {
	var err error
	if won {
		err = s.games.UpdateStatus(ctx, g.ID, model.StatusInProgress, "")
	} else if g.CurrentTurn != nil {
		err = s.games.UpdateTurn(ctx, g.ID, *g.CurrentTurn)
	}
	if err != nil {
		s.logger.Error("restore game after failed shot", zap.String("game_id", g.ID), zap.Error(err))
	}
}

// finish runs the post-game hooks detached from the request. Their failures
// are logged and never touch the committed result.
func (s *Service) finish(gameID string, players []string, winner string) {
	s.finishing.Add(1)
	go func() {
		defer s.finishing.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("finish hook panicked", zap.String("game_id", gameID), zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), s.finishTimeout)
		defer cancel()

		for _, p := range players {
			if err := s.stats.IncrementGamesPlayed(ctx, p); err != nil {
				s.logger.Error("increment games played", zap.String("player", p), zap.Error(err))
			}
		}
		if err := s.stats.IncrementWins(ctx, winner); err != nil {
			s.logger.Error("increment wins", zap.String("player", winner), zap.Error(err))
		}
		if err := s.replay.CaptureFinishedGame(ctx, gameID); err != nil {
			s.logger.Error("capture replay", zap.String("game_id", gameID), zap.Error(err))
		}
	}()
}

// Drain waits for post-game hooks still running.
func (s *Service) Drain() {
	s.finishing.Wait()
}

func (s *Service) ListShots(ctx context.Context, gameID string) ([]model.Shot, error) {
	var shots []model.Shot
	err := s.withLane(gameID, func() error {
		if _, err := s.games.GetGame(ctx, gameID); err != nil {
			return err
		}
		var err error
		if shots, err = s.shots.ListShots(ctx, gameID); err != nil {
			return fmt.Errorf("list shots: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return shots, nil
}

// PlayerView builds the filtered projection for a participant.
func (s *Service) PlayerView(ctx context.Context, gameID, player string) (*PlayerView, error) {
	var v *PlayerView
	err := s.withLane(gameID, func() error {
		var err error
		v, err = s.playerView(ctx, gameID, player)
		return err
	})
	return v, err
}

func (s *Service) playerView(ctx context.Context, gameID, player string) (*PlayerView, error) {
	seq := s.seq.Load()
	g, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !g.HasPlayer(player) {
		return nil, ErrNotParticipant
	}
	fleet, err := s.fleets.GetFleet(ctx, gameID, player)
	if err != nil {
		return nil, fmt.Errorf("get fleet: %w", err)
	}
	shots, err := s.shots.ListShots(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list shots: %w", err)
	}
	return buildPlayerView(seq, g, player, map[string][]model.Ship{player: fleet}, shots), nil
}

// View returns the PlayerView for a participant and the SpectatorView for anyone else.
func (s *Service) View(ctx context.Context, gameID, viewer string) (Sequenced, error) {
	var view Sequenced
	err := s.withLane(gameID, func() error {
		g, err := s.games.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if viewer != "" && g.HasPlayer(viewer) {
			v, err := s.playerView(ctx, gameID, viewer)
			if err != nil {
				return err
			}
			view = v
			return nil
		}
		v, err := s.spectatorView(ctx, gameID)
		if err != nil {
			return err
		}
		view = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) SpectatorView(ctx context.Context, gameID string) (*SpectatorView, error) {
	var v *SpectatorView
	err := s.withLane(gameID, func() error {
		var err error
		v, err = s.spectatorView(ctx, gameID)
		return err
	})
	return v, err
}

func (s *Service) spectatorView(ctx context.Context, gameID string) (*SpectatorView, error) {
	seq := s.seq.Load()
	g, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	shots, err := s.shots.ListShots(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list shots: %w", err)
	}
	return buildSpectatorView(seq, g, shots), nil
}

// broadcast pushes the state after a mutation. It runs inside the lane, so
// pushes of one game leave in mutation order. Failures are logged: the stored
// state stays authoritative and clients can request it again.
func (s *Service) broadcast(ctx context.Context, g *model.Game) {
	seq := s.seq.Add(1)

	fleets, err := s.fleets.GetAllFleets(ctx, g.ID)
	if err != nil {
		s.logger.Warn("broadcast: load fleets", zap.String("game_id", g.ID), zap.Error(err))
		return
	}
	shots, err := s.shots.ListShots(ctx, g.ID)
	if err != nil {
		s.logger.Warn("broadcast: load shots", zap.String("game_id", g.ID), zap.Error(err))
		return
	}

	for _, p := range g.Players() {
		view := buildPlayerView(seq, g.Clone(), p, fleets, shots)
		if err := s.bc.PushToPlayer(ctx, g.ID, p, RouteStateUpdate, view); err != nil {
			s.logger.Warn("push state failed", zap.String("game_id", g.ID), zap.String("player", p), zap.Error(err))
		}
	}
	if err := s.bc.PushToObservers(ctx, g.ID, RouteSpectate, buildSpectatorView(seq, g.Clone(), shots)); err != nil {
		s.logger.Warn("push spectate failed", zap.String("game_id", g.ID), zap.Error(err))
	}
}

// PruneLanes forgets lanes idle for at least idle and returns how many were dropped.
func (s *Service) PruneLanes(idle time.Duration) int {
	return s.lanes.prune(idle)
}

// ActiveLanes returns how many games currently have a lane.
func (s *Service) ActiveLanes() int {
	return s.lanes.len()
}
