package game_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/COAOX/zecrey_battleship/game"
	"github.com/COAOX/zecrey_battleship/memstore"
	"github.com/COAOX/zecrey_battleship/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type push struct {
	GameID string
	Player string
	Route  string
	Value  interface{}
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	pushes []push
}

func (b *recordingBroadcaster) PushToPlayer(_ context.Context, gameID, player, route string, v interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushes = append(b.pushes, push{GameID: gameID, Player: player, Route: route, Value: v})
	return nil
}

func (b *recordingBroadcaster) PushToRoom(_ context.Context, gameID, route string, v interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pushes = append(b.pushes, push{GameID: gameID, Route: route, Value: v})
	return nil
}

func (b *recordingBroadcaster) PushToObservers(_ context.Context, gameID, route string, v interface{}) error {
	return b.PushToRoom(context.Background(), gameID, route, v)
}

func (b *recordingBroadcaster) views(player string) []*game.PlayerView {
	b.mu.Lock()
	defer b.mu.Unlock()
	var views []*game.PlayerView
	for _, p := range b.pushes {
		if v, ok := p.Value.(*game.PlayerView); ok && p.Player == player {
			views = append(views, v)
		}
	}
	return views
}

func (b *recordingBroadcaster) routes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var routes []string
	for _, p := range b.pushes {
		routes = append(routes, p.Route)
	}
	return routes
}

type recordingReplay struct {
	mu    sync.Mutex
	games []string
	err   error
}

func (r *recordingReplay) CaptureFinishedGame(_ context.Context, gameID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.games = append(r.games, gameID)
	return r.err
}

type failingStats struct{}

func (failingStats) IncrementGamesPlayed(context.Context, string) error {
	return errors.New("stats unavailable")
}
func (failingStats) IncrementWins(context.Context, string) error { return errors.New("stats unavailable") }

type fixture struct {
	svc    *game.Service
	store  *memstore.Store
	bc     *recordingBroadcaster
	replay *recordingReplay
}

func newFixture(t *testing.T, opts ...func(*game.Deps)) *fixture {
	t.Helper()
	f := &fixture{
		store:  memstore.New(),
		bc:     &recordingBroadcaster{},
		replay: &recordingReplay{},
	}
	deps := game.Deps{
		Games:       f.store,
		Fleets:      f.store,
		Shots:       f.store,
		Stats:       f.store,
		Replay:      f.replay,
		Broadcaster: f.bc,
	}
	for _, o := range opts {
		o(&deps)
	}
	f.svc = game.NewService(deps, game.WithLogger(zap.NewNop()), game.WithFinishTimeout(time.Second))
	return f
}

// battle creates a game between alice and bob with both fleets placed.
func (f *fixture) battle(t *testing.T) *model.Game {
	t.Helper()
	ctx := context.Background()
	g, err := f.svc.CreateGame(ctx, "alice", "Harbor Fight")
	require.NoError(t, err)
	_, err = f.svc.JoinGame(ctx, g.ID, "bob")
	require.NoError(t, err)
	_, err = f.svc.SubmitFleet(ctx, g.ID, "alice", standardFleet())
	require.NoError(t, err)
	_, err = f.svc.SubmitFleet(ctx, g.ID, "bob", verticalFleet())
	require.NoError(t, err)
	g, err = f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusInProgress, g.Status)
	return g
}

func (f *fixture) fire(t *testing.T, gameID, player string, x, y int) *model.Shot {
	t.Helper()
	shot, err := f.svc.FireShot(context.Background(), gameID, player, x, y)
	require.NoError(t, err)
	return shot
}

func TestService_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.svc.CreateGame(ctx, "alice", "Harbor Fight")
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "harbor-fight", g.Slug)
	assert.Equal(t, model.StatusWaitingForPlayer, g.Status)
	assert.Nil(t, g.Player2)
	assert.Nil(t, g.CurrentTurn)
	assert.Nil(t, g.Winner)

	g, err = f.svc.JoinGame(ctx, g.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipsSetup, g.Status)
	require.NotNil(t, g.Player2)
	assert.Equal(t, "bob", *g.Player2)
	require.NotNil(t, g.CurrentTurn)
	assert.Equal(t, "alice", *g.CurrentTurn)

	_, err = f.svc.JoinGame(ctx, g.ID, "carol")
	assert.ErrorIs(t, err, game.ErrGameFull)

	_, err = f.svc.SubmitFleet(ctx, g.ID, "alice", standardFleet())
	require.NoError(t, err)
	g, err = f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusShipsSetup, g.Status)

	_, err = f.svc.SubmitFleet(ctx, g.ID, "alice", verticalFleet())
	assert.ErrorIs(t, err, game.ErrAlreadyPlaced)

	_, err = f.svc.SubmitFleet(ctx, g.ID, "bob", verticalFleet())
	require.NoError(t, err)
	g, err = f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, g.Status)

	games, err := f.svc.ListGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, g.ID, games[0].ID)
}

func TestService_JoinErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.JoinGame(ctx, "missing", "bob")
	assert.ErrorIs(t, err, game.ErrNotFound)

	g, err := f.svc.CreateGame(ctx, "alice", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", g.Name)

	_, err = f.svc.JoinGame(ctx, g.ID, "alice")
	assert.Equal(t, game.CodeGameFull, game.CodeOf(err))

	_, err = f.svc.JoinGame(ctx, g.ID, "  ")
	assert.Equal(t, game.CodeInvalidInput, game.CodeOf(err))

	_, err = f.svc.CreateGame(ctx, "", "room")
	assert.Equal(t, game.CodeInvalidInput, game.CodeOf(err))
}

func TestService_SubmitFleetErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitFleet(ctx, "missing", "alice", standardFleet())
	assert.ErrorIs(t, err, game.ErrNotFound)

	g, err := f.svc.CreateGame(ctx, "alice", "room")
	require.NoError(t, err)

	_, err = f.svc.SubmitFleet(ctx, g.ID, "mallory", standardFleet())
	assert.ErrorIs(t, err, game.ErrNotParticipant)

	bad := standardFleet()
	bad[1].Type = model.Carrier
	_, err = f.svc.SubmitFleet(ctx, g.ID, "alice", bad)
	assert.ErrorIs(t, err, game.ErrInvalidComposition)

	// the creator may place before the second seat is filled
	_, err = f.svc.SubmitFleet(ctx, g.ID, "alice", standardFleet())
	require.NoError(t, err)
	g, err = f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusWaitingForPlayer, g.Status)

	// validation runs before the already-placed check
	_, err = f.svc.SubmitFleet(ctx, g.ID, "alice", bad)
	assert.ErrorIs(t, err, game.ErrInvalidComposition)

	_, err = f.svc.JoinGame(ctx, g.ID, "bob")
	require.NoError(t, err)
	_, err = f.svc.SubmitFleet(ctx, g.ID, "bob", verticalFleet())
	require.NoError(t, err)
	g, err = f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, g.Status)
}

func TestService_SubmarineSinksRetroactively(t *testing.T) {
	f := newFixture(t)
	g := f.battle(t)

	// bob's submarine at (3,3) vertical covers (3,3) (3,4) (3,5)
	s1 := f.fire(t, g.ID, "alice", 3, 3)
	assert.Equal(t, model.Hit, s1.Result)
	f.fire(t, g.ID, "bob", 9, 9)

	s2 := f.fire(t, g.ID, "alice", 3, 5)
	assert.Equal(t, model.Hit, s2.Result)
	f.fire(t, g.ID, "bob", 9, 8)

	s3 := f.fire(t, g.ID, "alice", 3, 4)
	assert.Equal(t, model.Sunk, s3.Result)

	shots, err := f.svc.ListShots(context.Background(), g.ID)
	require.NoError(t, err)
	require.Len(t, shots, 5)
	byID := make(map[int64]model.Shot)
	for _, s := range shots {
		byID[s.ID] = s
	}
	assert.Equal(t, model.Sunk, byID[s1.ID].Result)
	assert.Equal(t, model.Sunk, byID[s2.ID].Result)
	assert.Equal(t, model.Sunk, byID[s3.ID].Result)
	assert.Equal(t, model.Miss, byID[2].Result)

	// the sunk submarine is now visible to alice, nothing else of bob's fleet is
	revealed, err := f.svc.GetFleet(context.Background(), g.ID, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, revealed, 1)
	assert.Equal(t, model.Submarine, revealed[0].Type)
	assert.Equal(t, 3, revealed[0].X)
}

func TestService_OutOfTurn(t *testing.T) {
	f := newFixture(t)
	g := f.battle(t)
	ctx := context.Background()

	_, err := f.svc.FireShot(ctx, g.ID, "bob", 0, 0)
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	_, err = f.svc.FireShot(ctx, g.ID, "mallory", 0, 0)
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	shots, err := f.svc.ListShots(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, shots)

	after, err := f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	require.NotNil(t, after.CurrentTurn)
	assert.Equal(t, "alice", *after.CurrentTurn)

	_, err = f.svc.FireShot(ctx, g.ID, "alice", 10, 0)
	assert.ErrorIs(t, err, game.ErrOutOfBounds)
}

func TestService_WrongPhase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.FireShot(ctx, "missing", "alice", 0, 0)
	assert.ErrorIs(t, err, game.ErrNotFound)

	g, err := f.svc.CreateGame(ctx, "alice", "room")
	require.NoError(t, err)
	_, err = f.svc.FireShot(ctx, g.ID, "alice", 0, 0)
	assert.ErrorIs(t, err, game.ErrWrongPhase)

	_, err = f.svc.JoinGame(ctx, g.ID, "bob")
	require.NoError(t, err)
	_, err = f.svc.FireShot(ctx, g.ID, "alice", 0, 0)
	assert.ErrorIs(t, err, game.ErrWrongPhase)
}

func TestService_WinFinishesGame(t *testing.T) {
	f := newFixture(t)
	g := f.battle(t)
	ctx := context.Background()

	var targets []model.Cell
	for _, s := range verticalFleet() {
		targets = append(targets, game.ShipCells(s)...)
	}
	// bob fires at the empty odd rows of alice's board
	misses := 0
	for i, c := range targets {
		shot := f.fire(t, g.ID, "alice", c.X, c.Y)
		if i < len(targets)-1 {
			assert.NotEqual(t, model.Miss, shot.Result)
			f.fire(t, g.ID, "bob", misses%10, 1+2*(misses/10))
			misses++
		}
	}

	g, err := f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinished, g.Status)
	require.NotNil(t, g.Winner)
	assert.Equal(t, "alice", *g.Winner)

	_, err = f.svc.FireShot(ctx, g.ID, "bob", 5, 5)
	assert.ErrorIs(t, err, game.ErrWrongPhase)
	_, err = f.svc.FireShot(ctx, g.ID, "alice", 5, 5)
	assert.ErrorIs(t, err, game.ErrWrongPhase)

	shots, err := f.svc.ListShots(ctx, g.ID)
	require.NoError(t, err)
	sunk := 0
	for _, s := range shots {
		if s.Player == "alice" {
			assert.Equal(t, model.Sunk, s.Result)
			sunk++
		}
	}
	assert.Equal(t, 17, sunk)

	f.svc.Drain()
	assert.Equal(t, 1, f.store.Stats("alice").Wins)
	assert.Equal(t, 1, f.store.Stats("alice").GamesPlayed)
	assert.Equal(t, 0, f.store.Stats("bob").Wins)
	assert.Equal(t, 1, f.store.Stats("bob").GamesPlayed)
	assert.Equal(t, []string{g.ID}, f.replay.games)
	assert.Contains(t, f.bc.routes(), game.RouteGameFinished)

	// the full fleet is revealed once the game is over
	fleet, err := f.svc.GetFleet(ctx, g.ID, "bob", "alice")
	require.NoError(t, err)
	assert.Len(t, fleet, 5)
}

func TestService_FinishHookFailuresKeepResult(t *testing.T) {
	replay := &recordingReplay{err: errors.New("bucket gone")}
	f := newFixture(t, func(d *game.Deps) {
		d.Stats = failingStats{}
		d.Replay = replay
	})
	g := f.battle(t)

	var targets []model.Cell
	for _, s := range verticalFleet() {
		targets = append(targets, game.ShipCells(s)...)
	}
	for i, c := range targets {
		f.fire(t, g.ID, "alice", c.X, c.Y)
		if i < len(targets)-1 {
			f.fire(t, g.ID, "bob", i%10, 1+2*(i/10))
		}
	}
	f.svc.Drain()

	g, err := f.svc.GetGame(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFinished, g.Status)
	assert.Equal(t, "alice", *g.Winner)
	assert.Len(t, replay.games, 1)
}

func TestService_FilteredViewHidesOpponentShips(t *testing.T) {
	f := newFixture(t)
	g := f.battle(t)
	ctx := context.Background()

	view, err := f.svc.PlayerView(ctx, g.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "bob", view.Opponent)
	assert.Len(t, view.Fleet, 5)
	assert.Equal(t, 17, view.OwnBoard.Count(model.CellShip))
	assert.Equal(t, 100, view.TargetBoard.Count(model.CellEmpty))

	opponent, err := f.svc.GetFleet(ctx, g.ID, "alice", "bob")
	require.NoError(t, err)
	assert.Empty(t, opponent)

	f.fire(t, g.ID, "alice", 9, 5) // carrier
	f.fire(t, g.ID, "bob", 0, 0)   // carrier
	f.fire(t, g.ID, "alice", 0, 0) // miss

	view, err = f.svc.PlayerView(ctx, g.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, model.CellHit, view.TargetBoard.At(model.Cell{X: 9, Y: 5}))
	assert.Equal(t, model.CellMiss, view.TargetBoard.At(model.Cell{X: 0, Y: 0}))
	assert.Equal(t, 0, view.TargetBoard.Count(model.CellShip))
	assert.Equal(t, model.CellHit, view.OwnBoard.At(model.Cell{X: 0, Y: 0}))

	_, err = f.svc.PlayerView(ctx, g.ID, "mallory")
	assert.ErrorIs(t, err, game.ErrNotParticipant)

	spectator, err := f.svc.SpectatorView(ctx, g.ID)
	require.NoError(t, err)
	for player, board := range spectator.Boards {
		assert.Equal(t, 0, board.Count(model.CellShip), player)
	}
	bobBoard := spectator.Boards["bob"]
	assert.Equal(t, model.CellHit, bobBoard.At(model.Cell{X: 9, Y: 5}))

	// nothing pushed to alice ever carried an unrevealed ship of bob's
	views := f.bc.views("alice")
	require.NotEmpty(t, views)
	for _, v := range views {
		assert.Equal(t, 0, v.TargetBoard.Count(model.CellShip))
		for _, s := range v.Fleet {
			assert.Equal(t, "alice", s.Player)
		}
	}
}

func TestService_BroadcastSequenceIncreases(t *testing.T) {
	f := newFixture(t)
	g := f.battle(t)
	f.fire(t, g.ID, "alice", 0, 0)
	f.fire(t, g.ID, "bob", 0, 0)

	views := f.bc.views("bob")
	require.GreaterOrEqual(t, len(views), 4)
	for i := 1; i < len(views); i++ {
		assert.Greater(t, views[i].Seq, views[i-1].Seq)
	}
}

func TestService_ConcurrentShotsAreSerialized(t *testing.T) {
	f := newFixture(t)
	g := f.battle(t)
	ctx := context.Background()

	// one row never holds a whole fleet, so nobody wins
	var wg sync.WaitGroup
	for _, player := range []string{"alice", "bob"} {
		for x := 0; x < 10; x++ {
			wg.Add(1)
			go func(player string, x int) {
				defer wg.Done()
				for {
					_, err := f.svc.FireShot(ctx, g.ID, player, x, 9)
					if err == nil {
						return
					}
					if !errors.Is(err, game.ErrNotYourTurn) {
						t.Errorf("fire %s %d: %v", player, x, err)
						return
					}
					runtime.Gosched()
				}
			}(player, x)
		}
	}
	wg.Wait()

	shots, err := f.svc.ListShots(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, shots, 20)
	for i, s := range shots {
		assert.Equal(t, int64(i+1), s.ID)
		want := "alice"
		if i%2 == 1 {
			want = "bob"
		}
		assert.Equal(t, want, s.Player, "shot %d", s.ID)
	}
}

func TestService_ParallelGamesDoNotBlockEachOther(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			alice, bob := fmt.Sprintf("alice-%d", i), fmt.Sprintf("bob-%d", i)
			g, err := f.svc.CreateGame(ctx, alice, "room")
			if !assert.NoError(t, err) {
				return
			}
			_, err = f.svc.JoinGame(ctx, g.ID, bob)
			assert.NoError(t, err)
			_, err = f.svc.SubmitFleet(ctx, g.ID, alice, standardFleet())
			assert.NoError(t, err)
			_, err = f.svc.SubmitFleet(ctx, g.ID, bob, verticalFleet())
			assert.NoError(t, err)
			_, err = f.svc.FireShot(ctx, g.ID, alice, 0, 9)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	games, err := f.svc.ListGames(ctx)
	require.NoError(t, err)
	assert.Len(t, games, 8)
	for _, g := range games {
		assert.Equal(t, model.StatusInProgress, g.Status)
	}
}

// brokenShots fails every write while reads keep working.
type brokenShots struct {
	*memstore.Store
}

func (brokenShots) ApplyShot(context.Context, *model.Shot, []int64) error {
	return errors.New("kv unavailable")
}

func TestService_ShotWriteFailureLeavesNoTrace(t *testing.T) {
	store := memstore.New()
	f := newFixture(t, func(d *game.Deps) {
		d.Games, d.Fleets, d.Shots = store, store, brokenShots{store}
	})
	f.store = store
	g := f.battle(t)
	ctx := context.Background()

	_, err := f.svc.FireShot(ctx, g.ID, "alice", 0, 9)
	require.Error(t, err)
	assert.Equal(t, game.CodeInternal, game.CodeOf(err))

	after, err := f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", *after.CurrentTurn)
	assert.Equal(t, model.StatusInProgress, after.Status)
	shots, err := f.svc.ListShots(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, shots)
}

// turnGate lets a test hold FireShot between the game row update and the shot write.
type turnGate struct {
	*memstore.Store
	entered chan struct{}
	release chan struct{}
}

func (g *turnGate) UpdateTurn(ctx context.Context, id, player string) error {
	if err := g.Store.UpdateTurn(ctx, id, player); err != nil {
		return err
	}
	g.entered <- struct{}{}
	<-g.release
	return nil
}

func TestService_ReadsWaitForShotInFlight(t *testing.T) {
	f := newFixture(t)
	g := f.battle(t)
	ctx := context.Background()

	gate := &turnGate{Store: f.store, entered: make(chan struct{}), release: make(chan struct{})}
	gated := newFixture(t, func(d *game.Deps) {
		d.Games, d.Fleets, d.Shots = gate, f.store, f.store
	})

	fired := make(chan error, 1)
	go func() {
		_, err := gated.svc.FireShot(ctx, g.ID, "alice", 0, 9)
		fired <- err
	}()
	<-gate.entered

	type read struct {
		game  *model.Game
		shots []model.Shot
		view  game.Sequenced
	}
	done := make(chan read, 1)
	go func() {
		var r read
		r.game, _ = gated.svc.GetGame(ctx, g.ID)
		r.shots, _ = gated.svc.ListShots(ctx, g.ID)
		r.view, _ = gated.svc.View(ctx, g.ID, "")
		done <- r
	}()

	select {
	case <-done:
		t.Fatal("read returned while the shot was half written")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate.release)
	require.NoError(t, <-fired)
	r := <-done
	require.NotNil(t, r.game)
	assert.Equal(t, "bob", *r.game.CurrentTurn)
	assert.Len(t, r.shots, 1)
	require.IsType(t, &game.SpectatorView{}, r.view)
}

// flakyTurns fails every UpdateTurn after the first n succeed.
type flakyTurns struct {
	*memstore.Store
	mu sync.Mutex
	n  int
}

func (f *flakyTurns) UpdateTurn(ctx context.Context, id, player string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.n == 0 {
		return errors.New("db unavailable")
	}
	f.n--
	return f.Store.UpdateTurn(ctx, id, player)
}

func TestService_FailedRestoreKeepsGamePlayable(t *testing.T) {
	store := memstore.New()
	turns := &flakyTurns{Store: store, n: 1}
	f := newFixture(t, func(d *game.Deps) {
		d.Games, d.Fleets, d.Shots = turns, store, brokenShots{store}
	})
	f.store = store
	g := f.battle(t)
	ctx := context.Background()

	// the turn flips, the shot write fails and so does the restore
	_, err := f.svc.FireShot(ctx, g.ID, "alice", 0, 9)
	assert.Equal(t, game.CodeInternal, game.CodeOf(err))

	after, err := f.svc.GetGame(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", *after.CurrentTurn)
	assert.Equal(t, model.StatusInProgress, after.Status)
	shots, err := f.svc.ListShots(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, shots)

	// alice lost the shot but the game still answers consistently
	_, err = f.svc.FireShot(ctx, g.ID, "alice", 0, 9)
	assert.ErrorIs(t, err, game.ErrNotYourTurn)
	v, err := f.svc.View(ctx, g.ID, "bob")
	require.NoError(t, err)
	assert.IsType(t, &game.PlayerView{}, v)
}

func TestService_FleetWithoutOrientationIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	g, err := f.svc.CreateGame(ctx, "alice", "room")
	require.NoError(t, err)

	var req struct {
		Ships []model.Ship `json:"ships"`
	}
	body := `{"ships":[
		{"type":"CARRIER","x":0,"y":0},
		{"type":"BATTLESHIP","x":0,"y":2,"orientation":"HORIZONTAL"},
		{"type":"SUBMARINE","x":0,"y":4,"orientation":"HORIZONTAL"},
		{"type":"SUBMARINE","x":0,"y":6,"orientation":"HORIZONTAL"},
		{"type":"DESTROYER","x":0,"y":8,"orientation":"HORIZONTAL"}
	]}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	_, err = f.svc.SubmitFleet(ctx, g.ID, "alice", req.Ships)
	assert.ErrorIs(t, err, game.ErrInvalidInput)

	stored, err := f.store.GetFleet(ctx, g.ID, "alice")
	require.NoError(t, err)
	assert.Empty(t, stored)

	// a corrected submission still goes through
	_, err = f.svc.SubmitFleet(ctx, g.ID, "alice", standardFleet())
	require.NoError(t, err)
}

// plainShots hides the atomic upgrade so the sequential path is used.
type plainShots struct {
	s *memstore.Store
}

func (p plainShots) AppendShot(ctx context.Context, shot *model.Shot) error {
	return p.s.AppendShot(ctx, shot)
}

func (p plainShots) ListShots(ctx context.Context, gameID string) ([]model.Shot, error) {
	return p.s.ListShots(ctx, gameID)
}

func (p plainShots) RewriteShotResult(ctx context.Context, gameID string, id int64, r model.ShotResult) error {
	return p.s.RewriteShotResult(ctx, gameID, id, r)
}

func TestService_SequentialShotStore(t *testing.T) {
	store := memstore.New()
	f := newFixture(t, func(d *game.Deps) {
		d.Games, d.Fleets, d.Shots = store, store, plainShots{store}
	})
	g := f.battle(t)

	// bob's destroyer at (1,1) vertical
	f.fire(t, g.ID, "alice", 1, 1)
	f.fire(t, g.ID, "bob", 9, 9)
	last := f.fire(t, g.ID, "alice", 1, 2)
	assert.Equal(t, model.Sunk, last.Result)

	shots, err := f.svc.ListShots(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Sunk, shots[0].Result)
}

func TestService_PruneLanes(t *testing.T) {
	f := newFixture(t)
	g := f.battle(t)
	f.fire(t, g.ID, "alice", 0, 9)

	assert.Equal(t, 1, f.svc.PruneLanes(0))
	assert.Equal(t, 0, f.svc.PruneLanes(0))

	// a pruned lane comes back on demand
	f.fire(t, g.ID, "bob", 0, 9)
	assert.Equal(t, 0, f.svc.PruneLanes(time.Hour))
}

func TestService_Janitor(t *testing.T) {
	f := newFixture(t)
	g := f.battle(t)
	f.fire(t, g.ID, "alice", 0, 9)
	require.Equal(t, 1, f.svc.ActiveLanes())

	sched, err := f.svc.StartJanitor(10*time.Millisecond, 0)
	require.NoError(t, err)
	defer func() { _ = sched.Shutdown() }()

	assert.Eventually(t, func() bool { return f.svc.ActiveLanes() == 0 }, 2*time.Second, 10*time.Millisecond)

	// the game keeps working after its lane was dropped
	f.fire(t, g.ID, "bob", 0, 9)
}
