package room

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/COAOX/zecrey_battleship/game"
	"github.com/topfreegames/pitaya/v2/constants"
	"go.uber.org/zap"
)

// Transport is the part of pitaya.Pitaya the broadcaster pushes through.
type Transport interface {
	GroupCreate(ctx context.Context, groupName string) error
	GroupAddMember(ctx context.Context, groupName, uid string) error
	GroupRemoveMember(ctx context.Context, groupName, uid string) error
	GroupBroadcast(ctx context.Context, frontendType, groupName, route string, v interface{}) error
	GroupDelete(ctx context.Context, groupName string) error
	SendPushToUsers(route string, v interface{}, uids []string, frontendType string) ([]string, error)
}

// GroupName is the pitaya group holding every connection of a game room.
func GroupName(gameID string) string {
	return "game:" + gameID
}

type delivery struct {
	gameID string
	uid    string
}

// Broadcaster delivers game state to the connections of a room. It never
// delivers a sequenced value older than one already delivered to the same
// connection for the same game.
type Broadcaster struct {
	transport    Transport
	registry     *Registry
	frontendType string
	logger       *zap.Logger

	mu        sync.Mutex
	delivered map[delivery]uint64

	groups *groupLocks
}

// groupLocks serializes membership changes of one room group, so the group is
// never deleted while a member is being added to it.
type groupLocks struct {
	mu sync.Mutex
	m  map[string]*groupLock
}

type groupLock struct {
	sync.Mutex
	refs int
}

func (l *groupLocks) lock(gameID string) func() {
	l.mu.Lock()
	gl, ok := l.m[gameID]
	if !ok {
		gl = &groupLock{}
		l.m[gameID] = gl
	}
	gl.refs++
	l.mu.Unlock()

	gl.Lock()
	return func() {
		gl.Unlock()
		l.mu.Lock()
		if gl.refs--; gl.refs == 0 {
			delete(l.m, gameID)
		}
		l.mu.Unlock()
	}
}

var _ game.Broadcaster = (*Broadcaster)(nil)

func NewBroadcaster(t Transport, registry *Registry, frontendType string, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.L()
	}
	return &Broadcaster{
		transport:    t,
		registry:     registry,
		frontendType: frontendType,
		logger:       logger,
		delivered:    make(map[delivery]uint64),
		groups:       &groupLocks{m: make(map[string]*groupLock)},
	}
}

func (b *Broadcaster) Registry() *Registry {
	return b.registry
}

// Attach registers m and adds its uid to the room group, leaving any room the
// uid was in before.
func (b *Broadcaster) Attach(ctx context.Context, m Member) error {
	prev, moved, err := b.join(ctx, m)
	// the old room is left outside the new room's lock
	if moved && prev.GameID != m.GameID {
		b.leaveGroup(ctx, prev)
	}
	return err
}

func (b *Broadcaster) join(ctx context.Context, m Member) (Member, bool, error) {
	unlock := b.groups.lock(m.GameID)
	defer unlock()

	if err := b.transport.GroupCreate(ctx, GroupName(m.GameID)); err != nil && !errors.Is(err, constants.ErrGroupAlreadyExists) {
		return Member{}, false, fmt.Errorf("create group: %w", err)
	}
	prev, moved := b.registry.Add(m)
	if err := b.transport.GroupAddMember(ctx, GroupName(m.GameID), m.UID); err != nil && !errors.Is(err, constants.ErrMemberAlreadyExists) {
		b.registry.Remove(m.UID)
		return prev, moved, fmt.Errorf("add group member: %w", err)
	}
	return prev, moved, nil
}

// Detach drops uid from its room. The room group is deleted with its last member.
func (b *Broadcaster) Detach(ctx context.Context, uid string) (Member, bool) {
	m, ok := b.registry.Remove(uid)
	if !ok {
		return Member{}, false
	}
	b.leaveGroup(ctx, m)
	return m, true
}

func (b *Broadcaster) leaveGroup(ctx context.Context, m Member) {
	b.mu.Lock()
	delete(b.delivered, delivery{gameID: m.GameID, uid: m.UID})
	b.mu.Unlock()

	unlock := b.groups.lock(m.GameID)
	defer unlock()

	group := GroupName(m.GameID)
	if err := b.transport.GroupRemoveMember(ctx, group, m.UID); err != nil {
		b.logger.Warn("remove group member failed", zap.String("group", group), zap.String("uid", m.UID), zap.Error(err))
	}
	if len(b.registry.Members(m.GameID)) == 0 {
		if err := b.transport.GroupDelete(ctx, group); err != nil {
			b.logger.Debug("delete group failed", zap.String("group", group), zap.Error(err))
		}
	}
}

func (b *Broadcaster) PushToPlayer(ctx context.Context, gameID, player, route string, v interface{}) error {
	uids := b.registry.UIDs(gameID, func(m Member) bool { return !m.Observer && m.Player == player })
	return b.push(gameID, route, v, uids)
}

func (b *Broadcaster) PushToObservers(ctx context.Context, gameID, route string, v interface{}) error {
	uids := b.registry.UIDs(gameID, func(m Member) bool { return m.Observer })
	return b.push(gameID, route, v, uids)
}

// PushToRoom reaches every connection of the room. Unsequenced values go out
// as one group broadcast.
func (b *Broadcaster) PushToRoom(ctx context.Context, gameID, route string, v interface{}) error {
	if _, ok := v.(game.Sequenced); ok {
		return b.push(gameID, route, v, b.registry.UIDs(gameID, nil))
	}
	if len(b.registry.Members(gameID)) == 0 {
		return nil
	}
	if err := b.transport.GroupBroadcast(ctx, b.frontendType, GroupName(gameID), route, v); err != nil {
		return fmt.Errorf("broadcast %s to %s: %w", route, GroupName(gameID), err)
	}
	return nil
}

// PushToUID delivers v to one connection, for replies such as the state
// pushed right after joining.
func (b *Broadcaster) PushToUID(ctx context.Context, gameID, uid, route string, v interface{}) error {
	return b.push(gameID, route, v, []string{uid})
}

func (b *Broadcaster) push(gameID, route string, v interface{}, uids []string) error {
	uids = b.admit(gameID, v, uids)
	if len(uids) == 0 {
		return nil
	}
	failed, err := b.transport.SendPushToUsers(route, v, uids, b.frontendType)
	if err != nil {
		return fmt.Errorf("push %s to %d users: %w", route, len(failed), err)
	}
	return nil
}

// admit filters out connections that already got a newer value of gameID and
// records the sequence for the rest.
func (b *Broadcaster) admit(gameID string, v interface{}, uids []string) []string {
	sv, ok := v.(game.Sequenced)
	if !ok {
		return uids
	}
	seq := sv.Sequence()

	b.mu.Lock()
	defer b.mu.Unlock()
	kept := uids[:0:0]
	for _, uid := range uids {
		key := delivery{gameID: gameID, uid: uid}
		if last, seen := b.delivered[key]; seen && seq < last {
			b.logger.Debug("drop stale state", zap.String("game_id", gameID), zap.String("uid", uid), zap.Uint64("seq", seq), zap.Uint64("last", last))
			continue
		}
		b.delivered[key] = seq
		kept = append(kept, uid)
	}
	return kept
}
