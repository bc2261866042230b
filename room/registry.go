package room

import (
	"sort"
	"sync"

	"github.com/COAOX/zecrey_battleship/game"
)

// Member is one connection attached to a game room. Observers have no player.
type Member struct {
	UID      string `json:"uid"`
	GameID   string `json:"game_id"`
	Player   string `json:"player,omitempty"`
	Observer bool   `json:"observer"`
}

// Registry maps connection uids to the game room they are attached to.
// A connection belongs to at most one room at a time.
type Registry struct {
	mu     sync.RWMutex
	byUID  map[string]Member
	byGame map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byUID:  make(map[string]Member),
		byGame: make(map[string]map[string]struct{}),
	}
}

// Add attaches m, moving the uid out of any room it was in before. The
// previous membership is returned when there was one.
func (r *Registry) Add(m Member) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.removeLocked(m.UID)
	r.byUID[m.UID] = m
	uids, ok := r.byGame[m.GameID]
	if !ok {
		uids = make(map[string]struct{})
		r.byGame[m.GameID] = uids
	}
	uids[m.UID] = struct{}{}
	return prev, had
}

func (r *Registry) Remove(uid string) (Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(uid)
}

func (r *Registry) removeLocked(uid string) (Member, bool) {
	m, ok := r.byUID[uid]
	if !ok {
		return Member{}, false
	}
	delete(r.byUID, uid)
	if uids := r.byGame[m.GameID]; uids != nil {
		delete(uids, uid)
		if len(uids) == 0 {
			delete(r.byGame, m.GameID)
		}
	}
	return m, true
}

func (r *Registry) Lookup(uid string) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byUID[uid]
	return m, ok
}

// Members returns a snapshot of the members of gameID ordered by uid.
func (r *Registry) Members(gameID string) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]Member, 0, len(r.byGame[gameID]))
	for uid := range r.byGame[gameID] {
		members = append(members, r.byUID[uid])
	}
	sort.Slice(members, func(i, j int) bool { return members[i].UID < members[j].UID })
	return members
}

// UIDs returns the uids in gameID whose member satisfies keep.
func (r *Registry) UIDs(gameID string, keep func(Member) bool) []string {
	var uids []string
	for _, m := range r.Members(gameID) {
		if keep == nil || keep(m) {
			uids = append(uids, m.UID)
		}
	}
	return uids
}

// Authorize checks that uid is attached to gameID as player. It returns the
// member on success and an error matching game.ErrNotParticipant otherwise.
func (r *Registry) Authorize(uid, gameID, player string) (Member, error) {
	m, ok := r.Lookup(uid)
	if !ok || m.GameID != gameID || m.Observer {
		return Member{}, game.ErrNotParticipant
	}
	if player != "" && m.Player != player {
		return Member{}, game.ErrNotParticipant
	}
	return m, nil
}

// Len returns the number of attached connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUID)
}
