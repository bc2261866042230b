package room

import (
	"fmt"
	"sync"
	"testing"

	"github.com/COAOX/zecrey_battleship/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AddLookupRemove(t *testing.T) {
	r := NewRegistry()

	_, had := r.Add(Member{UID: "1", GameID: "g1", Player: "alice"})
	assert.False(t, had)
	r.Add(Member{UID: "2", GameID: "g1", Player: "bob"})
	r.Add(Member{UID: "3", GameID: "g1", Observer: true})

	m, ok := r.Lookup("2")
	require.True(t, ok)
	assert.Equal(t, "bob", m.Player)

	members := r.Members("g1")
	require.Len(t, members, 3)
	assert.Equal(t, []string{"1", "2", "3"}, []string{members[0].UID, members[1].UID, members[2].UID})
	assert.Equal(t, []string{"3"}, r.UIDs("g1", func(m Member) bool { return m.Observer }))

	removed, ok := r.Remove("1")
	require.True(t, ok)
	assert.Equal(t, "alice", removed.Player)
	_, ok = r.Remove("1")
	assert.False(t, ok)
	assert.Len(t, r.Members("g1"), 2)
	assert.Empty(t, r.Members("missing"))
}

func TestRegistry_MoveBetweenRooms(t *testing.T) {
	r := NewRegistry()
	r.Add(Member{UID: "1", GameID: "g1", Player: "alice"})

	prev, had := r.Add(Member{UID: "1", GameID: "g2", Observer: true})
	require.True(t, had)
	assert.Equal(t, "g1", prev.GameID)
	assert.Empty(t, r.Members("g1"))
	assert.Len(t, r.Members("g2"), 1)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Authorize(t *testing.T) {
	r := NewRegistry()
	r.Add(Member{UID: "1", GameID: "g1", Player: "alice"})
	r.Add(Member{UID: "2", GameID: "g1", Observer: true})

	m, err := r.Authorize("1", "g1", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", m.Player)

	_, err = r.Authorize("1", "g1", "alice")
	assert.NoError(t, err)

	for name, args := range map[string][3]string{
		"unknown uid":   {"9", "g1", ""},
		"other game":    {"1", "g2", ""},
		"wrong player":  {"1", "g1", "bob"},
		"observer acts": {"2", "g1", ""},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Authorize(args[0], args[1], args[2])
			assert.ErrorIs(t, err, game.ErrNotParticipant)
		})
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := fmt.Sprint(i)
			r.Add(Member{UID: uid, GameID: fmt.Sprintf("g%d", i%4), Observer: true})
			r.Lookup(uid)
			r.Members("g0")
			if i%2 == 0 {
				r.Remove(uid)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, r.Len())
}
