package audio

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testNode points a real node at an httptest server so player updates can be
// observed without a websocket.
func testNode(t *testing.T, handler http.Handler) (*Node, func()) {
	t.Helper()

	srv := httptest.NewServer(handler)

	host, portStr, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	n := newNode(NodeOptions{
		Identifier: "test-node",
		Host:       host,
		Port:       port,
		Password:   "pw",
	}, nil, zap.NewNop())
	n.sessionID = "node-session"

	return n, srv.Close
}

func TestPlayPromotesExactlyOnceUnderConcurrency(t *testing.T) {
	var patches int32
	n, done := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch {
			atomic.AddInt32(&patches, 1)
			// Hold the request open so overlapping callers are truly concurrent.
			time.Sleep(30 * time.Millisecond)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer done()

	s := &Session{guildID: discord.GuildID(1), queue: NewQueue(), node: n}
	s.queue.Add(Track{Title: "one", Encoded: "enc-one"}, Track{Title: "two", Encoded: "enc-two"})

	// A user command and the node's track-end autoplay racing each other.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Play(context.Background()))
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&patches), "only one player update may be issued")
	assert.Equal(t, 1, s.queue.Size(), "the losing caller must not consume a queued track")
	require.NotNil(t, s.CurrentTrack())
	assert.Equal(t, "one", s.CurrentTrack().Title)
	assert.True(t, s.Playing())
}

func TestPlayRetriesAfterEmptyQueue(t *testing.T) {
	n, done := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer done()

	s := &Session{guildID: discord.GuildID(1), queue: NewQueue(), node: n}

	require.ErrorIs(t, s.Play(context.Background()), ErrQueueEmpty)

	// The empty attempt must not leave the session wedged.
	s.queue.Add(Track{Title: "late", Encoded: "enc-late"})
	require.NoError(t, s.Play(context.Background()))
	assert.True(t, s.Playing())
}

func TestPlayRecoversAfterNodeError(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	n, done := testNode(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer done()

	s := &Session{guildID: discord.GuildID(1), queue: NewQueue(), node: n}
	s.queue.Add(Track{Title: "one", Encoded: "enc-one"}, Track{Title: "two", Encoded: "enc-two"})

	require.Error(t, s.Play(context.Background()))
	assert.False(t, s.Playing())

	fail.Store(false)
	require.NoError(t, s.Play(context.Background()))
	assert.True(t, s.Playing())
}
