package nodes

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/diamondburned/arikawa/v3/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muralianand12345/pepper-bot/internal/audio"
	"github.com/muralianand12345/pepper-bot/internal/config"
	"github.com/muralianand12345/pepper-bot/internal/storage"
)

type fakeStore struct {
	mu      sync.Mutex
	records map[string]*storage.NodeRecord // by identifier
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]*storage.NodeRecord)}
}

func (f *fakeStore) NodeByOwner(_ context.Context, ownerID string) (*storage.NodeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.OwnerID == ownerID {
			cp := *rec

			return &cp, nil
		}
	}

	return nil, storage.ErrNotFound
}

func (f *fakeStore) NodeByIdentifier(_ context.Context, identifier string) (*storage.NodeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.records[identifier]; ok {
		cp := *rec

		return &cp, nil
	}

	return nil, storage.ErrNotFound
}

func (f *fakeStore) SaveNode(_ context.Context, rec *storage.NodeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.records[rec.Identifier] = &cp

	return nil
}

func (f *fakeStore) DeleteNode(_ context.Context, identifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, identifier)

	return nil
}

func (f *fakeStore) ActiveNodes(context.Context) ([]storage.NodeRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.NodeRecord
	for _, rec := range f.records {
		if rec.IsActive {
			out = append(out, *rec)
		}
	}

	return out, nil
}

type fakePool struct {
	mu            sync.Mutex
	nodes         map[string]bool // identifier -> connected
	removed       []string
	addCalls      int
	connectOnDial bool // ConnectNode marks the node connected
	bound         map[string]int
	sessionNodes  map[discord.GuildID]string
}

func newFakePool() *fakePool {
	return &fakePool{
		nodes:        make(map[string]bool),
		bound:        make(map[string]int),
		sessionNodes: make(map[discord.GuildID]string),
	}
}

func (f *fakePool) AddNode(opts audio.NodeOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	f.nodes[opts.Identifier] = false

	return nil
}

func (f *fakePool) RemoveNode(identifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nodes, identifier)
	f.removed = append(f.removed, identifier)

	return nil
}

func (f *fakePool) ConnectNode(_ context.Context, identifier string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectOnDial {
		f.nodes[identifier] = true
	}

	return nil
}

func (f *fakePool) NodeConnected(identifier string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.nodes[identifier]
}

func (f *fakePool) setConnected(identifier string, connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodes[identifier] = connected
}

func (f *fakePool) BoundSessions(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.bound[identifier]
}

func (f *fakePool) SessionNodeID(guildID discord.GuildID) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.sessionNodes[guildID]

	return id, ok
}

func testTiming() config.TimingConfig {
	t := config.DefaultTiming()
	t.NodeTestTimeout = 150 * time.Millisecond
	t.NodeTestPollInterval = 10 * time.Millisecond
	t.HealthPollInterval = 20 * time.Millisecond
	t.HealthPollLifetime = 500 * time.Millisecond
	return t
}

func newTestRegistry(store Store, pool Pool) *Registry {
	return NewRegistry(store, pool, testTiming(), zap.NewNop())
}

func TestRegisterPrivateNode(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid host rejected before any test", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		reg := newTestRegistry(store, pool)

		_, err := reg.RegisterPrivateNode(ctx, "111", audio.NodeOptions{Host: "bad host!", Port: 2333}, true)
		assert.ErrorIs(t, err, ErrInvalidHost)
		assert.Zero(t, pool.addCalls, "no connectivity test should be attempted")
		assert.Empty(t, store.records)
	})

	t.Run("second node for the same owner rejected without mutation", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		existing := &storage.NodeRecord{Identifier: "user-111", OwnerID: "111", Host: "a", Port: 1, IsActive: true}
		require.NoError(t, store.SaveNode(ctx, existing))
		reg := newTestRegistry(store, pool)

		_, err := reg.RegisterPrivateNode(ctx, "111", audio.NodeOptions{Host: "b.example.com", Port: 2333}, true)
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
		assert.Zero(t, pool.addCalls)

		kept, err := store.NodeByOwner(ctx, "111")
		require.NoError(t, err)
		assert.Equal(t, "a", kept.Host, "existing record must be untouched")
	})

	t.Run("connectivity timeout leaves no partial state", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		pool.connectOnDial = false // node never comes up
		reg := newTestRegistry(store, pool)

		_, err := reg.RegisterPrivateNode(ctx, "222", audio.NodeOptions{Host: "dead.example.com", Port: 2333}, true)
		assert.ErrorIs(t, err, ErrConnectionTimeout)

		assert.Empty(t, store.records, "nothing persisted on failure")
		require.Len(t, pool.removed, 1, "test node torn down")
		assert.True(t, strings.HasPrefix(pool.removed[0], "test-"))
		pool.mu.Lock()
		assert.Empty(t, pool.nodes, "no node left in the pool")
		pool.mu.Unlock()
	})

	t.Run("successful test registers and persists the real node", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		pool.connectOnDial = true
		reg := newTestRegistry(store, pool)

		nodeID, err := reg.RegisterPrivateNode(ctx, "333", audio.NodeOptions{Host: "lava.example.com", Port: 2333, Password: "pw"}, true)
		require.NoError(t, err)
		assert.Equal(t, "user-333", nodeID)

		rec, err := store.NodeByIdentifier(ctx, nodeID)
		require.NoError(t, err)
		assert.True(t, rec.IsActive)
		assert.True(t, rec.AutoFallback)
		assert.Zero(t, rec.RetryCount)
		assert.False(t, rec.AddedAt.IsZero())

		pool.mu.Lock()
		_, realNodeInPool := pool.nodes[nodeID]
		pool.mu.Unlock()
		assert.True(t, realNodeInPool)
		require.Len(t, pool.removed, 1, "test node removed even on success")
		assert.True(t, strings.HasPrefix(pool.removed[0], "test-"))
	})
}

func TestUnregisterPrivateNode(t *testing.T) {
	ctx := context.Background()

	t.Run("refuses while a session is bound", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{Identifier: "user-1", OwnerID: "1", Host: "h", Port: 1, IsActive: true}))
		pool.bound["user-1"] = 1
		reg := newTestRegistry(store, pool)

		err := reg.UnregisterPrivateNode(ctx, "1")
		assert.ErrorIs(t, err, ErrNodeInUse)

		_, err = store.NodeByIdentifier(ctx, "user-1")
		assert.NoError(t, err, "node must stay registered")
	})

	t.Run("removes pool node and record", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{Identifier: "user-2", OwnerID: "2", Host: "h", Port: 1, IsActive: true}))
		reg := newTestRegistry(store, pool)

		require.NoError(t, reg.UnregisterPrivateNode(ctx, "2"))
		_, err := store.NodeByIdentifier(ctx, "user-2")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.Contains(t, pool.removed, "user-2")
	})

	t.Run("unknown owner errors", func(t *testing.T) {
		reg := newTestRegistry(newFakeStore(), newFakePool())
		assert.ErrorIs(t, reg.UnregisterPrivateNode(ctx, "ghost"), ErrNotRegistered)
	})
}

func TestSelectNodeForSession(t *testing.T) {
	ctx := context.Background()
	guildID := discord.GuildID(42)

	t.Run("existing session keeps its node", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		pool.sessionNodes[guildID] = "shared-1"
		// The user has a connected private node, but the binding is sticky.
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{Identifier: "user-5", OwnerID: "5", Host: "h", Port: 1, IsActive: true}))
		pool.setConnected("user-5", true)
		reg := newTestRegistry(store, pool)

		nodeID, ok := reg.SelectNodeForSession(ctx, "5", guildID)
		require.True(t, ok)
		assert.Equal(t, "shared-1", nodeID)
	})

	t.Run("private node preferred when active and connected", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{Identifier: "user-5", OwnerID: "5", Host: "h", Port: 1, IsActive: true}))
		pool.setConnected("user-5", true)
		reg := newTestRegistry(store, pool)

		nodeID, ok := reg.SelectNodeForSession(ctx, "5", guildID)
		require.True(t, ok)
		assert.Equal(t, "user-5", nodeID)
	})

	t.Run("inactive or disconnected private node falls back", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{Identifier: "user-5", OwnerID: "5", Host: "h", Port: 1, IsActive: false}))
		pool.setConnected("user-5", true)
		reg := newTestRegistry(store, pool)

		_, ok := reg.SelectNodeForSession(ctx, "5", guildID)
		assert.False(t, ok)

		store2, pool2 := newFakeStore(), newFakePool()
		require.NoError(t, store2.SaveNode(ctx, &storage.NodeRecord{Identifier: "user-5", OwnerID: "5", Host: "h", Port: 1, IsActive: true}))
		// active but not connected
		reg2 := newTestRegistry(store2, pool2)
		_, ok = reg2.SelectNodeForSession(ctx, "5", guildID)
		assert.False(t, ok)
	})

	t.Run("no private node falls back", func(t *testing.T) {
		reg := newTestRegistry(newFakeStore(), newFakePool())
		_, ok := reg.SelectNodeForSession(ctx, "nobody", guildID)
		assert.False(t, ok)
	})
}

func TestFailureBookkeeping(t *testing.T) {
	ctx := context.Background()

	t.Run("retry count increments by one per report", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{Identifier: "user-7", OwnerID: "7", Host: "h", Port: 1, IsActive: true, AutoFallback: true}))
		reg := newTestRegistry(store, pool)

		for i := 1; i <= 4; i++ {
			reg.ReportNodeFailure(ctx, "user-7")
			rec, err := store.NodeByIdentifier(ctx, "user-7")
			require.NoError(t, err)
			assert.Equal(t, i, rec.RetryCount)
			assert.True(t, rec.IsActive, "stays active below the threshold")
		}
	})

	t.Run("fifth failure with autoFallback disables the node", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{Identifier: "user-8", OwnerID: "8", Host: "h", Port: 1, IsActive: true, AutoFallback: true, RetryCount: 4}))
		reg := newTestRegistry(store, pool)

		reg.ReportNodeFailure(ctx, "user-8")
		rec, err := store.NodeByIdentifier(ctx, "user-8")
		require.NoError(t, err)
		assert.False(t, rec.IsActive)
		assert.NotEmpty(t, rec.LastError)
	})

	t.Run("threshold without autoFallback keeps the node active", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{Identifier: "user-9", OwnerID: "9", Host: "h", Port: 1, IsActive: true, AutoFallback: false, RetryCount: 4}))
		reg := newTestRegistry(store, pool)

		reg.ReportNodeFailure(ctx, "user-9")
		rec, err := store.NodeByIdentifier(ctx, "user-9")
		require.NoError(t, err)
		assert.Equal(t, 5, rec.RetryCount)
		assert.True(t, rec.IsActive)
	})

	t.Run("recovery resets to exactly zero", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{Identifier: "user-10", OwnerID: "10", Host: "h", Port: 1, IsActive: true, AutoFallback: true, RetryCount: 3, LastError: "x"}))
		reg := newTestRegistry(store, pool)

		reg.ReportNodeRecovered(ctx, "user-10")
		rec, err := store.NodeByIdentifier(ctx, "user-10")
		require.NoError(t, err)
		assert.Zero(t, rec.RetryCount)
		assert.Empty(t, rec.LastError)
	})

	t.Run("shared pool identifiers are ignored", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{Identifier: "main", OwnerID: "op", Host: "h", Port: 1, IsActive: true, AutoFallback: true}))
		reg := newTestRegistry(store, pool)

		reg.ReportNodeFailure(ctx, "main")
		rec, err := store.NodeByIdentifier(ctx, "main")
		require.NoError(t, err)
		assert.Zero(t, rec.RetryCount)
	})
}

func TestIsPrivateNodeID(t *testing.T) {
	assert.True(t, IsPrivateNodeID("user-123"))
	assert.False(t, IsPrivateNodeID("main"))
	assert.False(t, IsPrivateNodeID("user-"))
	assert.False(t, IsPrivateNodeID("test-abc"))
}

func TestStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown owner", func(t *testing.T) {
		reg := newTestRegistry(newFakeStore(), newFakePool())

		_, err := reg.Status(ctx, "nobody")
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("reflects record and live pool state", func(t *testing.T) {
		store, pool := newFakeStore(), newFakePool()
		require.NoError(t, store.SaveNode(ctx, &storage.NodeRecord{
			Identifier: "user-42", OwnerID: "42",
			Host: "lava.example.com", Port: 2333, Secure: true,
			IsActive: true, AutoFallback: true, RetryCount: 2, LastError: "stale",
		}))
		pool.setConnected("user-42", true)
		pool.bound["user-42"] = 3
		reg := newTestRegistry(store, pool)

		status, err := reg.Status(ctx, "42")
		require.NoError(t, err)
		assert.Equal(t, "user-42", status.Identifier)
		assert.Equal(t, "lava.example.com", status.Host)
		assert.Equal(t, 2333, status.Port)
		assert.True(t, status.Secure)
		assert.True(t, status.Connected)
		assert.True(t, status.IsActive)
		assert.True(t, status.AutoFallback)
		assert.Equal(t, 2, status.RetryCount)
		assert.Equal(t, "stale", status.LastError)
		assert.Equal(t, 3, status.BoundSessions)
	})
}
