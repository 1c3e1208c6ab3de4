package server

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gemclash/gem-server-go/internal/gem"
	"github.com/gemclash/gem-server-go/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type unlockRecord struct {
	classID    string
	templateID string
	cost       int
}

// memoryStore is an in-memory SnapshotStore for tests.
type memoryStore struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	checksums map[string]string
	unlocks   map[string][]unlockRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		snapshots: make(map[string][]byte),
		checksums: make(map[string]string),
		unlocks:   make(map[string][]unlockRecord),
	}
}

func (m *memoryStore) SaveSnapshot(ctx context.Context, playerID string, data []byte, checksum string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[playerID] = data
	m.checksums[playerID] = checksum
	return nil
}

func (m *memoryStore) LoadSnapshot(ctx context.Context, playerID string) ([]byte, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.snapshots[playerID]
	if !ok {
		return nil, "", repository.ErrSnapshotNotFound
	}
	return data, m.checksums[playerID], nil
}

func (m *memoryStore) RecordUnlock(ctx context.Context, playerID, classID, templateID string, cost int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unlocks[playerID] = append(m.unlocks[playerID], unlockRecord{classID: classID, templateID: templateID, cost: cost})
	return nil
}

func (m *memoryStore) ListUnlocks(ctx context.Context, playerID string) (map[string][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]string)
	for _, rec := range m.unlocks[playerID] {
		out[rec.classID] = append(out[rec.classID], rec.templateID)
	}
	return out, nil
}

func (m *memoryStore) savedSnapshot(t *testing.T, playerID string) *gem.PlayerSnapshot {
	t.Helper()
	m.mu.Lock()
	data, ok := m.snapshots[playerID]
	m.mu.Unlock()
	require.True(t, ok, "no snapshot saved for %s", playerID)
	snap, err := gem.DeserializeSnapshot(data)
	require.NoError(t, err)
	return snap
}

type wsFixture struct {
	server *Server
	engine *gem.Engine
	hub    *Hub
	store  *memoryStore
}

func newWSFixture(t *testing.T, store *memoryStore) *wsFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	engine := gem.NewEngine(gem.Default(), gem.DefaultTuning(), zap.NewNop())
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	var snapStore SnapshotStore
	if store != nil {
		snapStore = store
	}
	return &wsFixture{
		server: NewServer(engine, hub, snapStore, zap.NewNop()),
		engine: engine,
		hub:    hub,
		store:  store,
	}
}

func newTestClient() *Client {
	return &Client{send: make(chan []byte, 64)}
}

func waitForMessage(t *testing.T, c *Client, substr string) string {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-c.send:
			if strings.Contains(string(msg), substr) {
				return string(msg)
			}
		case <-deadline:
			t.Fatalf("no message containing %q", substr)
		}
	}
}

func TestJoinSavesFreshSnapshot(t *testing.T) {
	store := newMemoryStore()
	f := newWSFixture(t, store)
	c := newTestClient()

	f.server.handleMessage(c, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})

	snap := store.savedSnapshot(t, "player1")
	assert.Equal(t, "player1", snap.PlayerID)
	assert.Equal(t, "warrior", snap.ClassID)
	assert.Len(t, snap.Zones.Bag, 10)
	assert.Empty(t, snap.Zones.Hand)
}

func TestJoinRestoresPersistedSnapshot(t *testing.T) {
	store := newMemoryStore()

	// Persist a player with progress from an earlier session.
	seed := gem.NewEngine(gem.Default(), gem.DefaultTuning(), zap.NewNop())
	require.NoError(t, seed.AddPlayer("player1", "warrior", 42))
	require.NoError(t, seed.GrantCoins("player1", 75))
	drawn, err := seed.Draw("player1", 2)
	require.NoError(t, err)
	require.Len(t, drawn, 2)

	snap, err := seed.Snapshot("player1")
	require.NoError(t, err)
	data, err := snap.SerializeToBytes()
	require.NoError(t, err)
	checksum, err := snap.ComputeChecksum()
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(context.Background(), "player1", data, checksum.Hash))

	f := newWSFixture(t, store)
	c := newTestClient()
	f.server.handleMessage(c, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})

	view, err := f.engine.View("player1")
	require.NoError(t, err)
	assert.Equal(t, 75, view.Coins)
	assert.Equal(t, 8, view.BagCount)
	assert.Len(t, view.Hand, 2)
}

func TestJoinFallsBackOnChecksumMismatch(t *testing.T) {
	store := newMemoryStore()

	seed := gem.NewEngine(gem.Default(), gem.DefaultTuning(), zap.NewNop())
	require.NoError(t, seed.AddPlayer("player1", "warrior", 42))
	require.NoError(t, seed.GrantCoins("player1", 75))
	snap, err := seed.Snapshot("player1")
	require.NoError(t, err)
	data, err := snap.SerializeToBytes()
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(context.Background(), "player1", data, "tampered"))

	f := newWSFixture(t, store)
	c := newTestClient()
	f.server.handleMessage(c, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})

	// The tampered snapshot is ignored; the player starts fresh.
	view, err := f.engine.View("player1")
	require.NoError(t, err)
	assert.Equal(t, 0, view.Coins)
	assert.Equal(t, 10, view.BagCount)
}

func TestJoinFallsBackOnUnreadableSnapshot(t *testing.T) {
	store := newMemoryStore()
	require.NoError(t, store.SaveSnapshot(context.Background(), "player1", []byte("not a gob stream"), "x"))

	f := newWSFixture(t, store)
	c := newTestClient()
	f.server.handleMessage(c, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})

	view, err := f.engine.View("player1")
	require.NoError(t, err)
	assert.Equal(t, 10, view.BagCount)
}

func TestRejoinKeepsLiveState(t *testing.T) {
	store := newMemoryStore()
	f := newWSFixture(t, store)
	c := newTestClient()

	f.server.handleMessage(c, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})
	f.server.handleMessage(c, WSMessage{Type: "draw", Count: 2})

	// A second join for a live session must not reset the hand from the
	// (older) stored snapshot.
	c2 := newTestClient()
	f.server.handleMessage(c2, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})

	view, err := f.engine.View("player1")
	require.NoError(t, err)
	assert.Len(t, view.Hand, 2)
}

func TestStateChangingCommandsPersist(t *testing.T) {
	store := newMemoryStore()
	f := newWSFixture(t, store)
	c := newTestClient()

	f.server.handleMessage(c, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})
	f.server.handleMessage(c, WSMessage{Type: "draw", Count: 2})

	snap := store.savedSnapshot(t, "player1")
	assert.Len(t, snap.Zones.Hand, 2)
	assert.Len(t, snap.Zones.Bag, 8)

	hand := snap.Zones.Hand
	f.server.handleMessage(c, WSMessage{Type: "discard", InstanceIDs: []string{hand[0]}})

	snap = store.savedSnapshot(t, "player1")
	assert.Len(t, snap.Zones.Hand, 1)
	assert.Len(t, snap.Zones.Discard, 1)
}

func TestUnlockRecordsAndPersists(t *testing.T) {
	store := newMemoryStore()
	f := newWSFixture(t, store)
	c := newTestClient()

	f.server.handleMessage(c, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})
	require.NoError(t, f.engine.GrantCoins("player1", 150))

	f.server.handleMessage(c, WSMessage{Type: "unlock", TemplateID: "inferno_core", Cost: 100})

	store.mu.Lock()
	records := store.unlocks["player1"]
	store.mu.Unlock()
	require.Len(t, records, 1)
	assert.Equal(t, "warrior", records[0].classID)
	assert.Equal(t, "inferno_core", records[0].templateID)
	assert.Equal(t, 100, records[0].cost)

	snap := store.savedSnapshot(t, "player1")
	assert.Equal(t, 50, snap.Coins)
	assert.Equal(t, []string{"inferno_core"}, snap.Unlocks.ByClass["warrior"])
}

func TestUnlockHistoryCommand(t *testing.T) {
	store := newMemoryStore()
	f := newWSFixture(t, store)
	c := newTestClient()

	f.server.handleMessage(c, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})
	require.NoError(t, f.engine.GrantCoins("player1", 150))
	f.server.handleMessage(c, WSMessage{Type: "unlock", TemplateID: "inferno_core", Cost: 100})

	f.server.handleMessage(c, WSMessage{Type: "unlocks"})
	msg := waitForMessage(t, c, `"unlocks"`)
	assert.Contains(t, msg, "inferno_core")
}

func TestUnlockBroadcastToAllClients(t *testing.T) {
	f := newWSFixture(t, nil)

	warrior := newTestClient()
	mage := newTestClient()
	f.hub.register <- warrior
	f.hub.register <- mage

	f.server.handleMessage(warrior, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})
	f.server.handleMessage(mage, WSMessage{Type: "join", PlayerID: "player2", ClassID: "mage"})
	require.NoError(t, f.engine.GrantCoins("player1", 150))

	f.server.handleMessage(warrior, WSMessage{Type: "unlock", TemplateID: "inferno_core", Cost: 100})

	// The unlock announcement reaches every connection, not just the
	// unlocking player's.
	waitForMessage(t, warrior, "TEMPLATE_UNLOCKED")
	waitForMessage(t, mage, "TEMPLATE_UNLOCKED")
}

func TestNilStoreDisablesPersistence(t *testing.T) {
	f := newWSFixture(t, nil)
	c := newTestClient()

	f.server.handleMessage(c, WSMessage{Type: "join", PlayerID: "player1", ClassID: "warrior"})
	f.server.handleMessage(c, WSMessage{Type: "draw", Count: 1})

	view, err := f.engine.View("player1")
	require.NoError(t, err)
	assert.Len(t, view.Hand, 1)

	f.server.handleMessage(c, WSMessage{Type: "unlocks"})
	msg := waitForMessage(t, c, `"unlocks"`)
	assert.Contains(t, msg, "{}")
}
