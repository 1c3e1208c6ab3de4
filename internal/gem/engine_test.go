package gem

import (
	"sync"
	"testing"

	"github.com/gemclash/gem-server-go/internal/gem/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(Default(), DefaultTuning(), zap.NewNop())
}

type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) handle(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) byType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, evt := range r.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

func TestEngineAddPlayerBuildsStarterBag(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))

	view, err := engine.View("player1")
	require.NoError(t, err)

	// 5 starter templates at 2 copies each.
	assert.Equal(t, 10, view.BagCount)
	assert.Empty(t, view.Hand)
	assert.Equal(t, 5, view.Stamina)
	assert.Equal(t, "warrior", view.ClassID)
}

func TestEngineAddPlayerDuplicate(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))
	assert.ErrorIs(t, engine.AddPlayer("player1", "mage", 42), ErrPlayerExists)
}

func TestEngineUnknownPlayer(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.Draw("ghost", 1)
	assert.ErrorIs(t, err, ErrUnknownPlayer)
	_, err = engine.View("ghost")
	assert.ErrorIs(t, err, ErrUnknownPlayer)
	assert.ErrorIs(t, engine.Recycle("ghost"), ErrUnknownPlayer)
}

func TestEngineDrawNotifies(t *testing.T) {
	engine := newTestEngine(t)
	recorder := &eventRecorder{}
	engine.SetNotificationHandler(recorder.handle)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))

	drawn, err := engine.Draw("player1", 2)
	require.NoError(t, err)
	require.Len(t, drawn, 2)

	drawEvents := recorder.byType(events.EventGemDrawn)
	require.Len(t, drawEvents, 2)
	for _, evt := range drawEvents {
		assert.Equal(t, "player1", evt.PlayerID)
		assert.NotEmpty(t, evt.InstanceID)
	}
}

func TestEnginePlayDebitsStamina(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))

	drawn, err := engine.Draw("player1", 1)
	require.NoError(t, err)
	require.Len(t, drawn, 1)
	cost := drawn[0].Cost

	results, err := engine.Play("player1", []string{drawn[0].InstanceID})
	require.NoError(t, err)
	require.Len(t, results, 1)

	view, err := engine.View("player1")
	require.NoError(t, err)
	assert.Equal(t, 5-cost, view.Stamina)
	assert.Equal(t, 1, view.PlayedCount)
	assert.Empty(t, view.Hand)
}

func TestEnginePlayInsufficientStamina(t *testing.T) {
	engine := newTestEngine(t)
	tuning := DefaultTuning()
	tuning.StartingStamina = 1
	engine = NewEngine(Default(), tuning, zap.NewNop())
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))

	drawn, err := engine.Draw("player1", 3)
	require.NoError(t, err)

	ids := make([]string, 0, len(drawn))
	for _, inst := range drawn {
		ids = append(ids, inst.InstanceID)
	}
	// Any three starters cost at least 3 against a budget of 1.
	_, err = engine.Play("player1", ids)
	require.ErrorIs(t, err, ErrInsufficientResource)

	view, err := engine.View("player1")
	require.NoError(t, err)
	assert.Len(t, view.Hand, 3)
	assert.Equal(t, 1, view.Stamina)
}

func TestEngineResetRestoresStamina(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))

	drawn, err := engine.Draw("player1", 1)
	require.NoError(t, err)
	_, err = engine.Play("player1", []string{drawn[0].InstanceID})
	require.NoError(t, err)

	require.NoError(t, engine.ResetForNewPeriod("player1"))

	view, err := engine.View("player1")
	require.NoError(t, err)
	assert.Equal(t, 5, view.Stamina)
	assert.Equal(t, 0, view.PlayedCount)
	assert.Equal(t, 0, view.DiscardCount)
	assert.Equal(t, 10, view.BagCount)
}

func TestEngineDiscardAndRecycle(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))

	drawn, err := engine.Draw("player1", 2)
	require.NoError(t, err)

	discarded, err := engine.Discard("player1", []string{drawn[0].InstanceID})
	require.NoError(t, err)
	require.Len(t, discarded, 1)

	view, err := engine.View("player1")
	require.NoError(t, err)
	require.Equal(t, 1, view.DiscardCount)

	require.NoError(t, engine.Recycle("player1"))
	view, err = engine.View("player1")
	require.NoError(t, err)
	assert.Equal(t, 0, view.DiscardCount)
	assert.Equal(t, 9, view.BagCount)
}

func TestEngineUnlockFlow(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))
	require.NoError(t, engine.GrantCoins("player1", 150))

	require.NoError(t, engine.Unlock("player1", "inferno_core", 100))

	view, err := engine.View("player1")
	require.NoError(t, err)
	assert.Equal(t, 50, view.Coins)

	assert.ErrorIs(t, engine.Unlock("player1", "inferno_core", 100), ErrAlreadyUnlocked)
	assert.ErrorIs(t, engine.Unlock("player1", "glacial_core", 100), ErrNotEligible)
	assert.ErrorIs(t, engine.Unlock("player1", "prism_core", 150), ErrInsufficientFunds)
}

func TestEngineUpgradeCommit(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))

	drawn, err := engine.Draw("player1", 1)
	require.NoError(t, err)
	held := drawn[0]

	options, err := engine.UpgradeOptions("player1", held.InstanceID)
	require.NoError(t, err)
	require.NotEmpty(t, options)
	assert.Equal(t, UpgradeAugmentation, options[0].Kind)
	assert.Equal(t, "powerful", options[0].Candidate.AppliedAugmentationID)

	replacement, err := engine.CommitUpgrade("player1", held.InstanceID, held.TemplateID, "powerful")
	require.NoError(t, err)

	view, err := engine.View("player1")
	require.NoError(t, err)
	require.Len(t, view.Hand, 1)
	assert.Equal(t, replacement.InstanceID, view.Hand[0].InstanceID)
	assert.Equal(t, "powerful", view.Hand[0].Augmentation)
	assert.NotEqual(t, held.InstanceID, view.Hand[0].InstanceID)
}

func TestEngineUpgradeOptionsNotInHand(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))

	_, err := engine.UpgradeOptions("player1", "not-held")
	assert.ErrorIs(t, err, ErrNotInHand)
}

func TestEngineMasteryQuery(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))

	mastery, err := engine.Mastery("player1", "ember_shard")
	require.NoError(t, err)
	assert.Equal(t, 15, mastery)
}

func TestEngineSnapshotRestore(t *testing.T) {
	engine := newTestEngine(t)
	require.NoError(t, engine.AddPlayer("player1", "warrior", 42))
	require.NoError(t, engine.GrantCoins("player1", 80))

	drawn, err := engine.Draw("player1", 2)
	require.NoError(t, err)
	_, err = engine.Play("player1", []string{drawn[0].InstanceID})
	require.NoError(t, err)

	snap, err := engine.Snapshot("player1")
	require.NoError(t, err)
	require.NoError(t, ValidateSerializationRoundtrip(snap))

	before, err := engine.View("player1")
	require.NoError(t, err)

	restored := newTestEngine(t)
	require.NoError(t, restored.RestoreSnapshot(snap, 7))

	after, err := restored.View("player1")
	require.NoError(t, err)
	assert.Equal(t, before.Stamina, after.Stamina)
	assert.Equal(t, before.Coins, after.Coins)
	assert.Equal(t, before.BagCount, after.BagCount)
	assert.Equal(t, before.DiscardCount, after.DiscardCount)
	assert.Equal(t, before.PlayedCount, after.PlayedCount)
	require.Len(t, after.Hand, len(before.Hand))
	assert.Equal(t, before.Hand[0].InstanceID, after.Hand[0].InstanceID)
}
