package gem

import (
	"testing"

	"github.com/gemclash/gem-server-go/internal/gem/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasteryBaseFallback(t *testing.T) {
	ledger := NewMasteryLedger(Default(), 0, 0, nil, nil)

	assert.Equal(t, 15, ledger.Mastery("ember_shard"))
	assert.Equal(t, 25, ledger.Mastery("slate_shard"))
	assert.Equal(t, 0, ledger.Mastery("missing"))
}

func TestMasteryProgressionAndCap(t *testing.T) {
	bus := events.NewBus()
	var amounts []int
	bus.SubscribeTyped(events.EventMasteryChanged, func(e events.Event) {
		amounts = append(amounts, e.Amount)
	})
	ledger := NewMasteryLedger(Default(), 15, 70, bus, nil)

	expected := []int{30, 45, 60, 70}
	for _, want := range expected {
		ledger.RecordSuccess("ember_shard")
		require.Equal(t, want, ledger.Mastery("ember_shard"))
	}

	// At the cap further successes are a silent no-op.
	ledger.RecordSuccess("ember_shard")
	assert.Equal(t, 70, ledger.Mastery("ember_shard"))
	assert.Equal(t, expected, amounts)
}

func TestMasteryMonotonic(t *testing.T) {
	ledger := NewMasteryLedger(Default(), 15, 70, nil, nil)

	last := ledger.Mastery("verdant_shard")
	for i := 0; i < 10; i++ {
		ledger.RecordSuccess("verdant_shard")
		current := ledger.Mastery("verdant_shard")
		require.GreaterOrEqual(t, current, last)
		require.LessOrEqual(t, current, 70)
		last = current
	}
}

func TestMasteryImportClamps(t *testing.T) {
	ledger := NewMasteryLedger(Default(), 15, 70, nil, nil)

	ledger.Import(map[string]int{
		"ember_shard": 120,
		"frost_shard": -5,
		"slate_shard": 40,
	})

	assert.Equal(t, 70, ledger.Mastery("ember_shard"))
	assert.Equal(t, 0, ledger.Mastery("frost_shard"))
	assert.Equal(t, 40, ledger.Mastery("slate_shard"))
}

func TestMasteryExportIsCopy(t *testing.T) {
	ledger := NewMasteryLedger(Default(), 15, 70, nil, nil)
	ledger.RecordSuccess("ember_shard")

	exported := ledger.Export()
	exported["ember_shard"] = 5

	assert.Equal(t, 30, ledger.Mastery("ember_shard"))
}
