package gem

import (
	"sync"

	"github.com/gemclash/gem-server-go/internal/gem/events"
	"go.uber.org/zap"
)

// Default mastery progression tuning.
const (
	DefaultMasteryStep = 15
	DefaultMasteryCap  = 70
)

// MasteryLedger tracks the learned success percentage per gem template.
// Values are monotonically non-decreasing and bounded by the cap.
// Successful plays raise mastery by a fixed step; failures never touch it.
type MasteryLedger struct {
	mu      sync.RWMutex
	catalog *Catalog
	step    int
	cap     int
	values  map[string]int
	bus     *events.Bus
	logger  *zap.Logger
}

// NewMasteryLedger creates a ledger. Step and cap fall back to the
// defaults when non-positive.
func NewMasteryLedger(catalog *Catalog, step, cap int, bus *events.Bus, logger *zap.Logger) *MasteryLedger {
	if step <= 0 {
		step = DefaultMasteryStep
	}
	if cap <= 0 {
		cap = DefaultMasteryCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MasteryLedger{
		catalog: catalog,
		step:    step,
		cap:     cap,
		values:  make(map[string]int),
		bus:     bus,
		logger:  logger,
	}
}

// Mastery returns the current success percentage for a template. A
// template never recorded in the ledger reports its base mastery; an
// unknown template reports 0.
func (l *MasteryLedger) Mastery(templateID string) int {
	l.mu.RLock()
	if v, ok := l.values[templateID]; ok {
		l.mu.RUnlock()
		return v
	}
	l.mu.RUnlock()
	if tmpl, ok := l.catalog.Template(templateID); ok {
		return tmpl.BaseMastery
	}
	return 0
}

// Cap returns the configured mastery ceiling.
func (l *MasteryLedger) Cap() int {
	return l.cap
}

// RecordSuccess raises the template's mastery by one step, clamped to
// the cap. Already at or above cap is a no-op, not an error. Instances
// created before the call keep their snapshot.
func (l *MasteryLedger) RecordSuccess(templateID string) {
	current := l.Mastery(templateID)
	if current >= l.cap {
		return
	}

	next := current + l.step
	if next > l.cap {
		next = l.cap
	}

	l.mu.Lock()
	l.values[templateID] = next
	l.mu.Unlock()

	l.logger.Debug("mastery increased",
		zap.String("template_id", templateID),
		zap.Int("from", current),
		zap.Int("to", next),
	)
	if l.bus != nil {
		l.bus.Publish(events.NewEventWithAmount(events.EventMasteryChanged, "", "", templateID, next))
	}
}

// Export returns a copy of the recorded values (templates still at base
// mastery are omitted).
func (l *MasteryLedger) Export() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int, len(l.values))
	for id, v := range l.values {
		out[id] = v
	}
	return out
}

// Import replaces the recorded values with the given map, clamping each
// entry to the cap. Used when restoring a persisted snapshot.
func (l *MasteryLedger) Import(values map[string]int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = make(map[string]int, len(values))
	for id, v := range values {
		if v > l.cap {
			v = l.cap
		}
		if v < 0 {
			v = 0
		}
		l.values[id] = v
	}
}
