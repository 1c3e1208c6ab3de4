package gem

import (
	"sort"
	"sync"

	"github.com/gemclash/gem-server-go/internal/gem/events"
	"go.uber.org/zap"
)

// Wallet is the currency balance an unlock debits against. The engine
// never owns the balance; it only compares and requests deduction.
type Wallet interface {
	Balance() int
	Debit(amount int)
}

// UnlockRegistry records permanent template unlocks, partitioned by
// class, with a separate global scope for grey templates. No runtime
// shape sniffing: the two scopes are distinct sets.
type UnlockRegistry struct {
	mu      sync.RWMutex
	catalog *Catalog
	byClass map[string]map[string]struct{}
	global  map[string]struct{}
	bus     *events.Bus
	logger  *zap.Logger
}

// NewUnlockRegistry creates an empty registry over the catalog.
func NewUnlockRegistry(catalog *Catalog, bus *events.Bus, logger *zap.Logger) *UnlockRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UnlockRegistry{
		catalog: catalog,
		byClass: make(map[string]map[string]struct{}),
		global:  make(map[string]struct{}),
		bus:     bus,
		logger:  logger,
	}
}

// Unlock validates and records a permanent unlock of templateID for the
// acting class, debiting cost from the wallet. Grey templates unlock
// globally; colored templates require a matching class. Validation order
// is eligibility, duplication, funds; any failure leaves all state
// unchanged.
func (r *UnlockRegistry) Unlock(templateID, classID string, cost int, wallet Wallet) error {
	tmpl, ok := r.catalog.Template(templateID)
	if !ok {
		return ErrUnknownTemplate
	}
	if tmpl.Color != ColorGrey && tmpl.ClassID != classID {
		return ErrNotEligible
	}

	r.mu.Lock()
	if r.isUnlockedLocked(tmpl, classID) {
		r.mu.Unlock()
		return ErrAlreadyUnlocked
	}
	if wallet.Balance() < cost {
		r.mu.Unlock()
		return ErrInsufficientFunds
	}

	wallet.Debit(cost)
	if tmpl.Color == ColorGrey {
		r.global[templateID] = struct{}{}
	} else {
		set, ok := r.byClass[classID]
		if !ok {
			set = make(map[string]struct{})
			r.byClass[classID] = set
		}
		set[templateID] = struct{}{}
	}
	r.mu.Unlock()

	r.logger.Info("template unlocked",
		zap.String("template_id", templateID),
		zap.String("class_id", classID),
		zap.Int("cost", cost),
	)
	if r.bus != nil {
		r.bus.Publish(events.NewEventWithAmount(events.EventTemplateUnlocked, "", "", templateID, cost))
	}
	return nil
}

// IsUnlocked reports whether templateID is unlocked for the class
// (either in the class scope or globally).
func (r *UnlockRegistry) IsUnlocked(templateID, classID string) bool {
	tmpl, ok := r.catalog.Template(templateID)
	if !ok {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isUnlockedLocked(tmpl, classID)
}

func (r *UnlockRegistry) isUnlockedLocked(tmpl GemTemplate, classID string) bool {
	if _, ok := r.global[tmpl.ID]; ok {
		return true
	}
	if set, ok := r.byClass[classID]; ok {
		if _, ok := set[tmpl.ID]; ok {
			return true
		}
	}
	return false
}

// UnlockSnapshot is the pure import/export shape of the registry.
type UnlockSnapshot struct {
	ByClass map[string][]string
	Global  []string
}

// Export returns a sorted copy of the recorded unlocks.
func (r *UnlockRegistry) Export() UnlockSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap := UnlockSnapshot{ByClass: make(map[string][]string, len(r.byClass))}
	for classID, set := range r.byClass {
		ids := make([]string, 0, len(set))
		for id := range set {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		snap.ByClass[classID] = ids
	}
	for id := range r.global {
		snap.Global = append(snap.Global, id)
	}
	sort.Strings(snap.Global)
	return snap
}

// Import replaces the recorded unlocks with the snapshot's.
func (r *UnlockRegistry) Import(snap UnlockSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byClass = make(map[string]map[string]struct{}, len(snap.ByClass))
	for classID, ids := range snap.ByClass {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		r.byClass[classID] = set
	}
	r.global = make(map[string]struct{}, len(snap.Global))
	for _, id := range snap.Global {
		r.global[id] = struct{}{}
	}
}
