package gem

import (
	"fmt"

	"github.com/gemclash/gem-server-go/internal/gem/events"
	"github.com/gemclash/gem-server-go/internal/gem/rng"
	"go.uber.org/zap"
)

// DefaultHandLimit is the maximum number of gems held in hand.
const DefaultHandLimit = 3

// PlayResult carries the outcome of a single played gem. The battle
// resolver consumes these; the engine never computes combat effects.
type PlayResult struct {
	Instance *GemInstance
	Success  bool
}

// PoolManager owns the four gem zones for one player and is the only
// component allowed to mutate them:
//
//	bag     ordered draw pile, front = next draw
//	hand    up to handLimit playable gems
//	discard gems removed from hand, pending recycle
//	played  gems consumed this period
//
// Every operation is atomic: zone state is fully settled before any
// event is published, and a rejected operation changes nothing. The
// multiset of instance IDs across all zones is conserved by every
// operation except AddToBag and ReplaceInHand, which are the factory
// driven entry points.
//
// Recycling is lazy: the discard pile flows back into the bag only when
// a draw or play exhausts the bag, never immediately on discard.
type PoolManager struct {
	playerID  string
	handLimit int
	src       rng.Source
	ledger    *MasteryLedger
	bus       *events.Bus
	logger    *zap.Logger

	bag     []*GemInstance
	hand    []*GemInstance
	discard []*GemInstance
	played  []*GemInstance
}

// NewPoolManager creates an empty pool for the given player. A
// non-positive handLimit falls back to DefaultHandLimit.
func NewPoolManager(playerID string, handLimit int, src rng.Source, ledger *MasteryLedger, bus *events.Bus, logger *zap.Logger) *PoolManager {
	if handLimit <= 0 {
		handLimit = DefaultHandLimit
	}
	if src == nil {
		src = rng.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolManager{
		playerID:  playerID,
		handLimit: handLimit,
		src:       src,
		ledger:    ledger,
		bus:       bus,
		logger:    logger,
	}
}

// AddToBag appends freshly created instances to the back of the bag.
func (p *PoolManager) AddToBag(instances ...*GemInstance) {
	p.bag = append(p.bag, instances...)
}

// ShuffleBag randomizes the bag order in place. Used when seeding a
// fresh bag; recycling and period resets shuffle on their own.
func (p *PoolManager) ShuffleBag() {
	p.src.Shuffle(len(p.bag), func(i, j int) {
		p.bag[i], p.bag[j] = p.bag[j], p.bag[i]
	})
}

// Draw moves up to n gems from the front of the bag into the hand,
// recycling the discard pile whenever the bag runs dry mid-draw. A full
// hand or an exhausted pool ends the draw early; neither is an error.
func (p *PoolManager) Draw(n int) []*GemInstance {
	var drawn []*GemInstance
	var pending []events.Event

	for n > 0 && len(p.hand) < p.handLimit {
		if len(p.bag) == 0 {
			if len(p.discard) == 0 {
				break
			}
			moved := p.recycle()
			pending = append(pending, events.NewEventWithAmount(events.EventBagRecycled, p.playerID, "", "", moved))
		}
		inst := p.bag[0]
		p.bag = p.bag[1:]
		p.hand = append(p.hand, inst)
		drawn = append(drawn, inst)
		pending = append(pending, events.NewEvent(events.EventGemDrawn, p.playerID, inst.InstanceID, inst.TemplateID))
		n--
	}

	p.publish(pending)
	return drawn
}

// Play moves the selected hand gems into the played pile, debits their
// total cost through the caller's callback, and rolls each gem's success
// against its mastery snapshot. IDs not currently in hand are silently
// ignored. Fails with ErrInsufficientResource, leaving all zones
// untouched, when the total cost exceeds the stamina budget.
func (p *PoolManager) Play(selectedIDs []string, stamina int, debit func(int)) ([]PlayResult, error) {
	resolved := p.resolveHand(selectedIDs)
	if len(resolved) == 0 {
		return nil, nil
	}

	totalCost := 0
	for _, inst := range resolved {
		totalCost += inst.Cost
	}
	if totalCost > stamina {
		return nil, fmt.Errorf("%w: cost %d exceeds budget %d", ErrInsufficientResource, totalCost, stamina)
	}

	p.removeFromHand(resolved)
	p.played = append(p.played, resolved...)

	results := make([]PlayResult, 0, len(resolved))
	var pending []events.Event
	replacementDraws := 0
	for _, inst := range resolved {
		success := p.src.Roll100() < inst.MasterySnapshot
		results = append(results, PlayResult{Instance: inst, Success: success})
		pending = append(pending, events.NewEventWithFlag(events.EventGemPlayed, p.playerID, inst.InstanceID, inst.TemplateID, success))
		if inst.DrawsOnPlay() {
			replacementDraws++
		}
	}

	if len(p.bag) == 0 && len(p.discard) > 0 {
		moved := p.recycle()
		pending = append(pending, events.NewEventWithAmount(events.EventBagRecycled, p.playerID, "", "", moved))
	}

	// Swift gems refill the hand with one replacement each.
	for replacementDraws > 0 && len(p.hand) < p.handLimit && len(p.bag) > 0 {
		inst := p.bag[0]
		p.bag = p.bag[1:]
		p.hand = append(p.hand, inst)
		pending = append(pending, events.NewEvent(events.EventGemDrawn, p.playerID, inst.InstanceID, inst.TemplateID))
		replacementDraws--
	}

	if debit != nil {
		debit(totalCost)
	}

	p.logger.Debug("gems played",
		zap.String("player_id", p.playerID),
		zap.Int("count", len(resolved)),
		zap.Int("total_cost", totalCost),
	)
	p.publish(pending)

	for _, r := range results {
		if r.Success && p.ledger != nil {
			p.ledger.RecordSuccess(r.Instance.TemplateID)
		}
	}
	return results, nil
}

// Discard moves the selected hand gems into the discard pile. IDs not in
// hand are silently ignored. The discard pile stays put until a later
// draw or play exhausts the bag.
func (p *PoolManager) Discard(selectedIDs []string) []*GemInstance {
	resolved := p.resolveHand(selectedIDs)
	if len(resolved) == 0 {
		return nil
	}

	p.removeFromHand(resolved)
	p.discard = append(p.discard, resolved...)

	pending := make([]events.Event, 0, len(resolved))
	for _, inst := range resolved {
		pending = append(pending, events.NewEvent(events.EventGemDiscarded, p.playerID, inst.InstanceID, inst.TemplateID))
	}
	p.publish(pending)
	return resolved
}

// Recycle moves the entire discard pile into the bag and shuffles the
// bag. No-op if the discard pile is empty.
func (p *PoolManager) Recycle() {
	if len(p.discard) == 0 {
		return
	}
	moved := p.recycle()
	p.publish([]events.Event{events.NewEventWithAmount(events.EventBagRecycled, p.playerID, "", "", moved)})
}

// ResetForNewPeriod merges bag, discard, and played into a freshly
// shuffled bag. The hand is preserved across the reset.
func (p *PoolManager) ResetForNewPeriod() {
	merged := make([]*GemInstance, 0, len(p.bag)+len(p.discard)+len(p.played))
	merged = append(merged, p.bag...)
	merged = append(merged, p.discard...)
	merged = append(merged, p.played...)
	p.src.Shuffle(len(merged), func(i, j int) {
		merged[i], merged[j] = merged[j], merged[i]
	})
	p.bag = merged
	p.discard = nil
	p.played = nil

	p.logger.Debug("period reset",
		zap.String("player_id", p.playerID),
		zap.Int("bag_size", len(p.bag)),
		zap.Int("hand_size", len(p.hand)),
	)
	p.publish([]events.Event{events.NewEventWithAmount(events.EventPeriodReset, p.playerID, "", "", len(p.bag))})
}

// ReplaceInHand swaps a held gem for a replacement instance, the commit
// half of an upgrade. The replaced instance leaves the pool entirely.
func (p *PoolManager) ReplaceInHand(handInstanceID string, replacement *GemInstance) error {
	if replacement == nil {
		return fmt.Errorf("nil replacement instance")
	}
	for i, inst := range p.hand {
		if inst.InstanceID == handInstanceID {
			p.hand[i] = replacement
			p.logger.Debug("hand gem replaced",
				zap.String("player_id", p.playerID),
				zap.String("replaced_id", handInstanceID),
				zap.String("replacement_id", replacement.InstanceID),
			)
			return nil
		}
	}
	return ErrNotInHand
}

// recycle moves the discard pile into the bag and shuffles the bag.
// Returns the number of instances moved.
func (p *PoolManager) recycle() int {
	moved := len(p.discard)
	p.bag = append(p.bag, p.discard...)
	p.discard = nil
	p.src.Shuffle(len(p.bag), func(i, j int) {
		p.bag[i], p.bag[j] = p.bag[j], p.bag[i]
	})
	return moved
}

// resolveHand maps selected IDs to hand instances, dropping IDs that are
// absent or repeated. The leniency is deliberate: stale UI selections
// must not fail a whole play.
func (p *PoolManager) resolveHand(selectedIDs []string) []*GemInstance {
	var resolved []*GemInstance
	seen := make(map[string]bool, len(selectedIDs))
	for _, id := range selectedIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, inst := range p.hand {
			if inst.InstanceID == id {
				resolved = append(resolved, inst)
				break
			}
		}
	}
	return resolved
}

func (p *PoolManager) removeFromHand(instances []*GemInstance) {
	remove := make(map[string]bool, len(instances))
	for _, inst := range instances {
		remove[inst.InstanceID] = true
	}
	kept := p.hand[:0]
	for _, inst := range p.hand {
		if !remove[inst.InstanceID] {
			kept = append(kept, inst)
		}
	}
	p.hand = kept
}

func (p *PoolManager) publish(pending []events.Event) {
	if p.bus == nil {
		return
	}
	p.bus.PublishBatch(pending)
}

// Hand returns copies of the gems currently in hand.
func (p *PoolManager) Hand() []*GemInstance {
	out := make([]*GemInstance, len(p.hand))
	for i, inst := range p.hand {
		out[i] = inst.Copy()
	}
	return out
}

// HandSize returns the number of gems in hand.
func (p *PoolManager) HandSize() int { return len(p.hand) }

// BagCount returns the number of gems left in the bag.
func (p *PoolManager) BagCount() int { return len(p.bag) }

// DiscardCount returns the number of gems in the discard pile.
func (p *PoolManager) DiscardCount() int { return len(p.discard) }

// PlayedCount returns the number of gems played this period.
func (p *PoolManager) PlayedCount() int { return len(p.played) }

// AllInstanceIDs returns every instance ID across all four zones.
func (p *PoolManager) AllInstanceIDs() []string {
	out := make([]string, 0, len(p.bag)+len(p.hand)+len(p.discard)+len(p.played))
	for _, zone := range [][]*GemInstance{p.bag, p.hand, p.discard, p.played} {
		for _, inst := range zone {
			out = append(out, inst.InstanceID)
		}
	}
	return out
}

// ZoneSnapshot is the pure import/export shape of the four zones. ID
// slices preserve zone order; Instances holds the full records.
type ZoneSnapshot struct {
	Bag       []string
	Hand      []string
	Discard   []string
	Played    []string
	Instances map[string]GemInstance
}

// Snapshot exports the current zone state.
func (p *PoolManager) Snapshot() ZoneSnapshot {
	snap := ZoneSnapshot{
		Bag:       make([]string, 0, len(p.bag)),
		Hand:      make([]string, 0, len(p.hand)),
		Discard:   make([]string, 0, len(p.discard)),
		Played:    make([]string, 0, len(p.played)),
		Instances: make(map[string]GemInstance),
	}
	collect := func(zone []*GemInstance, ids *[]string) {
		for _, inst := range zone {
			*ids = append(*ids, inst.InstanceID)
			snap.Instances[inst.InstanceID] = *inst
		}
	}
	collect(p.bag, &snap.Bag)
	collect(p.hand, &snap.Hand)
	collect(p.discard, &snap.Discard)
	collect(p.played, &snap.Played)
	return snap
}

// Restore replaces the zone state with the snapshot's. Every referenced
// instance must be present exactly once across the four zones.
func (p *PoolManager) Restore(snap ZoneSnapshot) error {
	if len(snap.Hand) > p.handLimit {
		return fmt.Errorf("snapshot hand size %d exceeds limit %d", len(snap.Hand), p.handLimit)
	}
	seen := make(map[string]bool)
	build := func(ids []string) ([]*GemInstance, error) {
		zone := make([]*GemInstance, 0, len(ids))
		for _, id := range ids {
			rec, ok := snap.Instances[id]
			if !ok {
				return nil, fmt.Errorf("snapshot references unknown instance %q", id)
			}
			if seen[id] {
				return nil, fmt.Errorf("snapshot places instance %q in multiple zones", id)
			}
			seen[id] = true
			inst := rec
			zone = append(zone, &inst)
		}
		return zone, nil
	}

	bag, err := build(snap.Bag)
	if err != nil {
		return err
	}
	hand, err := build(snap.Hand)
	if err != nil {
		return err
	}
	discard, err := build(snap.Discard)
	if err != nil {
		return err
	}
	played, err := build(snap.Played)
	if err != nil {
		return err
	}

	p.bag = bag
	p.hand = hand
	p.discard = discard
	p.played = played
	return nil
}
