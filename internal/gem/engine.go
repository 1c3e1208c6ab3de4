package gem

import (
	"fmt"
	"sync"
	"time"

	"github.com/gemclash/gem-server-go/internal/gem/events"
	"github.com/gemclash/gem-server-go/internal/gem/rng"
	"go.uber.org/zap"
)

// Tuning carries the engine's game balance knobs.
type Tuning struct {
	HandLimit       int
	MasteryStep     int
	MasteryCap      int
	StartingStamina int
	StartingCoins   int
	StarterCopies   int
}

// DefaultTuning returns the standard balance values.
func DefaultTuning() Tuning {
	return Tuning{
		HandLimit:       DefaultHandLimit,
		MasteryStep:     DefaultMasteryStep,
		MasteryCap:      DefaultMasteryCap,
		StartingStamina: 5,
		StartingCoins:   0,
		StarterCopies:   2,
	}
}

// NotificationHandler receives every domain event, for bridging to
// websocket clients or other transports.
type NotificationHandler func(evt events.Event)

// playerState bundles one player's managers. The mutex serializes all
// operations for the player: each runs to completion, with state fully
// settled and notifications delivered, before the next begins.
type playerState struct {
	mu       sync.Mutex
	playerID string
	classID  string
	stamina  int
	coins    int

	bus      *events.Bus
	src      rng.Source
	ledger   *MasteryLedger
	unlocks  *UnlockRegistry
	factory  *Factory
	pool     *PoolManager
	upgrades *UpgradeOptionGenerator
}

// coinWallet adapts a player's coin balance to the Wallet interface.
// Only used while the player's mutex is held.
type coinWallet struct {
	p *playerState
}

func (w coinWallet) Balance() int     { return w.p.coins }
func (w coinWallet) Debit(amount int) { w.p.coins -= amount }

// Engine owns all player sessions and routes resource-engine commands
// to the right player's managers.
type Engine struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	catalog *Catalog
	tuning  Tuning
	players map[string]*playerState
	notify  NotificationHandler
}

// NewEngine creates an engine over the given catalog.
func NewEngine(catalog *Catalog, tuning Tuning, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tuning.HandLimit <= 0 {
		tuning.HandLimit = DefaultHandLimit
	}
	if tuning.StarterCopies <= 0 {
		tuning.StarterCopies = 1
	}
	return &Engine{
		logger:  logger,
		catalog: catalog,
		tuning:  tuning,
		players: make(map[string]*playerState),
	}
}

// SetNotificationHandler installs the handler that receives every
// domain event. Must be set before players are added.
func (e *Engine) SetNotificationHandler(h NotificationHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notify = h
}

// AddPlayer registers a player of the given class and fills their bag
// with the class's starter gems, shuffled. A zero seed draws one from
// the system entropy source.
func (e *Engine) AddPlayer(playerID, classID string, seed int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.players[playerID]; exists {
		return fmt.Errorf("%w: %s", ErrPlayerExists, playerID)
	}

	p, err := e.newPlayerState(playerID, classID, seed)
	if err != nil {
		return err
	}

	for _, tmpl := range e.catalog.StarterTemplates(classID) {
		for i := 0; i < e.tuning.StarterCopies; i++ {
			inst, err := p.factory.CreateInstance(tmpl.ID, "")
			if err != nil {
				return fmt.Errorf("build starter bag: %w", err)
			}
			p.pool.AddToBag(inst)
		}
	}
	p.pool.ShuffleBag()

	e.players[playerID] = p
	e.logger.Info("player registered",
		zap.String("player_id", playerID),
		zap.String("class_id", classID),
		zap.Int("bag_size", p.pool.BagCount()),
	)
	return nil
}

func (e *Engine) newPlayerState(playerID, classID string, seed int64) (*playerState, error) {
	if seed == 0 {
		var err error
		seed, err = rng.NewSeed()
		if err != nil {
			return nil, fmt.Errorf("seed player rng: %w", err)
		}
	}

	bus := events.NewBus()
	bus.Subscribe(func(evt events.Event) {
		if evt.PlayerID == "" {
			evt.PlayerID = playerID
		}
		e.mu.RLock()
		notify := e.notify
		e.mu.RUnlock()
		if notify != nil {
			notify(evt)
		}
	})

	src := rng.NewSeeded(seed)
	ledger := NewMasteryLedger(e.catalog, e.tuning.MasteryStep, e.tuning.MasteryCap, bus, e.logger)
	factory := NewFactory(e.catalog, ledger, e.logger)
	unlocks := NewUnlockRegistry(e.catalog, bus, e.logger)
	pool := NewPoolManager(playerID, e.tuning.HandLimit, src, ledger, bus, e.logger)

	return &playerState{
		playerID: playerID,
		classID:  classID,
		stamina:  e.tuning.StartingStamina,
		coins:    e.tuning.StartingCoins,
		bus:      bus,
		src:      src,
		ledger:   ledger,
		unlocks:  unlocks,
		factory:  factory,
		pool:     pool,
		upgrades: NewUpgradeOptionGenerator(e.catalog, factory, unlocks),
	}, nil
}

func (e *Engine) player(playerID string) (*playerState, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	return p, nil
}

// Draw moves up to n gems from the player's bag into their hand.
func (e *Engine) Draw(playerID string, n int) ([]*GemInstance, error) {
	p, err := e.player(playerID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool.Draw(n), nil
}

// Play plays the selected hand gems against the player's stamina.
func (e *Engine) Play(playerID string, selectedIDs []string) ([]PlayResult, error) {
	p, err := e.player(playerID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool.Play(selectedIDs, p.stamina, func(cost int) {
		p.stamina -= cost
	})
}

// Discard moves the selected hand gems to the player's discard pile.
func (e *Engine) Discard(playerID string, selectedIDs []string) ([]*GemInstance, error) {
	p, err := e.player(playerID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pool.Discard(selectedIDs), nil
}

// Recycle shuffles the player's discard pile back into their bag.
func (e *Engine) Recycle(playerID string) error {
	p, err := e.player(playerID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pool.Recycle()
	return nil
}

// ResetForNewPeriod merges the player's non-hand zones into a fresh bag
// and restores stamina for the new period.
func (e *Engine) ResetForNewPeriod(playerID string) error {
	p, err := e.player(playerID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pool.ResetForNewPeriod()
	p.stamina = e.tuning.StartingStamina
	return nil
}

// UpgradeOptions returns the ordered upgrade candidates for a gem
// currently in the player's hand.
func (e *Engine) UpgradeOptions(playerID, handInstanceID string) ([]UpgradeOption, error) {
	p, err := e.player(playerID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var target *GemInstance
	for _, inst := range p.pool.Hand() {
		if inst.InstanceID == handInstanceID {
			target = inst
			break
		}
	}
	if target == nil {
		return nil, ErrNotInHand
	}
	return p.upgrades.OptionsFor(target, p.classID)
}

// CommitUpgrade replaces a hand gem with a freshly built instance of
// the chosen template and augmentation.
func (e *Engine) CommitUpgrade(playerID, handInstanceID, templateID, augmentationID string) (*GemInstance, error) {
	p, err := e.player(playerID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	replacement, err := p.factory.CreateInstance(templateID, augmentationID)
	if err != nil {
		return nil, err
	}
	if err := p.pool.ReplaceInHand(handInstanceID, replacement); err != nil {
		return nil, err
	}
	return replacement, nil
}

// Unlock permanently unlocks a template for the player's class, debiting
// cost from their coin balance.
func (e *Engine) Unlock(playerID, templateID string, cost int) error {
	p, err := e.player(playerID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.unlocks.Unlock(templateID, p.classID, cost, coinWallet{p: p})
}

// Mastery returns the player's current mastery for a template.
func (e *Engine) Mastery(playerID, templateID string) (int, error) {
	p, err := e.player(playerID)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ledger.Mastery(templateID), nil
}

// GrantCoins credits the player's coin balance.
func (e *Engine) GrantCoins(playerID string, amount int) error {
	p, err := e.player(playerID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.coins += amount
	return nil
}

// GrantStamina credits the player's stamina budget.
func (e *Engine) GrantStamina(playerID string, amount int) error {
	p, err := e.player(playerID)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stamina += amount
	return nil
}

// Snapshot exports the player's complete persistable state.
func (e *Engine) Snapshot(playerID string) (*PlayerSnapshot, error) {
	p, err := e.player(playerID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return &PlayerSnapshot{
		PlayerID:  p.playerID,
		ClassID:   p.classID,
		Stamina:   p.stamina,
		Coins:     p.coins,
		Zones:     p.pool.Snapshot(),
		Mastery:   p.ledger.Export(),
		Unlocks:   p.unlocks.Export(),
		CreatedAt: time.Now(),
	}, nil
}

// RestoreSnapshot registers (or replaces) a player from a persisted
// snapshot. A zero seed draws one from the system entropy source.
func (e *Engine) RestoreSnapshot(snap *PlayerSnapshot, seed int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, err := e.newPlayerState(snap.PlayerID, snap.ClassID, seed)
	if err != nil {
		return err
	}
	if err := p.pool.Restore(snap.Zones); err != nil {
		return fmt.Errorf("restore zones: %w", err)
	}
	p.ledger.Import(snap.Mastery)
	p.unlocks.Import(snap.Unlocks)
	p.stamina = snap.Stamina
	p.coins = snap.Coins

	e.players[snap.PlayerID] = p
	e.logger.Info("player restored from snapshot",
		zap.String("player_id", snap.PlayerID),
		zap.String("class_id", snap.ClassID),
	)
	return nil
}
