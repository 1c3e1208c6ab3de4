package gem

// UpgradeKind classifies where an upgrade candidate came from.
type UpgradeKind string

const (
	UpgradeAugmentation  UpgradeKind = "augmentation"
	UpgradeClassSpecific UpgradeKind = "classSpecific"
	UpgradeUnlocked      UpgradeKind = "unlocked"
)

// Augmentation IDs the generator offers, in order.
const (
	augPowerful  = "powerful"
	augPiercing  = "piercing"
	augEfficient = "efficient"
	augLasting   = "lasting"
	augSwift     = "swift"
)

// UpgradeOption is one candidate replacement for a hand gem. The
// candidate is a fully built instance; committing it happens through the
// pool manager's replace-in-hand operation, never here.
type UpgradeOption struct {
	Candidate *GemInstance
	Kind      UpgradeKind
}

// UpgradeOptionGenerator produces candidate replacements for hand gems.
// It reads catalogs and the unlock registry but mutates nothing.
type UpgradeOptionGenerator struct {
	catalog *Catalog
	factory *Factory
	unlocks *UnlockRegistry
}

// NewUpgradeOptionGenerator creates a generator over the given catalog,
// factory, and unlock registry.
func NewUpgradeOptionGenerator(catalog *Catalog, factory *Factory, unlocks *UnlockRegistry) *UpgradeOptionGenerator {
	return &UpgradeOptionGenerator{
		catalog: catalog,
		factory: factory,
		unlocks: unlocks,
	}
}

// OptionsFor returns the ordered upgrade candidates for a hand gem.
// Each condition independently appends zero or one option:
//
//	powerful   always
//	piercing   attack gems
//	efficient  cost above the minimum
//	lasting    gems with a duration
//	swift      gems that do not already draw on play
//	class-specific replacement template for the acting class
//	unlocked advanced template of the same color for the acting class
func (g *UpgradeOptionGenerator) OptionsFor(inst *GemInstance, classID string) ([]UpgradeOption, error) {
	if _, ok := g.catalog.Template(inst.TemplateID); !ok {
		return nil, ErrUnknownTemplate
	}

	var options []UpgradeOption
	appendAug := func(augID string) error {
		candidate, err := g.factory.CreateInstance(inst.TemplateID, augID)
		if err != nil {
			return err
		}
		options = append(options, UpgradeOption{Candidate: candidate, Kind: UpgradeAugmentation})
		return nil
	}

	if err := appendAug(augPowerful); err != nil {
		return nil, err
	}
	if inst.Kind == KindAttack {
		if err := appendAug(augPiercing); err != nil {
			return nil, err
		}
	}
	if inst.Cost > 1 {
		if err := appendAug(augEfficient); err != nil {
			return nil, err
		}
	}
	if inst.HasDuration() {
		if err := appendAug(augLasting); err != nil {
			return nil, err
		}
	}
	if !inst.DrawsOnPlay() {
		if err := appendAug(augSwift); err != nil {
			return nil, err
		}
	}

	if repl, ok := g.catalog.ClassReplacement(inst.TemplateID, classID); ok {
		candidate, err := g.factory.CreateInstance(repl.ID, "")
		if err != nil {
			return nil, err
		}
		options = append(options, UpgradeOption{Candidate: candidate, Kind: UpgradeClassSpecific})
	}

	for _, adv := range g.catalog.AdvancedForClass(classID, inst.Color) {
		if !g.unlocks.IsUnlocked(adv.ID, classID) {
			continue
		}
		candidate, err := g.factory.CreateInstance(adv.ID, "")
		if err != nil {
			return nil, err
		}
		options = append(options, UpgradeOption{Candidate: candidate, Kind: UpgradeUnlocked})
		break
	}

	return options, nil
}
