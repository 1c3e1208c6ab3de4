package gem

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Color classifies a gem template. Grey gems are global: any class can
// use and unlock them.
type Color string

const (
	ColorRed   Color = "red"
	ColorBlue  Color = "blue"
	ColorGreen Color = "green"
	ColorGrey  Color = "grey"
)

// Kind describes the battle effect category a gem produces when played.
// The battle resolver interprets these; the engine only carries them.
type Kind string

const (
	KindAttack Kind = "attack"
	KindHeal   Kind = "heal"
	KindShield Kind = "shield"
	KindPoison Kind = "poison"
)

// SpecialDrawOnPlay marks a gem that draws a replacement when played.
const SpecialDrawOnPlay = "draw_on_play"

// GemTemplate is a static gem definition. Templates are immutable after
// catalog load; instances derive from them and never write back.
type GemTemplate struct {
	ID            string `yaml:"id"`
	DisplayName   string `yaml:"display_name"`
	Color         Color  `yaml:"color"`
	Kind          Kind   `yaml:"kind"`
	BaseValue     int    `yaml:"base_value"`
	BaseCost      int    `yaml:"base_cost"`
	BaseDuration  int    `yaml:"base_duration,omitempty"` // 0 = no duration
	SpecialEffect string `yaml:"special_effect,omitempty"`
	BaseMastery   int    `yaml:"base_mastery"`
	Description   string `yaml:"description,omitempty"`
	ClassID       string `yaml:"class_id,omitempty"`   // owning class; "" = any
	ReplacesID    string `yaml:"replaces_id,omitempty"` // base template this one upgrades
	Advanced      bool   `yaml:"advanced,omitempty"`    // requires an unlock
	UnlockCost    int    `yaml:"unlock_cost,omitempty"`
}

// HasDuration reports whether the template carries a lingering duration.
func (t GemTemplate) HasDuration() bool {
	return t.BaseDuration > 0
}

// AugmentOp identifies one augmentation effect descriptor.
type AugmentOp string

const (
	OpMultiplyValue   AugmentOp = "multiply_value"
	OpReduceCost      AugmentOp = "reduce_cost"
	OpBypassDefense   AugmentOp = "bypass_defense"
	OpGrantDrawOnPlay AugmentOp = "grant_draw_on_play"
	OpBonusDuration   AugmentOp = "bonus_duration"
)

// AugmentEffect is a single data-driven modifier. The factory applies
// these generically, so new augmentations need catalog entries only.
type AugmentEffect struct {
	Op     AugmentOp `yaml:"op"`
	Amount float64   `yaml:"amount,omitempty"`
}

// AugmentationTemplate is a static modifier definition composed onto a
// gem template at instance creation time.
type AugmentationTemplate struct {
	ID          string          `yaml:"id"`
	NamePrefix  string          `yaml:"name_prefix"`
	BadgeIcon   string          `yaml:"badge_icon,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Effects     []AugmentEffect `yaml:"effects"`
}

// Catalog holds the immutable gem and augmentation template sets.
type Catalog struct {
	templates     map[string]GemTemplate
	augmentations map[string]AugmentationTemplate
}

// NewCatalog builds a catalog from explicit template sets.
func NewCatalog(templates []GemTemplate, augmentations []AugmentationTemplate) (*Catalog, error) {
	c := &Catalog{
		templates:     make(map[string]GemTemplate, len(templates)),
		augmentations: make(map[string]AugmentationTemplate, len(augmentations)),
	}
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("gem template with empty id")
		}
		if _, dup := c.templates[t.ID]; dup {
			return nil, fmt.Errorf("duplicate gem template %q", t.ID)
		}
		if t.BaseMastery < 0 || t.BaseMastery > 100 {
			return nil, fmt.Errorf("gem template %q: base mastery %d out of range", t.ID, t.BaseMastery)
		}
		c.templates[t.ID] = t
	}
	for _, t := range templates {
		if t.ReplacesID != "" {
			if _, ok := c.templates[t.ReplacesID]; !ok {
				return nil, fmt.Errorf("gem template %q replaces unknown template %q", t.ID, t.ReplacesID)
			}
		}
	}
	for _, a := range augmentations {
		if a.ID == "" {
			return nil, fmt.Errorf("augmentation with empty id")
		}
		if _, dup := c.augmentations[a.ID]; dup {
			return nil, fmt.Errorf("duplicate augmentation %q", a.ID)
		}
		for _, e := range a.Effects {
			switch e.Op {
			case OpMultiplyValue, OpReduceCost, OpBypassDefense, OpGrantDrawOnPlay, OpBonusDuration:
			default:
				return nil, fmt.Errorf("augmentation %q: unknown effect op %q", a.ID, e.Op)
			}
		}
		c.augmentations[a.ID] = a
	}
	return c, nil
}

// Load reads gem and augmentation template sets from YAML files.
func Load(gemsPath, augmentationsPath string) (*Catalog, error) {
	gemData, err := os.ReadFile(gemsPath)
	if err != nil {
		return nil, fmt.Errorf("read gem catalog: %w", err)
	}
	var gemFile struct {
		Gems []GemTemplate `yaml:"gems"`
	}
	if err := yaml.Unmarshal(gemData, &gemFile); err != nil {
		return nil, fmt.Errorf("parse gem catalog: %w", err)
	}

	augData, err := os.ReadFile(augmentationsPath)
	if err != nil {
		return nil, fmt.Errorf("read augmentation catalog: %w", err)
	}
	var augFile struct {
		Augmentations []AugmentationTemplate `yaml:"augmentations"`
	}
	if err := yaml.Unmarshal(augData, &augFile); err != nil {
		return nil, fmt.Errorf("parse augmentation catalog: %w", err)
	}

	return NewCatalog(gemFile.Gems, augFile.Augmentations)
}

// Template returns a copy of the template with the given ID.
func (c *Catalog) Template(id string) (GemTemplate, bool) {
	t, ok := c.templates[id]
	return t, ok
}

// Augmentation returns a copy of the augmentation with the given ID.
func (c *Catalog) Augmentation(id string) (AugmentationTemplate, bool) {
	a, ok := c.augmentations[id]
	return a, ok
}

// Templates returns all gem templates sorted by ID.
func (c *Catalog) Templates() []GemTemplate {
	out := make([]GemTemplate, 0, len(c.templates))
	for _, t := range c.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ClassReplacement returns the class-specific replacement for a base
// template, if one exists for the acting class.
func (c *Catalog) ClassReplacement(baseID, classID string) (GemTemplate, bool) {
	var found GemTemplate
	var ok bool
	for _, t := range c.Templates() {
		if t.ReplacesID == baseID && t.ClassID == classID && !t.Advanced {
			found = t
			ok = true
			break
		}
	}
	return found, ok
}

// AdvancedForClass returns advanced templates of the given color that the
// class could unlock, sorted by ID.
func (c *Catalog) AdvancedForClass(classID string, color Color) []GemTemplate {
	var out []GemTemplate
	for _, t := range c.Templates() {
		if !t.Advanced || t.Color != color {
			continue
		}
		if t.Color == ColorGrey || t.ClassID == classID {
			out = append(out, t)
		}
	}
	return out
}

// StarterTemplates returns the non-advanced, non-replacement templates a
// class begins with, sorted by ID.
func (c *Catalog) StarterTemplates(classID string) []GemTemplate {
	var out []GemTemplate
	for _, t := range c.Templates() {
		if t.Advanced || t.ReplacesID != "" {
			continue
		}
		if t.ClassID == "" || t.Color == ColorGrey || t.ClassID == classID {
			out = append(out, t)
		}
	}
	return out
}

// Default returns the compiled-in catalog used when no YAML files are
// configured.
func Default() *Catalog {
	c, err := NewCatalog(defaultGemTemplates(), defaultAugmentations())
	if err != nil {
		// The compiled-in set is validated by tests; a failure here is a
		// programming error.
		panic(err)
	}
	return c
}

func defaultGemTemplates() []GemTemplate {
	return []GemTemplate{
		{
			ID: "ember_shard", DisplayName: "Ember Shard", Color: ColorRed, Kind: KindAttack,
			BaseValue: 10, BaseCost: 2, BaseMastery: 15,
			Description: "Hurls a burning shard at the enemy.",
		},
		{
			ID: "frost_shard", DisplayName: "Frost Shard", Color: ColorBlue, Kind: KindShield,
			BaseValue: 8, BaseCost: 2, BaseMastery: 15,
			Description: "Raises a wall of rime.",
		},
		{
			ID: "verdant_shard", DisplayName: "Verdant Shard", Color: ColorGreen, Kind: KindHeal,
			BaseValue: 8, BaseCost: 2, BaseMastery: 20,
			Description: "Mends wounds with living light.",
		},
		{
			ID: "venom_shard", DisplayName: "Venom Shard", Color: ColorGreen, Kind: KindPoison,
			BaseValue: 4, BaseCost: 1, BaseDuration: 3, BaseMastery: 15,
			Description: "Seeps poison over several turns.",
		},
		{
			ID: "slate_shard", DisplayName: "Slate Shard", Color: ColorGrey, Kind: KindAttack,
			BaseValue: 6, BaseCost: 1, BaseMastery: 25,
			Description: "A blunt but dependable strike.",
		},
		{
			ID: "warrior_edge", DisplayName: "Warrior's Edge", Color: ColorRed, Kind: KindAttack,
			BaseValue: 14, BaseCost: 2, BaseMastery: 15, ClassID: "warrior", ReplacesID: "ember_shard",
			Description: "A disciplined cut honed by battle.",
		},
		{
			ID: "arcane_ward", DisplayName: "Arcane Ward", Color: ColorBlue, Kind: KindShield,
			BaseValue: 12, BaseCost: 2, BaseMastery: 15, ClassID: "mage", ReplacesID: "frost_shard",
			Description: "A shimmering barrier of runes.",
		},
		{
			ID: "wildheart_bloom", DisplayName: "Wildheart Bloom", Color: ColorGreen, Kind: KindHeal,
			BaseValue: 12, BaseCost: 2, BaseMastery: 20, ClassID: "druid", ReplacesID: "verdant_shard",
			Description: "Restores vigor from deep roots.",
		},
		{
			ID: "inferno_core", DisplayName: "Inferno Core", Color: ColorRed, Kind: KindAttack,
			BaseValue: 20, BaseCost: 3, BaseMastery: 15, ClassID: "warrior", Advanced: true, UnlockCost: 100,
			Description: "Unleashes a roaring column of flame.",
		},
		{
			ID: "glacial_core", DisplayName: "Glacial Core", Color: ColorBlue, Kind: KindShield,
			BaseValue: 16, BaseCost: 3, BaseMastery: 15, ClassID: "mage", Advanced: true, UnlockCost: 100,
			Description: "Encases the bearer in ancient ice.",
		},
		{
			ID: "grove_core", DisplayName: "Grove Core", Color: ColorGreen, Kind: KindHeal,
			BaseValue: 16, BaseCost: 3, BaseMastery: 20, ClassID: "druid", Advanced: true, UnlockCost: 100,
			Description: "Channels the heartwood's mending pulse.",
		},
		{
			ID: "toxin_core", DisplayName: "Toxin Core", Color: ColorGreen, Kind: KindPoison,
			BaseValue: 8, BaseCost: 2, BaseDuration: 4, BaseMastery: 15, ClassID: "druid", Advanced: true, UnlockCost: 120,
			Description: "A virulent brew that lingers.",
		},
		{
			ID: "prism_core", DisplayName: "Prism Core", Color: ColorGrey, Kind: KindAttack,
			BaseValue: 12, BaseCost: 2, BaseMastery: 25, Advanced: true, UnlockCost: 150,
			Description: "Refracts force into a piercing beam.",
		},
	}
}

func defaultAugmentations() []AugmentationTemplate {
	return []AugmentationTemplate{
		{
			ID: "powerful", NamePrefix: "Powerful ", BadgeIcon: "badge_power",
			Description: "Increases the gem's value by half.",
			Effects:     []AugmentEffect{{Op: OpMultiplyValue, Amount: 1.5}},
		},
		{
			ID: "piercing", NamePrefix: "Piercing ", BadgeIcon: "badge_pierce",
			Description: "Half of the damage bypasses defenses.",
			Effects:     []AugmentEffect{{Op: OpBypassDefense, Amount: 0.5}},
		},
		{
			ID: "efficient", NamePrefix: "Efficient ", BadgeIcon: "badge_cost",
			Description: "Costs one less stamina to play.",
			Effects:     []AugmentEffect{{Op: OpReduceCost, Amount: 1}},
		},
		{
			ID: "lasting", NamePrefix: "Lasting ", BadgeIcon: "badge_duration",
			Description: "Lingers one extra turn.",
			Effects:     []AugmentEffect{{Op: OpBonusDuration, Amount: 1}},
		},
		{
			ID: "swift", NamePrefix: "Swift ", BadgeIcon: "badge_draw",
			Description: "Draws a replacement gem when played.",
			Effects:     []AugmentEffect{{Op: OpGrantDrawOnPlay}},
		},
	}
}
