package gem

import (
	"math"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Factory builds gem instances from catalog templates. Composition is
// pure: templates and augmentation definitions are never mutated, and
// every call yields a fresh instance with a never-reused identity.
type Factory struct {
	catalog *Catalog
	ledger  *MasteryLedger
	logger  *zap.Logger
}

// NewFactory creates a factory over the given catalog and ledger.
func NewFactory(catalog *Catalog, ledger *MasteryLedger, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		catalog: catalog,
		ledger:  ledger,
		logger:  logger,
	}
}

// CreateInstance builds a gem instance from templateID, composing the
// optional augmentation (empty string = none). The instance captures the
// ledger's current mastery for the template; it never re-reads it.
func (f *Factory) CreateInstance(templateID, augmentationID string) (*GemInstance, error) {
	tmpl, ok := f.catalog.Template(templateID)
	if !ok {
		return nil, ErrUnknownTemplate
	}

	inst := &GemInstance{
		InstanceID:      uuid.NewString(),
		TemplateID:      tmpl.ID,
		Name:            tmpl.DisplayName,
		Color:           tmpl.Color,
		Kind:            tmpl.Kind,
		Value:           tmpl.BaseValue,
		Cost:            tmpl.BaseCost,
		Duration:        tmpl.BaseDuration,
		SpecialEffect:   tmpl.SpecialEffect,
		MasterySnapshot: f.ledger.Mastery(tmpl.ID),
		Tooltip:         tmpl.Description,
	}

	if augmentationID != "" {
		aug, ok := f.catalog.Augmentation(augmentationID)
		if !ok {
			return nil, ErrUnknownAugmentation
		}
		applyAugmentation(inst, tmpl, aug)
	}

	f.logger.Debug("gem instance created",
		zap.String("instance_id", inst.InstanceID),
		zap.String("template_id", inst.TemplateID),
		zap.String("augmentation_id", augmentationID),
		zap.Int("mastery_snapshot", inst.MasterySnapshot),
	)
	return inst, nil
}

// applyAugmentation composes the augmentation's effect descriptors onto
// the instance. One generic pass handles every augmentation; adding a new
// augmentation requires only a catalog entry.
func applyAugmentation(inst *GemInstance, tmpl GemTemplate, aug AugmentationTemplate) {
	for _, effect := range aug.Effects {
		switch effect.Op {
		case OpMultiplyValue:
			inst.Value = int(math.Floor(float64(inst.Value) * effect.Amount))
		case OpReduceCost:
			reduced := inst.Cost - int(effect.Amount)
			if reduced < 1 {
				reduced = 1
			}
			inst.Cost = reduced
		case OpBypassDefense:
			inst.DefenseBypass = effect.Amount
		case OpGrantDrawOnPlay:
			inst.SpecialEffect = SpecialDrawOnPlay
		case OpBonusDuration:
			// Only gems that already linger can linger longer.
			if tmpl.HasDuration() {
				inst.Duration += int(effect.Amount)
			}
		}
	}

	inst.AppliedAugmentationID = aug.ID
	inst.Name = aug.NamePrefix + tmpl.DisplayName
	inst.Tooltip = strings.TrimSpace(tmpl.Description + " " + aug.Description)
}
