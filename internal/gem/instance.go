package gem

// GemInstance is a concrete, uniquely identified gem derived from a
// template, optionally composed with one augmentation. Display fields
// and the mastery snapshot are fixed at creation time; later catalog or
// ledger changes never alter an existing instance.
type GemInstance struct {
	InstanceID            string
	TemplateID            string
	Name                  string
	Color                 Color
	Kind                  Kind
	Value                 int
	Cost                  int
	Duration              int // 0 = no duration
	SpecialEffect         string
	DefenseBypass         float64
	AppliedAugmentationID string
	MasterySnapshot       int
	Tooltip               string
}

// HasDuration reports whether the instance carries a lingering duration.
func (g *GemInstance) HasDuration() bool {
	return g.Duration > 0
}

// DrawsOnPlay reports whether playing this gem draws a replacement.
func (g *GemInstance) DrawsOnPlay() bool {
	return g.SpecialEffect == SpecialDrawOnPlay
}

// Copy returns an independent copy of the instance.
func (g *GemInstance) Copy() *GemInstance {
	clone := *g
	return &clone
}
