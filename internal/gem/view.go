package gem

// GemView is the client-facing shape of a gem instance.
type GemView struct {
	InstanceID    string  `json:"instance_id"`
	TemplateID    string  `json:"template_id"`
	Name          string  `json:"name"`
	Color         string  `json:"color"`
	Kind          string  `json:"kind"`
	Value         int     `json:"value"`
	Cost          int     `json:"cost"`
	Duration      int     `json:"duration,omitempty"`
	SpecialEffect string  `json:"special_effect,omitempty"`
	DefenseBypass float64 `json:"defense_bypass,omitempty"`
	Augmentation  string  `json:"augmentation,omitempty"`
	Mastery       int     `json:"mastery"`
	Tooltip       string  `json:"tooltip,omitempty"`
}

// PlayerView is the client-facing snapshot of a player's resource state.
// Hidden zones are exposed as counts only.
type PlayerView struct {
	PlayerID     string         `json:"player_id"`
	ClassID      string         `json:"class_id"`
	Stamina      int            `json:"stamina"`
	Coins        int            `json:"coins"`
	BagCount     int            `json:"bag_count"`
	DiscardCount int            `json:"discard_count"`
	PlayedCount  int            `json:"played_count"`
	Hand         []GemView      `json:"hand"`
	Mastery      map[string]int `json:"mastery"`
}

// UpgradeOptionView is the client-facing shape of one upgrade candidate.
type UpgradeOptionView struct {
	Candidate GemView `json:"candidate"`
	Kind      string  `json:"kind"`
}

func newGemView(inst *GemInstance) GemView {
	return GemView{
		InstanceID:    inst.InstanceID,
		TemplateID:    inst.TemplateID,
		Name:          inst.Name,
		Color:         string(inst.Color),
		Kind:          string(inst.Kind),
		Value:         inst.Value,
		Cost:          inst.Cost,
		Duration:      inst.Duration,
		SpecialEffect: inst.SpecialEffect,
		DefenseBypass: inst.DefenseBypass,
		Augmentation:  inst.AppliedAugmentationID,
		Mastery:       inst.MasterySnapshot,
		Tooltip:       inst.Tooltip,
	}
}

// NewUpgradeOptionViews converts upgrade options into their view form.
func NewUpgradeOptionViews(options []UpgradeOption) []UpgradeOptionView {
	out := make([]UpgradeOptionView, 0, len(options))
	for _, opt := range options {
		out = append(out, UpgradeOptionView{
			Candidate: newGemView(opt.Candidate),
			Kind:      string(opt.Kind),
		})
	}
	return out
}

// View returns the client-facing state for a player.
func (e *Engine) View(playerID string) (*PlayerView, error) {
	p, err := e.player(playerID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	hand := p.pool.Hand()
	view := &PlayerView{
		PlayerID:     p.playerID,
		ClassID:      p.classID,
		Stamina:      p.stamina,
		Coins:        p.coins,
		BagCount:     p.pool.BagCount(),
		DiscardCount: p.pool.DiscardCount(),
		PlayedCount:  p.pool.PlayedCount(),
		Hand:         make([]GemView, 0, len(hand)),
		Mastery:      p.ledger.Export(),
	}
	for _, inst := range hand {
		view.Hand = append(view.Hand, newGemView(inst))
	}
	return view, nil
}
