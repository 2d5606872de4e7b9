package gap

// Focus describes what a remediation module should emphasize for a skill.
type Focus string

const (
	// FocusFundamentals targets skills answered mostly incorrectly.
	FocusFundamentals Focus = "fundamentals"
	// FocusCalibration targets skills where the learner is overconfident
	// relative to observed correctness.
	FocusCalibration Focus = "calibration"
	// FocusReinforcement targets skills with mixed results.
	FocusReinforcement Focus = "reinforcement"
)

// Module is one ordered unit of the remediation plan.
type Module struct {
	SkillID  string  `json:"skill_id"`
	Domain   string  `json:"domain"`
	Priority int     `json:"priority"`
	Focus    Focus   `json:"focus"`
	Severity float64 `json:"severity"`
}

// Plan is the remediation plan consumed by the content-generation stages.
type Plan struct {
	CertificationRef string   `json:"certification_ref"`
	Modules          []Module `json:"modules"`
}

// BuildPlan turns ranked gaps into an ordered remediation plan. Module
// priority follows gap rank (1 is most urgent); focus is derived from how
// the gap was earned.
func BuildPlan(certificationRef string, gaps []SkillGap) *Plan {
	modules := make([]Module, 0, len(gaps))
	for i, g := range gaps {
		modules = append(modules, Module{
			SkillID:  g.SkillID,
			Domain:   g.Domain,
			Priority: i + 1,
			Focus:    focusFor(g),
			Severity: g.Severity,
		})
	}
	return &Plan{CertificationRef: certificationRef, Modules: modules}
}

func focusFor(g SkillGap) Focus {
	switch {
	case g.Severity >= 0.5:
		return FocusFundamentals
	case g.ConfidenceDelta > 0.2:
		return FocusCalibration
	default:
		return FocusReinforcement
	}
}
