package config

const (
	ReasonIllness = "illness"
	ReasonOther   = "other"
)

// Features is the capability set navigation and guards consult. It is built
// once at startup and passed explicitly; nothing reads feature flags from the
// environment at request time.
type Features struct {
	reasons        map[string]bool
	illnessEnabled bool
}

func NewFeatures(enabledReasons []string, illnessFlag bool) Features {
	reasons := make(map[string]bool, len(enabledReasons))
	for _, reason := range enabledReasons {
		reasons[reason] = true
	}
	return Features{reasons: reasons, illnessEnabled: illnessFlag}
}

// ReasonEnabled reports whether a reason type may be chosen.
func (f Features) ReasonEnabled(reason string) bool {
	if reason == ReasonIllness {
		return f.IllnessEnabled()
	}
	return f.reasons[reason]
}

// EnabledReasons lists the reasons that may be chosen, illness first.
func (f Features) EnabledReasons() []string {
	var reasons []string
	for _, reason := range []string{ReasonIllness, ReasonOther} {
		if f.ReasonEnabled(reason) {
			reasons = append(reasons, reason)
		}
	}
	return reasons
}

// ReasonChoice reports whether more than one reason is on offer, so the user
// has to pick one.
func (f Features) ReasonChoice() bool {
	return len(f.EnabledReasons()) > 1
}

// IllnessEnabled requires both the reason list entry and the illness flag.
func (f Features) IllnessEnabled() bool {
	return f.illnessEnabled && f.reasons[ReasonIllness]
}
