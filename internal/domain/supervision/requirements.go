package supervision

import (
	"time"

	"employeehub/internal/domain/compliance"
)

// DefaultRequiredCount applies to months no version covers.
const DefaultRequiredCount = 1

// RequiredCountFor picks the latest version whose EffectiveFrom is on or
// before the first day of month. versions may be in any order.
func RequiredCountFor(versions []RequirementVersion, month compliance.Period) int {
	start := month.Start()
	var (
		best  time.Time
		count = DefaultRequiredCount
		found bool
	)
	for _, v := range versions {
		eff := compliance.Date(v.EffectiveFrom)
		if eff.After(start) {
			continue
		}
		if !found || eff.After(best) {
			best, count, found = eff, v.RequiredCount, true
		}
	}
	return count
}

// FirstGovernedPeriod is the first month whose lookup resolves to a version
// effective from eff. A version starting mid-month governs from the next one.
func FirstGovernedPeriod(eff time.Time) compliance.Period {
	eff = compliance.Date(eff)
	p := compliance.PeriodOf(eff)
	if eff.Day() == 1 {
		return p
	}
	return p.AddMonths(1)
}
