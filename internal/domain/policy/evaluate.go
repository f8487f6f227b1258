package policy

import (
	"slices"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // TimeWindow.Timezone must resolve on hosts without zoneinfo
)

// Evaluate returns the decision for req against policies at instant now.
//
// Policies are ordered by Priority descending with ties kept in the given
// order; the first policy whose conditions all hold decides. When nothing
// matches the result is DENY with no matched policy. Evaluate is pure and
// does not modify policies.
func Evaluate(policies []Policy, req AccessRequest, now time.Time) Result {
	for _, p := range SortByPriority(policies) {
		if Matches(p.Conditions, req, now) {
			return Result{
				Decision:         p.Effect,
				MatchedPolicyIDs: []string{p.ID},
				Reason:           reasonMatchedPrefix + p.Name,
			}
		}
	}
	return Result{
		Decision:         EffectDeny,
		MatchedPolicyIDs: []string{},
		Reason:           ReasonNoMatch,
	}
}

// SortByPriority returns a copy of policies ordered by Priority descending.
// The sort is stable.
func SortByPriority(policies []Policy) []Policy {
	sorted := slices.Clone(policies)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})
	return sorted
}

// Matches reports whether every constrained dimension of c accepts req.
func Matches(c Conditions, req AccessRequest, now time.Time) bool {
	if len(c.Roles) > 0 && !slices.Contains(c.Roles, req.UserRole) {
		return false
	}
	if len(c.DeviceTrustLevels) > 0 && !slices.Contains(c.DeviceTrustLevels, req.DeviceTrustLevel) {
		return false
	}
	if len(c.Countries) > 0 && !slices.Contains(c.Countries, req.Country) {
		return false
	}
	if len(c.Resources) > 0 && !matchResource(c.Resources, req.Resource) {
		return false
	}
	if c.TimeWindow != nil && !c.TimeWindow.Contains(now) {
		return false
	}
	return true
}

func matchResource(patterns []string, resource string) bool {
	for _, p := range patterns {
		if p == "*" || strings.Contains(resource, p) {
			return true
		}
	}
	return false
}

// Contains reports whether now, read on the window's wall clock, falls
// inside [Start, End]. An unknown timezone never matches.
func (w TimeWindow) Contains(now time.Time) bool {
	loc := time.UTC
	if w.Timezone != "" {
		l, err := time.LoadLocation(w.Timezone)
		if err != nil {
			return false
		}
		loc = l
	}
	clock := now.In(loc).Format("15:04")
	return clock >= w.Start && clock <= w.End
}
