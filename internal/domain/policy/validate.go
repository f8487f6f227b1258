package policy

import (
	"strings"
	"time"

	"github.com/Sentinel-Gate/accessgate/internal/domain/fault"
)

// Validate checks the request attributes evaluation depends on.
// Action is optional.
func (r AccessRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.UserID) == "" {
		missing = append(missing, "userId")
	}
	if strings.TrimSpace(r.UserRole) == "" {
		missing = append(missing, "userRole")
	}
	if r.DeviceTrustLevel == "" {
		missing = append(missing, "deviceTrustLevel")
	}
	if strings.TrimSpace(r.Country) == "" {
		missing = append(missing, "country")
	}
	if strings.TrimSpace(r.Resource) == "" {
		missing = append(missing, "resource")
	}
	if len(missing) > 0 {
		return fault.Validation("missing required fields: %s", strings.Join(missing, ", "))
	}
	if !r.DeviceTrustLevel.Valid() {
		return fault.Validation("invalid deviceTrustLevel %q", r.DeviceTrustLevel)
	}
	return nil
}

// Validate checks a policy before it is written.
func (p *Policy) Validate() error {
	if p.OrgID.IsZero() {
		return fault.Validation("orgId is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fault.Validation("name is required")
	}
	if !p.Effect.Valid() {
		return fault.Validation("effect must be ALLOW or DENY, got %q", p.Effect)
	}
	for _, lvl := range p.Conditions.DeviceTrustLevels {
		if !lvl.Valid() {
			return fault.Validation("invalid device trust level %q", lvl)
		}
	}
	if tw := p.Conditions.TimeWindow; tw != nil {
		if !isClock(tw.Start) || !isClock(tw.End) {
			return fault.Validation("timeWindow start and end must be HH:mm, got %q-%q", tw.Start, tw.End)
		}
		if tw.Timezone != "" {
			if _, err := time.LoadLocation(tw.Timezone); err != nil {
				return fault.Validation("unknown timezone %q", tw.Timezone)
			}
		}
	}
	return nil
}

// isClock reports whether s is a zero-padded 24h "HH:mm" value.
func isClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse("15:04", s)
	return err == nil
}
