package pricing

import (
	"fmt"
	"strings"
)

// Tier is a freshness class. Lower values are fresher.
type Tier int

const (
	TierFast Tier = iota
	TierHourly
	TierDaily
)

// Tiers lists every tier from freshest to coarsest.
var Tiers = []Tier{TierFast, TierHourly, TierDaily}

func (t Tier) String() string {
	switch t {
	case TierFast:
		return "fast"
	case TierHourly:
		return "hourly"
	case TierDaily:
		return "daily"
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// MarshalText encodes the tier by name, also as a JSON map key.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name.
func (t *Tier) UnmarshalText(b []byte) error {
	parsed, ok := ParseTier(string(b))
	if !ok {
		return fmt.Errorf("unknown tier %q", string(b))
	}
	*t = parsed
	return nil
}

// ParseTier parses a tier name.
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast":
		return TierFast, true
	case "hourly":
		return TierHourly, true
	case "daily":
		return TierDaily, true
	}
	return 0, false
}

// Privilege levels as issued by the auth gateway.
const (
	PrivilegePremium = "premium"
	PrivilegeMember  = "member"
)

// TierForPrivilege returns the freshest tier a caller may read.
func TierForPrivilege(privilege string) Tier {
	switch strings.ToLower(strings.TrimSpace(privilege)) {
	case PrivilegePremium:
		return TierFast
	case PrivilegeMember:
		return TierHourly
	default:
		return TierDaily
	}
}

// CanRead reports whether a caller with the given privilege may read tier t.
// Coarser tiers are always readable.
func CanRead(privilege string, t Tier) bool {
	return t >= TierForPrivilege(privilege)
}
