// Package policy derives risk tiers for requested capabilities. It is a
// pure mapping over the configured catalog: no I/O, no side effects.
package policy

import (
	"strings"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/config"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

// RiskPolicy maps capability names to risk tiers.
type RiskPolicy struct {
	catalog *config.Catalog
}

// New builds a RiskPolicy over the given catalog.
func New(catalog *config.Catalog) *RiskPolicy {
	return &RiskPolicy{catalog: catalog}
}

// RiskFor returns the risk tier of a capability. Unknown capabilities
// return false.
func (p *RiskPolicy) RiskFor(capabilityName string) (domain.RiskTier, bool) {
	ps, ok := p.catalog.PermissionSet(capabilityName)
	if !ok {
		return "", false
	}
	if strings.EqualFold(ps.Risk, string(domain.RiskHigh)) {
		return domain.RiskHigh, true
	}
	return domain.RiskLow, true
}

// RequiresApproval reports whether a tier needs a manual approval gate.
func RequiresApproval(tier domain.RiskTier) bool {
	return tier == domain.RiskHigh
}
