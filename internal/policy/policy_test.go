package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/config"
	"github.com/felix-codexyz/just-in-time-aws-access-management/internal/domain"
)

func testPolicy() *RiskPolicy {
	return New(&config.Catalog{
		Accounts: map[string]string{"Management": "111111111111"},
		PermissionSets: map[string]config.Capability{
			"S3FullAccess":   {ARN: "arn:aws:sso:::permissionSet/ssoins-1/ps-s3", Risk: "LOW"},
			"EmergencyAdmin": {ARN: "arn:aws:sso:::permissionSet/ssoins-1/ps-admin", Risk: "high"},
		},
	})
}

func TestRiskFor_Low(t *testing.T) {
	tier, ok := testPolicy().RiskFor("S3FullAccess")
	require.True(t, ok)
	assert.Equal(t, domain.RiskLow, tier)
	assert.False(t, RequiresApproval(tier))
}

func TestRiskFor_HighCaseInsensitive(t *testing.T) {
	tier, ok := testPolicy().RiskFor("EmergencyAdmin")
	require.True(t, ok)
	assert.Equal(t, domain.RiskHigh, tier)
	assert.True(t, RequiresApproval(tier))
}

func TestRiskFor_Unknown(t *testing.T) {
	_, ok := testPolicy().RiskFor("DatabaseAdmin")
	assert.False(t, ok)
}
