package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
accounts:
  Management: "111111111111"
  Audit: "222222222222"
permission_sets:
  S3FullAccess:
    arn: arn:aws:sso:::permissionSet/ssoins-1/ps-s3
    risk: LOW
  EmergencyAdmin:
    arn: arn:aws:sso:::permissionSet/ssoins-1/ps-admin
    risk: HIGH
`

func writeCatalog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jit-catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	t.Setenv("CATALOG_FILE", writeCatalog(t, testCatalog))
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("ENV", "")
	t.Setenv("MAX_DURATION_MINUTES", "")
	t.Setenv("SCHEDULE_GROUP", "")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "default", cfg.ScheduleGroup)
	assert.Equal(t, 60, cfg.MaxDurationMinutes)
	assert.Equal(t, 30, cfg.PollMaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.NotEmpty(t, cfg.Warnings) // missing AWS identifiers warn in dev
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	t.Setenv("CATALOG_FILE", writeCatalog(t, testCatalog))
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("DYNAMODB_TABLE", "jit-requests")
	t.Setenv("IDENTITY_CENTER_INSTANCE_ARN", "arn:aws:sso:::instance/ssoins-1")
	t.Setenv("IDENTITY_STORE_ID", "d-9067")
	t.Setenv("REVOKE_TARGET_ARN", "arn:aws:lambda:us-east-1:1:function:jit-revoke")
	t.Setenv("MAX_DURATION_MINUTES", "45")
	t.Setenv("POLL_INTERVAL", "500ms")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "jit-requests", cfg.TableName)
	assert.Equal(t, 45, cfg.MaxDurationMinutes)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)

	acct, ok := cfg.Catalog.AccountID("Management")
	require.True(t, ok)
	assert.Equal(t, "111111111111", acct)

	ps, ok := cfg.Catalog.PermissionSet("EmergencyAdmin")
	require.True(t, ok)
	assert.Equal(t, "HIGH", ps.Risk)
}

func TestLoadFromEnv_InvalidMaxDuration(t *testing.T) {
	t.Setenv("CATALOG_FILE", writeCatalog(t, testCatalog))
	t.Setenv("MAX_DURATION_MINUTES", "zero")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_DURATION_MINUTES")
}

func TestLoadFromEnv_ProductionRequiresAWSWiring(t *testing.T) {
	t.Setenv("CATALOG_FILE", writeCatalog(t, testCatalog))
	t.Setenv("ENV", "production")
	t.Setenv("AWS_REGION", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production")
}

func TestLoadFromEnv_ProductionRejectsCORSWildcard(t *testing.T) {
	t.Setenv("CATALOG_FILE", writeCatalog(t, testCatalog))
	t.Setenv("ENV", "production")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("DYNAMODB_TABLE", "jit-requests")
	t.Setenv("IDENTITY_CENTER_INSTANCE_ARN", "arn:aws:sso:::instance/ssoins-1")
	t.Setenv("IDENTITY_STORE_ID", "d-9067")
	t.Setenv("REVOKE_TARGET_ARN", "arn:aws:lambda:us-east-1:1:function:jit-revoke")
	t.Setenv("SCHEDULER_ROLE_ARN", "arn:aws:iam::1:role/jit-scheduler")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CORS")
}

func TestLoadCatalog_MissingARN(t *testing.T) {
	path := writeCatalog(t, `
accounts:
  Management: "111111111111"
permission_sets:
  Broken:
    risk: LOW
`)
	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no arn")
}

func TestLoadCatalog_InvalidRisk(t *testing.T) {
	path := writeCatalog(t, `
accounts:
  Management: "111111111111"
permission_sets:
  Broken:
    arn: arn:aws:sso:::permissionSet/ssoins-1/ps-x
    risk: MEDIUM
`)
	_, err := LoadCatalog(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid risk")
}

func TestCatalog_Names(t *testing.T) {
	path := writeCatalog(t, testCatalog)
	cat, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Audit", "Management"}, cat.AccountNames())
	assert.Equal(t, []string{"EmergencyAdmin", "S3FullAccess"}, cat.PermissionSetNames())
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nJIT_TEST_KEY=\"quoted value\"\n\nJIT_TEST_OTHER=plain\n"), 0o600))
	t.Setenv("JIT_TEST_KEY", "")
	t.Setenv("JIT_TEST_OTHER", "")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "quoted value", os.Getenv("JIT_TEST_KEY"))
	assert.Equal(t, "plain", os.Getenv("JIT_TEST_OTHER"))
}

func TestLoadDotEnv_Missing(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "nope.env")))
}
