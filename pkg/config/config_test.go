package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/glycowatch/backend/pkg/secrets"
)

func clearAdvisorEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("RISKBOARD_ADVISOR_APIKEY", "")
}

func TestLoadDefaults(t *testing.T) {
	keyring.MockInit()
	clearAdvisorEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.5, cfg.Risk.Threshold)
	assert.Equal(t, ProviderGemini, cfg.Advisor.Provider)
	assert.Equal(t, "xgb_model.json", cfg.Assets.Model)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Advisor.HasCredential())
	assert.Equal(t, geminiBaseURL, cfg.Advisor.ResolvedBaseURL())
	assert.Equal(t, "riskboard", cfg.Logging.Service)
}

func TestLoadEnvOverrides(t *testing.T) {
	keyring.MockInit()
	clearAdvisorEnv(t)
	t.Setenv("RISKBOARD_SERVER_PORT", "9090")
	t.Setenv("RISKBOARD_RISK_THRESHOLD", "0.65")
	t.Setenv("RISKBOARD_ASSETS_DIR", "/opt/models")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.65, cfg.Risk.Threshold)
	assert.Equal(t, filepath.Join("/opt/models", "scaler.json"), cfg.Assets.ScalerPath())
}

func TestLoadGoogleAPIKeyFallback(t *testing.T) {
	keyring.MockInit()
	clearAdvisorEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "google-key", cfg.Advisor.APIKey)

	t.Setenv("RISKBOARD_ADVISOR_APIKEY", "primary-key")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "primary-key", cfg.Advisor.APIKey)
}

func TestLoadKeyringFallback(t *testing.T) {
	keyring.MockInit()
	clearAdvisorEnv(t)
	require.NoError(t, secrets.SetAdvisorKey("from-keyring"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", cfg.Advisor.APIKey)

	t.Setenv("RISKBOARD_ADVISOR_USEKEYRING", "false")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Advisor.APIKey)
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	keyring.MockInit()
	clearAdvisorEnv(t)
	t.Setenv("RISKBOARD_RISK_THRESHOLD", "1.5")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	keyring.MockInit()
	clearAdvisorEnv(t)
	t.Setenv("RISKBOARD_ADVISOR_PROVIDER", "palm")

	_, err := Load()
	assert.Error(t, err)
}

func TestResolvedBaseURL(t *testing.T) {
	assert.Equal(t, "", AdvisorConfig{Provider: ProviderOpenAI}.ResolvedBaseURL())
	assert.Equal(t, "http://local/v1", AdvisorConfig{Provider: ProviderGemini, BaseURL: "http://local/v1"}.ResolvedBaseURL())
}

func TestAssetsPathResolution(t *testing.T) {
	c := AssetsConfig{Dir: "models", Model: "/abs/model.json", Schema: "cols.csv"}
	assert.Equal(t, "/abs/model.json", c.ModelPath())
	assert.Equal(t, filepath.Join("models", "cols.csv"), c.SchemaPath())
}

func TestServerOrigins(t *testing.T) {
	c := ServerConfig{AllowedOrigins: " https://a.example , ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Origins())
	assert.Empty(t, ServerConfig{}.Origins())
}
