package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/glycowatch/backend/pkg/logger"
	"github.com/glycowatch/backend/pkg/secrets"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

type Config struct {
	Server    ServerConfig
	Assets    AssetsConfig
	Risk      RiskConfig
	Advisor   AdvisorConfig
	Redis     RedisConfig
	Registry  RegistryConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	Environment  string

	// AllowedOrigins is a comma-separated CORS origin list.
	AllowedOrigins string
}

type AssetsConfig struct {
	Dir       string
	Model     string
	Scaler    string
	Explainer string
	Schema    string
}

type RiskConfig struct {
	Threshold float64
	TopN      int
}

type AdvisorConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
	CacheTTLSec int
	UseKeyring  bool
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type RegistryConfig struct {
	Enabled bool
	Path    string
}

type RateLimitConfig struct {
	AdvisorPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
	Service    string
}

func (c ServerConfig) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func (c ServerConfig) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c AssetsConfig) ModelPath() string     { return c.resolve(c.Model) }
func (c AssetsConfig) ScalerPath() string    { return c.resolve(c.Scaler) }
func (c AssetsConfig) ExplainerPath() string { return c.resolve(c.Explainer) }
func (c AssetsConfig) SchemaPath() string    { return c.resolve(c.Schema) }

func (c AssetsConfig) resolve(name string) string {
	if filepath.IsAbs(name) || c.Dir == "" {
		return name
	}
	return filepath.Join(c.Dir, name)
}

// ResolvedBaseURL returns the OpenAI-compatible endpoint for the provider. An
// empty result means the go-openai default.
func (c AdvisorConfig) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if strings.EqualFold(c.Provider, ProviderGemini) {
		return geminiBaseURL
	}
	return ""
}

func (c AdvisorConfig) HasCredential() bool {
	return strings.TrimSpace(c.APIKey) != ""
}

func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence over it
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/riskboard")

	v.SetEnvPrefix("RISKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.BindEnv("advisor.apiKey", "RISKBOARD_ADVISOR_APIKEY", "GOOGLE_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind advisor key: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !config.Advisor.HasCredential() && config.Advisor.UseKeyring {
		key, err := secrets.GetAdvisorKey()
		switch {
		case err == nil:
			config.Advisor.APIKey = key
		case errors.Is(err, secrets.ErrNotFound):
		default:
			logger.Debug("Keyring lookup failed", zap.Error(err))
		}
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Risk.Threshold <= 0 || c.Risk.Threshold >= 1 {
		return fmt.Errorf("risk.threshold must be in (0, 1), got %v", c.Risk.Threshold)
	}
	switch strings.ToLower(c.Advisor.Provider) {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unsupported advisor.provider %q", c.Advisor.Provider)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.environment", "production")
	v.SetDefault("server.allowedOrigins", "*")

	v.SetDefault("assets.dir", ".")
	v.SetDefault("assets.model", "xgb_model.json")
	v.SetDefault("assets.scaler", "scaler.json")
	v.SetDefault("assets.explainer", "shap_explainer.json")
	v.SetDefault("assets.schema", "training_columns.csv")

	v.SetDefault("risk.threshold", 0.5)
	v.SetDefault("risk.topN", 8)

	v.SetDefault("advisor.provider", ProviderGemini)
	v.SetDefault("advisor.apiKey", "")
	v.SetDefault("advisor.baseURL", "")
	v.SetDefault("advisor.model", "gemini-2.0-flash")
	v.SetDefault("advisor.temperature", 0.4)
	v.SetDefault("advisor.maxTokens", 400)
	v.SetDefault("advisor.timeoutSec", 30)
	v.SetDefault("advisor.cacheTTLSec", 3600)
	v.SetDefault("advisor.useKeyring", true)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("registry.enabled", false)
	v.SetDefault("registry.path", "./data/registry.db")

	v.SetDefault("ratelimit.advisorPerMinute", 20)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")
	v.SetDefault("logging.service", "riskboard")
}
