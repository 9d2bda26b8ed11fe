package config

import (
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/integrail/gsearch/pkg/llm"
)

type Config struct {
	ApiKey         string        `env:"GEMINI_API_KEY" json:"-" yaml:"-"`
	Url            string        `env:"GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta" json:"url" yaml:"url"`
	Model          string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash-preview-05-20" json:"model" yaml:"model"`
	MaxAttempts    int           `env:"GEMINI_MAX_ATTEMPTS" envDefault:"3" json:"maxAttempts" yaml:"maxAttempts"`
	RetryBaseDelay time.Duration `env:"GEMINI_RETRY_BASE_DELAY" envDefault:"1s" json:"retryBaseDelay" yaml:"retryBaseDelay"`
	RequestTimeout time.Duration `env:"GEMINI_REQUEST_TIMEOUT" envDefault:"120s" json:"requestTimeout" yaml:"requestTimeout"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info" json:"logLevel" yaml:"logLevel"`
	LogFile        string        `env:"LOG_FILE" json:"logFile" yaml:"logFile"`             // where logs go, defaults depend on the command
	MetricsAddr    string        `env:"METRICS_ADDR" json:"metricsAddr" yaml:"metricsAddr"` // serve prometheus metrics on this address when set
}

// Load reads the optional dotenv files (missing files are skipped) and parses the environment.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return Config{}, errors.Wrapf(err, "failed to load env file %q", file)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse environment")
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ApiKey == "" {
		return errors.Errorf("api key is not set (use --key or GEMINI_API_KEY)")
	}
	if u, err := url.Parse(c.Url); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("invalid base url %q", c.Url)
	}
	if c.Model == "" {
		return errors.Errorf("model is not specified")
	}
	if c.MaxAttempts < 1 {
		return errors.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RetryBaseDelay < 0 || c.RequestTimeout < 0 {
		return errors.Errorf("delays must not be negative")
	}
	return nil
}

// GenerateDefaults are the per-request settings every submission starts from.
func (c Config) GenerateDefaults() llm.GenerateRequest {
	return llm.GenerateRequest{
		Model:         c.Model,
		MaxAttempts:   c.MaxAttempts,
		RetryCooldown: c.RetryBaseDelay,
	}
}
