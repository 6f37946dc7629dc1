// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.parley/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Server: listen address, rate limiting, proxy trust, CORS
//   - Attachments: upload staging directory
//   - Citations: external document-repository link base
//   - Models: the model catalog (see models.go), loaded separately so a
//     catalog change is picked up per lookup without a process restart
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidAddr indicates the listen address is empty or malformed.
	ErrInvalidAddr = errors.New("invalid listen address")

	// ErrInvalidRepositoryBase indicates the document-repository link base
	// cannot be parsed as an absolute URL.
	ErrInvalidRepositoryBase = errors.New("invalid repository link base")
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:3400"

	// DefaultRepositoryLinkBase is the fixed document-repository path used to
	// synthesize links for file citations. The trailing slash matters: the
	// percent-encoded file name is appended verbatim.
	DefaultRepositoryLinkBase = "https://docs.example.com/sites/assistant/Shared%20Documents/"

	// DefaultTemperature is the initial sampling temperature for new sessions.
	DefaultTemperature = 0.7
)

// DefaultInstructions is the system prompt applied to new sessions until the
// client overrides it through the settings endpoint.
const DefaultInstructions = `
You are Parley, an advanced conversational AI assistant designed to support internal employees.
Your primary role is to provide accurate, timely, and relevant information, support productivity tasks, and enhance the overall efficiency of day-to-day operations.

### Personality Traits
- Professional: Maintain a formal and respectful tone.
- Knowledgeable: Provide accurate and up-to-date information on policies, procedures, and internal guidelines.
- Supportive: Offer assistance and solutions to employees' queries and tasks.
- Efficient: Deliver concise and clear responses to ensure quick and effective communication.

### Safety Guidelines
- Confidentiality: Ensure the privacy and security of sensitive information. Do not share confidential data outside the scope of internal operations.
- Accuracy: Provide correct and verified information. If unsure, indicate the need for further verification or direct the employee to the appropriate department.
- Transparency: Inform employees if a request exceeds your capabilities. Maintain a respectful and professional demeanor.

### Interaction Style
- Formal and Respectful: Use language that reflects a professional environment.
- Concise and Clear: Ensure responses are straightforward and easy to understand.
- Helpful and Supportive: Aim to assist employees in resolving their queries and completing tasks efficiently.
`

// Config stores application configuration.
type Config struct {
	// Server configuration
	Addr        string   `mapstructure:"addr" json:"addr"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`

	// Attachment staging directory for uploaded files.
	UploadDir string `mapstructure:"upload_dir" json:"upload_dir"`

	// RepositoryLinkBase is the external document-repository base path used
	// when rendering file citations. Override via REPOSITORY_LINK_BASE.
	RepositoryLinkBase string `mapstructure:"repository_link_base" json:"repository_link_base"`

	// CatalogPath is the model catalog file consulted when the LLM_CONFIG
	// environment variable is unset or unparsable.
	CatalogPath string `mapstructure:"catalog_path" json:"catalog_path"`

	// Debug enables debug-level logging.
	Debug bool `mapstructure:"debug" json:"debug"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".parley")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("rate_burst", 60)
	v.SetDefault("trust_proxy", false)
	v.SetDefault("cors_origins", []string{"http://localhost:4200"})
	v.SetDefault("upload_dir", filepath.Join(os.TempDir(), "parley-uploads"))
	v.SetDefault("repository_link_base", DefaultRepositoryLinkBase)
	v.SetDefault("catalog_path", filepath.Join("llm_config", "llm_config.json"))
	v.SetDefault("debug", false)
}

// bindEnvVariables binds environment overrides explicitly.
// NOTE: LLM_CONFIG is read by the catalog loader (models.go), not via Viper,
// so a catalog change takes effect on the next lookup.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a programming error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "PARLEY_ADDR")
	mustBind("rate_burst", "PARLEY_RATE_BURST")
	mustBind("trust_proxy", "PARLEY_TRUST_PROXY")
	mustBind("cors_origins", "PARLEY_CORS_ORIGINS")
	mustBind("upload_dir", "PARLEY_UPLOAD_DIR")
	mustBind("repository_link_base", "REPOSITORY_LINK_BASE")
	mustBind("catalog_path", "PARLEY_CATALOG_PATH")
	mustBind("debug", "PARLEY_DEBUG")
}

// Validate performs fail-fast checks on loaded values.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return ErrInvalidAddr
	}
	if c.RepositoryLinkBase == "" {
		return ErrInvalidRepositoryBase
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 60
	}
	return nil
}
