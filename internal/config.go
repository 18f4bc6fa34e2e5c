package internal

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Source modes.
const (
	SourceModeQuartzy = "quartzy"
	SourceModeFile    = "file"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Source  SourceConfig      `yaml:"source"`
	Quartzy QuartzyConfig     `yaml:"quartzy"`
	Lint    LintConfig        `yaml:"lint"`
	Output  OutputConfig      `yaml:"output"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if c.Source.Mode == SourceModeQuartzy {
		if err := c.Quartzy.Validate(); err != nil {
			return fmt.Errorf("quartzy: %w", err)
		}
	}
	if err := c.Lint.Validate(); err != nil {
		return fmt.Errorf("lint: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := c.SQLite.Validate(); err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig is where `serve` listens. An empty Host binds every interface.
type HTTPConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns the listen address in host:port form.
func (c *HTTPConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate checks the port range and that the shutdown timeout is positive.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Host, is.Host.Error("must be a host name or IP address")),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.ShutdownTimeout, validation.Required, validation.Min(time.Second)),
	)
}

// SourceConfig selects where raw records come from. In file mode Path
// points at a YAML or JSON dump with users and plasmids.
type SourceConfig struct {
	Mode string `yaml:"mode"`
	Path string `yaml:"path"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(SourceModeQuartzy, SourceModeFile)),
		validation.Field(&c.Path, validation.When(c.Mode == SourceModeFile, validation.Required)),
	)
}

// QuartzyConfig holds the upstream inventory service settings.
type QuartzyConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIURL       string        `yaml:"api_url"`
	GroupID      string        `yaml:"group_id"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	PageSize     int           `yaml:"page_size"`
	RequestDelay time.Duration `yaml:"request_delay"`
}

// Validate validates the Quartzy configuration.
func (c *QuartzyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.APIURL, validation.Required, is.URL),
		validation.Field(&c.GroupID, validation.Required),
		validation.Field(&c.Username, validation.Required),
		validation.Field(&c.Password, validation.Required),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1), validation.Max(500)),
		validation.Field(&c.RequestDelay, validation.Min(time.Duration(0))),
	)
}

// LintConfig holds the rule settings and the fallback owner.
type LintConfig struct {
	DefaultOwnerID        string   `yaml:"default_owner_id"`
	Vendor                string   `yaml:"vendor"`
	MapOptOut             string   `yaml:"map_opt_out"`
	DeprecatedResistances []string `yaml:"deprecated_resistances"`
}

// Validate validates the lint configuration.
func (c *LintConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DefaultOwnerID, validation.Required),
	)
}

// Options converts the configuration into linter options.
func (c *LintConfig) Options() plasmid.LintOptions {
	return plasmid.LintOptions{
		Vendor:                c.Vendor,
		MapOptOut:             c.MapOptOut,
		DeprecatedResistances: c.DeprecatedResistances,
	}
}

// OutputConfig holds the rendered documentation tree location.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the output configuration.
func (c *OutputConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// SQLiteConfig holds the build snapshot database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a Config with the lab's defaults. Credentials and
// the fallback owner come from QUARTZY_USERNAME, QUARTZY_PASSWORD and
// QUARTZY_DEFAULT_OWNER_ID unless the config file overrides them.
func NewDefaultConfig() *Config {
	lint := plasmid.DefaultLintOptions()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port:            8080,
				ShutdownTimeout: 10 * time.Second,
			},
		},
		Source: SourceConfig{
			Mode: SourceModeQuartzy,
		},
		Quartzy: QuartzyConfig{
			BaseURL:      "https://app.quartzy.com",
			APIURL:       "https://io.quartzy.com",
			GroupID:      "190392",
			Username:     os.Getenv("QUARTZY_USERNAME"),
			Password:     os.Getenv("QUARTZY_PASSWORD"),
			PageSize:     100,
			RequestDelay: 100 * time.Millisecond,
		},
		Lint: LintConfig{
			DefaultOwnerID:        os.Getenv("QUARTZY_DEFAULT_OWNER_ID"),
			Vendor:                lint.Vendor,
			MapOptOut:             lint.MapOptOut,
			DeprecatedResistances: lint.DeprecatedResistances,
		},
		Output: OutputConfig{
			Dir: "./docs",
		},
		SQLite: SQLiteConfig{
			Path: "./plasmiddb.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
