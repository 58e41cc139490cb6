package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

const fileMode = 0o600

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds every tasktrack setting.
type Config struct {
	BaseURL         string `yaml:"base_url"`
	SessionCookie   string `yaml:"session_cookie,omitempty"`
	RequestTimeout  string `yaml:"request_timeout"`
	SearchDebounce  string `yaml:"search_debounce"`
	DisplayTimezone string `yaml:"display_timezone"`
	LogLevel        string `yaml:"log_level"`
	LogJSON         bool   `yaml:"log_json,omitempty"`
	LogFile         string `yaml:"log_file,omitempty"`
	JournalPath     string `yaml:"journal_path,omitempty"`
	MetricsAddr     string `yaml:"metrics_addr,omitempty"`

	// path is the file the config was read from, "" when none existed.
	path string `yaml:"-"`
}

// NewDefault creates a Config with default values.
func NewDefault() *Config {
	return &Config{
		BaseURL:         DefaultBaseURL,
		RequestTimeout:  DefaultRequestTimeout,
		SearchDebounce:  DefaultSearchDebounce,
		DisplayTimezone: DefaultDisplayTimezone,
		LogLevel:        DefaultLogLevel,
	}
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// DefaultPath returns $XDG_CONFIG_HOME/tasktrack/config.yaml.
func DefaultPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppDir, ConfigFileName), nil
}

// Load reads the config file at path (the default location when empty), then
// .env in the working directory, then TASKTRACK_* variables. A missing default
// file is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolving config path: %w", err)
		}
		path = p
	}

	cfg := NewDefault()
	data, err := os.ReadFile(path) //nolint:gosec // user supplied config path
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
		cfg.path = path
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path with owner-only permissions, since it may
// hold a session cookie.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(path, data, fileMode)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"BASE_URL":         &c.BaseURL,
		"SESSION_COOKIE":   &c.SessionCookie,
		"REQUEST_TIMEOUT":  &c.RequestTimeout,
		"SEARCH_DEBOUNCE":  &c.SearchDebounce,
		"DISPLAY_TIMEZONE": &c.DisplayTimezone,
		"LOG_LEVEL":        &c.LogLevel,
		"LOG_FILE":         &c.LogFile,
		"JOURNAL_PATH":     &c.JournalPath,
		"METRICS_ADDR":     &c.MetricsAddr,
	}
	for name, dst := range str {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	if v, ok := lookup(EnvPrefix + "LOG_JSON"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %sLOG_JSON %q is not a boolean", ErrInvalid, EnvPrefix, v)
		}
		c.LogJSON = b
	}
	return nil
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: base_url %q must be an http(s) URL", ErrInvalid, c.BaseURL)
	}
	if _, err := parsePositive("request_timeout", c.RequestTimeout); err != nil {
		return err
	}
	if _, err := parsePositive("search_debounce", c.SearchDebounce); err != nil {
		return err
	}
	if _, err := ParseZone(c.DisplayTimezone); err != nil {
		return fmt.Errorf("%w: display_timezone: %w", ErrInvalid, err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log_level %q must be debug, info, warn or error", ErrInvalid, c.LogLevel)
	}
	return nil
}

func parsePositive(key, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q: %w", ErrInvalid, key, s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %s must be positive", ErrInvalid, key)
	}
	return d, nil
}

// Timeout returns request_timeout as a duration.
func (c *Config) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultRequestTimeout)
	}
	return d
}

// Debounce returns search_debounce as a duration.
func (c *Config) Debounce() time.Duration {
	d, err := time.ParseDuration(c.SearchDebounce)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultSearchDebounce)
	}
	return d
}

// Location returns the display zone, falling back to the default offset.
func (c *Config) Location() *time.Location {
	loc, err := ParseZone(c.DisplayTimezone)
	if err != nil {
		loc, _ = ParseZone(DefaultDisplayTimezone)
	}
	return loc
}

// ParseZone accepts "UTC", "Local", an IANA name such as "Asia/Shanghai", or a
// fixed offset "+08:00" / "-0530".
func ParseZone(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, "utc") || s == "Z":
		return time.UTC, nil
	case strings.EqualFold(s, "local"):
		return time.Local, nil
	case s[0] == '+' || s[0] == '-':
		return parseOffset(s)
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q", s)
	}
	return loc, nil
}

func parseOffset(s string) (*time.Location, error) {
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	body := strings.ReplaceAll(s[1:], ":", "")
	if len(body) == 2 {
		body += "00"
	}
	if len(body) != 4 {
		return nil, fmt.Errorf("invalid offset %q", s)
	}
	h, errH := strconv.Atoi(body[:2])
	m, errM := strconv.Atoi(body[2:])
	if errH != nil || errM != nil || h > 14 || m > 59 {
		return nil, fmt.Errorf("invalid offset %q", s)
	}
	secs := sign * (h*3600 + m*60)
	name := fmt.Sprintf("UTC%c%02d:%02d", s[0], h, m)
	return time.FixedZone(name, secs), nil
}
