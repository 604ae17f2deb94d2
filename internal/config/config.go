package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config models planner.yml.
type Config struct {
	Display struct {
		Theme         string `yaml:"theme"`
		AccentColor   string `yaml:"accent_color"`
		Density       string `yaml:"density"`
		PresenterMode bool   `yaml:"presenter_mode"`
	} `yaml:"display"`
	Tasks struct {
		DefaultPriority   int     `yaml:"default_priority"`
		DefaultEffort     float64 `yaml:"default_effort"`
		DefaultImpact     int     `yaml:"default_impact"`
		DefaultConfidence float64 `yaml:"default_confidence"`
		SoonDays          int     `yaml:"soon_days"`
	} `yaml:"tasks"`
	Time struct {
		Timezone    string  `yaml:"timezone"`
		WeekStart   string  `yaml:"week_start"`
		TargetHours float64 `yaml:"target_hours_per_day"`
	} `yaml:"time"`
	Server struct {
		Addr      string `yaml:"addr"`
		BasePath  string `yaml:"base_path"`
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"server"`
}

// AccentColors are the named presets accepted by `config set accent`.
var AccentColors = map[string]string{
	"blue":   "#4DA3FF",
	"purple": "#8B5CF6",
	"green":  "#4CC38A",
	"orange": "#FB923C",
	"pink":   "#EC4899",
	"teal":   "#14B8A6",
	"red":    "#EF4444",
	"indigo": "#6366F1",
}

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Validate ensures the config values are in range.
func (c *Config) Validate() error {
	switch c.Display.Theme {
	case "dark", "light":
	default:
		return fmt.Errorf("display.theme must be dark or light")
	}
	if !hexColor.MatchString(c.Display.AccentColor) {
		return fmt.Errorf("display.accent_color must be a #RRGGBB color")
	}
	switch c.Display.Density {
	case "comfortable", "compact":
	default:
		return fmt.Errorf("display.density must be comfortable or compact")
	}
	if c.Tasks.DefaultPriority < 1 || c.Tasks.DefaultPriority > 5 {
		return fmt.Errorf("tasks.default_priority must be between 1 and 5")
	}
	if c.Tasks.DefaultImpact < 1 || c.Tasks.DefaultImpact > 5 {
		return fmt.Errorf("tasks.default_impact must be between 1 and 5")
	}
	if c.Tasks.DefaultEffort <= 0 {
		return fmt.Errorf("tasks.default_effort must be positive")
	}
	if c.Tasks.DefaultConfidence < 0 || c.Tasks.DefaultConfidence > 1 {
		return fmt.Errorf("tasks.default_confidence must be between 0 and 1")
	}
	if c.Tasks.SoonDays < 1 {
		return fmt.Errorf("tasks.soon_days must be at least 1")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Time.WeekStart {
	case "sunday", "monday":
	default:
		return fmt.Errorf("time.week_start must be sunday or monday")
	}
	if c.Time.TargetHours <= 0 || c.Time.TargetHours > 24 {
		return fmt.Errorf("time.target_hours_per_day must be in (0,24]")
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("server.base_path must start with /")
	}
	return nil
}

// Location resolves time.timezone; empty means the process local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Time.Timezone == "" || c.Time.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Time.Timezone)
	if err != nil {
		return nil, fmt.Errorf("time.timezone %q: %w", c.Time.Timezone, err)
	}
	return loc, nil
}

// WeekStart returns the configured first day of the week.
func (c *Config) WeekStart() time.Weekday {
	if c.Time.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Set assigns a single setting by its dotted key. Short aliases cover the
// display settings: theme, accent, density, presenter.
func (c *Config) Set(key, value string) error {
	prev := *c
	if err := c.set(key, strings.TrimSpace(value)); err != nil {
		*c = prev
		return err
	}
	return nil
}

func (c *Config) set(key, value string) error {
	switch strings.ToLower(key) {
	case "theme", "display.theme":
		c.Display.Theme = value
	case "accent", "accent_color", "display.accent_color":
		if hex, ok := AccentColors[strings.ToLower(value)]; ok {
			value = hex
		}
		c.Display.AccentColor = value
	case "density", "display.density":
		c.Display.Density = value
	case "presenter", "presenter_mode", "display.presenter_mode":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Display.PresenterMode = b
	case "tasks.default_priority":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Tasks.DefaultPriority = n
	case "tasks.default_impact":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Tasks.DefaultImpact = n
	case "tasks.default_effort":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Tasks.DefaultEffort = f
	case "tasks.default_confidence":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Tasks.DefaultConfidence = f
	case "tasks.soon_days":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Tasks.SoonDays = n
	case "timezone", "time.timezone":
		c.Time.Timezone = value
	case "week_start", "time.week_start":
		c.Time.WeekStart = strings.ToLower(value)
	case "time.target_hours_per_day":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		c.Time.TargetHours = f
	case "server.addr":
		c.Server.Addr = value
	case "server.base_path":
		c.Server.BasePath = value
	case "server.jwt_secret":
		c.Server.JWTSecret = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return c.Validate()
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "planner.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create it with planner config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to Default when the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	cfg, err := Load(workspace)
	if err != nil {
		if _, statErr := os.Stat(Path(workspace)); os.IsNotExist(statErr) {
			return Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to the workspace config file.
func Save(workspace string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(Path(workspace), data, 0o644)
}

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Missing keys
// keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `display:
  theme: dark
  accent_color: "#4DA3FF"
  density: comfortable
  presenter_mode: false

tasks:
  default_priority: 3
  default_effort: 2.5
  default_impact: 3
  default_confidence: 0.7
  soon_days: 7

time:
  timezone: Local
  week_start: monday
  target_hours_per_day: 8

server:
  addr: 127.0.0.1:8080
  base_path: /v0
  jwt_secret: ""
`
