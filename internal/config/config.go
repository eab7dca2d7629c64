package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Paul-Berdier/123PandaRoux/internal/preprocessing"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// MappingEntry is one category and its code. Mappings are lists rather than
// maps so that keys keep their case through viper.
type MappingEntry struct {
	Value string `mapstructure:"value" yaml:"value"`
	Code  int    `mapstructure:"code" yaml:"code"`
}

type Paths struct {
	RawData   string `mapstructure:"raw_data" yaml:"raw_data"`
	DataDir   string `mapstructure:"data_dir" yaml:"data_dir"`
	DocsDir   string `mapstructure:"docs_dir" yaml:"docs_dir"`
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir"`
}

// Columns names the columns with a fixed role in the pipeline.
type Columns struct {
	Target   string `mapstructure:"target" yaml:"target"`
	Date     string `mapstructure:"date" yaml:"date"`
	Zone     string `mapstructure:"zone" yaml:"zone"`
	Humidity string `mapstructure:"humidity" yaml:"humidity"`
}

type Mappings struct {
	Catastrophe []MappingEntry `mapstructure:"catastrophe" yaml:"catastrophe"`
	Zone        []MappingEntry `mapstructure:"zone" yaml:"zone"`
}

// Profile is a named feature set. Outputs of a profile carry its suffix.
type Profile struct {
	Name                 string   `mapstructure:"name" yaml:"name"`
	Suffix               string   `mapstructure:"suffix" yaml:"suffix"`
	Features             []string `mapstructure:"features" yaml:"features"`
	CorrelationThreshold *float64 `mapstructure:"correlation_threshold" yaml:"correlation_threshold"`
	Standardize          bool     `mapstructure:"standardize" yaml:"standardize"`
}

type Search struct {
	Trials        int           `mapstructure:"trials" yaml:"trials"`
	Seed          int64         `mapstructure:"seed" yaml:"seed"`
	Sampler       string        `mapstructure:"sampler" yaml:"sampler"`
	StartupTrials int           `mapstructure:"startup_trials" yaml:"startup_trials"`
	Workers       int           `mapstructure:"workers" yaml:"workers"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	TestSize      float64       `mapstructure:"test_size" yaml:"test_size"`
}

type Render struct {
	Enabled bool    `mapstructure:"enabled" yaml:"enabled"`
	Width   float64 `mapstructure:"width" yaml:"width"`
	Height  float64 `mapstructure:"height" yaml:"height"`
}

type Logging struct {
	Level       string   `mapstructure:"level" yaml:"level"`
	Encoding    string   `mapstructure:"encoding" yaml:"encoding"`
	Development bool     `mapstructure:"development" yaml:"development"`
	OutputPaths []string `mapstructure:"output_paths" yaml:"output_paths"`
}

type Metrics struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

type Config struct {
	Paths         Paths     `mapstructure:"paths" yaml:"paths"`
	Columns       Columns   `mapstructure:"columns" yaml:"columns"`
	Mappings      Mappings  `mapstructure:"mappings" yaml:"mappings"`
	Profiles      []Profile `mapstructure:"profiles" yaml:"profiles"`
	IsolationSeed int64     `mapstructure:"isolation_seed" yaml:"isolation_seed"`
	Search        Search    `mapstructure:"search" yaml:"search"`
	Render        Render    `mapstructure:"render" yaml:"render"`
	Logging       Logging   `mapstructure:"logging" yaml:"logging"`
	Metrics       Metrics   `mapstructure:"metrics" yaml:"metrics"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.raw_data", "data/catastrophes_naturelles.csv")
	v.SetDefault("paths.data_dir", "data")
	v.SetDefault("paths.docs_dir", "docs")
	v.SetDefault("paths.models_dir", "models")

	v.SetDefault("columns.target", "catastrophe")
	v.SetDefault("columns.date", "date")
	v.SetDefault("columns.zone", "quartier")
	v.SetDefault("columns.humidity", "humidite")

	v.SetDefault("mappings.catastrophe", []map[string]any{
		{"value": "aucun", "code": 0},
		{"value": "[seisme]", "code": 1},
		{"value": "[innondation]", "code": 2},
		{"value": "[innondation; seisme]", "code": 3},
	})
	v.SetDefault("mappings.zone", []map[string]any{
		{"value": "Zone 1", "code": 1},
		{"value": "Zone 2", "code": 3},
		{"value": "Zone 3", "code": 4},
		{"value": "Zone 4", "code": 2},
		{"value": "Zone 5", "code": 5},
	})
	v.SetDefault("profiles", []map[string]any{
		{
			"name":                  "full",
			"suffix":                "",
			"features":              []string{"date", "quartier", "humidite", "sismicite", "catastrophe"},
			"correlation_threshold": 0.1,
		},
		{
			"name":                  "iot",
			"suffix":                "_iot",
			"features":              []string{"date", "humidite", "sismicite", "catastrophe"},
			"correlation_threshold": 0.05,
		},
	})

	v.SetDefault("isolation_seed", 42)

	v.SetDefault("search.trials", 100)
	v.SetDefault("search.seed", 42)
	v.SetDefault("search.sampler", "tpe")
	v.SetDefault("search.startup_trials", 10)
	v.SetDefault("search.workers", 1)
	v.SetDefault("search.timeout", 0)
	v.SetDefault("search.test_size", 0.2)

	v.SetDefault("render.enabled", true)
	v.SetDefault("render.width", 6)
	v.SetDefault("render.height", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.output_paths", []string{"stderr"})

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.textfile", "")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Sprintf("default configuration does not decode: %v", err))
	}
	return &c
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. A missing cfgFile is an error;
// when cfgFile is empty ./catnat.yaml is read if present.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATNAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("catnat")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes c as YAML to path.
func Save(c *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func (c *Config) Validate() error {
	if c.Paths.RawData == "" {
		return invalid("paths.raw_data is empty")
	}
	if c.Columns.Target == "" {
		return invalid("columns.target is empty")
	}
	if len(c.Profiles) == 0 {
		return invalid("no profiles configured")
	}

	seen := make(map[string]bool)
	for i, p := range c.Profiles {
		if p.Name == "" {
			return invalid("profiles[%d] has no name", i)
		}
		if seen[p.Name] {
			return invalid("profile %q is defined twice", p.Name)
		}
		seen[p.Name] = true
		if len(p.Features) == 0 {
			return invalid("profile %q has no features", p.Name)
		}
		if !contains(p.Features, c.Columns.Target) {
			return invalid("profile %q does not keep target column %q", p.Name, c.Columns.Target)
		}
		if p.CorrelationThreshold == nil {
			return invalid("profile %q: correlation_threshold is required", p.Name)
		}
		if t := *p.CorrelationThreshold; t < 0 || t >= 1 {
			return invalid("profile %q: correlation_threshold must be in [0, 1), got %g", p.Name, t)
		}
	}

	for name, entries := range map[string][]MappingEntry{
		"catastrophe": c.Mappings.Catastrophe,
		"zone":        c.Mappings.Zone,
	} {
		values := make(map[string]bool)
		for _, e := range entries {
			if values[e.Value] {
				return invalid("mapping %s lists %q twice", name, e.Value)
			}
			values[e.Value] = true
		}
	}

	s := c.Search
	if s.Trials < 1 {
		return invalid("search.trials must be >= 1, got %d", s.Trials)
	}
	if s.Workers < 1 {
		return invalid("search.workers must be >= 1, got %d", s.Workers)
	}
	if s.Timeout < 0 {
		return invalid("search.timeout must not be negative")
	}
	if s.TestSize <= 0 || s.TestSize >= 1 {
		return invalid("search.test_size must be in (0, 1), got %g", s.TestSize)
	}
	switch s.Sampler {
	case "", "tpe", "random":
	default:
		return invalid("unknown search.sampler %q", s.Sampler)
	}
	return nil
}

// Profile returns the profile named name.
func (c *Config) Profile(name string) (Profile, error) {
	for _, p := range c.Profiles {
		if p.Name == name {
			return p, nil
		}
	}
	return Profile{}, invalid("unknown profile %q", name)
}

func (c *Config) ProfileNames() []string {
	names := make([]string, len(c.Profiles))
	for i, p := range c.Profiles {
		names[i] = p.Name
	}
	return names
}

// Threshold is the profile's correlation threshold. Validate guarantees it
// is set.
func (p Profile) Threshold() float64 {
	if p.CorrelationThreshold == nil {
		return 0
	}
	return *p.CorrelationThreshold
}

// ToMapping converts entries to a lookup table.
func ToMapping(entries []MappingEntry) preprocessing.Mapping {
	m := make(preprocessing.Mapping, len(entries))
	for _, e := range entries {
		m[e.Value] = e.Code
	}
	return m
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
