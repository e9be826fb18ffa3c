package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/norasector/irdecode/pkg/ir"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Tolerance          int                 `yaml:"tolerance"`
	MarkExcess         int                 `yaml:"mark_excess"`
	Strict             bool                `yaml:"strict"`
	RawTick            uint32              `yaml:"raw_tick"`
	TimeoutUS          uint32              `yaml:"timeout_us"`
	LogLevel           string              `yaml:"log_level"`
	Protocols          []Protocol          `yaml:"protocols"`
	Inputs             Inputs              `yaml:"inputs"`
	UDPListen          string              `yaml:"udp_listen"`
	OutputDestinations []OutputDestination `yaml:"output_destinations"`
	StorePath          string              `yaml:"store_path"`
	VizServer          struct {
		Port    int  `yaml:"port"`
		Enabled bool `yaml:"enabled"`
	} `yaml:"viz_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Token        string `yaml:"token"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`

	filepath string
}

// Protocol overrides the dispatch options of one decoder. Unset fields
// fall back to the top level settings.
type Protocol struct {
	Name    string `yaml:"name"`
	Bits    int    `yaml:"bits"`
	Strict  *bool  `yaml:"strict,omitempty"`
	Enabled *bool  `yaml:"enabled,omitempty"`
}

type Inputs struct {
	Files       []string      `yaml:"files,flow"`
	ReplayDelay time.Duration `yaml:"replay_delay"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

func NewDefaultConfig() *Config {
	c := &Config{
		Tolerance:  DefaultTolerance,
		MarkExcess: DefaultMarkExcess,
		Strict:     true,
		RawTick:    DefaultRawTick,
		LogLevel:   DefaultLogLevel,
		Inputs: Inputs{
			ReplayDelay: DefaultReplayDelay,
		},
		StorePath: DefaultStorePath,
		filepath:  DefaultConfigFile,
	}
	c.VizServer.Port = DefaultVizPort
	return c
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	c := NewDefaultConfig()
	c.filepath = path

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("error unmarshaling %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) SetPath(path string) {
	c.filepath = path
}

// Persist writes the config to its path, refusing to replace an existing
// file unless overwrite is set.
func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(c.filepath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(c.filepath, data, 0644)
}

func (c *Config) Validate() error {
	if c.Tolerance < 0 || c.Tolerance > 100 {
		return ErrInvalid{Field: "tolerance", Reason: "must be between 0 and 100"}
	}
	if c.VizServer.Port < 0 || c.VizServer.Port > 65535 {
		return ErrInvalid{Field: "viz_server.port", Reason: "out of range"}
	}
	for _, dest := range c.OutputDestinations {
		if dest.Host == "" || dest.Port <= 0 {
			return ErrInvalid{Field: "output_destinations", Reason: fmt.Sprintf("bad destination %s:%d", dest.Host, dest.Port)}
		}
	}
	seen := make(map[ir.Protocol]struct{})
	for _, p := range c.Protocols {
		proto, err := ir.ParseProtocol(p.Name)
		if err != nil {
			return ErrInvalid{Field: "protocols", Reason: err.Error()}
		}
		if _, ok := seen[proto]; ok {
			return ErrInvalid{Field: "protocols", Reason: fmt.Sprintf("%s listed twice", proto)}
		}
		seen[proto] = struct{}{}
		if p.Bits < 0 {
			return ErrInvalid{Field: "protocols", Reason: fmt.Sprintf("%s has negative bits", proto)}
		}
	}
	return nil
}

// DecodeOptions are the options every protocol starts from.
func (c *Config) DecodeOptions() ir.Options {
	return ir.Options{
		Strict:     c.Strict,
		Tolerance:  c.Tolerance,
		MarkExcess: c.MarkExcess,
	}
}

// Apply pushes the per-protocol overrides into reg.
func (c *Config) Apply(reg *ir.Registry) error {
	for _, p := range c.Protocols {
		proto, err := ir.ParseProtocol(p.Name)
		if err != nil {
			return err
		}
		opts := c.DecodeOptions()
		opts.Bits = p.Bits
		if p.Strict != nil {
			opts.Strict = *p.Strict
		}
		enabled := p.Enabled == nil || *p.Enabled
		if err := reg.Configure(proto, opts, enabled); err != nil {
			return err
		}
	}
	return nil
}

// NewCapture wraps entries with the configured tick and timeout.
func (c *Config) NewCapture(entries []uint32) *ir.Capture {
	tick := c.RawTick
	if tick == 0 {
		tick = DefaultRawTick
	}
	return &ir.Capture{
		Entries:     entries,
		StartOffset: ir.StartOffset,
		Tick:        tick,
		Timeout:     c.TimeoutUS,
	}
}
