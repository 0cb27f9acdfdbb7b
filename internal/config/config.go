// Package config loads the probe configuration.
//
// The file is YAML, by default /etc/ceph-check/config.yaml. Every field is
// optional; missing values keep their defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"ceph-check/internal/fetch"
	"ceph-check/internal/logs"
	"ceph-check/internal/precheck"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "/etc/ceph-check/config.yaml"

// FetchPolicy controls how the report is acquired.
type FetchPolicy struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	// Schedule holds the per-attempt timeouts, longest first. Each one is
	// also the pause after that attempt fails.
	Schedule   []time.Duration `yaml:"schedule"`
	ReportDir  string          `yaml:"report_dir"`
	KeepReport bool            `yaml:"keep_report"`
	// WaitDelay bounds how long a killed command may hold its pipes open.
	WaitDelay time.Duration `yaml:"wait_delay"`
}

// OutputPolicy controls how diagnostics are presented.
type OutputPolicy struct {
	Format     string `yaml:"format"`
	FailOnWarn bool   `yaml:"fail_on_warn"`
}

// ServePolicy controls serve mode.
type ServePolicy struct {
	Addr            string        `yaml:"addr"`
	JanitorInterval time.Duration `yaml:"janitor_interval"`
	ReportMaxAge    time.Duration `yaml:"report_max_age"`
}

type Config struct {
	Fetch    FetchPolicy     `yaml:"fetch"`
	Precheck precheck.Config `yaml:"precheck"`
	Log      logs.Config     `yaml:"log"`
	Output   OutputPolicy    `yaml:"output"`
	Serve    ServePolicy     `yaml:"serve"`
}

func Default() Config {
	cmd := fetch.DefaultCommand()
	return Config{
		Fetch: FetchPolicy{
			Command:   cmd.Path,
			Args:      cmd.Args,
			Schedule:  fetch.DefaultSchedule().Durations(),
			ReportDir: os.TempDir(),
			WaitDelay: 2 * time.Second,
		},
		Precheck: precheck.DefaultConfig(),
		Log:      logs.DefaultConfig(),
		Output: OutputPolicy{
			Format: "text",
		},
		Serve: ServePolicy{
			Addr:            "127.0.0.1:9283",
			JanitorInterval: 10 * time.Minute,
			ReportMaxAge:    24 * time.Hour,
		},
	}
}

// Load reads path over the defaults. A missing file is an error unless
// optional is set, in which case the defaults are returned.
func Load(path string, optional bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Fetch.Command) == "" {
		return errors.New("fetch.command must not be empty")
	}
	if _, err := fetch.NewSchedule(c.Fetch.Schedule...); err != nil {
		return fmt.Errorf("fetch.schedule: %w", err)
	}
	if c.Fetch.WaitDelay < 0 {
		return errors.New("fetch.wait_delay must not be negative")
	}
	switch c.Output.Format {
	case "text", "json":
	default:
		return fmt.Errorf("output.format %q: want text or json", c.Output.Format)
	}
	if _, err := logs.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Serve.JanitorInterval <= 0 {
		return errors.New("serve.janitor_interval must be positive")
	}
	if c.Serve.ReportMaxAge <= 0 {
		return errors.New("serve.report_max_age must be positive")
	}
	return nil
}

// Schedule builds the fetch schedule. Call Validate first.
func (c *Config) Schedule() (fetch.Schedule, error) {
	return fetch.NewSchedule(c.Fetch.Schedule...)
}

// FetchConfig translates the fetch policy for fetch.NewFetcher. extraArgs
// are appended to the configured arguments.
func (c *Config) FetchConfig(extraArgs ...string) (fetch.Config, error) {
	schedule, err := c.Schedule()
	if err != nil {
		return fetch.Config{}, err
	}
	args := append(append([]string{}, c.Fetch.Args...), extraArgs...)

	out := fetch.DefaultConfig()
	out.Command = fetch.Command{Path: c.Fetch.Command, Args: args}
	out.Schedule = schedule
	out.Dir = c.Fetch.ReportDir
	return out, nil
}
