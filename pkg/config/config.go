// Package config loads the service settings from an optional YAML file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable pointing at the settings file.
const EnvConfigPath = "HUMANBROWSE_CONFIG"

// Policy configures the domain allow/denylist.
type Policy struct {
	Mode    string   `yaml:"mode"`
	Domains []string `yaml:"domains"`
}

// Settings holds every tunable of the service. Zero values are replaced by
// defaults in Default().
type Settings struct {
	CDPPort      int  `yaml:"cdp_port"`
	CDPAllowNAT  bool `yaml:"cdp_allow_nat"`
	CDPTimeoutMS int  `yaml:"cdp_timeout_ms"`

	StepTimeoutMS            int `yaml:"step_timeout_ms"`
	MaxStepsPerRun           int `yaml:"max_steps_per_run"`
	MaxTotalRuntimeS         int `yaml:"max_total_runtime_s"`
	MinDelayMSBetweenActions int `yaml:"min_delay_ms_between_actions"`

	MaxExtractChars     int  `yaml:"max_extract_chars"`
	CaptureHTMLSnapshot bool `yaml:"capture_html_snapshot"`

	RunsDir string `yaml:"runs_dir"`
	Policy  Policy `yaml:"policy"`

	// RedisAddr enables the Redis session-status store when non-empty.
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// Default returns the settings used when no file is provided.
func Default() Settings {
	return Settings{
		CDPPort:                  9222,
		CDPTimeoutMS:             5000,
		StepTimeoutMS:            30000,
		MaxStepsPerRun:           50,
		MaxTotalRuntimeS:         120,
		MinDelayMSBetweenActions: 250,
		MaxExtractChars:          20000,
		RunsDir:                  "runs",
		Policy:                   Policy{Mode: "denylist"},
	}
}

// Load reads settings from path. A missing path (or a path that does not
// exist) yields the defaults; a malformed file is an error.
func Load(path string) (Settings, error) {
	settings := Default()
	if path == "" {
		return settings, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse config: %w", err)
	}
	return applyDefaults(settings), nil
}

// FromEnv loads settings from the file named by HUMANBROWSE_CONFIG.
func FromEnv() (Settings, error) {
	return Load(os.Getenv(EnvConfigPath))
}

func applyDefaults(s Settings) Settings {
	def := Default()
	if s.CDPPort == 0 {
		s.CDPPort = def.CDPPort
	}
	if s.CDPTimeoutMS == 0 {
		s.CDPTimeoutMS = def.CDPTimeoutMS
	}
	if s.StepTimeoutMS == 0 {
		s.StepTimeoutMS = def.StepTimeoutMS
	}
	if s.RunsDir == "" {
		s.RunsDir = def.RunsDir
	}
	if s.Policy.Mode == "" {
		s.Policy.Mode = def.Policy.Mode
	}
	return s
}
