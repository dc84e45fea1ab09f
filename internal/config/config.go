// Package config loads server runtime configuration from YAML, in the
// shape of the teacher's client-side JSON config loader adapted to the
// server's concerns (listen address, capability toggles, log level, event
// store retention) and to YAML, the format the rest of the example pack
// standardizes on for server-side configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/localrivet/gomcp/protocol"
)

// Config is the top-level server configuration document.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Events  EventsConfig  `yaml:"events"`
}

type ServerConfig struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	Instructions string `yaml:"instructions"`
	ListenAddr   string `yaml:"listenAddr"`

	Capabilities CapabilitiesConfig `yaml:"capabilities"`

	DNSRebindingProtection DNSRebindingConfig `yaml:"dnsRebindingProtection"`
}

// DNSRebindingConfig gates the Streamable HTTP transport's Host/Origin
// checks. Disabled by default since it is only meaningful once the server
// is reachable from more than localhost.
type DNSRebindingConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedHosts   []string `yaml:"allowedHosts"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// CapabilitiesConfig turns capability groups on or off before a Server is
// constructed; a disabled group is never advertised in InitializeResult
// and every method it would have gated is rejected outright.
type CapabilitiesConfig struct {
	Tools       ListChangedConfig  `yaml:"tools"`
	Prompts     ListChangedConfig  `yaml:"prompts"`
	Resources   ResourcesConfig    `yaml:"resources"`
	Logging     bool               `yaml:"logging"`
	Completions bool               `yaml:"completions"`
}

type ListChangedConfig struct {
	Enabled     bool `yaml:"enabled"`
	ListChanged bool `yaml:"listChanged"`
}

type ResourcesConfig struct {
	Enabled     bool `yaml:"enabled"`
	Subscribe   bool `yaml:"subscribe"`
	ListChanged bool `yaml:"listChanged"`
}

type LoggingConfig struct {
	Level protocol.LoggingLevel `yaml:"level"`
}

// EventsConfig holds settings for the Streamable HTTP resumability event
// store. Nothing reads these fields: the HTTP handler always uses an
// in-memory store that keeps the last 256 events per stream, with no
// time-based retention.
type EventsConfig struct {
	Retention time.Duration `yaml:"retention"`
	MaxEvents int           `yaml:"maxEvents"`
}

// Default returns a permissive configuration with every capability
// except completions enabled, suitable for local development and as the
// base tests start from.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Name:       "mcp-server",
			Version:    "0.1.0",
			ListenAddr: ":8080",
			Capabilities: CapabilitiesConfig{
				Tools:     ListChangedConfig{Enabled: true, ListChanged: true},
				Prompts:   ListChangedConfig{Enabled: true, ListChanged: true},
				Resources: ResourcesConfig{Enabled: true, Subscribe: true, ListChanged: true},
				Logging:   true,
			},
		},
		Logging: LoggingConfig{Level: protocol.LogInfo},
		Events:  EventsConfig{MaxEvents: 10000},
	}
}

// Load reads and parses a YAML configuration file, applying it on top of
// Default so a config that only overrides a few fields doesn't have to
// restate the rest.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ToServerCapabilities builds the protocol.ServerCapabilities advertised
// during initialize from the enabled capability groups.
func (c CapabilitiesConfig) ToServerCapabilities() protocol.ServerCapabilities {
	caps := protocol.ServerCapabilities{}
	if c.Tools.Enabled {
		caps.Tools = &protocol.ListChangedCapability{ListChanged: c.Tools.ListChanged}
	}
	if c.Prompts.Enabled {
		caps.Prompts = &protocol.ListChangedCapability{ListChanged: c.Prompts.ListChanged}
	}
	if c.Resources.Enabled {
		caps.Resources = &protocol.ResourcesCapability{Subscribe: c.Resources.Subscribe, ListChanged: c.Resources.ListChanged}
	}
	if c.Logging {
		caps.Logging = map[string]interface{}{}
	}
	if c.Completions {
		caps.Completions = map[string]interface{}{}
	}
	return caps
}
