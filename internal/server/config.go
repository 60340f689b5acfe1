package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config represents the complete server configuration.
type Config struct {
	Server    *ServerSettings    `hcl:"server,block"`
	Broadcast *BroadcastSettings `hcl:"broadcast,block"`
}

// ServerSettings contains listener-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// BroadcastSettings tunes the WebSocket broadcast feed.
type BroadcastSettings struct {
	// SendBuffer is the per-subscriber outbound queue; a subscriber that
	// falls this far behind is dropped.
	SendBuffer int `hcl:"send_buffer,optional"`
	// PingSeconds is the keepalive ping interval.
	PingSeconds int `hcl:"ping_seconds,optional"`
	// AllowedOrigins restricts WebSocket upgrades; empty allows any origin.
	AllowedOrigins []string `hcl:"allowed_origins,optional"`
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Broadcast: &BroadcastSettings{
			SendBuffer:  64,
			PingSeconds: 30,
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to defaults
// when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	// Apply defaults for missing values and blocks
	if config.Server == nil {
		config.Server = &ServerSettings{}
	}
	if config.Broadcast == nil {
		config.Broadcast = &BroadcastSettings{}
	}
	if config.Server.Address == "" {
		config.Server.Address = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
	if config.Broadcast.SendBuffer == 0 {
		config.Broadcast.SendBuffer = 64
	}
	if config.Broadcast.PingSeconds == 0 {
		config.Broadcast.PingSeconds = 30
	}

	return &config, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Broadcast.SendBuffer < 1 {
		return fmt.Errorf("send_buffer must be positive, got %d", c.Broadcast.SendBuffer)
	}
	if c.Broadcast.PingSeconds < 1 {
		return fmt.Errorf("ping_seconds must be positive, got %d", c.Broadcast.PingSeconds)
	}
	return nil
}

// Addr returns the full listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// PingPeriod returns the keepalive interval as a duration.
func (c *Config) PingPeriod() time.Duration {
	return time.Duration(c.Broadcast.PingSeconds) * time.Second
}
