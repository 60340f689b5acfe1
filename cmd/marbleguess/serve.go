package main

import (
	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/marbleguess/cmd/marbleguess/shared"
	"github.com/lox/marbleguess/internal/server"
)

// ServeCmd contains server configuration
type ServeCmd struct {
	Config  string `kong:"default='marbleguess.hcl',help='Path to HCL config file'"`
	Address string `kong:"help='Listen address, overrides config'"`
	Port    int    `kong:"help='Listen port, overrides config'"`
	Debug   bool   `kong:"help='Enable debug logging'"`
}

func (c *ServeCmd) Run() error {
	logger := shared.SetupLogger(c.Debug)

	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}
	if c.Address != "" {
		cfg.Server.Address = c.Address
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The --debug flag wins over the configured level.
	if !c.Debug {
		if lvl, err := log.ParseLevel(cfg.Server.LogLevel); err == nil {
			logger.SetLevel(lvl)
		}
	}

	logger.Info("starting marbleguess",
		"addr", cfg.Addr(),
		"send_buffer", cfg.Broadcast.SendBuffer,
		"ping_seconds", cfg.Broadcast.PingSeconds,
		"version", version,
	)

	ctx := shared.SetupSignalHandlerWithLogger(logger)

	s := server.NewServer(cfg, logger, quartz.NewReal())
	return s.Start(ctx)
}
