// Package app wires configuration, the optional tunnel, the database
// pool, and the MCP server into one lifecycle. Startup failures are
// fatal; once serving, per-call failures stay inside the tool handlers.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"pgscope/internal/config"
	"pgscope/internal/db"
	"pgscope/internal/mcpserver"
	"pgscope/internal/tunnel"
	"pgscope/pkg/logging"
)

const subsystem = "App"

// serverName identifies the MCP server to connected clients.
const serverName = "pgscope"

// Config carries everything the command layer collected.
type Config struct {
	Connection    config.Flags
	Tunnel        config.TunnelSettings
	StructureOnly bool
	Debug         bool
	Version       string
}

// Application owns the running pieces and tears them down together.
type Application struct {
	server *mcpserver.Server
	client *db.Client
	tunnel *tunnel.Tunnel

	teardownOnce sync.Once
}

// NewApplication resolves configuration, opens the tunnel and the pool,
// and builds the MCP server. Every error here aborts startup.
func NewApplication(ctx context.Context, cfg Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	// stdout carries the MCP protocol, so logs go to stderr.
	logging.Init(level, os.Stderr)

	// A .env in the working directory supplies environment fallbacks
	// like DATABASE_URL. Absence is not an error.
	if err := godotenv.Load(); err == nil {
		logging.Debug(subsystem, "loaded .env from working directory")
	}

	fileCfg, err := config.LoadFileConfig()
	if err != nil {
		return nil, fmt.Errorf("loading config files: %w", err)
	}

	spec, err := config.Resolve(ctx, cfg.Connection, fileCfg, os.Getenv)
	if err != nil {
		return nil, fmt.Errorf("resolving connection: %w", err)
	}

	a := &Application{}

	tunnelSettings := mergeTunnelSettings(cfg.Tunnel, fileCfg.Tunnel)
	if tunnelSettings.Configured() {
		bastionPort := tunnelSettings.Port
		if bastionPort == 0 {
			bastionPort = config.DefaultTunnelPort
		}
		t, err := tunnel.Open(tunnel.Spec{
			Host:       tunnelSettings.Host,
			Port:       bastionPort,
			User:       tunnelSettings.User,
			KeyFile:    tunnelSettings.KeyFile,
			Password:   tunnelSettings.Password,
			TargetHost: spec.Host,
			TargetPort: spec.Port,
		})
		if err != nil {
			return nil, fmt.Errorf("opening tunnel: %w", err)
		}
		a.tunnel = t

		// The pool now dials the local listener instead of the target.
		spec.Host = "127.0.0.1"
		spec.Port = t.LocalPort()
	}

	structureOnly := cfg.StructureOnly || fileCfg.StructureOnly

	client, err := db.Open(ctx, spec)
	if err != nil {
		a.Teardown()
		return nil, err
	}
	a.client = client
	a.server = mcpserver.New(client, serverName, cfg.Version, structureOnly)

	return a, nil
}

// Run serves MCP over stdio until the client disconnects or a
// termination signal arrives, then tears everything down.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer a.Teardown()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- a.server.Serve()
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
		logging.Info(subsystem, "shutdown signal received")
		return nil
	}
}

// Teardown closes the pool before the tunnel so no in-flight query loses
// its transport mid-statement. Safe to call more than once.
func (a *Application) Teardown() {
	a.teardownOnce.Do(func() {
		if a.client != nil {
			if err := a.client.Close(); err != nil {
				logging.Error(subsystem, err, "closing database pool")
			}
		}
		if a.tunnel != nil {
			if err := a.tunnel.Close(); err != nil {
				logging.Error(subsystem, err, "closing tunnel")
			}
		}
	})
}

// mergeTunnelSettings overlays command line tunnel flags on the file
// section, field by field.
func mergeTunnelSettings(flags, file config.TunnelSettings) config.TunnelSettings {
	merged := file
	if flags.Host != "" {
		merged.Host = flags.Host
	}
	if flags.Port != 0 {
		merged.Port = flags.Port
	}
	if flags.User != "" {
		merged.User = flags.User
	}
	if flags.KeyFile != "" {
		merged.KeyFile = flags.KeyFile
	}
	if flags.Password != "" {
		merged.Password = flags.Password
	}
	return merged
}
