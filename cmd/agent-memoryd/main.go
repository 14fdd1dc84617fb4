// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command agent-memoryd is the Agent Memory daemon: it loads a config file,
// wires a Service, and serves the admin/status HTTP surface until it
// receives SIGINT or SIGTERM.
//
// Usage:
//
//	agent-memoryd -config config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadirpekel/agent-memory/internal/adminserver"
	"github.com/kadirpekel/agent-memory/internal/config"
	"github.com/kadirpekel/agent-memory/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dbPath := flag.String("db", "", "override core.db_path")
	host := flag.String("host", "", "override core.host")
	port := flag.Int("port", 0, "override core.port")
	logLevel := flag.String("log-level", "", "override core.log_level (debug, info, warn, error)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down")
		cancel()
	}()

	if err := run(ctx, *configPath, *dbPath, *host, *port, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, dbPath, host string, port int, logLevel string) error {
	cfg, err := loadConfig(ctx, configPath, dbPath, host, port)
	if err != nil {
		return fmt.Errorf("agent-memoryd: load config: %w", err)
	}
	if logLevel != "" {
		cfg.Core.LogLevel = logLevel
	}
	initLogger(cfg.Core.LogLevel)

	svc, err := service.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("agent-memoryd: build service: %w", err)
	}
	defer svc.Close(context.Background())

	addr := fmt.Sprintf("%s:%d", cfg.Core.Host, cfg.Core.Port)
	admin := adminserver.New(svc, addr)

	slog.Info("agent-memoryd ready",
		"admin_addr", "http://"+addr,
		"health", "http://"+addr+"/health",
		"metrics", "http://"+addr+"/metrics",
		"db", cfg.Core.DBPath,
	)

	return admin.Start(ctx)
}

func loadConfig(ctx context.Context, configPath, dbPath, host string, port int) (*config.Config, error) {
	runtime := config.RuntimeOverrides{DBPath: dbPath, Host: host, Port: port}
	if configPath == "" {
		cfg := &config.Config{}
		cfg.SetDefaults()
		if dbPath != "" {
			cfg.Core.DBPath = dbPath
		}
		if host != "" {
			cfg.Core.Host = host
		}
		if port != 0 {
			cfg.Core.Port = port
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.LoadConfig(ctx, configPath, runtime)
}

func initLogger(level string) {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
