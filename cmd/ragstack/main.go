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

// Command ragstack runs the document intelligence platform.
//
// Usage:
//
//	ragstack serve --config config.yaml
//	ragstack ingest-worker --config config.yaml
//	ragstack query-worker --config config.yaml
//	ragstack requeue-pending --config config.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/ragstack/pkg/config"
	"github.com/kadirpekel/ragstack/pkg/logger"
)

// CLI defines the command-line interface.
type CLI struct {
	Version        VersionCmd        `cmd:"" help:"Show version information."`
	Serve          ServeCmd          `cmd:"" help:"Start the HTTP API server."`
	IngestWorker   IngestWorkerCmd   `cmd:"" name:"ingest-worker" help:"Start the document ingestion worker."`
	QueryWorker    QueryWorkerCmd    `cmd:"" name:"query-worker" help:"Start the query worker."`
	RequeuePending RequeuePendingCmd `cmd:"" name:"requeue-pending" help:"Republish pending documents to the ingestion queue."`

	Config    string `short:"c" help:"Path to config file." type:"path" default:"config.yaml"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("ragstack version %s\n", version)
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.GetLogger().Info("Shutting down...")
		cancel()
	}()
	return ctx, cancel
}

// loadConfig initializes logging and loads the configuration tree.
func loadConfig(cli *CLI) (*config.Config, func(), error) {
	config.LoadDotEnv()

	level, err := logger.ParseLevel(cli.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	output := os.Stderr
	cleanup := func() {}
	if cli.LogFile != "" {
		file, closeFile, err := logger.OpenLogFile(cli.LogFile)
		if err != nil {
			return nil, nil, err
		}
		output = file
		cleanup = closeFile
	}
	logger.Init(level, output, cli.LogFormat)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return cfg, cleanup, nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("ragstack"),
		kong.Description("ragstack - Agentic document intelligence platform"),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
