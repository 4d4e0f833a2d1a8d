// ABOUTME: Entry point for fake-auth, the development sign-in server
// ABOUTME: Loads the backend section of the config and serves until interrupted

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/coven-signin/internal/backend"
	"github.com/2389/coven-signin/internal/config"
	"github.com/2389/coven-signin/internal/logging"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "path to config file (yaml or toml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath); err != nil {
		color.Red("Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateBackend(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	logger := logging.New(cfg.Logging, os.Stdout)

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	fmt.Println(cyan.Sprint("fake-auth") + gray.Sprint(" development sign-in server"))
	fmt.Printf("  %s %s\n", gray.Sprint("Config:"), configPath)
	fmt.Printf("  %s http://%s%s\n", gray.Sprint("HTTP:  "), cfg.Backend.ListenAddr, cfg.Server.APIPath)
	if cfg.Backend.GRPCAddr != "" {
		fmt.Printf("  %s %s\n", gray.Sprint("gRPC:  "), cfg.Backend.GRPCAddr)
	}
	fmt.Printf("  %s %s\n", gray.Sprint("Users: "), green.Sprint(len(cfg.Backend.Users)))
	fmt.Println()

	srv, err := backend.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating backend: %w", err)
	}
	return srv.Run(ctx)
}
