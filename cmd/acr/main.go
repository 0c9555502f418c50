// Command acr runs the AI Core gateway, and offers a couple of thin
// introspection subcommands against the same configuration.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/sap-samples/ai-core-gateway/internal/aicore"
	"github.com/sap-samples/ai-core-gateway/internal/config"
	"github.com/sap-samples/ai-core-gateway/internal/gateway"
	"github.com/sap-samples/ai-core-gateway/internal/logging"
	"github.com/sap-samples/ai-core-gateway/internal/registry"
	"github.com/sap-samples/ai-core-gateway/internal/telemetry"
	"github.com/sap-samples/ai-core-gateway/internal/token"
	"github.com/sap-samples/ai-core-gateway/internal/utils"
)

func main() {
	args := os.Args[1:]
	if len(args) >= 2 && args[0] == "deployments" && args[1] == "list" {
		runDeploymentsList(args[2:])
		return
	}
	if len(args) >= 2 && args[0] == "resource-group" && args[1] == "list" {
		runResourceGroupList(args[2:])
		return
	}
	if len(args) >= 1 && (args[0] == "-h" || args[0] == "--help") {
		printHelp()
		return
	}
	runServe(args)
}

func printHelp() {
	fmt.Println(`acr - AI Core gateway

Usage:
  acr [-c config.yaml]              start the gateway
  acr deployments list [-c FILE]    list RUNNING deployments in the configured resource group
  acr resource-group list [-c FILE] list visible resource groups`)
}

func configFlag(args []string) string {
	for i, a := range args {
		if (a == "-c" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	if v := os.Getenv("ACR_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}

func loadConfigOrExit(args []string) *config.Config {
	path := configFlag(args)
	if _, err := os.Stat(path); err != nil {
		path = "" // let Load fall back entirely to environment variables
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "acr: "+err.Error())
		os.Exit(1)
	}
	return cfg
}

func runServe(args []string) {
	cfg := loadConfigOrExit(args)

	logger, err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput})
	if err != nil {
		fmt.Fprintln(os.Stderr, "acr: failed to initialize logging: "+err.Error())
		os.Exit(1)
	}
	log.Logger = logger

	log.Info().
		Int("port", cfg.Port).
		Str("resource_group", cfg.Credentials.ResourceGroup).
		Str("uaa_client_id", utils.MaskKeyShort(cfg.Credentials.UAAClientID)).
		Int("configured_models", len(cfg.Models)).
		Msg("starting acr")

	tokens := token.New(cfg.Credentials, &http.Client{Timeout: config.DefaultDialTimeout})
	client := aicore.NewClient(cfg.Credentials, tokens)
	reg := registry.New(client, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := reg.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("initial deployment registry refresh failed")
	}
	go tokens.RunBackgroundRefresh(ctx)

	tracker, err := telemetry.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open telemetry store")
	}
	defer func() { _ = tracker.Close() }()

	gw := gateway.New(cfg, reg, tokens, tracker)
	addr := ":" + strconv.Itoa(cfg.Port)
	log.Info().Str("addr", addr).Msg("listening")

	if err := gw.Start(ctx, addr); err != nil {
		log.Fatal().Err(err).Msg("gateway exited with error")
	}
	log.Info().Msg("acr shut down cleanly")
}

func runDeploymentsList(args []string) {
	cfg := loadConfigOrExit(args)
	tokens := token.New(cfg.Credentials, &http.Client{Timeout: config.DefaultDialTimeout})
	client := aicore.NewClient(cfg.Credentials, tokens)

	deployments, err := client.ListDeployments(context.Background(), cfg.Credentials.ResourceGroup)
	if err != nil {
		fmt.Fprintln(os.Stderr, "acr: "+err.Error())
		os.Exit(1)
	}
	for _, d := range deployments {
		if !d.Running() {
			continue
		}
		fmt.Printf("%-36s %-10s %-24s %s\n", d.ID, d.Status, d.ModelName, d.DeploymentURL)
	}
}

func runResourceGroupList(args []string) {
	cfg := loadConfigOrExit(args)
	tokens := token.New(cfg.Credentials, &http.Client{Timeout: config.DefaultDialTimeout})
	client := aicore.NewClient(cfg.Credentials, tokens)

	groups, err := client.ListResourceGroups(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, "acr: "+err.Error())
		os.Exit(1)
	}
	for _, g := range groups {
		fmt.Println(g)
	}
}
