package main

import (
	"fmt"
	"log"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/prospect-labs/prospector/config"
	"github.com/prospect-labs/prospector/internal/brightdata"
	"github.com/prospect-labs/prospector/internal/research"
	"github.com/prospect-labs/prospector/internal/telemetry"
)

func main() {
	root := &cobra.Command{
		Use:   "prospector",
		Short: "Multi-source research assistant",
	}
	root.AddCommand(chatCMD(), serveCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildPipeline constructs the shared collaborators once and injects them, so
// every stage works against explicit parameters instead of process globals.
func buildPipeline(cfgPath string) (*research.Pipeline, *config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration: %w", err)
	}

	logger := log.New(os.Stderr, "[RESEARCH] ", log.LstdFlags)
	metrics := telemetry.New(prometheus.DefaultRegisterer)
	gateway := brightdata.New(cfg.BrightData, log.New(os.Stderr, "[BRIGHTDATA] ", log.LstdFlags), metrics)
	provider := newLLMProvider(cfg.LLM)

	return research.NewPipeline(provider, gateway, cfg.Research, logger, metrics), cfg, nil
}
