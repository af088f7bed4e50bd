package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/prospect-labs/prospector/internal/server"
)

func serveCMD() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP research API",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, cfg, err := buildPipeline(cfgPath)
			if err != nil {
				return err
			}
			logger := log.New(os.Stderr, "[HTTP] ", log.LstdFlags)
			return server.Run(cfg.Server, pipeline, logger)
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches . and ./config)")
	return cmd
}
