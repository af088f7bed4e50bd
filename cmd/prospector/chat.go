package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func chatCMD() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive research prompt loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, cfg, err := buildPipeline(cfgPath)
			if err != nil {
				return err
			}

			fmt.Println("Multi-Source Research Agent")
			fmt.Println("Type 'exit' to quit")
			fmt.Println()

			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("Ask me anything: ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}
				if strings.EqualFold(question, "exit") {
					fmt.Println("Goodbye!")
					return nil
				}

				fmt.Println()
				fmt.Println("Starting parallel research process...")
				fmt.Println(strings.Repeat("-", 80))

				ctx, cancel := context.WithTimeout(cmd.Context(), cfg.General.DefaultTimeout)
				st, err := pipeline.Run(ctx, question)
				cancel()
				if err != nil {
					// A failed run must not kill the loop.
					fmt.Printf("run failed: %v\n", err)
					fmt.Println(strings.Repeat("-", 80))
					continue
				}
				if answer, ok := st.FinalAnswer.Value(); ok {
					fmt.Printf("\nFinal Answer:\n%s\n\n", answer)
				}
				fmt.Println(strings.Repeat("-", 80))
			}
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default searches . and ./config)")
	return cmd
}
