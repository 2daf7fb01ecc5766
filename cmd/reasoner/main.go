package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "reasoner",
	Short: "Anchored-flow reasoning chains with drift repair and verification",
	Long: `reasoner builds step-by-step reasoning chains over a fixed flow cycle and three
anchor positions, repairs drifting anchor steps, verifies the result and trains
the exploration schedule in two stages.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "YAML or JSON config file (defaults apply when empty)")
}
