package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/logging"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/oracle"
)

var serveOracleCmd = &cobra.Command{
	Use:   "serve-oracle",
	Short: "Serve a scripted oracle over gRPC for local runs",
	Long: `Serves the answers in --answers (a JSON list) in order over the reasoner.v1.Oracle
service. Once exhausted every call reports the oracle unavailable, so builders
fall back to internal steps.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		path, _ := cmd.Flags().GetString("answers")

		var answers []oracle.Answer
		if path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read answers: %w", err)
			}
			if err := json.Unmarshal(data, &answers); err != nil {
				return fmt.Errorf("parse answers: %w", err)
			}
		}

		logger, err := logging.New("info", "text")
		if err != nil {
			return err
		}
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}

		srv := grpc.NewServer()
		oracle.RegisterServer(srv, oracle.NewScripted(answers))
		go func() {
			<-cmd.Context().Done()
			srv.GracefulStop()
		}()

		logger.Info("serving scripted oracle", "addr", lis.Addr().String(), "answers", len(answers))
		return srv.Serve(lis)
	},
}

func init() {
	rootCmd.AddCommand(serveOracleCmd)
	serveOracleCmd.Flags().String("addr", ":50051", "listen address")
	serveOracleCmd.Flags().String("answers", "", "JSON file with a list of answers")
}
