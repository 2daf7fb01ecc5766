package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/state"
	"github.com/danielpatrickdp/adaptive-state/reasoner/internal/trainer"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Run the two-stage trainer over a task file",
	Long: `Runs Discovery then Alignment iterations over the tasks in --tasks, cycling
through them. Passing, confident chains are saved to the configured store. With
--metrics-addr, /metrics (Prometheus) and /snapshot (trainer progress as JSON)
are served while training runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tasksPath, _ := cmd.Flags().GetString("tasks")
		iterations, _ := cmd.Flags().GetInt("iterations")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		tasks, err := loadTasks(tasksPath)
		if err != nil {
			return err
		}

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		verifier, err := a.cfg.Verifier()
		if err != nil {
			return err
		}
		opts := []trainer.Option{
			trainer.WithStore(a.store),
			trainer.WithSink(a.sink),
			trainer.WithLogger(a.logger),
		}
		prov, err := a.provenance()
		if err != nil {
			return err
		}
		if prov != nil {
			opts = append(opts, trainer.WithProvenance(prov))
		}
		tr := trainer.New(a.cfg.Trainer(), a.builder(), verifier, opts...)

		if metricsAddr != "" {
			srv := metricsServer(metricsAddr, a, tr)
			go func() {
				a.logger.Info("serving metrics", "addr", metricsAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error("metrics server failed", "err", err)
				}
			}()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
		}

		report, runErr := tr.Run(cmd.Context(), tasks, iterations)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			trainer.Report
			Metrics any `json:"metrics"`
		}{report, a.recorder.Snapshot()}); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return runErr
	},
}

func metricsServer(addr string, a *app, tr *trainer.Trainer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Trainer trainer.Snapshot `json:"trainer"`
			Metrics any              `json:"metrics"`
		}{tr.Snapshot(), a.recorder.Snapshot()})
	})
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

// loadTasks reads a YAML or JSON list of tasks.
func loadTasks(path string) ([]state.Task, error) {
	if path == "" {
		return nil, errors.New("--tasks is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks: %w", err)
	}
	var tasks []state.Task
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &tasks)
	default:
		err = json.Unmarshal(data, &tasks)
	}
	if err != nil {
		return nil, fmt.Errorf("parse tasks %s: %w", path, err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks in %s", path)
	}
	for i := range tasks {
		if tasks[i].ID == "" {
			tasks[i].ID = fmt.Sprintf("task-%d", i+1)
		}
	}
	return tasks, nil
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().String("tasks", "", "YAML or JSON file with a list of tasks")
	trainCmd.Flags().Int("iterations", 10, "training iterations")
	trainCmd.Flags().String("metrics-addr", "", "serve /metrics and /snapshot on this address while training")
}
