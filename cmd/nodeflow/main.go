package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"nodeflow/internal/gateway/app"
	"nodeflow/internal/gateway/config"
	"nodeflow/internal/resolver"
	"nodeflow/internal/runner"
)

var (
	runGraphPath string
	runNodeID    string
	runFake      bool
	runDumpGraph bool
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "nodeflow",
		Short:         "Run worker nodes of a node-graph workflow",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one worker node of a graph file and print the result",
		RunE:  runNode,
	}
	runCmd.Flags().StringVarP(&runGraphPath, "graph", "g", "", "path to the graph YAML file")
	runCmd.Flags().StringVarP(&runNodeID, "node", "n", "", "id of the worker node to run")
	runCmd.Flags().BoolVar(&runFake, "fake", false, "use the deterministic fake generation backend")
	runCmd.Flags().BoolVar(&runDumpGraph, "dump", false, "print every node value after the run")
	_ = runCmd.MarkFlagRequired("graph")
	_ = runCmd.MarkFlagRequired("node")

	slotsCmd := &cobra.Command{
		Use:   "slots",
		Short: "List the input slots a worker node accepts",
		Run: func(cmd *cobra.Command, _ []string) {
			for _, s := range resolver.WorkerSlots {
				shape := "single"
				if s.Collection {
					shape = "collection"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s\n", s.Name, shape)
			}
		},
	}

	root.AddCommand(runCmd, slotsCmd)
	return root
}

func runNode(cmd *cobra.Command, _ []string) error {
	g, err := loadGraphFile(runGraphPath)
	if err != nil {
		return err
	}

	cfg := config.FromEnv()
	// The CLI always runs jobs in process.
	cfg.Dispatch.Mode = config.DispatchLocal
	if runFake {
		cfg.LLM.Fake = true
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.NewEngine(ctx, cfg, g, runner.Options{DefaultModel: cfg.LLM.Model})
	if err != nil {
		return err
	}
	defer engine.Close()

	res := engine.Controller.Run(ctx, runNodeID)
	if err := writeJSON(cmd, res); err != nil {
		return err
	}
	if runDumpGraph {
		for _, n := range g.Nodes() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %v\n", n.ID, n.Kind, n.Value)
		}
	}
	if !res.Success {
		return fmt.Errorf("run failed: %s", res.Error)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
