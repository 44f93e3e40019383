package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sgl-project/sft-agent/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:     "sft-agent",
	Short:   "Run SFT Agent",
	Long:    "SFT Agent fine-tunes a causal language model with a LoRA adapter on a question answering dataset, merges the adapter and evaluates the merged model.",
	Version: version.Get().String(),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(CreateAgentCommand(NewPipelineAgent()))
	rootCmd.AddCommand(CreateAgentCommand(NewPrepareAgent()))
	rootCmd.AddCommand(CreateAgentCommand(NewTrainAgent()))
	rootCmd.AddCommand(CreateAgentCommand(NewMergeAgent()))
	rootCmd.AddCommand(CreateAgentCommand(NewEvaluateAgent()))
}
