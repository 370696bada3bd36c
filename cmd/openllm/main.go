// OpenLLM — secrets and provider-configuration resolution for LLM tooling.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "openllm",
	Short: "OpenLLM — resolve LLM provider secrets and configuration.",
	Long: `OpenLLM resolves LLM provider API keys and configuration across every
place they can live: environment variables, .env files, the system
keychain, YAML config files at user and workspace scope, and editor
hosts reachable over local RPC sockets.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(endpointCmd, secretsCmd, configCmd, toolsCmd, versionCmd)
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
