package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openllm-dev/openllm/internal/rpc"
)

var (
	toolsEndpoint string
	toolsAll      bool
	toolsArgsJSON string
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List and call tools exposed by an RPC endpoint",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools exposed by an endpoint",
	Args:  cobra.NoArgs,
	RunE:  runToolsList,
}

var toolsCallCmd = &cobra.Command{
	Use:   "call <name>",
	Short: "Call a tool with JSON arguments",
	Long: `Call a tool on an RPC endpoint. Arguments are passed as a JSON object:

  openllm tools call read_file --args '{"path": "README.md"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runToolsCall,
}

func init() {
	toolsCmd.PersistentFlags().StringVar(&toolsEndpoint, "endpoint", "vscode", "endpoint to talk to")
	toolsListCmd.Flags().BoolVar(&toolsAll, "all", false, "include internal tools")
	toolsCallCmd.Flags().StringVar(&toolsArgsJSON, "args", "{}", "tool arguments as a JSON object")
	toolsCmd.AddCommand(toolsListCmd, toolsCallCmd)
}

func toolsClient() (*rpc.Client, error) {
	if err := loadEndpoints(); err != nil {
		return nil, err
	}
	e, ok := rpc.GetEndpoint(toolsEndpoint)
	if !ok {
		return nil, fmt.Errorf("endpoint %q is not registered", toolsEndpoint)
	}
	return e.Client(), nil
}

func runToolsList(cmd *cobra.Command, _ []string) error {
	client, err := toolsClient()
	if err != nil {
		return err
	}

	var tools []rpc.Tool
	if toolsAll {
		tools, err = client.ListTools(cmd.Context())
	} else {
		tools, err = client.ListUserTools(cmd.Context())
	}
	if err != nil {
		return err
	}
	if len(tools) == 0 {
		fmt.Println("no tools available")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	for _, t := range tools {
		fmt.Fprintf(w, "%s\t%s\n", t.Name, t.Description)
	}
	return w.Flush()
}

func runToolsCall(cmd *cobra.Command, args []string) error {
	client, err := toolsClient()
	if err != nil {
		return err
	}

	var toolArgs map[string]any
	if err := json.Unmarshal([]byte(toolsArgsJSON), &toolArgs); err != nil {
		return fmt.Errorf("parsing --args: %w", err)
	}

	result, err := client.CallTool(cmd.Context(), args[0], toolArgs)
	if err != nil {
		return err
	}
	fmt.Println(result.Text())
	if result.IsError {
		os.Exit(1)
	}
	return nil
}
