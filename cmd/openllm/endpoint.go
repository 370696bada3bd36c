package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openllm-dev/openllm/internal/rpc"
)

var (
	endpointToken        string
	endpointCapabilities []string
)

var endpointCmd = &cobra.Command{
	Use:   "endpoint",
	Short: "Manage RPC endpoints (editor hosts reachable over local sockets)",
}

var endpointRegisterCmd = &cobra.Command{
	Use:   "register <name> <socket-path>",
	Short: "Register an RPC endpoint",
	Long: `Register an RPC endpoint by name and socket path. A random auth token
is generated unless --token is given. Capabilities limit what the
endpoint is consulted for; an endpoint with no declared capabilities is
assumed to support everything.

Examples:
  openllm endpoint register vscode /tmp/vscode-llm.sock
  openllm endpoint register zed ~/.zed/llm.sock --capability secrets`,
	Args: cobra.ExactArgs(2),
	RunE: runEndpointRegister,
}

var endpointListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered endpoints and their reachability",
	Args:  cobra.NoArgs,
	RunE:  runEndpointList,
}

var endpointUnregisterCmd = &cobra.Command{
	Use:   "unregister <name>",
	Short: "Remove a registered endpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runEndpointUnregister,
}

func init() {
	endpointRegisterCmd.Flags().StringVar(&endpointToken, "token", "", "auth token (generated when omitted)")
	endpointRegisterCmd.Flags().StringArrayVar(&endpointCapabilities, "capability", nil,
		"declared capability (secrets, config, tools); repeatable")
	endpointCmd.AddCommand(endpointRegisterCmd, endpointListCmd, endpointUnregisterCmd)
}

func runEndpointRegister(_ *cobra.Command, args []string) error {
	name, socketPath := args[0], args[1]

	if err := loadEndpoints(); err != nil {
		return err
	}

	token := endpointToken
	if token == "" {
		token = uuid.NewString()
	}

	rpc.RegisterEndpoint(rpc.Endpoint{
		Name:         name,
		SocketPath:   socketPath,
		AuthToken:    token,
		Capabilities: endpointCapabilities,
	})
	if err := saveEndpoints(); err != nil {
		return err
	}

	fmt.Printf("registered endpoint %q at %s\n", name, socketPath)
	if endpointToken == "" {
		fmt.Printf("auth token: %s\n", token)
	}
	return nil
}

func runEndpointList(_ *cobra.Command, _ []string) error {
	if err := loadEndpoints(); err != nil {
		return err
	}

	endpoints := rpc.ListEndpoints()
	if len(endpoints) == 0 {
		fmt.Println("no endpoints registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSOCKET\tCAPABILITIES\tSTATUS")
	for _, e := range endpoints {
		caps := "all"
		if len(e.Capabilities) > 0 {
			caps = ""
			for i, c := range e.Capabilities {
				if i > 0 {
					caps += ","
				}
				caps += c
			}
		}

		status := "reachable"
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := e.Client().Ping(ctx); err != nil {
			status = "unreachable"
		}
		cancel()

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.SocketPath, caps, status)
	}
	return w.Flush()
}

func runEndpointUnregister(_ *cobra.Command, args []string) error {
	if err := loadEndpoints(); err != nil {
		return err
	}
	if _, ok := rpc.GetEndpoint(args[0]); !ok {
		return fmt.Errorf("endpoint %q is not registered", args[0])
	}
	rpc.UnregisterEndpoint(args[0])
	if err := saveEndpoints(); err != nil {
		return err
	}
	fmt.Printf("unregistered endpoint %q\n", args[0])
	return nil
}
