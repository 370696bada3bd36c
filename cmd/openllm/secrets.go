package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Resolve, store, and delete provider API keys",
}

var secretsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Resolve a secret through the source priority chain",
	Long: `Resolve a secret, consulting sources in priority order: environment
variables, the .env file (with --dotenv), then the preferred secret
store (editor host or system keychain), then any fallbacks.

The value prints to stdout; the source it came from prints to stderr.`,
	Args: cobra.ExactArgs(1),
	RunE: runSecretsGet,
}

var secretsSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a secret in the write destination",
	Long: `Store a secret. The value is read from the second argument, or from
stdin when omitted. The destination follows --store: "auto" picks the
preferred store, "vscode" and "keychain" force one, and "rpc:<name>"
targets a specific endpoint.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSecretsSet,
}

var secretsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a secret from the write destination",
	Args:  cobra.ExactArgs(1),
	RunE:  runSecretsDelete,
}

var secretsSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List secret sources and their availability",
	Args:  cobra.NoArgs,
	RunE:  runSecretsSources,
}

var flagWriteStore string

func init() {
	secretsCmd.PersistentFlags().StringVar(&flagSecretsStore, "secrets-store", "",
		"preferred secret store: vscode or keychain")
	secretsCmd.PersistentFlags().BoolVar(&flagNoEnv, "no-env", false,
		"skip environment variables during resolution")
	secretsCmd.PersistentFlags().BoolVar(&flagDotenv, "dotenv", false,
		"also consult the .env file in the working directory")
	secretsSetCmd.Flags().StringVar(&flagWriteStore, "store", "auto",
		"write destination: auto, vscode, keychain, or rpc:<name>")
	secretsDeleteCmd.Flags().StringVar(&flagWriteStore, "store", "auto",
		"write destination: auto, vscode, keychain, or rpc:<name>")
	secretsCmd.AddCommand(secretsGetCmd, secretsSetCmd, secretsDeleteCmd, secretsSourcesCmd)
}

func runSecretsGet(cmd *cobra.Command, args []string) error {
	r, err := newSecretResolver(newLogger())
	if err != nil {
		return err
	}

	resolved := r.Resolve(cmd.Context(), args[0])
	if resolved == nil {
		return fmt.Errorf("no secret found for %q", args[0])
	}
	fmt.Println(resolved.Value)
	fmt.Fprintf(os.Stderr, "source: %s (%s)\n", resolved.Source, resolved.SourceDetail)
	return nil
}

func runSecretsSet(cmd *cobra.Command, args []string) error {
	r, err := newSecretResolver(newLogger())
	if err != nil {
		return err
	}

	value := ""
	if len(args) == 2 {
		value = args[1]
	} else {
		// Read the value from stdin so it stays out of shell history.
		fmt.Fprint(os.Stderr, "value: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("reading value: %w", err)
		}
		value = strings.TrimRight(line, "\r\n")
	}
	if value == "" {
		return fmt.Errorf("value is empty")
	}

	dest, err := r.StoreSecret(cmd.Context(), args[0], value, flagWriteStore)
	if err != nil {
		return err
	}
	fmt.Printf("stored %q in %s\n", args[0], dest)
	return nil
}

func runSecretsDelete(cmd *cobra.Command, args []string) error {
	r, err := newSecretResolver(newLogger())
	if err != nil {
		return err
	}

	dest, err := r.DeleteSecret(cmd.Context(), args[0], flagWriteStore)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %q from %s\n", args[0], dest)
	return nil
}

func runSecretsSources(cmd *cobra.Command, _ []string) error {
	r, err := newSecretResolver(newLogger())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tAVAILABLE")
	for _, s := range r.ListSources(cmd.Context()) {
		fmt.Fprintf(w, "%s\t%t\n", s.Name, s.Available)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	source, detail := r.WriteDestinationInfo(cmd.Context())
	fmt.Printf("\nwrites go to: %s (%s)\n", source, detail)
	return nil
}
