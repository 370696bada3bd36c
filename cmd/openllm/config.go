package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openllm-dev/openllm/internal/resolver"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit provider configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resolved providers across all configured sources",
	Args:  cobra.NoArgs,
	RunE:  runConfigList,
}

var configEnableCmd = &cobra.Command{
	Use:   "enable <provider>",
	Short: "Enable a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return toggleProvider(cmd, args[0], true) },
}

var configDisableCmd = &cobra.Command{
	Use:   "disable <provider>",
	Short: "Disable a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return toggleProvider(cmd, args[0], false) },
}

var configModelsCmd = &cobra.Command{
	Use:   "models <provider> <model>...",
	Short: "Set the model list for a provider",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runConfigModels,
}

var configRemoveCmd = &cobra.Command{
	Use:   "remove <provider>",
	Short: "Remove a provider from configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigRemove,
}

var configSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configuration sources and their availability",
	Args:  cobra.NoArgs,
	RunE:  runConfigSources,
}

func init() {
	configCmd.PersistentFlags().StringVar(&flagConfigSource, "source", "",
		"configuration source preference: native or vscode")
	configCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "",
		"workspace root for workspace-scoped configuration")
	configCmd.PersistentFlags().StringVar(&flagScope, "scope", "user",
		"scope for writes: user or workspace")
	configCmd.AddCommand(configListCmd, configEnableCmd, configDisableCmd,
		configModelsCmd, configRemoveCmd, configSourcesCmd)
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	r, err := newConfigResolver(cmd.Context(), newLogger())
	if err != nil {
		return err
	}

	resolved := r.AllProviders()
	if len(resolved.Providers) == 0 {
		fmt.Println("no providers configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tENABLED\tMODELS\tAPI BASE\tSOURCE")
	for _, p := range resolved.Providers {
		apiBase := p.APIBase
		if apiBase == "" {
			apiBase = "-"
		}
		models := strings.Join(p.Models, ",")
		if models == "" {
			models = "-"
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\n", p.Name, p.Enabled, models, apiBase, p.Source)
	}
	return w.Flush()
}

func toggleProvider(cmd *cobra.Command, name string, enabled bool) error {
	scope, err := resolveScope()
	if err != nil {
		return err
	}
	r, err := newConfigResolver(cmd.Context(), newLogger())
	if err != nil {
		return err
	}

	detail, err := r.ToggleProvider(cmd.Context(), name, enabled, scope)
	if err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("%s %q (%s)\n", state, name, detail)
	return nil
}

func runConfigModels(cmd *cobra.Command, args []string) error {
	scope, err := resolveScope()
	if err != nil {
		return err
	}
	r, err := newConfigResolver(cmd.Context(), newLogger())
	if err != nil {
		return err
	}

	detail, err := r.UpdateProviderModels(cmd.Context(), args[0], args[1:], scope)
	if err != nil {
		return err
	}
	fmt.Printf("updated models for %q (%s)\n", args[0], detail)
	return nil
}

func runConfigRemove(cmd *cobra.Command, args []string) error {
	scope, err := resolveScope()
	if err != nil {
		return err
	}
	r, err := newConfigResolver(cmd.Context(), newLogger())
	if err != nil {
		return err
	}

	detail, err := r.RemoveProvider(cmd.Context(), args[0], scope)
	if err != nil {
		return err
	}
	fmt.Printf("removed %q (%s)\n", args[0], detail)
	return nil
}

func runConfigSources(cmd *cobra.Command, _ []string) error {
	r, err := newConfigResolver(cmd.Context(), newLogger())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tAVAILABLE\tDETAIL")
	for _, s := range r.ListSources(cmd.Context()) {
		fmt.Fprintf(w, "%s\t%t\t%s\n", s.Name, s.Available, s.Detail)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for _, scope := range []string{resolver.ScopeUser, resolver.ScopeWorkspace} {
		source, detail := r.WriteDestinationInfo(scope)
		fmt.Printf("\n%s writes go to: %s (%s)\n", scope, source, detail)
	}
	return nil
}
