package gauntlet

import (
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gauntletsec/gauntlet/internal/config"
)

var (
	cfgOutput string
	cfgPlugin string
)

func init() {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	rootCmd.AddCommand(cfgCmd)

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a .gauntlet.yml seeded with every plugin's defaults",
		RunE:  runConfigInit,
	}
	cfgCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&cfgOutput, "output", ".gauntlet.yml", "output file path")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print resolved configuration values per plugin",
		RunE:  runConfigShow,
	}
	cfgCmd.AddCommand(showCmd)
	showCmd.Flags().StringVar(&cfgPlugin, "plugin", "", "limit output to one plugin")

	schemaCmd := &cobra.Command{
		Use:   "schema",
		Short: "Export the full schema registry as YAML",
		RunE:  runConfigSchema,
	}
	cfgCmd.AddCommand(schemaCmd)
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	m := config.NewManager()
	if _, err := buildPlugins(m); err != nil {
		return err
	}

	fc := config.FileConfig{Plugins: map[string]map[string]any{}}
	for pluginName, schema := range m.ExportSchema() {
		tree := config.NewTree()
		for _, key := range schema.Keys() {
			tree.Set(key, schema[key].Default)
		}
		fc.Plugins[pluginName] = tree.Root()
	}

	b, err := yaml.Marshal(&fc)
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfgOutput, b, 0644); err != nil {
		return err
	}
	fmt.Println("Wrote", cfgOutput)
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cwd, _ := os.Getwd()
	m, err := buildManager(cwd)
	if err != nil {
		return err
	}
	if _, err := buildPlugins(m); err != nil {
		return err
	}

	names := make([]string, 0)
	for name := range m.ExportSchema() {
		if cfgPlugin == "" || cfgPlugin == name {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Errorf("no plugin named %q", cfgPlugin)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Plugin", "Key", "Value")
	for _, name := range names {
		resolved, err := m.ResolveAll(name)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(resolved))
		for k := range resolved {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_ = table.Append([]string{name, k, fmt.Sprintf("%v", resolved[k])})
		}
	}
	_ = table.Render()
	return nil
}

func runConfigSchema(_ *cobra.Command, _ []string) error {
	m := config.NewManager()
	if _, err := buildPlugins(m); err != nil {
		return err
	}
	b, err := config.MarshalSchemas(m.ExportSchema())
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(b)
	return err
}
