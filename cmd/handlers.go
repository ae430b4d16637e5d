package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/structds/internal/config"
	"github.com/zjrosen/structds/internal/presentation"
	"github.com/zjrosen/structds/internal/structured"
)

var handlersListType string

var handlersListCmd = &cobra.Command{
	Use:   "handlers:list",
	Short: "List registered encoders and decoders",
	Long: `List every registered handler with its (type, protocol, format) key.

A format of "*" is the wildcard: the handler serves any format requested for
its type and protocol. The handler matching a type's default protocol and
format is marked "default".

Examples:
  structds handlers:list
  structds handlers:list --type '*frame.Frame'
  structds handlers:list --json | jq '.[] | select(.default)'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		entries := current.registry.Entries()
		if handlersListType != "" {
			t, err := current.resolveType(handlersListType)
			if err != nil {
				return err
			}
			filtered := entries[:0:0]
			for _, e := range entries {
				if e.Key.Type == t {
					filtered = append(filtered, e)
				}
			}
			entries = filtered
		}
		return formatter(cmd).FormatEntries(presentation.FromEntries(entries))
	},
}

var handlersDefaultCmd = &cobra.Command{
	Use:   "handlers:default <type> <protocol> [format]",
	Short: "Pin the default protocol and format of a dataframe type",
	Long: `Pin the default protocol and format used when a dataset of <type> is
encoded without a URI or format. The pin is saved to the config file and
applied after handler registration on every later run.

An empty format defers to whatever format the protocol's handler serves.

Examples:
  structds handlers:default '*frame.Frame' file csv
  structds handlers:default '*frame.Frame' sqlite`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := current.resolveType(args[0])
		if err != nil {
			return err
		}
		def := config.TypeDefaultConfig{Type: t.String(), Protocol: strings.ToLower(args[1])}
		if len(args) == 3 {
			def.Format = args[2]
		}
		if _, err := current.registry.LookupEncoder(t, def.Protocol, def.Format); err != nil {
			return fmt.Errorf("pinning default: %w", err)
		}

		path := configPath()
		updated, err := config.SetTypeDefault(path, def, cfg.TypeDefaults)
		if err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		cfg.TypeDefaults = updated

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "default for %s is now protocol=%q format=%q (%s)\n",
			structured.TypeName(t), def.Protocol, def.Format, path)
		return err
	},
}

func init() {
	handlersListCmd.Flags().StringVarP(&handlersListType, "type", "t", "", "only list handlers for this dataframe type")
	rootCmd.AddCommand(handlersListCmd)
	rootCmd.AddCommand(handlersDefaultCmd)
}
