package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/asakaida/relata/internal/services/resolver"
	"github.com/asakaida/relata/internal/services/schemagraph"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	exportYAML bool
	pathFile   string
)

var datamodelCmd = &cobra.Command{
	Use:   "datamodel",
	Short: "Validate, store and inspect datamodels",
}

var datamodelValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a datamodel DSL file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsl, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := schemagraph.NewDatamodelService(nil, logger).Validate(string(dsl)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
		return nil
	},
}

var datamodelFmtCmd = &cobra.Command{
	Use:   "fmt <file>",
	Short: "Print a datamodel DSL file in canonical form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsl, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		formatted, err := schemagraph.NewDatamodelService(nil, logger).Format(string(dsl))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), formatted)
		return nil
	},
}

var datamodelPushCmd = &cobra.Command{
	Use:   "push <file>",
	Short: "Store a datamodel DSL file as a new version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsl, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
			version, err := a.datamodels.Push(ctx, string(dsl))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		})
	},
}

var datamodelShowCmd = &cobra.Command{
	Use:   "show [version]",
	Short: "Print a stored datamodel (default: latest)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
			model, err := a.datamodels.Get(ctx, firstArg(args))
			if err != nil {
				return err
			}
			if exportYAML {
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(model)
			}
			fmt.Fprint(cmd.OutOrStdout(), model.DSL)
			return nil
		})
	},
}

var datamodelVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List stored datamodel versions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
			versions, err := a.datamodels.Versions(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tCREATED")
			for _, v := range versions {
				fmt.Fprintf(w, "%s\t%s\n", v.Version, v.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		})
	},
}

var datamodelPathCmd = &cobra.Command{
	Use:   "path <subject-table> <target>",
	Short: "Show how two tables are related",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		describe := func(ctx context.Context, res *resolver.Resolver) error {
			resolution, err := res.Resolve(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "kind:     %s\n", resolution.Path.Kind())
			fmt.Fprintf(out, "tables:   %s\n", strings.Join(resolution.Path.Tables(), " -> "))
			fmt.Fprintf(out, "relation: %s\n", resolution.LinkTable())
			return nil
		}

		if pathFile != "" {
			graph, err := schemagraph.LoadFile(pathFile)
			if err != nil {
				return err
			}
			return describe(cmd.Context(), resolver.New(graph, nil, nil, logger))
		}
		return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
			return describe(ctx, a.resolver)
		})
	},
}

func init() {
	datamodelShowCmd.Flags().BoolVar(&exportYAML, "yaml", false, "Print the parsed datamodel as YAML")
	datamodelPathCmd.Flags().StringVarP(&pathFile, "file", "f", "", "Resolve against a DSL file instead of the stored datamodel")

	datamodelCmd.AddCommand(datamodelValidateCmd)
	datamodelCmd.AddCommand(datamodelFmtCmd)
	datamodelCmd.AddCommand(datamodelPushCmd)
	datamodelCmd.AddCommand(datamodelShowCmd)
	datamodelCmd.AddCommand(datamodelVersionsCmd)
	datamodelCmd.AddCommand(datamodelPathCmd)
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
