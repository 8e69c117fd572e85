package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "Manage relationship and entity type taxonomies",
}

var typesLoadCmd = &cobra.Command{
	Use:   "load <file.yaml>",
	Short: "Create the types of a YAML fixture",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
			result, err := a.types.LoadYAML(ctx, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, skipped %d\n", result.Created, result.Skipped)
			return nil
		})
	},
}

var typesListCmd = &cobra.Command{
	Use:   "list <link-table>",
	Short: "List the relationship types of a link table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(ctx context.Context, a *app) error {
			types, err := a.types.ListRelationshipTypes(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCODE\tTYPENAME\tREVERSE\tPARENT")
			for _, t := range types {
				parent := ""
				if t.ParentID != nil {
					parent = strconv.FormatInt(*t.ParentID, 10)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.TypeCode, t.Typename, t.TypenameReverse, parent)
			}
			return w.Flush()
		})
	},
}

func init() {
	typesCmd.AddCommand(typesLoadCmd)
	typesCmd.AddCommand(typesListCmd)
}
