package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/services/related"
	"github.com/spf13/cobra"
)

var relatedOptions []string

var relatedCmd = &cobra.Command{
	Use:   "related <table> <id> <target>",
	Short: "List the rows of the target table related to a row",
	Long: `List the rows of the target table related to a row.

Options are given as key=value pairs, for example:
  relata related items 1 tags -o restrict_to_relationship_types=depicts -o sort=label -o limit=10`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := parseSubject(args)
		if err != nil {
			return err
		}
		raw := make(map[string]interface{}, len(relatedOptions))
		for _, kv := range relatedOptions {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return fmt.Errorf("invalid option %q (expected key=value)", kv)
			}
			if v == "" {
				raw[k] = true
				continue
			}
			if strings.Contains(v, ",") && k != "criteria" {
				raw[k] = strings.Split(v, ",")
				continue
			}
			raw[k] = v
		}
		opts, err := related.NormalizeOptions(raw)
		if err != nil {
			return err
		}

		return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
			result, err := a.related.GetRelated(ctx, subject, args[2], opts)
			if err != nil {
				return err
			}
			return printResult(ctx, cmd, result)
		})
	},
}

func init() {
	relatedCmd.Flags().StringArrayVarP(&relatedOptions, "option", "o", nil, "Query option as key=value (repeatable; comma separates list values)")
}

func printResult(ctx context.Context, cmd *cobra.Command, result *related.Result) error {
	out := cmd.OutOrStdout()
	switch result.Shape {
	case related.ReturnCount:
		fmt.Fprintln(out, result.Count)
		return nil
	case related.ReturnIDs:
		for _, id := range result.IDs {
			fmt.Fprintln(out, id)
		}
		return nil
	case related.ReturnFirstID:
		fmt.Fprintln(out, result.FirstID)
		return nil
	case related.ReturnEntities:
		return printRecords(cmd, result.Records)
	case related.ReturnFirstEntity:
		if result.First == nil {
			return nil
		}
		return printRecords(cmd, []*entities.Record{result.First})
	case related.ReturnSearchResult:
		records, err := result.Search.Records(ctx)
		if err != nil {
			return err
		}
		return printRecords(cmd, records)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RELATION\tID\tIDNO\tLABEL\tTYPE\tRANK\tDATE")
	for _, item := range result.Items {
		date := ""
		if item.EffectiveDate != nil {
			date = item.EffectiveDate.String()
		}
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%d\t%s\n",
			item.RelationID, item.ItemID, item.Idno, item.Label, item.RelationshipTypename, item.Rank, date)
	}
	fmt.Fprintf(w, "\n%d related\n", result.Count)
	return w.Flush()
}

func printRecords(cmd *cobra.Command, records []*entities.Record) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\t%v\n", r.Table, r.ID, r.Fields)
	}
	return w.Flush()
}
