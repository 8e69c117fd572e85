package main

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/asakaida/relata/internal/entities"
	"github.com/asakaida/relata/internal/services/relationships"
	"github.com/spf13/cobra"
)

var (
	relType         string
	relDate         string
	relSource       string
	relDirection    string
	relRank         int64
	relValues       map[string]string
	relAllowDups    bool
	relTypes        []string
	relRestrictTo   []string
	relCopyAttrs    bool
	relExcludeRelID int64
)

var relationshipsCmd = &cobra.Command{
	Use:     "relationships",
	Aliases: []string{"rel"},
	Short:   "Create, edit and remove relationships of a row",
}

var relAddCmd = &cobra.Command{
	Use:   "add <table> <id> <target> <target-ref>",
	Short: "Relate a row to a row of the target table",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := parseSubject(args)
		if err != nil {
			return err
		}
		req, err := addRequest(args[2], args[3])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
			result, err := a.engine.Add(ctx, subject, req)
			if err != nil {
				return reportErrors(cmd, a, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", result.Kind, result.ID())
			return nil
		})
	},
}

var relEditCmd = &cobra.Command{
	Use:   "edit <table> <id> <target> <relation-id> <target-ref>",
	Short: "Repoint or update an existing relationship",
	Args:  cobra.ExactArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := parseSubject(args)
		if err != nil {
			return err
		}
		relationID, err := parseID("relation id", args[3])
		if err != nil {
			return err
		}
		req, err := addRequest(args[2], args[4])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
			result, err := a.engine.Edit(ctx, subject, relationID, req)
			if err != nil {
				return reportErrors(cmd, a, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", result.Kind, result.ID())
			return nil
		})
	},
}

var relRemoveCmd = &cobra.Command{
	Use:   "remove <table> <id> <target> <relation-id>",
	Short: "Remove one relationship",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := parseSubject(args)
		if err != nil {
			return err
		}
		relationID, err := parseID("relation id", args[3])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
			if err := a.engine.Remove(ctx, subject, args[2], relationID); err != nil {
				return reportErrors(cmd, a, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", relationID)
			return nil
		})
	},
}

var relRemoveAllCmd = &cobra.Command{
	Use:   "remove-all <table> <id> <target>",
	Short: "Remove every relationship of a row to the target table",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := parseSubject(args)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
			results, err := a.engine.RemoveAll(ctx, subject, relationships.RemoveAllRequest{
				Target:          args[2],
				Types:           relTypes,
				RestrictToTypes: relRestrictTo,
			})
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RELATION\tRESULT")
			for _, r := range results {
				status := "removed"
				if !r.OK() {
					status = r.Err.Error()
				}
				fmt.Fprintf(w, "%d\t%s\n", r.RelationID, status)
			}
			if flushErr := w.Flush(); flushErr != nil {
				return flushErr
			}
			if err != nil {
				return reportErrors(cmd, a, err)
			}
			return nil
		})
	},
}

var relExistsCmd = &cobra.Command{
	Use:   "exists <table> <id> <target> <target-ref>",
	Short: "List the relationships between two rows",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := parseSubject(args)
		if err != nil {
			return err
		}
		direction, err := entities.ParseDirection(relDirection)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
			ids, err := a.engine.Exists(ctx, subject, relationships.ExistsRequest{
				Target:            args[2],
				TargetRef:         args[3],
				Type:              relType,
				EffectiveDate:     relDate,
				Direction:         direction,
				ExcludeRelationID: relExcludeRelID,
			})
			if err != nil {
				return reportErrors(cmd, a, err)
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "none")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		})
	},
}

var relMoveCmd = &cobra.Command{
	Use:   "move <table> <id> <target> <to-id>",
	Short: "Move a row's relationships to another row of the same table",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transfer(cmd, args, func(ctx context.Context, a *app, subject entities.Subject, toID int64) (int64, error) {
			return a.engine.Move(ctx, subject, args[2], toID)
		})
	},
}

var relCopyCmd = &cobra.Command{
	Use:   "copy <table> <id> <target> <to-id>",
	Short: "Copy a row's relationships to another row of the same table",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transfer(cmd, args, func(ctx context.Context, a *app, subject entities.Subject, toID int64) (int64, error) {
			return a.engine.Copy(ctx, subject, args[2], toID, relCopyAttrs)
		})
	},
}

var relHasCmd = &cobra.Command{
	Use:   "has <table> <id>",
	Short: "Count the rows referencing a row, per table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := parseSubject(args)
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
			counts, err := a.engine.HasRelationships(ctx, subject)
			if err != nil {
				return reportErrors(cmd, a, err)
			}
			tables := make([]string, 0, len(counts))
			for table := range counts {
				tables = append(tables, table)
			}
			sort.Strings(tables)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tCOUNT")
			for _, table := range tables {
				fmt.Fprintf(w, "%s\t%d\n", table, counts[table])
			}
			return w.Flush()
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{relAddCmd, relEditCmd} {
		c.Flags().StringVarP(&relType, "type", "t", "", "Relationship type id or code")
		c.Flags().StringVarP(&relDate, "date", "d", "", "Effective date expression")
		c.Flags().StringVar(&relSource, "source", "", "Source info")
		c.Flags().StringVar(&relDirection, "direction", "", "Self relations: ltor or rtol")
		c.Flags().Int64Var(&relRank, "rank", 0, "Rank (0 keeps the default)")
		c.Flags().StringToStringVar(&relValues, "value", nil, "Link row attribute as key=value (repeatable)")
		c.Flags().BoolVar(&relAllowDups, "allow-duplicates", false, "Allow an identical relationship to exist")
	}
	relRemoveAllCmd.Flags().StringSliceVarP(&relTypes, "type", "t", nil, "Relationship types to remove, subtypes included")
	relRemoveAllCmd.Flags().StringSliceVar(&relRestrictTo, "restrict-to-type", nil, "Only remove relationships to rows of these entity types")
	relExistsCmd.Flags().StringVarP(&relType, "type", "t", "", "Relationship type id or code")
	relExistsCmd.Flags().StringVarP(&relDate, "date", "d", "", "Effective date expression")
	relExistsCmd.Flags().StringVar(&relDirection, "direction", "", "Self relations: ltor or rtol")
	relExistsCmd.Flags().Int64Var(&relExcludeRelID, "exclude", 0, "Relation id to ignore")
	relCopyCmd.Flags().BoolVar(&relCopyAttrs, "attributes", false, "Copy link row attribute values too")

	relationshipsCmd.AddCommand(relAddCmd)
	relationshipsCmd.AddCommand(relEditCmd)
	relationshipsCmd.AddCommand(relRemoveCmd)
	relationshipsCmd.AddCommand(relRemoveAllCmd)
	relationshipsCmd.AddCommand(relExistsCmd)
	relationshipsCmd.AddCommand(relMoveCmd)
	relationshipsCmd.AddCommand(relCopyCmd)
	relationshipsCmd.AddCommand(relHasCmd)
}

// parseSubject reads "<table> <id>" from the first two arguments
func parseSubject(args []string) (entities.Subject, error) {
	id, err := parseID("id", args[1])
	if err != nil {
		return entities.Subject{}, err
	}
	return entities.Subject{Table: args[0], ID: id}, nil
}

func parseID(name, s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return id, nil
}

func addRequest(target, ref string) (relationships.AddRequest, error) {
	direction, err := entities.ParseDirection(relDirection)
	if err != nil {
		return relationships.AddRequest{}, err
	}
	values := make(map[string]interface{}, len(relValues))
	for k, v := range relValues {
		values[k] = v
	}
	return relationships.AddRequest{
		Target:          target,
		TargetRef:       ref,
		Type:            relType,
		EffectiveDate:   relDate,
		SourceInfo:      relSource,
		Direction:       direction,
		Rank:            relRank,
		Values:          values,
		AllowDuplicates: relAllowDups,
	}, nil
}

func transfer(cmd *cobra.Command, args []string, fn func(ctx context.Context, a *app, subject entities.Subject, toID int64) (int64, error)) error {
	subject, err := parseSubject(args)
	if err != nil {
		return err
	}
	toID, err := parseID("destination id", args[3])
	if err != nil {
		return err
	}
	return withApp(cmd.Context(), true, func(ctx context.Context, a *app) error {
		n, err := fn(ctx, a, subject, toID)
		if err != nil {
			return reportErrors(cmd, a, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d relationships\n", n)
		return nil
	})
}

// reportErrors prints the errors the engine posted before returning err
func reportErrors(cmd *cobra.Command, a *app, err error) error {
	for _, posted := range a.errors.Errors() {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%d] %s (%s)\n", posted.Code, posted.Message, posted.Context)
	}
	return err
}
