package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkit/pkg/paginate"
	"github.com/mesh-intelligence/recordkit/pkg/record"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

func newTypesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the record types in the schema directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd.Context(), func(s *session) error {
				rts, err := s.reg.LoadAll()
				if err != nil {
					return classify(err, "load types")
				}
				return a.printTypes(cmd.OutOrStdout(), rts)
			})
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	var trashed bool
	cmd := &cobra.Command{
		Use:   "get <type> <id>",
		Short: "Show one record by primary key",
		Long: "Shows one record. Composite keys are given as attr=value pairs\n" +
			"separated by commas, e.g. order_id=1,line=2.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *session) error {
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}
				if trashed {
					repo = repo.WithTrashed()
				}
				rec, err := findRecord(cmd.Context(), repo, args[1])
				if err != nil {
					return err
				}
				return a.printRecord(cmd.OutOrStdout(), rec)
			})
		},
	}
	cmd.Flags().BoolVar(&trashed, "trashed", false, "include soft-deleted records")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var (
		where   []string
		sorts   []string
		page    int
		limit   int
		trashed bool
	)
	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List records one page at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conds, err := parseAssignments(where)
			if err != nil {
				return err
			}
			order, err := parseSorts(sorts)
			if err != nil {
				return err
			}
			return a.withSession(cmd.Context(), func(s *session) error {
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}
				for attr := range conds {
					if !repo.Type().HasAttribute(attr) {
						a.logger.Warn("ignoring condition on unknown attribute",
							zap.String("type", repo.Type().Name), zap.String("attribute", attr))
					}
				}
				if trashed {
					repo = repo.WithTrashed()
				}

				p := paginate.ForRepository(repo, conds, order...)
				p.SetDefaultItemCountPerPage(a.v.GetInt(cfgKeyPageSize))
				p.SetDefaultItemCountPerPage(limit)
				p.SetCurrentPage(page)

				ctx := cmd.Context()
				recs, err := p.CurrentItems(ctx)
				if err != nil {
					return classify(err, "list %s", args[0])
				}
				pages, err := p.Pages(ctx)
				if err != nil {
					return classify(err, "list %s", args[0])
				}
				return a.printRecords(cmd.OutOrStdout(), repo.Type(), recs, &pages)
			})
		},
	}
	f := cmd.Flags()
	f.StringArrayVarP(&where, "where", "w", nil, "filter as attr=value (repeatable)")
	f.StringArrayVarP(&sorts, "sort", "s", nil, `sort as "attr", "attr desc" or "-attr" (repeatable)`)
	f.IntVarP(&page, "page", "p", 1, "page number")
	f.IntVarP(&limit, "limit", "n", 0, "records per page (default from config page_size)")
	f.BoolVar(&trashed, "trashed", false, "include soft-deleted records")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <type> [id] attr=value...",
		Short: "Create or update a record",
		Long: "Without an id a new record is created. With an id the stored record\n" +
			"is loaded, updated and saved. Values are typed like YAML scalars;\n" +
			"attr=null clears an attribute.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			typeName, rest := args[0], args[1:]
			var id string
			if !strings.Contains(rest[0], "=") {
				id, rest = rest[0], rest[1:]
			}
			values, err := parseAssignments(rest)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return userError("set needs at least one attr=value")
			}

			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				repo, err := s.repository(typeName)
				if err != nil {
					return err
				}
				rec := repo.New()
				if id != "" {
					if rec, err = findRecord(ctx, repo, id); err != nil {
						return err
					}
				}
				for attr, v := range values {
					if err := rec.Set(attr, v); err != nil {
						return classify(err, "set %s", attr)
					}
				}
				ok, err := rec.Save(ctx)
				if err != nil {
					return classify(err, "save %s", typeName)
				}
				if !ok {
					if perr := a.printFailures(cmd.OutOrStdout(), rec.InvalidAttributes()); perr != nil {
						return sysError("print: %w", perr)
					}
					return userError("%s record is invalid", typeName)
				}
				return a.printRecord(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a record",
		Long: "Deletes a record. Types with soft delete are only marked deleted\n" +
			"unless --force is given.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}
				if force {
					repo = repo.WithTrashed()
				}
				rec, err := findRecord(ctx, repo, args[1])
				if err != nil {
					return err
				}
				if force {
					err = rec.ForceDelete(ctx)
				} else {
					err = rec.Delete(ctx)
				}
				if err != nil {
					return classify(err, "delete %s %s", args[0], args[1])
				}
				if a.jsonMode {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"deleted": rec.PrimaryKey(), "trashed": rec.Trashed()})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", args[0], args[1])
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "remove the row even when the type uses soft delete")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <type> <id>",
		Short: "Restore a soft-deleted record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}
				rec, err := findRecord(ctx, repo.WithTrashed(), args[1])
				if err != nil {
					return err
				}
				if err := rec.Restore(ctx); err != nil {
					return classify(err, "restore %s %s", args[0], args[1])
				}
				return a.printRecord(cmd.OutOrStdout(), rec)
			})
		},
	}
}

func newRelatedCmd(a *app) *cobra.Command {
	var where []string
	cmd := &cobra.Command{
		Use:   "related <type> <id> <relation>",
		Short: "List the records related to a record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			conds, err := parseAssignments(where)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return a.withSession(ctx, func(s *session) error {
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}
				owner, err := findRecord(ctx, repo, args[1])
				if err != nil {
					return err
				}
				rel, err := owner.Relation(args[2])
				if err != nil {
					return classify(err, "relation %s", args[2])
				}
				var cond record.Condition
				if len(conds) > 0 {
					cond = record.Where(conds)
				}
				recs, err := rel.FindAllRelated(ctx, cond)
				if err != nil {
					return classify(err, "resolve %s.%s", args[0], args[2])
				}
				rt, err := s.reg.Load(rel.Model())
				if err != nil {
					return classify(err, "type %s", rel.Model())
				}
				return a.printRecords(cmd.OutOrStdout(), rt, recs, nil)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&where, "where", "w", nil, "filter related records as attr=value (repeatable)")
	return cmd
}

// requireSQLite returns the session's SQLite backend or a user error naming
// the command.
func requireSQLite(s *session, command string) error {
	if s.sqlite == nil {
		return userError("%s is only supported by the %s backend", command, types.BackendSQLite)
	}
	return nil
}
