package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recordkit/pkg/types"
)

func newDumpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dump <type> [file]",
		Short: "Write every row of a type's table to a JSONL file",
		Long: "Writes all rows, including soft-deleted ones, ordered by primary key.\n" +
			"The file defaults to <table>.jsonl in the data directory.",
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *session) error {
				if err := requireSQLite(s, "dump"); err != nil {
					return err
				}
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}
				rt := repo.Type()
				path := filepath.Join(s.cfg.DataDir, rt.Table+".jsonl")
				if len(args) == 2 {
					path = args[1]
				}
				order := make([]types.Sort, len(rt.PrimaryKeys))
				for i, pk := range rt.PrimaryKeys {
					order[i] = types.Sort{Column: pk}
				}
				n, err := s.sqlite.Dump(cmd.Context(), rt.Table, path, order...)
				if err != nil {
					return sysError("dump %s: %w", rt.Name, err)
				}
				return a.printCount(cmd, "dumped", rt.Name, path, n)
			})
		},
	}
}

func newLoadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "load <type> <file>",
		Short: "Insert the records of a JSONL file into a type's table",
		Long: "Inserts each JSON line as a new row inside one transaction. Fields that\n" +
			"are not attributes of the type are ignored; malformed lines and rows the\n" +
			"database rejects are skipped.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd.Context(), func(s *session) error {
				if err := requireSQLite(s, "load"); err != nil {
					return err
				}
				repo, err := s.repository(args[0])
				if err != nil {
					return err
				}
				rt := repo.Type()
				n, err := s.sqlite.Load(cmd.Context(), rt.Table, rt.Attributes, args[1])
				if err != nil {
					return sysError("load %s: %w", rt.Name, err)
				}
				return a.printCount(cmd, "loaded", rt.Name, args[1], n)
			})
		},
	}
}

func (a *app) printCount(cmd *cobra.Command, verb, typeName, path string, n int) error {
	if a.jsonMode {
		return writeJSON(cmd.OutOrStdout(), map[string]any{"type": typeName, "file": path, verb: n})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s records (%s)\n", verb, n, typeName, path)
	return nil
}
