package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/recordkit/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the config file, data directory and schema directory",
		Long: "Writes a default config.yaml to the config directory when none exists,\n" +
			"creates the schema directory and, for the sqlite backend, the database.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.storeConfig()
			if err != nil {
				return userError("config: %w", err)
			}

			file := defaultConfig()
			file.Backend = cfg.Backend
			file.DSN = cfg.DSN
			configPath := filepath.Join(a.configDir, configFileExt)
			wrote, err := writeConfigIfMissing(configPath, file)
			if err != nil {
				return sysError("write config: %w", err)
			}
			if err := os.MkdirAll(cfg.SchemaDir, 0o755); err != nil {
				return sysError("create schema dir: %w", err)
			}

			if err := a.withSession(cmd.Context(), func(*session) error { return nil }); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if wrote {
				fmt.Fprintf(out, "Wrote %s\n", configPath)
			}
			fmt.Fprintf(out, "Schema directory: %s\n", cfg.SchemaDir)
			if cfg.Backend == types.BackendSQLite {
				fmt.Fprintf(out, "Data directory: %s\n", cfg.DataDir)
			}
			return nil
		},
	}
}
