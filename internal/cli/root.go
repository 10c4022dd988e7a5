// Package cli implements the recordctl command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkit/internal/logging"
	"github.com/mesh-intelligence/recordkit/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// exitError carries the exit code a command failed with.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func userError(format string, args ...any) error {
	return &exitError{code: exitUserError, err: fmt.Errorf(format, args...)}
}

func sysError(format string, args ...any) error {
	return &exitError{code: exitSysError, err: fmt.Errorf(format, args...)}
}

// exitCode maps a command error to a process exit code. Errors that do not
// carry a code, such as flag parsing errors, are user errors.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUserError
}

// app holds global flag values and the state shared by subcommands.
type app struct {
	configDir string
	dataDir   string
	schemaDir string
	logLevel  string
	jsonMode  bool

	v      *viper.Viper
	logger *zap.Logger
}

// NewRootCmd creates the top-level "recordctl" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "recordctl",
		Short: "Inspect and edit records through their type descriptors",
		Long: "recordctl loads record type descriptors from a schema directory and\n" +
			"reads, validates and writes records in the configured store.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (env "+paths.EnvConfigDir+")")
	pf.StringVar(&a.dataDir, "data-dir", "", "data directory (default: ./"+paths.DefaultDataDirName+")")
	pf.StringVar(&a.schemaDir, "schema-dir", "", "record type descriptor directory (default: ./"+paths.DefaultSchemaDirName+")")
	pf.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newTypesCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newSetCmd(a),
		newDeleteCmd(a),
		newRestoreCmd(a),
		newRelatedCmd(a),
		newDumpCmd(a),
		newLoadCmd(a),
	)
	return root
}

// setup loads the configuration and builds the logger before any command
// but version runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return sysError("resolve config dir: %w", err)
	}
	a.configDir = configDir

	v, err := loadConfig(configDir)
	if err != nil {
		return sysError("load config: %w", err)
	}
	if a.logLevel != "" {
		v.Set(cfgKeyLogLevel, a.logLevel)
	}
	a.v = v

	logger, err := logging.New(v.GetString(cfgKeyLogLevel), v.GetString(cfgKeyLogFormat))
	if err != nil {
		return userError("logging: %w", err)
	}
	a.logger = logger
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "recordctl:", err)
	}
	return exitCode(err)
}
