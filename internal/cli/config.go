package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/recordkit/internal/paths"
	"github.com/mesh-intelligence/recordkit/pkg/paginate"
	"github.com/mesh-intelligence/recordkit/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend   = "backend"
	cfgKeyDataDir   = "data_dir"
	cfgKeySchemaDir = "schema_dir"
	cfgKeyDSN       = "dsn"
	cfgKeyLogLevel  = "log_level"
	cfgKeyLogFormat = "log_format"
	cfgKeyPageSize  = "page_size"

	envPrefix = "RECORDKIT"
)

// configFile is the structure written to config.yaml by init.
type configFile struct {
	Backend   string `yaml:"backend"`
	DataDir   string `yaml:"data_dir,omitempty"`
	SchemaDir string `yaml:"schema_dir,omitempty"`
	DSN       string `yaml:"dsn,omitempty"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	PageSize  int    `yaml:"page_size"`
}

func defaultConfig() configFile {
	return configFile{
		Backend:   types.BackendSQLite,
		LogLevel:  "warn",
		LogFormat: "console",
		PageSize:  paginate.DefaultItemCountPerPage,
	}
}

// loadConfig reads config.yaml from configDir. A missing file is not an
// error. Directory keys are resolved separately by the paths package;
// the other keys can also be set through RECORDKIT_* variables.
func loadConfig(configDir string) (*viper.Viper, error) {
	def := defaultConfig()
	v := viper.New()
	v.SetDefault(cfgKeyBackend, def.Backend)
	v.SetDefault(cfgKeyLogLevel, def.LogLevel)
	v.SetDefault(cfgKeyLogFormat, def.LogFormat)
	v.SetDefault(cfgKeyPageSize, def.PageSize)
	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{cfgKeyBackend, cfgKeyDSN, cfgKeyLogLevel, cfgKeyLogFormat, cfgKeyPageSize} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// storeConfig resolves the store configuration from flags and config.
func (a *app) storeConfig() (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(a.dataDir, a.v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	schemaDir, err := paths.ResolveSchemaDir(a.schemaDir, a.v.GetString(cfgKeySchemaDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve schema dir: %w", err)
	}
	cfg := types.Config{
		Backend:   a.v.GetString(cfgKeyBackend),
		DataDir:   dataDir,
		SchemaDir: schemaDir,
		DSN:       a.v.GetString(cfgKeyDSN),
	}
	return cfg, cfg.Validate()
}

// writeConfigIfMissing creates config.yaml with cfg if the file does not
// exist. It reports whether a file was written.
func writeConfigIfMissing(path string, cfg configFile) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	return true, os.WriteFile(path, data, 0o644)
}
