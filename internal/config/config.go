// Package config resolves workspace paths and tool settings from flags,
// MILO_* environment variables, and an optional milo-memory.yaml file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (MILO_WORKSPACE, ...).
const EnvPrefix = "MILO"

// Config holds resolved settings. Relative paths are already joined to Workspace.
type Config struct {
	Workspace      string
	DBPath         string
	ActivityDBPath string
	MemoryFile     string
	LogsDir        string

	SearchLimit    int
	RecentLogFiles int
	SemanticLimit  int
	RankerMode     string

	LogLevel  string
	LogFormat string

	CDPHost    string
	CDPPort    int
	CDPTimeout time.Duration

	SandboxTimeout time.Duration

	// ConfigFile is the file that was read, empty when none was found.
	ConfigFile string
}

// New returns a viper instance with defaults, env binding, and search paths set.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("workspace", "")
	v.SetDefault("db_path", filepath.Join("data", "memory.db"))
	v.SetDefault("activity_db_path", filepath.Join("data", "activity.db"))
	v.SetDefault("memory_file", filepath.Join("memory", "MEMORY.md"))
	v.SetDefault("logs_dir", filepath.Join("memory", "logs"))
	v.SetDefault("search.limit", 15)
	v.SetDefault("search.recent_log_files", 7)
	v.SetDefault("semantic.limit", 10)
	v.SetDefault("ranker.mode", "auto")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("cdp.host", "127.0.0.1")
	v.SetDefault("cdp.port", 9222)
	v.SetDefault("cdp.timeout", "30s")
	v.SetDefault("sandbox.timeout", "30s")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("milo-memory")
	v.SetConfigType("yaml")
	return v
}

// Load reads the optional config file and resolves paths. The file is looked
// up in the workspace and then in $HOME.
func Load(v *viper.Viper) (*Config, error) {
	workspace, err := resolveWorkspace(v.GetString("workspace"))
	if err != nil {
		return nil, err
	}

	v.AddConfigPath(workspace)
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cdpTimeout, err := duration(v, "cdp.timeout")
	if err != nil {
		return nil, err
	}
	sandboxTimeout, err := duration(v, "sandbox.timeout")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Workspace:      workspace,
		DBPath:         inWorkspace(workspace, v.GetString("db_path")),
		ActivityDBPath: inWorkspace(workspace, v.GetString("activity_db_path")),
		MemoryFile:     inWorkspace(workspace, v.GetString("memory_file")),
		LogsDir:        inWorkspace(workspace, v.GetString("logs_dir")),
		SearchLimit:    v.GetInt("search.limit"),
		RecentLogFiles: v.GetInt("search.recent_log_files"),
		SemanticLimit:  v.GetInt("semantic.limit"),
		RankerMode:     v.GetString("ranker.mode"),
		LogLevel:       v.GetString("log.level"),
		LogFormat:      v.GetString("log.format"),
		CDPHost:        v.GetString("cdp.host"),
		CDPPort:        v.GetInt("cdp.port"),
		CDPTimeout:     cdpTimeout,
		SandboxTimeout: sandboxTimeout,
		ConfigFile:     v.ConfigFileUsed(),
	}
	if cfg.RecentLogFiles <= 0 {
		cfg.RecentLogFiles = 7
	}
	return cfg, nil
}

// resolveWorkspace defaults to the current directory and expands a leading ~.
func resolveWorkspace(ws string) (string, error) {
	ws = strings.TrimSpace(ws)
	if ws == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve workspace: %w", err)
		}
		return wd, nil
	}
	if ws == "~" || strings.HasPrefix(ws, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve workspace: %w", err)
		}
		ws = filepath.Join(home, strings.TrimPrefix(ws, "~"))
	}
	return filepath.Abs(ws)
}

func inWorkspace(workspace, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	// Bare numbers are seconds, matching the --timeout flags.
	secs := v.GetInt(key)
	if secs <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return time.Duration(secs) * time.Second, nil
}
