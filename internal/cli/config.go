package cli

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/treepull/pkg/errors"
)

// ToolConfig holds user-level defaults read from the config file. Every
// field is optional; command-line flags always win.
type ToolConfig struct {
	// Repo is the default repository path used when --repo is not given.
	Repo string `toml:"repo"`
	// Parallel caps concurrent network requests during pull.
	Parallel int `toml:"parallel"`
	// Progress disables the live progress view when set to false.
	Progress *bool `toml:"progress"`
}

// configPath returns the tool config file location using the XDG standard
// (~/.config/treepull/config.toml).
func configPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// loadToolConfig reads the tool config file. A missing file yields a zero
// config; a malformed file is an error so typos do not silently change
// behavior.
func loadToolConfig() (ToolConfig, error) {
	var cfg ToolConfig
	path, err := configPath()
	if err != nil {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "malformed config file %s", path)
	}
	return cfg, nil
}

// resolveRepoPath picks the repository path: the --repo flag, then the
// TREEPULL_REPO environment variable, then the tool config default.
func resolveRepoPath(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("TREEPULL_REPO"); env != "" {
		return env, nil
	}
	cfg, err := loadToolConfig()
	if err != nil {
		return "", err
	}
	if cfg.Repo != "" {
		return cfg.Repo, nil
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "no repository given; use --repo, TREEPULL_REPO, or set repo in the config file")
}
