// Package infra implements infrastructure concerns (store, probes, process,
// registry, filesystem layout).
package infra

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDirName = "flowmode"

const (
	configFileName   = "config.yaml"
	logFileName      = "flowmode.log"
	registryFileName = "daemon.json"
	statusFileName   = "status.json"
)

// Paths is the per-user filesystem layout.
type Paths struct {
	ConfigDir string // holds config.yaml
	DataDir   string // holds the ledger, key, log and daemon registry
}

// DetectPaths resolves the layout from the XDG environment, falling back
// to ~/.config and ~/.local/share.
func DetectPaths() (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		configHome = filepath.Join(home, ".config")
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = filepath.Join(home, ".local", "share")
	}

	return &Paths{
		ConfigDir: filepath.Join(configHome, appDirName),
		DataDir:   filepath.Join(dataHome, appDirName),
	}, nil
}

// PathsAt roots both directories under dir (for tests and --data-dir).
func PathsAt(dir string) *Paths {
	return &Paths{ConfigDir: dir, DataDir: dir}
}

func (p *Paths) ConfigFile() string   { return filepath.Join(p.ConfigDir, configFileName) }
func (p *Paths) StoreFile() string    { return filepath.Join(p.DataDir, StoreFileName) }
func (p *Paths) LogFile() string      { return filepath.Join(p.DataDir, logFileName) }
func (p *Paths) RegistryFile() string { return filepath.Join(p.DataDir, registryFileName) }
func (p *Paths) StatusFile() string   { return filepath.Join(p.DataDir, statusFileName) }

// EnsureDataDir creates the data directory with owner-only permissions.
func (p *Paths) EnsureDataDir() error {
	if err := os.MkdirAll(p.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}
