package config

import (
	"fmt"

	"github.com/nspcc-dev/pesto-go/pkg/core/storage/dbconfig"
)

const (
	// DefaultContractCacheSize is the default number of contract states kept
	// in the ledger cache.
	DefaultContractCacheSize = 128
)

// ApplicationConfiguration config specific to the node.
type ApplicationConfiguration struct {
	Ledger `yaml:",inline"`

	DBConfiguration dbconfig.DBConfiguration `yaml:"DBConfiguration"`

	LogLevel    string      `yaml:"LogLevel"`
	LogPath     string      `yaml:"LogPath"`
	LogEncoding string      `yaml:"LogEncoding"`
	LogRotation LogRotation `yaml:"LogRotation"`

	Pprof      BasicService `yaml:"Pprof"`
	Prometheus BasicService `yaml:"Prometheus"`
	RPC        RPC          `yaml:"RPC"`
}

// LogRotation describes log file rotation settings used when LogPath is set.
type LogRotation struct {
	// MaxSize is the maximum size in megabytes of the log file before it gets rotated.
	MaxSize int `yaml:"MaxSize"`
	// MaxBackups is the maximum number of old log files to retain.
	MaxBackups int `yaml:"MaxBackups"`
	// MaxAge is the maximum number of days to retain old log files.
	MaxAge int `yaml:"MaxAge"`
	// Compress determines if the rotated log files should be gzipped.
	Compress bool `yaml:"Compress"`
}

// Validate checks ApplicationConfiguration for internal consistency and returns
// an error if any invalid settings are found.
func (a *ApplicationConfiguration) Validate() error {
	switch a.DBConfiguration.Type {
	case dbconfig.InMemoryDB:
	case dbconfig.LevelDB:
		if a.DBConfiguration.LevelDBOptions.DataDirectoryPath == "" {
			return fmt.Errorf("%w: empty LevelDB DataDirectoryPath", ErrInvalidConfig)
		}
	case dbconfig.BoltDB:
		if a.DBConfiguration.BoltDBOptions.FilePath == "" {
			return fmt.Errorf("%w: empty BoltDB FilePath", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown DB type %q", ErrInvalidConfig, a.DBConfiguration.Type)
	}
	switch a.LogEncoding {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: unknown LogEncoding %q", ErrInvalidConfig, a.LogEncoding)
	}
	if err := a.RPC.Validate(); err != nil {
		return err
	}
	return a.Ledger.Validate()
}
