package config

import (
	"time"

	"github.com/williamokano/site_backuper/pkg/storage"
)

// StorageConfig groups the configured object store destinations
type StorageConfig struct {
	Destinations []storage.Config `json:"destinations"`
}

// PublishConfig enables the post-restore git publish hook
type PublishConfig struct {
	Remote  string `json:"remote"`            // e.g. "origin"
	Branch  string `json:"branch"`            // e.g. "main"
	Workdir string `json:"workdir,omitempty"` // repository root, defaults to "."
}

// Config is the root configuration structure
type Config struct {
	SiteDir                string         `json:"site_dir"`
	RemotePrefix           string         `json:"remote_prefix,omitempty"`            // object key prefix, default "site"
	StateDir               string         `json:"state_dir,omitempty"`                // operation log + metrics snapshot, default "state"
	MaxConcurrentTransfers int            `json:"max_concurrent_transfers,omitempty"` // default: 4
	StaleAfterHours        int            `json:"stale_after_hours,omitempty"`        // default: 6
	LogLevel               string         `json:"log_level,omitempty"`                // debug, info, warn, error (default: info)
	LogFormat              string         `json:"log_format,omitempty"`               // json, console (default: json)
	LogFile                string         `json:"log_file,omitempty"`                 // optional audit log file
	Storage                StorageConfig  `json:"storage"`
	Publish                *PublishConfig `json:"publish,omitempty"`
}

// GetRemotePrefix returns the object key prefix (defaults to "site")
func (c *Config) GetRemotePrefix() string {
	if c.RemotePrefix != "" {
		return c.RemotePrefix
	}
	return "site"
}

// GetStateDir returns the durable state directory (defaults to "state")
func (c *Config) GetStateDir() string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return "state"
}

// GetMaxConcurrentTransfers returns the per-operation transfer worker
// count (defaults to 4)
func (c *Config) GetMaxConcurrentTransfers() int {
	if c.MaxConcurrentTransfers > 0 {
		return c.MaxConcurrentTransfers
	}
	return 4
}

// GetStaleAfter returns how old a running record must be before
// startup reconciliation marks it interrupted (defaults to 6h)
func (c *Config) GetStaleAfter() time.Duration {
	if c.StaleAfterHours > 0 {
		return time.Duration(c.StaleAfterHours) * time.Hour
	}
	return 6 * time.Hour
}

// GetLogLevel returns the log level (defaults to info)
func (c *Config) GetLogLevel() string {
	if c.LogLevel != "" {
		return c.LogLevel
	}
	return "info"
}

// GetLogFormat returns the log format (defaults to json)
func (c *Config) GetLogFormat() string {
	if c.LogFormat != "" {
		return c.LogFormat
	}
	return "json"
}

// GetPublishWorkdir returns the git workdir (defaults to ".")
func (p *PublishConfig) GetPublishWorkdir() string {
	if p.Workdir != "" {
		return p.Workdir
	}
	return "."
}
