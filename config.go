// config.go: Declarative rack configuration with JSON and YAML support
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/agilira/argus"
	"gopkg.in/yaml.v3"
)

// maxConfigFileSize bounds configuration files to prevent memory exhaustion
// from oversized or malicious files.
const maxConfigFileSize = 10 * 1024 * 1024

// RackConfig declares a rack's security policy and plugin population in a
// configuration file. The same structure round-trips through JSON and YAML.
type RackConfig struct {
	// MajorType restricts the rack to plugins whose declared type carries
	// this prefix. Empty accepts every type.
	MajorType string `json:"major_type" yaml:"major_type"`

	// Paranoia lists the enabled security check names: "file_owner",
	// "file_writable", "dir_owner", "dir_writable".
	Paranoia []string `json:"paranoia" yaml:"paranoia"`

	// AuthorizedUID is the user that must own plugin files when an owner
	// check is enabled. Negative means the current user.
	AuthorizedUID int `json:"authorized_uid" yaml:"authorized_uid"`

	// PluginDirs are scanned for plugin candidates, in order. Per-file
	// rejections inside a directory are skipped silently.
	PluginDirs []string `json:"plugin_dirs" yaml:"plugin_dirs"`

	// PluginFiles are registered individually; any rejection here is an
	// error.
	PluginFiles []string `json:"plugin_files" yaml:"plugin_files"`

	// Preload eagerly loads every discovered plugin after registration.
	Preload bool `json:"preload" yaml:"preload"`

	// Audit configures the security audit trail.
	Audit AuditSettings `json:"audit" yaml:"audit"`
}

// AuditSettings controls the rack's audit trail output.
type AuditSettings struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	OutputFile string `json:"output_file" yaml:"output_file"`
}

// DefaultRackConfig returns a configuration with safe defaults: no plugins,
// no namespace restriction, owner checks bound to the current user.
func DefaultRackConfig() RackConfig {
	return RackConfig{
		AuthorizedUID: -1,
	}
}

// Validate checks the configuration for structural problems before it is
// applied to a rack.
func (c *RackConfig) Validate() error {
	if _, err := ParseParanoia(c.Paranoia); err != nil {
		return err
	}
	for i, dir := range c.PluginDirs {
		if dir == "" {
			return NewConfigInvalidError(fmt.Sprintf("plugin_dirs[%d] is empty", i), nil)
		}
	}
	for i, file := range c.PluginFiles {
		if file == "" {
			return NewConfigInvalidError(fmt.Sprintf("plugin_files[%d] is empty", i), nil)
		}
	}
	if c.Audit.Enabled && c.Audit.OutputFile == "" {
		return NewConfigInvalidError("audit.output_file is required when audit is enabled", nil)
	}
	return nil
}

// LoadRackConfig loads and validates a rack configuration from a JSON or
// YAML file, detecting the format from the file extension.
func LoadRackConfig(path string) (RackConfig, error) {
	config := DefaultRackConfig()

	if err := validateRackConfigPath(path); err != nil {
		return config, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return config, NewConfigFileError(path, "read failed", err)
	}
	if len(content) == 0 {
		return config, NewConfigInvalidError("configuration file is empty", nil)
	}

	format := argus.DetectFormat(path)
	switch format {
	case argus.FormatJSON:
		err = json.Unmarshal(content, &config)
	case argus.FormatYAML:
		err = yaml.Unmarshal(content, &config)
	default:
		return config, NewConfigInvalidError(fmt.Sprintf("unsupported config format: %s", format), nil)
	}
	if err != nil {
		return config, NewConfigParseError(path, err)
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// validateRackConfigPath ensures the configuration path names a readable,
// reasonably sized regular file.
func validateRackConfigPath(path string) error {
	if path == "" {
		return NewConfigPathError(path, "empty config file path")
	}

	info, err := os.Stat(path)
	if err != nil {
		return NewConfigPathError(path, err.Error())
	}
	if !info.Mode().IsRegular() {
		return NewConfigPathError(path, "config path is not a regular file")
	}
	if info.Size() > maxConfigFileSize {
		return NewConfigPathError(path, fmt.Sprintf("config file too large: %d bytes", info.Size()))
	}
	return nil
}

// ApplyConfig configures the rack's policy and populates it from a loaded
// configuration: major type and paranoia first, then audit, then discovery.
// Explicit plugin_files rejections abort with an error; directory scans use
// the usual silent per-file skips.
func (r *Rack) ApplyConfig(config RackConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	flags, err := ParseParanoia(config.Paranoia)
	if err != nil {
		return err
	}

	uid := config.AuthorizedUID
	if uid < 0 {
		uid = os.Getuid()
	}

	r.SetMajorType(config.MajorType)
	r.SetParanoia(flags, uid)

	if config.Audit.Enabled {
		if err := r.EnableAudit(argus.AuditConfig{
			Enabled:    true,
			OutputFile: config.Audit.OutputFile,
			MinLevel:   argus.AuditInfo,
		}); err != nil {
			return err
		}
	}

	for _, file := range config.PluginFiles {
		if err := r.AddFile(file); err != nil {
			return err
		}
	}
	for _, dir := range config.PluginDirs {
		if err := r.ScanDir(dir); err != nil {
			return err
		}
	}

	if config.Preload {
		r.LoadAll()
	}
	return nil
}
