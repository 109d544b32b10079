// config_test.go: Rack configuration loading and application tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRackConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "rack.json", `{
		"major_type": "auth",
		"paranoia": ["file_owner", "dir_writable"],
		"authorized_uid": 0,
		"preload": true
	}`)

	config, err := LoadRackConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "auth", config.MajorType)
	assert.Equal(t, []string{"file_owner", "dir_writable"}, config.Paranoia)
	assert.Equal(t, 0, config.AuthorizedUID)
	assert.True(t, config.Preload)
}

func TestLoadRackConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "rack.yaml", `
major_type: sched
paranoia:
  - file_writable
plugin_dirs:
  - /usr/lib/rack/plugins
audit:
  enabled: true
  output_file: /var/log/rack-audit.jsonl
`)

	config, err := LoadRackConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "sched", config.MajorType)
	assert.Equal(t, []string{"file_writable"}, config.Paranoia)
	assert.Equal(t, []string{"/usr/lib/rack/plugins"}, config.PluginDirs)
	assert.True(t, config.Audit.Enabled)
	assert.Equal(t, "/var/log/rack-audit.jsonl", config.Audit.OutputFile)
}

func TestLoadRackConfig_DefaultUID(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "rack.json", `{"major_type": "auth"}`)

	// An absent authorized_uid means "the current user".
	config, err := LoadRackConfig(path)
	require.NoError(t, err)
	assert.Equal(t, -1, config.AuthorizedUID)
}

func TestLoadRackConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty_path", func(t *testing.T) {
		_, err := LoadRackConfig("")
		require.Error(t, err)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadRackConfig(filepath.Join(dir, "absent.json"))
		require.Error(t, err)
	})

	t.Run("empty_file", func(t *testing.T) {
		path := writeConfigFile(t, dir, "empty.json", "")
		_, err := LoadRackConfig(path)
		require.Error(t, err)
	})

	t.Run("malformed_json", func(t *testing.T) {
		path := writeConfigFile(t, dir, "broken.json", `{"major_type": `)
		_, err := LoadRackConfig(path)
		require.Error(t, err)
	})

	t.Run("unknown_paranoia_flag", func(t *testing.T) {
		path := writeConfigFile(t, dir, "flags.json", `{"paranoia": ["bogus"]}`)
		_, err := LoadRackConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bogus")
	})
}

func TestRackConfig_Validate(t *testing.T) {
	t.Run("default_is_valid", func(t *testing.T) {
		config := DefaultRackConfig()
		assert.NoError(t, config.Validate())
	})

	t.Run("empty_dir_entry_rejected", func(t *testing.T) {
		config := DefaultRackConfig()
		config.PluginDirs = []string{"/usr/lib/plugins", ""}
		require.Error(t, config.Validate())
	})

	t.Run("empty_file_entry_rejected", func(t *testing.T) {
		config := DefaultRackConfig()
		config.PluginFiles = []string{""}
		require.Error(t, config.Validate())
	})

	t.Run("audit_requires_output_file", func(t *testing.T) {
		config := DefaultRackConfig()
		config.Audit.Enabled = true
		require.Error(t, config.Validate())
	})
}

func TestRack_ApplyConfig(t *testing.T) {
	host := newFakeHost()
	dir := t.TempDir()
	writePluginFile(t, host, dir, "auth_x.so", "auth/x")
	single := writePluginFile(t, host, dir, "auth_y.so", "auth/y")

	config := DefaultRackConfig()
	config.MajorType = "auth"
	config.Paranoia = []string{"file_writable"}
	config.PluginFiles = []string{single}
	config.PluginDirs = []string{dir}
	config.Preload = true

	rack := New(host)
	require.NoError(t, rack.ApplyConfig(config))

	assert.Equal(t, "auth", rack.MajorType())
	assert.Equal(t, ParanoiaFileWritable, rack.Paranoia())

	// auth/y from plugin_files, then both dir candidates; duplicates are
	// permitted so auth/y appears twice.
	assert.Equal(t, 3, rack.Len())

	// Preload left everything resident but unreferenced.
	stats := rack.Stats()
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 0, stats.Active)
}

func TestRack_ApplyConfig_ExplicitFileFailureAborts(t *testing.T) {
	host := newFakeHost()
	dir := t.TempDir()
	loose := writePluginFile(t, host, dir, "loose.so", "auth/loose")
	require.NoError(t, os.Chmod(loose, 0o666))

	config := DefaultRackConfig()
	config.Paranoia = []string{"file_writable"}
	config.PluginFiles = []string{loose}

	rack := New(host)
	require.Error(t, rack.ApplyConfig(config))
	assert.Equal(t, 0, rack.Len())
}
