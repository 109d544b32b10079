// rack_test.go: Rack construction, policy and teardown tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"path/filepath"
	"testing"

	"github.com/agilira/argus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	rack := New(newFakeHost())

	assert.Equal(t, 0, rack.Len())
	assert.Equal(t, "", rack.MajorType())
	assert.Equal(t, ParanoiaNone, rack.Paranoia())
}

func TestNew_Options(t *testing.T) {
	logger := NewTestLogger()
	rack := New(newFakeHost(),
		WithMajorType("auth"),
		WithParanoia(ParanoiaFileOwner|ParanoiaFileWritable, 42),
		WithLogger(logger))

	assert.Equal(t, "auth", rack.MajorType())
	assert.Equal(t, ParanoiaFileOwner|ParanoiaFileWritable, rack.Paranoia())
}

func TestRack_SetMajorType(t *testing.T) {
	rack := New(newFakeHost())

	rack.SetMajorType("sched")
	assert.Equal(t, "sched", rack.MajorType())

	// Clearing the filter re-opens the rack to every namespace.
	rack.SetMajorType("")
	assert.Equal(t, "", rack.MajorType())
}

func TestRack_SetParanoia(t *testing.T) {
	rack := New(newFakeHost())

	rack.SetParanoia(ParanoiaDirOwner, 1000)
	assert.Equal(t, ParanoiaDirOwner, rack.Paranoia())

	// Disabling all checks keeps the previously recorded uid.
	rack.SetParanoia(ParanoiaNone, 2000)
	assert.Equal(t, ParanoiaNone, rack.Paranoia())
}

func TestRack_DestroyEmpty(t *testing.T) {
	rack := New(newFakeHost())

	require.NoError(t, rack.Destroy())

	// Destroy is idempotent once it succeeded.
	require.NoError(t, rack.Destroy())
}

func TestRack_DestroyRefusedWhileInUse(t *testing.T) {
	host := newFakeHost()
	dir := t.TempDir()
	path := writePluginFile(t, host, dir, "auth_munge.so", "auth/munge")

	rack := New(host)
	require.NoError(t, rack.AddFile(path))

	handle, err := rack.Acquire("auth/munge")
	require.NoError(t, err)
	require.True(t, handle.Valid())

	// Teardown must refuse while the plugin has an outstanding user and
	// leave the rack exactly as it was.
	err = rack.Destroy()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use")
	assert.Equal(t, 1, rack.Len())
	assert.False(t, host.lastOpened().isClosed())

	entries := rack.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StateActive, entries[0].State)
	assert.Equal(t, 1, entries[0].RefCount)

	// After the user releases, the same Destroy call succeeds and the
	// module is closed through the rack.
	require.NoError(t, rack.Release(handle))
	require.NoError(t, rack.Destroy())
	assert.Equal(t, 0, rack.Len())
	assert.True(t, host.lastOpened().isClosed())
}

func TestRack_DestroyUnloadsIdleEntries(t *testing.T) {
	host := newFakeHost()
	dir := t.TempDir()
	pathA := writePluginFile(t, host, dir, "a.so", "auth/a")
	pathB := writePluginFile(t, host, dir, "b.so", "auth/b")

	rack := New(host)
	require.NoError(t, rack.AddFile(pathA))
	require.NoError(t, rack.AddFile(pathB))

	handle, err := rack.Acquire("auth/a")
	require.NoError(t, err)
	require.NoError(t, rack.Release(handle))

	require.NoError(t, rack.Destroy())

	stats := rack.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(1), stats.TotalLoads)
	assert.Equal(t, int64(1), stats.TotalUnloads)
}

func TestRack_EntriesSnapshot(t *testing.T) {
	host := newFakeHost()
	dir := t.TempDir()
	pathA := writePluginFile(t, host, dir, "a.so", "auth/a")
	pathB := writePluginFile(t, host, dir, "b.so", "auth/b")

	rack := New(host)
	require.NoError(t, rack.AddFile(pathA))
	require.NoError(t, rack.AddFile(pathB))

	handle, err := rack.Acquire("auth/b")
	require.NoError(t, err)
	defer func() { _ = rack.Release(handle) }()

	entries := rack.Entries()
	require.Len(t, entries, 2)

	// Insertion order is preserved.
	assert.Equal(t, "auth/a", entries[0].FullType)
	assert.Equal(t, StateRegistered, entries[0].State)
	assert.True(t, entries[0].LoadedAt.IsZero())

	assert.Equal(t, "auth/b", entries[1].FullType)
	assert.Equal(t, StateActive, entries[1].State)
	assert.Equal(t, 1, entries[1].RefCount)
	assert.False(t, entries[1].LoadedAt.IsZero())
}

func TestRack_Stats(t *testing.T) {
	host := newFakeHost()
	dir := t.TempDir()
	path := writePluginFile(t, host, dir, "a.so", "auth/a")

	rack := New(host)
	require.NoError(t, rack.AddFile(path))

	handle, err := rack.Acquire("auth/a")
	require.NoError(t, err)

	stats := rack.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, int64(1), stats.TotalAcquires)
	assert.Equal(t, int64(1), stats.TotalLoads)

	require.NoError(t, rack.Release(handle))
	rack.PurgeIdle()

	stats = rack.Stats()
	assert.Equal(t, 0, stats.Loaded)
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, int64(1), stats.TotalReleases)
	assert.Equal(t, int64(1), stats.TotalUnloads)
}

func TestRack_AuditConcurrentWithDestroy(t *testing.T) {
	// The config watcher emits audit events from the Argus callback
	// goroutine while the owner may be tearing the rack down; the audit
	// path must synchronize with Destroy clearing the logger.
	rack := New(newFakeHost())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			rack.audit("rack_config_reloaded", nil)
		}
	}()

	require.NoError(t, rack.Destroy())
	<-done
}

func TestRack_EnableAuditReplacesTrail(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "audit1.jsonl")
	second := filepath.Join(dir, "audit2.jsonl")

	rack := New(newFakeHost())
	require.NoError(t, rack.EnableAudit(argus.AuditConfig{
		Enabled:    true,
		OutputFile: first,
		MinLevel:   argus.AuditInfo,
	}))

	// Re-enabling closes the previous trail before installing the new one.
	require.NoError(t, rack.EnableAudit(argus.AuditConfig{
		Enabled:    true,
		OutputFile: second,
		MinLevel:   argus.AuditInfo,
	}))

	require.NoError(t, rack.Destroy())
}

func TestRack_DiscoveryCacheStubs(t *testing.T) {
	rack := New(newFakeHost())

	// Reading a cache is explicitly unimplemented; writing is a no-op.
	assert.Error(t, rack.ReadCache("/tmp/rack.cache"))
	assert.NoError(t, rack.WriteCache("/tmp/rack.cache"))
}

func TestEntryState_String(t *testing.T) {
	assert.Equal(t, "registered", StateRegistered.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "unknown", EntryState(99).String())
}
