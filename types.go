// types.go: Common data types for the plugin rack
//
// This file contains the shared data models used throughout the rack:
// per-entry lifecycle states, externally visible entry snapshots, and
// aggregate rack statistics. Keeping these separate from the rack logic
// mirrors the rest of the library's file organization.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"time"
)

// EntryState represents the lifecycle state of a rack entry.
//
// The state machine per entry:
//   - StateRegistered: discovered, not loaded, no users
//   - StateActive: loaded with at least one outstanding Acquire
//   - StateIdle: loaded but currently unreferenced (candidates for PurgeIdle)
//
// Transitions: Registered → Active on a successful Acquire; Active → Idle
// when the last Release lands; Idle → Active on re-acquisition; Idle →
// Registered via PurgeIdle. PurgeIdle never touches Active entries.
type EntryState int

const (
	StateRegistered EntryState = iota
	StateActive
	StateIdle
)

// String returns a human-readable representation of the entry state.
func (s EntryState) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// EntryInfo is a read-only snapshot of one rack entry.
//
// Snapshots are taken under the rack lock and are safe to retain; they do
// not track subsequent entry mutations.
type EntryInfo struct {
	FullType string     `json:"full_type"`
	Path     string     `json:"path"`
	State    EntryState `json:"state"`
	RefCount int        `json:"ref_count"`
	LoadedAt time.Time  `json:"loaded_at,omitempty"`
	LastUsed time.Time  `json:"last_used,omitempty"`
}

// RackStats provides aggregate statistics about a rack.
//
// Counters are cumulative over the rack's lifetime; gauges reflect the
// moment the snapshot was taken.
type RackStats struct {
	Entries       int   `json:"entries"`
	Loaded        int   `json:"loaded"`
	Active        int   `json:"active"`
	TotalAcquires int64 `json:"total_acquires"`
	TotalReleases int64 `json:"total_releases"`
	TotalLoads    int64 `json:"total_loads"`
	TotalUnloads  int64 `json:"total_unloads"`
	LoadFailures  int64 `json:"load_failures"`
	Rejections    int64 `json:"rejections"`
}
