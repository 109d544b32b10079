// rack.go: Plugin rack - discovery, policy and lifetime container for plugins
//
// A Rack owns an ordered collection of discovered plugin candidates and is
// the only component allowed to load or unload them. All operations on a
// rack are serialized under one mutex: discovery, acquisition, release,
// purging and teardown all mutate the shared entry collection and per-entry
// load state, and module callbacks must never race an unload of the module
// whose code is executing.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"sync"
	"time"

	"github.com/agilira/argus"
	"github.com/agilira/go-timecache"
)

// nobodyUID is the uid 99 "nobody" account, the authorized owner until the
// caller installs a real policy.
const nobodyUID = 99

// rackEntry is the record for one discovered plugin candidate.
//
// fullType is the fully-qualified type the module declares ("auth/munge").
// path is immutable once set. module is nil while the plugin is not loaded;
// handleID identifies the current load generation so stale handles from a
// previous load never match. refCount counts outstanding Acquire calls not
// yet matched by a Release; refCount > 0 implies module != nil.
type rackEntry struct {
	fullType string
	path     string
	module   Module
	handleID uint64
	refCount int
	loadedAt time.Time
	lastUsed time.Time
}

func (e *rackEntry) loaded() bool {
	return e.module != nil
}

func (e *rackEntry) state() EntryState {
	switch {
	case !e.loaded():
		return StateRegistered
	case e.refCount > 0:
		return StateActive
	default:
		return StateIdle
	}
}

// Rack tracks known plugin candidates and their load state.
//
// Entries are kept in insertion order; duplicate types are permitted and the
// first match wins on lookup. The rack exclusively owns its entries - no
// entry is ever shared across racks - and it is the single close path for
// every module it loads.
type Rack struct {
	mu      sync.Mutex
	entries []*rackEntry

	// Policy
	majorType string
	policy    paranoiaPolicy

	// Collaborators
	host   ModuleHost
	logger Logger

	// Audit integration
	auditLogger *argus.AuditLogger

	// State
	nextHandleID uint64
	destroyed    bool
	stats        RackStats
}

// Option configures a Rack during construction.
type Option func(*Rack)

// WithMajorType restricts the rack to plugins whose declared type starts
// with the given namespace prefix.
func WithMajorType(majorType string) Option {
	return func(r *Rack) {
		r.majorType = majorType
	}
}

// WithParanoia installs the rack's security policy: which filesystem trust
// checks to enforce and which uid counts as the authorized owner.
func WithParanoia(flags Paranoia, uid int) Option {
	return func(r *Rack) {
		r.policy = paranoiaPolicy{flags: flags, uid: uid}
	}
}

// WithLogger installs a logger; the default is silent.
func WithLogger(logger Logger) Option {
	return func(r *Rack) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an empty rack bound to the given module host.
//
// The default posture is permissive: no major type filter, no paranoia
// checks, uid "nobody". Use options or the Set methods to tighten it before
// running discovery.
func New(host ModuleHost, opts ...Option) *Rack {
	r := &Rack{
		host:   host,
		logger: DefaultLogger(),
		policy: paranoiaPolicy{flags: ParanoiaNone, uid: nobodyUID},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetMajorType changes the required type-namespace prefix. Entries already
// registered are unaffected; the filter applies to subsequent discovery and
// the prefix is matched against the raw declared type string.
func (r *Rack) SetMajorType(majorType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.majorType = majorType
}

// MajorType returns the rack's current namespace filter.
func (r *Rack) MajorType() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.majorType
}

// SetParanoia replaces the rack's security policy. The uid is recorded only
// when at least one check is enabled.
func (r *Rack) SetParanoia(flags Paranoia, uid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy.flags = flags
	if flags != ParanoiaNone {
		r.policy.uid = uid
	}
}

// Paranoia returns the rack's current security policy flags.
func (r *Rack) Paranoia() Paranoia {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policy.flags
}

// EnableAudit attaches an Argus audit trail to the rack. Security decisions,
// loads, unloads and destroy refusals are recorded as security events.
func (r *Rack) EnableAudit(config argus.AuditConfig) error {
	auditor, err := argus.NewAuditLogger(config)
	if err != nil {
		return NewConfigInvalidError("failed to create audit logger", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.auditLogger != nil {
		if err := r.auditLogger.Close(); err != nil {
			r.logger.Warn("Failed to close replaced audit logger", "error", err)
		}
	}
	r.auditLogger = auditor

	r.logger.Info("Rack audit trail enabled", "file", config.OutputFile)
	return nil
}

// audit records a rack security event, taking the rack lock. Safe to call
// from collaborator goroutines such as the config watcher's Argus callback,
// which may run concurrently with rack teardown.
func (r *Rack) audit(event string, context map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auditLocked(event, context)
}

// auditLocked records a rack security event. Callers hold the rack lock.
func (r *Rack) auditLocked(event string, context map[string]interface{}) {
	if r.auditLogger == nil {
		return
	}
	r.auditLogger.LogSecurityEvent(event, "Plugin rack lifecycle event", context)
}

// Destroy tears the rack down: every idle or registered entry is unloaded
// and discarded. Destroy refuses to run while any entry has outstanding
// users - unloading a module still referenced by live code would invalidate
// cached function addresses inside the caller - and in that case the rack is
// left completely unchanged so the caller can retry after releasing.
func (r *Rack) Destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.destroyed {
		return nil
	}

	for _, e := range r.entries {
		if e.refCount > 0 {
			r.auditLocked("rack_destroy_refused", map[string]interface{}{
				"full_type": e.fullType,
				"ref_count": e.refCount,
			})
			return NewStillInUseError(e.fullType, e.refCount)
		}
	}

	for _, e := range r.entries {
		if e.loaded() {
			r.unloadEntry(e)
		}
	}
	r.entries = nil
	r.destroyed = true

	r.auditLocked("rack_destroyed", map[string]interface{}{
		"total_loads":   r.stats.TotalLoads,
		"total_unloads": r.stats.TotalUnloads,
	})

	if r.auditLogger != nil {
		if err := r.auditLogger.Close(); err != nil {
			r.logger.Warn("Failed to close audit logger during rack teardown", "error", err)
		}
		r.auditLogger = nil
	}

	r.logger.Info("Rack destroyed")
	return nil
}

// unloadEntry closes the entry's module and returns it to the Registered
// state. Callers hold the rack lock and have verified refCount == 0.
func (r *Rack) unloadEntry(e *rackEntry) {
	if err := e.module.Close(); err != nil {
		r.logger.Warn("Module close reported an error",
			"full_type", e.fullType,
			"path", e.path,
			"error", err)
	}
	e.module = nil
	e.handleID = 0
	e.loadedAt = time.Time{}
	r.stats.TotalUnloads++

	r.auditLocked("plugin_unloaded", map[string]interface{}{
		"full_type": e.fullType,
		"path":      e.path,
	})
}

// Len returns the number of registered entries.
func (r *Rack) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entries returns a snapshot of every entry in insertion order.
func (r *Rack) Entries() []EntryInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]EntryInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, EntryInfo{
			FullType: e.fullType,
			Path:     e.path,
			State:    e.state(),
			RefCount: e.refCount,
			LoadedAt: e.loadedAt,
			LastUsed: e.lastUsed,
		})
	}
	return infos
}

// Stats returns a snapshot of the rack's aggregate statistics.
func (r *Rack) Stats() RackStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.stats
	stats.Entries = len(r.entries)
	for _, e := range r.entries {
		if e.loaded() {
			stats.Loaded++
		}
		if e.refCount > 0 {
			stats.Active++
		}
	}
	return stats
}

// ReadCache would seed the rack from a serialized discovery cache. The
// capability was never implemented in the original rack and is kept as an
// explicit extension point; the call always fails.
func (r *Rack) ReadCache(path string) error {
	return NewInvalidArgumentError("discovery cache not implemented")
}

// WriteCache would serialize the rack's discovery results. Like ReadCache it
// is an unimplemented extension point, but writing is a harmless no-op.
func (r *Rack) WriteCache(path string) error {
	return nil
}

// touch records use of an entry for statistics. Callers hold the rack lock.
func (e *rackEntry) touch() {
	e.lastUsed = timecache.CachedTime()
}
