// rack_lifecycle.go: Demand loading, reference counting and unload policy
//
// Plugins are loaded lazily on first Acquire and stay resident afterwards;
// the rack never unloads a plugin implicitly. Release only decrements the
// reference count - reclaiming idle plugins is an explicit, separate
// decision made through PurgeIdle, and eager warm-up is LoadAll.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import "github.com/agilira/go-timecache"

// Acquire returns a handle on the first registered plugin whose full type
// matches fullType exactly, loading it on demand.
//
// The reference count is incremented only once the plugin is actually
// loaded; a failed load leaves the entry unloaded with its count untouched,
// so a later Acquire retries the load from scratch. All acquirers of one
// resident load share the same handle value.
func (r *Rack) Acquire(fullType string) (Handle, error) {
	if fullType == "" {
		return InvalidHandle, NewEmptyTypeError()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// First registration wins when several entries declare the same type.
	var entry *rackEntry
	for _, e := range r.entries {
		if e.fullType == fullType {
			entry = e
			break
		}
	}
	if entry == nil {
		return InvalidHandle, NewPluginNotFoundError(fullType)
	}

	if !entry.loaded() {
		module, err := r.host.Open(entry.path)
		if err != nil {
			r.stats.LoadFailures++
			r.logger.Error("Plugin load failed",
				"full_type", entry.fullType,
				"path", entry.path,
				"error", err)
			return InvalidHandle, NewLoadFailedError(entry.fullType, entry.path, err)
		}

		r.nextHandleID++
		entry.module = module
		entry.handleID = r.nextHandleID
		entry.loadedAt = timecache.CachedTime()
		r.stats.TotalLoads++

		r.auditLocked("plugin_loaded", map[string]interface{}{
			"full_type": entry.fullType,
			"path":      entry.path,
		})
		r.logger.Info("Loaded plugin",
			"full_type", entry.fullType,
			"path", entry.path)
	}

	entry.refCount++
	entry.touch()
	r.stats.TotalAcquires++

	return Handle{id: entry.handleID}, nil
}

// Release gives back a handle obtained from Acquire. The plugin stays
// resident; a zero reference count merely makes it eligible for PurgeIdle.
// Over-releasing clamps the count at zero rather than driving it negative.
func (r *Rack) Release(h Handle) error {
	if !h.Valid() {
		return NewUnknownHandleError()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.loaded() && e.handleID == h.id {
			if e.refCount > 0 {
				e.refCount--
			}
			e.touch()
			r.stats.TotalReleases++
			return nil
		}
	}

	return NewUnknownHandleError()
}

// PurgeIdle unloads every resident plugin whose reference count is zero.
// Entries stay registered and can be reloaded by a later Acquire.
func (r *Rack) PurgeIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.loaded() && e.refCount == 0 {
			r.unloadEntry(e)
		}
	}
}

// LoadAll eagerly loads every registered plugin without taking references.
// Loading is best effort: entries that fail to load are left registered and
// the walk continues. Useful to front-load dlopen cost before serving.
func (r *Rack) LoadAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.loaded() {
			continue
		}

		module, err := r.host.Open(e.path)
		if err != nil {
			r.stats.LoadFailures++
			r.logger.Warn("Plugin preload failed",
				"full_type", e.fullType,
				"path", e.path,
				"error", err)
			continue
		}

		r.nextHandleID++
		e.module = module
		e.handleID = r.nextHandleID
		e.loadedAt = timecache.CachedTime()
		e.touch()
		r.stats.TotalLoads++

		r.auditLocked("plugin_loaded", map[string]interface{}{
			"full_type": e.fullType,
			"path":      e.path,
		})
	}
}

// Lookup resolves a symbol in the loaded plugin identified by a handle.
func (r *Rack) Lookup(h Handle, symbol string) (any, error) {
	if !h.Valid() {
		return nil, NewUnknownHandleError()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.loaded() && e.handleID == h.id {
			e.touch()
			return e.module.Lookup(symbol)
		}
	}

	return nil, NewUnknownHandleError()
}
