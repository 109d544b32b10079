// module_host.go: Module host contract consumed by the plugin rack
//
// The rack never maps dynamic modules into the process itself; it delegates
// to a ModuleHost supplied by the embedding application. The contract is
// deliberately narrow: open a module by path, probe a declared type without
// full initialization, resolve named symbols, close. Everything the rack
// guarantees about security and lifetimes is built on top of this interface.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

// TypeProbeLen is the maximum declared-type length requested from PeekType
// during discovery. Declared types are short namespace/variant strings; the
// bound keeps the probe cheap and rejects garbage declarations.
const TypeProbeLen = 64

// Module is a dynamic module mapped into the process by a ModuleHost.
//
// A Module must not be obtained except through a rack: opening a module
// executes its static initializers, so every Open is preceded by the rack's
// paranoia validation. The rack is also the single Close path; consumers
// interact with modules only through Handle tokens and the rack's Lookup.
type Module interface {
	// Type returns the fully-qualified type the module declares,
	// in "<namespace>/<variant>" form (e.g. "auth/munge").
	Type() string

	// Lookup resolves a named symbol exported by the module. The returned
	// value is asserted by the consumer against its capability interface.
	Lookup(symbol string) (any, error)

	// Close unmaps the module. The caller guarantees no outstanding use.
	Close() error
}

// ModuleHost opens and probes dynamic modules on behalf of a rack.
//
// Implementations wrap whatever low-level loading mechanism the platform
// provides. The rack guarantees that Open and PeekType are only invoked on
// paths that already passed its security validation.
type ModuleHost interface {
	// Open maps the module at path into the process and returns it.
	// Opening executes the module's static initializers.
	Open(path string) (Module, error)

	// PeekType reads the declared type string of the module at path without
	// requiring full initialization. At most maxLen bytes of type string are
	// examined. Used for cheap filtering before a real Open.
	PeekType(path string, maxLen int) (string, error)
}

// Handle is an opaque token for a loaded plugin held by a rack.
//
// Handles are issued by Acquire and consumed by Release. The zero value is
// the invalid sentinel: a failed Acquire returns InvalidHandle alongside its
// error, mirroring the error-as-return-value convention of the original
// rack interface. Callers must check Valid before use.
//
// A Handle never exposes the underlying Module, so double-close and
// use-after-unload are structurally impossible: the rack owns the module and
// its single Close path, and a stale Handle simply stops resolving.
type Handle struct {
	id uint64
}

// InvalidHandle is the "not loaded / load failed" sentinel.
var InvalidHandle = Handle{}

// Valid reports whether the handle refers to a live acquisition.
func (h Handle) Valid() bool {
	return h.id != 0
}
