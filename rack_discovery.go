// rack_discovery.go: Candidate discovery - explicit registration and directory scans
//
// Discovery never loads plugin code. It validates candidates against the
// rack's paranoia policy, probes their declared type through the module
// host's cheap PeekType, filters by the rack's major type and appends
// entries in Registered state. Validation strictly precedes the type probe:
// even PeekType touches the candidate file, and nothing may touch a file the
// policy rejects.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"os"
	"path/filepath"
	"strings"
)

// AddFile registers a single plugin file with the rack.
//
// The file must pass the paranoia policy, its declared type must be probed
// successfully, and the type must match the rack's major type prefix; each
// failure is surfaced as an explicit error, unlike the silent per-file skips
// of ScanDir. No de-duplication is performed: registering a second candidate
// of an already known type is legal and lookup returns the first.
func (r *Rack) AddFile(path string) error {
	if path == "" {
		return NewEmptyPathError()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Paranoia checks always come first since code can be executed in the
	// plugin simply by opening it.
	if err := r.policy.acceptCandidate(path); err != nil {
		r.stats.Rejections++
		r.auditLocked("plugin_rejected", map[string]interface{}{
			"path":   path,
			"reason": err.Error(),
		})
		return err
	}

	fullType, err := r.host.PeekType(path, TypeProbeLen)
	if err != nil {
		return NewPeekFailedError(path, err)
	}

	if !r.matchesMajorType(fullType) {
		return NewTypeRejectedError(fullType, r.majorType)
	}

	r.register(fullType, path)
	return nil
}

// ScanDir discovers every acceptable plugin module in a directory.
//
// The directory itself is validated once against the directory-level policy
// flags; failing that, or failing to read the directory, aborts the whole
// scan. Individual files are then checked independently - non-regular files,
// files rejected by the file-level policy, unreadable type probes and
// mismatched types are skipped silently and the scan continues. The
// asymmetry is intentional: one malformed or unauthorized file must not
// abort discovery of the rest.
func (r *Rack) ScanDir(dir string) error {
	if dir == "" {
		return NewEmptyPathError()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.policy.acceptDir(dir); err != nil {
		r.stats.Rejections++
		r.auditLocked("plugin_dir_rejected", map[string]interface{}{
			"dir":    dir,
			"reason": err.Error(),
		})
		return err
	}

	dirents, err := os.ReadDir(dir)
	if err != nil {
		return NewScanFailedError(dir, err)
	}

	for _, de := range dirents {
		// Check only regular files; symlinks and devices never qualify.
		if !de.Type().IsRegular() {
			continue
		}

		path := filepath.Join(dir, de.Name())

		if err := r.policy.acceptFile(path); err != nil {
			r.stats.Rejections++
			r.auditLocked("plugin_rejected", map[string]interface{}{
				"path":   path,
				"reason": err.Error(),
			})
			r.logger.Debug("Skipping plugin candidate rejected by policy",
				"path", path, "error", err)
			continue
		}

		fullType, err := r.host.PeekType(path, TypeProbeLen)
		if err != nil {
			r.logger.Debug("Skipping unreadable plugin candidate",
				"path", path, "error", err)
			continue
		}

		if !r.matchesMajorType(fullType) {
			r.logger.Debug("Skipping plugin candidate outside major type",
				"path", path, "declared_type", fullType, "major_type", r.majorType)
			continue
		}

		r.register(fullType, path)
	}

	return nil
}

// matchesMajorType applies the rack's namespace filter to a declared type.
//
// This is a raw prefix compare, NOT a delimiter-aware namespace match: major
// type "auth" accepts "authxyz" as well as "auth/foo". Downstream consumers
// of the original rack depend on the loose match, so it is reproduced here
// rather than tightened. Callers hold the rack lock.
func (r *Rack) matchesMajorType(fullType string) bool {
	if r.majorType == "" {
		return true
	}
	return strings.HasPrefix(fullType, r.majorType)
}

// register appends a new idle entry. Callers hold the rack lock and have
// already validated and type-checked the candidate.
func (r *Rack) register(fullType, path string) {
	r.entries = append(r.entries, &rackEntry{
		fullType: fullType,
		path:     path,
	})

	r.auditLocked("plugin_registered", map[string]interface{}{
		"full_type": fullType,
		"path":      path,
	})
	r.logger.Info("Registered plugin candidate",
		"full_type", fullType,
		"path", path)
}
