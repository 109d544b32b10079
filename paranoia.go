// paranoia.go: Filesystem trust validation for plugin candidates
//
// Before the rack lets the module host open a candidate file it verifies,
// according to a configurable "paranoia" policy, that the file and its
// containing directory are owned by the authorized user and writable by no
// one else. The ordering is load-bearing: opening a dynamic module executes
// its static initializers, so any bypass here is a code-execution
// vulnerability rather than a data-integrity one. A securely-owned file in a
// world-writable directory is still unsafe - anyone could swap the file
// before it is opened - which is why the directory is checked too.
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

// Paranoia is a bitmask selecting which filesystem trust checks the rack
// enforces before opening a plugin module.
type Paranoia uint8

const (
	// ParanoiaNone disables all checks; every candidate is accepted.
	// This is the default, permissive posture.
	ParanoiaNone Paranoia = 0

	// ParanoiaFileOwner requires the plugin file to be owned by the
	// rack's authorized user.
	ParanoiaFileOwner Paranoia = 1 << iota

	// ParanoiaFileWritable rejects plugin files writable by group or others.
	ParanoiaFileWritable

	// ParanoiaDirOwner requires the containing directory to be owned by
	// the rack's authorized user.
	ParanoiaDirOwner

	// ParanoiaDirWritable rejects containing directories writable by group
	// or others.
	ParanoiaDirWritable
)

// String returns the symbolic flag names joined by "|", or "none".
func (p Paranoia) String() string {
	if p == ParanoiaNone {
		return "none"
	}
	var names []string
	if p&ParanoiaFileOwner != 0 {
		names = append(names, "file_owner")
	}
	if p&ParanoiaFileWritable != 0 {
		names = append(names, "file_writable")
	}
	if p&ParanoiaDirOwner != 0 {
		names = append(names, "dir_owner")
	}
	if p&ParanoiaDirWritable != 0 {
		names = append(names, "dir_writable")
	}
	return strings.Join(names, "|")
}

// ParseParanoia converts symbolic flag names (as used in rack configuration
// files) into a Paranoia bitmask. Unknown names are rejected.
func ParseParanoia(names []string) (Paranoia, error) {
	var flags Paranoia
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "", "none":
			// Explicit "none" contributes nothing.
		case "file_owner":
			flags |= ParanoiaFileOwner
		case "file_writable":
			flags |= ParanoiaFileWritable
		case "dir_owner":
			flags |= ParanoiaDirOwner
		case "dir_writable":
			flags |= ParanoiaDirWritable
		default:
			return ParanoiaNone, NewConfigInvalidError("unknown paranoia flag: "+name, nil)
		}
	}
	return flags, nil
}

// paranoiaPolicy is the rack's concrete trust policy: which checks to run
// and which user counts as authorized when ownership checks are enabled.
type paranoiaPolicy struct {
	flags Paranoia
	uid   int
}

// acceptPath checks a single filesystem node against the two independent
// switches. Accepts unconditionally when both are off. Rejects when the node
// cannot be statted, when ownership is required and does not match, or when
// writability must be restricted and the node is group- or world-writable.
func (p paranoiaPolicy) acceptPath(path string, checkOwner, checkWritable bool) error {
	if !checkOwner && !checkWritable {
		return nil
	}

	fi, err := os.Stat(path)
	if err != nil {
		return NewValidationRejectedError(path, "cannot stat path")
	}

	if checkOwner {
		uid, ok := fileOwnerUID(fi)
		if !ok {
			return NewOwnerCheckUnsupportedError(path)
		}
		if int(uid) != p.uid {
			return NewValidationRejectedError(path, "not owned by authorized user")
		}
	}

	if checkWritable {
		if fi.Mode().Perm()&0o022 != 0 {
			return NewValidationRejectedError(path, "writable by group or others")
		}
	}

	return nil
}

// acceptCandidate applies the full policy to a candidate plugin file: the
// file-level flags against the file itself, then the directory-level flags
// against its containing directory. The directory is derived by trimming the
// path at its last separator; a path with no separator is malformed, since
// plugins must be referenced by fully-qualified pathnames.
func (p paranoiaPolicy) acceptCandidate(path string) error {
	// Trivial accept.
	if p.flags == ParanoiaNone {
		return nil
	}

	if err := p.acceptPath(path,
		p.flags&ParanoiaFileOwner != 0,
		p.flags&ParanoiaFileWritable != 0); err != nil {
		return err
	}

	idx := strings.LastIndexByte(path, filepath.Separator)
	if idx < 0 {
		return NewMalformedPathError(path)
	}
	dir := path[:idx]
	if idx == 0 {
		dir = string(filepath.Separator)
	}

	return p.acceptPath(dir,
		p.flags&ParanoiaDirOwner != 0,
		p.flags&ParanoiaDirWritable != 0)
}

// acceptDir applies only the directory-level flags, used once per ScanDir so
// the directory is not re-checked for every file it contains.
func (p paranoiaPolicy) acceptDir(dir string) error {
	return p.acceptPath(dir,
		p.flags&ParanoiaDirOwner != 0,
		p.flags&ParanoiaDirWritable != 0)
}

// acceptFile applies only the file-level flags, used per file during ScanDir.
func (p paranoiaPolicy) acceptFile(path string) error {
	return p.acceptPath(path,
		p.flags&ParanoiaFileOwner != 0,
		p.flags&ParanoiaFileWritable != 0)
}
