// Package plugrack provides plugin discovery and lifecycle management for
// cluster resource managers. It maintains a "rack" of candidate plugin modules
// found on disk, validates their trustworthiness before any code from them is
// executed, demand-loads them through a pluggable module host, and tracks how
// many clients are actively using each one so modules can be unloaded safely.
//
// Key Features:
//   - Filesystem discovery of plugin modules (single file or directory scan)
//   - Paranoia policy: ownership and writability checks on files and their
//     parent directories, enforced strictly before a module is opened
//   - Namespace filtering by fully-qualified plugin type ("auth/munge")
//   - Demand loading with per-entry reference counting and idle purging
//   - Ordered filter chains that bind a fixed plugin function table at load
//   - Hot-reload of rack policy via Argus configuration watching
//   - Comprehensive audit trail for security decisions and module lifecycle
//
// Basic Usage:
//
//	rack := plugrack.New(host,
//		plugrack.WithMajorType("auth"),
//		plugrack.WithParanoia(plugrack.ParanoiaFileOwner|plugrack.ParanoiaFileWritable, 0))
//	defer rack.Destroy()
//
//	// Discover candidates without loading any code
//	if err := rack.ScanDir("/usr/lib/cluster/plugins"); err != nil {
//		log.Fatal(err)
//	}
//
//	// Demand-load by fully-qualified type
//	handle, err := rack.Acquire("auth/munge")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer rack.Release(handle)
//
// Security:
// Validation always precedes module opening because opening a dynamic module
// executes its static initializers; an ownership or writability bypass here
// would be a code-execution vulnerability, not a data-integrity one. All
// security decisions can be audited through the Argus audit trail.
//
// Concurrency:
// A rack is a single mutual-exclusion domain. Discovery, acquire, release,
// purge and destroy are serialized; callers must balance every Acquire with a
// Release before the rack can be destroyed.
//
// Copyright (c) 2025 AGILira - A. Giordano
// SPDX-License-Identifier: MPL-2.0
package plugrack
