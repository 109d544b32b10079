// testing_support_test.go: Shared test doubles for rack tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// fakeModule is a Module backed by an in-memory symbol table.
type fakeModule struct {
	declaredType string
	symbols      map[string]any
	closeErr     error

	mu         sync.Mutex
	closed     bool
	closeCalls int
}

func (m *fakeModule) Type() string { return m.declaredType }

func (m *fakeModule) Lookup(symbol string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("module is closed")
	}
	sym, ok := m.symbols[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %q not found", symbol)
	}
	return sym, nil
}

func (m *fakeModule) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.closed = true
	return m.closeErr
}

func (m *fakeModule) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// fakeHost is a ModuleHost over an in-memory path registry. It counts Open
// and PeekType calls per path so tests can prove that security validation
// runs before the host ever touches a candidate.
type fakeHost struct {
	mu      sync.Mutex
	types   map[string]string // path -> declared type
	symbols map[string]map[string]any
	openErr map[string]error
	peekErr map[string]error

	openCalls map[string]int
	peekCalls map[string]int

	openedModules []*fakeModule
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		types:     make(map[string]string),
		symbols:   make(map[string]map[string]any),
		openErr:   make(map[string]error),
		peekErr:   make(map[string]error),
		openCalls: make(map[string]int),
		peekCalls: make(map[string]int),
	}
}

// addModule registers a loadable module at path with the given declared type.
func (h *fakeHost) addModule(path, declaredType string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.types[path] = declaredType
}

// addSymbol makes a symbol resolvable in modules opened from path.
func (h *fakeHost) addSymbol(path, symbol string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.symbols[path] == nil {
		h.symbols[path] = make(map[string]any)
	}
	h.symbols[path][symbol] = value
}

func (h *fakeHost) failOpen(path string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openErr[path] = err
}

func (h *fakeHost) failPeek(path string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peekErr[path] = err
}

func (h *fakeHost) Open(path string) (Module, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openCalls[path]++

	if err := h.openErr[path]; err != nil {
		return nil, err
	}
	declaredType, ok := h.types[path]
	if !ok {
		return nil, fmt.Errorf("no module at %s", path)
	}

	module := &fakeModule{
		declaredType: declaredType,
		symbols:      h.symbols[path],
	}
	h.openedModules = append(h.openedModules, module)
	return module, nil
}

func (h *fakeHost) PeekType(path string, maxLen int) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peekCalls[path]++

	if err := h.peekErr[path]; err != nil {
		return "", err
	}
	declaredType, ok := h.types[path]
	if !ok {
		return "", fmt.Errorf("no module at %s", path)
	}
	if len(declaredType) > maxLen {
		declaredType = declaredType[:maxLen]
	}
	return declaredType, nil
}

func (h *fakeHost) touched(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.openCalls[path] + h.peekCalls[path]
}

func (h *fakeHost) lastOpened() *fakeModule {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.openedModules) == 0 {
		return nil
	}
	return h.openedModules[len(h.openedModules)-1]
}

// writePluginFile creates a plugin candidate on disk so filesystem checks
// and directory scans have something real to stat, and registers it with the
// host under the declared type.
func writePluginFile(t *testing.T, host *fakeHost, dir, name, declaredType string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(declaredType), 0o600); err != nil {
		t.Fatalf("Failed to write plugin file: %v", err)
	}
	host.addModule(path, declaredType)
	return path
}
