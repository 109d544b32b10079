// filter_chain.go: Ordered submission filter chain resolved from a rack
//
// The chain is the rack's reference consumer: it acquires a configured list
// of filter plugins, binds each plugin's filter interface once at load and
// then dispatches submissions through every filter in configuration order.
// Function tables are never re-resolved per call.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package plugrack

import (
	"context"
	"strings"
	"sync"
)

// FilterSymbol is the exported symbol every submission filter plugin must
// provide. The symbol's value must implement SubmitFilter.
const FilterSymbol = "SubmitFilter"

// SubmitRequest is a mutable job submission passing through the chain.
// Filters may rewrite any field before the submission proceeds.
type SubmitRequest struct {
	JobName string            `json:"job_name"`
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// SubmitFilter is the capability interface filter plugins implement.
//
// PreSubmit runs before a submission is accepted and may mutate or reject
// it. PostSubmit runs after the submission has been assigned an id and is
// informational; its error still aborts the remaining chain.
type SubmitFilter interface {
	PreSubmit(ctx context.Context, req *SubmitRequest) error
	PostSubmit(ctx context.Context, jobID uint64, req *SubmitRequest) error
}

// boundFilter pairs a resolved filter with the rack handle that keeps its
// plugin resident.
type boundFilter struct {
	fullType string
	handle   Handle
	filter   SubmitFilter
}

// FilterChain dispatches submissions through an ordered list of filter
// plugins acquired from a rack.
type FilterChain struct {
	mu      sync.Mutex
	rack    *Rack
	logger  Logger
	list    string
	filters []boundFilter
	closed  bool
}

// NewFilterChain acquires and binds every plugin named in list, a
// comma-separated series of filter names ("lua,user_defaults"). Names are
// qualified with the rack's major type unless they already carry it. Any
// bind failure releases the filters acquired so far and fails the whole
// chain.
func NewFilterChain(rack *Rack, list string) (*FilterChain, error) {
	if rack == nil {
		return nil, NewInvalidArgumentError("rack")
	}

	chain := &FilterChain{
		rack:   rack,
		logger: rack.logger,
	}
	if err := chain.bindList(list); err != nil {
		return nil, err
	}
	chain.list = list
	return chain, nil
}

// bindList acquires and binds every filter in list. On failure the filters
// bound so far are released and the chain is left empty. Callers hold no
// lock during construction; Reconfig holds the chain lock.
func (c *FilterChain) bindList(list string) error {
	var bound []boundFilter

	release := func() {
		for _, f := range bound {
			if err := c.rack.Release(f.handle); err != nil {
				c.logger.Warn("Failed to release filter plugin",
					"full_type", f.fullType, "error", err)
			}
		}
	}

	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		fullType := c.qualify(name)

		handle, err := c.rack.Acquire(fullType)
		if err != nil {
			release()
			return err
		}

		sym, err := c.rack.Lookup(handle, FilterSymbol)
		if err != nil {
			if relErr := c.rack.Release(handle); relErr != nil {
				c.logger.Warn("Failed to release filter plugin",
					"full_type", fullType, "error", relErr)
			}
			release()
			return NewFilterBindFailedError(fullType, err)
		}

		filter, ok := sym.(SubmitFilter)
		if !ok {
			if relErr := c.rack.Release(handle); relErr != nil {
				c.logger.Warn("Failed to release filter plugin",
					"full_type", fullType, "error", relErr)
			}
			release()
			return NewFilterBindFailedError(fullType, NewInvalidArgumentError(FilterSymbol))
		}

		bound = append(bound, boundFilter{
			fullType: fullType,
			handle:   handle,
			filter:   filter,
		})
		c.logger.Info("Bound submission filter", "full_type", fullType)
	}

	c.filters = bound
	return nil
}

// qualify prepends the rack's major type to bare filter names. A name that
// already carries the prefix is accepted as-is for backward compatibility
// with fully-qualified lists.
func (c *FilterChain) qualify(name string) string {
	major := c.rack.MajorType()
	if major == "" || strings.HasPrefix(name, major) {
		return name
	}
	return major + "/" + name
}

// Len returns the number of bound filters.
func (c *FilterChain) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.filters)
}

// Filters returns the full types of the bound filters in dispatch order.
func (c *FilterChain) Filters() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]string, len(c.filters))
	for i, f := range c.filters {
		types[i] = f.fullType
	}
	return types
}

// PreSubmit runs the submission through every filter in order, stopping at
// the first rejection. The request may be mutated by filters that ran
// before the rejecting one.
func (c *FilterChain) PreSubmit(ctx context.Context, req *SubmitRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return NewChainClosedError()
	}
	for _, f := range c.filters {
		if err := f.filter.PreSubmit(ctx, req); err != nil {
			return NewFilterRejectedError(f.fullType, err)
		}
	}
	return nil
}

// PostSubmit notifies every filter of an accepted submission in order,
// stopping at the first error.
func (c *FilterChain) PostSubmit(ctx context.Context, jobID uint64, req *SubmitRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return NewChainClosedError()
	}
	for _, f := range c.filters {
		if err := f.filter.PostSubmit(ctx, jobID, req); err != nil {
			return NewFilterRejectedError(f.fullType, err)
		}
	}
	return nil
}

// Reconfig rebinds the chain against a new filter list. An unchanged list
// is a no-op. The old filters are released only after the new list bound
// successfully, so a failed reconfig leaves the previous chain intact.
func (c *FilterChain) Reconfig(list string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return NewChainClosedError()
	}
	if list == c.list {
		return nil
	}

	old := c.filters
	if err := c.bindList(list); err != nil {
		c.filters = old
		return err
	}

	for _, f := range old {
		if err := c.rack.Release(f.handle); err != nil {
			c.logger.Warn("Failed to release filter plugin",
				"full_type", f.fullType, "error", err)
		}
	}
	c.list = list
	c.logger.Info("Filter chain reconfigured", "filters", list)
	return nil
}

// Close releases every bound filter back to the rack. A second Close is an
// error.
func (c *FilterChain) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return NewChainClosedError()
	}
	c.closed = true

	for _, f := range c.filters {
		if err := c.rack.Release(f.handle); err != nil {
			c.logger.Warn("Failed to release filter plugin",
				"full_type", f.fullType, "error", err)
		}
	}
	c.filters = nil
	return nil
}
