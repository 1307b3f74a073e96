// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package estimator

import (
	"errors"
	"fmt"
)

// Common errors. Use errors.Is to test for them; the typed errors below
// match these sentinels.
var (
	ErrDomain        = errors.New("parameter out of domain")
	ErrResourceLimit = errors.New("resource limit exceeded")
	ErrInfeasible    = errors.New("attack infeasible")
)

// DomainError reports an invalid parameter range: τ outside [0, n], β
// outside [2, d], a non-positive σ or an empty search grid.
type DomainError struct {
	Op     string
	Param  string
	Reason string
}

func (e *DomainError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Param, e.Reason)
}

// Is reports whether target is ErrDomain.
func (e *DomainError) Is(target error) bool { return target == ErrDomain }

// ResourceLimitError reports that a search exceeded a configured cap.
type ResourceLimitError struct {
	Limit  string
	Reason string
	Err    error
}

func (e *ResourceLimitError) Error() string {
	msg := fmt.Sprintf("resource limit %s: %s", e.Limit, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResourceLimitError) Is(target error) bool { return target == ErrResourceLimit }

func (e *ResourceLimitError) Unwrap() error { return e.Err }

func domainErrorf(op, param, format string, args ...any) error {
	return &DomainError{Op: op, Param: param, Reason: fmt.Sprintf(format, args...)}
}
