package sdfcull

import (
	"errors"

	"github.com/gekko3d/sdfcull/cullrt/rt/core"
)

var (
	// ErrResourceCreation: setup-time allocation failed. Fatal to construction.
	ErrResourceCreation = core.ErrResourceCreation
	// ErrSynchronizationTimeout: a frame fence did not signal in time. Always
	// reported together with ErrDeviceLost.
	ErrSynchronizationTimeout = core.ErrSynchronizationTimeout
	ErrDeviceLost             = core.ErrDeviceLost
	// ErrCapacityOverflow: more visible instances than visibility entries.
	ErrCapacityOverflow = core.ErrCapacityOverflow

	ErrInvalidConfig = errors.New("invalid config")
	ErrClosed        = errors.New("renderer closed")
)
