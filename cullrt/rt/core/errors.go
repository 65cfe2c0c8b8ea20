package core

import "errors"

var (
	// ErrResourceCreation is returned when setup-time allocation fails. It
	// aborts construction.
	ErrResourceCreation = errors.New("resource creation failed")
	// ErrSynchronizationTimeout is returned when a completion fence does not
	// signal within its bound. It always comes wrapped in ErrDeviceLost.
	ErrSynchronizationTimeout = errors.New("synchronization timeout")
	// ErrDeviceLost marks a fatal execution failure; the render loop must stop.
	ErrDeviceLost = errors.New("device lost")
	// ErrCapacityOverflow means more instances passed than the visibility
	// buffer can hold. Unreachable while capacity equals the instance count.
	ErrCapacityOverflow = errors.New("visibility capacity overflow")
)
