package domain

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a session is already active on the engine.
var ErrBusy = errors.New("another USSD is in progress")

// ErrDialFailure is returned when the host could not start the dialer action.
var ErrDialFailure = errors.New("failed to dial")

// ErrTimeout is returned when no terminal screen appeared within the session window.
var ErrTimeout = errors.New("USSD timeout")

// ErrClassifiedFailure is returned when the carrier reported a failure screen.
var ErrClassifiedFailure = errors.New("USSD failure screen")

// ErrProcessing is returned when flattening, classification or execution panicked.
// It is reported as a failure screen: errors.Is(ErrProcessing, ErrClassifiedFailure) holds.
var ErrProcessing = fmt.Errorf("USSD processing error: %w", ErrClassifiedFailure)

// ErrStopped is returned when the engine shut down before the session resolved.
var ErrStopped = errors.New("USSD engine stopped")

// ErrInstanceExists is returned when a second engine is registered for the same device.
var ErrInstanceExists = errors.New("engine instance already registered")

// ErrResultNotFound is returned when a session result cannot be found in the store.
var ErrResultNotFound = errors.New("result not found")
