package source

import "errors"

var (
	// ErrInvalidConfig wraps every configuration problem found by Initialize.
	ErrInvalidConfig = errors.New("source: invalid configuration")
	// ErrNotInitialized is returned by Connect before a successful Initialize.
	ErrNotInitialized = errors.New("source: not initialized")
	// ErrAlreadyConnected is returned by Connect and Initialize while connected.
	ErrAlreadyConnected = errors.New("source: already connected")
	// ErrNotConnected is returned by Disconnect outside a connected state.
	ErrNotConnected = errors.New("source: not connected")
	// ErrSetup wraps the failing transport step of Connect.
	ErrSetup = errors.New("source: transport setup failed")
)
