package model

import "errors"

var (
	// ErrNotValid is returned when a configuration is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrNotFound is returned when a resource doesn't exist.
	ErrNotFound = errors.New("resource not found")
	// ErrSetup is returned when the child could not be confined.
	ErrSetup = errors.New("sandbox setup failed")
)
