package storage

import "errors"

// ErrNotFound is returned when a requested tenant does not exist.
var ErrNotFound = errors.New("tenant not found")
