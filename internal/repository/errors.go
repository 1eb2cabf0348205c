// Package repository implements persistence for users, meters, readings and
// clients on top of database/sql. This file defines sentinel errors shared
// across repositories so handlers can map failures to HTTP status codes
// without inspecting driver-specific errors. Entity-specific sentinels
// (ErrMeterNotFound, ErrEmailExists, ...) live next to their repository.
package repository

import "errors"

// ErrConflict is returned when a write collides with existing state, such as
// registering two meters that race to the same sequential id after all
// retries are exhausted. Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")
