// Copyright (c) Mainflux
// SPDX-License-Identifier: Apache-2.0

// Package repository holds the sentinel errors that storage adapters map
// their backend-specific failures onto, so callers above the Store port
// never inspect driver error types directly.
package repository

import "github.com/smsgwd/smsgwd/pkg/errors"

var (
	// ErrConflict indicates a unique-constraint violation on insert.
	ErrConflict = errors.New("entity already exists")

	// ErrMalformedEntity indicates malformed entity specification, e.g.
	// too long a field or an invalid byte sequence for its column type.
	ErrMalformedEntity = errors.New("malformed entity specification")

	// ErrCreateEntity indicates a failure while creating an entity, e.g. a
	// foreign-key violation against a row that does not exist.
	ErrCreateEntity = errors.New("failed to create entity")

	// ErrNotFound indicates a missing entity.
	ErrNotFound = errors.New("entity not found")

	// ErrViewEntity indicates error while viewing an entity.
	ErrViewEntity = errors.New("view entity failed")
)
