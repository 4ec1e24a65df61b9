// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package postgres contains the domain concept definitions needed to support
// the gateway's PostgreSQL database functionality.
//
// It provides the abstraction of the PostgreSQL database service, which is used
// to configure, setup and connect to the PostgreSQL database.
package postgres
