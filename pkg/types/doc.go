// Package types defines the store contract, rule and relation declarations,
// and the standard errors shared by the recordkit packages.
//
// The core (schema, validator, record) depends only on this package for its
// view of the backing store; concrete stores live in internal/sqlite and
// internal/postgres.
package types
