// Package apperrors holds the sentinel errors shared by every layer.
// Wrap them with fmt.Errorf("...: %w", ...) and test with errors.Is.
package apperrors

import "errors"

// Request errors are raised before any network call.
var (
	// ErrInvalidSymbol indicates the symbol is not a member of the universe it was checked against.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrInvalidDateRange indicates from is after to.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrInvalidArgument covers other malformed requests (unknown segment, option type...).
	ErrInvalidArgument = errors.New("invalid argument")
)

// Upstream errors describe what went wrong talking to the exchange site.
var (
	// ErrConnectivity indicates every fetch attempt failed.
	ErrConnectivity = errors.New("connection error")

	// ErrSchemaMismatch indicates the payload no longer has the expected shape:
	// a missing key, a wrong node type, a missing column or an unparseable date.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrNotFound indicates a well-formed payload where the filter matched nothing,
	// or a historical artifact that is neither cached nor downloadable.
	ErrNotFound = errors.New("not found")
)
