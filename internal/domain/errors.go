package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrTransport    = errors.New("transport error")
	ErrRasterIO     = errors.New("raster i/o error")
	ErrRasterDecode = errors.New("raster decode error")
	ErrAuth         = errors.New("authentication failed")
)

// Specific errors.
var (
	ErrAssetNotFound       = fmt.Errorf("asset: %w", ErrNotFound)
	ErrItemNotFound        = fmt.Errorf("item: %w", ErrNotFound)
	ErrInvalidBBox         = fmt.Errorf("bbox: %w", ErrInvalidInput)
	ErrInvalidDataType     = fmt.Errorf("data type: %w", ErrInvalidInput)
	ErrGridMismatch        = fmt.Errorf("raster grid mismatch: %w", ErrInvalidInput)
	ErrUnsupportedHref     = fmt.Errorf("asset href: %w", ErrUnsupported)
	ErrUnsupportedEncoding = fmt.Errorf("raster encoding: %w", ErrUnsupported)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// HTTPError is returned when a server answers with a non-success status.
type HTTPError struct {
	URL        string // Requested URL
	StatusCode int    // HTTP status code
	Status     string // Status line text
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("HTTP %s for %s", e.Status, e.URL)
	}
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// Unwrap returns the underlying error type.
func (e *HTTPError) Unwrap() error {
	return ErrTransport
}

// TransportError represents a connection or stream failure during a transfer.
type TransportError struct {
	URL string // Requested URL
	Err error  // Underlying error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %s: %v", e.URL, e.Err)
}

// Unwrap returns both the transport kind and the underlying error.
func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// RasterError represents a failure reading, decoding or writing a raster file.
type RasterError struct {
	Op   string // Operation that failed (open, decode, write)
	Path string // Raster file path
	Kind error  // ErrRasterIO or ErrRasterDecode
	Err  error  // Underlying error
}

// Error implements the error interface.
func (e *RasterError) Error() string {
	return fmt.Sprintf("raster %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns both the raster error kind and the underlying error.
func (e *RasterError) Unwrap() []error {
	kind := e.Kind
	if kind == nil {
		kind = ErrRasterIO
	}
	return []error{kind, e.Err}
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (fetch, publish, etc.)
	Key       string // Object key or href
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error type.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
